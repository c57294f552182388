package salesforce

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

// mockClient implements Client for testing.
type mockClient struct {
	queryFn     func(ctx context.Context, soql string, out any) error
	insertOneFn func(ctx context.Context, sObjectName string, record map[string]any) (string, error)
	updateOneFn func(ctx context.Context, sObjectName string, id string, fields map[string]any) error
}

func (m *mockClient) Query(ctx context.Context, soql string, out any) error {
	if m.queryFn != nil {
		return m.queryFn(ctx, soql, out)
	}
	return nil
}

func (m *mockClient) InsertOne(ctx context.Context, sObjectName string, record map[string]any) (string, error) {
	if m.insertOneFn != nil {
		return m.insertOneFn(ctx, sObjectName, record)
	}
	return "00Q000000000001", nil
}

func (m *mockClient) UpdateOne(ctx context.Context, sObjectName string, id string, fields map[string]any) error {
	if m.updateOneFn != nil {
		return m.updateOneFn(ctx, sObjectName, id, fields)
	}
	return nil
}

func queryReturning(t *testing.T, leads []Lead, gotSOQL *string) func(context.Context, string, any) error {
	return func(_ context.Context, soql string, out any) error {
		*gotSOQL = soql
		data, err := json.Marshal(leads)
		require.NoError(t, err)
		return json.Unmarshal(data, out)
	}
}

func TestWithRateLimit(t *testing.T) {
	c := NewClient(nil, WithRateLimit(10)).(*sfClient)
	require.NotNil(t, c.limiter)
	assert.Equal(t, rate.Limit(10), c.limiter.Limit())

	assert.Nil(t, NewClient(nil, WithRateLimit(0)).(*sfClient).limiter)
	assert.Equal(t, 1, NewClient(nil, WithRateLimit(0.5)).(*sfClient).limiter.Burst())
}

func TestRateLimiter_CancelledContext(t *testing.T) {
	c := &sfClient{limiter: rate.NewLimiter(rate.Every(time.Hour), 0)}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, c.wait(ctx))
}

func TestConnect_RequiresClientID(t *testing.T) {
	_, err := Connect(Creds{})
	assert.Error(t, err)
}

func TestFindLead_ByEmail(t *testing.T) {
	var soql string
	m := &mockClient{queryFn: queryReturning(t, []Lead{{ID: "00Q1", Email: "o'neil@example.com"}}, &soql)}

	got, err := FindLead(context.Background(), m, "o'neil@example.com", "5125550100")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "00Q1", got.ID)
	assert.Contains(t, soql, `Email = 'o\'neil@example.com'`)
}

func TestFindLead_ByPhoneAndMissing(t *testing.T) {
	var soql string
	m := &mockClient{queryFn: queryReturning(t, nil, &soql)}

	got, err := FindLead(context.Background(), m, "", "5125550100")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Contains(t, soql, "Phone = '5125550100'")

	got, err = FindLead(context.Background(), m, "", "")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestUpsertLead_Inserts(t *testing.T) {
	var soql string
	var inserted map[string]any
	m := &mockClient{
		queryFn: queryReturning(t, nil, &soql),
		insertOneFn: func(_ context.Context, obj string, rec map[string]any) (string, error) {
			assert.Equal(t, "Lead", obj)
			inserted = rec
			return "00Qnew", nil
		},
	}

	id, err := UpsertLead(context.Background(), m, map[string]any{"Email": "jane@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "00Qnew", id)
	assert.Equal(t, "Unknown", inserted["LastName"])
	assert.Equal(t, "Individual", inserted["Company"])
}

func TestUpsertLead_Updates(t *testing.T) {
	var soql, updatedID string
	m := &mockClient{
		queryFn: queryReturning(t, []Lead{{ID: "00Qold"}}, &soql),
		insertOneFn: func(context.Context, string, map[string]any) (string, error) {
			t.Fatal("insert should not be called")
			return "", nil
		},
		updateOneFn: func(_ context.Context, _ string, id string, _ map[string]any) error {
			updatedID = id
			return nil
		},
	}

	id, err := UpsertLead(context.Background(), m, map[string]any{"LastName": "Doe", "Phone": "5125550100"})
	require.NoError(t, err)
	assert.Equal(t, "00Qold", id)
	assert.Equal(t, "00Qold", updatedID)
}

func TestEscapeSoql(t *testing.T) {
	assert.Equal(t, `O\'Brien`, escapeSoql("O'Brien"))
	assert.Equal(t, `a\\b`, escapeSoql(`a\b`))
}
