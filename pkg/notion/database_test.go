package notion_test

import (
	"context"
	"testing"

	"github.com/jomei/notionapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/lead-enrichment/pkg/notion"
	"github.com/sells-group/lead-enrichment/pkg/notion/mocks"
)

func TestQueryAll_FollowsCursor(t *testing.T) {
	mc := mocks.NewMockClient(t)
	ctx := context.Background()

	mc.On("QueryDatabase", ctx, "db-1", mock.MatchedBy(func(req *notionapi.DatabaseQueryRequest) bool {
		return req.StartCursor == ""
	})).Return(&notionapi.DatabaseQueryResponse{
		Results:    []notionapi.Page{{ID: "p1"}},
		HasMore:    true,
		NextCursor: "cursor-abc",
	}, nil).Once()
	mc.On("QueryDatabase", ctx, "db-1", mock.MatchedBy(func(req *notionapi.DatabaseQueryRequest) bool {
		return req.StartCursor == "cursor-abc"
	})).Return(&notionapi.DatabaseQueryResponse{
		Results: []notionapi.Page{{ID: "p2"}},
	}, nil).Once()

	pages, err := notion.QueryAll(ctx, mc, "db-1", nil)
	require.NoError(t, err)
	require.Len(t, pages, 2)
	assert.Equal(t, notionapi.ObjectID("p1"), pages[0].ID)
	assert.Equal(t, notionapi.ObjectID("p2"), pages[1].ID)
}

func TestQueryAll_CopiesFilter(t *testing.T) {
	mc := mocks.NewMockClient(t)
	ctx := context.Background()

	mc.On("QueryDatabase", ctx, "db-1", mock.MatchedBy(func(req *notionapi.DatabaseQueryRequest) bool {
		pf, ok := req.Filter.(notionapi.PropertyFilter)
		return ok && pf.Property == "Status" && req.PageSize == 50
	})).Return(&notionapi.DatabaseQueryResponse{}, nil).Once()

	_, err := notion.QueryAll(ctx, mc, "db-1", &notionapi.DatabaseQueryRequest{
		Filter: notionapi.PropertyFilter{
			Property: "Status",
			Status:   &notionapi.StatusFilterCondition{Equals: "New"},
		},
		PageSize: 50,
	})
	require.NoError(t, err)
}

func TestQueryAll_Error(t *testing.T) {
	mc := mocks.NewMockClient(t)
	ctx := context.Background()

	mc.On("QueryDatabase", ctx, "db-1", mock.Anything).Return(nil, assert.AnError).Once()

	pages, err := notion.QueryAll(ctx, mc, "db-1", nil)
	require.Error(t, err)
	assert.Nil(t, pages)
	assert.Contains(t, err.Error(), "notion: query all")
}

func TestLoadRows(t *testing.T) {
	mc := mocks.NewMockClient(t)
	ctx := context.Background()

	mc.On("QueryDatabase", ctx, "leads", mock.Anything).Return(&notionapi.DatabaseQueryResponse{
		Results: []notionapi.Page{{
			ID: "p1",
			Properties: notionapi.Properties{
				"Name":  &notionapi.TitleProperty{Title: []notionapi.RichText{{PlainText: "Jane Doe"}}},
				"City":  &notionapi.RichTextProperty{RichText: []notionapi.RichText{{PlainText: "Austin"}}},
				"Phone": &notionapi.PhoneNumberProperty{PhoneNumber: "512-555-0100"},
			},
		}},
	}, nil).Once()

	rows, err := notion.LoadRows(ctx, mc, "leads")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Jane Doe", rows[0]["Name"])
	assert.Equal(t, "Austin", rows[0]["City"])
	assert.Equal(t, "512-555-0100", rows[0]["Phone"])
}

func TestUpsertByText_Creates(t *testing.T) {
	mc := mocks.NewMockClient(t)
	ctx := context.Background()
	props := notionapi.Properties{"Name": notion.Title("Jane Doe")}

	mc.On("QueryDatabase", ctx, "leads", mock.MatchedBy(func(req *notionapi.DatabaseQueryRequest) bool {
		pf, ok := req.Filter.(notionapi.PropertyFilter)
		return ok && pf.Property == "Lead Key" && pf.RichText != nil && pf.RichText.Equals == "url:linkedin.com/in/jane"
	})).Return(&notionapi.DatabaseQueryResponse{}, nil).Once()
	mc.On("CreatePage", ctx, mock.MatchedBy(func(req *notionapi.PageCreateRequest) bool {
		return req.Parent.DatabaseID == "leads" && len(req.Properties) == 1
	})).Return(&notionapi.Page{ID: "new-page"}, nil).Once()

	id, err := notion.UpsertByText(ctx, mc, "leads", "Lead Key", "url:linkedin.com/in/jane", props)
	require.NoError(t, err)
	assert.Equal(t, "new-page", id)
}

func TestUpsertByText_Updates(t *testing.T) {
	mc := mocks.NewMockClient(t)
	ctx := context.Background()
	props := notionapi.Properties{"Name": notion.Title("Jane Doe")}

	mc.On("QueryDatabase", ctx, "leads", mock.Anything).Return(&notionapi.DatabaseQueryResponse{
		Results: []notionapi.Page{{ID: "existing"}},
	}, nil).Once()
	mc.On("UpdatePage", ctx, "existing", mock.AnythingOfType("*notionapi.PageUpdateRequest")).
		Return(&notionapi.Page{ID: "existing"}, nil).Once()

	id, err := notion.UpsertByText(ctx, mc, "leads", "Lead Key", "k", props)
	require.NoError(t, err)
	assert.Equal(t, "existing", id)
}

func TestUpsertByText_LookupError(t *testing.T) {
	mc := mocks.NewMockClient(t)
	ctx := context.Background()

	mc.On("QueryDatabase", ctx, "leads", mock.Anything).Return(nil, assert.AnError).Once()

	_, err := notion.UpsertByText(ctx, mc, "leads", "Lead Key", "k", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "notion: find Lead Key")
}
