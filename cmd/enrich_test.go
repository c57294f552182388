package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/lead-enrichment/internal/enrich"
	"github.com/sells-group/lead-enrichment/internal/lead"
)

func TestLoadRows_JSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "leads.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"First Name":"Jane","Last Name":"Doe","Phone":5125550142}]`), 0o644))

	rows, source, err := loadRows(context.Background(), nil, path)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, path, source)
	assert.Equal(t, "Jane", rows[0].Get(lead.FieldFirstName))
	assert.Equal(t, "5125550142", rows[0].Get(lead.FieldPhone))
}

func TestLoadRows_UnsupportedFile(t *testing.T) {
	_, _, err := loadRows(context.Background(), nil, "leads.csv")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load input")
}

func TestLoadRows_NotionSource(t *testing.T) {
	src := func(context.Context) ([]lead.Row, error) {
		return []lead.Row{{"Name": "Jane Doe"}}, nil
	}

	rows, source, err := loadRows(context.Background(), src, "ignored.json")
	require.NoError(t, err)
	assert.Equal(t, "notion", source)
	require.Len(t, rows, 1)
	assert.Equal(t, "Jane Doe", rows[0].Get(lead.FieldFullName))
}

func TestLoadRows_NotionError(t *testing.T) {
	src := func(context.Context) ([]lead.Row, error) {
		return nil, errors.New("unauthorized")
	}

	_, _, err := loadRows(context.Background(), src, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load notion leads")
}

func TestNotionSource_RequiresToken(t *testing.T) {
	withConfig(t, testConfig(t))

	assert.Nil(t, notionSource(""))

	src := notionSource("lead-db")
	require.NotNil(t, src)
	_, err := src(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "output.notion.token")
}

func TestFormatBatchStats(t *testing.T) {
	var buf bytes.Buffer
	formatBatchStats(&buf, "enrichment_1_abc", enrich.Stats{Processed: 4, Skipped: 2, Failed: 1, GatePassed: 3})

	output := buf.String()
	assert.Contains(t, output, "enrichment_1_abc")
	assert.Regexp(t, `Processed:\s+4`, output)
	assert.Regexp(t, `Skipped:\s+2`, output)
	assert.Regexp(t, `Failed:\s+1`, output)
	assert.Regexp(t, `Gate passed:\s+3`, output)
}

func TestWriteRowsJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")
	rows := []lead.Row{{"Name": "Jane Doe", "Gate Passed": true}}

	require.NoError(t, writeRowsJSON(path, rows))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var got []map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	require.Len(t, got, 1)
	assert.Equal(t, "Jane Doe", got[0]["Name"])
	assert.Equal(t, true, got[0]["Gate Passed"])
}
