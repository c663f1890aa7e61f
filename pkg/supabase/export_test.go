package supabase

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/edgeflare/supactl/pkg/rest/resttest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExportTable(t *testing.T) {
	srv := resttest.NewServer(t)
	rows := make([]string, 120)
	for i := range rows {
		rows[i] = fmt.Sprintf(`{"id":%d,"note":"<%d>"}`, i+1, i)
	}
	srv.CreateTable("transactions", rows...)
	c := newTestClient(t, srv)

	path := filepath.Join(t.TempDir(), "tx.json")
	got, err := c.ExportTable(t.Context(), "transactions", path)
	require.NoError(t, err)
	assert.Equal(t, path, got)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "[\n  {\n    \"id\": 1,"), "two-space indentation")
	assert.Contains(t, string(data), `"note": "<0>"`)

	var exported []map[string]any
	require.NoError(t, json.Unmarshal(data, &exported))

	queried, err := c.Query(t.Context(), "transactions", nil, ExportLimit)
	require.NoError(t, err)
	assert.Len(t, exported, len(queried))
	assert.Len(t, exported, 120)

	last := srv.Requests()[0]
	assert.Equal(t, "10000", last.Query.Get("limit"))
}

func TestExportTableDefaultFilename(t *testing.T) {
	srv := newLoansServer(t)
	c := newTestClient(t, srv)
	t.Chdir(t.TempDir())

	got, err := c.ExportTable(t.Context(), "loans", "")
	require.NoError(t, err)
	assert.Equal(t, "loans_export.json", got)

	data, err := os.ReadFile("loans_export.json")
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":1,"amount":500},{"id":2,"amount":750}]`, string(data))
}

func TestExportEmptyTable(t *testing.T) {
	srv := resttest.NewServer(t)
	srv.CreateTable("partners")
	c := newTestClient(t, srv)

	path := filepath.Join(t.TempDir(), "partners.json")
	_, err := c.ExportTable(t.Context(), "partners", path)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "[]\n", string(data))
}

func TestExportFailureWritesNothing(t *testing.T) {
	srv := resttest.NewServer(t)
	c := newTestClient(t, srv)

	path := filepath.Join(t.TempDir(), "missing.json")
	_, err := c.ExportTable(t.Context(), "missing", path)
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.NoFileExists(t, path)
}

func TestWriteJSONSummary(t *testing.T) {
	srv := newLoansServer(t)
	srv.HandleRPC(DefaultTablesRPC, srv.TableNamesRPC())
	c := newTestClient(t, srv)

	path := filepath.Join(t.TempDir(), SummaryFile)
	require.NoError(t, WriteJSON(path, c.DescribeAllTables(t.Context())))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"total_tables": 1,
		"tables": {
			"loans": {
				"table_name": "loans",
				"columns": ["id", "amount"],
				"sample_row": {"id": 1, "amount": 500},
				"row_count": 2
			}
		}
	}`, string(data))
	assert.Contains(t, string(data), "\n  \"tables\": {\n    \"loans\": {")
}

func TestSummaryWithoutOrder(t *testing.T) {
	summary := Summary{
		TotalTables: 2,
		Tables: map[string]TableInfo{
			"loans":     {TableName: "loans", Columns: []string{"id"}, RowCount: 2},
			"customers": {TableName: "customers", Error: "permission denied"},
		},
	}

	data, err := json.Marshal(summary)
	require.NoError(t, err)
	assert.Equal(t, `{"total_tables":2,"tables":{`+
		`"customers":{"table_name":"customers","error":"permission denied"},`+
		`"loans":{"table_name":"loans","columns":["id"],"sample_row":null,"row_count":2}}}`, string(data))
}

func TestSummaryOrderSkipsRemovedTables(t *testing.T) {
	summary := Summary{
		TotalTables: 2,
		Tables: map[string]TableInfo{
			"loans":    {TableName: "loans", Columns: []string{}},
			"partners": {TableName: "partners", Columns: []string{}},
		},
		Order: []string{"transactions", "loans", "loans"},
	}

	data, err := json.Marshal(summary)
	require.NoError(t, err)
	assert.Equal(t, `{"total_tables":2,"tables":{`+
		`"loans":{"table_name":"loans","columns":[],"sample_row":null,"row_count":0},`+
		`"partners":{"table_name":"partners","columns":[],"sample_row":null,"row_count":0}}}`, string(data))

	var names []string
	for _, info := range summary.Infos() {
		names = append(names, info.TableName)
	}
	assert.Equal(t, []string{"loans", "partners"}, names)
}
