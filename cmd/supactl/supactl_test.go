package supactl

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/edgeflare/supactl/internal/testutil"
	"github.com/edgeflare/supactl/pkg/config"
	"github.com/edgeflare/supactl/pkg/rest/resttest"
	"github.com/edgeflare/supactl/pkg/supabase"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

const testKey = "anon-key"

// lendingServer serves the lending fixture with a working table-listing RPC.
func lendingServer(t *testing.T) *resttest.Server {
	t.Helper()
	names, rows, err := testutil.LoadTables("lending.json")
	require.NoError(t, err)

	srv := resttest.NewServer(t)
	srv.APIKey = testKey
	for _, name := range names {
		srv.CreateTable(name, rows[name]...)
	}
	srv.HandleRPC(supabase.DefaultTablesRPC, srv.TableNamesRPC())
	return srv
}

// useProject points the credential variables at srv and loads a default
// config from an empty directory.
func useProject(t *testing.T, srv *resttest.Server) {
	t.Helper()
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())
	for _, name := range append(config.URLEnvVars, config.KeyEnvVars...) {
		t.Setenv(name, "")
		require.NoError(t, os.Unsetenv(name))
	}
	t.Setenv("SUPABASE_URL", srv.URL)
	t.Setenv("SUPABASE_ANON_KEY", testKey)

	loaded, err := config.Load("")
	require.NoError(t, err)
	prev := cfg
	cfg = loaded
	t.Cleanup(func() { cfg = prev })
}

func testClient(t *testing.T, srv *resttest.Server) *supabase.Client {
	t.Helper()
	useProject(t, srv)
	client, done, err := newClient()
	require.NoError(t, err)
	t.Cleanup(done)
	return client
}

func TestParseFilters(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    supabase.Filter
		wantErr string
	}{
		{name: "none", want: supabase.Filter{}},
		{
			name: "scalars",
			args: []string{"id=1", "paid=true", "note=null", "status=open", `code="007"`},
			want: supabase.Filter{
				"id":     json.Number("1"),
				"paid":   true,
				"note":   nil,
				"status": "open",
				"code":   "007",
			},
		},
		{name: "value with equals", args: []string{"expr=a=b"}, want: supabase.Filter{"expr": "a=b"}},
		{name: "empty value", args: []string{"name="}, want: supabase.Filter{"name": ""}},
		{name: "objects stay strings", args: []string{`meta={"a":1}`}, want: supabase.Filter{"meta": `{"a":1}`}},
		{name: "missing equals", args: []string{"id"}, wantErr: "want column=value"},
		{name: "missing column", args: []string{"=1"}, wantErr: "want column=value"},
		{name: "duplicate", args: []string{"id=1", "id=2"}, wantErr: "duplicate filter"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseFilters(tt.args)
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseRow(t *testing.T) {
	row, err := parseRow(`{"amount": 500, "status": "open"}`)
	require.NoError(t, err)
	assert.Equal(t, []string{"amount", "status"}, row.Keys())

	_, err = parseRow(`[1, 2]`)
	assert.ErrorContains(t, err, "--data")

	_, err = parseRow(`{}`)
	assert.ErrorContains(t, err, "no columns")

	_, err = parseRow(`{"amount":`)
	assert.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error", "none"} {
		logger, err := newLogger(level)
		require.NoError(t, err, level)
		assert.NotNil(t, logger)
	}

	_, err := newLogger("loud")
	assert.ErrorContains(t, err, `invalid log level "loud"`)
}

func TestNewClientMissingCredentials(t *testing.T) {
	srv := resttest.NewServer(t)
	useProject(t, srv)
	require.NoError(t, os.Unsetenv("SUPABASE_ANON_KEY"))

	_, _, err := newClient()

	var cfgErr *supabase.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, err.Error(), "SUPABASE_ANON_KEY")
}

func TestReport(t *testing.T) {
	srv := lendingServer(t)
	srv.Fail("transactions", 403, "42501", "permission denied for table transactions")
	client := testClient(t, srv)

	var out bytes.Buffer
	path := filepath.Join(t.TempDir(), supabase.SummaryFile)
	require.NoError(t, report(t.Context(), &out, client, path))

	text := out.String()
	assert.Contains(t, text, "Found 5 tables:")
	assert.Contains(t, text, "loans           Columns: 5 | Rows: 3")
	assert.Contains(t, text, "installments    Columns: 0 | Rows: 0")
	assert.Contains(t, text, "transactions    Error: ")
	assert.Contains(t, text, "Columns (4): id, name, phone, branch")
	assert.Contains(t, text, "Summary exported to "+path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	summary := gjson.ParseBytes(data)
	assert.EqualValues(t, 5, summary.Get("total_tables").Int())
	assert.EqualValues(t, 3, summary.Get("tables.loans.row_count").Int())
	assert.Equal(t, "Ada Lovelace", summary.Get("tables.customers.sample_row.name").String())
	assert.True(t, summary.Get("tables.transactions.error").Exists())
	assert.False(t, summary.Get("tables.transactions.columns").Exists())
	assert.True(t, strings.HasPrefix(string(data), "{\n  \"total_tables\": 5,"))
}

func TestPrintDetailsTruncatesColumns(t *testing.T) {
	cols := make([]string, 13)
	for i := range cols {
		cols[i] = string(rune('a' + i))
	}

	var out bytes.Buffer
	printDetails(&out, supabase.TableInfo{TableName: "wide", Columns: cols, RowCount: 2})

	assert.Contains(t, out.String(), "Columns (13): a, b, c, d, e, f, g, h, i, j\n")
	assert.Contains(t, out.String(), "... and 3 more")
	assert.Contains(t, out.String(), "Row count: 2")
}

func TestCheck(t *testing.T) {
	srv := lendingServer(t)
	srv.CreateBucket("loan-images", true, "a.png", "b.png")
	client := testClient(t, srv)

	var out bytes.Buffer
	err := check(t.Context(), &out, client, []string{"loans", "guarantors"}, []string{"loan-images", "avatars"})

	assert.ErrorIs(t, err, errCheckFailed)
	text := out.String()
	assert.Contains(t, text, "loans           Connected (3 rows)")
	assert.Contains(t, text, "guarantors      missing: table does not exist")
	assert.Contains(t, text, "loan-images     Connected (public), 2 files visible")
	assert.Contains(t, text, "avatars         missing: bucket does not exist")
}

func TestCheckAllGood(t *testing.T) {
	srv := lendingServer(t)
	srv.CreateBucket("loan-images", false)
	client := testClient(t, srv)

	var out bytes.Buffer
	err := check(t.Context(), &out, client, []string{"loans", "customers"}, []string{"loan-images"})

	require.NoError(t, err)
	assert.Contains(t, out.String(), "loan-images     Connected (private), 0 files visible")
	assert.Contains(t, out.String(), "All connections succeeded.")
}

func TestPrintEnv(t *testing.T) {
	srv := resttest.NewServer(t)
	useProject(t, srv)
	require.NoError(t, os.Unsetenv("SUPABASE_ANON_KEY"))

	var out bytes.Buffer
	printEnv(&out)

	assert.Contains(t, out.String(), "NEXT_PUBLIC_SUPABASE_URL or SUPABASE_URL: set (SUPABASE_URL)")
	assert.Contains(t, out.String(), "NEXT_PUBLIC_SUPABASE_ANON_KEY or SUPABASE_ANON_KEY: missing")
}

// execute runs the command tree with args and returns what it printed.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.ExecuteContext(t.Context())
	return out.String(), err
}

func TestVersionFlag(t *testing.T) {
	srv := resttest.NewServer(t)
	useProject(t, srv)
	t.Cleanup(func() { _ = rootCmd.PersistentFlags().Set("version", "false") })

	out, err := execute(t, "--version", "-L", "none")
	require.NoError(t, err)
	assert.Equal(t, config.Version+"\n", out)
	assert.Empty(t, srv.Requests())
	assert.Contains(t, rootCmd.Long, supabase.SummaryFile)
}

func TestQueryCommand(t *testing.T) {
	srv := lendingServer(t)
	useProject(t, srv)

	out, err := execute(t, "query", "loans", "--filter", "customer_id=1", "--filter", "status=closed", "-L", "none")
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":3,"customer_id":1,"amount":1200,"status":"closed","issued_on":"2023-11-20"}]`, out)
}

func TestQueryCommandLimit(t *testing.T) {
	srv := lendingServer(t)
	useProject(t, srv)
	t.Cleanup(func() { _ = queryCmd.Flags().Set("limit", "100") })

	out, err := execute(t, "query", "loans", "--limit", "0", "-L", "none")
	require.NoError(t, err)
	assert.Equal(t, int64(3), gjson.Get(out, "#").Int())
	reqs := srv.Requests()
	require.NotEmpty(t, reqs)
	assert.Equal(t, "100", reqs[len(reqs)-1].Query.Get("limit"))

	_, err = execute(t, "query", "loans", "--limit=-1", "-L", "none")
	assert.ErrorIs(t, err, supabase.ErrNegativeLimit)
}

func TestInsertAndExportCommands(t *testing.T) {
	srv := lendingServer(t)
	useProject(t, srv)

	out, err := execute(t, "insert", "partners", "--data", `{"name":"Acme","share":0.4,"active":false}`, "-L", "none")
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":2,"name":"Acme","share":0.4,"active":false}`, out)
	assert.Len(t, srv.Rows("partners"), 2)

	out, err = execute(t, "export", "partners", "-L", "none")
	require.NoError(t, err)
	assert.Contains(t, out, "Exported partners to partners_export.json")

	data, err := os.ReadFile("partners_export.json")
	require.NoError(t, err)
	assert.Equal(t, int64(2), gjson.GetBytes(data, "#").Int())
}

func TestDeleteRequiresFilter(t *testing.T) {
	srv := lendingServer(t)
	useProject(t, srv)

	_, err := execute(t, "delete", "loans", "-L", "none")
	assert.ErrorContains(t, err, `"filter" not set`)
	assert.Len(t, srv.Rows("loans"), 3)
}
