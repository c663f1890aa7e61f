package catalog

import (
	"context"
	"testing"

	"github.com/edgeflare/supactl/internal/testutil/pgtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListTables(t *testing.T) {
	ctx := context.Background()
	conn := pgtest.Connect(ctx, t)
	pgtest.Schema(ctx, t, conn, "supactl_catalog_test")

	_, err := conn.Exec(ctx, `
		CREATE TABLE supactl_catalog_test.loans (id serial PRIMARY KEY, amount numeric);
		CREATE TABLE supactl_catalog_test.customers (id serial PRIMARY KEY);
		CREATE VIEW supactl_catalog_test.big_loans AS SELECT * FROM supactl_catalog_test.loans WHERE amount > 1000;
	`)
	require.NoError(t, err)

	tables, err := New(conn, "supactl_catalog_test").ListTables(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"customers", "loans"}, tables)
}

func TestListTablesEmptySchema(t *testing.T) {
	ctx := context.Background()
	conn := pgtest.Connect(ctx, t)

	tables, err := New(conn, "supactl_no_such_schema").ListTables(ctx)
	require.NoError(t, err)
	assert.Empty(t, tables)
}

func TestOpen(t *testing.T) {
	l, err := Open(pgtest.DSN(t), "")
	require.NoError(t, err)
	defer l.Close()

	_, err = l.ListTables(context.Background())
	assert.NoError(t, err)
}

func TestOpenInvalidDSN(t *testing.T) {
	_, err := Open("postgres://%zz", "public")
	assert.ErrorContains(t, err, "catalog:")
}
