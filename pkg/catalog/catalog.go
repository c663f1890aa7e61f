// Package catalog lists tables straight from the Postgres system catalog.
// It is a discovery tier for projects whose REST API does not expose a
// table-listing function but whose database is reachable directly.
package catalog

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Conn is satisfied by *pgx.Conn and *pgxpool.Pool.
type Conn interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Lister lists the base tables of one schema.
type Lister struct {
	conn   Conn
	schema string
	close  func()
}

// New returns a Lister over an existing connection.
func New(conn Conn, schema string) *Lister {
	if schema == "" {
		schema = "public"
	}
	return &Lister{conn: conn, schema: schema}
}

// Open returns a Lister backed by a connection pool for dsn. Connections are
// made lazily, on the first ListTables call.
func Open(dsn, schema string) (*Lister, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	cfg.MaxConns = 1

	pool, err := pgxpool.NewWithConfig(context.Background(), cfg)
	if err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}

	l := New(pool, schema)
	l.close = pool.Close
	return l, nil
}

// Close releases the pool opened by Open. It is a no-op for Listers built
// with New.
func (l *Lister) Close() {
	if l.close != nil {
		l.close()
	}
}

// ListTables returns the schema's base tables sorted by name. Views are
// excluded because they cannot always be counted or written.
func (l *Lister) ListTables(ctx context.Context) ([]string, error) {
	rows, err := l.conn.Query(ctx, `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = $1 AND table_type = 'BASE TABLE'
		ORDER BY table_name`, l.schema)
	if err != nil {
		return nil, fmt.Errorf("list tables in %s: %w", l.schema, err)
	}

	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("list tables in %s: %w", l.schema, err)
	}
	return names, nil
}
