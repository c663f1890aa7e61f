package supabase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/edgeflare/supactl/pkg/metrics"
	"go.uber.org/zap"
)

// Source tells which discovery tier produced a table list.
type Source string

const (
	SourceRPC      Source = "rpc"
	SourceCatalog  Source = "catalog"
	SourceFallback Source = "fallback"
)

// TableInfo describes a table as seen through one sample row. When the table
// could not be read only TableName and Error are set, and only those are
// encoded.
type TableInfo struct {
	TableName  string   `json:"table_name"`
	Columns    []string `json:"columns,omitempty"`
	SampleRow  *Row     `json:"sample_row,omitempty"`
	RowCount   int64    `json:"row_count,omitempty"`
	CountError string   `json:"count_error,omitempty"`
	Error      string   `json:"error,omitempty"`
}

// OK reports whether the table was read successfully.
func (t TableInfo) OK() bool { return t.Error == "" }

func (t TableInfo) MarshalJSON() ([]byte, error) {
	if t.Error != "" {
		return marshalValue(struct {
			TableName string `json:"table_name"`
			Error     string `json:"error"`
		}{t.TableName, t.Error})
	}

	columns := t.Columns
	if columns == nil {
		columns = []string{}
	}
	return marshalValue(struct {
		TableName  string   `json:"table_name"`
		Columns    []string `json:"columns"`
		SampleRow  *Row     `json:"sample_row"`
		RowCount   int64    `json:"row_count"`
		CountError string   `json:"count_error,omitempty"`
	}{t.TableName, columns, t.SampleRow, t.RowCount, t.CountError})
}

// Summary is the result of describing every table.
type Summary struct {
	TotalTables int                  `json:"total_tables"`
	Tables      map[string]TableInfo `json:"tables"`
	// Order holds the table names in the order they were listed.
	Order []string `json:"-"`
}

// Infos returns the descriptors in listing order.
func (s Summary) Infos() []TableInfo {
	names := s.names()
	out := make([]TableInfo, 0, len(names))
	for _, name := range names {
		out = append(out, s.Tables[name])
	}
	return out
}

// names returns the tables in Order that are present in Tables, followed by
// any other Tables keys sorted by name.
func (s Summary) names() []string {
	names := make([]string, 0, len(s.Tables))
	seen := make(map[string]bool, len(s.Tables))
	for _, name := range s.Order {
		if _, ok := s.Tables[name]; ok && !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}

	var rest []string
	for name := range s.Tables {
		if !seen[name] {
			rest = append(rest, name)
		}
	}
	slices.Sort(rest)
	return append(names, rest...)
}

// MarshalJSON encodes tables in listing order rather than sorted by name.
func (s Summary) MarshalJSON() ([]byte, error) {
	var b bytes.Buffer
	fmt.Fprintf(&b, `{"total_tables":%d,"tables":{`, s.TotalTables)
	for i, name := range s.names() {
		if i > 0 {
			b.WriteByte(',')
		}
		key, err := marshalValue(name)
		if err != nil {
			return nil, err
		}
		info, err := marshalValue(s.Tables[name])
		if err != nil {
			return nil, err
		}
		b.Write(key)
		b.WriteByte(':')
		b.Write(info)
	}
	b.WriteString("}}")
	return b.Bytes(), nil
}

// ListTables returns the project's table names. It never fails: when no
// discovery tier answers, it logs a warning and returns the fallback list.
func (c *Client) ListTables(ctx context.Context) []string {
	tables, _, err := c.DiscoverTables(ctx)
	if err == nil {
		return tables
	}

	c.logger.Warn("could not list tables, using known tables",
		zap.Error(err),
		zap.Strings("tables", c.fallback),
	)
	metrics.Fallbacks.WithLabelValues("list_tables").Inc()
	return slices.Clone(c.fallback)
}

// DiscoverTables asks the table-listing database function, then the catalog
// if one is configured. Unlike ListTables it reports failure instead of
// substituting the fallback list.
func (c *Client) DiscoverTables(ctx context.Context) ([]string, Source, error) {
	body, err := c.RPC(ctx, c.rpc, nil)
	if err == nil {
		var tables []string
		if tables, err = decodeTableNames(body); err == nil {
			return tables, SourceRPC, nil
		}
	}
	errs := []error{fmt.Errorf("rpc %s: %w", c.rpc, err)}

	if c.catalog != nil {
		tables, err := c.catalog.ListTables(ctx)
		if err == nil {
			c.logger.Debug("listed tables from catalog", zap.Int("tables", len(tables)))
			return tables, SourceCatalog, nil
		}
		errs = append(errs, fmt.Errorf("catalog: %w", err))
	}
	return nil, "", errors.Join(errs...)
}

// DescribeTable infers a table's columns from one sample row and counts its
// rows. An empty table yields no columns and a zero count without error; a
// table that cannot be read yields a descriptor carrying only the error. A
// failed count leaves RowCount at zero and sets CountError.
func (c *Client) DescribeTable(ctx context.Context, name string) TableInfo {
	info := TableInfo{TableName: name}

	rows, err := c.sample(ctx, name)
	if err != nil {
		c.logger.Warn("could not describe table", zap.String("table", name), zap.Error(err))
		metrics.OperationErrors.WithLabelValues("describe_table").Inc()
		info.Error = err.Error()
		return info
	}

	if len(rows) == 0 {
		info.Columns = []string{}
		return info
	}

	sample := rows[0]
	info.Columns = sample.Keys()
	info.SampleRow = &sample

	count, err := c.CountRows(ctx, name)
	info.RowCount = count
	if err != nil {
		info.CountError = err.Error()
	}
	return info
}

func (c *Client) sample(ctx context.Context, name string) ([]Row, error) {
	cl := c.newCall(ctx)
	body, _, err := cl.rest.From(name).Select("*", "", false).Limit(1, "").Execute()
	if err != nil {
		return nil, cl.err(err)
	}
	return decodeRows(body)
}

// CountRows returns the exact number of rows in a table. On failure it
// returns 0 together with the error.
func (c *Client) CountRows(ctx context.Context, name string) (int64, error) {
	cl := c.newCall(ctx)
	_, count, err := cl.rest.From(name).Select("*", "exact", false).Limit(1, "").Execute()
	if err != nil {
		err = cl.err(err)
		c.logger.Warn("could not count rows", zap.String("table", name), zap.Error(err))
		metrics.OperationErrors.WithLabelValues("count_rows").Inc()
		return 0, err
	}

	c.logger.Debug("counted rows", zap.String("table", name), zap.Int64("count", count))
	return count, nil
}

// DescribeAllTables lists the tables and describes each in turn. A table that
// cannot be read is recorded with its error and does not stop the scan.
func (c *Client) DescribeAllTables(ctx context.Context) Summary {
	tables := c.ListTables(ctx)
	summary := Summary{
		TotalTables: len(tables),
		Tables:      make(map[string]TableInfo, len(tables)),
		Order:       make([]string, 0, len(tables)),
	}

	for _, name := range tables {
		c.logger.Debug("describing table", zap.String("table", name))
		if _, seen := summary.Tables[name]; !seen {
			summary.Order = append(summary.Order, name)
		}
		summary.Tables[name] = c.DescribeTable(ctx, name)
	}
	return summary
}
