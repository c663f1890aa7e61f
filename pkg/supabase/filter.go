package supabase

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/spf13/cast"
	"github.com/supabase-community/postgrest-go"
)

// Filter maps column names to the value each must equal. All entries must
// hold for a row to match. A nil value matches SQL NULL.
type Filter map[string]any

// Columns returns the filtered column names in sorted order.
func (f Filter) Columns() []string {
	cols := make([]string, 0, len(f))
	for col := range f {
		cols = append(cols, col)
	}
	sort.Strings(cols)
	return cols
}

// apply adds one condition per column to b, in column order so requests are
// reproducible.
func (f Filter) apply(b *postgrest.FilterBuilder) (*postgrest.FilterBuilder, error) {
	for _, col := range f.Columns() {
		v := f[col]
		if v == nil {
			b = b.Is(col, "null")
			continue
		}
		lit, err := Literal(v)
		if err != nil {
			return nil, fmt.Errorf("filter on %s: %w", col, err)
		}
		b = b.Eq(col, lit)
	}
	return b, nil
}

// Literal renders v the way PostgREST expects it in a filter.
func Literal(v any) (string, error) {
	switch v := v.(type) {
	case time.Time:
		return v.Format(time.RFC3339Nano), nil
	case json.Number:
		return v.String(), nil
	case bool:
		return strconv.FormatBool(v), nil
	case Row, []any, map[string]any:
		return "", fmt.Errorf("unsupported filter value of type %T", v)
	}
	return cast.ToStringE(v)
}
