package rest

import (
	"fmt"
	"net/url"
	"slices"
	"strings"

	"github.com/tidwall/gjson"
)

// QueryParams holds parsed query parameters in a structured way
type QueryParams struct {
	Select  []string               // Columns to select, nil means all
	Limit   int                    // Limit results, 0 means unlimited
	Offset  int                    // Offset results
	Filters map[string]FilterParam // Column filters, ANDed
}

// FilterParam is a single column condition such as eq.500 or is.null.
type FilterParam struct {
	Operator string // eq, neq, is, in
	Value    string
}

// ParseQueryParams parses PostgREST query parameters. Unknown operators are
// reported as errors so the server can answer with 400 like PostgREST does.
func ParseQueryParams(values url.Values) (QueryParams, error) {
	params := QueryParams{
		Filters: make(map[string]FilterParam),
	}

	// Parse select parameter
	if select_ := values.Get("select"); select_ != "" && select_ != "*" {
		params.Select = parseSelectParam(select_)
	}

	// Parse limit parameter
	if limit := values.Get("limit"); limit != "" {
		n, err := parseIntParam(limit)
		if err != nil {
			return params, fmt.Errorf("invalid limit %q", limit)
		}
		params.Limit = n
	}

	// Parse offset parameter
	if offset := values.Get("offset"); offset != "" {
		n, err := parseIntParam(offset)
		if err != nil {
			return params, fmt.Errorf("invalid offset %q", offset)
		}
		params.Offset = n
	}

	// Parse filter parameters (everything else)
	for key, vals := range values {
		if isReservedParam(key) || len(vals) == 0 {
			continue
		}
		filter, err := parseFilterParam(vals[0])
		if err != nil {
			return params, fmt.Errorf("column %s: %w", key, err)
		}
		params.Filters[key] = filter
	}

	return params, nil
}

// Parse select parameter, supports nested selects for embedding resources
func parseSelectParam(select_ string) []string {
	cols := strings.Split(select_, ",")
	for i := range cols {
		cols[i] = strings.TrimSpace(cols[i])
	}
	return cols
}

// Parse filter parameter of the form operator.value
func parseFilterParam(value string) (FilterParam, error) {
	op, val, found := strings.Cut(value, ".")
	if !found {
		return FilterParam{}, fmt.Errorf("missing operator in %q", value)
	}
	switch op {
	case "eq", "neq", "in":
	case "is":
		if val != "null" && val != "true" && val != "false" {
			return FilterParam{}, fmt.Errorf("invalid is value %q", val)
		}
	default:
		return FilterParam{}, fmt.Errorf("unsupported operator %q", op)
	}
	return FilterParam{Operator: op, Value: val}, nil
}

// Match reports whether a stored JSON value satisfies the filter. Values are
// compared by their PostgREST literal text: strings by content, everything
// else by its raw JSON encoding.
func (f FilterParam) Match(v gjson.Result) bool {
	switch f.Operator {
	case "is":
		switch f.Value {
		case "null":
			return !v.Exists() || v.Type == gjson.Null
		case "true":
			return v.Type == gjson.True
		default:
			return v.Type == gjson.False
		}
	case "eq":
		return v.Exists() && v.Type != gjson.Null && literal(v) == f.Value
	case "neq":
		return v.Exists() && v.Type != gjson.Null && literal(v) != f.Value
	case "in":
		list := strings.TrimSuffix(strings.TrimPrefix(f.Value, "("), ")")
		return v.Exists() && v.Type != gjson.Null && slices.Contains(strings.Split(list, ","), literal(v))
	}
	return false
}

func literal(v gjson.Result) string {
	if v.Type == gjson.String {
		return v.Str
	}
	return v.Raw
}

// Parse integer parameter
func parseIntParam(value string) (int, error) {
	var result int
	if _, err := fmt.Sscanf(value, "%d", &result); err != nil {
		return 0, err
	}
	if result < 0 {
		return 0, fmt.Errorf("negative value %d", result)
	}
	return result, nil
}

// Check if parameter name is a reserved keyword
func isReservedParam(name string) bool {
	reserved := map[string]bool{
		"select":      true,
		"order":       true,
		"limit":       true,
		"offset":      true,
		"on_conflict": true,
		"columns":     true,
	}
	return reserved[name]
}
