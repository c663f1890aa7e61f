package rest

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestParseQueryParams(t *testing.T) {
	values, err := url.ParseQuery("select=*&limit=10&offset=5&id=eq.1&status=is.null&kind=in.(a,b)")
	require.NoError(t, err)

	params, err := ParseQueryParams(values)
	require.NoError(t, err)

	assert.Nil(t, params.Select)
	assert.Equal(t, 10, params.Limit)
	assert.Equal(t, 5, params.Offset)
	assert.Equal(t, map[string]FilterParam{
		"id":     {Operator: "eq", Value: "1"},
		"status": {Operator: "is", Value: "null"},
		"kind":   {Operator: "in", Value: "(a,b)"},
	}, params.Filters)
}

func TestParseQueryParamsSelectColumns(t *testing.T) {
	values, err := url.ParseQuery("select=id,%20amount")
	require.NoError(t, err)

	params, err := ParseQueryParams(values)
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "amount"}, params.Select)
	assert.Zero(t, params.Limit)
}

func TestParseQueryParamsErrors(t *testing.T) {
	for _, raw := range []string{
		"limit=abc",
		"offset=-1",
		"id=1",
		"id=gt.1",
		"flag=is.maybe",
	} {
		t.Run(raw, func(t *testing.T) {
			values, err := url.ParseQuery(raw)
			require.NoError(t, err)
			_, err = ParseQueryParams(values)
			assert.Error(t, err)
		})
	}
}

func TestFilterParamMatch(t *testing.T) {
	row := gjson.Parse(`{"id":1,"name":"Ada","active":true,"closed_at":null,"amount":500.5}`)

	tests := []struct {
		column string
		filter FilterParam
		want   bool
	}{
		{"id", FilterParam{"eq", "1"}, true},
		{"id", FilterParam{"eq", "2"}, false},
		{"id", FilterParam{"neq", "2"}, true},
		{"name", FilterParam{"eq", "Ada"}, true},
		{"name", FilterParam{"eq", `"Ada"`}, false},
		{"active", FilterParam{"eq", "true"}, true},
		{"active", FilterParam{"is", "true"}, true},
		{"active", FilterParam{"is", "false"}, false},
		{"closed_at", FilterParam{"is", "null"}, true},
		{"closed_at", FilterParam{"eq", "null"}, false},
		{"missing", FilterParam{"is", "null"}, true},
		{"amount", FilterParam{"eq", "500.5"}, true},
		{"name", FilterParam{"in", "(Bob,Ada)"}, true},
		{"name", FilterParam{"in", "(Bob,Eve)"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.column+"="+tt.filter.Operator+"."+tt.filter.Value, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.filter.Match(row.Get(tt.column)))
		})
	}
}
