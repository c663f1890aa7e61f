package supabase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/edgeflare/supactl/pkg/httputil"
	"github.com/tidwall/gjson"
)

// RPC calls a database function with named arguments and returns the raw
// JSON result. A nil args sends an empty object.
func (c *Client) RPC(ctx context.Context, name string, args any) ([]byte, error) {
	if args == nil {
		args = map[string]any{}
	}

	var status int
	cfg := httputil.DefaultRequestConfig(http.MethodPost, c.url+restPath+"/rpc/"+url.PathEscape(name))
	cfg.Transport = c.transport.bind(ctx, &status)
	cfg.Timeout = 0 // bounded per request by the transport
	cfg.RetryEnabled = false
	cfg.Logger = nil
	cfg.Headers = map[string][]string{
		"apikey":          {c.key},
		"Authorization":   {"Bearer " + c.key},
		"Accept":          {"application/json"},
		"Content-Profile": {c.schema},
	}

	resp, err := httputil.Request(ctx, cfg, args)
	if err != nil {
		var statusErr *httputil.StatusError
		if errors.As(err, &statusErr) {
			return nil, decodeAPIError(statusErr.StatusCode, statusErr.Body)
		}
		return nil, fmt.Errorf("rpc %s: %w", name, err)
	}
	return resp.Body, nil
}

// decodeTableNames accepts the shapes a table-listing function commonly
// returns: an array of names, or an array of records carrying table_name or
// name.
func decodeTableNames(body []byte) ([]string, error) {
	if !gjson.ValidBytes(body) {
		return nil, errors.New("supabase: table list is not valid JSON")
	}
	doc := gjson.ParseBytes(body)
	if doc.Type == gjson.Null {
		return []string{}, nil
	}
	if !doc.IsArray() {
		return nil, fmt.Errorf("supabase: table list must be an array, got %s", doc.Type)
	}

	names := []string{}
	var err error
	doc.ForEach(func(_, item gjson.Result) bool {
		name := tableName(item)
		if name == "" {
			err = fmt.Errorf("supabase: cannot read a table name from %s", item.Raw)
			return false
		}
		names = append(names, name)
		return true
	})
	return names, err
}

func tableName(item gjson.Result) string {
	switch {
	case item.Type == gjson.String:
		return item.Str
	case item.IsObject():
		for _, key := range []string{"table_name", "name"} {
			if v := item.Get(key); v.Type == gjson.String {
				return v.Str
			}
		}
		var first string
		item.ForEach(func(_, v gjson.Result) bool {
			if v.Type == gjson.String {
				first = v.Str
				return false
			}
			return true
		})
		return first
	}
	return ""
}
