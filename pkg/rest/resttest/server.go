// Package resttest provides an in-memory server speaking enough of the
// PostgREST and Supabase Storage protocols to test clients against, in the
// spirit of net/http/httptest.
//
// Rows are kept as raw JSON so values round-trip byte for byte and column
// order is preserved the way a real table returns it.
package resttest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"slices"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/edgeflare/supactl/pkg/httputil"
	"github.com/edgeflare/supactl/pkg/httputil/middleware"
	"github.com/edgeflare/supactl/pkg/rest"
	"github.com/tidwall/gjson"
	"go.uber.org/zap/zaptest"
)

// RPCFunc answers a call to /rpc/{name}. The returned value is encoded as JSON.
type RPCFunc func(body []byte) (status int, response any)

// Request is a recorded incoming request.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	Body   string
}

// Server is an in-memory PostgREST-compatible server.
type Server struct {
	*httptest.Server

	// APIKey, when non-empty, is required in the apikey header of every request.
	APIKey string

	t        testing.TB
	mu       sync.Mutex
	tables   map[string]*table
	failures map[string]failure
	slow     map[string]bool // tables whose exact counts fail
	rpcs     map[string]RPCFunc
	buckets  map[string]*bucket
	requests []Request
}

type failure struct {
	status int
	err    rest.Error
}

type bucket struct {
	name   string
	public bool
	files  []string
}

// NewServer starts a server that is closed when the test ends.
func NewServer(t testing.TB) *Server {
	s := &Server{
		t:        t,
		tables:   make(map[string]*table),
		failures: make(map[string]failure),
		slow:     make(map[string]bool),
		rpcs:     make(map[string]RPCFunc),
		buckets:  make(map[string]*bucket),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /rest/v1/rpc/{name}", s.handleRPC)
	mux.HandleFunc("/rest/v1/{table}", s.handleTable)
	mux.HandleFunc("GET /storage/v1/bucket", s.handleListBuckets)
	mux.HandleFunc("POST /storage/v1/object/list/{bucket}", s.handleListFiles)

	s.Server = httptest.NewServer(middleware.Chain(mux,
		middleware.RequestID,
		middleware.LoggerWithOptions(&middleware.LoggerOptions{Logger: zaptest.NewLogger(t)}),
		s.recordRequests,
		s.checkAPIKey,
	))
	t.Cleanup(s.Close)
	return s
}

// CreateTable creates (or replaces) a table seeded with rows given as JSON objects.
func (s *Server) CreateTable(name string, rows ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tbl := &table{name: name}
	for _, raw := range rows {
		if !gjson.Valid(raw) || !gjson.Parse(raw).IsObject() {
			s.t.Fatalf("resttest: invalid row for %s: %s", name, raw)
		}
		tbl.append(parseRecord(gjson.Parse(raw)))
	}
	s.tables[name] = tbl
}

// Fail makes every request to the table answer with the given PostgREST error.
func (s *Server) Fail(name string, status int, code, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[name] = failure{status: status, err: rest.Error{Code: code, Message: message}}
}

// FailCount makes requests asking for an exact count on the table fail with a
// statement timeout, while plain reads keep working.
func (s *Server) FailCount(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slow[name] = true
}

// HandleRPC registers a remote procedure.
func (s *Server) HandleRPC(name string, fn RPCFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rpcs[name] = fn
}

// TableNamesRPC returns an RPCFunc listing the server's tables in name order,
// shaped like a function returning SETOF text.
func (s *Server) TableNamesRPC() RPCFunc {
	return func([]byte) (int, any) {
		names := make([]string, 0, len(s.tables))
		for name := range s.tables {
			names = append(names, name)
		}
		sort.Strings(names)
		return http.StatusOK, names
	}
}

// CreateBucket creates a storage bucket holding files.
func (s *Server) CreateBucket(name string, public bool, files ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buckets[name] = &bucket{name: name, public: public, files: files}
}

// Rows returns the current rows of a table encoded as JSON objects.
func (s *Server) Rows(name string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	tbl, ok := s.tables[name]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(tbl.rows))
	for _, rec := range tbl.rows {
		out = append(out, string(rec.encode(nil)))
	}
	return out
}

// Requests returns the requests received so far.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.requests)
}

func (s *Server) recordRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		r.Body = io.NopCloser(bytes.NewReader(body))

		s.mu.Lock()
		s.requests = append(s.requests, Request{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.Query(),
			Header: r.Header.Clone(),
			Body:   string(body),
		})
		s.mu.Unlock()

		next.ServeHTTP(w, r)
	})
}

func (s *Server) checkAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.APIKey != "" && r.Header.Get("apikey") != s.APIKey {
			httputil.JSON(w, http.StatusUnauthorized, map[string]string{"message": "Invalid API key"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeError(w http.ResponseWriter, status int, code, format string, args ...any) {
	httputil.JSON(w, status, rest.Error{Code: code, Message: fmt.Sprintf(format, args...)})
}

func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	s.mu.Lock()
	fn, ok := s.rpcs[name]
	s.mu.Unlock()

	if !ok {
		schema := rest.ParseHeaders(r).Schema
		writeError(w, http.StatusNotFound, rest.CodeFunctionNotFound,
			"Could not find the function %s.%s without parameters in the schema cache", schema, name)
		return
	}

	body, _ := io.ReadAll(r.Body)
	s.mu.Lock()
	status, response := fn(body)
	s.mu.Unlock()
	httputil.JSON(w, status, response)
}

func (s *Server) handleTable(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("table")
	headers := rest.ParseHeaders(r)

	s.mu.Lock()
	defer s.mu.Unlock()

	if f, ok := s.failures[name]; ok {
		httputil.JSON(w, f.status, f.err)
		return
	}

	tbl, ok := s.tables[name]
	if !ok {
		writeError(w, http.StatusNotFound, rest.CodeTableNotFound,
			"Could not find the table '%s.%s' in the schema cache", headers.Schema, name)
		return
	}

	params, err := rest.ParseQueryParams(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, rest.CodeInvalidParameters, "%v", err)
		return
	}
	for col := range params.Filters {
		if !tbl.hasColumn(col) {
			writeError(w, http.StatusBadRequest, rest.CodeUndefinedColumn, "column %s.%s does not exist", name, col)
			return
		}
	}

	if headers.Prefer.WantsCountExact() && s.slow[name] {
		writeError(w, http.StatusInternalServerError, "57014", "canceling statement due to statement timeout")
		return
	}

	switch r.Method {
	case http.MethodGet, http.MethodHead:
		s.handleGet(w, r, tbl, params, headers)
	case http.MethodPost:
		s.handlePost(w, r, tbl, headers)
	case http.MethodPatch:
		s.handlePatch(w, r, tbl, params, headers)
	case http.MethodDelete:
		s.handleDelete(w, tbl, params, headers)
	default:
		writeError(w, http.StatusMethodNotAllowed, "PGRST117", "Unsupported HTTP method: %s", r.Method)
	}
}

// handleGet processes GET and HEAD requests to fetch data
func (s *Server) handleGet(w http.ResponseWriter, r *http.Request, tbl *table, params rest.QueryParams, headers *rest.Headers) {
	matching := tbl.match(params.Filters)
	total := len(matching)

	page := matching[min(params.Offset, total):]
	if params.Limit > 0 && len(page) > params.Limit {
		page = page[:params.Limit]
	}

	if headers.Prefer.WantsCountExact() {
		w.Header().Set("Content-Range", rest.ContentRange(params.Offset, len(page), total))
	} else {
		w.Header().Set("Content-Range", rest.ContentRange(params.Offset, len(page), -1))
	}

	if r.Method == http.MethodHead {
		w.WriteHeader(http.StatusOK)
		return
	}
	httputil.Blob(w, http.StatusOK, encodeRecords(page, params.Select), "application/json")
}

// handlePost processes POST requests to insert one object or an array of objects
func (s *Server) handlePost(w http.ResponseWriter, r *http.Request, tbl *table, headers *rest.Headers) {
	objects, ok := readObjects(w, r, true)
	if !ok {
		return
	}

	inserted := make([]*record, 0, len(objects))
	for _, obj := range objects {
		rec := parseRecord(obj)
		if col, ok := tbl.unknownColumn(rec); ok {
			writeError(w, http.StatusBadRequest, "PGRST204", "Could not find the '%s' column of '%s' in the schema cache", col, tbl.name)
			return
		}
		inserted = append(inserted, rec)
	}
	for _, rec := range inserted {
		tbl.assignID(rec)
		tbl.append(rec)
	}

	s.respond(w, http.StatusCreated, inserted, headers)
}

// handlePatch processes PATCH requests to update data
func (s *Server) handlePatch(w http.ResponseWriter, r *http.Request, tbl *table, params rest.QueryParams, headers *rest.Headers) {
	objects, ok := readObjects(w, r, false)
	if !ok {
		return
	}
	patch := parseRecord(objects[0])
	if col, ok := tbl.unknownColumn(patch); ok {
		writeError(w, http.StatusBadRequest, "PGRST204", "Could not find the '%s' column of '%s' in the schema cache", col, tbl.name)
		return
	}

	updated := tbl.match(params.Filters)
	for _, rec := range updated {
		for _, k := range patch.keys {
			rec.set(k, patch.values[k])
		}
	}

	s.respond(w, http.StatusOK, updated, headers)
}

// handleDelete processes DELETE requests
func (s *Server) handleDelete(w http.ResponseWriter, tbl *table, params rest.QueryParams, headers *rest.Headers) {
	deleted := tbl.match(params.Filters)
	tbl.rows = slices.DeleteFunc(tbl.rows, func(rec *record) bool {
		return slices.Contains(deleted, rec)
	})

	s.respond(w, http.StatusOK, deleted, headers)
}

func (s *Server) respond(w http.ResponseWriter, status int, records []*record, headers *rest.Headers) {
	if !headers.Prefer.WantsRepresentation() {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	httputil.Blob(w, status, encodeRecords(records, nil), "application/json")
}

func readObjects(w http.ResponseWriter, r *http.Request, allowArray bool) ([]gjson.Result, bool) {
	body, err := io.ReadAll(r.Body)
	if err != nil || !gjson.ValidBytes(body) {
		writeError(w, http.StatusBadRequest, rest.CodeInvalidBody, "Empty or invalid json")
		return nil, false
	}

	doc := gjson.ParseBytes(body)
	switch {
	case doc.IsObject():
		return []gjson.Result{doc}, true
	case doc.IsArray() && allowArray:
		items := doc.Array()
		for _, item := range items {
			if !item.IsObject() {
				writeError(w, http.StatusBadRequest, rest.CodeInvalidBody, "All object keys must match")
				return nil, false
			}
		}
		return items, true
	}
	writeError(w, http.StatusBadRequest, rest.CodeInvalidBody, "Empty or invalid json")
	return nil, false
}

func (s *Server) handleListBuckets(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.buckets))
	for name := range s.buckets {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]map[string]any, 0, len(names))
	for _, name := range names {
		b := s.buckets[name]
		out = append(out, map[string]any{"id": b.name, "name": b.name, "public": b.public})
	}
	httputil.JSON(w, http.StatusOK, out)
}

func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Prefix string `json:"prefix"`
		Limit  int    `json:"limit"`
		Offset int    `json:"offset"`
	}
	if err := httputil.BindOrError(r, w, &req); err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.buckets[r.PathValue("bucket")]
	if !ok {
		httputil.JSON(w, http.StatusNotFound, map[string]any{"status": http.StatusNotFound, "message": "Bucket not found"})
		return
	}

	out := []map[string]any{}
	for _, f := range b.files {
		if !strings.HasPrefix(f, req.Prefix) {
			continue
		}
		out = append(out, map[string]any{"name": f, "bucket_id": b.name})
	}
	out = out[min(req.Offset, len(out)):]
	if req.Limit > 0 && len(out) > req.Limit {
		out = out[:req.Limit]
	}
	httputil.JSON(w, http.StatusOK, out)
}

type table struct {
	name    string
	columns []string
	rows    []*record
}

func (t *table) append(rec *record) {
	for _, k := range rec.keys {
		if !slices.Contains(t.columns, k) {
			t.columns = append(t.columns, k)
		}
	}
	t.rows = append(t.rows, rec)
}

// hasColumn reports whether the table knows col. Tables created without rows
// accept any column.
func (t *table) hasColumn(col string) bool {
	return len(t.columns) == 0 || slices.Contains(t.columns, col)
}

func (t *table) unknownColumn(rec *record) (string, bool) {
	for _, k := range rec.keys {
		if !t.hasColumn(k) {
			return k, true
		}
	}
	return "", false
}

func (t *table) match(filters map[string]rest.FilterParam) []*record {
	out := []*record{}
	for _, rec := range t.rows {
		ok := true
		for col, f := range filters {
			if !f.Match(rec.values[col]) {
				ok = false
				break
			}
		}
		if ok {
			out = append(out, rec)
		}
	}
	return out
}

// assignID fills a missing numeric id the way a serial primary key would.
func (t *table) assignID(rec *record) {
	if !slices.Contains(t.columns, "id") {
		return
	}
	if v, ok := rec.values["id"]; ok && v.Type != gjson.Null {
		return
	}

	var next int64 = 1
	for _, r := range t.rows {
		if v := r.values["id"]; v.Type == gjson.Number && v.Int() >= next {
			next = v.Int() + 1
		}
	}
	if _, ok := rec.values["id"]; !ok {
		rec.keys = append([]string{"id"}, rec.keys...)
	}
	rec.values["id"] = gjson.Parse(fmt.Sprint(next))
}

type record struct {
	keys   []string
	values map[string]gjson.Result
}

func parseRecord(obj gjson.Result) *record {
	rec := &record{values: make(map[string]gjson.Result)}
	obj.ForEach(func(key, value gjson.Result) bool {
		rec.set(key.String(), value)
		return true
	})
	return rec
}

func (r *record) set(key string, value gjson.Result) {
	if _, ok := r.values[key]; !ok {
		r.keys = append(r.keys, key)
	}
	r.values[key] = value
}

func (r *record) encode(columns []string) []byte {
	keys := r.keys
	if columns != nil {
		keys = columns
	}

	var b bytes.Buffer
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		name, _ := json.Marshal(k)
		b.Write(name)
		b.WriteByte(':')
		if v, ok := r.values[k]; ok {
			b.WriteString(v.Raw)
		} else {
			b.WriteString("null")
		}
	}
	b.WriteByte('}')
	return b.Bytes()
}

func encodeRecords(records []*record, columns []string) []byte {
	var b bytes.Buffer
	b.WriteByte('[')
	for i, rec := range records {
		if i > 0 {
			b.WriteByte(',')
		}
		b.Write(rec.encode(columns))
	}
	b.WriteByte(']')
	return b.Bytes()
}
