package supabase

import (
	"context"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/supabase-community/postgrest-go"
	"go.uber.org/zap"
)

const (
	// DefaultTablesRPC is the database function asked for the table list.
	DefaultTablesRPC = "get_all_tables"
	DefaultSchema    = "public"
	DefaultTimeout   = 30 * time.Second
	DefaultLimit     = 100
	ExportLimit      = 10000

	restPath = "/rest/v1"
)

// DefaultFallbackTables is returned by ListTables when the table list cannot
// be fetched.
var DefaultFallbackTables = []string{"partners", "customers", "loans", "transactions", "installments"}

// Credentials locate and authorize a Supabase project.
type Credentials struct {
	URL string
	Key string
}

// TableLister enumerates tables without going through the REST API.
type TableLister interface {
	ListTables(ctx context.Context) ([]string, error)
}

// Client is a table-oriented facade over a project's REST API. It keeps no
// mutable state after New returns and is safe for concurrent use.
type Client struct {
	url       string
	key       string
	schema    string
	rpc       string
	fallback  []string
	catalog   TableLister
	transport *transport
	logger    *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithSchema selects the database schema requests run against.
func WithSchema(schema string) Option {
	return func(c *Client) {
		if schema != "" {
			c.schema = schema
		}
	}
}

// WithFallbackTables replaces the list ListTables degrades to.
func WithFallbackTables(tables ...string) Option {
	return func(c *Client) { c.fallback = slices.Clone(tables) }
}

// WithRPC changes the database function called to list tables.
func WithRPC(name string) Option {
	return func(c *Client) {
		if name != "" {
			c.rpc = name
		}
	}
}

// WithCatalog adds a second discovery tier consulted by DiscoverTables when
// the RPC fails.
func WithCatalog(lister TableLister) Option {
	return func(c *Client) { c.catalog = lister }
}

// WithTimeout bounds each HTTP request. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.transport.timeout = d }
}

// WithRetries retries idempotent reads on 5xx and 429 answers up to n times
// with exponential backoff. Writes are never retried.
func WithRetries(n int) Option {
	return func(c *Client) { c.transport.retries = n }
}

// WithHTTPTransport sets the RoundTripper requests are sent through.
func WithHTTPTransport(rt http.RoundTripper) Option {
	return func(c *Client) {
		if rt != nil {
			c.transport.base = rt
		}
	}
}

// New validates creds and returns a ready Client. It does not contact the
// server; connectivity problems surface on first use.
func New(creds Credentials, opts ...Option) (*Client, error) {
	var missing []string
	if creds.URL == "" {
		missing = append(missing, "url")
	}
	if creds.Key == "" {
		missing = append(missing, "key")
	}
	if len(missing) > 0 {
		return nil, &ConfigurationError{Message: "supabase: missing credentials: " + strings.Join(missing, ", ")}
	}

	u, err := url.Parse(creds.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, &ConfigurationError{Message: "supabase: url must be an absolute http(s) URL, got " + creds.URL}
	}

	c := &Client{
		url:      strings.TrimRight(creds.URL, "/"),
		key:      creds.Key,
		schema:   DefaultSchema,
		rpc:      DefaultTablesRPC,
		fallback: slices.Clone(DefaultFallbackTables),
		transport: &transport{
			base:           http.DefaultTransport,
			timeout:        DefaultTimeout,
			initialBackoff: 200 * time.Millisecond,
		},
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.transport.logger = c.logger

	c.logger.Info("connected to supabase", zap.String("url", c.url), zap.String("schema", c.schema))
	return c, nil
}

// URL returns the project URL the client talks to.
func (c *Client) URL() string { return c.url }

func (c *Client) headers() map[string]string {
	return map[string]string{
		"apikey":        c.key,
		"Authorization": "Bearer " + c.key,
	}
}

// call is the state of one facade operation: a postgrest-go client whose
// requests run under the operation's context.
type call struct {
	rest   *postgrest.Client
	status int
}

func (c *Client) newCall(ctx context.Context) *call {
	cl := &call{}
	cl.rest = postgrest.NewClient(c.url+restPath, c.schema, c.headers())
	if cl.rest.Transport != nil {
		cl.rest.Transport.Parent = c.transport.bind(ctx, &cl.status)
	}
	return cl
}

func (cl *call) err(err error) error {
	return apiError(err, cl.status)
}
