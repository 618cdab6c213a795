// Package supabase adapts the request executor to a PostgREST backend: table
// selects with filters, inserts and upserts, updates, deletes and RPC calls.
package supabase

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/fakhrymubarak/masjid-data-gateway/internal/httpclient"
	"github.com/fakhrymubarak/masjid-data-gateway/internal/model"
)

const restPrefix = "/rest/v1"

// ErrNotConfigured is returned by operations on a client without a project URL.
var ErrNotConfigured = &httpclient.APIError{
	Message: "Supabase is not configured",
	Status:  http.StatusServiceUnavailable,
	Code:    "SUPABASE_NOT_CONFIGURED",
}

// Config holds client configuration. HTTP carries the executor settings;
// its BaseURL and Headers are derived from URL and APIKey.
type Config struct {
	URL    string
	APIKey string
	HTTP   httpclient.Config
}

// Client is a PostgREST client for one Supabase project.
type Client struct {
	exec *httpclient.Client

	mu     sync.RWMutex
	url    string
	apiKey string
}

// New creates a new Supabase client. An empty URL yields a client whose
// operations fail with ErrNotConfigured until SetConfig is called.
func New(cfg Config) *Client {
	httpCfg := cfg.HTTP
	httpCfg.BaseURL = restURL(cfg.URL)
	httpCfg.Headers = authHeaders(cfg.APIKey)
	if httpCfg.Target == "" {
		httpCfg.Target = "supabase"
	}
	return &Client{
		exec:   httpclient.New(httpCfg),
		url:    strings.TrimRight(cfg.URL, "/"),
		apiKey: cfg.APIKey,
	}
}

func restURL(projectURL string) string {
	if projectURL == "" {
		return ""
	}
	return strings.TrimRight(projectURL, "/") + restPrefix
}

func authHeaders(apiKey string) map[string]string {
	return map[string]string{
		"apikey":        apiKey,
		"Authorization": "Bearer " + apiKey,
		"Prefer":        "return=representation",
	}
}

// SetConfig points the client at another project.
func (c *Client) SetConfig(projectURL, apiKey string) {
	c.mu.Lock()
	c.url = strings.TrimRight(projectURL, "/")
	c.apiKey = apiKey
	c.mu.Unlock()

	c.exec.SetBaseURL(restURL(projectURL))
	c.exec.SetDefaultHeaders(authHeaders(apiKey))
}

// SetAuthToken replaces the bearer token with a user session token. The apikey header is unchanged.
func (c *Client) SetAuthToken(token string) {
	c.exec.SetAuthToken(token)
}

// ClearAuthToken reverts the bearer token to the project API key.
func (c *Client) ClearAuthToken() {
	c.mu.RLock()
	key := c.apiKey
	c.mu.RUnlock()
	c.exec.SetAuthToken(key)
}

func (c *Client) Configured() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.url != ""
}

// Executor exposes the underlying request executor.
func (c *Client) Executor() *httpclient.Client {
	return c.exec
}

// From starts a query builder for a table.
func (c *Client) From(table string) *QueryBuilder {
	return &QueryBuilder{
		client:  c,
		table:   table,
		filters: httpclient.Filters{},
	}
}

// QueryBuilder accumulates a PostgREST request for one table.
type QueryBuilder struct {
	client     *Client
	table      string
	columns    string
	filters    httpclient.Filters
	or         []httpclient.Condition
	orders     []string
	limit      int
	offset     int
	single     bool
	count      string
	onConflict string
	upsert     bool
}

// Select sets the column list. Defaults to "*".
func (q *QueryBuilder) Select(columns string) *QueryBuilder {
	q.columns = columns
	return q
}

func (q *QueryBuilder) Eq(column string, value any) *QueryBuilder {
	q.filters[column] = httpclient.Eq(value)
	return q
}

func (q *QueryBuilder) Neq(column string, value any) *QueryBuilder {
	q.filters[column] = httpclient.Cmp(httpclient.OpNeq, value)
	return q
}

func (q *QueryBuilder) Gte(column string, value any) *QueryBuilder {
	q.filters[column] = httpclient.Cmp(httpclient.OpGte, value)
	return q
}

func (q *QueryBuilder) Lte(column string, value any) *QueryBuilder {
	q.filters[column] = httpclient.Cmp(httpclient.OpLte, value)
	return q
}

func (q *QueryBuilder) ILike(column string, pattern string) *QueryBuilder {
	q.filters[column] = httpclient.Cmp(httpclient.OpILike, pattern)
	return q
}

func (q *QueryBuilder) In(column string, values []any) *QueryBuilder {
	q.filters[column] = httpclient.In{Values: values}
	return q
}

// Filter applies an arbitrary filter to a column.
func (q *QueryBuilder) Filter(column string, f httpclient.Filter) *QueryBuilder {
	q.filters[column] = f
	return q
}

// Or adds an or=(...) group. Repeated calls replace the group.
func (q *QueryBuilder) Or(conds ...httpclient.Condition) *QueryBuilder {
	q.or = conds
	return q
}

// Order adds an ORDER BY clause.
func (q *QueryBuilder) Order(column string, ascending bool) *QueryBuilder {
	dir := "asc"
	if !ascending {
		dir = "desc"
	}
	q.orders = append(q.orders, column+"."+dir)
	return q
}

func (q *QueryBuilder) Limit(n int) *QueryBuilder {
	q.limit = n
	return q
}

func (q *QueryBuilder) Offset(n int) *QueryBuilder {
	q.offset = n
	return q
}

// Range selects rows from..to inclusive.
func (q *QueryBuilder) Range(from, to int) *QueryBuilder {
	q.offset = from
	q.limit = to - from + 1
	return q
}

// Single expects exactly one row; PostgREST answers 406 otherwise.
func (q *QueryBuilder) Single() *QueryBuilder {
	q.single = true
	return q
}

// Count asks PostgREST to compute a row count (exact, planned or estimated).
func (q *QueryBuilder) Count(countType string) *QueryBuilder {
	q.count = countType
	return q
}

// Upsert turns the next Insert into an upsert resolving conflicts on the given columns.
func (q *QueryBuilder) Upsert(onConflict string) *QueryBuilder {
	q.upsert = true
	q.onConflict = onConflict
	return q
}

func (q *QueryBuilder) path() string {
	return "/" + q.table
}

func (q *QueryBuilder) params(withSelect bool) map[string]any {
	params := map[string]any{}
	if withSelect {
		columns := q.columns
		if columns == "" {
			columns = "*"
		}
		params["select"] = columns
	}
	if len(q.or) > 0 {
		params["or"] = httpclient.EncodeOr(q.or)
	}
	if len(q.orders) > 0 {
		params["order"] = strings.Join(q.orders, ",")
	}
	if q.limit > 0 {
		params["limit"] = q.limit
	}
	if q.offset > 0 {
		params["offset"] = q.offset
	}
	if q.onConflict != "" {
		params["on_conflict"] = q.onConflict
	}
	return params
}

func (q *QueryBuilder) headers() map[string]string {
	headers := map[string]string{}
	if q.single {
		headers["Accept"] = "application/vnd.pgrst.object+json"
	}
	prefer := []string{"return=representation"}
	if q.count != "" {
		prefer = append(prefer, "count="+q.count)
	}
	if q.upsert {
		prefer = append(prefer, "resolution=merge-duplicates")
	}
	headers["Prefer"] = strings.Join(prefer, ",")
	return headers
}

func (q *QueryBuilder) request(method string, body any, withSelect bool) httpclient.Request {
	return httpclient.Request{
		Method:  method,
		Path:    q.path(),
		Params:  q.params(withSelect),
		Filters: q.filters,
		Body:    body,
		Headers: q.headers(),
	}
}

// Select runs a SELECT and decodes the rows into T.
func Select[T any](ctx context.Context, q *QueryBuilder) (*model.Envelope[[]T], error) {
	if !q.client.Configured() {
		return nil, ErrNotConfigured
	}
	return httpclient.Do[[]T](ctx, q.client.exec, q.request(http.MethodGet, nil, true))
}

// SelectSingle runs a SELECT expecting exactly one row.
func SelectSingle[T any](ctx context.Context, q *QueryBuilder) (*model.Envelope[T], error) {
	if !q.client.Configured() {
		return nil, ErrNotConfigured
	}
	q.Single()
	return httpclient.Do[T](ctx, q.client.exec, q.request(http.MethodGet, nil, true))
}

// Insert posts rows (a single value or a slice) and returns the stored representation.
func Insert[T any](ctx context.Context, q *QueryBuilder, rows any) (*model.Envelope[[]T], error) {
	if !q.client.Configured() {
		return nil, ErrNotConfigured
	}
	return httpclient.Do[[]T](ctx, q.client.exec, q.request(http.MethodPost, rows, false))
}

// Update patches every row matching the builder's filters.
func Update[T any](ctx context.Context, q *QueryBuilder, patch any) (*model.Envelope[[]T], error) {
	if err := q.requireFilters("update"); err != nil {
		return nil, err
	}
	return httpclient.Do[[]T](ctx, q.client.exec, q.request(http.MethodPatch, patch, false))
}

// Delete removes every row matching the builder's filters.
func Delete[T any](ctx context.Context, q *QueryBuilder) (*model.Envelope[[]T], error) {
	if err := q.requireFilters("delete"); err != nil {
		return nil, err
	}
	return httpclient.Do[[]T](ctx, q.client.exec, q.request(http.MethodDelete, nil, false))
}

func (q *QueryBuilder) requireFilters(op string) error {
	if !q.client.Configured() {
		return ErrNotConfigured
	}
	if len(q.filters) == 0 && len(q.or) == 0 {
		return &httpclient.APIError{
			Message: fmt.Sprintf("refusing to %s %s without a filter", op, q.table),
			Status:  http.StatusBadRequest,
			Code:    "MISSING_FILTER",
		}
	}
	return nil
}

// RPC calls a stored procedure with the given named arguments.
func RPC[T any](ctx context.Context, c *Client, fn string, args any) (*model.Envelope[T], error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	if args == nil {
		args = map[string]any{}
	}
	return httpclient.Post[T](ctx, c.exec, "/rpc/"+fn, args)
}
