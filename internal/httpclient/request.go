package httpclient

import (
	"context"
	"net/http"
	"time"

	"github.com/fakhrymubarak/masjid-data-gateway/internal/model"
)

// Request describes one logical call. Path is joined to the client's base
// URL unless BaseURL overrides it or Path is already absolute.
type Request struct {
	Method  string
	Path    string
	BaseURL string
	// Params are plain query parameters. Slice values repeat the key.
	Params  map[string]any
	Filters Filters
	// Body is JSON-encoded unless it is an io.Reader or []byte. Reader bodies
	// drop the default Content-Type; set ContentType to supply one, e.g. a
	// multipart boundary.
	Body        any
	ContentType string
	Headers     map[string]string
	Timeout     time.Duration
	Retry       *RetryPolicy
}

// Option customizes a Request built by the verb helpers.
type Option func(*Request)

func WithParams(params map[string]any) Option {
	return func(r *Request) {
		if r.Params == nil {
			r.Params = make(map[string]any, len(params))
		}
		for k, v := range params {
			r.Params[k] = v
		}
	}
}

func WithFilters(filters Filters) Option {
	return func(r *Request) {
		r.Filters = r.Filters.Merge(filters)
	}
}

func WithHeaders(headers map[string]string) Option {
	return func(r *Request) {
		if r.Headers == nil {
			r.Headers = make(map[string]string, len(headers))
		}
		for k, v := range headers {
			r.Headers[k] = v
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(r *Request) { r.Timeout = d }
}

func WithRetry(p RetryPolicy) Option {
	return func(r *Request) { r.Retry = &p }
}

func WithBaseURL(baseURL string) Option {
	return func(r *Request) { r.BaseURL = baseURL }
}

// WithContentType sets the content type sent with an io.Reader body.
func WithContentType(contentType string) Option {
	return func(r *Request) { r.ContentType = contentType }
}

func newRequest(method, path string, body any, opts []Option) Request {
	req := Request{Method: method, Path: path, Body: body}
	for _, opt := range opts {
		opt(&req)
	}
	return req
}

func Get[T any](ctx context.Context, c *Client, path string, opts ...Option) (*model.Envelope[T], error) {
	return Do[T](ctx, c, newRequest(http.MethodGet, path, nil, opts))
}

func Post[T any](ctx context.Context, c *Client, path string, body any, opts ...Option) (*model.Envelope[T], error) {
	return Do[T](ctx, c, newRequest(http.MethodPost, path, body, opts))
}

func Put[T any](ctx context.Context, c *Client, path string, body any, opts ...Option) (*model.Envelope[T], error) {
	return Do[T](ctx, c, newRequest(http.MethodPut, path, body, opts))
}

func Patch[T any](ctx context.Context, c *Client, path string, body any, opts ...Option) (*model.Envelope[T], error) {
	return Do[T](ctx, c, newRequest(http.MethodPatch, path, body, opts))
}

func Delete[T any](ctx context.Context, c *Client, path string, opts ...Option) (*model.Envelope[T], error) {
	return Do[T](ctx, c, newRequest(http.MethodDelete, path, nil, opts))
}
