package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fakhrymubarak/masjid-data-gateway/internal/metrics"
	"github.com/fakhrymubarak/masjid-data-gateway/internal/model"
)

// DefaultTimeout is the per-attempt deadline used when neither the client nor the call sets one.
const DefaultTimeout = 10 * time.Second

const (
	headerContentType = "Content-Type"
	headerAccept      = "Accept"
	headerAuth        = "Authorization"
	headerRequestID   = "X-Request-ID"
	contentTypeJSON   = "application/json"
)

// Config configures a Client. Zero values fall back to the package defaults.
type Config struct {
	BaseURL string
	// Headers are merged over Content-Type and Accept set to application/json.
	Headers    map[string]string
	Timeout    time.Duration
	Retry      *RetryPolicy
	HTTPClient *http.Client
	// Limiter, when set, is awaited before every attempt.
	Limiter *rate.Limiter
	Logger  *zap.SugaredLogger
	// Target labels outbound metrics, e.g. "supabase" or "site-api".
	Target string
}

// Client executes HTTP calls against a base URL and returns uniform envelopes.
// It is safe for concurrent use; the base URL and default headers may be
// changed while calls are in flight and affect only calls started afterwards.
type Client struct {
	mu      sync.RWMutex
	baseURL string
	headers map[string]string

	timeout    time.Duration
	retry      RetryPolicy
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.SugaredLogger
	target     string
}

// New creates a Client from cfg.
func New(cfg Config) *Client {
	headers := map[string]string{
		headerContentType: contentTypeJSON,
		headerAccept:      contentTypeJSON,
	}
	for k, v := range cfg.Headers {
		headers[http.CanonicalHeaderKey(k)] = v
	}

	c := &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		headers:    headers,
		timeout:    cfg.Timeout,
		retry:      DefaultRetryPolicy(),
		httpClient: cfg.HTTPClient,
		limiter:    cfg.Limiter,
		logger:     cfg.Logger,
		target:     cfg.Target,
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	if cfg.Retry != nil {
		c.retry = *cfg.Retry
	}
	if c.httpClient == nil {
		c.httpClient = http.DefaultClient
	}
	return c
}

// SetAuthToken attaches "Authorization: Bearer <token>" to subsequent calls.
func (c *Client) SetAuthToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.headers[headerAuth] = "Bearer " + token
}

func (c *Client) RemoveAuthToken() {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.headers, headerAuth)
}

func (c *Client) SetBaseURL(baseURL string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.baseURL = strings.TrimRight(baseURL, "/")
}

// SetDefaultHeaders merges headers into the defaults. An empty value removes the header.
func (c *Client) SetDefaultHeaders(headers map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, v := range headers {
		k = http.CanonicalHeaderKey(k)
		if v == "" {
			delete(c.headers, k)
			continue
		}
		c.headers[k] = v
	}
}

func (c *Client) BaseURL() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.baseURL
}

// Headers returns a copy of the current default headers.
func (c *Client) Headers() map[string]string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]string, len(c.headers))
	for k, v := range c.headers {
		out[k] = v
	}
	return out
}

// Retry returns the client's default retry policy.
func (c *Client) Retry() RetryPolicy {
	return c.retry
}

func (c *Client) snapshot() (string, map[string]string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	headers := make(map[string]string, len(c.headers))
	for k, v := range c.headers {
		headers[k] = v
	}
	return c.baseURL, headers
}

// rawResponse is a successful 2xx reply with its body fully read.
type rawResponse struct {
	status      int
	contentType string
	body        []byte
	header      http.Header
}

type preparedRequest struct {
	method      string
	url         string
	header      http.Header
	body        []byte
	hasBody     bool
	timeout     time.Duration
	retry       RetryPolicy
	requestID   string
	description string
}

func (c *Client) prepare(req Request) (*preparedRequest, error) {
	method := strings.ToUpper(req.Method)
	if method == "" {
		method = http.MethodGet
	}

	baseURL, headers := c.snapshot()
	if req.BaseURL != "" {
		baseURL = strings.TrimRight(req.BaseURL, "/")
	}
	for k, v := range req.Headers {
		headers[http.CanonicalHeaderKey(k)] = v
	}

	fullURL := joinURL(baseURL, req.Path)
	if q := buildQuery(req.Params, req.Filters); q != "" {
		sep := "?"
		if strings.Contains(fullURL, "?") {
			sep = "&"
		}
		fullURL += sep + q
	}

	p := &preparedRequest{
		method:      method,
		url:         fullURL,
		timeout:     c.timeout,
		retry:       c.retry,
		requestID:   uuid.NewString(),
		description: method + " " + fullURL,
	}
	if req.Timeout > 0 {
		p.timeout = req.Timeout
	}
	if req.Retry != nil {
		p.retry = *req.Retry
	}

	if req.Body != nil && allowsBody(method) {
		p.hasBody = true
		switch body := req.Body.(type) {
		case io.Reader:
			b, err := io.ReadAll(body)
			if err != nil {
				return nil, fmt.Errorf("read request body: %w", err)
			}
			p.body = b
			delete(headers, headerContentType)
			if req.ContentType != "" {
				headers[headerContentType] = req.ContentType
			}
		case []byte:
			p.body = body
		default:
			b, err := json.Marshal(body)
			if err != nil {
				return nil, fmt.Errorf("encode request body: %w", err)
			}
			p.body = b
		}
	}

	p.header = make(http.Header, len(headers)+1)
	for k, v := range headers {
		p.header.Set(k, v)
	}
	p.header.Set(headerRequestID, p.requestID)
	return p, nil
}

func allowsBody(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

func joinURL(baseURL, path string) string {
	if path == "" {
		return baseURL
	}
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if baseURL == "" {
		return path
	}
	return baseURL + "/" + strings.TrimLeft(path, "/")
}

// execute runs req under its retry policy and returns the first successful reply.
// Every failure is normalized and logged once before it is returned.
func (c *Client) execute(ctx context.Context, req Request) (*rawResponse, *preparedRequest, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	p, err := c.prepare(req)
	if err != nil {
		apiErr := Normalize(err)
		logError(c.logger, apiErr, req.Method+" "+req.Path, "")
		return nil, nil, apiErr
	}

	var resp *rawResponse
	err = p.retry.Run(ctx, func(ctx context.Context, attempt int) error {
		r, err := c.attempt(ctx, p)
		if err != nil {
			return err
		}
		resp = r
		return nil
	}, func(attempt int, wait time.Duration, apiErr *APIError) {
		metrics.RecordRetry(c.target)
		if c.logger != nil {
			c.logger.Warnw("retrying api request",
				"context", p.description,
				"attempt", attempt,
				"wait", wait.String(),
				"status", apiErr.Status,
				"request_id", p.requestID,
			)
		}
	})
	if err != nil {
		apiErr := Normalize(err)
		logError(c.logger, apiErr, p.description, p.requestID)
		return nil, p, apiErr
	}
	return resp, p, nil
}

// attempt performs a single round trip bounded by the per-attempt deadline.
func (c *Client) attempt(ctx context.Context, p *preparedRequest) (*rawResponse, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	attemptCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	var body io.Reader
	if p.hasBody {
		body = bytes.NewReader(p.body)
	}
	httpReq, err := http.NewRequestWithContext(attemptCtx, p.method, p.url, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header = p.header.Clone()

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		status := StatusNetwork
		if isCancellation(err) {
			status = StatusTimeout
		}
		metrics.RecordUpstreamAttempt(c.target, p.method, status, time.Since(start))
		return nil, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	metrics.RecordUpstreamAttempt(c.target, p.method, resp.StatusCode, time.Since(start))
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &statusError{
			Status:     resp.StatusCode,
			StatusText: http.StatusText(resp.StatusCode),
			Body:       payload,
		}
	}
	return &rawResponse{
		status:      resp.StatusCode,
		contentType: resp.Header.Get(headerContentType),
		body:        payload,
		header:      resp.Header,
	}, nil
}

// MsgSuccess is the Message of every envelope Do returns.
const MsgSuccess = "Request successful"

// Do executes req and decodes the reply into an envelope of T.
//
// A 204 reply, or any empty body, yields the zero value of T. JSON content
// types are unmarshalled; other bodies are delivered as text when T is a
// string, byte slice, json.RawMessage or any.
func Do[T any](ctx context.Context, c *Client, req Request) (*model.Envelope[T], error) {
	resp, p, err := c.execute(ctx, req)
	if err != nil {
		return nil, err
	}

	data, err := decodeBody[T](resp)
	if err != nil {
		apiErr := Normalize(fmt.Errorf("decode response: %w", err))
		logError(c.logger, apiErr, p.description, p.requestID)
		return nil, apiErr
	}

	return &model.Envelope[T]{
		Data:    data,
		Success: true,
		Status:  resp.status,
		Message: MsgSuccess,
	}, nil
}

func decodeBody[T any](resp *rawResponse) (T, error) {
	var out T
	if resp.status == http.StatusNoContent || len(bytes.TrimSpace(resp.body)) == 0 {
		return out, nil
	}

	if isJSON(resp.contentType) {
		err := json.Unmarshal(resp.body, &out)
		return out, err
	}

	switch target := any(&out).(type) {
	case *string:
		*target = string(resp.body)
	case *[]byte:
		*target = resp.body
	case *json.RawMessage:
		*target = json.RawMessage(resp.body)
	case *any:
		*target = string(resp.body)
	default:
		if err := json.Unmarshal(resp.body, &out); err != nil {
			return out, fmt.Errorf("unexpected %q body for %T: %w", resp.contentType, out, err)
		}
	}
	return out, nil
}

// isJSON matches application/json and structured suffixes such as application/vnd.pgrst.object+json.
func isJSON(contentType string) bool {
	ct := strings.ToLower(contentType)
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	ct = strings.TrimSpace(ct)
	return ct == contentTypeJSON || strings.HasSuffix(ct, "+json")
}
