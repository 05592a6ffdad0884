package taxios

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/sivanzheng/taxios/internal/lru"
	"github.com/sivanzheng/taxios/internal/singleflight"
)

const (
	cacheName       = "default"
	tokenRefreshKey = "token-refresh"
)

// Client coordinates requests in front of a Transport: it serves cacheable
// calls from an LRU cache, supersedes duplicate in-flight cancelable calls and
// runs the interceptor chains around every call. It is safe for concurrent use.
type Client struct {
	config       *Config
	transport    Transport
	transportSet bool
	httpClient   *http.Client
	middleware   []Middleware
	interceptors *Interceptors
	hooks        Hooks
	tokenExpired TokenExpiredCondition
	refresh      *singleflight.Group[struct{}]

	mu    sync.Mutex
	cache *lru.Cache[*Response]

	cancelers *CancelerRegistry
	metrics   *MetricsCollector
	debug     *DebugConfig
	logger    Logger
	stats     counters

	validationError error
}

// New constructs a Client using the provided functional options. Validation
// problems are recorded and returned from every call; see ValidationError.
func New(options ...Option) *Client {
	client := &Client{
		httpClient:   &http.Client{},
		middleware:   []Middleware{},
		interceptors: &Interceptors{},
		tokenExpired: DefaultTokenExpiredCondition,
		refresh:      singleflight.New[struct{}](),
		cancelers:    NewCancelerRegistry(),
		metrics:      nil,
		debug:        DefaultDebugConfig(),
		logger:       nopLogger{},
	}
	client.hooks = logHooks{client: client}

	for _, option := range options {
		option(client)
	}

	if client.config != nil {
		capacity := client.config.Capacity
		if capacity <= 0 {
			capacity = DefaultCapacity
		}
		client.cache = lru.NewWithEvict[*Response](capacity, func(string, *Response) {
			client.metrics.RecordCacheEviction(cacheName)
		})

		if !client.transportSet {
			client.transport = NewHTTPTransport(client.timeoutClient())
		}
	}

	if err := client.ValidateConfiguration(); err != nil {
		client.validationError = err
	}

	return client
}

// Get performs a GET request. Params set with WithParams identify the call.
func (c *Client) Get(ctx context.Context, url string, opts ...CallOption) (*Response, error) {
	return c.Do(ctx, c.newRequest(MethodGet, url, nil, opts))
}

// Post performs a POST request with data as body.
func (c *Client) Post(ctx context.Context, url string, data any, opts ...CallOption) (*Response, error) {
	return c.Do(ctx, c.newRequest(MethodPost, url, data, opts))
}

// Put performs a PUT request with data as body.
func (c *Client) Put(ctx context.Context, url string, data any, opts ...CallOption) (*Response, error) {
	return c.Do(ctx, c.newRequest(MethodPut, url, data, opts))
}

// Patch performs a PATCH request with data as body.
func (c *Client) Patch(ctx context.Context, url string, data any, opts ...CallOption) (*Response, error) {
	return c.Do(ctx, c.newRequest(MethodPatch, url, data, opts))
}

// Delete performs a DELETE request.
func (c *Client) Delete(ctx context.Context, url string, opts ...CallOption) (*Response, error) {
	return c.Do(ctx, c.newRequest(MethodDelete, url, nil, opts))
}

// GetJSON performs a GET request and decodes the body into out.
func (c *Client) GetJSON(ctx context.Context, url string, out any, opts ...CallOption) error {
	resp, err := c.Get(ctx, url, opts...)
	if err != nil {
		return err
	}
	return resp.JSON(out)
}

// PostJSON performs a POST request and decodes the body into out.
func (c *Client) PostJSON(ctx context.Context, url string, data, out any, opts ...CallOption) error {
	resp, err := c.Post(ctx, url, data, opts...)
	if err != nil {
		return err
	}
	return resp.JSON(out)
}

// Do executes a prepared request. The request is used as is: the base
// configuration is not merged in.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	if c.validationError != nil {
		err := *c.validationError.(*ClientError)
		if req != nil {
			err.Method = normalizeMethod(req.Method)
			err.URL = req.URL
		}
		err.Timestamp = time.Now()
		return nil, c.fail(&err)
	}
	if req == nil {
		return nil, c.fail(&ClientError{Type: ErrorTypeRequest, Message: "request cannot be nil", Timestamp: time.Now()})
	}
	return c.do(ctx, req.Clone())
}

// AddRequestInterceptor appends request interceptors.
func (c *Client) AddRequestInterceptor(fns ...RequestInterceptor) {
	c.interceptors.AddRequest(fns...)
}

// AddResponseInterceptor appends response interceptors.
func (c *Client) AddResponseInterceptor(fns ...ResponseInterceptor) {
	c.interceptors.AddResponse(fns...)
}

// Interceptors exposes the client's interceptor chains.
func (c *Client) Interceptors() *Interceptors {
	return c.interceptors
}

// Config returns a copy of the base configuration, or a ConfigurationError
// if none was supplied.
func (c *Client) Config() (Config, error) {
	if c.config == nil {
		return Config{}, &ClientError{
			Type:      ErrorTypeConfiguration,
			Message:   "configuration accessed before it was supplied",
			Cause:     ErrNotConfigured,
			Timestamp: time.Now(),
		}
	}
	cfg := *c.config
	cfg.Header = c.config.Header.Clone()
	return cfg, nil
}

// CacheLen returns the number of cached responses.
func (c *Client) CacheLen() int {
	if c.cache == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cache.Len()
}

// ClearCache drops every cached response.
func (c *Client) ClearCache() {
	if c.cache == nil {
		return
	}
	c.mu.Lock()
	c.cache.Purge()
	c.mu.Unlock()
	c.metrics.RecordCacheSize(cacheName, 0)
}

// PendingLen returns the number of in-flight cancelable requests.
func (c *Client) PendingLen() int {
	return c.cancelers.Len()
}

// Stats returns a snapshot of the client counters.
func (c *Client) Stats() Stats {
	return c.stats.snapshot()
}

// IsValid reports whether configuration validation passed at construction.
func (c *Client) IsValid() bool {
	return c.validationError == nil
}

// ValidationError returns the configuration validation error, if any.
func (c *Client) ValidationError() error {
	return c.validationError
}

func (c *Client) newRequest(method, rawURL string, data any, opts []CallOption) *Request {
	req := &Request{
		URL:    rawURL,
		Method: method,
		Data:   data,
	}
	if c.config != nil {
		req.URL = combineURL(c.config.BaseURL, rawURL)
		req.Cacheable = c.config.Cacheable
		req.Cancelable = c.config.Cancelable
		req.Header = c.config.Header.Clone()
		if len(c.config.Extra) > 0 {
			req.Extra = make(map[string]any, len(c.config.Extra))
			for k, v := range c.config.Extra {
				req.Extra[k] = v
			}
		}
	}
	for _, opt := range opts {
		if opt != nil {
			opt(req)
		}
	}
	return req
}

func (c *Client) do(ctx context.Context, req *Request) (*Response, error) {
	start := time.Now()
	req.Method = normalizeMethod(req.Method)
	endpoint := getEndpointFromURL(req.URL)
	requestID := c.nextRequestID()

	c.stats.requests.Inc()
	c.metrics.RecordRequestStart(req.Method, endpoint)
	defer c.metrics.RecordRequestEnd(req.Method, endpoint)

	c.debugLog(c.debug != nil && c.debug.LogRequests, "Starting request",
		"requestID", requestID, "method", req.Method, "url", req.URL,
		"cacheable", req.Cacheable, "cancelable", req.Cancelable)

	if err := bufferBody(req); err != nil {
		cerr := &ClientError{Type: ErrorTypeRequest, Message: "cannot read request body", Cause: err}
		c.annotate(cerr, req, "", requestID, start)
		c.metrics.RecordRequest(req.Method, endpoint, 0, time.Since(start))
		return nil, c.fail(cerr)
	}

	fingerprint, err := Fingerprint(req)
	if err != nil {
		cerr := &ClientError{Type: ErrorTypeRequest, Message: "cannot fingerprint request", Cause: err}
		c.annotate(cerr, req, "", requestID, start)
		c.metrics.RecordRequest(req.Method, endpoint, 0, time.Since(start))
		return nil, c.fail(cerr)
	}

	resp, cerr := c.roundTrip(ctx, req, fingerprint, requestID, endpoint)

	statusCode := 0
	if resp != nil {
		statusCode = resp.StatusCode
	} else if cerr != nil {
		statusCode = cerr.StatusCode
	}
	c.metrics.RecordRequest(req.Method, endpoint, statusCode, time.Since(start))

	if cerr != nil {
		c.annotate(cerr, req, fingerprint, requestID, start)
		return nil, c.fail(cerr)
	}
	return resp, nil
}

// roundTrip runs the state machine of one call after fingerprinting:
// cache check, dispatch, and at most one re-issue after a token refresh.
func (c *Client) roundTrip(ctx context.Context, req *Request, fingerprint, requestID, endpoint string) (*Response, *ClientError) {
	if req.Cacheable {
		if cached, ok := c.cacheGet(fingerprint); ok {
			c.stats.cacheHits.Inc()
			c.metrics.RecordCacheHit(req.Method, endpoint)
			c.debugLog(c.debug != nil && c.debug.LogCache, "Cache hit", "requestID", requestID, "fingerprint", fingerprint)

			cached.FromCache = true
			return c.runResponseInterceptors(ctx, cached)
		}
		c.stats.cacheMisses.Inc()
		c.metrics.RecordCacheMiss(req.Method, endpoint)
		c.debugLog(c.debug != nil && c.debug.LogCache, "Cache miss", "requestID", requestID, "fingerprint", fingerprint)
	}

	resp, cerr := c.dispatch(ctx, req, fingerprint, requestID, endpoint)
	if cerr != nil && cerr.Type == ErrorTypeTransport && c.tokenExpired(cerr) {
		if refresher, ok := c.hooks.(TokenRefresher); ok {
			if refreshErr := c.refreshToken(ctx, refresher, cerr); refreshErr != nil {
				return nil, refreshErr
			}
			c.debugLog(c.debug != nil && c.debug.LogRequests, "Re-issuing request after token refresh", "requestID", requestID)
			resp, cerr = c.dispatch(ctx, req, fingerprint, requestID, endpoint)
		}
	}
	if cerr != nil {
		return nil, cerr
	}

	if req.Cacheable {
		c.cacheSet(fingerprint, resp)
		c.debugLog(c.debug != nil && c.debug.LogCache, "Response cached", "requestID", requestID, "fingerprint", fingerprint)
	}

	return c.runResponseInterceptors(ctx, resp)
}

// dispatch supersedes any pending equivalent request when req is cancelable,
// runs the request interceptors and calls the transport.
func (c *Client) dispatch(ctx context.Context, req *Request, fingerprint, requestID, endpoint string) (*Response, *ClientError) {
	dispatchCtx := ctx
	if req.Cancelable {
		var cancel context.CancelCauseFunc
		dispatchCtx, cancel = context.WithCancelCause(ctx)
		token, superseded := c.cancelers.Replace(fingerprint, CancelFunc(cancel))
		defer func() {
			c.cancelers.Release(fingerprint, token)
			cancel(nil)
		}()

		if superseded {
			c.stats.superseded.Inc()
			c.metrics.RecordSuperseded(req.Method, endpoint)
			c.debugLog(c.debug != nil && c.debug.LogDedup, "Superseded pending request", "requestID", requestID, "fingerprint", fingerprint)
		}
	}

	outgoing, err := c.interceptors.RunRequest(dispatchCtx, req.Clone())
	if err != nil {
		return nil, &ClientError{Type: ErrorTypeInterceptor, Message: "request interceptor failed", Cause: err}
	}

	resp, err := c.execute(dispatchCtx, outgoing)
	if err != nil {
		return nil, classifyTransportError(dispatchCtx, err)
	}
	if resp == nil {
		return nil, &ClientError{Type: ErrorTypeTransport, Message: "transport returned no response"}
	}

	resp.Request = outgoing
	return resp, nil
}

func (c *Client) execute(ctx context.Context, req *Request) (*Response, error) {
	if len(c.middleware) == 0 {
		return c.transport.Execute(ctx, req)
	}

	current := c.transport

	for i := len(c.middleware) - 1; i >= 0; i-- {
		middleware := c.middleware[i]
		next := current
		current = TransportFunc(func(ctx context.Context, r *Request) (*Response, error) {
			return middleware(ctx, r, next)
		})
	}

	return current.Execute(ctx, req)
}

func (c *Client) runResponseInterceptors(ctx context.Context, resp *Response) (*Response, *ClientError) {
	out, err := c.interceptors.RunResponse(ctx, resp)
	if err != nil {
		return nil, &ClientError{Type: ErrorTypeInterceptor, Message: "response interceptor failed", Cause: err}
	}
	return out, nil
}

// refreshToken hands an expired-token error to the refresher. Concurrent
// expiries share one refresher invocation.
func (c *Client) refreshToken(ctx context.Context, refresher TokenRefresher, cause *ClientError) *ClientError {
	_, err, shared := c.refresh.Do(ctx, tokenRefreshKey, func() (struct{}, error) {
		return struct{}{}, refresher.OnTokenExpired(ctx, cause)
	})

	if !shared {
		c.stats.tokenRefreshes.Inc()
	}
	if err != nil {
		c.metrics.RecordTokenRefresh("failure")
		return &ClientError{
			Type:       ErrorTypeTokenExpired,
			Message:    "token refresh failed",
			Cause:      errors.Join(err, cause),
			StatusCode: cause.StatusCode,
			Response:   cause.Response,
		}
	}
	c.metrics.RecordTokenRefresh("success")
	return nil
}

// bufferBody replaces a reader body with its bytes so that the fingerprint
// covers the content and a re-issued request sends the same body.
func bufferBody(req *Request) error {
	reader, ok := req.Data.(io.Reader)
	if !ok {
		return nil
	}
	data, err := io.ReadAll(reader)
	if closer, ok := reader.(io.Closer); ok {
		_ = closer.Close()
	}
	if err != nil {
		return err
	}
	req.Data = data
	return nil
}

func (c *Client) cacheGet(fingerprint string) (*Response, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	resp, ok := c.cache.Get(fingerprint)
	if !ok {
		return nil, false
	}
	return resp.Clone(), true
}

func (c *Client) cacheSet(fingerprint string, resp *Response) {
	c.mu.Lock()
	c.cache.Set(fingerprint, resp.Clone())
	size := c.cache.Len()
	c.mu.Unlock()

	c.metrics.RecordCacheSize(cacheName, size)
}

// fail routes a terminal error through the failure hook.
func (c *Client) fail(err *ClientError) error {
	c.stats.failures.Inc()
	c.metrics.RecordError(err.Type, err.Method, getEndpointFromURL(err.URL))
	c.debugLog(true, "Request failed", "requestID", err.RequestID, "type", err.Type, "error", err.Error())
	if c.hooks != nil {
		c.hooks.OnFailed(err)
	}
	return err
}

func (c *Client) annotate(err *ClientError, req *Request, fingerprint, requestID string, start time.Time) {
	err.Method = req.Method
	err.URL = req.URL
	err.Fingerprint = fingerprint
	err.RequestID = requestID
	err.Timestamp = time.Now()
	err.Duration = time.Since(start)
}

func (c *Client) nextRequestID() string {
	if c.debug != nil && c.debug.RequestIDGen != nil {
		return c.debug.RequestIDGen()
	}
	return ""
}

func (c *Client) debugLog(category bool, msg string, keysAndValues ...any) {
	if c.debug == nil || !c.debug.Enabled || !category || c.logger == nil {
		return
	}
	c.logger.Debug(msg, keysAndValues...)
}

func (c *Client) timeoutClient() *http.Client {
	hc := c.httpClient
	if hc == nil {
		hc = &http.Client{}
	}
	if c.config.Timeout > 0 {
		copied := *hc
		copied.Timeout = c.config.Timeout
		hc = &copied
	}
	return hc
}

// logHooks is the failure hook used when none is supplied.
type logHooks struct {
	client *Client
}

func (h logHooks) OnFailed(err error) {
	if h.client.logger != nil {
		h.client.logger.Warn("Request failed", "error", err)
	}
}

// combineURL joins a relative URL onto base. Absolute URLs are returned as is.
func combineURL(base, rawURL string) string {
	if base == "" {
		return rawURL
	}
	if u, err := url.Parse(rawURL); err == nil && u.IsAbs() {
		return rawURL
	}
	if rawURL == "" {
		return base
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(rawURL, "/")
}

func getEndpointFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || rawURL == "" {
		return "unknown"
	}

	var builder strings.Builder
	builder.WriteString(u.Host)

	if u.Path != "" && u.Path != "/" {
		builder.WriteString(u.Path)
	} else {
		builder.WriteByte('/')
	}

	return builder.String()
}
