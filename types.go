package taxios

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"
)

// HTTP methods understood by the client.
const (
	MethodGet    = http.MethodGet
	MethodPost   = http.MethodPost
	MethodPut    = http.MethodPut
	MethodPatch  = http.MethodPatch
	MethodDelete = http.MethodDelete
)

// Request describes one logical call. URL, Method and the method-appropriate
// payload (Params for GET, Data otherwise) form its identity.
type Request struct {
	URL        string
	Method     string
	Params     any
	Data       any
	Header     http.Header
	Cacheable  bool
	Cancelable bool

	// Extra carries transport-specific options through untouched.
	Extra map[string]any
}

// Clone returns a copy of r with its own Header and Extra maps.
// Params and Data are shared.
func (r *Request) Clone() *Request {
	if r == nil {
		return nil
	}
	out := *r
	out.Header = r.Header.Clone()
	if r.Extra != nil {
		out.Extra = make(map[string]any, len(r.Extra))
		for k, v := range r.Extra {
			out.Extra[k] = v
		}
	}
	return &out
}

// Response is the result of a call, from the transport or from cache.
type Response struct {
	StatusCode int
	Status     string
	Header     http.Header
	Data       []byte

	// Request is the request as sent to the transport, after request
	// interceptors. Cache hits carry the request that populated the entry.
	Request *Request

	// FromCache is set on responses served without invoking the transport.
	FromCache bool
}

// Clone returns a deep copy of the response body and headers, and a clone of
// the request that produced it.
func (r *Response) Clone() *Response {
	if r == nil {
		return nil
	}
	out := *r
	out.Header = r.Header.Clone()
	out.Request = r.Request.Clone()
	if r.Data != nil {
		out.Data = append([]byte(nil), r.Data...)
	}
	return &out
}

// JSON decodes the response body into v.
func (r *Response) JSON(v any) error {
	return json.Unmarshal(r.Data, v)
}

// String returns the body as a string.
func (r *Response) String() string {
	return string(r.Data)
}

// Transport executes a request. Implementations must abort when ctx is done
// and return the context's error in that case.
type Transport interface {
	Execute(ctx context.Context, req *Request) (*Response, error)
}

// TransportFunc adapts a function to Transport.
type TransportFunc func(ctx context.Context, req *Request) (*Response, error)

// Execute calls f.
func (f TransportFunc) Execute(ctx context.Context, req *Request) (*Response, error) {
	return f(ctx, req)
}

// Middleware wraps the transport call; next continues the chain.
type Middleware func(ctx context.Context, req *Request, next Transport) (*Response, error)

// RequestInterceptor transforms an outgoing request before dispatch.
type RequestInterceptor func(ctx context.Context, req *Request) (*Request, error)

// ResponseInterceptor transforms a response before it reaches the caller.
type ResponseInterceptor func(ctx context.Context, resp *Response) (*Response, error)

// Hooks receives every terminal error produced by the client.
type Hooks interface {
	OnFailed(err error)
}

// TokenRefresher is an optional capability of Hooks. When a call fails with an
// expired-token error the client invokes OnTokenExpired; a nil return re-issues
// the call once, a non-nil error fails it.
type TokenRefresher interface {
	OnTokenExpired(ctx context.Context, err error) error
}

// HooksFunc adapts a function to Hooks.
type HooksFunc func(err error)

// OnFailed calls f.
func (f HooksFunc) OnFailed(err error) {
	f(err)
}

// TokenExpiredCondition classifies an error as an authentication expiry.
type TokenExpiredCondition func(err error) bool

// DefaultTokenExpiredCondition treats HTTP 401 as an expired token.
func DefaultTokenExpiredCondition(err error) bool {
	return StatusCode(err) == http.StatusUnauthorized
}

// Config is the base configuration shared by every call of a client.
type Config struct {
	BaseURL    string
	Capacity   int
	Cacheable  bool
	Cancelable bool
	Header     http.Header
	Timeout    time.Duration

	// Extra is merged into every Request.Extra; per-call values win.
	Extra map[string]any
}

// DefaultCapacity is the cache size used when Config.Capacity is unset.
const DefaultCapacity = 100

// CallOption adjusts a single call. Options are applied after the base
// configuration, so they always win.
type CallOption func(*Request)

// WithParams sets the query parameters; they identify GET requests.
func WithParams(params any) CallOption {
	return func(r *Request) {
		r.Params = params
	}
}

// WithData sets the request body; it identifies non-GET requests.
func WithData(data any) CallOption {
	return func(r *Request) {
		r.Data = data
	}
}

// WithHeader sets a header on the request.
func WithHeader(key, value string) CallOption {
	return func(r *Request) {
		if r.Header == nil {
			r.Header = make(http.Header)
		}
		r.Header.Set(key, value)
	}
}

// WithCacheable overrides Config.Cacheable for one call.
func WithCacheable(enabled bool) CallOption {
	return func(r *Request) {
		r.Cacheable = enabled
	}
}

// WithCancelable overrides Config.Cancelable for one call.
func WithCancelable(enabled bool) CallOption {
	return func(r *Request) {
		r.Cancelable = enabled
	}
}

// WithExtra sets a transport-specific option for one call.
func WithExtra(key string, value any) CallOption {
	return func(r *Request) {
		if r.Extra == nil {
			r.Extra = make(map[string]any)
		}
		r.Extra[key] = value
	}
}

// DebugConfig gates debug logging.
type DebugConfig struct {
	Enabled      bool
	LogRequests  bool
	LogCache     bool
	LogDedup     bool
	RequestIDGen func() string
}

// DefaultDebugConfig returns a disabled config with every category on.
func DefaultDebugConfig() *DebugConfig {
	return &DebugConfig{
		Enabled:      false,
		LogRequests:  true,
		LogCache:     true,
		LogDedup:     true,
		RequestIDGen: newRequestIDGenerator(),
	}
}

// Option configures a Client.
type Option func(*Client)

func normalizeMethod(method string) string {
	method = strings.TrimSpace(method)
	if method == "" {
		return MethodGet
	}
	return strings.ToUpper(method)
}
