package taxios

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"go.uber.org/multierr"
)

// WithConfig supplies the base configuration. A client without one rejects
// every call with a ConfigurationError.
func WithConfig(cfg Config) Option {
	return func(c *Client) {
		copied := cfg
		copied.Header = cfg.Header.Clone()
		if cfg.Extra != nil {
			copied.Extra = make(map[string]any, len(cfg.Extra))
			for k, v := range cfg.Extra {
				copied.Extra[k] = v
			}
		}
		c.config = &copied
	}
}

// WithTransport sets the transport used to dispatch requests.
func WithTransport(transport Transport) Option {
	return func(c *Client) {
		c.transport = transport
		c.transportSet = true
	}
}

// WithHTTPClient sets the net/http client behind the default HTTPTransport.
// It is ignored when WithTransport is used.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithHooks sets the failure hooks. If hooks also implements TokenRefresher
// it is consulted on expired-token errors.
func WithHooks(hooks Hooks) Option {
	return func(c *Client) {
		c.hooks = hooks
	}
}

// WithTokenExpiredCondition overrides how expired-token errors are detected.
func WithTokenExpiredCondition(fn TokenExpiredCondition) Option {
	return func(c *Client) {
		c.tokenExpired = fn
	}
}

// WithMiddleware adds transport middleware; the first one added is outermost.
func WithMiddleware(middleware ...Middleware) Option {
	return func(c *Client) {
		c.middleware = append(c.middleware, middleware...)
	}
}

// WithRequestInterceptor appends request interceptors.
func WithRequestInterceptor(fns ...RequestInterceptor) Option {
	return func(c *Client) {
		c.interceptors.AddRequest(fns...)
	}
}

// WithResponseInterceptor appends response interceptors.
func WithResponseInterceptor(fns ...ResponseInterceptor) Option {
	return func(c *Client) {
		c.interceptors.AddResponse(fns...)
	}
}

// WithMetrics enables Prometheus metrics collection
func WithMetrics() Option {
	return func(c *Client) {
		c.metrics = NewMetricsCollector()
	}
}

// WithMetricsCollector sets a custom metrics collector
func WithMetricsCollector(collector *MetricsCollector) Option {
	return func(c *Client) {
		c.metrics = collector
	}
}

// WithDebug enables debug logging with default configuration
func WithDebug() Option {
	return func(c *Client) {
		if c.debug == nil {
			c.debug = DefaultDebugConfig()
		}
		c.debug.Enabled = true
	}
}

// WithDebugConfig sets custom debug configuration
func WithDebugConfig(config *DebugConfig) Option {
	return func(c *Client) {
		c.debug = config
	}
}

// WithLogger sets a custom logger for debug output
func WithLogger(logger Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithSimpleLogger enables debug logging with a zap development logger
func WithSimpleLogger() Option {
	return func(c *Client) {
		if c.debug == nil {
			c.debug = DefaultDebugConfig()
		}
		c.debug.Enabled = true
		c.logger = NewSimpleLogger()
	}
}

// WithRequestIDGenerator sets a custom function for generating request IDs
func WithRequestIDGenerator(gen func() string) Option {
	return func(c *Client) {
		if c.debug == nil {
			c.debug = DefaultDebugConfig()
		}
		c.debug.RequestIDGen = gen
	}
}

// ValidateConfiguration checks the client configuration and returns a
// ConfigurationError listing every problem found.
func (c *Client) ValidateConfiguration() error {
	var err error

	err = multierr.Append(err, c.validateConfig())
	err = multierr.Append(err, c.validateTransport())
	err = multierr.Append(err, c.validateHooks())
	err = multierr.Append(err, c.validateDebugConfig())
	err = multierr.Append(err, c.validateMiddlewareConfig())

	if err != nil {
		return &ClientError{
			Type:    ErrorTypeConfiguration,
			Message: "configuration validation failed",
			Cause:   err,
		}
	}
	return nil
}

func (c *Client) validateConfig() error {
	if c.config == nil {
		return ErrNotConfigured
	}

	var err error
	if c.config.Timeout < 0 {
		err = multierr.Append(err, errors.New("timeout must not be negative"))
	}
	if c.config.BaseURL != "" {
		if _, parseErr := url.Parse(c.config.BaseURL); parseErr != nil {
			err = multierr.Append(err, fmt.Errorf("invalid base URL: %w", parseErr))
		}
	}
	return err
}

func (c *Client) validateTransport() error {
	if c.transportSet && c.transport == nil {
		return errors.New("transport cannot be nil")
	}
	return nil
}

func (c *Client) validateHooks() error {
	var err error
	if c.hooks == nil {
		err = multierr.Append(err, errors.New("hooks cannot be nil"))
	}
	if c.tokenExpired == nil {
		err = multierr.Append(err, errors.New("token expired condition cannot be nil"))
	}
	return err
}

func (c *Client) validateDebugConfig() error {
	var err error
	if c.debug != nil && c.debug.Enabled {
		if c.debug.RequestIDGen == nil {
			err = multierr.Append(err, errors.New("debug RequestIDGen must be set when debug is enabled"))
		}
		if c.logger == nil {
			err = multierr.Append(err, errors.New("logger must be set when debug is enabled"))
		}
	}
	return err
}

func (c *Client) validateMiddlewareConfig() error {
	var err error
	for i, middleware := range c.middleware {
		if middleware == nil {
			err = multierr.Append(err, fmt.Errorf("middleware[%d] cannot be nil", i))
		}
	}
	return err
}
