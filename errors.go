package taxios

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Error types carried by ClientError.Type.
const (
	ErrorTypeConfiguration = "ConfigurationError"
	ErrorTypeRequest       = "RequestError"
	ErrorTypeInterceptor   = "InterceptorError"
	ErrorTypeTransport     = "TransportError"
	ErrorTypeCanceled      = "CanceledError"
	ErrorTypeTokenExpired  = "TokenExpiredError"
)

// CancelMessage is the fixed reason given to a superseded request.
const CancelMessage = "there is the same request in pending state, the request has been canceled"

var (
	// ErrNotConfigured is returned when a client is used before a Config is supplied.
	ErrNotConfigured = errors.New("taxios: you should configure the client first")

	// ErrSuperseded is the cancellation cause of a request replaced by a newer
	// request with the same fingerprint.
	ErrSuperseded = errors.New("taxios: " + CancelMessage)
)

// ClientError is the error returned by every client call.
type ClientError struct {
	Type        string
	Message     string
	Cause       error
	RequestID   string
	Method      string
	URL         string
	Fingerprint string
	StatusCode  int
	Timestamp   time.Time
	Duration    time.Duration

	// Response is the transport response that produced a TransportError, if any.
	Response *Response
}

// NewTransportError builds the error a Transport returns for a failed status.
func NewTransportError(status int, message string) *ClientError {
	if message == "" {
		message = http.StatusText(status)
	}
	return &ClientError{
		Type:       ErrorTypeTransport,
		Message:    message,
		StatusCode: status,
		Timestamp:  time.Now(),
	}
}

// Error implements error interface.
func (e *ClientError) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := fmt.Sprintf("%s: %s", e.Type, e.Message)
	if e.StatusCode > 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s (%v)", msg, e.Cause)
	}
	if e.RequestID != "" {
		msg = fmt.Sprintf("[%s] %s", e.RequestID, msg)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *ClientError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Is compares error types for errors.Is.
func (e *ClientError) Is(target error) bool {
	if e == nil {
		return false
	}
	if targetErr, ok := target.(*ClientError); ok {
		return e.Type == targetErr.Type
	}
	return false
}

// DebugInfo renders a multi-line string with diagnostic context.
func (e *ClientError) DebugInfo() string {
	if e == nil {
		return "Error: <nil>"
	}
	info := fmt.Sprintf("Error Type: %s\n", e.Type)
	info += fmt.Sprintf("Message: %s\n", e.Message)
	if e.RequestID != "" {
		info += fmt.Sprintf("Request ID: %s\n", e.RequestID)
	}
	if e.Method != "" {
		info += fmt.Sprintf("Method: %s\n", e.Method)
	}
	if e.URL != "" {
		info += fmt.Sprintf("URL: %s\n", e.URL)
	}
	if e.Fingerprint != "" {
		info += fmt.Sprintf("Fingerprint: %s\n", e.Fingerprint)
	}
	if e.StatusCode > 0 {
		info += fmt.Sprintf("Status Code: %d\n", e.StatusCode)
	}
	if !e.Timestamp.IsZero() {
		info += fmt.Sprintf("Timestamp: %s\n", e.Timestamp.Format(time.RFC3339))
	}
	if e.Duration > 0 {
		info += fmt.Sprintf("Duration: %v\n", e.Duration)
	}
	if e.Cause != nil {
		info += fmt.Sprintf("Cause: %v\n", e.Cause)
	}
	return info
}

// IsCanceled reports whether err ended a call through cancellation, either
// because it was superseded or because the caller's context ended.
func IsCanceled(err error) bool {
	return errors.Is(err, &ClientError{Type: ErrorTypeCanceled})
}

// IsSuperseded reports whether err ended a call replaced by a newer one.
func IsSuperseded(err error) bool {
	return errors.Is(err, ErrSuperseded)
}

// IsTransportError reports whether err came from the transport.
func IsTransportError(err error) bool {
	return errors.Is(err, &ClientError{Type: ErrorTypeTransport})
}

// IsConfigurationError reports whether err is a configuration problem.
func IsConfigurationError(err error) bool {
	return errors.Is(err, &ClientError{Type: ErrorTypeConfiguration})
}

// StatusCode extracts the transport status carried by err, or 0.
func StatusCode(err error) int {
	var clientErr *ClientError
	for err != nil {
		if !errors.As(err, &clientErr) {
			return 0
		}
		if clientErr.StatusCode > 0 {
			return clientErr.StatusCode
		}
		err = clientErr.Cause
	}
	return 0
}

// classifyTransportError maps what the transport returned into a ClientError.
// ctx is the dispatch context, whose cause tells a superseded call apart.
func classifyTransportError(ctx context.Context, err error) *ClientError {
	if cause := context.Cause(ctx); cause != nil && errors.Is(cause, ErrSuperseded) {
		return &ClientError{Type: ErrorTypeCanceled, Message: CancelMessage, Cause: ErrSuperseded}
	}

	var clientErr *ClientError
	if errors.As(err, &clientErr) && clientErr.Type == ErrorTypeTransport {
		out := *clientErr
		return &out
	}

	if errors.Is(err, context.Canceled) {
		return &ClientError{Type: ErrorTypeCanceled, Message: "request canceled", Cause: err}
	}

	return &ClientError{Type: ErrorTypeTransport, Message: "transport request failed", Cause: err}
}
