package taxios

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// DefaultMaxBodySize bounds the response body HTTPTransport accepts. Larger
// bodies fail with a TransportError.
const DefaultMaxBodySize = 10 * 1024 * 1024

// HTTPTransport is the default Transport, built on net/http. Params are
// encoded into the query string, Data into the body: []byte and io.Reader
// are sent raw, strings as text, url.Values as a form and anything else as
// JSON. Non-2xx responses fail with a TransportError.
type HTTPTransport struct {
	client      *http.Client
	maxBodySize int64
}

// NewHTTPTransport wraps client; a nil client uses http.DefaultClient.
func NewHTTPTransport(client *http.Client) *HTTPTransport {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPTransport{client: client, maxBodySize: DefaultMaxBodySize}
}

// WithMaxBodySize returns a copy of t reading at most n body bytes.
func (t *HTTPTransport) WithMaxBodySize(n int64) *HTTPTransport {
	copied := *t
	copied.maxBodySize = n
	return &copied
}

// Execute implements Transport.
func (t *HTTPTransport) Execute(ctx context.Context, req *Request) (*Response, error) {
	httpReq, err := t.buildRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	httpResp, err := t.client.Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, err
	}
	defer httpResp.Body.Close()

	data, err := t.readBody(httpResp)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		var clientErr *ClientError
		if errors.As(err, &clientErr) {
			return nil, clientErr
		}
		return nil, fmt.Errorf("read response body: %w", err)
	}

	resp := &Response{
		StatusCode: httpResp.StatusCode,
		Status:     httpResp.Status,
		Header:     httpResp.Header,
		Data:       data,
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		transportErr := NewTransportError(httpResp.StatusCode, statusMessage(httpResp))
		transportErr.Response = resp
		return nil, transportErr
	}

	return resp, nil
}

func (t *HTTPTransport) buildRequest(ctx context.Context, req *Request) (*http.Request, error) {
	u, err := url.Parse(req.URL)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}

	if req.Params != nil {
		values, err := encodeParams(req.Params)
		if err != nil {
			return nil, fmt.Errorf("encode params: %w", err)
		}
		query := u.Query()
		for key, vs := range values {
			for _, v := range vs {
				query.Add(key, v)
			}
		}
		u.RawQuery = query.Encode()
	}

	body, contentType, err := encodeBody(req.Data)
	if err != nil {
		return nil, fmt.Errorf("encode body: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, normalizeMethod(req.Method), u.String(), body)
	if err != nil {
		return nil, err
	}

	for key, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(key, v)
		}
	}
	if contentType != "" && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	if httpReq.Header.Get("Accept-Encoding") == "" {
		httpReq.Header.Set("Accept-Encoding", "gzip")
	}

	return httpReq, nil
}

func (t *HTTPTransport) readBody(resp *http.Response) ([]byte, error) {
	reader := io.Reader(resp.Body)

	if strings.EqualFold(resp.Header.Get("Content-Encoding"), "gzip") {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, err
		}
		defer gz.Close()
		reader = gz
		resp.Header.Del("Content-Encoding")
		resp.Header.Del("Content-Length")
	}

	limit := t.maxBodySize
	if limit <= 0 {
		limit = DefaultMaxBodySize
	}
	data, err := io.ReadAll(io.LimitReader(reader, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, &ClientError{
			Type:    ErrorTypeTransport,
			Message: fmt.Sprintf("response body exceeds %d bytes", limit),
			Cause:   &http.MaxBytesError{Limit: limit},
		}
	}
	return data, nil
}

func statusMessage(resp *http.Response) string {
	msg := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return msg
}

func encodeParams(params any) (url.Values, error) {
	switch p := params.(type) {
	case url.Values:
		return p, nil
	case map[string][]string:
		return url.Values(p), nil
	case map[string]string:
		values := make(url.Values, len(p))
		for k, v := range p {
			values.Set(k, v)
		}
		return values, nil
	case map[string]any:
		return valuesFromMap(p), nil
	}

	encoded, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}
	var generic map[string]any
	if err := json.Unmarshal(encoded, &generic); err != nil {
		return nil, fmt.Errorf("params must encode to an object: %w", err)
	}
	return valuesFromMap(generic), nil
}

func valuesFromMap(m map[string]any) url.Values {
	values := make(url.Values, len(m))
	for k, v := range m {
		switch vv := v.(type) {
		case nil:
		case []any:
			for _, item := range vv {
				values.Add(k, fmt.Sprint(item))
			}
		case []string:
			for _, item := range vv {
				values.Add(k, item)
			}
		default:
			values.Set(k, fmt.Sprint(vv))
		}
	}
	return values
}

func encodeBody(data any) (io.Reader, string, error) {
	switch d := data.(type) {
	case nil:
		return nil, "", nil
	case []byte:
		return bytes.NewReader(d), "application/octet-stream", nil
	case string:
		return strings.NewReader(d), "text/plain; charset=utf-8", nil
	case url.Values:
		return strings.NewReader(d.Encode()), "application/x-www-form-urlencoded", nil
	case io.Reader:
		return d, "", nil
	}

	encoded, err := json.Marshal(data)
	if err != nil {
		return nil, "", err
	}
	return bytes.NewReader(encoded), "application/json", nil
}
