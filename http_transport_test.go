package taxios

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"go.uber.org/atomic"
)

func TestHTTPTransportGet(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("Method = %s", r.Method)
		}
		if r.URL.Query().Get("q") != "go" || r.URL.Query().Get("keep") != "1" {
			t.Errorf("query = %s", r.URL.RawQuery)
		}
		if r.Header.Get("X-Custom") != "value" {
			t.Error("header not forwarded")
		}
		w.Header().Set("X-Reply", "yes")
		_, _ = w.Write([]byte(testResponseBody))
	}))
	defer server.Close()

	transport := NewHTTPTransport(nil)
	resp, err := transport.Execute(context.Background(), &Request{
		URL:    server.URL + "/search?keep=1",
		Method: "get",
		Params: map[string]string{"q": "go"},
		Header: http.Header{"X-Custom": []string{"value"}},
	})
	if err != nil {
		t.Fatalf("Execute() returned error: %v", err)
	}
	if resp.StatusCode != http.StatusOK || resp.String() != testResponseBody {
		t.Errorf("unexpected response %d %q", resp.StatusCode, resp.String())
	}
	if resp.Header.Get("X-Reply") != "yes" {
		t.Error("response header missing")
	}
}

func TestHTTPTransportBodies(t *testing.T) {
	tests := []struct {
		name        string
		data        any
		contentType string
		body        string
	}{
		{"json", map[string]int{"a": 1}, "application/json", `{"a":1}`},
		{"string", "hello", "text/plain; charset=utf-8", "hello"},
		{"bytes", []byte("raw"), "application/octet-stream", "raw"},
		{"form", url.Values{"a": []string{"1"}}, "application/x-www-form-urlencoded", "a=1"},
		{"reader", strings.NewReader("stream"), "", "stream"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				body, _ := io.ReadAll(r.Body)
				if string(body) != tt.body {
					t.Errorf("body = %q, want %q", body, tt.body)
				}
				if tt.contentType != "" && r.Header.Get("Content-Type") != tt.contentType {
					t.Errorf("Content-Type = %q, want %q", r.Header.Get("Content-Type"), tt.contentType)
				}
			}))
			defer server.Close()

			_, err := NewHTTPTransport(nil).Execute(context.Background(), &Request{
				URL:    server.URL,
				Method: MethodPost,
				Data:   tt.data,
			})
			if err != nil {
				t.Fatalf("Execute() returned error: %v", err)
			}
		})
	}
}

func TestHTTPTransportKeepsExplicitContentType(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/vnd.api+json" {
			t.Errorf("Content-Type = %q", r.Header.Get("Content-Type"))
		}
	}))
	defer server.Close()

	_, err := NewHTTPTransport(nil).Execute(context.Background(), &Request{
		URL:    server.URL,
		Method: MethodPost,
		Data:   map[string]string{"a": "b"},
		Header: http.Header{"Content-Type": []string{"application/vnd.api+json"}},
	})
	if err != nil {
		t.Fatalf("Execute() returned error: %v", err)
	}
}

func TestHTTPTransportGzip(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Accept-Encoding") != "gzip" {
			t.Errorf("Accept-Encoding = %q", r.Header.Get("Accept-Encoding"))
		}
		var buf bytes.Buffer
		gz := gzip.NewWriter(&buf)
		_, _ = gz.Write([]byte(testResponseBody))
		_ = gz.Close()

		w.Header().Set("Content-Encoding", "gzip")
		_, _ = w.Write(buf.Bytes())
	}))
	defer server.Close()

	resp, err := NewHTTPTransport(nil).Execute(context.Background(), &Request{URL: server.URL})
	if err != nil {
		t.Fatalf("Execute() returned error: %v", err)
	}
	if resp.String() != testResponseBody {
		t.Errorf("body = %q", resp.String())
	}
	if resp.Header.Get("Content-Encoding") != "" {
		t.Error("Content-Encoding should be dropped after decoding")
	}
}

func TestHTTPTransportMaxBodySize(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("x", 100)))
	}))
	defer server.Close()

	base := NewHTTPTransport(nil)
	resp, err := base.WithMaxBodySize(10).Execute(context.Background(), &Request{URL: server.URL})
	if resp != nil {
		t.Error("no response expected for an oversized body")
	}
	if !IsTransportError(err) {
		t.Fatalf("expected TransportError, got %v", err)
	}
	var maxErr *http.MaxBytesError
	if !errors.As(err, &maxErr) || maxErr.Limit != 10 {
		t.Errorf("expected MaxBytesError with limit 10, got %v", err)
	}
	if base.maxBodySize != DefaultMaxBodySize {
		t.Error("WithMaxBodySize should not modify the receiver")
	}
}

func TestHTTPTransportBodyAtLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("0123456789"))
	}))
	defer server.Close()

	resp, err := NewHTTPTransport(nil).WithMaxBodySize(10).Execute(context.Background(), &Request{URL: server.URL})
	if err != nil {
		t.Fatalf("Execute() returned error: %v", err)
	}
	if resp.String() != "0123456789" {
		t.Errorf("body = %q", resp.String())
	}
}

func TestOversizedBodyIsNotCached(t *testing.T) {
	var hits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Inc()
		_, _ = w.Write([]byte(strings.Repeat("x", 100)))
	}))
	defer server.Close()

	client := New(
		WithConfig(Config{BaseURL: server.URL, Cacheable: true}),
		WithTransport(NewHTTPTransport(nil).WithMaxBodySize(10)),
		WithHooks(&recordingHooks{}),
	)

	for i := 0; i < 2; i++ {
		if _, err := client.Get(context.Background(), "/big"); !IsTransportError(err) {
			t.Fatalf("call %d: expected TransportError, got %v", i, err)
		}
	}
	if client.CacheLen() != 0 {
		t.Errorf("CacheLen() = %d, want 0", client.CacheLen())
	}
	if hits.Load() != 2 {
		t.Errorf("server hit %d times, want 2", hits.Load())
	}
}

func TestHTTPTransportStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("missing"))
	}))
	defer server.Close()

	resp, err := NewHTTPTransport(nil).Execute(context.Background(), &Request{URL: server.URL})
	if resp != nil {
		t.Error("no response expected on failure")
	}

	var clientErr *ClientError
	if !errors.As(err, &clientErr) {
		t.Fatalf("expected *ClientError, got %T", err)
	}
	if clientErr.Type != ErrorTypeTransport || clientErr.StatusCode != http.StatusNotFound {
		t.Errorf("unexpected error %+v", clientErr)
	}
	if clientErr.Message != "Not Found" {
		t.Errorf("Message = %q", clientErr.Message)
	}
	if clientErr.Response == nil || clientErr.Response.String() != "missing" {
		t.Error("error should carry the response")
	}
}

func TestHTTPTransportContextCanceled(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := NewHTTPTransport(nil).Execute(ctx, &Request{URL: server.URL})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected context.DeadlineExceeded, got %v", err)
	}
}

func TestHTTPTransportBadURL(t *testing.T) {
	if _, err := NewHTTPTransport(nil).Execute(context.Background(), &Request{URL: "http://[::1"}); err == nil {
		t.Error("expected an error for an unparsable URL")
	}
}

func TestEncodeParams(t *testing.T) {
	type filter struct {
		Tags []string `json:"tags"`
		Page int      `json:"page"`
	}

	tests := []struct {
		name   string
		params any
		want   url.Values
	}{
		{"values", url.Values{"a": []string{"1", "2"}}, url.Values{"a": []string{"1", "2"}}},
		{"string map", map[string]string{"a": "1"}, url.Values{"a": []string{"1"}}},
		{"any map", map[string]any{"a": 1, "b": nil, "c": []string{"x", "y"}}, url.Values{"a": []string{"1"}, "c": []string{"x", "y"}}},
		{"struct", filter{Tags: []string{"go"}, Page: 2}, url.Values{"tags": []string{"go"}, "page": []string{"2"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := encodeParams(tt.params)
			if err != nil {
				t.Fatalf("encodeParams() returned error: %v", err)
			}
			if got.Encode() != tt.want.Encode() {
				t.Errorf("encodeParams() = %s, want %s", got.Encode(), tt.want.Encode())
			}
		})
	}

	if _, err := encodeParams([]int{1, 2}); err == nil {
		t.Error("non-object params should fail")
	}
}
