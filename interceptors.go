package taxios

import (
	"context"
	"errors"
	"sync"
)

var errNilRequest = errors.New("request interceptor returned nil request")
var errNilResponse = errors.New("response interceptor returned nil response")

// Interceptors holds the ordered request and response chains of a client.
// Registration order is call order. Chains only grow.
type Interceptors struct {
	mu       sync.RWMutex
	request  []RequestInterceptor
	response []ResponseInterceptor
}

// AddRequest appends request interceptors. Nil functions are skipped.
func (i *Interceptors) AddRequest(fns ...RequestInterceptor) {
	i.mu.Lock()
	defer i.mu.Unlock()
	for _, fn := range fns {
		if fn != nil {
			i.request = append(i.request, fn)
		}
	}
}

// AddResponse appends response interceptors. Nil functions are skipped.
func (i *Interceptors) AddResponse(fns ...ResponseInterceptor) {
	i.mu.Lock()
	defer i.mu.Unlock()
	for _, fn := range fns {
		if fn != nil {
			i.response = append(i.response, fn)
		}
	}
}

// RequestLen returns the number of registered request interceptors.
func (i *Interceptors) RequestLen() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.request)
}

// ResponseLen returns the number of registered response interceptors.
func (i *Interceptors) ResponseLen() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.response)
}

// RunRequest threads req through the request chain left to right and stops at
// the first failure.
func (i *Interceptors) RunRequest(ctx context.Context, req *Request) (*Request, error) {
	i.mu.RLock()
	chain := i.request
	i.mu.RUnlock()

	var err error
	for _, fn := range chain {
		req, err = fn(ctx, req)
		if err != nil {
			return nil, err
		}
		if req == nil {
			return nil, errNilRequest
		}
	}
	return req, nil
}

// RunResponse threads resp through the response chain left to right and stops
// at the first failure.
func (i *Interceptors) RunResponse(ctx context.Context, resp *Response) (*Response, error) {
	i.mu.RLock()
	chain := i.response
	i.mu.RUnlock()

	var err error
	for _, fn := range chain {
		resp, err = fn(ctx, resp)
		if err != nil {
			return nil, err
		}
		if resp == nil {
			return nil, errNilResponse
		}
	}
	return resp, nil
}
