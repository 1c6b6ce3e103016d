// Package httputil holds the JSON response helpers shared by the API
// handlers and the HTTP client abstraction used to talk to a running server.
package httputil

import (
	"bytes"
	"io"
	"net/http"
	"sync"
)

// HTTPClient is the one method the control client needs from *http.Client.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// StandardClient wraps *http.Client to implement HTTPClient.
type StandardClient struct {
	*http.Client
}

// NewStandardClient wraps c, or http.DefaultClient when c is nil.
func NewStandardClient(c *http.Client) *StandardClient {
	if c == nil {
		c = http.DefaultClient
	}
	return &StandardClient{Client: c}
}

// MockResponse is a canned response for MockHTTPClient.
type MockResponse struct {
	StatusCode int
	Body       string
	Error      error
}

// RecordedRequest is a request seen by MockHTTPClient with its body read.
type RecordedRequest struct {
	Method string
	URL    string
	Header http.Header
	Body   string
}

// MockHTTPClient returns queued responses in order and records every request.
// Once the queue is empty it answers 200 with an empty body.
type MockHTTPClient struct {
	mu        sync.Mutex
	responses []MockResponse
	requests  []RecordedRequest
}

// NewMockHTTPClient creates an empty mock client.
func NewMockHTTPClient() *MockHTTPClient {
	return &MockHTTPClient{}
}

// AddResponse queues a response.
func (m *MockHTTPClient) AddResponse(statusCode int, body string) *MockHTTPClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, MockResponse{StatusCode: statusCode, Body: body})
	return m
}

// AddErrorResponse queues a transport error.
func (m *MockHTTPClient) AddErrorResponse(err error) *MockHTTPClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, MockResponse{Error: err})
	return m
}

// Do records req and returns the next queued response.
func (m *MockHTTPClient) Do(req *http.Request) (*http.Response, error) {
	rec := RecordedRequest{Method: req.Method, URL: req.URL.String(), Header: req.Header.Clone()}
	if req.Body != nil {
		b, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, err
		}
		req.Body.Close()
		rec.Body = string(b)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, rec)

	resp := MockResponse{StatusCode: http.StatusOK}
	if len(m.responses) > 0 {
		resp, m.responses = m.responses[0], m.responses[1:]
	}
	if resp.Error != nil {
		return nil, resp.Error
	}
	return &http.Response{
		StatusCode: resp.StatusCode,
		Body:       io.NopCloser(bytes.NewBufferString(resp.Body)),
		Header:     make(http.Header),
		Request:    req,
	}, nil
}

// Requests returns a copy of the recorded requests.
func (m *MockHTTPClient) Requests() []RecordedRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]RecordedRequest, len(m.requests))
	copy(out, m.requests)
	return out
}
