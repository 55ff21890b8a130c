package testutil

import (
	"context"
	"sync"

	"github.com/brendan.keane/sqlhttp/internal/errors"
	httpinternal "github.com/brendan.keane/sqlhttp/internal/http"
)

// MockHTTPExecutor implements HTTPExecutor for testing
type MockHTTPExecutor struct {
	mu       sync.Mutex
	Response *httpinternal.Response
	Err      error
	Calls    []*httpinternal.Request
}

// Execute records the request and returns the configured outcome
func (m *MockHTTPExecutor) Execute(ctx context.Context, req *httpinternal.Request) (*httpinternal.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, req)
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Response, nil
}

// CallCount returns how many times Execute ran
func (m *MockHTTPExecutor) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// NewSuccessfulHTTPExecutor creates an executor answering 200 with body
func NewSuccessfulHTTPExecutor(body string) *MockHTTPExecutor {
	ct := "text/plain"
	return &MockHTTPExecutor{
		Response: &httpinternal.Response{
			Status:      200,
			ContentType: &ct,
			Content:     []byte(body),
		},
	}
}

// NewFailingHTTPExecutor creates an executor failing with a transport error
func NewFailingHTTPExecutor(message string) *MockHTTPExecutor {
	return &MockHTTPExecutor{
		Err: errors.New(errors.ErrorTypeTransport, message),
	}
}
