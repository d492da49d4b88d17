package engine

import (
	"context"
	"sync"
	"time"

	"github.com/lintmender/lintmender/internal/common"
	"github.com/lintmender/lintmender/internal/service"
)

// MockBackend is a test implementation of the fixing backend. By default
// it resolves every error it is asked about; individual files can be
// scripted to fail, time out, or resolve partially.
type MockBackend struct {
	failFiles    map[string]struct{}
	timeoutFiles map[string]struct{}
	partialFiles map[string]struct{}
	calls        []service.FixRequest
	CostPerCall  float64
	Latency      time.Duration
	mu           sync.Mutex
}

// NewMockBackend creates a mock backend that resolves everything.
func NewMockBackend() *MockBackend {
	return &MockBackend{
		failFiles:    make(map[string]struct{}),
		timeoutFiles: make(map[string]struct{}),
		partialFiles: make(map[string]struct{}),
		CostPerCall:  0.01,
	}
}

// FailOn makes every batch touching the file fail.
func (m *MockBackend) FailOn(file string) *MockBackend {
	m.mu.Lock()
	m.failFiles[file] = struct{}{}
	m.mu.Unlock()
	return m
}

// TimeoutOn makes every batch touching the file block until its context
// expires.
func (m *MockBackend) TimeoutOn(file string) *MockBackend {
	m.mu.Lock()
	m.timeoutFiles[file] = struct{}{}
	m.mu.Unlock()
	return m
}

// PartialOn makes batches touching the file resolve all but one error.
func (m *MockBackend) PartialOn(file string) *MockBackend {
	m.mu.Lock()
	m.partialFiles[file] = struct{}{}
	m.mu.Unlock()
	return m
}

// FixBatch implements service.FixBackend.
func (m *MockBackend) FixBatch(ctx context.Context, req service.FixRequest) (service.FixResult, error) {
	m.mu.Lock()
	m.calls = append(m.calls, req)
	fail, timeout, partial := false, false, false
	for _, f := range req.Files {
		if _, ok := m.failFiles[f]; ok {
			fail = true
		}
		if _, ok := m.timeoutFiles[f]; ok {
			timeout = true
		}
		if _, ok := m.partialFiles[f]; ok {
			partial = true
		}
	}
	m.mu.Unlock()

	if m.Latency > 0 {
		select {
		case <-ctx.Done():
			return service.FixResult{}, ctx.Err()
		case <-time.After(m.Latency):
		}
	}

	if timeout {
		<-ctx.Done()
		return service.FixResult{}, &common.BackendError{Kind: common.BackendTimeout, Err: ctx.Err()}
	}
	if fail {
		return service.FixResult{Cost: m.CostPerCall}, &common.BackendError{Kind: common.BackendExitFailure}
	}

	resolved := make([]string, 0, len(req.Errors))
	for _, ec := range req.Errors {
		resolved = append(resolved, ec.Error.LocationKey())
	}
	if partial && len(resolved) > 1 {
		resolved = resolved[:len(resolved)-1]
	}

	return service.FixResult{
		ModifiedFiles: req.Files,
		ResolvedIDs:   resolved,
		Cost:          m.CostPerCall,
	}, nil
}

// Calls returns the recorded requests.
func (m *MockBackend) Calls() []service.FixRequest {
	m.mu.Lock()
	defer m.mu.Unlock()

	calls := make([]service.FixRequest, len(m.calls))
	copy(calls, m.calls)
	return calls
}

// CallCount returns the number of backend invocations.
func (m *MockBackend) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}
