package ai

import (
	"context"
	"sync"
)

// MockInvoker returns queued canned results, for tests. Once the queue is
// drained it keeps returning the last entry.
type MockInvoker struct {
	mu       sync.Mutex
	queue    []mockEntry
	Requests []Request
	Model    string
}

type mockEntry struct {
	res *Result
	err error
}

// NewMockInvoker creates an empty mock with the given model identifier.
func NewMockInvoker(model string) *MockInvoker {
	return &MockInvoker{Model: model}
}

// QueueResult enqueues a successful generation with the given text.
func (m *MockInvoker) QueueResult(text string) *MockInvoker {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, mockEntry{res: &Result{Text: text, Model: m.Model}})
	return m
}

// QueueError enqueues a failure.
func (m *MockInvoker) QueueError(err error) *MockInvoker {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, mockEntry{err: err})
	return m
}

func (m *MockInvoker) ModelID() string { return m.Model }

func (m *MockInvoker) Invoke(_ context.Context, req Request) (*Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Requests = append(m.Requests, req)
	if len(m.queue) == 0 {
		return &Result{Text: "ok", Model: m.Model}, nil
	}
	entry := m.queue[0]
	if len(m.queue) > 1 {
		m.queue = m.queue[1:]
	}
	return entry.res, entry.err
}

// MockVisionInvoker returns a fixed vision result or error.
type MockVisionInvoker struct {
	Res      *VisionResult
	Err      error
	Requests []VisionRequest
}

func (m *MockVisionInvoker) AnalyzeImage(_ context.Context, req VisionRequest) (*VisionResult, error) {
	m.Requests = append(m.Requests, req)
	if m.Err != nil {
		return nil, m.Err
	}
	if m.Res != nil {
		return m.Res, nil
	}
	return &VisionResult{Description: "an image", Answer: "ok", Model: "mock-vision"}, nil
}
