package sheets

import (
	"context"
	"sync"

	"github.com/Veraticus/docket/internal/model"
	"github.com/Veraticus/docket/internal/service"
)

// MockWriter is a mock implementation of ReportWriter for testing.
type MockWriter struct {
	WriteFunc      func(ctx context.Context, results []model.AnalysisResult, summary *service.ReportSummary) error
	LastSummary    *service.ReportSummary
	WriteCalls     []WriteCall
	LastResults    []model.AnalysisResult
	WriteCallCount int
	mu             sync.Mutex
}

// WriteCall represents a single call to Write.
type WriteCall struct {
	Error   error
	Summary *service.ReportSummary
	Results []model.AnalysisResult
}

// NewMockWriter creates a new mock writer.
func NewMockWriter() *MockWriter {
	return &MockWriter{
		WriteCalls: make([]WriteCall, 0),
	}
}

// Write implements the ReportWriter interface.
func (m *MockWriter) Write(ctx context.Context, results []model.AnalysisResult, summary *service.ReportSummary) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.WriteCallCount++
	m.LastResults = results
	m.LastSummary = summary

	var err error
	if m.WriteFunc != nil {
		err = m.WriteFunc(ctx, results, summary)
	}

	m.WriteCalls = append(m.WriteCalls, WriteCall{
		Results: results,
		Summary: summary,
		Error:   err,
	})

	return err
}

// Reset clears all recorded calls.
func (m *MockWriter) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.WriteCallCount = 0
	m.WriteCalls = make([]WriteCall, 0)
	m.LastResults = nil
	m.LastSummary = nil
}

// GetWriteCalls returns a copy of all write calls.
func (m *MockWriter) GetWriteCalls() []WriteCall {
	m.mu.Lock()
	defer m.mu.Unlock()

	calls := make([]WriteCall, len(m.WriteCalls))
	copy(calls, m.WriteCalls)
	return calls
}

// SetWriteError configures the mock to return an error on the next Write call.
func (m *MockWriter) SetWriteError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.WriteFunc = func(_ context.Context, _ []model.AnalysisResult, _ *service.ReportSummary) error {
		return err
	}
}

// Ensure MockWriter implements the ReportWriter interface.
var _ service.ReportWriter = (*MockWriter)(nil)
