package feed

import (
	"context"
)

// MockSource is a mock implementation of Source for testing.
type MockSource struct {
	// Functions that can be set by tests to control behavior
	FetchFn func(ctx context.Context) ([]Item, error)

	// Call tracking
	FetchCalls int
}

// NewMockSource creates a new mock document source.
func NewMockSource() *MockSource {
	return &MockSource{}
}

// Fetch implements Source.Fetch.
func (m *MockSource) Fetch(ctx context.Context) ([]Item, error) {
	m.FetchCalls++

	if m.FetchFn != nil {
		return m.FetchFn(ctx)
	}

	// Default behavior: return empty slice
	return []Item{}, nil
}

// Reset clears all call tracking.
func (m *MockSource) Reset() {
	m.FetchCalls = 0
}

// Ensure MockSource implements the Source interface.
var _ Source = (*MockSource)(nil)
