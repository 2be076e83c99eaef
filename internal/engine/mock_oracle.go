package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/Veraticus/docket/internal/model"
	"github.com/Veraticus/docket/internal/oracle"
)

// MockOracle is a deterministic test implementation of oracle.Client.
// Unscripted, it mirrors the clean-history decision matrix: the
// recommendation follows the request's risk score at the default
// thresholds, so pipeline tests agree with the matrix unless they
// script a disagreement. Every call is recorded for verification.
type MockOracle struct {
	response *oracle.Response
	err      error
	calls    []oracle.Request
	mu       sync.Mutex
}

// NewMockOracle creates a mock oracle with no scripted behavior.
func NewMockOracle() *MockOracle {
	return &MockOracle{
		calls: make([]oracle.Request, 0),
	}
}

// Respond scripts the response returned by every subsequent Judge call.
func (m *MockOracle) Respond(resp *oracle.Response) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.response = resp
	m.err = nil
}

// Fail scripts an error returned by every subsequent Judge call.
func (m *MockOracle) Fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	m.response = nil
}

// Judge records the call and returns the scripted response, or the
// risk-score-derived default.
func (m *MockOracle) Judge(_ context.Context, req *oracle.Request) (*oracle.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, *req)

	if m.err != nil {
		return nil, m.err
	}
	if m.response != nil {
		resp := *m.response
		return &resp, nil
	}

	recommendation := model.RecommendEscalate
	switch {
	case req.RiskScore < 0.30:
		recommendation = model.RecommendApprove
	case req.RiskScore >= 0.85:
		recommendation = model.RecommendReject
	}

	return &oracle.Response{
		Recommendation: recommendation,
		Confidence:     0.80,
		Summary:        fmt.Sprintf("mock judgment for %s at risk %.2f", req.DocumentType, req.RiskScore),
		Reasoning:      []string{fmt.Sprintf("risk score %.2f with %d recorded anomalies", req.RiskScore, len(req.Anomalies))},
		FraudTypes:     append([]string{}, req.FraudTypes...),
	}, nil
}

// GetCalls returns a copy of all recorded requests.
func (m *MockOracle) GetCalls() []oracle.Request {
	m.mu.Lock()
	defer m.mu.Unlock()

	calls := make([]oracle.Request, len(m.calls))
	copy(calls, m.calls)
	return calls
}

// CallCount returns the number of Judge invocations.
func (m *MockOracle) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// Reset clears recorded calls and scripted behavior.
func (m *MockOracle) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = make([]oracle.Request, 0)
	m.response = nil
	m.err = nil
}
