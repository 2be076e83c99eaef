// Package oracle provides the external judgment clients consulted by the
// decision engine. A client makes exactly one upstream call per Judge
// invocation: the judgment source is non-deterministic, so a retry could
// hand back a different verdict for the same document. Any failure,
// transport or parse, fails the analysis instead.
package oracle

import (
	"context"
	"fmt"

	"github.com/Veraticus/docket/internal/model"
)

// Client is the judgment oracle consulted for a contextual recommendation.
type Client interface {
	Judge(ctx context.Context, req *Request) (*Response, error)
}

// Config selects and tunes the oracle provider.
type Config struct {
	Provider       string
	APIKey         string
	Model          string
	ClaudeCodePath string
	RateLimit      int
	Temperature    float64
	MaxTokens      int
}

// Request is the full context handed to the oracle: document fields, the
// model risk assessment, and the submitter's ledger standing.
type Request struct {
	Identity         string
	DocumentType     model.DocumentType
	Fields           model.DocumentRecord
	RiskScore        float64
	RiskLevel        model.RiskLevel
	Classification   model.CustomerClassification
	FraudCount       int
	EscalateCount    int
	TotalSubmissions int
	Anomalies        []string
	FraudTypes       []string
	ValidationIssues []string
}

// Response is the oracle's candidate verdict. The policy engine treats it
// as advisory: its invariant checks may override the recommendation.
type Response struct {
	Recommendation            model.Recommendation
	Confidence                float64
	Summary                   string
	Reasoning                 []string
	KeyIndicators             []string
	ActionableRecommendations []string
	FraudTypes                []string
	FraudExplanations         []model.FraudExplanation
}

// ParseError reports an oracle response that survived none of the recovery
// strategies. It carries a bounded preview of the raw response so the
// failure is diagnosable without logging the full payload.
type ParseError struct {
	Preview string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("oracle response unparseable after all recovery strategies: %q", e.Preview)
}
