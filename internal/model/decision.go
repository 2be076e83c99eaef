package model

import (
	"fmt"
	"time"
)

// Recommendation is a terminal outcome of one analysis call.
type Recommendation string

// The three terminal outcomes.
const (
	RecommendApprove  Recommendation = "APPROVE"
	RecommendReject   Recommendation = "REJECT"
	RecommendEscalate Recommendation = "ESCALATE"
)

// Validate checks that the recommendation is one of the terminal values.
func (r Recommendation) Validate() error {
	switch r {
	case RecommendApprove, RecommendReject, RecommendEscalate:
		return nil
	default:
		return fmt.Errorf("unknown recommendation: %q", string(r))
	}
}

// Decision is the final, invariant-checked verdict for one document.
// It is created once per analysis call; the post-judgment invariant
// check may override it in place before it is returned, but it is never
// mutated after return.
type Decision struct {
	Recommendation            Recommendation     `json:"recommendation"`
	Confidence                float64            `json:"confidence"`
	Reasoning                 []string           `json:"reasoning"`
	KeyIndicators             []string           `json:"key_indicators"`
	FraudTypes                []FraudType        `json:"fraud_types"`
	FraudExplanations         []FraudExplanation `json:"fraud_explanations"`
	ActionableRecommendations []string           `json:"actionable_recommendations"`
}

// Validate enforces the structural invariants on a finished decision.
func (d *Decision) Validate() error {
	if err := d.Recommendation.Validate(); err != nil {
		return err
	}
	if d.Confidence < 0 || d.Confidence > 1 {
		return fmt.Errorf("decision confidence %f outside [0,1]", d.Confidence)
	}
	if len(d.FraudTypes) > 1 {
		return fmt.Errorf("decision carries %d fraud types, at most one is allowed", len(d.FraudTypes))
	}
	return nil
}

// AddReasoning appends an audit note to the decision's reasoning trail.
func (d *Decision) AddReasoning(format string, args ...any) {
	d.Reasoning = append(d.Reasoning, fmt.Sprintf(format, args...))
}

// AnalysisResult is the persisted and published unit: the decision plus
// the model analysis bundle and everything needed to audit the call.
type AnalysisResult struct {
	AnalysisID       string        `json:"analysis_id"`
	Identity         string        `json:"identity"`
	DocumentType     DocumentType  `json:"document_type"`
	Decision         Decision      `json:"decision"`
	ModelAnalysis    ModelAnalysis `json:"ml_analysis"`
	ValidationIssues []string      `json:"validation_issues"`
	CreatedAt        time.Time     `json:"created_at"`
}

// PolicyViolation records a conflict between the judgment source's
// output and a mandatory policy invariant. It is a soft error: the
// engine recovers by overriding the recommendation and appending an
// audit note, never by dropping the conflict silently.
type PolicyViolation struct {
	Classification CustomerClassification
	Expected       Recommendation
	Got            Recommendation
	RiskScore      float64
}

func (v *PolicyViolation) Error() string {
	return fmt.Sprintf("policy violation: judgment recommended %s for %s customer at risk %.2f, policy expects %s",
		v.Got, v.Classification, v.RiskScore, v.Expected)
}
