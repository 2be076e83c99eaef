package model

import "fmt"

// EnsembleScore is the combined output of the member models.
type EnsembleScore struct {
	// PerModel holds each member's normalized score in [0,1].
	PerModel map[string]float64
	// Combined is the weighted sum of member scores, always in [0,1].
	Combined float64
	// Confidence is the maximum member score: strong conviction from any
	// one model is itself a usable signal even when the members disagree.
	Confidence float64
}

// Validate checks the score-bound invariants.
func (s *EnsembleScore) Validate() error {
	if s.Combined < 0 || s.Combined > 1 {
		return fmt.Errorf("combined score %f outside [0,1]", s.Combined)
	}
	for name, v := range s.PerModel {
		if v < 0 || v > 1 {
			return fmt.Errorf("model %q score %f outside [0,1]", name, v)
		}
	}
	return nil
}

// RiskLevel buckets an adjusted score for reporting.
type RiskLevel string

// Risk levels, least to most severe.
const (
	RiskLow      RiskLevel = "LOW"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"
)

// ModelScores carries the raw scoring breakdown through the analysis
// bundle: per-member scores, the ensemble combination, and the final
// heuristically adjusted value that supersedes it.
type ModelScores struct {
	PerModel map[string]float64 `json:"per_model"`
	Ensemble float64            `json:"ensemble"`
	Adjusted float64            `json:"adjusted"`
}

// ModelAnalysis is the ml_analysis bundle attached to every decision.
type ModelAnalysis struct {
	FraudRiskScore    float64     `json:"fraud_risk_score"`
	RiskLevel         RiskLevel   `json:"risk_level"`
	ModelConfidence   float64     `json:"model_confidence"`
	ModelScores       ModelScores `json:"model_scores"`
	FeatureImportance []string    `json:"feature_importance"`
	Anomalies         []string    `json:"anomalies"`
	FraudTypes        []string    `json:"fraud_types"`
	FraudReasons      []string    `json:"fraud_reasons"`
}

// Clamp01 bounds a score to [0,1]. Every score leaving the pipeline
// passes through this.
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
