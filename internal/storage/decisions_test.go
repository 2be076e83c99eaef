package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Veraticus/docket/internal/common"
	"github.com/Veraticus/docket/internal/model"
	"github.com/Veraticus/docket/internal/service"
)

func testResult(id, identity string, rec model.Recommendation, createdAt time.Time) *model.AnalysisResult {
	return &model.AnalysisResult{
		AnalysisID:   id,
		Identity:     identity,
		DocumentType: model.DocTypeBankStatement,
		Decision: model.Decision{
			Recommendation: rec,
			Confidence:     0.82,
			Reasoning:      []string{"reported and computed balances disagree"},
			KeyIndicators:  []string{"balance_consistency (+0.210)"},
			FraudTypes:     []model.FraudType{model.FraudConsistencyViolation},
			FraudExplanations: []model.FraudExplanation{{
				Type:    model.FraudConsistencyViolation,
				Reasons: []string{"ending balance should be 12384.50 (beginning + credits - debits) but the document reports 9000.00"},
			}},
			ActionableRecommendations: []string{"request the underlying bank records"},
		},
		ModelAnalysis: model.ModelAnalysis{
			FraudRiskScore:  0.78,
			RiskLevel:       model.RiskHigh,
			ModelConfidence: 0.91,
			ModelScores: model.ModelScores{
				PerModel: map[string]float64{"classifier_default": 0.74, "regressor_default": 0.69},
				Ensemble: 0.71,
				Adjusted: 0.78,
			},
			FeatureImportance: []string{"balance_consistency (+0.210)"},
			Anomalies:         []string{"ending balance should be 12384.50 (beginning + credits - debits) but the document reports 9000.00"},
			FraudTypes:        []string{"consistency_violation"},
			FraudReasons:      []string{"reported and computed balances disagree"},
		},
		ValidationIssues: []string{"statement_date: absent"},
		CreatedAt:        createdAt,
	}
}

func TestSaveResultAndGetResult(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	createdAt := time.Date(2026, 3, 10, 14, 30, 0, 0, time.UTC)
	original := testResult("analysis-001", "JOHN DOE", model.RecommendEscalate, createdAt)

	if err := store.SaveResult(ctx, original); err != nil {
		t.Fatalf("SaveResult failed: %v", err)
	}

	loaded, err := store.GetResult(ctx, "analysis-001")
	if err != nil {
		t.Fatalf("GetResult failed: %v", err)
	}

	if loaded.AnalysisID != original.AnalysisID {
		t.Errorf("AnalysisID = %q, want %q", loaded.AnalysisID, original.AnalysisID)
	}
	if loaded.Identity != "JOHN DOE" {
		t.Errorf("Identity = %q, want %q", loaded.Identity, "JOHN DOE")
	}
	if loaded.DocumentType != model.DocTypeBankStatement {
		t.Errorf("DocumentType = %q, want %q", loaded.DocumentType, model.DocTypeBankStatement)
	}
	if loaded.Decision.Recommendation != model.RecommendEscalate {
		t.Errorf("Recommendation = %s, want ESCALATE", loaded.Decision.Recommendation)
	}
	if loaded.Decision.Confidence != original.Decision.Confidence {
		t.Errorf("Confidence = %f, want %f", loaded.Decision.Confidence, original.Decision.Confidence)
	}
	if len(loaded.Decision.FraudTypes) != 1 || loaded.Decision.FraudTypes[0] != model.FraudConsistencyViolation {
		t.Errorf("FraudTypes = %v, want [consistency_violation]", loaded.Decision.FraudTypes)
	}
	if len(loaded.Decision.FraudExplanations) != 1 || len(loaded.Decision.FraudExplanations[0].Reasons) != 1 {
		t.Fatalf("FraudExplanations = %v, want one explanation with one reason", loaded.Decision.FraudExplanations)
	}
	if loaded.ModelAnalysis.FraudRiskScore != original.ModelAnalysis.FraudRiskScore {
		t.Errorf("FraudRiskScore = %f, want %f", loaded.ModelAnalysis.FraudRiskScore, original.ModelAnalysis.FraudRiskScore)
	}
	if loaded.ModelAnalysis.RiskLevel != model.RiskHigh {
		t.Errorf("RiskLevel = %s, want HIGH", loaded.ModelAnalysis.RiskLevel)
	}
	if got := loaded.ModelAnalysis.ModelScores.PerModel["classifier_default"]; got != 0.74 {
		t.Errorf("PerModel score = %f, want 0.74", got)
	}
	if len(loaded.ValidationIssues) != 1 || loaded.ValidationIssues[0] != "statement_date: absent" {
		t.Errorf("ValidationIssues = %v, want [statement_date: absent]", loaded.ValidationIssues)
	}
	if !loaded.CreatedAt.Equal(createdAt) {
		t.Errorf("CreatedAt = %v, want %v", loaded.CreatedAt, createdAt)
	}
}

func TestGetResult_NotFound(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()

	_, err := store.GetResult(context.Background(), "missing-id")
	if err == nil {
		t.Fatal("Expected error for missing analysis")
	}
	if !errors.Is(err, common.ErrNotFound) {
		t.Errorf("Error = %v, want ErrNotFound", err)
	}
}

func TestSaveResult_RejectsInvalidResults(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()
	createdAt := time.Date(2026, 3, 10, 14, 30, 0, 0, time.UTC)

	tests := []struct {
		mutate func(*model.AnalysisResult)
		name   string
	}{
		{
			name:   "missing analysis ID",
			mutate: func(r *model.AnalysisResult) { r.AnalysisID = "" },
		},
		{
			name:   "missing identity",
			mutate: func(r *model.AnalysisResult) { r.Identity = "  " },
		},
		{
			name:   "unknown document type",
			mutate: func(r *model.AnalysisResult) { r.DocumentType = "invoice" },
		},
		{
			name:   "unknown recommendation",
			mutate: func(r *model.AnalysisResult) { r.Decision.Recommendation = "MAYBE" },
		},
		{
			name: "multiple fraud types",
			mutate: func(r *model.AnalysisResult) {
				r.Decision.FraudTypes = append(r.Decision.FraudTypes, model.FraudDocumentAlteration)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := testResult("analysis-bad", "JOHN DOE", model.RecommendApprove, createdAt)
			tt.mutate(result)
			if err := store.SaveResult(ctx, result); err == nil {
				t.Error("Expected validation error, got nil")
			}
		})
	}

	if err := store.SaveResult(ctx, nil); err == nil {
		t.Error("Expected error for nil result")
	}
}

func TestSaveResult_DuplicateAnalysisID(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()
	createdAt := time.Date(2026, 3, 10, 14, 30, 0, 0, time.UTC)

	result := testResult("analysis-dup", "JOHN DOE", model.RecommendApprove, createdAt)
	if err := store.SaveResult(ctx, result); err != nil {
		t.Fatalf("First SaveResult failed: %v", err)
	}
	if err := store.SaveResult(ctx, result); err == nil {
		t.Error("Saving the same analysis ID twice should fail")
	}
}

func TestListResults_Filters(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	seed := []struct {
		id       string
		identity string
		rec      model.Recommendation
		offset   time.Duration
	}{
		{"analysis-a", "JOHN DOE", model.RecommendReject, 0},
		{"analysis-b", "JOHN DOE", model.RecommendApprove, 24 * time.Hour},
		{"analysis-c", "JANE ROE", model.RecommendEscalate, 48 * time.Hour},
		{"analysis-d", "JANE ROE", model.RecommendReject, 72 * time.Hour},
	}
	for _, row := range seed {
		if err := store.SaveResult(ctx, testResult(row.id, row.identity, row.rec, base.Add(row.offset))); err != nil {
			t.Fatalf("SaveResult(%s) failed: %v", row.id, err)
		}
	}

	t.Run("no filter returns all, most recent first", func(t *testing.T) {
		results, err := store.ListResults(ctx, service.ResultFilter{})
		if err != nil {
			t.Fatalf("ListResults failed: %v", err)
		}
		if len(results) != 4 {
			t.Fatalf("Got %d results, want 4", len(results))
		}
		if results[0].AnalysisID != "analysis-d" {
			t.Errorf("First result = %s, want analysis-d", results[0].AnalysisID)
		}
	})

	t.Run("identity filter normalizes input", func(t *testing.T) {
		results, err := store.ListResults(ctx, service.ResultFilter{Identity: "  jane  roe "})
		if err != nil {
			t.Fatalf("ListResults failed: %v", err)
		}
		if len(results) != 2 {
			t.Fatalf("Got %d results, want 2", len(results))
		}
		for _, r := range results {
			if r.Identity != "JANE ROE" {
				t.Errorf("Identity = %q, want JANE ROE", r.Identity)
			}
		}
	})

	t.Run("recommendation filter", func(t *testing.T) {
		results, err := store.ListResults(ctx, service.ResultFilter{Recommendation: model.RecommendReject})
		if err != nil {
			t.Fatalf("ListResults failed: %v", err)
		}
		if len(results) != 2 {
			t.Fatalf("Got %d results, want 2", len(results))
		}
	})

	t.Run("date range", func(t *testing.T) {
		start := base.Add(12 * time.Hour)
		end := base.Add(60 * time.Hour)
		results, err := store.ListResults(ctx, service.ResultFilter{Start: &start, End: &end})
		if err != nil {
			t.Fatalf("ListResults failed: %v", err)
		}
		if len(results) != 2 {
			t.Fatalf("Got %d results, want 2 (analysis-b, analysis-c)", len(results))
		}
	})

	t.Run("limit", func(t *testing.T) {
		results, err := store.ListResults(ctx, service.ResultFilter{Limit: 1})
		if err != nil {
			t.Fatalf("ListResults failed: %v", err)
		}
		if len(results) != 1 {
			t.Fatalf("Got %d results, want 1", len(results))
		}
		if results[0].AnalysisID != "analysis-d" {
			t.Errorf("Limited result = %s, want the most recent", results[0].AnalysisID)
		}
	})

	t.Run("inverted date range fails", func(t *testing.T) {
		start := base.Add(60 * time.Hour)
		end := base
		if _, err := store.ListResults(ctx, service.ResultFilter{Start: &start, End: &end}); err == nil {
			t.Error("Expected error for inverted date range")
		}
	})
}
