package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/Veraticus/docket/internal/model"
)

func TestValidateContext(t *testing.T) {
	tests := []struct {
		ctx     context.Context
		name    string
		wantErr bool
	}{
		{
			name:    "valid context",
			ctx:     context.Background(),
			wantErr: false,
		},
		{
			name:    "nil context",
			ctx:     nil,
			wantErr: true,
		},
		{
			name: "canceled context still valid",
			ctx: func() context.Context {
				ctx, cancel := context.WithCancel(context.Background())
				cancel()
				return ctx
			}(),
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateContext(tt.ctx)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateContext() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !errors.Is(err, ErrNilContext) {
				t.Errorf("validateContext() error = %v, want ErrNilContext", err)
			}
		})
	}
}

func TestValidateString(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		param   string
		wantErr bool
	}{
		{
			name:    "valid string",
			value:   "JANE DOE",
			param:   "identity",
			wantErr: false,
		},
		{
			name:    "empty string",
			value:   "",
			param:   "identity",
			wantErr: true,
		},
		{
			name:    "whitespace only",
			value:   "   \t\n",
			param:   "key",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateString(tt.value, tt.param)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateString() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !errors.Is(err, ErrEmptyString) {
				t.Errorf("validateString() error = %v, want ErrEmptyString", err)
			}
		})
	}
}

func TestValidateResult(t *testing.T) {
	valid := func() *model.AnalysisResult {
		return &model.AnalysisResult{
			AnalysisID:   "analysis-001",
			Identity:     "JANE DOE",
			DocumentType: model.DocTypeBankStatement,
			Decision: model.Decision{
				Recommendation: model.RecommendApprove,
				Confidence:     0.9,
			},
		}
	}

	tests := []struct {
		mutate  func(*model.AnalysisResult)
		name    string
		wantErr error
	}{
		{
			name:    "valid result",
			mutate:  func(*model.AnalysisResult) {},
			wantErr: nil,
		},
		{
			name:    "missing analysis ID",
			mutate:  func(r *model.AnalysisResult) { r.AnalysisID = "  " },
			wantErr: ErrInvalidResult,
		},
		{
			name:    "missing identity",
			mutate:  func(r *model.AnalysisResult) { r.Identity = "" },
			wantErr: ErrInvalidResult,
		},
		{
			name:    "unknown document type",
			mutate:  func(r *model.AnalysisResult) { r.DocumentType = "tax_return" },
			wantErr: ErrInvalidResult,
		},
		{
			name:    "confidence out of range",
			mutate:  func(r *model.AnalysisResult) { r.Decision.Confidence = 1.5 },
			wantErr: ErrInvalidResult,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := valid()
			tt.mutate(result)
			err := validateResult(result)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("validateResult() unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("validateResult() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	t.Run("nil result", func(t *testing.T) {
		if err := validateResult(nil); !errors.Is(err, ErrNilParameter) {
			t.Errorf("validateResult(nil) error = %v, want ErrNilParameter", err)
		}
	})
}
