package model

import "testing"

func TestDecision_Validate(t *testing.T) {
	tests := []struct {
		name     string
		decision Decision
		wantErr  bool
	}{
		{
			name: "valid with one fraud type",
			decision: Decision{
				Recommendation: RecommendReject,
				Confidence:     0.9,
				FraudTypes:     []FraudType{FraudDocumentAlteration},
			},
		},
		{
			name: "valid with none",
			decision: Decision{
				Recommendation: RecommendApprove,
				Confidence:     0.4,
			},
		},
		{
			name: "two fraud types",
			decision: Decision{
				Recommendation: RecommendReject,
				Confidence:     0.9,
				FraudTypes:     []FraudType{FraudDocumentAlteration, FraudConsistencyViolation},
			},
			wantErr: true,
		},
		{
			name:     "unknown recommendation",
			decision: Decision{Recommendation: "MAYBE", Confidence: 0.5},
			wantErr:  true,
		},
		{
			name:     "confidence out of range",
			decision: Decision{Recommendation: RecommendEscalate, Confidence: 1.2},
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.decision.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestFeatureVector_Validate(t *testing.T) {
	v := &FeatureVector{
		Schema: DocTypeCheck,
		Names:  []string{"a", "b"},
		Values: []float64{1, 0},
	}
	if err := v.Validate(2); err != nil {
		t.Fatalf("Validate(2) = %v", err)
	}

	err := v.Validate(3)
	if err == nil {
		t.Fatal("length mismatch must be an error")
	}
	var inv *ExtractionInvariantError
	if !asInvariantError(err, &inv) {
		t.Fatalf("error type = %T, want *ExtractionInvariantError", err)
	}
	if inv.Want != 3 || inv.GotValues != 2 {
		t.Errorf("invariant error = %+v", inv)
	}
}

func asInvariantError(err error, target **ExtractionInvariantError) bool {
	e, ok := err.(*ExtractionInvariantError)
	if ok {
		*target = e
	}
	return ok
}

func TestClamp01(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{-0.5, 0},
		{0, 0},
		{0.42, 0.42},
		{1, 1},
		{1.7, 1},
	}
	for _, tt := range tests {
		if got := Clamp01(tt.in); got != tt.want {
			t.Errorf("Clamp01(%f) = %f, want %f", tt.in, got, tt.want)
		}
	}
}
