package engine

import (
	"github.com/Veraticus/docket/internal/fraudtype"
	"github.com/Veraticus/docket/internal/model"
	"github.com/Veraticus/docket/internal/risk"
)

// Extractor turns a raw document record into a typed feature vector plus
// the data-quality issues found along the way.
type Extractor interface {
	Extract(rec model.DocumentRecord, docType model.DocumentType, ocrText string) (*model.FeatureVector, []model.DocumentIssue, error)
}

// Scorer produces the ensemble score for a feature vector and can rank
// the features that drove it.
type Scorer interface {
	Score(vec *model.FeatureVector) (*model.EnsembleScore, error)
	FeatureImportance(vec *model.FeatureVector, top int) []string
}

// Adjuster applies the deterministic penalty heuristics that produce the
// final risk score and level.
type Adjuster interface {
	Adjust(seed float64, vec *model.FeatureVector, rec model.DocumentRecord) *risk.Adjustment
}

// TypeClassifier maps extracted features onto the fraud taxonomy.
type TypeClassifier interface {
	Classify(vec *model.FeatureVector, rec model.DocumentRecord, adjusted float64) *fraudtype.Finding
}
