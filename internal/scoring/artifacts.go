// Package scoring loads trained model artifacts and combines them into an
// ensemble fraud probability for a feature vector. Artifacts are JSON weight
// files produced by an offline training job; this package only consumes them.
package scoring

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Veraticus/docket/internal/common"
	"github.com/Veraticus/docket/internal/feature"
	"github.com/Veraticus/docket/internal/model"
)

// ModelKind identifies what an artifact's weights mean.
type ModelKind string

const (
	// KindClassifier is a logistic model emitting a positive-class probability.
	KindClassifier ModelKind = "classifier"
	// KindRegressor is a linear model emitting a 0-100 risk score.
	KindRegressor ModelKind = "regressor"
	// KindScaler holds standardization parameters applied before scoring.
	KindScaler ModelKind = "scaler"
)

// Artifact is the on-disk JSON shape shared by all artifact kinds.
// Classifiers and regressors use Weights/Intercept; scalers use Means/Scales.
type Artifact struct {
	Name      string    `json:"name"`
	Kind      ModelKind `json:"kind"`
	Schema    string    `json:"schema"`
	Weights   []float64 `json:"weights,omitempty"`
	Intercept float64   `json:"intercept,omitempty"`
	Weight    float64   `json:"weight,omitempty"`
	Means     []float64 `json:"means,omitempty"`
	Scales    []float64 `json:"scales,omitempty"`
}

type member struct {
	name           string
	kind           ModelKind
	weights        []float64
	intercept      float64
	ensembleWeight float64
}

type scaler struct {
	means  []float64
	scales []float64
}

// LoadDir reads every *.json artifact under dir and builds a Scorer.
// A directory with no readable artifacts still returns a Scorer; the
// missing-model check happens per document type at scoring time, because
// a deployment may legitimately carry artifacts for only some types.
func LoadDir(dir string) (*Scorer, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read model directory %s: %w", dir, err)
	}

	s := newScorer()
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read model artifact %s: %w", path, err)
		}
		var art Artifact
		if err := json.Unmarshal(data, &art); err != nil {
			return nil, fmt.Errorf("%w: artifact %s is not valid JSON: %v", common.ErrInvalidConfig, path, err)
		}
		if err := s.add(art); err != nil {
			return nil, fmt.Errorf("artifact %s: %w", path, err)
		}
	}
	s.finalize()
	return s, nil
}

// NewScorer builds a Scorer directly from artifacts, bypassing the
// filesystem. Tests and embedded deployments use this path.
func NewScorer(artifacts ...Artifact) (*Scorer, error) {
	s := newScorer()
	for _, art := range artifacts {
		if err := s.add(art); err != nil {
			return nil, fmt.Errorf("artifact %q: %w", art.Name, err)
		}
	}
	s.finalize()
	return s, nil
}

func newScorer() *Scorer {
	return &Scorer{
		members: make(map[model.DocumentType][]*member),
		scalers: make(map[model.DocumentType]*scaler),
	}
}

func (s *Scorer) add(art Artifact) error {
	docType := model.DocumentType(art.Schema)
	schema, err := feature.SchemaFor(docType)
	if err != nil {
		return fmt.Errorf("%w: unknown schema %q", common.ErrInvalidConfig, art.Schema)
	}

	switch art.Kind {
	case KindClassifier, KindRegressor:
		if art.Name == "" {
			return fmt.Errorf("%w: model artifact has no name", common.ErrInvalidConfig)
		}
		if len(art.Weights) != schema.N() {
			return fmt.Errorf("%w: model %q has %d weights, schema %q has %d features",
				common.ErrInvalidConfig, art.Name, len(art.Weights), art.Schema, schema.N())
		}
		if art.Weight < 0 {
			return fmt.Errorf("%w: model %q has negative ensemble weight", common.ErrInvalidConfig, art.Name)
		}
		s.members[docType] = append(s.members[docType], &member{
			name:           art.Name,
			kind:           art.Kind,
			weights:        art.Weights,
			intercept:      art.Intercept,
			ensembleWeight: art.Weight,
		})
	case KindScaler:
		if len(art.Means) != schema.N() || len(art.Scales) != schema.N() {
			return fmt.Errorf("%w: scaler for schema %q is not sized to %d features",
				common.ErrInvalidConfig, art.Schema, schema.N())
		}
		if s.scalers[docType] != nil {
			return fmt.Errorf("%w: duplicate scaler for schema %q", common.ErrInvalidConfig, art.Schema)
		}
		s.scalers[docType] = &scaler{means: art.Means, scales: art.Scales}
	default:
		return fmt.Errorf("%w: unknown artifact kind %q", common.ErrInvalidConfig, art.Kind)
	}
	return nil
}

// finalize fixes the member order so ensemble weighting is reproducible
// regardless of file-listing order.
func (s *Scorer) finalize() {
	for _, members := range s.members {
		sort.Slice(members, func(i, j int) bool {
			if members[i].kind != members[j].kind {
				return members[i].kind < members[j].kind
			}
			return members[i].name < members[j].name
		})
	}
}
