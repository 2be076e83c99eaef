package scoring

import (
	"fmt"
	"math"
	"sort"

	"github.com/Veraticus/docket/internal/common"
	"github.com/Veraticus/docket/internal/model"
)

// Default ensemble weights for the standard two-model deployment: the
// probability classifier contributes 0.4 and the 0-100 regressor 0.6.
const (
	defaultClassifierWeight = 0.4
	defaultRegressorWeight  = 0.6
)

// Scorer holds loaded model members and scalers keyed by document type.
type Scorer struct {
	members map[model.DocumentType][]*member
	scalers map[model.DocumentType]*scaler
}

// Score combines every loaded member for the vector's document type into an
// ensemble score. Zero loaded members is a configuration error that fails
// the analysis; a placeholder score could silently approve fraud.
func (s *Scorer) Score(vec *model.FeatureVector) (*model.EnsembleScore, error) {
	members := s.members[vec.Schema]
	if len(members) == 0 {
		return nil, common.NewUserError(
			fmt.Sprintf("No fraud models are installed for %s documents. Check the model directory.", vec.Schema),
			fmt.Errorf("%w: no scoring models loaded for document type %q", common.ErrMissingConfig, vec.Schema),
		)
	}

	values := s.standardize(vec)
	perModel := make(map[string]float64, len(members))
	weights := ensembleWeights(members)

	combined := 0.0
	confidence := 0.0
	for i, m := range members {
		score, err := m.score(values)
		if err != nil {
			return nil, err
		}
		perModel[m.name] = score
		combined += weights[i] * score
		if score > confidence {
			confidence = score
		}
	}

	ensemble := &model.EnsembleScore{
		PerModel:   perModel,
		Combined:   model.Clamp01(combined),
		Confidence: confidence,
	}
	if err := ensemble.Validate(); err != nil {
		return nil, err
	}
	return ensemble, nil
}

// FeatureImportance ranks the top feature names by |weight x value| from the
// first classifier member. Regressor-only ensembles rank by the regressor
// instead so the bundle always carries importances.
func (s *Scorer) FeatureImportance(vec *model.FeatureVector, top int) []string {
	members := s.members[vec.Schema]
	if len(members) == 0 || top <= 0 {
		return nil
	}
	ranked := members[0]
	for _, m := range members {
		if m.kind == KindClassifier {
			ranked = m
			break
		}
	}

	values := s.standardize(vec)
	type contribution struct {
		name  string
		value float64
	}
	contributions := make([]contribution, 0, len(vec.Names))
	for i, name := range vec.Names {
		if i >= len(ranked.weights) || i >= len(values) {
			break
		}
		contributions = append(contributions, contribution{
			name:  name,
			value: ranked.weights[i] * values[i],
		})
	}
	sort.SliceStable(contributions, func(i, j int) bool {
		return math.Abs(contributions[i].value) > math.Abs(contributions[j].value)
	})

	if top > len(contributions) {
		top = len(contributions)
	}
	out := make([]string, 0, top)
	for _, c := range contributions[:top] {
		if c.value == 0 {
			continue
		}
		out = append(out, fmt.Sprintf("%s (%+.3f)", c.name, c.value))
	}
	return out
}

// standardize applies the schema's scaler when one is loaded.
func (s *Scorer) standardize(vec *model.FeatureVector) []float64 {
	sc := s.scalers[vec.Schema]
	if sc == nil {
		return vec.Values
	}
	out := make([]float64, len(vec.Values))
	for i, v := range vec.Values {
		scale := sc.scales[i]
		if scale == 0 {
			scale = 1
		}
		out[i] = (v - sc.means[i]) / scale
	}
	return out
}

// score evaluates one member against a standardized vector.
func (m *member) score(values []float64) (float64, error) {
	if len(values) != len(m.weights) {
		return 0, fmt.Errorf("model %q expects %d features, got %d", m.name, len(m.weights), len(values))
	}
	z := m.intercept
	for i, w := range m.weights {
		z += w * values[i]
	}
	switch m.kind {
	case KindClassifier:
		return sigmoid(z), nil
	case KindRegressor:
		return model.Clamp01(z / 100), nil
	default:
		return 0, fmt.Errorf("model %q has unscorable kind %q", m.name, m.kind)
	}
}

// ensembleWeights returns one weight per member, normalized to sum 1.
// Explicit artifact weights win; the classic classifier+regressor pair
// falls back to 0.4/0.6; anything else splits uniformly.
func ensembleWeights(members []*member) []float64 {
	weights := make([]float64, len(members))

	total := 0.0
	for i, m := range members {
		weights[i] = m.ensembleWeight
		total += m.ensembleWeight
	}
	if total > 0 {
		for i := range weights {
			weights[i] /= total
		}
		return weights
	}

	if len(members) == 2 && members[0].kind == KindClassifier && members[1].kind == KindRegressor {
		weights[0] = defaultClassifierWeight
		weights[1] = defaultRegressorWeight
		return weights
	}

	uniform := 1.0 / float64(len(members))
	for i := range weights {
		weights[i] = uniform
	}
	return weights
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}
