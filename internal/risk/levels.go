package risk

import "github.com/Veraticus/docket/internal/model"

// Levels holds the score thresholds between risk buckets: scores below
// Medium are LOW, below High are MEDIUM, below Critical are HIGH, and
// everything at or above Critical is CRITICAL.
type Levels struct {
	Medium   float64
	High     float64
	Critical float64
}

// DefaultLevels returns the standard 0.30 / 0.60 / 0.85 bucketing.
func DefaultLevels() Levels {
	return Levels{Medium: 0.30, High: 0.60, Critical: 0.85}
}

func (l Levels) zero() bool {
	return l.Medium == 0 && l.High == 0 && l.Critical == 0
}

// Bucket maps a score to its risk level.
func (l Levels) Bucket(score float64) model.RiskLevel {
	switch {
	case score < l.Medium:
		return model.RiskLow
	case score < l.High:
		return model.RiskMedium
	case score < l.Critical:
		return model.RiskHigh
	default:
		return model.RiskCritical
	}
}
