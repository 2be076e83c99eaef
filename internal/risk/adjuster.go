// Package risk applies deterministic heuristic penalties on top of the
// ensemble score. Each penalty reflects a strong, independently verified
// fraud signal; they compound additively and the sum clamps to [0,1]. The
// adjusted score supersedes the ensemble score for everything downstream.
package risk

import (
	"fmt"
	"strings"

	"github.com/Veraticus/docket/internal/feature"
	"github.com/Veraticus/docket/internal/model"
)

// Additive penalties, applied in this order.
const (
	penaltyMissingSignature    = 0.60
	penaltyWrittenMismatch     = 0.40
	penaltyFutureDated         = 0.40
	penaltyOneMissingCritical  = 0.10
	penaltyTwoMissingCritical  = 0.25
	penaltyManyMissingCritical = 0.45
	penaltyFailedConsistency   = 0.35
	penaltyOverLimit           = 0.30
)

// futureRatioThreshold is the share of future-dated rows at which a
// transaction feed counts as future-dated overall.
const futureRatioThreshold = 0.25

// Config carries the bucketing thresholds. The zero value uses defaults.
type Config struct {
	Levels    Levels
	Overrides map[model.DocumentType]Levels
}

// Adjuster converts an ensemble score into the final risk score and level.
type Adjuster struct {
	levels    Levels
	overrides map[model.DocumentType]Levels
}

// Adjustment is the outcome of one adjustment pass.
type Adjustment struct {
	// Score is the clamped, penalty-adjusted risk score.
	Score float64
	// Level buckets Score per the document type's thresholds.
	Level model.RiskLevel
	// Anomalies records every fired heuristic with its measured values.
	Anomalies []string
}

// NewAdjuster builds an Adjuster; zero-value Config selects the default
// 0.30/0.60/0.85 thresholds for every document type.
func NewAdjuster(cfg Config) *Adjuster {
	levels := cfg.Levels
	if levels.zero() {
		levels = DefaultLevels()
	}
	return &Adjuster{levels: levels, overrides: cfg.Overrides}
}

// LevelFor buckets a score using the document type's thresholds.
func (a *Adjuster) LevelFor(docType model.DocumentType, score float64) model.RiskLevel {
	if override, ok := a.overrides[docType]; ok && !override.zero() {
		return override.Bucket(score)
	}
	return a.levels.Bucket(score)
}

// Adjust applies the penalty heuristics to the ensemble seed score. The
// record is read only to interpolate measured values into anomaly strings;
// every firing condition comes from the already-extracted features.
func (a *Adjuster) Adjust(seed float64, vec *model.FeatureVector, rec model.DocumentRecord) *Adjustment {
	adj := &Adjustment{}
	score := seed

	if v, ok := vec.Get(feature.FeatHasSignature); ok && v == 0 {
		score += penaltyMissingSignature
		adj.note("mandatory signature missing%s", amountContext(rec))
	}

	if v, ok := vec.Get(feature.FeatWrittenNumericMatch); ok && v == 0 {
		score += penaltyWrittenMismatch
		adj.note("%s", writtenMismatch(rec))
	}

	if v, ok := vec.Get(feature.FeatFutureDated); ok && v == 1 {
		score += penaltyFutureDated
		adj.note("document dated in the future (%s)", documentDate(rec))
	} else if ratio, ok := vec.Get(feature.FeatFutureDatedRatio); ok && ratio > futureRatioThreshold {
		score += penaltyFutureDated
		adj.note("%.0f%% of transactions are future-dated", ratio*100)
	}

	if missing := feature.MissingCritical(rec, vec.Schema); len(missing) > 0 {
		switch len(missing) {
		case 1:
			score += penaltyOneMissingCritical
		case 2:
			score += penaltyTwoMissingCritical
		default:
			score += penaltyManyMissingCritical
		}
		adj.note("%d critical field(s) missing: %s", len(missing), strings.Join(missing, ", "))
	}

	if failures := consistencyFailures(vec, rec); len(failures) > 0 {
		score += penaltyFailedConsistency
		adj.Anomalies = append(adj.Anomalies, failures...)
	}

	if v, ok := vec.Get(feature.FeatOverLimit); ok && v == 1 {
		score += penaltyOverLimit
		if amount, amountOK := rec.Number("amount"); amountOK {
			adj.note("amount %.2f exceeds the %.2f instrument limit", amount, feature.MoneyOrderLimit)
		} else {
			adj.note("amount exceeds the %.2f instrument limit", feature.MoneyOrderLimit)
		}
	}

	adj.Score = model.Clamp01(score)
	adj.Level = a.LevelFor(vec.Schema, adj.Score)
	return adj
}

func (adj *Adjustment) note(format string, args ...any) {
	adj.Anomalies = append(adj.Anomalies, fmt.Sprintf(format, args...))
}

// consistencyFailures names each arithmetic identity the document failed,
// with its expected and reported values. The +0.35 penalty fires once no
// matter how many identities fail; each failure still gets its own anomaly.
func consistencyFailures(vec *model.FeatureVector, rec model.DocumentRecord) []string {
	var failures []string

	if v, ok := vec.Get(feature.FeatBalanceConsistency); ok && v == 0 {
		if expected, reported, known := feature.ExpectedEndingBalance(rec); known {
			failures = append(failures, fmt.Sprintf(
				"ending balance should be %.2f (beginning + credits - debits) but the document reports %.2f",
				expected, reported))
		} else {
			failures = append(failures, "ending balance does not reconcile with beginning balance and activity")
		}
	}

	if v, ok := vec.Get(feature.FeatActivityConsistency); ok && v == 0 {
		failures = append(failures, "transaction rows do not sum to the reported credit/debit totals")
	}

	if v, ok := vec.Get(feature.FeatNetPayConsistency); ok && v == 0 {
		gross, grossOK := rec.Number("gross_pay")
		deductions, _ := rec.Number("total_deductions")
		net, netOK := rec.Number("net_pay")
		if grossOK && netOK {
			failures = append(failures, fmt.Sprintf(
				"net pay should be %.2f (gross %.2f - deductions %.2f) but the document reports %.2f",
				gross-deductions, gross, deductions, net))
		} else {
			failures = append(failures, "net pay does not reconcile with gross pay and deductions")
		}
	}

	return failures
}

// writtenMismatch interpolates both sides of a failed legal-line check.
func writtenMismatch(rec model.DocumentRecord) string {
	written, _ := rec.String("amount_written")
	numeric, numericOK := rec.Number("amount_numeric")
	parsed, parsedOK := feature.ParseWrittenAmount(written)
	switch {
	case parsedOK && numericOK:
		return fmt.Sprintf("written amount %q (%.2f) disagrees with numeric amount %.2f", written, parsed, numeric)
	case numericOK:
		return fmt.Sprintf("written amount %q disagrees with numeric amount %.2f", written, numeric)
	default:
		return fmt.Sprintf("written amount %q disagrees with the numeric amount", written)
	}
}

// amountContext appends the instrument amount when the record carries one.
func amountContext(rec model.DocumentRecord) string {
	for _, field := range []string{"amount_numeric", "amount", "net_pay", "ending_balance"} {
		if v, ok := rec.Number(field); ok {
			return fmt.Sprintf(" on instrument for %.2f", v)
		}
	}
	return ""
}

// documentDate returns the raw date string for anomaly interpolation.
func documentDate(rec model.DocumentRecord) string {
	for _, field := range []string{"date", "pay_date", "statement_date", "period_end"} {
		if v, ok := rec.String(field); ok {
			return v
		}
	}
	return "unknown date"
}
