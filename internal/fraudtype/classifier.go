// Package fraudtype maps extracted features onto the fraud taxonomy.
// Multiple categories may trigger for one document; only the single
// highest-severity category is emitted so downstream consumers never have
// to break ties themselves.
package fraudtype

import (
	"fmt"
	"strings"

	"github.com/Veraticus/docket/internal/feature"
	"github.com/Veraticus/docket/internal/model"
)

// Trigger thresholds. The soft thresholds apply only when the adjusted
// risk score already sits at HIGH or above: a riskier document lowers the
// bar for calling its transaction patterns suspicious.
const (
	fabricationMissingMin   = 3
	duplicateRatioHard      = 0.30
	duplicateRatioSoft      = 0.15
	roundRatioHard          = 0.70
	roundRatioSoft          = 0.50
	burstRatioHard          = 0.50
	softThresholdScoreFloor = 0.60
)

// Finding is the classifier's verdict: the single most severe triggered
// category with its measured-value explanation, plus the reasons from every
// category that triggered (for the analysis bundle).
type Finding struct {
	Type        model.FraudType
	Explanation model.FraudExplanation
	AllReasons  []string
}

// Classifier evaluates the fixed trigger rules.
type Classifier struct{}

// NewClassifier returns a Classifier.
func NewClassifier() *Classifier {
	return &Classifier{}
}

type triggered struct {
	fraudType model.FraudType
	reasons   []string
}

// Classify runs every category's trigger rules and resolves to the most
// severe hit. Returns nil when nothing triggers. Every reason string names
// at least one quantity measured from the document.
func (c *Classifier) Classify(vec *model.FeatureVector, rec model.DocumentRecord, adjusted float64) *Finding {
	var hits []triggered

	if reasons := c.fabrication(vec, rec); len(reasons) > 0 {
		hits = append(hits, triggered{model.FraudDocumentFabrication, reasons})
	}
	if reasons := c.alteration(vec, rec); len(reasons) > 0 {
		hits = append(hits, triggered{model.FraudDocumentAlteration, reasons})
	}
	if reasons := c.suspiciousPattern(vec, rec, adjusted); len(reasons) > 0 {
		hits = append(hits, triggered{model.FraudSuspiciousTransactions, reasons})
	}
	if reasons := c.consistencyViolation(vec, rec); len(reasons) > 0 {
		hits = append(hits, triggered{model.FraudConsistencyViolation, reasons})
	}
	if reasons := c.unrealisticProportions(vec, rec); len(reasons) > 0 {
		hits = append(hits, triggered{model.FraudUnrealisticProportions, reasons})
	}

	if len(hits) == 0 {
		return nil
	}

	winner := hits[0]
	var all []string
	for _, hit := range hits {
		all = append(all, hit.reasons...)
		if hit.fraudType.MoreSevereThan(winner.fraudType) {
			winner = hit
		}
	}

	return &Finding{
		Type:        winner.fraudType,
		Explanation: model.FraudExplanation{Type: winner.fraudType, Reasons: winner.reasons},
		AllReasons:  all,
	}
}

// fabrication: so many mandatory fields absent that the document was likely
// never a real instrument.
func (c *Classifier) fabrication(vec *model.FeatureVector, rec model.DocumentRecord) []string {
	missing := feature.MissingCritical(rec, vec.Schema)
	if len(missing) < fabricationMissingMin {
		return nil
	}
	schema, err := feature.SchemaFor(vec.Schema)
	if err != nil {
		return nil
	}
	return []string{fmt.Sprintf("%d of %d critical fields absent: %s",
		len(missing), len(schema.Critical), strings.Join(missing, ", "))}
}

// alteration: a field that should corroborate another has been changed
// or stripped: the legal line disagrees with the courtesy amount, or the
// signature is gone from a signed instrument.
func (c *Classifier) alteration(vec *model.FeatureVector, rec model.DocumentRecord) []string {
	var reasons []string

	if v, ok := vec.Get(feature.FeatWrittenNumericMatch); ok && v == 0 {
		numeric, numericOK := rec.Number("amount_numeric")
		raw, _ := rec.String("amount_written")
		written, writtenOK := feature.ParseWrittenAmount(raw)
		switch {
		case numericOK && writtenOK:
			reasons = append(reasons, fmt.Sprintf(
				"written amount %.2f disagrees with numeric amount %.2f", written, numeric))
		case numericOK:
			reasons = append(reasons, fmt.Sprintf(
				"written amount %q does not corroborate numeric amount %.2f", raw, numeric))
		default:
			reasons = append(reasons, fmt.Sprintf(
				"written amount %q does not corroborate the numeric amount", raw))
		}
	}

	if v, ok := vec.Get(feature.FeatHasSignature); ok && v == 0 && rec.Has("amount_numeric") {
		amount, _ := rec.Number("amount_numeric")
		reasons = append(reasons, fmt.Sprintf("no signature on an instrument for %.2f", amount))
	}

	return reasons
}

// suspiciousPattern: transaction rows shaped like generated filler rather
// than organic activity.
func (c *Classifier) suspiciousPattern(vec *model.FeatureVector, rec model.DocumentRecord, adjusted float64) []string {
	var reasons []string

	duplicateRatio, ok := vec.Get("duplicate_row_ratio")
	if !ok {
		duplicateRatio, ok = vec.Get("duplicate_txn_ratio")
	}
	if ok && aboveThreshold(duplicateRatio, duplicateRatioHard, duplicateRatioSoft, adjusted) {
		rows, _ := rec.Transactions("transactions")
		dups, total := feature.DuplicateRows(rows)
		reasons = append(reasons, fmt.Sprintf(
			"%d of %d transaction rows repeat the same date/amount/description signature (%.0f%%)",
			dups, total, duplicateRatio*100))
	}

	if ratio, ok := vec.Get(feature.FeatRoundAmountRatio); ok &&
		aboveThreshold(ratio, roundRatioHard, roundRatioSoft, adjusted) {
		reasons = append(reasons, fmt.Sprintf("%.0f%% of transaction amounts are round numbers", ratio*100))
	}

	if ratio, ok := vec.Get(feature.FeatBurstRatio); ok && ratio > burstRatioHard {
		reasons = append(reasons, fmt.Sprintf("%.0f%% of transactions land on a single day", ratio*100))
	}

	return reasons
}

// consistencyViolation: an arithmetic identity the document itself states
// does not hold.
func (c *Classifier) consistencyViolation(vec *model.FeatureVector, rec model.DocumentRecord) []string {
	var reasons []string

	if v, ok := vec.Get(feature.FeatBalanceConsistency); ok && v == 0 {
		if expected, reported, known := feature.ExpectedEndingBalance(rec); known {
			reasons = append(reasons, fmt.Sprintf(
				"ending balance should be %.2f but the document reports %.2f", expected, reported))
		} else {
			reasons = append(reasons, "ending balance does not reconcile with beginning balance and activity")
		}
	}

	if v, ok := vec.Get(feature.FeatActivityConsistency); ok && v == 0 {
		credits, _ := rec.Number("total_credits")
		debits, _ := rec.Number("total_debits")
		reasons = append(reasons, fmt.Sprintf(
			"transaction rows do not sum to the reported totals (credits %.2f, debits %.2f)", credits, debits))
	}

	if v, ok := vec.Get(feature.FeatNetPayConsistency); ok && v == 0 {
		gross, grossOK := rec.Number("gross_pay")
		deductions, _ := rec.Number("total_deductions")
		net, netOK := rec.Number("net_pay")
		if grossOK && netOK {
			reasons = append(reasons, fmt.Sprintf(
				"net pay should be %.2f (gross %.2f - deductions %.2f) but the document reports %.2f",
				gross-deductions, gross, deductions, net))
		} else {
			reasons = append(reasons, "net pay does not reconcile with gross pay and deductions")
		}
	}

	return reasons
}

// unrealisticProportions: magnitudes that cannot describe a real instrument.
func (c *Classifier) unrealisticProportions(vec *model.FeatureVector, rec model.DocumentRecord) []string {
	var reasons []string

	if ratio, ok := vec.Get(feature.FeatNetToGrossRatio); ok && ratio > 1 {
		gross, _ := rec.Number("gross_pay")
		net, _ := rec.Number("net_pay")
		reasons = append(reasons, fmt.Sprintf("net pay %.2f exceeds gross pay %.2f", net, gross))
	}

	if v, ok := vec.Get(feature.FeatOverLimit); ok && v == 1 {
		amount, _ := rec.Number("amount")
		reasons = append(reasons, fmt.Sprintf(
			"amount %.2f exceeds the %.2f instrument limit", amount, feature.MoneyOrderLimit))
	}

	return reasons
}

// aboveThreshold implements score-aware sensitivity: the hard threshold
// always triggers; the soft one only when the adjusted score is already
// high.
func aboveThreshold(ratio, hard, soft, adjusted float64) bool {
	if ratio > hard {
		return true
	}
	return ratio > soft && adjusted >= softThresholdScoreFloor
}
