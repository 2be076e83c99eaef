package engine

import (
	"github.com/Veraticus/docket/internal/model"
)

// MatrixMode selects how a decision-matrix disagreement with the oracle
// is handled.
type MatrixMode string

// Matrix enforcement modes.
const (
	// MatrixModeLog keeps the oracle's recommendation and appends the
	// violation to the decision's reasoning trail.
	MatrixModeLog MatrixMode = "log"
	// MatrixModeOverride replaces the recommendation with the matrix's.
	MatrixModeOverride MatrixMode = "override"
)

// fraudHistoryRejectAt is the lowered REJECT threshold for customers
// with prior escalations on their ledger.
const fraudHistoryRejectAt = 0.60

// matrixExpects returns the recommendation the decision matrix requires
// for a customer classification and adjusted risk score.
func (c Config) matrixExpects(classification model.CustomerClassification, score float64) model.Recommendation {
	switch classification {
	case model.CustomerRepeatOffender:
		return model.RecommendReject

	case model.CustomerNew:
		return model.RecommendEscalate

	case model.CustomerFraudHistory:
		// Prior escalations floor the outcome at human review and lower
		// the rejection bar.
		if score >= fraudHistoryRejectAt {
			return model.RecommendReject
		}
		return model.RecommendEscalate

	default: // CLEAN_HISTORY
		switch {
		case score < c.ApproveBelow:
			return model.RecommendApprove
		case score >= c.RejectAt:
			return model.RecommendReject
		default:
			return model.RecommendEscalate
		}
	}
}

// modeFor resolves the matrix enforcement mode for a document type,
// preferring the per-type override over the global default.
func (c Config) modeFor(docType model.DocumentType) MatrixMode {
	if mode, ok := c.MatrixModeByType[docType]; ok && mode != "" {
		return mode
	}
	if c.MatrixMode == "" {
		return MatrixModeLog
	}
	return c.MatrixMode
}

// duplicateDiscriminators names, per document type, the record fields
// that distinguish one document from a resubmission of the same one.
// Listed in preference order; the first present field wins.
var duplicateDiscriminators = map[model.DocumentType][]string{
	model.DocTypeBankStatement:   {"period_end", "statement_date"},
	model.DocTypeCheck:           {"check_number"},
	model.DocTypeMoneyOrder:      {"serial_number"},
	model.DocTypePaystub:         {"pay_date", "pay_period_end"},
	model.DocTypeTransactionFeed: {"account_id"},
}

// DuplicateKey builds the composite resubmission key for a document:
// normalized identity, document type, and the type's natural
// discriminator (statement period, instrument number, pay date, or
// account). A document missing its discriminator shares one key per
// identity and type, so submitting another undiscriminated document of
// the same type counts as a resubmission.
func DuplicateKey(identity string, docType model.DocumentType, rec model.DocumentRecord) string {
	discriminator := "-"
	for _, field := range duplicateDiscriminators[docType] {
		if v, ok := rec.String(field); ok {
			discriminator = v
			break
		}
	}
	return model.NormalizeIdentity(identity) + "|" + string(docType) + "|" + discriminator
}
