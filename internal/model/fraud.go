package model

// FraudType is one category of the fixed fraud taxonomy.
type FraudType string

// The fraud taxonomy. RepeatOffender is derived from the history ledger
// by the policy engine; the classifier never emits it.
const (
	FraudRepeatOffender         FraudType = "repeat_offender"
	FraudDocumentFabrication    FraudType = "document_fabrication"
	FraudDocumentAlteration     FraudType = "document_alteration"
	FraudSuspiciousTransactions FraudType = "suspicious_transaction_pattern"
	FraudConsistencyViolation   FraudType = "consistency_violation"
	FraudUnrealisticProportions FraudType = "unrealistic_proportions"
)

// severityRank is the total severity order over the taxonomy. Lower rank
// is more severe. Rank 0 is reserved for the ledger-derived category.
var severityRank = map[FraudType]int{
	FraudRepeatOffender:         0,
	FraudDocumentFabrication:    1,
	FraudDocumentAlteration:     2,
	FraudSuspiciousTransactions: 3,
	FraudConsistencyViolation:   4,
	FraudUnrealisticProportions: 5,
}

// SeverityRank returns the category's position in the total severity
// order; unknown categories rank after every known one.
func (f FraudType) SeverityRank() int {
	if rank, ok := severityRank[f]; ok {
		return rank
	}
	return len(severityRank)
}

// MoreSevereThan reports whether f outranks other in the severity order.
func (f FraudType) MoreSevereThan(other FraudType) bool {
	return f.SeverityRank() < other.SeverityRank()
}

// Known reports whether f belongs to the fixed taxonomy.
func (f FraudType) Known() bool {
	_, ok := severityRank[f]
	return ok
}

// FraudExplanation ties a fraud category to the concrete observations
// that triggered it. Every reason references a measured value from the
// document, never boilerplate alone.
type FraudExplanation struct {
	Type    FraudType `json:"type"`
	Reasons []string  `json:"reasons"`
}
