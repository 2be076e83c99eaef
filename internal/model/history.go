package model

import "strings"

// CustomerClassification buckets an identity by its ledger history for
// the decision policy.
type CustomerClassification string

// Classifications, in increasing order of concern.
const (
	CustomerNew            CustomerClassification = "NEW"
	CustomerCleanHistory   CustomerClassification = "CLEAN_HISTORY"
	CustomerFraudHistory   CustomerClassification = "FRAUD_HISTORY"
	CustomerRepeatOffender CustomerClassification = "REPEAT_OFFENDER"
)

// CustomerHistory is the ledger's aggregated view of one identity.
// FraudCount and EscalateCount are the MAXIMUM values observed across
// all stored rows for the identity, not merely the latest row's values:
// duplicate-insert races may leave rows with stale counters, and taking
// the maximum keeps the aggregate monotonic regardless.
type CustomerHistory struct {
	Identity           string
	ID                 *int64
	FraudCount         int
	EscalateCount      int
	LastRecommendation Recommendation
	TotalSubmissions   int
}

// Seen reports whether the ledger holds any rows for this identity.
func (h *CustomerHistory) Seen() bool {
	return h.ID != nil
}

// Classify derives the policy classification. A prior REJECT always
// gates as repeat offender; whether a prior ESCALATE also gates is a
// deployment decision (escalateCounts).
func (h *CustomerHistory) Classify(escalateCounts bool) CustomerClassification {
	if !h.Seen() {
		return CustomerNew
	}
	if h.FraudCount > 0 {
		return CustomerRepeatOffender
	}
	if h.EscalateCount > 0 {
		if escalateCounts {
			return CustomerRepeatOffender
		}
		return CustomerFraudHistory
	}
	return CustomerCleanHistory
}

// NormalizeIdentity maps a raw identity string to the stable ledger key
// shared by all rows for one submitter.
func NormalizeIdentity(identity string) string {
	return strings.ToUpper(strings.Join(strings.Fields(identity), " "))
}
