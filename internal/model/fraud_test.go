package model

import "testing"

func TestFraudType_SeverityOrder(t *testing.T) {
	// The full taxonomy in severity order, most severe first.
	ordered := []FraudType{
		FraudRepeatOffender,
		FraudDocumentFabrication,
		FraudDocumentAlteration,
		FraudSuspiciousTransactions,
		FraudConsistencyViolation,
		FraudUnrealisticProportions,
	}

	for i := 1; i < len(ordered); i++ {
		if !ordered[i-1].MoreSevereThan(ordered[i]) {
			t.Errorf("%s should outrank %s", ordered[i-1], ordered[i])
		}
	}

	if FraudType("unknown").MoreSevereThan(FraudUnrealisticProportions) {
		t.Error("unknown categories must rank below every known category")
	}
}
