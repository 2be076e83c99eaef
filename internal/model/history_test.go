package model

import "testing"

func TestCustomerHistory_Classify(t *testing.T) {
	id := int64(1)

	tests := []struct {
		name           string
		history        CustomerHistory
		escalateCounts bool
		want           CustomerClassification
	}{
		{
			name:    "no rows",
			history: CustomerHistory{Identity: "JOHN DOE"},
			want:    CustomerNew,
		},
		{
			name:    "clean history",
			history: CustomerHistory{Identity: "JOHN DOE", ID: &id, TotalSubmissions: 3},
			want:    CustomerCleanHistory,
		},
		{
			name:    "prior reject always gates",
			history: CustomerHistory{Identity: "JOHN DOE", ID: &id, FraudCount: 1},
			want:    CustomerRepeatOffender,
		},
		{
			name:    "prior escalate without gate",
			history: CustomerHistory{Identity: "JOHN DOE", ID: &id, EscalateCount: 2},
			want:    CustomerFraudHistory,
		},
		{
			name:           "prior escalate with gate enabled",
			history:        CustomerHistory{Identity: "JOHN DOE", ID: &id, EscalateCount: 1},
			escalateCounts: true,
			want:           CustomerRepeatOffender,
		},
		{
			name:           "reject outranks escalate gating",
			history:        CustomerHistory{Identity: "JOHN DOE", ID: &id, FraudCount: 2, EscalateCount: 1},
			escalateCounts: false,
			want:           CustomerRepeatOffender,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.history.Classify(tt.escalateCounts); got != tt.want {
				t.Errorf("Classify(%v) = %s, want %s", tt.escalateCounts, got, tt.want)
			}
		})
	}
}

func TestNormalizeIdentity(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"John Doe", "JOHN DOE"},
		{"  john   doe  ", "JOHN DOE"},
		{"JOHN DOE", "JOHN DOE"},
		{"acct-991", "ACCT-991"},
	}
	for _, tt := range tests {
		if got := NormalizeIdentity(tt.in); got != tt.want {
			t.Errorf("NormalizeIdentity(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
