package risk

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/docket/internal/feature"
	"github.com/Veraticus/docket/internal/model"
)

// cleanVector builds a vector whose features read as a fully coherent
// document: presence flags on, consistency checks passing, nothing flagged.
func cleanVector(t *testing.T, docType model.DocumentType) *model.FeatureVector {
	t.Helper()
	schema, err := feature.SchemaFor(docType)
	require.NoError(t, err)

	vec := &model.FeatureVector{Schema: docType, Names: schema.Names, Values: make([]float64, schema.N())}
	for i, name := range schema.Names {
		switch {
		case strings.HasPrefix(name, "has_"),
			strings.HasSuffix(name, "_consistency"),
			name == feature.FeatWrittenNumericMatch,
			name == "date_valid",
			name == "period_valid":
			vec.Values[i] = 1
		}
	}
	return vec
}

func setFeature(t *testing.T, vec *model.FeatureVector, name string, v float64) {
	t.Helper()
	for i, n := range vec.Names {
		if n == name {
			vec.Values[i] = v
			return
		}
	}
	t.Fatalf("feature %q not in schema %s", name, vec.Schema)
}

func checkRecord() model.DocumentRecord {
	return model.DocumentRecord{
		"check_number":   "1044",
		"date":           "2026-03-01",
		"payee":          "ACME SUPPLIES",
		"amount_numeric": 320.45,
		"amount_written": "Three Hundred Twenty and 45/100",
		"signature":      "J. Doe",
	}
}

func statementRecord(ending float64) model.DocumentRecord {
	return model.DocumentRecord{
		"account_number":    "12345678",
		"account_holder":    "JOHN DOE",
		"bank_name":         "First National Bank",
		"beginning_balance": 8542.75,
		"total_credits":     15230.00,
		"total_debits":      11388.25,
		"ending_balance":    ending,
	}
}

func TestAdjust_CleanDocumentUnchanged(t *testing.T) {
	adj := NewAdjuster(Config{}).Adjust(0.22, cleanVector(t, model.DocTypeCheck), checkRecord())

	assert.InDelta(t, 0.22, adj.Score, 1e-9)
	assert.Empty(t, adj.Anomalies)
	assert.Equal(t, model.RiskLow, adj.Level)
}

func TestAdjust_Penalties(t *testing.T) {
	tests := []struct {
		name      string
		docType   model.DocumentType
		rec       model.DocumentRecord
		mutate    func(t *testing.T, vec *model.FeatureVector)
		delta     float64
		anomalies []string
	}{
		{
			name:    "missing signature",
			docType: model.DocTypeCheck,
			rec:     checkRecord(),
			mutate: func(t *testing.T, vec *model.FeatureVector) {
				setFeature(t, vec, feature.FeatHasSignature, 0)
			},
			delta:     0.60,
			anomalies: []string{"signature missing", "320.45"},
		},
		{
			name:    "written numeric mismatch",
			docType: model.DocTypeCheck,
			rec:     checkRecord(),
			mutate: func(t *testing.T, vec *model.FeatureVector) {
				setFeature(t, vec, feature.FeatWrittenNumericMatch, 0)
			},
			delta:     0.40,
			anomalies: []string{"written amount", "320.45"},
		},
		{
			name:    "future dated",
			docType: model.DocTypeCheck,
			rec:     checkRecord(),
			mutate: func(t *testing.T, vec *model.FeatureVector) {
				setFeature(t, vec, feature.FeatFutureDated, 1)
			},
			delta:     0.40,
			anomalies: []string{"future", "2026-03-01"},
		},
		{
			name:    "failed balance consistency",
			docType: model.DocTypeBankStatement,
			rec:     statementRecord(9000.00),
			mutate: func(t *testing.T, vec *model.FeatureVector) {
				setFeature(t, vec, feature.FeatBalanceConsistency, 0)
			},
			delta:     0.35,
			anomalies: []string{"12384.50", "9000.00"},
		},
		{
			name:    "failed net pay consistency",
			docType: model.DocTypePaystub,
			rec: model.DocumentRecord{
				"employer_name": "Initech LLC", "employee_name": "JANE ROE",
				"gross_pay": 4200.00, "total_deductions": 900.00, "net_pay": 5100.00,
			},
			mutate: func(t *testing.T, vec *model.FeatureVector) {
				setFeature(t, vec, feature.FeatNetPayConsistency, 0)
			},
			delta:     0.35,
			anomalies: []string{"3300.00", "5100.00"},
		},
		{
			name:    "over instrument limit",
			docType: model.DocTypeMoneyOrder,
			rec: model.DocumentRecord{
				"serial_number": "MO-55231", "date": "2026-03-05",
				"payee": "CASH", "amount": 1500.00,
			},
			mutate: func(t *testing.T, vec *model.FeatureVector) {
				setFeature(t, vec, feature.FeatOverLimit, 1)
			},
			delta:     0.30,
			anomalies: []string{"1500.00", "1000.00"},
		},
		{
			name:    "future dated transaction share",
			docType: model.DocTypeTransactionFeed,
			rec: model.DocumentRecord{
				"account_id": "acct-991", "transactions": []any{map[string]any{"date": "2026-01-01", "amount": 1.0}},
			},
			mutate: func(t *testing.T, vec *model.FeatureVector) {
				setFeature(t, vec, feature.FeatFutureDatedRatio, 0.5)
			},
			delta:     0.40,
			anomalies: []string{"50%", "future-dated"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vec := cleanVector(t, tt.docType)
			tt.mutate(t, vec)

			adj := NewAdjuster(Config{}).Adjust(0.10, vec, tt.rec)

			assert.InDelta(t, 0.10+tt.delta, adj.Score, 1e-9)
			require.NotEmpty(t, adj.Anomalies)
			joined := strings.Join(adj.Anomalies, " | ")
			for _, want := range tt.anomalies {
				assert.Contains(t, joined, want)
			}
		})
	}
}

func TestAdjust_GraduatedMissingCriticals(t *testing.T) {
	tests := []struct {
		name   string
		absent []string
		delta  float64
	}{
		{name: "one missing", absent: []string{"bank_name"}, delta: 0.10},
		{name: "two missing", absent: []string{"bank_name", "account_number"}, delta: 0.25},
		{name: "three missing", absent: []string{"bank_name", "account_number", "account_holder"}, delta: 0.45},
		{name: "four missing", absent: []string{"bank_name", "account_number", "account_holder", "ending_balance"}, delta: 0.45},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := statementRecord(12384.50)
			for _, field := range tt.absent {
				delete(rec, field)
			}

			adj := NewAdjuster(Config{}).Adjust(0.10, cleanVector(t, model.DocTypeBankStatement), rec)

			assert.InDelta(t, 0.10+tt.delta, adj.Score, 1e-9)
			joined := strings.Join(adj.Anomalies, " ")
			assert.Contains(t, joined, tt.absent[0])
		})
	}
}

func TestAdjust_CompoundingClamps(t *testing.T) {
	vec := cleanVector(t, model.DocTypeCheck)
	setFeature(t, vec, feature.FeatHasSignature, 0)
	setFeature(t, vec, feature.FeatWrittenNumericMatch, 0)
	setFeature(t, vec, feature.FeatFutureDated, 1)

	// Empty record: every critical field missing on top of the flags.
	adj := NewAdjuster(Config{}).Adjust(0.20, vec, model.DocumentRecord{})

	assert.Equal(t, 1.0, adj.Score, "compounded penalties clamp to 1")
	assert.Equal(t, model.RiskCritical, adj.Level)
	assert.GreaterOrEqual(t, len(adj.Anomalies), 4)
}

func TestLevels_Bucketing(t *testing.T) {
	adjuster := NewAdjuster(Config{})

	tests := []struct {
		score float64
		want  model.RiskLevel
	}{
		{0.0, model.RiskLow},
		{0.29, model.RiskLow},
		{0.30, model.RiskMedium},
		{0.59, model.RiskMedium},
		{0.60, model.RiskHigh},
		{0.84, model.RiskHigh},
		{0.85, model.RiskCritical},
		{1.0, model.RiskCritical},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, adjuster.LevelFor(model.DocTypeCheck, tt.score), "score %.2f", tt.score)
	}
}

func TestLevels_PerTypeOverride(t *testing.T) {
	adjuster := NewAdjuster(Config{
		Overrides: map[model.DocumentType]Levels{
			model.DocTypeMoneyOrder: {Medium: 0.20, High: 0.50, Critical: 0.70},
		},
	})

	assert.Equal(t, model.RiskCritical, adjuster.LevelFor(model.DocTypeMoneyOrder, 0.80))
	assert.Equal(t, model.RiskHigh, adjuster.LevelFor(model.DocTypeCheck, 0.80))
}
