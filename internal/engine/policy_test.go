package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Veraticus/docket/internal/model"
	"github.com/Veraticus/docket/internal/testutil"
)

func TestMatrixExpects(t *testing.T) {
	config := DefaultConfig()

	tests := []struct {
		name           string
		classification model.CustomerClassification
		expected       model.Recommendation
		score          float64
	}{
		{"repeat offender at zero risk", model.CustomerRepeatOffender, model.RecommendReject, 0.0},
		{"repeat offender at high risk", model.CustomerRepeatOffender, model.RecommendReject, 0.9},

		{"new customer at zero risk", model.CustomerNew, model.RecommendEscalate, 0.0},
		{"new customer at extreme risk", model.CustomerNew, model.RecommendEscalate, 0.99},

		{"fraud history at zero risk", model.CustomerFraudHistory, model.RecommendEscalate, 0.0},
		{"fraud history just under the lowered bar", model.CustomerFraudHistory, model.RecommendEscalate, 0.59},
		{"fraud history at the lowered bar", model.CustomerFraudHistory, model.RecommendReject, 0.60},
		{"fraud history at high risk", model.CustomerFraudHistory, model.RecommendReject, 0.95},

		{"clean history at zero risk", model.CustomerCleanHistory, model.RecommendApprove, 0.0},
		{"clean history just under the approve bar", model.CustomerCleanHistory, model.RecommendApprove, 0.29},
		{"clean history at the approve bar", model.CustomerCleanHistory, model.RecommendEscalate, 0.30},
		{"clean history just under the reject bar", model.CustomerCleanHistory, model.RecommendEscalate, 0.84},
		{"clean history at the reject bar", model.CustomerCleanHistory, model.RecommendReject, 0.85},
		{"clean history at maximum risk", model.CustomerCleanHistory, model.RecommendReject, 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, config.matrixExpects(tt.classification, tt.score))
		})
	}
}

func TestMatrixExpects_CustomThresholds(t *testing.T) {
	config := Config{ApproveBelow: 0.10, RejectAt: 0.50}

	assert.Equal(t, model.RecommendApprove, config.matrixExpects(model.CustomerCleanHistory, 0.09))
	assert.Equal(t, model.RecommendEscalate, config.matrixExpects(model.CustomerCleanHistory, 0.10))
	assert.Equal(t, model.RecommendEscalate, config.matrixExpects(model.CustomerCleanHistory, 0.49))
	assert.Equal(t, model.RecommendReject, config.matrixExpects(model.CustomerCleanHistory, 0.50))

	// The lowered fraud-history bar is fixed, not derived from RejectAt.
	assert.Equal(t, model.RecommendEscalate, config.matrixExpects(model.CustomerFraudHistory, 0.55))
	assert.Equal(t, model.RecommendReject, config.matrixExpects(model.CustomerFraudHistory, 0.60))
}

func TestModeFor(t *testing.T) {
	tests := []struct {
		name     string
		config   Config
		docType  model.DocumentType
		expected MatrixMode
	}{
		{
			name:     "zero config defaults to log",
			config:   Config{},
			docType:  model.DocTypeCheck,
			expected: MatrixModeLog,
		},
		{
			name:     "global mode applies",
			config:   Config{MatrixMode: MatrixModeOverride},
			docType:  model.DocTypeCheck,
			expected: MatrixModeOverride,
		},
		{
			name: "per-type mode beats global",
			config: Config{
				MatrixMode:       MatrixModeLog,
				MatrixModeByType: map[model.DocumentType]MatrixMode{model.DocTypeCheck: MatrixModeOverride},
			},
			docType:  model.DocTypeCheck,
			expected: MatrixModeOverride,
		},
		{
			name: "empty per-type entry falls back to global",
			config: Config{
				MatrixMode:       MatrixModeOverride,
				MatrixModeByType: map[model.DocumentType]MatrixMode{model.DocTypeCheck: ""},
			},
			docType:  model.DocTypeCheck,
			expected: MatrixModeOverride,
		},
		{
			name: "unlisted type uses global",
			config: Config{
				MatrixMode:       MatrixModeOverride,
				MatrixModeByType: map[model.DocumentType]MatrixMode{model.DocTypeCheck: MatrixModeLog},
			},
			docType:  model.DocTypePaystub,
			expected: MatrixModeOverride,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.config.modeFor(tt.docType))
		})
	}
}

func TestDuplicateKey(t *testing.T) {
	statementNoPeriod := testutil.StatementRecord(12384.50)
	delete(statementNoPeriod, "period_end")

	tests := []struct {
		rec      model.DocumentRecord
		name     string
		identity string
		expected string
		docType  model.DocumentType
	}{
		{
			name:     "statement keys on period end",
			identity: "JOHN DOE",
			docType:  model.DocTypeBankStatement,
			rec:      testutil.StatementRecord(12384.50),
			expected: "JOHN DOE|bank_statement|2026-02-28",
		},
		{
			name:     "statement falls back to statement date",
			identity: "JOHN DOE",
			docType:  model.DocTypeBankStatement,
			rec:      statementNoPeriod,
			expected: "JOHN DOE|bank_statement|2026-03-01",
		},
		{
			name:     "check keys on check number",
			identity: "JOHN DOE",
			docType:  model.DocTypeCheck,
			rec:      testutil.CheckRecord(),
			expected: "JOHN DOE|check|1044",
		},
		{
			name:     "paystub keys on pay date",
			identity: "JANE ROE",
			docType:  model.DocTypePaystub,
			rec:      testutil.PaystubRecord(),
			expected: "JANE ROE|paystub|2026-02-20",
		},
		{
			name:     "feed keys on account",
			identity: "JANE ROE",
			docType:  model.DocTypeTransactionFeed,
			rec:      testutil.FeedRecord(),
			expected: "JANE ROE|transaction_feed|acct-991",
		},
		{
			name:     "money order keys on serial number",
			identity: "JANE ROE",
			docType:  model.DocTypeMoneyOrder,
			rec:      model.DocumentRecord{"serial_number": "MO-4471", "amount": 500.00},
			expected: "JANE ROE|money_order|MO-4471",
		},
		{
			name:     "missing discriminator shares one key",
			identity: "JANE ROE",
			docType:  model.DocTypeMoneyOrder,
			rec:      model.DocumentRecord{"amount": 500.00},
			expected: "JANE ROE|money_order|-",
		},
		{
			name:     "identity is normalized",
			identity: "  john   doe ",
			docType:  model.DocTypeCheck,
			rec:      testutil.CheckRecord(),
			expected: "JOHN DOE|check|1044",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DuplicateKey(tt.identity, tt.docType, tt.rec))
		})
	}

	t.Run("distinct instruments get distinct keys", func(t *testing.T) {
		a := DuplicateKey("JOHN DOE", model.DocTypeCheck, model.DocumentRecord{"check_number": "1044"})
		b := DuplicateKey("JOHN DOE", model.DocTypeCheck, model.DocumentRecord{"check_number": "1045"})
		assert.NotEqual(t, a, b)
	})
}
