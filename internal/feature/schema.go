// Package feature turns normalized document records into fixed-length
// numeric feature vectors, one schema per document type.
package feature

import (
	"fmt"

	"github.com/Veraticus/docket/internal/model"
)

// Feature names referenced outside this package (risk heuristics and
// fraud-type triggers key off these).
const (
	FeatBalanceConsistency  = "balance_consistency"
	FeatActivityConsistency = "activity_consistency"
	FeatNetPayConsistency   = "net_pay_consistency"
	FeatWrittenNumericMatch = "written_numeric_match"
	FeatHasSignature        = "has_signature"
	FeatFutureDated         = "future_dated"
	FeatFutureDatedRatio    = "future_dated_ratio"
	FeatDuplicateRowRatio   = "duplicate_row_ratio"
	FeatRoundAmountRatio    = "round_amount_ratio"
	FeatNetToGrossRatio     = "net_to_gross_ratio"
	FeatOverLimit           = "over_limit"
	FeatAmountToLimitRatio  = "amount_to_limit_ratio"
	FeatBurstRatio          = "burst_ratio"
)

// Schema fixes the ordered feature-name list and the critical source
// fields for one document type. The vector length N for a type is
// exactly len(Names); the extractor never pads or truncates.
type Schema struct {
	Type     model.DocumentType
	Names    []string
	Critical []string
}

// N is the fixed vector length for this schema.
func (s Schema) N() int {
	return len(s.Names)
}

var schemas = map[model.DocumentType]Schema{
	model.DocTypeBankStatement: {
		Type: model.DocTypeBankStatement,
		Names: []string{
			"has_account_number",
			"has_account_holder",
			"has_bank_name",
			"has_statement_period",
			"beginning_balance_magnitude",
			"ending_balance_magnitude",
			"total_credits_magnitude",
			"total_debits_magnitude",
			FeatBalanceConsistency,
			FeatActivityConsistency,
			"transaction_count",
			FeatRoundAmountRatio,
			FeatDuplicateRowRatio,
			"period_valid",
			FeatFutureDated,
			"document_age",
		},
		Critical: []string{"account_number", "account_holder", "bank_name", "beginning_balance", "ending_balance"},
	},
	model.DocTypeCheck: {
		Type: model.DocTypeCheck,
		Names: []string{
			"has_check_number",
			"has_date",
			"has_payee",
			"has_amount_written",
			FeatHasSignature,
			"has_routing_number",
			"amount_magnitude",
			FeatWrittenNumericMatch,
			"round_amount",
			"date_valid",
			FeatFutureDated,
			"document_age",
		},
		Critical: []string{"check_number", "date", "payee", "amount_numeric", "signature"},
	},
	model.DocTypeMoneyOrder: {
		Type: model.DocTypeMoneyOrder,
		Names: []string{
			"has_serial_number",
			"has_date",
			"has_payee",
			"has_purchaser",
			"amount_magnitude",
			FeatAmountToLimitRatio,
			FeatOverLimit,
			"round_amount",
			"date_valid",
			FeatFutureDated,
		},
		Critical: []string{"serial_number", "date", "payee", "amount"},
	},
	model.DocTypePaystub: {
		Type: model.DocTypePaystub,
		Names: []string{
			"has_employer",
			"has_employee",
			"has_pay_period",
			"has_pay_date",
			"gross_magnitude",
			"net_magnitude",
			FeatNetToGrossRatio,
			"deductions_to_gross_ratio",
			FeatNetPayConsistency,
			"round_net_pay",
			"period_valid",
			FeatFutureDated,
			"document_age",
			"has_ytd_gross",
		},
		Critical: []string{"employer_name", "employee_name", "gross_pay", "net_pay"},
	},
	model.DocTypeTransactionFeed: {
		Type: model.DocTypeTransactionFeed,
		Names: []string{
			"has_account_id",
			"transaction_count",
			"total_inflow_magnitude",
			"total_outflow_magnitude",
			"avg_amount_magnitude",
			"max_amount_magnitude",
			FeatBalanceConsistency,
			FeatRoundAmountRatio,
			"duplicate_txn_ratio",
			FeatBurstRatio,
			FeatFutureDatedRatio,
			"span_days",
		},
		Critical: []string{"account_id", "transactions"},
	},
}

// SchemaFor returns the feature schema for a document type.
func SchemaFor(docType model.DocumentType) (Schema, error) {
	s, ok := schemas[docType]
	if !ok {
		return Schema{}, fmt.Errorf("no feature schema for document type %q", docType)
	}
	return s, nil
}

// MissingCritical lists the schema's critical source fields absent from
// the record. Shared by the extractor's issue collection and the risk
// heuristics so both count from the same definition.
func MissingCritical(rec model.DocumentRecord, docType model.DocumentType) []string {
	s, ok := schemas[docType]
	if !ok {
		return nil
	}
	var missing []string
	for _, key := range s.Critical {
		if !rec.Has(key) {
			missing = append(missing, key)
		}
	}
	return missing
}
