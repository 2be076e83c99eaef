package testutil

import "github.com/Veraticus/docket/internal/model"

// StatementRecord returns a complete bank statement whose transactions
// reconcile: 8542.75 beginning + 15230.00 credits - 11388.25 debits =
// 12384.50. Pass a different ending balance to break the reconciliation.
func StatementRecord(endingBalance any) model.DocumentRecord {
	return model.DocumentRecord{
		"account_number":    "12345678",
		"account_holder":    "JOHN DOE",
		"bank_name":         "First National Bank",
		"period_start":      "2026-02-01",
		"period_end":        "2026-02-28",
		"statement_date":    "2026-03-01",
		"beginning_balance": 8542.75,
		"total_credits":     15230.00,
		"total_debits":      11388.25,
		"ending_balance":    endingBalance,
		"transactions": []any{
			map[string]any{"date": "2026-02-03", "description": "Payroll Deposit", "amount": 15230.00},
			map[string]any{"date": "2026-02-10", "description": "Rent Payment", "amount": -2200.00},
			map[string]any{"date": "2026-02-15", "description": "Utility Bill", "amount": -9188.25},
		},
	}
}

// CheckRecord returns a coherent check: all critical fields present and
// the written amount agreeing with the numeric one.
func CheckRecord() model.DocumentRecord {
	return model.DocumentRecord{
		"check_number":   "1044",
		"date":           "2026-03-01",
		"payee":          "ACME SUPPLIES",
		"amount_numeric": 320.45,
		"amount_written": "Three Hundred Twenty and 45/100",
		"signature":      "J. Doe",
		"routing_number": "021000021",
	}
}

// PaystubRecord returns a paystub whose pay math reconciles:
// 4200.00 gross - 900.00 deductions = 3300.00 net.
func PaystubRecord() model.DocumentRecord {
	return model.DocumentRecord{
		"employer_name":    "Initech LLC",
		"employee_name":    "JANE ROE",
		"pay_period_start": "2026-02-01",
		"pay_period_end":   "2026-02-15",
		"pay_date":         "2026-02-20",
		"gross_pay":        4200.00,
		"net_pay":          3300.00,
		"total_deductions": 900.00,
	}
}

// FeedRecord returns a transaction feed with no suspicious patterns.
func FeedRecord() model.DocumentRecord {
	return model.DocumentRecord{
		"account_id": "acct-991",
		"transactions": []any{
			map[string]any{"date": "2026-02-02", "description": "Coffee Shop", "amount": -4.75},
			map[string]any{"date": "2026-02-09", "description": "Grocery Store", "amount": -82.13},
			map[string]any{"date": "2026-02-16", "description": "Payroll Deposit", "amount": 2150.33},
			map[string]any{"date": "2026-02-23", "description": "Utility Bill", "amount": -96.41},
		},
	}
}
