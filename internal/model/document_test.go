package model

import (
	"testing"
	"time"
)

func TestDocumentRecord_Accessors(t *testing.T) {
	rec := DocumentRecord{
		"account_holder":    "JANE ROE",
		"blank":             "   ",
		"beginning_balance": map[string]any{"value": "$8,542.75", "currency": "USD"},
		"statement_date":    "2026-03-15",
		"transactions": []any{
			map[string]any{"date": "2026-03-01", "description": "Payroll Deposit", "amount": 2100.00},
			map[string]any{"date": "not-a-date", "description": "Wire Transfer", "amount": "$500.00"},
			map[string]any{"date": "2026-03-02", "description": "ATM", "amount": "garbage"},
			"not a row",
		},
	}

	if s, ok := rec.String("account_holder"); !ok || s != "JANE ROE" {
		t.Errorf("String(account_holder) = %q, %v", s, ok)
	}
	if _, ok := rec.String("blank"); ok {
		t.Error("whitespace-only string should count as missing")
	}
	if v, ok := rec.Number("beginning_balance"); !ok || v != 8542.75 {
		t.Errorf("Number(beginning_balance) = %f, %v", v, ok)
	}
	if d, ok := rec.Date("statement_date"); !ok || !d.Equal(time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Date(statement_date) = %v, %v", d, ok)
	}
	if rec.Has("missing") {
		t.Error("Has(missing) should be false")
	}
	if !rec.Has("transactions") {
		t.Error("Has(transactions) should be true")
	}

	rows, ok := rec.Transactions("transactions")
	if !ok {
		t.Fatal("Transactions() not ok")
	}
	if len(rows) != 3 {
		t.Fatalf("decoded %d rows, want 3 (non-map entries skipped)", len(rows))
	}
	if !rows[0].DateValid || !rows[0].AmountValid {
		t.Error("first row should have valid date and amount")
	}
	if rows[1].DateValid {
		t.Error("second row has an unparseable date")
	}
	if rows[1].Amount != 500 || !rows[1].AmountValid {
		t.Errorf("second row amount = %f, valid=%v", rows[1].Amount, rows[1].AmountValid)
	}
	if rows[2].AmountValid {
		t.Error("third row has an unparseable amount")
	}
}

func TestTransactionRow_Signature(t *testing.T) {
	a := TransactionRow{RawDate: "2026-03-01", Amount: 50, Description: "Coffee Shop Downtown"}
	b := TransactionRow{RawDate: "2026-03-01", Amount: 50, Description: "COFFEE SHOP uptown branch"}
	c := TransactionRow{RawDate: "2026-03-02", Amount: 50, Description: "Coffee Shop Downtown"}

	if a.Signature() != b.Signature() {
		t.Errorf("prefix-equal rows should share a signature: %q vs %q", a.Signature(), b.Signature())
	}
	if a.Signature() == c.Signature() {
		t.Error("rows on different dates should not share a signature")
	}
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		in     string
		wantOK bool
	}{
		{"2026-01-31", true},
		{"2026-01-31T10:30:00Z", true},
		{"2026-01-31T10:30:00", true},
		{"01/31/2026", false},
		{"yesterday", false},
		{"", false},
	}
	for _, tt := range tests {
		if _, ok := ParseDate(tt.in); ok != tt.wantOK {
			t.Errorf("ParseDate(%q) ok = %v, want %v", tt.in, ok, tt.wantOK)
		}
	}
}

func TestDocumentType_Validate(t *testing.T) {
	for _, valid := range []DocumentType{DocTypeBankStatement, DocTypeCheck, DocTypeMoneyOrder, DocTypePaystub, DocTypeTransactionFeed} {
		if err := valid.Validate(); err != nil {
			t.Errorf("Validate(%s) = %v", valid, err)
		}
	}
	if err := DocumentType("invoice").Validate(); err == nil {
		t.Error("unknown document type should fail validation")
	}
}
