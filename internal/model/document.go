// Package model defines the core domain types shared across the application.
package model

import (
	"fmt"
	"strings"
	"time"
)

// DocumentType identifies which feature schema and policy defaults apply
// to a document under analysis.
type DocumentType string

// Supported document types.
const (
	DocTypeBankStatement   DocumentType = "bank_statement"
	DocTypeCheck           DocumentType = "check"
	DocTypeMoneyOrder      DocumentType = "money_order"
	DocTypePaystub         DocumentType = "paystub"
	DocTypeTransactionFeed DocumentType = "transaction_feed"
)

// Validate checks that the document type is one of the supported values.
func (d DocumentType) Validate() error {
	switch d {
	case DocTypeBankStatement, DocTypeCheck, DocTypeMoneyOrder, DocTypePaystub, DocTypeTransactionFeed:
		return nil
	default:
		return fmt.Errorf("unknown document type: %q", string(d))
	}
}

// DocumentRecord is the normalized output of the upstream extraction
// service: canonical field name to typed value. Amounts may arrive as raw
// numbers, currency strings, or {value, currency} objects; dates are
// ISO-8601 strings; transaction lists are arrays of {date, description,
// amount}. The record is owned by the caller and read-only here.
type DocumentRecord map[string]any

// String returns the named field as a non-empty trimmed string.
func (r DocumentRecord) String(key string) (string, bool) {
	v, ok := r[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	if !ok {
		return "", false
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	return s, true
}

// Number returns the named field normalized to a float64, accepting any
// of the three raw amount shapes.
func (r DocumentRecord) Number(key string) (float64, bool) {
	v, ok := r[key]
	if !ok {
		return 0, false
	}
	amt, err := ParseAmount(v)
	if err != nil {
		return 0, false
	}
	return amt.Value, true
}

// Date returns the named field parsed as an ISO-8601 date or timestamp.
func (r DocumentRecord) Date(key string) (time.Time, bool) {
	s, ok := r.String(key)
	if !ok {
		return time.Time{}, false
	}
	return ParseDate(s)
}

// Has reports whether the named field is present with a usable value.
// Empty strings and nils count as missing; any parseable amount, bool,
// or non-empty collection counts as present.
func (r DocumentRecord) Has(key string) bool {
	v, ok := r[key]
	if !ok || v == nil {
		return false
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t) != ""
	case []any:
		return len(t) > 0
	default:
		return true
	}
}

// Transactions returns the named field decoded as a transaction list.
// Rows that cannot be decoded at all are skipped; rows with a bad amount
// or date are kept with the corresponding Valid flag cleared so pattern
// features can still count them.
func (r DocumentRecord) Transactions(key string) ([]TransactionRow, bool) {
	v, ok := r[key]
	if !ok {
		return nil, false
	}
	list, ok := v.([]any)
	if !ok {
		return nil, false
	}
	rows := make([]TransactionRow, 0, len(list))
	for _, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		row := TransactionRow{}
		if s, ok := m["description"].(string); ok {
			row.Description = strings.TrimSpace(s)
		}
		if s, ok := m["date"].(string); ok {
			row.RawDate = s
			if d, ok := ParseDate(s); ok {
				row.Date = d
				row.DateValid = true
			}
		}
		if av, ok := m["amount"]; ok {
			if amt, err := ParseAmount(av); err == nil {
				row.Amount = amt.Value
				row.AmountValid = true
			}
		}
		rows = append(rows, row)
	}
	return rows, true
}

// TransactionRow is one entry of a document's transaction list.
type TransactionRow struct {
	Date        time.Time
	RawDate     string
	Description string
	Amount      float64
	DateValid   bool
	AmountValid bool
}

// Signature returns the composite row signature used for duplicate-row
// detection: date + amount + description prefix.
func (t TransactionRow) Signature() string {
	desc := strings.ToLower(t.Description)
	if len(desc) > 12 {
		desc = desc[:12]
	}
	return fmt.Sprintf("%s:%.2f:%s", t.RawDate, t.Amount, desc)
}

// dateFormats lists the accepted ISO-8601 layouts, most specific first.
var dateFormats = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseDate parses an ISO-8601 date or timestamp string.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// DocumentIssue is a non-fatal data-quality problem found during
// analysis. Issues are collected, never thrown: the pipeline runs to
// completion so that a full reasoning trail exists even for severely
// incomplete documents.
type DocumentIssue struct {
	Field   string
	Problem string
}

func (i DocumentIssue) String() string {
	if i.Field == "" {
		return i.Problem
	}
	return fmt.Sprintf("%s: %s", i.Field, i.Problem)
}

// IssueStrings flattens issues for persistence and prompt context.
func IssueStrings(issues []DocumentIssue) []string {
	if len(issues) == 0 {
		return nil
	}
	out := make([]string, len(issues))
	for i, issue := range issues {
		out[i] = issue.String()
	}
	return out
}
