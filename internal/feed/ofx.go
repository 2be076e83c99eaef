package feed

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/aclindsa/ofxgo"

	"github.com/Veraticus/docket/internal/model"
)

// OFXSource reads an OFX/QFX statement file and yields one
// bank_statement document per statement in the file.
type OFXSource struct {
	path     string
	identity string
}

// NewOFXSource creates a source for one statement file. The identity is
// the submitter the statements belong to.
func NewOFXSource(path, identity string) *OFXSource {
	return &OFXSource{path: path, identity: identity}
}

// Fetch parses the file and returns its statements as documents.
func (s *OFXSource) Fetch(ctx context.Context) ([]Item, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open OFX file: %w", err)
	}
	defer func() { _ = f.Close() }()

	return ParseOFX(ctx, f, s.identity)
}

// ParseOFX parses OFX/QFX content into bank statement documents. Bank
// and credit card statements both map to bank_statement records; the
// transaction list keeps its signed amounts so the reported activity
// totals can be checked downstream.
func ParseOFX(_ context.Context, reader io.Reader, identity string) ([]Item, error) {
	content, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read OFX file: %w", err)
	}

	resp, err := ofxgo.ParseResponse(strings.NewReader(preprocessOFX(string(content))))
	if err != nil {
		return nil, fmt.Errorf("failed to parse OFX file: %w", err)
	}

	bankName := strings.TrimSpace(string(resp.Signon.Org))

	var items []Item
	for _, msg := range resp.Bank {
		stmt, ok := msg.(*ofxgo.StatementResponse)
		if !ok {
			continue
		}
		balance, _ := stmt.BalAmt.Float64()
		rec := statementRecord(identity, bankName, string(stmt.BankAcctFrom.AcctID), stmt.BankTranList, balance, stmt.DtAsOf.Time)
		items = append(items, Item{Record: rec, Identity: identity, DocumentType: model.DocTypeBankStatement})
	}
	for _, msg := range resp.CreditCard {
		stmt, ok := msg.(*ofxgo.CCStatementResponse)
		if !ok {
			continue
		}
		balance, _ := stmt.BalAmt.Float64()
		rec := statementRecord(identity, bankName, string(stmt.CCAcctFrom.AcctID), stmt.BankTranList, balance, stmt.DtAsOf.Time)
		items = append(items, Item{Record: rec, Identity: identity, DocumentType: model.DocTypeBankStatement})
	}

	slog.Info("Parsed OFX file",
		"statements", len(items),
		"identity", identity)

	return items, nil
}

// statementRecord builds one bank_statement document from an OFX
// statement. OFX carries no beginning balance, so the record omits it;
// the credit and debit totals are summed from the rows.
func statementRecord(identity, bankName, accountID string, list *ofxgo.TransactionList, balance float64, asOf time.Time) model.DocumentRecord {
	rec := model.DocumentRecord{
		"account_number": accountID,
		"account_holder": identity,
		"ending_balance": balance,
	}
	if bankName != "" {
		rec["bank_name"] = bankName
	}
	if !asOf.IsZero() {
		rec["statement_date"] = asOf.Format("2006-01-02")
	}

	if list == nil {
		return rec
	}

	if !list.DtStart.Time.IsZero() {
		rec["period_start"] = list.DtStart.Time.Format("2006-01-02")
	}
	if !list.DtEnd.Time.IsZero() {
		rec["period_end"] = list.DtEnd.Time.Format("2006-01-02")
	}

	rows := make([]any, 0, len(list.Transactions))
	var credits, debits float64
	for _, tx := range list.Transactions {
		amount, _ := tx.TrnAmt.Float64()
		rows = append(rows, map[string]any{
			"date":        tx.DtPosted.Time.Format("2006-01-02"),
			"description": txDescription(tx),
			"amount":      amount,
		})
		if amount >= 0 {
			credits += amount
		} else {
			debits += -amount
		}
	}
	rec["transactions"] = rows
	rec["total_credits"] = credits
	rec["total_debits"] = debits

	return rec
}

// txDescription picks the most specific description OFX offers: the
// payee aggregate, then the name, then the memo.
func txDescription(tx ofxgo.Transaction) string {
	if tx.Payee != nil && tx.Payee.Name != "" {
		return strings.TrimSpace(string(tx.Payee.Name))
	}
	if name := strings.TrimSpace(string(tx.Name)); name != "" {
		return name
	}
	return strings.TrimSpace(string(tx.Memo))
}

// preprocessOFX fixes common formatting issues in bank-exported OFX
// files before handing them to the parser.
func preprocessOFX(content string) string {
	content = strings.TrimLeft(content, " \t\r\n")

	// Mixed-case SEVERITY values (should be INFO, WARN, or ERROR).
	severityRegex := regexp.MustCompile(`(?i)<SEVERITY>(Info|Warn|Error)</SEVERITY>`)
	content = severityRegex.ReplaceAllStringFunc(content, strings.ToUpper)

	// SGML-style files with missing closing angle brackets: an opening
	// tag alone on its line gets its bracket back.
	tagFixRegex := regexp.MustCompile(`(?m)^(\s*<[A-Z][A-Z0-9._]*[A-Z0-9])$`)
	content = tagFixRegex.ReplaceAllString(content, "$1>")

	return content
}
