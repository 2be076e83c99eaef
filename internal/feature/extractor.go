package feature

import (
	"fmt"
	"math"
	"time"

	"github.com/Veraticus/docket/internal/model"
)

// Magnitude caps per feature family. Magnitudes normalize as
// min(|value|, cap) / cap so one absurd number cannot dominate scale.
const (
	capBalance     = 1_000_000.0
	capCheckAmount = 100_000.0
	capPayAmount   = 50_000.0
	capFeedAmount  = 100_000.0

	// MoneyOrderLimit is the usual issuer maximum for a single order.
	MoneyOrderLimit = 1_000.0

	maxAgeDays       = 365.0
	maxStatementRows = 200.0
	maxFeedRows      = 500.0
)

// Extractor builds feature vectors from document records. The clock is
// injectable so temporal features stay deterministic under test.
type Extractor struct {
	now func() time.Time
}

// NewExtractor creates an extractor using the wall clock.
func NewExtractor() *Extractor {
	return &Extractor{now: time.Now}
}

// NewExtractorAt creates an extractor with a fixed clock.
func NewExtractorAt(now func() time.Time) *Extractor {
	return &Extractor{now: now}
}

// Extract computes the feature vector for a document. Missing source
// fields become documented defaults (0.0, except consistency checks
// which default to 0.5 when their inputs are unavailable) and are
// reported as issues rather than errors; the only error case is the
// vector-length invariant, which indicates schema drift.
func (e *Extractor) Extract(rec model.DocumentRecord, docType model.DocumentType, ocrText string) (*model.FeatureVector, []model.DocumentIssue, error) {
	schema, err := SchemaFor(docType)
	if err != nil {
		return nil, nil, err
	}

	b := &builder{rec: rec, now: e.now(), feats: make(map[string]float64, schema.N())}

	if len(rec) == 0 && ocrText == "" {
		b.issue("", "document has no extractable content")
	}
	for _, key := range MissingCritical(rec, docType) {
		b.issue(key, "required field missing")
	}

	switch docType {
	case model.DocTypeBankStatement:
		b.bankStatement()
	case model.DocTypeCheck:
		b.check()
	case model.DocTypeMoneyOrder:
		b.moneyOrder()
	case model.DocTypePaystub:
		b.paystub()
	case model.DocTypeTransactionFeed:
		b.transactionFeed()
	}

	vector := &model.FeatureVector{
		Schema: docType,
		Names:  schema.Names,
		Values: make([]float64, 0, schema.N()),
	}
	for _, name := range schema.Names {
		v, ok := b.feats[name]
		if !ok {
			return nil, nil, &model.ExtractionInvariantError{
				Schema:    docType,
				GotValues: len(b.feats),
				GotNames:  schema.N(),
				Want:      schema.N(),
			}
		}
		vector.Values = append(vector.Values, v)
	}
	if err := vector.Validate(schema.N()); err != nil {
		return nil, nil, err
	}

	return vector, b.issues, nil
}

// builder accumulates features and data-quality issues for one record.
type builder struct {
	rec    model.DocumentRecord
	now    time.Time
	feats  map[string]float64
	issues []model.DocumentIssue
}

func (b *builder) set(name string, v float64) {
	b.feats[name] = v
}

func (b *builder) setBool(name string, v bool) {
	if v {
		b.feats[name] = 1.0
	} else {
		b.feats[name] = 0.0
	}
}

func (b *builder) issue(field, problem string) {
	b.issues = append(b.issues, model.DocumentIssue{Field: field, Problem: problem})
}

// amount reads a monetary field, reporting present-but-unparseable
// values as issues.
func (b *builder) amount(key string) (float64, bool) {
	if !b.rec.Has(key) {
		return 0, false
	}
	v, ok := b.rec.Number(key)
	if !ok {
		b.issue(key, "unparseable amount")
		return 0, false
	}
	return v, true
}

// date reads a date field, reporting present-but-unparseable values as
// issues.
func (b *builder) date(key string) (time.Time, bool) {
	if !b.rec.Has(key) {
		return time.Time{}, false
	}
	d, ok := b.rec.Date(key)
	if !ok {
		b.issue(key, "unparseable date")
		return time.Time{}, false
	}
	return d, true
}

func (b *builder) bankStatement() {
	b.setBool("has_account_number", b.rec.Has("account_number"))
	b.setBool("has_account_holder", b.rec.Has("account_holder"))
	b.setBool("has_bank_name", b.rec.Has("bank_name"))

	periodStart, startOK := b.date("period_start")
	periodEnd, endOK := b.date("period_end")
	b.setBool("has_statement_period", startOK && endOK)
	b.setBool("period_valid", startOK && endOK && !periodStart.After(periodEnd))

	beginning, begOK := b.amount("beginning_balance")
	ending, endBalOK := b.amount("ending_balance")
	credits, credOK := b.amount("total_credits")
	debits, debOK := b.amount("total_debits")

	b.set("beginning_balance_magnitude", capMagnitude(beginning, capBalance))
	b.set("ending_balance_magnitude", capMagnitude(ending, capBalance))
	b.set("total_credits_magnitude", capMagnitude(credits, capBalance))
	b.set("total_debits_magnitude", capMagnitude(debits, capBalance))

	// Arithmetic identity: ending = beginning + credits - debits.
	if begOK && endBalOK && credOK && debOK {
		b.set(FeatBalanceConsistency, triLevelMatch(beginning+credits-debits, ending))
	} else {
		b.set(FeatBalanceConsistency, 0.5)
	}

	rows, hasRows := b.rec.Transactions("transactions")
	if credOK && debOK && hasRows && len(rows) > 0 {
		var sum float64
		allValid := true
		for _, row := range rows {
			if !row.AmountValid {
				allValid = false
				break
			}
			sum += row.Amount
		}
		if allValid {
			b.set(FeatActivityConsistency, triLevelMatch(credits-debits, sum))
		} else {
			b.issue("transactions", "rows with unparseable amounts")
			b.set(FeatActivityConsistency, 0.5)
		}
	} else {
		b.set(FeatActivityConsistency, 0.5)
	}

	b.set("transaction_count", math.Min(float64(len(rows)), maxStatementRows)/maxStatementRows)
	b.set(FeatRoundAmountRatio, roundAmountRatio(rows))
	b.set(FeatDuplicateRowRatio, duplicateRowRatio(rows))

	statementDate, stmtOK := b.date("statement_date")
	future := (endOK && periodEnd.After(b.now)) || (stmtOK && statementDate.After(b.now))
	b.setBool(FeatFutureDated, future)

	ageFrom := statementDate
	if !stmtOK {
		ageFrom = periodEnd
	}
	b.set("document_age", normalizedAge(ageFrom, b.now))
}

func (b *builder) check() {
	b.setBool("has_check_number", b.rec.Has("check_number"))
	b.setBool("has_payee", b.rec.Has("payee"))
	b.setBool("has_amount_written", b.rec.Has("amount_written"))
	b.setBool(FeatHasSignature, b.rec.Has("signature"))
	b.setBool("has_routing_number", b.rec.Has("routing_number"))

	date, dateOK := b.date("date")
	b.setBool("has_date", b.rec.Has("date"))
	b.setBool("date_valid", dateOK)
	b.setBool(FeatFutureDated, dateOK && date.After(b.now))
	b.set("document_age", normalizedAge(date, b.now))

	numeric, numOK := b.amount("amount_numeric")
	b.set("amount_magnitude", capMagnitude(numeric, capCheckAmount))
	b.setBool("round_amount", numOK && isRoundAmount(numeric))

	// Cross-check the written amount against the numeric one.
	match := 0.5
	if written, ok := b.rec.String("amount_written"); ok && numOK {
		if wv, parsed := ParseWrittenAmount(written); parsed {
			match = triLevelMatch(wv, numeric)
		} else {
			b.issue("amount_written", "unparseable written amount")
		}
	}
	b.set(FeatWrittenNumericMatch, match)
}

func (b *builder) moneyOrder() {
	b.setBool("has_serial_number", b.rec.Has("serial_number"))
	b.setBool("has_payee", b.rec.Has("payee"))
	b.setBool("has_purchaser", b.rec.Has("purchaser"))

	date, dateOK := b.date("date")
	b.setBool("has_date", b.rec.Has("date"))
	b.setBool("date_valid", dateOK)
	b.setBool(FeatFutureDated, dateOK && date.After(b.now))

	amount, amtOK := b.amount("amount")
	b.set("amount_magnitude", capMagnitude(amount, MoneyOrderLimit))
	b.set(FeatAmountToLimitRatio, boundRatio(amount, MoneyOrderLimit, 2.0))
	b.setBool(FeatOverLimit, amtOK && amount > MoneyOrderLimit)
	b.setBool("round_amount", amtOK && isRoundAmount(amount))
}

func (b *builder) paystub() {
	b.setBool("has_employer", b.rec.Has("employer_name"))
	b.setBool("has_employee", b.rec.Has("employee_name"))
	b.setBool("has_ytd_gross", b.rec.Has("ytd_gross"))

	periodStart, startOK := b.date("pay_period_start")
	periodEnd, endOK := b.date("pay_period_end")
	b.setBool("has_pay_period", startOK && endOK)
	b.setBool("period_valid", startOK && endOK && !periodStart.After(periodEnd))

	payDate, payDateOK := b.date("pay_date")
	b.setBool("has_pay_date", payDateOK)
	future := (payDateOK && payDate.After(b.now)) || (endOK && periodEnd.After(b.now))
	b.setBool(FeatFutureDated, future)
	b.set("document_age", normalizedAge(payDate, b.now))

	gross, grossOK := b.amount("gross_pay")
	net, netOK := b.amount("net_pay")
	deductions, dedOK := b.amount("total_deductions")

	b.set("gross_magnitude", capMagnitude(gross, capPayAmount))
	b.set("net_magnitude", capMagnitude(net, capPayAmount))

	if grossOK && gross > 0 && netOK {
		b.set(FeatNetToGrossRatio, boundRatio(net, gross, 2.0))
	} else {
		b.set(FeatNetToGrossRatio, 0)
	}
	if grossOK && gross > 0 && dedOK {
		b.set("deductions_to_gross_ratio", boundRatio(deductions, gross, 1.5))
	} else {
		b.set("deductions_to_gross_ratio", 0)
	}

	// Arithmetic identity: net = gross - deductions.
	if grossOK && netOK && dedOK {
		b.set(FeatNetPayConsistency, triLevelMatch(gross-deductions, net))
	} else {
		b.set(FeatNetPayConsistency, 0.5)
	}

	b.setBool("round_net_pay", netOK && isRoundAmount(net))
}

func (b *builder) transactionFeed() {
	b.setBool("has_account_id", b.rec.Has("account_id"))

	rows, _ := b.rec.Transactions("transactions")
	n := len(rows)
	b.set("transaction_count", math.Min(float64(n), maxFeedRows)/maxFeedRows)

	var inflow, outflow, maxAbs float64
	var validAmounts int
	var futureRows int
	perDay := make(map[string]int, n)
	var first, last time.Time
	for _, row := range rows {
		if row.AmountValid {
			validAmounts++
			abs := math.Abs(row.Amount)
			if row.Amount >= 0 {
				inflow += row.Amount
			} else {
				outflow += abs
			}
			if abs > maxAbs {
				maxAbs = abs
			}
		}
		if row.DateValid {
			perDay[row.Date.Format("2006-01-02")]++
			if row.Date.After(b.now) {
				futureRows++
			}
			if first.IsZero() || row.Date.Before(first) {
				first = row.Date
			}
			if last.IsZero() || row.Date.After(last) {
				last = row.Date
			}
		}
	}

	b.set("total_inflow_magnitude", capMagnitude(inflow, capBalance))
	b.set("total_outflow_magnitude", capMagnitude(outflow, capBalance))

	avg := 0.0
	if validAmounts > 0 {
		avg = (inflow + outflow) / float64(validAmounts)
	}
	b.set("avg_amount_magnitude", capMagnitude(avg, capFeedAmount))
	b.set("max_amount_magnitude", capMagnitude(maxAbs, capFeedAmount))

	beginning, begOK := b.amount("beginning_balance")
	ending, endOK := b.amount("ending_balance")
	if begOK && endOK && validAmounts == n && n > 0 {
		b.set(FeatBalanceConsistency, triLevelMatch(beginning+inflow-outflow, ending))
	} else {
		b.set(FeatBalanceConsistency, 0.5)
	}

	b.set(FeatRoundAmountRatio, roundAmountRatio(rows))
	b.set("duplicate_txn_ratio", duplicateRowRatio(rows))

	maxDay := 0
	for _, c := range perDay {
		if c > maxDay {
			maxDay = c
		}
	}
	if n > 0 {
		b.set(FeatBurstRatio, float64(maxDay)/float64(n))
		b.set(FeatFutureDatedRatio, float64(futureRows)/float64(n))
	} else {
		b.set(FeatBurstRatio, 0)
		b.set(FeatFutureDatedRatio, 0)
	}

	span := 0.0
	if !first.IsZero() && !last.IsZero() {
		span = last.Sub(first).Hours() / 24
	}
	b.set("span_days", math.Min(span, maxAgeDays)/maxAgeDays)
}

// ExpectedEndingBalance recomputes the statement identity from raw
// fields. The fraud-type classifier uses it to cite both sides of a
// failed reconciliation in its explanation.
func ExpectedEndingBalance(rec model.DocumentRecord) (expected, reported float64, ok bool) {
	beginning, ok1 := rec.Number("beginning_balance")
	credits, ok2 := rec.Number("total_credits")
	debits, ok3 := rec.Number("total_debits")
	ending, ok4 := rec.Number("ending_balance")
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return 0, 0, false
	}
	return beginning + credits - debits, ending, true
}

// triLevelMatch scores an arithmetic identity: 1.0 for a match exact to
// the cent, 0.5 within max($1.00, 0.5%) of the expected value, 0.0
// otherwise.
func triLevelMatch(expected, actual float64) float64 {
	diff := math.Abs(expected - actual)
	if diff <= 0.005 {
		return 1.0
	}
	tolerance := math.Max(1.00, math.Abs(expected)*0.005)
	if diff <= tolerance {
		return 0.5
	}
	return 0.0
}

// capMagnitude normalizes |v| against a cap into [0,1].
func capMagnitude(v, limit float64) float64 {
	return math.Min(math.Abs(v), limit) / limit
}

// boundRatio computes num/den bounded to [0, limit]; a non-positive
// denominator yields 0.
func boundRatio(num, den, limit float64) float64 {
	if den <= 0 {
		return 0
	}
	r := num / den
	if r < 0 {
		return 0
	}
	return math.Min(r, limit)
}

// isRoundAmount reports suspiciously round values: whole multiples of
// ten dollars.
func isRoundAmount(v float64) bool {
	if v <= 0 {
		return false
	}
	cents := math.Round(v * 100)
	return math.Mod(cents, 1000) == 0
}

func roundAmountRatio(rows []model.TransactionRow) float64 {
	valid, round := 0, 0
	for _, row := range rows {
		if !row.AmountValid {
			continue
		}
		valid++
		if isRoundAmount(math.Abs(row.Amount)) {
			round++
		}
	}
	if valid == 0 {
		return 0
	}
	return float64(round) / float64(valid)
}

func duplicateRowRatio(rows []model.TransactionRow) float64 {
	if len(rows) == 0 {
		return 0
	}
	seen := make(map[string]bool, len(rows))
	dups := 0
	for _, row := range rows {
		sig := row.Signature()
		if seen[sig] {
			dups++
			continue
		}
		seen[sig] = true
	}
	return float64(dups) / float64(len(rows))
}

// DuplicateRows returns how many rows repeat an earlier composite
// signature, with the total row count, for explanation strings.
func DuplicateRows(rows []model.TransactionRow) (dups, total int) {
	total = len(rows)
	seen := make(map[string]bool, total)
	for _, row := range rows {
		sig := row.Signature()
		if seen[sig] {
			dups++
			continue
		}
		seen[sig] = true
	}
	return dups, total
}

// normalizedAge is the document age in days, capped at one year and
// normalized to [0,1]. Zero for unknown or future dates.
func normalizedAge(t time.Time, now time.Time) float64 {
	if t.IsZero() || t.After(now) {
		return 0
	}
	days := now.Sub(t).Hours() / 24
	return math.Min(days, maxAgeDays) / maxAgeDays
}

// VectorString renders a compact name=value listing, used in debug logs.
func VectorString(v *model.FeatureVector) string {
	out := ""
	for i, name := range v.Names {
		if i > 0 {
			out += " "
		}
		out += fmt.Sprintf("%s=%.3f", name, v.Values[i])
	}
	return out
}
