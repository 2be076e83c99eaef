package model

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// AmountKind tags which raw shape a monetary value arrived in.
type AmountKind int

// The three raw shapes an amount may take in a DocumentRecord.
const (
	AmountRawNumber AmountKind = iota
	AmountRawString
	AmountStructured
)

// Amount is the tagged variant for monetary fields. Extraction sees
// amounts as raw numbers, currency-symbol strings, or {value, currency}
// objects; all three normalize through ParseAmount so every numeric
// feature computes from the same representation.
type Amount struct {
	Kind     AmountKind
	Value    float64
	Currency string
}

// currencySymbols maps leading symbols to ISO codes for string amounts.
var currencySymbols = map[string]string{
	"$": "USD",
	"€": "EUR",
	"£": "GBP",
	"¥": "JPY",
}

// ParseAmount normalizes any of the three raw amount shapes. It is the
// single entry point for monetary values; call sites never type-sniff.
func ParseAmount(v any) (Amount, error) {
	switch t := v.(type) {
	case float64:
		return Amount{Kind: AmountRawNumber, Value: t}, nil
	case float32:
		return Amount{Kind: AmountRawNumber, Value: float64(t)}, nil
	case int:
		return Amount{Kind: AmountRawNumber, Value: float64(t)}, nil
	case int64:
		return Amount{Kind: AmountRawNumber, Value: float64(t)}, nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return Amount{}, fmt.Errorf("invalid numeric amount %q: %w", t.String(), err)
		}
		return Amount{Kind: AmountRawNumber, Value: f}, nil
	case string:
		return parseStringAmount(t)
	case map[string]any:
		return parseStructuredAmount(t)
	case nil:
		return Amount{}, fmt.Errorf("amount is nil")
	default:
		return Amount{}, fmt.Errorf("unsupported amount type %T", v)
	}
}

// parseStringAmount handles currency-symbol strings like "$1,234.56".
func parseStringAmount(s string) (Amount, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return Amount{}, fmt.Errorf("amount string is empty")
	}

	currency := ""
	for symbol, code := range currencySymbols {
		if strings.HasPrefix(trimmed, symbol) || strings.HasPrefix(trimmed, "-"+symbol) {
			currency = code
			trimmed = strings.Replace(trimmed, symbol, "", 1)
			break
		}
	}

	trimmed = strings.ReplaceAll(trimmed, ",", "")
	trimmed = strings.TrimSpace(trimmed)

	value, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return Amount{}, fmt.Errorf("unparseable amount string %q: %w", s, err)
	}

	return Amount{Kind: AmountRawString, Value: value, Currency: currency}, nil
}

// parseStructuredAmount handles {value, currency} objects. The nested
// value may itself be a number or a string.
func parseStructuredAmount(m map[string]any) (Amount, error) {
	raw, ok := m["value"]
	if !ok {
		return Amount{}, fmt.Errorf("structured amount missing value")
	}

	inner, err := ParseAmount(raw)
	if err != nil {
		return Amount{}, fmt.Errorf("structured amount: %w", err)
	}

	currency := inner.Currency
	if c, ok := m["currency"].(string); ok && c != "" {
		currency = strings.ToUpper(strings.TrimSpace(c))
	}

	return Amount{Kind: AmountStructured, Value: inner.Value, Currency: currency}, nil
}
