package oracle

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/Veraticus/docket/internal/model"
)

// previewLimit bounds how much of an unparseable response lands in the
// error. Enough to diagnose, not enough to flood a log line.
const previewLimit = 240

var (
	fencedBlockPattern   = regexp.MustCompile("(?s)```(?:[a-zA-Z]+)?\\s*(.+?)```")
	trailingCommaPattern = regexp.MustCompile(`,\s*([}\]])`)
)

// parseResponse coerces raw oracle output into a Response. Recovery
// strategies run in order: direct parse, fenced-code-block extraction,
// first-balanced-brace scan, then trailing-comma repair of each candidate.
// Only when every strategy fails does it give up with a ParseError.
func parseResponse(content string) (*Response, error) {
	trimmed := strings.TrimSpace(content)
	for _, candidate := range candidates(trimmed) {
		if resp, err := decodeVerdict(candidate); err == nil {
			return resp, nil
		}
	}
	return nil, &ParseError{Preview: preview(trimmed)}
}

// candidates builds the recovery ladder for one response.
func candidates(content string) []string {
	if content == "" {
		return nil
	}

	out := []string{content}
	if m := fencedBlockPattern.FindStringSubmatch(content); m != nil {
		out = append(out, strings.TrimSpace(m[1]))
	}
	if braced, ok := firstBalancedObject(content); ok {
		out = append(out, braced)
	}

	// Trailing-comma repair is last: it applies to whichever extraction
	// produced nearly-valid JSON. It is textual, so it can in principle
	// touch a comma inside a string value; acceptable for a last-resort
	// strategy.
	for _, c := range out[:len(out):len(out)] {
		if repaired := trailingCommaPattern.ReplaceAllString(c, "$1"); repaired != c {
			out = append(out, repaired)
		}
	}
	return out
}

// firstBalancedObject scans for the first top-level {...} in the text,
// tracking string literals and escapes so braces inside values do not
// unbalance the count.
func firstBalancedObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

// wireResponse is the JSON shape the oracle is asked to produce. The
// alternate confidence key tolerates sources that drop the _score suffix.
type wireResponse struct {
	Recommendation            string            `json:"recommendation"`
	ConfidenceScore           *float64          `json:"confidence_score"`
	Confidence                *float64          `json:"confidence"`
	Summary                   string            `json:"summary"`
	Reasoning                 []string          `json:"reasoning"`
	KeyIndicators             []string          `json:"key_indicators"`
	ActionableRecommendations []string          `json:"actionable_recommendations"`
	FraudTypes                []string          `json:"fraud_types"`
	FraudExplanations         []wireExplanation `json:"fraud_explanations"`
}

type wireExplanation struct {
	Type    string   `json:"type"`
	Reasons []string `json:"reasons"`
}

// decodeVerdict parses one candidate and normalizes it. An unrecognized
// recommendation value is a parse failure, not a default.
func decodeVerdict(candidate string) (*Response, error) {
	var wire wireResponse
	if err := json.Unmarshal([]byte(candidate), &wire); err != nil {
		return nil, err
	}

	rec := model.Recommendation(strings.ToUpper(strings.TrimSpace(wire.Recommendation)))
	if err := rec.Validate(); err != nil {
		return nil, err
	}

	confidence := 0.0
	switch {
	case wire.ConfidenceScore != nil:
		confidence = *wire.ConfidenceScore
	case wire.Confidence != nil:
		confidence = *wire.Confidence
	}

	resp := &Response{
		Recommendation:            rec,
		Confidence:                model.Clamp01(confidence),
		Summary:                   strings.TrimSpace(wire.Summary),
		Reasoning:                 wire.Reasoning,
		KeyIndicators:             wire.KeyIndicators,
		ActionableRecommendations: wire.ActionableRecommendations,
	}
	for _, ft := range wire.FraudTypes {
		resp.FraudTypes = append(resp.FraudTypes, strings.ToLower(strings.TrimSpace(ft)))
	}
	for _, expl := range wire.FraudExplanations {
		resp.FraudExplanations = append(resp.FraudExplanations, model.FraudExplanation{
			Type:    model.FraudType(strings.ToLower(strings.TrimSpace(expl.Type))),
			Reasons: expl.Reasons,
		})
	}
	return resp, nil
}

func preview(s string) string {
	if len(s) <= previewLimit {
		return s
	}
	return s[:previewLimit] + "..."
}
