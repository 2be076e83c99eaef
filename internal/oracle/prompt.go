package oracle

import (
	"encoding/json"
	"fmt"
	"strings"
)

// systemPrompt frames the oracle as a fraud analyst and pins the exact
// response contract the recovery ladder expects.
const systemPrompt = `You are a fraud review analyst for financial documents. You will receive a document's extracted fields, a model risk assessment, and the submitter's history. Weigh all of it and respond with ONLY a valid JSON object in exactly this shape:
{
  "recommendation": "APPROVE" | "REJECT" | "ESCALATE",
  "confidence_score": 0.0 to 1.0,
  "summary": "one-sentence overall assessment",
  "reasoning": ["step-by-step reasoning"],
  "key_indicators": ["the specific field values that drove your call"],
  "actionable_recommendations": ["concrete next steps for the reviewer"],
  "fraud_types": ["applicable categories, if any"],
  "fraud_explanations": [{"type": "category", "reasons": ["specific observed values"]}]
}
Do not include any text before or after the JSON object.`

// buildPrompt renders the full judgment context for one document.
func buildPrompt(req *Request) (string, error) {
	fields, err := json.MarshalIndent(req.Fields, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal document fields: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Document type: %s\n", req.DocumentType)
	fmt.Fprintf(&b, "Submitter identity: %s\n", req.Identity)
	fmt.Fprintf(&b, "Customer classification: %s (total submissions %d, prior rejections %d, prior escalations %d)\n",
		req.Classification, req.TotalSubmissions, req.FraudCount, req.EscalateCount)
	fmt.Fprintf(&b, "Model risk score: %.3f (%s)\n", req.RiskScore, req.RiskLevel)

	if len(req.FraudTypes) > 0 {
		fmt.Fprintf(&b, "Model fraud categories: %s\n", strings.Join(req.FraudTypes, ", "))
	}
	if len(req.Anomalies) > 0 {
		b.WriteString("Detected anomalies:\n")
		for _, a := range req.Anomalies {
			fmt.Fprintf(&b, "  - %s\n", a)
		}
	}
	if len(req.ValidationIssues) > 0 {
		b.WriteString("Data quality issues:\n")
		for _, issue := range req.ValidationIssues {
			fmt.Fprintf(&b, "  - %s\n", issue)
		}
	}

	fmt.Fprintf(&b, "\nDocument fields:\n%s\n", fields)
	return b.String(), nil
}
