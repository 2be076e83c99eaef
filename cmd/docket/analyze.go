package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Veraticus/docket/internal/cli"
	"github.com/Veraticus/docket/internal/engine"
	"github.com/Veraticus/docket/internal/model"
)

func analyzeCmd() *cobra.Command {
	var (
		identity string
		docType  string
		ocrPath  string
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "analyze <document.json>",
		Short: "Run one document through the fraud decision pipeline",
		Long: `Analyze a single extracted document and print the decision.

The document is a JSON object of canonical field names to values, as
produced by the upstream extraction service. Pass "-" to read it from
stdin.`,
		Example: `  # Analyze a bank statement for a named customer
  docket analyze statement.json --type bank_statement --identity "Jane Doe"

  # Pipe a document in and get the raw result back
  cat check.json | docket analyze - --type check --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			parsedType := model.DocumentType(docType)
			if err := parsedType.Validate(); err != nil {
				return err
			}

			record, err := readDocumentRecord(args[0], os.Stdin)
			if err != nil {
				return err
			}

			resolved, err := resolveIdentity(identity, record)
			if err != nil {
				return err
			}

			var ocrText string
			if ocrPath != "" {
				data, readErr := os.ReadFile(ocrPath) // #nosec G304 -- operator-supplied path
				if readErr != nil {
					return fmt.Errorf("failed to read OCR text: %w", readErr)
				}
				ocrText = string(data)
			}

			// Initialize storage with auto-migration
			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			eng, cleanup, err := buildEngine(store)
			if err != nil {
				return err
			}
			defer cleanup()

			result, err := eng.Analyze(ctx, &engine.Request{
				Record:       record,
				Identity:     resolved,
				OCRText:      ocrText,
				DocumentType: parsedType,
			})
			if err != nil {
				return fmt.Errorf("analysis failed: %w", err)
			}

			if asJSON {
				out, encErr := json.MarshalIndent(result, "", "  ")
				if encErr != nil {
					return fmt.Errorf("failed to encode result: %w", encErr)
				}
				fmt.Println(string(out))
				return nil
			}

			slog.Info(cli.RenderBox("Analysis "+result.AnalysisID, formatResult(result)))
			return nil
		},
	}

	cmd.Flags().StringVarP(&identity, "identity", "i", "", "Customer identity (defaults to the record's account_holder field)")
	cmd.Flags().StringVarP(&docType, "type", "t", "", "Document type (bank_statement, check, money_order, paystub, transaction_feed)")
	cmd.Flags().StringVar(&ocrPath, "ocr", "", "File containing the document's raw OCR text")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the full analysis result as JSON")
	_ = cmd.MarkFlagRequired("type")

	return cmd
}

// readDocumentRecord reads a JSON document record from a file, or from
// stdin when the path is "-".
func readDocumentRecord(path string, stdin io.Reader) (model.DocumentRecord, error) {
	var data []byte
	var err error

	if path == "-" {
		data, err = io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read stdin: %w", err)
		}
	} else {
		data, err = os.ReadFile(path) // #nosec G304 -- operator-supplied path
		if err != nil {
			return nil, fmt.Errorf("failed to read document: %w", err)
		}
	}

	var record model.DocumentRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to parse document JSON: %w", err)
	}
	if len(record) == 0 {
		return nil, fmt.Errorf("document record is empty")
	}

	return record, nil
}

// resolveIdentity picks the customer identity for an analysis: an
// explicit flag wins, otherwise the record's account_holder field.
func resolveIdentity(flag string, record model.DocumentRecord) (string, error) {
	if strings.TrimSpace(flag) != "" {
		return flag, nil
	}
	if holder, ok := record.String("account_holder"); ok {
		return holder, nil
	}
	return "", fmt.Errorf("no identity: pass --identity or include an account_holder field in the document")
}

// formatResult renders a decision for terminal display.
func formatResult(result *model.AnalysisResult) string {
	analysis := result.ModelAnalysis
	decision := result.Decision

	var b strings.Builder
	fmt.Fprintf(&b, "Identity: %s\n", result.Identity)
	fmt.Fprintf(&b, "Document type: %s\n", result.DocumentType)
	fmt.Fprintf(&b, "Risk score: %.2f %s\n", analysis.FraudRiskScore, cli.FormatRiskLevel(analysis.RiskLevel))
	fmt.Fprintf(&b, "\nRecommendation: %s (%.0f%% confidence)\n",
		cli.FormatRecommendation(decision.Recommendation), decision.Confidence*100)

	if len(decision.FraudTypes) > 0 {
		fmt.Fprintf(&b, "Fraud type: %s\n", decision.FraudTypes[0])
	}

	if len(decision.Reasoning) > 0 {
		b.WriteString("\nReasoning:\n")
		for _, reason := range decision.Reasoning {
			fmt.Fprintf(&b, "  • %s\n", reason)
		}
	}

	if len(result.ValidationIssues) > 0 {
		b.WriteString("\nData issues:\n")
		for _, issue := range result.ValidationIssues {
			fmt.Fprintf(&b, "  • %s\n", issue)
		}
	}

	return strings.TrimRight(b.String(), "\n")
}
