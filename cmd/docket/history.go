package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Veraticus/docket/internal/cli"
	"github.com/Veraticus/docket/internal/model"
	"github.com/Veraticus/docket/internal/service"
)

func historyCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history <identity>",
		Short: "Show a customer's ledger standing and recent decisions",
		Long: `Display the ledger's view of one identity - how the policy engine will
classify their next submission - together with their most recent
stored decisions.`,
		Example: `  docket history "Jane Doe"
  docket history "Jane Doe" --limit 25`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			identity := args[0]

			// Initialize storage with auto-migration
			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			history, err := store.GetHistory(ctx, identity)
			if err != nil {
				return fmt.Errorf("failed to load history: %w", err)
			}

			escalateCounts := viper.GetBool("policy.escalate_counts")
			slog.Info(cli.RenderBox("Ledger: "+model.NormalizeIdentity(identity), formatHistory(history, escalateCounts)))

			results, err := store.ListResults(ctx, service.ResultFilter{
				Identity: identity,
				Limit:    limit,
			})
			if err != nil {
				return fmt.Errorf("failed to list decisions: %w", err)
			}

			if len(results) == 0 {
				fmt.Println(cli.SubtitleStyle.Render("No stored decisions."))
				return nil
			}

			printResultsTable(results)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Number of recent decisions to show")

	return cmd
}

// formatHistory renders the ledger standing the policy engine will use
// for the identity's next submission.
func formatHistory(history *model.CustomerHistory, escalateCounts bool) string {
	if !history.Seen() {
		return "No prior submissions.\nThe next submission is classified NEW and will be escalated for review."
	}

	return fmt.Sprintf(`Classification: %s
Submissions: %d
Prior rejections: %d
Prior escalations: %d
Last recommendation: %s`,
		history.Classify(escalateCounts),
		history.TotalSubmissions,
		history.FraudCount,
		history.EscalateCount,
		cli.FormatRecommendation(history.LastRecommendation),
	)
}

// printResultsTable renders stored decisions as a table, most recent
// first.
func printResultsTable(results []model.AnalysisResult) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)

	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("4"))
	fmt.Fprintln(w, strings.Join([]string{
		headerStyle.Render("ANALYSIS"),
		headerStyle.Render("CREATED"),
		headerStyle.Render("TYPE"),
		headerStyle.Render("RISK"),
		headerStyle.Render("RECOMMENDATION"),
	}, "\t"))

	for _, result := range results {
		fmt.Fprintf(w, "%s\t%s\t%s\t%.2f %s\t%s\n",
			cli.InfoStyle.Render(shortID(result.AnalysisID)),
			formatRelativeTime(result.CreatedAt),
			result.DocumentType,
			result.ModelAnalysis.FraudRiskScore,
			cli.FormatRiskLevel(result.ModelAnalysis.RiskLevel),
			cli.FormatRecommendation(result.Decision.Recommendation),
		)
	}

	_ = w.Flush()
}

// shortID abbreviates an analysis UUID for table display.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
