package main

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Veraticus/docket/internal/cli"
	"github.com/Veraticus/docket/internal/config"
	"github.com/Veraticus/docket/internal/model"
	"github.com/Veraticus/docket/internal/service"
	"github.com/Veraticus/docket/internal/sheets"
)

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export stored decisions to Google Sheets",
		Long: `Build a decision report for a date range and write it to a Google
Sheets spreadsheet: every decision in the range, plus summary counts by
recommendation and risk level and the repeat offenders caught.`,
		Example: `  # Export the last 30 days
  docket export

  # Export a specific month
  docket export -s 2026-07-01 -e 2026-07-31`,
		RunE: runExport,
	}

	// Date range flags
	cmd.Flags().StringP("start-date", "s", "", "Start date for the report (format: 2006-01-02)")
	cmd.Flags().StringP("end-date", "e", "", "End date for the report (format: 2006-01-02)")
	cmd.Flags().IntP("days", "d", 30, "Number of days to export (used if start/end dates not specified)")

	// Bind to viper
	_ = viper.BindPFlag("export.start_date", cmd.Flags().Lookup("start-date"))
	_ = viper.BindPFlag("export.end_date", cmd.Flags().Lookup("end-date"))
	_ = viper.BindPFlag("export.days", cmd.Flags().Lookup("days"))

	return cmd
}

func runExport(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	startDate, endDate, err := parseDateRange(
		viper.GetString("export.start_date"),
		viper.GetString("export.end_date"),
		viper.GetInt("export.days"),
	)
	if err != nil {
		return err
	}

	// Initialize storage with auto-migration
	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	slog.Info(cli.FormatTitle("Exporting decision report"))
	slog.Info("Date range", "start", startDate.Format("2006-01-02"), "end", endDate.Format("2006-01-02"))

	results, err := store.ListResults(ctx, service.ResultFilter{
		Start: &startDate,
		End:   &endDate,
	})
	if err != nil {
		return fmt.Errorf("failed to load decisions: %w", err)
	}

	if len(results) == 0 {
		slog.Info(cli.FormatWarning("No decisions in the selected range"))
		return nil
	}

	summary := buildReportSummary(results, startDate, endDate)

	reportCfg, err := config.LoadReportConfig()
	if err != nil {
		return fmt.Errorf("failed to load report configuration: %w", err)
	}

	writer, err := sheets.NewWriter(ctx, *reportCfg, slog.Default())
	if err != nil {
		return fmt.Errorf("failed to create report writer: %w", err)
	}

	if err := writer.Write(ctx, results, summary); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	slog.Info(cli.FormatSuccess(fmt.Sprintf("Exported %d decisions", len(results))))
	return nil
}

// buildReportSummary aggregates a result set for the report header. An
// identity is a repeat offender when any decision in the range carried
// that fraud category.
func buildReportSummary(results []model.AnalysisResult, start, end time.Time) *service.ReportSummary {
	summary := &service.ReportSummary{
		DateRange:        service.DateRange{Start: start, End: end},
		ByRecommendation: make(map[model.Recommendation]int),
		ByRiskLevel:      make(map[model.RiskLevel]int),
		TotalAnalyses:    len(results),
	}

	offenders := make(map[string]bool)
	for _, result := range results {
		summary.ByRecommendation[result.Decision.Recommendation]++
		summary.ByRiskLevel[result.ModelAnalysis.RiskLevel]++

		for _, fraudType := range result.Decision.FraudTypes {
			if fraudType == model.FraudRepeatOffender {
				offenders[result.Identity] = true
			}
		}
	}

	summary.RepeatOffenders = make([]string, 0, len(offenders))
	for identity := range offenders {
		summary.RepeatOffenders = append(summary.RepeatOffenders, identity)
	}
	sort.Strings(summary.RepeatOffenders)

	return summary
}
