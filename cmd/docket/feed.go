package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Veraticus/docket/internal/cli"
	"github.com/Veraticus/docket/internal/common"
	"github.com/Veraticus/docket/internal/engine"
	"github.com/Veraticus/docket/internal/feed"
	"github.com/Veraticus/docket/internal/model"
	"github.com/Veraticus/docket/internal/storage"
)

func feedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "feed [files...]",
		Short: "Ingest documents from a transaction source and analyze them",
		Long: `Pull documents from an upstream source and run each one through the
fraud decision pipeline. OFX/QFX statement files become bank_statement
documents; Plaid and SimpleFIN pulls become one transaction_feed document
per account.

Completed analyses are persisted as they finish, so an interrupted run
can simply be rerun: already-analyzed documents are caught by the
resubmission check.`,
		Example: `  # Analyze exported statement files
  docket feed --identity "Jane Doe" ~/Downloads/chase_*.qfx

  # Pull the last 30 days from Plaid
  docket feed --source plaid --identity "Jane Doe"

  # Pull a specific SimpleFIN date range
  docket feed --source simplefin --identity "Jane Doe" -s 2026-07-01 -e 2026-07-31`,
		RunE: runFeed,
	}

	// Source selection
	cmd.Flags().String("source", "ofx", "Document source (ofx, plaid, simplefin)")
	cmd.Flags().StringP("identity", "i", "", "Customer identity the documents belong to")

	// Date range flags for API sources
	cmd.Flags().StringP("start-date", "s", "", "Start date for transaction pulls (format: 2006-01-02)")
	cmd.Flags().StringP("end-date", "e", "", "End date for transaction pulls (format: 2006-01-02)")
	cmd.Flags().IntP("days", "d", 30, "Number of days to pull (used if start/end dates not specified)")

	// Other options
	cmd.Flags().Bool("list-accounts", false, "List available accounts without analyzing")
	cmd.Flags().Bool("dry-run", false, "Fetch and summarize documents without analyzing")
	cmd.Flags().Int("concurrency", 4, "Number of documents analyzed in parallel")
	cmd.Flags().Bool("checkpoint", true, "Create an automatic database checkpoint before analyzing")

	// Bind to viper
	_ = viper.BindPFlag("feed.source", cmd.Flags().Lookup("source"))
	_ = viper.BindPFlag("feed.identity", cmd.Flags().Lookup("identity"))
	_ = viper.BindPFlag("feed.start_date", cmd.Flags().Lookup("start-date"))
	_ = viper.BindPFlag("feed.end_date", cmd.Flags().Lookup("end-date"))
	_ = viper.BindPFlag("feed.days", cmd.Flags().Lookup("days"))
	_ = viper.BindPFlag("feed.list_accounts", cmd.Flags().Lookup("list-accounts"))
	_ = viper.BindPFlag("feed.dry_run", cmd.Flags().Lookup("dry-run"))
	_ = viper.BindPFlag("feed.concurrency", cmd.Flags().Lookup("concurrency"))
	_ = viper.BindPFlag("feed.checkpoint", cmd.Flags().Lookup("checkpoint"))

	return cmd
}

func runFeed(cmd *cobra.Command, args []string) error {
	handler := cli.NewInterruptHandler(os.Stdout)
	ctx := handler.HandleInterrupts(cmd.Context(), true)

	identity := viper.GetString("feed.identity")
	if identity == "" {
		return fmt.Errorf("an identity is required: pass --identity")
	}

	sources, err := buildSources(viper.GetString("feed.source"), identity, args)
	if err != nil {
		return err
	}

	// Handle list-accounts flag
	if viper.GetBool("feed.list_accounts") {
		return listFeedAccounts(ctx, sources)
	}

	// Fetch documents
	slog.Info(cli.FormatTitle("Fetching documents"))
	var items []feed.Item
	fetchErrors := 0
	for _, src := range sources {
		fetched, fetchErr := src.Fetch(ctx)
		if fetchErr != nil {
			// One unreadable statement file should not sink the batch,
			// but a failed API pull has nothing to fall back on.
			if len(sources) == 1 {
				return fmt.Errorf("failed to fetch documents: %w", fetchErr)
			}
			common.LogError(fetchErr, "Failed to fetch from source", nil)
			fetchErrors++
			continue
		}
		items = append(items, fetched...)
	}

	if len(items) == 0 {
		if fetchErrors > 0 {
			return fmt.Errorf("%w: every source failed", common.ErrNoDocuments)
		}
		slog.Info(cli.FormatWarning("No documents found"))
		return nil
	}

	slog.Info(cli.FormatSuccess(fmt.Sprintf("Fetched %d documents", len(items))))

	// Check for dry run
	if viper.GetBool("feed.dry_run") {
		slog.Info(cli.FormatWarning("Dry run mode - not analyzing"))
		slog.Info(cli.RenderBox("Fetched Documents", formatItemSummary(items)))
		return nil
	}

	// Initialize storage with auto-migration
	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	if viper.GetBool("feed.checkpoint") {
		autoCheckpoint(ctx, store)
	}

	eng, cleanup, err := buildEngine(store)
	if err != nil {
		return err
	}
	defer cleanup()

	tally := analyzeItems(ctx, eng, items, viper.GetInt("feed.concurrency"))

	slog.Info(cli.RenderBox("Feed Summary", formatFeedSummary(len(items), tally)))

	if handler.WasInterrupted() {
		slog.Info("Run interrupted", "analyzed", tally.Analyzed(), "remaining", len(items)-tally.Analyzed()-tally.Failed)
	}

	return nil
}

// buildSources constructs the feed sources for one run. OFX reads the
// file arguments; the API sources read their connection settings from
// configuration.
func buildSources(sourceType, identity string, args []string) ([]feed.Source, error) {
	switch sourceType {
	case "ofx":
		files, err := collectFeedFiles(args)
		if err != nil {
			return nil, err
		}
		sources := make([]feed.Source, 0, len(files))
		for _, path := range files {
			sources = append(sources, feed.NewOFXSource(path, identity))
		}
		return sources, nil

	case "plaid":
		startDate, endDate, err := parseDateRange(
			viper.GetString("feed.start_date"),
			viper.GetString("feed.end_date"),
			viper.GetInt("feed.days"),
		)
		if err != nil {
			return nil, err
		}

		cfg := feed.PlaidConfig{
			ClientID:    viper.GetString("plaid.client_id"),
			Secret:      viper.GetString("plaid.secret"),
			Environment: viper.GetString("plaid.environment"),
			AccessToken: viper.GetString("plaid.access_token"),
		}
		if cfg.Environment == "" {
			cfg.Environment = "sandbox"
		}

		src, err := feed.NewPlaidSource(cfg, identity, startDate, endDate)
		if err != nil {
			return nil, fmt.Errorf("failed to create Plaid source: %w", err)
		}
		return []feed.Source{src}, nil

	case "simplefin":
		startDate, endDate, err := parseDateRange(
			viper.GetString("feed.start_date"),
			viper.GetString("feed.end_date"),
			viper.GetInt("feed.days"),
		)
		if err != nil {
			return nil, err
		}

		token := viper.GetString("simplefin.token")
		if token == "" {
			token = os.Getenv("SIMPLEFIN_TOKEN")
		}

		src, err := feed.NewSimpleFINSource(token, identity, startDate, endDate)
		if err != nil {
			return nil, fmt.Errorf("failed to create SimpleFIN source: %w", err)
		}
		return []feed.Source{src}, nil

	default:
		return nil, fmt.Errorf("unsupported feed source: %s", sourceType)
	}
}

// collectFeedFiles expands glob patterns and collects all statement
// files to ingest.
func collectFeedFiles(args []string) ([]string, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("no statement files given")
	}

	var allFiles []string
	for _, pattern := range args {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %s: %w", pattern, err)
		}
		if len(matches) == 0 {
			// If no glob matches, check if it's a direct file
			if _, statErr := os.Stat(pattern); statErr == nil {
				allFiles = append(allFiles, pattern)
			} else {
				slog.Warn("No files found matching pattern", "pattern", pattern)
			}
		} else {
			allFiles = append(allFiles, matches...)
		}
	}

	if len(allFiles) == 0 {
		return nil, fmt.Errorf("no files found to ingest")
	}
	return allFiles, nil
}

// accountLister is implemented by the API sources that can enumerate
// accounts without pulling transactions.
type accountLister interface {
	Accounts(ctx context.Context) ([]string, error)
}

func listFeedAccounts(ctx context.Context, sources []feed.Source) error {
	var accounts []string
	for _, src := range sources {
		lister, ok := src.(accountLister)
		if !ok {
			return fmt.Errorf("this source cannot list accounts")
		}
		found, err := lister.Accounts(ctx)
		if err != nil {
			return fmt.Errorf("failed to fetch accounts: %w", err)
		}
		accounts = append(accounts, found...)
	}

	if len(accounts) == 0 {
		slog.Info(cli.FormatWarning("No accounts found"))
		return nil
	}

	content := fmt.Sprintf("Found %d accounts:\n\n", len(accounts))
	for i, accountID := range accounts {
		content += fmt.Sprintf("%d. %s\n", i+1, accountID)
	}

	slog.Info(cli.RenderBox("Available Accounts", content))
	return nil
}

// parseDateRange resolves the pull window: explicit start/end dates, or
// the last N days ending now.
func parseDateRange(startStr, endStr string, days int) (startDate, endDate time.Time, err error) {
	if (startStr == "") != (endStr == "") {
		return time.Time{}, time.Time{}, fmt.Errorf("both --start-date and --end-date are required when either is set")
	}

	if startStr != "" {
		startDate, err = time.Parse("2006-01-02", startStr)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid start date format: %w", err)
		}

		endDate, err = time.Parse("2006-01-02", endStr)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid end date format: %w", err)
		}

		if !startDate.Before(endDate) {
			return time.Time{}, time.Time{}, fmt.Errorf("start date must be before end date")
		}
		return startDate, endDate, nil
	}

	if days <= 0 {
		days = 30
	}

	endDate = time.Now()
	startDate = endDate.AddDate(0, 0, -days)

	return startDate, endDate, nil
}

// autoCheckpoint snapshots the database before a batch run. Failure to
// snapshot is logged, not fatal: the batch itself is the point.
func autoCheckpoint(ctx context.Context, store *storage.Storage) {
	manager, err := store.Checkpoints()
	if err != nil {
		slog.Warn("Failed to open checkpoint manager", "error", err)
		return
	}
	if err := manager.AutoCheckpoint(ctx, "feed"); err != nil {
		slog.Warn("Failed to create automatic checkpoint", "error", err)
	}
}

// feedTally counts batch outcomes by recommendation.
type feedTally struct {
	Approved  int
	Escalated int
	Rejected  int
	Failed    int
}

// Analyzed returns the number of documents that got a decision.
func (t feedTally) Analyzed() int {
	return t.Approved + t.Escalated + t.Rejected
}

func (t *feedTally) record(rec model.Recommendation) {
	switch rec {
	case model.RecommendApprove:
		t.Approved++
	case model.RecommendEscalate:
		t.Escalated++
	case model.RecommendReject:
		t.Rejected++
	}
}

// analyzeItems runs the batch through a bounded worker pool. Each
// result is persisted by the engine as it completes, so cancellation
// mid-batch loses only unstarted work.
func analyzeItems(ctx context.Context, eng *engine.Engine, items []feed.Item, workers int) feedTally {
	if workers < 1 {
		workers = 1
	}
	if workers > len(items) {
		workers = len(items)
	}

	bar := newFeedProgress(len(items))
	jobs := make(chan feed.Item)

	var mu sync.Mutex
	var tally feedTally
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range jobs {
				result, err := eng.Analyze(ctx, &engine.Request{
					Record:       item.Record,
					Identity:     item.Identity,
					DocumentType: item.DocumentType,
				})

				mu.Lock()
				if err != nil {
					tally.Failed++
					common.LogError(err, "Analysis failed", common.Fields{
						"identity":      item.Identity,
						"document_type": item.DocumentType,
					})
				} else {
					tally.record(result.Decision.Recommendation)
				}
				mu.Unlock()

				_ = bar.Add(1)
			}
		}()
	}

enqueue:
	for _, item := range items {
		select {
		case <-ctx.Done():
			break enqueue
		case jobs <- item:
		}
	}
	close(jobs)
	wg.Wait()

	return tally
}

// newFeedProgress builds the batch progress bar.
func newFeedProgress(total int) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("Analyzing documents..."),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			_, _ = fmt.Fprintln(os.Stderr)
		}),
	)
}

// formatItemSummary describes a fetched batch for dry runs.
func formatItemSummary(items []feed.Item) string {
	byType := make(map[model.DocumentType]int)
	identities := make(map[string]bool)
	for _, item := range items {
		byType[item.DocumentType]++
		identities[item.Identity] = true
	}

	types := make([]string, 0, len(byType))
	for docType := range byType {
		types = append(types, string(docType))
	}
	sort.Strings(types)

	content := fmt.Sprintf("Documents: %d\nIdentities: %d\n", len(items), len(identities))
	for _, docType := range types {
		content += fmt.Sprintf("  %s: %d\n", docType, byType[model.DocumentType(docType)])
	}
	return content
}

// formatFeedSummary renders the batch outcome counts.
func formatFeedSummary(total int, tally feedTally) string {
	content := fmt.Sprintf(`Documents: %d
%s: %d
%s: %d
%s: %d`,
		total,
		cli.FormatRecommendation(model.RecommendApprove), tally.Approved,
		cli.FormatRecommendation(model.RecommendEscalate), tally.Escalated,
		cli.FormatRecommendation(model.RecommendReject), tally.Rejected,
	)

	if tally.Failed > 0 {
		content += fmt.Sprintf("\nFailed: %d", tally.Failed)
	}
	if skipped := total - tally.Analyzed() - tally.Failed; skipped > 0 {
		content += fmt.Sprintf("\nNot analyzed: %d", skipped)
	}
	return content
}
