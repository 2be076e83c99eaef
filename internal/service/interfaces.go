// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/Veraticus/docket/internal/model"
)

// Ledger is the append-only per-identity history of past decisions.
// Implementations must aggregate counters as the MAXIMUM across all
// stored rows for an identity, and must never update rows in place.
type Ledger interface {
	// GetHistory returns the aggregated history for an identity. An
	// identity with no rows has a nil ID and zero counters.
	GetHistory(ctx context.Context, identity string) (*model.CustomerHistory, error)
	// RecordDecision appends a new row carrying forward the previous
	// maximum counters, incrementing FraudCount on REJECT and
	// EscalateCount on ESCALATE.
	RecordDecision(ctx context.Context, identity string, recommendation model.Recommendation) error
}

// DuplicateDetector checks whether a document composite key has been
// analyzed before.
type DuplicateDetector interface {
	Exists(ctx context.Context, key string) (bool, error)
	Remember(ctx context.Context, key string) error
}

// DecisionStore persists completed analyses for the audit trail.
type DecisionStore interface {
	SaveResult(ctx context.Context, result *model.AnalysisResult) error
	GetResult(ctx context.Context, analysisID string) (*model.AnalysisResult, error)
	ListResults(ctx context.Context, filter ResultFilter) ([]model.AnalysisResult, error)
}

// ResultFilter defines filtering options for decision queries.
type ResultFilter struct {
	Start          *time.Time
	End            *time.Time
	Identity       string
	Recommendation model.Recommendation
	Limit          int
}

// Storage is the full persistence contract: ledger, durable duplicate
// keys, decision audit trail, and database management.
type Storage interface {
	Ledger
	DuplicateDetector
	DecisionStore

	Migrate(ctx context.Context) error
	Close() error
}

// Publisher emits decision events for downstream consumers. Publishing
// is best-effort: a decision already committed to the ledger is not
// rolled back because a consumer could not be notified.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	Close() error
}

// ReportWriter exports stored decisions to an external report.
type ReportWriter interface {
	Write(ctx context.Context, results []model.AnalysisResult, summary *ReportSummary) error
}

// ReportSummary contains aggregate information for the decision report.
type ReportSummary struct {
	DateRange        DateRange
	ByRecommendation map[model.Recommendation]int
	ByRiskLevel      map[model.RiskLevel]int
	RepeatOffenders  []string
	TotalAnalyses    int
}

// DateRange represents a time period with start and end dates.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}
