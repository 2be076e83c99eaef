package storage

import (
	"context"
	"fmt"

	"github.com/Veraticus/docket/internal/model"
)

// GetHistory returns the aggregated ledger view for one identity. An
// identity with no rows comes back with a nil ID and zero counters.
func (s *Storage) GetHistory(ctx context.Context, identity string) (*model.CustomerHistory, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(identity, "identity"); err != nil {
		return nil, err
	}
	return s.getHistoryTx(ctx, s.db, model.NormalizeIdentity(identity))
}

// getHistoryTx aggregates counters as the MAX across all rows rather than
// trusting the latest row: concurrent appends can interleave their reads
// and writes, and the maximum stays correct in either order.
func (s *Storage) getHistoryTx(ctx context.Context, q queryable, identity string) (*model.CustomerHistory, error) {
	history := &model.CustomerHistory{Identity: identity}

	err := q.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(MAX(fraud_count), 0), COALESCE(MAX(escalate_count), 0)
		FROM customer_history
		WHERE identity = ?
	`, identity).Scan(&history.TotalSubmissions, &history.FraudCount, &history.EscalateCount)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate history: %w", err)
	}

	if history.TotalSubmissions == 0 {
		return history, nil
	}

	var id int64
	var recommendation string
	err = q.QueryRowContext(ctx, `
		SELECT id, recommendation
		FROM customer_history
		WHERE identity = ?
		ORDER BY id DESC
		LIMIT 1
	`, identity).Scan(&id, &recommendation)
	if err != nil {
		return nil, fmt.Errorf("failed to load latest history row: %w", err)
	}

	history.ID = &id
	history.LastRecommendation = model.Recommendation(recommendation)
	return history, nil
}

// RecordDecision appends a ledger row for the identity. Counters carry
// forward the prior maxima; REJECT increments the fraud count, ESCALATE
// the escalate count, APPROVE neither. Rows are never updated in place.
func (s *Storage) RecordDecision(ctx context.Context, identity string, recommendation model.Recommendation) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(identity, "identity"); err != nil {
		return err
	}
	if err := recommendation.Validate(); err != nil {
		return err
	}

	key := model.NormalizeIdentity(identity)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	prior, err := s.getHistoryTx(ctx, tx, key)
	if err != nil {
		return err
	}

	fraudCount := prior.FraudCount
	escalateCount := prior.EscalateCount
	switch recommendation {
	case model.RecommendReject:
		fraudCount++
	case model.RecommendEscalate:
		escalateCount++
	case model.RecommendApprove:
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO customer_history (
			identity, fraud_count, escalate_count, recommendation, total_submissions
		) VALUES (?, ?, ?, ?, ?)
	`, key, fraudCount, escalateCount, string(recommendation), prior.TotalSubmissions+1)
	if err != nil {
		return fmt.Errorf("failed to record decision: %w", err)
	}

	return tx.Commit()
}
