package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Veraticus/docket/internal/common"
	"github.com/Veraticus/docket/internal/model"
	"github.com/Veraticus/docket/internal/service"
)

// SaveResult persists one completed analysis to the audit trail.
func (s *Storage) SaveResult(ctx context.Context, result *model.AnalysisResult) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateResult(result); err != nil {
		return err
	}

	createdAt := result.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	decisionJSON, err := json.Marshal(result.Decision)
	if err != nil {
		return fmt.Errorf("failed to encode decision: %w", err)
	}
	analysisJSON, err := json.Marshal(result.ModelAnalysis)
	if err != nil {
		return fmt.Errorf("failed to encode model analysis: %w", err)
	}
	issuesJSON, err := json.Marshal(result.ValidationIssues)
	if err != nil {
		return fmt.Errorf("failed to encode validation issues: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO decisions (
			analysis_id, identity, document_type, recommendation,
			confidence, risk_score, risk_level, decision,
			model_analysis, validation_issues, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		result.AnalysisID,
		model.NormalizeIdentity(result.Identity),
		string(result.DocumentType),
		string(result.Decision.Recommendation),
		result.Decision.Confidence,
		result.ModelAnalysis.FraudRiskScore,
		string(result.ModelAnalysis.RiskLevel),
		string(decisionJSON),
		string(analysisJSON),
		string(issuesJSON),
		createdAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save analysis result: %w", err)
	}

	return nil
}

// GetResult loads one analysis by ID. A missing ID returns ErrNotFound.
func (s *Storage) GetResult(ctx context.Context, analysisID string) (*model.AnalysisResult, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(analysisID, "analysisID"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT analysis_id, identity, document_type, decision,
		       model_analysis, validation_issues, created_at
		FROM decisions
		WHERE analysis_id = ?
	`, analysisID)

	result, err := scanResult(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: analysis %s", common.ErrNotFound, analysisID)
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ListResults returns stored analyses matching the filter, most recent
// first.
func (s *Storage) ListResults(ctx context.Context, filter service.ResultFilter) ([]model.AnalysisResult, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if filter.Start != nil && filter.End != nil && filter.End.Before(*filter.Start) {
		return nil, fmt.Errorf("%w: end date %v is before start date %v", ErrInvalidDateRange, *filter.End, *filter.Start)
	}

	query := `
		SELECT analysis_id, identity, document_type, decision,
		       model_analysis, validation_issues, created_at
		FROM decisions
	`
	var conditions []string
	var args []any

	if filter.Identity != "" {
		conditions = append(conditions, "identity = ?")
		args = append(args, model.NormalizeIdentity(filter.Identity))
	}
	if filter.Recommendation != "" {
		conditions = append(conditions, "recommendation = ?")
		args = append(args, string(filter.Recommendation))
	}
	if filter.Start != nil {
		conditions = append(conditions, "created_at >= ?")
		args = append(args, *filter.Start)
	}
	if filter.End != nil {
		conditions = append(conditions, "created_at <= ?")
		args = append(args, *filter.End)
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC, analysis_id"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query analysis results: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []model.AnalysisResult
	for rows.Next() {
		result, scanErr := scanResult(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		results = append(results, *result)
	}

	return results, rows.Err()
}

// rowScanner abstracts sql.Row and sql.Rows for shared scan code.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanResult decodes one decisions row. The JSON columns are
// authoritative; the flat recommendation and risk columns exist only for
// filtering and reports.
func scanResult(row rowScanner) (*model.AnalysisResult, error) {
	var result model.AnalysisResult
	var docType string
	var decisionJSON, analysisJSON string
	var issuesJSON sql.NullString

	err := row.Scan(
		&result.AnalysisID,
		&result.Identity,
		&docType,
		&decisionJSON,
		&analysisJSON,
		&issuesJSON,
		&result.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan analysis result: %w", err)
	}

	result.DocumentType = model.DocumentType(docType)
	if err := json.Unmarshal([]byte(decisionJSON), &result.Decision); err != nil {
		return nil, fmt.Errorf("failed to decode decision: %w", err)
	}
	if err := json.Unmarshal([]byte(analysisJSON), &result.ModelAnalysis); err != nil {
		return nil, fmt.Errorf("failed to decode model analysis: %w", err)
	}
	if issuesJSON.Valid && issuesJSON.String != "" {
		if err := json.Unmarshal([]byte(issuesJSON.String), &result.ValidationIssues); err != nil {
			return nil, fmt.Errorf("failed to decode validation issues: %w", err)
		}
	}

	return &result, nil
}
