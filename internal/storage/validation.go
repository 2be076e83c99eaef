package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Veraticus/docket/internal/model"
)

// Validation errors.
var (
	ErrNilContext       = errors.New("context cannot be nil")
	ErrEmptyString      = errors.New("string parameter cannot be empty")
	ErrNilParameter     = errors.New("parameter cannot be nil")
	ErrInvalidDateRange = errors.New("start date must be before end date")
	ErrInvalidResult    = errors.New("invalid analysis result")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateResult validates an analysis result before it is persisted.
func validateResult(result *model.AnalysisResult) error {
	if result == nil {
		return fmt.Errorf("%w: result", ErrNilParameter)
	}
	if strings.TrimSpace(result.AnalysisID) == "" {
		return fmt.Errorf("%w: missing analysis ID", ErrInvalidResult)
	}
	if strings.TrimSpace(result.Identity) == "" {
		return fmt.Errorf("%w: missing identity", ErrInvalidResult)
	}
	if err := result.DocumentType.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidResult, err)
	}
	if err := result.Decision.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidResult, err)
	}
	return nil
}
