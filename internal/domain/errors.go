// internal/domain/errors.go
package domain

import (
	"errors"
	"fmt"
)

// Error kinds for the analytics pipeline. Per-entity failures degrade to
// flagged fallback values; cohort-level failures abort the run.
var (
	// ErrSchemaViolation marks a missing/invalid required field or a broken
	// reference. Fatal for the offending record.
	ErrSchemaViolation = errors.New("schema violation")

	// ErrInsufficientHistory marks a series too short for seasonal modeling.
	// Non-fatal, triggers the fallback estimator.
	ErrInsufficientHistory = errors.New("insufficient history")

	// ErrModelFitFailure marks non-convergence or an exhausted iteration
	// budget. Non-fatal, triggers the fallback estimator.
	ErrModelFitFailure = errors.New("model fit failure")

	// ErrDegenerateRatio marks a zero denominator in a rate or uplift
	// calculation. Always resolved to a defined zero value.
	ErrDegenerateRatio = errors.New("degenerate ratio")

	// ErrEmptyCohort marks scorecard normalization over zero entities.
	// Fatal, aborts the run.
	ErrEmptyCohort = errors.New("empty cohort")
)

// SchemaViolation builds a schema violation error naming the offending
// table and row.
func SchemaViolation(table string, row int, detail string) error {
	return fmt.Errorf("%w: table %s row %d: %s", ErrSchemaViolation, table, row, detail)
}

// EntityError wraps an error kind with the entity it concerns.
func EntityError(kind error, entityID int64, detail string) error {
	return fmt.Errorf("%w: entity %d: %s", kind, entityID, detail)
}
