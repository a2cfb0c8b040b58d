package extract

import (
	"errors"
	"fmt"
)

// ErrBudgetExceeded signals that the next call's estimated cost would cross
// the run's spend ceiling. It is a non-error outcome for the document: it is
// skipped in this run and eligible in a future one.
var ErrBudgetExceeded = errors.New("spend ceiling reached")

// ExtractionError is terminal for a single document: retries were exhausted.
// It never aborts the run.
type ExtractionError struct {
	SourceID string
	Cause    error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extraction failed for %s: %v", e.SourceID, e.Cause)
}

func (e *ExtractionError) Unwrap() error {
	return e.Cause
}
