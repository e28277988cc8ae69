package domain

import (
	"errors"
	"fmt"
)

// ErrStateConflict is returned by alert-state stores when a compare-and-set
// loses a race with a concurrent evaluation for the same (user, category).
var ErrStateConflict = errors.New("alert state version conflict")

// IncompleteDataError reports that an entire required metric family was
// absent (or entirely stale) from the input, so no insight can be produced.
type IncompleteDataError struct {
	Family string // "air_quality" or "uv"
}

func (e *IncompleteDataError) Error() string {
	return fmt.Sprintf("incomplete data: no fresh %s readings", e.Family)
}

// StateUnavailableError reports that the alert-state store could not be read
// or written. Alert evaluation fails closed; scores and risks are unaffected.
type StateUnavailableError struct {
	UserID   string
	Category Category
	Err      error
}

func (e *StateUnavailableError) Error() string {
	return fmt.Sprintf("alert state unavailable for user %s category %s: %v", e.UserID, e.Category, e.Err)
}

func (e *StateUnavailableError) Unwrap() error { return e.Err }

// MissingAdviceTemplateError reports a hole in the advice matrix of the
// reference tables. This is a configuration defect and aborts the request.
type MissingAdviceTemplateError struct {
	Category Category
	Level    RiskLevel
}

func (e *MissingAdviceTemplateError) Error() string {
	return fmt.Sprintf("no advice template for category %s at level %s", e.Category, e.Level)
}
