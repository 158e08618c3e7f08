/*
errors.go - Sentinel errors and per-day fault reporting

ERROR CATEGORIES:
  1. Configuration faults - no resolvable rule set; rejected before any write
  2. Invariant violations - locked-day overwrite without force, invalid input
  3. Per-day faults - one day's classification/calculation failed; the rest
     of the month still completes and the fault is reported in the result

Domain packages wrap these with additional context; the API layer maps them
to HTTP status codes via the Is* helpers.
*/
package journey

import (
	"errors"
	"fmt"
	"time"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNoRuleSet is returned when no rule set is resolvable for a user.
	// This is a configuration fault: calculation is rejected before any write.
	ErrNoRuleSet = errors.New("no journey rule set resolvable")

	// ErrInvalidRuleSet is returned when a rule set fails field validation.
	ErrInvalidRuleSet = errors.New("invalid rule set")

	// ErrEntryLocked is returned when a recalculation would overwrite a locked
	// day without force. Never silently ignored: the caller sees why the
	// recalculation had no visible effect.
	ErrEntryLocked = errors.New("journey entry is locked")

	// ErrInvalidYearMonth is returned for a malformed year-month.
	ErrInvalidYearMonth = errors.New("invalid year-month")

	// ErrRuleSetNotFound is returned when a referenced rule set doesn't exist.
	ErrRuleSetNotFound = errors.New("rule set not found")

	// ErrEntryNotFound is returned when a referenced journey entry doesn't exist.
	ErrEntryNotFound = errors.New("journey entry not found")
)

// =============================================================================
// PER-DAY FAULTS
// =============================================================================

// DayError records a single day whose calculation failed. Other days in the
// same request still complete; nothing is written for the failed day.
type DayError struct {
	Date time.Time
	Err  error
}

func (e DayError) Error() string {
	return fmt.Sprintf("day %s: %v", e.Date.Format("2006-01-02"), e.Err)
}

func (e DayError) Unwrap() error { return e.Err }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsConfigurationFault reports whether the error is a configuration problem
// that should be fixed by an administrator, not retried.
func IsConfigurationFault(err error) bool {
	return errors.Is(err, ErrNoRuleSet) || errors.Is(err, ErrInvalidRuleSet)
}

// IsClientError reports whether the error is due to invalid caller input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidYearMonth) ||
		errors.Is(err, ErrInvalidRuleSet) ||
		errors.Is(err, ErrEntryLocked)
}

// IsNotFound reports whether the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrRuleSetNotFound) || errors.Is(err, ErrEntryNotFound)
}
