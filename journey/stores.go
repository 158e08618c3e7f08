/*
stores.go - Persistence and collaborator interfaces for the engine

The engine accepts interfaces and owns none of the I/O. store/sqlite and
store/memory implement the store interfaces; the time clock package feeds
ClockSource; leave exemptions come from an external collaborator behind
LeaveChecker.
*/
package journey

import (
	"context"
	"time"

	"github.com/warp/journey-engine/calendar"
	"github.com/warp/journey-engine/hourbank"
)

// EntryStore persists journey entries. Entries are owned exclusively by the
// engine; nothing else writes them.
type EntryStore interface {
	// GetEntry returns the entry for (user, date), or nil if none exists.
	GetEntry(ctx context.Context, tenantID, userID string, date time.Time) (*Entry, error)

	// SaveDay upserts one day atomically: the journey entry plus its
	// hour-bank ledger row in a single transaction. A nil bank entry removes
	// any stale ledger row for the day. Once SaveDay begins it completes or
	// rolls back; a day is never left half-written.
	SaveDay(ctx context.Context, e Entry, bank *hourbank.LedgerEntry) error

	// MonthEntries returns the month's entries ordered by date.
	MonthEntries(ctx context.Context, tenantID, userID string, ym YearMonth) ([]Entry, error)
}

// RuleStore persists rule sets. Administrative CRUD writes them; the engine
// only reads.
type RuleStore interface {
	// SaveRuleSet inserts or updates a rule set. Saving with IsDefault=true
	// clears the previous default for the tenant.
	SaveRuleSet(ctx context.Context, rs *RuleSet) error
	GetRuleSet(ctx context.Context, tenantID, id string) (*RuleSet, error)
	ListRuleSets(ctx context.Context, tenantID string) ([]RuleSet, error)

	// DefaultRuleSet returns the tenant's default, or nil if none is marked.
	DefaultRuleSet(ctx context.Context, tenantID string) (*RuleSet, error)
}

// RuleResolver resolves the rule set governing a user's calculation.
type RuleResolver interface {
	ResolveForUser(ctx context.Context, tenantID, userID string) (*RuleSet, error)
}

// DefaultRuleResolver resolves every user to the tenant's default rule set.
// Per-employee rule assignment lives in an external system; when present it
// plugs in as its own RuleResolver.
type DefaultRuleResolver struct {
	Rules RuleStore
}

func (r *DefaultRuleResolver) ResolveForUser(ctx context.Context, tenantID, userID string) (*RuleSet, error) {
	rs, err := r.Rules.DefaultRuleSet(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if rs == nil {
		return nil, ErrNoRuleSet
	}
	return rs, nil
}

// Calendar classifies dates. Implemented by calendar.Resolver.
type Calendar interface {
	Classify(ctx context.Context, tenantID string, date time.Time) (calendar.DayClass, error)
}

// ClockSource supplies raw clock intervals overlapping a time range.
// Implemented by the time clock store.
type ClockSource interface {
	IntervalsOverlapping(ctx context.Context, tenantID, userID string, from, to time.Time) ([]ClockInterval, error)
}

// LeaveChecker reports whether an approved leave covers a user's day, in
// which case a shortfall is not recorded as absence. The signal comes from
// the leaves module; absent that signal every shortfall is absence.
type LeaveChecker interface {
	IsExempt(ctx context.Context, tenantID, userID string, date time.Time) (bool, error)
}

// NoLeave is the LeaveChecker used when no leaves module is wired.
type NoLeave struct{}

func (NoLeave) IsExempt(ctx context.Context, tenantID, userID string, date time.Time) (bool, error) {
	return false, nil
}
