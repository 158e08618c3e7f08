/*
engine.go - Month and day recalculation orchestration

PURPOSE:
  Drives the per-day calculation across a month: gathers intervals, classifies
  the day, computes figures, and upserts the journey entry plus its hour-bank
  ledger row in one per-day transaction.

FAILURE SEMANTICS:
  - No resolvable rule set: rejected before any write (fail fast, no partial
    month).
  - One day failing to classify or persist aborts only that day; the failure
    lands in the result's DayErrors and the remaining days proceed.
  - Locked days are skipped and reported unless Force is set; a forced
    overwrite of a locked day is audited, never silent.

IDEMPOTENCE:
  Recalculating a day replaces its entry and its ledger row. Calculating the
  same month twice with unchanged inputs produces identical entries and no
  duplicate ledger rows, which is what makes adjustment-driven recalculation
  safely retriable.

CONCURRENCY:
  Per-(tenant, user, month) mutual exclusion via monthLocks. Two concurrent
  requests for the same month serialize; different users or months proceed in
  parallel.
*/
package journey

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/warp/journey-engine/audit"
	"github.com/warp/journey-engine/hourbank"
)

// Trigger says what caused a recalculation. Adjustment-triggered days are
// marked StatusAdjusted so reviewers can tell them from plain recalculations.
type Trigger string

const (
	TriggerManual     Trigger = "manual"
	TriggerAdjustment Trigger = "adjustment"
)

// CalcRequest asks for a recalculation of one user's month.
type CalcRequest struct {
	TenantID string
	UserID   string
	Month    YearMonth

	// Force overwrites locked days. Each forced overwrite is audited against
	// Actor.
	Force bool
	Actor string

	Trigger Trigger
}

// CalcResult reports the month after recalculation.
type CalcResult struct {
	Entries []Entry
	Summary MonthSummary

	// DayErrors lists days whose calculation failed and were not written.
	DayErrors []DayError

	// SkippedLocked lists locked days left untouched (Force not set).
	SkippedLocked []time.Time

	// NeedsAttention lists past days with an interval missing its clock-out.
	// Their entries are written from the closed intervals and stay
	// StatusCalculated, but someone has to resolve the open interval.
	NeedsAttention []time.Time
}

// Engine is the journey calculation engine.
type Engine struct {
	Rules    RuleResolver
	Calendar Calendar
	Clocks   ClockSource
	Store    EntryStore
	Leaves   LeaveChecker
	Trail    audit.Trail

	// Now is injectable for tests; defaults to time.Now.
	Now func() time.Time

	locks *monthLocks
}

// NewEngine wires an engine. Leaves defaults to NoLeave and Trail to the
// no-op trail when nil.
func NewEngine(rules RuleResolver, cal Calendar, clocks ClockSource, store EntryStore, opts ...EngineOption) *Engine {
	e := &Engine{
		Rules:    rules,
		Calendar: cal,
		Clocks:   clocks,
		Store:    store,
		Leaves:   NoLeave{},
		Trail:    audit.Nop{},
		Now:      time.Now,
		locks:    newMonthLocks(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type EngineOption func(*Engine)

func WithLeaveChecker(lc LeaveChecker) EngineOption { return func(e *Engine) { e.Leaves = lc } }
func WithAuditTrail(t audit.Trail) EngineOption     { return func(e *Engine) { e.Trail = t } }
func WithClock(now func() time.Time) EngineOption   { return func(e *Engine) { e.Now = now } }

// Calculate recomputes every day of the month up to today.
func (e *Engine) Calculate(ctx context.Context, req CalcRequest) (*CalcResult, error) {
	return e.run(ctx, req, nil)
}

// CalculateDay recomputes a single day, used by the adjustment workflow after
// an approval commits new timestamps. Same locking and semantics as a month
// run restricted to one date.
func (e *Engine) CalculateDay(ctx context.Context, req CalcRequest, date time.Time) (*CalcResult, error) {
	date = Day(date)
	req.Month = YearMonthOf(date)
	return e.run(ctx, req, []time.Time{date})
}

func (e *Engine) run(ctx context.Context, req CalcRequest, only []time.Time) (*CalcResult, error) {
	// Fail fast before any write: a user without a resolvable rule set is a
	// configuration fault, not a partial month.
	rule, err := e.Rules.ResolveForUser(ctx, req.TenantID, req.UserID)
	if err != nil {
		return nil, err
	}
	if err := rule.Validate(); err != nil {
		return nil, err
	}
	if req.Trigger == "" {
		req.Trigger = TriggerManual
	}

	release := e.locks.Acquire(fmt.Sprintf("%s|%s|%s", req.TenantID, req.UserID, req.Month))
	defer release()

	today := Day(e.Now())
	days := only
	if days == nil {
		days = req.Month.Days()
	}

	result := &CalcResult{}
	for _, date := range days {
		if date.After(today) {
			break // days that have not happened yet are not calculated
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := e.calculateDay(ctx, req, rule, date, today, result); err != nil {
			result.DayErrors = append(result.DayErrors, DayError{Date: date, Err: err})
		}
	}

	entries, err := e.Store.MonthEntries(ctx, req.TenantID, req.UserID, req.Month)
	if err != nil {
		return result, err
	}
	result.Entries = entries
	result.Summary = Summarize(req.UserID, req.Month, entries)
	return result, nil
}

// calculateDay is the transactional unit: one day's entry plus its bank row
// are written atomically or not at all.
func (e *Engine) calculateDay(ctx context.Context, req CalcRequest, rule *RuleSet, date, today time.Time, result *CalcResult) error {
	existing, err := e.Store.GetEntry(ctx, req.TenantID, req.UserID, date)
	if err != nil {
		return err
	}

	forced := false
	if existing != nil && existing.Status == StatusLocked {
		if !req.Force {
			result.SkippedLocked = append(result.SkippedLocked, date)
			return nil
		}
		forced = true
	}

	class, err := e.Calendar.Classify(ctx, req.TenantID, date)
	if err != nil {
		return err
	}
	intervals, err := e.Clocks.IntervalsOverlapping(ctx, req.TenantID, req.UserID, date, date.AddDate(0, 0, 1))
	if err != nil {
		return err
	}
	exempt, err := e.Leaves.IsExempt(ctx, req.TenantID, req.UserID, date)
	if err != nil {
		return err
	}

	f := computeDay(rule, date, class, intervals, today, exempt)

	entry := Entry{
		ID:               uuid.NewString(),
		TenantID:         req.TenantID,
		UserID:           req.UserID,
		Date:             date,
		RuleSetID:        rule.ID,
		ScheduledHours:   f.Scheduled,
		WorkedHours:      f.Worked,
		OvertimeHours50:  f.Overtime50,
		OvertimeHours100: f.Overtime100,
		OvertimePct:      f.OvertimePct,
		NightHours:       f.Night,
		AbsenceHours:     f.Absence,
		HourBankBalance:  f.BankDelta,
		IsHoliday:        class.IsHoliday,
		HolidayName:      class.HolidayName,
		IsDSR:            f.IsDSR,
		Status:           StatusCalculated,
	}
	if existing != nil {
		entry.ID = existing.ID
	}
	if req.Trigger == TriggerAdjustment {
		entry.Status = StatusAdjusted
	}
	if f.Incomplete {
		entry.Notes = "incomplete: interval missing clock-out"
		result.NeedsAttention = append(result.NeedsAttention, date)
	}

	var bank *hourbank.LedgerEntry
	if rule.UsesHourBank {
		// CreatedAt and ExpiresAt derive from the origin day, never the wall
		// clock: a March day calculated in April still counts toward the
		// March balance, and recalculating a day never slides its expiry.
		// SaveDay keeps the existing row's ID on replace.
		bank = &hourbank.LedgerEntry{
			ID:        uuid.NewString(),
			TenantID:  req.TenantID,
			UserID:    req.UserID,
			Date:      date,
			Delta:     f.BankDelta,
			CreatedAt: date,
			ExpiresAt: hourbank.ExpiryFrom(date, rule.HourBankExpiryMonths),
		}
	}

	if err := e.Store.SaveDay(ctx, entry, bank); err != nil {
		return err
	}

	if forced {
		actor := req.Actor
		if actor == "" {
			actor = "system"
		}
		rec := audit.NewRecord(
			req.TenantID,
			actor,
			audit.ActionForcedRecalculation,
			fmt.Sprintf("%s@%s", req.UserID, date.Format("2006-01-02")),
			"locked journey entry overwritten by forced recalculation",
		)
		if err := e.Trail.Record(ctx, rec); err != nil {
			return fmt.Errorf("recording forced overwrite: %w", err)
		}
	}
	return nil
}
