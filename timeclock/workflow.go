/*
workflow.go - Clock adjustment request/approve/reject state machine

STATE MACHINE:
  pending -> approved   commits the adjusted timestamps onto the clock entry,
                        then triggers recalculation of every affected day
  pending -> rejected   terminal, mandatory reason, no ledger mutation

SIDE-EFFECT ORDERING:
  The entry mutation commits BEFORE recalculation is issued. If recalculation
  fails afterwards the approval stands (it is audited either way) and the
  caller retries recalculation; the engine's per-day idempotence makes the
  retry safe. Approve signals this case with ErrRecalculationFailed while
  still returning the approved adjustment.
*/
package timeclock

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/warp/journey-engine/audit"
	"github.com/warp/journey-engine/journey"
)

// =============================================================================
// ADJUSTMENT
// =============================================================================

type AdjustmentStatus string

const (
	AdjustmentPending  AdjustmentStatus = "pending"
	AdjustmentApproved AdjustmentStatus = "approved"
	AdjustmentRejected AdjustmentStatus = "rejected"
)

// Adjustment proposes replacement timestamps for one clock entry. The
// original pair is snapshotted at request time so the decision is reviewable
// even after the entry changes.
type Adjustment struct {
	ID       string
	TenantID string
	EntryID  string

	RequestedBy string

	OriginalClockIn  time.Time
	OriginalClockOut *time.Time
	AdjustedClockIn  time.Time
	AdjustedClockOut time.Time

	Reason string
	Status AdjustmentStatus

	ApprovedBy      string
	RejectionReason string
	DecidedAt       *time.Time

	CreatedAt time.Time
}

var (
	// ErrPendingAdjustmentExists is returned when the entry already has a
	// pending request. One at a time.
	ErrPendingAdjustmentExists = errors.New("entry already has a pending adjustment")

	// ErrAdjustmentNotFound is returned for an unknown adjustment id.
	ErrAdjustmentNotFound = errors.New("adjustment not found")

	// ErrNotPending is returned when deciding an adjustment that already
	// reached a terminal state.
	ErrNotPending = errors.New("adjustment is not pending")

	// ErrReasonRequired is returned when a request or rejection lacks its
	// mandatory reason.
	ErrReasonRequired = errors.New("reason is required")

	// ErrRecalculationFailed signals that an approval committed but the
	// follow-up recalculation did not. The approval stands; recalculation is
	// retried idempotently.
	ErrRecalculationFailed = errors.New("recalculation after approval failed")
)

// =============================================================================
// WORKFLOW OPERATIONS
// =============================================================================

// RequestAdjustment opens a pending adjustment for an entry.
func (s *Service) RequestAdjustment(ctx context.Context, tenantID, requestedBy, entryID string, in, out time.Time, reason string) (*Adjustment, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, ErrReasonRequired
	}
	in, out = in.UTC(), out.UTC()
	if out.Before(in) {
		return nil, ErrOutBeforeIn
	}

	release := s.entryLocks.acquire(tenantID + "|" + entryID)
	defer release()

	entry, err := s.store.GetClockEntry(ctx, tenantID, entryID)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, ErrEntryNotFound
	}
	pending, err := s.store.PendingAdjustmentFor(ctx, tenantID, entryID)
	if err != nil {
		return nil, err
	}
	if pending != nil {
		return nil, ErrPendingAdjustmentExists
	}

	a := Adjustment{
		ID:               uuid.NewString(),
		TenantID:         tenantID,
		EntryID:          entryID,
		RequestedBy:      requestedBy,
		OriginalClockIn:  entry.ClockIn,
		OriginalClockOut: entry.ClockOut,
		AdjustedClockIn:  in,
		AdjustedClockOut: out,
		Reason:           reason,
		Status:           AdjustmentPending,
		CreatedAt:        s.now().UTC(),
	}
	if err := s.store.InsertAdjustment(ctx, a); err != nil {
		return nil, err
	}
	return &a, nil
}

// Approve commits the adjusted timestamps onto the entry and triggers
// recalculation of every day the original or adjusted interval touches.
func (s *Service) Approve(ctx context.Context, tenantID, adjustmentID, approver string) (*Adjustment, error) {
	a, err := s.store.GetAdjustment(ctx, tenantID, adjustmentID)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, ErrAdjustmentNotFound
	}

	release := s.entryLocks.acquire(tenantID + "|" + a.EntryID)
	defer release()

	// Re-read under the entry lock; a concurrent decision may have landed.
	a, err = s.store.GetAdjustment(ctx, tenantID, adjustmentID)
	if err != nil {
		return nil, err
	}
	if a.Status != AdjustmentPending {
		return nil, fmt.Errorf("%w: status %s", ErrNotPending, a.Status)
	}

	entry, err := s.store.GetClockEntry(ctx, tenantID, a.EntryID)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, ErrEntryNotFound
	}

	// Commit order matters: entry first, then the adjustment transition, and
	// only then recalculation.
	out := a.AdjustedClockOut
	if err := s.store.SetTimes(ctx, tenantID, a.EntryID, a.AdjustedClockIn, &out); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	a.Status = AdjustmentApproved
	a.ApprovedBy = approver
	a.DecidedAt = &now
	if err := s.store.UpdateAdjustment(ctx, *a); err != nil {
		return nil, err
	}

	rec := audit.NewRecord(
		tenantID,
		approver,
		audit.ActionAdjustmentApproved,
		a.EntryID,
		fmt.Sprintf("clock entry adjusted to %s - %s: %s",
			a.AdjustedClockIn.Format(time.RFC3339), out.Format(time.RFC3339), a.Reason),
	)
	if err := s.trail.Record(ctx, rec); err != nil {
		return nil, err
	}

	if err := s.recalculateAffected(ctx, tenantID, entry.UserID, approver, a); err != nil {
		return a, fmt.Errorf("%w: %v", ErrRecalculationFailed, err)
	}
	return a, nil
}

// Reject closes a pending adjustment with a mandatory reason. No ledger
// mutation, no recalculation.
func (s *Service) Reject(ctx context.Context, tenantID, adjustmentID, approver, reason string) (*Adjustment, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, ErrReasonRequired
	}

	a, err := s.store.GetAdjustment(ctx, tenantID, adjustmentID)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, ErrAdjustmentNotFound
	}

	release := s.entryLocks.acquire(tenantID + "|" + a.EntryID)
	defer release()

	a, err = s.store.GetAdjustment(ctx, tenantID, adjustmentID)
	if err != nil {
		return nil, err
	}
	if a.Status != AdjustmentPending {
		return nil, fmt.Errorf("%w: status %s", ErrNotPending, a.Status)
	}

	now := s.now().UTC()
	a.Status = AdjustmentRejected
	a.ApprovedBy = approver
	a.RejectionReason = reason
	a.DecidedAt = &now
	if err := s.store.UpdateAdjustment(ctx, *a); err != nil {
		return nil, err
	}

	rec := audit.NewRecord(tenantID, approver, audit.ActionAdjustmentRejected, a.EntryID, reason)
	if err := s.trail.Record(ctx, rec); err != nil {
		return nil, err
	}
	return a, nil
}

// ListAdjustments returns adjustments for review, newest first.
func (s *Service) ListAdjustments(ctx context.Context, tenantID string, status AdjustmentStatus) ([]Adjustment, error) {
	return s.store.ListAdjustments(ctx, tenantID, status)
}

// recalculateAffected recomputes every day the original or adjusted interval
// touches. Moving a punch across midnight changes two days; both the old and
// the new ones are re-derived.
func (s *Service) recalculateAffected(ctx context.Context, tenantID, userID, actor string, a *Adjustment) error {
	if s.recalc == nil {
		return nil
	}
	for _, date := range a.affectedDates() {
		req := journey.CalcRequest{
			TenantID: tenantID,
			UserID:   userID,
			Actor:    actor,
			Trigger:  journey.TriggerAdjustment,
		}
		if _, err := s.recalc.CalculateDay(ctx, req, date); err != nil {
			return err
		}
	}
	return nil
}

// affectedDates is the union of the calendar days spanned by the original
// and adjusted intervals.
func (a *Adjustment) affectedDates() []time.Time {
	seen := make(map[string]bool)
	var dates []time.Time

	add := func(from time.Time, to *time.Time) {
		end := from
		if to != nil {
			end = *to
		}
		for d := journey.Day(from); !d.After(journey.Day(end)); d = d.AddDate(0, 0, 1) {
			key := d.Format("2006-01-02")
			if !seen[key] {
				seen[key] = true
				dates = append(dates, d)
			}
		}
	}
	add(a.OriginalClockIn, a.OriginalClockOut)
	out := a.AdjustedClockOut
	add(a.AdjustedClockIn, &out)
	return dates
}
