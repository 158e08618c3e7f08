/*
Package hourbank is the hour-bank ledger.

PURPOSE:
  Signed hour deltas per employee-day: credits from positive daily balances,
  debits from negative ones. The current balance is always computed from the
  entries - there is no separately stored balance to drift out of sync.

CRITICAL INVARIANTS:
  1. One ledger entry per origin journey day: recalculating a day REPLACES
     its entry, never duplicates it.
  2. Sum of non-expired, non-forfeited deltas = current balance.
  3. Expired positive deltas are forfeited by reconciliation, never silently
     dropped: every forfeiture leaves an audit record.
  4. Forfeiture never touches a debit. Expiry only takes away credits.

RECONCILIATION:
  Reconcile runs periodically (scheduler or manual trigger). It must not run
  concurrently with itself; a second caller gets ErrReconcileRunning. It may
  run concurrently with journey calculation for other users.

SEE ALSO:
  - journey/engine.go: writes ledger entries as part of the per-day upsert
  - audit: forfeiture audit records
*/
package hourbank

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/journey-engine/audit"
)

// =============================================================================
// LEDGER ENTRY
// =============================================================================

// LedgerEntry is one signed hour-bank delta, originating from a single
// journey day. Keyed by (user, origin date).
type LedgerEntry struct {
	ID       string
	TenantID string
	UserID   string
	Date     time.Time // origin journey day, midnight UTC

	Delta     decimal.Decimal // signed hours
	CreatedAt time.Time
	ExpiresAt time.Time // CreatedAt + rule's expiry horizon

	// Consumed tracks how much of a positive delta has been used up or
	// forfeited. Always zero for debits.
	Consumed      decimal.Decimal
	Forfeited     bool
	ForfeitReason string
}

// Remaining is the portion of the delta that still counts toward the balance.
func (e LedgerEntry) Remaining() decimal.Decimal {
	if e.Delta.IsPositive() {
		return e.Delta.Sub(e.Consumed)
	}
	return e.Delta
}

// ExpiryFrom derives an entry's expiry from its creation time and the rule
// set's horizon in months.
func ExpiryFrom(createdAt time.Time, months int) time.Time {
	return createdAt.AddDate(0, months, 0)
}

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrReconcileRunning is returned when a reconciliation pass is already
	// in flight. Reconciliation is single-instance.
	ErrReconcileRunning = errors.New("hour-bank reconciliation already running")

	// ErrForfeitDebit is returned on an attempt to forfeit a negative delta.
	// Expiry only removes credits; it must never reduce what an employee owes.
	ErrForfeitDebit = errors.New("cannot forfeit a debit entry")
)

// =============================================================================
// STORE
// =============================================================================

// Store persists ledger entries.
type Store interface {
	// ReplaceForDay atomically replaces the entry originating from the same
	// (user, date), keeping the existing row's ID when one is present. This
	// is what makes per-day recalculation idempotent at the ledger level.
	ReplaceForDay(ctx context.Context, e LedgerEntry) error

	// RemoveForDay drops the entry for (user, date), if any. Used when a
	// recalculated day no longer banks hours.
	RemoveForDay(ctx context.Context, tenantID, userID string, date time.Time) error

	// Entries returns all ledger entries for a user, chronological by date.
	Entries(ctx context.Context, tenantID, userID string) ([]LedgerEntry, error)

	// ExpiringEntries returns positive, unforfeited entries with
	// ExpiresAt before asOf, across all users.
	ExpiringEntries(ctx context.Context, asOf time.Time) ([]LedgerEntry, error)

	// MarkForfeited flags an entry as fully consumed by expiry.
	MarkForfeited(ctx context.Context, id, reason string) error
}

// =============================================================================
// LEDGER
// =============================================================================

// Ledger computes balances and runs the expiry reconciliation pass.
type Ledger struct {
	store Store
	trail audit.Trail

	reconcileMu sync.Mutex
	reconciling bool
}

func NewLedger(store Store, trail audit.Trail) *Ledger {
	return &Ledger{store: store, trail: trail}
}

// Balance is the sum of non-expired, non-forfeited deltas created at or
// before asOf. Debits never expire; an expired credit stops counting even
// before the reconciliation pass formally forfeits it.
func (l *Ledger) Balance(ctx context.Context, tenantID, userID string, asOf time.Time) (decimal.Decimal, error) {
	entries, err := l.store.Entries(ctx, tenantID, userID)
	if err != nil {
		return decimal.Zero, err
	}

	balance := decimal.Zero
	for _, e := range entries {
		if e.CreatedAt.After(asOf) {
			continue
		}
		if e.Delta.IsPositive() && (e.Forfeited || !e.ExpiresAt.After(asOf)) {
			continue
		}
		balance = balance.Add(e.Remaining())
	}
	return balance, nil
}

// ReconcileResult reports what a reconciliation pass forfeited.
type ReconcileResult struct {
	Forfeited      int
	ForfeitedHours decimal.Decimal
}

// Reconcile forfeits every expired positive unconsumed delta as of asOf.
// Forfeiture is irreversible and audited per entry. Returns
// ErrReconcileRunning if another pass is in flight.
func (l *Ledger) Reconcile(ctx context.Context, asOf time.Time) (ReconcileResult, error) {
	l.reconcileMu.Lock()
	if l.reconciling {
		l.reconcileMu.Unlock()
		return ReconcileResult{}, ErrReconcileRunning
	}
	l.reconciling = true
	l.reconcileMu.Unlock()
	defer func() {
		l.reconcileMu.Lock()
		l.reconciling = false
		l.reconcileMu.Unlock()
	}()

	expiring, err := l.store.ExpiringEntries(ctx, asOf)
	if err != nil {
		return ReconcileResult{}, err
	}

	result := ReconcileResult{ForfeitedHours: decimal.Zero}
	for _, e := range expiring {
		if err := l.forfeit(ctx, e); err != nil {
			return result, err
		}
		result.Forfeited++
		result.ForfeitedHours = result.ForfeitedHours.Add(e.Remaining())
	}
	return result, nil
}

func (l *Ledger) forfeit(ctx context.Context, e LedgerEntry) error {
	if e.Delta.IsNegative() || e.Delta.IsZero() {
		return fmt.Errorf("%w: entry %s delta %s", ErrForfeitDebit, e.ID, e.Delta)
	}
	if err := l.store.MarkForfeited(ctx, e.ID, "expired"); err != nil {
		return err
	}
	rec := audit.NewRecord(
		e.TenantID,
		"system",
		audit.ActionBankForfeiture,
		fmt.Sprintf("%s@%s", e.UserID, e.Date.Format("2006-01-02")),
		fmt.Sprintf("forfeited %s banked hours (expired %s)", e.Remaining(), e.ExpiresAt.Format("2006-01-02")),
	)
	return l.trail.Record(ctx, rec)
}
