/*
Package timeclock is the raw clock ledger and the adjustment workflow.

PURPOSE:
  The append-ish record of clock-in/clock-out events the journey engine reads
  from. Entries are created by clock-in, closed by clock-out, and mutated only
  through the approval workflow in workflow.go - never edited in place by
  callers.

INVARIANTS:
  1. At most one open entry per employee: a clock-in while another entry is
     open is rejected.
  2. Clock-out must not precede clock-in.
  3. At most one pending adjustment per entry.

CONCURRENCY:
  Clock-in/clock-out serialize per user, adjustment decisions per entry, via
  keyed mutexes backed by store uniqueness constraints.

SEE ALSO:
  - workflow.go: request/approve/reject state machine
  - journey/stores.go: ClockSource, which this package implements
*/
package timeclock

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/warp/journey-engine/audit"
	"github.com/warp/journey-engine/journey"
)

// =============================================================================
// ENTRY
// =============================================================================

// Method records how the punch was captured.
type Method string

const (
	MethodSelfie    Method = "selfie"
	MethodQRCode    Method = "qrcode"
	MethodManual    Method = "manual"
	MethodWorkOrder Method = "auto_os"
)

// GeoPoint is an optional punch location. Geofence matching beyond simple
// containment is an external concern; the ledger only stores the point.
type GeoPoint struct {
	Lat float64
	Lng float64
}

// Entry is one clock-in/clock-out pair. ClockOut is nil while open.
type Entry struct {
	ID       string
	TenantID string
	UserID   string

	ClockIn     time.Time
	ClockOut    *time.Time
	InLocation  *GeoPoint
	OutLocation *GeoPoint

	Method    Method
	CreatedAt time.Time
}

// Open reports whether the entry has no clock-out yet.
func (e Entry) Open() bool { return e.ClockOut == nil }

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrOpenEntryExists is returned on clock-in while an entry is open.
	ErrOpenEntryExists = errors.New("an open clock entry already exists")

	// ErrNoOpenEntry is returned on clock-out with no open entry.
	ErrNoOpenEntry = errors.New("no open clock entry")

	// ErrOutBeforeIn is returned when a clock-out (or adjusted pair) would
	// end before it starts.
	ErrOutBeforeIn = errors.New("clock-out precedes clock-in")

	// ErrEntryNotFound is returned when a referenced entry doesn't exist.
	ErrEntryNotFound = errors.New("clock entry not found")
)

// =============================================================================
// STORE
// =============================================================================

// Store persists clock entries and adjustments.
type Store interface {
	InsertEntry(ctx context.Context, e Entry) error
	GetClockEntry(ctx context.Context, tenantID, id string) (*Entry, error)

	// OpenEntry returns the user's open entry, or nil.
	OpenEntry(ctx context.Context, tenantID, userID string) (*Entry, error)

	// CloseEntry sets the clock-out side of an open entry.
	CloseEntry(ctx context.Context, tenantID, id string, out time.Time, loc *GeoPoint) error

	// SetTimes replaces both timestamps. Only the adjustment workflow calls
	// this, after approval.
	SetTimes(ctx context.Context, tenantID, id string, in time.Time, out *time.Time) error

	// EntriesOverlapping returns entries whose interval intersects [from, to),
	// open entries included when their clock-in falls before to.
	EntriesOverlapping(ctx context.Context, tenantID, userID string, from, to time.Time) ([]Entry, error)

	InsertAdjustment(ctx context.Context, a Adjustment) error
	GetAdjustment(ctx context.Context, tenantID, id string) (*Adjustment, error)

	// PendingAdjustmentFor returns the entry's pending adjustment, or nil.
	PendingAdjustmentFor(ctx context.Context, tenantID, entryID string) (*Adjustment, error)

	// UpdateAdjustment persists a status transition.
	UpdateAdjustment(ctx context.Context, a Adjustment) error

	// ListAdjustments returns adjustments, newest first; status "" means all.
	ListAdjustments(ctx context.Context, tenantID string, status AdjustmentStatus) ([]Adjustment, error)
}

// =============================================================================
// KEYED LOCKS
// =============================================================================

type keyedLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKeyedLocks() *keyedLocks {
	return &keyedLocks{locks: make(map[string]*sync.Mutex)}
}

func (kl *keyedLocks) acquire(key string) func() {
	kl.mu.Lock()
	l, ok := kl.locks[key]
	if !ok {
		l = &sync.Mutex{}
		kl.locks[key] = l
	}
	kl.mu.Unlock()
	l.Lock()
	return l.Unlock
}

// =============================================================================
// SERVICE - clock-in / clock-out
// =============================================================================

// Recalculator triggers a day recalculation after an approved adjustment.
// Implemented by journey.Engine.
type Recalculator interface {
	CalculateDay(ctx context.Context, req journey.CalcRequest, date time.Time) (*journey.CalcResult, error)
}

// Service owns the clock ledger operations and the adjustment workflow.
type Service struct {
	store  Store
	recalc Recalculator
	trail  audit.Trail

	userLocks  *keyedLocks
	entryLocks *keyedLocks

	now func() time.Time
}

// NewService wires the time clock service. recalc may be nil in tests that
// don't assert on recalculation.
func NewService(store Store, recalc Recalculator, trail audit.Trail) *Service {
	if trail == nil {
		trail = audit.Nop{}
	}
	return &Service{
		store:      store,
		recalc:     recalc,
		trail:      trail,
		userLocks:  newKeyedLocks(),
		entryLocks: newKeyedLocks(),
		now:        time.Now,
	}
}

// WithNow overrides the service clock for tests.
func (s *Service) WithNow(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) ClockIn(ctx context.Context, tenantID, userID string, at time.Time, loc *GeoPoint, method Method) (*Entry, error) {
	release := s.userLocks.acquire(tenantID + "|" + userID)
	defer release()

	open, err := s.store.OpenEntry(ctx, tenantID, userID)
	if err != nil {
		return nil, err
	}
	if open != nil {
		return nil, ErrOpenEntryExists
	}

	if method == "" {
		method = MethodManual
	}
	e := Entry{
		ID:         uuid.NewString(),
		TenantID:   tenantID,
		UserID:     userID,
		ClockIn:    at.UTC(),
		InLocation: loc,
		Method:     method,
		CreatedAt:  s.now().UTC(),
	}
	if err := s.store.InsertEntry(ctx, e); err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *Service) ClockOut(ctx context.Context, tenantID, userID string, at time.Time, loc *GeoPoint) (*Entry, error) {
	release := s.userLocks.acquire(tenantID + "|" + userID)
	defer release()

	open, err := s.store.OpenEntry(ctx, tenantID, userID)
	if err != nil {
		return nil, err
	}
	if open == nil {
		return nil, ErrNoOpenEntry
	}
	at = at.UTC()
	if at.Before(open.ClockIn) {
		return nil, ErrOutBeforeIn
	}
	if err := s.store.CloseEntry(ctx, tenantID, open.ID, at, loc); err != nil {
		return nil, err
	}
	open.ClockOut = &at
	open.OutLocation = loc
	return open, nil
}

// Entries returns the raw clock entries overlapping [from, to).
func (s *Service) Entries(ctx context.Context, tenantID, userID string, from, to time.Time) ([]Entry, error) {
	return s.store.EntriesOverlapping(ctx, tenantID, userID, from, to)
}

// IntervalsOverlapping implements journey.ClockSource.
func (s *Service) IntervalsOverlapping(ctx context.Context, tenantID, userID string, from, to time.Time) ([]journey.ClockInterval, error) {
	entries, err := s.store.EntriesOverlapping(ctx, tenantID, userID, from, to)
	if err != nil {
		return nil, err
	}
	intervals := make([]journey.ClockInterval, 0, len(entries))
	for _, e := range entries {
		intervals = append(intervals, journey.ClockInterval{In: e.ClockIn, Out: e.ClockOut})
	}
	return intervals, nil
}
