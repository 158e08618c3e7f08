/*
Package memory is the in-memory store used by tests.

Implements every store interface in the system (journey entries, rule sets,
holidays, hour-bank ledger, time clock, audit trail) with maps behind one
RWMutex. Semantics mirror store/sqlite, including the per-day atomic upsert
of a journey entry plus its hour-bank row.
*/
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/warp/journey-engine/audit"
	"github.com/warp/journey-engine/calendar"
	"github.com/warp/journey-engine/hourbank"
	"github.com/warp/journey-engine/journey"
	"github.com/warp/journey-engine/timeclock"
)

// Store holds everything in maps. Safe for concurrent use.
type Store struct {
	mu sync.RWMutex

	rules    map[string]journey.RuleSet            // id -> rule set
	entries  map[string]journey.Entry              // tenant|user|date -> entry
	bank     map[string]hourbank.LedgerEntry       // tenant|user|date -> ledger entry
	holidays map[string]calendar.Holiday           // id -> holiday
	clock    map[string]timeclock.Entry            // id -> clock entry
	adjusts  map[string]timeclock.Adjustment       // id -> adjustment
	records  []audit.Record
}

func New() *Store {
	return &Store{
		rules:    make(map[string]journey.RuleSet),
		entries:  make(map[string]journey.Entry),
		bank:     make(map[string]hourbank.LedgerEntry),
		holidays: make(map[string]calendar.Holiday),
		clock:    make(map[string]timeclock.Entry),
		adjusts:  make(map[string]timeclock.Adjustment),
	}
}

func dayKey(tenantID, userID string, date time.Time) string {
	return tenantID + "|" + userID + "|" + date.Format("2006-01-02")
}

// =============================================================================
// journey.EntryStore
// =============================================================================

func (s *Store) GetEntry(ctx context.Context, tenantID, userID string, date time.Time) (*journey.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[dayKey(tenantID, userID, date)]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (s *Store) SaveDay(ctx context.Context, e journey.Entry, bank *hourbank.LedgerEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := dayKey(e.TenantID, e.UserID, e.Date)
	s.entries[key] = e
	if bank != nil {
		s.bank[key] = *bank
	} else {
		delete(s.bank, key)
	}
	return nil
}

func (s *Store) MonthEntries(ctx context.Context, tenantID, userID string, ym journey.YearMonth) ([]journey.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []journey.Entry
	for _, e := range s.entries {
		if e.TenantID == tenantID && e.UserID == userID && ym.Contains(e.Date) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

// =============================================================================
// journey.RuleStore
// =============================================================================

func (s *Store) SaveRuleSet(ctx context.Context, rs *journey.RuleSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rs.IsDefault {
		for id, other := range s.rules {
			if other.TenantID == rs.TenantID && other.ID != rs.ID && other.IsDefault {
				other.IsDefault = false
				s.rules[id] = other
			}
		}
	}
	s.rules[rs.ID] = *rs
	return nil
}

func (s *Store) GetRuleSet(ctx context.Context, tenantID, id string) (*journey.RuleSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rs, ok := s.rules[id]
	if !ok || rs.TenantID != tenantID {
		return nil, journey.ErrRuleSetNotFound
	}
	return &rs, nil
}

func (s *Store) ListRuleSets(ctx context.Context, tenantID string) ([]journey.RuleSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []journey.RuleSet
	for _, rs := range s.rules {
		if rs.TenantID == tenantID {
			out = append(out, rs)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) DefaultRuleSet(ctx context.Context, tenantID string) (*journey.RuleSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, rs := range s.rules {
		if rs.TenantID == tenantID && rs.IsDefault {
			out := rs
			return &out, nil
		}
	}
	return nil, nil
}

// =============================================================================
// calendar.Store
// =============================================================================

func (s *Store) SaveHoliday(ctx context.Context, h calendar.Holiday) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.holidays {
		if existing.TenantID == h.TenantID && existing.ID != h.ID &&
			existing.Date.Equal(h.Date) {
			return calendar.ErrDuplicateHoliday
		}
	}
	s.holidays[h.ID] = h
	return nil
}

func (s *Store) DeleteHoliday(ctx context.Context, tenantID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.holidays[id]
	if !ok || h.TenantID != tenantID {
		return calendar.ErrHolidayNotFound
	}
	delete(s.holidays, id)
	return nil
}

func (s *Store) ListHolidays(ctx context.Context, tenantID string) ([]calendar.Holiday, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []calendar.Holiday
	for _, h := range s.holidays {
		if h.TenantID == tenantID {
			out = append(out, h)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

// =============================================================================
// hourbank.Store
// =============================================================================

func (s *Store) ReplaceForDay(ctx context.Context, e hourbank.LedgerEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := dayKey(e.TenantID, e.UserID, e.Date)
	// The day's row keeps its identity across recalculation.
	if prev, ok := s.bank[key]; ok {
		e.ID = prev.ID
	}
	s.bank[key] = e
	return nil
}

func (s *Store) RemoveForDay(ctx context.Context, tenantID, userID string, date time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.bank, dayKey(tenantID, userID, date))
	return nil
}

func (s *Store) Entries(ctx context.Context, tenantID, userID string) ([]hourbank.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	prefix := tenantID + "|" + userID + "|"
	var out []hourbank.LedgerEntry
	for key, e := range s.bank {
		if strings.HasPrefix(key, prefix) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (s *Store) ExpiringEntries(ctx context.Context, asOf time.Time) ([]hourbank.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []hourbank.LedgerEntry
	for _, e := range s.bank {
		if !e.Forfeited && e.Delta.IsPositive() && e.ExpiresAt.Before(asOf) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (s *Store) MarkForfeited(ctx context.Context, id, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, e := range s.bank {
		if e.ID == id {
			e.Forfeited = true
			e.ForfeitReason = reason
			e.Consumed = e.Delta
			s.bank[key] = e
			return nil
		}
	}
	return fmt.Errorf("hour-bank ledger entry %s not found", id)
}

// =============================================================================
// timeclock.Store
// =============================================================================

func (s *Store) InsertEntry(ctx context.Context, e timeclock.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clock[e.ID] = e
	return nil
}

func (s *Store) getClockEntry(tenantID, id string) (*timeclock.Entry, bool) {
	e, ok := s.clock[id]
	if !ok || e.TenantID != tenantID {
		return nil, false
	}
	return &e, true
}

func (s *Store) GetClockEntry(ctx context.Context, tenantID, id string) (*timeclock.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.getClockEntry(tenantID, id)
	if !ok {
		return nil, nil
	}
	return e, nil
}

func (s *Store) OpenEntry(ctx context.Context, tenantID, userID string) (*timeclock.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.clock {
		if e.TenantID == tenantID && e.UserID == userID && e.Open() {
			out := e
			return &out, nil
		}
	}
	return nil, nil
}

func (s *Store) CloseEntry(ctx context.Context, tenantID, id string, out time.Time, loc *timeclock.GeoPoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.getClockEntry(tenantID, id)
	if !ok {
		return timeclock.ErrEntryNotFound
	}
	e.ClockOut = &out
	e.OutLocation = loc
	s.clock[id] = *e
	return nil
}

func (s *Store) SetTimes(ctx context.Context, tenantID, id string, in time.Time, out *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.getClockEntry(tenantID, id)
	if !ok {
		return timeclock.ErrEntryNotFound
	}
	e.ClockIn = in
	e.ClockOut = out
	s.clock[id] = *e
	return nil
}

func (s *Store) EntriesOverlapping(ctx context.Context, tenantID, userID string, from, to time.Time) ([]timeclock.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []timeclock.Entry
	for _, e := range s.clock {
		if e.TenantID != tenantID || e.UserID != userID {
			continue
		}
		if !e.ClockIn.Before(to) {
			continue
		}
		if e.ClockOut != nil && !e.ClockOut.After(from) {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ClockIn.Before(out[j].ClockIn) })
	return out, nil
}

func (s *Store) InsertAdjustment(ctx context.Context, a timeclock.Adjustment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.adjusts[a.ID] = a
	return nil
}

func (s *Store) GetAdjustment(ctx context.Context, tenantID, id string) (*timeclock.Adjustment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.adjusts[id]
	if !ok || a.TenantID != tenantID {
		return nil, nil
	}
	return &a, nil
}

func (s *Store) PendingAdjustmentFor(ctx context.Context, tenantID, entryID string) (*timeclock.Adjustment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.adjusts {
		if a.TenantID == tenantID && a.EntryID == entryID && a.Status == timeclock.AdjustmentPending {
			out := a
			return &out, nil
		}
	}
	return nil, nil
}

func (s *Store) UpdateAdjustment(ctx context.Context, a timeclock.Adjustment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.adjusts[a.ID]; !ok {
		return timeclock.ErrAdjustmentNotFound
	}
	s.adjusts[a.ID] = a
	return nil
}

func (s *Store) ListAdjustments(ctx context.Context, tenantID string, status timeclock.AdjustmentStatus) ([]timeclock.Adjustment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []timeclock.Adjustment
	for _, a := range s.adjusts {
		if a.TenantID != tenantID {
			continue
		}
		if status != "" && a.Status != status {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// =============================================================================
// audit.Trail
// =============================================================================

func (s *Store) Record(ctx context.Context, rec audit.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return nil
}

func (s *Store) List(ctx context.Context, tenantID string, limit int) ([]audit.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []audit.Record
	for i := len(s.records) - 1; i >= 0; i-- {
		if s.records[i].TenantID != tenantID {
			continue
		}
		out = append(out, s.records[i])
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}
