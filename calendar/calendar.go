/*
Package calendar classifies calendar dates for the journey engine.

PURPOSE:
  Given a tenant and a date, answer: is it a holiday (and which), and is it a
  weekend? The journey engine consults this for scheduled-hours and overtime
  tier decisions; the administrative API manages the holiday table.

RESOLUTION RULES:
  - Weekend = Saturday/Sunday by calendar, independent of holiday status.
  - Recurring holidays match by month/day with the year substituted.
  - If a recurring and a one-off holiday resolve to the same date, it is a
    single holiday (the one-off wins the name, nothing double-counts).

NATIONAL IMPORT:
  ImportNational seeds the fixed-date Brazilian national holidays for a year.
  The import is idempotent: dates already present for the tenant are skipped,
  never duplicated.

SEE ALSO:
  - journey/engine.go: the consumer of Classify
  - store/sqlite: persistent holiday store
*/
package calendar

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// HOLIDAY
// =============================================================================

// Holiday is a tenant-scoped holiday. National holidays are shared entries
// every tenant imports; recurring ones repeat on the same month/day yearly.
type Holiday struct {
	ID          string
	TenantID    string
	Name        string
	Date        time.Time // midnight UTC
	IsNational  bool
	IsRecurring bool
}

var (
	// ErrDuplicateHoliday is returned when a holiday already exists for the
	// tenant on the same date.
	ErrDuplicateHoliday = errors.New("holiday already exists for date")

	// ErrHolidayNotFound is returned when a referenced holiday doesn't exist.
	ErrHolidayNotFound = errors.New("holiday not found")
)

// Store persists holidays. An unresolvable tenant calendar (store failure) is
// a configuration fault surfaced upward, never guessed around.
type Store interface {
	SaveHoliday(ctx context.Context, h Holiday) error
	DeleteHoliday(ctx context.Context, tenantID, id string) error

	// ListHolidays returns all holidays for a tenant, recurring ones included
	// with their original (unsubstituted) dates.
	ListHolidays(ctx context.Context, tenantID string) ([]Holiday, error)
}

// =============================================================================
// DAY CLASSIFICATION
// =============================================================================

// DayClass is the calendar classification of a single date.
type DayClass struct {
	IsHoliday   bool
	HolidayName string
	IsWeekend   bool
}

// Resolver classifies dates against a tenant's holiday table.
type Resolver struct {
	Store Store
}

func NewResolver(store Store) *Resolver {
	return &Resolver{Store: store}
}

// Classify resolves a single date. Weekend and holiday are independent flags:
// a holiday falling on a Saturday reports both.
func (r *Resolver) Classify(ctx context.Context, tenantID string, date time.Time) (DayClass, error) {
	wd := date.Weekday()
	class := DayClass{IsWeekend: wd == time.Saturday || wd == time.Sunday}

	holidays, err := r.Store.ListHolidays(ctx, tenantID)
	if err != nil {
		return DayClass{}, fmt.Errorf("resolving tenant calendar: %w", err)
	}

	var recurringName string
	for _, h := range holidays {
		if h.IsRecurring {
			if h.Date.Month() == date.Month() && h.Date.Day() == date.Day() {
				recurringName = h.Name
				class.IsHoliday = true
			}
			continue
		}
		if sameDate(h.Date, date) {
			// A one-off entry outranks a recurring one on the same date.
			class.IsHoliday = true
			class.HolidayName = h.Name
		}
	}
	if class.IsHoliday && class.HolidayName == "" {
		class.HolidayName = recurringName
	}
	return class, nil
}

// ForYear materializes the tenant's holidays for a year: recurring entries
// get the year substituted, and a one-off on the same resolved date shadows
// the recurring one.
func (r *Resolver) ForYear(ctx context.Context, tenantID string, year int) ([]Holiday, error) {
	holidays, err := r.Store.ListHolidays(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("resolving tenant calendar: %w", err)
	}

	byDate := make(map[string]Holiday)
	// Recurring first so one-off entries overwrite them.
	for _, h := range holidays {
		if !h.IsRecurring {
			continue
		}
		resolved := h
		resolved.Date = time.Date(year, h.Date.Month(), h.Date.Day(), 0, 0, 0, 0, time.UTC)
		byDate[resolved.Date.Format("2006-01-02")] = resolved
	}
	for _, h := range holidays {
		if h.IsRecurring || h.Date.Year() != year {
			continue
		}
		byDate[h.Date.Format("2006-01-02")] = h
	}

	out := make([]Holiday, 0, len(byDate))
	for _, h := range byDate {
		out = append(out, h)
	}
	sortByDate(out)
	return out, nil
}

func sameDate(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month() && a.Day() == b.Day()
}

func sortByDate(hs []Holiday) {
	sort.Slice(hs, func(i, j int) bool { return hs[i].Date.Before(hs[j].Date) })
}

// =============================================================================
// NATIONAL HOLIDAY IMPORT
// =============================================================================

// nationalHoliday is a fixed-date Brazilian national holiday.
type nationalHoliday struct {
	Month time.Month
	Day   int
	Name  string
}

var nationalHolidays = []nationalHoliday{
	{time.January, 1, "Confraternização Universal"},
	{time.April, 21, "Tiradentes"},
	{time.May, 1, "Dia do Trabalho"},
	{time.September, 7, "Independência do Brasil"},
	{time.October, 12, "Nossa Senhora Aparecida"},
	{time.November, 2, "Finados"},
	{time.November, 15, "Proclamação da República"},
	{time.December, 25, "Natal"},
}

// ImportNational seeds the fixed-date national holidays for a year.
// Idempotent: dates already present for the tenant/year are skipped.
// Returns the holidays actually inserted.
func (r *Resolver) ImportNational(ctx context.Context, tenantID string, year int) ([]Holiday, error) {
	existing, err := r.ForYear(ctx, tenantID, year)
	if err != nil {
		return nil, err
	}
	taken := make(map[string]bool, len(existing))
	for _, h := range existing {
		taken[h.Date.Format("2006-01-02")] = true
	}

	var inserted []Holiday
	for _, nh := range nationalHolidays {
		date := time.Date(year, nh.Month, nh.Day, 0, 0, 0, 0, time.UTC)
		if taken[date.Format("2006-01-02")] {
			continue
		}
		h := Holiday{
			ID:          uuid.NewString(),
			TenantID:    tenantID,
			Name:        nh.Name,
			Date:        date,
			IsNational:  true,
			IsRecurring: true,
		}
		if err := r.Store.SaveHoliday(ctx, h); err != nil {
			if errors.Is(err, ErrDuplicateHoliday) {
				continue
			}
			return inserted, err
		}
		inserted = append(inserted, h)
	}
	return inserted, nil
}
