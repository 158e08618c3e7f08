/*
Package journey is the daily journey calculation engine.

PURPOSE:
  Turns raw clock-in/clock-out intervals plus a tenant's labor rules into a
  per-day ledger of scheduled/worked/overtime/night/absence hours and a daily
  hour-bank delta. One Entry per employee per calendar date, rolled up into a
  MonthSummary that is always recomputed from its entries, never stored.

KEY CONCEPTS IN THIS FILE (types.go):
  - RuleSet: A tenant's labor-rule configuration (targets, overtime tiers,
    night window, hour-bank settings)
  - Entry: The per-day calculation result, keyed by (user, date)
  - MonthSummary: Pure aggregation of a month's entries
  - YearMonth: A calendar month, the unit of recalculation
  - ClockInterval: A raw worked interval as seen by the engine

DESIGN PRINCIPLES:
  1. Precision: decimal.Decimal for every hour quantity, rounded to 2 places
  2. Idempotence: recalculating a day replaces its outputs, never duplicates
  3. Explicit tenancy: tenant and rule set are parameters, never ambient state

SEE ALSO:
  - engine.go: month recalculation orchestration
  - daycalc.go: the pure per-day arithmetic
  - errors.go: sentinel errors and per-day fault reporting
*/
package journey

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// HOURS - All quantities are decimal hours
// =============================================================================

// Hours constructs a decimal hour quantity from a float.
func Hours(v float64) decimal.Decimal { return decimal.NewFromFloat(v) }

// HoursFromMinutes converts whole minutes to decimal hours.
func HoursFromMinutes(m int64) decimal.Decimal {
	return decimal.NewFromInt(m).Div(sixty).Round(2)
}

var sixty = decimal.NewFromInt(60)

// =============================================================================
// CLOCK-OF-DAY MINUTES - Night window boundaries
// =============================================================================

// Minute is a time of day expressed as minutes past midnight (0..1439).
type Minute int

const minutesPerDay = 24 * 60

// ParseClock parses "HH:MM" into minutes past midnight.
func ParseClock(s string) (Minute, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("invalid clock time %q: %w", s, err)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid clock time %q", s)
	}
	return Minute(h*60 + m), nil
}

func (m Minute) String() string {
	return fmt.Sprintf("%02d:%02d", int(m)/60, int(m)%60)
}

// =============================================================================
// RULE SET - A tenant's labor-rule configuration
// =============================================================================

// RuleSet defines daily/weekly hour targets, overtime percentages per day
// class, the night-shift differential window, and hour-bank behavior.
//
// At most one rule set per tenant has IsDefault=true; the store enforces it.
// A rule set referenced by a locked Entry is effectively frozen: edits only
// affect future recalculations.
type RuleSet struct {
	ID       string
	TenantID string
	Name     string

	DailyHours  decimal.Decimal
	WeeklyHours decimal.Decimal

	// Percentage points above base rate. Exactly one tier applies per day:
	// holiday outranks weekend outranks weekday.
	OvertimeWeekdayPct int
	OvertimeWeekendPct int
	OvertimeHolidayPct int

	// Night differential. The window may wrap past midnight
	// (e.g. 22:00-05:00 covers [22:00,24:00) and [00:00,05:00)).
	NightShiftPct int
	NightStart    Minute
	NightEnd      Minute

	UsesHourBank         bool
	HourBankExpiryMonths int

	IsDefault bool
}

// Validate checks field ranges. Mirrors the administrative API contract.
func (r *RuleSet) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidRuleSet)
	}
	one, day, week := decimal.NewFromInt(1), decimal.NewFromInt(24), decimal.NewFromInt(168)
	if r.DailyHours.LessThan(one) || r.DailyHours.GreaterThan(day) {
		return fmt.Errorf("%w: daily_hours must be within 1-24", ErrInvalidRuleSet)
	}
	if r.WeeklyHours.LessThan(one) || r.WeeklyHours.GreaterThan(week) {
		return fmt.Errorf("%w: weekly_hours must be within 1-168", ErrInvalidRuleSet)
	}
	for _, pct := range []int{r.OvertimeWeekdayPct, r.OvertimeWeekendPct, r.OvertimeHolidayPct} {
		if pct < 0 || pct > 200 {
			return fmt.Errorf("%w: overtime percentages must be within 0-200", ErrInvalidRuleSet)
		}
	}
	if r.NightShiftPct < 0 || r.NightShiftPct > 100 {
		return fmt.Errorf("%w: night_shift_pct must be within 0-100", ErrInvalidRuleSet)
	}
	if r.UsesHourBank && (r.HourBankExpiryMonths < 1 || r.HourBankExpiryMonths > 24) {
		return fmt.Errorf("%w: hour_bank_expiry_months must be within 1-24", ErrInvalidRuleSet)
	}
	return nil
}

// OvertimePctFor returns the single tier that applies for a day class.
// Holiday outranks weekend outranks weekday; tiers never stack.
func (r *RuleSet) OvertimePctFor(isHoliday, isWeekend bool) int {
	switch {
	case isHoliday:
		return r.OvertimeHolidayPct
	case isWeekend:
		return r.OvertimeWeekendPct
	default:
		return r.OvertimeWeekdayPct
	}
}

// =============================================================================
// ENTRY - One employee-day of calculated journey
// =============================================================================

type EntryStatus string

const (
	// StatusCalculated is the normal outcome of an automatic recalculation.
	StatusCalculated EntryStatus = "calculated"

	// StatusAdjusted marks a day whose inputs were changed by a human or an
	// approved clock adjustment since the last plain calculation.
	StatusAdjusted EntryStatus = "adjusted"

	// StatusLocked excludes a day from automatic recalculation (payroll close).
	// A locked day only changes through a forced, audited recalculation.
	StatusLocked EntryStatus = "locked"
)

// Entry is the per-day calculation result. Unique per (user, date).
type Entry struct {
	ID        string
	TenantID  string
	UserID    string
	Date      time.Time // midnight UTC, day granularity
	RuleSetID string

	ScheduledHours   decimal.Decimal
	WorkedHours      decimal.Decimal
	OvertimeHours50  decimal.Decimal // weekday-tier overtime
	OvertimeHours100 decimal.Decimal // weekend/holiday-tier overtime
	OvertimePct      int             // the single tier applied, in percentage points
	NightHours       decimal.Decimal
	AbsenceHours     decimal.Decimal
	HourBankBalance  decimal.Decimal // signed day delta; zero unless rule banks hours

	IsHoliday   bool
	HolidayName string
	IsDSR       bool

	Status EntryStatus
	Notes  string
}

// Day normalizes a timestamp to midnight UTC, the Entry date key.
func Day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// =============================================================================
// MONTH SUMMARY - Derived aggregation, never persisted
// =============================================================================

type MonthSummary struct {
	UserID    string
	YearMonth YearMonth

	ScheduledHours   decimal.Decimal
	WorkedHours      decimal.Decimal
	OvertimeHours50  decimal.Decimal
	OvertimeHours100 decimal.Decimal
	NightHours       decimal.Decimal
	AbsenceHours     decimal.Decimal
	HourBankDelta    decimal.Decimal

	DaysWorked  int
	DaysAbsent  int
	Holidays    int
	RestDays    int
	LockedDays  int
}

// Summarize aggregates a month's entries. The summary is always recomputable
// from its source entries.
func Summarize(userID string, ym YearMonth, entries []Entry) MonthSummary {
	s := MonthSummary{
		UserID:           userID,
		YearMonth:        ym,
		ScheduledHours:   decimal.Zero,
		WorkedHours:      decimal.Zero,
		OvertimeHours50:  decimal.Zero,
		OvertimeHours100: decimal.Zero,
		NightHours:       decimal.Zero,
		AbsenceHours:     decimal.Zero,
		HourBankDelta:    decimal.Zero,
	}
	for _, e := range entries {
		s.ScheduledHours = s.ScheduledHours.Add(e.ScheduledHours)
		s.WorkedHours = s.WorkedHours.Add(e.WorkedHours)
		s.OvertimeHours50 = s.OvertimeHours50.Add(e.OvertimeHours50)
		s.OvertimeHours100 = s.OvertimeHours100.Add(e.OvertimeHours100)
		s.NightHours = s.NightHours.Add(e.NightHours)
		s.AbsenceHours = s.AbsenceHours.Add(e.AbsenceHours)
		s.HourBankDelta = s.HourBankDelta.Add(e.HourBankBalance)

		if e.WorkedHours.IsPositive() {
			s.DaysWorked++
		}
		if e.AbsenceHours.IsPositive() {
			s.DaysAbsent++
		}
		if e.IsHoliday {
			s.Holidays++
		}
		if e.IsDSR {
			s.RestDays++
		}
		if e.Status == StatusLocked {
			s.LockedDays++
		}
	}
	return s
}

// =============================================================================
// YEAR-MONTH - The unit of recalculation
// =============================================================================

type YearMonth struct {
	Year  int
	Month time.Month
}

// ParseYearMonth parses the wire format "YYYY-MM".
func ParseYearMonth(s string) (YearMonth, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return YearMonth{}, fmt.Errorf("%w: %q (want YYYY-MM)", ErrInvalidYearMonth, s)
	}
	return YearMonth{Year: t.Year(), Month: t.Month()}, nil
}

func (ym YearMonth) String() string {
	return fmt.Sprintf("%04d-%02d", ym.Year, int(ym.Month))
}

// First returns midnight UTC of the month's first day.
func (ym YearMonth) First() time.Time {
	return time.Date(ym.Year, ym.Month, 1, 0, 0, 0, 0, time.UTC)
}

// NextFirst returns midnight UTC of the following month's first day.
func (ym YearMonth) NextFirst() time.Time {
	return ym.First().AddDate(0, 1, 0)
}

// Days returns every calendar day of the month at midnight UTC.
func (ym YearMonth) Days() []time.Time {
	var days []time.Time
	for d, end := ym.First(), ym.NextFirst(); d.Before(end); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

// Contains reports whether the date falls in this month.
func (ym YearMonth) Contains(date time.Time) bool {
	return date.Year() == ym.Year && date.Month() == ym.Month
}

// YearMonthOf returns the month containing the date.
func YearMonthOf(date time.Time) YearMonth {
	return YearMonth{Year: date.Year(), Month: date.Month()}
}

// =============================================================================
// CLOCK INTERVAL - Raw input as seen by the engine
// =============================================================================

// ClockInterval is a raw clock-in/clock-out pair. Out is nil while the
// interval is still open. The engine never mutates intervals; adjustments go
// through the time clock workflow.
type ClockInterval struct {
	In  time.Time
	Out *time.Time
}

// Closed reports whether the interval has a clock-out.
func (ci ClockInterval) Closed() bool { return ci.Out != nil }
