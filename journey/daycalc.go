/*
daycalc.go - Pure per-day journey arithmetic

PURPOSE:
  Everything numeric about a single calendar day, with no I/O:
  - clipping raw clock intervals to the day (midnight-spanning intervals
    contribute to both days, split at 00:00)
  - night-window overlap (window may wrap past midnight)
  - scheduled hours per day class, overtime tier selection, absence shortfall
  - the day's signed hour-bank delta

TIER RULE:
  Exactly one overtime tier applies per day. Holiday outranks weekend
  outranks weekday; tiers never stack. Weekday-tier overtime lands in the
  50-column, weekend/holiday-tier overtime in the 100-column, and the applied
  percentage is recorded alongside.

REST DAYS:
  Sunday is the weekly paid rest day (DSR): scheduled 0 and flagged. Saturday
  and holidays are also scheduled 0, so anything worked on them is overtime
  at the weekend/holiday tier.
*/
package journey

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/journey-engine/calendar"
)

// dayFigures is the computed outcome for one calendar day.
type dayFigures struct {
	Scheduled  decimal.Decimal
	Worked     decimal.Decimal
	Overtime50 decimal.Decimal
	Overtime100 decimal.Decimal
	OvertimePct int
	Night      decimal.Decimal
	Absence    decimal.Decimal
	BankDelta  decimal.Decimal

	IsDSR      bool
	Incomplete bool // an interval on this past day never clocked out
}

// computeDay derives a day's figures from its raw intervals and calendar
// class. today guards the incomplete-day rule: an open interval is only a
// fault once the day is over.
func computeDay(rule *RuleSet, date time.Time, class calendar.DayClass, intervals []ClockInterval, today time.Time, leaveExempt bool) dayFigures {
	dayStart := date
	dayEnd := date.AddDate(0, 0, 1)

	var workedMin, nightMin int64
	incomplete := false

	for _, iv := range intervals {
		if !iv.Closed() {
			// An open interval contributes nothing yet. If the day is already
			// over, the missing clock-out is reported, never fabricated.
			if iv.In.Before(dayEnd) && !iv.In.Before(dayStart) && date.Before(today) {
				incomplete = true
			}
			continue
		}
		s, e := iv.In, *iv.Out
		if s.Before(dayStart) {
			s = dayStart
		}
		if e.After(dayEnd) {
			e = dayEnd
		}
		if !e.After(s) {
			continue
		}
		sm := int64(s.Sub(dayStart) / time.Minute)
		em := int64(e.Sub(dayStart) / time.Minute)
		workedMin += em - sm
		nightMin += nightOverlapMinutes(sm, em, rule.NightStart, rule.NightEnd)
	}

	isDSR := date.Weekday() == time.Sunday
	restDay := class.IsWeekend || class.IsHoliday

	f := dayFigures{
		OvertimePct: rule.OvertimePctFor(class.IsHoliday, class.IsWeekend),
		IsDSR:       isDSR,
		Incomplete:  incomplete,
		Scheduled:   decimal.Zero,
		Overtime50:  decimal.Zero,
		Overtime100: decimal.Zero,
		Absence:     decimal.Zero,
		BankDelta:   decimal.Zero,
	}
	if !restDay {
		f.Scheduled = rule.DailyHours
	}
	f.Worked = HoursFromMinutes(workedMin)
	f.Night = HoursFromMinutes(nightMin)

	overtime := f.Worked.Sub(f.Scheduled)
	if overtime.IsPositive() {
		if class.IsHoliday || class.IsWeekend {
			f.Overtime100 = overtime
		} else {
			f.Overtime50 = overtime
		}
	}

	if f.Scheduled.IsPositive() && !leaveExempt {
		shortfall := f.Scheduled.Sub(f.Worked)
		if shortfall.IsPositive() {
			f.Absence = shortfall
		}
	}

	if rule.UsesHourBank {
		f.BankDelta = f.Worked.Sub(f.Scheduled)
	}
	return f
}

// nightOverlapMinutes returns how many minutes of [startMin, endMin) fall
// inside the night window. Minutes are relative to the day's midnight, so a
// wrapping window (end <= start, e.g. 22:00-05:00) is the union of
// [start, 24:00) and [00:00, end).
func nightOverlapMinutes(startMin, endMin int64, nightStart, nightEnd Minute) int64 {
	ns, ne := int64(nightStart), int64(nightEnd)
	if ns == ne {
		return 0 // zero-length window: differential disabled
	}
	if ne <= ns {
		return overlap(startMin, endMin, ns, minutesPerDay) + overlap(startMin, endMin, 0, ne)
	}
	return overlap(startMin, endMin, ns, ne)
}

func overlap(aStart, aEnd, bStart, bEnd int64) int64 {
	s, e := max(aStart, bStart), min(aEnd, bEnd)
	if e > s {
		return e - s
	}
	return 0
}
