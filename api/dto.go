/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

CONVENTIONS:
  - Dates are "2006-01-02", timestamps RFC3339, months "2006-01".
  - Decimal hour quantities are serialized as JSON strings to avoid
    float rounding on the wire.

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/warp/journey-engine/audit"
	"github.com/warp/journey-engine/calendar"
	"github.com/warp/journey-engine/hourbank"
	"github.com/warp/journey-engine/journey"
	"github.com/warp/journey-engine/timeclock"
)

const dateFmt = "2006-01-02"

// =============================================================================
// RULE SETS
// =============================================================================

// RuleSetDTO represents a journey rule set in API responses.
type RuleSetDTO struct {
	ID                   string `json:"id"`
	Name                 string `json:"name"`
	DailyHours           string `json:"daily_hours"`
	WeeklyHours          string `json:"weekly_hours"`
	OvertimeWeekdayPct   int    `json:"overtime_weekday_pct"`
	OvertimeWeekendPct   int    `json:"overtime_weekend_pct"`
	OvertimeHolidayPct   int    `json:"overtime_holiday_pct"`
	NightShiftPct        int    `json:"night_shift_pct"`
	NightStart           string `json:"night_start"`
	NightEnd             string `json:"night_end"`
	UsesHourBank         bool   `json:"uses_hour_bank"`
	HourBankExpiryMonths int    `json:"hour_bank_expiry_months"`
	IsDefault            bool   `json:"is_default"`
}

// SaveRuleSetRequest creates or updates a rule set.
type SaveRuleSetRequest struct {
	ID                   string  `json:"id"`
	Name                 string  `json:"name"`
	DailyHours           float64 `json:"daily_hours"`
	WeeklyHours          float64 `json:"weekly_hours"`
	OvertimeWeekdayPct   int     `json:"overtime_weekday_pct"`
	OvertimeWeekendPct   int     `json:"overtime_weekend_pct"`
	OvertimeHolidayPct   int     `json:"overtime_holiday_pct"`
	NightShiftPct        int     `json:"night_shift_pct"`
	NightStart           string  `json:"night_start"` // "HH:MM"
	NightEnd             string  `json:"night_end"`   // "HH:MM"
	UsesHourBank         bool    `json:"uses_hour_bank"`
	HourBankExpiryMonths int     `json:"hour_bank_expiry_months"`
	IsDefault            bool    `json:"is_default"`
}

func toRuleSetDTO(rs journey.RuleSet) RuleSetDTO {
	return RuleSetDTO{
		ID:                   rs.ID,
		Name:                 rs.Name,
		DailyHours:           rs.DailyHours.String(),
		WeeklyHours:          rs.WeeklyHours.String(),
		OvertimeWeekdayPct:   rs.OvertimeWeekdayPct,
		OvertimeWeekendPct:   rs.OvertimeWeekendPct,
		OvertimeHolidayPct:   rs.OvertimeHolidayPct,
		NightShiftPct:        rs.NightShiftPct,
		NightStart:           rs.NightStart.String(),
		NightEnd:             rs.NightEnd.String(),
		UsesHourBank:         rs.UsesHourBank,
		HourBankExpiryMonths: rs.HourBankExpiryMonths,
		IsDefault:            rs.IsDefault,
	}
}

// =============================================================================
// JOURNEY CALCULATION
// =============================================================================

// RecalculateRequest triggers a month recalculation for one employee.
type RecalculateRequest struct {
	UserID string `json:"user_id"`
	Month  string `json:"month"` // "2006-01"
	Force  bool   `json:"force"`
	Actor  string `json:"actor"`
}

// EntryDTO represents one calculated day.
type EntryDTO struct {
	ID               string `json:"id"`
	UserID           string `json:"user_id"`
	Date             string `json:"date"`
	RuleSetID        string `json:"rule_set_id"`
	ScheduledHours   string `json:"scheduled_hours"`
	WorkedHours      string `json:"worked_hours"`
	OvertimeHours50  string `json:"overtime_hours_50"`
	OvertimeHours100 string `json:"overtime_hours_100"`
	OvertimePct      int    `json:"overtime_pct"`
	NightHours       string `json:"night_hours"`
	AbsenceHours     string `json:"absence_hours"`
	HourBankBalance  string `json:"hour_bank_balance"`
	IsHoliday        bool   `json:"is_holiday"`
	HolidayName      string `json:"holiday_name,omitempty"`
	IsDSR            bool   `json:"is_dsr"`
	Status           string `json:"status"`
	Notes            string `json:"notes,omitempty"`
}

func toEntryDTO(e journey.Entry) EntryDTO {
	return EntryDTO{
		ID:               e.ID,
		UserID:           e.UserID,
		Date:             e.Date.Format(dateFmt),
		RuleSetID:        e.RuleSetID,
		ScheduledHours:   e.ScheduledHours.String(),
		WorkedHours:      e.WorkedHours.String(),
		OvertimeHours50:  e.OvertimeHours50.String(),
		OvertimeHours100: e.OvertimeHours100.String(),
		OvertimePct:      e.OvertimePct,
		NightHours:       e.NightHours.String(),
		AbsenceHours:     e.AbsenceHours.String(),
		HourBankBalance:  e.HourBankBalance.String(),
		IsHoliday:        e.IsHoliday,
		HolidayName:      e.HolidayName,
		IsDSR:            e.IsDSR,
		Status:           string(e.Status),
		Notes:            e.Notes,
	}
}

// MonthSummaryDTO aggregates a calculated month.
type MonthSummaryDTO struct {
	UserID           string `json:"user_id"`
	Month            string `json:"month"`
	ScheduledHours   string `json:"scheduled_hours"`
	WorkedHours      string `json:"worked_hours"`
	OvertimeHours50  string `json:"overtime_hours_50"`
	OvertimeHours100 string `json:"overtime_hours_100"`
	NightHours       string `json:"night_hours"`
	AbsenceHours     string `json:"absence_hours"`
	HourBankDelta    string `json:"hour_bank_delta"`
	DaysWorked       int    `json:"days_worked"`
	DaysAbsent       int    `json:"days_absent"`
	Holidays         int    `json:"holidays"`
	RestDays         int    `json:"rest_days"`
	LockedDays       int    `json:"locked_days"`
}

func toMonthSummaryDTO(s journey.MonthSummary) MonthSummaryDTO {
	return MonthSummaryDTO{
		UserID:           s.UserID,
		Month:            s.YearMonth.String(),
		ScheduledHours:   s.ScheduledHours.String(),
		WorkedHours:      s.WorkedHours.String(),
		OvertimeHours50:  s.OvertimeHours50.String(),
		OvertimeHours100: s.OvertimeHours100.String(),
		NightHours:       s.NightHours.String(),
		AbsenceHours:     s.AbsenceHours.String(),
		HourBankDelta:    s.HourBankDelta.String(),
		DaysWorked:       s.DaysWorked,
		DaysAbsent:       s.DaysAbsent,
		Holidays:         s.Holidays,
		RestDays:         s.RestDays,
		LockedDays:       s.LockedDays,
	}
}

// CalcResultDTO is the response to a recalculation.
type CalcResultDTO struct {
	Entries        []EntryDTO      `json:"entries"`
	Summary        MonthSummaryDTO `json:"summary"`
	DayErrors      []DayErrorDTO   `json:"day_errors,omitempty"`
	SkippedLocked  []string        `json:"skipped_locked,omitempty"`
	NeedsAttention []string        `json:"needs_attention,omitempty"`
}

// DayErrorDTO reports a single day whose calculation failed.
type DayErrorDTO struct {
	Date  string `json:"date"`
	Error string `json:"error"`
}

func toCalcResultDTO(res *journey.CalcResult) CalcResultDTO {
	dto := CalcResultDTO{
		Entries: make([]EntryDTO, len(res.Entries)),
		Summary: toMonthSummaryDTO(res.Summary),
	}
	for i, e := range res.Entries {
		dto.Entries[i] = toEntryDTO(e)
	}
	for _, de := range res.DayErrors {
		dto.DayErrors = append(dto.DayErrors, DayErrorDTO{
			Date:  de.Date.Format(dateFmt),
			Error: de.Err.Error(),
		})
	}
	for _, d := range res.SkippedLocked {
		dto.SkippedLocked = append(dto.SkippedLocked, d.Format(dateFmt))
	}
	for _, d := range res.NeedsAttention {
		dto.NeedsAttention = append(dto.NeedsAttention, d.Format(dateFmt))
	}
	return dto
}

// =============================================================================
// HOUR BANK
// =============================================================================

// BalanceDTO is an employee's hour-bank balance at a point in time.
type BalanceDTO struct {
	UserID  string `json:"user_id"`
	AsOf    string `json:"as_of"`
	Balance string `json:"balance"`
}

// ReconcileResultDTO reports a forfeiture sweep.
type ReconcileResultDTO struct {
	Forfeited      int    `json:"forfeited"`
	ForfeitedHours string `json:"forfeited_hours"`
}

func toReconcileResultDTO(r hourbank.ReconcileResult) ReconcileResultDTO {
	return ReconcileResultDTO{
		Forfeited:      r.Forfeited,
		ForfeitedHours: r.ForfeitedHours.String(),
	}
}

// LedgerEntryDTO is one hour-bank ledger row.
type LedgerEntryDTO struct {
	ID            string `json:"id"`
	UserID        string `json:"user_id"`
	Date          string `json:"date"`
	Delta         string `json:"delta"`
	CreatedAt     string `json:"created_at"`
	ExpiresAt     string `json:"expires_at"`
	Consumed      string `json:"consumed"`
	Forfeited     bool   `json:"forfeited"`
	ForfeitReason string `json:"forfeit_reason,omitempty"`
}

func toLedgerEntryDTO(e hourbank.LedgerEntry) LedgerEntryDTO {
	return LedgerEntryDTO{
		ID:            e.ID,
		UserID:        e.UserID,
		Date:          e.Date.Format(dateFmt),
		Delta:         e.Delta.String(),
		CreatedAt:     e.CreatedAt.Format(time.RFC3339),
		ExpiresAt:     e.ExpiresAt.Format(time.RFC3339),
		Consumed:      e.Consumed.String(),
		Forfeited:     e.Forfeited,
		ForfeitReason: e.ForfeitReason,
	}
}

// =============================================================================
// HOLIDAYS
// =============================================================================

// HolidayDTO represents a holiday in API responses.
type HolidayDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Date        string `json:"date"`
	IsNational  bool   `json:"is_national"`
	IsRecurring bool   `json:"is_recurring"`
}

// CreateHolidayRequest creates a company holiday.
type CreateHolidayRequest struct {
	Name        string `json:"name"`
	Date        string `json:"date"`
	IsRecurring bool   `json:"is_recurring"`
}

// ImportNationalRequest imports the fixed national holidays for a year.
type ImportNationalRequest struct {
	Year int `json:"year"`
}

func toHolidayDTO(h calendar.Holiday) HolidayDTO {
	return HolidayDTO{
		ID:          h.ID,
		Name:        h.Name,
		Date:        h.Date.Format(dateFmt),
		IsNational:  h.IsNational,
		IsRecurring: h.IsRecurring,
	}
}

// =============================================================================
// TIME CLOCK
// =============================================================================

// ClockRequest is a clock-in or clock-out event.
type ClockRequest struct {
	UserID string   `json:"user_id"`
	At     string   `json:"at,omitempty"` // RFC3339; empty means now
	Method string   `json:"method,omitempty"`
	Lat    *float64 `json:"lat,omitempty"`
	Lng    *float64 `json:"lng,omitempty"`
}

// ClockEntryDTO represents a raw clock entry.
type ClockEntryDTO struct {
	ID       string  `json:"id"`
	UserID   string  `json:"user_id"`
	ClockIn  string  `json:"clock_in"`
	ClockOut *string `json:"clock_out"`
	Method   string  `json:"method"`
}

func toClockEntryDTO(e timeclock.Entry) ClockEntryDTO {
	dto := ClockEntryDTO{
		ID:      e.ID,
		UserID:  e.UserID,
		ClockIn: e.ClockIn.Format(time.RFC3339),
		Method:  string(e.Method),
	}
	if e.ClockOut != nil {
		s := e.ClockOut.Format(time.RFC3339)
		dto.ClockOut = &s
	}
	return dto
}

// RequestAdjustmentRequest asks to correct a clock entry's times.
type RequestAdjustmentRequest struct {
	EntryID     string `json:"entry_id"`
	RequestedBy string `json:"requested_by"`
	ClockIn     string `json:"clock_in"`  // RFC3339
	ClockOut    string `json:"clock_out"` // RFC3339
	Reason      string `json:"reason"`
}

// DecideAdjustmentRequest approves or rejects a pending adjustment.
type DecideAdjustmentRequest struct {
	Approver string `json:"approver"`
	Reason   string `json:"reason,omitempty"` // mandatory for reject
}

// AdjustmentDTO represents an adjustment request.
type AdjustmentDTO struct {
	ID               string  `json:"id"`
	EntryID          string  `json:"entry_id"`
	RequestedBy      string  `json:"requested_by"`
	OriginalClockIn  string  `json:"original_clock_in"`
	OriginalClockOut *string `json:"original_clock_out"`
	AdjustedClockIn  string  `json:"adjusted_clock_in"`
	AdjustedClockOut string  `json:"adjusted_clock_out"`
	Reason           string  `json:"reason"`
	Status           string  `json:"status"`
	ApprovedBy       string  `json:"approved_by,omitempty"`
	RejectionReason  string  `json:"rejection_reason,omitempty"`
	DecidedAt        *string `json:"decided_at,omitempty"`
	CreatedAt        string  `json:"created_at"`
}

func toAdjustmentDTO(a timeclock.Adjustment) AdjustmentDTO {
	dto := AdjustmentDTO{
		ID:               a.ID,
		EntryID:          a.EntryID,
		RequestedBy:      a.RequestedBy,
		OriginalClockIn:  a.OriginalClockIn.Format(time.RFC3339),
		AdjustedClockIn:  a.AdjustedClockIn.Format(time.RFC3339),
		AdjustedClockOut: a.AdjustedClockOut.Format(time.RFC3339),
		Reason:           a.Reason,
		Status:           string(a.Status),
		ApprovedBy:       a.ApprovedBy,
		RejectionReason:  a.RejectionReason,
		CreatedAt:        a.CreatedAt.Format(time.RFC3339),
	}
	if a.OriginalClockOut != nil {
		s := a.OriginalClockOut.Format(time.RFC3339)
		dto.OriginalClockOut = &s
	}
	if a.DecidedAt != nil {
		s := a.DecidedAt.Format(time.RFC3339)
		dto.DecidedAt = &s
	}
	return dto
}

// =============================================================================
// AUDIT
// =============================================================================

// AuditRecordDTO is one audit trail record.
type AuditRecordDTO struct {
	ID        string `json:"id"`
	Actor     string `json:"actor"`
	Action    string `json:"action"`
	Subject   string `json:"subject"`
	Detail    string `json:"detail,omitempty"`
	CreatedAt string `json:"created_at"`
}

func toAuditRecordDTO(rec audit.Record) AuditRecordDTO {
	return AuditRecordDTO{
		ID:        rec.ID,
		Actor:     rec.Actor,
		Action:    string(rec.Action),
		Subject:   rec.Subject,
		Detail:    rec.Detail,
		CreatedAt: rec.CreatedAt.Format(time.RFC3339),
	}
}

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
