/*
handlers.go - HTTP API handlers for the journey calculation engine

PURPOSE:
  Exposes the journey, hour-bank, calendar and time-clock services via
  REST API. Handles HTTP request/response, JSON serialization, and
  delegates to domain logic.

ENDPOINTS:
  Journey:
    POST   /api/journey/recalculate      Recalculate a user-month
    GET    /api/journey/entries          Calculated entries for a month
    GET    /api/journey/rules            List rule sets
    POST   /api/journey/rules            Create/update a rule set
    GET    /api/journey/rules/{id}       Get a rule set

  Hour bank:
    GET    /api/hour-bank/balance        Balance as of a timestamp
    GET    /api/hour-bank/entries        Ledger rows for a user
    POST   /api/hour-bank/reconcile      Forfeit expired credits

  Holidays:
    GET    /api/holidays                 Holidays resolved for a year
    POST   /api/holidays                 Create a company holiday
    POST   /api/holidays/import-national Import fixed national holidays
    DELETE /api/holidays/{id}            Delete a holiday

  Time clock:
    POST   /api/clock/in                 Open a clock entry
    POST   /api/clock/out                Close the open clock entry
    GET    /api/clock/entries            Raw entries in a window
    POST   /api/clock/adjustments        Request a correction
    GET    /api/clock/adjustments        List adjustments (filter by status)
    POST   /api/clock/adjustments/{id}/approve
    POST   /api/clock/adjustments/{id}/reject

  Audit:
    GET    /api/audit                    Recent audit records

TENANCY:
  Every request carries an X-Tenant-ID header; requireTenant rejects
  requests without one. Handlers read the tenant from the request context.

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Malformed input
  - 404: Resource not found
  - 409: Invariant conflict (locked day, open entry, pending adjustment)
  - 422: Configuration fault (no resolvable rule set, invalid rule set)
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/warp/journey-engine/audit"
	"github.com/warp/journey-engine/calendar"
	"github.com/warp/journey-engine/hourbank"
	"github.com/warp/journey-engine/journey"
	"github.com/warp/journey-engine/timeclock"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Engine   *journey.Engine
	Rules    journey.RuleStore
	Calendar *calendar.Resolver
	Holidays calendar.Store
	Ledger   *hourbank.Ledger
	Bank     hourbank.Store
	Clock    *timeclock.Service
	Trail    audit.Trail
	Log      *zap.Logger

	// Now is injectable for tests; defaults to time.Now.
	Now func() time.Time
}

// NewHandler creates a handler wired to the given services.
func NewHandler(
	engine *journey.Engine,
	rules journey.RuleStore,
	cal *calendar.Resolver,
	holidays calendar.Store,
	ledger *hourbank.Ledger,
	bank hourbank.Store,
	clock *timeclock.Service,
	trail audit.Trail,
	log *zap.Logger,
) *Handler {
	return &Handler{
		Engine:   engine,
		Rules:    rules,
		Calendar: cal,
		Holidays: holidays,
		Ledger:   ledger,
		Bank:     bank,
		Clock:    clock,
		Trail:    trail,
		Log:      log,
		Now:      time.Now,
	}
}

// =============================================================================
// JOURNEY HANDLERS
// =============================================================================

// Recalculate recalculates one user-month.
// POST /api/journey/recalculate
func (h *Handler) Recalculate(w http.ResponseWriter, r *http.Request) {
	tenantID := tenantFrom(r)

	var req RecalculateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required", nil)
		return
	}
	ym, err := journey.ParseYearMonth(req.Month)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid month, expected YYYY-MM", err)
		return
	}

	res, err := h.Engine.Calculate(r.Context(), journey.CalcRequest{
		TenantID: tenantID,
		UserID:   req.UserID,
		Month:    ym,
		Force:    req.Force,
		Actor:    req.Actor,
		Trigger:  journey.TriggerManual,
	})
	if err != nil {
		h.Log.Warn("recalculation failed",
			zap.String("tenant", tenantID),
			zap.String("user", req.UserID),
			zap.String("month", ym.String()),
			zap.Error(err))
		writeError(w, statusFor(err), "Recalculation failed", err)
		return
	}

	h.Log.Info("month recalculated",
		zap.String("tenant", tenantID),
		zap.String("user", req.UserID),
		zap.String("month", ym.String()),
		zap.Int("entries", len(res.Entries)),
		zap.Int("day_errors", len(res.DayErrors)))
	writeJSON(w, http.StatusOK, toCalcResultDTO(res))
}

// ListEntries returns calculated entries for a user-month.
// GET /api/journey/entries?user_id=&month=
func (h *Handler) ListEntries(w http.ResponseWriter, r *http.Request) {
	tenantID := tenantFrom(r)
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required", nil)
		return
	}
	ym, err := journey.ParseYearMonth(r.URL.Query().Get("month"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid month, expected YYYY-MM", err)
		return
	}

	entries, err := h.Engine.Store.MonthEntries(r.Context(), tenantID, userID, ym)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list entries", err)
		return
	}

	dtos := make([]EntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = toEntryDTO(e)
	}
	writeJSON(w, http.StatusOK, struct {
		Entries []EntryDTO      `json:"entries"`
		Summary MonthSummaryDTO `json:"summary"`
	}{dtos, toMonthSummaryDTO(journey.Summarize(userID, ym, entries))})
}

// ListRuleSets returns all rule sets for the tenant.
// GET /api/journey/rules
func (h *Handler) ListRuleSets(w http.ResponseWriter, r *http.Request) {
	rules, err := h.Rules.ListRuleSets(r.Context(), tenantFrom(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list rule sets", err)
		return
	}
	dtos := make([]RuleSetDTO, len(rules))
	for i, rs := range rules {
		dtos[i] = toRuleSetDTO(rs)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// SaveRuleSet creates or updates a rule set.
// POST /api/journey/rules
func (h *Handler) SaveRuleSet(w http.ResponseWriter, r *http.Request) {
	tenantID := tenantFrom(r)

	var req SaveRuleSetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	nightStart, err := journey.ParseClock(req.NightStart)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid night_start, expected HH:MM", err)
		return
	}
	nightEnd, err := journey.ParseClock(req.NightEnd)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid night_end, expected HH:MM", err)
		return
	}

	rs := &journey.RuleSet{
		ID:                   req.ID,
		TenantID:             tenantID,
		Name:                 req.Name,
		DailyHours:           journey.Hours(req.DailyHours),
		WeeklyHours:          journey.Hours(req.WeeklyHours),
		OvertimeWeekdayPct:   req.OvertimeWeekdayPct,
		OvertimeWeekendPct:   req.OvertimeWeekendPct,
		OvertimeHolidayPct:   req.OvertimeHolidayPct,
		NightShiftPct:        req.NightShiftPct,
		NightStart:           nightStart,
		NightEnd:             nightEnd,
		UsesHourBank:         req.UsesHourBank,
		HourBankExpiryMonths: req.HourBankExpiryMonths,
		IsDefault:            req.IsDefault,
	}
	if rs.ID == "" {
		rs.ID = uuid.NewString()
	}
	if err := rs.Validate(); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "Invalid rule set", err)
		return
	}

	if err := h.Rules.SaveRuleSet(r.Context(), rs); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save rule set", err)
		return
	}
	h.Log.Info("rule set saved",
		zap.String("tenant", tenantID),
		zap.String("rule_set", rs.ID),
		zap.Bool("default", rs.IsDefault))
	writeJSON(w, http.StatusCreated, toRuleSetDTO(*rs))
}

// GetRuleSet returns a single rule set.
// GET /api/journey/rules/{id}
func (h *Handler) GetRuleSet(w http.ResponseWriter, r *http.Request) {
	rs, err := h.Rules.GetRuleSet(r.Context(), tenantFrom(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, statusFor(err), "Failed to get rule set", err)
		return
	}
	writeJSON(w, http.StatusOK, toRuleSetDTO(*rs))
}

// =============================================================================
// HOUR BANK HANDLERS
// =============================================================================

// GetBalance returns the hour-bank balance as of a timestamp.
// GET /api/hour-bank/balance?user_id=&as_of=
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	tenantID := tenantFrom(r)
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required", nil)
		return
	}
	asOf := h.Now().UTC()
	if s := r.URL.Query().Get("as_of"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid as_of, expected RFC3339", err)
			return
		}
		asOf = t
	}

	balance, err := h.Ledger.Balance(r.Context(), tenantID, userID, asOf)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to compute balance", err)
		return
	}
	writeJSON(w, http.StatusOK, BalanceDTO{
		UserID:  userID,
		AsOf:    asOf.Format(time.RFC3339),
		Balance: balance.String(),
	})
}

// ListBankEntries returns the ledger rows for a user.
// GET /api/hour-bank/entries?user_id=
func (h *Handler) ListBankEntries(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required", nil)
		return
	}
	entries, err := h.Bank.Entries(r.Context(), tenantFrom(r), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list ledger entries", err)
		return
	}
	dtos := make([]LedgerEntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = toLedgerEntryDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// Reconcile forfeits expired hour-bank credits across all tenants.
// POST /api/hour-bank/reconcile
func (h *Handler) Reconcile(w http.ResponseWriter, r *http.Request) {
	res, err := h.Ledger.Reconcile(r.Context(), h.Now().UTC())
	if err != nil {
		if errors.Is(err, hourbank.ErrReconcileRunning) {
			writeError(w, http.StatusConflict, "Reconciliation already running", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "Reconciliation failed", err)
		return
	}
	h.Log.Info("hour-bank reconciled",
		zap.Int("forfeited", res.Forfeited),
		zap.String("forfeited_hours", res.ForfeitedHours.String()))
	writeJSON(w, http.StatusOK, toReconcileResultDTO(res))
}

// =============================================================================
// HOLIDAY HANDLERS
// =============================================================================

// ListHolidays returns the holidays resolved for a year.
// GET /api/holidays?year=
func (h *Handler) ListHolidays(w http.ResponseWriter, r *http.Request) {
	year := h.Now().Year()
	if s := r.URL.Query().Get("year"); s != "" {
		if _, err := fmt.Sscanf(s, "%d", &year); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid year", err)
			return
		}
	}
	holidays, err := h.Calendar.ForYear(r.Context(), tenantFrom(r), year)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list holidays", err)
		return
	}
	dtos := make([]HolidayDTO, len(holidays))
	for i, hol := range holidays {
		dtos[i] = toHolidayDTO(hol)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateHoliday creates a company holiday.
// POST /api/holidays
func (h *Handler) CreateHoliday(w http.ResponseWriter, r *http.Request) {
	tenantID := tenantFrom(r)

	var req CreateHolidayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required", nil)
		return
	}
	date, err := time.Parse(dateFmt, req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date, expected YYYY-MM-DD", err)
		return
	}

	hol := calendar.Holiday{
		ID:          uuid.NewString(),
		TenantID:    tenantID,
		Name:        req.Name,
		Date:        date,
		IsRecurring: req.IsRecurring,
	}
	if err := h.Holidays.SaveHoliday(r.Context(), hol); err != nil {
		if errors.Is(err, calendar.ErrDuplicateHoliday) {
			writeError(w, http.StatusConflict, "Holiday already exists for date", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to create holiday", err)
		return
	}
	writeJSON(w, http.StatusCreated, toHolidayDTO(hol))
}

// ImportNationalHolidays imports the fixed national holidays for a year.
// POST /api/holidays/import-national
func (h *Handler) ImportNationalHolidays(w http.ResponseWriter, r *http.Request) {
	var req ImportNationalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Year == 0 {
		req.Year = h.Now().Year()
	}

	imported, err := h.Calendar.ImportNational(r.Context(), tenantFrom(r), req.Year)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to import national holidays", err)
		return
	}
	dtos := make([]HolidayDTO, len(imported))
	for i, hol := range imported {
		dtos[i] = toHolidayDTO(hol)
	}
	writeJSON(w, http.StatusCreated, dtos)
}

// DeleteHoliday removes a holiday.
// DELETE /api/holidays/{id}
func (h *Handler) DeleteHoliday(w http.ResponseWriter, r *http.Request) {
	err := h.Holidays.DeleteHoliday(r.Context(), tenantFrom(r), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, calendar.ErrHolidayNotFound) {
			writeError(w, http.StatusNotFound, "Holiday not found", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete holiday", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// TIME CLOCK HANDLERS
// =============================================================================

// ClockIn opens a clock entry.
// POST /api/clock/in
func (h *Handler) ClockIn(w http.ResponseWriter, r *http.Request) {
	tenantID := tenantFrom(r)

	req, at, loc, ok := h.parseClockRequest(w, r)
	if !ok {
		return
	}
	method := timeclock.Method(req.Method)
	if method == "" {
		method = timeclock.MethodManual
	}

	entry, err := h.Clock.ClockIn(r.Context(), tenantID, req.UserID, at, loc, method)
	if err != nil {
		writeError(w, statusFor(err), "Clock-in failed", err)
		return
	}
	h.Log.Info("clocked in",
		zap.String("tenant", tenantID),
		zap.String("user", req.UserID),
		zap.Time("at", at))
	writeJSON(w, http.StatusCreated, toClockEntryDTO(*entry))
}

// ClockOut closes the open clock entry.
// POST /api/clock/out
func (h *Handler) ClockOut(w http.ResponseWriter, r *http.Request) {
	tenantID := tenantFrom(r)

	req, at, loc, ok := h.parseClockRequest(w, r)
	if !ok {
		return
	}

	entry, err := h.Clock.ClockOut(r.Context(), tenantID, req.UserID, at, loc)
	if err != nil {
		writeError(w, statusFor(err), "Clock-out failed", err)
		return
	}
	h.Log.Info("clocked out",
		zap.String("tenant", tenantID),
		zap.String("user", req.UserID),
		zap.Time("at", at))
	writeJSON(w, http.StatusOK, toClockEntryDTO(*entry))
}

func (h *Handler) parseClockRequest(w http.ResponseWriter, r *http.Request) (ClockRequest, time.Time, *timeclock.GeoPoint, bool) {
	var req ClockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return req, time.Time{}, nil, false
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required", nil)
		return req, time.Time{}, nil, false
	}
	at := h.Now().UTC()
	if req.At != "" {
		t, err := time.Parse(time.RFC3339, req.At)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid at, expected RFC3339", err)
			return req, time.Time{}, nil, false
		}
		at = t.UTC()
	}
	var loc *timeclock.GeoPoint
	if req.Lat != nil && req.Lng != nil {
		loc = &timeclock.GeoPoint{Lat: *req.Lat, Lng: *req.Lng}
	}
	return req, at, loc, true
}

// ListClockEntries returns raw entries overlapping a window.
// GET /api/clock/entries?user_id=&from=&to=
func (h *Handler) ListClockEntries(w http.ResponseWriter, r *http.Request) {
	tenantID := tenantFrom(r)
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required", nil)
		return
	}
	from, err := time.Parse(dateFmt, r.URL.Query().Get("from"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid from, expected YYYY-MM-DD", err)
		return
	}
	to, err := time.Parse(dateFmt, r.URL.Query().Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid to, expected YYYY-MM-DD", err)
		return
	}

	entries, err := h.Clock.Entries(r.Context(), tenantID, userID, from, to.AddDate(0, 0, 1))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list clock entries", err)
		return
	}
	dtos := make([]ClockEntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = toClockEntryDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// RequestAdjustment requests a correction of a clock entry.
// POST /api/clock/adjustments
func (h *Handler) RequestAdjustment(w http.ResponseWriter, r *http.Request) {
	tenantID := tenantFrom(r)

	var req RequestAdjustmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	in, err := time.Parse(time.RFC3339, req.ClockIn)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid clock_in, expected RFC3339", err)
		return
	}
	out, err := time.Parse(time.RFC3339, req.ClockOut)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid clock_out, expected RFC3339", err)
		return
	}

	adj, err := h.Clock.RequestAdjustment(r.Context(), tenantID, req.RequestedBy, req.EntryID, in, out, req.Reason)
	if err != nil {
		writeError(w, statusFor(err), "Failed to request adjustment", err)
		return
	}
	h.Log.Info("adjustment requested",
		zap.String("tenant", tenantID),
		zap.String("entry", req.EntryID),
		zap.String("adjustment", adj.ID))
	writeJSON(w, http.StatusCreated, toAdjustmentDTO(*adj))
}

// ListAdjustments lists adjustments, optionally filtered by status.
// GET /api/clock/adjustments?status=
func (h *Handler) ListAdjustments(w http.ResponseWriter, r *http.Request) {
	status := timeclock.AdjustmentStatus(r.URL.Query().Get("status"))
	adjs, err := h.Clock.ListAdjustments(r.Context(), tenantFrom(r), status)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list adjustments", err)
		return
	}
	dtos := make([]AdjustmentDTO, len(adjs))
	for i, a := range adjs {
		dtos[i] = toAdjustmentDTO(a)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ApproveAdjustment approves a pending adjustment and recalculates the
// affected days.
// POST /api/clock/adjustments/{id}/approve
func (h *Handler) ApproveAdjustment(w http.ResponseWriter, r *http.Request) {
	tenantID := tenantFrom(r)
	id := chi.URLParam(r, "id")

	var req DecideAdjustmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Approver == "" {
		writeError(w, http.StatusBadRequest, "approver is required", nil)
		return
	}

	adj, err := h.Clock.Approve(r.Context(), tenantID, id, req.Approver)
	if err != nil {
		// The approval itself can have committed with only the follow-up
		// recalculation failing. Surface that as a partial success.
		if adj != nil && errors.Is(err, timeclock.ErrRecalculationFailed) {
			h.Log.Error("recalculation after approval failed",
				zap.String("tenant", tenantID),
				zap.String("adjustment", id),
				zap.Error(err))
			writeJSON(w, http.StatusOK, struct {
				Adjustment AdjustmentDTO `json:"adjustment"`
				Warning    string        `json:"warning"`
			}{toAdjustmentDTO(*adj), err.Error()})
			return
		}
		writeError(w, statusFor(err), "Failed to approve adjustment", err)
		return
	}
	h.Log.Info("adjustment approved",
		zap.String("tenant", tenantID),
		zap.String("adjustment", id),
		zap.String("approver", req.Approver))
	writeJSON(w, http.StatusOK, toAdjustmentDTO(*adj))
}

// RejectAdjustment rejects a pending adjustment. A reason is mandatory.
// POST /api/clock/adjustments/{id}/reject
func (h *Handler) RejectAdjustment(w http.ResponseWriter, r *http.Request) {
	tenantID := tenantFrom(r)
	id := chi.URLParam(r, "id")

	var req DecideAdjustmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Approver == "" {
		writeError(w, http.StatusBadRequest, "approver is required", nil)
		return
	}

	adj, err := h.Clock.Reject(r.Context(), tenantID, id, req.Approver, req.Reason)
	if err != nil {
		writeError(w, statusFor(err), "Failed to reject adjustment", err)
		return
	}
	h.Log.Info("adjustment rejected",
		zap.String("tenant", tenantID),
		zap.String("adjustment", id))
	writeJSON(w, http.StatusOK, toAdjustmentDTO(*adj))
}

// =============================================================================
// AUDIT HANDLERS
// =============================================================================

// ListAudit returns recent audit records.
// GET /api/audit?limit=
func (h *Handler) ListAudit(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if s := r.URL.Query().Get("limit"); s != "" {
		if _, err := fmt.Sscanf(s, "%d", &limit); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid limit", err)
			return
		}
	}
	records, err := h.Trail.List(r.Context(), tenantFrom(r), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list audit records", err)
		return
	}
	dtos := make([]AuditRecordDTO, len(records))
	for i, rec := range records {
		dtos[i] = toAuditRecordDTO(rec)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// HELPERS
// =============================================================================

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case journey.IsConfigurationFault(err):
		return http.StatusUnprocessableEntity
	case journey.IsNotFound(err),
		errors.Is(err, timeclock.ErrEntryNotFound),
		errors.Is(err, timeclock.ErrAdjustmentNotFound):
		return http.StatusNotFound
	case errors.Is(err, journey.ErrEntryLocked),
		errors.Is(err, timeclock.ErrOpenEntryExists),
		errors.Is(err, timeclock.ErrNoOpenEntry),
		errors.Is(err, timeclock.ErrPendingAdjustmentExists),
		errors.Is(err, timeclock.ErrNotPending):
		return http.StatusConflict
	case journey.IsClientError(err),
		errors.Is(err, timeclock.ErrOutBeforeIn),
		errors.Is(err, timeclock.ErrReasonRequired):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
