/*
Package sqlite provides the SQLite-backed implementation of the storage
interfaces.

INTERFACES IMPLEMENTED:
  journey.EntryStore:  per-day atomic upsert of entry + hour-bank row
  journey.RuleStore:   rule sets with a single-default-per-tenant invariant
  calendar.Store:      holidays, unique per (tenant, date)
  hourbank.Store:      ledger rows, unique per (user, origin date)
  timeclock.Store:     clock entries and adjustments
  audit.Trail:         append-only audit records

INVARIANTS ENFORCED AT THE SCHEMA LEVEL:
  - journey_entries UNIQUE(tenant_id, user_id, date)
  - hour_bank_entries UNIQUE(tenant_id, user_id, date)
  - holidays UNIQUE(tenant_id, date)
  - one open clock entry per user (partial unique index on clock_out IS NULL)
  - one pending adjustment per entry (partial unique index on status)

TRANSACTION BOUNDARY:
  SaveDay writes the journey entry and replaces the day's hour-bank row in a
  single SQL transaction. A day is written completely or not at all.

WAL MODE:
  Opened with WAL for better read concurrency; a mutex serializes writers,
  matching SQLite's single-writer model.

Use ":memory:" as the path for tests.
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/journey-engine/audit"
	"github.com/warp/journey-engine/calendar"
	"github.com/warp/journey-engine/hourbank"
	"github.com/warp/journey-engine/journey"
	"github.com/warp/journey-engine/timeclock"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.Mutex // serializes writers
}

// New opens (and migrates) the database at path.
func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS journey_rules (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		name TEXT NOT NULL,
		daily_hours TEXT NOT NULL,
		weekly_hours TEXT NOT NULL,
		overtime_weekday_pct INTEGER NOT NULL,
		overtime_weekend_pct INTEGER NOT NULL,
		overtime_holiday_pct INTEGER NOT NULL,
		night_shift_pct INTEGER NOT NULL,
		night_start INTEGER NOT NULL,
		night_end INTEGER NOT NULL,
		uses_hour_bank INTEGER NOT NULL DEFAULT 0,
		hour_bank_expiry_months INTEGER NOT NULL DEFAULT 6,
		is_default INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_journey_rules_tenant ON journey_rules(tenant_id);

	CREATE TABLE IF NOT EXISTS journey_entries (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		date TEXT NOT NULL,
		rule_set_id TEXT,
		scheduled_hours TEXT NOT NULL,
		worked_hours TEXT NOT NULL,
		overtime_hours_50 TEXT NOT NULL,
		overtime_hours_100 TEXT NOT NULL,
		overtime_pct INTEGER NOT NULL DEFAULT 0,
		night_hours TEXT NOT NULL,
		absence_hours TEXT NOT NULL,
		hour_bank_balance TEXT NOT NULL,
		is_holiday INTEGER NOT NULL DEFAULT 0,
		holiday_name TEXT NOT NULL DEFAULT '',
		is_dsr INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL,
		notes TEXT NOT NULL DEFAULT '',
		UNIQUE(tenant_id, user_id, date)
	);
	CREATE INDEX IF NOT EXISTS idx_journey_entries_month
		ON journey_entries(tenant_id, user_id, date);

	CREATE TABLE IF NOT EXISTS holidays (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		name TEXT NOT NULL,
		date TEXT NOT NULL,
		is_national INTEGER NOT NULL DEFAULT 0,
		is_recurring INTEGER NOT NULL DEFAULT 0,
		UNIQUE(tenant_id, date)
	);

	CREATE TABLE IF NOT EXISTS hour_bank_entries (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		date TEXT NOT NULL,
		delta TEXT NOT NULL,
		created_at TEXT NOT NULL,
		expires_at TEXT NOT NULL,
		consumed TEXT NOT NULL DEFAULT '0',
		forfeited INTEGER NOT NULL DEFAULT 0,
		forfeit_reason TEXT NOT NULL DEFAULT '',
		UNIQUE(tenant_id, user_id, date)
	);
	CREATE INDEX IF NOT EXISTS idx_hour_bank_expiry
		ON hour_bank_entries(expires_at) WHERE forfeited = 0;

	CREATE TABLE IF NOT EXISTS time_clock_entries (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		clock_in TEXT NOT NULL,
		clock_out TEXT,
		in_lat REAL, in_lng REAL,
		out_lat REAL, out_lng REAL,
		method TEXT NOT NULL,
		created_at TEXT NOT NULL
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_one_open_entry
		ON time_clock_entries(tenant_id, user_id) WHERE clock_out IS NULL;
	CREATE INDEX IF NOT EXISTS idx_clock_entries_user_in
		ON time_clock_entries(tenant_id, user_id, clock_in);

	CREATE TABLE IF NOT EXISTS time_clock_adjustments (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		entry_id TEXT NOT NULL,
		requested_by TEXT NOT NULL,
		original_clock_in TEXT NOT NULL,
		original_clock_out TEXT,
		adjusted_clock_in TEXT NOT NULL,
		adjusted_clock_out TEXT NOT NULL,
		reason TEXT NOT NULL,
		status TEXT NOT NULL,
		approved_by TEXT NOT NULL DEFAULT '',
		rejection_reason TEXT NOT NULL DEFAULT '',
		decided_at TEXT,
		created_at TEXT NOT NULL
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_one_pending_adjustment
		ON time_clock_adjustments(entry_id) WHERE status = 'pending';

	CREATE TABLE IF NOT EXISTS audit_records (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		actor TEXT NOT NULL,
		action TEXT NOT NULL,
		subject TEXT NOT NULL,
		detail TEXT NOT NULL,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_audit_tenant_time
		ON audit_records(tenant_id, created_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// ENCODING HELPERS
// =============================================================================

const dateFmt = "2006-01-02"

// Timestamps are stored as second-precision RFC3339: fixed-width strings
// compare lexicographically in chronological order, which the range
// predicates and ORDER BY clauses rely on. Sub-second punch precision is
// deliberately dropped at the storage boundary.
func encTime(t time.Time) string { return t.UTC().Truncate(time.Second).Format(time.RFC3339) }

func decTime(s string) (time.Time, error) { return time.Parse(time.RFC3339Nano, s) }

func encNullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return encTime(*t)
}

func decNullTime(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid {
		return nil, nil
	}
	t, err := decTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func decDecimal(s string) (decimal.Decimal, error) { return decimal.NewFromString(s) }

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

type rowScanner interface{ Scan(dest ...any) error }

// =============================================================================
// journey.EntryStore
// =============================================================================

func (s *Store) GetEntry(ctx context.Context, tenantID, userID string, date time.Time) (*journey.Entry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, user_id, date, rule_set_id, scheduled_hours,
		       worked_hours, overtime_hours_50, overtime_hours_100, overtime_pct,
		       night_hours, absence_hours, hour_bank_balance,
		       is_holiday, holiday_name, is_dsr, status, notes
		FROM journey_entries
		WHERE tenant_id = ? AND user_id = ? AND date = ?`,
		tenantID, userID, date.Format(dateFmt))
	e, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

func scanEntry(r rowScanner) (*journey.Entry, error) {
	var (
		e                                 journey.Entry
		dateStr                           string
		sched, worked, ot50, ot100, night string
		absence, bank                     string
		isHoliday, isDSR                  int
		status                            string
	)
	err := r.Scan(&e.ID, &e.TenantID, &e.UserID, &dateStr, &e.RuleSetID, &sched,
		&worked, &ot50, &ot100, &e.OvertimePct, &night, &absence, &bank,
		&isHoliday, &e.HolidayName, &isDSR, &status, &e.Notes)
	if err != nil {
		return nil, err
	}
	if e.Date, err = time.Parse(dateFmt, dateStr); err != nil {
		return nil, err
	}
	for _, f := range []struct {
		dst *decimal.Decimal
		src string
	}{
		{&e.ScheduledHours, sched}, {&e.WorkedHours, worked},
		{&e.OvertimeHours50, ot50}, {&e.OvertimeHours100, ot100},
		{&e.NightHours, night}, {&e.AbsenceHours, absence},
		{&e.HourBankBalance, bank},
	} {
		if *f.dst, err = decDecimal(f.src); err != nil {
			return nil, err
		}
	}
	e.IsHoliday = isHoliday == 1
	e.IsDSR = isDSR == 1
	e.Status = journey.EntryStatus(status)
	return &e, nil
}

func (s *Store) SaveDay(ctx context.Context, e journey.Entry, bank *hourbank.LedgerEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO journey_entries (
			id, tenant_id, user_id, date, rule_set_id, scheduled_hours,
			worked_hours, overtime_hours_50, overtime_hours_100, overtime_pct,
			night_hours, absence_hours, hour_bank_balance,
			is_holiday, holiday_name, is_dsr, status, notes
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(tenant_id, user_id, date) DO UPDATE SET
			rule_set_id = excluded.rule_set_id,
			scheduled_hours = excluded.scheduled_hours,
			worked_hours = excluded.worked_hours,
			overtime_hours_50 = excluded.overtime_hours_50,
			overtime_hours_100 = excluded.overtime_hours_100,
			overtime_pct = excluded.overtime_pct,
			night_hours = excluded.night_hours,
			absence_hours = excluded.absence_hours,
			hour_bank_balance = excluded.hour_bank_balance,
			is_holiday = excluded.is_holiday,
			holiday_name = excluded.holiday_name,
			is_dsr = excluded.is_dsr,
			status = excluded.status,
			notes = excluded.notes`,
		e.ID, e.TenantID, e.UserID, e.Date.Format(dateFmt), e.RuleSetID,
		e.ScheduledHours.String(), e.WorkedHours.String(),
		e.OvertimeHours50.String(), e.OvertimeHours100.String(), e.OvertimePct,
		e.NightHours.String(), e.AbsenceHours.String(), e.HourBankBalance.String(),
		boolInt(e.IsHoliday), e.HolidayName, boolInt(e.IsDSR), string(e.Status), e.Notes)
	if err != nil {
		return err
	}

	// Replace, never accumulate: the day owns at most one ledger row, and
	// the row keeps its identity across recalculation.
	if bank == nil {
		_, err = tx.ExecContext(ctx,
			`DELETE FROM hour_bank_entries WHERE tenant_id = ? AND user_id = ? AND date = ?`,
			e.TenantID, e.UserID, e.Date.Format(dateFmt))
		if err != nil {
			return err
		}
	} else {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO hour_bank_entries (
				id, tenant_id, user_id, date, delta, created_at, expires_at,
				consumed, forfeited, forfeit_reason
			) VALUES (?, ?, ?, ?, ?, ?, ?, '0', 0, '')
			ON CONFLICT(tenant_id, user_id, date) DO UPDATE SET
				delta = excluded.delta,
				created_at = excluded.created_at,
				expires_at = excluded.expires_at,
				consumed = '0',
				forfeited = 0,
				forfeit_reason = ''`,
			bank.ID, bank.TenantID, bank.UserID, bank.Date.Format(dateFmt),
			bank.Delta.String(), encTime(bank.CreatedAt), encTime(bank.ExpiresAt))
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *Store) MonthEntries(ctx context.Context, tenantID, userID string, ym journey.YearMonth) ([]journey.Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tenant_id, user_id, date, rule_set_id, scheduled_hours,
		       worked_hours, overtime_hours_50, overtime_hours_100, overtime_pct,
		       night_hours, absence_hours, hour_bank_balance,
		       is_holiday, holiday_name, is_dsr, status, notes
		FROM journey_entries
		WHERE tenant_id = ? AND user_id = ? AND date >= ? AND date < ?
		ORDER BY date`,
		tenantID, userID, ym.First().Format(dateFmt), ym.NextFirst().Format(dateFmt))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []journey.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

// =============================================================================
// journey.RuleStore
// =============================================================================

func (s *Store) SaveRuleSet(ctx context.Context, rs *journey.RuleSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if rs.IsDefault {
		if _, err := tx.ExecContext(ctx,
			`UPDATE journey_rules SET is_default = 0 WHERE tenant_id = ? AND id != ?`,
			rs.TenantID, rs.ID); err != nil {
			return err
		}
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO journey_rules (
			id, tenant_id, name, daily_hours, weekly_hours,
			overtime_weekday_pct, overtime_weekend_pct, overtime_holiday_pct,
			night_shift_pct, night_start, night_end,
			uses_hour_bank, hour_bank_expiry_months, is_default
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			daily_hours = excluded.daily_hours,
			weekly_hours = excluded.weekly_hours,
			overtime_weekday_pct = excluded.overtime_weekday_pct,
			overtime_weekend_pct = excluded.overtime_weekend_pct,
			overtime_holiday_pct = excluded.overtime_holiday_pct,
			night_shift_pct = excluded.night_shift_pct,
			night_start = excluded.night_start,
			night_end = excluded.night_end,
			uses_hour_bank = excluded.uses_hour_bank,
			hour_bank_expiry_months = excluded.hour_bank_expiry_months,
			is_default = excluded.is_default`,
		rs.ID, rs.TenantID, rs.Name, rs.DailyHours.String(), rs.WeeklyHours.String(),
		rs.OvertimeWeekdayPct, rs.OvertimeWeekendPct, rs.OvertimeHolidayPct,
		rs.NightShiftPct, int(rs.NightStart), int(rs.NightEnd),
		boolInt(rs.UsesHourBank), rs.HourBankExpiryMonths, boolInt(rs.IsDefault))
	if err != nil {
		return err
	}
	return tx.Commit()
}

const ruleSelect = `
	SELECT id, tenant_id, name, daily_hours, weekly_hours,
	       overtime_weekday_pct, overtime_weekend_pct, overtime_holiday_pct,
	       night_shift_pct, night_start, night_end,
	       uses_hour_bank, hour_bank_expiry_months, is_default
	FROM journey_rules`

func scanRule(r rowScanner) (*journey.RuleSet, error) {
	var (
		rs                   journey.RuleSet
		daily, weekly        string
		nightStart, nightEnd int
		usesBank, isDefault  int
	)
	err := r.Scan(&rs.ID, &rs.TenantID, &rs.Name, &daily, &weekly,
		&rs.OvertimeWeekdayPct, &rs.OvertimeWeekendPct, &rs.OvertimeHolidayPct,
		&rs.NightShiftPct, &nightStart, &nightEnd,
		&usesBank, &rs.HourBankExpiryMonths, &isDefault)
	if err != nil {
		return nil, err
	}
	if rs.DailyHours, err = decDecimal(daily); err != nil {
		return nil, err
	}
	if rs.WeeklyHours, err = decDecimal(weekly); err != nil {
		return nil, err
	}
	rs.NightStart = journey.Minute(nightStart)
	rs.NightEnd = journey.Minute(nightEnd)
	rs.UsesHourBank = usesBank == 1
	rs.IsDefault = isDefault == 1
	return &rs, nil
}

func (s *Store) GetRuleSet(ctx context.Context, tenantID, id string) (*journey.RuleSet, error) {
	row := s.db.QueryRowContext(ctx, ruleSelect+` WHERE tenant_id = ? AND id = ?`, tenantID, id)
	rs, err := scanRule(row)
	if err == sql.ErrNoRows {
		return nil, journey.ErrRuleSetNotFound
	}
	return rs, err
}

func (s *Store) ListRuleSets(ctx context.Context, tenantID string) ([]journey.RuleSet, error) {
	rows, err := s.db.QueryContext(ctx, ruleSelect+` WHERE tenant_id = ? ORDER BY name`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []journey.RuleSet
	for rows.Next() {
		rs, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rs)
	}
	return out, rows.Err()
}

func (s *Store) DefaultRuleSet(ctx context.Context, tenantID string) (*journey.RuleSet, error) {
	row := s.db.QueryRowContext(ctx, ruleSelect+` WHERE tenant_id = ? AND is_default = 1`, tenantID)
	rs, err := scanRule(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return rs, err
}

// =============================================================================
// calendar.Store
// =============================================================================

func (s *Store) SaveHoliday(ctx context.Context, h calendar.Holiday) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO holidays (id, tenant_id, name, date, is_national, is_recurring)
		VALUES (?, ?, ?, ?, ?, ?)`,
		h.ID, h.TenantID, h.Name, h.Date.Format(dateFmt),
		boolInt(h.IsNational), boolInt(h.IsRecurring))
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return calendar.ErrDuplicateHoliday
	}
	return err
}

func (s *Store) DeleteHoliday(ctx context.Context, tenantID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM holidays WHERE tenant_id = ? AND id = ?`, tenantID, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return calendar.ErrHolidayNotFound
	}
	return nil
}

func (s *Store) ListHolidays(ctx context.Context, tenantID string) ([]calendar.Holiday, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tenant_id, name, date, is_national, is_recurring
		FROM holidays WHERE tenant_id = ? ORDER BY date`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []calendar.Holiday
	for rows.Next() {
		var (
			h                       calendar.Holiday
			dateStr                 string
			isNational, isRecurring int
		)
		if err := rows.Scan(&h.ID, &h.TenantID, &h.Name, &dateStr, &isNational, &isRecurring); err != nil {
			return nil, err
		}
		if h.Date, err = time.Parse(dateFmt, dateStr); err != nil {
			return nil, err
		}
		h.IsNational = isNational == 1
		h.IsRecurring = isRecurring == 1
		out = append(out, h)
	}
	return out, rows.Err()
}

// =============================================================================
// hourbank.Store
// =============================================================================

func (s *Store) ReplaceForDay(ctx context.Context, e hourbank.LedgerEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM hour_bank_entries WHERE tenant_id = ? AND user_id = ? AND date = ?`,
		e.TenantID, e.UserID, e.Date.Format(dateFmt)); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO hour_bank_entries (
			id, tenant_id, user_id, date, delta, created_at, expires_at,
			consumed, forfeited, forfeit_reason
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.TenantID, e.UserID, e.Date.Format(dateFmt), e.Delta.String(),
		encTime(e.CreatedAt), encTime(e.ExpiresAt), e.Consumed.String(),
		boolInt(e.Forfeited), e.ForfeitReason); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) RemoveForDay(ctx context.Context, tenantID, userID string, date time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM hour_bank_entries WHERE tenant_id = ? AND user_id = ? AND date = ?`,
		tenantID, userID, date.Format(dateFmt))
	return err
}

const bankSelect = `
	SELECT id, tenant_id, user_id, date, delta, created_at, expires_at,
	       consumed, forfeited, forfeit_reason
	FROM hour_bank_entries`

func scanBankRows(rows *sql.Rows) ([]hourbank.LedgerEntry, error) {
	var out []hourbank.LedgerEntry
	for rows.Next() {
		var (
			e                       hourbank.LedgerEntry
			dateStr, delta, created string
			expires, consumed       string
			forfeited               int
		)
		err := rows.Scan(&e.ID, &e.TenantID, &e.UserID, &dateStr, &delta,
			&created, &expires, &consumed, &forfeited, &e.ForfeitReason)
		if err != nil {
			return nil, err
		}
		if e.Date, err = time.Parse(dateFmt, dateStr); err != nil {
			return nil, err
		}
		if e.Delta, err = decDecimal(delta); err != nil {
			return nil, err
		}
		if e.Consumed, err = decDecimal(consumed); err != nil {
			return nil, err
		}
		if e.CreatedAt, err = decTime(created); err != nil {
			return nil, err
		}
		if e.ExpiresAt, err = decTime(expires); err != nil {
			return nil, err
		}
		e.Forfeited = forfeited == 1
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) Entries(ctx context.Context, tenantID, userID string) ([]hourbank.LedgerEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		bankSelect+` WHERE tenant_id = ? AND user_id = ? ORDER BY date`, tenantID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanBankRows(rows)
}

func (s *Store) ExpiringEntries(ctx context.Context, asOf time.Time) ([]hourbank.LedgerEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		bankSelect+` WHERE forfeited = 0 AND expires_at < ? AND CAST(delta AS REAL) > 0 ORDER BY date`,
		encTime(asOf))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanBankRows(rows)
}

func (s *Store) MarkForfeited(ctx context.Context, id, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.ExecContext(ctx, `
		UPDATE hour_bank_entries
		SET forfeited = 1, forfeit_reason = ?, consumed = delta
		WHERE id = ?`, reason, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("hour-bank ledger entry %s not found", id)
	}
	return nil
}

// =============================================================================
// timeclock.Store
// =============================================================================

func (s *Store) InsertEntry(ctx context.Context, e timeclock.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	inLat, inLng := encGeo(e.InLocation)
	outLat, outLng := encGeo(e.OutLocation)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO time_clock_entries (
			id, tenant_id, user_id, clock_in, clock_out,
			in_lat, in_lng, out_lat, out_lng, method, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.TenantID, e.UserID, encTime(e.ClockIn), encNullTime(e.ClockOut),
		inLat, inLng, outLat, outLng, string(e.Method), encTime(e.CreatedAt))
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return timeclock.ErrOpenEntryExists
	}
	return err
}

func encGeo(g *timeclock.GeoPoint) (any, any) {
	if g == nil {
		return nil, nil
	}
	return g.Lat, g.Lng
}

func decGeo(lat, lng sql.NullFloat64) *timeclock.GeoPoint {
	if !lat.Valid || !lng.Valid {
		return nil
	}
	return &timeclock.GeoPoint{Lat: lat.Float64, Lng: lng.Float64}
}

const clockSelect = `
	SELECT id, tenant_id, user_id, clock_in, clock_out,
	       in_lat, in_lng, out_lat, out_lng, method, created_at
	FROM time_clock_entries`

func scanClock(r rowScanner) (*timeclock.Entry, error) {
	var (
		e                            timeclock.Entry
		in, created                  string
		out                          sql.NullString
		inLat, inLng, outLat, outLng sql.NullFloat64
		method                       string
	)
	err := r.Scan(&e.ID, &e.TenantID, &e.UserID, &in, &out,
		&inLat, &inLng, &outLat, &outLng, &method, &created)
	if err != nil {
		return nil, err
	}
	if e.ClockIn, err = decTime(in); err != nil {
		return nil, err
	}
	if e.ClockOut, err = decNullTime(out); err != nil {
		return nil, err
	}
	if e.CreatedAt, err = decTime(created); err != nil {
		return nil, err
	}
	e.InLocation = decGeo(inLat, inLng)
	e.OutLocation = decGeo(outLat, outLng)
	e.Method = timeclock.Method(method)
	return &e, nil
}

func (s *Store) GetClockEntry(ctx context.Context, tenantID, id string) (*timeclock.Entry, error) {
	row := s.db.QueryRowContext(ctx, clockSelect+` WHERE tenant_id = ? AND id = ?`, tenantID, id)
	e, err := scanClock(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return e, err
}

func (s *Store) OpenEntry(ctx context.Context, tenantID, userID string) (*timeclock.Entry, error) {
	row := s.db.QueryRowContext(ctx,
		clockSelect+` WHERE tenant_id = ? AND user_id = ? AND clock_out IS NULL`, tenantID, userID)
	e, err := scanClock(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return e, err
}

func (s *Store) CloseEntry(ctx context.Context, tenantID, id string, out time.Time, loc *timeclock.GeoPoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	lat, lng := encGeo(loc)
	res, err := s.db.ExecContext(ctx, `
		UPDATE time_clock_entries SET clock_out = ?, out_lat = ?, out_lng = ?
		WHERE tenant_id = ? AND id = ? AND clock_out IS NULL`,
		encTime(out), lat, lng, tenantID, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return timeclock.ErrEntryNotFound
	}
	return nil
}

func (s *Store) SetTimes(ctx context.Context, tenantID, id string, in time.Time, out *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.ExecContext(ctx, `
		UPDATE time_clock_entries SET clock_in = ?, clock_out = ?
		WHERE tenant_id = ? AND id = ?`,
		encTime(in), encNullTime(out), tenantID, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return timeclock.ErrEntryNotFound
	}
	return nil
}

func (s *Store) EntriesOverlapping(ctx context.Context, tenantID, userID string, from, to time.Time) ([]timeclock.Entry, error) {
	rows, err := s.db.QueryContext(ctx, clockSelect+`
		WHERE tenant_id = ? AND user_id = ?
		  AND clock_in < ?
		  AND (clock_out IS NULL OR clock_out > ?)
		ORDER BY clock_in`,
		tenantID, userID, encTime(to), encTime(from))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []timeclock.Entry
	for rows.Next() {
		e, err := scanClock(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

func (s *Store) InsertAdjustment(ctx context.Context, a timeclock.Adjustment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO time_clock_adjustments (
			id, tenant_id, entry_id, requested_by,
			original_clock_in, original_clock_out,
			adjusted_clock_in, adjusted_clock_out,
			reason, status, approved_by, rejection_reason, decided_at, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.TenantID, a.EntryID, a.RequestedBy,
		encTime(a.OriginalClockIn), encNullTime(a.OriginalClockOut),
		encTime(a.AdjustedClockIn), encTime(a.AdjustedClockOut),
		a.Reason, string(a.Status), a.ApprovedBy, a.RejectionReason,
		encNullTime(a.DecidedAt), encTime(a.CreatedAt))
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return timeclock.ErrPendingAdjustmentExists
	}
	return err
}

const adjustSelect = `
	SELECT id, tenant_id, entry_id, requested_by,
	       original_clock_in, original_clock_out,
	       adjusted_clock_in, adjusted_clock_out,
	       reason, status, approved_by, rejection_reason, decided_at, created_at
	FROM time_clock_adjustments`

func scanAdjustment(r rowScanner) (*timeclock.Adjustment, error) {
	var (
		a                     timeclock.Adjustment
		origIn, adjIn, adjOut string
		origOut, decidedAt    sql.NullString
		status, created       string
	)
	err := r.Scan(&a.ID, &a.TenantID, &a.EntryID, &a.RequestedBy,
		&origIn, &origOut, &adjIn, &adjOut,
		&a.Reason, &status, &a.ApprovedBy, &a.RejectionReason, &decidedAt, &created)
	if err != nil {
		return nil, err
	}
	if a.OriginalClockIn, err = decTime(origIn); err != nil {
		return nil, err
	}
	if a.OriginalClockOut, err = decNullTime(origOut); err != nil {
		return nil, err
	}
	if a.AdjustedClockIn, err = decTime(adjIn); err != nil {
		return nil, err
	}
	if a.AdjustedClockOut, err = decTime(adjOut); err != nil {
		return nil, err
	}
	if a.DecidedAt, err = decNullTime(decidedAt); err != nil {
		return nil, err
	}
	if a.CreatedAt, err = decTime(created); err != nil {
		return nil, err
	}
	a.Status = timeclock.AdjustmentStatus(status)
	return &a, nil
}

func (s *Store) GetAdjustment(ctx context.Context, tenantID, id string) (*timeclock.Adjustment, error) {
	row := s.db.QueryRowContext(ctx, adjustSelect+` WHERE tenant_id = ? AND id = ?`, tenantID, id)
	a, err := scanAdjustment(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return a, err
}

func (s *Store) PendingAdjustmentFor(ctx context.Context, tenantID, entryID string) (*timeclock.Adjustment, error) {
	row := s.db.QueryRowContext(ctx,
		adjustSelect+` WHERE tenant_id = ? AND entry_id = ? AND status = 'pending'`, tenantID, entryID)
	a, err := scanAdjustment(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return a, err
}

func (s *Store) UpdateAdjustment(ctx context.Context, a timeclock.Adjustment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.ExecContext(ctx, `
		UPDATE time_clock_adjustments
		SET status = ?, approved_by = ?, rejection_reason = ?, decided_at = ?
		WHERE id = ?`,
		string(a.Status), a.ApprovedBy, a.RejectionReason, encNullTime(a.DecidedAt), a.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return timeclock.ErrAdjustmentNotFound
	}
	return nil
}

func (s *Store) ListAdjustments(ctx context.Context, tenantID string, status timeclock.AdjustmentStatus) ([]timeclock.Adjustment, error) {
	query := adjustSelect + ` WHERE tenant_id = ?`
	args := []any{tenantID}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []timeclock.Adjustment
	for rows.Next() {
		a, err := scanAdjustment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// =============================================================================
// audit.Trail
// =============================================================================

func (s *Store) Record(ctx context.Context, rec audit.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_records (id, tenant_id, actor, action, subject, detail, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.TenantID, rec.Actor, string(rec.Action), rec.Subject, rec.Detail,
		encTime(rec.CreatedAt))
	return err
}

func (s *Store) List(ctx context.Context, tenantID string, limit int) ([]audit.Record, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tenant_id, actor, action, subject, detail, created_at
		FROM audit_records
		WHERE tenant_id = ?
		ORDER BY created_at DESC
		LIMIT ?`, tenantID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []audit.Record
	for rows.Next() {
		var (
			rec             audit.Record
			action, created string
		)
		if err := rows.Scan(&rec.ID, &rec.TenantID, &rec.Actor, &action, &rec.Subject, &rec.Detail, &created); err != nil {
			return nil, err
		}
		if rec.CreatedAt, err = decTime(created); err != nil {
			return nil, err
		}
		rec.Action = audit.Action(action)
		out = append(out, rec)
	}
	return out, rows.Err()
}
