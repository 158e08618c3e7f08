package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/journey-engine/calendar"
	"github.com/warp/journey-engine/hourbank"
	"github.com/warp/journey-engine/journey"
	"github.com/warp/journey-engine/store/sqlite"
	"github.com/warp/journey-engine/timeclock"
)

// =============================================================================
// TEST SETUP
// =============================================================================

const (
	tenant = "acme"
	user   = "emp-1"
)

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	st, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func sampleEntry(date time.Time) journey.Entry {
	return journey.Entry{
		ID:              "entry-" + date.Format("2006-01-02"),
		TenantID:        tenant,
		UserID:          user,
		Date:            date,
		RuleSetID:       "rule-std",
		ScheduledHours:  journey.Hours(8),
		WorkedHours:     journey.Hours(9),
		OvertimeHours50: journey.Hours(1),
		OvertimePct:     50,
		HourBankBalance: journey.Hours(1),
		Status:          journey.StatusCalculated,
	}
}

// =============================================================================
// JOURNEY ENTRIES
// =============================================================================

func TestSaveDay_RoundTripsEntryAndBankRow(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()
	date := day(2025, time.March, 10)

	e := sampleEntry(date)
	bank := &hourbank.LedgerEntry{
		ID:        "bank-1",
		TenantID:  tenant,
		UserID:    user,
		Date:      date,
		Delta:     journey.Hours(1),
		CreatedAt: day(2025, time.March, 10),
		ExpiresAt: day(2025, time.September, 10),
	}
	require.NoError(t, st.SaveDay(ctx, e, bank))

	got, err := st.GetEntry(ctx, tenant, user, date)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, e.ID, got.ID)
	assert.True(t, got.WorkedHours.Equal(journey.Hours(9)))
	assert.Equal(t, 50, got.OvertimePct)
	assert.Equal(t, journey.StatusCalculated, got.Status)

	rows, err := st.Entries(ctx, tenant, user)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].Delta.Equal(journey.Hours(1)))
}

func TestSaveDay_SecondWriteReplacesBothSides(t *testing.T) {
	// GIVEN: A day saved with a +1 bank delta
	// WHEN: The same day is saved again with different figures and no delta
	// THEN: One entry remains with the new figures and the bank row is gone

	st := newStore(t)
	ctx := context.Background()
	date := day(2025, time.March, 10)

	first := sampleEntry(date)
	require.NoError(t, st.SaveDay(ctx, first, &hourbank.LedgerEntry{
		ID: "bank-1", TenantID: tenant, UserID: user, Date: date,
		Delta: journey.Hours(1), CreatedAt: date, ExpiresAt: day(2025, time.September, 10),
	}))

	second := first
	second.WorkedHours = journey.Hours(8)
	second.OvertimeHours50 = journey.Hours(0)
	second.OvertimePct = 0
	second.HourBankBalance = journey.Hours(0)
	require.NoError(t, st.SaveDay(ctx, second, nil))

	got, err := st.GetEntry(ctx, tenant, user, date)
	require.NoError(t, err)
	assert.True(t, got.WorkedHours.Equal(journey.Hours(8)))

	rows, err := st.Entries(ctx, tenant, user)
	require.NoError(t, err)
	assert.Empty(t, rows, "recalculation without a delta clears the old bank row")
}

func TestSaveDay_BankRowKeepsIdentityOnReplace(t *testing.T) {
	// GIVEN: A day saved with a bank row
	// WHEN: The day is saved again with a fresh candidate row ID
	// THEN: The stored row keeps its original ID with the new figures

	st := newStore(t)
	ctx := context.Background()
	date := day(2025, time.March, 10)

	e := sampleEntry(date)
	require.NoError(t, st.SaveDay(ctx, e, &hourbank.LedgerEntry{
		ID: "bank-original", TenantID: tenant, UserID: user, Date: date,
		Delta: journey.Hours(1), CreatedAt: date, ExpiresAt: day(2025, time.September, 10),
	}))
	require.NoError(t, st.SaveDay(ctx, e, &hourbank.LedgerEntry{
		ID: "bank-reminted", TenantID: tenant, UserID: user, Date: date,
		Delta: journey.Hours(2), CreatedAt: date, ExpiresAt: day(2025, time.September, 10),
	}))

	rows, err := st.Entries(ctx, tenant, user)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "bank-original", rows[0].ID)
	assert.True(t, rows[0].Delta.Equal(journey.Hours(2)))
}

func TestGetEntry_MissingDayIsNil(t *testing.T) {
	st := newStore(t)

	got, err := st.GetEntry(context.Background(), tenant, user, day(2025, time.March, 10))
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMonthEntries_OrderedAndScoped(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()

	require.NoError(t, st.SaveDay(ctx, sampleEntry(day(2025, time.March, 12)), nil))
	require.NoError(t, st.SaveDay(ctx, sampleEntry(day(2025, time.March, 3)), nil))
	require.NoError(t, st.SaveDay(ctx, sampleEntry(day(2025, time.April, 1)), nil))

	entries, err := st.MonthEntries(ctx, tenant, user, journey.YearMonth{Year: 2025, Month: time.March})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.True(t, entries[0].Date.Before(entries[1].Date))
}

// =============================================================================
// RULE SETS
// =============================================================================

func TestSaveRuleSet_DefaultFlagIsExclusive(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()

	a := &journey.RuleSet{
		ID: "rule-a", TenantID: tenant, Name: "Standard",
		DailyHours: journey.Hours(8), WeeklyHours: journey.Hours(44),
		OvertimeWeekdayPct: 50, OvertimeWeekendPct: 100, OvertimeHolidayPct: 100,
		IsDefault: true,
	}
	require.NoError(t, st.SaveRuleSet(ctx, a))

	b := *a
	b.ID, b.Name = "rule-b", "Night crew"
	require.NoError(t, st.SaveRuleSet(ctx, &b))

	def, err := st.DefaultRuleSet(ctx, tenant)
	require.NoError(t, err)
	assert.Equal(t, "rule-b", def.ID, "promoting a new default demotes the old one")

	old, err := st.GetRuleSet(ctx, tenant, "rule-a")
	require.NoError(t, err)
	assert.False(t, old.IsDefault)
}

func TestListRuleSets_TenantScoped(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()

	rs := &journey.RuleSet{
		ID: "rule-a", TenantID: tenant, Name: "Standard",
		DailyHours: journey.Hours(8), WeeklyHours: journey.Hours(44),
	}
	require.NoError(t, st.SaveRuleSet(ctx, rs))

	other, err := st.ListRuleSets(ctx, "someone-else")
	require.NoError(t, err)
	assert.Empty(t, other)
}

// =============================================================================
// HOLIDAYS
// =============================================================================

func TestSaveHoliday_DuplicateDateRejected(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()

	require.NoError(t, st.SaveHoliday(ctx, calendar.Holiday{
		ID: "h1", TenantID: tenant, Name: "Founders Day", Date: day(2025, time.March, 12),
	}))

	err := st.SaveHoliday(ctx, calendar.Holiday{
		ID: "h2", TenantID: tenant, Name: "Shadow", Date: day(2025, time.March, 12),
	})
	assert.ErrorIs(t, err, calendar.ErrDuplicateHoliday)
}

func TestDeleteHoliday(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()

	require.NoError(t, st.SaveHoliday(ctx, calendar.Holiday{
		ID: "h1", TenantID: tenant, Name: "Founders Day", Date: day(2025, time.March, 12),
	}))
	require.NoError(t, st.DeleteHoliday(ctx, tenant, "h1"))

	assert.ErrorIs(t, st.DeleteHoliday(ctx, tenant, "h1"), calendar.ErrHolidayNotFound)

	all, err := st.ListHolidays(ctx, tenant)
	require.NoError(t, err)
	assert.Empty(t, all)
}

// =============================================================================
// CLOCK LEDGER
// =============================================================================

func TestOpenEntryIndex_EnforcesOnePerUser(t *testing.T) {
	// The one-open-entry rule is also pinned at the schema level, so a
	// service bug can't slip a second open row past the store.

	st := newStore(t)
	ctx := context.Background()

	require.NoError(t, st.InsertEntry(ctx, timeclock.Entry{
		ID: "c1", TenantID: tenant, UserID: user,
		ClockIn: day(2025, time.March, 10).Add(8 * time.Hour), CreatedAt: time.Now().UTC(),
	}))

	err := st.InsertEntry(ctx, timeclock.Entry{
		ID: "c2", TenantID: tenant, UserID: user,
		ClockIn: day(2025, time.March, 10).Add(9 * time.Hour), CreatedAt: time.Now().UTC(),
	})
	assert.Error(t, err)
}

func TestCloseEntry_ThenInsertAgainSucceeds(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()
	in := day(2025, time.March, 10).Add(8 * time.Hour)

	require.NoError(t, st.InsertEntry(ctx, timeclock.Entry{
		ID: "c1", TenantID: tenant, UserID: user, ClockIn: in, CreatedAt: time.Now().UTC(),
	}))
	require.NoError(t, st.CloseEntry(ctx, tenant, "c1", in.Add(4*time.Hour), nil))

	open, err := st.OpenEntry(ctx, tenant, user)
	require.NoError(t, err)
	assert.Nil(t, open)

	require.NoError(t, st.InsertEntry(ctx, timeclock.Entry{
		ID: "c2", TenantID: tenant, UserID: user, ClockIn: in.Add(5 * time.Hour), CreatedAt: time.Now().UTC(),
	}))
}

func TestEntriesOverlapping_IncludesOpenAndSpanning(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()
	base := day(2025, time.March, 10)

	closed := timeclock.Entry{
		ID: "c1", TenantID: tenant, UserID: "emp-2", ClockIn: base.Add(8 * time.Hour), CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, st.InsertEntry(ctx, closed))
	require.NoError(t, st.CloseEntry(ctx, tenant, "c1", base.Add(17*time.Hour), nil))

	// Open entry started the day before; still overlaps today.
	require.NoError(t, st.InsertEntry(ctx, timeclock.Entry{
		ID: "c2", TenantID: tenant, UserID: "emp-2", ClockIn: base.Add(-2 * time.Hour), CreatedAt: time.Now().UTC(),
	}))

	got, err := st.EntriesOverlapping(ctx, tenant, "emp-2", base, base.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestEntriesOverlapping_SubSecondPunchAtRangeBoundary(t *testing.T) {
	// GIVEN a punch half a second past midnight on March 11. Timestamps are
	// stored second-precision; a fractional-second encoding would sort
	// "...00:00:00.5Z" below "...00:00:00Z" and leak the entry into the
	// previous day's range.
	st := newStore(t)
	ctx := context.Background()
	boundary := day(2025, time.March, 11)
	in := boundary.Add(500 * time.Millisecond)

	require.NoError(t, st.InsertEntry(ctx, timeclock.Entry{
		ID: "c1", TenantID: tenant, UserID: user, ClockIn: in, CreatedAt: time.Now().UTC(),
	}))
	require.NoError(t, st.CloseEntry(ctx, tenant, "c1", in.Add(8*time.Hour), nil))

	// WHEN querying March 10.
	prev, err := st.EntriesOverlapping(ctx, tenant, user, day(2025, time.March, 10), boundary)
	require.NoError(t, err)

	// THEN the punch belongs to March 11 only.
	assert.Empty(t, prev)

	next, err := st.EntriesOverlapping(ctx, tenant, user, boundary, boundary.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.Len(t, next, 1)
	assert.True(t, next[0].ClockIn.Equal(boundary), "clock_in truncated to whole seconds")
}

func TestInsertAdjustment_OnePendingPerEntry(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()
	in := day(2025, time.March, 10).Add(8 * time.Hour)

	require.NoError(t, st.InsertEntry(ctx, timeclock.Entry{
		ID: "c1", TenantID: tenant, UserID: user, ClockIn: in, CreatedAt: time.Now().UTC(),
	}))
	require.NoError(t, st.CloseEntry(ctx, tenant, "c1", in.Add(9*time.Hour), nil))

	a := timeclock.Adjustment{
		ID: "adj-1", TenantID: tenant, EntryID: "c1", RequestedBy: user,
		OriginalClockIn: in, AdjustedClockIn: in.Add(-30 * time.Minute),
		AdjustedClockOut: in.Add(8 * time.Hour), Reason: "late badge",
		Status: timeclock.AdjustmentPending, CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, st.InsertAdjustment(ctx, a))

	dup := a
	dup.ID = "adj-2"
	assert.ErrorIs(t, st.InsertAdjustment(ctx, dup), timeclock.ErrPendingAdjustmentExists)

	// Deciding the first frees the slot.
	now := time.Now().UTC()
	a.Status = timeclock.AdjustmentRejected
	a.ApprovedBy = "mgr-1"
	a.RejectionReason = "wrong entry"
	a.DecidedAt = &now
	require.NoError(t, st.UpdateAdjustment(ctx, a))
	assert.NoError(t, st.InsertAdjustment(ctx, dup))
}
