package timeclock_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/journey-engine/journey"
	"github.com/warp/journey-engine/store/memory"
	"github.com/warp/journey-engine/timeclock"
)

// =============================================================================
// TEST SETUP
// =============================================================================

const (
	tenant = "acme"
	user   = "emp-1"
)

var testNow = time.Date(2025, time.March, 11, 9, 0, 0, 0, time.UTC)

func newService(t *testing.T) (*timeclock.Service, *memory.Store) {
	t.Helper()
	st := memory.New()
	svc := timeclock.NewService(st, nil, st).WithNow(func() time.Time { return testNow })
	return svc, st
}

func at(h, m int) time.Time {
	return time.Date(2025, time.March, 10, h, m, 0, 0, time.UTC)
}

// =============================================================================
// CLOCK IN / CLOCK OUT
// =============================================================================

func TestClockIn_OpensEntry(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	e, err := svc.ClockIn(ctx, tenant, user, at(8, 0), &timeclock.GeoPoint{Lat: -23.55, Lng: -46.63}, timeclock.MethodSelfie)
	require.NoError(t, err)
	assert.True(t, e.Open())
	assert.Equal(t, timeclock.MethodSelfie, e.Method)
	require.NotNil(t, e.InLocation)
	assert.Equal(t, -23.55, e.InLocation.Lat)
}

func TestClockIn_RejectsSecondOpenEntry(t *testing.T) {
	// GIVEN: A user with an open entry
	// WHEN: They clock in again
	// THEN: The second punch is rejected; the ledger stays at one open entry

	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.ClockIn(ctx, tenant, user, at(8, 0), nil, timeclock.MethodManual)
	require.NoError(t, err)

	_, err = svc.ClockIn(ctx, tenant, user, at(8, 5), nil, timeclock.MethodManual)
	assert.ErrorIs(t, err, timeclock.ErrOpenEntryExists)

	entries, err := svc.Entries(ctx, tenant, user, at(0, 0), at(23, 59))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestClockIn_DefaultsToManualMethod(t *testing.T) {
	svc, _ := newService(t)

	e, err := svc.ClockIn(context.Background(), tenant, user, at(8, 0), nil, "")
	require.NoError(t, err)
	assert.Equal(t, timeclock.MethodManual, e.Method)
}

func TestClockOut_ClosesTheOpenEntry(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	opened, err := svc.ClockIn(ctx, tenant, user, at(8, 0), nil, timeclock.MethodQRCode)
	require.NoError(t, err)

	closed, err := svc.ClockOut(ctx, tenant, user, at(17, 0), nil)
	require.NoError(t, err)
	assert.Equal(t, opened.ID, closed.ID)
	require.NotNil(t, closed.ClockOut)
	assert.True(t, closed.ClockOut.Equal(at(17, 0)))
}

func TestClockOut_WithoutOpenEntryFails(t *testing.T) {
	svc, _ := newService(t)

	_, err := svc.ClockOut(context.Background(), tenant, user, at(17, 0), nil)
	assert.ErrorIs(t, err, timeclock.ErrNoOpenEntry)
}

func TestClockOut_BeforeClockInFails(t *testing.T) {
	// GIVEN: An entry opened at 08:00
	// WHEN: A clock-out at 07:00 arrives
	// THEN: It is rejected and the entry stays open

	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.ClockIn(ctx, tenant, user, at(8, 0), nil, timeclock.MethodManual)
	require.NoError(t, err)

	_, err = svc.ClockOut(ctx, tenant, user, at(7, 0), nil)
	assert.ErrorIs(t, err, timeclock.ErrOutBeforeIn)

	entries, err := svc.Entries(ctx, tenant, user, at(0, 0), at(23, 59))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].Open())
}

func TestIntervalsOverlapping_TranslatesEntries(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.ClockIn(ctx, tenant, user, at(8, 0), nil, timeclock.MethodManual)
	require.NoError(t, err)
	_, err = svc.ClockOut(ctx, tenant, user, at(12, 0), nil)
	require.NoError(t, err)
	_, err = svc.ClockIn(ctx, tenant, user, at(13, 0), nil, timeclock.MethodManual)
	require.NoError(t, err)

	intervals, err := svc.IntervalsOverlapping(ctx, tenant, user, at(0, 0), at(23, 59))
	require.NoError(t, err)
	require.Len(t, intervals, 2)
	assert.NotNil(t, intervals[0].Out)
	assert.Nil(t, intervals[1].Out, "open entry surfaces with a nil out")
}

// =============================================================================
// ADJUSTMENT WORKFLOW
// =============================================================================

func closedEntry(t *testing.T, svc *timeclock.Service) *timeclock.Entry {
	t.Helper()
	ctx := context.Background()
	_, err := svc.ClockIn(ctx, tenant, user, at(8, 0), nil, timeclock.MethodManual)
	require.NoError(t, err)
	e, err := svc.ClockOut(ctx, tenant, user, at(17, 0), nil)
	require.NoError(t, err)
	return e
}

func TestRequestAdjustment_SnapshotsOriginalTimes(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	entry := closedEntry(t, svc)

	a, err := svc.RequestAdjustment(ctx, tenant, user, entry.ID, at(7, 30), at(16, 30), "forgot badge, punched late")
	require.NoError(t, err)
	assert.Equal(t, timeclock.AdjustmentPending, a.Status)
	assert.True(t, a.OriginalClockIn.Equal(at(8, 0)))
	require.NotNil(t, a.OriginalClockOut)
	assert.True(t, a.OriginalClockOut.Equal(at(17, 0)))
	assert.True(t, a.AdjustedClockIn.Equal(at(7, 30)))
}

func TestRequestAdjustment_ReasonIsMandatory(t *testing.T) {
	svc, _ := newService(t)
	entry := closedEntry(t, svc)

	_, err := svc.RequestAdjustment(context.Background(), tenant, user, entry.ID, at(7, 30), at(16, 30), "   ")
	assert.ErrorIs(t, err, timeclock.ErrReasonRequired)
}

func TestRequestAdjustment_RejectsInvertedInterval(t *testing.T) {
	svc, _ := newService(t)
	entry := closedEntry(t, svc)

	_, err := svc.RequestAdjustment(context.Background(), tenant, user, entry.ID, at(16, 0), at(9, 0), "typo")
	assert.ErrorIs(t, err, timeclock.ErrOutBeforeIn)
}

func TestRequestAdjustment_UnknownEntryFails(t *testing.T) {
	svc, _ := newService(t)

	_, err := svc.RequestAdjustment(context.Background(), tenant, user, "nope", at(8, 0), at(17, 0), "ghost")
	assert.ErrorIs(t, err, timeclock.ErrEntryNotFound)
}

func TestRequestAdjustment_OnePendingPerEntry(t *testing.T) {
	// GIVEN: An entry with a pending adjustment
	// WHEN: A second request arrives for the same entry
	// THEN: It is rejected until the first is decided

	svc, _ := newService(t)
	ctx := context.Background()
	entry := closedEntry(t, svc)

	_, err := svc.RequestAdjustment(ctx, tenant, user, entry.ID, at(7, 30), at(16, 30), "first")
	require.NoError(t, err)

	_, err = svc.RequestAdjustment(ctx, tenant, user, entry.ID, at(7, 0), at(16, 0), "second")
	assert.ErrorIs(t, err, timeclock.ErrPendingAdjustmentExists)
}

func TestApprove_CommitsTimesAndTransitions(t *testing.T) {
	// GIVEN: A pending adjustment moving the pair to 07:30-16:30
	// WHEN: A manager approves it
	// THEN: The entry carries the adjusted pair and the adjustment is
	//       approved with decision metadata

	svc, st := newService(t)
	ctx := context.Background()
	entry := closedEntry(t, svc)

	a, err := svc.RequestAdjustment(ctx, tenant, user, entry.ID, at(7, 30), at(16, 30), "badge reader down")
	require.NoError(t, err)

	decided, err := svc.Approve(ctx, tenant, a.ID, "mgr-1")
	require.NoError(t, err)
	assert.Equal(t, timeclock.AdjustmentApproved, decided.Status)
	assert.Equal(t, "mgr-1", decided.ApprovedBy)
	require.NotNil(t, decided.DecidedAt)

	updated, err := st.GetClockEntry(ctx, tenant, entry.ID)
	require.NoError(t, err)
	assert.True(t, updated.ClockIn.Equal(at(7, 30)))
	require.NotNil(t, updated.ClockOut)
	assert.True(t, updated.ClockOut.Equal(at(16, 30)))
}

func TestApprove_OnlyPendingAdjustments(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	entry := closedEntry(t, svc)

	a, err := svc.RequestAdjustment(ctx, tenant, user, entry.ID, at(7, 30), at(16, 30), "once")
	require.NoError(t, err)
	_, err = svc.Approve(ctx, tenant, a.ID, "mgr-1")
	require.NoError(t, err)

	_, err = svc.Approve(ctx, tenant, a.ID, "mgr-2")
	assert.ErrorIs(t, err, timeclock.ErrNotPending)
}

func TestApprove_UnknownAdjustmentFails(t *testing.T) {
	svc, _ := newService(t)

	_, err := svc.Approve(context.Background(), tenant, "nope", "mgr-1")
	assert.ErrorIs(t, err, timeclock.ErrAdjustmentNotFound)
}

func TestReject_RequiresReasonAndLeavesEntryAlone(t *testing.T) {
	svc, st := newService(t)
	ctx := context.Background()
	entry := closedEntry(t, svc)

	a, err := svc.RequestAdjustment(ctx, tenant, user, entry.ID, at(7, 30), at(16, 30), "hopeful")
	require.NoError(t, err)

	_, err = svc.Reject(ctx, tenant, a.ID, "mgr-1", "")
	assert.ErrorIs(t, err, timeclock.ErrReasonRequired)

	decided, err := svc.Reject(ctx, tenant, a.ID, "mgr-1", "no supporting evidence")
	require.NoError(t, err)
	assert.Equal(t, timeclock.AdjustmentRejected, decided.Status)
	assert.Equal(t, "no supporting evidence", decided.RejectionReason)

	untouched, err := st.GetClockEntry(ctx, tenant, entry.ID)
	require.NoError(t, err)
	assert.True(t, untouched.ClockIn.Equal(at(8, 0)), "rejected adjustments never touch the entry")
}

func TestReject_ClearsThePendingSlot(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	entry := closedEntry(t, svc)

	a, err := svc.RequestAdjustment(ctx, tenant, user, entry.ID, at(7, 30), at(16, 30), "first")
	require.NoError(t, err)
	_, err = svc.Reject(ctx, tenant, a.ID, "mgr-1", "wrong entry")
	require.NoError(t, err)

	_, err = svc.RequestAdjustment(ctx, tenant, user, entry.ID, at(7, 45), at(16, 45), "retry")
	assert.NoError(t, err, "a decided adjustment frees the entry for a new request")
}

// =============================================================================
// RECALCULATION AFTER APPROVAL
// =============================================================================

// recalcSpy records the days an approval asked to recompute.
type recalcSpy struct {
	dates []time.Time
	err   error
}

func (r *recalcSpy) CalculateDay(ctx context.Context, req journey.CalcRequest, date time.Time) (*journey.CalcResult, error) {
	if r.err != nil {
		return nil, r.err
	}
	r.dates = append(r.dates, date)
	return &journey.CalcResult{}, nil
}

func TestApprove_RecalculatesEveryAffectedDay(t *testing.T) {
	// GIVEN: An approved adjustment that moves the clock-out past midnight
	// THEN: Both the original day and the day the new interval spills into
	//       are recomputed, each exactly once

	spy := &recalcSpy{}
	st := memory.New()
	svc := timeclock.NewService(st, spy, st).WithNow(func() time.Time { return testNow })
	ctx := context.Background()
	entry := closedEntry(t, svc)

	a, err := svc.RequestAdjustment(ctx, tenant, user, entry.ID,
		at(20, 0), time.Date(2025, time.March, 11, 2, 0, 0, 0, time.UTC), "night shift logged as day")
	require.NoError(t, err)

	_, err = svc.Approve(ctx, tenant, a.ID, "mgr-1")
	require.NoError(t, err)

	require.Len(t, spy.dates, 2)
	assert.True(t, spy.dates[0].Equal(time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC)))
	assert.True(t, spy.dates[1].Equal(time.Date(2025, time.March, 11, 0, 0, 0, 0, time.UTC)))
}

func TestApprove_SurfacesRecalculationFailure(t *testing.T) {
	// GIVEN: A recalculation backend that errors out
	// WHEN: An adjustment is approved
	// THEN: The decision itself stands; the error is reported as a
	//       recalculation failure alongside the committed adjustment

	spy := &recalcSpy{err: errors.New("no rule set")}
	st := memory.New()
	svc := timeclock.NewService(st, spy, st).WithNow(func() time.Time { return testNow })
	ctx := context.Background()
	entry := closedEntry(t, svc)

	a, err := svc.RequestAdjustment(ctx, tenant, user, entry.ID, at(7, 30), at(16, 30), "flaky rules")
	require.NoError(t, err)

	decided, err := svc.Approve(ctx, tenant, a.ID, "mgr-1")
	require.ErrorIs(t, err, timeclock.ErrRecalculationFailed)
	require.NotNil(t, decided)
	assert.Equal(t, timeclock.AdjustmentApproved, decided.Status)

	stored, err := st.GetAdjustment(ctx, tenant, a.ID)
	require.NoError(t, err)
	assert.Equal(t, timeclock.AdjustmentApproved, stored.Status, "the transition is durable even when recalc fails")
}
