package hourbank_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/journey-engine/audit"
	"github.com/warp/journey-engine/hourbank"
	"github.com/warp/journey-engine/journey"
	"github.com/warp/journey-engine/store/memory"
)

// =============================================================================
// TEST SETUP
// =============================================================================

const (
	tenant = "acme"
	user   = "emp-1"
)

func newLedger(t *testing.T) (*hourbank.Ledger, *memory.Store) {
	t.Helper()
	st := memory.New()
	return hourbank.NewLedger(st, st), st
}

func row(t *testing.T, st *memory.Store, id string, date, created time.Time, delta float64, expiryMonths int) {
	t.Helper()
	require.NoError(t, st.ReplaceForDay(context.Background(), hourbank.LedgerEntry{
		ID:        id,
		TenantID:  tenant,
		UserID:    user,
		Date:      date,
		Delta:     journey.Hours(delta),
		CreatedAt: created,
		ExpiresAt: hourbank.ExpiryFrom(created, expiryMonths),
	}))
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// =============================================================================
// BALANCE
// =============================================================================

func TestBalance_SumsSignedDeltas(t *testing.T) {
	// GIVEN: A +3 credit and a -2 debit, both current
	// THEN: The balance is +1

	ledger, st := newLedger(t)
	ctx := context.Background()

	created := day(2025, time.March, 10)
	row(t, st, "a", day(2025, time.March, 10), created, 3, 6)
	row(t, st, "b", day(2025, time.March, 11), created, -2, 6)

	balance, err := ledger.Balance(ctx, tenant, user, day(2025, time.April, 1))
	require.NoError(t, err)
	assert.Equal(t, "1", balance.String())
}

func TestBalance_ExpiredCreditStopsCounting(t *testing.T) {
	// GIVEN: A credit whose expiry has passed, not yet formally forfeited
	// THEN: It no longer counts toward the balance

	ledger, st := newLedger(t)
	ctx := context.Background()

	created := day(2024, time.January, 10)
	row(t, st, "old", day(2024, time.January, 10), created, 5, 6) // expires 2024-07-10

	balance, err := ledger.Balance(ctx, tenant, user, day(2025, time.March, 1))
	require.NoError(t, err)
	assert.Equal(t, "0", balance.String())
}

func TestBalance_DebitsNeverExpire(t *testing.T) {
	// GIVEN: An old debit far past any expiry horizon
	// THEN: It still counts - owed hours don't evaporate

	ledger, st := newLedger(t)
	ctx := context.Background()

	created := day(2023, time.January, 10)
	row(t, st, "debt", day(2023, time.January, 10), created, -4, 6)

	balance, err := ledger.Balance(ctx, tenant, user, day(2025, time.March, 1))
	require.NoError(t, err)
	assert.Equal(t, "-4", balance.String())
}

func TestBalance_AsOfExcludesLaterRows(t *testing.T) {
	// GIVEN: A credit created after the as-of point
	// THEN: It is invisible to the historical balance

	ledger, st := newLedger(t)
	ctx := context.Background()

	row(t, st, "later", day(2025, time.June, 2), day(2025, time.June, 2), 3, 6)

	balance, err := ledger.Balance(ctx, tenant, user, day(2025, time.March, 1))
	require.NoError(t, err)
	assert.Equal(t, "0", balance.String())
}

// =============================================================================
// RECONCILIATION
// =============================================================================

func TestReconcile_ForfeitsExpiredCreditsWithAudit(t *testing.T) {
	// GIVEN: One expired credit, one current credit, one old debit
	// WHEN: The reconciliation pass runs
	// THEN: Only the expired credit is forfeited, irreversibly, with a
	//       per-entry audit record

	ledger, st := newLedger(t)
	ctx := context.Background()

	row(t, st, "expired", day(2024, time.January, 10), day(2024, time.January, 10), 5, 6)
	row(t, st, "current", day(2025, time.February, 10), day(2025, time.February, 10), 2, 6)
	row(t, st, "debt", day(2023, time.June, 1), day(2023, time.June, 1), -3, 6)

	res, err := ledger.Reconcile(ctx, day(2025, time.March, 1))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Forfeited)
	assert.Equal(t, "5", res.ForfeitedHours.String())

	entries, err := st.Entries(ctx, tenant, user)
	require.NoError(t, err)
	for _, e := range entries {
		switch e.ID {
		case "expired":
			assert.True(t, e.Forfeited)
			assert.Equal(t, "expired", e.ForfeitReason)
		case "current", "debt":
			assert.False(t, e.Forfeited, "entry %s must be untouched", e.ID)
		}
	}

	records, err := st.List(ctx, tenant, 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, audit.ActionBankForfeiture, records[0].Action)
	assert.Equal(t, "system", records[0].Actor)

	// Forfeiture is terminal: a second pass finds nothing.
	res, err = ledger.Reconcile(ctx, day(2025, time.March, 1))
	require.NoError(t, err)
	assert.Zero(t, res.Forfeited)
}

func TestReconcile_BalanceUnchangedByForfeiture(t *testing.T) {
	// GIVEN: An expired credit already excluded from the balance
	// WHEN: Reconciliation formally forfeits it
	// THEN: The balance reads the same before and after

	ledger, st := newLedger(t)
	ctx := context.Background()
	asOf := day(2025, time.March, 1)

	row(t, st, "expired", day(2024, time.January, 10), day(2024, time.January, 10), 5, 6)
	row(t, st, "current", day(2025, time.February, 10), day(2025, time.February, 10), 2, 6)

	before, err := ledger.Balance(ctx, tenant, user, asOf)
	require.NoError(t, err)

	_, err = ledger.Reconcile(ctx, asOf)
	require.NoError(t, err)

	after, err := ledger.Balance(ctx, tenant, user, asOf)
	require.NoError(t, err)
	assert.True(t, before.Equal(after), "before=%s after=%s", before, after)
	assert.Equal(t, "2", after.String())
}

// =============================================================================
// EXPIRY ARITHMETIC
// =============================================================================

func TestExpiryFrom_AddsCalendarMonths(t *testing.T) {
	created := time.Date(2025, time.March, 10, 14, 30, 0, 0, time.UTC)
	assert.True(t, hourbank.ExpiryFrom(created, 6).Equal(
		time.Date(2025, time.September, 10, 14, 30, 0, 0, time.UTC)))
}

func TestRemaining_SubtractsConsumed(t *testing.T) {
	e := hourbank.LedgerEntry{
		Delta:    journey.Hours(5),
		Consumed: journey.Hours(2),
	}
	assert.Equal(t, "3", e.Remaining().String())
}
