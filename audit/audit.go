/*
Package audit is the append-only audit trail.

Forfeitures, forced overwrites of locked days, and adjustment decisions are
business-critical: each one leaves a record here, and records are never
updated or deleted.
*/
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Action identifies what kind of administrative event was recorded.
type Action string

const (
	ActionForcedRecalculation Action = "journey.forced_recalculation"
	ActionBankForfeiture      Action = "hour_bank.forfeiture"
	ActionAdjustmentApproved  Action = "time_clock.adjustment_approved"
	ActionAdjustmentRejected  Action = "time_clock.adjustment_rejected"
)

// Record is a single audit trail row.
type Record struct {
	ID        string
	TenantID  string
	Actor     string // user id, or "system" for scheduled jobs
	Action    Action
	Subject   string // the affected resource (entry id, user+date, ...)
	Detail    string
	CreatedAt time.Time
}

// NewRecord builds a record with a fresh ID and timestamp.
func NewRecord(tenantID, actor string, action Action, subject, detail string) Record {
	return Record{
		ID:        uuid.NewString(),
		TenantID:  tenantID,
		Actor:     actor,
		Action:    action,
		Subject:   subject,
		Detail:    detail,
		CreatedAt: time.Now().UTC(),
	}
}

// Trail persists audit records.
//
// INVARIANT: append-only. No update, no delete.
type Trail interface {
	Record(ctx context.Context, rec Record) error
	List(ctx context.Context, tenantID string, limit int) ([]Record, error)
}

// Nop discards records. Only for wiring tests that don't assert on auditing.
type Nop struct{}

func (Nop) Record(ctx context.Context, rec Record) error { return nil }
func (Nop) List(ctx context.Context, tenantID string, limit int) ([]Record, error) {
	return nil, nil
}
