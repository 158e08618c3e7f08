/*
scheduler.go - Automated hour-bank reconciliation scheduler

PURPOSE:
  Periodically forfeits expired hour-bank credits by running the ledger's
  reconciliation pass on a fixed interval.

DESIGN:
  - Runs a background goroutine with a configurable check interval
  - The first pass runs immediately on Start
  - The ledger itself rejects overlapping passes (ErrReconcileRunning),
    so a slow pass is never doubled by the next tick or by a manual
    POST /api/hour-bank/reconcile

USAGE:
  scheduler := NewReconciliationScheduler(ledger, logger)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - hourbank/ledger.go: Reconcile
  - handlers.go: Reconcile endpoint (manual trigger)
*/
package api

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/warp/journey-engine/hourbank"
)

// ReconciliationScheduler handles automated hour-bank expiry sweeps.
type ReconciliationScheduler struct {
	Ledger        *hourbank.Ledger
	CheckInterval time.Duration

	log    *zap.Logger
	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewReconciliationScheduler creates a new scheduler.
func NewReconciliationScheduler(ledger *hourbank.Ledger, log *zap.Logger) *ReconciliationScheduler {
	return &ReconciliationScheduler{
		Ledger:        ledger,
		CheckInterval: 1 * time.Hour,
		log:           log,
		stop:          make(chan struct{}),
	}
}

// Start begins the scheduler.
func (rs *ReconciliationScheduler) Start() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	rs.ticker = time.NewTicker(rs.CheckInterval)
	rs.wg.Add(1)
	go rs.run()

	rs.log.Info("reconciliation scheduler started",
		zap.Duration("interval", rs.CheckInterval))
}

// Stop stops the scheduler and waits for an in-flight pass.
func (rs *ReconciliationScheduler) Stop() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if rs.ticker != nil {
		rs.ticker.Stop()
		close(rs.stop)
		rs.wg.Wait()
		rs.log.Info("reconciliation scheduler stopped")
	}
}

func (rs *ReconciliationScheduler) run() {
	defer rs.wg.Done()

	// Run immediately on start
	rs.sweep()

	for {
		select {
		case <-rs.ticker.C:
			rs.sweep()
		case <-rs.stop:
			return
		}
	}
}

func (rs *ReconciliationScheduler) sweep() {
	ctx := context.Background()
	res, err := rs.Ledger.Reconcile(ctx, time.Now().UTC())
	if err != nil {
		if errors.Is(err, hourbank.ErrReconcileRunning) {
			rs.log.Debug("reconciliation already in flight, skipping tick")
			return
		}
		rs.log.Error("reconciliation sweep failed", zap.Error(err))
		return
	}
	if res.Forfeited > 0 {
		rs.log.Info("reconciliation sweep forfeited expired credits",
			zap.Int("entries", res.Forfeited),
			zap.String("hours", res.ForfeitedHours.String()))
	}
}

// RunNow triggers an immediate pass (for tests and admin use).
func (rs *ReconciliationScheduler) RunNow() {
	rs.sweep()
}
