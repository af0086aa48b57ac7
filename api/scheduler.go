/*
scheduler.go - Automated reconciliation scheduler

PURPOSE:
  Periodically re-derives each branch's reconciliation summaries for the
  current day and records a report run for audit and UI display. Operators
  read the latest completed run instead of waiting for an on-demand
  aggregation over large windows.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Aggregates the current day's window per branch
  - Records each run (pending -> completed/failed) on the audit trail

CONFIGURATION:
  - CheckInterval: How often to re-derive (default: 15 minutes)
  - Enabled: Whether scheduler is active (default: true)

USAGE:
  scheduler := NewReportScheduler(store, handler)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: GetReconciliation endpoint (on-demand aggregation)
  - ledger/reconcile.go: Aggregator
*/
package api

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alibek517/posledger/ledger"
	"github.com/alibek517/posledger/store/sqlite"
)

// ReportScheduler re-derives branch reconciliation summaries on a timer.
type ReportScheduler struct {
	Store         *sqlite.Store
	Handler       *Handler
	CheckInterval time.Duration
	Enabled       bool

	ticker *time.Ticker
	stop   chan bool
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewReportScheduler creates a new scheduler.
func NewReportScheduler(store *sqlite.Store, handler *Handler) *ReportScheduler {
	return &ReportScheduler{
		Store:         store,
		Handler:       handler,
		CheckInterval: 15 * time.Minute,
		Enabled:       true,
		stop:          make(chan bool),
	}
}

// Start begins the scheduler.
func (rs *ReportScheduler) Start() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if !rs.Enabled {
		log.Println("[Scheduler] Disabled, not starting")
		return
	}

	rs.ticker = time.NewTicker(rs.CheckInterval)
	rs.wg.Add(1)

	go rs.run()

	log.Printf("[Scheduler] Started with check interval: %v", rs.CheckInterval)
}

// Stop stops the scheduler.
func (rs *ReportScheduler) Stop() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if rs.ticker != nil {
		rs.ticker.Stop()
		close(rs.stop)
		rs.wg.Wait()
		log.Println("[Scheduler] Stopped")
	}
}

func (rs *ReportScheduler) run() {
	defer rs.wg.Done()

	// Run immediately on start
	rs.checkAndProcess()

	for {
		select {
		case <-rs.ticker.C:
			rs.checkAndProcess()
		case <-rs.stop:
			return
		}
	}
}

func (rs *ReportScheduler) checkAndProcess() {
	ctx := context.Background()
	now := time.Now().UTC()
	window := ledger.Day(now)

	log.Printf("[Scheduler] Re-deriving summaries for %v", window)

	branches, err := rs.activeBranches(ctx)
	if err != nil {
		log.Printf("[Scheduler] Error listing branches: %v", err)
		return
	}

	for _, branch := range branches {
		if err := rs.processBranch(ctx, branch, window); err != nil {
			log.Printf("[Scheduler] Error processing branch %s: %v", branch, err)
		}
	}
}

// activeBranches derives the branch set from the employee directory.
func (rs *ReportScheduler) activeBranches(ctx context.Context) ([]ledger.BranchID, error) {
	emps, err := rs.Store.ListEmployees(ctx, "")
	if err != nil {
		return nil, err
	}

	seen := make(map[ledger.BranchID]bool)
	var out []ledger.BranchID
	for _, e := range emps {
		if e.BranchID == "" || seen[e.BranchID] {
			continue
		}
		seen[e.BranchID] = true
		out = append(out, e.BranchID)
	}
	return out, nil
}

func (rs *ReportScheduler) processBranch(ctx context.Context, branch ledger.BranchID, window ledger.Window) error {
	runID := fmt.Sprintf("run-%s-%d", branch, time.Now().UnixNano())
	started := time.Now().UTC()

	run := sqlite.ReportRun{
		ID:        runID,
		BranchID:  branch,
		Window:    window,
		Status:    "running",
		StartedAt: started,
	}
	if err := rs.Store.SaveReportRun(ctx, run); err != nil {
		return fmt.Errorf("failed to save run record: %w", err)
	}

	report, err := rs.Handler.buildReport(ctx, branch, window)
	if err != nil {
		run.Status = "failed"
		run.Error = err.Error()
		run.CompletedAt = time.Now().UTC()
		rs.Store.SaveReportRun(ctx, run)
		return err
	}

	total := decimal.Zero
	for _, s := range report.Cashiers {
		total = total.Add(s.HandOverTotal())
	}

	run.Status = "completed"
	run.CashierCount = len(report.Cashiers)
	run.WarehouseCount = len(report.Warehouse)
	run.HandOverTotal = total
	run.CompletedAt = time.Now().UTC()

	if err := rs.Store.SaveReportRun(ctx, run); err != nil {
		return fmt.Errorf("failed to update run record: %w", err)
	}

	log.Printf("[Scheduler] Processed %s: %d cashiers, %d warehouse, hand-over=%s",
		branch, run.CashierCount, run.WarehouseCount, total.String())
	return nil
}

// RunNow triggers an immediate re-derivation (for testing/admin).
func (rs *ReportScheduler) RunNow() {
	rs.checkAndProcess()
}
