package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alibek517/posledger/ledger"
	"github.com/alibek517/posledger/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func d(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

func sampleCreditSale(id string) ledger.Transaction {
	t := ledger.Transaction{
		ID:                  ledger.TransactionID(id),
		BranchID:            "branch-1",
		SellerID:            "cashier-1",
		PaymentType:         ledger.PayCredit,
		Status:              ledger.StatusActive,
		Principal:           d(900_000),
		UpfrontPaid:         d(300_000),
		UpfrontChannel:      ledger.ChannelCash,
		TermUnit:            ledger.TermMonths,
		TermLength:          3,
		InterestRatePercent: d(0),
		CreatedAt:           time.Date(2025, time.June, 10, 12, 0, 0, 0, time.UTC),
		Items: []ledger.LineItem{
			{ProductRef: "p-1", UnitPrice: d(450_000), Quantity: 2},
		},
	}
	t.Schedule = ledger.BuildSchedule(t)
	return t
}

// =============================================================================
// TRANSACTION ROUND TRIPS
// =============================================================================

func TestStore_SaveAndGetTransaction(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	sale := sampleCreditSale("tx-1")
	require.NoError(t, store.SaveTransaction(ctx, sale))

	got, err := store.GetTransaction(ctx, "tx-1")
	require.NoError(t, err)

	assert.Equal(t, sale.ID, got.ID)
	assert.Equal(t, sale.SellerID, got.SellerID)
	assert.Equal(t, ledger.PayCredit, got.PaymentType)
	assert.True(t, got.Principal.Equal(d(900_000)))
	assert.True(t, got.UpfrontPaid.Equal(d(300_000)))
	assert.True(t, got.CreatedAt.Equal(sale.CreatedAt))
	require.Len(t, got.Items, 1)
	assert.True(t, got.Items[0].UnitPrice.Equal(d(450_000)))

	// Schedule persisted atomically with the sale
	require.Len(t, got.Schedule, 3)
	assert.True(t, ledger.ScheduleDue(got.Schedule).Equal(d(600_000)))
}

func TestStore_GetTransaction_NotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetTransaction(context.Background(), "tx-missing")
	assert.ErrorIs(t, err, ledger.ErrTransactionNotFound)
}

func TestStore_FetchTransactions_WindowAndBranchFilters(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	early := sampleCreditSale("tx-early")
	early.CreatedAt = time.Date(2025, time.May, 1, 0, 0, 0, 0, time.UTC)
	inWin := sampleCreditSale("tx-in")
	other := sampleCreditSale("tx-other-branch")
	other.BranchID = "branch-2"

	for _, s := range []ledger.Transaction{early, inWin, other} {
		require.NoError(t, store.SaveTransaction(ctx, s))
	}

	window := ledger.Window{
		From: time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2025, time.June, 30, 23, 59, 59, 0, time.UTC),
	}

	got, err := store.FetchTransactions(ctx, "branch-1", window)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, ledger.TransactionID("tx-in"), got[0].ID)

	// Empty branch means all branches
	all, err := store.FetchTransactions(ctx, "", window)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestStore_MarkReturned(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveTransaction(ctx, sampleCreditSale("tx-1")))
	require.NoError(t, store.MarkReturned(ctx, "tx-1"))

	got, err := store.GetTransaction(ctx, "tx-1")
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusReturned, got.Status)

	assert.ErrorIs(t, store.MarkReturned(ctx, "tx-ghost"), ledger.ErrTransactionNotFound)
}

// =============================================================================
// OBLIGATION WRITE-BACK
// =============================================================================

func TestStore_PersistObligation_UpdatesPaymentState(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	sale := sampleCreditSale("tx-1")
	require.NoError(t, store.SaveTransaction(ctx, sale))

	paidAt := time.Date(2025, time.July, 10, 15, 0, 0, 0, time.UTC)
	ob := sale.Schedule[0]
	ob.AmountPaid = d(200_000)
	ob.PaidAt = &paidAt
	ob.PaidChannel = ledger.ChannelCash
	ob.PaidBy = "cashier-2"
	ob.Rating = ledger.RatingGood

	require.NoError(t, store.PersistObligation(ctx, ob))

	sched, err := store.FetchSchedule(ctx, "tx-1")
	require.NoError(t, err)
	require.Len(t, sched, 3)

	got := sched[0]
	assert.True(t, got.AmountPaid.Equal(d(200_000)))
	require.NotNil(t, got.PaidAt)
	assert.True(t, got.PaidAt.Equal(paidAt))
	assert.Equal(t, ledger.ActorID("cashier-2"), got.PaidBy)
	assert.Equal(t, ledger.RatingGood, got.Rating)

	// Untouched obligations keep empty payment metadata
	assert.True(t, sched[1].AmountPaid.IsZero())
	assert.Nil(t, sched[1].PaidAt)
	assert.Empty(t, sched[1].PaidChannel)
}

func TestStore_PersistObligation_InsertsWhenMissing(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// A legacy sale saved without a schedule
	sale := sampleCreditSale("tx-legacy")
	sale.Schedule = nil
	require.NoError(t, store.SaveTransaction(ctx, sale))

	ob := ledger.Obligation{
		TransactionRef: "tx-legacy",
		Sequence:       1,
		AmountDue:      d(600_000),
		AmountPaid:     d(100_000),
		DueDate:        time.Date(2025, time.July, 10, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, store.PersistObligation(ctx, ob))

	sched, err := store.FetchSchedule(ctx, "tx-legacy")
	require.NoError(t, err)
	require.Len(t, sched, 1)
	assert.True(t, sched[0].AmountPaid.Equal(d(100_000)))
}

// =============================================================================
// REPAYMENT AUDIT TRAIL
// =============================================================================

func TestStore_AppendRepayment_AppendOnlyWithDedup(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rec := ledger.RepaymentRecord{
		ID:                 "rep-1",
		TransactionRef:     "tx-1",
		ObligationSequence: 1,
		Amount:             d(150_000),
		Channel:            ledger.ChannelCash,
		PaidAt:             time.Date(2025, time.June, 12, 10, 0, 0, 0, time.UTC),
		PaidBy:             "cashier-1",
		BranchID:           "branch-1",
	}
	require.NoError(t, store.AppendRepayment(ctx, rec))

	// Same id again rejects instead of silently double-counting
	err := store.AppendRepayment(ctx, rec)
	assert.ErrorIs(t, err, ledger.ErrDuplicateRepayment)

	window := ledger.Day(rec.PaidAt)
	got, err := store.FetchRepayments(ctx, "branch-1", window)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].Amount.Equal(d(150_000)))
	assert.Equal(t, ledger.ActorID("cashier-1"), got[0].PaidBy)
}

func TestStore_FetchRepayments_FiltersByPaidAtWindow(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	in := ledger.RepaymentRecord{
		ID: "rep-in", TransactionRef: "tx-1", ObligationSequence: 1,
		Amount: d(100), Channel: ledger.ChannelCash,
		PaidAt: time.Date(2025, time.June, 12, 10, 0, 0, 0, time.UTC),
		PaidBy: "cashier-1", BranchID: "branch-1",
	}
	out := in
	out.ID = "rep-out"
	out.PaidAt = in.PaidAt.AddDate(0, 1, 0)

	require.NoError(t, store.AppendRepayment(ctx, in))
	require.NoError(t, store.AppendRepayment(ctx, out))

	got, err := store.FetchRepayments(ctx, "branch-1", ledger.Day(in.PaidAt))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "rep-in", got[0].ID)
}

func TestStore_FetchRepaymentsByTransaction(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := ledger.RepaymentRecord{
		TransactionRef: "tx-a", ObligationSequence: 1,
		Amount: d(100), Channel: ledger.ChannelCash,
		PaidBy: "cashier-1", BranchID: "branch-1",
	}

	// Two payments on tx-a inserted newest-first, one on tx-b
	second := base
	second.ID = "rep-a2"
	second.PaidAt = time.Date(2025, time.July, 12, 10, 0, 0, 0, time.UTC)
	first := base
	first.ID = "rep-a1"
	first.PaidAt = time.Date(2025, time.June, 12, 10, 0, 0, 0, time.UTC)
	other := base
	other.ID = "rep-b1"
	other.TransactionRef = "tx-b"
	other.PaidAt = first.PaidAt

	require.NoError(t, store.AppendRepayment(ctx, second))
	require.NoError(t, store.AppendRepayment(ctx, first))
	require.NoError(t, store.AppendRepayment(ctx, other))

	got, err := store.FetchRepaymentsByTransaction(ctx, "tx-a")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "rep-a1", got[0].ID, "ordered by paid_at, not insertion")
	assert.Equal(t, "rep-a2", got[1].ID)
}

// =============================================================================
// DEFECTIVE LOGS
// =============================================================================

func TestStore_DefectiveLogRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	entry := ledger.DefectiveLogEntry{
		ID:             "def-1",
		TransactionRef: "tx-1",
		ActionType:     ledger.ActionReturn,
		CashAmount:     d(-75_000),
		CreatedAt:      time.Date(2025, time.June, 12, 9, 0, 0, 0, time.UTC),
		ActorID:        "cashier-1",
		BranchID:       "branch-1",
	}
	require.NoError(t, store.AppendDefectiveLog(ctx, entry))

	// Entry without a transaction reference (manual adjustment)
	manual := entry
	manual.ID = "def-2"
	manual.TransactionRef = ""
	manual.ActionType = ledger.ActionAdjustment
	manual.CashAmount = d(30_000)
	require.NoError(t, store.AppendDefectiveLog(ctx, manual))

	got, err := store.FetchDefectiveLogs(ctx, "branch-1", ledger.Day(entry.CreatedAt))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.True(t, got[0].CashAmount.Equal(d(-75_000)))
	assert.Equal(t, ledger.ActionReturn, got[0].ActionType)
	assert.Empty(t, got[1].TransactionRef)
}

// =============================================================================
// EMPLOYEES AND DIRECTORY
// =============================================================================

func TestStore_EmployeeUpsertAndDirectory(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	emp := ledger.Employee{ID: "emp-1", DisplayName: "Aziza", Role: ledger.RoleCashier, BranchID: "branch-1"}
	require.NoError(t, store.SaveEmployee(ctx, emp))

	// Upsert: same id with a new role replaces the row
	emp.Role = ledger.RoleWarehouse
	require.NoError(t, store.SaveEmployee(ctx, emp))

	emps, err := store.ListEmployees(ctx, "branch-1")
	require.NoError(t, err)
	require.Len(t, emps, 1)
	assert.Equal(t, ledger.RoleWarehouse, emps[0].Role)

	dir, err := store.Directory(ctx)
	require.NoError(t, err)
	got, ok := dir.Lookup("emp-1")
	require.True(t, ok)
	assert.Equal(t, "Aziza", got.DisplayName)

	_, ok = dir.Lookup("ghost")
	assert.False(t, ok)
}

// =============================================================================
// REPORT RUNS
// =============================================================================

func TestStore_ReportRunLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	window := ledger.Day(time.Date(2025, time.June, 12, 0, 0, 0, 0, time.UTC))
	run := sqlite.ReportRun{
		ID:        "run-1",
		BranchID:  "branch-1",
		Window:    window,
		Status:    "running",
		StartedAt: time.Now().UTC(),
	}
	require.NoError(t, store.SaveReportRun(ctx, run))

	// Completing the run updates the same row
	run.Status = "completed"
	run.CashierCount = 2
	run.HandOverTotal = d(2_430_000)
	run.CompletedAt = time.Now().UTC()
	require.NoError(t, store.SaveReportRun(ctx, run))

	runs, err := store.ListReportRuns(ctx, "branch-1", 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "completed", runs[0].Status)
	assert.Equal(t, 2, runs[0].CashierCount)
	assert.True(t, runs[0].HandOverTotal.Equal(d(2_430_000)))
}
