/*
store.go - Collaborator interfaces for fetching and persisting records

PURPOSE:
  The calculators in this package perform no I/O. These interfaces define
  the abstract fetch/persist boundary to the external stores (remote
  backend in production, SQLite or memory locally). Any timeout or retry
  policy belongs to implementations, not to the calculators.

FAILURE CONTRACT:
  Reconciliation treats any single failed sub-fetch as "zero rows for
  that source" and continues with the data it has. Partial reports beat
  no report. That absorption happens in the caller (api package), not
  here - these interfaces surface errors normally.

APPEND-ONLY CONTRACT:
  RepaymentStore has no update or delete. One record per successful
  payment action, never mutated, never recomputed after the fact.

IMPLEMENTATIONS:
  - ledger/store/memory.go: In-memory, for tests and development
  - store/sqlite/sqlite.go: SQLite-backed, for the server
*/
package ledger

import "context"

// TransactionStore supplies sale records and accepts obligation updates.
type TransactionStore interface {
	// FetchTransactions returns sales for a branch whose CreatedAt falls
	// in the window, with server-issued schedules attached when present.
	FetchTransactions(ctx context.Context, branch BranchID, window Window) ([]Transaction, error)

	// GetTransaction returns one sale, or ErrTransactionNotFound.
	GetTransaction(ctx context.Context, id TransactionID) (Transaction, error)

	// FetchSchedule returns the stored obligations for a sale, ordered by
	// sequence. Empty result means no schedule has been persisted.
	FetchSchedule(ctx context.Context, id TransactionID) ([]Obligation, error)

	// PersistObligation writes back one obligation's state after a
	// successful payment application.
	PersistObligation(ctx context.Context, ob Obligation) error
}

// RepaymentStore records payment events. Append-only.
type RepaymentStore interface {
	// AppendRepayment persists one record. Returns ErrDuplicateRepayment
	// if the id was already recorded (safe retry).
	AppendRepayment(ctx context.Context, rec RepaymentRecord) error

	// FetchRepayments returns records for a branch whose PaidAt falls in
	// the window.
	FetchRepayments(ctx context.Context, branch BranchID, window Window) ([]RepaymentRecord, error)

	// FetchRepaymentsByTransaction returns all records for one sale,
	// ordered by PaidAt. Bounded by the sale's history, not the ledger's.
	FetchRepaymentsByTransaction(ctx context.Context, id TransactionID) ([]RepaymentRecord, error)
}

// DefectiveLogStore supplies cash-impacting adjustment rows.
type DefectiveLogStore interface {
	AppendDefectiveLog(ctx context.Context, entry DefectiveLogEntry) error
	FetchDefectiveLogs(ctx context.Context, branch BranchID, window Window) ([]DefectiveLogEntry, error)
}

// EmployeeStore supplies the directory used for attribution.
type EmployeeStore interface {
	SaveEmployee(ctx context.Context, emp Employee) error
	ListEmployees(ctx context.Context, branch BranchID) ([]Employee, error)

	// Directory returns a snapshot lookup over the current employee set.
	Directory(ctx context.Context) (Directory, error)
}
