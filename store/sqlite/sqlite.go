/*
Package sqlite provides a SQLite-backed implementation of the ledger
store interfaces.

PURPOSE:
  Implements TransactionStore, RepaymentStore, DefectiveLogStore and
  EmployeeStore using SQLite. In production against PostgreSQL the same
  patterns apply - only minor SQL dialect differences.

APPEND-ONLY ENFORCEMENT:
  The repayments table is append-only:
  - No UPDATE statements on repayments
  - No DELETE statements on repayments
  Reconciliation reads the individual payment events; they are never
  recomputed from obligation deltas.

KEY TABLES:
  transactions:   One row per sale (immutable except status)
  obligations:    Payment schedule entries, updated only via the applicator
  repayments:     Append-only audit trail of payment events
  defective_logs: Cash-impacting return/adjustment rows
  employees:      Directory for attribution
  report_runs:    Scheduler audit trail for reconciliation runs

CONCURRENCY:
  Uses sync.RWMutex for thread-safety, plus WAL mode so readers don't
  block each other.

USAGE:
  store, err := sqlite.New("./data/posledger.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - ledger/store.go: Interface definitions
  - ledger/store/memory.go: In-memory implementation for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/alibek517/posledger/ledger"
)

// Store implements all ledger storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Sales. Immutable after posting except status.
	CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		branch_id TEXT NOT NULL,
		seller_id TEXT NOT NULL,
		payment_type TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'active',
		principal TEXT NOT NULL,
		upfront_paid TEXT NOT NULL DEFAULT '0',
		upfront_channel TEXT NOT NULL DEFAULT 'cash',
		term_unit TEXT NOT NULL DEFAULT 'months',
		term_length INTEGER NOT NULL DEFAULT 0,
		interest_rate TEXT NOT NULL DEFAULT '0',
		items_json TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_transactions_branch_created
		ON transactions(branch_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_transactions_seller
		ON transactions(seller_id);

	-- Payment schedules. One row per installment obligation.
	CREATE TABLE IF NOT EXISTS obligations (
		transaction_id TEXT NOT NULL,
		sequence INTEGER NOT NULL,
		amount_due TEXT NOT NULL,
		amount_paid TEXT NOT NULL DEFAULT '0',
		due_date TEXT NOT NULL,
		paid_at TEXT,
		paid_channel TEXT,
		paid_by TEXT,
		rating TEXT,
		PRIMARY KEY (transaction_id, sequence)
	);

	-- Repayment audit trail (append-only; no UPDATE, no DELETE)
	CREATE TABLE IF NOT EXISTS repayments (
		id TEXT PRIMARY KEY,
		transaction_id TEXT NOT NULL,
		obligation_sequence INTEGER NOT NULL,
		amount TEXT NOT NULL,
		channel TEXT NOT NULL,
		paid_at TEXT NOT NULL,
		paid_by TEXT NOT NULL,
		branch_id TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_repayments_branch_paid
		ON repayments(branch_id, paid_at);
	CREATE INDEX IF NOT EXISTS idx_repayments_transaction
		ON repayments(transaction_id);

	-- Defective/return adjustment log
	CREATE TABLE IF NOT EXISTS defective_logs (
		id TEXT PRIMARY KEY,
		transaction_id TEXT,
		action_type TEXT NOT NULL,
		cash_amount TEXT NOT NULL,
		created_at TEXT NOT NULL,
		actor_id TEXT NOT NULL,
		branch_id TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_defective_branch_created
		ON defective_logs(branch_id, created_at);

	-- Employees (directory)
	CREATE TABLE IF NOT EXISTS employees (
		id TEXT PRIMARY KEY,
		display_name TEXT NOT NULL,
		role TEXT NOT NULL,
		branch_id TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_employees_branch
		ON employees(branch_id);

	-- Reconciliation report runs (scheduler audit)
	CREATE TABLE IF NOT EXISTS report_runs (
		id TEXT PRIMARY KEY,
		branch_id TEXT NOT NULL,
		window_from TEXT NOT NULL,
		window_to TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		cashier_count INTEGER DEFAULT 0,
		warehouse_count INTEGER DEFAULT 0,
		hand_over_total TEXT DEFAULT '0',
		error TEXT,
		started_at TEXT,
		completed_at TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_report_runs_branch
		ON report_runs(branch_id, created_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// TRANSACTION STORE (ledger.TransactionStore interface)
// =============================================================================

// SaveTransaction inserts a sale and its schedule atomically.
func (s *Store) SaveTransaction(ctx context.Context, t ledger.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	itemsJSON, _ := json.Marshal(t.Items)

	_, err = tx.ExecContext(ctx, `
		INSERT INTO transactions
		(id, branch_id, seller_id, payment_type, status, principal, upfront_paid,
		 upfront_channel, term_unit, term_length, interest_rate, items_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID,
		t.BranchID,
		t.SellerID,
		t.PaymentType,
		statusOrDefault(t.Status),
		t.Principal.String(),
		t.UpfrontPaid.String(),
		channelOrDefault(t.UpfrontChannel),
		termUnitOrDefault(t.TermUnit),
		t.TermLength,
		t.InterestRatePercent.String(),
		string(itemsJSON),
		t.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to insert transaction: %w", err)
	}

	for _, ob := range t.Schedule {
		if err := insertObligation(ctx, tx, ob); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *Store) FetchTransactions(ctx context.Context, branch ledger.BranchID, window ledger.Window) ([]ledger.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, branch_id, seller_id, payment_type, status, principal,
		       upfront_paid, upfront_channel, term_unit, term_length,
		       interest_rate, items_json, created_at
		FROM transactions
		WHERE created_at >= ? AND created_at <= ?`
	args := []any{
		window.From.UTC().Format(time.RFC3339),
		window.To.UTC().Format(time.RFC3339),
	}
	if branch != "" {
		query += ` AND branch_id = ?`
		args = append(args, branch)
	}
	query += ` ORDER BY created_at`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var out []ledger.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range out {
		sched, err := s.fetchScheduleLocked(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Schedule = sched
	}
	return out, nil
}

func (s *Store) GetTransaction(ctx context.Context, id ledger.TransactionID) (ledger.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, branch_id, seller_id, payment_type, status, principal,
		       upfront_paid, upfront_channel, term_unit, term_length,
		       interest_rate, items_json, created_at
		FROM transactions WHERE id = ?`, id)

	t, err := scanTransaction(row)
	if err == sql.ErrNoRows {
		return ledger.Transaction{}, ledger.ErrTransactionNotFound
	}
	if err != nil {
		return ledger.Transaction{}, err
	}

	t.Schedule, err = s.fetchScheduleLocked(ctx, t.ID)
	if err != nil {
		return ledger.Transaction{}, err
	}
	return t, nil
}

func (s *Store) FetchSchedule(ctx context.Context, id ledger.TransactionID) ([]ledger.Obligation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fetchScheduleLocked(ctx, id)
}

func (s *Store) fetchScheduleLocked(ctx context.Context, id ledger.TransactionID) ([]ledger.Obligation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT transaction_id, sequence, amount_due, amount_paid, due_date,
		       paid_at, paid_channel, paid_by, rating
		FROM obligations WHERE transaction_id = ? ORDER BY sequence`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query obligations: %w", err)
	}
	defer rows.Close()

	var out []ledger.Obligation
	for rows.Next() {
		var (
			ob      ledger.Obligation
			amtDue  string
			amtPaid string
			due     string
			paidAt  sql.NullString
			channel sql.NullString
			paidBy  sql.NullString
			rating  sql.NullString
		)
		if err := rows.Scan(&ob.TransactionRef, &ob.Sequence, &amtDue, &amtPaid,
			&due, &paidAt, &channel, &paidBy, &rating); err != nil {
			return nil, err
		}
		ob.AmountDue = mustDecimal(amtDue)
		ob.AmountPaid = mustDecimal(amtPaid)
		ob.DueDate, _ = time.Parse(time.RFC3339, due)
		if paidAt.Valid && paidAt.String != "" {
			if t, perr := time.Parse(time.RFC3339, paidAt.String); perr == nil {
				ob.PaidAt = &t
			}
		}
		if channel.Valid {
			ob.PaidChannel = ledger.Channel(channel.String)
		}
		if paidBy.Valid {
			ob.PaidBy = ledger.ActorID(paidBy.String)
		}
		if rating.Valid {
			ob.Rating = ledger.Rating(rating.String)
		}
		out = append(out, ob)
	}
	return out, rows.Err()
}

// PersistObligation writes back one obligation's state after a payment.
// Inserts on first persistence of a synthesized schedule entry.
func (s *Store) PersistObligation(ctx context.Context, ob ledger.Obligation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var paidAt any
	if ob.PaidAt != nil {
		paidAt = ob.PaidAt.UTC().Format(time.RFC3339)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE obligations
		SET amount_paid = ?, paid_at = ?, paid_channel = ?, paid_by = ?, rating = ?
		WHERE transaction_id = ? AND sequence = ?`,
		ob.AmountPaid.String(),
		paidAt,
		nullString(string(ob.PaidChannel)),
		nullString(string(ob.PaidBy)),
		nullString(string(ob.Rating)),
		ob.TransactionRef,
		ob.Sequence,
	)
	if err != nil {
		return fmt.Errorf("failed to update obligation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()
		if err := insertObligation(ctx, tx, ob); err != nil {
			return err
		}
		return tx.Commit()
	}
	return nil
}

// MarkReturned flips a sale's status to returned.
func (s *Store) MarkReturned(ctx context.Context, id ledger.TransactionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`UPDATE transactions SET status = ? WHERE id = ?`, ledger.StatusReturned, id)
	if err != nil {
		return fmt.Errorf("failed to mark returned: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ledger.ErrTransactionNotFound
	}
	return nil
}

func insertObligation(ctx context.Context, tx *sql.Tx, ob ledger.Obligation) error {
	var paidAt any
	if ob.PaidAt != nil {
		paidAt = ob.PaidAt.UTC().Format(time.RFC3339)
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO obligations
		(transaction_id, sequence, amount_due, amount_paid, due_date,
		 paid_at, paid_channel, paid_by, rating)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ob.TransactionRef,
		ob.Sequence,
		ob.AmountDue.String(),
		ob.AmountPaid.String(),
		ob.DueDate.UTC().Format(time.RFC3339),
		paidAt,
		nullString(string(ob.PaidChannel)),
		nullString(string(ob.PaidBy)),
		nullString(string(ob.Rating)),
	)
	if err != nil {
		return fmt.Errorf("failed to insert obligation: %w", err)
	}
	return nil
}

// =============================================================================
// REPAYMENT STORE (append-only)
// =============================================================================

// AppendRepayment persists one payment event. This is the ONLY write on
// the repayments table.
func (s *Store) AppendRepayment(ctx context.Context, rec ledger.RepaymentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO repayments
		(id, transaction_id, obligation_sequence, amount, channel, paid_at,
		 paid_by, branch_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID,
		rec.TransactionRef,
		rec.ObligationSequence,
		rec.Amount.String(),
		rec.Channel,
		rec.PaidAt.UTC().Format(time.RFC3339),
		rec.PaidBy,
		rec.BranchID,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ledger.ErrDuplicateRepayment
		}
		return fmt.Errorf("failed to append repayment: %w", err)
	}
	return nil
}

func (s *Store) FetchRepayments(ctx context.Context, branch ledger.BranchID, window ledger.Window) ([]ledger.RepaymentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, transaction_id, obligation_sequence, amount, channel,
		       paid_at, paid_by, branch_id
		FROM repayments
		WHERE paid_at >= ? AND paid_at <= ?`
	args := []any{
		window.From.UTC().Format(time.RFC3339),
		window.To.UTC().Format(time.RFC3339),
	}
	if branch != "" {
		query += ` AND branch_id = ?`
		args = append(args, branch)
	}
	query += ` ORDER BY paid_at`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query repayments: %w", err)
	}
	defer rows.Close()

	var out []ledger.RepaymentRecord
	for rows.Next() {
		var (
			rec    ledger.RepaymentRecord
			amount string
			paidAt string
		)
		if err := rows.Scan(&rec.ID, &rec.TransactionRef, &rec.ObligationSequence,
			&amount, &rec.Channel, &paidAt, &rec.PaidBy, &rec.BranchID); err != nil {
			return nil, err
		}
		rec.Amount = mustDecimal(amount)
		rec.PaidAt, _ = time.Parse(time.RFC3339, paidAt)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// FetchRepaymentsByTransaction returns one sale's full audit trail,
// ordered by paid_at.
func (s *Store) FetchRepaymentsByTransaction(ctx context.Context, id ledger.TransactionID) ([]ledger.RepaymentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, transaction_id, obligation_sequence, amount, channel,
		       paid_at, paid_by, branch_id
		FROM repayments
		WHERE transaction_id = ?
		ORDER BY paid_at`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query repayments: %w", err)
	}
	defer rows.Close()

	var out []ledger.RepaymentRecord
	for rows.Next() {
		var (
			rec    ledger.RepaymentRecord
			amount string
			paidAt string
		)
		if err := rows.Scan(&rec.ID, &rec.TransactionRef, &rec.ObligationSequence,
			&amount, &rec.Channel, &paidAt, &rec.PaidBy, &rec.BranchID); err != nil {
			return nil, err
		}
		rec.Amount = mustDecimal(amount)
		rec.PaidAt, _ = time.Parse(time.RFC3339, paidAt)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// =============================================================================
// DEFECTIVE LOG STORE
// =============================================================================

func (s *Store) AppendDefectiveLog(ctx context.Context, entry ledger.DefectiveLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO defective_logs
		(id, transaction_id, action_type, cash_amount, created_at, actor_id, branch_id)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		nullString(string(entry.TransactionRef)),
		entry.ActionType,
		entry.CashAmount.String(),
		entry.CreatedAt.UTC().Format(time.RFC3339),
		entry.ActorID,
		entry.BranchID,
	)
	if err != nil {
		return fmt.Errorf("failed to append defective log: %w", err)
	}
	return nil
}

func (s *Store) FetchDefectiveLogs(ctx context.Context, branch ledger.BranchID, window ledger.Window) ([]ledger.DefectiveLogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, transaction_id, action_type, cash_amount, created_at,
		       actor_id, branch_id
		FROM defective_logs
		WHERE created_at >= ? AND created_at <= ?`
	args := []any{
		window.From.UTC().Format(time.RFC3339),
		window.To.UTC().Format(time.RFC3339),
	}
	if branch != "" {
		query += ` AND branch_id = ?`
		args = append(args, branch)
	}
	query += ` ORDER BY created_at`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query defective logs: %w", err)
	}
	defer rows.Close()

	var out []ledger.DefectiveLogEntry
	for rows.Next() {
		var (
			entry     ledger.DefectiveLogEntry
			txRef     sql.NullString
			amount    string
			createdAt string
		)
		if err := rows.Scan(&entry.ID, &txRef, &entry.ActionType, &amount,
			&createdAt, &entry.ActorID, &entry.BranchID); err != nil {
			return nil, err
		}
		if txRef.Valid {
			entry.TransactionRef = ledger.TransactionID(txRef.String)
		}
		entry.CashAmount = mustDecimal(amount)
		entry.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		out = append(out, entry)
	}
	return out, rows.Err()
}

// =============================================================================
// EMPLOYEE STORE
// =============================================================================

func (s *Store) SaveEmployee(ctx context.Context, emp ledger.Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO employees (id, display_name, role, branch_id, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			display_name = excluded.display_name,
			role = excluded.role,
			branch_id = excluded.branch_id`,
		emp.ID,
		emp.DisplayName,
		emp.Role,
		emp.BranchID,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save employee: %w", err)
	}
	return nil
}

func (s *Store) ListEmployees(ctx context.Context, branch ledger.BranchID) ([]ledger.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT id, display_name, role, branch_id FROM employees`
	var args []any
	if branch != "" {
		query += ` WHERE branch_id = ?`
		args = append(args, branch)
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query employees: %w", err)
	}
	defer rows.Close()

	var out []ledger.Employee
	for rows.Next() {
		var emp ledger.Employee
		if err := rows.Scan(&emp.ID, &emp.DisplayName, &emp.Role, &emp.BranchID); err != nil {
			return nil, err
		}
		out = append(out, emp)
	}
	return out, rows.Err()
}

// Directory loads the employee set into a map-backed lookup snapshot.
func (s *Store) Directory(ctx context.Context) (ledger.Directory, error) {
	emps, err := s.ListEmployees(ctx, "")
	if err != nil {
		return nil, err
	}
	dir := make(ledger.DirectoryMap, len(emps))
	for _, e := range emps {
		dir[e.ID] = e
	}
	return dir, nil
}

// =============================================================================
// REPORT RUNS (scheduler audit)
// =============================================================================

// ReportRun records one scheduled or manual reconciliation run.
type ReportRun struct {
	ID             string
	BranchID       ledger.BranchID
	Window         ledger.Window
	Status         string // pending, completed, failed
	CashierCount   int
	WarehouseCount int
	HandOverTotal  decimal.Decimal
	Error          string
	StartedAt      time.Time
	CompletedAt    time.Time
}

func (s *Store) SaveReportRun(ctx context.Context, run ReportRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO report_runs
		(id, branch_id, window_from, window_to, status, cashier_count,
		 warehouse_count, hand_over_total, error, started_at, completed_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			cashier_count = excluded.cashier_count,
			warehouse_count = excluded.warehouse_count,
			hand_over_total = excluded.hand_over_total,
			error = excluded.error,
			completed_at = excluded.completed_at`,
		run.ID,
		run.BranchID,
		run.Window.From.UTC().Format(time.RFC3339),
		run.Window.To.UTC().Format(time.RFC3339),
		run.Status,
		run.CashierCount,
		run.WarehouseCount,
		run.HandOverTotal.String(),
		nullString(run.Error),
		run.StartedAt.UTC().Format(time.RFC3339),
		run.CompletedAt.UTC().Format(time.RFC3339),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save report run: %w", err)
	}
	return nil
}

func (s *Store) ListReportRuns(ctx context.Context, branch ledger.BranchID, limit int) ([]ReportRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, branch_id, window_from, window_to, status, cashier_count,
		       warehouse_count, hand_over_total, error, started_at, completed_at
		FROM report_runs`
	var args []any
	if branch != "" {
		query += ` WHERE branch_id = ?`
		args = append(args, branch)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query report runs: %w", err)
	}
	defer rows.Close()

	var out []ReportRun
	for rows.Next() {
		var (
			run                    ReportRun
			from, to, total        string
			errMsg                 sql.NullString
			startedAt, completedAt string
		)
		if err := rows.Scan(&run.ID, &run.BranchID, &from, &to, &run.Status,
			&run.CashierCount, &run.WarehouseCount, &total, &errMsg,
			&startedAt, &completedAt); err != nil {
			return nil, err
		}
		run.Window.From, _ = time.Parse(time.RFC3339, from)
		run.Window.To, _ = time.Parse(time.RFC3339, to)
		run.HandOverTotal = mustDecimal(total)
		if errMsg.Valid {
			run.Error = errMsg.String
		}
		run.StartedAt, _ = time.Parse(time.RFC3339, startedAt)
		run.CompletedAt, _ = time.Parse(time.RFC3339, completedAt)
		out = append(out, run)
	}
	return out, rows.Err()
}

// =============================================================================
// HELPERS
// =============================================================================

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (ledger.Transaction, error) {
	var (
		t         ledger.Transaction
		principal string
		upfront   string
		rate      string
		itemsJSON sql.NullString
		createdAt string
	)
	err := row.Scan(&t.ID, &t.BranchID, &t.SellerID, &t.PaymentType, &t.Status,
		&principal, &upfront, &t.UpfrontChannel, &t.TermUnit, &t.TermLength,
		&rate, &itemsJSON, &createdAt)
	if err != nil {
		return ledger.Transaction{}, err
	}
	t.Principal = mustDecimal(principal)
	t.UpfrontPaid = mustDecimal(upfront)
	t.InterestRatePercent = mustDecimal(rate)
	t.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	if itemsJSON.Valid && itemsJSON.String != "" && itemsJSON.String != "null" {
		_ = json.Unmarshal([]byte(itemsJSON.String), &t.Items)
	}
	return t, nil
}

func mustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func statusOrDefault(st ledger.TransactionStatus) ledger.TransactionStatus {
	if st == "" {
		return ledger.StatusActive
	}
	return st
}

func channelOrDefault(c ledger.Channel) ledger.Channel {
	if c == "" {
		return ledger.ChannelCash
	}
	return c
}

func termUnitOrDefault(u ledger.TermUnit) ledger.TermUnit {
	if u == "" {
		return ledger.TermMonths
	}
	return u
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
