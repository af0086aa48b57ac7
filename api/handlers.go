/*
handlers.go - HTTP API handlers for the payment ledger engine

PURPOSE:
  Exposes the ledger engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Transactions:
    GET    /api/transactions                  List sales (branch/window filters)
    POST   /api/transactions                  Create sale (schedule built on ingest)
    GET    /api/transactions/{id}             Get sale details
    GET    /api/transactions/{id}/schedule    Get payment schedule
    POST   /api/transactions/{id}/payments    Apply a repayment
    POST   /api/transactions/{id}/return      Return a sale

  Employees:
    GET    /api/employees              List directory
    POST   /api/employees              Create/update employee

  Defects:
    GET    /api/defects                List defective-log rows
    POST   /api/defects                Record a manual cash adjustment

  Reports:
    GET    /api/reports/reconciliation Per-employee reconciliation summaries
    GET    /api/reports/runs           Scheduler run history

REQUEST FLOW:
  1. Parse HTTP request (tolerant parsing via factory for sale ingest)
  2. Validate input
  3. Call domain logic (schedule builder, applicator, aggregator)
  4. Serialize response
  5. Handle errors

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid amounts, overpayments
  - 404: Transaction or obligation not found
  - 409: Out-of-order payment, duplicate repayment
  - 500: Internal errors

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - scheduler.go: Background reconciliation runs
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/alibek517/posledger/factory"
	"github.com/alibek517/posledger/ledger"
	"github.com/alibek517/posledger/store/sqlite"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store      *sqlite.Store
	Applicator *ledger.Applicator
	Factory    *factory.Factory
}

// NewHandler creates a new handler with the given store.
func NewHandler(store *sqlite.Store) *Handler {
	return &Handler{
		Store:      store,
		Applicator: ledger.NewApplicator(),
		Factory:    factory.New(),
	}
}

// =============================================================================
// TRANSACTION HANDLERS
// =============================================================================

// ListTransactions returns sales, optionally filtered by branch and window.
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	window, err := windowFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date filter", err)
		return
	}
	branch := ledger.BranchID(r.URL.Query().Get("branch"))

	txs, err := h.Store.FetchTransactions(r.Context(), branch, window)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list transactions", err)
		return
	}

	dtos := make([]TransactionDTO, 0, len(txs))
	for _, t := range txs {
		dtos = append(dtos, toTransactionDTO(t))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateTransaction posts a new sale. The body is parsed tolerantly, so
// upstream POS payload variants are accepted as-is. For deferred sales a
// payment schedule is synthesized and stored alongside the sale.
func (h *Handler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read request body", err)
		return
	}

	t, err := h.Factory.ParseTransaction(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid transaction payload", err)
		return
	}

	if t.ID == "" {
		t.ID = ledger.TransactionID(uuid.NewString())
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	if t.Status == "" {
		t.Status = ledger.StatusActive
	}
	// Derive principal from line items when the payload omits it.
	if t.Principal.IsZero() && len(t.Items) > 0 {
		t.Principal = t.ItemsTotal()
	}

	t.Schedule = ledger.BuildSchedule(t)
	for i := range t.Schedule {
		t.Schedule[i].TransactionRef = t.ID
	}

	if err := h.Store.SaveTransaction(r.Context(), t); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save transaction", err)
		return
	}

	writeJSON(w, http.StatusCreated, toTransactionDTO(t))
}

// GetTransaction returns a single sale.
func (h *Handler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	id := ledger.TransactionID(chi.URLParam(r, "id"))

	t, err := h.Store.GetTransaction(r.Context(), id)
	if err != nil {
		writeStoreError(w, "Failed to get transaction", err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionDTO(t))
}

// GetSchedule returns the payment schedule for a sale. When no schedule
// was stored (legacy rows), one is derived on the fly.
func (h *Handler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	id := ledger.TransactionID(chi.URLParam(r, "id"))

	t, err := h.Store.GetTransaction(r.Context(), id)
	if err != nil {
		writeStoreError(w, "Failed to get transaction", err)
		return
	}

	schedule := t.Schedule
	if len(schedule) == 0 {
		schedule = ledger.BuildSchedule(t)
	}
	writeJSON(w, http.StatusOK, toScheduleDTO(schedule))
}

// =============================================================================
// PAYMENT HANDLERS
// =============================================================================

// ApplyPayment validates and applies one payment to one installment.
// The whole fetch-validate-apply-persist cycle runs inside the
// applicator under the obligation's lock, so concurrent duplicate
// submissions serialize against the store rather than against two
// independently fetched schedule copies.
func (h *Handler) ApplyPayment(w http.ResponseWriter, r *http.Request) {
	id := ledger.TransactionID(chi.URLParam(r, "id"))

	var req PaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount", err)
		return
	}

	paidAt := time.Now().UTC()
	if req.PaidAt != "" {
		paidAt, err = time.Parse(time.RFC3339, req.PaidAt)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid paid_at timestamp (use RFC3339)", err)
			return
		}
	}

	rec, schedule, err := h.Applicator.ApplyAndPersist(r.Context(), h.Store, id, req.Sequence, ledger.Payment{
		Amount:   amount,
		Channel:  ledger.Channel(req.Channel),
		ActorID:  ledger.ActorID(req.ActorID),
		BranchID: ledger.BranchID(req.BranchID),
		At:       paidAt,
		Rating:   ledger.Rating(req.Rating),
	})
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrDuplicateRepayment):
			writeError(w, http.StatusConflict, "Duplicate repayment", err)
		case errors.Is(err, ledger.ErrTransactionNotFound):
			writeError(w, http.StatusNotFound, "Failed to get transaction", err)
		default:
			writeLedgerError(w, err)
		}
		return
	}

	writeJSON(w, http.StatusCreated, PaymentResponse{
		Record:   toRepaymentDTO(rec),
		Schedule: toScheduleDTO(schedule),
	})
}

// ListPayments returns the repayment audit trail for one sale.
func (h *Handler) ListPayments(w http.ResponseWriter, r *http.Request) {
	id := ledger.TransactionID(chi.URLParam(r, "id"))
	ctx := r.Context()

	if _, err := h.Store.GetTransaction(ctx, id); err != nil {
		writeStoreError(w, "Failed to get transaction", err)
		return
	}

	recs, err := h.Store.FetchRepaymentsByTransaction(ctx, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list repayments", err)
		return
	}

	dtos := make([]RepaymentDTO, 0, len(recs))
	for _, rec := range recs {
		dtos = append(dtos, toRepaymentDTO(rec))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// RETURN HANDLERS
// =============================================================================

// ReturnTransaction marks a sale returned and records the cash impact
// on the defective log. Cash from the drawer follows the money actually
// received: outright cash sales and fully repaid deferred sales refund
// in cash; everything else nets against the original bucket during
// reconciliation.
func (h *Handler) ReturnTransaction(w http.ResponseWriter, r *http.Request) {
	id := ledger.TransactionID(chi.URLParam(r, "id"))

	var req ReturnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ActorID == "" {
		writeError(w, http.StatusBadRequest, "actor_id is required", nil)
		return
	}

	ctx := r.Context()
	t, err := h.Store.GetTransaction(ctx, id)
	if err != nil {
		writeStoreError(w, "Failed to get transaction", err)
		return
	}
	if t.Status == ledger.StatusReturned {
		writeError(w, http.StatusConflict, "Transaction already returned", nil)
		return
	}

	if err := h.Store.MarkReturned(ctx, id); err != nil {
		writeStoreError(w, "Failed to mark returned", err)
		return
	}

	// Cash leaves the drawer only for money that arrived as cash.
	refund := decimal.Zero
	if t.PaymentType == ledger.PayCash {
		refund = t.Principal
	} else if t.PaymentType.Deferred() {
		paid := t.UpfrontPaid.Add(ledger.SchedulePaid(t.Schedule))
		if paid.GreaterThanOrEqual(t.FinalTotal()) {
			refund = t.FinalTotal()
		}
	}

	entry := ledger.DefectiveLogEntry{
		ID:             uuid.NewString(),
		TransactionRef: id,
		ActionType:     ledger.ActionReturn,
		CashAmount:     refund.Neg(),
		CreatedAt:      time.Now().UTC(),
		ActorID:        ledger.ActorID(req.ActorID),
		BranchID:       t.BranchID,
	}
	if err := h.Store.AppendDefectiveLog(ctx, entry); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to append defective log", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":         string(ledger.StatusReturned),
		"transaction_id": string(id),
		"defect_log":     toDefectLogDTO(entry),
	})
}

// =============================================================================
// DEFECT HANDLERS
// =============================================================================

// ListDefects returns defective-log rows for a branch and window.
func (h *Handler) ListDefects(w http.ResponseWriter, r *http.Request) {
	window, err := windowFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date filter", err)
		return
	}
	branch := ledger.BranchID(r.URL.Query().Get("branch"))

	logs, err := h.Store.FetchDefectiveLogs(r.Context(), branch, window)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list defects", err)
		return
	}

	dtos := make([]DefectLogDTO, 0, len(logs))
	for _, e := range logs {
		dtos = append(dtos, toDefectLogDTO(e))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateDefect records a manual cash adjustment.
func (h *Handler) CreateDefect(w http.ResponseWriter, r *http.Request) {
	var req CreateDefectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	amount, err := decimal.NewFromString(req.CashAmount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid cash_amount", err)
		return
	}
	if req.ActorID == "" || req.BranchID == "" {
		writeError(w, http.StatusBadRequest, "actor_id and branch_id are required", nil)
		return
	}

	action := ledger.ActionType(req.ActionType)
	if action != ledger.ActionReturn && action != ledger.ActionAdjustment {
		action = ledger.ActionAdjustment
	}

	entry := ledger.DefectiveLogEntry{
		ID:             uuid.NewString(),
		TransactionRef: ledger.TransactionID(req.TransactionRef),
		ActionType:     action,
		CashAmount:     amount,
		CreatedAt:      time.Now().UTC(),
		ActorID:        ledger.ActorID(req.ActorID),
		BranchID:       ledger.BranchID(req.BranchID),
	}
	if err := h.Store.AppendDefectiveLog(r.Context(), entry); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to append defective log", err)
		return
	}

	writeJSON(w, http.StatusCreated, toDefectLogDTO(entry))
}

// =============================================================================
// EMPLOYEE HANDLERS
// =============================================================================

// ListEmployees returns the directory, optionally filtered by branch.
func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	branch := ledger.BranchID(r.URL.Query().Get("branch"))

	emps, err := h.Store.ListEmployees(r.Context(), branch)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list employees", err)
		return
	}

	dtos := make([]EmployeeDTO, 0, len(emps))
	for _, e := range emps {
		dtos = append(dtos, EmployeeDTO{
			ID:          string(e.ID),
			DisplayName: e.DisplayName,
			Role:        string(e.Role),
			BranchID:    string(e.BranchID),
		})
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateEmployee creates or updates a directory entry.
func (h *Handler) CreateEmployee(w http.ResponseWriter, r *http.Request) {
	var req CreateEmployeeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	role := ledger.Role(req.Role)
	if role != ledger.RoleCashier && role != ledger.RoleWarehouse {
		writeError(w, http.StatusBadRequest, "role must be cashier or warehouse", nil)
		return
	}

	emp := ledger.Employee{
		ID:          ledger.ActorID(req.ID),
		DisplayName: req.DisplayName,
		Role:        role,
		BranchID:    ledger.BranchID(req.BranchID),
	}
	if err := h.Store.SaveEmployee(r.Context(), emp); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save employee", err)
		return
	}

	writeJSON(w, http.StatusCreated, EmployeeDTO{
		ID:          string(emp.ID),
		DisplayName: emp.DisplayName,
		Role:        string(emp.Role),
		BranchID:    string(emp.BranchID),
	})
}

// =============================================================================
// REPORT HANDLERS
// =============================================================================

// GetReconciliation aggregates a branch's window into per-employee
// summaries.
// GET /api/reports/reconciliation?branch=&from=&to=
func (h *Handler) GetReconciliation(w http.ResponseWriter, r *http.Request) {
	window, err := windowFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date filter", err)
		return
	}
	branch := ledger.BranchID(r.URL.Query().Get("branch"))

	report, err := h.buildReport(r.Context(), branch, window)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to build report", err)
		return
	}

	writeJSON(w, http.StatusOK, toReportDTO(report))
}

// ListReportRuns returns the scheduler's run history.
func (h *Handler) ListReportRuns(w http.ResponseWriter, r *http.Request) {
	branch := ledger.BranchID(r.URL.Query().Get("branch"))

	runs, err := h.Store.ListReportRuns(r.Context(), branch, 0)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list report runs", err)
		return
	}

	dtos := make([]ReportRunDTO, 0, len(runs))
	for _, run := range runs {
		dto := ReportRunDTO{
			ID:             run.ID,
			BranchID:       string(run.BranchID),
			From:           run.Window.From.Format(time.RFC3339),
			To:             run.Window.To.Format(time.RFC3339),
			Status:         run.Status,
			CashierCount:   run.CashierCount,
			WarehouseCount: run.WarehouseCount,
			HandOverTotal:  run.HandOverTotal.String(),
			Error:          run.Error,
		}
		if !run.CompletedAt.IsZero() {
			dto.CompletedAt = run.CompletedAt.Format(time.RFC3339)
		}
		dtos = append(dtos, dto)
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": dtos})
}

// reportSource is the slice of the store one reconciliation run reads.
type reportSource interface {
	FetchTransactions(ctx context.Context, branch ledger.BranchID, window ledger.Window) ([]ledger.Transaction, error)
	FetchRepayments(ctx context.Context, branch ledger.BranchID, window ledger.Window) ([]ledger.RepaymentRecord, error)
	FetchDefectiveLogs(ctx context.Context, branch ledger.BranchID, window ledger.Window) ([]ledger.DefectiveLogEntry, error)
	Directory(ctx context.Context) (ledger.Directory, error)
}

func (h *Handler) buildReport(ctx context.Context, branch ledger.BranchID, window ledger.Window) (ledger.Report, error) {
	return buildReport(ctx, h.Store, branch, window)
}

// buildReport fetches a window's records and runs the aggregator. Shared
// by the report endpoint and the background scheduler. The transaction
// fetch is fatal; any other failed sub-fetch degrades to zero rows for
// that source, so a report missing one source still comes back.
func buildReport(ctx context.Context, src reportSource, branch ledger.BranchID, window ledger.Window) (ledger.Report, error) {
	txs, err := src.FetchTransactions(ctx, branch, window)
	if err != nil {
		return ledger.Report{}, fmt.Errorf("fetch transactions: %w", err)
	}

	schedules := make(map[ledger.TransactionID][]ledger.Obligation, len(txs))
	for _, t := range txs {
		if len(t.Schedule) > 0 {
			schedules[t.ID] = t.Schedule
		}
	}

	repayments, err := src.FetchRepayments(ctx, branch, window)
	if err != nil {
		log.Printf("[Report] Repayments fetch failed, continuing with zero rows: %v", err)
		repayments = nil
	}

	defects, err := src.FetchDefectiveLogs(ctx, branch, window)
	if err != nil {
		log.Printf("[Report] Defective logs fetch failed, continuing with zero rows: %v", err)
		defects = nil
	}

	dir, err := src.Directory(ctx)
	if err != nil {
		log.Printf("[Report] Directory fetch failed, continuing without attribution: %v", err)
		dir = ledger.DirectoryMap{}
	}

	return ledger.Aggregate(ledger.AggregateInput{
		BranchID:      branch,
		Window:        window,
		Transactions:  txs,
		Schedules:     schedules,
		Repayments:    repayments,
		DefectiveLogs: defects,
		Directory:     dir,
	}), nil
}

func toReportDTO(report ledger.Report) ReportDTO {
	dto := ReportDTO{
		BranchID:  string(report.BranchID),
		From:      report.Window.From.Format(time.RFC3339),
		To:        report.Window.To.Format(time.RFC3339),
		Cashiers:  make([]SummaryDTO, 0, len(report.Cashiers)),
		Warehouse: make([]SummaryDTO, 0, len(report.Warehouse)),
	}
	for _, s := range report.Cashiers {
		dto.Cashiers = append(dto.Cashiers, toSummaryDTO(s))
	}
	for _, s := range report.Warehouse {
		dto.Warehouse = append(dto.Warehouse, toSummaryDTO(s))
	}
	sort.Slice(dto.Cashiers, func(i, j int) bool { return dto.Cashiers[i].ActorID < dto.Cashiers[j].ActorID })
	sort.Slice(dto.Warehouse, func(i, j int) bool { return dto.Warehouse[i].ActorID < dto.Warehouse[j].ActorID })
	return dto
}

// =============================================================================
// HELPERS
// =============================================================================

// windowFromQuery parses from/to query params (RFC3339 or YYYY-MM-DD).
// Absent params default to the current day.
func windowFromQuery(r *http.Request) (ledger.Window, error) {
	fromStr := r.URL.Query().Get("from")
	toStr := r.URL.Query().Get("to")

	if fromStr == "" && toStr == "" {
		return ledger.Day(time.Now().UTC()), nil
	}

	from, err := parseTimeParam(fromStr, false)
	if err != nil {
		return ledger.Window{}, fmt.Errorf("invalid from: %w", err)
	}
	to, err := parseTimeParam(toStr, true)
	if err != nil {
		return ledger.Window{}, fmt.Errorf("invalid to: %w", err)
	}
	return ledger.Window{From: from, To: to}, nil
}

func parseTimeParam(s string, endOfDay bool) (time.Time, error) {
	if s == "" {
		if endOfDay {
			return ledger.Day(time.Now().UTC()).To, nil
		}
		return ledger.Day(time.Now().UTC()).From, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, err
	}
	if endOfDay {
		return ledger.Day(t).To, nil
	}
	return ledger.Day(t).From, nil
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeLedgerError maps applicator rejections onto HTTP statuses.
func writeLedgerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ledger.ErrInvalidAmount):
		writeError(w, http.StatusBadRequest, "Invalid payment amount", err)
	case errors.Is(err, ledger.ErrOverpayment):
		writeError(w, http.StatusBadRequest, "Payment exceeds remaining due", err)
	case errors.Is(err, ledger.ErrOutOfOrderPayment):
		writeError(w, http.StatusConflict, "Earlier installment still open", err)
	case errors.Is(err, ledger.ErrObligationNotFound):
		writeError(w, http.StatusNotFound, "Obligation not found", err)
	default:
		writeError(w, http.StatusInternalServerError, "Failed to apply payment", err)
	}
}

func writeStoreError(w http.ResponseWriter, message string, err error) {
	if ledger.IsNotFound(err) {
		writeError(w, http.StatusNotFound, message, err)
		return
	}
	writeError(w, http.StatusInternalServerError, message, err)
}
