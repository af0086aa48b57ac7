/*
reconcile.go - Branch cash reconciliation

PURPOSE:
  Re-derives per-employee and per-branch summaries from a time-windowed
  set of transactions, repayment records, and defective logs. The output
  answers the end-of-shift question: how much physical cash should each
  employee hand over?

DESIGN:
  Aggregate is a pure, stateless function recomputed fully from its inputs
  on every call. There is no incremental mutation of shared maps between
  runs, which eliminates stale-bucket bugs where an employee's role could
  depend on iteration order across render cycles.

ROLE EXCLUSIVITY:
  An employee lands in exactly one of the cashier/warehouse maps per run:
  1. Role resolution runs before any bucket assignment; first-seen role
     wins for the whole run.
  2. A final deduplication pass removes any id that slipped into both
     maps (cashier wins), guaranteeing the invariant even if rows arrive
     out of order.

FAILURE SEMANTICS:
  Missing or malformed rows (absent actor, unknown employee) are skipped
  for that specific bucket rather than aborting the aggregation. A report
  missing one row beats no report.

SEE ALSO:
  - types.go:   EmployeeLedgerSummary and the hand-over formula
  - schedule.go: Schedules re-derived here for fully-paid checks
*/
package ledger

// =============================================================================
// INPUT / OUTPUT
// =============================================================================

// Directory resolves actor ids to employee records. Lookups are used for
// attribution and display only, never for monetary logic.
type Directory interface {
	Lookup(id ActorID) (Employee, bool)
}

// DirectoryMap is a map-backed Directory for pre-fetched employee sets.
type DirectoryMap map[ActorID]Employee

func (d DirectoryMap) Lookup(id ActorID) (Employee, bool) {
	emp, ok := d[id]
	return emp, ok
}

// AggregateInput is everything one reconciliation run reads. Schedules
// holds each transaction's obligations keyed by id; when a transaction's
// entry is absent, the schedule is re-derived via BuildSchedule.
type AggregateInput struct {
	BranchID      BranchID
	Window        Window
	Transactions  []Transaction
	Schedules     map[TransactionID][]Obligation
	Repayments    []RepaymentRecord
	DefectiveLogs []DefectiveLogEntry
	Directory     Directory
}

// Report is one reconciliation run's output. The cashier and warehouse
// maps are disjoint by construction.
type Report struct {
	BranchID  BranchID
	Window    Window
	Cashiers  map[ActorID]*EmployeeLedgerSummary
	Warehouse map[ActorID]*EmployeeLedgerSummary
}

// Summary returns the employee's summary regardless of role map.
func (r Report) Summary(id ActorID) (*EmployeeLedgerSummary, bool) {
	if s, ok := r.Cashiers[id]; ok {
		return s, true
	}
	s, ok := r.Warehouse[id]
	return s, ok
}

// =============================================================================
// AGGREGATOR
// =============================================================================

type aggregator struct {
	in        AggregateInput
	cashiers  map[ActorID]*EmployeeLedgerSummary
	warehouse map[ActorID]*EmployeeLedgerSummary

	// First-seen role classification for this run. Disjoint by step 1;
	// the dedup pass at the end re-guarantees it.
	processedCashier   map[ActorID]bool
	processedWarehouse map[ActorID]bool
}

// Aggregate computes the per-employee ledger summaries for one branch and
// time window. Pure: reads its input, returns a fresh Report.
func Aggregate(in AggregateInput) Report {
	a := &aggregator{
		in:                 in,
		cashiers:           make(map[ActorID]*EmployeeLedgerSummary),
		warehouse:          make(map[ActorID]*EmployeeLedgerSummary),
		processedCashier:   make(map[ActorID]bool),
		processedWarehouse: make(map[ActorID]bool),
	}

	a.bucketSales()
	a.bucketRepayments()
	a.netDefectives()
	a.dedupe()

	return Report{
		BranchID:  in.BranchID,
		Window:    in.Window,
		Cashiers:  a.cashiers,
		Warehouse: a.warehouse,
	}
}

// summaryFor resolves the actor's role (first-seen wins) and returns the
// bucket to accumulate into. Returns nil for rows that must be skipped:
// missing actor, unknown employee, or an actor already classified under
// the other role.
func (a *aggregator) summaryFor(id ActorID) *EmployeeLedgerSummary {
	if id == "" {
		return nil
	}
	emp, ok := a.in.Directory.Lookup(id)
	if !ok {
		return nil
	}

	switch {
	case a.processedCashier[id]:
		return a.ensure(a.cashiers, emp, RoleCashier)
	case a.processedWarehouse[id]:
		return a.ensure(a.warehouse, emp, RoleWarehouse)
	}

	switch emp.Role {
	case RoleCashier:
		a.processedCashier[id] = true
		return a.ensure(a.cashiers, emp, RoleCashier)
	case RoleWarehouse:
		a.processedWarehouse[id] = true
		return a.ensure(a.warehouse, emp, RoleWarehouse)
	default:
		return nil
	}
}

func (a *aggregator) ensure(m map[ActorID]*EmployeeLedgerSummary, emp Employee, role Role) *EmployeeLedgerSummary {
	s, ok := m[emp.ID]
	if !ok {
		s = newSummary(emp)
		s.Role = role
		m[emp.ID] = s
	}
	return s
}

// scheduleOf returns the transaction's obligations, re-deriving them when
// the caller didn't supply a fetched schedule.
func (a *aggregator) scheduleOf(t Transaction) []Obligation {
	if sched, ok := a.in.Schedules[t.ID]; ok {
		return sched
	}
	return BuildSchedule(t)
}

func (a *aggregator) inBranch(b BranchID) bool {
	return a.in.BranchID == "" || b == "" || b == a.in.BranchID
}

// =============================================================================
// STEP 2+3: SALES AND RETURNS
// =============================================================================

func (a *aggregator) bucketSales() {
	for _, t := range a.in.Transactions {
		if !a.in.Window.Contains(t.CreatedAt) || !a.inBranch(t.BranchID) {
			continue
		}
		s := a.summaryFor(t.SellerID)
		if s == nil {
			continue
		}

		if t.Status == StatusReturned {
			a.netReturn(s, t)
			continue
		}

		total := t.FinalTotal()
		switch t.PaymentType {
		case PayCash:
			s.CashTotal = s.CashTotal.Add(total)
		case PayCard:
			s.CardTotal = s.CardTotal.Add(total)
		case PayCredit:
			s.CreditTotal = s.CreditTotal.Add(total)
		case PayInstallment:
			s.InstallmentTotal = s.InstallmentTotal.Add(total)
		default:
			continue
		}

		if t.PaymentType.Deferred() {
			s.UpfrontTotal = s.UpfrontTotal.Add(t.UpfrontPaid)
			switch t.UpfrontChannel {
			case ChannelCard:
				s.UpfrontCard = s.UpfrontCard.Add(t.UpfrontPaid)
			default:
				s.UpfrontCash = s.UpfrontCash.Add(t.UpfrontPaid)
			}
		}
	}
}

// netReturn subtracts a returned sale from the bucket matching its
// original payment type. A return on a not-yet-fully-paid credit sale
// reduces outstanding credit exposure, not cash on hand, so the
// subtraction targets the credit/installment bucket itself.
//
// Bucket netting is attributed to the sale's window (CreatedAt): a sale
// both posted and returned inside the window contributes nothing net. A
// sale returned after its window closed is never re-netted here; its
// cash impact reaches the drawer through the defective-log entry, which
// is stamped at return time and picked up by netDefectives in the
// window where the refund actually happened.
func (a *aggregator) netReturn(s *EmployeeLedgerSummary, t Transaction) {
	total := t.FinalTotal().Abs()

	switch t.PaymentType {
	case PayCash:
		s.CashTotal = s.CashTotal.Sub(total)
	case PayCard:
		s.CardTotal = s.CardTotal.Sub(total)
	case PayCredit, PayInstallment:
		if a.fullyPaid(t) {
			s.CashTotal = s.CashTotal.Sub(total)
			return
		}
		if t.PaymentType == PayCredit {
			s.CreditTotal = s.CreditTotal.Sub(total)
		} else {
			s.InstallmentTotal = s.InstallmentTotal.Sub(total)
		}
	}
}

// fullyPaid: upfront plus everything applied to the schedule covers the
// final total.
func (a *aggregator) fullyPaid(t Transaction) bool {
	paid := t.UpfrontPaid.Add(SchedulePaid(a.scheduleOf(t)))
	return paid.GreaterThanOrEqual(t.FinalTotal())
}

// =============================================================================
// STEP 4: REPAYMENTS
// =============================================================================

// bucketRepayments attributes each repayment to the actor who collected
// it, by PaidAt (when money actually changed hands), not the sale date.
// The collector may differ from the original seller - a warehouse worker
// collecting an installment for a cashier's sale is counted under the
// warehouse worker.
func (a *aggregator) bucketRepayments() {
	for _, r := range a.in.Repayments {
		if !a.in.Window.Contains(r.PaidAt) || !a.inBranch(r.BranchID) {
			continue
		}
		s := a.summaryFor(r.PaidBy)
		if s == nil {
			continue
		}

		s.RepaymentTotal = s.RepaymentTotal.Add(r.Amount)
		switch r.Channel {
		case ChannelCard:
			s.RepaymentCard = s.RepaymentCard.Add(r.Amount)
		default:
			s.RepaymentCash = s.RepaymentCash.Add(r.Amount)
		}
	}
}

// =============================================================================
// STEP 5: DEFECTIVE / ADJUSTMENT NETTING
// =============================================================================

func (a *aggregator) netDefectives() {
	for _, e := range a.in.DefectiveLogs {
		if !a.in.Window.Contains(e.CreatedAt) || !a.inBranch(e.BranchID) {
			continue
		}
		s := a.summaryFor(e.ActorID)
		if s == nil {
			continue
		}

		if e.CashAmount.IsPositive() {
			s.DefectivePlus = s.DefectivePlus.Add(e.CashAmount)
			continue
		}
		if !e.CashAmount.IsNegative() {
			continue
		}

		// Negative entries: manual cash-out adjustments always subtract.
		// Return entries subtract only when the original sale's channel
		// was effectively cash; card-paid returns never touch the drawer.
		if e.ActionType == ActionReturn && !a.returnWasCash(e) {
			continue
		}
		s.DefectiveMinus = s.DefectiveMinus.Add(e.CashAmount.Abs())
	}
}

// returnWasCash reports whether the transaction behind a return entry was
// effectively a cash sale: cash outright, or a deferred sale fully paid
// by return time. Unresolvable references degrade to false (skip).
func (a *aggregator) returnWasCash(e DefectiveLogEntry) bool {
	if e.TransactionRef == "" {
		return false
	}
	for _, t := range a.in.Transactions {
		if t.ID != e.TransactionRef {
			continue
		}
		switch t.PaymentType {
		case PayCash:
			return true
		case PayCredit, PayInstallment:
			return a.fullyPaid(t)
		default:
			return false
		}
	}
	return false
}

// =============================================================================
// STEP 7: DEDUPLICATION
// =============================================================================

// dedupe removes any id present in both maps. Cashier classification
// wins, matching step 1's resolution order. Defensive: step 1 already
// keeps the maps disjoint unless rows arrived pre-classified.
func (a *aggregator) dedupe() {
	for id := range a.warehouse {
		if _, dup := a.cashiers[id]; dup {
			delete(a.warehouse, id)
		}
	}
}
