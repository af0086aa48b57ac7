/*
Package ledger provides the payment ledger engine for the point-of-sale system.

PURPOSE:
  This package contains the core types and calculators for credit/installment
  payment tracking and branch cash reconciliation. Three cooperating
  calculators operate purely on in-memory records:

  - Schedule Builder (schedule.go):    sale -> ordered installment obligations
  - Repayment Applicator (repayment.go): payment -> obligation mutation + audit record
  - Reconciliation Aggregator (reconcile.go): window of records -> per-employee summaries

KEY CONCEPTS IN THIS FILE (types.go):
  - Transaction: One sale event (cash, card, credit, or installment)
  - Obligation: One due installment in a payment schedule
  - RepaymentRecord: Append-only audit entry for each payment event
  - DefectiveLogEntry: Cash-impacting return/adjustment log row
  - EmployeeLedgerSummary: Derived per-employee reconciliation output

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal to avoid floating-point drift in money
  2. Purity: Calculators perform no I/O; fetching/persisting is the caller's job
  3. Auditability: Repayment events are recorded individually, never recomputed
     from cumulative paid amounts
  4. Type Safety: Strong typing for IDs prevents mixing transaction/actor IDs

SEE ALSO:
  - schedule.go:  Schedule synthesis and pass-through
  - repayment.go: Payment validation and application
  - reconcile.go: Per-branch, per-employee aggregation
  - store.go:     Collaborator interfaces (transaction store, log store, directory)
*/
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type TransactionID string
type ActorID string
type BranchID string

// =============================================================================
// ENUMS
// =============================================================================

// PaymentType classifies how a sale is paid.
type PaymentType string

const (
	PayCash        PaymentType = "cash"
	PayCard        PaymentType = "card"
	PayCredit      PaymentType = "credit"
	PayInstallment PaymentType = "installment"
)

// Deferred reports whether the sale carries a payment schedule.
func (p PaymentType) Deferred() bool {
	return p == PayCredit || p == PayInstallment
}

// Channel is the physical means a payment arrived through.
type Channel string

const (
	ChannelCash Channel = "cash"
	ChannelCard Channel = "card"
)

// TermUnit is the granularity of a deferred sale's term.
type TermUnit string

const (
	TermMonths TermUnit = "months"
	TermDays   TermUnit = "days"
)

// Rating is an advisory timeliness mark attached at payment time.
// It affects employee performance display only; no monetary invariant.
type Rating string

const (
	RatingGood Rating = "good"
	RatingBad  Rating = "bad"
)

// Role classifies an employee for reconciliation bucketing.
type Role string

const (
	RoleCashier   Role = "cashier"
	RoleWarehouse Role = "warehouse"
)

// TransactionStatus tracks the sale lifecycle. Sales are immutable after
// posting except for this status, which the returns workflow flips.
type TransactionStatus string

const (
	StatusActive   TransactionStatus = "active"
	StatusReturned TransactionStatus = "returned"
)

// ActionType classifies a defective-log row.
type ActionType string

const (
	ActionReturn     ActionType = "return"
	ActionAdjustment ActionType = "adjustment"
)

// =============================================================================
// TRANSACTION - One sale event
// =============================================================================

// LineItem is one sold product position. Used only to derive Principal
// when it is not already known.
type LineItem struct {
	ProductRef string
	UnitPrice  decimal.Decimal
	Quantity   int
}

func (li LineItem) Total() decimal.Decimal {
	return li.UnitPrice.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

// Transaction is one sale. Created atomically by the sale workflow and
// immutable thereafter except for Status transitions.
type Transaction struct {
	ID          TransactionID
	BranchID    BranchID
	SellerID    ActorID
	PaymentType PaymentType
	Status      TransactionStatus

	// Principal is the pre-interest sale total (sum of line items).
	Principal decimal.Decimal

	// UpfrontPaid holds ONLY the initial payment at sale time, never later
	// repayments. Meaningful for credit/installment sales only.
	UpfrontPaid    decimal.Decimal
	UpfrontChannel Channel

	TermUnit            TermUnit
	TermLength          int
	InterestRatePercent decimal.Decimal

	CreatedAt time.Time
	Items     []LineItem

	// Schedule carries a server-issued schedule when one exists. The
	// Schedule Builder passes it through unchanged instead of re-deriving.
	Schedule []Obligation
}

// ItemsTotal sums the line items.
func (t Transaction) ItemsTotal() decimal.Decimal {
	total := decimal.Zero
	for _, li := range t.Items {
		total = total.Add(li.Total())
	}
	return total
}

// RemainingWithInterest is the post-upfront remainder plus interest, i.e.
// the amount a synthesized schedule must sum to exactly.
func (t Transaction) RemainingWithInterest() decimal.Decimal {
	remaining := t.Principal.Sub(t.upfront())
	if remaining.IsNegative() {
		remaining = decimal.Zero
	}
	interest := remaining.Mul(t.InterestRatePercent).Div(decimal.NewFromInt(100))
	return remaining.Add(interest)
}

// FinalTotal is the full sale price: principal for cash/card sales,
// upfront plus the interest-bearing remainder for deferred sales.
func (t Transaction) FinalTotal() decimal.Decimal {
	if !t.PaymentType.Deferred() {
		return t.Principal
	}
	return t.upfront().Add(t.RemainingWithInterest())
}

func (t Transaction) upfront() decimal.Decimal {
	if !t.PaymentType.Deferred() {
		return decimal.Zero
	}
	return t.UpfrontPaid
}

// =============================================================================
// OBLIGATION - One entry in a payment schedule
// =============================================================================

// Obligation is one due installment. Created in bulk by the Schedule
// Builder, mutated in place by the Repayment Applicator, never deleted.
//
// INVARIANTS:
//   - 0 <= AmountPaid <= AmountDue
//   - Satisfied iff AmountPaid >= AmountDue
//   - For Sequence k>1, not payable until all smaller sequences on the
//     same transaction are satisfied
type Obligation struct {
	TransactionRef TransactionID
	Sequence       int // 1-based; day-based terms have exactly one entry
	AmountDue      decimal.Decimal
	AmountPaid     decimal.Decimal
	DueDate        time.Time

	// Payment metadata, nil/empty until first payment. Last-write-wins
	// across partial payments; AmountPaid is strictly additive.
	PaidAt      *time.Time
	PaidChannel Channel
	PaidBy      ActorID
	Rating      Rating
}

// Satisfied reports whether the obligation is fully paid.
func (o Obligation) Satisfied() bool {
	return o.AmountPaid.GreaterThanOrEqual(o.AmountDue)
}

// Remaining is the amount still owed on this obligation.
func (o Obligation) Remaining() decimal.Decimal {
	r := o.AmountDue.Sub(o.AmountPaid)
	if r.IsNegative() {
		return decimal.Zero
	}
	return r
}

// SchedulePaid sums AmountPaid across a schedule.
func SchedulePaid(schedule []Obligation) decimal.Decimal {
	total := decimal.Zero
	for _, o := range schedule {
		total = total.Add(o.AmountPaid)
	}
	return total
}

// ScheduleDue sums AmountDue across a schedule.
func ScheduleDue(schedule []Obligation) decimal.Decimal {
	total := decimal.Zero
	for _, o := range schedule {
		total = total.Add(o.AmountDue)
	}
	return total
}

// =============================================================================
// REPAYMENT RECORD - Append-only audit trail, distinct from Obligation state
// =============================================================================

// RepaymentRecord is one payment event. It is the system of record for
// reconciliation: obligations accumulate several partial payments over
// time, but reconciliation needs the individual events (timestamp,
// channel, actor) to compute time-windowed totals. Records are
// append-only; never mutated, never recomputed from AmountPaid deltas.
type RepaymentRecord struct {
	ID                 string
	TransactionRef     TransactionID
	ObligationSequence int
	Amount             decimal.Decimal
	Channel            Channel
	PaidAt             time.Time
	PaidBy             ActorID
	BranchID           BranchID
}

// =============================================================================
// DEFECTIVE LOG - Cash-impacting adjustments from the returns workflow
// =============================================================================

// DefectiveLogEntry records a cash-impacting adjustment. CashAmount is
// signed: positive means cash added back to the register, negative means
// cash removed. Read-only input to the Reconciliation Aggregator.
type DefectiveLogEntry struct {
	ID             string
	TransactionRef TransactionID // empty for non-return adjustments
	ActionType     ActionType
	CashAmount     decimal.Decimal
	CreatedAt      time.Time
	ActorID        ActorID
	BranchID       BranchID
}

// =============================================================================
// EMPLOYEE - Directory record used for attribution only
// =============================================================================

// Employee is a directory entry. Used for attribution and display,
// never for monetary logic.
type Employee struct {
	ID          ActorID
	DisplayName string
	Role        Role
	BranchID    BranchID
}

// =============================================================================
// EMPLOYEE LEDGER SUMMARY - Derived reconciliation output (not persisted)
// =============================================================================

// EmployeeLedgerSummary is the Reconciliation Aggregator's output for one
// employee in one time window.
//
// INVARIANT: an employee id appears in at most one of the cashier/warehouse
// summary maps for a given window. Role is resolved once and is exclusive.
type EmployeeLedgerSummary struct {
	ActorID     ActorID
	DisplayName string
	Role        Role

	// Sales totals per payment-type bucket.
	CashTotal        decimal.Decimal
	CardTotal        decimal.Decimal
	CreditTotal      decimal.Decimal
	InstallmentTotal decimal.Decimal

	// Upfront payments on deferred sales, split by channel.
	UpfrontTotal decimal.Decimal
	UpfrontCash  decimal.Decimal
	UpfrontCard  decimal.Decimal

	// Repayments collected in the window, split by channel.
	RepaymentTotal decimal.Decimal
	RepaymentCash  decimal.Decimal
	RepaymentCard  decimal.Decimal

	// Net defective/return adjustments.
	DefectivePlus  decimal.Decimal
	DefectiveMinus decimal.Decimal
}

// HandOverTotal is the single figure operators care about most: physical
// cash expected in the drawer. Card amounts of any kind never contribute.
func (s *EmployeeLedgerSummary) HandOverTotal() decimal.Decimal {
	return s.CashTotal.
		Add(s.RepaymentCash).
		Add(s.UpfrontCash).
		Add(s.DefectivePlus.Sub(s.DefectiveMinus))
}

func newSummary(emp Employee) *EmployeeLedgerSummary {
	return &EmployeeLedgerSummary{
		ActorID:     emp.ID,
		DisplayName: emp.DisplayName,
		Role:        emp.Role,
	}
}
