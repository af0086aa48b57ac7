/*
repayment.go - Payment application against a schedule

PURPOSE:
  Validates and applies one incoming payment to one obligation, mutating
  the obligation in place and emitting one RepaymentRecord for the audit
  trail. Validation runs in a fixed order; the first failure wins and no
  mutation occurs on rejection.

VALIDATION ORDER:
  1. amount > 0                          -> InvalidAmountError
  2. all earlier installments satisfied  -> OutOfOrderError
  3. amount <= remaining due             -> OverpaymentError

WHY A SEPARATE RECORD PER PAYMENT:
  One obligation may receive several partial payments over time.
  Reconciliation needs the individual events (timestamp, channel, actor)
  to compute "repayments received this period" - information lost if only
  the cumulative AmountPaid were kept.

CONCURRENCY:
  The Applicator serializes attempts per obligation. Two concurrent
  submissions for the same obligation (double-click, retried request) are
  evaluated one after the other, so the second sees the first's applied
  AmountPaid and is rejected as an overpayment instead of double-charging.

  Serializing Apply alone is not enough when each caller works on its own
  fetched copy of the schedule: two requests that fetch independently both
  see AmountPaid=0 no matter how their Apply calls interleave. Callers
  that load schedules from a store must go through ApplyAndPersist, which
  holds the obligation's lock across the whole fetch-validate-apply-persist
  cycle.

  Locks are striped onto a fixed mutex set rather than allocated per
  obligation, so the Applicator's memory stays constant over the process
  lifetime. Distinct obligations occasionally share a stripe; that only
  costs a moment of contention, never correctness.

SEE ALSO:
  - schedule.go: Where obligations come from
  - errors.go:   Rejection types
*/
package ledger

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// PAYMENT - Operator input for one payment action
// =============================================================================

// Payment carries the operator-entered details of one payment action.
type Payment struct {
	Amount   decimal.Decimal
	Channel  Channel
	ActorID  ActorID
	BranchID BranchID
	At       time.Time

	// Rating is optional and advisory (timeliness mark).
	Rating Rating
}

// PaymentStore is the store slice ApplyAndPersist drives: fetch the sale,
// write back the mutated obligation, append the audit record.
type PaymentStore interface {
	GetTransaction(ctx context.Context, id TransactionID) (Transaction, error)
	PersistObligation(ctx context.Context, ob Obligation) error
	AppendRepayment(ctx context.Context, rec RepaymentRecord) error
}

// =============================================================================
// APPLICATOR - Serialized per-obligation payment application
// =============================================================================

const lockStripes = 64

// Applicator applies payments to obligations with at-most-one-in-flight
// semantics per obligation.
type Applicator struct {
	locks [lockStripes]sync.Mutex
}

func NewApplicator() *Applicator {
	return &Applicator{}
}

func (a *Applicator) lockFor(ref TransactionID, sequence int) *sync.Mutex {
	h := fnv.New32a()
	fmt.Fprintf(h, "%s#%d", ref, sequence)
	return &a.locks[h.Sum32()%lockStripes]
}

// Apply validates and applies one payment to the obligation with the given
// sequence. On success the obligation inside schedule is mutated and the
// returned RepaymentRecord must be persisted by the caller. On rejection
// the schedule is left untouched and the error unwraps to one of the
// sentinel rejections in errors.go.
//
// Apply serializes concurrent attempts against the SAME slice. Callers
// that fetch their own schedule copy per request must use ApplyAndPersist.
func (a *Applicator) Apply(schedule []Obligation, sequence int, p Payment) (RepaymentRecord, error) {
	idx := findObligation(schedule, sequence)
	if idx < 0 {
		return RepaymentRecord{}, ErrObligationNotFound
	}

	lock := a.lockFor(schedule[idx].TransactionRef, sequence)
	lock.Lock()
	defer lock.Unlock()

	return applyPayment(schedule, idx, p)
}

// ApplyAndPersist runs one payment end to end against a store: fetch the
// sale, validate and apply against the freshly fetched schedule, write
// back the mutated obligation, append the audit record. The obligation's
// lock is held for the entire cycle, so a concurrent duplicate submission
// re-fetches AFTER this one persisted and sees its applied AmountPaid.
//
// A payment with no BranchID is attributed to the sale's branch. Sales
// stored without a schedule (legacy rows) get one synthesized and
// persisted first. The returned schedule reflects post-payment state.
func (a *Applicator) ApplyAndPersist(ctx context.Context, store PaymentStore, id TransactionID, sequence int, p Payment) (RepaymentRecord, []Obligation, error) {
	lock := a.lockFor(id, sequence)
	lock.Lock()
	defer lock.Unlock()

	t, err := store.GetTransaction(ctx, id)
	if err != nil {
		return RepaymentRecord{}, nil, err
	}

	schedule := t.Schedule
	if len(schedule) == 0 {
		// Legacy rows posted before schedule persistence.
		schedule = BuildSchedule(t)
		for i := range schedule {
			schedule[i].TransactionRef = t.ID
		}
		if len(schedule) == 0 {
			return RepaymentRecord{}, nil, ErrObligationNotFound
		}
		for i := range schedule {
			if err := store.PersistObligation(ctx, schedule[i]); err != nil {
				return RepaymentRecord{}, nil, fmt.Errorf("persist synthesized schedule: %w", err)
			}
		}
	}

	idx := findObligation(schedule, sequence)
	if idx < 0 {
		return RepaymentRecord{}, schedule, ErrObligationNotFound
	}

	if p.BranchID == "" {
		p.BranchID = t.BranchID
	}

	rec, err := applyPayment(schedule, idx, p)
	if err != nil {
		return RepaymentRecord{}, schedule, err
	}

	if err := store.PersistObligation(ctx, schedule[idx]); err != nil {
		return RepaymentRecord{}, schedule, fmt.Errorf("persist obligation: %w", err)
	}
	if err := store.AppendRepayment(ctx, rec); err != nil {
		return RepaymentRecord{}, schedule, err
	}
	return rec, schedule, nil
}

func findObligation(schedule []Obligation, sequence int) int {
	for i := range schedule {
		if schedule[i].Sequence == sequence {
			return i
		}
	}
	return -1
}

// applyPayment validates and mutates. Caller holds the obligation's lock.
func applyPayment(schedule []Obligation, idx int, p Payment) (RepaymentRecord, error) {
	ob := &schedule[idx]

	if err := validatePayment(schedule, ob, p); err != nil {
		return RepaymentRecord{}, err
	}

	ob.AmountPaid = ob.AmountPaid.Add(p.Amount)

	// Stamp metadata whether the obligation closed or stayed open: the
	// fields reflect the latest payment (last-write-wins), while
	// AmountPaid is strictly additive.
	at := p.At
	ob.PaidAt = &at
	ob.PaidChannel = p.Channel
	ob.PaidBy = p.ActorID
	if p.Rating != "" {
		ob.Rating = p.Rating
	}

	return RepaymentRecord{
		ID:                 uuid.NewString(),
		TransactionRef:     ob.TransactionRef,
		ObligationSequence: ob.Sequence,
		Amount:             p.Amount,
		Channel:            p.Channel,
		PaidAt:             p.At,
		PaidBy:             p.ActorID,
		BranchID:           p.BranchID,
	}, nil
}

// validatePayment runs the precondition checks in order; first failure wins.
func validatePayment(schedule []Obligation, ob *Obligation, p Payment) error {
	if !p.Amount.IsPositive() {
		return &InvalidAmountError{Amount: p.Amount}
	}

	// Sequencing guard. Day-based schedules hold a single obligation, so
	// the loop is trivially empty for them.
	for i := range schedule {
		earlier := &schedule[i]
		if earlier.Sequence < ob.Sequence && !earlier.Satisfied() {
			return &OutOfOrderError{
				TransactionRef: ob.TransactionRef,
				Sequence:       ob.Sequence,
				OpenSequence:   earlier.Sequence,
			}
		}
	}

	if remaining := ob.Remaining(); p.Amount.GreaterThan(remaining) {
		return &OverpaymentError{
			TransactionRef: ob.TransactionRef,
			Sequence:       ob.Sequence,
			Requested:      p.Amount,
			Remaining:      remaining,
		}
	}
	return nil
}
