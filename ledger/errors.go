/*
errors.go - Centralized error types for the payment ledger engine

PURPOSE:
  All rejection and failure types in one place. Validation failures from
  the Repayment Applicator are typed rejections returned to the caller,
  never exceptions used for control flow. Nothing in this package should
  crash the host process; every failure path returns a value describing
  what happened.

ERROR CATEGORIES:
  1. Payment rejections - Validation failures on applyPayment
  2. Record errors     - Malformed or missing upstream rows
  3. Store errors      - Persistence-level failures

USAGE:
  Callers match with errors.Is():

    if errors.Is(err, ledger.ErrOutOfOrderPayment) {
        // surface as blocking validation message
    }

SEE ALSO:
  - repayment.go: Produces the rejection types
  - reconcile.go: Absorbs malformed-record errors into skipped rows
*/
package ledger

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidAmount is returned when a non-positive payment amount is
	// submitted. The obligation is left unchanged.
	ErrInvalidAmount = errors.New("invalid payment amount")

	// ErrOutOfOrderPayment is returned when paying a later installment
	// while an earlier one remains open. No mutation occurs.
	ErrOutOfOrderPayment = errors.New("earlier installment still open")

	// ErrOverpayment is returned when the amount exceeds the obligation's
	// remaining due. No mutation occurs.
	ErrOverpayment = errors.New("payment exceeds remaining due")

	// ErrObligationNotFound is returned when the requested sequence does
	// not exist in the schedule.
	ErrObligationNotFound = errors.New("obligation not found")

	// ErrMalformedRecord is returned when an upstream record is missing
	// required fields. Aggregation skips such rows rather than aborting.
	ErrMalformedRecord = errors.New("malformed record")

	// ErrTransactionNotFound is returned when a referenced sale doesn't exist.
	ErrTransactionNotFound = errors.New("transaction not found")

	// ErrDuplicateRepayment is returned when a repayment record with the
	// same id already exists. Expected behavior for retries.
	ErrDuplicateRepayment = errors.New("duplicate repayment record")
)

// =============================================================================
// STRUCTURED REJECTIONS - Carry additional context
// =============================================================================

// InvalidAmountError details a non-positive payment submission.
type InvalidAmountError struct {
	Amount decimal.Decimal
}

func (e *InvalidAmountError) Error() string {
	return fmt.Sprintf("invalid payment amount: %s (must be positive)", e.Amount)
}

func (e *InvalidAmountError) Unwrap() error { return ErrInvalidAmount }

// OutOfOrderError details a sequencing-guard violation.
type OutOfOrderError struct {
	TransactionRef TransactionID
	Sequence       int // the installment being paid
	OpenSequence   int // the earlier installment still open
}

func (e *OutOfOrderError) Error() string {
	return fmt.Sprintf("cannot pay installment %d of %s: installment %d still open",
		e.Sequence, e.TransactionRef, e.OpenSequence)
}

func (e *OutOfOrderError) Unwrap() error { return ErrOutOfOrderPayment }

// OverpaymentError details an amount exceeding the remaining due.
type OverpaymentError struct {
	TransactionRef TransactionID
	Sequence       int
	Requested      decimal.Decimal
	Remaining      decimal.Decimal
}

func (e *OverpaymentError) Error() string {
	return fmt.Sprintf("payment of %s exceeds remaining %s on installment %d of %s",
		e.Requested, e.Remaining, e.Sequence, e.TransactionRef)
}

func (e *OverpaymentError) Unwrap() error { return ErrOverpayment }

// MalformedRecordError identifies which field of which record was missing.
type MalformedRecordError struct {
	Kind  string // "transaction", "repayment", "defective_log"
	Ref   string
	Field string
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("malformed %s record %q: missing %s", e.Kind, e.Ref, e.Field)
}

func (e *MalformedRecordError) Unwrap() error { return ErrMalformedRecord }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRejection returns true if the error is a payment validation rejection
// (operator input problem, not a system failure).
func IsRejection(err error) bool {
	return errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrOutOfOrderPayment) ||
		errors.Is(err, ErrOverpayment)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrTransactionNotFound) ||
		errors.Is(err, ErrObligationNotFound)
}
