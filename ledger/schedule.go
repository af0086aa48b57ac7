/*
schedule.go - Payment schedule synthesis

PURPOSE:
  Turns a sale into an ordered list of installment obligations. When the
  upstream store already issued a schedule, it is passed through unchanged;
  synthesizing on top of an authoritative schedule is how client and server
  diverge, so we never re-derive or merge.

SYNTHESIS:
  remaining      = max(0, principal - upfront)
  interest       = remaining * rate / 100
  total          = remaining + interest

  DAYS term:   exactly one obligation for the full total, due at
               createdAt + termLength days.
  MONTHS term: n equal installments rounded DOWN to whole currency units;
               the LAST installment absorbs the remainder so the schedule
               sums to total exactly. 1,000,000 over 3 months becomes
               [333333, 333333, 333334].

DEGENERATE INPUT:
  Zero/negative term or nothing left to pay yields an empty schedule, not
  an error. Upstream validation rejects nonsensical sale submissions; by
  the time a sale reaches here, "no obligations" simply means it was fully
  paid at sale time.

SEE ALSO:
  - types.go:     Obligation invariants
  - repayment.go: How obligations are paid down
*/
package ledger

import "github.com/shopspring/decimal"

// BuildSchedule returns the payment schedule for a sale.
//
// Pure function: no side effects, no I/O. Server-issued schedules are
// returned as a copy, untouched. Otherwise a schedule is synthesized per
// the rules above.
func BuildSchedule(t Transaction) []Obligation {
	if len(t.Schedule) > 0 {
		out := make([]Obligation, len(t.Schedule))
		copy(out, t.Schedule)
		return out
	}

	total := t.RemainingWithInterest()
	if !total.IsPositive() {
		return nil
	}

	if t.TermUnit == TermDays {
		if t.TermLength <= 0 {
			return nil
		}
		return []Obligation{{
			TransactionRef: t.ID,
			Sequence:       1,
			AmountDue:      total,
			AmountPaid:     decimal.Zero,
			DueDate:        t.CreatedAt.AddDate(0, 0, t.TermLength),
		}}
	}

	n := t.TermLength
	if n <= 0 {
		return nil
	}

	// Whole-currency-unit base installment; drift lands on the last one.
	base := total.Div(decimal.NewFromInt(int64(n))).RoundDown(0)

	schedule := make([]Obligation, n)
	allocated := decimal.Zero
	for k := 1; k <= n; k++ {
		due := base
		if k == n {
			due = total.Sub(allocated)
		}
		schedule[k-1] = Obligation{
			TransactionRef: t.ID,
			Sequence:       k,
			AmountDue:      due,
			AmountPaid:     decimal.Zero,
			DueDate:        t.CreatedAt.AddDate(0, k, 0),
		}
		allocated = allocated.Add(due)
	}
	return schedule
}
