/*
schedule_test.go - Specification tests for the Schedule Builder

PURPOSE:
  These tests serve as EXECUTABLE SPECIFICATIONS of schedule synthesis.
  Each test documents one behavior and validates that the implementation
  conforms to it.

ORGANIZATION:
  1. Sum invariant - schedules sum to the remainder exactly
  2. Rounding - whole-currency-unit installments, last absorbs drift
  3. Day terms - single obligation
  4. Pass-through - server-issued schedules are never re-derived
  5. Degenerate input - empty schedule, not an error

READING THESE TESTS:
  Each test has:
  - A descriptive name that states the behavior
  - GIVEN/WHEN/THEN comments explaining the scenario
  - Clear assertions with explanatory messages
*/
package ledger_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alibek517/posledger/ledger"
)

// =============================================================================
// TEST INFRASTRUCTURE
// =============================================================================

func m(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

func creditSale(principal, upfront int64, ratePercent int64, termUnit ledger.TermUnit, termLength int) ledger.Transaction {
	return ledger.Transaction{
		ID:                  "tx-1",
		BranchID:            "branch-1",
		SellerID:            "seller-1",
		PaymentType:         ledger.PayCredit,
		Principal:           m(principal),
		UpfrontPaid:         m(upfront),
		UpfrontChannel:      ledger.ChannelCash,
		TermUnit:            termUnit,
		TermLength:          termLength,
		InterestRatePercent: m(ratePercent),
		CreatedAt:           time.Date(2025, time.March, 15, 10, 0, 0, 0, time.UTC),
	}
}

func scheduleSum(schedule []ledger.Obligation) decimal.Decimal {
	return ledger.ScheduleDue(schedule)
}

// =============================================================================
// SUM INVARIANT
// =============================================================================

func TestBuildSchedule_SumsToRemainderExactly_WhenDivisible(t *testing.T) {
	// GIVEN: principal=1,000,000, upfront=0, rate=20%, term=3 months
	// remainder with interest = 1,200,000, divisible by 3
	sale := creditSale(1_000_000, 0, 20, ledger.TermMonths, 3)

	// WHEN: Building the schedule
	schedule := ledger.BuildSchedule(sale)

	// THEN: Three equal installments of 400,000
	if len(schedule) != 3 {
		t.Fatalf("expected 3 obligations, got %d", len(schedule))
	}
	for i, ob := range schedule {
		if !ob.AmountDue.Equal(m(400_000)) {
			t.Errorf("obligation %d: expected 400000 due, got %s", i+1, ob.AmountDue)
		}
	}
	if !scheduleSum(schedule).Equal(m(1_200_000)) {
		t.Errorf("schedule must sum to 1200000, got %s", scheduleSum(schedule))
	}
}

func TestBuildSchedule_LastInstallmentAbsorbsRemainder(t *testing.T) {
	// GIVEN: 1,000,000 with no interest over 3 months (not divisible)
	sale := creditSale(1_000_000, 0, 0, ledger.TermMonths, 3)

	// WHEN: Building the schedule
	schedule := ledger.BuildSchedule(sale)

	// THEN: [333333, 333333, 333334] - whole units, last absorbs the
	// 1-unit remainder, sum is exactly 1,000,000
	if len(schedule) != 3 {
		t.Fatalf("expected 3 obligations, got %d", len(schedule))
	}
	want := []int64{333_333, 333_333, 333_334}
	for i, w := range want {
		if !schedule[i].AmountDue.Equal(m(w)) {
			t.Errorf("obligation %d: expected %d due, got %s", i+1, w, schedule[i].AmountDue)
		}
	}
	if !scheduleSum(schedule).Equal(m(1_000_000)) {
		t.Errorf("schedule must sum to 1000000 exactly, got %s", scheduleSum(schedule))
	}
}

func TestBuildSchedule_UpfrontReducesScheduledAmount(t *testing.T) {
	// GIVEN: principal=1,000,000, upfront=400,000, rate=10%, 2 months
	// remaining = 600,000; interest = 60,000; total = 660,000
	sale := creditSale(1_000_000, 400_000, 10, ledger.TermMonths, 2)

	// WHEN: Building the schedule
	schedule := ledger.BuildSchedule(sale)

	// THEN: Two installments of 330,000 each
	if len(schedule) != 2 {
		t.Fatalf("expected 2 obligations, got %d", len(schedule))
	}
	if !scheduleSum(schedule).Equal(m(660_000)) {
		t.Errorf("schedule must sum to 660000, got %s", scheduleSum(schedule))
	}
	if !schedule[0].AmountDue.Equal(m(330_000)) {
		t.Errorf("expected 330000 per installment, got %s", schedule[0].AmountDue)
	}
}

func TestBuildSchedule_OverpaidUpfrontClampsToZero(t *testing.T) {
	// GIVEN: Upfront exceeds principal
	sale := creditSale(500_000, 700_000, 20, ledger.TermMonths, 3)

	// WHEN: Building the schedule
	schedule := ledger.BuildSchedule(sale)

	// THEN: Nothing left to schedule; interest never applies to a
	// negative remainder
	if len(schedule) != 0 {
		t.Errorf("expected empty schedule, got %d obligations", len(schedule))
	}
}

// =============================================================================
// SEQUENCE AND DUE DATES
// =============================================================================

func TestBuildSchedule_SequencesAreOneBasedAndOrdered(t *testing.T) {
	sale := creditSale(1_200_000, 0, 0, ledger.TermMonths, 4)

	schedule := ledger.BuildSchedule(sale)

	if len(schedule) != 4 {
		t.Fatalf("expected 4 obligations, got %d", len(schedule))
	}
	for i, ob := range schedule {
		if ob.Sequence != i+1 {
			t.Errorf("obligation at index %d: expected sequence %d, got %d", i, i+1, ob.Sequence)
		}
		if ob.TransactionRef != sale.ID {
			t.Errorf("obligation %d: expected ref %s, got %s", i+1, sale.ID, ob.TransactionRef)
		}
	}
}

func TestBuildSchedule_MonthlyDueDatesAdvanceFromSaleDate(t *testing.T) {
	// GIVEN: Sale created March 15
	sale := creditSale(300_000, 0, 0, ledger.TermMonths, 3)

	// WHEN: Building the schedule
	schedule := ledger.BuildSchedule(sale)

	// THEN: Due dates are April 15, May 15, June 15
	wantMonths := []time.Month{time.April, time.May, time.June}
	for i, wm := range wantMonths {
		got := schedule[i].DueDate
		if got.Month() != wm || got.Day() != 15 {
			t.Errorf("obligation %d: expected due %v 15, got %v", i+1, wm, got)
		}
	}
}

// =============================================================================
// DAY TERMS
// =============================================================================

func TestBuildSchedule_DayTermProducesSingleObligation(t *testing.T) {
	// GIVEN: 30-day term on any amount
	sale := creditSale(745_500, 0, 0, ledger.TermDays, 30)

	// WHEN: Building the schedule
	schedule := ledger.BuildSchedule(sale)

	// THEN: Exactly one obligation for the full amount, due 30 days out
	if len(schedule) != 1 {
		t.Fatalf("expected exactly 1 obligation for a day term, got %d", len(schedule))
	}
	ob := schedule[0]
	if ob.Sequence != 1 {
		t.Errorf("expected sequence 1, got %d", ob.Sequence)
	}
	if !ob.AmountDue.Equal(m(745_500)) {
		t.Errorf("expected full amount 745500 due, got %s", ob.AmountDue)
	}
	wantDue := sale.CreatedAt.AddDate(0, 0, 30)
	if !ob.DueDate.Equal(wantDue) {
		t.Errorf("expected due %v, got %v", wantDue, ob.DueDate)
	}
}

// =============================================================================
// PASS-THROUGH
// =============================================================================

func TestBuildSchedule_ServerIssuedScheduleIsPassedThrough(t *testing.T) {
	// GIVEN: A sale carrying a server-issued schedule with "odd" amounts
	// that synthesis would never produce
	issued := []ledger.Obligation{
		{TransactionRef: "tx-1", Sequence: 1, AmountDue: m(123_456), DueDate: time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)},
		{TransactionRef: "tx-1", Sequence: 2, AmountDue: m(876_544), DueDate: time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)},
	}
	sale := creditSale(1_000_000, 0, 20, ledger.TermMonths, 3)
	sale.Schedule = issued

	// WHEN: Building the schedule
	schedule := ledger.BuildSchedule(sale)

	// THEN: The issued schedule comes back unchanged, ignoring term fields
	if len(schedule) != 2 {
		t.Fatalf("expected the 2 issued obligations, got %d", len(schedule))
	}
	for i := range issued {
		if !schedule[i].AmountDue.Equal(issued[i].AmountDue) {
			t.Errorf("obligation %d: issued amount %s changed to %s", i+1, issued[i].AmountDue, schedule[i].AmountDue)
		}
	}

	// AND: It is a copy - mutating the result leaves the sale untouched
	schedule[0].AmountPaid = m(1)
	if sale.Schedule[0].AmountPaid.Equal(m(1)) {
		t.Error("pass-through must copy, not alias, the issued schedule")
	}
}

// =============================================================================
// DEGENERATE INPUT
// =============================================================================

func TestBuildSchedule_DegenerateInputYieldsEmptySchedule(t *testing.T) {
	cases := []struct {
		name string
		sale ledger.Transaction
	}{
		{"zero term length", creditSale(1_000_000, 0, 0, ledger.TermMonths, 0)},
		{"negative term length", creditSale(1_000_000, 0, 0, ledger.TermMonths, -2)},
		{"zero day term", creditSale(1_000_000, 0, 0, ledger.TermDays, 0)},
		{"fully paid upfront", creditSale(1_000_000, 1_000_000, 0, ledger.TermMonths, 6)},
		{"zero principal", creditSale(0, 0, 20, ledger.TermMonths, 6)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			schedule := ledger.BuildSchedule(tc.sale)
			if len(schedule) != 0 {
				t.Errorf("expected empty schedule, got %d obligations", len(schedule))
			}
		})
	}
}
