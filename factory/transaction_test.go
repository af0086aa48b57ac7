package factory_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alibek517/posledger/factory"
	"github.com/alibek517/posledger/ledger"
)

// =============================================================================
// TRANSACTION NORMALIZATION
// =============================================================================

func TestParseTransaction_CanonicalPayload(t *testing.T) {
	f := factory.New()

	tx, err := f.ParseTransaction([]byte(`{
		"id": "tx-1",
		"branchId": "branch-1",
		"seller": "emp-7",
		"paymentType": "credit",
		"principal": 1000000,
		"upfrontPaid": 200000,
		"upfrontChannel": "cash",
		"months": 6,
		"interestRate": 20,
		"createdAt": "2025-06-10T12:00:00Z"
	}`))
	require.NoError(t, err)

	assert.Equal(t, ledger.TransactionID("tx-1"), tx.ID)
	assert.Equal(t, ledger.ActorID("emp-7"), tx.SellerID)
	assert.Equal(t, ledger.PayCredit, tx.PaymentType)
	assert.True(t, tx.Principal.Equal(decimal.NewFromInt(1_000_000)))
	assert.True(t, tx.UpfrontPaid.Equal(decimal.NewFromInt(200_000)))
	assert.Equal(t, ledger.TermMonths, tx.TermUnit)
	assert.Equal(t, 6, tx.TermLength)
	assert.Equal(t, ledger.StatusActive, tx.Status)
}

func TestParseTransaction_AmountsAsStrings(t *testing.T) {
	f := factory.New()

	tx, err := f.ParseTransaction([]byte(`{
		"id": "tx-2",
		"branchId": "branch-1",
		"seller": "emp-7",
		"paymentType": "cash",
		"principal": "745 500",
		"createdAt": "2025-06-10"
	}`))
	require.NoError(t, err)

	assert.True(t, tx.Principal.Equal(decimal.NewFromInt(745_500)),
		"string amounts with spaces must parse, got %s", tx.Principal)
}

func TestParseTransaction_SellerAsObject(t *testing.T) {
	f := factory.New()

	cases := []struct {
		name    string
		payload string
		want    ledger.ActorID
	}{
		{"id key", `{"id": "tx-3", "seller": {"id": "emp-1", "name": "Aziza"}, "paymentType": "cash", "principal": 1, "createdAt": "2025-06-10"}`, "emp-1"},
		{"_id key", `{"id": "tx-4", "seller": {"_id": "emp-2"}, "paymentType": "cash", "principal": 1, "createdAt": "2025-06-10"}`, "emp-2"},
		{"soldBy fallback", `{"id": "tx-5", "soldBy": "emp-3", "paymentType": "cash", "principal": 1, "createdAt": "2025-06-10"}`, "emp-3"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tx, err := f.ParseTransaction([]byte(tc.payload))
			require.NoError(t, err)
			assert.Equal(t, tc.want, tx.SellerID)
		})
	}
}

func TestParseTransaction_UpfrontSpellings(t *testing.T) {
	f := factory.New()

	// "paidAmount" and "payment" are the two historical spellings.
	for _, field := range []string{"paidAmount", "payment", "upfrontPaid"} {
		tx, err := f.ParseTransaction([]byte(`{
			"id": "tx-up",
			"seller": "emp-1",
			"paymentType": "installment",
			"principal": 500000,
			"` + field + `": 120000,
			"months": 3,
			"createdAt": "2025-06-10"
		}`))
		require.NoError(t, err, field)
		assert.True(t, tx.UpfrontPaid.Equal(decimal.NewFromInt(120_000)),
			"field %s: got %s", field, tx.UpfrontPaid)
	}
}

func TestParseTransaction_PrincipalDerivedFromItems(t *testing.T) {
	f := factory.New()

	tx, err := f.ParseTransaction([]byte(`{
		"id": "tx-items",
		"seller": "emp-1",
		"paymentType": "cash",
		"items": [
			{"productRef": "p1", "unitPrice": 150000, "quantity": 2},
			{"product": "p2", "price": "50000", "quantity": 1}
		],
		"createdAt": "2025-06-10"
	}`))
	require.NoError(t, err)

	assert.True(t, tx.Principal.Equal(decimal.NewFromInt(350_000)),
		"expected 2*150000 + 50000, got %s", tx.Principal)
	require.Len(t, tx.Items, 2)
	assert.Equal(t, "p2", tx.Items[1].ProductRef)
}

func TestParseTransaction_LocalizedPaymentTypes(t *testing.T) {
	f := factory.New()

	cases := map[string]ledger.PaymentType{
		"naqd":   ledger.PayCash,
		"karta":  ledger.PayCard,
		"kredit": ledger.PayCredit,
		"bolib":  ledger.PayInstallment,
		"CASH":   ledger.PayCash,
	}
	for raw, want := range cases {
		tx, err := f.ParseTransaction([]byte(`{
			"id": "tx-loc", "seller": "emp-1", "paymentType": "` + raw + `",
			"principal": 1, "createdAt": "2025-06-10"
		}`))
		require.NoError(t, err, raw)
		assert.Equal(t, want, tx.PaymentType, raw)
	}
}

func TestParseTransaction_UnixTimestamp(t *testing.T) {
	f := factory.New()

	tx, err := f.ParseTransaction([]byte(`{
		"id": "tx-unix", "seller": "emp-1", "paymentType": "cash",
		"principal": 1, "createdAt": 1749556800
	}`))
	require.NoError(t, err)
	assert.Equal(t, time.Unix(1749556800, 0).UTC(), tx.CreatedAt)
}

func TestParseTransaction_EmbeddedSchedulePassesThrough(t *testing.T) {
	f := factory.New()

	tx, err := f.ParseTransaction([]byte(`{
		"id": "tx-sched",
		"seller": "emp-1",
		"paymentType": "credit",
		"principal": 600000,
		"months": 2,
		"createdAt": "2025-06-10",
		"paymentSchedules": [
			{"month": 1, "amount": 300000, "paid": 300000, "paidBy": {"id": "emp-9"}, "channel": "card", "rating": "good", "paidAt": "2025-07-01T10:00:00Z"},
			{"sequence": 2, "amountDue": "300000"}
		]
	}`))
	require.NoError(t, err)

	require.Len(t, tx.Schedule, 2)
	first := tx.Schedule[0]
	assert.Equal(t, 1, first.Sequence, "month key maps to sequence")
	assert.True(t, first.AmountPaid.Equal(decimal.NewFromInt(300_000)))
	assert.Equal(t, ledger.ActorID("emp-9"), first.PaidBy)
	assert.Equal(t, ledger.ChannelCard, first.PaidChannel)
	assert.Equal(t, ledger.RatingGood, first.Rating)
	require.NotNil(t, first.PaidAt)

	second := tx.Schedule[1]
	assert.True(t, second.AmountDue.Equal(decimal.NewFromInt(300_000)))
	assert.Empty(t, second.PaidChannel, "unpaid entries carry no channel")
	assert.Nil(t, second.PaidAt)
}

func TestParseTransaction_MalformedRecords(t *testing.T) {
	f := factory.New()

	cases := []struct {
		name    string
		payload string
	}{
		{"missing id", `{"seller": "emp-1", "paymentType": "cash", "principal": 1, "createdAt": "2025-06-10"}`},
		{"unknown payment type", `{"id": "tx-x", "seller": "emp-1", "paymentType": "barter", "principal": 1, "createdAt": "2025-06-10"}`},
		{"missing createdAt", `{"id": "tx-y", "seller": "emp-1", "paymentType": "cash", "principal": 1}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.ParseTransaction([]byte(tc.payload))
			assert.Error(t, err)
		})
	}
}

func TestParseTransactions_SkipsBadRowsKeepsGoodOnes(t *testing.T) {
	f := factory.New()

	txs, errs := f.ParseTransactions([]byte(`[
		{"id": "tx-good", "seller": "emp-1", "paymentType": "cash", "principal": 100, "createdAt": "2025-06-10"},
		{"seller": "emp-1", "paymentType": "cash", "principal": 100, "createdAt": "2025-06-10"},
		{"id": "tx-good-2", "seller": "emp-2", "paymentType": "card", "principal": 200, "createdAt": "2025-06-10"}
	]`))

	assert.Len(t, txs, 2, "good rows survive")
	assert.Len(t, errs, 1, "bad row reported, not fatal")
}

// =============================================================================
// DEFECTIVE LOG NORMALIZATION
// =============================================================================

func TestParseDefectiveLog_Variants(t *testing.T) {
	f := factory.New()

	entry, err := f.ParseDefectiveLog([]byte(`{
		"id": "log-1",
		"transactionId": "tx-1",
		"actionType": "RETURN",
		"cashAmount": "-150000",
		"createdAt": "2025-06-10T09:00:00Z",
		"actor": {"_id": "emp-4"},
		"branchId": "branch-1"
	}`))
	require.NoError(t, err)

	assert.Equal(t, ledger.ActionReturn, entry.ActionType)
	assert.True(t, entry.CashAmount.Equal(decimal.NewFromInt(-150_000)))
	assert.Equal(t, ledger.ActorID("emp-4"), entry.ActorID)
}

func TestParseDefectiveLog_MissingActorRejected(t *testing.T) {
	f := factory.New()

	_, err := f.ParseDefectiveLog([]byte(`{
		"id": "log-2",
		"actionType": "adjustment",
		"cashAmount": 1000,
		"createdAt": "2025-06-10",
		"branchId": "branch-1"
	}`))
	require.Error(t, err)
	assert.ErrorIs(t, err, ledger.ErrMalformedRecord)
}
