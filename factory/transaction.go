/*
Package factory normalizes upstream JSON payloads into ledger records.

PURPOSE:
  The backend this system talks to grew organically, and its records
  arrive with inconsistent optional fields: "paidAmount" vs "payment",
  "paidBy" as an object vs a bare id string, amounts as numbers or
  strings, schedule entries under several key spellings. This package is
  the single normalization step at the store boundary: every incoming
  variant is mapped into the fixed ledger shapes before any calculator
  sees it. Calculators never branch on "which field name is present".

ACCEPTED VARIANTS:
  amount fields:   123456 | 123456.5 | "123456"
  paid-by fields:  "emp-7" | {"id": "emp-7", ...} | {"_id": "emp-7"}
  upfront paid:    "paidAmount" | "payment" | "upfrontPaid"
  schedule entry:  "amount"/"amountDue", "paid"/"amountPaid"/"paidAmount"

DEFAULTS:
  - Principal derived from line items when absent or zero
  - Status defaults to active, term unit to months
  - CreatedAt accepts RFC3339 or unix seconds

USAGE:
  f := factory.New()
  tx, err := f.ParseTransaction(rawJSON)

SEE ALSO:
  - ledger/types.go: The fixed target shapes
*/
package factory

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alibek517/posledger/ledger"
)

// Factory converts raw upstream payloads into ledger records.
type Factory struct{}

func New() *Factory { return &Factory{} }

// =============================================================================
// RAW SCHEMA TYPES - Polymorphic fields stay raw until normalized
// =============================================================================

type rawTransaction struct {
	ID           string          `json:"id"`
	BranchID     string          `json:"branchId"`
	Seller       json.RawMessage `json:"seller,omitempty"`
	SoldBy       json.RawMessage `json:"soldBy,omitempty"`
	PaymentType  string          `json:"paymentType"`
	Status       string          `json:"status,omitempty"`
	Principal    json.RawMessage `json:"principal,omitempty"`
	Total        json.RawMessage `json:"total,omitempty"`
	PaidAmount   json.RawMessage `json:"paidAmount,omitempty"`
	Payment      json.RawMessage `json:"payment,omitempty"`
	UpfrontPaid  json.RawMessage `json:"upfrontPaid,omitempty"`
	UpfrontVia   string          `json:"upfrontChannel,omitempty"`
	PaymentVia   string          `json:"paymentChannel,omitempty"`
	TermUnit     string          `json:"termUnit,omitempty"`
	Months       *int            `json:"months,omitempty"`
	Days         *int            `json:"days,omitempty"`
	TermLength   *int            `json:"termLength,omitempty"`
	InterestRate json.RawMessage `json:"interestRate,omitempty"`
	CreatedAt    json.RawMessage `json:"createdAt"`
	Items        []rawItem       `json:"items,omitempty"`
	Schedules    []rawObligation `json:"paymentSchedules,omitempty"`
}

type rawItem struct {
	ProductRef string          `json:"productRef"`
	Product    string          `json:"product,omitempty"`
	UnitPrice  json.RawMessage `json:"unitPrice"`
	Price      json.RawMessage `json:"price,omitempty"`
	Quantity   int             `json:"quantity"`
}

type rawObligation struct {
	Sequence   int             `json:"sequence,omitempty"`
	Month      int             `json:"month,omitempty"`
	Amount     json.RawMessage `json:"amount,omitempty"`
	AmountDue  json.RawMessage `json:"amountDue,omitempty"`
	Paid       json.RawMessage `json:"paid,omitempty"`
	AmountPaid json.RawMessage `json:"amountPaid,omitempty"`
	PaidAmount json.RawMessage `json:"paidAmount,omitempty"`
	DueDate    json.RawMessage `json:"dueDate,omitempty"`
	PaidAt     json.RawMessage `json:"paidAt,omitempty"`
	PaidBy     json.RawMessage `json:"paidBy,omitempty"`
	Channel    string          `json:"channel,omitempty"`
	Rating     string          `json:"rating,omitempty"`
}

type rawDefective struct {
	ID            string          `json:"id"`
	TransactionID string          `json:"transactionId,omitempty"`
	ActionType    string          `json:"actionType"`
	CashAmount    json.RawMessage `json:"cashAmount"`
	CreatedAt     json.RawMessage `json:"createdAt"`
	Actor         json.RawMessage `json:"actor,omitempty"`
	ActorID       json.RawMessage `json:"actorId,omitempty"`
	BranchID      string          `json:"branchId"`
}

// =============================================================================
// TRANSACTION PARSING
// =============================================================================

// ParseTransaction normalizes one raw sale payload.
func (f *Factory) ParseTransaction(raw []byte) (ledger.Transaction, error) {
	var rt rawTransaction
	if err := json.Unmarshal(raw, &rt); err != nil {
		return ledger.Transaction{}, fmt.Errorf("decode transaction: %w", err)
	}
	return f.normalizeTransaction(rt)
}

// ParseTransactions normalizes a list payload, skipping rows that fail to
// normalize. Skipped rows are reported alongside the good ones so the
// caller can log them; a report missing one row beats no report.
func (f *Factory) ParseTransactions(raw []byte) ([]ledger.Transaction, []error) {
	var rts []rawTransaction
	if err := json.Unmarshal(raw, &rts); err != nil {
		return nil, []error{fmt.Errorf("decode transaction list: %w", err)}
	}

	var (
		out  []ledger.Transaction
		errs []error
	)
	for _, rt := range rts {
		t, err := f.normalizeTransaction(rt)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, t)
	}
	return out, errs
}

func (f *Factory) normalizeTransaction(rt rawTransaction) (ledger.Transaction, error) {
	if rt.ID == "" {
		return ledger.Transaction{}, &ledger.MalformedRecordError{Kind: "transaction", Field: "id"}
	}

	pt, err := paymentType(rt.PaymentType)
	if err != nil {
		return ledger.Transaction{}, fmt.Errorf("transaction %s: %w", rt.ID, err)
	}

	seller, _ := actorRef(rt.Seller)
	if seller == "" {
		seller, _ = actorRef(rt.SoldBy)
	}

	createdAt, err := timestamp(rt.CreatedAt)
	if err != nil {
		return ledger.Transaction{}, &ledger.MalformedRecordError{Kind: "transaction", Ref: rt.ID, Field: "createdAt"}
	}

	t := ledger.Transaction{
		ID:          ledger.TransactionID(rt.ID),
		BranchID:    ledger.BranchID(rt.BranchID),
		SellerID:    seller,
		PaymentType: pt,
		Status:      ledger.StatusActive,
		CreatedAt:   createdAt,
	}
	if strings.EqualFold(rt.Status, "returned") {
		t.Status = ledger.StatusReturned
	}

	t.Principal = money(rt.Principal)
	if t.Principal.IsZero() {
		t.Principal = money(rt.Total)
	}

	for _, ri := range rt.Items {
		price := money(ri.UnitPrice)
		if price.IsZero() {
			price = money(ri.Price)
		}
		ref := ri.ProductRef
		if ref == "" {
			ref = ri.Product
		}
		t.Items = append(t.Items, ledger.LineItem{
			ProductRef: ref,
			UnitPrice:  price,
			Quantity:   ri.Quantity,
		})
	}
	if t.Principal.IsZero() {
		t.Principal = t.ItemsTotal()
	}

	if pt.Deferred() {
		// The three historical spellings of the initial payment.
		t.UpfrontPaid = firstMoney(rt.UpfrontPaid, rt.PaidAmount, rt.Payment)
		t.UpfrontChannel = channel(firstNonEmpty(rt.UpfrontVia, rt.PaymentVia))
		t.InterestRatePercent = money(rt.InterestRate)

		t.TermUnit, t.TermLength = term(rt)

		for _, ro := range rt.Schedules {
			ob, err := f.normalizeObligation(t.ID, ro)
			if err != nil {
				return ledger.Transaction{}, err
			}
			t.Schedule = append(t.Schedule, ob)
		}
	}

	return t, nil
}

func (f *Factory) normalizeObligation(ref ledger.TransactionID, ro rawObligation) (ledger.Obligation, error) {
	seq := ro.Sequence
	if seq == 0 {
		seq = ro.Month
	}
	if seq <= 0 {
		return ledger.Obligation{}, &ledger.MalformedRecordError{Kind: "transaction", Ref: string(ref), Field: "schedule sequence"}
	}

	ob := ledger.Obligation{
		TransactionRef: ref,
		Sequence:       seq,
		AmountDue:      firstMoney(ro.AmountDue, ro.Amount),
		AmountPaid:     firstMoney(ro.AmountPaid, ro.PaidAmount, ro.Paid),
	}
	if ro.Channel != "" {
		ob.PaidChannel = channel(ro.Channel)
	}
	if r := rating(ro.Rating); r != "" {
		ob.Rating = r
	}
	if by, ok := actorRef(ro.PaidBy); ok {
		ob.PaidBy = by
	}
	if due, err := timestamp(ro.DueDate); err == nil && !due.IsZero() {
		ob.DueDate = due
	}
	if at, err := timestamp(ro.PaidAt); err == nil && !at.IsZero() {
		ob.PaidAt = &at
	}
	return ob, nil
}

// ParseDefectiveLog normalizes one defective/adjustment row.
func (f *Factory) ParseDefectiveLog(raw []byte) (ledger.DefectiveLogEntry, error) {
	var rd rawDefective
	if err := json.Unmarshal(raw, &rd); err != nil {
		return ledger.DefectiveLogEntry{}, fmt.Errorf("decode defective log: %w", err)
	}

	actor, _ := actorRef(rd.Actor)
	if actor == "" {
		actor, _ = actorRef(rd.ActorID)
	}
	if actor == "" {
		return ledger.DefectiveLogEntry{}, &ledger.MalformedRecordError{Kind: "defective_log", Ref: rd.ID, Field: "actor"}
	}

	createdAt, err := timestamp(rd.CreatedAt)
	if err != nil {
		return ledger.DefectiveLogEntry{}, &ledger.MalformedRecordError{Kind: "defective_log", Ref: rd.ID, Field: "createdAt"}
	}

	action := ledger.ActionAdjustment
	if strings.EqualFold(rd.ActionType, string(ledger.ActionReturn)) {
		action = ledger.ActionReturn
	}

	return ledger.DefectiveLogEntry{
		ID:             rd.ID,
		TransactionRef: ledger.TransactionID(rd.TransactionID),
		ActionType:     action,
		CashAmount:     money(rd.CashAmount),
		CreatedAt:      createdAt,
		ActorID:        actor,
		BranchID:       ledger.BranchID(rd.BranchID),
	}, nil
}

// =============================================================================
// FIELD NORMALIZERS
// =============================================================================

// money decodes a number-or-string amount. Unparseable input degrades to
// zero rather than failing the whole record.
func money(raw json.RawMessage) decimal.Decimal {
	if len(raw) == 0 || string(raw) == "null" {
		return decimal.Zero
	}

	var num json.Number
	if err := json.Unmarshal(raw, &num); err == nil {
		if d, derr := decimal.NewFromString(num.String()); derr == nil {
			return d
		}
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		s = strings.ReplaceAll(strings.TrimSpace(s), " ", "")
		if d, derr := decimal.NewFromString(s); derr == nil {
			return d
		}
	}
	return decimal.Zero
}

func firstMoney(raws ...json.RawMessage) decimal.Decimal {
	for _, raw := range raws {
		if d := money(raw); !d.IsZero() {
			return d
		}
	}
	return decimal.Zero
}

// actorRef decodes an actor reference that may be a bare id string or an
// object with "id" or "_id".
func actorRef(raw json.RawMessage) (ledger.ActorID, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", false
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil && s != "" {
		return ledger.ActorID(s), true
	}

	var obj struct {
		ID    string `json:"id"`
		AltID string `json:"_id"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		if obj.ID != "" {
			return ledger.ActorID(obj.ID), true
		}
		if obj.AltID != "" {
			return ledger.ActorID(obj.AltID), true
		}
	}
	return "", false
}

// timestamp decodes RFC3339 strings or unix seconds.
func timestamp(raw json.RawMessage) (time.Time, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return time.Time{}, fmt.Errorf("missing timestamp")
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if t, terr := time.Parse(time.RFC3339, s); terr == nil {
			return t, nil
		}
		if t, terr := time.Parse("2006-01-02", s); terr == nil {
			return t, nil
		}
		return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
	}

	var unix int64
	if err := json.Unmarshal(raw, &unix); err == nil {
		return time.Unix(unix, 0).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %s", string(raw))
}

func paymentType(s string) (ledger.PaymentType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "cash", "naqd":
		return ledger.PayCash, nil
	case "card", "karta":
		return ledger.PayCard, nil
	case "credit", "kredit":
		return ledger.PayCredit, nil
	case "installment", "bo'lib", "bolib":
		return ledger.PayInstallment, nil
	default:
		return "", fmt.Errorf("unknown payment type %q", s)
	}
}

func channel(s string) ledger.Channel {
	if strings.EqualFold(strings.TrimSpace(s), "card") {
		return ledger.ChannelCard
	}
	return ledger.ChannelCash
}

func rating(s string) ledger.Rating {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "good":
		return ledger.RatingGood
	case "bad":
		return ledger.RatingBad
	default:
		return ""
	}
}

func term(rt rawTransaction) (ledger.TermUnit, int) {
	if rt.Days != nil && *rt.Days > 0 {
		return ledger.TermDays, *rt.Days
	}
	if rt.Months != nil && *rt.Months > 0 {
		return ledger.TermMonths, *rt.Months
	}

	length := 0
	if rt.TermLength != nil {
		length = *rt.TermLength
	}
	if strings.EqualFold(rt.TermUnit, string(ledger.TermDays)) {
		return ledger.TermDays, length
	}
	return ledger.TermMonths, length
}

func firstNonEmpty(ss ...string) string {
	for _, s := range ss {
		if s != "" {
			return s
		}
	}
	return ""
}
