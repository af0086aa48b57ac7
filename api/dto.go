/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

MONEY FIELDS:
  All monetary amounts cross the wire as strings to avoid float drift in
  clients. decimal.Decimal marshals to a JSON string via .String().

VALIDATION:
  Validation is done in handlers and in the ledger calculators, not in
  DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/transaction.go: Tolerant parsing of upstream POS payloads
*/
package api

import (
	"time"

	"github.com/alibek517/posledger/ledger"
)

// =============================================================================
// TRANSACTION TYPES
// =============================================================================

// TransactionDTO represents one sale in API responses.
type TransactionDTO struct {
	ID             string    `json:"id"`
	BranchID       string    `json:"branch_id"`
	SellerID       string    `json:"seller_id"`
	PaymentType    string    `json:"payment_type"`
	Status         string    `json:"status"`
	Principal      string    `json:"principal"`
	UpfrontPaid    string    `json:"upfront_paid,omitempty"`
	UpfrontChannel string    `json:"upfront_channel,omitempty"`
	TermUnit       string    `json:"term_unit,omitempty"`
	TermLength     int       `json:"term_length,omitempty"`
	InterestRate   string    `json:"interest_rate,omitempty"`
	FinalTotal     string    `json:"final_total"`
	CreatedAt      string    `json:"created_at"`
	Items          []ItemDTO `json:"items,omitempty"`
}

// ItemDTO is one sold line item.
type ItemDTO struct {
	ProductRef string `json:"product_ref"`
	UnitPrice  string `json:"unit_price"`
	Quantity   int    `json:"quantity"`
}

// ObligationDTO represents one installment in a payment schedule.
type ObligationDTO struct {
	Sequence    int    `json:"sequence"`
	AmountDue   string `json:"amount_due"`
	AmountPaid  string `json:"amount_paid"`
	Remaining   string `json:"remaining"`
	DueDate     string `json:"due_date"`
	Satisfied   bool   `json:"satisfied"`
	PaidAt      string `json:"paid_at,omitempty"`
	PaidChannel string `json:"paid_channel,omitempty"`
	PaidBy      string `json:"paid_by,omitempty"`
	Rating      string `json:"rating,omitempty"`
}

// =============================================================================
// PAYMENT TYPES
// =============================================================================

// PaymentRequest is the request to apply a payment to an installment.
type PaymentRequest struct {
	Sequence int    `json:"sequence"`
	Amount   string `json:"amount"`
	Channel  string `json:"channel"`
	ActorID  string `json:"actor_id"`
	BranchID string `json:"branch_id"`
	PaidAt   string `json:"paid_at,omitempty"`
	Rating   string `json:"rating,omitempty"`
}

// PaymentResponse returns the audit record plus updated schedule state.
type PaymentResponse struct {
	Record   RepaymentDTO    `json:"record"`
	Schedule []ObligationDTO `json:"schedule"`
}

// RepaymentDTO represents one payment event on the audit trail.
type RepaymentDTO struct {
	ID             string `json:"id"`
	TransactionRef string `json:"transaction_id"`
	Sequence       int    `json:"sequence"`
	Amount         string `json:"amount"`
	Channel        string `json:"channel"`
	PaidAt         string `json:"paid_at"`
	PaidBy         string `json:"paid_by"`
	BranchID       string `json:"branch_id"`
}

// =============================================================================
// RETURN / DEFECT TYPES
// =============================================================================

// ReturnRequest flips a sale to returned and logs the cash impact.
type ReturnRequest struct {
	ActorID string `json:"actor_id"`
	Reason  string `json:"reason,omitempty"`
}

// DefectLogDTO represents one cash-impacting adjustment row.
type DefectLogDTO struct {
	ID             string `json:"id"`
	TransactionRef string `json:"transaction_id,omitempty"`
	ActionType     string `json:"action_type"`
	CashAmount     string `json:"cash_amount"`
	ActorID        string `json:"actor_id"`
	BranchID       string `json:"branch_id"`
	CreatedAt      string `json:"created_at"`
}

// CreateDefectRequest records a manual cash adjustment.
type CreateDefectRequest struct {
	TransactionRef string `json:"transaction_id,omitempty"`
	ActionType     string `json:"action_type"`
	CashAmount     string `json:"cash_amount"`
	ActorID        string `json:"actor_id"`
	BranchID       string `json:"branch_id"`
}

// =============================================================================
// EMPLOYEE TYPES
// =============================================================================

// EmployeeDTO represents a directory entry.
type EmployeeDTO struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
	BranchID    string `json:"branch_id"`
}

// CreateEmployeeRequest is the request to create or update an employee.
type CreateEmployeeRequest struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
	BranchID    string `json:"branch_id"`
}

// =============================================================================
// RECONCILIATION TYPES
// =============================================================================

// SummaryDTO is one employee's column in a reconciliation report.
type SummaryDTO struct {
	ActorID     string `json:"actor_id"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`

	CashTotal        string `json:"cash_total"`
	CardTotal        string `json:"card_total"`
	CreditTotal      string `json:"credit_total"`
	InstallmentTotal string `json:"installment_total"`

	UpfrontTotal string `json:"upfront_total"`
	UpfrontCash  string `json:"upfront_cash"`
	UpfrontCard  string `json:"upfront_card"`

	RepaymentTotal string `json:"repayment_total"`
	RepaymentCash  string `json:"repayment_cash"`
	RepaymentCard  string `json:"repayment_card"`

	DefectivePlus  string `json:"defective_plus"`
	DefectiveMinus string `json:"defective_minus"`

	HandOverTotal string `json:"hand_over_total"`
}

// ReportDTO is one reconciliation run's output.
type ReportDTO struct {
	BranchID  string       `json:"branch_id"`
	From      string       `json:"from"`
	To        string       `json:"to"`
	Cashiers  []SummaryDTO `json:"cashiers"`
	Warehouse []SummaryDTO `json:"warehouse"`
}

// ReportRunDTO is one scheduler run on the audit trail.
type ReportRunDTO struct {
	ID             string `json:"id"`
	BranchID       string `json:"branch_id"`
	From           string `json:"from"`
	To             string `json:"to"`
	Status         string `json:"status"`
	CashierCount   int    `json:"cashier_count"`
	WarehouseCount int    `json:"warehouse_count"`
	HandOverTotal  string `json:"hand_over_total"`
	Error          string `json:"error,omitempty"`
	CompletedAt    string `json:"completed_at,omitempty"`
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERTERS
// =============================================================================

func toTransactionDTO(t ledger.Transaction) TransactionDTO {
	dto := TransactionDTO{
		ID:          string(t.ID),
		BranchID:    string(t.BranchID),
		SellerID:    string(t.SellerID),
		PaymentType: string(t.PaymentType),
		Status:      string(t.Status),
		Principal:   t.Principal.String(),
		FinalTotal:  t.FinalTotal().String(),
		CreatedAt:   t.CreatedAt.Format(time.RFC3339),
	}
	if t.PaymentType.Deferred() {
		dto.UpfrontPaid = t.UpfrontPaid.String()
		dto.UpfrontChannel = string(t.UpfrontChannel)
		dto.TermUnit = string(t.TermUnit)
		dto.TermLength = t.TermLength
		dto.InterestRate = t.InterestRatePercent.String()
	}
	for _, li := range t.Items {
		dto.Items = append(dto.Items, ItemDTO{
			ProductRef: li.ProductRef,
			UnitPrice:  li.UnitPrice.String(),
			Quantity:   li.Quantity,
		})
	}
	return dto
}

func toObligationDTO(o ledger.Obligation) ObligationDTO {
	dto := ObligationDTO{
		Sequence:    o.Sequence,
		AmountDue:   o.AmountDue.String(),
		AmountPaid:  o.AmountPaid.String(),
		Remaining:   o.Remaining().String(),
		DueDate:     o.DueDate.Format(time.RFC3339),
		Satisfied:   o.Satisfied(),
		PaidChannel: string(o.PaidChannel),
		PaidBy:      string(o.PaidBy),
		Rating:      string(o.Rating),
	}
	if o.PaidAt != nil {
		dto.PaidAt = o.PaidAt.Format(time.RFC3339)
	}
	return dto
}

func toScheduleDTO(schedule []ledger.Obligation) []ObligationDTO {
	dtos := make([]ObligationDTO, 0, len(schedule))
	for _, o := range schedule {
		dtos = append(dtos, toObligationDTO(o))
	}
	return dtos
}

func toRepaymentDTO(r ledger.RepaymentRecord) RepaymentDTO {
	return RepaymentDTO{
		ID:             r.ID,
		TransactionRef: string(r.TransactionRef),
		Sequence:       r.ObligationSequence,
		Amount:         r.Amount.String(),
		Channel:        string(r.Channel),
		PaidAt:         r.PaidAt.Format(time.RFC3339),
		PaidBy:         string(r.PaidBy),
		BranchID:       string(r.BranchID),
	}
}

func toDefectLogDTO(e ledger.DefectiveLogEntry) DefectLogDTO {
	return DefectLogDTO{
		ID:             e.ID,
		TransactionRef: string(e.TransactionRef),
		ActionType:     string(e.ActionType),
		CashAmount:     e.CashAmount.String(),
		ActorID:        string(e.ActorID),
		BranchID:       string(e.BranchID),
		CreatedAt:      e.CreatedAt.Format(time.RFC3339),
	}
}

func toSummaryDTO(s *ledger.EmployeeLedgerSummary) SummaryDTO {
	return SummaryDTO{
		ActorID:          string(s.ActorID),
		DisplayName:      s.DisplayName,
		Role:             string(s.Role),
		CashTotal:        s.CashTotal.String(),
		CardTotal:        s.CardTotal.String(),
		CreditTotal:      s.CreditTotal.String(),
		InstallmentTotal: s.InstallmentTotal.String(),
		UpfrontTotal:     s.UpfrontTotal.String(),
		UpfrontCash:      s.UpfrontCash.String(),
		UpfrontCard:      s.UpfrontCard.String(),
		RepaymentTotal:   s.RepaymentTotal.String(),
		RepaymentCash:    s.RepaymentCash.String(),
		RepaymentCard:    s.RepaymentCard.String(),
		DefectivePlus:    s.DefectivePlus.String(),
		DefectiveMinus:   s.DefectiveMinus.String(),
		HandOverTotal:    s.HandOverTotal().String(),
	}
}
