package apicommon

//revive:disable:max-public-structs

import (
	"github.com/shopspring/decimal"

	"github.com/investplan/payments-backend/ledger"
	"github.com/investplan/payments-backend/stripe"
)

// CreatePlanRequest is the body of an installment plan creation.
// swagger:model CreatePlanRequest
type CreatePlanRequest struct {
	// Monthly installment in minor units
	Amount int64 `json:"amount" validate:"required,gt=0"`

	// Total investment in minor units
	InvestmentAmount int64 `json:"investmentAmount" validate:"required,gt=0"`

	// ISO 4217 currency code, defaults to sgd
	Currency string `json:"currency" validate:"omitempty,currency"`

	// Name shown on the product
	CustomerName string `json:"customerName"`
}

// CreatePlanResponse carries the identifiers of a new installment plan.
// swagger:model CreatePlanResponse
type CreatePlanResponse struct {
	ProductID string `json:"productId"`
	PriceID   string `json:"priceId"`
}

// CreateSubscriptionRequest subscribes a new customer to a plan price.
// swagger:model CreateSubscriptionRequest
type CreateSubscriptionRequest struct {
	// Monthly price of the plan
	PriceID string `json:"priceId" validate:"required,stripeid=price"`

	// Name of the customer to create
	CustomerName string `json:"customerName"`

	// Payment method type of the subscription, defaults to card
	PaymentMethodType string `json:"paymentMethodType"`

	// Payment method attached to the customer and used for invoices
	PaymentMethodID string `json:"paymentMethodID" validate:"omitempty,stripeid"`
}

// CreateSubscriptionResponse identifies the new subscription and the first
// installment to confirm.
// swagger:model CreateSubscriptionResponse
type CreateSubscriptionResponse struct {
	SubscriptionID string `json:"subscriptionId"`
	ClientSecret   string `json:"clientSecret"`
	CustomerID     string `json:"customerId"`
}

// CreatePaymentIntentRequest is the body of a one-off payment creation.
// swagger:model CreatePaymentIntentRequest
type CreatePaymentIntentRequest struct {
	Amount   int64             `json:"amount" validate:"required,gt=0"`
	Currency string            `json:"currency" validate:"omitempty,currency"`
	Metadata map[string]string `json:"metadata"`
}

// CreatePaymentIntentResponse carries the secret the client confirms the
// payment with.
// swagger:model CreatePaymentIntentResponse
type CreatePaymentIntentResponse struct {
	ClientSecret string `json:"clientSecret"`
}

// PaymentSummary aggregates the payment history of a customer.
// swagger:model PaymentSummary
type PaymentSummary struct {
	TotalPaid              int64           `json:"total_paid"`
	TotalPaidDisplay       string          `json:"total_paid_display"`
	TotalInvestmentAmount  int64           `json:"total_investment_amount"`
	TotalInvestmentKnown   bool            `json:"total_investment_known"`
	TotalInvestmentDisplay string          `json:"total_investment_display"`
	RemainingAmount        int64           `json:"remaining_amount"`
	RemainingAmountDisplay string          `json:"remaining_amount_display"`
	PaidPercentage         decimal.Decimal `json:"paid_percentage"`
	Currency               string          `json:"currency"`
	PaymentCount           int             `json:"payment_count"`
}

// PaymentEntry is a single payment of the history.
// swagger:model PaymentEntry
type PaymentEntry struct {
	PaymentID     string `json:"payment_id"`
	InvoiceID     string `json:"invoice_id,omitempty"`
	Amount        int64  `json:"amount"`
	AmountDisplay string `json:"amount_display"`
	Currency      string `json:"currency"`
	// Unix timestamp in seconds
	Date        int64  `json:"date"`
	PeriodStart *int64 `json:"period_start,omitempty"`
	PeriodEnd   *int64 `json:"period_end,omitempty"`
	// payment_intent or invoice
	Type        string            `json:"type"`
	SourceKind  ledger.SourceKind `json:"source_kind"`
	Description string            `json:"description"`
}

// PaymentHistoryResponse is the reconciled payment history of a customer.
// swagger:model PaymentHistoryResponse
type PaymentHistoryResponse struct {
	CustomerID     string         `json:"customer_id"`
	CustomerName   string         `json:"customer_name"`
	SubscriptionID *string        `json:"subscription_id"`
	Summary        PaymentSummary `json:"summary"`
	Payments       []PaymentEntry `json:"payments"`
}

// NewPaymentHistoryResponse shapes a reconciled history for the wire.
func NewPaymentHistoryResponse(h *stripe.History) *PaymentHistoryResponse {
	s := h.Ledger.Summary
	resp := &PaymentHistoryResponse{
		CustomerID:   h.CustomerID,
		CustomerName: h.CustomerName,
		Summary: PaymentSummary{
			TotalPaid:              s.TotalPaid,
			TotalPaidDisplay:       FormatAmount(s.TotalPaid, s.Currency),
			TotalInvestmentAmount:  s.TotalTarget,
			TotalInvestmentKnown:   s.TargetKnown,
			TotalInvestmentDisplay: FormatAmount(s.TotalTarget, s.Currency),
			RemainingAmount:        s.Remaining,
			RemainingAmountDisplay: FormatAmount(s.Remaining, s.Currency),
			PaidPercentage:         s.PaidPercent,
			Currency:               s.Currency,
			PaymentCount:           s.Count,
		},
		Payments: make([]PaymentEntry, 0, len(h.Ledger.Records)),
	}
	if h.SubscriptionID != "" {
		resp.SubscriptionID = &h.SubscriptionID
	}
	for _, r := range h.Ledger.Records {
		entry := PaymentEntry{
			PaymentID:     r.ID,
			InvoiceID:     r.InvoiceID,
			Amount:        r.Amount,
			AmountDisplay: FormatAmount(r.Amount, r.Currency),
			Currency:      r.Currency,
			Date:          r.OccurredAt.Unix(),
			Type:          PaymentTypeIntent,
			SourceKind:    r.SourceKind,
			Description:   r.Description,
		}
		if r.SourceKind == ledger.KindRecurringInvoice {
			entry.Type = PaymentTypeInvoice
			start, end := r.PeriodStart.Unix(), r.PeriodEnd.Unix()
			entry.PeriodStart = &start
			entry.PeriodEnd = &end
		}
		resp.Payments = append(resp.Payments, entry)
	}
	return resp
}

// CardInfo describes the card a payment was charged to.
// swagger:model CardInfo
type CardInfo struct {
	Brand    string `json:"brand"`
	Last4    string `json:"last4"`
	ExpMonth int64  `json:"exp_month"`
	ExpYear  int64  `json:"exp_year"`
}

// PaymentMethodDetails is the payment method of a receipt.
// swagger:model PaymentMethodDetails
type PaymentMethodDetails struct {
	Type string    `json:"type"`
	Card *CardInfo `json:"card,omitempty"`
}

// PlanDetails are the installment plan figures printed on a receipt.
// swagger:model PlanDetails
type PlanDetails struct {
	TotalInvestment string `json:"total_investment"`
	MonthlyAmount   string `json:"monthly_amount"`
}

// ReceiptResponse is the printable receipt of a single payment.
// swagger:model ReceiptResponse
type ReceiptResponse struct {
	ReceiptID     string `json:"receipt_id"`
	PaymentID     string `json:"payment_id"`
	CustomerName  string `json:"customer_name"`
	CustomerID    string `json:"customer_id"`
	PaymentDate   int64  `json:"payment_date"`
	Amount        int64  `json:"amount"`
	AmountDisplay string `json:"amount_display"`
	Currency      string `json:"currency"`
	Status        string `json:"status"`
	Description   string `json:"description"`

	PaymentMethodDetails *PaymentMethodDetails `json:"payment_method_details"`
	SubscriptionID       string                `json:"subscription_id,omitempty"`
	PlanDetails          *PlanDetails          `json:"plan_details,omitempty"`
}

// NewReceiptResponse shapes a receipt for the wire.
func NewReceiptResponse(r *stripe.Receipt) *ReceiptResponse {
	resp := &ReceiptResponse{
		ReceiptID:      r.ReceiptID,
		PaymentID:      r.PaymentID,
		CustomerName:   r.CustomerName,
		CustomerID:     r.CustomerID,
		PaymentDate:    r.PaymentDate.Unix(),
		Amount:         r.Amount,
		AmountDisplay:  FormatAmount(r.Amount, r.Currency),
		Currency:       r.Currency,
		Status:         r.Status,
		Description:    r.Description,
		SubscriptionID: r.SubscriptionID,
	}
	if r.Card != nil {
		resp.PaymentMethodDetails = &PaymentMethodDetails{Type: r.Card.Type}
		if r.Card.Brand != "" || r.Card.Last4 != "" {
			resp.PaymentMethodDetails.Card = &CardInfo{
				Brand:    r.Card.Brand,
				Last4:    r.Card.Last4,
				ExpMonth: r.Card.ExpMonth,
				ExpYear:  r.Card.ExpYear,
			}
		}
	}
	if r.Plan != nil {
		resp.PlanDetails = &PlanDetails{
			TotalInvestment: r.Plan.TotalInvestment,
			MonthlyAmount:   r.Plan.MonthlyAmount,
		}
	}
	return resp
}
