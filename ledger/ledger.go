// Package ledger reconciles the one-off payments and the paid recurring
// invoices of a customer into a single chronological payment history with
// aggregate figures.
package ledger

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultCurrency is reported in the summary of an empty ledger.
const DefaultCurrency = "sgd"

// SourceKind tells where a PaymentRecord comes from.
type SourceKind string

const (
	// KindDirectPayment is a single captured charge.
	KindDirectPayment SourceKind = "direct_payment"
	// KindRecurringInvoice is a payment generated by a subscription billing cycle.
	KindRecurringInvoice SourceKind = "recurring_invoice"
)

// Record descriptions.
const (
	DescFirstInstallment = "First installment payment"
	DescOneTime          = "One-time payment"
	DescSubscription     = "Subscription payment"
	descMonthlyFormat    = "Monthly installment (%s)"
)

// DirectPayment is a one-off charge as reported by the payment processor.
type DirectPayment struct {
	ID        string
	Amount    int64
	Currency  string
	Created   time.Time
	Succeeded bool
	// LinkedSubscriptionID is set when the charge belongs to a subscription.
	LinkedSubscriptionID string
	FirstInstallment     bool
}

// RecurringPayment is a paid invoice as reported by the payment processor.
type RecurringPayment struct {
	InvoiceID string
	// LinkedPaymentID is the id of the charge that settled the invoice, if any.
	LinkedPaymentID string
	AmountPaid      int64
	Currency        string
	Created         time.Time
	PeriodStart     time.Time
	PeriodEnd       time.Time
	Number          string
}

// PaymentRecord is a normalized successful payment.
type PaymentRecord struct {
	ID          string
	InvoiceID   string
	Amount      int64
	Currency    string
	OccurredAt  time.Time
	SourceKind  SourceKind
	Description string
	PeriodStart time.Time
	PeriodEnd   time.Time
}

// Target is the total investment a customer committed to. An unknown target
// and an explicit zero both yield a zero remaining balance, but callers can
// tell them apart through Known.
type Target struct {
	Amount int64
	Known  bool
}

// UnknownTarget returns a target with no amount.
func UnknownTarget() Target { return Target{} }

// TargetOf returns a known target of the given amount.
func TargetOf(amount int64) Target { return Target{Amount: amount, Known: true} }

// Summary aggregates a reconciled ledger.
type Summary struct {
	TotalPaid   int64
	TotalTarget int64
	TargetKnown bool
	Remaining   int64
	Currency    string
	Count       int
	// PaidPercent is TotalPaid over TotalTarget in percent, two decimals.
	PaidPercent decimal.Decimal
}

// Ledger is the outcome of a reconciliation.
type Ledger struct {
	Records []PaymentRecord
	Summary Summary
}

// Reconcile merges direct and recurring payments into a deduplicated ledger
// sorted by date, newest first. Records with the same date keep their input
// order, direct payments ahead of invoices. Reconcile has no side effects and
// returns the same ledger for the same inputs.
func Reconcile(direct []DirectPayment, recurring []RecurringPayment, target Target) (*Ledger, error) {
	if err := validate(direct, recurring, target); err != nil {
		return nil, err
	}

	records := make([]PaymentRecord, 0, len(direct)+len(recurring))
	seen := make(map[string]struct{}, len(direct)+len(recurring))

	for _, p := range direct {
		if !p.Succeeded {
			continue
		}
		seen[p.ID] = struct{}{}
		records = append(records, PaymentRecord{
			ID:          p.ID,
			Amount:      p.Amount,
			Currency:    strings.ToLower(p.Currency),
			OccurredAt:  p.Created,
			SourceKind:  KindDirectPayment,
			Description: directDescription(p),
		})
	}

	for _, inv := range recurring {
		id := inv.LinkedPaymentID
		if id == "" {
			id = inv.InvoiceID
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		records = append(records, PaymentRecord{
			ID:          id,
			InvoiceID:   inv.InvoiceID,
			Amount:      inv.AmountPaid,
			Currency:    strings.ToLower(inv.Currency),
			OccurredAt:  inv.Created,
			SourceKind:  KindRecurringInvoice,
			Description: fmt.Sprintf(descMonthlyFormat, inv.Number),
			PeriodStart: inv.PeriodStart,
			PeriodEnd:   inv.PeriodEnd,
		})
	}

	slices.SortStableFunc(records, func(a, b PaymentRecord) int {
		return b.OccurredAt.Compare(a.OccurredAt)
	})

	summary, err := summarize(records, target)
	if err != nil {
		return nil, err
	}
	return &Ledger{Records: records, Summary: summary}, nil
}

func directDescription(p DirectPayment) string {
	switch {
	case p.FirstInstallment:
		return DescFirstInstallment
	case p.LinkedSubscriptionID == "":
		return DescOneTime
	default:
		return DescSubscription
	}
}

func summarize(records []PaymentRecord, target Target) (Summary, error) {
	s := Summary{
		TotalTarget: target.Amount,
		TargetKnown: target.Known,
		Currency:    DefaultCurrency,
		Count:       len(records),
		PaidPercent: decimal.Zero,
	}
	if len(records) > 0 {
		s.Currency = records[0].Currency
	}
	for _, r := range records {
		if r.Currency != s.Currency {
			return Summary{}, &ConsistencyError{
				Reason: fmt.Sprintf("payment %s is in %q, ledger is in %q", r.ID, r.Currency, s.Currency),
			}
		}
		s.TotalPaid += r.Amount
	}
	if target.Amount > 0 {
		s.Remaining = max(target.Amount-s.TotalPaid, 0)
		s.PaidPercent = decimal.NewFromInt(s.TotalPaid).
			Mul(decimal.NewFromInt(100)).
			Div(decimal.NewFromInt(target.Amount)).
			Round(2)
	}
	return s, nil
}

func validate(direct []DirectPayment, recurring []RecurringPayment, target Target) error {
	if target.Amount < 0 {
		return &ValidationError{Field: "targetTotal", Reason: "must not be negative"}
	}
	ids := make(map[string]struct{}, len(direct))
	for i, p := range direct {
		if p.ID == "" {
			return &ValidationError{Field: fmt.Sprintf("directPayments[%d].id", i), Reason: "is required"}
		}
		if p.Amount < 0 {
			return &ValidationError{Field: fmt.Sprintf("directPayments[%d].amount", i), Reason: "must not be negative"}
		}
		if _, dup := ids[p.ID]; dup {
			return &ValidationError{Field: fmt.Sprintf("directPayments[%d].id", i), Reason: "duplicated id " + p.ID}
		}
		ids[p.ID] = struct{}{}
	}
	for i, inv := range recurring {
		if inv.InvoiceID == "" {
			return &ValidationError{Field: fmt.Sprintf("recurringPayments[%d].invoiceId", i), Reason: "is required"}
		}
		if inv.AmountPaid < 0 {
			return &ValidationError{Field: fmt.Sprintf("recurringPayments[%d].amountPaid", i), Reason: "must not be negative"}
		}
	}
	return nil
}
