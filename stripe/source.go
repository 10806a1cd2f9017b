package stripe

import (
	"context"
	"strings"
	"time"

	stripeapi "github.com/stripe/stripe-go/v81"

	"github.com/investplan/payments-backend/ledger"
)

// Metadata keys written on the Stripe objects created by this service.
const (
	MetaTotalInvestment  = "total_investment_amount"
	MetaMonthlyAmount    = "monthly_amount"
	MetaCustomerName     = "customer_name"
	MetaProductID        = "product_id"
	MetaSubscriptionID   = "subscription_id"
	MetaFirstInstallment = "is_first_installment"
)

var _ ledger.Source = (*Client)(nil)

// DirectPayments implements ledger.Source.
func (c *Client) DirectPayments(ctx context.Context, customerID string) ([]ledger.DirectPayment, error) {
	intents, err := c.ListPaymentIntents(ctx, customerID)
	if err != nil {
		return nil, err
	}
	payments := make([]ledger.DirectPayment, 0, len(intents))
	for _, pi := range intents {
		payments = append(payments, directPayment(pi))
	}
	return payments, nil
}

// RecurringPayments implements ledger.Source.
func (c *Client) RecurringPayments(ctx context.Context, customerID string) ([]ledger.RecurringPayment, error) {
	invoices, err := c.ListPaidInvoices(ctx, customerID)
	if err != nil {
		return nil, err
	}
	payments := make([]ledger.RecurringPayment, 0, len(invoices))
	for _, inv := range invoices {
		payments = append(payments, recurringPayment(inv))
	}
	return payments, nil
}

func directPayment(pi *stripeapi.PaymentIntent) ledger.DirectPayment {
	return ledger.DirectPayment{
		ID:                   pi.ID,
		Amount:               pi.Amount,
		Currency:             strings.ToLower(string(pi.Currency)),
		Created:              time.Unix(pi.Created, 0).UTC(),
		Succeeded:            pi.Status == stripeapi.PaymentIntentStatusSucceeded,
		LinkedSubscriptionID: pi.Metadata[MetaSubscriptionID],
		FirstInstallment:     pi.Metadata[MetaFirstInstallment] == "true",
	}
}

func recurringPayment(inv *stripeapi.Invoice) ledger.RecurringPayment {
	rp := ledger.RecurringPayment{
		InvoiceID:   inv.ID,
		AmountPaid:  inv.AmountPaid,
		Currency:    strings.ToLower(string(inv.Currency)),
		Created:     time.Unix(inv.Created, 0).UTC(),
		PeriodStart: time.Unix(inv.PeriodStart, 0).UTC(),
		PeriodEnd:   time.Unix(inv.PeriodEnd, 0).UTC(),
		Number:      inv.Number,
	}
	if inv.PaymentIntent != nil {
		rp.LinkedPaymentID = inv.PaymentIntent.ID
	}
	return rp
}
