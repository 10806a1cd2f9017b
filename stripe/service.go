// Package stripe provides integration with the Stripe payment service:
// installment plans, subscriptions, payment intents, payment history,
// receipts and webhook events.
package stripe

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	stripeapi "github.com/stripe/stripe-go/v81"
	"go.vocdoni.io/dvote/log"

	"github.com/investplan/payments-backend/ledger"
	"github.com/investplan/payments-backend/metrics"
)

const (
	productNamePrefix  = "Investment Installment Plan - "
	receiptPrefix      = "RCPT-"
	receiptStatusPaid  = "Paid"
	receiptDescription = "Investment Installment Payment"
	invoicePrefix      = "in_"
	defaultMethodType  = "card"
)

// Service provides the main business logic for Stripe operations
type Service struct {
	client          *Client
	processedEvents *EventStore
	lockManager     *LockManager
	metrics         *metrics.Metrics
	config          *Config
}

// NewService creates a new Stripe service
func NewService(config *Config, m *metrics.Metrics) (*Service, error) {
	client, err := NewClient(config, m)
	if err != nil {
		return nil, err
	}
	return &Service{
		client:          client,
		processedEvents: NewEventStore(config.ProcessedEvents, config.ProcessedEventsTTL),
		lockManager:     NewLockManager(),
		metrics:         m,
		config:          config,
	}, nil
}

// InstallmentPlanParams describes a new installment plan. Amounts are in
// minor units.
type InstallmentPlanParams struct {
	MonthlyAmount    int64
	InvestmentAmount int64
	Currency         string
	CustomerName     string
}

// InstallmentPlan identifies the product and monthly price of a plan.
type InstallmentPlan struct {
	ProductID string
	PriceID   string
}

// CreateInstallmentPlan creates the product describing an investment and its
// monthly recurring price.
func (s *Service) CreateInstallmentPlan(ctx context.Context, p *InstallmentPlanParams) (*InstallmentPlan, error) {
	if p.MonthlyAmount <= 0 || p.InvestmentAmount <= 0 {
		return nil, &ledger.ValidationError{Field: "amount", Reason: "amount and investment amount are required"}
	}
	currency := s.currency(p.Currency)
	product, err := s.client.CreateProduct(ctx, productNamePrefix+p.CustomerName, map[string]string{
		MetaTotalInvestment: strconv.FormatInt(p.InvestmentAmount, 10),
		MetaMonthlyAmount:   strconv.FormatInt(p.MonthlyAmount, 10),
		MetaCustomerName:    p.CustomerName,
	})
	if err != nil {
		return nil, fmt.Errorf("cannot create product: %w", err)
	}
	price, err := s.client.CreateMonthlyPrice(ctx, product.ID, p.MonthlyAmount, currency)
	if err != nil {
		return nil, fmt.Errorf("cannot create price for product %s: %w", product.ID, err)
	}
	log.Infow("installment plan created", "product", product.ID, "price", price.ID, "currency", currency)
	return &InstallmentPlan{ProductID: product.ID, PriceID: price.ID}, nil
}

// SubscriptionParams describes a subscription to an installment plan.
type SubscriptionParams struct {
	PriceID           string
	CustomerName      string
	PaymentMethodType string
	PaymentMethodID   string
}

// SubscriptionResult carries what the client needs to confirm the first
// installment.
type SubscriptionResult struct {
	SubscriptionID string
	ClientSecret   string
	CustomerID     string
}

// CreateSubscription creates a customer for the plan behind the price,
// subscribes it and opens the payment intent of the first installment.
func (s *Service) CreateSubscription(ctx context.Context, p *SubscriptionParams) (*SubscriptionResult, error) {
	if p.PriceID == "" {
		return nil, &ledger.ValidationError{Field: "priceId", Reason: "is required"}
	}
	methodType := p.PaymentMethodType
	if methodType == "" {
		methodType = defaultMethodType
	}

	price, err := s.client.GetPrice(ctx, p.PriceID)
	if err != nil {
		return nil, fmt.Errorf("cannot get price %s: %w", p.PriceID, err)
	}
	if price.Product == nil || price.Product.ID == "" {
		return nil, &ledger.NotFoundError{Kind: "product of price", ID: p.PriceID}
	}
	product, err := s.client.GetProduct(ctx, price.Product.ID)
	if err != nil {
		return nil, fmt.Errorf("cannot get product %s: %w", price.Product.ID, err)
	}
	total := product.Metadata[MetaTotalInvestment]
	monthly := product.Metadata[MetaMonthlyAmount]
	monthlyAmount, err := parseAmount(monthly)
	if err != nil {
		return nil, &ledger.ValidationError{Field: "product." + MetaMonthlyAmount, Reason: err.Error()}
	}

	customer, err := s.client.CreateCustomer(ctx, p.CustomerName, p.PaymentMethodID, map[string]string{
		MetaTotalInvestment: total,
		MetaMonthlyAmount:   monthly,
	})
	if err != nil {
		return nil, fmt.Errorf("cannot create customer: %w", err)
	}
	if p.PaymentMethodID != "" {
		if err := s.client.SetDefaultPaymentMethod(ctx, customer.ID, p.PaymentMethodID); err != nil {
			return nil, fmt.Errorf("cannot set default payment method of %s: %w", customer.ID, err)
		}
	}

	sub, err := s.client.CreateSubscription(ctx, customer.ID, p.PriceID, methodType, map[string]string{
		MetaProductID:       product.ID,
		MetaTotalInvestment: total,
		MetaMonthlyAmount:   monthly,
	})
	if err != nil {
		return nil, fmt.Errorf("cannot create subscription for %s: %w", customer.ID, err)
	}

	currency := string(price.Currency)
	if currency == "" {
		currency = s.config.DefaultCurrency
	}
	pi, err := s.client.CreatePaymentIntent(ctx, monthlyAmount, currency, customer.ID, map[string]string{
		MetaSubscriptionID:   sub.ID,
		MetaFirstInstallment: "true",
	})
	if err != nil {
		return nil, fmt.Errorf("cannot create first installment of %s: %w", sub.ID, err)
	}
	log.Infow("subscription created",
		"subscription", sub.ID,
		"customer", customer.ID,
		"firstInstallment", pi.ID)
	return &SubscriptionResult{
		SubscriptionID: sub.ID,
		ClientSecret:   pi.ClientSecret,
		CustomerID:     customer.ID,
	}, nil
}

// PaymentIntentParams describes a one-off card payment.
type PaymentIntentParams struct {
	Amount   int64
	Currency string
	Metadata map[string]string
}

// CreatePaymentIntent creates a one-off card payment and returns its client secret.
func (s *Service) CreatePaymentIntent(ctx context.Context, p *PaymentIntentParams) (string, error) {
	if p.Amount <= 0 {
		return "", &ledger.ValidationError{Field: "amount", Reason: "is required"}
	}
	pi, err := s.client.CreatePaymentIntent(ctx, p.Amount, s.currency(p.Currency), "", p.Metadata)
	if err != nil {
		return "", fmt.Errorf("cannot create payment intent: %w", err)
	}
	return pi.ClientSecret, nil
}

// History is the reconciled payment history of a customer.
type History struct {
	CustomerID     string
	CustomerName   string
	SubscriptionID string
	Ledger         *ledger.Ledger
}

// PaymentHistory reconciles every successful payment of a customer. The
// customer is given directly or resolved from subscriptionID. The target is
// the investment total recorded on the subscription, or on the customer when
// the subscription carries none.
func (s *Service) PaymentHistory(ctx context.Context, customerID, subscriptionID string) (*History, error) {
	if customerID == "" && subscriptionID == "" {
		return nil, &ledger.ValidationError{
			Field:  "customer_id",
			Reason: "either customer_id or subscription_id is required",
		}
	}

	target := ledger.UnknownTarget()
	if subscriptionID != "" && customerID == "" {
		sub, err := s.client.GetSubscription(ctx, subscriptionID)
		if err != nil {
			return nil, fmt.Errorf("cannot get subscription %s: %w", subscriptionID, err)
		}
		if sub.Customer == nil || sub.Customer.ID == "" {
			return nil, &ledger.NotFoundError{Kind: "customer of subscription", ID: subscriptionID}
		}
		customerID = sub.Customer.ID
		target = targetFromMetadata(sub.Metadata)
	}

	customer, err := s.client.GetCustomer(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("cannot get customer %s: %w", customerID, err)
	}
	if target.Amount == 0 {
		if t := targetFromMetadata(customer.Metadata); t.Known {
			target = t
		}
	}

	l, err := ledger.Build(ctx, s.client, customerID, target)
	if err != nil {
		return nil, err
	}
	log.Debugw("payment history reconciled",
		"customer", customerID,
		"payments", l.Summary.Count,
		"totalPaid", l.Summary.TotalPaid)
	return &History{
		CustomerID:     customerID,
		CustomerName:   customer.Name,
		SubscriptionID: subscriptionID,
		Ledger:         l,
	}, nil
}

// CardDetails describes the card a payment was charged to.
type CardDetails struct {
	Type     string
	Brand    string
	Last4    string
	ExpMonth int64
	ExpYear  int64
}

// PlanDetails are the installment plan figures of a subscription.
type PlanDetails struct {
	TotalInvestment string
	MonthlyAmount   string
}

// Receipt is a printable summary of a single payment.
type Receipt struct {
	ReceiptID      string
	PaymentID      string
	CustomerID     string
	CustomerName   string
	PaymentDate    time.Time
	Amount         int64
	Currency       string
	Status         string
	Description    string
	Card           *CardDetails
	SubscriptionID string
	Plan           *PlanDetails
}

// Receipt builds the receipt of a payment intent or, for ids with the
// invoice prefix, of an invoice.
func (s *Service) Receipt(ctx context.Context, paymentID string) (*Receipt, error) {
	if paymentID == "" {
		return nil, &ledger.ValidationError{Field: "paymentId", Reason: "is required"}
	}

	r := &Receipt{
		ReceiptID:   receiptID(paymentID),
		PaymentID:   paymentID,
		Status:      receiptStatusPaid,
		Description: receiptDescription,
	}
	var subscriptionID string
	if strings.HasPrefix(paymentID, invoicePrefix) {
		inv, err := s.client.GetInvoice(ctx, paymentID)
		if err != nil {
			return nil, fmt.Errorf("cannot get invoice %s: %w", paymentID, err)
		}
		if inv.Customer != nil {
			r.CustomerID = inv.Customer.ID
		}
		r.PaymentDate = time.Unix(inv.Created, 0).UTC()
		r.Amount = inv.AmountPaid
		r.Currency = string(inv.Currency)
		if inv.PaymentIntent != nil {
			r.Card = cardDetails(inv.PaymentIntent.LatestCharge)
		}
		if inv.Subscription != nil {
			subscriptionID = inv.Subscription.ID
		}
	} else {
		pi, err := s.client.GetPaymentIntent(ctx, paymentID)
		if err != nil {
			return nil, fmt.Errorf("cannot get payment %s: %w", paymentID, err)
		}
		if pi.Customer != nil {
			r.CustomerID = pi.Customer.ID
		}
		r.PaymentDate = time.Unix(pi.Created, 0).UTC()
		r.Amount = pi.Amount
		r.Currency = string(pi.Currency)
		r.Card = cardDetails(pi.LatestCharge)
		subscriptionID = pi.Metadata[MetaSubscriptionID]
	}

	if r.CustomerID != "" {
		customer, err := s.client.GetCustomer(ctx, r.CustomerID)
		if err != nil {
			return nil, fmt.Errorf("cannot get customer %s: %w", r.CustomerID, err)
		}
		r.CustomerName = customer.Name
	}

	if subscriptionID != "" {
		sub, err := s.client.GetSubscription(ctx, subscriptionID)
		switch {
		case err == nil:
			r.SubscriptionID = sub.ID
			r.Plan = &PlanDetails{
				TotalInvestment: sub.Metadata[MetaTotalInvestment],
				MonthlyAmount:   sub.Metadata[MetaMonthlyAmount],
			}
		case isNotFound(err):
			// deleted subscriptions leave the receipt without plan details
			log.Debugw("receipt subscription not found", "payment", paymentID, "subscription", subscriptionID)
		default:
			return nil, fmt.Errorf("cannot get subscription %s: %w", subscriptionID, err)
		}
	}
	return r, nil
}

func (s *Service) currency(requested string) string {
	if requested == "" {
		return s.config.DefaultCurrency
	}
	return strings.ToLower(requested)
}

func receiptID(paymentID string) string {
	if len(paymentID) > 8 {
		paymentID = paymentID[len(paymentID)-8:]
	}
	return receiptPrefix + paymentID
}

func cardDetails(charge *stripeapi.Charge) *CardDetails {
	if charge == nil || charge.PaymentMethodDetails == nil {
		return nil
	}
	d := &CardDetails{Type: string(charge.PaymentMethodDetails.Type)}
	if card := charge.PaymentMethodDetails.Card; card != nil {
		d.Brand = string(card.Brand)
		d.Last4 = card.Last4
		d.ExpMonth = card.ExpMonth
		d.ExpYear = card.ExpYear
	}
	return d
}

// targetFromMetadata reads the investment total of a plan. A missing or
// malformed value leaves the target unknown.
func targetFromMetadata(metadata map[string]string) ledger.Target {
	raw, ok := metadata[MetaTotalInvestment]
	if !ok || raw == "" {
		return ledger.UnknownTarget()
	}
	amount, err := parseAmount(raw)
	if err != nil {
		log.Warnw("ignoring malformed investment total", "value", raw, "error", err)
		return ledger.UnknownTarget()
	}
	return ledger.TargetOf(amount)
}

func parseAmount(s string) (int64, error) {
	amount, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q", s)
	}
	if amount < 0 {
		return 0, fmt.Errorf("negative amount %q", s)
	}
	return amount, nil
}
