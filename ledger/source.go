package ledger

import (
	"context"
	"fmt"
)

// Source supplies the payment data of a customer. Implementations map their
// vendor objects to DirectPayment and RecurringPayment before returning them,
// so nothing vendor-specific reaches Reconcile.
type Source interface {
	// DirectPayments returns every one-off payment of the customer, in the
	// order the vendor reports them.
	DirectPayments(ctx context.Context, customerID string) ([]DirectPayment, error)
	// RecurringPayments returns the paid invoices of the customer, in the
	// order the vendor reports them.
	RecurringPayments(ctx context.Context, customerID string) ([]RecurringPayment, error)
}

// Build fetches the payments of customerID from src and reconciles them
// against target.
func Build(ctx context.Context, src Source, customerID string, target Target) (*Ledger, error) {
	if customerID == "" {
		return nil, &ValidationError{Field: "customerId", Reason: "is required"}
	}
	direct, err := src.DirectPayments(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("cannot list payments of customer %s: %w", customerID, err)
	}
	recurring, err := src.RecurringPayments(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("cannot list invoices of customer %s: %w", customerID, err)
	}
	return Reconcile(direct, recurring, target)
}
