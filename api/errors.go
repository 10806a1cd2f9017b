package api

import (
	"context"
	stderrors "errors"
	"net/http"

	"go.vocdoni.io/dvote/log"

	"github.com/investplan/payments-backend/errors"
	"github.com/investplan/payments-backend/ledger"
	"github.com/investplan/payments-backend/stripe"
)

// writeServiceError answers a failed payment operation: validation errors
// with 400, unknown objects with 404, vendor rejections with 403 and vendor
// outages that outlived the retries with 503. Records that cannot be
// reconciled and anything else are a 500 whose details are only logged.
func writeServiceError(w http.ResponseWriter, err error) {
	var validationErr *ledger.ValidationError
	var consistencyErr *ledger.ConsistencyError
	var notFoundErr *ledger.NotFoundError
	var stripeErr *stripe.StripeError
	switch {
	case stderrors.As(err, &validationErr):
		errors.ErrInvalidData.With(validationErr.Error()).Write(w)
	case stderrors.As(err, &consistencyErr):
		log.Errorw(err, "cannot reconcile payment records")
		errors.ErrInconsistentPayments.Write(w)
	case stderrors.As(err, &notFoundErr):
		notFound(notFoundErr).Write(w)
	case stderrors.Is(err, context.DeadlineExceeded), stripe.IsTemporaryError(err):
		log.Warnw("payment provider unavailable", "error", err)
		errors.ErrPaymentProviderUnavailable.Write(w)
	case stderrors.As(err, &stripeErr):
		errors.ErrPaymentRejected.With(stripeErr.Message).Write(w)
	default:
		log.Errorw(err, "payment operation failed")
		errors.ErrGenericInternalServerError.Write(w)
	}
}

func notFound(err *ledger.NotFoundError) errors.Error {
	switch err.Kind {
	case "customer":
		return errors.ErrCustomerNotFound.With(err.ID)
	case "payment", "invoice":
		return errors.ErrPaymentNotFound.With(err.ID)
	default:
		return errors.ErrResourceNotFound.With(err.Error())
	}
}

// paymentsAvailable writes an error and returns false when the API runs
// without a payment processor.
func (a *API) paymentsAvailable(w http.ResponseWriter) bool {
	if a.stripe == nil {
		errors.ErrStripeError.With("Stripe service not available").Write(w)
		return false
	}
	return true
}
