package api

import (
	stderrors "errors"
	"io"
	"net/http"

	"go.vocdoni.io/dvote/log"

	"github.com/investplan/payments-backend/api/apicommon"
	"github.com/investplan/payments-backend/errors"
	"github.com/investplan/payments-backend/stripe"
)

// webhookHandler godoc
//
//	@Summary		Handle Stripe webhook events
//	@Description	Verify the signature of a Stripe event and process it once. Redeliveries of an event already
//	@Description	processed are acknowledged without being handled again.
//	@Tags			payments
//	@Accept			json
//	@Produce		plain
//	@Param			Stripe-Signature	header		string	true	"Stripe signature header"
//	@Param			body				body		string	true	"Stripe webhook payload"
//	@Success		200					{string}	string	"Success"
//	@Failure		400					{object}	errors.Error	"Invalid payload or signature"
//	@Failure		500					{object}	errors.Error	"Internal server error"
//	@Router			/webhook [post]
func (a *API) webhookHandler(w http.ResponseWriter, r *http.Request) {
	if !a.paymentsAvailable(w) {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, webhookMaxBodyBytes)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		log.Warnw("stripe webhook: cannot read request body", "error", err)
		errors.ErrInvalidWebhookBody.Write(w)
		return
	}

	if err := a.stripe.HandleWebhookEvent(payload, r.Header.Get("Stripe-Signature")); err != nil {
		webhookError(err).Write(w)
		return
	}
	apicommon.HTTPWriteText(w, "Success")
}

// webhookError maps a failed delivery to its response. Only the generic
// message reaches Stripe, the cause is logged.
func webhookError(err error) errors.Error {
	switch {
	case stripe.IsSignatureError(err):
		return errors.ErrInvalidWebhookSig
	case stderrors.Is(err, stripe.ErrWebhookValidation), stderrors.Is(err, stripe.ErrInvalidEvent):
		return errors.ErrInvalidWebhookBody
	default:
		// a 5xx makes Stripe deliver the event again later
		log.Errorw(err, "stripe webhook: cannot handle event")
		return errors.ErrStripeError
	}
}
