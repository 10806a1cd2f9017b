package stripe

import (
	"encoding/json"
	"fmt"

	stripeapi "github.com/stripe/stripe-go/v81"
	"go.vocdoni.io/dvote/log"

	"github.com/investplan/payments-backend/metrics"
)

// HandleWebhookEvent verifies and processes a webhook event with idempotency.
// Events already processed are acknowledged without being handled again.
func (s *Service) HandleWebhookEvent(payload []byte, signatureHeader string) error {
	event, err := s.client.ValidateWebhookEvent(payload, signatureHeader)
	if err != nil {
		s.metrics.ObserveWebhookEvent("unknown", metrics.WebhookFailed)
		return err
	}

	unlock := s.lockManager.Lock(event.ID)
	defer unlock()

	if s.processedEvents.EventExists(event.ID) {
		log.Debugf("stripe webhook: event %s already processed, skipping", event.ID)
		s.metrics.ObserveWebhookEvent(string(event.Type), metrics.WebhookDuplicate)
		return nil
	}

	handled, err := s.HandleEvent(event)
	if err != nil {
		s.metrics.ObserveWebhookEvent(string(event.Type), metrics.WebhookFailed)
		return err
	}
	s.processedEvents.MarkProcessed(event.ID)
	if handled {
		s.metrics.ObserveWebhookEvent(string(event.Type), metrics.WebhookHandled)
	} else {
		s.metrics.ObserveWebhookEvent(string(event.Type), metrics.WebhookIgnored)
	}
	return nil
}

// HandleEvent dispatches a verified event by type. It reports whether the
// type is one the service acts on.
func (s *Service) HandleEvent(event *stripeapi.Event) (bool, error) {
	if event.Data == nil {
		return false, NewStripeError(ErrInvalidEvent.Code, "event "+event.ID+" has no data", nil)
	}
	switch event.Type {
	case stripeapi.EventTypePaymentIntentSucceeded:
		return true, s.handlePaymentSucceeded(event)
	case stripeapi.EventTypeInvoicePaid:
		return true, s.handleInvoicePaid(event)
	case stripeapi.EventTypeSubscriptionScheduleCompleted:
		return true, s.handleScheduleCompleted(event)
	default:
		log.Debugf("stripe webhook: received unhandled event type %s (id %s)", event.Type, event.ID)
		return false, nil
	}
}

// handlePaymentSucceeded records the first installment of a plan.
func (*Service) handlePaymentSucceeded(event *stripeapi.Event) error {
	var pi stripeapi.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		return NewStripeError(ErrInvalidEvent.Code, fmt.Sprintf("cannot parse payment intent of event %s", event.ID), err)
	}
	if pi.Metadata[MetaFirstInstallment] == "true" {
		log.Infow("first installment payment received",
			"payment", pi.ID,
			"subscription", pi.Metadata[MetaSubscriptionID],
			"amount", pi.Amount,
			"currency", pi.Currency)
		return nil
	}
	log.Debugw("payment succeeded", "payment", pi.ID, "amount", pi.Amount)
	return nil
}

// handleInvoicePaid records a paid monthly installment.
func (*Service) handleInvoicePaid(event *stripeapi.Event) error {
	var inv stripeapi.Invoice
	if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
		return NewStripeError(ErrInvalidEvent.Code, fmt.Sprintf("cannot parse invoice of event %s", event.ID), err)
	}
	subscriptionID := ""
	if inv.Subscription != nil {
		subscriptionID = inv.Subscription.ID
	}
	log.Infow("invoice paid",
		"invoice", inv.ID,
		"subscription", subscriptionID,
		"amountPaid", inv.AmountPaid)
	return nil
}

// handleScheduleCompleted marks the end of an installment schedule.
func (*Service) handleScheduleCompleted(event *stripeapi.Event) error {
	var schedule stripeapi.SubscriptionSchedule
	if err := json.Unmarshal(event.Data.Raw, &schedule); err != nil {
		return NewStripeError(ErrInvalidEvent.Code,
			fmt.Sprintf("cannot parse subscription schedule of event %s", event.ID), err)
	}
	log.Infow("subscription schedule completed", "schedule", schedule.ID)
	return nil
}
