package stripe

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/prometheus/client_golang/prometheus/testutil"
	stripeapi "github.com/stripe/stripe-go/v81"
	stripewebhook "github.com/stripe/stripe-go/v81/webhook"

	"github.com/investplan/payments-backend/metrics"
)

func signedEvent(c *qt.C, id string, eventType stripeapi.EventType, object map[string]any) ([]byte, string) {
	payload, err := json.Marshal(map[string]any{
		"id":          id,
		"object":      "event",
		"type":        eventType,
		"api_version": stripeapi.APIVersion,
		"created":     time.Now().Unix(),
		"data":        map[string]any{"object": object},
	})
	c.Assert(err, qt.IsNil)
	signed := stripewebhook.GenerateTestSignedPayload(&stripewebhook.UnsignedPayload{
		Payload:   payload,
		Secret:    testWebhookSecret,
		Timestamp: time.Now(),
		Scheme:    "v1",
	})
	return signed.Payload, signed.Header
}

func TestHandleWebhookEvent(t *testing.T) {
	c := qt.New(t)
	svc, _, m := newTestService(c)

	payload, header := signedEvent(c, "evt_1", stripeapi.EventTypePaymentIntentSucceeded, map[string]any{
		"id": "pi_1", "object": "payment_intent", "amount": 50000, "currency": "sgd",
		"metadata": map[string]string{MetaFirstInstallment: "true", MetaSubscriptionID: "sub_1"},
	})
	c.Assert(svc.HandleWebhookEvent(payload, header), qt.IsNil)
	c.Assert(svc.processedEvents.EventExists("evt_1"), qt.IsTrue)

	// a redelivery is acknowledged and counted as a duplicate
	c.Assert(svc.HandleWebhookEvent(payload, header), qt.IsNil)

	handled := m.WebhookEvents.WithLabelValues(string(stripeapi.EventTypePaymentIntentSucceeded), metrics.WebhookHandled)
	duplicate := m.WebhookEvents.WithLabelValues(string(stripeapi.EventTypePaymentIntentSucceeded), metrics.WebhookDuplicate)
	c.Assert(testutil.ToFloat64(handled), qt.Equals, float64(1))
	c.Assert(testutil.ToFloat64(duplicate), qt.Equals, float64(1))
}

func TestHandleWebhookEventTypes(t *testing.T) {
	c := qt.New(t)
	svc, _, m := newTestService(c)

	tests := []struct {
		id      string
		typ     stripeapi.EventType
		object  map[string]any
		outcome string
	}{
		{
			id:      "evt_invoice",
			typ:     stripeapi.EventTypeInvoicePaid,
			object:  map[string]any{"id": "in_1", "object": "invoice", "subscription": "sub_1", "amount_paid": 100},
			outcome: metrics.WebhookHandled,
		},
		{
			id:      "evt_schedule",
			typ:     stripeapi.EventTypeSubscriptionScheduleCompleted,
			object:  map[string]any{"id": "sub_sched_1", "object": "subscription_schedule"},
			outcome: metrics.WebhookHandled,
		},
		{
			id:      "evt_other",
			typ:     stripeapi.EventTypeCustomerCreated,
			object:  map[string]any{"id": "cus_1", "object": "customer"},
			outcome: metrics.WebhookIgnored,
		},
	}
	for _, tc := range tests {
		c.Run(string(tc.typ), func(c *qt.C) {
			payload, header := signedEvent(c, tc.id, tc.typ, tc.object)
			c.Assert(svc.HandleWebhookEvent(payload, header), qt.IsNil)
			counter := m.WebhookEvents.WithLabelValues(string(tc.typ), tc.outcome)
			c.Assert(testutil.ToFloat64(counter), qt.Equals, float64(1))
		})
	}
}

func TestHandleWebhookEventInvalidSignature(t *testing.T) {
	c := qt.New(t)
	svc, _, _ := newTestService(c)

	payload, _ := signedEvent(c, "evt_bad", stripeapi.EventTypeInvoicePaid, map[string]any{"id": "in_1"})
	err := svc.HandleWebhookEvent(payload, "t=1,v1=deadbeef")
	c.Assert(errors.Is(err, ErrWebhookValidation), qt.IsTrue)
	c.Assert(svc.processedEvents.EventExists("evt_bad"), qt.IsFalse)

	c.Assert(IsSignatureError(err), qt.IsTrue)

	err = svc.HandleWebhookEvent([]byte("not json"), "")
	c.Assert(errors.Is(err, ErrWebhookValidation), qt.IsTrue)
	c.Assert(IsSignatureError(err), qt.IsTrue)

	// a correctly signed body that is not an event is a payload error
	signed := stripewebhook.GenerateTestSignedPayload(&stripewebhook.UnsignedPayload{
		Payload:   []byte("not json"),
		Secret:    testWebhookSecret,
		Timestamp: time.Now(),
		Scheme:    "v1",
	})
	err = svc.HandleWebhookEvent(signed.Payload, signed.Header)
	c.Assert(errors.Is(err, ErrWebhookValidation), qt.IsTrue)
	c.Assert(IsSignatureError(err), qt.IsFalse)
}

func TestHandleWebhookEventConcurrentDeliveries(t *testing.T) {
	c := qt.New(t)
	svc, _, m := newTestService(c)

	payload, header := signedEvent(c, "evt_race", stripeapi.EventTypeInvoicePaid, map[string]any{
		"id": "in_9", "object": "invoice", "amount_paid": 10,
	})
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := svc.HandleWebhookEvent(payload, header); err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	typ := string(stripeapi.EventTypeInvoicePaid)
	c.Assert(testutil.ToFloat64(m.WebhookEvents.WithLabelValues(typ, metrics.WebhookHandled)), qt.Equals, float64(1))
	c.Assert(testutil.ToFloat64(m.WebhookEvents.WithLabelValues(typ, metrics.WebhookDuplicate)), qt.Equals, float64(7))
}
