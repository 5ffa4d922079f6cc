package stripe

import (
	"context"
	"fmt"
	"testing"

	stripeapi "github.com/stripe/stripe-go/v82"

	"github.com/hatchpay/billing-backend/db"

	qt "github.com/frankban/quicktest"
)

// addInvoiceEvent stores an invoice event in the stub provider and returns
// the payload a webhook delivery for it would carry.
func addInvoiceEvent(api *stubAPI, eventID string, eventType stripeapi.EventType, customerID, subscriptionID string) []byte {
	raw := fmt.Sprintf(`{"id":"in_%s","customer":%q,"parent":{"type":"subscription_details","subscription_details":{"subscription":%q}}}`,
		eventID, customerID, subscriptionID)
	api.events[eventID] = &stripeapi.Event{
		ID:   eventID,
		Type: eventType,
		Data: &stripeapi.EventData{Raw: []byte(raw)},
	}
	return []byte(fmt.Sprintf(`{"id":%q,"type":%q,"data":{"object":%s}}`, eventID, eventType, raw))
}

func TestHandleWebhookEvent(t *testing.T) {
	defer func() {
		if err := testDB.Reset(); err != nil {
			t.Error(err)
		}
	}()
	c := qt.New(t)
	ctx := context.Background()

	api := newStubAPI()
	service := newTestService(api)
	account := createTestAccount(c)
	record, err := service.Subscribe(account, "pro", "tok_visa")
	c.Assert(err, qt.IsNil)
	c.Assert(testDB.SetSubscriptionStatus(record.ID, db.StatusPastDue), qt.IsNil)

	payload := addInvoiceEvent(api, "evt_1", stripeapi.EventTypeInvoicePaymentSucceeded,
		account.CustomerID, record.StripeID)

	outcome, err := service.HandleWebhookEvent(ctx, payload, stripeapi.EventTypeInvoicePaymentSucceeded)
	c.Assert(err, qt.IsNil)
	c.Assert(outcome, qt.Equals, OutcomeHandled)

	stored, err := testDB.Subscription(record.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(stored.Status, qt.Equals, service.config.ActiveStatus)

	// a duplicate delivery of the same event is dropped
	outcome, err = service.HandleWebhookEvent(ctx, payload, stripeapi.EventTypeInvoicePaymentSucceeded)
	c.Assert(err, qt.IsNil)
	c.Assert(outcome, qt.Equals, OutcomeIgnored)
}

func TestHandleWebhookEventTypeMismatch(t *testing.T) {
	defer func() {
		if err := testDB.Reset(); err != nil {
			t.Error(err)
		}
	}()
	c := qt.New(t)
	ctx := context.Background()

	api := newStubAPI()
	service := newTestService(api)
	account := createTestAccount(c)
	record, err := service.Subscribe(account, "pro", "tok_visa")
	c.Assert(err, qt.IsNil)

	// a failure event delivered to the success endpoint is dropped
	payload := addInvoiceEvent(api, "evt_2", stripeapi.EventTypeInvoicePaymentFailed,
		account.CustomerID, record.StripeID)
	outcome, err := service.HandleWebhookEvent(ctx, payload, stripeapi.EventTypeInvoicePaymentSucceeded)
	c.Assert(err, qt.IsNil)
	c.Assert(outcome, qt.Equals, OutcomeIgnored)

	stored, err := testDB.Subscription(record.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(stored.PaymentAttempts, qt.Equals, 0)
}

func TestHandleWebhookEventUnknownUpstream(t *testing.T) {
	defer func() {
		if err := testDB.Reset(); err != nil {
			t.Error(err)
		}
	}()
	c := qt.New(t)
	ctx := context.Background()

	api := newStubAPI()
	service := newTestService(api)

	// the envelope claims an event the provider does not know about
	payload := []byte(`{"id":"evt_forged","type":"invoice.payment_succeeded","data":{"object":{}}}`)
	outcome, err := service.HandleWebhookEvent(ctx, payload, stripeapi.EventTypeInvoicePaymentSucceeded)
	c.Assert(err, qt.IsNil)
	c.Assert(outcome, qt.Equals, OutcomeIgnored)
}

func TestHandleWebhookEventBadPayload(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()

	service := newTestService(newStubAPI())

	_, err := service.HandleWebhookEvent(ctx, []byte("not json"), stripeapi.EventTypeInvoicePaymentSucceeded)
	c.Assert(err, qt.Not(qt.IsNil))

	_, err = service.HandleWebhookEvent(ctx, []byte(`{"type":"invoice.payment_succeeded"}`), stripeapi.EventTypeInvoicePaymentSucceeded)
	c.Assert(err, qt.Not(qt.IsNil))
}

func TestHandleWebhookEventUnknownSubscriber(t *testing.T) {
	defer func() {
		if err := testDB.Reset(); err != nil {
			t.Error(err)
		}
	}()
	c := qt.New(t)
	ctx := context.Background()

	api := newStubAPI()
	service := newTestService(api)

	payload := addInvoiceEvent(api, "evt_3", stripeapi.EventTypeInvoicePaymentFailed,
		"cus_nobody", "sub_nobody")
	outcome, err := service.HandleWebhookEvent(ctx, payload, stripeapi.EventTypeInvoicePaymentFailed)
	c.Assert(err, qt.IsNil)
	c.Assert(outcome, qt.Equals, OutcomeUnknownSubscriber)
}

func TestHandleWebhookEventClaimReleasedWhenNotHandled(t *testing.T) {
	defer func() {
		if err := testDB.Reset(); err != nil {
			t.Error(err)
		}
	}()
	c := qt.New(t)
	ctx := context.Background()

	api := newStubAPI()
	service := newTestService(api)

	// the first delivery arrives before the subscriber is known locally
	payload := addInvoiceEvent(api, "evt_early", stripeapi.EventTypeInvoicePaymentSucceeded,
		"cus_early", "sub_early")
	outcome, err := service.HandleWebhookEvent(ctx, payload, stripeapi.EventTypeInvoicePaymentSucceeded)
	c.Assert(err, qt.IsNil)
	c.Assert(outcome, qt.Equals, OutcomeUnknownSubscriber)
	c.Assert(service.eventStore.EventExists("evt_early"), qt.IsFalse)

	// once the account and record exist, a redelivery of the same event
	// must still be able to drive the transition
	account := createTestAccount(c)
	c.Assert(testDB.SetAccountCustomerID(account.ID, "cus_early", false), qt.IsNil)
	record := &db.Subscription{
		AccountID: account.ID,
		StripeID:  "sub_early",
		PlanID:    "pro",
		Status:    db.StatusPastDue,
	}
	recordID, err := testDB.SetSubscription(record)
	c.Assert(err, qt.IsNil)

	outcome, err = service.HandleWebhookEvent(ctx, payload, stripeapi.EventTypeInvoicePaymentSucceeded)
	c.Assert(err, qt.IsNil)
	c.Assert(outcome, qt.Equals, OutcomeHandled)
	c.Assert(service.eventStore.EventExists("evt_early"), qt.IsTrue)

	stored, err := testDB.Subscription(recordID)
	c.Assert(err, qt.IsNil)
	c.Assert(stored.Status, qt.Equals, service.config.ActiveStatus)
}
