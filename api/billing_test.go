package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	qt "github.com/frankban/quicktest"
	stripeapi "github.com/stripe/stripe-go/v82"

	"github.com/hatchpay/billing-backend/db"
)

func TestBillingConfigHandler(t *testing.T) {
	c := qt.New(t)

	// public endpoint, no token needed
	resp, code := testRequest(t, http.MethodGet, "", nil, billingConfigEndpoint)
	c.Assert(code, qt.Equals, http.StatusOK)
	var conf BillingConfig
	c.Assert(json.Unmarshal(resp, &conf), qt.IsNil)
	c.Assert(conf.PublishKey, qt.Equals, testPublishKey)
	// the secret key never shows up in the public configuration
	c.Assert(string(resp), qt.Not(qt.Contains), testSecretKey)
}

func TestCardHandlers(t *testing.T) {
	c := qt.New(t)

	// both card endpoints require authentication
	_, code := testRequest(t, http.MethodGet, "", nil, billingCardEndpoint)
	c.Assert(code, qt.Equals, http.StatusUnauthorized)
	_, code = testRequest(t, http.MethodPost, "", &CardRequest{Token: "tok_visa"}, billingCardEndpoint)
	c.Assert(code, qt.Equals, http.StatusUnauthorized)

	token := registerAndLogin(t, testEmail())

	// no payment details yet
	resp, code := testRequest(t, http.MethodGet, token, nil, billingCardEndpoint)
	c.Assert(code, qt.Equals, http.StatusNotFound)
	c.Assert(string(resp), qt.Contains, "40011") // ErrNoPaymentDetails

	// saving a card requires a token
	resp, code = testRequest(t, http.MethodPost, token, &CardRequest{}, billingCardEndpoint)
	c.Assert(code, qt.Equals, http.StatusBadRequest)
	c.Assert(string(resp), qt.Contains, "40006") // ErrMissingToken

	// save payment details
	_, code = testRequest(t, http.MethodPost, token, &CardRequest{Token: "tok_visa"}, billingCardEndpoint)
	c.Assert(code, qt.Equals, http.StatusOK)

	// now the card on file comes back masked
	resp, code = testRequest(t, http.MethodGet, token, nil, billingCardEndpoint)
	c.Assert(code, qt.Equals, http.StatusOK)
	var card CardInfo
	c.Assert(json.Unmarshal(resp, &card), qt.IsNil)
	c.Assert(card.Brand, qt.Equals, "Visa")
	c.Assert(card.Number, qt.Equals, "************4242")
	c.Assert(card.ExpMonth, qt.Equals, int64(12))
}

func TestSubscribeHandler(t *testing.T) {
	c := qt.New(t)

	token := registerAndLogin(t, testEmail())

	// unknown plan
	resp, code := testRequest(t, http.MethodPost, token, &CardRequest{Token: "tok_visa"},
		"/billing/subscribe/enterprise")
	c.Assert(code, qt.Equals, http.StatusNotFound)
	c.Assert(string(resp), qt.Contains, "40009") // ErrPlanNotFound

	// subscribe to a configured plan
	resp, code = testRequest(t, http.MethodPost, token, &CardRequest{Token: "tok_visa"},
		"/billing/subscribe/basic")
	c.Assert(code, qt.Equals, http.StatusOK)
	var subscription db.Subscription
	c.Assert(json.Unmarshal(resp, &subscription), qt.IsNil)
	c.Assert(subscription.PlanID, qt.Equals, "basic")
	c.Assert(subscription.Status, qt.Equals, "active")
	c.Assert(subscription.StripeID, qt.Not(qt.Equals), "")

	// subscribing again to the same plan is a no-op returning the record
	resp, code = testRequest(t, http.MethodPost, token, nil, "/billing/subscribe/basic")
	c.Assert(code, qt.Equals, http.StatusOK)
	var again db.Subscription
	c.Assert(json.Unmarshal(resp, &again), qt.IsNil)
	c.Assert(again.ID, qt.Equals, subscription.ID)
}

func TestSubscriptionsHandlers(t *testing.T) {
	c := qt.New(t)

	token := registerAndLogin(t, testEmail())

	// empty list to start with
	resp, code := testRequest(t, http.MethodGet, token, nil, billingSubscriptionsEndpoint)
	c.Assert(code, qt.Equals, http.StatusOK)
	var list SubscriptionsResponse
	c.Assert(json.Unmarshal(resp, &list), qt.IsNil)
	c.Assert(list.Subscriptions, qt.HasLen, 0)

	_, code = testRequest(t, http.MethodPost, token, &CardRequest{Token: "tok_visa"},
		"/billing/subscribe/pro")
	c.Assert(code, qt.Equals, http.StatusOK)

	resp, code = testRequest(t, http.MethodGet, token, nil, billingSubscriptionsEndpoint)
	c.Assert(code, qt.Equals, http.StatusOK)
	c.Assert(json.Unmarshal(resp, &list), qt.IsNil)
	c.Assert(list.Subscriptions, qt.HasLen, 1)
	subscription := list.Subscriptions[0]

	// a malformed ID is rejected
	resp, code = testRequest(t, http.MethodDelete, token, nil, "/billing/subscriptions/not-a-number")
	c.Assert(code, qt.Equals, http.StatusBadRequest)
	c.Assert(string(resp), qt.Contains, "40005") // ErrMalformedURLParam

	// another account cannot delete the subscription
	otherToken := registerAndLogin(t, testEmail())
	resp, code = testRequest(t, http.MethodDelete, otherToken, nil,
		fmt.Sprintf("/billing/subscriptions/%d", subscription.ID))
	c.Assert(code, qt.Equals, http.StatusNotFound)
	c.Assert(string(resp), qt.Contains, "40008") // ErrSubscriptionNotFound

	// the owner can
	_, code = testRequest(t, http.MethodDelete, token, nil,
		fmt.Sprintf("/billing/subscriptions/%d", subscription.ID))
	c.Assert(code, qt.Equals, http.StatusOK)

	// the record is gone and the provider side subscription is cancelled
	resp, code = testRequest(t, http.MethodGet, token, nil, billingSubscriptionsEndpoint)
	c.Assert(code, qt.Equals, http.StatusOK)
	c.Assert(json.Unmarshal(resp, &list), qt.IsNil)
	c.Assert(list.Subscriptions, qt.HasLen, 0)
	upstream, err := testStub.GetSubscription(subscription.StripeID)
	c.Assert(err, qt.IsNil)
	c.Assert(upstream.Status, qt.Equals, stripeapi.SubscriptionStatusCanceled)
}
