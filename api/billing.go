package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hatchpay/billing-backend/db"
	"github.com/hatchpay/billing-backend/errors"
	"github.com/hatchpay/billing-backend/internal"
	"github.com/hatchpay/billing-backend/log"
	"github.com/hatchpay/billing-backend/stripe"
)

// billingConfigHandler returns the public billing configuration. The secret
// key never leaves the server, only the publishable one is exposed.
func (a *API) billingConfigHandler(w http.ResponseWriter, _ *http.Request) {
	conf := a.billing.Config()
	httpWriteJSON(w, &BillingConfig{
		PublishKey:  conf.PublishKey(),
		UseCustomJS: conf.UseCustomJS,
	})
}

// cardInfoHandler returns the card on file of the authenticated account.
func (a *API) cardInfoHandler(w http.ResponseWriter, r *http.Request) {
	account, err := a.accountFromRequest(r)
	if err != nil {
		writeAPIError(w, err)
		return
	}
	card, err := a.billing.Card(account)
	if err != nil {
		log.Warnw("could not fetch card details", "error", err, "account", account.ID)
		errors.ErrPaymentProvider.Write(w)
		return
	}
	if card == nil {
		errors.ErrNoPaymentDetails.Write(w)
		return
	}
	httpWriteJSON(w, &CardInfo{
		Brand:    string(card.Brand),
		Number:   internal.MaskCardNumber(card.Last4),
		ExpMonth: card.ExpMonth,
		ExpYear:  card.ExpYear,
		Zip:      card.AddressZip,
	})
}

// saveCardHandler links the account to a provider customer, or replaces the
// payment source of the existing one, using the token from the request body.
func (a *API) saveCardHandler(w http.ResponseWriter, r *http.Request) {
	account, err := a.accountFromRequest(r)
	if err != nil {
		writeAPIError(w, err)
		return
	}
	req := &CardRequest{}
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		errors.ErrMalformedBody.Write(w)
		return
	}
	if req.Token == "" {
		errors.ErrMissingToken.Write(w)
		return
	}
	if _, err := a.billing.SaveCustomer(account, req.Token); err != nil {
		log.Warnw("could not save payment details", "error", err, "account", account.ID)
		errors.ErrPaymentProvider.Write(w)
		return
	}
	httpWriteOK(w)
}

// subscribeHandler sets up a subscription to the plan named in the URL. The
// body may carry a payment token to store before subscribing.
func (a *API) subscribeHandler(w http.ResponseWriter, r *http.Request) {
	account, err := a.accountFromRequest(r)
	if err != nil {
		writeAPIError(w, err)
		return
	}
	planKey := chi.URLParam(r, "plan")
	if planKey == "" {
		errors.ErrMalformedURLParam.Write(w)
		return
	}
	req := &CardRequest{}
	// the body is optional, accounts with a stored card subscribe without it
	if err := json.NewDecoder(r.Body).Decode(req); err != nil && err != io.EOF {
		errors.ErrMalformedBody.Write(w)
		return
	}
	subscription, err := a.billing.Subscribe(account, planKey, req.Token)
	if err != nil {
		if stripe.HasCode(err, stripe.ErrPlanNotFound.Code) {
			errors.ErrPlanNotFound.Write(w)
			return
		}
		if stripe.HasCode(err, stripe.ErrNoPaymentDetails.Code) {
			errors.ErrNoPaymentDetails.Write(w)
			return
		}
		log.Warnw("could not set up subscription", "error", err,
			"account", account.ID, "plan", planKey)
		errors.ErrPaymentProvider.Write(w)
		return
	}
	httpWriteJSON(w, subscription)
}

// subscriptionsHandler lists the subscriptions of the authenticated account,
// newest first.
func (a *API) subscriptionsHandler(w http.ResponseWriter, r *http.Request) {
	account, err := a.accountFromRequest(r)
	if err != nil {
		writeAPIError(w, err)
		return
	}
	subscriptions, err := a.db.AccountSubscriptions(account.ID)
	if err != nil {
		errors.ErrGenericInternalServerError.WithErr(err).Write(w)
		return
	}
	httpWriteJSON(w, &SubscriptionsResponse{Subscriptions: subscriptions})
}

// deleteSubscriptionHandler cancels the subscription upstream and removes
// the local record. Only the owner account can delete a subscription.
func (a *API) deleteSubscriptionHandler(w http.ResponseWriter, r *http.Request) {
	account, err := a.accountFromRequest(r)
	if err != nil {
		writeAPIError(w, err)
		return
	}
	subscriptionID, err := strconv.ParseUint(chi.URLParam(r, "subscriptionID"), 10, 64)
	if err != nil {
		errors.ErrMalformedURLParam.Write(w)
		return
	}
	subscription, err := a.db.Subscription(subscriptionID)
	if err != nil || subscription.AccountID != account.ID {
		// not found and not owned look the same to the caller
		if err != nil && err != db.ErrNotFound {
			errors.ErrGenericInternalServerError.WithErr(err).Write(w)
			return
		}
		errors.ErrSubscriptionNotFound.Write(w)
		return
	}
	if err := a.billing.DeleteSubscription(subscription); err != nil {
		log.Warnw("could not delete subscription", "error", err,
			"account", account.ID, "subscription", subscription.ID)
		errors.ErrPaymentProvider.Write(w)
		return
	}
	httpWriteOK(w)
}
