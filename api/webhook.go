package api

import (
	"io"
	"net/http"

	stripeapi "github.com/stripe/stripe-go/v82"

	"github.com/hatchpay/billing-backend/errors"
	"github.com/hatchpay/billing-backend/log"
	"github.com/hatchpay/billing-backend/stripe"
)

// webhookSuccessHandler receives invoice payment succeeded events from the
// payment provider.
func (a *API) webhookSuccessHandler(w http.ResponseWriter, r *http.Request) {
	a.handleWebhook(w, r, stripeapi.EventTypeInvoicePaymentSucceeded)
}

// webhookFailedHandler receives invoice payment failed events from the
// payment provider.
func (a *API) webhookFailedHandler(w http.ResponseWriter, r *http.Request) {
	a.handleWebhook(w, r, stripeapi.EventTypeInvoicePaymentFailed)
}

// handleWebhook passes the raw event payload to the billing service and maps
// its outcome to an HTTP status. Events for subscribers this service does
// not know yield a 404, so the provider can tell misrouted deliveries apart
// from accepted ones.
func (a *API) handleWebhook(w http.ResponseWriter, r *http.Request, expectedType stripeapi.EventType) {
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		errors.ErrMalformedBody.Write(w)
		return
	}
	outcome, err := a.billing.HandleWebhookEvent(r.Context(), payload, expectedType)
	if err != nil {
		if stripe.HasCode(err, stripe.ErrInvalidEvent.Code) {
			errors.ErrMalformedBody.Write(w)
			return
		}
		log.Warnw("webhook processing failed", "error", err, "type", expectedType)
		errors.ErrGenericInternalServerError.Write(w)
		return
	}
	if outcome == stripe.OutcomeUnknownSubscriber {
		errors.ErrUnknownSubscriber.Write(w)
		return
	}
	httpWriteJSON(w, &WebhookResponse{Received: true, Status: outcome.String()})
}
