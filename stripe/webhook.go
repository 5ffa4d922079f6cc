package stripe

import (
	"context"
	"encoding/json"

	stripeapi "github.com/stripe/stripe-go/v82"

	"github.com/hatchpay/billing-backend/log"
)

// EventEnvelope is the shape of a webhook delivery. Only the event ID and
// type are ever read from the request body, the event itself is re-fetched
// from the provider by ID before any state change, so a forged payload
// cannot drive a transition.
type EventEnvelope struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

// InvoiceInfo is the invoice data extracted from a payment event.
type InvoiceInfo struct {
	ID             string
	CustomerID     string
	SubscriptionID string
}

// HandleWebhookEvent processes a webhook delivery against the expected event
// type of the endpoint it arrived on. Deliveries of another type, duplicate
// deliveries and events unknown upstream are dropped with OutcomeIgnored.
// Unreadable payloads and provider or storage failures return an error.
func (s *Service) HandleWebhookEvent(ctx context.Context, payload []byte, expectedType stripeapi.EventType) (Outcome, error) {
	envelope := &EventEnvelope{}
	if err := json.Unmarshal(payload, envelope); err != nil {
		return OutcomeIgnored, NewProviderError("invalid_event", "unreadable webhook payload", err)
	}
	if envelope.ID == "" {
		return OutcomeIgnored, NewProviderError("invalid_event", "webhook payload missing event id", nil)
	}
	if stripeapi.EventType(envelope.Type) != expectedType {
		log.Debugf("billing webhook: dropping event %s of type %s, endpoint expects %s",
			envelope.ID, envelope.Type, expectedType)
		return OutcomeIgnored, nil
	}
	// claim the event before doing any work, so a simultaneous duplicate
	// delivery cannot slip past the check; the claim is released again
	// unless the event actually drove a transition
	if !s.eventStore.MarkIfNew(envelope.ID) {
		log.Debugf("billing webhook: event %s already processed, skipping", envelope.ID)
		return OutcomeIgnored, nil
	}
	handled := false
	defer func() {
		if !handled {
			s.eventStore.Unmark(envelope.ID)
		}
	}()

	// re-fetch the event from the provider, the body is not trusted
	event, err := s.api.GetEvent(envelope.ID)
	if err != nil {
		if HasCode(err, "event_not_found") {
			log.Warnf("billing webhook: event %s unknown upstream, dropping", envelope.ID)
			return OutcomeIgnored, nil
		}
		return OutcomeIgnored, err
	}
	if event.Type != expectedType {
		log.Warnf("billing webhook: event %s is %s upstream, endpoint expects %s",
			event.ID, event.Type, expectedType)
		return OutcomeIgnored, nil
	}

	invoiceInfo, err := parseInvoiceFromEvent(event)
	if err != nil {
		return OutcomeIgnored, err
	}

	var outcome Outcome
	switch expectedType {
	case stripeapi.EventTypeInvoicePaymentSucceeded:
		outcome, err = s.HandlePaymentSucceeded(ctx, invoiceInfo.CustomerID, invoiceInfo.SubscriptionID)
	case stripeapi.EventTypeInvoicePaymentFailed:
		outcome, err = s.HandlePaymentFailed(ctx, invoiceInfo.CustomerID, invoiceInfo.SubscriptionID)
	default:
		log.Debugf("billing webhook: no handler for event type %s", expectedType)
		return OutcomeIgnored, nil
	}
	if err != nil {
		return outcome, err
	}
	handled = outcome == OutcomeHandled
	return outcome, nil
}

// parseInvoiceFromEvent extracts the customer and subscription references
// from a payment event.
func parseInvoiceFromEvent(event *stripeapi.Event) (*InvoiceInfo, error) {
	var invoice stripeapi.Invoice
	if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
		return nil, NewProviderError("invalid_event", "failed to parse invoice from event", err)
	}
	if invoice.Customer == nil || invoice.Customer.ID == "" {
		return nil, NewProviderError("invalid_event", "invoice missing customer", nil)
	}

	info := &InvoiceInfo{
		ID:         invoice.ID,
		CustomerID: invoice.Customer.ID,
	}
	if invoice.Parent != nil && invoice.Parent.SubscriptionDetails != nil &&
		invoice.Parent.SubscriptionDetails.Subscription != nil {
		info.SubscriptionID = invoice.Parent.SubscriptionDetails.Subscription.ID
	}
	if info.SubscriptionID == "" {
		return nil, NewProviderError("invalid_event", "invoice not tied to a subscription", nil)
	}
	return info, nil
}
