package stripe

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	stripeapi "github.com/stripe/stripe-go/v82"
	stripecustomer "github.com/stripe/stripe-go/v82/customer"
	stripeevent "github.com/stripe/stripe-go/v82/event"
	stripesubscription "github.com/stripe/stripe-go/v82/subscription"
)

// apiTimeout bounds every provider API call.
const apiTimeout = 10 * time.Second

// API is the payment provider surface used by the billing service. It is an
// interface so service tests can run against a stub instead of the real
// provider.
type API interface {
	GetCustomer(customerID string) (*stripeapi.Customer, error)
	CreateCustomer(name, email, token string) (*stripeapi.Customer, error)
	UpdateCustomerToken(customerID, token string) (*stripeapi.Customer, error)
	GetDefaultCard(customerID string) (*stripeapi.Card, error)
	CreateSubscription(customerID, priceID string) (*stripeapi.Subscription, error)
	GetSubscription(subscriptionID string) (*stripeapi.Subscription, error)
	CancelSubscription(subscriptionID string) (*stripeapi.Subscription, error)
	GetEvent(eventID string) (*stripeapi.Event, error)
}

// Client implements API on top of the Stripe client library.
type Client struct {
	config *Config
}

// NewClient creates a new provider client with the given configuration. It
// configures the library with the secret key of the selected mode and a
// bounded HTTP client.
func NewClient(config *Config) *Client {
	stripeapi.Key = config.SecretKey()
	backend := stripeapi.GetBackendWithConfig(stripeapi.APIBackend, &stripeapi.BackendConfig{
		HTTPClient: &http.Client{Timeout: apiTimeout},
	})
	stripeapi.SetBackend(stripeapi.APIBackend, backend)

	return &Client{config: config}
}

// GetCustomer retrieves a customer by ID
func (*Client) GetCustomer(customerID string) (*stripeapi.Customer, error) {
	customer, err := stripecustomer.Get(customerID, &stripeapi.CustomerParams{})
	if err != nil {
		return nil, mapError(err, ErrCustomerNotFound, "get customer")
	}
	return customer, nil
}

// CreateCustomer creates a provider customer with the given display name and
// email. The token, when not empty, is attached as the initial payment
// source.
func (*Client) CreateCustomer(name, email, token string) (*stripeapi.Customer, error) {
	params := &stripeapi.CustomerParams{
		Name:  stripeapi.String(name),
		Email: stripeapi.String(email),
	}
	if token != "" {
		params.Source = stripeapi.String(token)
	}
	customer, err := stripecustomer.New(params)
	if err != nil {
		return nil, mapError(err, nil, "create customer")
	}
	return customer, nil
}

// UpdateCustomerToken replaces the customer's payment source with the one
// referenced by the token.
func (*Client) UpdateCustomerToken(customerID, token string) (*stripeapi.Customer, error) {
	params := &stripeapi.CustomerParams{
		Source: stripeapi.String(token),
	}
	customer, err := stripecustomer.Update(customerID, params)
	if err != nil {
		return nil, mapError(err, ErrCustomerNotFound, "update customer payment source")
	}
	return customer, nil
}

// GetDefaultCard retrieves the customer's default card, or nil if the
// customer has no card attached.
func (*Client) GetDefaultCard(customerID string) (*stripeapi.Card, error) {
	params := &stripeapi.CustomerParams{}
	params.AddExpand("default_source")
	customer, err := stripecustomer.Get(customerID, params)
	if err != nil {
		return nil, mapError(err, ErrCustomerNotFound, "get customer card")
	}
	if customer.DefaultSource == nil || customer.DefaultSource.Card == nil {
		return nil, nil
	}
	return customer.DefaultSource.Card, nil
}

// CreateSubscription subscribes the customer to the recurring price.
func (*Client) CreateSubscription(customerID, priceID string) (*stripeapi.Subscription, error) {
	params := &stripeapi.SubscriptionParams{
		Customer: stripeapi.String(customerID),
		Items: []*stripeapi.SubscriptionItemsParams{
			{Price: stripeapi.String(priceID)},
		},
	}
	subscription, err := stripesubscription.New(params)
	if err != nil {
		return nil, mapError(err, ErrCustomerNotFound, "create subscription")
	}
	return subscription, nil
}

// GetSubscription retrieves a subscription by ID
func (*Client) GetSubscription(subscriptionID string) (*stripeapi.Subscription, error) {
	subscription, err := stripesubscription.Get(subscriptionID, nil)
	if err != nil {
		return nil, mapError(err, ErrSubscriptionNotFound, "get subscription")
	}
	return subscription, nil
}

// CancelSubscription cancels a subscription immediately.
func (*Client) CancelSubscription(subscriptionID string) (*stripeapi.Subscription, error) {
	subscription, err := stripesubscription.Cancel(subscriptionID, nil)
	if err != nil {
		return nil, mapError(err, ErrSubscriptionNotFound, "cancel subscription")
	}
	return subscription, nil
}

// GetEvent retrieves a webhook event by ID. Events received over the webhook
// endpoints are re-fetched through this call before any state change.
func (*Client) GetEvent(eventID string) (*stripeapi.Event, error) {
	event, err := stripeevent.Get(eventID, nil)
	if err != nil {
		return nil, mapError(err, ErrEventNotFound, "get event")
	}
	return event, nil
}

// mapError translates a Stripe library error into a ProviderError. Missing
// resources map to the given notFound error, upstream 5xx and transport
// failures are retryable, everything else is a rejection.
func mapError(err error, notFound *ProviderError, action string) error {
	var stripeErr *stripeapi.Error
	if errors.As(err, &stripeErr) {
		if stripeErr.Code == stripeapi.ErrorCodeResourceMissing && notFound != nil {
			return NewProviderError(notFound.Code, notFound.Message, err)
		}
		if stripeErr.HTTPStatusCode >= http.StatusInternalServerError {
			return NewProviderError("provider_unavailable", fmt.Sprintf("failed to %s", action), err)
		}
		return NewProviderError("provider_rejected", fmt.Sprintf("failed to %s", action), err)
	}
	return NewProviderError("provider_unavailable", fmt.Sprintf("failed to %s", action), err)
}
