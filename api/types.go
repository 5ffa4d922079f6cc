package api

import (
	"time"

	"github.com/hatchpay/billing-backend/db"
)

// AccountInfo is the user provided payload to register an account, and the
// response shape of the account information endpoints.
type AccountInfo struct {
	ID        uint64 `json:"id,omitempty"`
	Email     string `json:"email"`
	Password  string `json:"password,omitempty"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Phone     string `json:"phone,omitempty"`
}

// LoginResponse is the response of the login and token refresh endpoints.
type LoginResponse struct {
	Token    string    `json:"token"`
	Expirity time.Time `json:"expirity"`
}

// BillingConfig is the public configuration a front end needs to start a
// payment flow.
type BillingConfig struct {
	PublishKey  string `json:"publishKey"`
	UseCustomJS bool   `json:"useCustomJS"`
}

// CardRequest carries the payment token obtained client side.
type CardRequest struct {
	Token string `json:"token"`
}

// CardInfo is the card on file summary. The number only carries the masked
// form, the full number never reaches this service.
type CardInfo struct {
	Brand    string `json:"brand"`
	Number   string `json:"number"`
	ExpMonth int64  `json:"expMonth"`
	ExpYear  int64  `json:"expYear"`
	Zip      string `json:"zip,omitempty"`
}

// SubscriptionsResponse is the response of the subscription list endpoint.
type SubscriptionsResponse struct {
	Subscriptions []*db.Subscription `json:"subscriptions"`
}

// WebhookResponse confirms a webhook delivery to the provider.
type WebhookResponse struct {
	Received bool   `json:"received"`
	Status   string `json:"status"`
}
