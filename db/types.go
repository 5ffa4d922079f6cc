package db

import (
	"time"
)

// Subscription statuses tracked locally. The active value is configurable
// upstream (the provider may report a different string for "in good
// standing"), cancelled is terminal.
const (
	StatusPending   = "pending"
	StatusActive    = "active"
	StatusPastDue   = "past_due"
	StatusCancelled = "cancelled"
)

// Account represents a registered account that may hold payment details and
// subscriptions with the payment provider.
type Account struct {
	ID        uint64 `json:"id" bson:"_id"`
	Email     string `json:"email" bson:"email"`
	Password  string `json:"password" bson:"password"`
	FirstName string `json:"firstName" bson:"firstName"`
	LastName  string `json:"lastName" bson:"lastName"`
	// Phone is optional and only used for SMS payment warnings.
	Phone string `json:"phone,omitempty" bson:"phone,omitempty"`
	// CustomerID links the account to the payment provider's customer
	// object. Empty until the account first stores payment details.
	CustomerID string `json:"customerID" bson:"customerID"`
	// PaymentAttempts is the account level failed payment counter. It is
	// reset every time a new subscription is set up.
	PaymentAttempts int       `json:"paymentAttempts" bson:"paymentAttempts"`
	CreatedAt       time.Time `json:"createdAt" bson:"createdAt"`
}

// DisplayName composes the name used when creating the provider-side
// customer record.
func (a *Account) DisplayName() string {
	return a.FirstName + " " + a.LastName
}

// Subscription is the local record of a provider-side subscription. Status
// and PaymentAttempts only change through the billing service, never
// directly by API handlers.
type Subscription struct {
	ID        uint64 `json:"id" bson:"_id"`
	AccountID uint64 `json:"accountID" bson:"accountID"`
	// StripeID is the provider's subscription identifier, set once at
	// creation.
	StripeID        string    `json:"stripeID" bson:"stripeID"`
	PlanID          string    `json:"planID" bson:"planID"`
	Status          string    `json:"status" bson:"status"`
	PaymentAttempts int       `json:"paymentAttempts" bson:"paymentAttempts"`
	CreatedAt       time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt" bson:"updatedAt"`
}
