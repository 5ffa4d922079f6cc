// Package stripe provides the billing integration with the Stripe payment
// service: customer linking, subscription lifecycle, dunning and webhook
// event handling.
package stripe

import (
	"context"
	"fmt"

	stripeapi "github.com/stripe/stripe-go/v82"

	"github.com/hatchpay/billing-backend/db"
	"github.com/hatchpay/billing-backend/log"
	"github.com/hatchpay/billing-backend/notifications"
	"github.com/hatchpay/billing-backend/notifications/mailtemplates"
)

// Outcome reports how a webhook driven operation resolved.
type Outcome int

const (
	// OutcomeHandled means the event drove a state transition.
	OutcomeHandled Outcome = iota
	// OutcomeIgnored means the event was intentionally dropped (wrong type,
	// duplicate delivery, unknown upstream).
	OutcomeIgnored
	// OutcomeUnknownSubscriber means the referenced customer or subscription
	// could not be resolved locally.
	OutcomeUnknownSubscriber
)

func (o Outcome) String() string {
	switch o {
	case OutcomeHandled:
		return "handled"
	case OutcomeIgnored:
		return "ignored"
	case OutcomeUnknownSubscriber:
		return "unknown_subscriber"
	default:
		return "invalid"
	}
}

// SubscribeHook is called after a subscription has been created and stored.
type SubscribeHook func(account *db.Account, subscription *db.Subscription)

// Service provides the main business logic for billing operations. Every
// subscription state transition goes through it.
type Service struct {
	api         API
	db          *db.MongoStorage
	config      *Config
	lockManager *LockManager
	eventStore  *MemoryEventStore
	mail        notifications.NotificationService
	sms         notifications.NotificationService
	hooks       []SubscribeHook
}

// NewService creates a new billing service backed by the real provider
// client.
func NewService(config *Config, database *db.MongoStorage) (*Service, error) {
	if config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return NewServiceWithAPI(config, database, NewClient(config))
}

// NewServiceWithAPI creates a billing service on a custom provider
// implementation.
func NewServiceWithAPI(config *Config, database *db.MongoStorage, api API) (*Service, error) {
	if config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if database == nil {
		return nil, fmt.Errorf("database is required")
	}
	if api == nil {
		return nil, fmt.Errorf("provider API is required")
	}
	if err := config.Validate(); err != nil {
		return nil, NewProviderError("invalid_config", "invalid billing configuration", err)
	}

	return &Service{
		api:         api,
		db:          database,
		config:      config,
		lockManager: NewLockManager(),
		eventStore:  NewMemoryEventStore(0),
	}, nil
}

// Config returns the billing configuration the service was created with.
func (s *Service) Config() *Config {
	return s.config
}

// Card returns the default card on file for the account, or nil when the
// account has no payment details yet.
func (s *Service) Card(account *db.Account) (*stripeapi.Card, error) {
	if account.CustomerID == "" {
		return nil, nil
	}
	return s.api.GetDefaultCard(account.CustomerID)
}

// SetMailService sets the email backend used for billing notifications.
func (s *Service) SetMailService(mail notifications.NotificationService) {
	s.mail = mail
}

// SetSMSService sets the SMS backend used for payment warnings. Only
// accounts with a phone number receive them.
func (s *Service) SetSMSService(sms notifications.NotificationService) {
	s.sms = sms
}

// OnSubscribe registers a hook to run after every successful Subscribe.
// Hooks must be registered before the service starts handling requests.
func (s *Service) OnSubscribe(hook SubscribeHook) {
	s.hooks = append(s.hooks, hook)
}

// SaveCustomer makes sure the account has a usable provider customer and
// returns it. If the account has no customer link yet, or the linked
// customer has been deleted upstream, a new customer is created with the
// token as initial payment source and the link is stored. Otherwise the
// existing customer's payment source is replaced with the token.
func (s *Service) SaveCustomer(account *db.Account, token string) (*stripeapi.Customer, error) {
	if account.CustomerID != "" {
		customer, err := s.api.GetCustomer(account.CustomerID)
		switch {
		case err == nil && !customer.Deleted:
			if token == "" {
				return customer, nil
			}
			updated, err := s.api.UpdateCustomerToken(account.CustomerID, token)
			if err != nil {
				return nil, err
			}
			return updated, nil
		case err != nil && !HasCode(err, "customer_not_found"):
			return nil, err
		}
		// the linked customer is gone upstream, create a replacement
		log.Warnf("billing: customer %s for account %d no longer exists upstream, creating a new one",
			account.CustomerID, account.ID)
	}

	customer, err := s.api.CreateCustomer(account.DisplayName(), account.Email, token)
	if err != nil {
		return nil, err
	}
	if err := s.db.SetAccountCustomerID(account.ID, customer.ID, true); err != nil {
		return nil, fmt.Errorf("failed to store customer link for account %d: %w", account.ID, err)
	}
	account.CustomerID = customer.ID
	return customer, nil
}

// Subscribe sets up a subscription for the account on the configured plan.
// The payment token always updates the customer's payment source first. If
// an active subscription for the same plan already exists the call is a
// no-op and returns it. Depending on configuration, existing subscriptions
// are cancelled or their records cleared before the new one is created. The
// record stores the status the provider returned, with the failed payment
// counters starting at zero.
func (s *Service) Subscribe(account *db.Account, planKey, token string) (*db.Subscription, error) {
	plan, ok := s.config.Plan(planKey)
	if !ok {
		return nil, ErrPlanNotFound
	}

	unlock := s.lockManager.Lock(setupLockKey(account.ID, planKey))
	defer unlock()

	if _, err := s.SaveCustomer(account, token); err != nil {
		return nil, err
	}

	if existing, err := s.db.ActiveSubscriptionByPlan(account.ID, planKey); err == nil {
		log.Debugf("billing: account %d already subscribed to plan %s, skipping", account.ID, planKey)
		return existing, nil
	} else if err != db.ErrNotFound {
		return nil, err
	}

	if s.config.CancelSubscriptionsOnSetup {
		if err := s.cancelAllSubscriptions(account); err != nil {
			return nil, err
		}
	}
	if s.config.ClearSubscriptionsOnSetup {
		if err := s.clearAllSubscriptions(account); err != nil {
			return nil, err
		}
	}

	providerSub, err := s.api.CreateSubscription(account.CustomerID, plan.PriceID)
	if err != nil {
		return nil, err
	}

	record := &db.Subscription{
		AccountID: account.ID,
		StripeID:  providerSub.ID,
		PlanID:    plan.Key,
		Status:    string(providerSub.Status),
	}
	if _, err := s.db.SetSubscription(record); err != nil {
		return nil, fmt.Errorf("failed to store subscription %s for account %d: %w",
			providerSub.ID, account.ID, err)
	}
	if err := s.db.ResetAccountPaymentAttempts(account.ID); err != nil {
		log.Warnf("billing: failed to reset payment attempts for account %d: %v", account.ID, err)
	}

	for _, hook := range s.hooks {
		hook(account, record)
	}

	log.Infof("billing: subscription %s (plan=%s, status=%s) created for account %d",
		record.StripeID, record.PlanID, record.Status, account.ID)
	return record, nil
}

// cancelAllSubscriptions cancels every non-cancelled subscription of the
// account, upstream and locally.
func (s *Service) cancelAllSubscriptions(account *db.Account) error {
	subs, err := s.db.AccountSubscriptions(account.ID)
	if err != nil {
		return err
	}
	for _, sub := range subs {
		if sub.Status == db.StatusCancelled {
			continue
		}
		if err := s.Cancel(sub); err != nil {
			return err
		}
	}
	return nil
}

// clearAllSubscriptions removes every subscription record of the account in
// one bulk delete, cancelling the non-cancelled ones upstream first.
func (s *Service) clearAllSubscriptions(account *db.Account) error {
	subs, err := s.db.AccountSubscriptions(account.ID)
	if err != nil {
		return err
	}
	for _, sub := range subs {
		if sub.StripeID != "" && sub.Status != db.StatusCancelled {
			if _, err := s.api.CancelSubscription(sub.StripeID); err != nil {
				log.Warnf("billing: failed to cancel subscription %s upstream before clearing: %v",
					sub.StripeID, err)
			}
		}
	}
	return s.db.DelAccountSubscriptions(account.ID)
}

// Cancel cancels the subscription. The upstream cancellation is best effort,
// a provider failure is logged and the record is marked cancelled locally
// regardless so the account never keeps paying for a subscription it asked
// to terminate.
func (s *Service) Cancel(record *db.Subscription) error {
	if record.StripeID != "" && record.Status != db.StatusCancelled {
		if _, err := s.api.CancelSubscription(record.StripeID); err != nil {
			log.Warnf("billing: failed to cancel subscription %s upstream: %v", record.StripeID, err)
		}
	}
	if err := s.db.SetSubscriptionStatus(record.ID, db.StatusCancelled); err != nil {
		return fmt.Errorf("failed to mark subscription %d cancelled: %w", record.ID, err)
	}
	record.Status = db.StatusCancelled
	return nil
}

// DeleteSubscription removes the subscription record, cancelling the
// provider-side subscription first when it is still running.
func (s *Service) DeleteSubscription(record *db.Subscription) error {
	if record.StripeID != "" && record.Status != db.StatusCancelled {
		if _, err := s.api.CancelSubscription(record.StripeID); err != nil {
			log.Warnf("billing: failed to cancel subscription %s upstream before delete: %v",
				record.StripeID, err)
		}
	}
	return s.db.DelSubscription(record)
}

// HandlePaymentSucceeded processes a successful payment for the subscription
// identified by the provider customer and subscription IDs. The record is
// moved to the configured active status and both failed payment counters are
// reset. Unresolvable IDs report OutcomeUnknownSubscriber without touching
// any state.
func (s *Service) HandlePaymentSucceeded(ctx context.Context, customerID, subscriptionID string) (Outcome, error) {
	account, err := s.db.AccountByCustomerID(customerID)
	if err == db.ErrNotFound {
		return OutcomeUnknownSubscriber, nil
	} else if err != nil {
		return OutcomeIgnored, err
	}

	unlock := s.lockManager.Lock(accountLockKey(account.ID))
	defer unlock()

	record, err := s.db.SubscriptionByStripeID(account.ID, subscriptionID)
	if err == db.ErrNotFound {
		return OutcomeUnknownSubscriber, nil
	} else if err != nil {
		return OutcomeIgnored, err
	}

	if record.Status != s.config.ActiveStatus {
		if err := s.db.SetSubscriptionStatus(record.ID, s.config.ActiveStatus); err != nil {
			return OutcomeIgnored, err
		}
		record.Status = s.config.ActiveStatus
	}
	if record.PaymentAttempts > 0 {
		if err := s.db.ResetPaymentAttempts(record.ID); err != nil {
			return OutcomeIgnored, err
		}
	}
	if err := s.db.ResetAccountPaymentAttempts(account.ID); err != nil {
		log.Warnf("billing: failed to reset payment attempts for account %d: %v", account.ID, err)
	}

	s.notify(ctx, account, mailtemplates.PaymentReceivedNotification, s.templateData(account, record, 0))

	log.Infof("billing: payment succeeded for subscription %s (account %d)", subscriptionID, account.ID)
	return OutcomeHandled, nil
}

// HandlePaymentFailed processes a failed payment for the subscription
// identified by the provider customer and subscription IDs. The failed
// payment counter is incremented atomically. Once it reaches the configured
// threshold the subscription is cancelled and the account notified,
// otherwise the account is warned with the number of attempts left.
func (s *Service) HandlePaymentFailed(ctx context.Context, customerID, subscriptionID string) (Outcome, error) {
	account, err := s.db.AccountByCustomerID(customerID)
	if err == db.ErrNotFound {
		return OutcomeUnknownSubscriber, nil
	} else if err != nil {
		return OutcomeIgnored, err
	}

	unlock := s.lockManager.Lock(accountLockKey(account.ID))
	defer unlock()

	record, err := s.db.SubscriptionByStripeID(account.ID, subscriptionID)
	if err == db.ErrNotFound {
		return OutcomeUnknownSubscriber, nil
	} else if err != nil {
		return OutcomeIgnored, err
	}

	updated, err := s.db.IncrementPaymentAttempts(record.ID)
	if err != nil {
		return OutcomeIgnored, err
	}
	if _, err := s.db.IncrementAccountPaymentAttempts(account.ID); err != nil {
		log.Warnf("billing: failed to increment payment attempts for account %d: %v", account.ID, err)
	}

	if updated.PaymentAttempts >= s.config.FailureAttempts {
		if err := s.Cancel(updated); err != nil {
			return OutcomeIgnored, err
		}
		s.notify(ctx, account, mailtemplates.SubscriptionCancelledNotification, s.templateData(account, updated, 0))
		log.Infof("billing: subscription %s cancelled for account %d after %d failed payments",
			subscriptionID, account.ID, updated.PaymentAttempts)
		return OutcomeHandled, nil
	}

	attemptsLeft := s.config.FailureAttempts - updated.PaymentAttempts
	s.notify(ctx, account, mailtemplates.PaymentFailedNotification, s.templateData(account, updated, attemptsLeft))
	log.Infof("billing: payment failed for subscription %s (account %d), %d attempts left",
		subscriptionID, account.ID, attemptsLeft)
	return OutcomeHandled, nil
}

// templateData builds the data passed to the notification templates.
func (s *Service) templateData(account *db.Account, record *db.Subscription, attemptsLeft int) any {
	planName := record.PlanID
	if plan, ok := s.config.Plan(record.PlanID); ok && plan.Name != "" {
		planName = plan.Name
	}
	return struct {
		Name         string
		PlanName     string
		AttemptsLeft int
	}{
		Name:         account.DisplayName(),
		PlanName:     planName,
		AttemptsLeft: attemptsLeft,
	}
}

// notify sends the rendered template to the account over every configured
// backend. Delivery failures are logged, never surfaced, a payment state
// transition must not fail because a mail server is down.
func (s *Service) notify(ctx context.Context, account *db.Account, template mailtemplates.MailTemplate, data any) {
	if s.mail == nil && (s.sms == nil || account.Phone == "") {
		return
	}
	notification, err := template.ExecTemplate(data)
	if err != nil {
		log.Errorw(fmt.Sprintf("billing: failed to render %s notification", template.File), "error", err)
		return
	}
	notification.ToAddress = account.Email
	notification.ToName = account.DisplayName()
	notification.ReplyTo = s.config.SendEmailsAs
	if s.mail != nil {
		if err := s.mail.SendNotification(ctx, notification); err != nil {
			log.Warnf("billing: failed to send %s email to account %d: %v", template.File, account.ID, err)
		}
	}
	if s.sms != nil && account.Phone != "" {
		sms := &notifications.Notification{
			ToNumber:  account.Phone,
			PlainBody: notification.Subject,
		}
		if err := s.sms.SendNotification(ctx, sms); err != nil {
			log.Warnf("billing: failed to send %s SMS to account %d: %v", template.File, account.ID, err)
		}
	}
}

func setupLockKey(accountID uint64, planKey string) string {
	return fmt.Sprintf("setup:%d:%s", accountID, planKey)
}

func accountLockKey(accountID uint64) string {
	return fmt.Sprintf("account:%d", accountID)
}
