package api

const (
	// auth routes

	// POST /auth/login to login and get a JWT token
	authLoginEndpoint = "/auth/login"
	// POST /auth/refresh to refresh the JWT token
	authRefreshTokenEndpoint = "/auth/refresh"

	// account routes

	// POST /accounts to register a new account
	accountsEndpoint = "/accounts"
	// GET /accounts/me to get the current account information
	accountsMeEndpoint = "/accounts/me"

	// billing routes

	// GET /billing/config to get the public billing configuration
	billingConfigEndpoint = "/billing/config"
	// GET /billing/card to get the card on file, POST to replace it
	billingCardEndpoint = "/billing/card"
	// POST /billing/subscribe/{plan} to subscribe to a plan
	billingSubscribeEndpoint = "/billing/subscribe/{plan}"
	// GET /billing/subscriptions to list the account subscriptions
	billingSubscriptionsEndpoint = "/billing/subscriptions"
	// DELETE /billing/subscriptions/{subscriptionID} to cancel and remove one
	billingSubscriptionEndpoint = "/billing/subscriptions/{subscriptionID}"

	// webhook routes, appended to the configurable webhook base path

	// POST <base>/success for successful payment events
	webhookSuccessPath = "/success"
	// POST <base>/failed for failed payment events
	webhookFailedPath = "/failed"
)

// DefaultWebhookBase is the webhook base path used when none is configured.
// Provider endpoint configurations already pointing at this path keep
// working without changes.
const DefaultWebhookBase = "/stripeforms/webhooks"
