package stripe

import (
	"fmt"
	"os"
	"strings"
)

// Environment variable overrides for the API keys. When set they take
// precedence over the configured values, so deployments can rotate keys
// without touching the config file.
const (
	TestSecretKeyEnv  = "STRIPE_TEST_SECRET_KEY"
	TestPublishKeyEnv = "STRIPE_TEST_PUBLISH_KEY"
	LiveSecretKeyEnv  = "STRIPE_LIVE_SECRET_KEY"
	LivePublishKeyEnv = "STRIPE_LIVE_PUBLISH_KEY"
)

// Defaults applied by NewConfig when the corresponding value is not set.
const (
	DefaultActiveStatus    = "active"
	DefaultFailureAttempts = 3
)

// PlanConfig holds the configuration of a subscribable plan. Key is the
// identifier used in API paths and stored in subscription records, PriceID is
// the provider-side recurring price the subscription is created against.
type PlanConfig struct {
	Key     string `yaml:"key" json:"key"`
	Name    string `yaml:"name" json:"name"`
	PriceID string `yaml:"price_id" json:"price_id"`
}

// Config holds the complete billing configuration. Test and live key pairs
// are both kept so a single deployment can be flipped between modes with the
// Live flag.
type Config struct {
	TestSecretKey  string `yaml:"test_secret_key" json:"test_secret_key"`
	TestPublishKey string `yaml:"test_publish_key" json:"test_publish_key"`
	LiveSecretKey  string `yaml:"live_secret_key" json:"live_secret_key"`
	LivePublishKey string `yaml:"live_publish_key" json:"live_publish_key"`
	Live           bool   `yaml:"live" json:"live"`

	// UseCustomJS tells front ends not to inject the provider's hosted
	// script and use their own integration instead.
	UseCustomJS bool `yaml:"use_custom_js" json:"use_custom_js"`

	// CancelSubscriptionsOnSetup cancels every non-cancelled subscription of
	// the account before a new one is created. Evaluated before
	// ClearSubscriptionsOnSetup.
	CancelSubscriptionsOnSetup bool `yaml:"cancel_subscriptions_on_setup" json:"cancel_subscriptions_on_setup"`
	// ClearSubscriptionsOnSetup deletes every subscription record of the
	// account before a new one is created.
	ClearSubscriptionsOnSetup bool `yaml:"clear_subscriptions_on_setup" json:"clear_subscriptions_on_setup"`

	// SendEmailsAs is the Reply-To address on billing notifications, so
	// replies reach the billing mailbox rather than the transport sender.
	SendEmailsAs string `yaml:"send_emails_as" json:"send_emails_as"`

	// ActiveStatus is the status string that marks a subscription in good
	// standing. The provider reports "active", but it is configurable for
	// installations that map statuses differently.
	ActiveStatus string `yaml:"active_status" json:"active_status"`

	// FailureAttempts is the number of failed payments tolerated before a
	// subscription is cancelled.
	FailureAttempts int `yaml:"failure_attempts" json:"failure_attempts"`

	Plans []PlanConfig `yaml:"plans" json:"plans"`
}

// NewConfig creates a billing configuration with the defaults applied:
// subscriptions are cancelled (not cleared) on setup, three failed payments
// are tolerated and "active" marks a subscription in good standing.
func NewConfig() *Config {
	return &Config{
		CancelSubscriptionsOnSetup: true,
		ActiveStatus:               DefaultActiveStatus,
		FailureAttempts:            DefaultFailureAttempts,
	}
}

// Validate checks that the configuration is usable for the selected mode.
func (c *Config) Validate() error {
	if c.SecretKey() == "" {
		return fmt.Errorf("missing secret key for %s mode", c.mode())
	}
	if c.ActiveStatus == "" {
		return fmt.Errorf("active status cannot be empty")
	}
	if c.FailureAttempts <= 0 {
		return fmt.Errorf("failure attempts must be positive, got %d", c.FailureAttempts)
	}
	return nil
}

// SecretKey returns the secret API key for the current mode. Environment
// variables take precedence over configured values.
func (c *Config) SecretKey() string {
	if c.Live {
		return getEnvOrDefault(LiveSecretKeyEnv, c.LiveSecretKey)
	}
	return getEnvOrDefault(TestSecretKeyEnv, c.TestSecretKey)
}

// PublishKey returns the publishable API key for the current mode.
// Environment variables take precedence over configured values.
func (c *Config) PublishKey() string {
	if c.Live {
		return getEnvOrDefault(LivePublishKeyEnv, c.LivePublishKey)
	}
	return getEnvOrDefault(TestPublishKeyEnv, c.TestPublishKey)
}

// ParsePlans parses plan definitions given as key:name:priceID entries.
func ParsePlans(entries []string) ([]PlanConfig, error) {
	plans := make([]PlanConfig, 0, len(entries))
	for _, entry := range entries {
		parts := strings.SplitN(entry, ":", 3)
		if len(parts) != 3 || parts[0] == "" || parts[2] == "" {
			return nil, fmt.Errorf("invalid plan definition %q, expected key:name:priceID", entry)
		}
		plans = append(plans, PlanConfig{Key: parts[0], Name: parts[1], PriceID: parts[2]})
	}
	return plans, nil
}

// Plan returns the configuration of the plan with the given key.
func (c *Config) Plan(key string) (*PlanConfig, bool) {
	for i := range c.Plans {
		if c.Plans[i].Key == key {
			return &c.Plans[i], true
		}
	}
	return nil, false
}

func (c *Config) mode() string {
	if c.Live {
		return "live"
	}
	return "test"
}

// getEnvOrDefault returns the environment variable value or a default value
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
