package stripe

import (
	"fmt"
	"time"

	"github.com/investplan/payments-backend/ledger"
)

const (
	// DefaultMaxRetries bounds the retries of a temporary vendor failure.
	DefaultMaxRetries = 3
	// DefaultRetryInterval is the first wait between two attempts.
	DefaultRetryInterval = 200 * time.Millisecond
	// DefaultProcessedEvents is the number of webhook event ids remembered.
	DefaultProcessedEvents = 4096
	// DefaultProcessedEventsTTL is how long a processed webhook event id is remembered.
	DefaultProcessedEventsTTL = 24 * time.Hour
)

// Config holds the complete Stripe configuration
type Config struct {
	APIKey        string `yaml:"api_key" json:"api_key"`
	WebhookSecret string `yaml:"webhook_secret" json:"webhook_secret"`
	// APIURL overrides the Stripe API endpoint, used to point the client at
	// a local fake.
	APIURL          string `yaml:"api_url" json:"api_url"`
	DefaultCurrency string `yaml:"default_currency" json:"default_currency"`
	// IgnoreAPIVersionMismatch accepts webhook events rendered with an API
	// version other than the one the library is pinned to.
	IgnoreAPIVersionMismatch bool          `yaml:"ignore_api_version_mismatch" json:"ignore_api_version_mismatch"`
	MaxRetries               uint64        `yaml:"max_retries" json:"max_retries"`
	RetryInterval            time.Duration `yaml:"retry_interval" json:"retry_interval"`
	ProcessedEvents          int           `yaml:"processed_events" json:"processed_events"`
	ProcessedEventsTTL       time.Duration `yaml:"processed_events_ttl" json:"processed_events_ttl"`
}

// NewConfig returns a configuration for the given keys with every other
// field set to its default.
func NewConfig(apiKey, webhookSecret string) *Config {
	c := &Config{
		APIKey:                   apiKey,
		WebhookSecret:            webhookSecret,
		IgnoreAPIVersionMismatch: true,
	}
	c.setDefaults()
	return c
}

func (c *Config) setDefaults() {
	if c.DefaultCurrency == "" {
		c.DefaultCurrency = ledger.DefaultCurrency
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.RetryInterval == 0 {
		c.RetryInterval = DefaultRetryInterval
	}
	if c.ProcessedEvents <= 0 {
		c.ProcessedEvents = DefaultProcessedEvents
	}
	if c.ProcessedEventsTTL == 0 {
		c.ProcessedEventsTTL = DefaultProcessedEventsTTL
	}
}

func (c *Config) validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("%w: stripe api key is required", ErrInvalidConfiguration)
	}
	if c.WebhookSecret == "" {
		return fmt.Errorf("%w: stripe webhook secret is required", ErrInvalidConfiguration)
	}
	return nil
}
