package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port               string `envconfig:"PORT" default:"8080"`
	Environment        string `envconfig:"ENV" default:"development"`
	DBConnectionString string `envconfig:"DB_CONNECTION_STRING" required:"true"`
	JWTSecret          string `envconfig:"SUPABASE_JWT_SECRET" required:"true"`

	// Business timezone used for "today" boundaries (signups today, expiring trials).
	Timezone string `envconfig:"TIMEZONE" default:"Europe/London"`

	// Query cache settings
	FetchTimeoutSec       int `envconfig:"FETCH_TIMEOUT_SEC" default:"15"`
	SessionIdleTimeoutSec int `envconfig:"SESSION_IDLE_TIMEOUT_SEC" default:"600"`

	// Stripe settings. StripeSecretName takes precedence over StripeSecretKey when set.
	StripeSecretKey  string            `envconfig:"STRIPE_SECRET_KEY"`
	StripeSecretName string            `envconfig:"STRIPE_SECRET_NAME"`
	StripeTierPrices map[string]string `envconfig:"STRIPE_TIER_PRICES"` // price_id:tier,price_id:tier

	// Supabase storage (S3-compatible) used to presign avatar URLs
	S3URL         string `envconfig:"SUPABASE_S3_URL"`
	S3Bucket      string `envconfig:"SUPABASE_S3_BUCKET" default:"avatars"`
	S3Region      string `envconfig:"SUPABASE_S3_REGION" default:"eu-west-2"`
	S3AccessKey   string `envconfig:"SUPABASE_S3_ACCESS_KEY"`
	S3SecretKey   string `envconfig:"SUPABASE_S3_SECRET_KEY"`
	AvatarURLTTLS int    `envconfig:"AVATAR_URL_TTL_SEC" default:"900"`

	// Pub/Sub
	GCPProjectID                  string `envconfig:"GCP_PROJECT_ID"`
	PubSubEmulatorHost            string `envconfig:"PUBSUB_EMULATOR_HOST"`
	PubSubReminderTopic           string `envconfig:"PUBSUB_REMINDER_TOPIC" default:"trial-reminders"`
	DLQEndpointURL                string `envconfig:"DLQ_ENDPOINT_URL"`
	PubSubPushServiceAccountEmail string `envconfig:"PUBSUB_PUSH_SERVICE_ACCOUNT_EMAIL"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if _, err := cfg.Location(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Location resolves the configured business timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.FetchTimeoutSec) * time.Second
}

func (c *Config) SessionIdleTimeout() time.Duration {
	return time.Duration(c.SessionIdleTimeoutSec) * time.Second
}

func (c *Config) AvatarURLTTL() time.Duration {
	return time.Duration(c.AvatarURLTTLS) * time.Second
}

// StorageEnabled reports whether avatar presigning can be configured.
func (c *Config) StorageEnabled() bool {
	return c.S3URL != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}
