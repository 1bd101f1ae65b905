// Package config provides YAML-based configuration loading for Leadyard.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environments.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Payment modes.
const (
	PaymentsMock = "mock"
	PaymentsLive = "live"
)

// Config is the top-level Leadyard configuration, loaded from leadyard.yaml.
type Config struct {
	Env      string         `yaml:"env"`
	Database DatabaseConfig `yaml:"database"`
	Server   ServerConfig   `yaml:"server"`
	Auth     AuthConfig     `yaml:"auth"`
	Payments PaymentsConfig `yaml:"payments"`
	Matching MatchingConfig `yaml:"matching"`
	Notify   NotifyConfig   `yaml:"notify"`
}

// DatabaseConfig selects the store driver and its connection settings.
// Driver "mysql" uses Host/Port/User/Password/Name; "sqlite" uses Path.
type DatabaseConfig struct {
	Driver   string `yaml:"driver"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	Path     string `yaml:"path"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Port        int    `yaml:"port"`
	MetricsPath string `yaml:"metrics_path"`
}

// AuthConfig holds the identity provider's token verification settings.
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
	Issuer    string `yaml:"issuer"`
}

// PaymentsConfig controls how leads are paid for.
type PaymentsConfig struct {
	Mode                  string        `yaml:"mode"`
	StripeSecretKey       string        `yaml:"stripe_secret_key"`
	WebhookSecret         string        `yaml:"webhook_secret"`
	AllowUnsignedWebhooks bool          `yaml:"allow_unsigned_webhooks"`
	LeadPriceCents        int64         `yaml:"lead_price_cents"`
	Currency              string        `yaml:"currency"`
	SuccessURL            string        `yaml:"success_url"`
	CancelURL             string        `yaml:"cancel_url"`
	CheckoutTTL           time.Duration `yaml:"checkout_ttl"`
	ExpirySchedule        string        `yaml:"expiry_schedule"`
}

// MaxCandidates is the most contractors matching may propose per project.
const MaxCandidates = 5

// MatchingConfig tunes the contractor matching trigger. MaxCandidates may
// lower the per-project cap but not raise it.
type MatchingConfig struct {
	MaxCandidates int `yaml:"max_candidates"`
}

// NotifyConfig holds optional operator notification channels. A channel
// with an empty token is disabled.
type NotifyConfig struct {
	Slack   SlackConfig   `yaml:"slack"`
	Discord DiscordConfig `yaml:"discord"`
}

// SlackConfig configures the Slack notifier.
type SlackConfig struct {
	BotToken  string `yaml:"bot_token"`
	ChannelID string `yaml:"channel_id"`
}

// DiscordConfig configures the Discord notifier.
type DiscordConfig struct {
	BotToken  string `yaml:"bot_token"`
	ChannelID string `yaml:"channel_id"`
}

// envOverrides maps environment variables to the secret fields they
// replace. Secrets are usually kept out of the YAML file.
var envOverrides = map[string]func(*Config, string){
	"LEADYARD_DB_PASSWORD":  func(c *Config, v string) { c.Database.Password = v },
	"LEADYARD_JWT_SECRET":   func(c *Config, v string) { c.Auth.JWTSecret = v },
	"STRIPE_SECRET_KEY":     func(c *Config, v string) { c.Payments.StripeSecretKey = v },
	"STRIPE_WEBHOOK_SECRET": func(c *Config, v string) { c.Payments.WebhookSecret = v },
	"SLACK_BOT_TOKEN":       func(c *Config, v string) { c.Notify.Slack.BotToken = v },
	"DISCORD_BOT_TOKEN":     func(c *Config, v string) { c.Notify.Discord.BotToken = v },
}

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config. Environment
// overrides are applied before validation.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyEnv(os.LookupEnv)
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// MockPayments reports whether leads are purchased through the direct mock
// path instead of checkout sessions and webhooks.
func (c *Config) MockPayments() bool {
	return c.Payments.Mode == PaymentsMock
}

// Production reports whether the config targets a production deployment.
func (c *Config) Production() bool {
	return c.Env == EnvProduction
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	for key, set := range envOverrides {
		if v, ok := lookup(key); ok && v != "" {
			set(c, v)
		}
	}
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Env == "" {
		c.Env = EnvDevelopment
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "mysql"
	}
	if c.Database.Driver == "mysql" {
		if c.Database.Host == "" {
			c.Database.Host = "127.0.0.1"
		}
		if c.Database.Port == 0 {
			c.Database.Port = 3306
		}
		if c.Database.User == "" {
			c.Database.User = "root"
		}
		if c.Database.Name == "" {
			c.Database.Name = "leadyard"
		}
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.MetricsPath == "" {
		c.Server.MetricsPath = "/metrics"
	}
	if c.Payments.Mode == "" {
		c.Payments.Mode = PaymentsMock
	}
	if c.Payments.LeadPriceCents == 0 {
		c.Payments.LeadPriceCents = 4900
	}
	if c.Payments.Currency == "" {
		c.Payments.Currency = "usd"
	}
	if c.Payments.CheckoutTTL == 0 {
		c.Payments.CheckoutTTL = 24 * time.Hour
	}
	if c.Payments.ExpirySchedule == "" {
		c.Payments.ExpirySchedule = "*/15 * * * *"
	}
	if c.Matching.MaxCandidates == 0 {
		c.Matching.MaxCandidates = MaxCandidates
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	if c.Env != EnvDevelopment && c.Env != EnvProduction {
		errs = append(errs, fmt.Sprintf("env %q must be %q or %q", c.Env, EnvDevelopment, EnvProduction))
	}

	switch c.Database.Driver {
	case "mysql":
		if c.Database.Name == "" {
			errs = append(errs, "database.name is required for mysql")
		}
	case "sqlite":
		if c.Database.Path == "" {
			errs = append(errs, "database.path is required for sqlite")
		}
	default:
		errs = append(errs, fmt.Sprintf("database.driver %q must be mysql or sqlite", c.Database.Driver))
	}

	if c.Auth.JWTSecret == "" {
		errs = append(errs, "auth.jwt_secret is required")
	}

	switch c.Payments.Mode {
	case PaymentsMock:
		if c.Production() {
			errs = append(errs, "payments.mode mock is not allowed in production")
		}
	case PaymentsLive:
		if c.Payments.StripeSecretKey == "" {
			errs = append(errs, "payments.stripe_secret_key is required in live mode")
		}
		if c.Payments.WebhookSecret == "" && !c.Payments.AllowUnsignedWebhooks {
			errs = append(errs, "payments.webhook_secret is required unless allow_unsigned_webhooks is set")
		}
	default:
		errs = append(errs, fmt.Sprintf("payments.mode %q must be mock or live", c.Payments.Mode))
	}
	if c.Payments.AllowUnsignedWebhooks && c.Production() {
		errs = append(errs, "payments.allow_unsigned_webhooks is not allowed in production")
	}
	if c.Payments.LeadPriceCents < 0 {
		errs = append(errs, "payments.lead_price_cents must be positive")
	}
	if c.Matching.MaxCandidates < 0 || c.Matching.MaxCandidates > MaxCandidates {
		errs = append(errs, fmt.Sprintf("matching.max_candidates must be between 1 and %d", MaxCandidates))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
