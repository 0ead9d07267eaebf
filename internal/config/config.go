package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config carries all runtime configuration. Missing backing-service
// credentials are allowed at startup; they surface through the health
// snapshot and fail the webhook path closed.
type Config struct {
	Environment string
	Server      ServerConfig
	Stripe      StripeConfig
	Database    DatabaseConfig
	Email       EmailConfig
}

type ServerConfig struct {
	Port int
}

type StripeConfig struct {
	WebhookSecret string
	APIKey        string
}

type DatabaseConfig struct {
	Path string
}

type EmailConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

func Load() (Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("app_env", "")
	v.SetDefault("go_env", "")
	v.SetDefault("port", 8080)
	v.SetDefault("orders_db_path", "data/orders")
	v.SetDefault("stripe_webhook_secret", "")
	v.SetDefault("stripe_api_key", "")
	v.SetDefault("smtp_host", "")
	v.SetDefault("smtp_port", 587)
	v.SetDefault("smtp_user", "")
	v.SetDefault("smtp_password", "")
	v.SetDefault("mail_from", "")

	port := v.GetInt("port")
	if port <= 0 || port > 65535 {
		return Config{}, fmt.Errorf("invalid PORT: %d", port)
	}

	smtpPort := v.GetInt("smtp_port")
	if smtpPort <= 0 || smtpPort > 65535 {
		smtpPort = 587
	}

	from := strings.TrimSpace(v.GetString("mail_from"))
	if from == "" {
		from = strings.TrimSpace(v.GetString("smtp_user"))
	}

	cfg := Config{
		Environment: resolveEnvironment(v),
		Server:      ServerConfig{Port: port},
		Stripe: StripeConfig{
			WebhookSecret: strings.TrimSpace(v.GetString("stripe_webhook_secret")),
			APIKey:        strings.TrimSpace(v.GetString("stripe_api_key")),
		},
		Database: DatabaseConfig{
			Path: strings.TrimSpace(v.GetString("orders_db_path")),
		},
		Email: EmailConfig{
			Host:     strings.TrimSpace(v.GetString("smtp_host")),
			Port:     smtpPort,
			User:     strings.TrimSpace(v.GetString("smtp_user")),
			Password: strings.TrimSpace(v.GetString("smtp_password")),
			From:     from,
		},
	}

	if cfg.Database.Path == "" {
		cfg.Database.Path = "data/orders"
	}

	return cfg, nil
}

// StripeConfigured reports whether webhook signature verification can run.
func (c Config) StripeConfigured() bool {
	return c.Stripe.WebhookSecret != ""
}

// EmailConfigured reports whether the SMTP sender has enough configuration
// to attempt a delivery.
func (c Config) EmailConfigured() bool {
	return c.Email.Host != "" && c.Email.From != ""
}

func (c Config) IsLocalDevelopment() bool {
	switch strings.ToLower(strings.TrimSpace(c.Environment)) {
	case "", "local", "dev", "development", "test":
		return true
	default:
		return false
	}
}

func resolveEnvironment(v *viper.Viper) string {
	for _, key := range []string{"app_env", "go_env"} {
		value := strings.TrimSpace(v.GetString(key))
		if value != "" {
			return strings.ToLower(value)
		}
	}
	return "development"
}
