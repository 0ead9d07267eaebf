package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	stripeapi "github.com/stripe/stripe-go/v82"

	"github.com/clarencejohnson126/stripe-webook-server/internal/config"
	"github.com/clarencejohnson126/stripe-webook-server/internal/db"
	"github.com/clarencejohnson126/stripe-webook-server/internal/email"
	"github.com/clarencejohnson126/stripe-webook-server/internal/server"
	"github.com/clarencejohnson126/stripe-webook-server/internal/server/routes"
	stripewebhook "github.com/clarencejohnson126/stripe-webook-server/internal/webhooks/stripe"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logLevel := slog.LevelInfo
	if cfg.IsLocalDevelopment() {
		logLevel = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(log)

	// Missing backing-service credentials degrade readiness instead of
	// aborting startup; the webhook path fails closed on its own.
	if !cfg.StripeConfigured() {
		slog.Warn("STRIPE_WEBHOOK_SECRET not set, webhook endpoint will reject deliveries")
	}
	if cfg.Stripe.APIKey != "" {
		stripeapi.Key = cfg.Stripe.APIKey
	}

	var store stripewebhook.OrderStore
	database, err := db.New(cfg.Database.Path)
	if err != nil {
		slog.Error("Failed to open database, webhook deliveries will be rejected until it is restored", "error", err)
	} else {
		store = database
		defer func() {
			if err := database.Close(); err != nil {
				slog.Error("Failed to close database", "error", err)
			}
		}()
	}

	var sender stripewebhook.ConfirmationSender
	smtpSender, err := email.NewSMTPSender(cfg.Email)
	if err != nil {
		slog.Warn("Email sender unavailable, confirmations will be skipped", "error", err)
	} else {
		sender = smtpSender
	}

	health := routes.ServiceHealth{
		Environment: cfg.Environment,
		Stripe:      cfg.StripeConfigured(),
		Database:    store != nil,
		Email:       sender != nil,
	}

	srv := server.New(log)
	srv.RegisterRouter(routes.NewStatusRoutes(health))
	srv.RegisterRouter(routes.NewWebhookRoutes(cfg.Stripe.WebhookSecret, store, sender))

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	slog.Info("Starting server", "port", cfg.Server.Port, "environment", cfg.Environment)
	slog.Error("Closing server", "error", srv.Start(addr))
}
