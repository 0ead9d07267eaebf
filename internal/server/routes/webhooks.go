package routes

import (
	"github.com/labstack/echo/v4"

	stripewebhook "github.com/clarencejohnson126/stripe-webook-server/internal/webhooks/stripe"
)

// WebhookRoutes registers the payment-processor webhook endpoint.
type WebhookRoutes struct {
	stripe *stripewebhook.Handler
}

// NewWebhookRoutes constructs webhook routes.
func NewWebhookRoutes(secret string, store stripewebhook.OrderStore, sender stripewebhook.ConfirmationSender) *WebhookRoutes {
	return &WebhookRoutes{
		stripe: stripewebhook.NewHandler(secret, store, sender),
	}
}

// RegisterRoutes registers webhook endpoints.
func (w *WebhookRoutes) RegisterRoutes(s *echo.Echo) {
	s.POST("/webhook", w.handleStripeWebhook)
}

func (w *WebhookRoutes) handleStripeWebhook(c echo.Context) error {
	return w.stripe.Handle(c.Response(), c.Request())
}
