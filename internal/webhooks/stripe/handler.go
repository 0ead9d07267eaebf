package stripe

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	stripeapi "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/clarencejohnson126/stripe-webook-server/internal/db"
	"github.com/clarencejohnson126/stripe-webook-server/internal/orders"
)

const (
	// SignatureHeader carries the payment processor's payload signature.
	SignatureHeader = "Stripe-Signature"

	maxPayloadBytes = 1 << 20
	persistTimeout  = 5 * time.Second
	notifyTimeout   = 10 * time.Second
)

// OrderStore persists materialized orders and absorbed failures.
type OrderStore interface {
	InsertOrder(ctx context.Context, order orders.Order) (bool, error)
	RecordFailure(ctx context.Context, failure db.ProcessingFailure) error
}

// ConfirmationSender delivers order-confirmation emails.
type ConfirmationSender interface {
	SendOrderConfirmation(ctx context.Context, order orders.Order) error
}

// Handler processes payment-processor webhook deliveries.
//
// The acknowledgment contract: a request is rejected with 400 only when
// signature verification fails, and with 500 only when a required client
// (signing secret, order store) was never constructed — the sender then
// redelivers once the configuration is repaired. Every authenticated
// delivery against a fully configured pipeline is acknowledged with 200
// regardless of persistence or notification outcome, because the sender
// redelivers on anything else and redelivery is handled by the idempotent
// insert instead.
type Handler struct {
	secret string
	store  OrderStore
	sender ConfirmationSender
	now    func() time.Time
}

// NewHandler constructs a webhook handler. A nil store makes the webhook
// path fail closed with 500, since a dropped order would be unrecoverable.
// A nil sender only degrades notification to a recorded failure.
func NewHandler(secret string, store OrderStore, sender ConfirmationSender) *Handler {
	return &Handler{
		secret: secret,
		store:  store,
		sender: sender,
		now:    time.Now,
	}
}

type ackResponse struct {
	Received  bool   `json:"received"`
	RequestID string `json:"requestId,omitempty"`
}

// Handle verifies and processes one webhook delivery.
func (h *Handler) Handle(w http.ResponseWriter, r *http.Request) error {
	if h.secret == "" {
		http.Error(w, "webhook signing secret not configured", http.StatusInternalServerError)
		return nil
	}
	// Without a store an order could neither be captured nor left in the
	// failure ledger, so redelivery is the only recovery path.
	if h.store == nil {
		http.Error(w, "order store not configured", http.StatusInternalServerError)
		return nil
	}

	// Verification needs the exact raw bytes; any re-encoding breaks the
	// signature.
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxPayloadBytes))
	if err != nil {
		http.Error(w, "Webhook Error: unreadable payload", http.StatusBadRequest)
		return nil
	}

	// The endpoint's API version is pinned in the processor dashboard and
	// does not have to match the SDK's.
	event, err := webhook.ConstructEventWithOptions(payload, r.Header.Get(SignatureHeader), h.secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		http.Error(w, "Webhook Error: "+err.Error(), http.StatusBadRequest)
		return nil
	}

	switch event.Type {
	case stripeapi.EventTypeCheckoutSessionCompleted:
		h.processCheckoutCompleted(r.Context(), event)
	default:
		slog.Info("ignoring unhandled event type", "type", event.Type, "event_id", event.ID)
	}

	requestID := w.Header().Get("X-Request-Id")
	if requestID == "" {
		requestID = r.Header.Get("X-Request-Id")
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	return json.NewEncoder(w).Encode(ackResponse{Received: true, RequestID: requestID})
}

func (h *Handler) processCheckoutCompleted(ctx context.Context, event stripeapi.Event) {
	var session stripeapi.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		slog.Error("undecodable checkout session payload", "event_id", event.ID, "error", err)
		return
	}
	if session.ID == "" {
		slog.Error("checkout session without id", "event_id", event.ID)
		return
	}

	order := orders.FromCheckoutSession(&session, h.now())
	slog.Info("checkout session completed", "session_id", order.SessionID, "amount", order.AmountMinorUnits, "currency", order.Currency)

	if duplicate := h.persist(ctx, order); duplicate {
		// The first delivery already triggered the confirmation email.
		slog.Info("duplicate delivery ignored", "session_id", order.SessionID)
		return
	}
	h.notify(ctx, order)
}

// persist runs the idempotent insert. A store fault is absorbed and
// recorded; it never reaches the response path. Returns true when the order
// was already stored.
func (h *Handler) persist(ctx context.Context, order orders.Order) bool {
	persistCtx, cancel := context.WithTimeout(ctx, persistTimeout)
	defer cancel()

	inserted, err := h.store.InsertOrder(persistCtx, order)
	if err != nil {
		slog.Error("failed to persist order", "session_id", order.SessionID, "error", err)
		h.recordFailure(ctx, order.SessionID, db.FailureStagePersist, err.Error())
		return false
	}
	return !inserted
}

// notify makes exactly one delivery attempt.
func (h *Handler) notify(ctx context.Context, order orders.Order) {
	if order.Email == "" {
		slog.Warn("order has no recipient email, skipping confirmation", "session_id", order.SessionID)
		h.recordFailure(ctx, order.SessionID, db.FailureStageNotify, "missing recipient email")
		return
	}
	if h.sender == nil {
		slog.Warn("email sender unavailable, skipping confirmation", "session_id", order.SessionID)
		h.recordFailure(ctx, order.SessionID, db.FailureStageNotify, "email sender not configured")
		return
	}

	notifyCtx, cancel := context.WithTimeout(ctx, notifyTimeout)
	defer cancel()

	if err := h.sender.SendOrderConfirmation(notifyCtx, order); err != nil {
		slog.Error("failed to send order confirmation", "session_id", order.SessionID, "error", err)
		h.recordFailure(ctx, order.SessionID, db.FailureStageNotify, err.Error())
	}
}

func (h *Handler) recordFailure(ctx context.Context, sessionID, stage, detail string) {
	recordCtx, cancel := context.WithTimeout(ctx, persistTimeout)
	defer cancel()

	failure := db.ProcessingFailure{SessionID: sessionID, Stage: stage, Detail: detail}
	if err := h.store.RecordFailure(recordCtx, failure); err != nil {
		slog.Error("failed to record processing failure", "session_id", sessionID, "stage", stage, "error", err)
	}
}
