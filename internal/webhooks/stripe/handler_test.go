package stripe

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/clarencejohnson126/stripe-webook-server/internal/db"
	"github.com/clarencejohnson126/stripe-webook-server/internal/orders"
)

const testSecret = "whsec_test_secret"

type fakeStore struct {
	mu                 sync.Mutex
	orders             map[string]orders.Order
	failures           []db.ProcessingFailure
	insertErr          error
	failureCtxDeadline bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{orders: make(map[string]orders.Order)}
}

func (s *fakeStore) InsertOrder(_ context.Context, order orders.Order) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertErr != nil {
		return false, s.insertErr
	}
	if _, exists := s.orders[order.SessionID]; exists {
		return false, nil
	}
	s.orders[order.SessionID] = order
	return true, nil
}

func (s *fakeStore) RecordFailure(ctx context.Context, failure db.ProcessingFailure) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, s.failureCtxDeadline = ctx.Deadline()
	s.failures = append(s.failures, failure)
	return nil
}

type fakeSender struct {
	mu   sync.Mutex
	sent []orders.Order
	err  error
}

func (f *fakeSender) SendOrderConfirmation(_ context.Context, order orders.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, order)
	return nil
}

func signedHeader(payload []byte, secret string, ts time.Time) string {
	signature := webhook.ComputeSignature(ts, payload, secret)
	return fmt.Sprintf("t=%d,v1=%s", ts.Unix(), hex.EncodeToString(signature))
}

func checkoutEventBody(sessionJSON string) []byte {
	return []byte(fmt.Sprintf(`{"id":"evt_1","type":"checkout.session.completed","data":{"object":%s}}`, sessionJSON))
}

func serve(h *Handler, body []byte, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if header != "" {
		req.Header.Set(SignatureHeader, header)
	}
	rec := httptest.NewRecorder()
	if err := h.Handle(rec, req); err != nil {
		panic(err)
	}
	return rec
}

func TestHandleCapturesCheckoutCompleted(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	sender := &fakeSender{}
	h := NewHandler(testSecret, store, sender)

	body := checkoutEventBody(`{"id":"cs_1","amount_total":695,"currency":"eur","payment_status":"paid","customer_details":{"email":"buyer@example.com"}}`)
	rec := serve(h, body, signedHeader(body, testSecret, time.Now()))

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: got=%d want=%d body=%s", rec.Code, http.StatusOK, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"received":true`) {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}

	order, ok := store.orders["cs_1"]
	if !ok {
		t.Fatal("expected order cs_1 to be stored")
	}
	if order.AmountMinorUnits != 695 || order.Currency != "eur" {
		t.Fatalf("unexpected stored order: %+v", order)
	}
	if order.Options.BindingType != orders.MetadataUnset {
		t.Fatalf("expected unset binding type, got %q", order.Options.BindingType)
	}
	if len(sender.sent) != 1 || sender.sent[0].Email != "buyer@example.com" {
		t.Fatalf("expected one confirmation email, got %+v", sender.sent)
	}
}

func TestHandleRejectsMissingSignature(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	sender := &fakeSender{}
	h := NewHandler(testSecret, store, sender)

	body := checkoutEventBody(`{"id":"cs_unsigned"}`)
	rec := serve(h, body, "")

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status: got=%d want=%d", rec.Code, http.StatusBadRequest)
	}
	if !strings.HasPrefix(rec.Body.String(), "Webhook Error:") {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
	if len(store.orders) != 0 {
		t.Fatal("expected no stored orders")
	}
	if len(sender.sent) != 0 {
		t.Fatal("expected no email sent")
	}
}

func TestHandleRejectsTamperedPayload(t *testing.T) {
	t.Parallel()

	h := NewHandler(testSecret, newFakeStore(), &fakeSender{})

	body := checkoutEventBody(`{"id":"cs_tampered","amount_total":695}`)
	header := signedHeader(body, testSecret, time.Now())
	tampered := bytes.Replace(body, []byte("695"), []byte("1"), 1)

	rec := serve(h, tampered, header)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status: got=%d want=%d", rec.Code, http.StatusBadRequest)
	}
}

func TestHandleRejectsWrongSecret(t *testing.T) {
	t.Parallel()

	h := NewHandler(testSecret, newFakeStore(), &fakeSender{})

	body := checkoutEventBody(`{"id":"cs_wrong_secret"}`)
	rec := serve(h, body, signedHeader(body, "whsec_other_secret", time.Now()))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status: got=%d want=%d", rec.Code, http.StatusBadRequest)
	}
}

func TestHandleAcknowledgesUnhandledEventTypes(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	sender := &fakeSender{}
	h := NewHandler(testSecret, store, sender)

	body := []byte(`{"id":"evt_2","type":"invoice.paid","data":{"object":{"id":"in_1"}}}`)
	rec := serve(h, body, signedHeader(body, testSecret, time.Now()))

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: got=%d want=%d", rec.Code, http.StatusOK)
	}
	if len(store.orders) != 0 {
		t.Fatal("expected no stored orders for unhandled type")
	}
	if len(sender.sent) != 0 {
		t.Fatal("expected no email for unhandled type")
	}
}

func TestHandleAcknowledgesWhenPersistenceFails(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.insertErr = errors.New("store unreachable")
	sender := &fakeSender{}
	h := NewHandler(testSecret, store, sender)

	body := checkoutEventBody(`{"id":"cs_store_down","customer_details":{"email":"buyer@example.com"}}`)
	rec := serve(h, body, signedHeader(body, testSecret, time.Now()))

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: got=%d want=%d", rec.Code, http.StatusOK)
	}
	if len(store.failures) != 1 || store.failures[0].Stage != db.FailureStagePersist {
		t.Fatalf("expected one persist failure, got %+v", store.failures)
	}
	// Notification is best-effort and independent of the persist outcome.
	if len(sender.sent) != 1 {
		t.Fatalf("expected confirmation attempt despite persist failure, got %d", len(sender.sent))
	}
}

func TestHandleAcknowledgesWhenNotificationFails(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	sender := &fakeSender{err: errors.New("provider rejected message")}
	h := NewHandler(testSecret, store, sender)

	body := checkoutEventBody(`{"id":"cs_mail_down","customer_details":{"email":"buyer@example.com"}}`)
	rec := serve(h, body, signedHeader(body, testSecret, time.Now()))

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: got=%d want=%d", rec.Code, http.StatusOK)
	}
	if _, ok := store.orders["cs_mail_down"]; !ok {
		t.Fatal("expected order to stay persisted after notification failure")
	}
	if len(store.failures) != 1 || store.failures[0].Stage != db.FailureStageNotify {
		t.Fatalf("expected one notify failure, got %+v", store.failures)
	}
	if !store.failureCtxDeadline {
		t.Fatal("expected the failure-ledger write to carry a deadline")
	}
}

func TestHandleRecordsMissingRecipientEmail(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	sender := &fakeSender{}
	h := NewHandler(testSecret, store, sender)

	body := checkoutEventBody(`{"id":"cs_no_email","amount_total":695}`)
	rec := serve(h, body, signedHeader(body, testSecret, time.Now()))

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: got=%d want=%d", rec.Code, http.StatusOK)
	}
	if _, ok := store.orders["cs_no_email"]; !ok {
		t.Fatal("expected order to be persisted without email")
	}
	if len(sender.sent) != 0 {
		t.Fatal("expected no send attempt without recipient")
	}
	if len(store.failures) != 1 || store.failures[0].Stage != db.FailureStageNotify {
		t.Fatalf("expected one notify failure, got %+v", store.failures)
	}
}

func TestHandleDuplicateDeliverySendsOneEmail(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	sender := &fakeSender{}
	h := NewHandler(testSecret, store, sender)

	body := checkoutEventBody(`{"id":"cs_2","customer_details":{"email":"buyer@example.com"}}`)
	header := signedHeader(body, testSecret, time.Now())

	for i := 0; i < 2; i++ {
		if rec := serve(h, body, header); rec.Code != http.StatusOK {
			t.Fatalf("delivery %d: unexpected status %d", i, rec.Code)
		}
	}

	if len(store.orders) != 1 {
		t.Fatalf("expected exactly one stored order, got %d", len(store.orders))
	}
	if len(sender.sent) != 1 {
		t.Fatalf("expected exactly one confirmation email, got %d", len(sender.sent))
	}
}

func TestHandleFailsClosedWithoutOrderStore(t *testing.T) {
	t.Parallel()

	sender := &fakeSender{}
	h := NewHandler(testSecret, nil, sender)

	body := checkoutEventBody(`{"id":"cs_no_store","amount_total":695,"customer_details":{"email":"buyer@example.com"}}`)
	rec := serve(h, body, signedHeader(body, testSecret, time.Now()))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("unexpected status: got=%d want=%d", rec.Code, http.StatusInternalServerError)
	}
	if strings.Contains(rec.Body.String(), `"received":true`) {
		t.Fatalf("expected no acknowledgment without a store: %s", rec.Body.String())
	}
	if len(sender.sent) != 0 {
		t.Fatal("expected no email without a store")
	}
}

func TestHandleFailsClosedWithoutSigningSecret(t *testing.T) {
	t.Parallel()

	h := NewHandler("", newFakeStore(), &fakeSender{})

	body := checkoutEventBody(`{"id":"cs_no_secret"}`)
	rec := serve(h, body, signedHeader(body, testSecret, time.Now()))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("unexpected status: got=%d want=%d", rec.Code, http.StatusInternalServerError)
	}
}
