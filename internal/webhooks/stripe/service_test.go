package stripewebhook

import (
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"

	pkgerrors "github.com/wheeldeal/wheeldeal-backend/pkg/errors"
	"github.com/wheeldeal/wheeldeal-backend/pkg/logger"
)

type reconcilerCall struct {
	op        string
	sessionID string
	paymentID string
	reason    string
	code      string
	txnID     uuid.UUID
}

type stubReconciler struct {
	calls []reconcilerCall
	err   error
}

func (s *stubReconciler) CompleteBySession(ctx context.Context, sessionID, paymentID, trigger string) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	s.calls = append(s.calls, reconcilerCall{op: "complete", sessionID: sessionID, paymentID: paymentID})
	return true, nil
}

func (s *stubReconciler) CancelBySession(ctx context.Context, sessionID, reason string) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	s.calls = append(s.calls, reconcilerCall{op: "cancel", sessionID: sessionID, reason: reason})
	return true, nil
}

func (s *stubReconciler) FailBySession(ctx context.Context, sessionID, code, description string) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	s.calls = append(s.calls, reconcilerCall{op: "fail_session", sessionID: sessionID, code: code})
	return true, nil
}

func (s *stubReconciler) FailByID(ctx context.Context, transactionID uuid.UUID, code, description string) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	s.calls = append(s.calls, reconcilerCall{op: "fail_id", txnID: transactionID, code: code})
	return true, nil
}

func newTestService(t *testing.T, rec *stubReconciler) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Payments: rec,
		Logger:   logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
	})
	if err != nil {
		t.Fatalf("service constructor failed: %v", err)
	}
	return svc
}

func sessionEvent(t *testing.T, eventType stripe.EventType, payload map[string]any) *stripe.Event {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return &stripe.Event{
		ID:   "evt_" + uuid.NewString()[:8],
		Type: eventType,
		Data: &stripe.EventData{Raw: raw},
	}
}

func TestHandleEventSessionCompleted(t *testing.T) {
	rec := &stubReconciler{}
	svc := newTestService(t, rec)

	event := sessionEvent(t, stripe.EventTypeCheckoutSessionCompleted, map[string]any{
		"id":             "cs_test_done",
		"payment_intent": map[string]any{"id": "pi_done"},
	})
	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if len(rec.calls) != 1 || rec.calls[0].op != "complete" {
		t.Fatalf("unexpected calls %+v", rec.calls)
	}
	if rec.calls[0].sessionID != "cs_test_done" || rec.calls[0].paymentID != "pi_done" {
		t.Fatalf("unexpected correlation %+v", rec.calls[0])
	}
}

func TestHandleEventSessionExpired(t *testing.T) {
	rec := &stubReconciler{}
	svc := newTestService(t, rec)

	event := sessionEvent(t, stripe.EventTypeCheckoutSessionExpired, map[string]any{"id": "cs_test_exp"})
	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if len(rec.calls) != 1 || rec.calls[0].op != "cancel" {
		t.Fatalf("unexpected calls %+v", rec.calls)
	}
}

func TestHandleEventPaymentFailedViaMetadata(t *testing.T) {
	rec := &stubReconciler{}
	svc := newTestService(t, rec)

	txnID := uuid.New()
	event := sessionEvent(t, stripe.EventTypePaymentIntentPaymentFailed, map[string]any{
		"id":       "pi_fail",
		"metadata": map[string]string{"transaction_id": txnID.String()},
		"last_payment_error": map[string]any{
			"code":    "card_declined",
			"message": "Your card was declined.",
		},
	})
	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if len(rec.calls) != 1 || rec.calls[0].op != "fail_id" {
		t.Fatalf("unexpected calls %+v", rec.calls)
	}
	if rec.calls[0].txnID != txnID || rec.calls[0].code != "card_declined" {
		t.Fatalf("unexpected correlation %+v", rec.calls[0])
	}
}

func TestHandleEventUnknownSessionAcknowledged(t *testing.T) {
	rec := &stubReconciler{err: pkgerrors.New(pkgerrors.CodeNotFound, "no transaction for gateway session")}
	svc := newTestService(t, rec)

	event := sessionEvent(t, stripe.EventTypeCheckoutSessionCompleted, map[string]any{"id": "cs_unknown"})
	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("unknown sessions must be absorbed, got %v", err)
	}
}

func TestHandleEventUnhandledTypeIgnored(t *testing.T) {
	rec := &stubReconciler{}
	svc := newTestService(t, rec)

	event := sessionEvent(t, stripe.EventTypeInvoicePaid, map[string]any{"id": "in_123"})
	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("expected silent ignore got %v", err)
	}
	if len(rec.calls) != 0 {
		t.Fatalf("unexpected calls %+v", rec.calls)
	}
}

func TestHandleEventInternalErrorPropagates(t *testing.T) {
	rec := &stubReconciler{err: pkgerrors.New(pkgerrors.CodeInternal, "db down")}
	svc := newTestService(t, rec)

	event := sessionEvent(t, stripe.EventTypeCheckoutSessionCompleted, map[string]any{"id": "cs_test"})
	if err := svc.HandleEvent(context.Background(), event); err == nil {
		t.Fatal("infrastructure failures must propagate so the gateway retries")
	}
}

type stubIdempotencyStore struct {
	keys map[string]string
}

func (s *stubIdempotencyStore) Get(ctx context.Context, key string) (string, error) {
	return s.keys[key], nil
}

func (s *stubIdempotencyStore) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	s.keys[key] = "1"
	return nil
}

func (s *stubIdempotencyStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if _, ok := s.keys[key]; ok {
		return false, nil
	}
	s.keys[key] = "1"
	return true, nil
}

func (s *stubIdempotencyStore) IdempotencyKey(scope, id string) string {
	return scope + ":" + id
}

func (s *stubIdempotencyStore) Del(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		delete(s.keys, key)
	}
	return nil
}

func TestIdempotencyGuardDeduplicates(t *testing.T) {
	store := &stubIdempotencyStore{keys: map[string]string{}}
	guard, err := NewIdempotencyGuard(store, time.Hour, "stripe-events")
	if err != nil {
		t.Fatalf("guard constructor failed: %v", err)
	}

	seen, err := guard.CheckAndMark(context.Background(), "evt_1")
	if err != nil || seen {
		t.Fatalf("first delivery must pass, seen=%v err=%v", seen, err)
	}
	seen, err = guard.CheckAndMark(context.Background(), "evt_1")
	if err != nil || !seen {
		t.Fatalf("second delivery must be flagged, seen=%v err=%v", seen, err)
	}

	if err := guard.Delete(context.Background(), "evt_1"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	seen, _ = guard.CheckAndMark(context.Background(), "evt_1")
	if seen {
		t.Fatal("released event must pass again")
	}
}
