package stripewebhook

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"

	"github.com/wheeldeal/wheeldeal-backend/internal/payments"
	pkgerrors "github.com/wheeldeal/wheeldeal-backend/pkg/errors"
	"github.com/wheeldeal/wheeldeal-backend/pkg/logger"
	"github.com/wheeldeal/wheeldeal-backend/pkg/metrics"
)

// reconciler is the slice of the payments core the webhook dispatcher drives.
type reconciler interface {
	CompleteBySession(ctx context.Context, sessionID, paymentID, trigger string) (bool, error)
	CancelBySession(ctx context.Context, sessionID, reason string) (bool, error)
	FailBySession(ctx context.Context, sessionID, code, description string) (bool, error)
	FailByID(ctx context.Context, transactionID uuid.UUID, code, description string) (bool, error)
}

// ServiceParams packages the dependencies for the webhook dispatcher.
type ServiceParams struct {
	Payments reconciler
	Logger   *logger.Logger
	Metrics  *metrics.PaymentMetrics
}

// Service turns verified gateway events into reconciliation calls. Unknown
// sessions and events are acknowledged, not errored: the gateway retries on
// anything else and a permanent mismatch would retry forever.
type Service struct {
	payments reconciler
	log      *logger.Logger
	metrics  *metrics.PaymentMetrics
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Payments == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payments service required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &Service{
		payments: params.Payments,
		log:      params.Logger,
		metrics:  params.Metrics,
	}, nil
}

func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}

	var err error
	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted:
		err = s.handleSessionCompleted(ctx, event)
	case stripe.EventTypeCheckoutSessionExpired:
		err = s.handleSessionExpired(ctx, event)
	case stripe.EventTypeCheckoutSessionAsyncPaymentFailed:
		err = s.handleSessionFailed(ctx, event)
	case stripe.EventTypePaymentIntentPaymentFailed:
		err = s.handlePaymentFailed(ctx, event)
	default:
		s.incEvent(string(event.Type), "ignored")
		return nil
	}

	if err != nil {
		if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeNotFound {
			// No transaction for this session. Ack so the gateway stops
			// retrying a delivery we can never match.
			s.log.Warn(s.log.WithField(ctx, "event_id", event.ID), "gateway event matched no transaction")
			s.incEvent(string(event.Type), "unmatched")
			return nil
		}
		s.incEvent(string(event.Type), "error")
		return err
	}
	s.incEvent(string(event.Type), "processed")
	return nil
}

func (s *Service) handleSessionCompleted(ctx context.Context, event *stripe.Event) error {
	session, err := decodeSession(event)
	if err != nil {
		return err
	}
	paymentID := ""
	if session.PaymentIntent != nil {
		paymentID = session.PaymentIntent.ID
	}
	_, err = s.payments.CompleteBySession(ctx, session.ID, paymentID, "webhook")
	return err
}

func (s *Service) handleSessionExpired(ctx context.Context, event *stripe.Event) error {
	session, err := decodeSession(event)
	if err != nil {
		return err
	}
	_, err = s.payments.CancelBySession(ctx, session.ID, payments.ExpiredSessionReason)
	return err
}

func (s *Service) handleSessionFailed(ctx context.Context, event *stripe.Event) error {
	session, err := decodeSession(event)
	if err != nil {
		return err
	}
	_, err = s.payments.FailBySession(ctx, session.ID, "async_payment_failed", "asynchronous payment method failed")
	return err
}

// handlePaymentFailed correlates by the transaction id stamped into the
// payment intent metadata at session creation, since the intent carries no
// session reference of its own.
func (s *Service) handlePaymentFailed(ctx context.Context, event *stripe.Event) error {
	var intent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode payment intent event")
	}

	raw, ok := intent.Metadata["transaction_id"]
	if !ok {
		s.log.Warn(s.log.WithField(ctx, "event_id", event.ID), "payment intent carries no transaction id")
		return nil
	}
	transactionID, err := uuid.Parse(raw)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "parse transaction id from metadata")
	}

	code := "payment_failed"
	description := ""
	if intent.LastPaymentError != nil {
		if intent.LastPaymentError.Code != "" {
			code = string(intent.LastPaymentError.Code)
		}
		description = intent.LastPaymentError.Msg
	}
	_, err = s.payments.FailByID(ctx, transactionID, code, description)
	return err
}

func decodeSession(event *stripe.Event) (*stripe.CheckoutSession, error) {
	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode checkout session event")
	}
	if session.ID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "checkout session id missing")
	}
	return &session, nil
}

func (s *Service) incEvent(eventType, outcome string) {
	if s.metrics != nil {
		s.metrics.IncWebhookEvent(eventType, outcome)
	}
}
