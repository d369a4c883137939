package stripe

import (
	"context"
	"fmt"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/checkout/session"
)

// CheckoutParams describes a hosted checkout session request. Amounts are in
// whole currency units; Stripe wants minor units, so the wrapper converts.
type CheckoutParams struct {
	Amount      int64
	Description string
	Metadata    map[string]string
}

// CheckoutSession is the subset of a created session the core cares about.
type CheckoutSession struct {
	SessionID   string
	RedirectURL string
}

// SessionState reports a session's settlement status on retrieval.
type SessionState struct {
	PaymentStatus    string // paid | unpaid | expired
	PaymentReference string // gateway payment id once paid
}

// CheckoutClient exposes the hosted-checkout operations the payments core
// depends on, narrow enough to stub in tests.
type CheckoutClient interface {
	CreateCheckoutSession(ctx context.Context, params CheckoutParams) (*CheckoutSession, error)
	RetrieveSession(ctx context.Context, sessionID string) (*SessionState, error)
}

type checkoutClientWrapper struct {
	currency   string
	successURL string
	cancelURL  string
}

// NewCheckoutClient wraps the configured Stripe client so the payments core can
// be tested against a stub.
func NewCheckoutClient(api *Client) CheckoutClient {
	if api == nil {
		return nil
	}
	return &checkoutClientWrapper{
		currency:   api.Currency(),
		successURL: api.successURL,
		cancelURL:  api.cancelURL,
	}
}

func (w *checkoutClientWrapper) CreateCheckoutSession(ctx context.Context, params CheckoutParams) (*CheckoutSession, error) {
	if params.Amount <= 0 {
		return nil, fmt.Errorf("checkout amount must be positive, got %d", params.Amount)
	}

	sessionParams := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(w.successURL),
		CancelURL:  stripe.String(w.cancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(w.currency),
					UnitAmount: stripe.Int64(params.Amount * 100),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(params.Description),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{},
	}
	sessionParams.Context = ctx
	for key, value := range params.Metadata {
		sessionParams.AddMetadata(key, value)
		if sessionParams.PaymentIntentData.Metadata == nil {
			sessionParams.PaymentIntentData.Metadata = map[string]string{}
		}
		sessionParams.PaymentIntentData.Metadata[key] = value
	}

	created, err := session.New(sessionParams)
	if err != nil {
		return nil, fmt.Errorf("create checkout session: %w", err)
	}

	return &CheckoutSession{
		SessionID:   created.ID,
		RedirectURL: created.URL,
	}, nil
}

func (w *checkoutClientWrapper) RetrieveSession(ctx context.Context, sessionID string) (*SessionState, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("session id is required")
	}

	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	retrieved, err := session.Get(sessionID, params)
	if err != nil {
		return nil, fmt.Errorf("retrieve checkout session: %w", err)
	}

	state := &SessionState{}
	switch {
	case retrieved.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid:
		state.PaymentStatus = "paid"
	case retrieved.Status == stripe.CheckoutSessionStatusExpired:
		state.PaymentStatus = "expired"
	default:
		state.PaymentStatus = "unpaid"
	}
	if retrieved.PaymentIntent != nil {
		state.PaymentReference = retrieved.PaymentIntent.ID
	}
	return state, nil
}
