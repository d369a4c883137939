package payments

import (
	"time"

	"github.com/google/uuid"

	"github.com/wheeldeal/wheeldeal-backend/pkg/db/models"
	"github.com/wheeldeal/wheeldeal-backend/pkg/enums"
)

// CreateCheckoutInput is the validated request for a new purchase attempt.
// PreviousTransactionID marks a balance payment against an earlier booking.
// SubMethod only applies to advance_upi and chooses how the token leg is
// collected (card opens a gateway session, upi/cash hand out a reference).
type CreateCheckoutInput struct {
	BuyerID               uuid.UUID
	VehicleID             uuid.UUID
	Method                enums.PaymentMethod
	SubMethod             *enums.ManualMethod
	QRAmount              int64
	CashAmount            int64
	PreviousTransactionID *uuid.UUID
}

// ManualPayload is the buyer-facing slip for the manual leg of an attempt.
type ManualPayload struct {
	Reference string             `json:"reference"`
	Method    enums.ManualMethod `json:"method"`
	Amount    int64              `json:"amount"`
}

// CheckoutResult is what createCheckout hands back to the API layer. RedirectURL
// is empty for purely manual methods; Manual is nil when there is no manual leg.
type CheckoutResult struct {
	Transaction *models.Transaction `json:"transaction"`
	RedirectURL string              `json:"redirectUrl,omitempty"`
	Manual      *ManualPayload      `json:"manual,omitempty"`
}

// VerifyManualInput records the external id of an already-collected manual leg.
type VerifyManualInput struct {
	UserID              uuid.UUID
	TransactionID       uuid.UUID
	ManualTransactionID string
}

// ConfirmBookingInput attests that the manual portion of a booking changed hands.
type ConfirmBookingInput struct {
	UserID        uuid.UUID
	TransactionID uuid.UUID
	ExternalRef   *string
}

// RecordClientFailureInput carries the gateway error the buyer's browser saw.
type RecordClientFailureInput struct {
	UserID           uuid.UUID
	TransactionID    uuid.UUID
	ErrorCode        string
	ErrorDescription string
}

// PollVerifyResult reports the reconciliation outcome of a poll round trip.
type PollVerifyResult struct {
	Transaction   *models.Transaction `json:"transaction"`
	PaymentStatus string              `json:"paymentStatus"`
	Applied       bool                `json:"applied"`
}

// UpdateDeliveryInput advances the post-payment delivery pipeline.
type UpdateDeliveryInput struct {
	UserID             uuid.UUID
	Role               enums.UserRole
	TransactionID      uuid.UUID
	Status             enums.DeliveryStatus
	Notes              *string
	EstimatedReadyDate *time.Time
}
