package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/wheeldeal/wheeldeal-backend/pkg/enums"
)

// Transaction is the ledger entry for a single purchase attempt. Rows are never
// deleted; superseded or failed attempts stay behind for the audit trail.
// VehicleID, BuyerID and SellerID are fixed at creation time.
type Transaction struct {
	ID                    uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	VehicleID             uuid.UUID  `gorm:"column:vehicle_id;type:uuid;not null;index"`
	BuyerID               uuid.UUID  `gorm:"column:buyer_id;type:uuid;not null;index"`
	SellerID              uuid.UUID  `gorm:"column:seller_id;type:uuid;not null;index"`
	PreviousTransactionID *uuid.UUID `gorm:"column:previous_transaction_id;type:uuid"`

	Method enums.PaymentMethod     `gorm:"column:method;type:payment_method;not null"`
	Stage  enums.PurchaseStage     `gorm:"column:stage;type:purchase_stage;not null;default:'full_payment'"`
	Status enums.TransactionStatus `gorm:"column:status;type:transaction_status;not null;default:'pending'"`

	// Whole currency units, never sub-unit fractions.
	TotalAmount     int64 `gorm:"column:total_amount;not null"`
	BookingAmount   int64 `gorm:"column:booking_amount;not null;default:0"`
	RemainingAmount int64 `gorm:"column:remaining_amount;not null"`

	GatewaySessionID *string `gorm:"column:gateway_session_id;uniqueIndex"`
	GatewayPaymentID *string `gorm:"column:gateway_payment_id"`

	ManualReference     *string             `gorm:"column:manual_reference"`
	ManualTransactionID *string             `gorm:"column:manual_transaction_id"`
	ManualMethod        *enums.ManualMethod `gorm:"column:manual_method;type:manual_method"`

	VerificationSource *enums.VerificationSource `gorm:"column:verification_source;type:verification_source"`

	CancelReason     *string `gorm:"column:cancel_reason"`
	ErrorCode        *string `gorm:"column:error_code"`
	ErrorDescription *string `gorm:"column:error_description"`

	DeliveryStatus     enums.DeliveryStatus `gorm:"column:delivery_status;type:delivery_status;not null;default:'processing'"`
	DeliveryNotes      *string              `gorm:"column:delivery_notes"`
	EstimatedReadyDate *time.Time           `gorm:"column:estimated_ready_date"`
	CollectedAt        *time.Time           `gorm:"column:collected_at"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// IsLive reports whether this attempt still holds the (vehicle, buyer) slot.
func (t *Transaction) IsLive() bool {
	return t.Status == enums.TransactionStatusPaymentInitiated
}
