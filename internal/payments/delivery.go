package payments

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/wheeldeal/wheeldeal-backend/pkg/db/models"
	"github.com/wheeldeal/wheeldeal-backend/pkg/enums"
	pkgerrors "github.com/wheeldeal/wheeldeal-backend/pkg/errors"
)

// UpdateDeliveryStatus advances the post-payment handover pipeline. The
// machine is forward-only; skipping ahead is allowed, moving backwards is not.
func (s *service) UpdateDeliveryStatus(ctx context.Context, input UpdateDeliveryInput) (*models.Transaction, error) {
	if !input.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid delivery status")
	}

	txn, err := s.loadForDelivery(ctx, input)
	if err != nil {
		return nil, err
	}
	if !txn.DeliveryStatus.CanAdvanceTo(input.Status) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "delivery status cannot move backwards").
			WithDetails(map[string]any{
				"current":   txn.DeliveryStatus.String(),
				"requested": input.Status.String(),
			})
	}

	updates := map[string]any{"delivery_status": input.Status}
	if input.Notes != nil {
		updates["delivery_notes"] = *input.Notes
	}
	if input.EstimatedReadyDate != nil {
		updates["estimated_ready_date"] = *input.EstimatedReadyDate
	}
	if input.Status == enums.DeliveryStatusCollected {
		updates["collected_at"] = s.now()
	}
	if err := s.repo.UpdateFields(ctx, txn.ID, updates); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update delivery status")
	}

	s.log.Info(s.log.WithTransactionID(ctx, txn.ID.String()), "delivery status updated")
	return s.repo.FindByID(ctx, txn.ID)
}

// ConfirmCollection stamps the handover moment by driving the delivery machine
// to its terminal state.
func (s *service) ConfirmCollection(ctx context.Context, input UpdateDeliveryInput) (*models.Transaction, error) {
	input.Status = enums.DeliveryStatusCollected
	return s.UpdateDeliveryStatus(ctx, input)
}

func (s *service) loadForDelivery(ctx context.Context, input UpdateDeliveryInput) (*models.Transaction, error) {
	txn, err := s.repo.FindByID(ctx, input.TransactionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "transaction not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load transaction")
	}
	if input.Role != enums.UserRoleAdmin && txn.SellerID != input.UserID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only the seller can update delivery progress")
	}
	switch txn.Status {
	case enums.TransactionStatusPaymentCompleted, enums.TransactionStatusCompleted:
		return txn, nil
	default:
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "delivery tracking starts after payment completes")
	}
}
