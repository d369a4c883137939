package payments

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/wheeldeal/wheeldeal-backend/pkg/db/models"
	"github.com/wheeldeal/wheeldeal-backend/pkg/enums"
	pkgerrors "github.com/wheeldeal/wheeldeal-backend/pkg/errors"
)

// VerifyManual records the buyer-asserted reference for the manual leg of a
// split payment. Evidence only, not proof: status is never touched here, and
// calling twice simply overwrites the recorded reference.
func (s *service) VerifyManual(ctx context.Context, input VerifyManualInput) (*models.Transaction, error) {
	ref := strings.TrimSpace(input.ManualTransactionID)
	if ref == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "manual transaction id is required")
	}

	txn, err := s.repo.FindByID(ctx, input.TransactionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "transaction not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load transaction")
	}
	if txn.BuyerID != input.UserID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only the buyer can verify the manual leg")
	}
	if !txn.Method.IsSplit() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "manual verification only applies to split payments")
	}

	manualMethod := manualMethodForSplit(txn.Method)
	updates := map[string]any{
		"manual_transaction_id": ref,
		"manual_method":         manualMethod,
	}
	if err := s.repo.UpdateFields(ctx, txn.ID, updates); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record manual reference")
	}

	txn.ManualTransactionID = &ref
	txn.ManualMethod = &manualMethod
	s.log.Info(s.log.WithTransactionID(ctx, txn.ID.String()), "manual leg reference recorded")
	return txn, nil
}

// ConfirmBooking applies a peer-attested completion to an advance_upi or
// cash_booking attempt. Initial bookings keep their remaining amount and only
// reserve the vehicle; balance and full confirmations zero the remaining
// amount and sell it. Either party to the transaction may attest.
func (s *service) ConfirmBooking(ctx context.Context, input ConfirmBookingInput) (*models.Transaction, error) {
	txn, err := s.repo.FindByID(ctx, input.TransactionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "transaction not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load transaction")
	}
	if txn.BuyerID != input.UserID && txn.SellerID != input.UserID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only the buyer or seller can confirm this booking")
	}
	if !txn.Method.IsBooking() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "confirmation only applies to booking payment methods")
	}
	if txn.Status == enums.TransactionStatusPaymentCompleted {
		return txn, nil
	}

	settlesVehicle := txn.Stage != enums.PurchaseStageInitialBooking
	if settlesVehicle && txn.RemainingAmount <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "no remaining balance to pay")
	}

	updates := map[string]any{
		"verification_source": enums.VerificationSourcePeerAttested,
	}
	if settlesVehicle {
		updates["remaining_amount"] = int64(0)
	}
	if input.ExternalRef != nil && strings.TrimSpace(*input.ExternalRef) != "" {
		updates["manual_reference"] = strings.TrimSpace(*input.ExternalRef)
	}

	var applied bool
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		applied, err = repo.TransitionStatus(ctx, txn.ID,
			enums.TransactionStatusPaymentInitiated,
			enums.TransactionStatusPaymentCompleted,
			updates)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "confirm booking")
		}
		if !applied {
			return nil
		}
		gate := s.gate.WithTx(tx)
		if settlesVehicle {
			return gate.MarkSold(ctx, txn.VehicleID)
		}
		return gate.MarkBooked(ctx, txn.VehicleID)
	})
	if err != nil {
		return nil, err
	}
	if !applied {
		// Another writer moved the row off payment_initiated first. A
		// completion that raced us is still a success for the caller.
		current, ferr := s.repo.FindByID(ctx, txn.ID)
		if ferr == nil && current.Status == enums.TransactionStatusPaymentCompleted {
			return current, nil
		}
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "transaction is not awaiting confirmation")
	}

	s.incTransition(enums.TransactionStatusPaymentCompleted, "peer_confirm")
	s.log.Info(s.log.WithTransactionID(ctx, txn.ID.String()), "booking confirmed")
	return s.repo.FindByID(ctx, txn.ID)
}
