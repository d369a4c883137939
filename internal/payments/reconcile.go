package payments

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/wheeldeal/wheeldeal-backend/pkg/db/models"
	"github.com/wheeldeal/wheeldeal-backend/pkg/enums"
	pkgerrors "github.com/wheeldeal/wheeldeal-backend/pkg/errors"
)

// ExpiredSessionReason is stamped when the gateway reports a session expired.
const ExpiredSessionReason = "checkout session expired"

// CompleteBySession applies a gateway-confirmed completion to the attempt
// holding the given session. The transition is a conditional update, so a
// duplicate webhook or a webhook/poll race applies the side effects exactly
// once: the second writer sees zero rows affected and reports applied=false.
func (s *service) CompleteBySession(ctx context.Context, sessionID, paymentID string, trigger string) (bool, error) {
	txn, err := s.findBySession(ctx, sessionID)
	if err != nil {
		return false, err
	}
	ctx = s.log.WithTransactionID(ctx, txn.ID.String())

	updates := map[string]any{
		"verification_source": enums.VerificationSourceGatewayConfirmed,
	}
	if paymentID != "" {
		updates["gateway_payment_id"] = paymentID
	}

	// An initial-booking card leg only covers the token: the vehicle is
	// reserved, not sold, and the balance stays on the row.
	settlesVehicle := txn.Stage != enums.PurchaseStageInitialBooking
	if settlesVehicle {
		updates["remaining_amount"] = int64(0)
	}

	var applied bool
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		var terr error
		applied, terr = repo.TransitionStatus(ctx, txn.ID,
			enums.TransactionStatusPaymentInitiated,
			enums.TransactionStatusPaymentCompleted,
			updates)
		if terr != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, terr, "complete transaction")
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
		return false, err
	}

	if applied {
		s.incTransition(enums.TransactionStatusPaymentCompleted, trigger)
		s.log.Info(ctx, "payment completed")
	} else {
		s.log.Info(ctx, "completion already applied, skipping")
	}
	return applied, nil
}

// CancelBySession moves a still-open attempt to cancelled, for example when
// the gateway reports the hosted session expired.
func (s *service) CancelBySession(ctx context.Context, sessionID, reason string) (bool, error) {
	txn, err := s.findBySession(ctx, sessionID)
	if err != nil {
		return false, err
	}
	applied, err := s.repo.TransitionStatus(ctx, txn.ID,
		enums.TransactionStatusPaymentInitiated,
		enums.TransactionStatusCancelled,
		map[string]any{"cancel_reason": reason})
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "cancel transaction")
	}
	if applied {
		s.incTransition(enums.TransactionStatusCancelled, "gateway")
		s.log.Info(s.log.WithTransactionID(ctx, txn.ID.String()), "checkout cancelled")
	}
	return applied, nil
}

// FailBySession records a gateway-reported payment failure.
func (s *service) FailBySession(ctx context.Context, sessionID, code, description string) (bool, error) {
	txn, err := s.findBySession(ctx, sessionID)
	if err != nil {
		return false, err
	}
	return s.fail(ctx, txn, code, description, "gateway")
}

// FailByID records a payment failure correlated by transaction id, used when
// the gateway event carries no session reference.
func (s *service) FailByID(ctx context.Context, transactionID uuid.UUID, code, description string) (bool, error) {
	txn, err := s.repo.FindByID(ctx, transactionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, pkgerrors.New(pkgerrors.CodeNotFound, "transaction not found")
		}
		return false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load transaction")
	}
	return s.fail(ctx, txn, code, description, "gateway")
}

func (s *service) fail(ctx context.Context, txn *models.Transaction, code, description, trigger string) (bool, error) {
	updates := map[string]any{}
	if code != "" {
		updates["error_code"] = code
	}
	if description != "" {
		updates["error_description"] = description
	}
	applied, err := s.repo.TransitionStatus(ctx, txn.ID,
		enums.TransactionStatusPaymentInitiated,
		enums.TransactionStatusPaymentFailed,
		updates)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "fail transaction")
	}
	if applied {
		s.incTransition(enums.TransactionStatusPaymentFailed, trigger)
		s.log.Warn(s.log.WithTransactionID(ctx, txn.ID.String()), "payment failed")
	}
	return applied, nil
}

// PollVerify asks the gateway for the session's settlement state and runs the
// matching reconciliation path. Safe to call any number of times: a paid
// session rides the same conditional completion as the webhook.
func (s *service) PollVerify(ctx context.Context, userID, transactionID uuid.UUID) (*PollVerifyResult, error) {
	txn, err := s.repo.FindByID(ctx, transactionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "transaction not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load transaction")
	}
	if txn.BuyerID != userID && txn.SellerID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "transaction does not belong to this user")
	}
	if txn.GatewaySessionID == nil {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "transaction has no gateway session to verify")
	}

	started := s.now()
	state, err := s.checkout.RetrieveSession(ctx, *txn.GatewaySessionID)
	if s.metrics != nil {
		s.metrics.ObserveGateway("retrieve_session", s.now().Sub(started))
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeGateway, err, "retrieve checkout session")
	}

	result := &PollVerifyResult{PaymentStatus: state.PaymentStatus}
	switch state.PaymentStatus {
	case "paid":
		result.Applied, err = s.CompleteBySession(ctx, *txn.GatewaySessionID, state.PaymentReference, "poll")
	case "expired":
		result.Applied, err = s.CancelBySession(ctx, *txn.GatewaySessionID, ExpiredSessionReason)
	default:
		// Still unpaid; nothing to reconcile yet.
	}
	if err != nil {
		return nil, err
	}

	refreshed, err := s.repo.FindByID(ctx, transactionID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reload transaction")
	}
	result.Transaction = refreshed
	return result, nil
}

// RecordClientFailure notes the error the buyer's browser reported. The
// client is untrusted: this never overrides a gateway-confirmed completion,
// it only moves a still-open attempt to payment_failed.
func (s *service) RecordClientFailure(ctx context.Context, input RecordClientFailureInput) (*models.Transaction, error) {
	txn, err := s.repo.FindByID(ctx, input.TransactionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "transaction not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load transaction")
	}
	if txn.BuyerID != input.UserID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "transaction does not belong to this user")
	}

	applied, err := s.fail(ctx, txn, input.ErrorCode, input.ErrorDescription, "client")
	if err != nil {
		return nil, err
	}
	if !applied {
		s.log.Info(s.log.WithTransactionID(ctx, txn.ID.String()), "client failure ignored, transaction already settled")
	}
	return s.repo.FindByID(ctx, txn.ID)
}

// Finalize is the admin step that closes out a settled sale.
func (s *service) Finalize(ctx context.Context, transactionID uuid.UUID) (*models.Transaction, error) {
	applied, err := s.repo.TransitionStatus(ctx, transactionID,
		enums.TransactionStatusPaymentCompleted,
		enums.TransactionStatusCompleted,
		nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "finalize transaction")
	}

	txn, err := s.repo.FindByID(ctx, transactionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "transaction not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reload transaction")
	}
	if !applied && txn.Status != enums.TransactionStatusCompleted {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "only completed payments can be finalized")
	}
	if applied {
		s.incTransition(enums.TransactionStatusCompleted, "admin")
	}
	return txn, nil
}

// Refund marks a settled transaction refunded. Money movement happens outside
// this core; the ledger only records the outcome.
func (s *service) Refund(ctx context.Context, transactionID uuid.UUID, reason string) (*models.Transaction, error) {
	updates := map[string]any{}
	if strings.TrimSpace(reason) != "" {
		updates["cancel_reason"] = strings.TrimSpace(reason)
	}

	applied, err := s.repo.TransitionStatus(ctx, transactionID,
		enums.TransactionStatusPaymentCompleted,
		enums.TransactionStatusRefunded,
		updates)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "refund transaction")
	}
	if !applied {
		applied, err = s.repo.TransitionStatus(ctx, transactionID,
			enums.TransactionStatusCompleted,
			enums.TransactionStatusRefunded,
			updates)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "refund transaction")
		}
	}

	txn, err := s.repo.FindByID(ctx, transactionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "transaction not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reload transaction")
	}
	if !applied && txn.Status != enums.TransactionStatusRefunded {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "only settled payments can be refunded")
	}
	if applied {
		s.incTransition(enums.TransactionStatusRefunded, "admin")
		s.log.Info(s.log.WithTransactionID(ctx, transactionID.String()), "transaction refunded")
	}
	return txn, nil
}

func (s *service) findBySession(ctx context.Context, sessionID string) (*models.Transaction, error) {
	txn, err := s.repo.FindByGatewaySession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no transaction for gateway session").
				WithDetails(map[string]any{"session_id": sessionID})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load transaction by session")
	}
	return txn, nil
}
