package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/wheeldeal/wheeldeal-backend/api/middleware"
	"github.com/wheeldeal/wheeldeal-backend/api/responses"
	"github.com/wheeldeal/wheeldeal-backend/api/validators"
	"github.com/wheeldeal/wheeldeal-backend/internal/payments"
	"github.com/wheeldeal/wheeldeal-backend/pkg/db/models"
	"github.com/wheeldeal/wheeldeal-backend/pkg/enums"
	pkgerrors "github.com/wheeldeal/wheeldeal-backend/pkg/errors"
	"github.com/wheeldeal/wheeldeal-backend/pkg/logger"
	"github.com/wheeldeal/wheeldeal-backend/pkg/pagination"
)

type createCheckoutRequest struct {
	VehicleID             uuid.UUID  `json:"vehicle_id" validate:"required"`
	Method                string     `json:"method" validate:"required"`
	SubMethod             *string    `json:"sub_method,omitempty"`
	QRAmount              int64      `json:"qr_amount,omitempty" validate:"omitempty,gte=0"`
	CashAmount            int64      `json:"cash_amount,omitempty" validate:"omitempty,gte=0"`
	PreviousTransactionID *uuid.UUID `json:"previous_transaction_id,omitempty"`
}

// CreateCheckout opens a purchase attempt for the authenticated buyer.
func CreateCheckout(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}

		var payload createCheckoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		method, err := enums.ParsePaymentMethod(payload.Method)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment method"))
			return
		}

		input := payments.CreateCheckoutInput{
			BuyerID:               middleware.UserIDFromContext(r.Context()),
			VehicleID:             payload.VehicleID,
			Method:                method,
			QRAmount:              payload.QRAmount,
			CashAmount:            payload.CashAmount,
			PreviousTransactionID: payload.PreviousTransactionID,
		}
		if payload.SubMethod != nil {
			sub, parseErr := enums.ParseManualMethod(*payload.SubMethod)
			if parseErr != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, parseErr, "invalid sub method"))
				return
			}
			input.SubMethod = &sub
		}

		result, err := svc.CreateCheckout(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

// GetTransaction returns a single transaction the caller participates in.
func GetTransaction(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}

		transactionID, err := validators.ParsePathUUID(r, "transactionId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		txn, err := svc.GetTransaction(
			r.Context(),
			middleware.UserIDFromContext(r.Context()),
			middleware.RoleFromContext(r.Context()),
			transactionID,
		)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, txn)
	}
}

type transactionPage struct {
	Transactions []models.Transaction `json:"transactions"`
	NextCursor   string               `json:"next_cursor,omitempty"`
}

// ListTransactions returns the caller's transactions from the side their
// role implies: buyers see their purchase attempts, sellers their sales.
func ListTransactions(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params := pagination.Params{
			Limit:  limit,
			Cursor: validators.ParseQueryString(r, "cursor"),
		}

		userID := middleware.UserIDFromContext(r.Context())

		var (
			list   []models.Transaction
			cursor string
		)
		switch middleware.RoleFromContext(r.Context()) {
		case enums.UserRoleSeller:
			list, cursor, err = svc.ListSellerTransactions(r.Context(), userID, params)
		default:
			list, cursor, err = svc.ListBuyerTransactions(r.Context(), userID, params)
		}
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, transactionPage{Transactions: list, NextCursor: cursor})
	}
}

type verifyManualRequest struct {
	ManualTransactionID string `json:"manual_transaction_id" validate:"required,min=1,max=128"`
}

// VerifyManual records the external reference for the manual leg of a split.
func VerifyManual(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}

		transactionID, err := validators.ParsePathUUID(r, "transactionId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload verifyManualRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		txn, err := svc.VerifyManual(r.Context(), payments.VerifyManualInput{
			UserID:              middleware.UserIDFromContext(r.Context()),
			TransactionID:       transactionID,
			ManualTransactionID: payload.ManualTransactionID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, txn)
	}
}

type confirmBookingRequest struct {
	ExternalRef *string `json:"external_ref,omitempty" validate:"omitempty,min=1,max=128"`
}

// ConfirmBooking attests that the manual payment leg changed hands.
func ConfirmBooking(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}

		transactionID, err := validators.ParsePathUUID(r, "transactionId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload confirmBookingRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		txn, err := svc.ConfirmBooking(r.Context(), payments.ConfirmBookingInput{
			UserID:        middleware.UserIDFromContext(r.Context()),
			TransactionID: transactionID,
			ExternalRef:   payload.ExternalRef,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, txn)
	}
}

// PollVerify asks the gateway for the session outcome when the webhook has
// not landed yet, applying whatever terminal state the gateway reports.
func PollVerify(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}

		transactionID, err := validators.ParsePathUUID(r, "transactionId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.PollVerify(r.Context(), middleware.UserIDFromContext(r.Context()), transactionID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

type clientFailureRequest struct {
	ErrorCode        string `json:"error_code" validate:"required,min=1,max=64"`
	ErrorDescription string `json:"error_description,omitempty" validate:"omitempty,max=512"`
}

// RecordClientFailure stores the gateway error the buyer's browser observed.
func RecordClientFailure(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}

		transactionID, err := validators.ParsePathUUID(r, "transactionId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload clientFailureRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		txn, err := svc.RecordClientFailure(r.Context(), payments.RecordClientFailureInput{
			UserID:           middleware.UserIDFromContext(r.Context()),
			TransactionID:    transactionID,
			ErrorCode:        payload.ErrorCode,
			ErrorDescription: payload.ErrorDescription,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, txn)
	}
}

type updateDeliveryRequest struct {
	Status             string     `json:"status" validate:"required"`
	Notes              *string    `json:"notes,omitempty" validate:"omitempty,max=1024"`
	EstimatedReadyDate *time.Time `json:"estimated_ready_date,omitempty"`
}

// UpdateDelivery moves a paid transaction forward through the handover pipeline.
func UpdateDelivery(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}

		transactionID, err := validators.ParsePathUUID(r, "transactionId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload updateDeliveryRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		status, err := enums.ParseDeliveryStatus(payload.Status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid delivery status"))
			return
		}

		txn, err := svc.UpdateDeliveryStatus(r.Context(), payments.UpdateDeliveryInput{
			UserID:             middleware.UserIDFromContext(r.Context()),
			Role:               middleware.RoleFromContext(r.Context()),
			TransactionID:      transactionID,
			Status:             status,
			Notes:              payload.Notes,
			EstimatedReadyDate: payload.EstimatedReadyDate,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, txn)
	}
}

// ConfirmCollection marks the vehicle as handed over to the buyer.
func ConfirmCollection(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}

		transactionID, err := validators.ParsePathUUID(r, "transactionId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		txn, err := svc.ConfirmCollection(r.Context(), payments.UpdateDeliveryInput{
			UserID:        middleware.UserIDFromContext(r.Context()),
			Role:          middleware.RoleFromContext(r.Context()),
			TransactionID: transactionID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, txn)
	}
}

// FinalizeTransaction is the admin action that closes out a paid transaction.
func FinalizeTransaction(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}

		transactionID, err := validators.ParsePathUUID(r, "transactionId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		txn, err := svc.Finalize(r.Context(), transactionID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, txn)
	}
}

type refundRequest struct {
	Reason string `json:"reason" validate:"required,min=1,max=512"`
}

// RefundTransaction is the admin action that reverses a completed payment.
func RefundTransaction(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}

		transactionID, err := validators.ParsePathUUID(r, "transactionId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload refundRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		txn, err := svc.Refund(r.Context(), transactionID, payload.Reason)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, txn)
	}
}
