package payments

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/wheeldeal/wheeldeal-backend/internal/vehicles"
	"github.com/wheeldeal/wheeldeal-backend/pkg/db"
	"github.com/wheeldeal/wheeldeal-backend/pkg/db/models"
	"github.com/wheeldeal/wheeldeal-backend/pkg/enums"
	pkgerrors "github.com/wheeldeal/wheeldeal-backend/pkg/errors"
	"github.com/wheeldeal/wheeldeal-backend/pkg/logger"
	"github.com/wheeldeal/wheeldeal-backend/pkg/metrics"
	"github.com/wheeldeal/wheeldeal-backend/pkg/pagination"
	"github.com/wheeldeal/wheeldeal-backend/pkg/stripe"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service is the payments core entry point: checkout orchestration, manual
// verification, reconciliation, delivery, and ledger reads.
type Service interface {
	CreateCheckout(ctx context.Context, input CreateCheckoutInput) (*CheckoutResult, error)
	GetTransaction(ctx context.Context, userID uuid.UUID, role enums.UserRole, id uuid.UUID) (*models.Transaction, error)
	ListBuyerTransactions(ctx context.Context, buyerID uuid.UUID, params pagination.Params) ([]models.Transaction, string, error)
	ListSellerTransactions(ctx context.Context, sellerID uuid.UUID, params pagination.Params) ([]models.Transaction, string, error)

	VerifyManual(ctx context.Context, input VerifyManualInput) (*models.Transaction, error)
	ConfirmBooking(ctx context.Context, input ConfirmBookingInput) (*models.Transaction, error)

	CompleteBySession(ctx context.Context, sessionID, paymentID string, trigger string) (bool, error)
	CancelBySession(ctx context.Context, sessionID, reason string) (bool, error)
	FailBySession(ctx context.Context, sessionID, code, description string) (bool, error)
	FailByID(ctx context.Context, transactionID uuid.UUID, code, description string) (bool, error)
	PollVerify(ctx context.Context, userID, transactionID uuid.UUID) (*PollVerifyResult, error)
	RecordClientFailure(ctx context.Context, input RecordClientFailureInput) (*models.Transaction, error)

	Finalize(ctx context.Context, transactionID uuid.UUID) (*models.Transaction, error)
	Refund(ctx context.Context, transactionID uuid.UUID, reason string) (*models.Transaction, error)

	UpdateDeliveryStatus(ctx context.Context, input UpdateDeliveryInput) (*models.Transaction, error)
	ConfirmCollection(ctx context.Context, input UpdateDeliveryInput) (*models.Transaction, error)
}

// ServiceParams packages the dependencies for the payments core.
type ServiceParams struct {
	TxRunner       txRunner
	Transactions   Repository
	Vehicles       vehicles.Repository
	Gate           vehicles.Gate
	Checkout       stripe.CheckoutClient
	Logger         *logger.Logger
	Metrics        *metrics.PaymentMetrics
	BookingPercent int64
	Now            func() time.Time
}

type service struct {
	tx             txRunner
	repo           Repository
	vehicles       vehicles.Repository
	gate           vehicles.Gate
	checkout       stripe.CheckoutClient
	log            *logger.Logger
	metrics        *metrics.PaymentMetrics
	bookingPercent int64
	now            func() time.Time
}

// NewService builds the payments service with the provided dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.TxRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "tx runner required")
	}
	if params.Transactions == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction repository required")
	}
	if params.Vehicles == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "vehicle repository required")
	}
	if params.Gate == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "availability gate required")
	}
	if params.Checkout == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "checkout client required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	percent := params.BookingPercent
	if percent <= 0 {
		percent = DefaultBookingPercent
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		tx:             params.TxRunner,
		repo:           params.Transactions,
		vehicles:       params.Vehicles,
		gate:           params.Gate,
		checkout:       params.Checkout,
		log:            params.Logger,
		metrics:        params.Metrics,
		bookingPercent: percent,
		now:            now,
	}, nil
}

// CreateCheckout runs the full purchase-attempt pipeline: preconditions,
// amount math, supersession of any prior live attempt, and, for card legs,
// a gateway session opened before the row is persisted so a gateway failure
// leaves no orphan row behind.
func (s *service) CreateCheckout(ctx context.Context, input CreateCheckoutInput) (*CheckoutResult, error) {
	if !input.Method.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment method")
	}
	ctx = s.log.WithVehicleID(ctx, input.VehicleID.String())

	vehicle, err := s.vehicles.FindByID(ctx, input.VehicleID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "vehicle not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load vehicle")
	}

	// Balance payments skip the availability check: the buyer already holds
	// the completed booking, and the listing may have been moved off
	// approved since then.
	isBalance := input.PreviousTransactionID != nil
	if !isBalance {
		if vehicle.SellerID == input.BuyerID {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "sellers cannot purchase their own vehicle")
		}
		if vehicle.Status != enums.VehicleStatusApproved {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "vehicle is not available for purchase")
		}
	}

	var previous *models.Transaction
	owed := vehicle.PriceAmount
	stage := stageFor(input.Method, isBalance)
	if isBalance {
		previous, err = s.validateBalanceTarget(ctx, input, vehicle)
		if err != nil {
			return nil, err
		}
		owed = previous.RemainingAmount
	} else if input.Method == enums.PaymentMethodAdvanceUPI {
		if _, err := s.repo.FindCompletedBookingForPair(ctx, vehicle.ID, input.BuyerID); err == nil {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "a booking already exists for this vehicle")
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check existing booking")
		}
	}

	breakdown, err := ComputeAmounts(AmountInput{
		Method:         input.Method,
		AmountOwed:     owed,
		QRAmount:       input.QRAmount,
		CashAmount:     input.CashAmount,
		BookingPercent: s.bookingPercent,
		IsBalance:      isBalance,
	})
	if err != nil {
		s.incCheckout(input.Method, "rejected")
		return nil, err
	}

	txn := &models.Transaction{
		ID:                    uuid.New(),
		VehicleID:             vehicle.ID,
		BuyerID:               input.BuyerID,
		SellerID:              vehicle.SellerID,
		PreviousTransactionID: input.PreviousTransactionID,
		Method:                input.Method,
		Stage:                 stage,
		Status:                enums.TransactionStatusPaymentInitiated,
		TotalAmount:           breakdown.Total,
		BookingAmount:         breakdown.Booking,
		RemainingAmount:       breakdown.Remaining,
	}

	result := &CheckoutResult{Transaction: txn}
	if manual := s.manualLeg(input, breakdown); manual != nil {
		reference := ManualReference(input.Method, vehicle.ID, s.now())
		manual.Reference = reference
		txn.ManualReference = &reference
		txn.ManualMethod = &manual.Method
		result.Manual = manual
	}

	cardAmount, needsSession := s.cardLeg(input, breakdown)
	if needsSession {
		session, err := s.openSession(ctx, txn, vehicle, cardAmount)
		if err != nil {
			s.incCheckout(input.Method, "gateway_error")
			return nil, err
		}
		txn.GatewaySessionID = &session.SessionID
		result.RedirectURL = session.RedirectURL
	}

	if err := s.persistWithSupersede(ctx, txn, vehicle.ID, input.BuyerID); err != nil {
		s.incCheckout(input.Method, "error")
		return nil, err
	}

	s.incCheckout(input.Method, "created")
	s.log.Info(s.log.WithTransactionID(ctx, txn.ID.String()), "checkout created")
	return result, nil
}

// persistWithSupersede cancels any prior live attempt for the pair and
// inserts the new row in one transaction. Two concurrent checkouts can both
// pass the supersede step; the loser's insert then trips the live-checkout
// unique index, so that attempt reruns once and supersedes the winner's row
// (last writer wins). A violation that survives the rerun maps to a conflict
// rather than an internal error.
func (s *service) persistWithSupersede(ctx context.Context, txn *models.Transaction, vehicleID, buyerID uuid.UUID) error {
	err := s.supersedeAndInsert(ctx, txn, vehicleID, buyerID)
	if db.IsUniqueViolation(err, LiveCheckoutConstraint) {
		s.log.Warn(s.log.WithTransactionID(ctx, txn.ID.String()), "concurrent checkout detected, superseding again")
		err = s.supersedeAndInsert(ctx, txn, vehicleID, buyerID)
	}
	if err == nil {
		return nil
	}
	if typed := pkgerrors.As(err); typed != nil {
		return typed
	}
	if db.IsUniqueViolation(err, LiveCheckoutConstraint) {
		return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "another checkout is in flight for this vehicle")
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "persist transaction")
}

func (s *service) supersedeAndInsert(ctx context.Context, txn *models.Transaction, vehicleID, buyerID uuid.UUID) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		superseded, err := repo.CancelLiveForPair(ctx, vehicleID, buyerID, SupersededReason)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "supersede live checkout")
		}
		if superseded > 0 {
			s.log.Info(s.log.WithField(ctx, "superseded", superseded), "cancelled prior live checkout")
		}
		return repo.Create(ctx, txn)
	})
}

func (s *service) validateBalanceTarget(ctx context.Context, input CreateCheckoutInput, vehicle *models.Vehicle) (*models.Transaction, error) {
	previous, err := s.repo.FindByID(ctx, *input.PreviousTransactionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "previous transaction not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load previous transaction")
	}
	if previous.VehicleID != vehicle.ID || previous.BuyerID != input.BuyerID {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "previous transaction does not match this vehicle and buyer")
	}
	if previous.Status != enums.TransactionStatusPaymentCompleted {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "previous booking is not completed")
	}
	if previous.RemainingAmount <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "no remaining balance to pay")
	}
	return previous, nil
}

// manualLeg returns the buyer-facing manual payload for methods that collect
// money outside the gateway, or nil when everything rides the card rail.
func (s *service) manualLeg(input CreateCheckoutInput, breakdown Breakdown) *ManualPayload {
	switch input.Method {
	case enums.PaymentMethodSplitQR:
		return &ManualPayload{Method: enums.ManualMethodUPI, Amount: breakdown.Booking}
	case enums.PaymentMethodSplitCash:
		return &ManualPayload{Method: enums.ManualMethodCash, Amount: breakdown.Booking}
	case enums.PaymentMethodAdvanceUPI:
		sub := enums.ManualMethodUPI
		if input.SubMethod != nil {
			sub = *input.SubMethod
		}
		if sub == enums.ManualMethodCard {
			return nil
		}
		return &ManualPayload{Method: sub, Amount: breakdown.Booking}
	case enums.PaymentMethodCashBooking:
		if input.PreviousTransactionID != nil {
			// Balance settled in cash at handover, confirmed by the seller.
			return &ManualPayload{Method: enums.ManualMethodCash, Amount: breakdown.Remaining}
		}
		return &ManualPayload{Method: enums.ManualMethodCash, Amount: breakdown.Booking}
	default:
		return nil
	}
}

// cardLeg reports the gateway amount for this attempt and whether a hosted
// session should be opened at all.
func (s *service) cardLeg(input CreateCheckoutInput, breakdown Breakdown) (int64, bool) {
	switch input.Method {
	case enums.PaymentMethodFullCard:
		return breakdown.Remaining, true
	case enums.PaymentMethodSplitQR, enums.PaymentMethodSplitCash:
		return breakdown.Remaining, true
	case enums.PaymentMethodAdvanceUPI:
		if input.SubMethod != nil && *input.SubMethod == enums.ManualMethodCard {
			return breakdown.Booking, true
		}
		return 0, false
	default:
		return 0, false
	}
}

func (s *service) openSession(ctx context.Context, txn *models.Transaction, vehicle *models.Vehicle, amount int64) (*stripe.CheckoutSession, error) {
	started := s.now()
	session, err := s.checkout.CreateCheckoutSession(ctx, stripe.CheckoutParams{
		Amount:      amount,
		Description: vehicle.Title,
		Metadata: map[string]string{
			"transaction_id": txn.ID.String(),
			"vehicle_id":     vehicle.ID.String(),
			"buyer_id":       txn.BuyerID.String(),
			"seller_id":      txn.SellerID.String(),
			"total_amount":   strconv.FormatInt(txn.TotalAmount, 10),
			"stage":          txn.Stage.String(),
		},
	})
	if s.metrics != nil {
		s.metrics.ObserveGateway("create_session", s.now().Sub(started))
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeGateway, err, "create checkout session")
	}
	return session, nil
}

func (s *service) GetTransaction(ctx context.Context, userID uuid.UUID, role enums.UserRole, id uuid.UUID) (*models.Transaction, error) {
	txn, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "transaction not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load transaction")
	}
	if role != enums.UserRoleAdmin && txn.BuyerID != userID && txn.SellerID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "transaction does not belong to this user")
	}
	return txn, nil
}

func (s *service) ListBuyerTransactions(ctx context.Context, buyerID uuid.UUID, params pagination.Params) ([]models.Transaction, string, error) {
	return s.repo.ListByBuyer(ctx, buyerID, params)
}

func (s *service) ListSellerTransactions(ctx context.Context, sellerID uuid.UUID, params pagination.Params) ([]models.Transaction, string, error) {
	return s.repo.ListBySeller(ctx, sellerID, params)
}

func stageFor(method enums.PaymentMethod, isBalance bool) enums.PurchaseStage {
	if isBalance {
		return enums.PurchaseStageBalancePayment
	}
	if method.IsBooking() {
		return enums.PurchaseStageInitialBooking
	}
	return enums.PurchaseStageFullPayment
}

func (s *service) incCheckout(method enums.PaymentMethod, outcome string) {
	if s.metrics != nil {
		s.metrics.IncCheckout(method.String(), outcome)
	}
}

func (s *service) incTransition(to enums.TransactionStatus, trigger string) {
	if s.metrics != nil {
		s.metrics.IncTransition(to.String(), trigger)
	}
}
