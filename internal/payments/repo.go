package payments

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/wheeldeal/wheeldeal-backend/pkg/db/models"
	"github.com/wheeldeal/wheeldeal-backend/pkg/enums"
	"github.com/wheeldeal/wheeldeal-backend/pkg/pagination"
)

// SupersededReason is stamped on a live attempt that a newer checkout replaces.
const SupersededReason = "session expired - new checkout created"

// LiveCheckoutConstraint is the partial unique index that allows at most one
// payment_initiated row per (vehicle, buyer) pair.
const LiveCheckoutConstraint = "uq_transactions_live_checkout"

// Repository is the transaction ledger store. Status changes go through
// TransitionStatus so every writer races on the same conditional update.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, txn *models.Transaction) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error)
	FindByGatewaySession(ctx context.Context, sessionID string) (*models.Transaction, error)
	FindLiveForPair(ctx context.Context, vehicleID, buyerID uuid.UUID) (*models.Transaction, error)
	FindCompletedBookingForPair(ctx context.Context, vehicleID, buyerID uuid.UUID) (*models.Transaction, error)
	CancelLiveForPair(ctx context.Context, vehicleID, buyerID uuid.UUID, reason string) (int64, error)
	TransitionStatus(ctx context.Context, id uuid.UUID, from, to enums.TransactionStatus, updates map[string]any) (bool, error)
	UpdateFields(ctx context.Context, id uuid.UUID, updates map[string]any) error
	ListByBuyer(ctx context.Context, buyerID uuid.UUID, params pagination.Params) ([]models.Transaction, string, error)
	ListBySeller(ctx context.Context, sellerID uuid.UUID, params pagination.Params) ([]models.Transaction, string, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository constructs the ledger repository on the provided GORM connection.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, txn *models.Transaction) error {
	return r.db.WithContext(ctx).Create(txn).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	var txn models.Transaction
	if err := r.db.WithContext(ctx).First(&txn, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &txn, nil
}

func (r *repository) FindByGatewaySession(ctx context.Context, sessionID string) (*models.Transaction, error) {
	var txn models.Transaction
	if err := r.db.WithContext(ctx).First(&txn, "gateway_session_id = ?", sessionID).Error; err != nil {
		return nil, err
	}
	return &txn, nil
}

func (r *repository) FindLiveForPair(ctx context.Context, vehicleID, buyerID uuid.UUID) (*models.Transaction, error) {
	var txn models.Transaction
	err := r.db.WithContext(ctx).
		Where("vehicle_id = ? AND buyer_id = ? AND status = ?",
			vehicleID, buyerID, enums.TransactionStatusPaymentInitiated).
		First(&txn).Error
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

// FindCompletedBookingForPair returns the settled initial-booking row for a
// vehicle and buyer, if one exists. Used to reject duplicate advance bookings
// and to resolve the outstanding balance.
func (r *repository) FindCompletedBookingForPair(ctx context.Context, vehicleID, buyerID uuid.UUID) (*models.Transaction, error) {
	var txn models.Transaction
	err := r.db.WithContext(ctx).
		Where("vehicle_id = ? AND buyer_id = ? AND stage = ? AND status = ?",
			vehicleID, buyerID, enums.PurchaseStageInitialBooking, enums.TransactionStatusPaymentCompleted).
		First(&txn).Error
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

// CancelLiveForPair supersedes any still-open attempt for the same vehicle and
// buyer. Returns how many rows were cancelled; 0 means there was nothing live.
func (r *repository) CancelLiveForPair(ctx context.Context, vehicleID, buyerID uuid.UUID, reason string) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Where("vehicle_id = ? AND buyer_id = ? AND status = ?",
			vehicleID, buyerID, enums.TransactionStatusPaymentInitiated).
		Updates(map[string]any{
			"status":        enums.TransactionStatusCancelled,
			"cancel_reason": reason,
		})
	return res.RowsAffected, res.Error
}

// TransitionStatus applies one state-machine edge as a conditional update.
// False with a nil error means another writer moved the row first; callers
// treat that as an already-handled no-op, never as a failure.
func (r *repository) TransitionStatus(ctx context.Context, id uuid.UUID, from, to enums.TransactionStatus, updates map[string]any) (bool, error) {
	values := map[string]any{"status": to}
	for k, v := range updates {
		values[k] = v
	}
	res := r.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Where("id = ? AND status = ?", id, from).
		Updates(values)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) UpdateFields(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *repository) ListByBuyer(ctx context.Context, buyerID uuid.UUID, params pagination.Params) ([]models.Transaction, string, error) {
	return r.list(ctx, "buyer_id = ?", buyerID, params)
}

func (r *repository) ListBySeller(ctx context.Context, sellerID uuid.UUID, params pagination.Params) ([]models.Transaction, string, error) {
	return r.list(ctx, "seller_id = ?", sellerID, params)
}

func (r *repository) list(ctx context.Context, clause string, owner uuid.UUID, params pagination.Params) ([]models.Transaction, string, error) {
	limit := pagination.NormalizeLimit(params.Limit)

	query := r.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Where(clause, owner).
		Order("created_at DESC, id DESC").
		Limit(pagination.LimitWithBuffer(params.Limit))

	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, "", err
	}
	if cursor != nil {
		query = query.Where(
			"(created_at < ?) OR (created_at = ? AND id < ?)",
			cursor.CreatedAt, cursor.CreatedAt, cursor.ID,
		)
	}

	var rows []models.Transaction
	if err := query.Find(&rows).Error; err != nil {
		return nil, "", err
	}

	next := ""
	if len(rows) > limit {
		rows = rows[:limit]
		last := rows[len(rows)-1]
		next = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return rows, next, nil
}
