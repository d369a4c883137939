package vehicles

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/wheeldeal/wheeldeal-backend/pkg/db/models"
	"github.com/wheeldeal/wheeldeal-backend/pkg/enums"
)

// Gate is the only component allowed to change vehicle availability. Both
// operations are idempotent: repeating a flip that already happened is a
// no-op, so duplicate webhook delivery cannot corrupt listing state.
type Gate interface {
	WithTx(tx *gorm.DB) Gate
	MarkSold(ctx context.Context, vehicleID uuid.UUID) error
	MarkBooked(ctx context.Context, vehicleID uuid.UUID) error
}

type gate struct {
	db *gorm.DB
}

// NewGate constructs the availability gate on the provided GORM connection.
func NewGate(db *gorm.DB) Gate {
	return &gate{db: db}
}

func (g *gate) WithTx(tx *gorm.DB) Gate {
	if tx == nil {
		return g
	}
	return &gate{db: tx}
}

// MarkSold flips an approved vehicle to sold. Conditional update: when another
// path already sold the vehicle the statement matches zero rows and the call
// degrades to a no-op.
func (g *gate) MarkSold(ctx context.Context, vehicleID uuid.UUID) error {
	res := g.db.WithContext(ctx).
		Model(&models.Vehicle{}).
		Where("id = ? AND status = ?", vehicleID, enums.VehicleStatusApproved).
		Update("status", enums.VehicleStatusSold)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}

	var vehicle models.Vehicle
	if err := g.db.WithContext(ctx).First(&vehicle, "id = ?", vehicleID).Error; err != nil {
		return err
	}
	if vehicle.Status == enums.VehicleStatusSold {
		return nil
	}
	// A booked vehicle carries a completed token reservation, so the balance
	// completion still sells it even when an admin moved the listing off
	// approved in the meantime.
	if vehicle.Booked {
		return g.db.WithContext(ctx).
			Model(&models.Vehicle{}).
			Where("id = ?", vehicleID).
			Update("status", enums.VehicleStatusSold).Error
	}
	return errors.New("vehicle is not in a sellable state")
}

// MarkBooked records the token-reservation flag while keeping the vehicle in
// approved status so a later balance payment can still complete the sale.
func (g *gate) MarkBooked(ctx context.Context, vehicleID uuid.UUID) error {
	res := g.db.WithContext(ctx).
		Model(&models.Vehicle{}).
		Where("id = ? AND status = ?", vehicleID, enums.VehicleStatusApproved).
		Update("booked", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}

	var vehicle models.Vehicle
	if err := g.db.WithContext(ctx).First(&vehicle, "id = ?", vehicleID).Error; err != nil {
		return err
	}
	// An already-sold vehicle needs no reservation flag: a duplicate booking
	// completion arriving after the sale is a no-op either way.
	if vehicle.Status == enums.VehicleStatusSold {
		return nil
	}
	return errors.New("vehicle is not in a bookable state")
}
