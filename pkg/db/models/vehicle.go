package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/wheeldeal/wheeldeal-backend/pkg/enums"
)

// Vehicle is the listing entity owned by the surrounding CRUD layer. The
// payments core reads it for price/seller checks and writes availability only
// through the vehicles gate.
type Vehicle struct {
	ID          uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	SellerID    uuid.UUID           `gorm:"column:seller_id;type:uuid;not null;index"`
	Title       string              `gorm:"column:title;not null"`
	PriceAmount int64               `gorm:"column:price_amount;not null"`
	Status      enums.VehicleStatus `gorm:"column:status;type:vehicle_status;not null;default:'pending'"`
	Booked      bool                `gorm:"column:booked;not null;default:false"`
	CreatedAt   time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
