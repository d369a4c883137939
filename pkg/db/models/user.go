package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/wheeldeal/wheeldeal-backend/pkg/enums"
)

// User is the minimal account row the payments core needs for foreign keys and
// authorization checks. Profile management lives in the surrounding CRUD layer.
type User struct {
	ID        uuid.UUID      `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Email     string         `gorm:"column:email;not null;unique"`
	FirstName string         `gorm:"column:first_name"`
	LastName  string         `gorm:"column:last_name"`
	Role      enums.UserRole `gorm:"column:role;type:user_role;not null;default:'buyer'"`
	IsActive  bool           `gorm:"column:is_active;not null;default:true"`
	CreatedAt time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}
