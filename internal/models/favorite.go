// internal/models/favorite.go
package models

import (
	"time"

	"github.com/google/uuid"
)

type Favorite struct {
	UserID  uuid.UUID `json:"user_id" gorm:"type:uuid;primaryKey"`
	ImageID uuid.UUID `json:"image_id" gorm:"type:uuid;primaryKey;index"`
	AddedAt time.Time `json:"added_at" gorm:"not null"`
}
