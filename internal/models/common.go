// internal/models/common.go
package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Base model with common fields
type BaseModel struct {
	ID        uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

// BeforeCreate assigns the primary key on the application side so the same
// models work on PostgreSQL and SQLite.
func (b *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// Enums
type UserRole string

const (
	UserRoleUser  UserRole = "user"
	UserRoleAdmin UserRole = "admin"
)

type Orientation string

const (
	OrientationLandscape Orientation = "landscape"
	OrientationPortrait  Orientation = "portrait"
	OrientationSquare    Orientation = "square"
)

func (o Orientation) Valid() bool {
	switch o {
	case OrientationLandscape, OrientationPortrait, OrientationSquare:
		return true
	}
	return false
}

// OrientationFromSize classifies pixel dimensions.
func OrientationFromSize(width, height int) Orientation {
	switch {
	case width > height:
		return OrientationLandscape
	case height > width:
		return OrientationPortrait
	default:
		return OrientationSquare
	}
}

type PaymentEventStatus string

const (
	PaymentEventStatusProcessed PaymentEventStatus = "processed"
	PaymentEventStatusIgnored   PaymentEventStatus = "ignored"
)
