// internal/models/user.go
package models

import (
	"time"

	"golang.org/x/crypto/bcrypt"
)

type User struct {
	BaseModel
	Name           string     `json:"name" gorm:"size:100"`
	Email          string     `json:"email" gorm:"uniqueIndex;size:255;not null"`
	PasswordHash   string     `json:"-" gorm:"size:255"`
	GoogleID       *string    `json:"-" gorm:"uniqueIndex;size:255"`
	Avatar         string     `json:"avatar,omitempty" gorm:"size:512"`
	Role           UserRole   `json:"role" gorm:"type:varchar(20);not null;default:'user'"`
	UploadsCount   int64      `json:"uploads_count" gorm:"not null;default:0"`
	PurchasesCount int64      `json:"purchases_count" gorm:"not null;default:0"`
	LastLoginAt    *time.Time `json:"last_login_at,omitempty"`
}

func (u *User) SetPassword(password string) error {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hashedPassword)
	return nil
}

func (u *User) CheckPassword(password string) error {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password))
}

func (u *User) IsAdmin() bool {
	return u.Role == UserRoleAdmin
}
