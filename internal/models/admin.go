// internal/models/admin.go
package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type AuditLog struct {
	BaseModel
	UserID       *uuid.UUID        `json:"user_id" gorm:"type:uuid;index"`
	Action       string            `json:"action" gorm:"size:100;not null;index"`
	ResourceType string            `json:"resource_type" gorm:"size:50;not null;index"`
	ResourceID   *uuid.UUID        `json:"resource_id" gorm:"type:uuid;index"`
	NewValues    datatypes.JSONMap `json:"new_values"`
	Status       int               `json:"status"`
	IPAddress    string            `json:"ip_address" gorm:"size:45"`
	UserAgent    string            `json:"user_agent" gorm:"type:text"`
}

// PlatformAnalytics is the admin overview of catalog and sales totals.
type PlatformAnalytics struct {
	TotalImages    int64           `json:"total_images"`
	TotalUsers     int64           `json:"total_users"`
	TotalPurchases int64           `json:"total_purchases"`
	TotalDownloads int64           `json:"total_downloads"`
	TotalRevenue   decimal.Decimal `json:"total_revenue"`
}
