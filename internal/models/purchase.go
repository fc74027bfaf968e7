// internal/models/purchase.go
package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Purchase is an entitlement record. It is written once by a confirmed
// payment and never updated or deleted.
type Purchase struct {
	ID          uuid.UUID       `json:"id" gorm:"type:uuid;primaryKey"`
	BuyerID     uuid.UUID       `json:"buyer_id" gorm:"type:uuid;not null;index"`
	Amount      decimal.Decimal `json:"total_amount" gorm:"type:decimal(10,2);not null"`
	Currency    string          `json:"currency" gorm:"size:3;not null;default:'usd'"`
	ExternalRef *string         `json:"payment_reference,omitempty" gorm:"size:255;uniqueIndex"`
	PurchasedAt time.Time       `json:"purchased_at" gorm:"not null;index"`

	Items []PurchaseItem `json:"-" gorm:"foreignKey:PurchaseID"`
}

func (p *Purchase) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.PurchasedAt.IsZero() {
		p.PurchasedAt = time.Now().UTC()
	}
	return nil
}

// PurchaseItem links a purchase to one image. BuyerID is denormalized so the
// entitlement lookup is a single indexed query.
type PurchaseItem struct {
	PurchaseID uuid.UUID `json:"purchase_id" gorm:"type:uuid;primaryKey"`
	ImageID    uuid.UUID `json:"image_id" gorm:"type:uuid;primaryKey;index:idx_purchase_items_buyer_image,priority:2"`
	BuyerID    uuid.UUID `json:"buyer_id" gorm:"type:uuid;not null;index:idx_purchase_items_buyer_image,priority:1"`
}

func (p *Purchase) ImageIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(p.Items))
	for _, item := range p.Items {
		ids = append(ids, item.ImageID)
	}
	return ids
}

// PurchaseResponse is the API shape of a purchase.
type PurchaseResponse struct {
	ID          uuid.UUID       `json:"id"`
	BuyerID     uuid.UUID       `json:"buyer_id"`
	ImageIDs    []uuid.UUID     `json:"image_ids"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Currency    string          `json:"currency"`
	Reference   string          `json:"payment_reference,omitempty"`
	PurchasedAt time.Time       `json:"purchased_at"`
}

func (p *Purchase) ToResponse() PurchaseResponse {
	resp := PurchaseResponse{
		ID:          p.ID,
		BuyerID:     p.BuyerID,
		ImageIDs:    p.ImageIDs(),
		TotalAmount: p.Amount,
		Currency:    p.Currency,
		PurchasedAt: p.PurchasedAt,
	}
	if p.ExternalRef != nil {
		resp.Reference = *p.ExternalRef
	}
	return resp
}

// PaymentEvent records every verified gateway event that reached the webhook.
type PaymentEvent struct {
	EventID     string             `json:"event_id" gorm:"primaryKey;size:255"`
	EventType   string             `json:"event_type" gorm:"size:100;not null;index"`
	ExternalRef string             `json:"external_ref" gorm:"size:255;index"`
	Status      PaymentEventStatus `json:"status" gorm:"type:varchar(20);not null"`
	ReceivedAt  time.Time          `json:"received_at" gorm:"not null"`
}
