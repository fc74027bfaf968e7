// internal/services/ledger_service.go
package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/stockpics/backend/internal/i18n"
	"github.com/stockpics/backend/internal/models"
	"github.com/stockpics/backend/internal/utils"
)

// Gateway event types handled by the ledger.
const EventPaymentIntentSucceeded = "payment_intent.succeeded"

// Intent metadata keys written by CreatePaymentIntent.
const (
	MetadataBuyerID  = "buyer_id"
	MetadataImageIDs = "image_ids"
)

// LedgerService is the single writer of purchases and therefore of
// download entitlements.
type LedgerService struct {
	db       *gorm.DB
	gateway  PaymentGateway
	currency string
}

type RecordPurchaseInput struct {
	BuyerID     uuid.UUID
	ImageIDs    []uuid.UUID
	Amount      decimal.Decimal
	Currency    string
	ExternalRef string
}

type ReconcileResult struct {
	EventID  string                    `json:"event_id"`
	Type     string                    `json:"type"`
	Status   models.PaymentEventStatus `json:"status"`
	Created  bool                      `json:"created"`
	Purchase *models.Purchase          `json:"-"`
}

func NewLedgerService(db *gorm.DB, gateway PaymentGateway, currency string) *LedgerService {
	if currency == "" {
		currency = "usd"
	}
	return &LedgerService{db: db, gateway: gateway, currency: currency}
}

// RecordPurchase persists a purchase once per external reference. A repeated
// reference returns the stored purchase with created == false and changes
// nothing. Download counters are incremented only after the purchase commits.
func (s *LedgerService) RecordPurchase(ctx context.Context, in RecordPurchaseInput) (*models.Purchase, bool, error) {
	imageIDs := uniqueIDs(in.ImageIDs)
	if len(imageIDs) == 0 {
		return nil, false, utils.NewInvalidInput(i18n.KeyPaymentEmptyCart, nil)
	}
	if in.Amount.IsNegative() {
		return nil, false, utils.NewInvalidInput(i18n.KeyInvalidInput, errors.New("negative amount"))
	}
	if in.BuyerID == uuid.Nil {
		return nil, false, utils.NewInvalidInput(i18n.KeyInvalidInput, errors.New("missing buyer"))
	}

	currency := strings.ToLower(in.Currency)
	if currency == "" {
		currency = s.currency
	}

	purchase := &models.Purchase{
		BuyerID:     in.BuyerID,
		Amount:      in.Amount.Round(2),
		Currency:    currency,
		PurchasedAt: time.Now().UTC(),
	}
	if in.ExternalRef != "" {
		ref := in.ExternalRef
		purchase.ExternalRef = &ref
	}

	created := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "external_ref"}},
			DoNothing: true,
		}).Omit(clause.Associations).Create(purchase)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return nil
		}

		items := make([]models.PurchaseItem, 0, len(imageIDs))
		for _, id := range imageIDs {
			items = append(items, models.PurchaseItem{
				PurchaseID: purchase.ID,
				ImageID:    id,
				BuyerID:    purchase.BuyerID,
			})
		}
		if err := tx.Create(&items).Error; err != nil {
			return err
		}

		if err := tx.Model(&models.User{}).
			Where("id = ?", purchase.BuyerID).
			UpdateColumn("purchases_count", gorm.Expr("purchases_count + ?", 1)).Error; err != nil {
			return err
		}

		purchase.Items = items
		created = true
		return nil
	})
	if err != nil {
		return nil, false, utils.NewInternal(err)
	}

	if !created {
		if in.ExternalRef == "" {
			return nil, false, utils.NewInternal(errors.New("purchase insert affected no rows"))
		}
		existing, err := s.findByExternalRef(ctx, in.ExternalRef)
		if err != nil {
			return nil, false, err
		}
		logrus.WithFields(logrus.Fields{
			"purchase_id":  existing.ID,
			"external_ref": in.ExternalRef,
		}).Info("Purchase already recorded")
		return existing, false, nil
	}

	s.incrementDownloads(ctx, purchase)

	logrus.WithFields(logrus.Fields{
		"purchase_id":  purchase.ID,
		"buyer_id":     purchase.BuyerID,
		"external_ref": in.ExternalRef,
		"amount":       purchase.Amount.StringFixed(2),
		"images":       len(imageIDs),
	}).Info("Purchase recorded")

	return purchase, true, nil
}

// incrementDownloads bumps each image counter with its own atomic update.
// Missing or deleted images are logged and skipped.
func (s *LedgerService) incrementDownloads(ctx context.Context, purchase *models.Purchase) {
	for _, item := range purchase.Items {
		result := s.db.WithContext(ctx).Model(&models.Image{}).
			Where("id = ?", item.ImageID).
			UpdateColumn("downloads", gorm.Expr("downloads + ?", 1))

		entry := logrus.WithFields(logrus.Fields{
			"purchase_id": purchase.ID,
			"image_id":    item.ImageID,
		})
		switch {
		case result.Error != nil:
			entry.WithError(result.Error).Error("Failed to increment download counter")
		case result.RowsAffected == 0:
			entry.Warn("Purchased image not found, download counter skipped")
		}
	}
}

func (s *LedgerService) findByExternalRef(ctx context.Context, ref string) (*models.Purchase, error) {
	var purchase models.Purchase
	if err := s.db.WithContext(ctx).Preload("Items").Where("external_ref = ?", ref).First(&purchase).Error; err != nil {
		return nil, utils.NewInternal(err)
	}
	return &purchase, nil
}

// HasEntitlement reports whether any purchase by buyer contains image. It
// never fails because an image does not exist.
func (s *LedgerService) HasEntitlement(ctx context.Context, buyerID, imageID uuid.UUID) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.PurchaseItem{}).
		Where("buyer_id = ? AND image_id = ?", buyerID, imageID).
		Count(&count).Error
	if err != nil {
		return false, utils.NewInternal(err)
	}
	return count > 0, nil
}

// ListPurchases returns the buyer's purchases, newest first.
func (s *LedgerService) ListPurchases(ctx context.Context, buyerID uuid.UUID) ([]models.Purchase, error) {
	var purchases []models.Purchase
	err := s.db.WithContext(ctx).Preload("Items").
		Where("buyer_id = ?", buyerID).
		Order("purchased_at DESC").
		Find(&purchases).Error
	if err != nil {
		return nil, utils.NewInternal(err)
	}
	return purchases, nil
}

// ReconcileGatewayEvent verifies a signed webhook delivery and records the
// purchase it confirms. Unverifiable or malformed events fail with
// INVALID_EVENT before anything is written.
func (s *LedgerService) ReconcileGatewayEvent(ctx context.Context, payload []byte, signature string) (*ReconcileResult, error) {
	event, err := s.gateway.ParseEvent(payload, signature)
	if err != nil {
		return nil, utils.NewInvalidEvent(i18n.KeyPaymentInvalidEvent, err)
	}

	result := &ReconcileResult{EventID: event.ID, Type: event.Type}

	if event.Type != EventPaymentIntentSucceeded {
		result.Status = models.PaymentEventStatusIgnored
		s.recordEvent(ctx, event, "", result.Status)
		return result, nil
	}

	if event.Intent == nil || event.Intent.ID == "" {
		return nil, utils.NewInvalidEvent(i18n.KeyPaymentInvalidEvent, errors.New("event carries no payment intent"))
	}

	input, err := purchaseFromIntent(event.Intent)
	if err != nil {
		return nil, utils.NewInvalidEvent(i18n.KeyPaymentInvalidEvent, err)
	}

	purchase, created, err := s.RecordPurchase(ctx, input)
	if err != nil {
		return nil, err
	}

	result.Purchase = purchase
	result.Created = created
	result.Status = models.PaymentEventStatusProcessed
	s.recordEvent(ctx, event, event.Intent.ID, result.Status)

	return result, nil
}

// recordEvent stores the delivery for audit. Redeliveries keep the first row.
func (s *LedgerService) recordEvent(ctx context.Context, event *GatewayEvent, ref string, status models.PaymentEventStatus) {
	if event.ID == "" {
		return
	}

	row := models.PaymentEvent{
		EventID:     event.ID,
		EventType:   event.Type,
		ExternalRef: ref,
		Status:      status,
		ReceivedAt:  time.Now().UTC(),
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error
	if err != nil {
		logrus.WithError(err).WithField("event_id", event.ID).Warn("Failed to record payment event")
	}
}

// purchaseFromIntent extracts the purchase a succeeded intent pays for.
func purchaseFromIntent(intent *PaymentIntent) (RecordPurchaseInput, error) {
	buyerID, err := uuid.Parse(intent.Metadata[MetadataBuyerID])
	if err != nil {
		return RecordPurchaseInput{}, errors.New("intent metadata has no valid buyer_id")
	}

	imageIDs, err := ParseImageIDList(intent.Metadata[MetadataImageIDs])
	if err != nil {
		return RecordPurchaseInput{}, err
	}
	if len(imageIDs) == 0 {
		return RecordPurchaseInput{}, errors.New("intent metadata has no image_ids")
	}

	cents := intent.AmountReceived
	if cents == 0 {
		cents = intent.Amount
	}
	if cents < 0 {
		return RecordPurchaseInput{}, errors.New("intent amount is negative")
	}

	return RecordPurchaseInput{
		BuyerID:     buyerID,
		ImageIDs:    imageIDs,
		Amount:      decimal.New(cents, -2),
		Currency:    intent.Currency,
		ExternalRef: intent.ID,
	}, nil
}

// ParseImageIDList parses a comma separated list of image ids.
func ParseImageIDList(raw string) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := uuid.Parse(part)
		if err != nil {
			return nil, errors.New("malformed image id " + part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func JoinImageIDs(ids []uuid.UUID) string {
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, id.String())
	}
	return strings.Join(parts, ",")
}

func uniqueIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
