// internal/services/payment_service.go
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/paymentintent"
	"github.com/stripe/stripe-go/v74/webhook"
	"gorm.io/gorm"

	"github.com/stockpics/backend/internal/config"
	"github.com/stockpics/backend/internal/i18n"
	"github.com/stockpics/backend/internal/models"
	"github.com/stockpics/backend/internal/utils"
)

const IntentStatusSucceeded = "succeeded"

var ErrIntentNotFound = errors.New("payment intent not found")

// PaymentIntent is the gateway-owned charge as seen by this service.
type PaymentIntent struct {
	ID             string
	ClientSecret   string
	Status         string
	Amount         int64
	AmountReceived int64
	Currency       string
	Metadata       map[string]string
}

// GatewayEvent is a verified webhook delivery. Intent is set for
// payment_intent.* events.
type GatewayEvent struct {
	ID     string
	Type   string
	Intent *PaymentIntent
}

type PaymentGateway interface {
	CreateIntent(ctx context.Context, amountCents int64, currency string, metadata map[string]string) (*PaymentIntent, error)
	GetIntent(ctx context.Context, id string) (*PaymentIntent, error)
	ParseEvent(payload []byte, signature string) (*GatewayEvent, error)
}

// ---------- Stripe ----------

type StripeGateway struct {
	intents       paymentintent.Client
	webhookSecret string
}

func NewStripeGateway(cfg config.PaymentConfig) *StripeGateway {
	return &StripeGateway{
		intents:       paymentintent.Client{B: stripe.GetBackend(stripe.APIBackend), Key: cfg.StripeSecretKey},
		webhookSecret: cfg.StripeWebhookSecret,
	}
}

func (g *StripeGateway) CreateIntent(ctx context.Context, amountCents int64, currency string, metadata map[string]string) (*PaymentIntent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amountCents),
		Currency: stripe.String(currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx

	for k, v := range metadata {
		params.AddMetadata(k, v)
	}

	pi, err := g.intents.New(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create payment intent: %w", err)
	}
	return fromStripeIntent(pi), nil
}

func (g *StripeGateway) GetIntent(ctx context.Context, id string) (*PaymentIntent, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	pi, err := g.intents.Get(id, params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.HTTPStatusCode == http.StatusNotFound {
			return nil, ErrIntentNotFound
		}
		return nil, fmt.Errorf("failed to get payment intent: %w", err)
	}
	return fromStripeIntent(pi), nil
}

// ParseEvent checks the Stripe-Signature header against the webhook secret
// before decoding anything.
func (g *StripeGateway) ParseEvent(payload []byte, signature string) (*GatewayEvent, error) {
	if g.webhookSecret == "" {
		return nil, errors.New("webhook secret not configured")
	}

	event, err := webhook.ConstructEventWithOptions(payload, signature, g.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to verify webhook: %w", err)
	}

	out := &GatewayEvent{ID: event.ID, Type: string(event.Type)}
	if event.Data == nil || len(event.Data.Raw) == 0 {
		return out, nil
	}

	if out.Type == EventPaymentIntentSucceeded {
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			return nil, fmt.Errorf("failed to decode payment intent: %w", err)
		}
		out.Intent = fromStripeIntent(&pi)
	}
	return out, nil
}

func fromStripeIntent(pi *stripe.PaymentIntent) *PaymentIntent {
	return &PaymentIntent{
		ID:             pi.ID,
		ClientSecret:   pi.ClientSecret,
		Status:         string(pi.Status),
		Amount:         pi.Amount,
		AmountReceived: pi.AmountReceived,
		Currency:       string(pi.Currency),
		Metadata:       pi.Metadata,
	}
}

// ---------- Service ----------

type PaymentService struct {
	db      *gorm.DB
	gateway PaymentGateway
	ledger  *LedgerService
	config  *config.Config
}

type CreatePaymentIntentRequest struct {
	ImageIDs []string `json:"image_ids" binding:"required,min=1,dive,uuid"`
}

type PaymentIntentResponse struct {
	ClientSecret    string          `json:"client_secret"`
	PaymentIntentID string          `json:"payment_intent_id"`
	Amount          decimal.Decimal `json:"amount"`
	AmountCents     int64           `json:"amount_cents"`
	Currency        string          `json:"currency"`
}

type ConfirmPaymentRequest struct {
	PaymentIntentID string `json:"payment_intent_id" binding:"required"`
}

func NewPaymentService(db *gorm.DB, gateway PaymentGateway, ledger *LedgerService, config *config.Config) *PaymentService {
	return &PaymentService{
		db:      db,
		gateway: gateway,
		ledger:  ledger,
		config:  config,
	}
}

// CreatePaymentIntent prices the requested images server-side and opens an
// intent whose metadata names the buyer and the images.
func (s *PaymentService) CreatePaymentIntent(ctx context.Context, buyerID uuid.UUID, req *CreatePaymentIntentRequest) (*PaymentIntentResponse, error) {
	ids := make([]uuid.UUID, 0, len(req.ImageIDs))
	for _, raw := range req.ImageIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, utils.NewInvalidInput(i18n.KeyInvalidInput, err)
		}
		ids = append(ids, id)
	}
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return nil, utils.NewInvalidInput(i18n.KeyPaymentEmptyCart, nil)
	}

	var images []models.Image
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&images).Error; err != nil {
		return nil, utils.NewInternal(err)
	}
	if len(images) != len(ids) {
		return nil, utils.NewNotFound(i18n.KeyImageNotFound)
	}

	total := decimal.Zero
	for _, img := range images {
		total = total.Add(img.Price)
	}
	cents := total.Shift(2).Round(0).IntPart()
	if cents <= 0 {
		return nil, utils.NewInvalidInput(i18n.KeyPaymentEmptyCart, nil)
	}

	currency := s.config.Payment.Currency
	intent, err := s.gateway.CreateIntent(ctx, cents, currency, map[string]string{
		MetadataBuyerID:  buyerID.String(),
		MetadataImageIDs: JoinImageIDs(ids),
	})
	if err != nil {
		return nil, utils.NewUpstreamFailure(i18n.KeyPaymentGateway, err)
	}

	logrus.WithFields(logrus.Fields{
		"payment_intent_id": intent.ID,
		"buyer_id":          buyerID,
		"amount_cents":      cents,
	}).Info("Payment intent created")

	return &PaymentIntentResponse{
		ClientSecret:    intent.ClientSecret,
		PaymentIntentID: intent.ID,
		Amount:          decimal.New(cents, -2),
		AmountCents:     cents,
		Currency:        currency,
	}, nil
}

// ConfirmPayment records the purchase of a succeeded intent on behalf of the
// buyer named in its metadata. The webhook path may have recorded it first.
func (s *PaymentService) ConfirmPayment(ctx context.Context, buyerID uuid.UUID, req *ConfirmPaymentRequest) (*models.Purchase, bool, error) {
	intent, err := s.gateway.GetIntent(ctx, req.PaymentIntentID)
	if err != nil {
		if errors.Is(err, ErrIntentNotFound) {
			return nil, false, utils.NewNotFound(i18n.KeyPaymentNotFound)
		}
		return nil, false, utils.NewUpstreamFailure(i18n.KeyPaymentGateway, err)
	}

	if intent.Status != IntentStatusSucceeded {
		return nil, false, utils.NewInvalidInput(i18n.KeyPaymentNotCompleted, fmt.Errorf("intent status %s", intent.Status))
	}

	input, err := purchaseFromIntent(intent)
	if err != nil {
		return nil, false, utils.NewInvalidInput(i18n.KeyInvalidInput, err)
	}
	if input.BuyerID != buyerID {
		return nil, false, utils.NewForbidden(i18n.KeyPaymentNotYours)
	}

	return s.ledger.RecordPurchase(ctx, input)
}
