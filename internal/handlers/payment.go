// internal/handlers/payment.go
package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/stockpics/backend/internal/i18n"
	"github.com/stockpics/backend/internal/services"
	"github.com/stockpics/backend/internal/utils"
)

// Stripe payloads are small; anything larger is not a webhook.
const maxWebhookBody = 64 * 1024

type PaymentHandler struct {
	paymentService *services.PaymentService
	ledgerService  *services.LedgerService
}

func NewPaymentHandler(paymentService *services.PaymentService, ledgerService *services.LedgerService) *PaymentHandler {
	return &PaymentHandler{
		paymentService: paymentService,
		ledgerService:  ledgerService,
	}
}

// POST /create-payment-intent
func (h *PaymentHandler) CreatePaymentIntent(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req services.CreatePaymentIntentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BindingErrorResponse(c, err)
		return
	}

	response, err := h.paymentService.CreatePaymentIntent(c.Request.Context(), userID, &req)
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.SuccessResponse(c, response)
}

// POST /confirm-payment
func (h *PaymentHandler) ConfirmPayment(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req services.ConfirmPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BindingErrorResponse(c, err)
		return
	}

	purchase, created, err := h.paymentService.ConfirmPayment(c.Request.Context(), userID, &req)
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"purchase": purchase.ToResponse(),
		"created":  created,
	})
}

// POST /stripe/webhook
func (h *PaymentHandler) StripeWebhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody+1))
	if err != nil || len(payload) > maxWebhookBody {
		utils.HandleError(c, utils.NewInvalidEvent(i18n.KeyPaymentInvalidEvent, err))
		return
	}

	result, err := h.ledgerService.ReconcileGatewayEvent(c.Request.Context(), payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"received": true,
		"event_id": result.EventID,
		"status":   result.Status,
	})
}
