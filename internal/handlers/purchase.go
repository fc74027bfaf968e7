// internal/handlers/purchase.go
package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/stockpics/backend/internal/models"
	"github.com/stockpics/backend/internal/services"
	"github.com/stockpics/backend/internal/utils"
)

type PurchaseHandler struct {
	ledgerService *services.LedgerService
}

func NewPurchaseHandler(ledgerService *services.LedgerService) *PurchaseHandler {
	return &PurchaseHandler{
		ledgerService: ledgerService,
	}
}

// GET /purchases
func (h *PurchaseHandler) ListPurchases(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	purchases, err := h.ledgerService.ListPurchases(c.Request.Context(), userID)
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	response := make([]models.PurchaseResponse, 0, len(purchases))
	for idx := range purchases {
		response = append(response, purchases[idx].ToResponse())
	}
	utils.SuccessResponse(c, gin.H{"purchases": response})
}

// GET /purchases/has-image/:image_id
func (h *PurchaseHandler) HasImage(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	imageID, err := uuid.Parse(c.Param("image_id"))
	if err != nil {
		// A malformed id can never have been purchased.
		utils.SuccessResponse(c, gin.H{"purchased": false})
		return
	}

	purchased, err := h.ledgerService.HasEntitlement(c.Request.Context(), userID, imageID)
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"purchased": purchased})
}
