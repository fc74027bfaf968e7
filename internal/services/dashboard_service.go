// internal/services/dashboard_service.go
package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/stockpics/backend/internal/models"
	"github.com/stockpics/backend/internal/utils"
)

type DashboardService struct {
	db     *gorm.DB
	auth   *AuthService
	ledger *LedgerService
}

type DashboardUser struct {
	ID            uuid.UUID       `json:"id"`
	Name          string          `json:"name"`
	Email         string          `json:"email"`
	Avatar        string          `json:"avatar,omitempty"`
	Role          models.UserRole `json:"role"`
	Uploads       int64           `json:"uploads"`
	Purchases     int64           `json:"purchases"`
	TotalEarnings decimal.Decimal `json:"total_earnings"`
	TotalSpent    decimal.Decimal `json:"total_spent"`
	Balance       decimal.Decimal `json:"balance"`
}

type DashboardResponse struct {
	User      DashboardUser             `json:"user"`
	Uploads   []models.PublicImage      `json:"uploads"`
	Purchases []models.PurchaseResponse `json:"purchases"`
}

func NewDashboardService(db *gorm.DB, auth *AuthService, ledger *LedgerService) *DashboardService {
	return &DashboardService{db: db, auth: auth, ledger: ledger}
}

// Get assembles the caller's dashboard. Earnings and spend are derived from
// images and purchases at read time.
func (s *DashboardService) Get(ctx context.Context, userID uuid.UUID) (*DashboardResponse, error) {
	user, err := s.auth.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	var uploads []models.Image
	if err := s.db.WithContext(ctx).Where("photographer_id = ?", userID).Order("created_at DESC").Find(&uploads).Error; err != nil {
		return nil, utils.NewInternal(err)
	}

	purchases, err := s.ledger.ListPurchases(ctx, userID)
	if err != nil {
		return nil, err
	}

	earnings, err := s.Earnings(ctx, userID)
	if err != nil {
		return nil, err
	}
	spent, err := s.Spent(ctx, userID)
	if err != nil {
		return nil, err
	}

	purchaseResponses := make([]models.PurchaseResponse, 0, len(purchases))
	for idx := range purchases {
		purchaseResponses = append(purchaseResponses, purchases[idx].ToResponse())
	}

	return &DashboardResponse{
		User: DashboardUser{
			ID:            user.ID,
			Name:          user.Name,
			Email:         user.Email,
			Avatar:        user.Avatar,
			Role:          user.Role,
			Uploads:       user.UploadsCount,
			Purchases:     user.PurchasesCount,
			TotalEarnings: earnings,
			TotalSpent:    spent,
			Balance:       earnings.Sub(spent),
		},
		Uploads:   models.PublicImages(uploads),
		Purchases: purchaseResponses,
	}, nil
}

// Earnings is the sum of price × downloads over the photographer's images.
func (s *DashboardService) Earnings(ctx context.Context, photographerID uuid.UUID) (decimal.Decimal, error) {
	// Deleted images keep the sales they made.
	return sumDecimal(s.db.WithContext(ctx).Unscoped().Model(&models.Image{}).Where("photographer_id = ?", photographerID), "price * downloads")
}

// Spent is the sum of the buyer's purchase amounts.
func (s *DashboardService) Spent(ctx context.Context, buyerID uuid.UUID) (decimal.Decimal, error) {
	return sumDecimal(s.db.WithContext(ctx).Model(&models.Purchase{}).Where("buyer_id = ?", buyerID), "amount")
}

// sumDecimal scans COALESCE(SUM(expr), 0) of query through database/sql so
// the decimal Scanner sees the raw driver value.
func sumDecimal(query *gorm.DB, expr string) (decimal.Decimal, error) {
	var total decimal.Decimal
	if err := query.Select("COALESCE(SUM(" + expr + "), 0)").Row().Scan(&total); err != nil {
		return decimal.Zero, utils.NewInternal(err)
	}
	return total.Round(2), nil
}
