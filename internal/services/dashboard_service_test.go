// internal/services/dashboard_service_test.go
package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stockpics/backend/internal/models"
	"github.com/stockpics/backend/internal/testutil"
	"github.com/stockpics/backend/internal/utils"
)

func TestDashboardDerivesEarningsAndSpend(t *testing.T) {
	f := newCatalogFixture(t)
	ctx := context.Background()
	cfg := testConfig()
	auth := NewAuthService(f.db, cfg, utils.NewTokenManager(cfg.JWT.SecretKey, 1, cfg.JWT.Issuer), &fakeIdentity{})
	dashboard := NewDashboardService(f.db, auth, f.ledger)

	buyer := testutil.CreateUser(t, f.db, "buyer@example.com", models.UserRoleUser)
	cheap := testutil.CreateImage(t, f.db, f.owner.ID, "cheap", "2.50")
	dear := testutil.CreateImage(t, f.db, f.owner.ID, "dear", "10.00")

	record := func(ref string, amount string, ids ...uuid.UUID) {
		_, _, err := f.ledger.RecordPurchase(ctx, RecordPurchaseInput{
			BuyerID: buyer.ID, ImageIDs: ids, Amount: decimal.RequireFromString(amount), ExternalRef: ref,
		})
		require.NoError(t, err)
	}
	record("pi_1", "12.50", cheap.ID, dear.ID)
	record("pi_2", "2.50", cheap.ID)

	// Deleting an image keeps the sales it made.
	require.NoError(t, f.db.Delete(dear).Error)

	earnings, err := dashboard.Earnings(ctx, f.owner.ID)
	require.NoError(t, err)
	assert.Equal(t, "15.00", earnings.StringFixed(2))

	spent, err := dashboard.Spent(ctx, buyer.ID)
	require.NoError(t, err)
	assert.Equal(t, "15.00", spent.StringFixed(2))

	resp, err := dashboard.Get(ctx, buyer.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), resp.User.Purchases)
	assert.Equal(t, "0.00", resp.User.TotalEarnings.StringFixed(2))
	assert.Equal(t, "-15.00", resp.User.Balance.StringFixed(2))
	assert.Len(t, resp.Purchases, 2)
	assert.Empty(t, resp.Uploads)

	resp, err = dashboard.Get(ctx, f.owner.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"cheap"}, titles(resp.Uploads))
	assert.Equal(t, "15.00", resp.User.Balance.StringFixed(2))

	_, err = dashboard.Get(ctx, uuid.New())
	assert.True(t, utils.IsCode(err, utils.CodeNotFound))
}
