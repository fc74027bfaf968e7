// internal/services/ledger_service_test.go
package services

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"

	"github.com/stockpics/backend/internal/config"
	"github.com/stockpics/backend/internal/models"
	"github.com/stockpics/backend/internal/testutil"
	"github.com/stockpics/backend/internal/utils"
)

type LedgerTestSuite struct {
	suite.Suite
	db     *gorm.DB
	ledger *LedgerService
	buyer  *models.User
	owner  *models.User
	i1     *models.Image
	i2     *models.Image
}

func (suite *LedgerTestSuite) SetupTest() {
	suite.db = testutil.NewTestDB(suite.T())
	suite.ledger = NewLedgerService(suite.db, newFakeGateway(), "usd")

	suite.owner = testutil.CreateUser(suite.T(), suite.db, "owner@example.com", models.UserRoleUser)
	suite.buyer = testutil.CreateUser(suite.T(), suite.db, "buyer@example.com", models.UserRoleUser)
	suite.i1 = testutil.CreateImage(suite.T(), suite.db, suite.owner.ID, "lake", "20.00")
	suite.i2 = testutil.CreateImage(suite.T(), suite.db, suite.owner.ID, "forest", "30.00")
}

func (suite *LedgerTestSuite) downloads(id uuid.UUID) int64 {
	var image models.Image
	require.NoError(suite.T(), suite.db.Unscoped().First(&image, "id = ?", id).Error)
	return image.Downloads
}

func (suite *LedgerTestSuite) purchaseCount() int64 {
	var count int64
	require.NoError(suite.T(), suite.db.Model(&models.Purchase{}).Count(&count).Error)
	return count
}

func (suite *LedgerTestSuite) TestRecordPurchaseIsIdempotentPerReference() {
	ctx := context.Background()
	in := RecordPurchaseInput{
		BuyerID:     suite.buyer.ID,
		ImageIDs:    []uuid.UUID{suite.i1.ID, suite.i2.ID},
		Amount:      decimal.RequireFromString("50"),
		ExternalRef: "pi_idem",
	}

	first, created, err := suite.ledger.RecordPurchase(ctx, in)
	require.NoError(suite.T(), err)
	assert.True(suite.T(), created)

	second, created, err := suite.ledger.RecordPurchase(ctx, in)
	require.NoError(suite.T(), err)
	assert.False(suite.T(), created)
	assert.Equal(suite.T(), first.ID, second.ID)
	assert.ElementsMatch(suite.T(), []uuid.UUID{suite.i1.ID, suite.i2.ID}, second.ImageIDs())

	assert.Equal(suite.T(), int64(1), suite.purchaseCount())
	assert.Equal(suite.T(), int64(1), suite.downloads(suite.i1.ID))
	assert.Equal(suite.T(), int64(1), suite.downloads(suite.i2.ID))

	var buyer models.User
	require.NoError(suite.T(), suite.db.First(&buyer, "id = ?", suite.buyer.ID).Error)
	assert.Equal(suite.T(), int64(1), buyer.PurchasesCount)
}

func (suite *LedgerTestSuite) TestConcurrentDeliveryRecordsOnce() {
	ctx := context.Background()
	in := RecordPurchaseInput{
		BuyerID:     suite.buyer.ID,
		ImageIDs:    []uuid.UUID{suite.i1.ID},
		Amount:      decimal.RequireFromString("20"),
		ExternalRef: "pi_race",
	}

	const workers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
		ids     = make(map[uuid.UUID]bool)
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			purchase, ok, err := suite.ledger.RecordPurchase(ctx, in)
			if !assert.NoError(suite.T(), err) {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if ok {
				created++
			}
			ids[purchase.ID] = true
		}()
	}
	wg.Wait()

	assert.Equal(suite.T(), 1, created)
	assert.Len(suite.T(), ids, 1)
	assert.Equal(suite.T(), int64(1), suite.purchaseCount())
	assert.Equal(suite.T(), int64(1), suite.downloads(suite.i1.ID))
}

func (suite *LedgerTestSuite) TestDistinctPurchasesEachCountADownload() {
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, created, err := suite.ledger.RecordPurchase(ctx, RecordPurchaseInput{
			BuyerID:     suite.buyer.ID,
			ImageIDs:    []uuid.UUID{suite.i1.ID},
			Amount:      decimal.RequireFromString("20"),
			ExternalRef: fmt.Sprintf("pi_%d", i),
		})
		require.NoError(suite.T(), err)
		assert.True(suite.T(), created)
	}

	assert.Equal(suite.T(), int64(3), suite.downloads(suite.i1.ID))
	assert.Equal(suite.T(), int64(0), suite.downloads(suite.i2.ID))
}

func (suite *LedgerTestSuite) TestMissingImageIsSkipped() {
	missing := uuid.New()

	purchase, created, err := suite.ledger.RecordPurchase(context.Background(), RecordPurchaseInput{
		BuyerID:     suite.buyer.ID,
		ImageIDs:    []uuid.UUID{suite.i1.ID, missing},
		Amount:      decimal.RequireFromString("20"),
		ExternalRef: "pi_missing",
	})
	require.NoError(suite.T(), err)
	assert.True(suite.T(), created)
	assert.ElementsMatch(suite.T(), []uuid.UUID{suite.i1.ID, missing}, purchase.ImageIDs())
	assert.Equal(suite.T(), int64(1), suite.downloads(suite.i1.ID))
}

func (suite *LedgerTestSuite) TestRecordPurchaseRejectsInvalidInput() {
	ctx := context.Background()

	_, _, err := suite.ledger.RecordPurchase(ctx, RecordPurchaseInput{BuyerID: suite.buyer.ID})
	assert.True(suite.T(), utils.IsCode(err, utils.CodeInvalidInput))

	_, _, err = suite.ledger.RecordPurchase(ctx, RecordPurchaseInput{
		BuyerID:  suite.buyer.ID,
		ImageIDs: []uuid.UUID{suite.i1.ID},
		Amount:   decimal.RequireFromString("-1"),
	})
	assert.True(suite.T(), utils.IsCode(err, utils.CodeInvalidInput))
	assert.Equal(suite.T(), int64(0), suite.purchaseCount())
}

func (suite *LedgerTestSuite) TestEntitlementIsMonotonic() {
	ctx := context.Background()

	entitled, err := suite.ledger.HasEntitlement(ctx, suite.buyer.ID, suite.i1.ID)
	require.NoError(suite.T(), err)
	assert.False(suite.T(), entitled)

	// Unknown ids never fail the lookup.
	entitled, err = suite.ledger.HasEntitlement(ctx, suite.buyer.ID, uuid.New())
	require.NoError(suite.T(), err)
	assert.False(suite.T(), entitled)

	_, _, err = suite.ledger.RecordPurchase(ctx, RecordPurchaseInput{
		BuyerID:     suite.buyer.ID,
		ImageIDs:    []uuid.UUID{suite.i1.ID},
		Amount:      decimal.RequireFromString("20"),
		ExternalRef: "pi_mono",
	})
	require.NoError(suite.T(), err)

	// Later purchases and image deletion leave the entitlement in place.
	_, _, err = suite.ledger.RecordPurchase(ctx, RecordPurchaseInput{
		BuyerID:     suite.buyer.ID,
		ImageIDs:    []uuid.UUID{suite.i2.ID},
		Amount:      decimal.RequireFromString("30"),
		ExternalRef: "pi_mono_2",
	})
	require.NoError(suite.T(), err)
	require.NoError(suite.T(), suite.db.Delete(suite.i1).Error)

	entitled, err = suite.ledger.HasEntitlement(ctx, suite.buyer.ID, suite.i1.ID)
	require.NoError(suite.T(), err)
	assert.True(suite.T(), entitled)

	entitled, err = suite.ledger.HasEntitlement(ctx, suite.owner.ID, suite.i1.ID)
	require.NoError(suite.T(), err)
	assert.False(suite.T(), entitled)
}

func (suite *LedgerTestSuite) TestListPurchasesNewestFirst() {
	ctx := context.Background()
	old := time.Now().UTC().Add(-time.Hour)

	_, _, err := suite.ledger.RecordPurchase(ctx, RecordPurchaseInput{
		BuyerID: suite.buyer.ID, ImageIDs: []uuid.UUID{suite.i1.ID}, Amount: decimal.RequireFromString("20"), ExternalRef: "pi_old",
	})
	require.NoError(suite.T(), err)
	require.NoError(suite.T(), suite.db.Model(&models.Purchase{}).Where("external_ref = ?", "pi_old").
		UpdateColumn("purchased_at", old).Error)

	_, _, err = suite.ledger.RecordPurchase(ctx, RecordPurchaseInput{
		BuyerID: suite.buyer.ID, ImageIDs: []uuid.UUID{suite.i2.ID}, Amount: decimal.RequireFromString("30"), ExternalRef: "pi_new",
	})
	require.NoError(suite.T(), err)

	purchases, err := suite.ledger.ListPurchases(ctx, suite.buyer.ID)
	require.NoError(suite.T(), err)
	require.Len(suite.T(), purchases, 2)
	assert.Equal(suite.T(), "pi_new", *purchases[0].ExternalRef)
	assert.Equal(suite.T(), []uuid.UUID{suite.i1.ID}, purchases[1].ImageIDs())
}

func TestLedgerSuite(t *testing.T) {
	suite.Run(t, new(LedgerTestSuite))
}

// ---------- Webhook reconciliation ----------

const testWebhookSecret = "whsec_test"

// signStripePayload builds a Stripe-Signature header for payload.
func signStripePayload(payload []byte, secret string) string {
	ts := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(fmt.Sprintf("%d.%s", ts, payload)))
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func intentEventPayload(t *testing.T, eventID, eventType string, object map[string]interface{}) []byte {
	t.Helper()

	payload, err := json.Marshal(map[string]interface{}{
		"id":          eventID,
		"object":      "event",
		"type":        eventType,
		"api_version": "2022-11-15",
		"created":     time.Now().Unix(),
		"data":        map[string]interface{}{"object": object},
	})
	require.NoError(t, err)
	return payload
}

func succeededIntent(id string, cents int64, buyer uuid.UUID, images ...uuid.UUID) map[string]interface{} {
	return map[string]interface{}{
		"id":              id,
		"object":          "payment_intent",
		"amount":          cents,
		"amount_received": cents,
		"currency":        "usd",
		"status":          "succeeded",
		"metadata": map[string]string{
			MetadataBuyerID:  buyer.String(),
			MetadataImageIDs: JoinImageIDs(images),
		},
	}
}

func newWebhookLedger(t *testing.T) (*gorm.DB, *LedgerService) {
	db := testutil.NewTestDB(t)
	gateway := NewStripeGateway(config.PaymentConfig{StripeWebhookSecret: testWebhookSecret, Currency: "usd"})
	return db, NewLedgerService(db, gateway, "usd")
}

func TestReconcileGatewayEventScenario(t *testing.T) {
	db, ledger := newWebhookLedger(t)
	ctx := context.Background()

	owner := testutil.CreateUser(t, db, "owner@example.com", models.UserRoleUser)
	buyer := testutil.CreateUser(t, db, "buyer@example.com", models.UserRoleUser)
	i1 := testutil.CreateImage(t, db, owner.ID, "i1", "20.00")
	i2 := testutil.CreateImage(t, db, owner.ID, "i2", "30.00")

	payload := intentEventPayload(t, "evt_1", EventPaymentIntentSucceeded, succeededIntent("pi_abc", 5000, buyer.ID, i1.ID, i2.ID))

	result, err := ledger.ReconcileGatewayEvent(ctx, payload, signStripePayload(payload, testWebhookSecret))
	require.NoError(t, err)
	assert.True(t, result.Created)
	assert.Equal(t, models.PaymentEventStatusProcessed, result.Status)
	require.NotNil(t, result.Purchase)
	assert.True(t, decimal.RequireFromString("50.00").Equal(result.Purchase.Amount))
	assert.Equal(t, buyer.ID, result.Purchase.BuyerID)

	// Duplicate delivery is a no-op.
	result, err = ledger.ReconcileGatewayEvent(ctx, payload, signStripePayload(payload, testWebhookSecret))
	require.NoError(t, err)
	assert.False(t, result.Created)

	var purchases []models.Purchase
	require.NoError(t, db.Find(&purchases).Error)
	require.Len(t, purchases, 1)
	assert.Equal(t, "pi_abc", *purchases[0].ExternalRef)

	for _, id := range []uuid.UUID{i1.ID, i2.ID} {
		var image models.Image
		require.NoError(t, db.First(&image, "id = ?", id).Error)
		assert.Equal(t, int64(1), image.Downloads)
	}

	var events int64
	require.NoError(t, db.Model(&models.PaymentEvent{}).Count(&events).Error)
	assert.Equal(t, int64(1), events)
}

func TestReconcileGatewayEventRejectsBadSignature(t *testing.T) {
	db, ledger := newWebhookLedger(t)

	owner := testutil.CreateUser(t, db, "owner@example.com", models.UserRoleUser)
	image := testutil.CreateImage(t, db, owner.ID, "i1", "20.00")
	payload := intentEventPayload(t, "evt_bad", EventPaymentIntentSucceeded, succeededIntent("pi_bad", 2000, owner.ID, image.ID))

	for name, header := range map[string]string{
		"missing":      "",
		"wrong secret": signStripePayload(payload, "whsec_other"),
		"garbage":      "t=1,v1=deadbeef",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ledger.ReconcileGatewayEvent(context.Background(), payload, header)
			assert.True(t, utils.IsCode(err, utils.CodeInvalidEvent))
		})
	}

	var purchases, events int64
	require.NoError(t, db.Model(&models.Purchase{}).Count(&purchases).Error)
	require.NoError(t, db.Model(&models.PaymentEvent{}).Count(&events).Error)
	assert.Zero(t, purchases)
	assert.Zero(t, events)
}

func TestReconcileGatewayEventRejectsMalformedMetadata(t *testing.T) {
	db, ledger := newWebhookLedger(t)

	object := succeededIntent("pi_meta", 2000, uuid.New())
	object["metadata"] = map[string]string{MetadataBuyerID: "not-a-uuid", MetadataImageIDs: uuid.NewString()}
	payload := intentEventPayload(t, "evt_meta", EventPaymentIntentSucceeded, object)

	_, err := ledger.ReconcileGatewayEvent(context.Background(), payload, signStripePayload(payload, testWebhookSecret))
	assert.True(t, utils.IsCode(err, utils.CodeInvalidEvent))

	var purchases int64
	require.NoError(t, db.Model(&models.Purchase{}).Count(&purchases).Error)
	assert.Zero(t, purchases)
}

func TestReconcileGatewayEventIgnoresOtherTypes(t *testing.T) {
	db, ledger := newWebhookLedger(t)

	payload := intentEventPayload(t, "evt_created", "payment_intent.created", map[string]interface{}{
		"id": "pi_new", "object": "payment_intent", "amount": 1000, "currency": "usd", "status": "requires_payment_method",
	})

	result, err := ledger.ReconcileGatewayEvent(context.Background(), payload, signStripePayload(payload, testWebhookSecret))
	require.NoError(t, err)
	assert.Equal(t, models.PaymentEventStatusIgnored, result.Status)
	assert.False(t, result.Created)

	var event models.PaymentEvent
	require.NoError(t, db.First(&event, "event_id = ?", "evt_created").Error)
	assert.Equal(t, "payment_intent.created", event.EventType)

	var purchases int64
	require.NoError(t, db.Model(&models.Purchase{}).Count(&purchases).Error)
	assert.Zero(t, purchases)
}

func TestParseImageIDList(t *testing.T) {
	a, b := uuid.New(), uuid.New()

	ids, err := ParseImageIDList(" " + a.String() + ",," + b.String() + " ")
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{a, b}, ids)

	_, err = ParseImageIDList(a.String() + ",nope")
	assert.Error(t, err)

	assert.Equal(t, a.String()+","+b.String(), JoinImageIDs([]uuid.UUID{a, b}))
}
