// internal/services/favorite_service_test.go
package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stockpics/backend/internal/models"
	"github.com/stockpics/backend/internal/testutil"
	"github.com/stockpics/backend/internal/utils"
)

func TestFavoritesAddIsIdempotent(t *testing.T) {
	f := newCatalogFixture(t)
	favorites := NewFavoriteService(f.db, f.catalog)
	ctx := context.Background()

	user := testutil.CreateUser(t, f.db, "fan@example.com", models.UserRoleUser)
	img := testutil.CreateImage(t, f.db, f.owner.ID, "lake", "1.00")

	added, err := favorites.Add(ctx, user.ID, img.ID.String())
	require.NoError(t, err)
	assert.True(t, added)

	added, err = favorites.Add(ctx, user.ID, img.ID.String())
	require.NoError(t, err)
	assert.False(t, added)

	var stored models.Image
	require.NoError(t, f.db.First(&stored, "id = ?", img.ID).Error)
	assert.Equal(t, int64(1), stored.Likes)

	var rows int64
	require.NoError(t, f.db.Model(&models.Favorite{}).Count(&rows).Error)
	assert.Equal(t, int64(1), rows)
}

func TestFavoritesRemoveNeverGoesNegative(t *testing.T) {
	f := newCatalogFixture(t)
	favorites := NewFavoriteService(f.db, f.catalog)
	ctx := context.Background()

	user := testutil.CreateUser(t, f.db, "fan@example.com", models.UserRoleUser)
	img := testutil.CreateImage(t, f.db, f.owner.ID, "lake", "1.00")

	removed, err := favorites.Remove(ctx, user.ID, img.ID.String())
	require.NoError(t, err)
	assert.False(t, removed)

	_, err = favorites.Add(ctx, user.ID, img.ID.String())
	require.NoError(t, err)
	// Likes drifted to zero out of band.
	require.NoError(t, f.db.Model(img).UpdateColumn("likes", 0).Error)

	removed, err = favorites.Remove(ctx, user.ID, img.ID.String())
	require.NoError(t, err)
	assert.True(t, removed)

	var stored models.Image
	require.NoError(t, f.db.First(&stored, "id = ?", img.ID).Error)
	assert.Equal(t, int64(0), stored.Likes)
}

func TestFavoritesErrorsAndList(t *testing.T) {
	f := newCatalogFixture(t)
	favorites := NewFavoriteService(f.db, f.catalog)
	ctx := context.Background()

	user := testutil.CreateUser(t, f.db, "fan@example.com", models.UserRoleUser)

	_, err := favorites.Add(ctx, user.ID, "bad")
	assert.True(t, utils.IsCode(err, utils.CodeInvalidInput))
	_, err = favorites.Add(ctx, user.ID, uuid.NewString())
	assert.True(t, utils.IsCode(err, utils.CodeNotFound))

	first := testutil.CreateImage(t, f.db, f.owner.ID, "first", "1.00")
	second := testutil.CreateImage(t, f.db, f.owner.ID, "second", "1.00")
	_, err = favorites.Add(ctx, user.ID, first.ID.String())
	require.NoError(t, err)
	require.NoError(t, f.db.Model(&models.Favorite{}).Where("image_id = ?", first.ID).
		UpdateColumn("added_at", time.Now().UTC().Add(-time.Hour)).Error)
	_, err = favorites.Add(ctx, user.ID, second.ID.String())
	require.NoError(t, err)

	list, err := favorites.List(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"second", "first"}, titles(list))

	list, err = favorites.List(ctx, f.owner.ID)
	require.NoError(t, err)
	assert.Empty(t, list)
}
