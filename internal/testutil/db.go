// internal/testutil/db.go
package testutil

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/stockpics/backend/internal/config"
	"github.com/stockpics/backend/internal/database"
	"github.com/stockpics/backend/internal/models"
)

// NewTestDB opens a migrated in-memory SQLite database private to the test.
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	cfg := config.DatabaseConfig{
		Driver:       "sqlite",
		SQLitePath:   fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=off", uuid.NewString()),
		MaxIdleConns: 1,
		MaxLifetime:  3600,
		LogLevel:     "silent",
	}

	db, err := database.Initialize(cfg)
	require.NoError(t, err)
	require.NoError(t, database.RunMigrations(db))

	t.Cleanup(func() { database.Close(db) })
	return db
}

func CreateUser(t *testing.T, db *gorm.DB, email string, role models.UserRole) *models.User {
	t.Helper()

	user := &models.User{Name: email, Email: email, Role: role}
	require.NoError(t, user.SetPassword("Secret123!"))
	require.NoError(t, db.Create(user).Error)
	return user
}

func CreateImage(t *testing.T, db *gorm.DB, owner uuid.UUID, title string, price string) *models.Image {
	t.Helper()

	image := &models.Image{
		Title:          title,
		Category:       "nature",
		Tags:           []string{"test"},
		Price:          decimal.RequireFromString(price),
		Orientation:    models.OrientationLandscape,
		PhotographerID: owner,
		OriginalKey:    "originals/" + title + ".jpg",
		OriginalURL:    "https://assets.test/originals/" + title + ".jpg",
		PreviewKey:     "previews/" + title + ".jpg",
		PreviewURL:     "https://assets.test/previews/" + title + ".jpg",
	}
	require.NoError(t, db.Create(image).Error)
	return image
}
