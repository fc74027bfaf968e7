// internal/services/favorite_service.go
package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/stockpics/backend/internal/i18n"
	"github.com/stockpics/backend/internal/models"
	"github.com/stockpics/backend/internal/utils"
)

type FavoriteService struct {
	db      *gorm.DB
	catalog *CatalogService
}

type FavoriteRequest struct {
	ImageID string `json:"image_id" binding:"required"`
}

func NewFavoriteService(db *gorm.DB, catalog *CatalogService) *FavoriteService {
	return &FavoriteService{db: db, catalog: catalog}
}

// Add favorites an image. Likes only move when a new row was inserted, so
// re-adding is a no-op.
func (s *FavoriteService) Add(ctx context.Context, userID uuid.UUID, rawImageID string) (bool, error) {
	imageID, err := uuid.Parse(rawImageID)
	if err != nil {
		return false, utils.NewInvalidInput(i18n.KeyInvalidInput, err)
	}
	if _, err := s.catalog.findImage(ctx, imageID, false); err != nil {
		return false, err
	}

	added := false
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		fav := models.Favorite{UserID: userID, ImageID: imageID, AddedAt: time.Now().UTC()}
		result := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&fav)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return nil
		}

		added = true
		return tx.Model(&models.Image{}).
			Where("id = ?", imageID).
			UpdateColumn("likes", gorm.Expr("likes + ?", 1)).Error
	})
	if err != nil {
		return false, utils.NewInternal(err)
	}

	logrus.WithFields(logrus.Fields{"user_id": userID, "image_id": imageID, "added": added}).Debug("Favorite added")
	return added, nil
}

// Remove deletes a favorite. Likes never drop below zero.
func (s *FavoriteService) Remove(ctx context.Context, userID uuid.UUID, rawImageID string) (bool, error) {
	imageID, err := uuid.Parse(rawImageID)
	if err != nil {
		return false, utils.NewInvalidInput(i18n.KeyInvalidInput, err)
	}

	removed := false
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("user_id = ? AND image_id = ?", userID, imageID).Delete(&models.Favorite{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return nil
		}

		removed = true
		return tx.Model(&models.Image{}).
			Where("id = ? AND likes > 0", imageID).
			UpdateColumn("likes", gorm.Expr("likes - ?", 1)).Error
	})
	if err != nil {
		return false, utils.NewInternal(err)
	}
	return removed, nil
}

// List returns the user's favorite images, most recently added first.
func (s *FavoriteService) List(ctx context.Context, userID uuid.UUID) ([]models.PublicImage, error) {
	var images []models.Image
	err := s.db.WithContext(ctx).
		Joins("JOIN favorites ON favorites.image_id = images.id").
		Where("favorites.user_id = ?", userID).
		Order("favorites.added_at DESC").
		Preload("Photographer").
		Find(&images).Error
	if err != nil {
		return nil, utils.NewInternal(err)
	}
	return models.PublicImages(images), nil
}
