// internal/services/admin_service.go
package services

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/stockpics/backend/internal/i18n"
	"github.com/stockpics/backend/internal/models"
	"github.com/stockpics/backend/internal/utils"
)

const AdminCategory = "admin"

var bulkArchiveExts = map[string]bool{".jpg": true, ".jpeg": true, ".png": true}

type AdminService struct {
	db      *gorm.DB
	catalog *CatalogService
	store   AssetStore
}

type BulkSkipped struct {
	File   string `json:"file"`
	Reason string `json:"reason"`
}

type BulkUploadResult struct {
	Uploaded []models.AdminImage `json:"uploaded"`
	Skipped  []BulkSkipped       `json:"skipped"`
}

func NewAdminService(db *gorm.DB, catalog *CatalogService, store AssetStore) *AdminService {
	return &AdminService{
		db:      db,
		catalog: catalog,
		store:   store,
	}
}

func (s *AdminService) ListImages(ctx context.Context, params utils.PaginationParams) ([]models.AdminImage, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.Image{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, utils.NewInternal(err)
	}

	var images []models.Image
	if err := utils.ApplyPagination(query.Order("created_at DESC"), params).Preload("Photographer").Find(&images).Error; err != nil {
		return nil, 0, utils.NewInternal(err)
	}

	result := make([]models.AdminImage, 0, len(images))
	for idx := range images {
		result = append(result, images[idx].ToAdmin())
	}
	return result, total, nil
}

// DeleteImage soft-deletes the row so purchase history stays intact, then
// removes the stored objects.
func (s *AdminService) DeleteImage(ctx context.Context, rawID string) (*models.Image, error) {
	id, err := uuid.Parse(rawID)
	if err != nil {
		return nil, utils.NewInvalidInput(i18n.KeyInvalidInput, err)
	}

	image, err := s.catalog.findImage(ctx, id, false)
	if err != nil {
		return nil, err
	}

	if err := s.db.WithContext(ctx).Delete(image).Error; err != nil {
		return nil, utils.NewInternal(err)
	}

	s.catalog.removeAssets([]string{image.OriginalKey, image.PreviewKey, image.ThumbnailKey})

	logrus.WithField("image_id", image.ID).Info("Image deleted by admin")
	return image, nil
}

// UploadImage stores a single admin-owned, free image.
func (s *AdminService) UploadImage(ctx context.Context, adminID uuid.UUID, filename string, data []byte) (*models.Image, error) {
	return s.catalog.storeImage(ctx, adminImage(adminID, filename, false), filename, data, uploadOptions{isAdmin: true})
}

// BulkUpload imports every jpg/jpeg/png inside a ZIP archive. Entries that
// fail are reported and do not stop the rest.
func (s *AdminService) BulkUpload(ctx context.Context, adminID uuid.UUID, archive []byte) (*BulkUploadResult, error) {
	reader, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	if err != nil {
		return nil, utils.NewInvalidInput(i18n.KeyImageInvalidFile, fmt.Errorf("not a zip archive: %w", err))
	}

	maxBytes := int64(s.catalog.config.Upload.MaxSizeMB) * 1024 * 1024
	result := &BulkUploadResult{Uploaded: []models.AdminImage{}, Skipped: []BulkSkipped{}}
	seen := make(map[string]bool)

	for _, file := range reader.File {
		name := path.Base(file.Name)
		if file.FileInfo().IsDir() || strings.HasPrefix(name, ".") || strings.HasPrefix(file.Name, "__MACOSX/") {
			continue
		}
		if !bulkArchiveExts[strings.ToLower(filepath.Ext(name))] {
			result.Skipped = append(result.Skipped, BulkSkipped{File: file.Name, Reason: "unsupported file type"})
			continue
		}

		data, err := readZipEntry(file, maxBytes)
		if err != nil {
			result.Skipped = append(result.Skipped, BulkSkipped{File: file.Name, Reason: err.Error()})
			continue
		}

		hash := utils.HashBytes(data)
		if seen[hash] {
			result.Skipped = append(result.Skipped, BulkSkipped{File: file.Name, Reason: "duplicate of another file in the archive"})
			continue
		}
		seen[hash] = true

		image, err := s.catalog.storeImage(ctx, adminImage(adminID, name, true), name, data, uploadOptions{isAdmin: true})
		if err != nil {
			result.Skipped = append(result.Skipped, BulkSkipped{File: file.Name, Reason: utils.ErrorCode(err)})
			continue
		}
		result.Uploaded = append(result.Uploaded, image.ToAdmin())
	}

	logrus.WithFields(logrus.Fields{
		"uploaded": len(result.Uploaded),
		"skipped":  len(result.Skipped),
	}).Info("Bulk upload finished")

	return result, nil
}

func readZipEntry(file *zip.File, maxBytes int64) ([]byte, error) {
	if maxBytes > 0 && int64(file.UncompressedSize64) > maxBytes {
		return nil, errors.New("file too large")
	}

	rc, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	limit := maxBytes
	if limit <= 0 {
		limit = int64(file.UncompressedSize64)
	}
	data, err := io.ReadAll(io.LimitReader(rc, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, errors.New("file too large")
	}
	return data, nil
}

func adminImage(adminID uuid.UUID, filename string, bulk bool) *models.Image {
	tags := []string{"admin"}
	if bulk {
		tags = append(tags, "bulk")
	}

	title := strings.TrimSuffix(path.Base(filename), filepath.Ext(filename))
	if title == "" {
		title = "Untitled"
	}

	return &models.Image{
		Title:          title,
		Category:       AdminCategory,
		Tags:           tags,
		Price:          decimal.Zero,
		PhotographerID: adminID,
	}
}

func (s *AdminService) GetAnalytics(ctx context.Context) (*models.PlatformAnalytics, error) {
	stats := &models.PlatformAnalytics{}
	db := s.db.WithContext(ctx)

	if err := db.Model(&models.Image{}).Count(&stats.TotalImages).Error; err != nil {
		return nil, utils.NewInternal(err)
	}
	if err := db.Model(&models.User{}).Count(&stats.TotalUsers).Error; err != nil {
		return nil, utils.NewInternal(err)
	}
	if err := db.Model(&models.Purchase{}).Count(&stats.TotalPurchases).Error; err != nil {
		return nil, utils.NewInternal(err)
	}
	// Sales of deleted images still count.
	if err := db.Unscoped().Model(&models.Image{}).Select("COALESCE(SUM(downloads), 0)").Row().Scan(&stats.TotalDownloads); err != nil {
		return nil, utils.NewInternal(err)
	}

	revenue, err := sumDecimal(db.Unscoped().Model(&models.Image{}), "price * downloads")
	if err != nil {
		return nil, err
	}
	stats.TotalRevenue = revenue

	return stats, nil
}

// RecordAudit stores one admin action. It is called from the audit
// middleware and never fails the request.
func (s *AdminService) RecordAudit(entry *models.AuditLog) {
	if err := s.db.Create(entry).Error; err != nil {
		logrus.WithError(err).WithField("action", entry.Action).Error("Failed to write audit log")
	}
}
