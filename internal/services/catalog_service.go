// internal/services/catalog_service.go
package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	_ "golang.org/x/image/webp"
	"gorm.io/gorm"

	"github.com/stockpics/backend/internal/config"
	"github.com/stockpics/backend/internal/i18n"
	"github.com/stockpics/backend/internal/models"
	"github.com/stockpics/backend/internal/utils"
)

// Catalog sort keys.
const (
	SortPopular   = "popular"
	SortNewest    = "newest"
	SortPriceLow  = "price-low"
	SortPriceHigh = "price-high"
)

const (
	maxRecommendations  = 20
	recommendCandidates = 100
	likeEscape          = `\`
)

var allowedImageExts = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
}

type CatalogService struct {
	db          *gorm.DB
	store       AssetStore
	watermarker *Watermarker
	ledger      *LedgerService
	config      *config.Config
}

type ImageFilter struct {
	Category    string
	Search      string
	PriceMin    *decimal.Decimal
	PriceMax    *decimal.Decimal
	Orientation string
	SortBy      string
	Pagination  utils.PaginationParams
}

// UploadImageInput carries the multipart form of POST /images.
type UploadImageInput struct {
	Title       string `validate:"required,max=200"`
	Description string `validate:"max=2000"`
	Category    string `validate:"required,max=50"`
	Tags        string
	Price       string `validate:"required"`
	Orientation string `validate:"omitempty,oneof=landscape portrait square"`
	Filename    string `validate:"required"`
	Data        []byte `validate:"required"`
}

func (in *UploadImageInput) normalize() {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.Category = strings.ToLower(strings.TrimSpace(in.Category))
	in.Price = strings.TrimSpace(in.Price)
	in.Orientation = strings.ToLower(strings.TrimSpace(in.Orientation))
}

// uploadOptions distinguishes admin uploads from photographer uploads.
type uploadOptions struct {
	isAdmin bool
}

type BulkRecommendRequest struct {
	Requirements string           `json:"requirements" binding:"required"`
	Quantity     int              `json:"quantity" binding:"omitempty,gte=0"`
	Budget       *decimal.Decimal `json:"budget,omitempty"`
}

type BulkRecommendResponse struct {
	Images []models.PublicImage `json:"images"`
	Total  int64                `json:"total"`
}

// DownloadTarget points at the unwatermarked original. URL is empty when the
// store cannot presign and the bytes must be streamed.
type DownloadTarget struct {
	Image *models.Image
	URL   string
}

func NewCatalogService(db *gorm.DB, store AssetStore, watermarker *Watermarker, ledger *LedgerService, config *config.Config) *CatalogService {
	return &CatalogService{
		db:          db,
		store:       store,
		watermarker: watermarker,
		ledger:      ledger,
		config:      config,
	}
}

// ListImages applies the catalog filters, sort and pagination.
func (s *CatalogService) ListImages(ctx context.Context, filter ImageFilter) ([]models.PublicImage, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.Image{})

	if filter.Category != "" {
		query = query.Where("category = ?", filter.Category)
	}
	if filter.Orientation != "" {
		if !models.Orientation(filter.Orientation).Valid() {
			return nil, 0, utils.NewInvalidInput(i18n.KeyInvalidInput, fmt.Errorf("unknown orientation %q", filter.Orientation))
		}
		query = query.Where("orientation = ?", filter.Orientation)
	}
	if filter.PriceMin != nil {
		query = query.Where("price >= ?", *filter.PriceMin)
	}
	if filter.PriceMax != nil {
		query = query.Where("price <= ?", *filter.PriceMax)
	}
	if filter.PriceMin != nil && filter.PriceMax != nil && filter.PriceMin.GreaterThan(*filter.PriceMax) {
		return nil, 0, utils.NewInvalidInput(i18n.KeyInvalidInput, errors.New("price_min exceeds price_max"))
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		// a search never spans two tags
		pattern := likePattern(strings.ReplaceAll(search, models.TagSeparator, " "))
		query = query.Where(
			"LOWER(title) LIKE ? ESCAPE '\\' OR LOWER(COALESCE(description, '')) LIKE ? ESCAPE '\\' OR COALESCE(tags_text, '') LIKE ? ESCAPE '\\'",
			pattern, pattern, pattern,
		)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, utils.NewInternal(err)
	}

	var images []models.Image
	err := utils.ApplyPagination(query.Order(sortClause(filter.SortBy)), filter.Pagination).
		Preload("Photographer").
		Find(&images).Error
	if err != nil {
		return nil, 0, utils.NewInternal(err)
	}

	return models.PublicImages(images), total, nil
}

func sortClause(sortBy string) string {
	switch sortBy {
	case SortPopular:
		return "downloads DESC, created_at DESC"
	case SortPriceLow:
		return "price ASC, created_at DESC"
	case SortPriceHigh:
		return "price DESC, created_at DESC"
	default:
		return "created_at DESC"
	}
}

// likePattern lowercases q and escapes LIKE wildcards.
func likePattern(q string) string {
	escaped := strings.NewReplacer(likeEscape, likeEscape+likeEscape, "%", likeEscape+"%", "_", likeEscape+"_").
		Replace(strings.ToLower(q))
	return "%" + escaped + "%"
}

func (s *CatalogService) GetImage(ctx context.Context, rawID string) (*models.PublicImage, error) {
	id, err := uuid.Parse(rawID)
	if err != nil {
		return nil, utils.NewNotFound(i18n.KeyImageNotFound)
	}

	image, err := s.findImage(ctx, id, true)
	if err != nil {
		return nil, err
	}
	public := image.ToPublic()
	return &public, nil
}

func (s *CatalogService) findImage(ctx context.Context, id uuid.UUID, withPhotographer bool) (*models.Image, error) {
	query := s.db.WithContext(ctx)
	if withPhotographer {
		query = query.Preload("Photographer")
	}

	var image models.Image
	if err := query.Where("id = ?", id).First(&image).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NewNotFound(i18n.KeyImageNotFound)
		}
		return nil, utils.NewInternal(err)
	}
	return &image, nil
}

// UploadImage stores the original and its watermarked renditions, then
// inserts the image row and bumps the owner's upload counter together.
func (s *CatalogService) UploadImage(ctx context.Context, ownerID uuid.UUID, in UploadImageInput) (*models.Image, error) {
	in.normalize()
	if err := utils.ValidateStruct(&in); err != nil {
		return nil, utils.NewInvalidInput(i18n.KeyInvalidInput, err)
	}

	price, err := decimal.NewFromString(in.Price)
	if err != nil || price.IsNegative() {
		return nil, utils.NewInvalidInput(i18n.KeyImageInvalidPrice, err)
	}

	image := &models.Image{
		Title:          in.Title,
		Description:    in.Description,
		Category:       in.Category,
		Tags:           ParseTags(in.Tags),
		Price:          price.Round(2),
		Orientation:    models.Orientation(in.Orientation),
		PhotographerID: ownerID,
	}

	return s.storeImage(ctx, image, in.Filename, in.Data, uploadOptions{})
}

func (s *CatalogService) storeImage(ctx context.Context, image *models.Image, filename string, data []byte, opts uploadOptions) (*models.Image, error) {
	contentType, err := s.validateFile(filename, data)
	if err != nil {
		return nil, err
	}

	src, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, utils.NewInvalidInput(i18n.KeyImageInvalidFile, err)
	}
	if image.Orientation == "" {
		bounds := src.Bounds()
		image.Orientation = models.OrientationFromSize(bounds.Dx(), bounds.Dy())
	}

	renditions, err := s.watermarker.Render(src)
	if err != nil {
		return nil, utils.NewInternal(err)
	}

	stored, err := s.putAssets(ctx, image, filename, contentType, data, renditions)
	if err != nil {
		return nil, err
	}

	image.IsAdminUpload = opts.isAdmin
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(image).Error; err != nil {
			return err
		}
		return tx.Model(&models.User{}).
			Where("id = ?", image.PhotographerID).
			UpdateColumn("uploads_count", gorm.Expr("uploads_count + ?", 1)).Error
	})
	if err != nil {
		s.removeAssets(stored)
		return nil, utils.NewInternal(err)
	}

	logrus.WithFields(logrus.Fields{
		"image_id":        image.ID,
		"photographer_id": image.PhotographerID,
		"admin":           opts.isAdmin,
	}).Info("Image uploaded")

	return image, nil
}

// putAssets writes all three renditions or none of them.
func (s *CatalogService) putAssets(ctx context.Context, image *models.Image, filename, contentType string, original []byte, r *Renditions) ([]string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	uploads := []struct {
		key         string
		data        []byte
		contentType string
		setURL      func(key, url string)
	}{
		{GenerateAssetKey(FolderOriginals, ext), original, contentType, func(k, u string) { image.OriginalKey, image.OriginalURL = k, u }},
		{GenerateAssetKey(FolderPreviews, ".jpg"), r.Preview, "image/jpeg", func(k, u string) { image.PreviewKey, image.PreviewURL = k, u }},
		{GenerateAssetKey(FolderThumbnails, ".jpg"), r.Thumbnail, "image/jpeg", func(k, u string) { image.ThumbnailKey, image.ThumbnailURL = k, u }},
	}

	stored := make([]string, 0, len(uploads))
	for _, up := range uploads {
		url, err := s.store.Put(ctx, up.key, up.data, up.contentType)
		if err != nil {
			s.removeAssets(stored)
			return nil, utils.NewUpstreamFailure(i18n.KeyImageStorageFailed, err)
		}
		up.setURL(up.key, url)
		stored = append(stored, up.key)
	}
	return stored, nil
}

// removeAssets deletes stored objects on a best effort basis. It does not
// use the request context, which may already be canceled.
func (s *CatalogService) removeAssets(keys []string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, key := range keys {
		if key == "" {
			continue
		}
		if err := s.store.Delete(ctx, key); err != nil {
			logrus.WithError(err).WithField("key", key).Warn("Failed to remove stored asset")
		}
	}
}

func (s *CatalogService) validateFile(filename string, data []byte) (string, error) {
	maxBytes := int64(s.config.Upload.MaxSizeMB) * 1024 * 1024
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return "", utils.NewInvalidInput(i18n.KeyImageTooLarge, fmt.Errorf("file size %d bytes exceeds %d", len(data), maxBytes))
	}

	contentType, ok := allowedImageExts[strings.ToLower(filepath.Ext(filename))]
	if !ok {
		return "", utils.NewInvalidInput(i18n.KeyImageInvalidFile, fmt.Errorf("extension of %q not allowed", filename))
	}
	if !isValidImageType(data) {
		return "", utils.NewInvalidInput(i18n.KeyImageInvalidFile, errors.New("file signature is not an image"))
	}
	return contentType, nil
}

func isValidImageType(buffer []byte) bool {
	// Check for JPEG
	if len(buffer) >= 3 && buffer[0] == 0xFF && buffer[1] == 0xD8 && buffer[2] == 0xFF {
		return true
	}

	// Check for PNG
	if len(buffer) >= 8 && bytes.Equal(buffer[:8], []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}) {
		return true
	}

	// Check for WebP
	if len(buffer) >= 12 && string(buffer[0:4]) == "RIFF" && string(buffer[8:12]) == "WEBP" {
		return true
	}

	return false
}

// ContentTypeForKey maps a stored object key to its image MIME type.
func ContentTypeForKey(key string) string {
	if contentType, ok := allowedImageExts[strings.ToLower(filepath.Ext(key))]; ok {
		return contentType
	}
	return "application/octet-stream"
}

// ParseTags splits a comma separated tag list, dropping blanks and duplicates.
func ParseTags(raw string) []string {
	seen := make(map[string]struct{})
	tags := make([]string, 0)
	for _, tag := range strings.Split(raw, ",") {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		tags = append(tags, tag)
	}
	return tags
}

// BulkRecommend matches requirement keywords against tags, category and
// title.
func (s *CatalogService) BulkRecommend(ctx context.Context, req *BulkRecommendRequest) (*BulkRecommendResponse, error) {
	keywords := strings.Fields(strings.ToLower(req.Requirements))
	if len(keywords) == 0 {
		return nil, utils.NewInvalidInput(i18n.KeyInvalidInput, errors.New("requirements are empty"))
	}

	limit := req.Quantity
	if limit <= 0 || limit > maxRecommendations {
		limit = maxRecommendations
	}

	var match *gorm.DB
	for _, kw := range keywords {
		escaped := strings.Trim(likePattern(kw), "%")
		cond := s.db.Where("COALESCE(tags_text, '') LIKE ? ESCAPE '\\'", "%"+models.TagSeparator+escaped+models.TagSeparator+"%").
			Or("category = ?", kw).
			Or("LOWER(title) LIKE ? ESCAPE '\\'", "%"+escaped+"%")
		if match == nil {
			match = cond
		} else {
			match = match.Or(cond)
		}
	}

	query := s.db.WithContext(ctx).Model(&models.Image{}).Where(match)
	if req.Budget != nil && req.Budget.IsPositive() {
		query = query.Where("price <= ?", *req.Budget)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, utils.NewInternal(err)
	}
	if total > recommendCandidates {
		total = recommendCandidates
	}

	var images []models.Image
	if err := query.Order("downloads DESC, created_at DESC").Limit(limit).Preload("Photographer").Find(&images).Error; err != nil {
		return nil, utils.NewInternal(err)
	}

	return &BulkRecommendResponse{Images: models.PublicImages(images), Total: total}, nil
}

// Download resolves the unwatermarked original for buyer. Entitlement is
// checked before existence, so an unentitled request for a missing image
// reports NOT_FOUND only after the ledger lookup succeeded.
func (s *CatalogService) Download(ctx context.Context, buyerID uuid.UUID, rawImageID string) (*DownloadTarget, error) {
	imageID, err := uuid.Parse(rawImageID)
	if err != nil {
		return nil, utils.NewInvalidInput(i18n.KeyInvalidInput, err)
	}

	entitled, err := s.ledger.HasEntitlement(ctx, buyerID, imageID)
	if err != nil {
		return nil, err
	}

	image, err := s.findImage(ctx, imageID, false)
	if err != nil {
		return nil, err
	}
	if !entitled {
		return nil, utils.NewForbidden(i18n.KeyImageNotPurchased)
	}

	ttl := time.Duration(s.config.Storage.PresignTTL) * time.Minute
	url, err := s.store.PresignedURL(ctx, image.OriginalKey, ttl)
	switch {
	case errors.Is(err, ErrPresignUnsupported):
		url = ""
	case err != nil:
		return nil, utils.NewUpstreamFailure(i18n.KeyUpstream, err)
	}

	logrus.WithFields(logrus.Fields{"image_id": image.ID, "buyer_id": buyerID}).Info("Original download granted")
	return &DownloadTarget{Image: image, URL: url}, nil
}

// OpenOriginal streams the original of an image already cleared by Download.
func (s *CatalogService) OpenOriginal(ctx context.Context, target *DownloadTarget) (io.ReadCloser, error) {
	rc, err := s.store.Open(ctx, target.Image.OriginalKey)
	if err != nil {
		return nil, utils.NewUpstreamFailure(i18n.KeyUpstream, err)
	}
	return rc, nil
}
