// internal/handlers/image.go
package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/stockpics/backend/internal/config"
	"github.com/stockpics/backend/internal/i18n"
	"github.com/stockpics/backend/internal/services"
	"github.com/stockpics/backend/internal/utils"
)

type ImageHandler struct {
	catalogService *services.CatalogService
	config         *config.Config
}

func NewImageHandler(catalogService *services.CatalogService, config *config.Config) *ImageHandler {
	return &ImageHandler{
		catalogService: catalogService,
		config:         config,
	}
}

// GET /images
func (h *ImageHandler) ListImages(c *gin.Context) {
	filter := services.ImageFilter{
		Category:    strings.TrimSpace(c.Query("category")),
		Search:      c.Query("search"),
		Orientation: strings.TrimSpace(c.Query("orientation")),
		SortBy:      c.DefaultQuery("sort_by", services.SortNewest),
		Pagination:  utils.GetPaginationParams(c, h.config.Catalog.DefaultPageSize, h.config.Catalog.MaxPageSize),
	}

	var err error
	if filter.PriceMin, err = optionalDecimal(c, "price_min"); err != nil {
		utils.HandleError(c, err)
		return
	}
	if filter.PriceMax, err = optionalDecimal(c, "price_max"); err != nil {
		utils.HandleError(c, err)
		return
	}

	images, total, err := h.catalogService.ListImages(c.Request.Context(), filter)
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.SetPaginationHeaders(c, utils.CreatePaginationResult(nil, total, filter.Pagination))
	utils.SuccessResponse(c, gin.H{
		"images": images,
		"total":  total,
	})
}

func optionalDecimal(c *gin.Context, key string) (*decimal.Decimal, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil, nil
	}

	value, err := decimal.NewFromString(raw)
	if err != nil || value.IsNegative() {
		return nil, utils.NewInvalidInput(i18n.KeyImageInvalidPrice, fmt.Errorf("invalid %s %q", key, raw))
	}
	return &value, nil
}

// GET /images/:id
func (h *ImageHandler) GetImage(c *gin.Context) {
	image, err := h.catalogService.GetImage(c.Request.Context(), c.Param("id"))
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.SuccessResponse(c, image)
}

// POST /images
func (h *ImageHandler) UploadImage(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	filename, data, err := readUpload(c, "file", h.maxUploadBytes())
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	image, err := h.catalogService.UploadImage(c.Request.Context(), userID, services.UploadImageInput{
		Title:       c.PostForm("title"),
		Description: c.PostForm("description"),
		Category:    c.PostForm("category"),
		Tags:        c.PostForm("tags"),
		Price:       c.PostForm("price"),
		Orientation: c.PostForm("orientation"),
		Filename:    filename,
		Data:        data,
	})
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.CreatedResponse(c, image.ToPublic())
}

func (h *ImageHandler) maxUploadBytes() int64 {
	return int64(h.config.Upload.MaxSizeMB) * 1024 * 1024
}

// readUpload reads one multipart file, rejecting anything above maxBytes.
func readUpload(c *gin.Context, field string, maxBytes int64) (string, []byte, error) {
	// Leave room for the other form fields.
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes+1<<20)

	file, header, err := c.Request.FormFile(field)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return "", nil, utils.NewInvalidInput(i18n.KeyImageTooLarge, err)
		}
		return "", nil, utils.NewInvalidInput(i18n.KeyImageInvalidFile, err)
	}
	defer file.Close()

	if header.Size > maxBytes {
		return "", nil, utils.NewInvalidInput(i18n.KeyImageTooLarge, fmt.Errorf("file size %d exceeds %d", header.Size, maxBytes))
	}

	data, err := io.ReadAll(io.LimitReader(file, maxBytes+1))
	if err != nil {
		return "", nil, utils.NewInvalidInput(i18n.KeyImageInvalidFile, err)
	}
	if int64(len(data)) > maxBytes {
		return "", nil, utils.NewInvalidInput(i18n.KeyImageTooLarge, nil)
	}

	return path.Base(header.Filename), data, nil
}

// POST /bulk-recommend
func (h *ImageHandler) BulkRecommend(c *gin.Context) {
	var req services.BulkRecommendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BindingErrorResponse(c, err)
		return
	}

	response, err := h.catalogService.BulkRecommend(c.Request.Context(), &req)
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.SuccessResponse(c, response)
}

// GET /download/:image_id
//
// Responds with a short-lived URL of the original, or streams the bytes when
// mode=stream is requested or the store cannot presign.
func (h *ImageHandler) Download(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	target, err := h.catalogService.Download(c.Request.Context(), userID, c.Param("image_id"))
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	if target.URL != "" && c.Query("mode") != "stream" {
		utils.SuccessResponse(c, gin.H{"url": target.URL})
		return
	}

	reader, err := h.catalogService.OpenOriginal(c.Request.Context(), target)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	defer reader.Close()

	filename := fmt.Sprintf("%s%s", target.Image.ID, path.Ext(target.Image.OriginalKey))
	c.DataFromReader(http.StatusOK, -1, services.ContentTypeForKey(target.Image.OriginalKey), reader, map[string]string{
		"Content-Disposition": fmt.Sprintf(`attachment; filename="%s"`, filename),
	})
}
