// internal/handlers/admin.go
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/stockpics/backend/internal/config"
	"github.com/stockpics/backend/internal/i18n"
	"github.com/stockpics/backend/internal/services"
	"github.com/stockpics/backend/internal/utils"
)

type AdminHandler struct {
	adminService *services.AdminService
	config       *config.Config
}

func NewAdminHandler(adminService *services.AdminService, config *config.Config) *AdminHandler {
	return &AdminHandler{
		adminService: adminService,
		config:       config,
	}
}

// GET /admin/images
func (h *AdminHandler) ListImages(c *gin.Context) {
	params := utils.GetPaginationParams(c, h.config.Catalog.DefaultPageSize, h.config.Catalog.MaxPageSize)

	images, total, err := h.adminService.ListImages(c.Request.Context(), params)
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.PaginatedResponse(c, utils.CreatePaginationResult(images, total, params))
}

// DELETE /admin/images/:id
func (h *AdminHandler) DeleteImage(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	image, err := h.adminService.DeleteImage(c.Request.Context(), c.Param("id"))
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyImageDeleted),
		"id":      image.ID,
	})
}

// POST /admin/images/upload
func (h *AdminHandler) UploadImage(c *gin.Context) {
	adminID, ok := currentUser(c)
	if !ok {
		return
	}

	filename, data, err := readUpload(c, "file", int64(h.config.Upload.MaxSizeMB)*1024*1024)
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	image, err := h.adminService.UploadImage(c.Request.Context(), adminID, filename, data)
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.CreatedResponse(c, image.ToAdmin())
}

// POST /admin/images/bulk
func (h *AdminHandler) BulkUpload(c *gin.Context) {
	adminID, ok := currentUser(c)
	if !ok {
		return
	}

	_, archive, err := readUpload(c, "file", int64(h.config.Upload.MaxArchiveMB)*1024*1024)
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	result, err := h.adminService.BulkUpload(c.Request.Context(), adminID, archive)
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.CreatedResponse(c, result)
}

// GET /admin/analytics
func (h *AdminHandler) GetAnalytics(c *gin.Context) {
	stats, err := h.adminService.GetAnalytics(c.Request.Context())
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.SuccessResponse(c, stats)
}
