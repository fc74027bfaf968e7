// internal/router/router.go
package router

import (
	"context"
	"net/http"
	"path/filepath"

	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"

	"github.com/stockpics/backend/internal/config"
	"github.com/stockpics/backend/internal/handlers"
	"github.com/stockpics/backend/internal/middleware"
	"github.com/stockpics/backend/internal/services"
	"github.com/stockpics/backend/internal/utils"
)

// Options overrides external collaborators. Nil fields are built from config.
type Options struct {
	AssetStore services.AssetStore
	Gateway    services.PaymentGateway
	Identity   services.IdentityProvider
}

func Initialize(ctx context.Context, db *gorm.DB, cfg *config.Config, opts Options) (*gin.Engine, error) {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		utils.RegisterCustomValidations(v)
	}

	// External collaborators
	store := opts.AssetStore
	if store == nil {
		var err error
		if store, err = services.NewAssetStore(ctx, cfg); err != nil {
			return nil, err
		}
	}
	gateway := opts.Gateway
	if gateway == nil {
		gateway = services.NewStripeGateway(cfg.Payment)
	}
	identity := opts.Identity
	if identity == nil {
		identity = services.NewGoogleIdentityProvider(cfg.Auth)
	}

	tokens := utils.NewTokenManager(cfg.JWT.SecretKey, cfg.JWT.AccessTokenTTL, cfg.JWT.Issuer)

	// Initialize services
	ledgerService := services.NewLedgerService(db, gateway, cfg.Payment.Currency)
	authService := services.NewAuthService(db, cfg, tokens, identity)
	catalogService := services.NewCatalogService(db, store, services.NewWatermarker(cfg.Upload.WatermarkText), ledgerService, cfg)
	paymentService := services.NewPaymentService(db, gateway, ledgerService, cfg)
	favoriteService := services.NewFavoriteService(db, catalogService)
	dashboardService := services.NewDashboardService(db, authService, ledgerService)
	adminService := services.NewAdminService(db, catalogService, store)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authService)
	imageHandler := handlers.NewImageHandler(catalogService, cfg)
	paymentHandler := handlers.NewPaymentHandler(paymentService, ledgerService)
	purchaseHandler := handlers.NewPurchaseHandler(ledgerService)
	favoriteHandler := handlers.NewFavoriteHandler(favoriteService)
	dashboardHandler := handlers.NewDashboardHandler(dashboardService)
	adminHandler := handlers.NewAdminHandler(adminService, cfg)

	limiters := middleware.NewRateLimiters(ctx)
	authRequired := middleware.AuthRequired(tokens, false)

	// Initialize Gin router
	r := gin.New()

	// Global middleware
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.CORS(cfg.Frontend.AllowedOrigins))
	r.Use(middleware.I18nMiddleware())

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"version": "1.0.0",
		})
	})

	// Gateway deliveries arrive in bursts from a few addresses and are
	// authenticated by signature, so they bypass the per-client limiter.
	r.POST("/api/stripe/webhook", paymentHandler.StripeWebhook)

	api := r.Group("/api")
	api.Use(limiters.General.Middleware())
	{
		// Authentication routes
		auth := api.Group("/auth")
		auth.Use(limiters.Auth.Middleware())
		{
			auth.POST("/register", authHandler.Register)
			auth.POST("/login", authHandler.Login)
			auth.POST("/google", authHandler.GoogleLogin)
			auth.POST("/google/code", authHandler.GoogleCodeLogin)
		}
		api.GET("/me", authRequired, authHandler.Me)

		// Catalog routes
		images := api.Group("/images")
		{
			images.GET("", imageHandler.ListImages)
			images.GET("/:id", imageHandler.GetImage)
			images.POST("", authRequired, limiters.Upload.Middleware(), imageHandler.UploadImage)
		}
		api.POST("/bulk-recommend", imageHandler.BulkRecommend)

		// Downloads accept ?token= so that plain links work.
		api.GET("/download/:image_id", middleware.AuthRequired(tokens, true), imageHandler.Download)

		// Payment routes
		api.POST("/create-payment-intent", authRequired, paymentHandler.CreatePaymentIntent)
		api.POST("/confirm-payment", authRequired, paymentHandler.ConfirmPayment)

		// Purchase routes
		purchases := api.Group("/purchases")
		purchases.Use(authRequired)
		{
			purchases.GET("", purchaseHandler.ListPurchases)
			purchases.GET("/has-image/:image_id", purchaseHandler.HasImage)
		}

		// Favorite routes
		favorites := api.Group("/favorites")
		favorites.Use(authRequired)
		{
			favorites.GET("", favoriteHandler.ListFavorites)
			favorites.POST("", favoriteHandler.AddFavorite)
			favorites.DELETE("/:image_id", favoriteHandler.RemoveFavorite)
		}

		api.GET("/dashboard", authRequired, dashboardHandler.GetDashboard)

		// Admin routes
		admin := api.Group("/admin")
		admin.Use(authRequired, middleware.AdminRequired(authService), middleware.AuditLogMiddleware(adminService))
		{
			adminImages := admin.Group("/images")
			{
				adminImages.GET("", adminHandler.ListImages)
				adminImages.DELETE("/:id", adminHandler.DeleteImage)
				adminImages.POST("/upload", limiters.Upload.Middleware(), adminHandler.UploadImage)
				adminImages.POST("/bulk", limiters.Upload.Middleware(), adminHandler.BulkUpload)
			}
			admin.GET("/analytics", adminHandler.GetAnalytics)

			if cfg.Server.EnablePprof {
				pprof.RouteRegister(admin, "debug/pprof")
			}
		}
	}

	// Static file serving (for development). Originals stay private.
	if local, ok := store.(*services.LocalAssetStore); ok && cfg.Environment == "development" {
		uploads := r.Group("/uploads", limiters.General.Middleware())
		uploads.Static("/"+services.FolderPreviews, filepath.Join(local.Dir(), services.FolderPreviews))
		uploads.Static("/"+services.FolderThumbnails, filepath.Join(local.Dir(), services.FolderThumbnails))
	}

	return r, nil
}
