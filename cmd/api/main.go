package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/tourforge/backend/internal/config"
	"github.com/tourforge/backend/internal/handlers"
	"github.com/tourforge/backend/internal/middleware"
	"github.com/tourforge/backend/internal/models"
	"github.com/tourforge/backend/internal/services"
	"github.com/tourforge/backend/pkg/urlsign"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Initialize configuration
	cfg := config.New()

	// Initialize database
	db, err := models.InitDB(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	// Run migrations
	if err := models.Migrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Initialize Redis
	redisClient := models.InitRedis(cfg)
	defer redisClient.Close()

	// Initialize services
	signer := urlsign.New(cfg.DownloadURLSecret)
	storageService := services.NewStorageService(cfg)
	authService := services.NewAuthService(db, cfg)
	userService := services.NewUserService(db)
	projectService := services.NewProjectService(db, storageService)
	tourService := services.NewTourService(db)
	assetService := services.NewAssetService(db, cfg, storageService, signer)
	bundleService := services.NewBundleService(db, storageService)
	routeService := services.NewRouteService(cfg)
	qrService := services.NewQRService(cfg)

	var s3Service *services.S3Service
	if cfg.BundleS3Enabled {
		s3Service, err = services.NewS3Service(cfg)
		if err != nil {
			log.Fatalf("Failed to init S3 service: %v", err)
		}
	}
	publishService := services.NewPublishService(db, cfg, storageService, redisClient, s3Service)

	// Setup Gin router
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg))
	router.Use(middleware.RateLimiter(redisClient, cfg))

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authService)
	userHandler := handlers.NewUserHandler(userService)
	projectHandler := handlers.NewProjectHandler(projectService, publishService, userService, qrService)
	tourHandler := handlers.NewTourHandler(tourService, projectService)
	assetHandler := handlers.NewAssetHandler(assetService, projectService, storageService, signer, cfg)
	bundleHandler := handlers.NewBundleHandler(bundleService)
	routeHandler := handlers.NewRouteHandler(routeService)

	// Health check outside API group (no /api/v1 prefix)
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	// Published bundle serving for tour viewers
	router.GET("/download/:project_id", bundleHandler.GetArchive)
	router.GET("/download/:project_id/*path", bundleHandler.GetFile)

	// Setup routes
	api := router.Group("/api/v1")
	{
		// Health check also available under /api/v1/health for compatibility
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "healthy"})
		})

		// Catch-all OPTIONS handler for CORS preflight requests
		api.OPTIONS("/*path", func(c *gin.Context) {
			c.Status(http.StatusNoContent)
		})

		// Auth routes
		auth := api.Group("/auth")
		{
			auth.POST("/register", authHandler.Register)
			auth.POST("/login", authHandler.Login)
			auth.POST("/refresh", authHandler.RefreshToken)
			auth.POST("/logout", authHandler.Logout)
		}

		// Signed asset downloads carry their authorization in the URL itself
		api.GET("/projects/:project_id/assets/:asset_id/download", assetHandler.Download)

		// User routes
		user := api.Group("/user")
		user.Use(middleware.Auth(authService))
		{
			user.GET("/profile", userHandler.GetProfile)
		}

		// Username lookup for the member picker
		api.GET("/users/by_username/:username", middleware.Auth(authService), userHandler.GetByUsername)

		// Routing proxy for tour editors
		api.POST("/route", middleware.Auth(authService), routeHandler.Directions)

		// Project routes
		projects := api.Group("/projects")
		projects.Use(middleware.Auth(authService))
		projects.Use(middleware.UploadRateLimit(redisClient, cfg))
		{
			projects.GET("", projectHandler.List)
			projects.POST("", projectHandler.Create)
			projects.GET("/:project_id", projectHandler.Get)
			projects.PUT("/:project_id", projectHandler.Update)
			projects.DELETE("/:project_id", projectHandler.Delete)
			projects.POST("/:project_id/publish", projectHandler.Publish)
			projects.POST("/:project_id/unpublish", projectHandler.Unpublish)
			projects.GET("/:project_id/poster.pdf", projectHandler.QRPoster)

			// Membership
			projects.GET("/:project_id/members", projectHandler.ListMembers)
			projects.POST("/:project_id/members", projectHandler.AddMember)
			projects.PUT("/:project_id/members/:member_id", projectHandler.UpdateMember)
			projects.DELETE("/:project_id/members/:member_id", projectHandler.RemoveMember)

			// Tours
			projects.GET("/:project_id/tours", tourHandler.List)
			projects.POST("/:project_id/tours", tourHandler.Create)
			projects.GET("/:project_id/tours/:tour_id", tourHandler.Get)
			projects.PUT("/:project_id/tours/:tour_id", tourHandler.Update)
			projects.DELETE("/:project_id/tours/:tour_id", tourHandler.Delete)

			// Assets
			projects.GET("/:project_id/assets", assetHandler.List)
			projects.POST("/:project_id/assets", assetHandler.Upload)
			projects.GET("/:project_id/assets/:asset_id", assetHandler.Get)
			projects.PUT("/:project_id/assets/:asset_id", assetHandler.Update)
			projects.DELETE("/:project_id/assets/:asset_id", assetHandler.Delete)
		}
	}

	// Start server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  120 * time.Second, // 2 min for large asset uploads
		WriteTimeout: 120 * time.Second, // 2 min for bundle downloads
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		log.Printf("Starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}
