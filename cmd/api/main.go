package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/skrillzofficial/eventry-api/api/swagger"
	"github.com/skrillzofficial/eventry-api/internal/gateway/paystack"
	"github.com/skrillzofficial/eventry-api/internal/handler"
	"github.com/skrillzofficial/eventry-api/internal/middleware"
	"github.com/skrillzofficial/eventry-api/internal/models"
	"github.com/skrillzofficial/eventry-api/internal/repository"
	"github.com/skrillzofficial/eventry-api/internal/service"
	"github.com/skrillzofficial/eventry-api/pkg/cache"
	"github.com/skrillzofficial/eventry-api/pkg/config"
	"github.com/skrillzofficial/eventry-api/pkg/database"
	"github.com/skrillzofficial/eventry-api/pkg/export"
	"github.com/skrillzofficial/eventry-api/pkg/logger"
	corsmiddleware "github.com/skrillzofficial/eventry-api/pkg/middleware/cors"
	reqidmiddleware "github.com/skrillzofficial/eventry-api/pkg/middleware/requestid"
	"github.com/skrillzofficial/eventry-api/pkg/storage"
)

// @title Eventry API
// @version 1.0.0
// @description Event publishing and registration platform
// @BasePath /api/v1
// @schemes http https

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.Connect(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.Connect(cfg.Redis)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to redis", "error", err)
	}
	defer redisClient.Close() //nolint:errcheck

	uploads, err := storage.NewLocalStorage(cfg.Uploads.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to prepare upload storage", "error", err)
	}

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	// Repositories.
	userRepo := repository.NewUserRepository(db)
	eventRepo := repository.NewEventRepository(db)
	registrationRepo := repository.NewRegistrationRepository(db)
	transactionRepo := repository.NewTransactionRepository(db)
	handoffRepo := repository.NewHandoffRepository(redisClient, logr)

	// Gateway.
	gateway := paystack.New(cfg.Paystack, logr).WithLatencyObserver(metricsSvc.ObserveGatewayCall)

	// Services.
	publicationSvc := service.NewPublicationService()
	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "eventry-api",
	})
	eventSvc := service.NewEventService(eventRepo, publicationSvc, logr)
	handoffSvc := service.NewHandoffService(handoffRepo, gateway, eventSvc, transactionRepo, publicationSvc, validate, logr, service.HandoffConfig{
		TTL:         cfg.Fees.HandoffTTL,
		CallbackURL: cfg.Paystack.CallbackURL,
	})
	registrationSvc := service.NewRegistrationService(registrationRepo, eventRepo, userRepo,
		export.NewTicketPDFRenderer(), export.NewCSVExporter(), logr, cfg.Tickets.IssuerName)

	// Handlers.
	authHandler := handler.NewAuthHandler(authSvc)
	eventHandler := handler.NewEventHandler(eventSvc, uploads, metricsSvc, cfg.Uploads.MaxFileSizeBytes)
	transactionHandler := handler.NewTransactionHandler(handoffSvc, metricsSvc)
	registrationHandler := handler.NewRegistrationHandler(registrationSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
		auth.POST("/logout", middleware.JWT(authSvc), authHandler.Logout)
		auth.GET("/me", middleware.JWT(authSvc), authHandler.Me)
	}

	events := api.Group("/events")
	{
		events.GET("", middleware.OptionalJWT(authSvc), eventHandler.List)
		events.GET("/:id", eventHandler.Get)

		organizer := events.Group("", middleware.JWT(authSvc), middleware.RequireRoles(models.RoleOrganizer, models.RoleAdmin))
		{
			organizer.POST("", eventHandler.Create)
			organizer.PUT("/:id", eventHandler.Update)
			organizer.POST("/images", eventHandler.UploadImage)
			organizer.GET("/:id/publication-check", eventHandler.CheckPublication)
			organizer.POST("/:id/publish", eventHandler.Publish)
			organizer.POST("/:id/cancel", eventHandler.Cancel)
			organizer.DELETE("/:id", eventHandler.Cancel)
			organizer.GET("/:id/registrations", registrationHandler.List)
			organizer.GET("/:id/registrations/export", registrationHandler.ExportCSV)
		}

		events.POST("/:id/registrations", middleware.JWT(authSvc), registrationHandler.Register)
	}

	registrations := api.Group("/registrations", middleware.JWT(authSvc))
	{
		registrations.POST("/:id/approve", middleware.RequireRoles(models.RoleOrganizer, models.RoleAdmin), registrationHandler.Approve)
		registrations.POST("/:id/decline", middleware.RequireRoles(models.RoleOrganizer, models.RoleAdmin), registrationHandler.Decline)
		registrations.POST("/:id/cancel", registrationHandler.Cancel)
		registrations.GET("/:id/ticket", registrationHandler.Ticket)
	}

	transactions := api.Group("/transactions")
	{
		transactions.POST("/service-fee/initialize", middleware.JWT(authSvc), middleware.RequireRoles(models.RoleOrganizer, models.RoleAdmin), transactionHandler.InitializeServiceFee)
		// The gateway redirect arrives without a session; the reference is
		// the only credential.
		transactions.GET("/service-fee/verify/:reference", transactionHandler.VerifyServiceFee)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
