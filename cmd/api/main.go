package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "hospital-inventory/api/swagger" // swagger docs
	"hospital-inventory/internal/database"
	"hospital-inventory/internal/handler"
	"hospital-inventory/internal/middleware"
	"hospital-inventory/internal/repository"
	"hospital-inventory/internal/service"
	"hospital-inventory/internal/websocket"
	"hospital-inventory/pkg/config"
	"hospital-inventory/pkg/logger"
	"hospital-inventory/pkg/metrics"
	"hospital-inventory/pkg/redis"
	"hospital-inventory/pkg/token"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

const shutdownTimeout = 10 * time.Second

// @title           Hospital Inventory API
// @version         1.0
// @description     Requisitions, issuing vouchers and purchase orders over a shared stock ledger.
// @host            localhost:8080
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load("configs/.env"); err != nil {
		logg.Warn(context.Background(), "no configs/.env file found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})
	switch {
	case cfg.App.IsDev():
		gin.SetMode(gin.DebugMode)
	case cfg.App.IsTest():
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewConnection(cfg.DB)
	if err != nil {
		logg.Error(ctx, "database connection failed", err)
		os.Exit(1)
	}
	logg.Info(logg.WithField(ctx, "driver", cfg.DB.Driver), "connected to database")

	// login throttling is skipped when redis is not configured
	var limiter service.RateLimiter
	if cfg.Redis.Enabled() {
		redisClient, err := redis.New(ctx, cfg.Redis)
		if err != nil {
			logg.Error(ctx, "failed to bootstrap redis", err)
			os.Exit(1)
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing redis", err)
			}
		}()
		limiter = redisClient
	} else {
		logg.Warn(ctx, "REDIS_URL not set, login rate limiting disabled")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	httpMetrics := metrics.NewHTTPMetrics(registry)
	stockMetrics := metrics.NewStockMetrics(registry)

	tokens := token.NewManager(cfg.JWT.Secret, cfg.JWT.TTL, cfg.JWT.Issuer)

	// Set up WebSocket Hub
	wsHub := websocket.NewHub(logg)
	go wsHub.Run(ctx)

	// Set up dependencies (Repository -> Service -> Handler)
	itemRepo := repository.NewItemRepository(db)
	supplierRepo := repository.NewSupplierRepository(db)
	reqRepo := repository.NewRequisitionRepository(db)
	voucherRepo := repository.NewVoucherRepository(db)
	poRepo := repository.NewPurchaseOrderRepository(db)
	movementRepo := repository.NewStockMovementRepository(db)
	userRepo := repository.NewUserRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	txManager := repository.NewTransactionManager(db)

	userService := service.NewUserService(userRepo, auditRepo, txManager, tokens, limiter, cfg.AuthRateLimit, logg)
	itemService := service.NewItemService(itemRepo, supplierRepo, movementRepo, auditRepo, txManager, stockMetrics, wsHub)
	supplierService := service.NewSupplierService(supplierRepo, auditRepo, txManager)
	requisitionService := service.NewRequisitionService(reqRepo, voucherRepo, itemRepo, movementRepo, auditRepo, txManager, stockMetrics, wsHub)
	issuingService := service.NewIssuingService(voucherRepo, reqRepo, itemRepo, movementRepo, auditRepo, txManager, stockMetrics, wsHub, logg)
	purchaseOrderService := service.NewPurchaseOrderService(poRepo, supplierRepo, itemRepo, movementRepo, auditRepo, txManager, stockMetrics, wsHub, logg)
	reportService := service.NewReportService(itemRepo, reqRepo, voucherRepo, poRepo, movementRepo)
	auditService := service.NewAuditService(auditRepo)

	if cfg.App.SeedOnBoot {
		seeder := service.NewSeedService(userRepo, supplierRepo, itemRepo, movementRepo, txManager, cfg.Seed, logg)
		if _, err := seeder.Seed(ctx); err != nil {
			logg.Error(ctx, "seeding failed", err)
			os.Exit(1)
		}
	}

	// Initialize Handlers
	userHandler := handler.NewUserHandler(userService, logg)
	inventoryHandler := handler.NewInventoryHandler(itemService, logg)
	supplierHandler := handler.NewSupplierHandler(supplierService, logg)
	requisitionHandler := handler.NewRequisitionHandler(requisitionService, logg)
	issuingHandler := handler.NewIssuingHandler(issuingService, logg)
	purchaseOrderHandler := handler.NewPurchaseOrderHandler(purchaseOrderService, logg)
	reportHandler := handler.NewReportHandler(reportService, logg)
	auditHandler := handler.NewAuditHandler(auditService, logg)

	// Set up Gin Router
	router := gin.New()
	router.Use(middleware.Recovery(logg), middleware.RequestLogger(logg), middleware.Metrics(httpMetrics))

	// CORS configuration
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.App.CORSOrigins
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept", middleware.RequestIDHeader}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	router.Use(cors.New(corsConfig))

	// Swagger route
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	// Health check
	router.GET("/health", func(c *gin.Context) {
		if err := database.Ping(db, 2*time.Second); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "DOWN"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "OK"})
	})

	// WebSocket endpoint
	router.GET("/ws", func(c *gin.Context) {
		websocket.ServeWs(wsHub, tokens, c)
	})

	// API Routing
	api := router.Group("/api/v1")
	secured := api.Group("", middleware.RequireAuth(tokens))
	userHandler.RegisterPublicRoutes(api)
	userHandler.RegisterRoutes(secured)
	inventoryHandler.RegisterRoutes(secured)
	supplierHandler.RegisterRoutes(secured)
	requisitionHandler.RegisterRoutes(secured)
	issuingHandler.RegisterRoutes(secured)
	purchaseOrderHandler.RegisterRoutes(secured)
	reportHandler.RegisterRoutes(secured)
	auditHandler.RegisterRoutes(secured)

	server := &http.Server{
		Addr:              ":" + cfg.App.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logg.Info(logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "addr": server.Addr}), "starting api server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			stop()
		}
	}()

	<-ctx.Done()
	logg.Info(context.Background(), "shutting down api server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logg.Error(shutdownCtx, "graceful shutdown failed", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
