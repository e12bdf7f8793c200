package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/lc-billing-api/api/swagger"
	"github.com/noah-isme/lc-billing-api/internal/handler"
	"github.com/noah-isme/lc-billing-api/internal/middleware"
	"github.com/noah-isme/lc-billing-api/internal/models"
	"github.com/noah-isme/lc-billing-api/internal/repository"
	"github.com/noah-isme/lc-billing-api/internal/service"
	"github.com/noah-isme/lc-billing-api/pkg/cache"
	"github.com/noah-isme/lc-billing-api/pkg/config"
	"github.com/noah-isme/lc-billing-api/pkg/database"
	"github.com/noah-isme/lc-billing-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/lc-billing-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/lc-billing-api/pkg/middleware/requestid"
)

// @title LC Billing API
// @version 1.0.0
// @description Billing and compensation engine for learning centers
// @BasePath /api/v1
// @schemes http

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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		redisClient = nil
	}

	// Repositories.
	paymentRepo := repository.NewPaymentRepository(db)
	discountRepo := repository.NewDiscountPeriodRepository(db)
	referralRepo := repository.NewReferralRepository(db)
	earningRepo := repository.NewEarningRepository(db)
	salaryRepo := repository.NewSalaryRepository(db)
	directoryRepo := repository.NewDirectoryRepository(db)
	expenseRepo := repository.NewExpenseRepository(db)
	dashboardRepo := repository.NewDashboardRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	// Services.
	metricsSvc := service.NewMetricsService()
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Dashboard.CacheTTL, logr, redisClient != nil)
	authSvc := service.NewAuthService(cfg.JWT.Secret)

	generatorSvc := service.NewPaymentGeneratorService(paymentRepo, directoryRepo, discountRepo,
		referralRepo, auditRepo, metricsSvc, logr, cfg.Billing.ReferralBonusRate)
	paymentSvc := service.NewPaymentService(paymentRepo, referralRepo, directoryRepo, auditRepo, cacheSvc, logr)
	earningSvc := service.NewEarningService(earningRepo, directoryRepo, salaryRepo, logr)
	salarySvc := service.NewSalaryService(salaryRepo, directoryRepo, earningSvc, auditRepo, cacheSvc, logr)
	dashboardSvc := service.NewDashboardService(dashboardRepo, expenseRepo, cacheSvc, cfg.Dashboard.CacheTTL, logr)
	expenseSvc := service.NewExpenseService(expenseRepo, cacheSvc, validator.New(), logr)
	exportSvc := service.NewExportService(paymentRepo, salarySvc, logr)

	cycleSvc := service.NewBillingCycleService(generatorSvc, salarySvc, metricsSvc, logr, service.BillingCycleConfig{
		Workers:    cfg.Billing.CycleWorkers,
		MaxRetries: cfg.Billing.CycleRetries,
		RetryDelay: cfg.Billing.CycleRetryDelay,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	cycleSvc.Start(ctx)
	defer cycleSvc.Stop()

	// Handlers.
	paymentHandler := handler.NewPaymentHandler(paymentSvc, generatorSvc)
	earningHandler := handler.NewEarningHandler(earningSvc)
	salaryHandler := handler.NewSalaryHandler(salarySvc)
	dashboardHandler := handler.NewDashboardHandler(dashboardSvc)
	expenseHandler := handler.NewExpenseHandler(expenseSvc)
	cycleHandler := handler.NewBillingCycleHandler(cycleSvc)
	exportHandler := handler.NewExportHandler(exportSvc)

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
	r.GET("/ready", func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.JWT(authSvc))

	admins := middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin)
	collectors := middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin, models.RoleCashier)

	payments := api.Group("/payments")
	{
		payments.POST("/generate", admins, paymentHandler.Generate)
		payments.GET("", collectors, paymentHandler.List)
		payments.GET("/:id", collectors, paymentHandler.Get)
		payments.POST("/:id/pay", collectors, paymentHandler.Pay)
		payments.POST("/:id/pay-partial", collectors, paymentHandler.PayPartial)
		payments.POST("/:id/refund", admins, paymentHandler.Refund)
		payments.POST("/:id/receipts", collectors, paymentHandler.CreateReceipt)
		payments.GET("/:id/receipts", collectors, paymentHandler.ListReceipts)
	}

	receipts := api.Group("/receipts")
	{
		receipts.POST("/:receiptId/confirm", admins, paymentHandler.ConfirmReceipt)
		receipts.POST("/:receiptId/reject", admins, paymentHandler.RejectReceipt)
	}

	earnings := api.Group("/earnings")
	{
		earnings.GET("/:teacherId", middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin, models.RoleTeacher), earningHandler.Get)
		earnings.POST("/:teacherId/calculate", admins, earningHandler.Calculate)
	}

	salaries := api.Group("/salaries")
	{
		salaries.GET("", admins, salaryHandler.List)
		salaries.POST("/:id/pay", admins, salaryHandler.Pay)
		salaries.GET("/:id/payments", admins, salaryHandler.ListPayments)
	}

	expenses := api.Group("/expenses")
	{
		expenses.POST("", admins, expenseHandler.Create)
		expenses.GET("", admins, expenseHandler.List)
	}

	if cfg.Dashboard.Enabled {
		api.GET("/dashboard/summary", admins, dashboardHandler.Summary)
	}

	api.POST("/billing-cycles", admins, cycleHandler.Run)

	if cfg.Exports.Enabled {
		exports := api.Group("/exports")
		{
			exports.GET("/payments", admins, exportHandler.PaymentsCSV)
			exports.GET("/payroll", admins, exportHandler.PayrollPDF)
		}
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("shutdown failed", "error", err)
	}
}
