package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	_ "github.com/noah-isme/olimpiada-registration-api/api/swagger"
	"github.com/noah-isme/olimpiada-registration-api/internal/handler"
	internalmiddleware "github.com/noah-isme/olimpiada-registration-api/internal/middleware"
	"github.com/noah-isme/olimpiada-registration-api/internal/repository"
	"github.com/noah-isme/olimpiada-registration-api/internal/service"
	"github.com/noah-isme/olimpiada-registration-api/pkg/cache"
	"github.com/noah-isme/olimpiada-registration-api/pkg/config"
	"github.com/noah-isme/olimpiada-registration-api/pkg/database"
	"github.com/noah-isme/olimpiada-registration-api/pkg/jobs"
	"github.com/noah-isme/olimpiada-registration-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/olimpiada-registration-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/olimpiada-registration-api/pkg/middleware/requestid"
	"github.com/noah-isme/olimpiada-registration-api/pkg/storage"
)

// @title Olimpiada Registration API
// @version 1.0.0
// @description Enrollment and payment settlement for competition registration.
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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect database", "error", err)
	}
	defer db.Close()

	if cfg.Database.ApplySchema {
		if err := database.ApplySchema(ctx, db); err != nil {
			logr.Sugar().Fatalw("failed to apply schema", "error", err)
		}
	}

	metricsSvc := service.NewMetricsService()
	validate := validator.New()
	txRunner := database.NewTxRunner(db)

	readiness := []handler.ReadinessCheck{{Name: "postgres", Check: db.PingContext}}

	var cacheSvc *service.CacheService
	if cfg.Catalog.CacheEnabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, catalog cache disabled", zap.Error(err))
		} else {
			cacheRepo := repository.NewCacheRepository(redisClient, logr)
			defer cacheRepo.Close() //nolint:errcheck
			cacheSvc = service.NewCacheService(cacheRepo, metricsSvc, cfg.Catalog.CacheTTL, logr, true)
			readiness = append(readiness, handler.ReadinessCheck{Name: "redis", Check: cacheRepo.Ping})
		}
	}

	documents, err := storage.NewLocalStorage(cfg.Receipts.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init receipt storage", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Receipts.SignedURLSecret, cfg.Receipts.SignedURLTTL)

	cleanupQueue := jobs.NewQueue("receipt-cleanup", service.NewDocumentCleanupHandler(documents, metricsSvc, logr), jobs.QueueConfig{
		Workers:        cfg.Cleanup.Workers,
		MaxRetries:     cfg.Cleanup.Retries,
		RetryDelay:     cfg.Cleanup.RetryDelay,
		AttemptTimeout: 10 * time.Second,
		Logger:         logr,
		OnExhausted: func(job jobs.Job, err error) {
			metricsSvc.RecordDocumentCleanup("exhausted")
			logr.Error("receipt document cleanup exhausted", zap.String("ref", job.Payload["ref"]), zap.Error(err))
		},
	})
	cleanupQueue.Start(ctx)
	defer cleanupQueue.Stop()

	catalogRepo := repository.NewCatalogRepository(db)
	identityRepo := repository.NewIdentityRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	listRepo := repository.NewEnrollmentListRepository(db)
	orderRepo := repository.NewPaymentOrderRepository(db)
	receiptRepo := repository.NewPaymentReceiptRepository(db)

	identitySvc := service.NewIdentityService(identityRepo, validate, logr)
	enrollmentSvc := service.NewEnrollmentService(enrollmentRepo, catalogRepo, identityRepo, listRepo, txRunner, metricsSvc, validate, logr)
	orderSvc := service.NewPaymentOrderService(orderRepo, enrollmentRepo, listRepo, receiptRepo, txRunner, metricsSvc, validate, logr, service.PaymentOrderConfig{
		TTL:        cfg.Payments.OrderTTL,
		CodePrefix: cfg.Payments.CodePrefix,
	})
	registrationSvc := service.NewRegistrationService(identitySvc, enrollmentSvc, orderSvc, txRunner, validate, logr)
	listSvc := service.NewEnrollmentListService(listRepo, enrollmentSvc, enrollmentRepo, catalogRepo, orderRepo, txRunner, validate, logr)
	receiptSvc := service.NewPaymentReceiptService(receiptRepo, orderRepo, enrollmentSvc, listSvc, documents, signer, cleanupQueue, txRunner, metricsSvc, validate, logr, service.PaymentReceiptConfig{
		MaxFileSize:  cfg.Receipts.MaxFileSizeBytes,
		AllowedMIMEs: cfg.Receipts.AllowedMIMEs,
		APIPrefix:    cfg.APIPrefix,
	})
	catalogSvc := service.NewCatalogService(catalogRepo, cacheSvc, cfg.Catalog.CacheTTL, logr)

	metricsHandler := handler.NewMetricsHandler(metricsSvc, readiness...)

	r := gin.New()
	r.MaxMultipartMemory = cfg.Receipts.MaxFileSizeBytes + 1<<20
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metricsSvc))
	r.Use(internalmiddleware.WithResponseMeta())

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	handler.RegisterRoutes(r.Group(cfg.APIPrefix), handler.Handlers{
		Registration: handler.NewRegistrationHandler(registrationSvc),
		Enrollments:  handler.NewEnrollmentHandler(enrollmentSvc),
		Orders:       handler.NewPaymentOrderHandler(orderSvc),
		Receipts:     handler.NewPaymentReceiptHandler(receiptSvc, logr),
		Lists:        handler.NewEnrollmentListHandler(listSvc),
		Catalog:      handler.NewCatalogHandler(catalogSvc),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		logr.Info("server shutting down")
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logr.Error("server stopped with error", zap.Error(err))
	}
}
