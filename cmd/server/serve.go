package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"asset-service/internal/api"
	"asset-service/internal/auth"
	"asset-service/internal/broker"
	"asset-service/internal/pdf"
	"asset-service/internal/redisclient"
	"asset-service/internal/service"
	"asset-service/internal/store"
	"asset-service/internal/util"
	"asset-service/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var migrateOnStart bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server, ledger worker and reconcile schedule",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&migrateOnStart, "migrate", false, "Apply pending migrations before serving")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg := bootstrap()
	logger := util.GetLogger()
	logger.Info("Starting asset service", zap.String("env", cfg.Server.Env))

	tp, err := util.InitTracer(cfg.Observ.JaegerEndpoint, cfg.Server.Env)
	if err != nil {
		return fmt.Errorf("failed to initialize tracer: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			logger.Warn("Error shutting down tracer", zap.Error(err))
		}
	}()

	if migrateOnStart {
		if err := store.Migrate(cfg.Database.URL, true); err != nil {
			return err
		}
		logger.Info("Migrations applied")
	}

	db, err := store.NewStore(cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()
	logger.Info("Database connected")

	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	defer redisClient.Close()
	logger.Info("Redis connected")

	producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicAsset)
	defer producer.Close()
	logger.Info("Kafka producer initialized", zap.Strings("brokers", cfg.Kafka.Brokers))

	eventPublisher := broker.NewEventPublisher(producer)

	ledger := service.NewMovementLedger(db, eventPublisher)
	allocator := service.NewSequenceAllocator(db, cfg.Business.InvoicePrefix)
	assetService := service.NewAssetService(db, ledger, eventPublisher)
	invoiceService := service.NewInvoiceService(db, allocator, ledger, eventPublisher, redisClient, cfg.Business.IdempotencyTTL)
	verificationService := service.NewVerificationService(db)
	reportService := service.NewReportService(db)
	reconciler := service.NewReconciler(db, redisClient, cfg.Reconcile.LockTTL)

	if cfg.Auth.AdminPasswordHash == "" {
		logger.Warn("ADMIN_PASSWORD_HASH is empty, admin login is disabled")
	}
	authenticator := auth.NewAuthenticator(cfg.Auth.JWTSecret, cfg.Auth.AdminEmail, cfg.Auth.AdminPasswordHash, cfg.Auth.TokenTTL)
	renderer := pdf.NewRenderer(cfg.Business.PublicBaseURL, cfg.Business.ChromePath, cfg.Business.PDFTimeout)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	ledgerConsumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicAsset, cfg.Kafka.ConsumerGroup)
	ledgerWorker := worker.NewLedgerWorker(ledgerConsumer, reconciler)
	go func() {
		if err := ledgerWorker.Start(workerCtx); err != nil {
			logger.Error("Ledger worker error", zap.Error(err))
		}
	}()

	scheduler, err := worker.NewReconcileScheduler(reconciler, cfg.Reconcile.Schedule, cfg.Reconcile.LockTTL)
	if err != nil {
		return err
	}
	scheduler.Start()

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(api.Dependencies{
		Assets:       assetService,
		Invoices:     invoiceService,
		Ledger:       ledger,
		Verification: verificationService,
		Reports:      reportService,
		Renderer:     renderer,
		Auth:         authenticator,
		Checks: map[string]api.Pinger{
			"database": db,
			"redis":    redisClient,
		},
		CORSOrigins: cfg.Server.CORSOrigins,
	})
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	scheduler.Stop()
	workerCancel()
	if err := ledgerWorker.Stop(); err != nil {
		logger.Warn("Error stopping ledger worker", zap.Error(err))
	}

	logger.Info("Server exited")
	return nil
}
