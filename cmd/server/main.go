package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	ddapp "github.com/erp/directdebit/internal/application/directdebit"
	"github.com/erp/directdebit/internal/domain/directdebit"
	"github.com/erp/directdebit/internal/infrastructure/cache"
	"github.com/erp/directdebit/internal/infrastructure/config"
	"github.com/erp/directdebit/internal/infrastructure/event"
	"github.com/erp/directdebit/internal/infrastructure/logger"
	"github.com/erp/directdebit/internal/infrastructure/persistence"
	"github.com/erp/directdebit/internal/infrastructure/scheduler"
	"github.com/erp/directdebit/internal/infrastructure/storage"
	"github.com/erp/directdebit/internal/interfaces/http/handler"
	"github.com/erp/directdebit/internal/interfaces/http/middleware"
	"github.com/erp/directdebit/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

//	@title			SEPA Direct Debit API
//	@version		1.0
//	@description	Mandates, payment orders and pain.008 file generation
//	@BasePath		/api/v1

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	defer func() { _ = log.Sync() }()

	log.Info("Starting direct debit service",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	db, err := persistence.NewDatabase(&cfg.Database, log.Named("gorm"), cfg.Log.Level)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Failed to close database", zap.Error(err))
		}
	}()
	if cfg.Database.Driver == "sqlite" {
		// postgres is migrated by cmd/migrate
		if err := db.AutoMigrate(); err != nil {
			log.Fatal("Failed to create sqlite tables", zap.Error(err))
		}
	}
	log.Info("Database connected", zap.String("driver", cfg.Database.Driver))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fileStorage, err := storage.New(ctx, &cfg.Storage, log)
	if err != nil {
		log.Fatal("Failed to initialize file storage", zap.Error(err))
	}

	lock, err := cache.NewLockFactory(cfg.Redis, cache.WithLogger(log.Named("lock"))).CreateLock()
	if err != nil {
		log.Fatal("Failed to initialize processing lock", zap.Error(err))
	}

	eventBus := event.NewInMemoryEventBus(log.Named("events"))
	eventBus.Subscribe(ddapp.NewAuditHandler(log))
	if err := eventBus.Start(ctx); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}

	mandateRepo := persistence.NewGormMandateRepository(db.DB)
	orderRepo := persistence.NewGormPaymentOrderRepository(db.DB)
	fileRepo := persistence.NewGormSddFileRepository(db.DB)

	dd := cfg.DirectDebit
	sweep := directdebit.NewExpirySweep()
	sweep.Enabled = dd.ExpirySweepEnabled
	sweep.UnusedMonths = dd.UnusedMonthsBeforeExpiry

	mandateService := ddapp.NewMandateService(ddapp.MandateServiceConfig{
		Repo:           mandateRepo,
		EventPublisher: eventBus,
		Sweep:          sweep,
		Logger:         log.Named("sdd.mandate"),
	})
	orderService := ddapp.NewOrderService(ddapp.OrderServiceConfig{
		Orders:         orderRepo,
		Mandates:       mandateRepo,
		DefaultFlavor:  directdebit.Flavor(dd.DefaultFlavor),
		ConvertToASCII: dd.ConvertToASCII,
		SplitCount:     dd.SplitCount,
		Logger:         log.Named("sdd.order"),
	})
	exportService := ddapp.NewExportService(ddapp.ExportServiceConfig{
		Mandates:       mandateRepo,
		Orders:         orderRepo,
		Files:          fileRepo,
		TxScope:        persistence.NewGormTransactionScope(db.DB),
		Storage:        fileStorage,
		EventPublisher: eventBus,
		Defaults: ddapp.ExportDefaults{
			ChargeBearer: directdebit.ChargeBearer(dd.ChargeBearer),
			BatchBooking: dd.BatchBooking,
		},
		PresignExpiry: cfg.Storage.PresignExpiry,
		Logger:        log.Named("sdd.export"),
	})

	var (
		confirmService *ddapp.ConfirmService
		queue          *scheduler.OrderJobQueue
		expiryTrigger  *scheduler.ExpiryTrigger
	)
	if cfg.Scheduler.Enabled {
		confirmService = ddapp.NewConfirmService(ddapp.ConfirmServiceConfig{
			Orders:    orderRepo,
			Exporter:  exportService,
			Lock:      lock,
			BlockSize: dd.MarkBlockSize,
			LockTTL:   dd.LockTTL,
			Logger:    log.Named("sdd.confirm"),
		})
		queue = scheduler.NewOrderJobQueue(scheduler.SchedulerConfig{
			Enabled:           true,
			MaxConcurrentJobs: cfg.Scheduler.Workers,
			QueueSize:         cfg.Scheduler.QueueSize,
			JobTimeout:        cfg.Scheduler.JobTimeout,
			RetryAttempts:     cfg.Scheduler.MaxRetries,
			RetryDelay:        cfg.Scheduler.RetryDelay,
		}, confirmService, log)
		confirmService.SetQueue(queue)
		if err := queue.Start(ctx); err != nil {
			log.Fatal("Failed to start order job queue", zap.Error(err))
		}

		expiryTrigger = scheduler.NewExpiryTrigger(scheduler.DefaultExpiryTriggerConfig(), mandateService, log)
		if err := expiryTrigger.Start(ctx); err != nil {
			log.Fatal("Failed to start expiry trigger", zap.Error(err))
		}
	} else {
		log.Info("Scheduler disabled, delayed order processing and the expiry sweep are off")
	}

	mode := gin.DebugMode
	if cfg.App.Env == "production" {
		mode = gin.ReleaseMode
	}
	engine, err := router.NewEngine(router.EngineConfig{
		Mode:           mode,
		MaxBodySize:    cfg.HTTP.MaxBodySize,
		TrustedProxies: cfg.HTTP.TrustedProxies,
		CORS:           middleware.DefaultCORSConfig(),
		Ping:           db.Ping,
	}, log, router.Handlers{
		Mandates: handler.NewMandateHandler(mandateService),
		Orders:   handler.NewOrderHandler(orderService, confirmService),
		Files:    handler.NewFileHandler(exportService),
		Tools:    handler.NewToolsHandler(nil),
	})
	if err != nil {
		log.Fatal("Failed to create HTTP engine", zap.Error(err))
	}

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if expiryTrigger != nil {
		if err := expiryTrigger.Stop(shutdownCtx); err != nil {
			log.Error("Failed to stop expiry trigger", zap.Error(err))
		}
	}
	if queue != nil {
		if err := queue.Stop(shutdownCtx); err != nil {
			log.Error("Failed to stop order job queue", zap.Error(err))
		}
	}
	if err := eventBus.Stop(shutdownCtx); err != nil {
		log.Error("Failed to stop event bus", zap.Error(err))
	}
	if closer, ok := lock.(interface{ Close() error }); ok {
		_ = closer.Close()
	}

	log.Info("Server exited gracefully")
}
