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
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	_ "github.com/noah-isme/facility-inventory-api/api/swagger"
	"github.com/noah-isme/facility-inventory-api/internal/repository"
	"github.com/noah-isme/facility-inventory-api/internal/service"
	"github.com/noah-isme/facility-inventory-api/pkg/cache"
	"github.com/noah-isme/facility-inventory-api/pkg/config"
	"github.com/noah-isme/facility-inventory-api/pkg/database"
	"github.com/noah-isme/facility-inventory-api/pkg/jobs"
	"github.com/noah-isme/facility-inventory-api/pkg/logger"
	"github.com/noah-isme/facility-inventory-api/pkg/mailer"
	"github.com/noah-isme/facility-inventory-api/pkg/scheduler"
	"github.com/noah-isme/facility-inventory-api/pkg/storage"
)

// @title Facility Inventory API
// @version 1.0.0
// @description Check-out, check-in and tabling log service for campus facility inventory.
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

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

	db, err := database.Open(cfg.Database)
	if err != nil {
		logr.Fatal("failed to open database", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	applied, err := database.Migrate(ctx, db)
	if err != nil {
		logr.Fatal("failed to migrate database", zap.Error(err))
	}
	logr.Info("database ready", zap.String("driver", cfg.Database.Driver), zap.Int("migrations_applied", applied))

	metrics := service.NewMetricsService()

	var cacheRepo service.CacheRepository
	if cfg.Redis.Enabled {
		var client *redis.Client
		client, err = cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, caching disabled", zap.Error(err))
		} else {
			defer client.Close() //nolint:errcheck
			cacheRepo = repository.NewCacheRepository(client, logr)
		}
	}
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Cache.TTL, logr, cacheRepo != nil)

	validate := validator.New()

	itemRepo := repository.NewItemRepository(db)
	orgRepo := repository.NewOrganizationRepository(db)
	checkRepo := repository.NewInventoryCheckRepository(db)
	userRepo := repository.NewUserRepository(db)

	var mail mailer.Mailer
	if cfg.Mail.Enabled {
		smtp, mailErr := mailer.NewSMTPMailer(cfg.Mail)
		if mailErr != nil {
			logr.Fatal("failed to init smtp mailer", zap.Error(mailErr))
		}
		mail = smtp
	} else {
		mail = mailer.NewLogMailer(logr)
	}

	notifications := service.NewNotificationService(mail, nil, userRepo, metrics, logr, service.NotificationConfig{
		AdminRecipients: cfg.Mail.AdminRecipients,
		EMSRecipients:   cfg.Mail.EMSRecipients,
	})
	queue := jobs.NewQueue("notifications", notifications.Deliver, jobs.QueueConfig{
		Workers:    cfg.Notifications.WorkerConcurrency,
		MaxRetries: cfg.Notifications.WorkerRetries,
		RetryDelay: 2 * time.Second,
		Logger:     logr,
	})
	notifications.SetQueue(queue)
	queue.Start(ctx)
	defer queue.Stop()

	itemSvc := service.NewItemService(itemRepo, db, cacheSvc, notifications, metrics, userRepo, validate, logr)
	reservationSvc := service.NewReservationService(orgRepo, itemRepo, db, cacheSvc, notifications, metrics, validate, logr)
	checkSvc := service.NewInventoryCheckService(checkRepo, itemRepo, notifications, validate, logr)
	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "facility-inventory-api",
	})
	userSvc := service.NewUserService(userRepo, validate, logr)

	files, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		logr.Fatal("failed to prepare export storage", zap.Error(err))
	}
	exportSvc := service.NewExportService(
		service.ExportSources{Tabling: reservationSvc, InventoryChecks: checkSvc, ItemHistory: itemSvc},
		files,
		storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL),
		metrics,
		service.ExportConfig{APIPrefix: cfg.APIPrefix, ResultTTL: cfg.Exports.SignedURLTTL},
		logr,
	)

	sched, err := newScheduler(cfg, logr, itemSvc, exportSvc)
	if err != nil {
		logr.Fatal("failed to init scheduler", zap.Error(err))
	}
	sched.Start()
	defer func() {
		if err := sched.Shutdown(); err != nil {
			logr.Warn("scheduler shutdown", zap.Error(err))
		}
	}()

	r := newRouter(cfg, logr, routeDeps{
		db:           db,
		metrics:      metrics,
		audit:        userRepo,
		auth:         authSvc,
		items:        itemSvc,
		reservations: reservationSvc,
		checks:       checkSvc,
		exports:      exportSvc,
		users:        userSvc,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}

func newScheduler(cfg *config.Config, logr *zap.Logger, items *service.ItemService, exports *service.ExportService) (*scheduler.Scheduler, error) {
	sched, err := scheduler.New(logr, 2*time.Minute)
	if err != nil {
		return nil, err
	}

	if cfg.Digest.Enabled {
		overdue := cfg.Digest.OverdueAfter
		err = sched.Every("unreturned-digest", cfg.Digest.Interval, func(ctx context.Context) error {
			count, err := items.SendUnreturnedDigest(ctx, overdue)
			if err != nil {
				return err
			}
			logr.Info("unreturned digest sent", zap.Int("items", count))
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	err = sched.Every("export-cleanup", cfg.Exports.CleanupInterval, func(ctx context.Context) error {
		removed, err := exports.Cleanup(0)
		if err != nil {
			return err
		}
		if len(removed) > 0 {
			logr.Info("expired exports removed", zap.Int("files", len(removed)))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sched, nil
}
