package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/supermen-api/internal/handler"
	"github.com/noah-isme/supermen-api/internal/models"
	"github.com/noah-isme/supermen-api/internal/repository"
	"github.com/noah-isme/supermen-api/internal/service"
	"github.com/noah-isme/supermen-api/internal/validation"
	"github.com/noah-isme/supermen-api/pkg/cache"
	"github.com/noah-isme/supermen-api/pkg/config"
	"github.com/noah-isme/supermen-api/pkg/database"
	"github.com/noah-isme/supermen-api/pkg/jobs"
	"github.com/noah-isme/supermen-api/pkg/logger"
	"github.com/noah-isme/supermen-api/pkg/storage"
)

// @title SUPERMEN API
// @version 1.0.0
// @description Legal metrology personnel registration and certification verification
// @BasePath /api/v1
// @schemes http https
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("database connection failed", "error", err)
	}
	defer db.Close() //nolint:errcheck

	if cfg.Database.AutoMigrate {
		if err := database.ApplyMigrations(db); err != nil {
			logr.Sugar().Fatalw("migrations failed", "error", err)
		}
		logr.Info("migrations applied")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := buildApp(ctx, cfg, db, connectRedis(cfg, logr), logr)
	if err != nil {
		logr.Sugar().Fatalw("failed to build application", "error", err)
	}
	defer app.close()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           app.router,
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
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}

// connectRedis returns nil when Redis is unreachable; state then lives in process memory.
func connectRedis(cfg *config.Config, logr *zap.Logger) *redis.Client {
	client, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, using in-memory state store", zap.Error(err))
		return nil
	}
	return client
}

type application struct {
	router *gin.Engine
	close  func()
}

type services struct {
	metrics        *service.MetricsService
	auth           *service.AuthService
	audit          *service.AuditService
	configuration  *service.ConfigurationService
	notifications  *service.NotificationService
	documents      *service.DocumentService
	personnel      *service.PersonnelService
	registration   *service.RegistrationService
	certifications *service.CertificationService
	dashboard      *service.DashboardService
	reports        *service.ReportService
	alerts         *service.AlertService
}

func buildApp(ctx context.Context, cfg *config.Config, db *sqlx.DB, redisClient *redis.Client, logr *zap.Logger) (*application, error) {
	validate := validation.NewValidator()
	metrics := service.NewMetricsService()

	var state service.StateStore
	readiness := map[string]handler.ReadinessCheck{
		"database": func(ctx context.Context) error { return db.PingContext(ctx) },
	}
	if redisClient != nil {
		redisStore := repository.NewRedisStore(redisClient)
		state = redisStore
		readiness["redis"] = redisStore.Ping
	} else {
		state = repository.NewMemoryStore()
	}

	personnelRepo := repository.NewPersonnelRepository(db)
	certificationRepo := repository.NewCertificationRepository(db)
	documentRepo := repository.NewDocumentRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	configurationRepo := repository.NewConfigurationRepository(db)
	alertRuleRepo := repository.NewAlertRuleRepository(db)

	fileStorage, err := storage.NewLocalStorage(cfg.Uploads.StorageDir)
	if err != nil {
		return nil, fmt.Errorf("init document storage: %w", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Uploads.SignedURLSecret, cfg.Uploads.SignedURLTTL)

	var svc services
	svc.metrics = metrics
	svc.audit = service.NewAuditService(auditRepo, logr)
	svc.configuration = service.NewConfigurationService(configurationRepo, svc.audit, validate, logr, service.ConfigurationServiceConfig{
		Defaults: configurationDefaults(cfg),
	})
	svc.notifications = service.NewNotificationService(notificationRepo, personnelRepo, service.NewLogMailer(logr), metrics, logr)
	notificationQueue := jobs.New("notifications", svc.notifications.HandleJob, jobs.Config[service.NotificationJob]{
		Workers:    cfg.Notifications.Workers,
		BufferSize: cfg.Notifications.BufferSize,
		MaxRetries: cfg.Notifications.MaxRetries,
		RetryDelay: cfg.Notifications.RetryDelay,
		Logger:     logr,
		OnGiveUp:   svc.notifications.GiveUp,
	})
	svc.notifications.UseQueue(notificationQueue)
	notificationQueue.Start(ctx)

	svc.auth = service.NewAuthService(personnelRepo, state, svc.configuration, svc.audit, metrics, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "supermen-api",
		MaxLoginAttempts:   cfg.Auth.MaxLoginAttempts,
		LockoutWindow:      cfg.Auth.LockoutWindow,
	})
	svc.documents = service.NewDocumentService(documentRepo, fileStorage, signer, svc.audit, metrics, logr, service.DocumentServiceConfig{
		MaxFileSize: cfg.Uploads.MaxFileSizeBytes,
		APIPrefix:   cfg.APIPrefix,
	})
	svc.personnel = service.NewPersonnelService(personnelRepo, svc.configuration, svc.notifications, svc.audit, validate, logr)
	svc.registration = service.NewRegistrationService(state, personnelRepo, svc.documents, svc.configuration, svc.notifications, svc.audit, logr, service.RegistrationServiceConfig{
		DraftTTL: cfg.Registration.DraftTTL,
	})

	dashboardCache := service.NewCacheService(state, service.DashboardCacheNamespace, cfg.Dashboard.CacheTTL, metrics, logr)
	svc.certifications = service.NewCertificationService(certificationRepo, personnelRepo, svc.documents, state, dashboardCache, svc.notifications, svc.audit, metrics, validate, logr, service.CertificationServiceConfig{
		SelectionTTL: cfg.Review.SelectionTTL,
		BulkMax:      cfg.Review.BulkMax,
	})
	svc.dashboard = service.NewDashboardService(service.DashboardServiceParams{
		Certifications: certificationRepo,
		Personnel:      personnelRepo,
		Cache:          dashboardCache,
		Logger:         logr,
		Config: service.DashboardServiceConfig{
			ExpiringWithin: cfg.Dashboard.ExpiringWithin,
		},
	})
	svc.reports = service.NewReportService(svc.certifications, svc.audit, logr)
	svc.alerts = service.NewAlertService(alertRuleRepo, certificationRepo, personnelRepo, svc.configuration, svc.notifications, svc.audit, validate, logr)
	if cfg.Alerts.Enabled {
		svc.alerts.Start(ctx, cfg.Alerts.ScanInterval)
	}

	router := newRouter(cfg, logr, svc, readiness)
	return &application{
		router: router,
		close: func() {
			notificationQueue.Stop()
			if redisClient != nil {
				_ = redisClient.Close()
			}
		},
	}, nil
}

func configurationDefaults(cfg *config.Config) map[string]string {
	defaults := map[string]string{}
	if len(cfg.Registration.DefaultEmailDomains) > 0 {
		defaults[models.ConfigKeyAllowedEmailDomains] = strings.Join(cfg.Registration.DefaultEmailDomains, ",")
	}
	if cfg.Auth.MaxLoginAttempts > 0 {
		defaults[models.ConfigKeyMaxLoginAttempts] = strconv.Itoa(cfg.Auth.MaxLoginAttempts)
	}
	if cfg.JWT.Expiration > 0 {
		defaults[models.ConfigKeySessionExpireMinutes] = strconv.Itoa(int(cfg.JWT.Expiration / time.Minute))
	}
	return defaults
}
