package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"campusbook/internal/api"
	"campusbook/internal/config"
	"campusbook/internal/database"
	"campusbook/internal/domain"
	"campusbook/internal/events"
	"campusbook/internal/export"
	"campusbook/internal/logging"
	"campusbook/internal/mail"
	"campusbook/internal/metrics"
	"campusbook/internal/models"
	"campusbook/internal/notify"
	"campusbook/internal/repository"
	"campusbook/internal/service"
	"campusbook/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	yamlv2 "gopkg.in/yaml.v2"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}

	facilities, equipment, err := loadCatalog(cfg, &logger)
	if err != nil {
		return err
	}

	if err := prepareDirectories(cfg, &logger); err != nil {
		return err
	}

	db, err := initDatabase(cfg, facilities, equipment, &logger)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisClient := initRedis(ctx, cfg, &logger)
	if redisClient != nil {
		defer redisClient.Close()
	}
	guard := initLinkGuard(redisClient, &logger)

	eventBus := events.NewEventBus()
	subscribeBookingEvents(eventBus, &logger)

	mailer := mail.NewSMTPMailer(cfg.SMTP, &logger)
	renderer := mail.NewRenderer(cfg.Approvals.BaseURL)
	mailWorker := worker.NewMailWorker(db, mailer, renderer, redisClient,
		worker.RetryPolicy{MaxRetries: 5, InitialDelay: 2 * time.Second, MaxDelay: time.Minute, BackoffFactor: 2}, &logger)
	go mailWorker.Start(ctx)

	notifier, err := notify.NewTelegramNotifier(cfg.Telegram, &logger)
	if err != nil {
		logger.Warn().Err(err).Msg("telegram init failed, continuing without admin alerts")
		notifier = nil
	}

	approvalService := service.NewApprovalService(db, eventBus, mailWorker, notifier, cfg.Approvals, &logger)
	exporter := export.NewExporter(db, cfg.Exports, &logger)
	httpServer := api.NewHTTPServer(cfg.API, cfg.Approvals, approvalService, exporter, guard, &logger)

	startMetrics(ctx, cfg, &logger)

	if cfg.Backup.Enabled {
		backupService := database.NewBackupService(cfg.Database.Path, cfg.Backup, &logger)
		go backupService.Start(ctx)
	}

	return startServer(ctx, httpServer, cfg, &logger)
}

func loadConfigAndLogger() (*config.Config, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("init logger: %w", err)
	}
	logger := baseLogger.With().Str("component", "server-main").Logger()

	return cfg, logger, closer, nil
}

// loadCatalog reads facilities and equipment from a standalone catalog file
// when one exists, falling back to the inline lists in the main config.
func loadCatalog(cfg *config.Config, logger *zerolog.Logger) ([]models.Facility, []models.Equipment, error) {
	catalogPath := os.Getenv("CATALOG_PATH")
	if catalogPath == "" {
		catalogPath = "configs/catalog.yaml"
	}

	catalogData, err := os.ReadFile(catalogPath)
	if os.IsNotExist(err) {
		return cfg.Facilities, cfg.Equipment, nil
	}
	if err != nil {
		logger.Error().Err(err).Str("catalog_path", catalogPath).Msg("read catalog")
		return nil, nil, err
	}

	var catalog struct {
		Facilities []models.Facility  `yaml:"facilities"`
		Equipment  []models.Equipment `yaml:"equipment"`
	}
	if err := yamlv2.Unmarshal(catalogData, &catalog); err != nil {
		logger.Error().Err(err).Str("catalog_path", catalogPath).Msg("parse catalog")
		return nil, nil, err
	}

	if err := config.ValidateFacilities(catalog.Facilities); err != nil {
		logger.Error().Err(err).Msg("Facilities validation failed")
		return nil, nil, err
	}
	if err := config.ValidateEquipment(catalog.Equipment); err != nil {
		logger.Error().Err(err).Msg("Equipment validation failed")
		return nil, nil, err
	}

	return catalog.Facilities, catalog.Equipment, nil
}

func prepareDirectories(cfg *config.Config, logger *zerolog.Logger) error {
	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		logger.Error().Err(err).Msg("Ошибка создания директории для базы данных")
		return err
	}
	if err := os.MkdirAll(cfg.Exports.Path, 0o755); err != nil {
		logger.Error().Err(err).Msg("Ошибка создания директории для экспорта")
		return err
	}
	return nil
}

func initDatabase(cfg *config.Config, facilities []models.Facility, equipment []models.Equipment, logger *zerolog.Logger) (*database.DB, error) {
	db, err := database.NewDB(cfg.Database.Path, logger)
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
		return nil, err
	}

	ctx := context.Background()
	if err := db.SeedFacilities(ctx, facilities); err != nil {
		logger.Error().Err(err).Msg("Ошибка синхронизации помещений")
		return nil, err
	}
	if err := db.SeedEquipment(ctx, equipment); err != nil {
		logger.Error().Err(err).Msg("Ошибка синхронизации оборудования")
		return nil, err
	}
	return db, nil
}

func initRedis(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}

	redisClient := repository.NewRedisClient(cfg.Redis)
	if err := repository.Ping(ctx, redisClient); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing without redis")
		return nil
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return redisClient
}

func initLinkGuard(redisClient *redis.Client, logger *zerolog.Logger) domain.LinkGuard {
	fallback := repository.NewMemoryLinkGuard()
	if redisClient == nil {
		return fallback
	}
	return repository.NewFailoverLinkGuard(repository.NewRedisLinkGuard(redisClient), fallback, logger)
}

// subscribeBookingEvents writes an audit line for every lifecycle event.
func subscribeBookingEvents(bus *events.EventBus, logger *zerolog.Logger) {
	auditLogger := logger.With().Str("component", "audit").Logger()

	for _, eventType := range []string{
		events.EventBookingSubmitted,
		events.EventReviewStarted,
		events.EventSignatoryApproved,
		events.EventSignatoryDenied,
		events.EventDirectorEscalated,
		events.EventBookingApproved,
		events.EventBookingDenied,
		events.EventBookingCanceled,
	} {
		bus.Subscribe(eventType, func(ev *events.Event) error {
			auditLogger.Info().Str("event", ev.Type).RawJSON("payload", ev.Payload).Msg("booking event")
			return nil
		})
	}
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	metrics.Register()
	port := cfg.Monitoring.PrometheusPort
	go startMetricsServer(ctx, port, logger)
}

func startServer(ctx context.Context, httpServer *api.HTTPServer, cfg *config.Config, logger *zerolog.Logger) error {
	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Error().Err(err).Msg("http server stopped")
		}
	}()

	logger.Info().Int("http_port", cfg.API.HTTP.Port).Msg("Server started")

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http server shutdown")
	}

	logger.Info().Msg("Server stopped")
	return nil
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
