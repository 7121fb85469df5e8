package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"shefixes/internal/api"
	"shefixes/internal/config"
	"shefixes/internal/database"
	"shefixes/internal/domain"
	"shefixes/internal/events"
	"shefixes/internal/export"
	"shefixes/internal/google"
	"shefixes/internal/logging"
	"shefixes/internal/metrics"
	"shefixes/internal/notify"
	"shefixes/internal/repository"
	"shefixes/internal/service"
	"shefixes/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
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
		defer closer.Close()
	}

	db, err := database.NewDB(cfg.Database.Path, logger)
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
		return err
	}
	defer db.Close()

	redisClient := initRedis(cfg, logger)
	if redisClient != nil {
		defer redisClient.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bus := events.NewEventBus()
	stateRepo := initStateRepository(cfg, redisClient, logger)

	// Keep interface values truly nil when an integration is disabled, so
	// the worker's nil guards hold.
	var opsNotifier domain.Notifier
	if notifier := initTelegram(cfg, bus, db, ctx, logger); notifier != nil {
		opsNotifier = notifier
	}

	var sheetsWriter domain.SheetsWriter
	if sheetsService := initGoogleSheets(cfg, logger); sheetsService != nil {
		sheetsWriter = sheetsService
	}

	syncWorker := worker.NewSyncWorker(db, sheetsWriter, opsNotifier, redisClient, worker.RetryPolicy{}, logger)
	go syncWorker.Start(ctx)

	if cfg.Backup.Enabled {
		backupService := database.NewBackupService(cfg.Database.Path, cfg.Backup, logger)
		go backupService.Start(ctx)
	}

	exporter := export.NewExporter(db, cfg.Exports.Path, logger)

	svcs := api.Services{
		Technicians: service.NewTechnicianService(db, bus, logger),
		Schedule:    service.NewScheduleService(db, bus, cfg.Marketplace, logger),
		Matching:    service.NewMatchingService(db, logger),
		Bookings:    service.NewBookingService(db, bus, syncWorker, cfg.Marketplace.MaxBookingDays, logger),
		Reviews:     service.NewReviewService(db, bus, logger),
		State:       service.NewStateService(stateRepo, logger),
		Exporter:    exporter,
		Pinger:      db,
		Sync:        syncWorker,
	}

	httpServer := api.NewHTTPServer(cfg.API, cfg.Marketplace, svcs, logger)

	startMetrics(ctx, cfg, logger)

	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Error().Err(err).Msg("http server stopped")
		}
	}()

	logger.Info().Int("http_port", cfg.API.HTTP.Port).Msg("marketplace API started")

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(shutdownCtx)

	logger.Info().Msg("marketplace API stopped")
	return nil
}

func loadConfigAndLogger() (*config.Config, *zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("init logger: %w", err)
	}
	logger := baseLogger.With().Str("component", "api-main").Logger()

	return cfg, &logger, closer, nil
}

func initRedis(cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})

	if _, err := redisClient.Ping(context.Background()).Result(); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing without redis")
		return nil
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return redisClient
}

// initStateRepository prefers redis for drafts and rate limits, with an
// in-memory fallback when redis is absent or down.
func initStateRepository(cfg *config.Config, redisClient *redis.Client, logger *zerolog.Logger) domain.StateRepository {
	ttl := time.Duration(cfg.Marketplace.DraftTTLSeconds) * time.Second
	memory := repository.NewMemoryStateRepository(ttl)
	if redisClient == nil {
		return memory
	}
	return repository.NewFailoverStateRepository(
		repository.NewRedisStateRepository(redisClient, ttl),
		memory,
		logger,
	)
}

func initTelegram(cfg *config.Config, bus *events.EventBus, db *database.DB, ctx context.Context, logger *zerolog.Logger) *notify.TelegramNotifier {
	if !cfg.Telegram.Enabled {
		return nil
	}

	sender, err := notify.NewBotSender(cfg.Telegram.BotToken, cfg.Telegram.Debug)
	if err != nil {
		logger.Warn().Err(err).Msg("telegram init failed, continuing without notifications")
		return nil
	}

	notifier := notify.NewTelegramNotifier(sender, cfg.Telegram.OpsChatID, logger)
	notifier.Subscribe(bus)

	reminders := notify.NewReminderService(db, notifier, notify.DefaultReminderHour, logger)
	reminders.Start(ctx)

	logger.Info().Msg("telegram notifications enabled")
	return notifier
}

func initGoogleSheets(cfg *config.Config, logger *zerolog.Logger) *google.SheetsService {
	if cfg.Google.GoogleCredentialsFile == "" || cfg.Google.BookingSpreadSheetID == "" {
		return nil
	}

	sheetsService, err := google.NewSheetsService(cfg.Google.GoogleCredentialsFile, cfg.Google.BookingSpreadSheetID)
	if err != nil {
		logger.Warn().Err(err).Msg("google sheets init failed, continuing without sheets")
		return nil
	}

	logger.Info().Msg("google sheets connected")
	return sheetsService
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	metrics.Register()
	port := cfg.Monitoring.PrometheusPort
	if port == 0 {
		port = 9090
	}
	go startMetricsServer(ctx, port, logger)
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
