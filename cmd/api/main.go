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

	"slotify/internal/api"
	"slotify/internal/booking"
	"slotify/internal/config"
	"slotify/internal/database"
	"slotify/internal/domain"
	"slotify/internal/events"
	"slotify/internal/export"
	"slotify/internal/gcal"
	"slotify/internal/logging"
	"slotify/internal/metrics"
	"slotify/internal/notify"
	"slotify/internal/payment"
	"slotify/internal/repository"
	"slotify/internal/worker"

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

	db, err := database.NewDB(cfg.Database.Path, &logger)
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
		return err
	}
	defer db.Close()

	redisClient := initRedis(cfg, &logger)
	if redisClient != nil {
		defer redisClient.Close()
	}

	dedup := initDedupStore(redisClient, &logger)
	calendar := initCalendar(cfg, db, &logger)
	notifier := initNotifier(cfg, &logger)

	bus := events.NewEventBus()

	syncWorker := worker.NewSyncWorker(db, calendar, notifier, redisClient, worker.RetryPolicy{
		MaxRetries:    cfg.Worker.MaxRetries,
		InitialDelay:  cfg.Worker.InitialDelay,
		MaxDelay:      cfg.Worker.MaxDelay,
		BackoffFactor: cfg.Worker.BackoffFactor,
	}, &logger)

	registry := payment.NewRegistry(
		payment.NewPayPalGateway(cfg.Payments.RequestTimeout),
		payment.NewLahzaGateway(cfg.Payments.RequestTimeout),
	)

	bookingService := booking.NewService(db, syncWorker, bus, calendar, &logger)
	orchestrator := payment.NewOrchestrator(db, registry, cfg.App.BaseURL, cfg.Payments.Currency, &logger)
	reconciler := payment.NewReconciler(db, registry, dedup, syncWorker, bus, &logger)

	var exporter *export.Exporter
	if cfg.Exports.Path != "" {
		exporter = export.NewExporter(db, cfg.Exports.Path, &logger)
	}

	httpServer := api.NewHTTPServer(cfg.API, bookingService, orchestrator, reconciler, exporter, &logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go syncWorker.Start(ctx)

	if cfg.Backup.Enabled {
		backupService := database.NewBackupService(cfg.Database.Path, cfg.Backup, &logger)
		go backupService.Start(ctx)
	}

	startMetrics(ctx, cfg, &logger)

	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Error().Err(err).Msg("http server stopped")
		}
	}()

	logger.Info().Int("http_port", cfg.API.Port).Msg("server started")

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(shutdownCtx)

	logger.Info().Msg("server stopped")
	return nil
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
	logger := baseLogger.With().Str("component", "main").Logger()

	return cfg, logger, closer, nil
}

func initRedis(cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}

	redisClient := repository.NewRedisClient(cfg.Redis)
	if _, err := redisClient.Ping(context.Background()).Result(); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing without redis")
		return nil
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return redisClient
}

// initDedupStore prefers Redis with an in-memory fallback so webhook
// dedup keeps working through a Redis outage.
func initDedupStore(redisClient *redis.Client, logger *zerolog.Logger) domain.DedupStore {
	memory := repository.NewMemoryDedupStore()
	if redisClient == nil {
		return memory
	}
	return repository.NewFailoverDedupStore(repository.NewRedisDedupStore(redisClient), memory, logger)
}

func initCalendar(cfg *config.Config, db *database.DB, logger *zerolog.Logger) domain.CalendarWriter {
	if cfg.Google.ClientID == "" || cfg.Google.ClientSecret == "" {
		logger.Info().Msg("google calendar disabled: no oauth client configured")
		return nil
	}
	return gcal.NewAdapter(db, cfg.Google.ClientID, cfg.Google.ClientSecret, logger)
}

func initNotifier(cfg *config.Config, logger *zerolog.Logger) domain.Notifier {
	if !cfg.Telegram.Enabled || cfg.Telegram.BotToken == "" {
		return nil
	}
	notifier, err := notify.NewTelegramNotifier(cfg.Telegram.BotToken, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("telegram init failed, continuing without notifications")
		return nil
	}
	logger.Info().Msg("telegram notifier connected")
	return notifier
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
