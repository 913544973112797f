package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-co-op/gocron/v2"
	_ "github.com/lib/pq"

	"github.com/strideteam/competition-engine/clock"
	"github.com/strideteam/competition-engine/config"
	"github.com/strideteam/competition-engine/db"
	"github.com/strideteam/competition-engine/events"
	"github.com/strideteam/competition-engine/handlers"
	"github.com/strideteam/competition-engine/repositories"
	api "github.com/strideteam/competition-engine/routes"
	"github.com/strideteam/competition-engine/services"
	"github.com/strideteam/competition-engine/storage"
)

// schedulerCron запускает планировщик дважды в сутки; внешний cron может
// дополнительно дёргать POST /internal/scheduler/run.
const schedulerCron = "0 2,14 * * *"

func main() {
	// Настройка логгера
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("configuration loaded", slog.Int("port", cfg.ServerPort))

	// Подключение к базе данных
	dbConn, err := db.Connect(cfg.DatabaseURL, 5*time.Second)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Error("failed to close database connection", slog.Any("error", err))
		} else {
			logger.Info("database connection closed")
		}
	}()
	logger.Info("database connection established")

	// Инициализация загрузчика файлов (Cloudflare R2). Блок опционален:
	// без него отчёты о запусках не архивируются.
	var uploader storage.FileUploader
	if cfg.R2Enabled() {
		uploader, err = storage.NewCloudflareR2Uploader(storage.CloudflareR2UploaderConfig{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			BucketName:      cfg.R2BucketName,
			PublicBaseURL:   cfg.R2PublicBaseURL,
		})
		if err != nil {
			logger.Error("failed to initialize Cloudflare R2 uploader", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("Cloudflare R2 uploader initialized")
	} else {
		logger.Info("R2 is not configured, run report archiving disabled")
	}

	// Инициализация WebSocket Hub
	wsHub := events.NewHub()
	go wsHub.Run()
	logger.Info("WebSocket Hub started")

	notifier := services.NewFeedNotifier(wsHub, logger)
	notifier.Start()

	// Инициализация репозиториев
	competitionRepo := repositories.NewPostgresCompetitionRepository(dbConn)
	participantRepo := repositories.NewPostgresParticipantRepository(dbConn)
	prizePoolRepo := repositories.NewPostgresPrizePoolRepository(dbConn)
	prizePayoutRepo := repositories.NewPostgresPrizePayoutRepository(dbConn)
	coinTxRepo := repositories.NewPostgresCoinTransactionRepository(dbConn)
	coinLedger := repositories.NewPostgresCoinLedger(dbConn)
	trialRepo := repositories.NewPostgresUserTrialRepository(dbConn)
	userRepo := repositories.NewPostgresUserRepository(dbConn)
	auditRepo := repositories.NewPostgresAuditLogRepository(dbConn)
	locker := repositories.NewAdvisoryLocker(dbConn)
	logger.Info("Repositories initialized")

	// Инициализация сервисов
	clk := clock.Real{}

	rewardConfig := services.DefaultRewardConfig()
	if cfg.CoinRewardFirst >= 0 {
		rewardConfig.FirstPlaceBonus = cfg.CoinRewardFirst
	}
	if cfg.CoinRewardSecond >= 0 {
		rewardConfig.SecondPlaceBonus = cfg.CoinRewardSecond
	}
	if cfg.CoinRewardThird >= 0 {
		rewardConfig.ThirdPlaceBonus = cfg.CoinRewardThird
	}
	if cfg.CoinRewardParticipation >= 0 {
		rewardConfig.ParticipationBonus = cfg.CoinRewardParticipation
	}
	if err := rewardConfig.Validate(); err != nil {
		logger.Error("invalid coin reward configuration", slog.Any("error", err))
		os.Exit(1)
	}

	deadlineCalc := services.NewDeadlineCalculator(participantRepo, logger)
	trialService := services.NewTrialService(participantRepo, trialRepo, clk, notifier, logger)
	prizeService := services.NewPrizeService(prizePoolRepo, prizePayoutRepo, participantRepo, userRepo, auditRepo, clk, notifier, logger)
	coinService := services.NewCoinService(coinTxRepo, coinLedger, participantRepo, rewardConfig, notifier, logger)
	reporter := services.NewRunReporter(uploader, logger)
	competitionService := services.NewCompetitionService(competitionRepo, prizePayoutRepo)

	schedulerService := services.NewSchedulerService(
		competitionRepo,
		participantRepo,
		auditRepo,
		deadlineCalc,
		locker,
		trialService,
		prizeService,
		coinService,
		reporter,
		clk,
		notifier,
		logger,
	)
	logger.Info("Services initialized")

	// Запуск встроенного планировщика жизненного цикла соревнований
	cronScheduler, err := gocron.NewScheduler()
	if err != nil {
		logger.Error("failed to create cron scheduler", slog.Any("error", err))
		os.Exit(1)
	}
	_, err = cronScheduler.NewJob(
		gocron.CronJob(schedulerCron, false),
		gocron.NewTask(func() {
			if _, err := schedulerService.Run(context.Background()); err != nil {
				logger.Error("scheduled lifecycle run failed", slog.Any("error", err))
			}
		}),
	)
	if err != nil {
		logger.Error("failed to register lifecycle job", slog.Any("error", err))
		os.Exit(1)
	}
	cronScheduler.Start()
	defer func() {
		if err := cronScheduler.Shutdown(); err != nil {
			logger.Error("failed to shut down cron scheduler", slog.Any("error", err))
		}
	}()
	logger.Info("Competition lifecycle scheduler started", slog.String("cron", schedulerCron))

	// Инициализация обработчиков HTTP
	schedulerHandler := handlers.NewSchedulerHandler(schedulerService)
	competitionHandler := handlers.NewCompetitionHandler(competitionService)
	webSocketHandler := handlers.NewWebSocketHandler(wsHub)
	healthHandler := handlers.NewHealthHandler(dbConn)
	logger.Info("HTTP handlers initialized")

	// Настройка маршрутизатора
	router := chi.NewRouter()
	api.SetupRoutes(
		router,
		schedulerHandler,
		competitionHandler,
		webSocketHandler,
		healthHandler,
		cfg.SchedulerTokenSecret,
	)
	logger.Info("Routes configured")

	// Настройка и запуск HTTP-сервера
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second, // Запуск планировщика синхронный и может идти долго
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("address", server.Addr))
		serverErrors <- server.ListenAndServe()
	}()

	// Ожидание сигнала завершения
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		} else {
			logger.Info("server stopped gracefully")
		}
	case sig := <-quit:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancelShutdown()

		logger.Info("shutting down server", slog.Duration("timeout", 15*time.Second))
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", slog.Any("error", err))
			if closeErr := server.Close(); closeErr != nil {
				logger.Error("failed to force close server", slog.Any("error", closeErr))
			}
			os.Exit(1)
		} else {
			logger.Info("server shutdown complete")
		}
	}
	logger.Info("application exited")
}
