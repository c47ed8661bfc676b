package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/jonboulle/clockwork"

	"github.com/ignatzorin/fire-report-backend/internal/config"
	"github.com/ignatzorin/fire-report-backend/internal/db"
	"github.com/ignatzorin/fire-report-backend/internal/geocode"
	httpHandlers "github.com/ignatzorin/fire-report-backend/internal/http/handlers"
	httpRouter "github.com/ignatzorin/fire-report-backend/internal/http/router"
	"github.com/ignatzorin/fire-report-backend/internal/logger"
	"github.com/ignatzorin/fire-report-backend/internal/notify"
	"github.com/ignatzorin/fire-report-backend/internal/repository"
	"github.com/ignatzorin/fire-report-backend/internal/service"
	"github.com/ignatzorin/fire-report-backend/internal/storage"
	"github.com/ignatzorin/fire-report-backend/internal/ws"
)

func main() {
	// Готовим контекст для graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("main: ошибка загрузки конфигурации: %v", err)
	}

	// Инициализация логгера
	logLevel := "info"
	if cfg.Env == "development" {
		logLevel = "debug"
		logger.Init(logLevel)
		logger.SetTextFormatter()
	} else {
		logger.Init(logLevel)
	}

	// Подключение к базе и миграции.
	dbConn, err := db.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("main: ошибка подключения к базе: %v", err)
	}
	defer safeClose(dbConn)

	if err := db.RunMigrations(ctx, dbConn, cfg.MigrationsPath); err != nil {
		log.Fatalf("main: ошибка миграций: %v", err)
	}

	photoStorage, err := storage.NewPhotoStorage(cfg.PhotoStoragePath, cfg.MaxPhotoSizeBytes)
	if err != nil {
		log.Fatalf("main: не удалось подготовить файловое хранилище: %v", err)
	}

	// Консоли операторов.
	hub := ws.NewHub()
	go hub.Run()

	// Зависимости движка: хранилище, геокодер и каналы оповещения
	// передаются явно, движок сам их не ищет.
	reportRepo := repository.NewFireReportRepository(dbConn)
	geocoder := geocode.NewNominatimClient(cfg.GeocoderBaseURL, cfg.GeocoderTimeout)
	notifier := notify.NewMulti(
		notify.NewEmergencyNotifier(cfg.NotifyPhones, cfg.NotifyEmails),
		notify.NewConsoleNotifier(hub),
	)

	reportService := service.NewFireReportService(
		reportRepo,
		photoStorage,
		geocoder,
		notifier,
		clockwork.NewRealClock(),
		cfg.StrictTransitions,
		cfg.NotifyTimeout,
	)

	// HTTP хэндлеры и роутер.
	reportHandler := httpHandlers.NewFireReportHandler(reportService)
	wsHandler := httpHandlers.NewWSHandler(hub, cfg.AllowedOrigins)
	healthHandler := httpHandlers.NewHealthHandler(dbConn)

	engine := httpRouter.SetupRouter(cfg, reportHandler, wsHandler, healthHandler)

	server := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: engine,
	}

	// Завершаем сервер при получении сигнала.
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("main: ошибка остановки http сервера: %v", err)
		}
	}()

	log.Printf("main: HTTP сервер запущен на порту %s", cfg.HTTPPort)

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("main: сервер завершился с ошибкой: %v", err)
	}
}

// safeClose закрывает соединение с базой.
func safeClose(db *sqlx.DB) {
	if err := db.Close(); err != nil {
		log.Printf("main: ошибка закрытия базы: %v", err)
	}
}
