package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/fire-report-backend/internal/config"
	"github.com/ignatzorin/fire-report-backend/internal/http/handlers"
	"github.com/ignatzorin/fire-report-backend/internal/http/middleware"
)

// SetupRouter собирает таблицу маршрутов сервиса.
func SetupRouter(
	cfg *config.Config,
	reportHandler *handlers.FireReportHandler,
	wsHandler *handlers.WSHandler,
	healthHandler *handlers.HealthHandler,
) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))

	r.GET("/health", healthHandler.Health)

	api := r.Group("/api")

	// Сохранённые фотографии отдаются статически.
	api.StaticFS("/photos", http.Dir(cfg.PhotoStoragePath))

	// Консоль оператора получает новые сообщения по WebSocket.
	api.GET("/ws", wsHandler.Handle)

	reports := api.Group("/fire-reports")
	{
		// Публичный приём сообщений ограничен по частоте.
		intakeRateLimit := middleware.RateLimitMiddleware(cfg.RateLimitLimit, cfg.RateLimitPeriod)
		reports.POST("", intakeRateLimit, reportHandler.Create)

		reports.GET("", reportHandler.List)
		reports.GET("/nearby", reportHandler.Nearby)
		reports.GET("/:id", reportHandler.Get)

		// Смена статуса доступна только консоли оператора.
		reports.PUT("/:id/status", middleware.AdminMiddleware(cfg.AdminPassword), reportHandler.UpdateStatus)
	}

	return r
}
