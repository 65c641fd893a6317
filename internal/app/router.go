package app

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/progressfacts/internal/http"
	"github.com/yungbote/progressfacts/internal/observability"
	"github.com/yungbote/progressfacts/internal/platform/logger"
)

func wireRouter(log *logger.Logger, cfg Config, metrics *observability.Metrics, handlers Handlers, middleware Middleware) *gin.Engine {
	return http.NewRouter(http.RouterConfig{
		Log:             log,
		Metrics:         metrics,
		ServiceName:     cfg.ServiceName,
		AllowedOrigins:  cfg.AllowedOrigins,
		AuthMiddleware:  middleware.Auth,
		ProgressHandler: handlers.Progress,
		JournalHandler:  handlers.Journal,
		HistoryHandler:  handlers.History,
		HealthHandler:   handlers.Health,
	})
}
