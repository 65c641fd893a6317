package app

import (
	httpMW "github.com/yungbote/progressfacts/internal/http/middleware"
	"github.com/yungbote/progressfacts/internal/platform/logger"
)

type Middleware struct {
	Auth *httpMW.AuthMiddleware
}

func wireMiddleware(log *logger.Logger, cfg Config) Middleware {
	log.Info("Wiring middleware...")
	auth := httpMW.NewAuthMiddleware(log, cfg.JWTSecretKey)
	if !auth.Enabled() {
		log.Warn("JWT_SECRET_KEY unset; API requests need an explicit owner")
	}
	return Middleware{Auth: auth}
}
