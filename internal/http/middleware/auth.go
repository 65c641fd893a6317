package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/yungbote/progressfacts/internal/http/response"
	"github.com/yungbote/progressfacts/internal/platform/ctxutil"
	"github.com/yungbote/progressfacts/internal/platform/logger"
)

// AuthMiddleware attaches the bearer token subject as the default owner.
type AuthMiddleware struct {
	log    *logger.Logger
	secret []byte
}

func NewAuthMiddleware(log *logger.Logger, secret string) *AuthMiddleware {
	return &AuthMiddleware{
		log:    log.With("Middleware", "AuthMiddleware"),
		secret: []byte(strings.TrimSpace(secret)),
	}
}

// Enabled reports whether a signing secret is configured.
func (am *AuthMiddleware) Enabled() bool {
	return am != nil && len(am.secret) > 0
}

// RequireAuth rejects requests without a valid HS256 token. Without a
// configured secret it lets every request through and owners must be named
// explicitly.
func (am *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !am.Enabled() {
			c.Next()
			return
		}
		tokenString := extractToken(c)
		if tokenString == "" {
			abort(c, http.StatusUnauthorized, "unauthorized", errors.New("missing or invalid token"))
			return
		}
		subject, err := am.Subject(tokenString)
		if err != nil {
			am.log.Debug("token rejected", "error", err)
			abort(c, http.StatusUnauthorized, "unauthorized", err)
			return
		}
		c.Request = c.Request.WithContext(ctxutil.WithOwner(c.Request.Context(), subject))
		c.Next()
	}
}

// Subject validates tokenString and returns its subject.
func (am *AuthMiddleware) Subject(tokenString string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return am.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", err
	}
	if !parsed.Valid {
		return "", errors.New("invalid or expired token")
	}
	subject := strings.TrimSpace(claims.Subject)
	if subject == "" {
		return "", errors.New("token has no subject")
	}
	return subject, nil
}

func abort(c *gin.Context, status int, code string, err error) {
	response.RespondError(c, status, code, err)
	c.Abort()
}

func extractToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
		return strings.TrimSpace(authHeader[7:])
	}
	return ""
}
