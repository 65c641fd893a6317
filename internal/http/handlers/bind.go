package handlers

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"

	"github.com/yungbote/progressfacts/internal/domain/progress"
	"github.com/yungbote/progressfacts/internal/http/response"
)

const maxBodyBytes = 1 << 20

type ownerField struct {
	OwnerID string `json:"ownerId"`
}

// bind decodes the JSON body into dst (nil skips decoding) and returns the
// explicit owner override: the owner query parameter, else the body's
// ownerId. An empty body is allowed.
func bind(c *gin.Context, dst any) (string, error) {
	owner := strings.TrimSpace(c.Query("owner"))
	if c.Request.Body == nil {
		return owner, nil
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes)
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return "", err
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return owner, nil
	}
	if dst != nil {
		if err := json.Unmarshal(raw, dst); err != nil {
			return "", err
		}
	}
	if owner == "" {
		var of ownerField
		if json.Unmarshal(raw, &of) == nil {
			owner = strings.TrimSpace(of.OwnerID)
		}
	}
	return owner, nil
}

// recordJSON adapts a typed recorder to a handler answering with its Result.
func recordJSON[T any](fn func(ctx context.Context, ownerID string, in T) progress.Result) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in T
		owner, err := bind(c, &in)
		if err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
			return
		}
		response.RespondResult(c, fn(c.Request.Context(), owner, in))
	}
}

// recordEmpty adapts a recorder that takes no payload.
func recordEmpty(fn func(ctx context.Context, ownerID string) progress.Result) gin.HandlerFunc {
	return func(c *gin.Context) {
		owner, err := bind(c, nil)
		if err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
			return
		}
		response.RespondResult(c, fn(c.Request.Context(), owner))
	}
}
