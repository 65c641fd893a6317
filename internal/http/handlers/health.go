package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

var errMissingOwner = errors.New("owner id required")

type HealthHandler struct {
	suppressed func() bool
}

// NewHealthHandler reports write suppression through suppressed, which may
// be nil.
func NewHealthHandler(suppressed func() bool) *HealthHandler {
	return &HealthHandler{suppressed: suppressed}
}

type healthBody struct {
	Status           string `json:"status"`
	WritesSuppressed bool   `json:"writesSuppressed"`
}

func (h *HealthHandler) HealthCheck(c *gin.Context) {
	body := healthBody{Status: "ok"}
	if h.suppressed != nil {
		body.WritesSuppressed = h.suppressed()
	}
	c.JSON(http.StatusOK, body)
}
