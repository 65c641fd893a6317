package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/progressfacts/internal/domain/progress"
	"github.com/yungbote/progressfacts/internal/platform/apierr"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// ResultBody is the wire form of a recorder outcome.
type ResultBody struct {
	OwnerID string           `json:"ownerId,omitempty"`
	Outcome progress.Outcome `json:"outcome"`
	Error   string           `json:"error,omitempty"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
		},
	})
}

// RespondErr maps err through apierr and the progress error codes.
func RespondErr(c *gin.Context, err error) {
	var ae *apierr.Error
	if errors.As(err, &ae) {
		RespondError(c, ae.Status, ae.Code, ae.Err)
		return
	}
	code := progress.CodeOf(err)
	if code == "" {
		code = progress.CodeInternal
	}
	RespondError(c, apierr.StatusFor(code), string(code), err)
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

// RespondResult answers a recorder call: 202 for every best-effort outcome,
// 400 when the payload was rejected.
func RespondResult(c *gin.Context, res progress.Result) {
	if res.Outcome == progress.OutcomeInvalid {
		RespondError(c, http.StatusBadRequest, string(progress.CodeValidation), res.Err)
		return
	}
	c.JSON(http.StatusAccepted, ResultBody{
		OwnerID: res.OwnerID,
		Outcome: res.Outcome,
		Error:   res.Message(),
	})
}
