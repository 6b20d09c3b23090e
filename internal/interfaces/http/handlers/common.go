// Package handlers exposes the REST surface: document intake and analysis,
// document queries, chat, and health probes.
package handlers

import (
	goerrors "errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/leaselens/leaselens/pkg/errors"
)

// errorBody is the error envelope every endpoint returns.
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// respondError maps an application error to its HTTP status.  Unknown error
// types are masked as internal errors; the original stays in the gin error
// list for the request log.
func respondError(c *gin.Context, err error) {
	_ = c.Error(err)

	var appErr *errors.AppError
	if !goerrors.As(err, &appErr) {
		c.AbortWithStatusJSON(http.StatusInternalServerError, errorBody{
			Code:    errors.ErrCodeInternal.String(),
			Message: errors.DefaultMessageForCode(errors.ErrCodeInternal),
		})
		return
	}

	body := errorBody{
		Code:    appErr.Code.String(),
		Message: appErr.Message,
	}
	if errors.IsClientError(appErr.Code) {
		body.Detail = appErr.Detail
	}
	c.AbortWithStatusJSON(appErr.HTTPStatus(), body)
}

// queryInt parses an integer query parameter, falling back on absence or
// garbage.
func queryInt(c *gin.Context, name string, fallback int) int {
	v := c.Query(name)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
