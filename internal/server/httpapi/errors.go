package httpapi

import (
	"errors"
	"net/http"

	"github.com/dmitrijs2005/gophsocial/internal/common"
	"github.com/gin-gonic/gin"
)

type errorResponse struct {
	Success bool   `json:"success"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// statusFor maps an error kind to an HTTP status and a stable code.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, common.ErrorNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, common.ErrorForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, common.ErrorInvalidOperation):
		return http.StatusBadRequest, "invalid_operation"
	case errors.Is(err, common.ErrorAlreadyExists):
		return http.StatusConflict, "already_exists"
	case errors.Is(err, common.ErrTokenExpired):
		return http.StatusUnauthorized, "token_expired"
	case errors.Is(err, common.ErrorUnauthorized), errors.Is(err, common.ErrInvalidToken):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, common.ErrResetTokenInvalid):
		return http.StatusBadRequest, "reset_token_invalid"
	case errors.Is(err, common.ErrorStoreFailure):
		return http.StatusInternalServerError, "store_failure"
	}
	return http.StatusInternalServerError, "internal"
}

func (s *HTTPServer) abort(c *gin.Context, err error) {
	status, code := statusFor(err)
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		s.logger.Error(c.Request.Context(), "handler error", "route", c.FullPath(), "error", err)
		msg = http.StatusText(status)
	}
	c.AbortWithStatusJSON(status, errorResponse{Code: code, Message: msg})
}

func (s *HTTPServer) badRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{Code: "bad_request", Message: err.Error()})
}
