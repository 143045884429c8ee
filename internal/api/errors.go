package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"script-studio/internal/audit"
	"script-studio/internal/model"
	"script-studio/internal/secrets"
)

// statusClientClosedRequest - клиент закрыл соединение до ответа.
const statusClientClosedRequest = 499

// APIError представляет стандартизированный ответ об ошибке.
type APIError struct {
	Message string `json:"message"`
	Kind    string `json:"kind,omitempty"`
}

var errInvalidParam = errors.New("invalid parameter")

// errorResponse сопоставляет ошибку слоя действий с HTTP-статусом.
func errorResponse(err error) (int, APIError) {
	var pe *model.ProviderError
	switch {
	case errors.Is(err, model.ErrInvalidRequest), errors.Is(err, errInvalidParam), errors.Is(err, audit.ErrInvalidLimit):
		return http.StatusBadRequest, APIError{Message: err.Error(), Kind: "invalid_request"}
	case errors.Is(err, model.ErrNotConfigured), errors.Is(err, secrets.ErrNotFound):
		return http.StatusPreconditionFailed, APIError{Message: err.Error(), Kind: "not_configured"}
	case errors.As(err, &pe):
		status := http.StatusBadGateway
		if pe.Kind == model.ProviderErrorQuota {
			status = http.StatusTooManyRequests
		}
		return status, APIError{Message: err.Error(), Kind: string(pe.Kind)}
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, APIError{Message: "Provider call timed out", Kind: "timeout"}
	case errors.Is(err, context.Canceled):
		return statusClientClosedRequest, APIError{Message: "Request cancelled", Kind: "cancelled"}
	default:
		return http.StatusInternalServerError, APIError{Message: "Internal server error", Kind: "internal"}
	}
}

func (h *Handler) handleError(c *gin.Context, err error) {
	status, apiErr := errorResponse(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed", zap.String("path", c.FullPath()), zap.Int("status", status), zap.Error(err))
	} else {
		h.logger.Warn("Request rejected", zap.String("path", c.FullPath()), zap.Int("status", status), zap.Error(err))
	}
	c.AbortWithStatusJSON(status, apiErr)
}
