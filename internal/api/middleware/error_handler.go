// Package middleware provides the HTTP middleware chain of the notifier API:
// request ids, access logs, session auth, permissions, contract validation
// and error rendering.
package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apperrors "learnhub.io/notifier/internal/pkg/errors"
	"learnhub.io/notifier/internal/pkg/logger"
)

// ErrorHandler renders the last error added via c.Error() as {code, message}.
// Handlers that already wrote a response are left alone.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last().Err
		requestID := GetRequestID(c.Request.Context())

		var appErr *apperrors.AppError
		if errors.As(err, &appErr) && !errors.Is(appErr, apperrors.ErrDelivery) {
			fields := []zap.Field{
				zap.String("request_id", requestID),
				zap.String("code", appErr.Code),
				zap.Int("status", appErr.HTTPStatus),
				zap.Error(appErr.Err),
			}
			if appErr.HTTPStatus >= http.StatusInternalServerError {
				logger.Error("Request failed", fields...)
			} else {
				logger.Warn("Request rejected", fields...)
			}
			body := gin.H{"code": appErr.Code, "message": appErr.Message}
			if len(appErr.Params) > 0 {
				body["params"] = appErr.Params
			}
			c.JSON(appErr.HTTPStatus, body)
			return
		}

		logger.Error("Unhandled request error", zap.String("request_id", requestID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    "INTERNAL_ERROR",
			"message": "An internal error occurred",
		})
	}
}
