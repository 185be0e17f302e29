package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"learnhub.io/notifier/internal/notification"
	apperrors "learnhub.io/notifier/internal/pkg/errors"
	"learnhub.io/notifier/internal/pkg/logger"
)

// DispatchEvent handles POST /internal/events, the boundary other platform
// services use to create notifications. Partial persistence failures are
// reported in the body with 202; only a dispatch that created nothing fails.
func (s *Server) DispatchEvent(c *gin.Context) {
	if s.triggers == nil {
		_ = c.Error(unavailable("dispatch"))
		return
	}
	var req notification.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperrors.BadRequest(apperrors.CodeInvalidRequestField, "invalid dispatch body"))
		return
	}

	res, err := s.triggers.Fire(c.Request.Context(), req)
	if err != nil && len(res.Created) == 0 && len(res.Skipped) == 0 {
		_ = c.Error(err)
		return
	}
	if err != nil {
		logger.Warn("dispatch partially failed",
			logger.Type(string(req.Type)),
			zap.String("caller", callerID(c)),
			zap.Int("created", len(res.Created)),
			zap.Strings("failed", res.Failed),
			zap.Error(err),
		)
	}

	c.JSON(http.StatusAccepted, DispatchResult{
		Created: len(res.Created),
		Failed:  nonNil(res.Failed),
		Skipped: nonNil(res.Skipped),
	})
}
