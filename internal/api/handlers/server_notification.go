package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"learnhub.io/notifier/internal/domain"
	apperrors "learnhub.io/notifier/internal/pkg/errors"
	"learnhub.io/notifier/internal/pkg/logger"
)

// ListNotifications handles GET /notifications.
func (s *Server) ListNotifications(c *gin.Context) {
	userID := callerID(c)
	if userID == "" {
		_ = c.Error(unauthenticated())
		return
	}
	params, err := bindListParams(c)
	if err != nil {
		_ = c.Error(err)
		return
	}

	ctx := c.Request.Context()
	items, err := s.store.List(ctx, userID, s.listOptions(params))
	if err != nil {
		_ = c.Error(err)
		return
	}
	unread, err := s.store.CountUnread(ctx, userID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	if items == nil {
		items = []domain.Notification{}
	}

	c.JSON(http.StatusOK, NotificationList{Notifications: items, UnreadCount: unread})
}

// GetUnreadCount handles GET /notifications/unread-count.
func (s *Server) GetUnreadCount(c *gin.Context) {
	userID := callerID(c)
	if userID == "" {
		_ = c.Error(unauthenticated())
		return
	}
	count, err := s.store.CountUnread(c.Request.Context(), userID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, Count{Count: count})
}

// MarkNotificationRead handles PUT /notifications/{id}/read. A notification
// owned by someone else is reported as not found.
func (s *Server) MarkNotificationRead(c *gin.Context) {
	userID := callerID(c)
	if userID == "" {
		_ = c.Error(unauthenticated())
		return
	}
	id, err := bindNotificationID(c)
	if err != nil {
		_ = c.Error(err)
		return
	}

	n, err := s.store.MarkRead(c.Request.Context(), id, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			logger.Debug("mark read on unknown notification",
				logger.Recipient(userID),
				logger.NotificationID(id),
			)
		}
		_ = c.Error(err)
		return
	}
	if s.acks != nil {
		s.acks.Acknowledge(userID, id)
	}
	c.JSON(http.StatusOK, n)
}

// MarkAllNotificationsRead handles PUT /notifications/read-all.
func (s *Server) MarkAllNotificationsRead(c *gin.Context) {
	userID := callerID(c)
	if userID == "" {
		_ = c.Error(unauthenticated())
		return
	}
	count, err := s.store.MarkAllRead(c.Request.Context(), userID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	if s.acks != nil {
		s.acks.AcknowledgeAll(userID)
	}
	c.JSON(http.StatusOK, Count{Count: count})
}

// GetPreferences handles GET /notifications/preferences.
func (s *Server) GetPreferences(c *gin.Context) {
	userID := callerID(c)
	if userID == "" {
		_ = c.Error(unauthenticated())
		return
	}
	prefs, err := s.store.GetPreferences(c.Request.Context(), userID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, prefs)
}

// UpdatePreferences handles PUT /notifications/preferences. Fields absent
// from the body keep their stored value.
func (s *Server) UpdatePreferences(c *gin.Context) {
	userID := callerID(c)
	if userID == "" {
		_ = c.Error(unauthenticated())
		return
	}
	ctx := c.Request.Context()
	prefs, err := s.store.GetPreferences(ctx, userID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	if err := c.ShouldBindJSON(&prefs); err != nil && !errors.Is(err, io.EOF) {
		_ = c.Error(apperrors.BadRequest(apperrors.CodeInvalidRequestField, "invalid preferences body"))
		return
	}
	prefs.UserID = userID

	saved, err := s.store.UpsertPreferences(ctx, prefs)
	if err != nil {
		_ = c.Error(err)
		return
	}
	logger.Info("notification preferences updated",
		zap.String("user_id", userID),
		zap.Bool("in_app_all", saved.InAppAll),
	)
	c.JSON(http.StatusOK, saved)
}

// CreateSocketTicket handles POST /notifications/socket-ticket.
func (s *Server) CreateSocketTicket(c *gin.Context) {
	userID := callerID(c)
	if userID == "" {
		_ = c.Error(unauthenticated())
		return
	}
	if s.tickets == nil {
		_ = c.Error(unavailable("realtime"))
		return
	}
	token, expiresAt, err := s.tickets.Issue(userID)
	if err != nil {
		_ = c.Error(apperrors.Wrap(err, apperrors.CodeTicketInvalid, "could not issue realtime ticket", http.StatusInternalServerError))
		return
	}
	c.JSON(http.StatusCreated, Ticket{Token: token, ExpiresAt: expiresAt})
}

func unauthenticated() error {
	return apperrors.Unauthorized(apperrors.CodeAuthFailed, "authentication required")
}

func unavailable(component string) error {
	return apperrors.New("SERVICE_UNAVAILABLE", component+" is not enabled", http.StatusServiceUnavailable)
}
