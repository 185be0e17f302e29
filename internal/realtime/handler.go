package realtime

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	apperrors "learnhub.io/notifier/internal/pkg/errors"
	"learnhub.io/notifier/internal/pkg/logger"
)

// Handler upgrades ticket-authenticated requests to websocket connections.
type Handler struct {
	hub      *Hub
	tickets  *TicketManager
	upgrader websocket.Upgrader
}

// NewHandler creates the upgrade handler. checkOrigin may be nil to accept
// same-origin requests only.
func NewHandler(hub *Hub, tickets *TicketManager, checkOrigin func(r *http.Request) bool) *Handler {
	return &Handler{
		hub:     hub,
		tickets: tickets,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
	}
}

// Serve handles GET /ws. The ticket comes from "Authorization: Bearer" or
// the token query parameter; browsers cannot set headers on websockets.
func (h *Handler) Serve(c *gin.Context) {
	token := bearerToken(c.GetHeader("Authorization"))
	if token == "" {
		token = c.Query("token")
	}
	if token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"code":    apperrors.CodeTicketInvalid,
			"message": "missing realtime ticket",
		})
		return
	}

	userID, err := h.tickets.Consume(c.Request.Context(), token)
	if err != nil {
		msg := "invalid realtime ticket"
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			msg = "realtime ticket expired"
		case errors.Is(err, ErrTicketReplayed):
			msg = "realtime ticket already used"
		}
		logger.Debug("realtime ticket rejected", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"code":    apperrors.CodeTicketInvalid,
			"message": msg,
		})
		return
	}

	ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		logger.Warn("websocket upgrade failed", logger.Recipient(userID), zap.Error(err))
		return
	}

	newConn(h.hub, ws, userID).serve()
}

func bearerToken(header string) string {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
