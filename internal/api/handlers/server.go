// Package handlers implements the notifier's HTTP API.
//
// Handlers read the caller from the request context populated by
// middleware.JWTAuth and never trust a recipient id from the request.
// Route registration lives in the app package.
package handlers

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"learnhub.io/notifier/internal/api/middleware"
	"learnhub.io/notifier/internal/config"
	"learnhub.io/notifier/internal/notification"
	"learnhub.io/notifier/internal/repository"
)

// Acknowledger records read acknowledgements on the realtime hub so live
// connections stop receiving pushes for them.
type Acknowledger interface {
	Acknowledge(userID, notificationID string)
	AcknowledgeAll(userID string)
}

// TicketIssuer mints short-lived realtime credentials.
type TicketIssuer interface {
	Issue(userID string) (token string, expiresAt time.Time, err error)
}

// EventDispatcher accepts platform events from other services.
type EventDispatcher interface {
	Fire(ctx context.Context, req notification.Request) (notification.Result, error)
}

// ReadinessCheck reports whether one dependency can serve traffic.
type ReadinessCheck func(ctx context.Context) error

// Server implements all API handlers.
type Server struct {
	store    repository.Store
	acks     Acknowledger
	tickets  TicketIssuer
	triggers EventDispatcher
	checks   map[string]ReadinessCheck
	list     config.NotificationConfig
	jwtCfg   middleware.JWTConfig
}

// ServerDeps holds all dependencies for creating a Server.
// Acks, Tickets and Triggers are optional; the matching endpoints answer
// 503 when they are missing.
type ServerDeps struct {
	Store    repository.Store
	Acks     Acknowledger
	Tickets  TicketIssuer
	Triggers EventDispatcher
	Checks   map[string]ReadinessCheck
	List     config.NotificationConfig
	JWTCfg   middleware.JWTConfig
}

// NewServer creates a new Server with all dependencies.
func NewServer(deps ServerDeps) *Server {
	list := deps.List
	if list.DefaultListLimit <= 0 {
		list.DefaultListLimit = repository.DefaultListLimit
	}
	if list.MaxListLimit < list.DefaultListLimit {
		list.MaxListLimit = list.DefaultListLimit
	}
	return &Server{
		store:    deps.Store,
		acks:     deps.Acks,
		tickets:  deps.Tickets,
		triggers: deps.Triggers,
		checks:   deps.Checks,
		list:     list,
		jwtCfg:   deps.JWTCfg,
	}
}

// JWTConfig returns the session token settings the router authenticates with.
func (s *Server) JWTConfig() middleware.JWTConfig {
	return s.jwtCfg
}

// callerID returns the authenticated user id, or "" when absent.
func callerID(c *gin.Context) string {
	if uid := middleware.GetUserID(c.Request.Context()); uid != "" {
		return uid
	}
	return c.GetString("user_id")
}
