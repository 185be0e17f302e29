package modules

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"sync"

	"github.com/riverqueue/river"
	"go.uber.org/zap"

	"learnhub.io/notifier/internal/api/handlers"
	"learnhub.io/notifier/internal/pkg/logger"
	"learnhub.io/notifier/internal/realtime"
)

// RealtimeModule wires the websocket hub, its broker and the ticket manager.
type RealtimeModule struct {
	hub     *realtime.Hub
	tickets *realtime.TicketManager
	handler *realtime.Handler

	mu   sync.Mutex
	stop func()
}

// NewRealtimeModule picks the Redis broker and replay store when Redis is
// configured, and in-process implementations otherwise.
func NewRealtimeModule(infra *Infrastructure) (*RealtimeModule, error) {
	if infra == nil || infra.Config == nil {
		return nil, fmt.Errorf("infrastructure is not initialized")
	}
	cfg := infra.Config

	var (
		broker realtime.Broker
		replay realtime.ReplayStore
	)
	if infra.Redis != nil {
		broker = realtime.NewRedisBroker(infra.Redis, cfg.Redis.ChannelPrefix)
		replay = realtime.NewRedisReplayStore(infra.Redis)
	} else {
		broker = realtime.NewLocalBroker()
		replay = realtime.NewMemoryReplayStore()
	}

	hub := realtime.NewHub(broker, cfg.Realtime)
	tickets := realtime.NewTicketManager(
		[]byte(cfg.Security.SessionSecret),
		cfg.Security.TokenIssuer,
		cfg.Realtime.TicketTTL,
		replay,
	)
	return &RealtimeModule{
		hub:     hub,
		tickets: tickets,
		handler: realtime.NewHandler(hub, tickets, originChecker(cfg.Server.AllowedOrigins, cfg.Server.UnsafeAllowAllOrigins)),
	}, nil
}

func (m *RealtimeModule) Name() string { return "realtime" }

// Hub returns the hub; it is the dispatcher's Pusher.
func (m *RealtimeModule) Hub() *realtime.Hub { return m.hub }

// Handler returns the websocket upgrade handler.
func (m *RealtimeModule) Handler() *realtime.Handler { return m.handler }

func (m *RealtimeModule) ContributeServerDeps(deps *handlers.ServerDeps) {
	if deps == nil {
		return
	}
	deps.Acks = m.hub
	deps.Tickets = m.tickets
}

func (m *RealtimeModule) RegisterWorkers(*river.Workers) {}

// Start subscribes the hub to its broker.
func (m *RealtimeModule) Start(ctx context.Context) error {
	stop, err := m.hub.Start(ctx)
	if err != nil {
		return fmt.Errorf("subscribe realtime broker: %w", err)
	}
	m.mu.Lock()
	m.stop = stop
	m.mu.Unlock()
	logger.Info("Realtime hub subscribed")
	return nil
}

// Shutdown unsubscribes and closes every connection.
func (m *RealtimeModule) Shutdown(context.Context) error {
	m.mu.Lock()
	stop := m.stop
	m.stop = nil
	m.mu.Unlock()
	if stop != nil {
		stop()
	}
	m.hub.Shutdown()
	return nil
}

// originChecker accepts same-origin requests and the configured allowlist.
// A nil Origin header (non-browser clients) is accepted.
func originChecker(allowed []string, allowAll bool) func(r *http.Request) bool {
	allowlist := make([]string, 0, len(allowed))
	for _, origin := range allowed {
		origin = strings.TrimRight(strings.TrimSpace(origin), "/")
		if origin != "" && origin != "*" {
			allowlist = append(allowlist, origin)
		}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || allowAll {
			return true
		}
		if slices.Contains(allowlist, origin) {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		if strings.EqualFold(u.Host, r.Host) {
			return true
		}
		logger.Debug("websocket origin rejected", zap.String("origin", origin))
		return false
	}
}
