package realtime

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"learnhub.io/notifier/internal/config"
	"learnhub.io/notifier/internal/domain"
	"learnhub.io/notifier/internal/metrics"
	"learnhub.io/notifier/internal/pkg/logger"
)

// Hub tracks this instance's websocket connections by user and the ids each
// user has acknowledged.
type Hub struct {
	broker Broker
	cfg    config.RealtimeConfig
	now    func() time.Time

	mu        sync.RWMutex
	conns     map[string]map[*Conn]struct{}
	acks      map[string]*ackState
	lastSweep time.Time
}

// ackState is bounded: the oldest acknowledged ids are forgotten first.
// readAllAt suppresses everything created at or before it. idleSince is
// set while the user has no connection here; the state is swept once it
// has been idle for AckIdleTTL.
type ackState struct {
	ids       map[string]struct{}
	order     []string
	readAllAt time.Time
	idleSince time.Time
}

// NewHub creates a hub. A nil broker uses a LocalBroker.
func NewHub(broker Broker, cfg config.RealtimeConfig) *Hub {
	if broker == nil {
		broker = NewLocalBroker()
	}
	return &Hub{
		broker: broker,
		cfg:    withDefaults(cfg),
		now:    time.Now,
		conns:  make(map[string]map[*Conn]struct{}),
		acks:   make(map[string]*ackState),
	}
}

func withDefaults(cfg config.RealtimeConfig) config.RealtimeConfig {
	if cfg.PongWait <= 0 {
		cfg.PongWait = 60 * time.Second
	}
	if cfg.PingInterval <= 0 || cfg.PingInterval >= cfg.PongWait {
		cfg.PingInterval = cfg.PongWait * 9 / 10
	}
	if cfg.WriteWait <= 0 {
		cfg.WriteWait = 10 * time.Second
	}
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = 64
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = 4096
	}
	if cfg.AckRate <= 0 {
		cfg.AckRate = 10
	}
	if cfg.AckBurst <= 0 {
		cfg.AckBurst = 20
	}
	if cfg.AckMemory <= 0 {
		cfg.AckMemory = 500
	}
	if cfg.AckIdleTTL <= 0 {
		cfg.AckIdleTTL = 5 * time.Minute
	}
	return cfg
}

// Start subscribes the hub to its broker. Local delivery stops when ctx ends
// or the returned stop function is called.
func (h *Hub) Start(ctx context.Context) (stop func(), err error) {
	return h.broker.Subscribe(ctx, h.deliverLocal)
}

// Push publishes n to every instance. Having no connection for the
// recipient is not an error.
func (h *Hub) Push(ctx context.Context, n domain.Notification) error {
	return h.broker.Publish(ctx, n)
}

// deliverLocal writes n to the recipient's connections on this instance.
func (h *Hub) deliverLocal(n domain.Notification) {
	if n.Read || h.acknowledged(n) {
		return
	}

	h.mu.RLock()
	targets := make([]*Conn, 0, len(h.conns[n.RecipientID]))
	for c := range h.conns[n.RecipientID] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()
	if len(targets) == 0 {
		return
	}

	frame, err := encodeNew(n)
	if err != nil {
		logger.Error("encode realtime frame", logger.NotificationID(n.ID), zap.Error(err))
		return
	}
	for _, c := range targets {
		if !c.enqueue(frame) {
			logger.Warn("realtime send buffer full, dropping connection",
				logger.Recipient(n.RecipientID),
				logger.NotificationID(n.ID),
			)
			c.close()
		}
	}
}

// Acknowledge records that userID read id.
func (h *Hub) Acknowledge(userID, id string) {
	if userID == "" || id == "" {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	st := h.ackStateLocked(userID)
	if _, ok := st.ids[id]; ok {
		return
	}
	st.ids[id] = struct{}{}
	st.order = append(st.order, id)
	for len(st.order) > h.cfg.AckMemory {
		delete(st.ids, st.order[0])
		st.order = st.order[1:]
	}
}

// AcknowledgeAll records that userID read everything created so far.
func (h *Hub) AcknowledgeAll(userID string) {
	if userID == "" {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	st := h.ackStateLocked(userID)
	st.readAllAt = h.now()
	st.ids = make(map[string]struct{})
	st.order = nil
}

func (h *Hub) ackStateLocked(userID string) *ackState {
	now := h.now()
	h.sweepAcksLocked(now)

	st, ok := h.acks[userID]
	if !ok {
		st = &ackState{ids: make(map[string]struct{})}
		h.acks[userID] = st
	}
	if len(h.conns[userID]) == 0 {
		// Acks arriving over REST for an offline user expire like a disconnect.
		st.idleSince = now
	}
	return st
}

// sweepAcksLocked drops ack state idle for longer than AckIdleTTL. It walks
// the map at most once per AckIdleTTL.
func (h *Hub) sweepAcksLocked(now time.Time) {
	if now.Sub(h.lastSweep) < h.cfg.AckIdleTTL {
		return
	}
	h.lastSweep = now
	for userID, st := range h.acks {
		if !st.idleSince.IsZero() && now.Sub(st.idleSince) >= h.cfg.AckIdleTTL {
			delete(h.acks, userID)
		}
	}
}

func (h *Hub) acknowledged(n domain.Notification) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	st, ok := h.acks[n.RecipientID]
	if !ok {
		return false
	}
	if !st.idleSince.IsZero() && h.now().Sub(st.idleSince) >= h.cfg.AckIdleTTL {
		return false
	}
	if _, ok := st.ids[n.ID]; ok {
		return true
	}
	return !st.readAllAt.IsZero() && !n.CreatedAt.After(st.readAllAt)
}

func (h *Hub) register(c *Conn) {
	h.mu.Lock()
	set, ok := h.conns[c.userID]
	if !ok {
		set = make(map[*Conn]struct{})
		h.conns[c.userID] = set
	}
	set[c] = struct{}{}
	if st, ok := h.acks[c.userID]; ok {
		st.idleSince = time.Time{}
	}
	h.mu.Unlock()

	metrics.RealtimeConnections.Inc()
	logger.Debug("realtime connection registered", logger.Recipient(c.userID))
}

func (h *Hub) unregister(c *Conn) {
	h.mu.Lock()
	set, ok := h.conns[c.userID]
	if ok {
		if _, present := set[c]; !present {
			ok = false
		}
		delete(set, c)
		if len(set) == 0 {
			delete(h.conns, c.userID)
			if st, tracked := h.acks[c.userID]; tracked {
				st.idleSince = h.now()
			}
			h.sweepAcksLocked(h.now())
		}
	}
	h.mu.Unlock()

	if ok {
		metrics.RealtimeConnections.Dec()
		logger.Debug("realtime connection closed", logger.Recipient(c.userID))
	}
}

// ConnectionCount returns the number of open connections for userID, or
// for all users when userID is empty.
func (h *Hub) ConnectionCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if userID != "" {
		return len(h.conns[userID])
	}
	total := 0
	for _, set := range h.conns {
		total += len(set)
	}
	return total
}

// Shutdown closes every connection.
func (h *Hub) Shutdown() {
	h.mu.RLock()
	var all []*Conn
	for _, set := range h.conns {
		for c := range set {
			all = append(all, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range all {
		c.close()
	}
}
