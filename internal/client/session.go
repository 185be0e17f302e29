package client

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"learnhub.io/notifier/internal/domain"
	apperrors "learnhub.io/notifier/internal/pkg/errors"
	"learnhub.io/notifier/internal/pkg/logger"
)

// DefaultPollInterval is the reconciliation period.
const DefaultPollInterval = 30 * time.Second

// ErrSessionClosed is returned by operations on a closed or unstarted session.
var ErrSessionClosed = errors.New("session is not running")

// SessionConfig configures a Session.
type SessionConfig struct {
	PollInterval time.Duration
	ListLimit    int
}

// Session owns one user's cache, poll timer and realtime channel. Close
// stops all three; no callback mutates the cache after Close returns.
type Session struct {
	api      API
	channel  *Channel
	cache    *Cache
	cfg      SessionConfig
	surfacer Surfacer
	onChange func(list []domain.Notification, unread int)
	now      func() time.Time

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	closed bool
	wg     sync.WaitGroup
}

// SessionOption customizes a Session.
type SessionOption func(*Session)

// WithSurfacer surfaces each new pushed notification.
func WithSurfacer(s Surfacer) SessionOption {
	return func(sess *Session) { sess.surfacer = s }
}

// WithChangeHook is called with a snapshot after every cache change.
func WithChangeHook(fn func(list []domain.Notification, unread int)) SessionOption {
	return func(sess *Session) { sess.onChange = fn }
}

// NewSession creates a session. channel may be nil for polling only.
func NewSession(api API, channel *Channel, cfg SessionConfig, opts ...SessionOption) *Session {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	s := &Session{
		api:      api,
		channel:  channel,
		cache:    NewCache(),
		cfg:      cfg,
		surfacer: nopSurfacer{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start fetches the inbox, then starts polling and the realtime channel.
// A failed initial fetch is logged; polling recovers from it.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.ctx != nil {
		s.mu.Unlock()
		return errors.New("session already started")
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	runCtx := s.ctx
	s.mu.Unlock()

	if err := s.Refresh(runCtx); err != nil {
		logger.Warn("initial notification fetch failed", zap.Error(err))
	}

	s.spawn(s.pollLoop)
	if s.channel != nil {
		s.spawn(func(ctx context.Context) {
			if err := s.channel.Run(ctx, s.handlePush); err != nil {
				logger.Warn("realtime channel stopped; relying on polling",
					zap.String("state", s.channel.State().String()),
					zap.Error(err),
				)
			}
		})
	}
	return nil
}

// Close cancels the poll timer, the channel and any in-flight calls, and
// waits for them to finish.
func (s *Session) Close() {
	s.mu.Lock()
	s.closed = true
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()

	s.wg.Wait()
}

// Refresh replaces the cache with the server listing.
func (s *Session) Refresh(ctx context.Context) error {
	resp, err := s.api.List(ctx, s.cfg.ListLimit)
	if err != nil {
		return err
	}
	if !s.alive() {
		return ErrSessionClosed
	}
	s.cache.Replace(resp.Notifications)
	s.changed()
	return nil
}

// MarkRead marks id read locally at once, then tells the store and the
// realtime channel without waiting. A store failure is logged and the
// local state is left as is until the next poll.
func (s *Session) MarkRead(id string) {
	if !s.cache.MarkRead(id, s.now()) {
		return
	}
	s.changed()

	s.spawn(func(ctx context.Context) {
		if _, err := s.api.MarkRead(ctx, id); err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				logger.Debug("notification no longer exists", logger.NotificationID(id))
				return
			}
			logger.Warn("mark read failed; next poll reconciles", logger.NotificationID(id), zap.Error(err))
		}
	})
	if s.channel != nil {
		_ = s.channel.Acknowledge(id)
	}
}

// MarkAllRead marks everything read locally at once, then tells the store
// and the realtime channel without waiting.
func (s *Session) MarkAllRead() {
	s.cache.MarkAllRead(s.now())
	s.changed()

	s.spawn(func(ctx context.Context) {
		if _, err := s.api.MarkAllRead(ctx); err != nil {
			logger.Warn("mark all read failed; next poll reconciles", zap.Error(err))
		}
	})
	if s.channel != nil {
		_ = s.channel.AcknowledgeAll()
	}
}

// Snapshot returns the cached notifications and unread count.
func (s *Session) Snapshot() ([]domain.Notification, int) {
	return s.cache.Snapshot()
}

// ChannelState reports the realtime channel state, or Disconnected when the
// session polls only.
func (s *Session) ChannelState() State {
	if s.channel == nil {
		return Disconnected
	}
	return s.channel.State()
}

func (s *Session) handlePush(n domain.Notification) {
	if !s.alive() {
		return
	}
	n.Read = false
	n.ReadAt = nil
	if !s.cache.Merge(n) {
		return
	}
	s.changed()
	if err := s.surfacer.Surface(n); err != nil {
		logger.Debug("surfacing notification failed", logger.NotificationID(n.ID), zap.Error(err))
	}
}

func (s *Session) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Refresh(ctx); err != nil && s.alive() {
				logger.Warn("notification poll failed", zap.Error(err))
			}
		}
	}
}

// spawn runs fn in a tracked goroutine bound to the session context. It is
// a no-op once the session is closed or before it starts.
func (s *Session) spawn(fn func(ctx context.Context)) {
	s.mu.Lock()
	if s.closed || s.ctx == nil {
		s.mu.Unlock()
		return
	}
	ctx := s.ctx
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		fn(ctx)
	}()
}

func (s *Session) alive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed && s.ctx != nil && s.ctx.Err() == nil
}

func (s *Session) changed() {
	if s.onChange == nil || !s.alive() {
		return
	}
	list, unread := s.cache.Snapshot()
	s.onChange(list, unread)
}
