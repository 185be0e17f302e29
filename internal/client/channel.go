package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"learnhub.io/notifier/internal/domain"
	apperrors "learnhub.io/notifier/internal/pkg/errors"
	"learnhub.io/notifier/internal/pkg/logger"
	"learnhub.io/notifier/internal/realtime"
)

// State is the lifecycle state of a Channel.
type State int32

const (
	Disconnected State = iota
	Connecting
	Connected
	Reconnecting
	// PermanentlyDisconnected is terminal: no further attempts are made.
	PermanentlyDisconnected
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Reconnecting:
		return "reconnecting"
	case PermanentlyDisconnected:
		return "permanently_disconnected"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Default reconnect policy.
const (
	DefaultMaxAttempts    = 5
	DefaultReconnectDelay = 3 * time.Second
	DefaultStableAfter    = 10 * time.Second
)

// FrameConn is an open realtime connection.
type FrameConn interface {
	ReadJSON(v any) error
	WriteJSON(v any) error
	Close() error
}

// Dialer opens realtime connections.
type Dialer interface {
	Dial(ctx context.Context, url, ticket string) (FrameConn, error)
}

// TicketSource returns a fresh single-use connect credential.
type TicketSource func(ctx context.Context) (string, error)

// WebsocketDialer dials with gorilla/websocket, presenting the ticket as a
// bearer token.
type WebsocketDialer struct {
	Dialer *websocket.Dialer
}

// Dial implements Dialer.
func (d WebsocketDialer) Dial(ctx context.Context, url, ticket string) (FrameConn, error) {
	dialer := d.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+ticket)
	conn, resp, err := dialer.DialContext(ctx, url, header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (status %d)", url, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return conn, nil
}

// ChannelConfig configures reconnect behavior.
type ChannelConfig struct {
	URL            string
	MaxAttempts    int
	ReconnectDelay time.Duration
	// StableAfter is how long a connection must stay up before it resets the
	// failure count. Shorter-lived connections count as failed attempts.
	StableAfter time.Duration
}

// Channel is one owned realtime connection with bounded reconnection.
// Consecutive connect failures, including connections dropped before
// StableAfter, are counted; reaching MaxAttempts moves the channel to
// PermanentlyDisconnected.
type Channel struct {
	url         string
	maxAttempts int
	delay       time.Duration
	stableAfter time.Duration
	tickets     TicketSource
	dialer      Dialer
	onState     func(State)

	mu       sync.Mutex
	state    State
	conn     FrameConn
	attempts int

	writeMu sync.Mutex
}

// ChannelOption customizes a Channel.
type ChannelOption func(*Channel)

// WithDialer replaces the websocket dialer.
func WithDialer(d Dialer) ChannelOption {
	return func(c *Channel) { c.dialer = d }
}

// WithStateHook observes every state transition.
func WithStateHook(fn func(State)) ChannelOption {
	return func(c *Channel) { c.onState = fn }
}

// NewChannel creates a disconnected channel.
func NewChannel(cfg ChannelConfig, tickets TicketSource, opts ...ChannelOption) *Channel {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = DefaultReconnectDelay
	}
	if cfg.StableAfter <= 0 {
		cfg.StableAfter = DefaultStableAfter
	}
	c := &Channel{
		url:         cfg.URL,
		maxAttempts: cfg.MaxAttempts,
		delay:       cfg.ReconnectDelay,
		stableAfter: cfg.StableAfter,
		tickets:     tickets,
		dialer:      WebsocketDialer{},
		state:       Disconnected,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the current state.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Attempts returns the number of dials made so far.
func (c *Channel) Attempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts
}

// Run connects and delivers pushed notifications to onNew until ctx ends,
// the ticket source fails, or reconnection is exhausted. Cancelling ctx
// closes the connection and abandons any pending reconnect. The returned
// error matches errors.ErrConnection unless ctx was cancelled.
func (c *Channel) Run(ctx context.Context, onNew func(domain.Notification)) error {
	failures := 0
	reconnecting := false

	for {
		if ctx.Err() != nil {
			c.setState(Disconnected)
			return nil
		}
		if reconnecting {
			c.setState(Reconnecting)
		} else {
			c.setState(Connecting)
		}

		ticket, err := c.tickets(ctx)
		if err != nil {
			c.setState(Disconnected)
			if ctx.Err() != nil {
				return nil
			}
			return apperrors.Connection(fmt.Errorf("obtain realtime ticket: %w", err))
		}

		c.mu.Lock()
		c.attempts++
		attempt := c.attempts
		c.mu.Unlock()

		conn, err := c.dialer.Dial(ctx, c.url, ticket)
		if err != nil {
			if ctx.Err() != nil {
				c.setState(Disconnected)
				return nil
			}
			failures++
			logger.Warn("realtime connect failed",
				zap.Int("attempt", attempt),
				zap.Int("consecutive_failures", failures),
				zap.Int("max_attempts", c.maxAttempts),
				zap.Error(err),
			)
			if failures >= c.maxAttempts {
				c.setState(PermanentlyDisconnected)
				return apperrors.Connection(fmt.Errorf("gave up after %d attempts: %w", failures, err))
			}
			reconnecting = true
			if !sleepCtx(ctx, c.delay) {
				c.setState(Disconnected)
				return nil
			}
			continue
		}

		connectedAt := time.Now()
		c.mu.Lock()
		c.conn = conn
		c.mu.Unlock()
		c.setState(Connected)

		stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
		err = readLoop(conn, onNew)
		stop()
		_ = conn.Close()

		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()

		if ctx.Err() != nil {
			c.setState(Disconnected)
			return nil
		}
		if time.Since(connectedAt) >= c.stableAfter {
			failures = 0
		} else {
			failures++
			if failures >= c.maxAttempts {
				c.setState(PermanentlyDisconnected)
				return apperrors.Connection(fmt.Errorf("gave up after %d short-lived connections: %w", failures, err))
			}
		}
		c.setState(Disconnected)
		logger.Info("realtime connection dropped, reconnecting",
			zap.Int("consecutive_failures", failures),
			zap.Error(err),
		)
		reconnecting = true
		if !sleepCtx(ctx, c.delay) {
			return nil
		}
	}
}

func readLoop(conn FrameConn, onNew func(domain.Notification)) error {
	for {
		var env realtime.Envelope
		if err := conn.ReadJSON(&env); err != nil {
			return err
		}
		if env.Event == realtime.EventNew && env.Notification != nil && onNew != nil {
			onNew(*env.Notification)
		}
	}
}

// ErrNotConnected is returned by acknowledgements sent while disconnected.
var ErrNotConnected = errors.New("realtime channel not connected")

// Acknowledge sends notification:read for id. It is best-effort.
func (c *Channel) Acknowledge(id string) error {
	return c.send(realtime.Envelope{Event: realtime.EventRead, ID: id})
}

// AcknowledgeAll sends notification:read-all. It is best-effort.
func (c *Channel) AcknowledgeAll() error {
	return c.send(realtime.Envelope{Event: realtime.EventReadAll})
}

func (c *Channel) send(env realtime.Envelope) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.WriteJSON(env)
}

func (c *Channel) setState(s State) {
	c.mu.Lock()
	changed := c.state != s
	c.state = s
	c.mu.Unlock()

	if changed && c.onState != nil {
		c.onState(s)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
