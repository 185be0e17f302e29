package realtime

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"learnhub.io/notifier/internal/pkg/logger"
)

// Conn is one authenticated websocket connection.
type Conn struct {
	hub     *Hub
	ws      *websocket.Conn
	userID  string
	send    chan []byte
	limiter *rate.Limiter

	done      chan struct{}
	closeOnce sync.Once
}

func newConn(hub *Hub, ws *websocket.Conn, userID string) *Conn {
	return &Conn{
		hub:     hub,
		ws:      ws,
		userID:  userID,
		send:    make(chan []byte, hub.cfg.SendBuffer),
		limiter: rate.NewLimiter(rate.Limit(hub.cfg.AckRate), hub.cfg.AckBurst),
		done:    make(chan struct{}),
	}
}

// serve registers the connection and runs both pumps. It returns when the
// connection is gone.
func (c *Conn) serve() {
	c.hub.register(c)
	go c.writePump()
	c.readPump()
}

// enqueue reports false when the send buffer is full.
func (c *Conn) enqueue(frame []byte) bool {
	select {
	case <-c.done:
		return true
	default:
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

func (c *Conn) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

func (c *Conn) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.close()
		_ = c.ws.Close()
	}()

	cfg := c.hub.cfg
	c.ws.SetReadLimit(cfg.MaxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(cfg.PongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(cfg.PongWait))
	})

	for {
		var env Envelope
		if err := c.ws.ReadJSON(&env); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				logger.Warn("realtime read failed", logger.Recipient(c.userID), zap.Error(err))
			}
			return
		}
		if !c.limiter.Allow() {
			logger.Debug("realtime ack rate limited", logger.Recipient(c.userID), zap.String("event", env.Event))
			continue
		}

		switch env.Event {
		case EventRead:
			c.hub.Acknowledge(c.userID, env.ID)
		case EventReadAll:
			c.hub.AcknowledgeAll(c.userID)
		default:
			logger.Debug("ignoring realtime event", logger.Recipient(c.userID), zap.String("event", env.Event))
		}
	}
}

func (c *Conn) writePump() {
	cfg := c.hub.cfg
	ticker := time.NewTicker(cfg.PingInterval)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()

	for {
		select {
		case frame := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(cfg.WriteWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.close()
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(cfg.WriteWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		case <-c.done:
			_ = c.ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(cfg.WriteWait))
			return
		}
	}
}
