package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"learnhub.io/notifier/internal/domain"
	"learnhub.io/notifier/internal/pkg/logger"
)

// DefaultChannelPrefix is the Redis channel prefix; the recipient id follows it.
const DefaultChannelPrefix = "notify:user:"

// Broker fans notifications out to every hub instance. A hub publishes on
// Push and delivers what its subscription receives to local connections.
type Broker interface {
	Publish(ctx context.Context, n domain.Notification) error
	// Subscribe returns once the subscription is active. handler runs for
	// every published notification until stop is called or ctx ends.
	Subscribe(ctx context.Context, handler func(domain.Notification)) (stop func(), err error)
}

// LocalBroker delivers in-process. It serves single-instance deployments.
type LocalBroker struct {
	mu       sync.RWMutex
	nextID   int
	handlers map[int]func(domain.Notification)
}

// NewLocalBroker creates an in-process broker.
func NewLocalBroker() *LocalBroker {
	return &LocalBroker{handlers: make(map[int]func(domain.Notification))}
}

// Publish calls every subscribed handler synchronously.
func (b *LocalBroker) Publish(_ context.Context, n domain.Notification) error {
	b.mu.RLock()
	handlers := make([]func(domain.Notification), 0, len(b.handlers))
	for _, h := range b.handlers {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h(n)
	}
	return nil
}

// Subscribe registers handler.
func (b *LocalBroker) Subscribe(ctx context.Context, handler func(domain.Notification)) (func(), error) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.handlers[id] = handler
	b.mu.Unlock()

	var once sync.Once
	stop := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.handlers, id)
			b.mu.Unlock()
		})
	}
	context.AfterFunc(ctx, stop)
	return stop, nil
}

// RedisBroker fans out through Redis pub/sub on one channel per recipient.
type RedisBroker struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisBroker creates a broker. An empty prefix uses DefaultChannelPrefix.
func NewRedisBroker(client redis.UniversalClient, prefix string) *RedisBroker {
	if prefix == "" {
		prefix = DefaultChannelPrefix
	}
	return &RedisBroker{client: client, prefix: prefix}
}

// Channel returns the pub/sub channel for recipientID.
func (b *RedisBroker) Channel(recipientID string) string {
	return b.prefix + recipientID
}

// Publish sends n as JSON on the recipient's channel.
func (b *RedisBroker) Publish(ctx context.Context, n domain.Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	if err := b.client.Publish(ctx, b.Channel(n.RecipientID), payload).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", b.Channel(n.RecipientID), err)
	}
	return nil
}

// Subscribe pattern-subscribes to every recipient channel.
func (b *RedisBroker) Subscribe(ctx context.Context, handler func(domain.Notification)) (func(), error) {
	sub := b.client.PSubscribe(ctx, b.prefix+"*")
	// Receive blocks until Redis confirms the subscription.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("subscribe %s*: %w", b.prefix, err)
	}

	subCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		msgs := sub.Channel()
		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				b.handle(msg, handler)
			}
		}
	}()

	var once sync.Once
	stop := func() {
		once.Do(func() {
			cancel()
			_ = sub.Close()
			<-done
		})
	}
	return stop, nil
}

func (b *RedisBroker) handle(msg *redis.Message, handler func(domain.Notification)) {
	var n domain.Notification
	if err := json.Unmarshal([]byte(msg.Payload), &n); err != nil {
		logger.Warn("dropping malformed realtime message",
			logger.Channel(msg.Channel),
			zap.Error(err),
		)
		return
	}
	if n.RecipientID == "" {
		n.RecipientID = strings.TrimPrefix(msg.Channel, b.prefix)
	}
	handler(n)
}

var (
	_ Broker = (*LocalBroker)(nil)
	_ Broker = (*RedisBroker)(nil)
)
