package modules

import (
	"context"
	"fmt"

	"github.com/riverqueue/river"

	"learnhub.io/notifier/internal/api/handlers"
	"learnhub.io/notifier/internal/delivery"
	"learnhub.io/notifier/internal/notification"
)

// NotificationModule wires the dispatcher and the platform triggers.
type NotificationModule struct {
	dispatcher *notification.Dispatcher
	triggers   *notification.Triggers
}

// NewNotificationModule builds the dispatcher over the store, the realtime
// pusher and the delivery queue. pusher and queue may be nil.
func NewNotificationModule(infra *Infrastructure, pusher notification.Pusher, queue delivery.Queue) (*NotificationModule, error) {
	if infra == nil || infra.Config == nil || infra.Store == nil {
		return nil, fmt.Errorf("infrastructure is not initialized")
	}
	catalog, err := notification.DefaultCatalog()
	if err != nil {
		return nil, fmt.Errorf("load template catalog: %w", err)
	}

	var deduper notification.Deduper = notification.NewMemoryDeduper()
	if infra.Redis != nil {
		deduper = notification.NewRedisDeduper(infra.Redis)
	}

	dispatcher := notification.NewDispatcher(notification.DispatcherDeps{
		Store:       infra.Store,
		Pusher:      pusher,
		Queue:       queue,
		Deduper:     deduper,
		DedupWindow: infra.Config.Notification.DedupWindow,
	})
	return &NotificationModule{
		dispatcher: dispatcher,
		triggers:   notification.NewTriggers(dispatcher, catalog, infra.Roster).Detach(infra.Pools),
	}, nil
}

func (m *NotificationModule) Name() string { return "notification" }

// Triggers returns the trigger service for in-process callers.
func (m *NotificationModule) Triggers() *notification.Triggers { return m.triggers }

func (m *NotificationModule) ContributeServerDeps(deps *handlers.ServerDeps) {
	if deps == nil {
		return
	}
	deps.Triggers = m.triggers
}

func (m *NotificationModule) RegisterWorkers(*river.Workers) {}

func (m *NotificationModule) Shutdown(context.Context) error { return nil }
