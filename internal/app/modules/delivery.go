package modules

import (
	"context"

	"github.com/riverqueue/river"
	"go.uber.org/zap"

	"learnhub.io/notifier/internal/api/handlers"
	"learnhub.io/notifier/internal/delivery"
	"learnhub.io/notifier/internal/jobs"
	"learnhub.io/notifier/internal/pkg/logger"
)

// DeliveryModule wires the email and push senders and the queue that
// carries sends off the dispatch path.
type DeliveryModule struct {
	infra  *Infrastructure
	router *delivery.Router
	queue  delivery.Queue
}

// NewDeliveryModule creates the channel router. The queue is chosen by
// BindQueue once River is (or is not) initialized.
func NewDeliveryModule(infra *Infrastructure) *DeliveryModule {
	cfg := infra.Config.Email
	return &DeliveryModule{
		infra:  infra,
		router: delivery.NewRouter(delivery.NewEmailSender(cfg.ResendAPIKey, cfg.From), delivery.LogPushSender{}, infra.Contacts),
	}
}

func (m *DeliveryModule) Name() string { return "delivery" }

func (m *DeliveryModule) ContributeServerDeps(*handlers.ServerDeps) {}

func (m *DeliveryModule) RegisterWorkers(workers *river.Workers) {
	if workers == nil || m == nil {
		return
	}
	river.AddWorker(workers, jobs.NewDeliveryWorker(m.router))
}

// BindQueue selects River when its client exists and the delivery worker
// pool otherwise.
func (m *DeliveryModule) BindQueue() {
	if m.infra.RiverClient != nil {
		m.queue = jobs.NewRiverQueue(m.infra.RiverClient)
		logger.Info("email/push delivery uses the durable job queue", zap.String("queue", jobs.QueueDelivery))
		return
	}
	m.queue = delivery.NewPoolQueue(m.infra.Pools, m.router)
	logger.Warn("email/push delivery uses the in-process pool; pending sends are lost on restart")
}

// Queue returns the bound queue, or nil before BindQueue.
func (m *DeliveryModule) Queue() delivery.Queue {
	return m.queue
}

func (m *DeliveryModule) Shutdown(context.Context) error { return nil }
