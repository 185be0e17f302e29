package delivery

import (
	"context"

	"go.uber.org/zap"

	"learnhub.io/notifier/internal/pkg/logger"
	"learnhub.io/notifier/internal/pkg/worker"
)

// PoolQueue runs jobs on the delivery worker pool. It is the in-process
// fallback when the durable job queue is disabled; jobs do not survive a restart.
type PoolQueue struct {
	pools  *worker.Pools
	router *Router
}

// NewPoolQueue creates a queue over pools.
func NewPoolQueue(pools *worker.Pools, router *Router) *PoolQueue {
	return &PoolQueue{pools: pools, router: router}
}

// Enqueue submits job to the delivery pool detached from ctx.
func (q *PoolQueue) Enqueue(_ context.Context, job Job) error {
	return q.pools.SubmitDetached(worker.PoolDelivery, func(ctx context.Context) {
		if err := q.router.Deliver(ctx, job); err != nil {
			logger.Warn("notification delivery failed",
				logger.NotificationID(job.NotificationID),
				logger.Recipient(job.RecipientID),
				logger.Channel(string(job.Channel)),
				zap.Error(err),
			)
		}
	})
}

var _ Queue = (*PoolQueue)(nil)
