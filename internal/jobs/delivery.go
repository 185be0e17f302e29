// Package jobs defines River Queue job types for async processing: external
// channel delivery and inbox retention.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/riverqueue/river"
	"go.uber.org/zap"

	"learnhub.io/notifier/internal/delivery"
	"learnhub.io/notifier/internal/pkg/logger"
)

// QueueDelivery is the River queue for email and push sends.
const QueueDelivery = "notification_delivery"

// DeliveryArgs carries one external send. The notification content travels
// with the job so a worker never reads the inbox row.
type DeliveryArgs struct {
	Job delivery.Job `json:"job"`
}

// Kind returns the job kind identifier for external delivery.
func (DeliveryArgs) Kind() string { return "notification_delivery" }

// InsertOpts makes a send unique per notification and channel.
func (DeliveryArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{
		Queue:       QueueDelivery,
		MaxAttempts: 5,
		UniqueOpts: river.UniqueOpts{
			ByArgs:  true,
			ByQueue: true,
		},
	}
}

// Deliverer performs one send.
type Deliverer interface {
	Deliver(ctx context.Context, job delivery.Job) error
}

// DeliveryWorker executes DeliveryArgs. Failed sends are retried by River
// up to MaxAttempts.
type DeliveryWorker struct {
	river.WorkerDefaults[DeliveryArgs]
	deliverer Deliverer
}

// NewDeliveryWorker creates a delivery worker.
func NewDeliveryWorker(deliverer Deliverer) *DeliveryWorker {
	return &DeliveryWorker{deliverer: deliverer}
}

// Timeout bounds one send attempt.
func (w *DeliveryWorker) Timeout(*river.Job[DeliveryArgs]) time.Duration {
	return 30 * time.Second
}

// Work performs the send.
func (w *DeliveryWorker) Work(ctx context.Context, job *river.Job[DeliveryArgs]) error {
	if w == nil || w.deliverer == nil {
		return fmt.Errorf("delivery worker is not initialized")
	}

	err := w.deliverer.Deliver(ctx, job.Args.Job)
	if err == nil {
		return nil
	}

	fields := []zap.Field{
		logger.NotificationID(job.Args.Job.NotificationID),
		logger.Recipient(job.Args.Job.RecipientID),
		logger.Channel(string(job.Args.Job.Channel)),
		zap.Int("attempt", job.Attempt),
		zap.Int("max_attempts", job.MaxAttempts),
		zap.Error(err),
	}
	if job.Attempt >= job.MaxAttempts {
		logger.Error("notification delivery abandoned", fields...)
	} else {
		logger.Warn("notification delivery failed, will retry", fields...)
	}
	return err
}

// RiverQueue enqueues delivery jobs durably in PostgreSQL.
type RiverQueue struct {
	client *river.Client[pgx.Tx]
}

// NewRiverQueue creates a queue over client.
func NewRiverQueue(client *river.Client[pgx.Tx]) *RiverQueue {
	return &RiverQueue{client: client}
}

// Enqueue inserts a DeliveryArgs job.
func (q *RiverQueue) Enqueue(ctx context.Context, job delivery.Job) error {
	if q == nil || q.client == nil {
		return fmt.Errorf("river queue is not initialized")
	}
	if _, err := q.client.Insert(ctx, DeliveryArgs{Job: job}, nil); err != nil {
		return fmt.Errorf("enqueue %s delivery: %w", job.Channel, err)
	}
	return nil
}

var _ delivery.Queue = (*RiverQueue)(nil)
