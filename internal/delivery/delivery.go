// Package delivery hands persisted notifications to external channels
// (email, mobile push). Every send is best-effort: a failure here never
// affects the stored inbox record.
package delivery

import (
	"context"
	"fmt"
	"maps"

	"learnhub.io/notifier/internal/domain"
	"learnhub.io/notifier/internal/metrics"
	apperrors "learnhub.io/notifier/internal/pkg/errors"
	"learnhub.io/notifier/internal/pkg/logger"
	"learnhub.io/notifier/internal/repository"
)

// Job is one external send for one persisted notification.
type Job struct {
	NotificationID string                  `json:"notification_id"`
	RecipientID    string                  `json:"recipient_id"`
	Channel        domain.Channel          `json:"channel"`
	Type           domain.NotificationType `json:"type"`
	Title          string                  `json:"title"`
	Message        string                  `json:"message"`
	Data           map[string]any          `json:"data,omitempty"`
}

// JobFor builds the job for sending n over ch.
func JobFor(n domain.Notification, ch domain.Channel) Job {
	return Job{
		NotificationID: n.ID,
		RecipientID:    n.RecipientID,
		Channel:        ch,
		Type:           n.Type,
		Title:          n.Title,
		Message:        n.Message,
		Data:           maps.Clone(n.Data),
	}
}

// Queue accepts jobs for asynchronous execution. Enqueue must not block on
// the send itself.
type Queue interface {
	Enqueue(ctx context.Context, job Job) error
}

// Router executes a job against the sender registered for its channel.
type Router struct {
	email    EmailSender
	push     PushSender
	contacts repository.ContactDirectory
}

// NewRouter wires the channel senders. contacts resolves email addresses.
func NewRouter(email EmailSender, push PushSender, contacts repository.ContactDirectory) *Router {
	return &Router{email: email, push: push, contacts: contacts}
}

// Deliver performs the send. Errors are classified as errors.Delivery.
func (r *Router) Deliver(ctx context.Context, job Job) error {
	var err error
	switch job.Channel {
	case domain.ChannelEmail:
		err = r.deliverEmail(ctx, job)
	case domain.ChannelPush:
		if r.push == nil {
			err = fmt.Errorf("no push sender configured")
			break
		}
		err = r.push.SendPush(ctx, job.RecipientID, job.Title, job.Message, job.Data)
	default:
		err = fmt.Errorf("unsupported channel %q", job.Channel)
	}

	if err != nil {
		metrics.RecordDelivery(string(job.Channel), metrics.OutcomeFailed)
		return apperrors.Delivery(string(job.Channel), err)
	}
	metrics.RecordDelivery(string(job.Channel), metrics.OutcomeSent)
	logger.Debug("notification delivered",
		logger.NotificationID(job.NotificationID),
		logger.Recipient(job.RecipientID),
		logger.Channel(string(job.Channel)),
	)
	return nil
}

func (r *Router) deliverEmail(ctx context.Context, job Job) error {
	if r.email == nil {
		return fmt.Errorf("no email sender configured")
	}
	if r.contacts == nil {
		return fmt.Errorf("no contact directory configured")
	}
	to, err := r.contacts.EmailFor(ctx, job.RecipientID)
	if err != nil {
		return fmt.Errorf("resolve email for %s: %w", job.RecipientID, err)
	}
	return r.email.SendEmail(ctx, to, job.Title, renderEmailBody(job))
}
