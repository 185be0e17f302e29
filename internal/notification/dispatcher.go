// Package notification turns platform events into persisted notifications
// and hands each one to the delivery channels the recipient allows.
//
// The stored record is the source of truth. Realtime push, email and mobile
// push are secondary: their failures are logged and never undo or block the
// write.
package notification

import (
	"context"
	"fmt"
	"maps"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"learnhub.io/notifier/internal/delivery"
	"learnhub.io/notifier/internal/domain"
	"learnhub.io/notifier/internal/metrics"
	apperrors "learnhub.io/notifier/internal/pkg/errors"
	"learnhub.io/notifier/internal/pkg/logger"
	"learnhub.io/notifier/internal/repository"
)

// Pusher delivers a persisted notification to the recipient's live
// connections. No connection is not an error.
type Pusher interface {
	Push(ctx context.Context, n domain.Notification) error
}

// Event describes one dispatch. Title and Message are stored verbatim;
// when empty, TitleTemplate and MessageTemplate are rendered against Data.
type Event struct {
	Type            domain.NotificationType
	Title           string
	Message         string
	TitleTemplate   string
	MessageTemplate string
	Data            map[string]any

	// IdempotencyKey, when set, suppresses a second dispatch of the same
	// (Type, recipient, key) inside the dedup window.
	IdempotencyKey string
}

// Result reports the per-recipient outcome of a dispatch.
type Result struct {
	Created []domain.Notification
	Failed  []string
	Skipped []string
}

// DispatcherDeps holds the collaborators of a Dispatcher. Only Store is required.
type DispatcherDeps struct {
	Store       repository.Store
	Pusher      Pusher
	Queue       delivery.Queue
	Deduper     Deduper
	DedupWindow time.Duration
}

// Dispatcher fans an event out to its audience.
type Dispatcher struct {
	store       repository.Store
	pusher      Pusher
	queue       delivery.Queue
	deduper     Deduper
	dedupWindow time.Duration
	newID       func() string
	now         func() time.Time
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(deps DispatcherDeps) *Dispatcher {
	window := deps.DedupWindow
	if window <= 0 {
		window = 24 * time.Hour
	}
	return &Dispatcher{
		store:       deps.Store,
		pusher:      deps.Pusher,
		queue:       deps.Queue,
		deduper:     deps.Deduper,
		dedupWindow: window,
		newID:       newNotificationID,
		now:         time.Now,
	}
}

func newNotificationID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Dispatch resolves the audience and dispatches ev to every member.
func (d *Dispatcher) Dispatch(ctx context.Context, audience AudienceResolver, ev Event) (Result, error) {
	recipients, err := audience.Resolve(ctx)
	if err != nil {
		return Result{}, apperrors.Wrap(err, apperrors.CodeAudienceFailed, "audience resolution failed", http.StatusInternalServerError)
	}
	return d.DispatchToMany(ctx, recipients, ev)
}

// DispatchToMany creates one notification per distinct recipient.
//
// A persistence failure for one recipient is recorded in Result.Failed and
// does not stop the others; the returned error then wraps the first
// failure. Delivery failures are only logged.
func (d *Dispatcher) DispatchToMany(ctx context.Context, recipientIDs []string, ev Event) (Result, error) {
	if !ev.Type.Valid() {
		return Result{}, apperrors.BadRequest(apperrors.CodeUnknownType, "unknown notification type").
			WithParams(map[string]interface{}{"type": string(ev.Type)})
	}
	title, err := eventText("title", ev.Title, ev.TitleTemplate, ev.Data)
	if err != nil {
		return Result{}, err
	}
	message, err := eventText("message", ev.Message, ev.MessageTemplate, ev.Data)
	if err != nil {
		return Result{}, err
	}

	timer := metrics.StartDispatchTimer()
	defer timer.ObserveDuration()

	recipients := uniqueRecipients(recipientIDs)
	res := Result{Created: make([]domain.Notification, 0, len(recipients))}
	var firstErr error

	for _, recipientID := range recipients {
		if d.alreadyDispatched(ctx, recipientID, ev) {
			res.Skipped = append(res.Skipped, recipientID)
			continue
		}

		n, err := d.deliver(ctx, recipientID, ev, title, message)
		if err != nil {
			d.releaseClaim(ctx, recipientID, ev)
			res.Failed = append(res.Failed, recipientID)
			if firstErr == nil {
				firstErr = err
			}
			logger.Error("notification persistence failed",
				logger.Recipient(recipientID),
				logger.Type(string(ev.Type)),
				zap.Error(err),
			)
			continue
		}
		res.Created = append(res.Created, n)
	}

	if firstErr != nil {
		return res, fmt.Errorf("dispatch %s: %d/%d recipients failed: %w",
			ev.Type, len(res.Failed), len(recipients), firstErr)
	}
	return res, nil
}

// deliver persists one notification, then hands it to the allowed channels.
func (d *Dispatcher) deliver(ctx context.Context, recipientID string, ev Event, title, message string) (domain.Notification, error) {
	n, err := d.store.Create(ctx, domain.Notification{
		ID:          d.newID(),
		RecipientID: recipientID,
		Type:        ev.Type,
		Title:       title,
		Message:     message,
		Data:        maps.Clone(ev.Data),
		CreatedAt:   d.now().UTC(),
	})
	if err != nil {
		metrics.PersistenceFailures.Inc()
		if _, ok := apperrors.IsAppError(err); !ok {
			err = apperrors.Persistence(err)
		}
		return domain.Notification{}, err
	}
	metrics.NotificationsCreated.WithLabelValues(string(ev.Type)).Inc()

	prefs, err := d.store.GetPreferences(ctx, recipientID)
	if err != nil {
		logger.Warn("preference lookup failed, using defaults",
			logger.Recipient(recipientID),
			zap.Error(err),
		)
		prefs = domain.DefaultPreferences(recipientID)
	}

	if prefs.Allows(domain.ChannelInApp, domain.CategoryNone) && d.pusher != nil {
		if err := d.pusher.Push(ctx, n); err != nil {
			metrics.RecordDelivery(string(domain.ChannelInApp), metrics.OutcomeFailed)
			logger.Warn("realtime push failed",
				logger.NotificationID(n.ID),
				logger.Recipient(recipientID),
				zap.Error(apperrors.Delivery(string(domain.ChannelInApp), err)),
			)
		}
	}

	category := ev.Type.Category()
	for _, ch := range []domain.Channel{domain.ChannelEmail, domain.ChannelPush} {
		if !prefs.Allows(ch, category) {
			continue
		}
		if d.queue == nil {
			metrics.RecordDelivery(string(ch), metrics.OutcomeSkipped)
			continue
		}
		if err := d.queue.Enqueue(ctx, delivery.JobFor(n, ch)); err != nil {
			metrics.RecordDelivery(string(ch), metrics.OutcomeFailed)
			logger.Warn("delivery handoff failed",
				logger.NotificationID(n.ID),
				logger.Recipient(recipientID),
				logger.Channel(string(ch)),
				zap.Error(err),
			)
			continue
		}
		metrics.RecordDelivery(string(ch), metrics.OutcomeEnqueued)
	}

	return n, nil
}

// alreadyDispatched claims the idempotency key for recipientID. Dedup
// store errors fail open.
func (d *Dispatcher) alreadyDispatched(ctx context.Context, recipientID string, ev Event) bool {
	if ev.IdempotencyKey == "" || d.deduper == nil {
		return false
	}
	claimed, err := d.deduper.Claim(ctx, dedupKey(ev.Type, recipientID, ev.IdempotencyKey), d.dedupWindow)
	if err != nil {
		logger.Warn("idempotency check failed, dispatching anyway",
			logger.Recipient(recipientID),
			logger.Type(string(ev.Type)),
			zap.Error(err),
		)
		return false
	}
	if !claimed {
		logger.Debug("duplicate dispatch suppressed",
			logger.Recipient(recipientID),
			logger.Type(string(ev.Type)),
			zap.String("idempotency_key", ev.IdempotencyKey),
		)
	}
	return !claimed
}

// uniqueRecipients drops blanks and duplicates, keeping first-seen order.
func uniqueRecipients(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// releaseClaim frees the idempotency key of a recipient whose record was
// not written, so a retry with the same key reaches them.
func (d *Dispatcher) releaseClaim(ctx context.Context, recipientID string, ev Event) {
	if ev.IdempotencyKey == "" || d.deduper == nil {
		return
	}
	if err := d.deduper.Release(ctx, dedupKey(ev.Type, recipientID, ev.IdempotencyKey)); err != nil {
		logger.Warn("idempotency release failed",
			logger.Recipient(recipientID),
			logger.Type(string(ev.Type)),
			zap.String("idempotency_key", ev.IdempotencyKey),
			zap.Error(err),
		)
	}
}
