package notification

import (
	"context"
	"time"

	"go.uber.org/zap"

	"learnhub.io/notifier/internal/domain"
	apperrors "learnhub.io/notifier/internal/pkg/errors"
	"learnhub.io/notifier/internal/pkg/logger"
	"learnhub.io/notifier/internal/pkg/worker"
)

// Request is a dispatch as received from another platform service.
// The audience is ClassID's active students, RecipientIDs, or both.
// Empty Title/Message fall back to the catalog wording for Type.
type Request struct {
	Type           domain.NotificationType `json:"type"`
	RecipientIDs   []string                `json:"recipient_ids,omitempty"`
	ClassID        string                  `json:"class_id,omitempty"`
	Title          string                  `json:"title,omitempty"`
	Message        string                  `json:"message,omitempty"`
	Data           map[string]any          `json:"data,omitempty"`
	IdempotencyKey string                  `json:"idempotency_key,omitempty"`
}

// Triggers maps platform actions (assignment posted, grade released,
// message sent, ...) to dispatches.
type Triggers struct {
	dispatcher *Dispatcher
	catalog    *Catalog
	roster     ClassRoster
	pools      *worker.Pools
}

// NewTriggers creates the trigger service. roster may be nil when class
// audiences are not available.
func NewTriggers(dispatcher *Dispatcher, catalog *Catalog, roster ClassRoster) *Triggers {
	return &Triggers{dispatcher: dispatcher, catalog: catalog, roster: roster}
}

// Detach makes the On* hooks return immediately and dispatch on the
// general worker pool. Fire stays synchronous.
func (t *Triggers) Detach(pools *worker.Pools) *Triggers {
	t.pools = pools
	return t
}

// Fire validates req and dispatches it.
func (t *Triggers) Fire(ctx context.Context, req Request) (Result, error) {
	if !req.Type.Valid() {
		return Result{}, apperrors.BadRequest(apperrors.CodeUnknownType, "unknown notification type").
			WithParams(map[string]interface{}{"type": string(req.Type)})
	}

	var audiences []AudienceResolver
	if req.ClassID != "" {
		if t.roster == nil {
			return Result{}, apperrors.BadRequest(apperrors.CodeAudienceFailed, "class audiences are not available")
		}
		audiences = append(audiences, ClassAudience(t.roster, req.ClassID))
	}
	if len(req.RecipientIDs) > 0 {
		audiences = append(audiences, StaticAudience(req.RecipientIDs...))
	}
	if len(audiences) == 0 {
		return Result{}, apperrors.BadRequest(apperrors.CodeInvalidRequestField, "recipient_ids or class_id is required")
	}

	tpl, _ := t.catalog.Lookup(req.Type)
	ev := Event{
		Type:            req.Type,
		Title:           req.Title,
		Message:         req.Message,
		TitleTemplate:   tpl.Title,
		MessageTemplate: tpl.Message,
		Data:            req.Data,
		IdempotencyKey:  req.IdempotencyKey,
	}
	return t.dispatcher.Dispatch(ctx, UnionAudience(audiences...), ev)
}

// OnAssignmentCreated notifies every active student of the class.
func (t *Triggers) OnAssignmentCreated(ctx context.Context, classID, className, assignmentID, assignmentTitle string, dueAt time.Time) {
	t.fire(ctx, Request{
		Type:    domain.TypeAssignmentCreated,
		ClassID: classID,
		Data: map[string]any{
			"class_id":         classID,
			"class_name":       className,
			"assignment_id":    assignmentID,
			"assignment_title": assignmentTitle,
			"due_date":         formatWhen(dueAt),
			"url":              "/assignments/" + assignmentID,
		},
	})
}

// OnAssignmentDueSoon reminds the class. The reminder is sent at most once
// per assignment within the dedup window.
func (t *Triggers) OnAssignmentDueSoon(ctx context.Context, classID, assignmentID, assignmentTitle string, dueAt time.Time) {
	t.fire(ctx, Request{
		Type:           domain.TypeAssignmentDueSoon,
		ClassID:        classID,
		IdempotencyKey: assignmentID + ":due-soon",
		Data: map[string]any{
			"class_id":         classID,
			"assignment_id":    assignmentID,
			"assignment_title": assignmentTitle,
			"due_date":         formatWhen(dueAt),
			"url":              "/assignments/" + assignmentID,
		},
	})
}

// OnAssignmentGraded notifies the student whose work was graded.
func (t *Triggers) OnAssignmentGraded(ctx context.Context, studentID, assignmentID, assignmentTitle, grade string) {
	t.fire(ctx, Request{
		Type:         domain.TypeAssignmentGraded,
		RecipientIDs: []string{studentID},
		Data: map[string]any{
			"assignment_id":    assignmentID,
			"assignment_title": assignmentTitle,
			"grade":            grade,
			"url":              "/assignments/" + assignmentID + "/feedback",
		},
	})
}

// OnClassAnnouncement notifies every active student of the class.
func (t *Triggers) OnClassAnnouncement(ctx context.Context, classID, className, announcementID, headline, body string) {
	t.fire(ctx, Request{
		Type:    domain.TypeClassAnnouncement,
		ClassID: classID,
		Data: map[string]any{
			"class_id":        classID,
			"class_name":      className,
			"announcement_id": announcementID,
			"headline":        headline,
			"body":            body,
			"url":             "/classes/" + classID + "/announcements/" + announcementID,
		},
	})
}

// OnLiveClassStarting notifies the class shortly before a live session.
func (t *Triggers) OnLiveClassStarting(ctx context.Context, classID, className, sessionID, sessionTitle string, startsAt time.Time) {
	t.fire(ctx, Request{
		Type:           domain.TypeLiveClassStarting,
		ClassID:        classID,
		IdempotencyKey: sessionID,
		Data: map[string]any{
			"class_id":      classID,
			"class_name":    className,
			"session_id":    sessionID,
			"session_title": sessionTitle,
			"starts_at":     startsAt.UTC().Format("15:04 MST"),
			"url":           "/live/" + sessionID,
		},
	})
}

// OnNewMessage notifies the message recipient.
func (t *Triggers) OnNewMessage(ctx context.Context, recipientID, senderName, conversationID, preview string) {
	t.fire(ctx, Request{
		Type:         domain.TypeNewMessage,
		RecipientIDs: []string{recipientID},
		Data: map[string]any{
			"sender_name":     senderName,
			"conversation_id": conversationID,
			"preview":         preview,
			"url":             "/messages/" + conversationID,
		},
	})
}

// OnAchievementEarned notifies the learner.
func (t *Triggers) OnAchievementEarned(ctx context.Context, userID, achievementID, achievementName string) {
	t.fire(ctx, Request{
		Type:           domain.TypeAchievementEarned,
		RecipientIDs:   []string{userID},
		IdempotencyKey: achievementID,
		Data: map[string]any{
			"achievement_id":   achievementID,
			"achievement_name": achievementName,
			"url":              "/achievements",
		},
	})
}

// OnSubscriptionExpiring notifies the account holder.
func (t *Triggers) OnSubscriptionExpiring(ctx context.Context, userID, plan string, expiresAt time.Time) {
	expiresOn := expiresAt.UTC().Format("2006-01-02")
	t.fire(ctx, Request{
		Type:           domain.TypeSubscriptionExpiring,
		RecipientIDs:   []string{userID},
		IdempotencyKey: plan + ":" + expiresOn,
		Data: map[string]any{
			"plan":       plan,
			"expires_on": expiresOn,
			"url":        "/account/subscription",
		},
	})
}

// OnSystemAlert notifies the given users.
func (t *Triggers) OnSystemAlert(ctx context.Context, recipientIDs []string, headline, body string) {
	t.fire(ctx, Request{
		Type:         domain.TypeSystemAlert,
		RecipientIDs: recipientIDs,
		Data: map[string]any{
			"headline": headline,
			"body":     body,
		},
	})
}

// fire dispatches req and logs instead of returning errors; the
// originating action has already succeeded.
func (t *Triggers) fire(ctx context.Context, req Request) {
	if t.pools == nil {
		t.fireNow(ctx, req)
		return
	}
	err := t.pools.SubmitDetached(worker.PoolGeneral, func(ctx context.Context) {
		t.fireNow(ctx, req)
	})
	if err != nil {
		logger.Warn("trigger pool unavailable, dispatching inline",
			logger.Type(string(req.Type)),
			zap.Error(err),
		)
		t.fireNow(ctx, req)
	}
}

func (t *Triggers) fireNow(ctx context.Context, req Request) {
	res, err := t.Fire(ctx, req)
	if err != nil {
		logger.Error("notification trigger failed",
			logger.Type(string(req.Type)),
			zap.String("class_id", req.ClassID),
			zap.Int("created", len(res.Created)),
			zap.Int("failed", len(res.Failed)),
			zap.Error(err),
		)
		return
	}
	logger.Debug("notification trigger dispatched",
		logger.Type(string(req.Type)),
		zap.Int("created", len(res.Created)),
		zap.Int("skipped", len(res.Skipped)),
	)
}

func formatWhen(t time.Time) string {
	return t.UTC().Format("Mon Jan 2, 15:04 MST")
}
