// Package repository persists notifications and per-user preferences.
//
// Two implementations share one contract: PostgresStore for the service and
// MemoryStore for tests and single-process tooling. Every read and update is
// scoped to a recipient; a notification owned by someone else is reported as
// not found.
package repository

import (
	"context"
	"time"

	"learnhub.io/notifier/internal/domain"
)

// ListOptions narrows a List call.
type ListOptions struct {
	Limit      int
	Offset     int
	UnreadOnly bool
}

// DefaultListLimit applies when ListOptions.Limit is zero or negative.
const DefaultListLimit = 50

func (o ListOptions) limit() int {
	if o.Limit <= 0 {
		return DefaultListLimit
	}
	return o.Limit
}

func (o ListOptions) offset() int {
	if o.Offset < 0 {
		return 0
	}
	return o.Offset
}

// Store is the durable notification inbox.
type Store interface {
	// Create persists n and returns the stored record. Read is forced false.
	// Failures are reported as errors.Persistence.
	Create(ctx context.Context, n domain.Notification) (domain.Notification, error)

	// MarkRead sets read=true and readAt=now when id exists and belongs to
	// recipientID. Already-read notifications are returned unchanged.
	MarkRead(ctx context.Context, id, recipientID string) (domain.Notification, error)

	// MarkAllRead marks every unread notification of recipientID and
	// returns how many changed. Zero is not an error.
	MarkAllRead(ctx context.Context, recipientID string) (int, error)

	// List returns recipientID's notifications, newest first.
	List(ctx context.Context, recipientID string, opts ListOptions) ([]domain.Notification, error)

	// CountUnread returns the unread total for recipientID.
	CountUnread(ctx context.Context, recipientID string) (int, error)

	// GetPreferences returns stored preferences or DefaultPreferences.
	GetPreferences(ctx context.Context, userID string) (domain.Preferences, error)

	// UpsertPreferences stores p and returns the persisted value.
	UpsertPreferences(ctx context.Context, p domain.Preferences) (domain.Preferences, error)

	// DeleteOlderThan removes notifications created before cutoff.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// ContactDirectory resolves addresses for external channels.
type ContactDirectory interface {
	EmailFor(ctx context.Context, userID string) (string, error)
}
