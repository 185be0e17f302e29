package repository

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"learnhub.io/notifier/internal/domain"
	apperrors "learnhub.io/notifier/internal/pkg/errors"
)

//go:embed schema.sql
var schemaSQL string

const notificationColumns = `id, recipient_id, type, title, message, data, read, read_at, created_at`

const preferenceColumns = `user_id,
	email_assignments, email_grades, email_announcements, email_messages,
	push_assignments, push_grades, push_announcements, push_messages, push_live_classes,
	in_app_all, updated_at`

// PostgresStore implements Store over the shared pgx pool.
type PostgresStore struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewPostgresStore creates a store backed by pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, now: time.Now}
}

// Migrate creates the notification tables if they do not exist.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply notification schema: %w", err)
	}
	return nil
}

// Create inserts one notification.
func (s *PostgresStore) Create(ctx context.Context, n domain.Notification) (domain.Notification, error) {
	data, err := encodeData(n.Data)
	if err != nil {
		return domain.Notification{}, apperrors.Persistence(err)
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = s.now()
	}

	row := s.pool.QueryRow(ctx, `
		INSERT INTO notifications (id, recipient_id, type, title, message, data, read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6::jsonb, FALSE, $7)
		RETURNING `+notificationColumns,
		n.ID, n.RecipientID, string(n.Type), n.Title, n.Message, data, n.CreatedAt.UTC(),
	)
	created, err := scanNotification(row)
	if err != nil {
		return domain.Notification{}, apperrors.Persistence(fmt.Errorf("insert notification for %s: %w", n.RecipientID, err))
	}
	return created, nil
}

// MarkRead flips read for one owned notification. read_at keeps its first value.
func (s *PostgresStore) MarkRead(ctx context.Context, id, recipientID string) (domain.Notification, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE notifications
		SET read = TRUE, read_at = COALESCE(read_at, $3)
		WHERE id = $1 AND recipient_id = $2
		RETURNING `+notificationColumns,
		id, recipientID, s.now().UTC(),
	)
	n, err := scanNotification(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Notification{}, apperrors.NotificationNotFound()
	}
	if err != nil {
		return domain.Notification{}, apperrors.Persistence(fmt.Errorf("mark notification %s read: %w", id, err))
	}
	return n, nil
}

// MarkAllRead marks every unread notification for recipientID.
func (s *PostgresStore) MarkAllRead(ctx context.Context, recipientID string) (int, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE notifications
		SET read = TRUE, read_at = $2
		WHERE recipient_id = $1 AND read = FALSE`,
		recipientID, s.now().UTC(),
	)
	if err != nil {
		return 0, apperrors.Persistence(fmt.Errorf("mark all read for %s: %w", recipientID, err))
	}
	return int(tag.RowsAffected()), nil
}

// List returns a page of recipientID's notifications, newest first.
func (s *PostgresStore) List(ctx context.Context, recipientID string, opts ListOptions) ([]domain.Notification, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+notificationColumns+`
		FROM notifications
		WHERE recipient_id = $1 AND ($2::boolean = FALSE OR read = FALSE)
		ORDER BY created_at DESC, id DESC
		LIMIT $3 OFFSET $4`,
		recipientID, opts.UnreadOnly, opts.limit(), opts.offset(),
	)
	if err != nil {
		return nil, apperrors.Persistence(fmt.Errorf("list notifications for %s: %w", recipientID, err))
	}
	defer rows.Close()

	out := make([]domain.Notification, 0)
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, apperrors.Persistence(fmt.Errorf("scan notification: %w", err))
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Persistence(err)
	}
	return out, nil
}

// CountUnread counts unread notifications for recipientID.
func (s *PostgresStore) CountUnread(ctx context.Context, recipientID string) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM notifications WHERE recipient_id = $1 AND read = FALSE`,
		recipientID,
	).Scan(&count)
	if err != nil {
		return 0, apperrors.Persistence(fmt.Errorf("count unread for %s: %w", recipientID, err))
	}
	return count, nil
}

// GetPreferences returns stored preferences or defaults when no row exists.
func (s *PostgresStore) GetPreferences(ctx context.Context, userID string) (domain.Preferences, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+preferenceColumns+` FROM notification_preferences WHERE user_id = $1`,
		userID,
	)
	p, err := scanPreferences(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.DefaultPreferences(userID), nil
	}
	if err != nil {
		return domain.Preferences{}, apperrors.Persistence(fmt.Errorf("load preferences for %s: %w", userID, err))
	}
	return p, nil
}

// UpsertPreferences writes the full preference row.
func (s *PostgresStore) UpsertPreferences(ctx context.Context, p domain.Preferences) (domain.Preferences, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO notification_preferences (`+preferenceColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (user_id) DO UPDATE SET
			email_assignments   = EXCLUDED.email_assignments,
			email_grades        = EXCLUDED.email_grades,
			email_announcements = EXCLUDED.email_announcements,
			email_messages      = EXCLUDED.email_messages,
			push_assignments    = EXCLUDED.push_assignments,
			push_grades         = EXCLUDED.push_grades,
			push_announcements  = EXCLUDED.push_announcements,
			push_messages       = EXCLUDED.push_messages,
			push_live_classes   = EXCLUDED.push_live_classes,
			in_app_all          = EXCLUDED.in_app_all,
			updated_at          = EXCLUDED.updated_at
		RETURNING `+preferenceColumns,
		p.UserID,
		p.EmailAssignments, p.EmailGrades, p.EmailAnnouncements, p.EmailMessages,
		p.PushAssignments, p.PushGrades, p.PushAnnouncements, p.PushMessages, p.PushLiveClasses,
		p.InAppAll, s.now().UTC(),
	)
	stored, err := scanPreferences(row)
	if err != nil {
		return domain.Preferences{}, apperrors.Persistence(fmt.Errorf("upsert preferences for %s: %w", p.UserID, err))
	}
	return stored, nil
}

// DeleteOlderThan removes notifications created before cutoff.
func (s *PostgresStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM notifications WHERE created_at < $1`, cutoff.UTC())
	if err != nil {
		return 0, apperrors.Persistence(fmt.Errorf("delete notifications before %s: %w", cutoff.Format(time.RFC3339), err))
	}
	return tag.RowsAffected(), nil
}

// EmailFor looks up a user's address in the platform users table.
func (s *PostgresStore) EmailFor(ctx context.Context, userID string) (string, error) {
	var email string
	err := s.pool.QueryRow(ctx, `SELECT email FROM users WHERE id = $1`, userID).Scan(&email)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", apperrors.NotFound("USER_NOT_FOUND", "user not found")
	}
	if err != nil {
		return "", fmt.Errorf("lookup email for %s: %w", userID, err)
	}
	return email, nil
}

func scanNotification(row pgx.Row) (domain.Notification, error) {
	var (
		n    domain.Notification
		typ  string
		data []byte
	)
	if err := row.Scan(&n.ID, &n.RecipientID, &typ, &n.Title, &n.Message, &data, &n.Read, &n.ReadAt, &n.CreatedAt); err != nil {
		return domain.Notification{}, err
	}
	n.Type = domain.NotificationType(typ)
	if len(data) > 0 {
		if err := json.Unmarshal(data, &n.Data); err != nil {
			return domain.Notification{}, fmt.Errorf("decode data for %s: %w", n.ID, err)
		}
	}
	if len(n.Data) == 0 {
		n.Data = nil
	}
	return n, nil
}

func scanPreferences(row pgx.Row) (domain.Preferences, error) {
	var p domain.Preferences
	err := row.Scan(&p.UserID,
		&p.EmailAssignments, &p.EmailGrades, &p.EmailAnnouncements, &p.EmailMessages,
		&p.PushAssignments, &p.PushGrades, &p.PushAnnouncements, &p.PushMessages, &p.PushLiveClasses,
		&p.InAppAll, &p.UpdatedAt,
	)
	return p, err
}

func encodeData(data map[string]any) ([]byte, error) {
	if len(data) == 0 {
		return []byte("{}"), nil
	}
	b, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode notification data: %w", err)
	}
	return b, nil
}

var (
	_ Store            = (*PostgresStore)(nil)
	_ ContactDirectory = (*PostgresStore)(nil)
)
