package repository

import (
	"context"
	"maps"
	"sort"
	"sync"
	"time"

	"learnhub.io/notifier/internal/domain"
	apperrors "learnhub.io/notifier/internal/pkg/errors"
)

// MemoryStore is an in-process Store. It backs tests and local tooling.
type MemoryStore struct {
	mu     sync.RWMutex
	rows   map[string]*memoryRow
	seq    int64
	prefs  map[string]domain.Preferences
	emails map[string]string
	now    func() time.Time

	// createHook, when set, runs before each insert; a non-nil error
	// aborts the insert and is reported as a persistence failure.
	createHook func(n domain.Notification) error
}

type memoryRow struct {
	n   domain.Notification
	seq int64
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rows:   make(map[string]*memoryRow),
		prefs:  make(map[string]domain.Preferences),
		emails: make(map[string]string),
		now:    time.Now,
	}
}

// SetClock replaces the time source.
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// SetCreateHook installs a hook that can fail individual inserts.
func (s *MemoryStore) SetCreateHook(hook func(n domain.Notification) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.createHook = hook
}

// SetEmail registers a contact address for EmailFor.
func (s *MemoryStore) SetEmail(userID, email string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.emails[userID] = email
}

// Create stores a copy of n.
func (s *MemoryStore) Create(_ context.Context, n domain.Notification) (domain.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.createHook != nil {
		if err := s.createHook(n); err != nil {
			return domain.Notification{}, apperrors.Persistence(err)
		}
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = s.now()
	}
	n.Read = false
	n.ReadAt = nil
	n.Data = maps.Clone(n.Data)

	s.seq++
	s.rows[n.ID] = &memoryRow{n: n, seq: s.seq}
	return cloneNotification(n), nil
}

// MarkRead marks one owned notification read.
func (s *MemoryStore) MarkRead(_ context.Context, id, recipientID string) (domain.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.rows[id]
	if !ok || row.n.RecipientID != recipientID {
		return domain.Notification{}, apperrors.NotificationNotFound()
	}
	if !row.n.Read {
		at := s.now()
		row.n.Read = true
		row.n.ReadAt = &at
	}
	return cloneNotification(row.n), nil
}

// MarkAllRead marks every unread notification of recipientID.
func (s *MemoryStore) MarkAllRead(_ context.Context, recipientID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	at := s.now()
	count := 0
	for _, row := range s.rows {
		if row.n.RecipientID == recipientID && !row.n.Read {
			row.n.Read = true
			readAt := at
			row.n.ReadAt = &readAt
			count++
		}
	}
	return count, nil
}

// List returns recipientID's notifications, newest first.
func (s *MemoryStore) List(_ context.Context, recipientID string, opts ListOptions) ([]domain.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]*memoryRow, 0)
	for _, row := range s.rows {
		if row.n.RecipientID != recipientID {
			continue
		}
		if opts.UnreadOnly && row.n.Read {
			continue
		}
		matched = append(matched, row)
	}
	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if !a.n.CreatedAt.Equal(b.n.CreatedAt) {
			return a.n.CreatedAt.After(b.n.CreatedAt)
		}
		return a.seq > b.seq
	})

	start := opts.offset()
	if start > len(matched) {
		start = len(matched)
	}
	end := start + opts.limit()
	if end > len(matched) {
		end = len(matched)
	}

	out := make([]domain.Notification, 0, end-start)
	for _, row := range matched[start:end] {
		out = append(out, cloneNotification(row.n))
	}
	return out, nil
}

// CountUnread counts unread notifications for recipientID.
func (s *MemoryStore) CountUnread(_ context.Context, recipientID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, row := range s.rows {
		if row.n.RecipientID == recipientID && !row.n.Read {
			count++
		}
	}
	return count, nil
}

// GetPreferences returns stored preferences or defaults.
func (s *MemoryStore) GetPreferences(_ context.Context, userID string) (domain.Preferences, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if p, ok := s.prefs[userID]; ok {
		return p, nil
	}
	return domain.DefaultPreferences(userID), nil
}

// UpsertPreferences stores p.
func (s *MemoryStore) UpsertPreferences(_ context.Context, p domain.Preferences) (domain.Preferences, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p.UpdatedAt = s.now()
	s.prefs[p.UserID] = p
	return p, nil
}

// DeleteOlderThan removes notifications created before cutoff.
func (s *MemoryStore) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for id, row := range s.rows {
		if row.n.CreatedAt.Before(cutoff) {
			delete(s.rows, id)
			deleted++
		}
	}
	return deleted, nil
}

// EmailFor returns the address registered with SetEmail.
func (s *MemoryStore) EmailFor(_ context.Context, userID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	email, ok := s.emails[userID]
	if !ok {
		return "", apperrors.NotFound("USER_NOT_FOUND", "user not found")
	}
	return email, nil
}

func cloneNotification(n domain.Notification) domain.Notification {
	n.Data = maps.Clone(n.Data)
	if n.ReadAt != nil {
		at := *n.ReadAt
		n.ReadAt = &at
	}
	return n
}

var (
	_ Store            = (*MemoryStore)(nil)
	_ ContactDirectory = (*MemoryStore)(nil)
)
