package realtime

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultTicketTTL bounds how long an issued ticket can be presented.
const DefaultTicketTTL = 60 * time.Second

const ticketAudience = "realtime"

var (
	ErrTicketSigningKeyMissing = errors.New("ticket signing key is not configured")
	ErrTicketIDMissing         = errors.New("ticket id is required")
	ErrTicketSubjectMissing    = errors.New("ticket subject is required")
	ErrTicketReplayed          = errors.New("ticket already used")
)

// ReplayStore tracks consumed ticket ids.
type ReplayStore interface {
	// Consume returns true the first time ticketID is seen.
	Consume(ctx context.Context, ticketID string, expiresAt time.Time) (bool, error)
}

// MemoryReplayStore is a process-local ReplayStore.
type MemoryReplayStore struct {
	mu   sync.Mutex
	used map[string]time.Time
	now  func() time.Time
}

// NewMemoryReplayStore creates an empty replay store.
func NewMemoryReplayStore() *MemoryReplayStore {
	return &MemoryReplayStore{used: make(map[string]time.Time), now: time.Now}
}

// Consume marks ticketID used and prunes expired markers.
func (s *MemoryReplayStore) Consume(_ context.Context, ticketID string, expiresAt time.Time) (bool, error) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	for id, exp := range s.used {
		if exp.Before(now) {
			delete(s.used, id)
		}
	}
	if _, exists := s.used[ticketID]; exists {
		return false, nil
	}
	s.used[ticketID] = expiresAt
	return true, nil
}

// RedisReplayStore shares replay markers between instances.
type RedisReplayStore struct {
	client redis.UniversalClient
}

// NewRedisReplayStore creates a Redis-backed replay store.
func NewRedisReplayStore(client redis.UniversalClient) *RedisReplayStore {
	return &RedisReplayStore{client: client}
}

// Consume sets a marker that expires with the ticket.
func (s *RedisReplayStore) Consume(ctx context.Context, ticketID string, expiresAt time.Time) (bool, error) {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		ttl = time.Second
	}
	ok, err := s.client.SetNX(ctx, "notify:ticket:"+ticketID, 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("set replay marker: %w", err)
	}
	return ok, nil
}

// TicketClaims is the signed payload of a realtime ticket.
type TicketClaims struct {
	jwt.RegisteredClaims
}

// TicketManager issues and validates short-lived single-use websocket
// tickets. A ticket is exchanged for a live connection exactly once.
type TicketManager struct {
	signingKey []byte
	issuer     string
	ttl        time.Duration
	now        func() time.Time
	replay     ReplayStore
}

// NewTicketManager creates a ticket manager. A nil replay store is process-local.
func NewTicketManager(signingKey []byte, issuer string, ttl time.Duration, replay ReplayStore) *TicketManager {
	if ttl <= 0 {
		ttl = DefaultTicketTTL
	}
	if replay == nil {
		replay = NewMemoryReplayStore()
	}
	return &TicketManager{
		signingKey: signingKey,
		issuer:     issuer,
		ttl:        ttl,
		now:        func() time.Time { return time.Now().UTC() },
		replay:     replay,
	}
}

// Issue signs a ticket for userID.
func (m *TicketManager) Issue(userID string) (token string, expiresAt time.Time, err error) {
	if len(m.signingKey) == 0 {
		return "", time.Time{}, ErrTicketSigningKeyMissing
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", time.Time{}, ErrTicketSubjectMissing
	}

	now := m.now()
	id, err := uuid.NewV7()
	if err != nil {
		return "", time.Time{}, fmt.Errorf("generate ticket id: %w", err)
	}
	expiresAt = now.Add(m.ttl)

	claims := TicketClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   userID,
			Audience:  jwt.ClaimStrings{ticketAudience},
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ID:        id.String(),
		},
	}
	token, err = jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.signingKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign ticket: %w", err)
	}
	return token, expiresAt, nil
}

// Consume validates token and burns it. It returns the ticket's user id.
func (m *TicketManager) Consume(ctx context.Context, token string) (string, error) {
	if len(m.signingKey) == 0 {
		return "", ErrTicketSigningKeyMissing
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithAudience(ticketAudience),
		jwt.WithTimeFunc(m.now),
	}
	if m.issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.issuer))
	}

	parsed, err := jwt.ParseWithClaims(token, &TicketClaims{}, func(*jwt.Token) (interface{}, error) {
		return m.signingKey, nil
	}, opts...)
	if err != nil {
		return "", err
	}
	claims, ok := parsed.Claims.(*TicketClaims)
	if !ok || !parsed.Valid {
		return "", jwt.ErrTokenInvalidClaims
	}
	if claims.ID == "" {
		return "", ErrTicketIDMissing
	}
	if claims.Subject == "" {
		return "", ErrTicketSubjectMissing
	}

	fresh, err := m.replay.Consume(ctx, claims.ID, claims.ExpiresAt.Time)
	if err != nil {
		return "", fmt.Errorf("consume ticket id: %w", err)
	}
	if !fresh {
		return "", ErrTicketReplayed
	}
	return claims.Subject, nil
}

var (
	_ ReplayStore = (*MemoryReplayStore)(nil)
	_ ReplayStore = (*RedisReplayStore)(nil)
)
