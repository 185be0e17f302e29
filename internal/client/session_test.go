package client

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"learnhub.io/notifier/internal/domain"
	"learnhub.io/notifier/internal/realtime"
)

const eventually = 2 * time.Second

func connectedSession(t *testing.T, api *fakeAPI, cfg SessionConfig, opts ...SessionOption) (*Session, *fakeConn) {
	t.Helper()
	conn := newFakeConn()
	ch := NewChannel(ChannelConfig{URL: "ws://notifier/ws", ReconnectDelay: time.Millisecond},
		okTickets, WithDialer(&fakeDialer{conns: []*fakeConn{conn}}))
	s := NewSession(api, ch, cfg, opts...)
	require.NoError(t, s.Start(context.Background()))
	t.Cleanup(s.Close)
	require.Eventually(t, func() bool { return s.ChannelState() == Connected }, eventually, 5*time.Millisecond)
	return s, conn
}

func TestSession_InitialFetchThenLivePushes(t *testing.T) {
	api := &fakeAPI{}
	api.setList(note("n1", false), note("n2", true))
	var surfaced []string
	var mu sync.Mutex
	s, conn := connectedSession(t, api, SessionConfig{PollInterval: time.Hour},
		WithSurfacer(SurfacerFunc(func(n domain.Notification) error {
			mu.Lock()
			surfaced = append(surfaced, n.ID)
			mu.Unlock()
			return nil
		})))

	list, unread := s.Snapshot()
	require.Len(t, list, 2)
	assert.Equal(t, 1, unread)

	conn.push(note("n3", false))
	conn.push(note("n3", false))
	conn.push(note("n2", false)) // already cached as read
	conn.push(note("n4", false))

	require.Eventually(t, func() bool {
		list, _ := s.Snapshot()
		return len(list) == 4
	}, eventually, 5*time.Millisecond)

	list, unread = s.Snapshot()
	assert.Equal(t, "n4", list[0].ID)
	assert.Equal(t, "n3", list[1].ID)
	assert.Equal(t, 3, unread)
	assert.Equal(t, countUnread(list), unread)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"n3", "n4"}, surfaced)
}

func TestSession_MarkReadIsOptimisticAndNotRolledBack(t *testing.T) {
	api := &fakeAPI{markReadErr: errors.New("503 from store")}
	api.setList(note("n1", false), note("n2", false))
	s, conn := connectedSession(t, api, SessionConfig{PollInterval: time.Hour})

	s.MarkRead("n1")

	_, unread := s.Snapshot()
	assert.Equal(t, 1, unread, "local state changes before the store answers")
	require.Eventually(t, func() bool { return len(api.markedRead()) == 1 }, eventually, 5*time.Millisecond)

	list, unread := s.Snapshot()
	assert.True(t, list[0].Read, "a failed store call leaves the entry read")
	assert.Equal(t, 1, unread)
	assert.Contains(t, conn.sent(), realtime.Envelope{Event: realtime.EventRead, ID: "n1"})

	// The next reconciliation brings back server truth.
	require.NoError(t, s.Refresh(context.Background()))
	_, unread = s.Snapshot()
	assert.Equal(t, 2, unread)
}

func TestSession_MarkReadUnknownIDDoesNothing(t *testing.T) {
	api := &fakeAPI{}
	api.setList(note("n1", false))
	s, _ := connectedSession(t, api, SessionConfig{PollInterval: time.Hour})

	s.MarkRead("missing")

	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, api.markedRead())
	assert.Equal(t, 1, s.cache.UnreadCount())
}

func TestSession_MarkAllRead(t *testing.T) {
	api := &fakeAPI{}
	api.setList(note("n1", false), note("n2", false), note("n3", true))
	s, conn := connectedSession(t, api, SessionConfig{PollInterval: time.Hour})

	s.MarkAllRead()

	list, unread := s.Snapshot()
	assert.Zero(t, unread)
	assert.Zero(t, countUnread(list))
	require.Eventually(t, func() bool { return api.markAllCount() == 1 }, eventually, 5*time.Millisecond)
	assert.Contains(t, conn.sent(), realtime.Envelope{Event: realtime.EventReadAll})
}

func TestSession_PollingReplacesCache(t *testing.T) {
	api := &fakeAPI{}
	api.setList(note("n1", false))
	s := NewSession(api, nil, SessionConfig{PollInterval: 10 * time.Millisecond})
	require.NoError(t, s.Start(context.Background()))
	defer s.Close()

	api.setList(note("n2", false), note("n1", true))

	require.Eventually(t, func() bool {
		list, unread := s.Snapshot()
		return len(list) == 2 && unread == 1 && list[1].Read
	}, eventually, 5*time.Millisecond)
}

func TestSession_PollingSurvivesPermanentDisconnect(t *testing.T) {
	api := &fakeAPI{}
	dialer := &fakeDialer{}
	ch := NewChannel(ChannelConfig{URL: "ws://notifier/ws", MaxAttempts: 5, ReconnectDelay: time.Millisecond},
		okTickets, WithDialer(dialer))
	s := NewSession(api, ch, SessionConfig{PollInterval: 10 * time.Millisecond})
	require.NoError(t, s.Start(context.Background()))
	defer s.Close()

	require.Eventually(t, func() bool { return s.ChannelState() == PermanentlyDisconnected }, eventually, 5*time.Millisecond)
	assert.EqualValues(t, 5, dialer.dials.Load())

	api.setList(note("late", false))
	require.Eventually(t, func() bool {
		list, unread := s.Snapshot()
		return len(list) == 1 && list[0].ID == "late" && unread == 1
	}, eventually, 5*time.Millisecond)
	assert.EqualValues(t, 5, dialer.dials.Load())
}

func TestSession_InitialFetchFailureRecoversOnPoll(t *testing.T) {
	api := &fakeAPI{listErr: errors.New("timeout")}
	s := NewSession(api, nil, SessionConfig{PollInterval: 10 * time.Millisecond})
	require.NoError(t, s.Start(context.Background()))
	defer s.Close()

	_, unread := s.Snapshot()
	assert.Zero(t, unread)

	api.mu.Lock()
	api.listErr = nil
	api.list = []domain.Notification{note("n1", false)}
	api.mu.Unlock()

	require.Eventually(t, func() bool { return s.cache.UnreadCount() == 1 }, eventually, 5*time.Millisecond)
}

func TestSession_CloseStopsTimerChannelAndCallbacks(t *testing.T) {
	api := &fakeAPI{markReadBlock: make(chan struct{})}
	api.setList(note("n1", false))
	changes := 0
	var mu sync.Mutex
	s, conn := connectedSession(t, api, SessionConfig{PollInterval: 5 * time.Millisecond},
		WithChangeHook(func([]domain.Notification, int) {
			mu.Lock()
			changes++
			mu.Unlock()
		}))

	s.MarkRead("n1") // blocks in the store call until cancelled

	done := make(chan struct{})
	go func() {
		s.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(eventually):
		t.Fatal("Close did not return")
	}

	assert.True(t, conn.isClosed())
	assert.Equal(t, Disconnected, s.ChannelState())

	calls := api.calls()
	mu.Lock()
	before := changes
	mu.Unlock()

	s.handlePush(note("after-close", false))
	time.Sleep(30 * time.Millisecond)

	assert.Equal(t, calls, api.calls(), "no polling after Close")
	list, _ := s.Snapshot()
	for _, n := range list {
		assert.NotEqual(t, "after-close", n.ID)
	}
	mu.Lock()
	assert.Equal(t, before, changes)
	mu.Unlock()
}

func TestSession_CloseCancelsPendingReconnect(t *testing.T) {
	api := &fakeAPI{}
	dialer := &fakeDialer{}
	ch := NewChannel(ChannelConfig{URL: "ws://notifier/ws", MaxAttempts: 5, ReconnectDelay: time.Hour},
		okTickets, WithDialer(dialer))
	s := NewSession(api, ch, SessionConfig{PollInterval: time.Hour})
	require.NoError(t, s.Start(context.Background()))

	require.Eventually(t, func() bool { return dialer.dials.Load() == 1 }, eventually, 5*time.Millisecond)

	done := make(chan struct{})
	go func() {
		s.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(eventually):
		t.Fatal("Close did not cancel the reconnect delay")
	}
	assert.EqualValues(t, 1, dialer.dials.Load())
}

func TestSession_StartTwice(t *testing.T) {
	s := NewSession(&fakeAPI{}, nil, SessionConfig{PollInterval: time.Hour})
	require.NoError(t, s.Start(context.Background()))
	defer s.Close()
	assert.Error(t, s.Start(context.Background()))
}
