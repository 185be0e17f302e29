package realtime

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"learnhub.io/notifier/internal/config"
	"learnhub.io/notifier/internal/domain"
	"learnhub.io/notifier/internal/pkg/logger"
)

func init() {
	_ = logger.Init("error", "json")
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	hub     *Hub
	tickets *TicketManager
	server  *httptest.Server
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	hub := NewHub(nil, config.RealtimeConfig{})
	stop, err := hub.Start(context.Background())
	require.NoError(t, err)

	tickets := NewTicketManager(testSigningKey, "learnhub-test", time.Minute, nil)
	engine := gin.New()
	engine.GET("/ws", NewHandler(hub, tickets, func(*http.Request) bool { return true }).Serve)
	server := httptest.NewServer(engine)

	t.Cleanup(func() {
		hub.Shutdown()
		stop()
		server.Close()
	})
	return &testServer{hub: hub, tickets: tickets, server: server}
}

func (s *testServer) dial(t *testing.T, userID string) *websocket.Conn {
	t.Helper()

	token, _, err := s.tickets.Issue(userID)
	require.NoError(t, err)

	before := s.hub.ConnectionCount(userID)
	url := "ws" + strings.TrimPrefix(s.server.URL, "http") + "/ws"
	ws, _, err := websocket.DefaultDialer.Dial(url, http.Header{"Authorization": []string{"Bearer " + token}})
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })

	require.Eventually(t, func() bool { return s.hub.ConnectionCount(userID) == before+1 }, 2*time.Second, 10*time.Millisecond)
	return ws
}

func readEnvelope(t *testing.T, ws *websocket.Conn) Envelope {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	var env Envelope
	require.NoError(t, ws.ReadJSON(&env))
	return env
}

func notificationFor(recipientID, id string, createdAt time.Time) domain.Notification {
	return domain.Notification{
		ID:          id,
		RecipientID: recipientID,
		Type:        domain.TypeNewMessage,
		Title:       "New message from Ms. Rivera",
		Message:     "See you at pickup",
		CreatedAt:   createdAt,
	}
}

func TestHub_PushReachesOnlyRecipient(t *testing.T) {
	s := newTestServer(t)
	alice := s.dial(t, "alice")
	bob := s.dial(t, "bob")

	require.NoError(t, s.hub.Push(context.Background(), notificationFor("alice", "n-1", time.Now())))

	env := readEnvelope(t, alice)
	assert.Equal(t, EventNew, env.Event)
	require.NotNil(t, env.Notification)
	assert.Equal(t, "n-1", env.Notification.ID)
	assert.False(t, env.Notification.Read)

	require.NoError(t, bob.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	_, _, err := bob.ReadMessage()
	assert.Error(t, err, "bob must not receive alice's notification")
}

func TestHub_PushToEveryConnectionOfUser(t *testing.T) {
	s := newTestServer(t)
	tab1 := s.dial(t, "alice")
	tab2 := s.dial(t, "alice")

	require.NoError(t, s.hub.Push(context.Background(), notificationFor("alice", "n-1", time.Now())))

	assert.Equal(t, "n-1", readEnvelope(t, tab1).Notification.ID)
	assert.Equal(t, "n-1", readEnvelope(t, tab2).Notification.ID)
}

func TestHub_PushWithoutConnectionIsNotAnError(t *testing.T) {
	s := newTestServer(t)
	assert.NoError(t, s.hub.Push(context.Background(), notificationFor("nobody", "n-1", time.Now())))
}

func TestHub_AcknowledgedIDsAreNotPushedAgain(t *testing.T) {
	s := newTestServer(t)
	ws := s.dial(t, "alice")
	n1 := notificationFor("alice", "n-1", time.Now())

	require.NoError(t, ws.WriteJSON(Envelope{Event: EventRead, ID: "n-1"}))
	require.Eventually(t, func() bool { return s.hub.acknowledged(n1) }, 2*time.Second, 10*time.Millisecond)

	// A reconnecting client must not be handed n-1 again.
	require.NoError(t, ws.Close())
	require.Eventually(t, func() bool { return s.hub.ConnectionCount("alice") == 0 }, 2*time.Second, 10*time.Millisecond)
	ws = s.dial(t, "alice")

	require.NoError(t, s.hub.Push(context.Background(), n1))
	require.NoError(t, s.hub.Push(context.Background(), notificationFor("alice", "n-2", time.Now())))

	assert.Equal(t, "n-2", readEnvelope(t, ws).Notification.ID)
}

func TestHub_ReadAllSuppressesOlderNotifications(t *testing.T) {
	s := newTestServer(t)
	ws := s.dial(t, "alice")
	before := time.Now().Add(-time.Minute)

	require.NoError(t, ws.WriteJSON(Envelope{Event: EventReadAll}))
	require.Eventually(t, func() bool {
		return s.hub.acknowledged(notificationFor("alice", "old", before))
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, s.hub.Push(context.Background(), notificationFor("alice", "old", before)))
	require.NoError(t, s.hub.Push(context.Background(), notificationFor("alice", "fresh", time.Now().Add(time.Minute))))

	assert.Equal(t, "fresh", readEnvelope(t, ws).Notification.ID)
}

func TestHub_AckMemoryIsBounded(t *testing.T) {
	hub := NewHub(nil, config.RealtimeConfig{AckMemory: 2})
	now := time.Now()

	hub.Acknowledge("alice", "n-1")
	hub.Acknowledge("alice", "n-2")
	hub.Acknowledge("alice", "n-3")

	assert.False(t, hub.acknowledged(notificationFor("alice", "n-1", now)))
	assert.True(t, hub.acknowledged(notificationFor("alice", "n-2", now)))
	assert.True(t, hub.acknowledged(notificationFor("alice", "n-3", now)))
	assert.False(t, hub.acknowledged(notificationFor("bob", "n-3", now)))
}

func TestHub_IdleAckStateIsSwept(t *testing.T) {
	hub := NewHub(nil, config.RealtimeConfig{AckIdleTTL: time.Minute})
	clock := time.Now()
	hub.now = func() time.Time { return clock }

	// alice stays connected; REST acks for offline users must not pile up.
	alice := &Conn{userID: "alice"}
	hub.register(alice)
	hub.Acknowledge("alice", "n-1")
	for i := 0; i < 1000; i++ {
		hub.Acknowledge(fmt.Sprintf("user-%d", i), "n-1")
	}

	clock = clock.Add(2 * time.Minute)
	assert.False(t, hub.acknowledged(notificationFor("user-1", "n-1", clock)))
	hub.AcknowledgeAll("zed")

	hub.mu.RLock()
	tracked := len(hub.acks)
	hub.mu.RUnlock()
	assert.Equal(t, 2, tracked, "only alice and zed should be tracked")
	assert.True(t, hub.acknowledged(notificationFor("alice", "n-1", clock)))
}

func TestHub_AckStateExpiresAfterLastDisconnect(t *testing.T) {
	hub := NewHub(nil, config.RealtimeConfig{AckIdleTTL: time.Minute})
	clock := time.Now()
	hub.now = func() time.Time { return clock }

	tab := &Conn{userID: "alice"}
	hub.register(tab)
	hub.Acknowledge("alice", "n-1")
	hub.unregister(tab)

	// A quick reconnect keeps the acknowledgement.
	clock = clock.Add(30 * time.Second)
	assert.True(t, hub.acknowledged(notificationFor("alice", "n-1", clock)))

	clock = clock.Add(time.Minute)
	assert.False(t, hub.acknowledged(notificationFor("alice", "n-1", clock)))

	other := &Conn{userID: "bob"}
	hub.register(other)
	hub.unregister(other)

	hub.mu.RLock()
	_, kept := hub.acks["alice"]
	hub.mu.RUnlock()
	assert.False(t, kept)
}

func TestHandler_RejectsMissingAndReplayedTickets(t *testing.T) {
	s := newTestServer(t)
	url := "ws" + strings.TrimPrefix(s.server.URL, "http") + "/ws"

	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	token, _, err := s.tickets.Issue("alice")
	require.NoError(t, err)
	ws, _, err := websocket.DefaultDialer.Dial(url+"?token="+token, nil)
	require.NoError(t, err)
	defer ws.Close()

	_, resp, err = websocket.DefaultDialer.Dial(url+"?token="+token, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHub_ShutdownClosesConnections(t *testing.T) {
	s := newTestServer(t)
	ws := s.dial(t, "alice")

	s.hub.Shutdown()

	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := ws.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure))
	require.Eventually(t, func() bool { return s.hub.ConnectionCount("") == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestRedisBroker_Channel(t *testing.T) {
	assert.Equal(t, "notify:user:alice", NewRedisBroker(nil, "").Channel("alice"))
	assert.Equal(t, "lh:alice", NewRedisBroker(nil, "lh:").Channel("alice"))
}
