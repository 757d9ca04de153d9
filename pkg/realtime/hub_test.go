package realtime

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu      sync.Mutex
	changes []PresenceChange
}

func (p *recordingPublisher) Publish(_ string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.changes = append(p.changes, payload.(PresenceChange))
	return nil
}

func (p *recordingPublisher) snapshot() []PresenceChange {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]PresenceChange(nil), p.changes...)
}

func newTestServer(t *testing.T, hub *Hub) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := hub.ServeWS(w, r, r.URL.Query().Get("user")); err != nil {
			t.Logf("upgrade failed: %v", err)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server, user string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?user=" + user
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readUntil returns the first frame with the given event whose data satisfies match
func readUntil(t *testing.T, conn *websocket.Conn, event string, match func(json.RawMessage) bool) json.RawMessage {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		_, raw, err := conn.ReadMessage()
		require.NoError(t, err)

		var frame struct {
			Event string          `json:"event"`
			Data  json.RawMessage `json:"data"`
		}
		require.NoError(t, json.Unmarshal(raw, &frame))
		if frame.Event == event && (match == nil || match(frame.Data)) {
			return frame.Data
		}
	}
}

func onlineIs(want ...string) func(json.RawMessage) bool {
	return func(data json.RawMessage) bool {
		var ids []string
		if err := json.Unmarshal(data, &ids); err != nil {
			return false
		}
		return strings.Join(ids, ",") == strings.Join(want, ",")
	}
}

func TestHubPresenceAndPush(t *testing.T) {
	pub := &recordingPublisher{}
	hub := NewHub(NewMemoryPresence(), nil).WithPublisher(pub)
	srv := newTestServer(t, hub)

	alice := dial(t, srv, "alice")
	readUntil(t, alice, EventOnlineUsers, onlineIs("alice"))

	bob := dial(t, srv, "bob")
	readUntil(t, bob, EventOnlineUsers, onlineIs("alice", "bob"))
	readUntil(t, alice, EventOnlineUsers, onlineIs("alice", "bob"))

	n := hub.SendToUser("bob", EventNewMessage, map[string]string{"text": "hi"})
	assert.Equal(t, 1, n)
	data := readUntil(t, bob, EventNewMessage, nil)
	assert.JSONEq(t, `{"text":"hi"}`, string(data))

	assert.Zero(t, hub.SendToUser("carol", EventNewMessage, "x"))

	bob.Close()
	readUntil(t, alice, EventOnlineUsers, onlineIs("alice"))

	ids, err := hub.OnlineUsers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, ids)

	changes := pub.snapshot()
	require.Len(t, changes, 3)
	assert.Equal(t, "bob", changes[2].UserID)
	assert.False(t, changes[2].Online)
}

func TestHubDisconnect(t *testing.T) {
	hub := NewHub(nil, nil)
	srv := newTestServer(t, hub)

	a1 := dial(t, srv, "alice")
	readUntil(t, a1, EventOnlineUsers, onlineIs("alice"))
	a2 := dial(t, srv, "alice")
	readUntil(t, a2, EventOnlineUsers, onlineIs("alice"))

	assert.Equal(t, 2, hub.SendToUser("alice", EventNewMessage, "x"))

	hub.Disconnect("alice")

	ids, err := hub.OnlineUsers(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ids)
	assert.Zero(t, hub.SendToUser("alice", EventNewMessage, "x"))
}

func TestOriginChecker(t *testing.T) {
	check := originChecker([]string{"http://localhost:5173"})

	r := httptest.NewRequest(http.MethodGet, "/ws", nil)
	assert.True(t, check(r))

	r.Header.Set("Origin", "http://localhost:5173")
	assert.True(t, check(r))

	r.Header.Set("Origin", "http://evil.example")
	assert.False(t, check(r))

	same := originChecker(nil)
	r = httptest.NewRequest(http.MethodGet, "http://chat.example/ws", nil)
	r.Header.Set("Origin", "http://chat.example")
	assert.True(t, same(r))
}
