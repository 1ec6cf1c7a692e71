package client

import (
	"context"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"realtime-chat/internal/domain"
	wsHandler "realtime-chat/internal/handler/websocket"
	"realtime-chat/internal/hub"
	"realtime-chat/internal/middleware"
	"realtime-chat/internal/notify"
)

const secret = "client-test-secret"

func startServer(t *testing.T) (*httptest.Server, *hub.Hub) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	h := hub.NewHub(nil, hub.Options{})
	go h.Run()
	t.Cleanup(func() {
		h.Stop()
		<-h.Done()
	})
	r := gin.New()
	r.GET("/ws", middleware.Auth(secret), wsHandler.NewWebSocketHandler(h, "").HandleConnection)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, h
}

func token(t *testing.T, userID string) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"user_id": userID}).SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

type recorder struct {
	mu       sync.Mutex
	roster   []string
	outcomes []notify.Outcome
}

func (r *recorder) handlers() Handlers {
	return Handlers{
		Roster: func(ids []string) {
			r.mu.Lock()
			r.roster = ids
			r.mu.Unlock()
		},
		Outcome: func(_ notify.Kind, _ domain.Message, o notify.Outcome) {
			r.mu.Lock()
			r.outcomes = append(r.outcomes, o)
			r.mu.Unlock()
		},
	}
}

func (r *recorder) snapshot() ([]string, []notify.Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.roster...), append([]notify.Outcome(nil), r.outcomes...)
}

func connect(t *testing.T, srv *httptest.Server, userID string, d *notify.Dispatcher, rec *recorder) *Client {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	c, err := Dial(ctx, srv.URL, token(t, userID), d, rec.handlers())
	require.NoError(t, err)
	go c.Run(ctx)
	t.Cleanup(func() {
		cancel()
		c.Close()
	})
	return c
}

func TestClient_DirectAndGroupDelivery(t *testing.T) {
	srv, h := startServer(t)

	aliceRec, bobRec := &recorder{}, &recorder{}
	alice := connect(t, srv, "alice", notify.NewDispatcher("alice"), aliceRec)
	bobDispatcher := notify.NewDispatcher("bob")
	bob := connect(t, srv, "bob", bobDispatcher, bobRec)

	require.Eventually(t, func() bool {
		roster, _ := aliceRec.snapshot()
		return assert.ObjectsAreEqual([]string{"alice", "bob"}, roster)
	}, 3*time.Second, 10*time.Millisecond)

	// 私信: bob 没有打开与 alice 的会话，所以生成通知
	require.True(t, h.DeliverToUser("bob", hub.DirectMessage{Message: &domain.Message{ID: "d1", SenderID: "alice", ReceiverID: "bob", Text: "hey"}}))
	require.Eventually(t, func() bool {
		return bobDispatcher.Unread() == 1
	}, 3*time.Second, 10*time.Millisecond)

	// 群消息: bob 打开了 g1，消息追加到会话
	bobDispatcher.OpenGroup("g1", "Team", nil)
	require.NoError(t, alice.JoinGroup("g1"))
	require.NoError(t, bob.JoinGroup("g1"))
	require.Eventually(t, func() bool {
		return h.DeliverToGroup("g1", hub.ErrorNotice{Message: "probe"}) == 2
	}, 3*time.Second, 10*time.Millisecond)

	require.NoError(t, alice.Relay("g1", domain.Message{ID: "m1", SenderID: "alice", Text: "hi team"}))
	require.Eventually(t, func() bool {
		return len(bobDispatcher.Transcript()) == 1
	}, 3*time.Second, 10*time.Millisecond)
	assert.Equal(t, "m1", bobDispatcher.Transcript()[0].ID)

	_, outcomes := bobRec.snapshot()
	assert.Equal(t, []notify.Outcome{notify.Notified, notify.Appended}, outcomes)
}

func TestDial_RejectsBadToken(t *testing.T) {
	srv, _ := startServer(t)
	_, err := Dial(context.Background(), srv.URL, "nope", notify.NewDispatcher("me"), Handlers{})
	assert.Error(t, err)

	_, err = Dial(context.Background(), srv.URL, token(t, "me"), nil, Handlers{})
	assert.Error(t, err)
}

func TestWebsocketURL(t *testing.T) {
	cases := map[string]string{
		"http://localhost:8080":      "ws://localhost:8080/ws",
		"https://chat.example.com/":  "wss://chat.example.com/ws",
		"ws://127.0.0.1:9000":        "ws://127.0.0.1:9000/ws",
		"https://example.com/prefix": "wss://example.com/prefix/ws",
	}
	for in, want := range cases {
		got, err := websocketURL(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := websocketURL("ftp://example.com")
	assert.Error(t, err)
}
