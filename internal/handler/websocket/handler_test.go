package websocket

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"realtime-chat/internal/hub"
	"realtime-chat/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

const secret = "ws-test-secret"

func newServer(t *testing.T) (*httptest.Server, *hub.Hub) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	h := hub.NewHub(nil, hub.Options{})
	go h.Run()
	t.Cleanup(func() {
		h.Stop()
		<-h.Done()
	})

	r := gin.New()
	r.GET("/ws", middleware.Auth(secret), NewWebSocketHandler(h, "").HandleConnection)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, h
}

func dial(t *testing.T, srv *httptest.Server, userID string) *websocket.Conn {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"user_id": userID}).SignedString([]byte(secret))
	require.NoError(t, err)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readUntil 读取帧直到出现指定类型的事件
func readUntil(t *testing.T, conn *websocket.Conn, eventType string) gjson.Result {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)
		if ev := gjson.ParseBytes(data); ev.Get("type").String() == eventType {
			return ev
		}
	}
}

func TestHandleConnection_RejectsWithoutToken(t *testing.T) {
	srv, _ := newServer(t)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHandleConnection_RosterAndGroupRelay(t *testing.T) {
	srv, h := newServer(t)

	alice := dial(t, srv, "alice")
	ev := readUntil(t, alice, "online-roster-changed")
	assert.Equal(t, `["alice"]`, ev.Get("data.userIds").Raw)

	bob := dial(t, srv, "bob")
	readUntil(t, bob, "online-roster-changed")
	ev = readUntil(t, alice, "online-roster-changed")
	assert.Equal(t, `["alice","bob"]`, ev.Get("data.userIds").Raw)
	assert.Equal(t, []string{"alice", "bob"}, h.Online())

	for _, c := range []*websocket.Conn{alice, bob} {
		require.NoError(t, c.WriteMessage(websocket.TextMessage, []byte(`{"type":"join-group","data":{"groupId":"g1"}}`)))
	}
	require.Eventually(t, func() bool {
		return len(h.ActiveGroups()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	// 等两个连接都进入房间
	require.Eventually(t, func() bool {
		return h.DeliverToGroup("g1", hub.ErrorNotice{Message: "probe"}) == 2
	}, 2*time.Second, 10*time.Millisecond)

	relay := `{"type":"group-message-relay","data":{"groupId":"g1","message":{"id":"m1","senderId":"alice","text":"hi"}}}`
	require.NoError(t, alice.WriteMessage(websocket.TextMessage, []byte(relay)))

	for _, c := range []*websocket.Conn{alice, bob} {
		ev := readUntil(t, c, "group-message-delivered")
		assert.Equal(t, "g1", ev.Get("data.groupId").String())
		assert.Equal(t, "m1", ev.Get("data.message.id").String())
	}

	// bob 断开后 alice 收到新的名单
	bob.Close()
	ev = readUntil(t, alice, "online-roster-changed")
	assert.Equal(t, `["alice"]`, ev.Get("data.userIds").Raw)
}

func TestOriginChecker(t *testing.T) {
	check := originChecker("https://chat.example.com")
	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	assert.True(t, check(req))

	req.Header.Set("Origin", "https://chat.example.com")
	assert.True(t, check(req))

	req.Header.Set("Origin", "https://evil.example.com")
	assert.False(t, check(req))

	assert.True(t, originChecker("*")(req))
}
