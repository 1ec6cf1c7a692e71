package bootstrap

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpHandler "realtime-chat/internal/handler/http"
	wsHandler "realtime-chat/internal/handler/websocket"
	"realtime-chat/internal/hub"
)

func testRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "images"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "images", "a.txt"), []byte("hello"), 0o644))

	cfg := defaultConfig()
	cfg.JWTSecret = "secret"
	cfg.LocalStorageDir = dir

	// 不可达的 Redis: 限流中间件会放行
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 100 * time.Millisecond, MaxRetries: -1})
	t.Cleanup(func() { rdb.Close() })

	h := hub.NewHub(nil, hub.Options{})
	log := logrus.New()
	log.SetOutput(os.Stderr)
	return newRouter(cfg, log, rdb, routes{
		auth:     httpHandler.NewAuthHandler(nil),
		messages: httpHandler.NewMessageHandler(nil),
		groups:   httpHandler.NewGroupHandler(nil),
		presence: httpHandler.NewPresenceHandler(h),
		ws:       wsHandler.NewWebSocketHandler(h, cfg.CORSAllowedOrigin),
	})
}

func TestRouter_PublicAndProtectedRoutes(t *testing.T) {
	r := testRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))

	for _, path := range []string{"/api/messages/users", "/api/group/groups", "/api/presence/online", "/api/auth/me", "/ws"} {
		w = httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)
	}
}

func TestRouter_PreflightAndStaticUploads(t *testing.T) {
	r := testRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/api/messages/users", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/uploads/images/a.txt", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "hello", w.Body.String())
}
