package bootstrap

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setBaseEnv(t *testing.T) {
	t.Helper()
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("REDIS_ADDR", "localhost:6379")
}

func TestLoadConfig_Defaults(t *testing.T) {
	setBaseEnv(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "mysql", cfg.DBDriver)
	assert.Equal(t, "sql", cfg.MessageStore)
	assert.Equal(t, "local", cfg.StorageType)
	assert.Equal(t, "8080", cfg.ServerPort)
	assert.True(t, cfg.HubRequireMembership)
	assert.Equal(t, time.Second, cfg.RateLimitWindow)
	assert.Equal(t, "/uploads", cfg.Storage().LocalBaseURL)
}

func TestLoadConfig_TOMLThenEnvOverride(t *testing.T) {
	setBaseEnv(t)
	path := filepath.Join(t.TempDir(), "chat.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
db_driver = "sqlite"
sqlite_path = "/tmp/chat.db"
server_port = "9000"
rate_limit_window = "2m"
hub_require_membership = false
storage_type = "s3"
s3_bucket = "attachments"
s3_region = "eu-west-1"
`), 0o600))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("SERVER_PORT", "9100")
	t.Setenv("RATE_LIMIT_MAX", "7")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, "/tmp/chat.db", cfg.DB().SQLitePath)
	assert.Equal(t, "9100", cfg.ServerPort)
	assert.Equal(t, 7, cfg.RateLimitMax)
	assert.Equal(t, 2*time.Minute, cfg.RateLimitWindow)
	assert.False(t, cfg.HubRequireMembership)
	assert.Equal(t, "attachments", cfg.Storage().S3Bucket)
}

func TestLoadConfig_Validation(t *testing.T) {
	cases := map[string]map[string]string{
		"missing jwt secret":   {"JWT_SECRET": ""},
		"missing redis":        {"REDIS_ADDR": ""},
		"bad driver":           {"DB_DRIVER": "oracle"},
		"mongo without uri":    {"MESSAGE_STORE": "mongo", "MONGO_URI": ""},
		"s3 without bucket":    {"STORAGE_TYPE": "s3", "S3_BUCKET": ""},
		"bad int":              {"RATE_LIMIT_MAX": "lots"},
		"bad duration":         {"HUB_JOIN_TIMEOUT": "soon"},
		"bad bool":             {"HUB_REQUIRE_MEMBERSHIP": "maybe"},
		"non-positive expiry":  {"JWT_EXPIRY_HOURS": "0"},
		"unknown storage type": {"STORAGE_TYPE": "ftp"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			setBaseEnv(t)
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := LoadConfig()
			assert.Error(t, err)
		})
	}
}

func TestLoadConfig_InvalidLogLevelFallsBack(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("LOG_LEVEL", "chatty")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.LogLevel)
}
