package bootstrap

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"realtime-chat/internal/infra/setup"
	"realtime-chat/internal/infra/storage"
)

// Config 结构体用于存储从配置文件和环境变量加载的配置。
// 优先级: 环境变量 > CONFIG_FILE 指定的 TOML 文件 > 默认值。
type Config struct {
	DBDriver   string `toml:"db_driver"`
	DBUser     string `toml:"db_user"`
	DBPassword string `toml:"db_password"`
	DBHost     string `toml:"db_host"`
	DBPort     string `toml:"db_port"`
	DBName     string `toml:"db_name"`
	SQLitePath string `toml:"sqlite_path"`

	MessageStore string `toml:"message_store"` // sql | mongo
	MongoURI     string `toml:"mongo_uri"`
	MongoDB      string `toml:"mongo_db"`

	RedisAddr     string `toml:"redis_addr"`
	RedisPassword string `toml:"redis_password"`
	RedisDB       int    `toml:"redis_db"`

	JWTSecret      string `toml:"jwt_secret"`
	JWTExpiryHours int    `toml:"jwt_expiry_hours"`

	ServerPort        string        `toml:"server_port"`
	LogLevel          string        `toml:"log_level"`
	AppEnv            string        `toml:"app_env"` // development | production
	CORSAllowedOrigin string        `toml:"cors_allowed_origin"`
	RateLimitMax      int           `toml:"rate_limit_max"`
	RateLimitWindow   time.Duration `toml:"rate_limit_window"`

	HubRequireMembership   bool          `toml:"hub_require_membership"`
	HubJoinTimeout         time.Duration `toml:"hub_join_timeout"`
	PresenceReportSchedule string        `toml:"presence_report_schedule"`

	StorageType       string `toml:"storage_type"` // local | s3
	S3Bucket          string `toml:"s3_bucket"`
	S3Region          string `toml:"s3_region"`
	S3Prefix          string `toml:"s3_prefix"`
	S3Endpoint        string `toml:"s3_endpoint"`
	S3PublicURL       string `toml:"s3_public_url"`
	S3AccessKeyID     string `toml:"s3_access_key_id"`
	S3SecretAccessKey string `toml:"s3_secret_access_key"`
	LocalStorageDir   string `toml:"local_storage_dir"`
	LocalStorageURL   string `toml:"local_storage_url"`
}

func defaultConfig() *Config {
	return &Config{
		DBDriver:             "mysql",
		MessageStore:         "sql",
		MongoDB:              "chat",
		SQLitePath:           "chat.db",
		JWTExpiryHours:       24 * 7,
		ServerPort:           "8080",
		LogLevel:             "info",
		AppEnv:               "development",
		CORSAllowedOrigin:    "http://localhost:5173",
		RateLimitMax:         100,
		RateLimitWindow:      time.Second,
		HubRequireMembership: true,
		HubJoinTimeout:       5 * time.Second,
		StorageType:          "local",
		LocalStorageDir:      "uploads",
		LocalStorageURL:      "/uploads",
	}
}

// LoadConfig 加载 .env、可选的 TOML 文件和环境变量
func LoadConfig() (*Config, error) {
	_ = godotenv.Load() // 允许只使用环境变量

	cfg := defaultConfig()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	strs := map[string]*string{
		"DB_DRIVER":                &c.DBDriver,
		"DB_USER":                  &c.DBUser,
		"DB_PASSWORD":              &c.DBPassword,
		"DB_HOST":                  &c.DBHost,
		"DB_PORT":                  &c.DBPort,
		"DB_NAME":                  &c.DBName,
		"SQLITE_PATH":              &c.SQLitePath,
		"MESSAGE_STORE":            &c.MessageStore,
		"MONGO_URI":                &c.MongoURI,
		"MONGO_DB":                 &c.MongoDB,
		"REDIS_ADDR":               &c.RedisAddr,
		"REDIS_PASSWORD":           &c.RedisPassword,
		"JWT_SECRET":               &c.JWTSecret,
		"SERVER_PORT":              &c.ServerPort,
		"LOG_LEVEL":                &c.LogLevel,
		"APP_ENV":                  &c.AppEnv,
		"CORS_ALLOWED_ORIGIN":      &c.CORSAllowedOrigin,
		"PRESENCE_REPORT_SCHEDULE": &c.PresenceReportSchedule,
		"STORAGE_TYPE":             &c.StorageType,
		"S3_BUCKET":                &c.S3Bucket,
		"S3_REGION":                &c.S3Region,
		"S3_PREFIX":                &c.S3Prefix,
		"S3_ENDPOINT":              &c.S3Endpoint,
		"S3_PUBLIC_URL":            &c.S3PublicURL,
		"S3_ACCESS_KEY_ID":         &c.S3AccessKeyID,
		"S3_SECRET_ACCESS_KEY":     &c.S3SecretAccessKey,
		"LOCAL_STORAGE_DIR":        &c.LocalStorageDir,
		"LOCAL_STORAGE_URL":        &c.LocalStorageURL,
	}
	for key, dst := range strs {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}

	ints := map[string]*int{
		"REDIS_DB":         &c.RedisDB,
		"JWT_EXPIRY_HOURS": &c.JWTExpiryHours,
		"RATE_LIMIT_MAX":   &c.RateLimitMax,
	}
	for key, dst := range ints {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("environment variable %s must be an integer: %w", key, err)
			}
			*dst = n
		}
	}

	durations := map[string]*time.Duration{
		"RATE_LIMIT_WINDOW": &c.RateLimitWindow,
		"HUB_JOIN_TIMEOUT":  &c.HubJoinTimeout,
	}
	for key, dst := range durations {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("environment variable %s must be a duration: %w", key, err)
			}
			*dst = d
		}
	}

	if v, ok := os.LookupEnv("HUB_REQUIRE_MEMBERSHIP"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("environment variable HUB_REQUIRE_MEMBERSHIP must be a boolean: %w", err)
		}
		c.HubRequireMembership = b
	}
	return nil
}

func (c *Config) validate() error {
	c.DBDriver = strings.ToLower(c.DBDriver)
	c.MessageStore = strings.ToLower(c.MessageStore)
	c.StorageType = strings.ToLower(c.StorageType)

	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET must be set")
	}
	if c.RedisAddr == "" {
		return fmt.Errorf("REDIS_ADDR must be set")
	}
	if c.DBDriver != "mysql" && c.DBDriver != "sqlite" {
		return fmt.Errorf("DB_DRIVER must be mysql or sqlite, got %q", c.DBDriver)
	}
	switch c.MessageStore {
	case "sql":
	case "mongo":
		if c.MongoURI == "" {
			return fmt.Errorf("MONGO_URI must be set when MESSAGE_STORE=mongo")
		}
	default:
		return fmt.Errorf("MESSAGE_STORE must be sql or mongo, got %q", c.MessageStore)
	}
	switch c.StorageType {
	case "local":
	case "s3":
		if c.S3Bucket == "" || c.S3Region == "" {
			return fmt.Errorf("S3_BUCKET and S3_REGION must be set when STORAGE_TYPE=s3")
		}
	default:
		return fmt.Errorf("STORAGE_TYPE must be local or s3, got %q", c.StorageType)
	}
	if c.RateLimitMax <= 0 || c.RateLimitWindow <= 0 {
		return fmt.Errorf("RATE_LIMIT_MAX and RATE_LIMIT_WINDOW must be positive")
	}
	if c.JWTExpiryHours <= 0 {
		return fmt.Errorf("JWT_EXPIRY_HOURS must be positive")
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		logrus.Warnf("Invalid LOG_LEVEL '%s', using default 'info'", c.LogLevel)
		c.LogLevel = "info"
	}
	return nil
}

// DB 返回关系数据库连接参数
func (c *Config) DB() setup.DBConfig {
	return setup.DBConfig{
		Driver:     c.DBDriver,
		User:       c.DBUser,
		Password:   c.DBPassword,
		Host:       c.DBHost,
		Port:       c.DBPort,
		Name:       c.DBName,
		SQLitePath: c.SQLitePath,
	}
}

// Storage 返回附件存储配置
func (c *Config) Storage() storage.Config {
	return storage.Config{
		Type:              c.StorageType,
		S3Bucket:          c.S3Bucket,
		S3Region:          c.S3Region,
		S3Prefix:          c.S3Prefix,
		S3Endpoint:        c.S3Endpoint,
		S3PublicURL:       c.S3PublicURL,
		S3AccessKeyID:     c.S3AccessKeyID,
		S3SecretAccessKey: c.S3SecretAccessKey,
		LocalDir:          c.LocalStorageDir,
		LocalBaseURL:      c.LocalStorageURL,
	}
}
