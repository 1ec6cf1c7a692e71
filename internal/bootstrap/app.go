package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/mongo"
	"gorm.io/gorm"

	httpHandler "realtime-chat/internal/handler/http"
	wsHandler "realtime-chat/internal/handler/websocket"
	"realtime-chat/internal/hub"
	gormpersistence "realtime-chat/internal/infra/persistence/gorm"
	mongopersistence "realtime-chat/internal/infra/persistence/mongo"
	"realtime-chat/internal/infra/setup"
	"realtime-chat/internal/infra/storage"
	"realtime-chat/internal/middleware"
	"realtime-chat/internal/repository"
	"realtime-chat/internal/service"
	"realtime-chat/internal/tasks"
	"realtime-chat/internal/worker"
)

// App 结构体包含应用的所有组件和配置
type App struct {
	Config      *Config
	Log         *logrus.Logger
	DB          *gorm.DB
	Mongo       *mongo.Client
	RedisClient *redis.Client
	AsynqClient *asynq.Client
	Worker      *worker.WorkerServer
	Hub         *hub.Hub
	HttpServer  *http.Server
}

// NewLogger 按配置创建进程 logger，并设置为 logrus 的标准 logger
func NewLogger(cfg *Config) *logrus.Logger {
	log := logrus.StandardLogger()
	if cfg.AppEnv == "production" {
		log.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, ForceColors: true})
	}
	level, _ := logrus.ParseLevel(cfg.LogLevel) // LoadConfig 已验证
	log.SetLevel(level)
	log.SetOutput(os.Stdout)
	return log
}

// Migrate 只执行数据库迁移 (chatd migrate)
func Migrate(cfg *Config) error {
	db, err := setup.InitDB(cfg.DB())
	if err != nil {
		return fmt.Errorf("failed to init DB: %w", err)
	}
	defer closeDB(db)
	if err := setup.MigrateDB(db, cfg.MessageStore == "mongo"); err != nil {
		return fmt.Errorf("failed to migrate DB: %w", err)
	}
	if cfg.MessageStore == "mongo" {
		client, err := setup.InitMongo(cfg.MongoURI, "chatd", 0)
		if err != nil {
			return fmt.Errorf("failed to init MongoDB: %w", err)
		}
		defer client.Disconnect(context.Background())
		repo := mongopersistence.NewMongoMessageRepository(client.Database(cfg.MongoDB), 0)
		if err := repo.EnsureIndexes(context.Background()); err != nil {
			return fmt.Errorf("failed to create mongo indexes: %w", err)
		}
	}
	return nil
}

// NewApp 创建并初始化应用的所有组件
func NewApp(cfg *Config) (*App, error) {
	log := NewLogger(cfg)
	log.WithFields(logrus.Fields{"level": log.GetLevel().String(), "env": cfg.AppEnv}).Info("Logger initialized")
	app := &App{Config: cfg, Log: log}

	// 1. 基础设施
	db, err := setup.InitDB(cfg.DB())
	if err != nil {
		return nil, fmt.Errorf("failed to init DB: %w", err)
	}
	app.DB = db
	if err := setup.MigrateDB(db, cfg.MessageStore == "mongo"); err != nil {
		app.Shutdown()
		return nil, fmt.Errorf("failed to migrate DB: %w", err)
	}

	var messageRepo repository.MessageRepository
	if cfg.MessageStore == "mongo" {
		client, err := setup.InitMongo(cfg.MongoURI, "chatd", 0)
		if err != nil {
			app.Shutdown()
			return nil, fmt.Errorf("failed to init MongoDB: %w", err)
		}
		app.Mongo = client
		mongoRepo := mongopersistence.NewMongoMessageRepository(client.Database(cfg.MongoDB), 0)
		if err := mongoRepo.EnsureIndexes(context.Background()); err != nil {
			app.Shutdown()
			return nil, fmt.Errorf("failed to create mongo indexes: %w", err)
		}
		messageRepo = mongoRepo
	} else {
		messageRepo = gormpersistence.NewGormMessageRepository(db)
	}

	redisClient, err := setup.InitRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		app.Shutdown()
		return nil, fmt.Errorf("failed to init Redis: %w", err)
	}
	app.RedisClient = redisClient

	redisOpt := asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}
	app.AsynqClient = asynq.NewClient(redisOpt)

	store, err := storage.NewFromConfig(context.Background(), cfg.Storage())
	if err != nil {
		app.Shutdown()
		return nil, fmt.Errorf("failed to init attachment storage: %w", err)
	}
	log.WithField("type", cfg.StorageType).Info("Infrastructure initialized")

	// 2. Repositories 与 Services
	userRepo := gormpersistence.NewGormUserRepository(db)
	groupRepo := gormpersistence.NewGormGroupRepository(db)
	cleaner := tasks.NewAsynqCleaner(app.AsynqClient, "low")

	authService, err := service.NewAuthService(userRepo, cfg.JWTSecret, cfg.JWTExpiryHours)
	if err != nil {
		app.Shutdown()
		return nil, fmt.Errorf("failed to create AuthService: %w", err)
	}
	groupService := service.NewGroupService(groupRepo, userRepo, messageRepo, store, cleaner)

	// 3. Hub 依赖 GroupService 做成员校验，GroupService 再通过 Hub 投递
	app.Hub = hub.NewHub(groupService, hub.Options{
		RequireMembership: cfg.HubRequireMembership,
		JoinTimeout:       cfg.HubJoinTimeout,
	})
	groupService.SetDeliverer(app.Hub)
	messageService := service.NewMessageService(userRepo, messageRepo, store, app.Hub, cleaner)

	// 4. Worker
	app.Worker = worker.NewWorkerServer(redisOpt, store, app.Hub, cfg.PresenceReportSchedule, log)

	// 5. Router
	router := newRouter(cfg, log, redisClient, routes{
		auth:     httpHandler.NewAuthHandler(authService),
		messages: httpHandler.NewMessageHandler(messageService),
		groups:   httpHandler.NewGroupHandler(groupService),
		presence: httpHandler.NewPresenceHandler(app.Hub),
		ws:       wsHandler.NewWebSocketHandler(app.Hub, cfg.CORSAllowedOrigin),
	})
	app.HttpServer = &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	log.Info("Application assembled successfully")
	return app, nil
}

type routes struct {
	auth     *httpHandler.AuthHandler
	messages *httpHandler.MessageHandler
	groups   *httpHandler.GroupHandler
	presence *httpHandler.PresenceHandler
	ws       *wsHandler.WebSocketHandler
}

func newRouter(cfg *Config, log *logrus.Logger, redisClient redis.Cmdable, r routes) *gin.Engine {
	if cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(log))
	router.Use(CORS(cfg.CORSAllowedOrigin))

	auth := middleware.Auth(cfg.JWTSecret)
	api := router.Group("/api", middleware.RateLimit(redisClient, cfg.RateLimitMax, cfg.RateLimitWindow))

	authRoutes := api.Group("/auth")
	{
		authRoutes.POST("/register", r.auth.Register)
		authRoutes.POST("/login", r.auth.Login)
		authRoutes.GET("/me", auth, r.auth.Me)
	}
	messageRoutes := api.Group("/messages", auth)
	{
		messageRoutes.GET("/users", r.messages.Users)
		messageRoutes.GET("/:id", r.messages.Conversation)
		messageRoutes.POST("/send/:id", r.messages.Send)
		messageRoutes.DELETE("/:messageId/:receiverId", r.messages.Delete)
		messageRoutes.POST("/toggle-ban/:id", r.messages.ToggleBlock)
	}
	groupRoutes := api.Group("/group", auth)
	{
		groupRoutes.POST("/create", r.groups.Create)
		groupRoutes.POST("/leave/:id", r.groups.Leave)
		groupRoutes.GET("/groups", r.groups.List)
		groupRoutes.GET("/members/:id", r.groups.Members)
		groupRoutes.POST("/make-admin/:id/:target", r.groups.MakeAdmin)
		groupRoutes.POST("/add/:id/:target", r.groups.AddMember)
		groupRoutes.POST("/send/:id", r.groups.Send)
		groupRoutes.GET("/fetchMessages/:id", r.groups.Messages)
	}
	presenceRoutes := api.Group("/presence", auth)
	{
		presenceRoutes.GET("/online", r.presence.Online)
		presenceRoutes.GET("/groups", r.presence.Groups)
	}

	router.GET("/ws", auth, r.ws.HandleConnection)
	router.GET("/ping", httpHandler.Ping)
	if cfg.StorageType == "local" && strings.HasPrefix(cfg.LocalStorageURL, "/") {
		router.Static(cfg.LocalStorageURL, cfg.LocalStorageDir)
	}
	return router
}

// Start 启动 Hub、Worker 和 HTTP 服务器
func (a *App) Start() error {
	go a.Hub.Run()
	a.Log.Info("Hub routine started")

	if err := a.Worker.Start(); err != nil {
		return err
	}

	go func() {
		a.Log.Infof("HTTP server starting to listen on %s", a.HttpServer.Addr)
		if err := a.HttpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Log.Fatalf("Failed to start HTTP server: %v", err)
		}
		a.Log.Info("HTTP server stopped listening.")
	}()
	return nil
}

// Shutdown 优雅地关闭应用，也用于 NewApp 失败时释放已创建的资源
func (a *App) Shutdown() {
	a.Log.Info("Shutting down application...")

	if a.HttpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := a.HttpServer.Shutdown(ctx); err != nil {
			a.Log.WithError(err).Error("Error shutting down HTTP server")
		}
		cancel()
	}
	if a.Hub != nil {
		a.Hub.Stop()
		select {
		case <-a.Hub.Done():
		case <-time.After(5 * time.Second):
			a.Log.Warn("Hub did not stop in time")
		}
	}
	if a.Worker != nil {
		a.Worker.Shutdown()
	}
	if a.AsynqClient != nil {
		if err := a.AsynqClient.Close(); err != nil {
			a.Log.WithError(err).Error("Error closing Asynq client")
		}
	}
	if a.RedisClient != nil {
		if err := a.RedisClient.Close(); err != nil {
			a.Log.WithError(err).Error("Error closing Redis connection")
		}
	}
	if a.Mongo != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.Mongo.Disconnect(ctx); err != nil {
			a.Log.WithError(err).Error("Error disconnecting MongoDB")
		}
		cancel()
	}
	if a.DB != nil {
		closeDB(a.DB)
	}
	a.Log.Info("Application shutdown complete.")
}

func closeDB(db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		return
	}
	if err := sqlDB.Close(); err != nil {
		logrus.WithError(err).Error("Error closing database connection")
	}
}
