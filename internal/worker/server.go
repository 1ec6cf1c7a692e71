package worker

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"realtime-chat/internal/infra/storage"
	"realtime-chat/internal/tasks"
)

// WorkerServer 封装了 Asynq Worker Server 和周期任务调度器的启动和关闭逻辑
type WorkerServer struct {
	server    *asynq.Server
	scheduler *asynq.Scheduler
	log       *logrus.Entry
	mux       *asynq.ServeMux
}

// NewWorkerServer 创建一个新的 WorkerServer 实例。
// reportSchedule 为空时不注册周期报告任务。
func NewWorkerServer(redisOpt asynq.RedisClientOpt, store storage.Store, presence PresenceSource, reportSchedule string, logger *logrus.Logger) *WorkerServer {
	logEntry := logger.WithField("component", "worker_server")

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				retryCount, _ := asynq.GetRetryCount(ctx)
				maxRetry, _ := asynq.GetMaxRetry(ctx)
				logEntry.WithFields(logrus.Fields{
					"task_type": task.Type(),
					"retries":   retryCount,
					"max_retry": maxRetry,
				}).WithError(err).Error("Task failed")
			}),
		},
	)

	mux := asynq.NewServeMux()
	mux.Handle(tasks.TypeAttachmentCleanup, NewAttachmentCleanupHandler(store))

	ws := &WorkerServer{server: server, log: logEntry, mux: mux}

	if presence != nil && reportSchedule != "" {
		mux.Handle(tasks.TypePresenceReport, NewPresenceReportHandler(presence))
		ws.scheduler = asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{})
		entryID, err := ws.scheduler.Register(reportSchedule, tasks.NewPresenceReportTask(), asynq.Queue("low"))
		if err != nil {
			logEntry.WithError(err).Error("Could not register periodic presence report")
			ws.scheduler = nil
		} else {
			logEntry.WithFields(logrus.Fields{"schedule": reportSchedule, "entry_id": entryID}).Info("Periodic presence report registered")
		}
	}
	return ws
}

// Start 启动 Worker Server 和调度器，不阻塞。信号处理由调用方负责。
func (ws *WorkerServer) Start() error {
	ws.log.Info("Worker server starting...")
	if err := ws.server.Start(ws.mux); err != nil {
		return fmt.Errorf("worker: start server: %w", err)
	}
	if ws.scheduler != nil {
		if err := ws.scheduler.Start(); err != nil {
			ws.server.Shutdown()
			return fmt.Errorf("worker: start scheduler: %w", err)
		}
		ws.log.Info("Asynq scheduler started")
	}
	return nil
}

// Shutdown 优雅地关闭 Worker Server 和调度器
func (ws *WorkerServer) Shutdown() {
	ws.log.Info("Shutting down worker server...")
	if ws.scheduler != nil {
		ws.scheduler.Shutdown()
	}
	ws.server.Shutdown()
	ws.log.Info("Worker server shut down complete.")
}
