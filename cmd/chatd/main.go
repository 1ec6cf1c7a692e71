package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"realtime-chat/internal/bootstrap"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "chatd",
	Short: "Realtime chat server",
	// 不带子命令时直接启动服务
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve()
	},
	SilenceUsage: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP/WebSocket server and background worker",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve()
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := bootstrap.LoadConfig()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		log := bootstrap.NewLogger(cfg)
		if err := bootstrap.Migrate(cfg); err != nil {
			return err
		}
		log.Info("Database migration completed")
		return nil
	},
}

func serve() error {
	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// 初始化并运行 App
	app, err := bootstrap.NewApp(cfg)
	if err != nil {
		return fmt.Errorf("initializing app: %w", err)
	}
	if err := app.Start(); err != nil {
		app.Shutdown()
		return fmt.Errorf("starting app: %w", err)
	}

	// 设置优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	logrus.WithField("signal", sig.String()).Info("Shutdown signal received...")

	app.Shutdown()
	return nil
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
}
