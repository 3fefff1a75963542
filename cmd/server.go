/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mautops/docflow-gin/internal/api"
	"github.com/mautops/docflow-gin/internal/config"
	"github.com/mautops/docflow-gin/internal/container"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// serverCmd represents the server command
var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the API server",
	Long: `Start the Docflow Gin API server.
The server will listen on the configured host and port,
and provide REST API interfaces for workflow, task and archive management.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// 1. 加载配置
		configPath, _ := cmd.Flags().GetString("config")
		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if cmd.Flags().Changed("host") {
			cfg.Server.Host, _ = cmd.Flags().GetString("host")
		}
		if cmd.Flags().Changed("port") {
			cfg.Server.Port, _ = cmd.Flags().GetInt("port")
		}

		logger, err := api.NewLoggerFromConfig(&cfg.Log)
		if err != nil {
			return fmt.Errorf("failed to create logger: %w", err)
		}
		if config.IsProduction(cfg) {
			gin.SetMode(gin.ReleaseMode)
		}

		// 2. 初始化追踪
		var tracing *api.Tracing
		if cfg.Tracing.Enabled {
			tracing, err = api.InitTracing(cfg.Tracing)
			if err != nil {
				return fmt.Errorf("failed to initialize tracing: %w", err)
			}
		}

		// 3. 初始化容器
		ctr, err := container.NewContainer(cfg, logger)
		if err != nil {
			return fmt.Errorf("failed to initialize container: %w", err)
		}
		defer ctr.Close()

		// 4. 监听配置文件变更, 动态调整日志级别
		if configPath != "" {
			watcher := config.NewConfigWatcher(cfg, configPath, logger)
			watcher.OnConfigChange(config.ApplyLogLevel(logger))
			if err := watcher.Start(); err != nil {
				logger.WithError(err).Warn("failed to watch config file")
			}
			defer watcher.Stop()
		}

		// 5. 启动后台组件
		ctx, stop := context.WithCancel(context.Background())
		defer stop()
		go ctr.RunHub(ctx)

		collector := ctr.NewMetricsCollector(15 * time.Second)
		collector.Start()
		defer collector.Stop()

		// 6. 启动服务器
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		router := ctr.Router()
		router.NoRoute(func(c *gin.Context) {
			api.Error(c, http.StatusNotFound, "route not found", "the requested route does not exist")
		})
		srv := &http.Server{
			Addr:              addr,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		}

		serverErr := make(chan error, 1)
		go func() {
			logger.WithField("addr", addr).Info("server starting")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serverErr <- err
			}
		}()

		// 等待中断信号
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		select {
		case sig := <-quit:
			logger.WithField("signal", sig.String()).Info("shutting down server")
		case err := <-serverErr:
			return fmt.Errorf("failed to start server: %w", err)
		}

		// 优雅关闭
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Error("server forced to shutdown")
		}
		if err := tracing.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Warn("failed to flush traces")
		}

		logger.WithFields(logrus.Fields{"addr": addr}).Info("server exited")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)

	// 服务器配置标志
	serverCmd.Flags().String("host", "0.0.0.0", "Server host")
	serverCmd.Flags().Int("port", 8080, "Server port")
}

// LoadConfig 加载配置
func LoadConfig(configPath string) (*config.Config, error) {
	return config.Load(configPath)
}
