package container

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mautops/docflow-gin/internal/api"
	"github.com/mautops/docflow-gin/internal/assignment"
	"github.com/mautops/docflow-gin/internal/auth"
	"github.com/mautops/docflow-gin/internal/config"
	"github.com/mautops/docflow-gin/internal/database"
	"github.com/mautops/docflow-gin/internal/integration"
	"github.com/mautops/docflow-gin/internal/metrics"
	"github.com/mautops/docflow-gin/internal/repository"
	"github.com/mautops/docflow-gin/internal/service"
	"github.com/mautops/docflow-gin/internal/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Container 依赖注入容器
// 管理所有应用依赖,包括数据库、服务、客户端等
type Container struct {
	cfg               *config.Config
	logger            logrus.FieldLogger
	db                *gorm.DB
	redis             *redis.Client
	hub               *websocket.Hub
	dispatcher        *integration.Dispatcher
	keycloakValidator *auth.KeycloakTokenValidator
	revocations       auth.RevocationStore
	workflowRepo      repository.WorkflowRepository
	services          api.Services
}

// NewContainer 创建依赖注入容器
// 根据配置初始化所有依赖组件
func NewContainer(cfg *config.Config, logger logrus.FieldLogger) (*Container, error) {
	// 1. 初始化数据库（带重试机制）
	// 默认重试 3 次，初始间隔 1 秒，指数退避
	db, err := database.ConnectWithRetry(cfg.Database, 3, time.Second)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	// 执行数据库迁移
	if err := database.Migrate(db); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	c, err := newContainer(cfg, logger, db)
	if err != nil {
		_ = database.Close(db)
		return nil, err
	}
	return c, nil
}

// NewContainerWithDB 使用已有数据库连接创建容器
func NewContainerWithDB(cfg *config.Config, logger logrus.FieldLogger, db *gorm.DB) (*Container, error) {
	return newContainer(cfg, logger, db)
}

func newContainer(cfg *config.Config, logger logrus.FieldLogger, db *gorm.DB) (*Container, error) {
	c := &Container{
		cfg:    cfg,
		logger: logger,
		db:     db,
		hub:    websocket.NewHub(),
	}

	// 2. 初始化认证
	if cfg.Auth.Mode != "header" {
		if cfg.Auth.Issuer == "" {
			return nil, fmt.Errorf("auth.issuer is required in %q mode", cfg.Auth.Mode)
		}
		c.keycloakValidator = auth.NewKeycloakTokenValidator(cfg.Auth.Issuer, cfg.Auth.JWKSURL)
	}
	if cfg.Auth.RevocationEnabled {
		c.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		c.revocations = auth.NewRedisRevocationStore(c.redis)
	}

	// 3. 初始化通知分发
	notifiers, err := c.buildNotifiers()
	if err != nil {
		return nil, err
	}
	c.dispatcher = integration.NewDispatcher(notifiers, logger, 4, 256)

	// 4. 初始化仓储
	c.workflowRepo = repository.NewWorkflowRepository(db)
	taskRepo := repository.NewTaskRepository(db)
	archiveRepo := repository.NewArchiveRepository(db)
	loadIndex := service.NewUserLoadIndex(repository.NewUserDirectory(db), repository.NewSessionStore(db))
	logRecorder := service.NewWorkflowLogRecorder(repository.NewWorkflowLogRepository(db), logger)

	// 5. 初始化服务
	roles := assignment.RoleNames{
		Director: cfg.Assignment.DirectorRole,
		Manager:  cfg.Assignment.ManagerRole,
		Employee: cfg.Assignment.EmployeeRole,
	}
	generator := integration.NewHTTPGenerator(cfg.Generator.URL, cfg.Generator.APIKey, time.Duration(cfg.Generator.TimeoutSeconds)*time.Second)
	archiveSvc := service.NewArchiveService(db, c.workflowRepo, taskRepo, archiveRepo, repository.NewDocumentStore(db), logRecorder, c.dispatcher, cfg.Archive.DefaultReport, logger)

	c.services = api.Services{
		Workflow:   service.NewWorkflowService(db, c.workflowRepo, taskRepo, archiveSvc, logRecorder, logger),
		Task:       service.NewTaskService(db, taskRepo, c.workflowRepo, loadIndex, logRecorder),
		Assignment: service.NewAssignmentService(db, c.workflowRepo, taskRepo, loadIndex, logRecorder, c.dispatcher, roles, logger),
		Generation: service.NewGenerationService(db, c.workflowRepo, taskRepo, generator, logRecorder),
		Diagram:    service.NewDiagramService(c.workflowRepo, taskRepo),
		Archive:    archiveSvc,
		Statistics: service.NewStatisticsService(db, loadIndex),
		Logs:       logRecorder,
	}

	return c, nil
}

// buildNotifiers 根据配置的渠道创建通知器
func (c *Container) buildNotifiers() ([]integration.Notifier, error) {
	var notifiers []integration.Notifier
	for _, channel := range c.cfg.Notification.Channels {
		switch channel {
		case "log":
			notifiers = append(notifiers, integration.NewLogNotifier(c.logger))
		case "websocket":
			notifiers = append(notifiers, integration.NewHubNotifier(c.hub))
		case "kafka":
			if len(c.cfg.Notification.Brokers) == 0 {
				return nil, fmt.Errorf("notification.brokers is required for the kafka channel")
			}
			writer := integration.NewKafkaWriter(c.cfg.Notification.Brokers, c.cfg.Notification.Topic)
			notifiers = append(notifiers, integration.NewKafkaNotifier(writer))
		default:
			return nil, fmt.Errorf("unknown notification channel %q", channel)
		}
	}
	return notifiers, nil
}

// Router 创建 HTTP 路由
func (c *Container) Router() *gin.Engine {
	return api.SetupRoutes(&api.RouterDeps{
		Config:      c.cfg,
		Logger:      c.logger,
		DB:          c.db,
		Redis:       c.redis,
		Hub:         c.hub,
		Validator:   c.keycloakValidator,
		Revocations: c.revocations,
		Services:    c.services,
	})
}

// NewMetricsCollector 创建周期刷新业务指标的采集器
func (c *Container) NewMetricsCollector(interval time.Duration) *metrics.Collector {
	return metrics.NewCollector(c.db, c.workflowRepo, c.logger, interval)
}

// RunHub 运行 WebSocket Hub, ctx 取消后返回
func (c *Container) RunHub(ctx context.Context) {
	c.hub.Run(ctx)
}

// DB 获取数据库连接
func (c *Container) DB() *gorm.DB {
	return c.db
}

// Services 获取服务集合
func (c *Container) Services() api.Services {
	return c.services
}

// Close 关闭容器,清理资源
func (c *Container) Close() error {
	// 先排空通知队列, 再关闭底层连接
	if c.dispatcher != nil {
		if err := c.dispatcher.Close(); err != nil {
			c.logger.WithError(err).Warn("failed to close notification dispatcher")
		}
	}
	if c.redis != nil {
		if err := c.redis.Close(); err != nil {
			c.logger.WithError(err).Warn("failed to close redis client")
		}
	}
	if c.db != nil {
		return database.Close(c.db)
	}
	return nil
}
