package api

import (
	"github.com/gin-gonic/gin"
	"github.com/mautops/docflow-gin/internal/auth"
	"github.com/mautops/docflow-gin/internal/config"
	"github.com/mautops/docflow-gin/internal/metrics"
	"github.com/mautops/docflow-gin/internal/service"
	"github.com/mautops/docflow-gin/internal/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/gorm"
)

// Services 路由使用的服务集合
type Services struct {
	Workflow   service.WorkflowService
	Task       service.TaskService
	Assignment service.AssignmentService
	Generation service.GenerationService
	Diagram    service.DiagramService
	Archive    service.ArchiveService
	Statistics service.StatisticsService
	Logs       service.WorkflowLogRecorder
}

// RouterDeps 路由依赖
type RouterDeps struct {
	Config      *config.Config
	Logger      logrus.FieldLogger
	DB          *gorm.DB
	Redis       *redis.Client // 可为 nil
	Hub         *websocket.Hub
	Validator   *auth.KeycloakTokenValidator // header 模式下可为 nil
	Revocations auth.RevocationStore         // 可为 nil
	Services    Services
}

// authMiddleware 根据认证模式选择中间件
func authMiddleware(deps *RouterDeps) gin.HandlerFunc {
	if deps.Config.Auth.Mode == "header" {
		return auth.TrustedHeaderMiddleware()
	}
	return auth.KeycloakAuthMiddleware(deps.Validator, deps.Revocations, deps.Logger)
}

// SetupRoutes 配置路由
func SetupRoutes(deps *RouterDeps) *gin.Engine {
	cfg := deps.Config
	router := gin.New()

	// 中间件
	router.Use(gin.Recovery())
	router.Use(RequestIDMiddleware())
	router.Use(RequestLogMiddleware(deps.Logger))
	if cfg.Tracing.Enabled {
		router.Use(TracingMiddleware(cfg.Tracing.ServiceName))
	}
	router.Use(SecurityHeadersMiddleware(config.IsProduction(cfg)))
	router.Use(CORSMiddleware(cfg.CORS))
	router.Use(ErrorHandlerMiddleware())

	// 健康检查
	healthController := NewHealthController(deps.DB, deps.Redis)
	router.GET("/health", healthController.Check)

	// Prometheus 指标端点
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	// Swagger UI 路由
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler,
		ginSwagger.URL("/swagger/doc.json"),
	))

	// WebSocket 路由, keycloak 模式下由处理器校验 token 查询参数
	if deps.Hub != nil {
		if cfg.Auth.Mode == "header" {
			router.GET("/ws/notifications", auth.TrustedHeaderMiddleware(), websocket.WebSocketHandler(deps.Hub, nil, deps.Logger))
		} else {
			router.GET("/ws/notifications", websocket.WebSocketHandler(deps.Hub, deps.Validator, deps.Logger))
		}
	}

	workflowController := NewWorkflowController(
		deps.Services.Workflow,
		deps.Services.Task,
		deps.Services.Assignment,
		deps.Services.Generation,
		deps.Services.Diagram,
		deps.Services.Logs,
	)
	taskController := NewTaskController(deps.Services.Task)
	archiveController := NewArchiveController(deps.Services.Archive)
	statisticsController := NewStatisticsController(deps.Services.Statistics)

	// API v1 路由组
	v1 := router.Group("/api/v1")
	v1.Use(RateLimitMiddleware(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst))
	v1.Use(authMiddleware(deps))
	{
		// 工作流管理路由
		workflows := v1.Group("/workflows")
		{
			workflows.POST("", workflowController.Create)
			workflows.GET("", workflowController.List)
			workflows.GET("/:id", workflowController.Get)
			workflows.PUT("/:id", workflowController.Update)
			workflows.DELETE("/:id", workflowController.Delete)
			workflows.POST("/:id/status", workflowController.SetStatus)
			workflows.GET("/:id/diagram", workflowController.Diagram)
			workflows.GET("/:id/logs", workflowController.Logs)
			workflows.POST("/:id/archive", archiveController.Archive)

			// 工作流任务路由
			workflows.POST("/:id/tasks", workflowController.AddTask)
			workflows.GET("/:id/tasks", workflowController.ListTasks)
			workflows.POST("/:id/tasks/generate", workflowController.GenerateTasks)
			workflows.POST("/:id/tasks/assign", workflowController.AssignTasks)
			workflows.POST("/:id/tasks/:taskId/reassign", workflowController.ReassignTask)
		}

		// 任务管理路由
		tasks := v1.Group("/tasks")
		{
			tasks.POST("", taskController.Create)
			tasks.GET("", taskController.List)
			tasks.GET("/:id", taskController.Get)
			tasks.PUT("/:id", taskController.Update)
			tasks.DELETE("/:id", taskController.Delete)
			tasks.POST("/:id/status", taskController.SetStatus)
		}

		// 归档路由
		v1.GET("/archives", archiveController.List)

		// 统计路由
		statistics := v1.Group("/statistics")
		{
			statistics.GET("", statisticsController.Overview)
			statistics.GET("/user-loads", statisticsController.UserLoads)
		}
	}

	return router
}
