package metrics

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

const namespace = "docflow"

var (
	// API 请求计数器
	apiRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_requests_total",
			Help:      "Total number of API requests",
		},
		[]string{"method", "path", "status"},
	)

	// API 请求响应时间
	apiRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "api_request_duration_seconds",
			Help:      "API request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// 工作流创建数
	workflowsCreatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workflows_created_total",
			Help:      "Total number of workflows created",
		},
	)

	// 任务创建数
	tasksCreatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_created_total",
			Help:      "Total number of tasks created",
		},
		[]string{"source"}, // manual, generated
	)

	// 状态迁移数
	statusTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "status_transitions_total",
			Help:      "Total number of status transitions",
		},
		[]string{"entity", "to"},
	)

	// 任务指派数
	taskAssignmentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "task_assignments_total",
			Help:      "Total number of task assignments",
		},
		[]string{"pool"}, // director, manager, employee, reassign
	)

	// 归档数
	archivesCreatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "archives_created_total",
			Help:      "Total number of workflow archives created",
		},
		[]string{"trigger"}, // manual, auto
	)

	// 流程图渲染数
	diagramsRenderedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "diagrams_rendered_total",
			Help:      "Total number of process diagrams rendered",
		},
	)

	// 外部生成服务调用数
	generatorRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generator_requests_total",
			Help:      "Total number of task generator requests",
		},
		[]string{"result"}, // success, failed, malformed
	)

	// 通知发送失败数
	notificationFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notification_failures_total",
			Help:      "Total number of failed notification deliveries",
		},
		[]string{"channel"},
	)

	// 数据库连接数
	databaseConnectionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "database_connections_active",
			Help:      "Number of active database connections",
		},
	)

	databaseConnectionsIdle = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "database_connections_idle",
			Help:      "Number of idle database connections",
		},
	)

	databaseConnectionsMax = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "database_connections_max",
			Help:      "Maximum number of database connections",
		},
	)

	// 工作流状态分布
	workflowsByStatus = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "workflows_by_status",
			Help:      "Number of workflows by persisted status",
		},
		[]string{"status"},
	)
)

var (
	once sync.Once
)

func init() {
	prometheus.MustRegister(
		apiRequestsTotal,
		apiRequestDuration,
		workflowsCreatedTotal,
		tasksCreatedTotal,
		statusTransitionsTotal,
		taskAssignmentsTotal,
		archivesCreatedTotal,
		diagramsRenderedTotal,
		generatorRequestsTotal,
		notificationFailuresTotal,
		databaseConnectionsActive,
		databaseConnectionsIdle,
		databaseConnectionsMax,
		workflowsByStatus,
	)

	// 注册 Go 运行时指标（只注册一次）
	once.Do(func() {
		_ = prometheus.Register(prometheus.NewGoCollector())
		_ = prometheus.Register(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	})
}

// Handler 返回 Prometheus 指标处理器
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordAPIRequest 记录 API 请求
func RecordAPIRequest(method, path string, status int, duration float64) {
	apiRequestsTotal.WithLabelValues(method, path, fmt.Sprintf("%d", status)).Inc()
	apiRequestDuration.WithLabelValues(method, path).Observe(duration)
}

// RecordWorkflowCreated 记录工作流创建
func RecordWorkflowCreated() {
	workflowsCreatedTotal.Inc()
}

// RecordTasksCreated 记录任务创建
func RecordTasksCreated(source string, n int) {
	tasksCreatedTotal.WithLabelValues(source).Add(float64(n))
}

// RecordStatusTransition 记录状态迁移
func RecordStatusTransition(entity, to string) {
	statusTransitionsTotal.WithLabelValues(entity, to).Inc()
}

// RecordTaskAssignment 记录任务指派
func RecordTaskAssignment(pool string) {
	taskAssignmentsTotal.WithLabelValues(pool).Inc()
}

// RecordArchiveCreated 记录归档
func RecordArchiveCreated(trigger string) {
	archivesCreatedTotal.WithLabelValues(trigger).Inc()
}

// RecordDiagramRendered 记录流程图渲染
func RecordDiagramRendered() {
	diagramsRenderedTotal.Inc()
}

// RecordGeneratorRequest 记录外部生成服务调用
func RecordGeneratorRequest(result string) {
	generatorRequestsTotal.WithLabelValues(result).Inc()
}

// RecordNotificationFailure 记录通知失败
func RecordNotificationFailure(channel string) {
	notificationFailuresTotal.WithLabelValues(channel).Inc()
}

// UpdateDatabaseConnections 更新数据库连接数指标
func UpdateDatabaseConnections(db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("database connection is nil")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}

	stats := sqlDB.Stats()
	databaseConnectionsActive.Set(float64(stats.InUse))
	databaseConnectionsIdle.Set(float64(stats.Idle))
	databaseConnectionsMax.Set(float64(stats.MaxOpenConnections))

	return nil
}

// UpdateWorkflowsByStatus 更新工作流状态分布指标
func UpdateWorkflowsByStatus(counts map[string]int64) {
	workflowsByStatus.Reset()
	for status, n := range counts {
		workflowsByStatus.WithLabelValues(status).Set(float64(n))
	}
}
