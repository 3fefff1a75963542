package database

import (
	"context"
	"fmt"
	"time"

	"github.com/mautops/docflow-gin/internal/config"
	"github.com/mautops/docflow-gin/internal/model"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// PoolConfig 连接池配置
type PoolConfig struct {
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime int // 秒
	ConnMaxIdleTime int // 秒
}

// BuildDSN 构建 PostgreSQL DSN
func BuildDSN(cfg config.DatabaseConfig) string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)
}

// GetPoolConfig 获取连接池配置, 未配置的项使用默认值
func GetPoolConfig(cfg config.DatabaseConfig) *PoolConfig {
	pool := &PoolConfig{
		MaxIdleConns:    cfg.MaxIdleConns,
		MaxOpenConns:    cfg.MaxOpenConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
	}
	if pool.MaxIdleConns <= 0 {
		pool.MaxIdleConns = 10
	}
	if pool.MaxOpenConns <= 0 {
		pool.MaxOpenConns = 100
	}
	if pool.ConnMaxLifetime <= 0 {
		pool.ConnMaxLifetime = 3600
	}
	if pool.ConnMaxIdleTime <= 0 {
		pool.ConnMaxIdleTime = 600
	}
	return pool
}

// NewGormConfig 返回统一的 GORM 配置
// TranslateError 打开后唯一约束冲突会转换为 gorm.ErrDuplicatedKey
func NewGormConfig() *gorm.Config {
	return &gorm.Config{TranslateError: true}
}

// Connect 连接数据库
func Connect(cfg config.DatabaseConfig) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(BuildDSN(cfg)), NewGormConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	pool := GetPoolConfig(cfg)
	sqlDB.SetMaxIdleConns(pool.MaxIdleConns)
	sqlDB.SetMaxOpenConns(pool.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Duration(pool.ConnMaxLifetime) * time.Second)
	sqlDB.SetConnMaxIdleTime(time.Duration(pool.ConnMaxIdleTime) * time.Second)

	return db, nil
}

// ConnectWithRetry 带重试的数据库连接
func ConnectWithRetry(cfg config.DatabaseConfig, maxRetries int, retryInterval time.Duration) (*gorm.DB, error) {
	var db *gorm.DB
	var err error

	for i := 0; i < maxRetries; i++ {
		db, err = Connect(cfg)
		if err == nil {
			return db, nil
		}

		if i < maxRetries-1 {
			time.Sleep(retryInterval)
			retryInterval *= 2 // 指数退避
		}
	}

	return nil, fmt.Errorf("failed to connect database after %d retries: %w", maxRetries, err)
}

// Migrate 执行数据库迁移
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.UserModel{},
		&model.UserSessionModel{},
		&model.DocumentModel{},
		&model.WorkflowModel{},
		&model.TaskModel{},
		&model.WorkflowArchiveModel{},
		&model.WorkflowLogModel{},
	); err != nil {
		return fmt.Errorf("failed to auto migrate: %w", err)
	}

	if err := CreateIndexes(db); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	return nil
}

// CreateIndexes 创建数据库索引
func CreateIndexes(db *gorm.DB) error {
	indexes := []struct {
		name string
		sql  string
	}{
		{"idx_workflows_status_created", "CREATE INDEX IF NOT EXISTS idx_workflows_status_created ON workflows(status, created_at)"},
		{"idx_tasks_workflow_status", "CREATE INDEX IF NOT EXISTS idx_tasks_workflow_status ON tasks(workflow_id, status)"},
		{"idx_tasks_workflow_created", "CREATE INDEX IF NOT EXISTS idx_tasks_workflow_created ON tasks(workflow_id, created_at)"},
		{"idx_workflow_logs_workflow_created", "CREATE INDEX IF NOT EXISTS idx_workflow_logs_workflow_created ON workflow_logs(workflow_id, created_at)"},
		{"idx_workflow_archives_workflow_id", "CREATE UNIQUE INDEX IF NOT EXISTS idx_workflow_archives_workflow_id ON workflow_archives(workflow_id)"},
		{"idx_user_sessions_user_id", "CREATE INDEX IF NOT EXISTS idx_user_sessions_user_id ON user_sessions(user_id)"},
	}

	for _, idx := range indexes {
		if err := db.Exec(idx.sql).Error; err != nil {
			return fmt.Errorf("failed to create %s: %w", idx.name, err)
		}
	}

	// PostgreSQL 特定的 GIN 索引, 用于按指派人查询
	if db.Dialector.Name() == "postgres" {
		if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_tasks_assigned_to_gin ON tasks USING GIN ((assigned_to::jsonb))").Error; err != nil {
			return fmt.Errorf("failed to create idx_tasks_assigned_to_gin: %w", err)
		}
	}

	return nil
}

// CheckHealth 检查数据库连接健康状态
func CheckHealth(db *gorm.DB) bool {
	if db == nil {
		return false
	}

	sqlDB, err := db.DB()
	if err != nil {
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return sqlDB.PingContext(ctx) == nil
}

// Close 关闭数据库连接
func Close(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
