package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// HealthController 健康检查控制器
type HealthController struct {
	db    *gorm.DB
	redis *redis.Client
}

// NewHealthController 创建健康检查控制器, redisClient 可为 nil
func NewHealthController(db *gorm.DB, redisClient *redis.Client) *HealthController {
	return &HealthController{
		db:    db,
		redis: redisClient,
	}
}

// Check 健康检查
// @Summary      健康检查
// @Tags         系统
// @Produce      json
// @Success      200
// @Failure      503
// @Router       /health [get]
func (c *HealthController) Check(ctx *gin.Context) {
	status := "healthy"
	checks := make(map[string]string)

	// 检查数据库连接
	if c.db != nil {
		if err := c.checkDatabase(ctx.Request.Context()); err != nil {
			status = "unhealthy"
			checks["database"] = "unhealthy: " + err.Error()
		} else {
			checks["database"] = "healthy"
		}
	} else {
		checks["database"] = "not configured"
	}

	// 检查 Redis 连接, Redis 只用于令牌吊销, 不可用时降级而不是失败
	if c.redis != nil {
		if err := c.checkRedis(ctx.Request.Context()); err != nil {
			if status == "healthy" {
				status = "degraded"
			}
			checks["redis"] = "unhealthy: " + err.Error()
		} else {
			checks["redis"] = "healthy"
		}
	} else {
		checks["redis"] = "not configured"
	}

	httpStatus := http.StatusOK
	if status == "unhealthy" {
		httpStatus = http.StatusServiceUnavailable
	}

	ctx.JSON(httpStatus, gin.H{
		"status":    status,
		"timestamp": time.Now().Unix(),
		"checks":    checks,
	})
}

// checkDatabase 检查数据库连接
func (c *HealthController) checkDatabase(ctx context.Context) error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return sqlDB.PingContext(ctx)
}

// checkRedis 检查 Redis 连接
func (c *HealthController) checkRedis(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	return c.redis.Ping(ctx).Err()
}
