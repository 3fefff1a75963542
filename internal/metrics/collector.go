package metrics

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// StatusCounter 按状态统计工作流数量
type StatusCounter interface {
	CountByStatus() (map[string]int64, error)
}

// Collector 指标收集器
type Collector struct {
	db       *gorm.DB
	counter  StatusCounter
	logger   logrus.FieldLogger
	interval time.Duration
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewCollector 创建指标收集器
func NewCollector(db *gorm.DB, counter StatusCounter, logger logrus.FieldLogger, interval time.Duration) *Collector {
	ctx, cancel := context.WithCancel(context.Background())
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Collector{
		db:       db,
		counter:  counter,
		logger:   logger,
		interval: interval,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
}

// Start 启动指标收集器
func (c *Collector) Start() {
	go c.collect()
}

// Stop 停止指标收集器
func (c *Collector) Stop() {
	c.cancel()
	<-c.done
}

// CollectOnce 立即收集一次
func (c *Collector) CollectOnce() {
	if err := UpdateDatabaseConnections(c.db); err != nil {
		c.logger.WithError(err).Debug("failed to collect database connection metrics")
	}
	if c.counter == nil {
		return
	}
	counts, err := c.counter.CountByStatus()
	if err != nil {
		c.logger.WithError(err).Warn("failed to collect workflow status metrics")
		return
	}
	UpdateWorkflowsByStatus(counts)
}

// collect 定期收集指标
func (c *Collector) collect() {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	defer close(c.done)

	c.CollectOnce()
	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			c.CollectOnce()
		}
	}
}
