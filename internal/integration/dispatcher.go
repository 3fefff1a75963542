package integration

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/mautops/docflow-gin/internal/metrics"
	"github.com/sirupsen/logrus"
)

// NotificationDispatcher 通知分发接口, 失败只记录日志不返回给调用方
type NotificationDispatcher interface {
	Notify(ctx context.Context, userIDs []string, n Notification)
}

// Dispatcher 异步通知分发器
// 通知进入有界队列, 由 worker 依次发送到全部渠道; 队列满时丢弃并记录日志
type Dispatcher struct {
	notifiers []Notifier
	logger    logrus.FieldLogger
	queue     chan Notification
	timeout   time.Duration
	wg        sync.WaitGroup
	closeOnce sync.Once
	mu        sync.RWMutex
	closed    bool
}

// NewDispatcher 创建通知分发器并启动 worker
func NewDispatcher(notifiers []Notifier, logger logrus.FieldLogger, workers, queueSize int) *Dispatcher {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 256
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	d := &Dispatcher{
		notifiers: notifiers,
		logger:    logger,
		queue:     make(chan Notification, queueSize),
		timeout:   5 * time.Second,
	}
	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
	return d
}

// Notify 为每个用户生成一条通知并入队, 不阻塞调用方
func (d *Dispatcher) Notify(_ context.Context, userIDs []string, n Notification) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return
	}

	if n.Timestamp.IsZero() {
		n.Timestamp = time.Now()
	}
	for _, userID := range userIDs {
		item := n
		item.UserID = userID
		select {
		case d.queue <- item:
		default:
			d.logger.WithFields(logrus.Fields{
				"user_id": userID,
				"kind":    n.Kind,
			}).Warn("notification queue full, dropping notification")
			metrics.RecordNotificationFailure("queue")
		}
	}
}

// worker 发送队列中的通知
func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for n := range d.queue {
		d.deliver(n)
	}
}

func (d *Dispatcher) deliver(n Notification) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	for _, notifier := range d.notifiers {
		if err := notifier.Send(ctx, n); err != nil {
			d.logger.WithError(err).WithFields(logrus.Fields{
				"channel": notifier.Name(),
				"user_id": n.UserID,
				"kind":    n.Kind,
			}).Warn("failed to deliver notification")
			metrics.RecordNotificationFailure(notifier.Name())
		}
	}
}

// Close 停止接收通知, 发送完队列中剩余的通知后关闭渠道
func (d *Dispatcher) Close() error {
	d.closeOnce.Do(func() {
		d.mu.Lock()
		d.closed = true
		close(d.queue)
		d.mu.Unlock()
		d.wg.Wait()

		for _, notifier := range d.notifiers {
			if c, ok := notifier.(io.Closer); ok {
				if err := c.Close(); err != nil {
					d.logger.WithError(err).WithField("channel", notifier.Name()).Warn("failed to close notifier")
				}
			}
		}
	})
	return nil
}
