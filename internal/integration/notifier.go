package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

// Notification 通知内容
type Notification struct {
	Kind       string    `json:"kind"` // assignment, reassignment, archive
	WorkflowID string    `json:"workflow_id,omitempty"`
	TaskID     string    `json:"task_id,omitempty"`
	UserID     string    `json:"user_id"`
	Message    string    `json:"message"`
	Timestamp  time.Time `json:"timestamp"`
}

// Notifier 单个通知渠道
type Notifier interface {
	Name() string
	Send(ctx context.Context, n Notification) error
}

// LogNotifier 仅写日志的通知渠道
type LogNotifier struct {
	logger logrus.FieldLogger
}

// NewLogNotifier 创建日志通知渠道
func NewLogNotifier(logger logrus.FieldLogger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Name 渠道名称
func (n *LogNotifier) Name() string { return "log" }

// Send 写入一条 info 日志
func (n *LogNotifier) Send(_ context.Context, notification Notification) error {
	n.logger.WithFields(logrus.Fields{
		"kind":        notification.Kind,
		"user_id":     notification.UserID,
		"workflow_id": notification.WorkflowID,
		"task_id":     notification.TaskID,
	}).Info(notification.Message)
	return nil
}

// UserBroadcaster 向在线用户推送消息, 由 websocket.Hub 实现
type UserBroadcaster interface {
	BroadcastToUser(userID string, message []byte) int
}

// HubNotifier 通过 WebSocket 推送的通知渠道
type HubNotifier struct {
	hub UserBroadcaster
}

// NewHubNotifier 创建 WebSocket 通知渠道
func NewHubNotifier(hub UserBroadcaster) *HubNotifier {
	return &HubNotifier{hub: hub}
}

// Name 渠道名称
func (n *HubNotifier) Name() string { return "websocket" }

// Send 推送给用户的全部在线连接, 用户不在线时直接返回
func (n *HubNotifier) Send(_ context.Context, notification Notification) error {
	payload, err := json.Marshal(notification)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}
	n.hub.BroadcastToUser(notification.UserID, payload)
	return nil
}

// MessageWriter Kafka 写入接口, 由 kafka.Writer 实现
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaNotifier 写入 Kafka topic 的通知渠道
type KafkaNotifier struct {
	writer MessageWriter
}

// NewKafkaWriter 创建 Kafka writer
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}
}

// NewKafkaNotifier 创建 Kafka 通知渠道
func NewKafkaNotifier(writer MessageWriter) *KafkaNotifier {
	return &KafkaNotifier{writer: writer}
}

// Name 渠道名称
func (n *KafkaNotifier) Name() string { return "kafka" }

// Send 以用户 ID 为 key 写入一条消息, 同一用户的通知保持顺序
func (n *KafkaNotifier) Send(ctx context.Context, notification Notification) error {
	payload, err := json.Marshal(notification)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}
	return n.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(notification.UserID),
		Value: payload,
		Time:  notification.Timestamp,
	})
}

// Close 关闭 Kafka writer
func (n *KafkaNotifier) Close() error {
	return n.writer.Close()
}
