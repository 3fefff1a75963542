package integration

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestHTTPGenerator_Generate 测试生成服务调用
func TestHTTPGenerator_Generate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var req generateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "review the contract", req.Prompt)
		assert.NotEmpty(t, req.Instruction)

		_ = json.NewEncoder(w).Encode(generateResponse{Output: `[{"title":"Read"}]`})
	}))
	defer server.Close()

	gen := NewHTTPGenerator(server.URL, "secret", time.Second)
	out, err := gen.Generate(context.Background(), "review the contract")
	require.NoError(t, err)
	assert.Equal(t, `[{"title":"Read"}]`, out)
}

// TestHTTPGenerator_RetryOnServerError 测试 5xx 重试
func TestHTTPGenerator_RetryOnServerError(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_ = json.NewEncoder(w).Encode(generateResponse{Output: "[]"})
	}))
	defer server.Close()

	gen := NewHTTPGenerator(server.URL, "", time.Second)
	gen.backoff = time.Millisecond

	out, err := gen.Generate(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, "[]", out)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

// TestHTTPGenerator_ClientErrorNotRetried 测试 4xx 不重试
func TestHTTPGenerator_ClientErrorNotRetried(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	gen := NewHTTPGenerator(server.URL, "", time.Second)
	gen.backoff = time.Millisecond

	_, err := gen.Generate(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

// TestHTTPGenerator_GivesUp 测试重试次数用尽
func TestHTTPGenerator_GivesUp(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	gen := NewHTTPGenerator(server.URL, "", time.Second)
	gen.backoff = time.Millisecond

	_, err := gen.Generate(context.Background(), "x")
	require.Error(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

// TestHTTPGenerator_NotConfigured 测试未配置地址
func TestHTTPGenerator_NotConfigured(t *testing.T) {
	_, err := NewHTTPGenerator("", "", 0).Generate(context.Background(), "x")
	assert.ErrorIs(t, err, ErrGeneratorNotConfigured)
}

type recordingNotifier struct {
	name string
	err  error
	mu   sync.Mutex
	sent []Notification
}

func (n *recordingNotifier) Name() string { return n.name }

func (n *recordingNotifier) Send(_ context.Context, notification Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, notification)
	return n.err
}

func (n *recordingNotifier) users() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	users := make([]string, 0, len(n.sent))
	for _, s := range n.sent {
		users = append(users, s.UserID)
	}
	return users
}

// TestDispatcher_FanOut 测试每个用户发送到全部渠道, 单个渠道失败不影响其他渠道
func TestDispatcher_FanOut(t *testing.T) {
	logger, hook := test.NewNullLogger()
	failing := &recordingNotifier{name: "failing", err: errors.New("boom")}
	ok := &recordingNotifier{name: "ok"}

	d := NewDispatcher([]Notifier{failing, ok}, logger, 1, 8)
	d.Notify(context.Background(), []string{"u1", "u2"}, Notification{Kind: "assignment", Message: "hello"})
	require.NoError(t, d.Close())

	assert.Equal(t, []string{"u1", "u2"}, ok.users())
	assert.Equal(t, []string{"u1", "u2"}, failing.users())

	warnings := 0
	for _, entry := range hook.AllEntries() {
		if entry.Level == logrus.WarnLevel {
			warnings++
		}
	}
	assert.Equal(t, 2, warnings)
}

// TestDispatcher_NotifyAfterClose 测试关闭后的通知被忽略
func TestDispatcher_NotifyAfterClose(t *testing.T) {
	logger, _ := test.NewNullLogger()
	n := &recordingNotifier{name: "ok"}
	d := NewDispatcher([]Notifier{n}, logger, 2, 4)
	require.NoError(t, d.Close())
	require.NoError(t, d.Close())

	d.Notify(context.Background(), []string{"u1"}, Notification{Message: "late"})
	assert.Empty(t, n.users())
}

type fakeBroadcaster struct {
	userID  string
	message []byte
}

func (b *fakeBroadcaster) BroadcastToUser(userID string, message []byte) int {
	b.userID = userID
	b.message = message
	return 1
}

// TestHubNotifier_Send 测试 WebSocket 推送内容
func TestHubNotifier_Send(t *testing.T) {
	hub := &fakeBroadcaster{}
	n := NewHubNotifier(hub)
	require.NoError(t, n.Send(context.Background(), Notification{Kind: "archive", UserID: "u1", WorkflowID: "wf-1", Message: "done"}))

	assert.Equal(t, "u1", hub.userID)
	var decoded Notification
	require.NoError(t, json.Unmarshal(hub.message, &decoded))
	assert.Equal(t, "wf-1", decoded.WorkflowID)
	assert.Equal(t, "done", decoded.Message)
}

type fakeWriter struct {
	messages []kafka.Message
	closed   bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

// TestKafkaNotifier_Send 测试 Kafka 消息以用户 ID 为 key
func TestKafkaNotifier_Send(t *testing.T) {
	writer := &fakeWriter{}
	n := NewKafkaNotifier(writer)
	require.NoError(t, n.Send(context.Background(), Notification{Kind: "assignment", UserID: "u9", TaskID: "t-1", Message: "assigned"}))

	require.Len(t, writer.messages, 1)
	assert.Equal(t, "u9", string(writer.messages[0].Key))
	assert.Contains(t, string(writer.messages[0].Value), `"task_id":"t-1"`)

	// Dispatcher 关闭时同时关闭 writer
	d := NewDispatcher([]Notifier{n}, nil, 1, 1)
	require.NoError(t, d.Close())
	assert.True(t, writer.closed)
}

// TestNewKafkaWriter 测试 writer 配置
func TestNewKafkaWriter(t *testing.T) {
	w := NewKafkaWriter([]string{"localhost:9092"}, "docflow.notifications")
	assert.Equal(t, "docflow.notifications", w.Topic)
	assert.Equal(t, "localhost:9092", w.Addr.String())
}
