package container

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mautops/docflow-gin/internal/config"
	"github.com/mautops/docflow-gin/internal/database"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), database.NewGormConfig())
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, database.Migrate(db))
	return db
}

func headerConfig() *config.Config {
	cfg := config.Default()
	cfg.Auth.Mode = "header"
	cfg.Notification.Channels = []string{"log", "websocket"}
	return cfg
}

func TestNewContainerWithDB(t *testing.T) {
	logger, _ := test.NewNullLogger()
	c, err := NewContainerWithDB(headerConfig(), logger, setupTestDB(t))
	require.NoError(t, err)
	defer c.Close()

	services := c.Services()
	assert.NotNil(t, services.Workflow)
	assert.NotNil(t, services.Assignment)
	assert.NotNil(t, services.Archive)

	w := httptest.NewRecorder()
	c.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	collector := c.NewMetricsCollector(0)
	collector.CollectOnce()
}

func TestNewContainerConfigErrors(t *testing.T) {
	logger, _ := test.NewNullLogger()

	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"unknown channel", func(cfg *config.Config) { cfg.Notification.Channels = []string{"pigeon"} }},
		{"kafka without brokers", func(cfg *config.Config) { cfg.Notification.Channels = []string{"kafka"} }},
		{"keycloak without issuer", func(cfg *config.Config) { cfg.Auth.Mode = "keycloak" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := headerConfig()
			tt.mutate(cfg)
			_, err := NewContainerWithDB(cfg, logger, setupTestDB(t))
			assert.Error(t, err)
		})
	}
}

func TestKafkaChannel(t *testing.T) {
	logger, _ := test.NewNullLogger()
	cfg := headerConfig()
	cfg.Notification.Channels = []string{"kafka"}
	cfg.Notification.Brokers = []string{"localhost:9092"}

	c, err := NewContainerWithDB(cfg, logger, setupTestDB(t))
	require.NoError(t, err)
	// 没有发送消息时关闭不会连接 broker
	assert.NoError(t, c.Close())
}
