package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 应用配置
type Config struct {
	Env          string             `mapstructure:"env"` // 环境: development, production
	Server       ServerConfig       `mapstructure:"server"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Auth         AuthConfig         `mapstructure:"auth"`
	Redis        RedisConfig        `mapstructure:"redis"`
	Generator    GeneratorConfig    `mapstructure:"generator"`
	Notification NotificationConfig `mapstructure:"notification"`
	Assignment   AssignmentConfig   `mapstructure:"assignment"`
	Archive      ArchiveConfig      `mapstructure:"archive"`
	Tracing      TracingConfig      `mapstructure:"tracing"`
	CORS         CORSConfig         `mapstructure:"cors"`
	Log          LogConfig          `mapstructure:"log"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host           string  `mapstructure:"host"`
	Port           int     `mapstructure:"port"`
	RateLimitRPS   float64 `mapstructure:"rate_limit_rps"` // 0 表示不限流
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	DBName          string `mapstructure:"dbname"`
	SSLMode         string `mapstructure:"sslmode"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`  // 秒
	ConnMaxIdleTime int    `mapstructure:"conn_max_idle_time"` // 秒
}

// AuthConfig 认证配置
type AuthConfig struct {
	Mode              string `mapstructure:"mode"` // keycloak: 校验 JWT; header: 信任网关注入的 X-User-ID / X-User-Role
	Issuer            string `mapstructure:"issuer"`
	JWKSURL           string `mapstructure:"jwks_url"`
	RevocationEnabled bool   `mapstructure:"revocation_enabled"`
}

// RedisConfig Redis 配置（令牌吊销列表）
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// GeneratorConfig 外部文本生成服务配置
type GeneratorConfig struct {
	URL            string `mapstructure:"url"`
	APIKey         string `mapstructure:"api_key"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// NotificationConfig 通知配置
type NotificationConfig struct {
	Channels []string `mapstructure:"channels"` // log, websocket, kafka
	Brokers  []string `mapstructure:"brokers"`
	Topic    string   `mapstructure:"topic"`
}

// AssignmentConfig 自动分配的角色名配置
type AssignmentConfig struct {
	DirectorRole string `mapstructure:"director_role"`
	ManagerRole  string `mapstructure:"manager_role"`
	EmployeeRole string `mapstructure:"employee_role"`
}

// ArchiveConfig 归档配置
type ArchiveConfig struct {
	DefaultReport string `mapstructure:"default_report"` // 自动归档时的默认报告, {workflow} 替换为工作流名称
}

// TracingConfig 链路追踪配置
type TracingConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	ServiceName string `mapstructure:"service_name"`
	Output      string `mapstructure:"output"` // 为空时输出到 stdout
}

// CORSConfig CORS 配置
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
	AllowedHeaders []string `mapstructure:"allowed_headers"`
	MaxAge         int      `mapstructure:"max_age"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `mapstructure:"level"`  // 日志级别: debug, info, warn, error
	Format string `mapstructure:"format"` // 日志格式: json, text
	Output string `mapstructure:"output"` // 输出位置: stdout, file, both
	File   string `mapstructure:"file"`   // output 为 file 或 both 时的日志文件
}

// Load 加载配置,支持配置文件和环境变量
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// 设置默认值
	setDefaults(v)

	// 如果提供了配置文件路径,从文件加载
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("$HOME/.docflow-gin")
		// 忽略配置文件不存在的错误,使用默认值
		_ = v.ReadInConfig()
	}

	// 支持环境变量
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// LoadDotEnv 将 .env 文件中的变量写入进程环境, 已存在的环境变量不会被覆盖
// 文件不存在时忽略
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, path := range paths {
		if err := godotenv.Load(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load %s: %w", path, err)
		}
	}
	return nil
}

// IsProduction 判断是否为生产环境
func IsProduction(cfg *Config) bool {
	if cfg == nil {
		return false
	}
	return cfg.Env == "production"
}

// Default 返回默认配置
func Default() *Config {
	v := viper.New()
	setDefaults(v)

	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// setDefaults 设置配置默认值
func setDefaults(v *viper.Viper) {
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}
	v.SetDefault("env", env)

	// 服务器默认配置
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.rate_limit_rps", 0)
	v.SetDefault("server.rate_limit_burst", 50)

	// 数据库默认配置
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "docflow")
	v.SetDefault("database.sslmode", "disable")

	// 数据库连接池配置（根据环境设置默认值）
	if env == "production" {
		v.SetDefault("database.max_idle_conns", 20)
		v.SetDefault("database.max_open_conns", 200)
		v.SetDefault("database.conn_max_lifetime", 3600)
		v.SetDefault("database.conn_max_idle_time", 300)
	} else {
		v.SetDefault("database.max_idle_conns", 10)
		v.SetDefault("database.max_open_conns", 100)
		v.SetDefault("database.conn_max_lifetime", 3600)
		v.SetDefault("database.conn_max_idle_time", 600)
	}

	// 认证默认配置
	v.SetDefault("auth.mode", "keycloak")
	v.SetDefault("auth.issuer", "")
	v.SetDefault("auth.jwks_url", "")
	v.SetDefault("auth.revocation_enabled", false)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("generator.url", "")
	v.SetDefault("generator.api_key", "")
	v.SetDefault("generator.timeout_seconds", 30)

	v.SetDefault("notification.channels", []string{"log"})
	v.SetDefault("notification.brokers", []string{})
	v.SetDefault("notification.topic", "docflow.notifications")

	v.SetDefault("assignment.director_role", "director")
	v.SetDefault("assignment.manager_role", "manager")
	v.SetDefault("assignment.employee_role", "employee")

	v.SetDefault("archive.default_report", `Workflow "{workflow}" completed; archived automatically.`)

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "docflow-gin")
	v.SetDefault("tracing.output", "")

	// CORS 默认配置
	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("cors.allowed_methods", []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"})
	v.SetDefault("cors.allowed_headers", []string{"Content-Type", "Authorization", "X-Request-ID", "X-User-ID", "X-User-Role"})
	v.SetDefault("cors.max_age", 86400)

	// 日志配置（根据环境设置默认值）
	if env == "production" {
		v.SetDefault("log.level", "warn")
		v.SetDefault("log.format", "json")
	} else {
		v.SetDefault("log.level", "debug")
		v.SetDefault("log.format", "text")
	}
	v.SetDefault("log.output", "stdout")
	v.SetDefault("log.file", "logs/docflow-gin.log")
}
