package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int
	MaxIdle  int
}

// GetDSN 获取数据库连接字符串
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// RedisConfig Redis配置（幂等键 + orphan stream）
type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
}

// IdentityConfig 外部身份服务（GoTrue admin API）配置
// URL 为空时使用内存 provider（仅本地开发）
type IdentityConfig struct {
	URL        string
	ServiceKey string
	Timeout    time.Duration
	RetryCount int
}

// ProvisioningConfig 账户开通 saga 配置
type ProvisioningConfig struct {
	// SystemActorID 审计日志缺省操作人；0 表示写入 NULL
	SystemActorID       int64
	IdempotencyTTL      time.Duration
	CompensationTimeout time.Duration

	OrphanStream      string
	ConsumerGroup     string
	ConsumerName      string
	ReconcileInterval time.Duration
	ReconcileBatch    int64

	DefaultPageSize int
	MaxPageSize     int
	ExportMaxRows   int
}

// Config staff-portal 配置
type Config struct {
	HTTP struct {
		Addr string
	}
	Database     DatabaseConfig
	Redis        RedisConfig
	Identity     IdentityConfig
	Provisioning ProvisioningConfig
	Log          struct {
		Level  string
		Format string
	}
}

// Load 从环境变量加载配置；当前目录存在 .env 时先加载（不覆盖已有环境变量）
func Load() *Config {
	_ = godotenv.Load()

	cfg := &Config{}
	cfg.HTTP.Addr = getEnv("HTTP_ADDR", ":8080")

	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = parseInt(getEnv("DB_PORT", "5432"), 5432)
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.Database.Database = getEnv("DB_NAME", "staff_portal")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")
	cfg.Database.MaxConns = parseInt(getEnv("DB_MAX_CONNS", "20"), 20)
	cfg.Database.MaxIdle = parseInt(getEnv("DB_MAX_IDLE", "5"), 5)

	cfg.Redis.Enabled = getEnv("REDIS_ENABLED", "true") == "true"
	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = parseInt(getEnv("REDIS_DB", "0"), 0)

	cfg.Identity.URL = getEnv("IDENTITY_URL", "")
	cfg.Identity.ServiceKey = getEnv("IDENTITY_SERVICE_KEY", "")
	cfg.Identity.Timeout = parseDuration(getEnv("IDENTITY_TIMEOUT", "10s"), 10*time.Second)
	cfg.Identity.RetryCount = parseInt(getEnv("IDENTITY_RETRY_COUNT", "2"), 2)

	cfg.Provisioning.SystemActorID = int64(parseInt(getEnv("SYSTEM_ACTOR_ID", "0"), 0))
	cfg.Provisioning.IdempotencyTTL = parseDuration(getEnv("IDEMPOTENCY_TTL", "24h"), 24*time.Hour)
	cfg.Provisioning.CompensationTimeout = parseDuration(getEnv("COMPENSATION_TIMEOUT", "15s"), 15*time.Second)
	cfg.Provisioning.OrphanStream = getEnv("ORPHAN_STREAM", "provisioning:orphans")
	cfg.Provisioning.ConsumerGroup = getEnv("ORPHAN_CONSUMER_GROUP", "provisioning-reconciler")
	cfg.Provisioning.ConsumerName = getEnv("ORPHAN_CONSUMER_NAME", "reconciler-1")
	cfg.Provisioning.ReconcileInterval = parseDuration(getEnv("RECONCILE_INTERVAL", "1m"), time.Minute)
	cfg.Provisioning.ReconcileBatch = int64(parseInt(getEnv("RECONCILE_BATCH", "20"), 20))
	cfg.Provisioning.DefaultPageSize = parseInt(getEnv("DEFAULT_PAGE_SIZE", "10"), 10)
	cfg.Provisioning.MaxPageSize = parseInt(getEnv("MAX_PAGE_SIZE", "100"), 100)
	cfg.Provisioning.ExportMaxRows = parseInt(getEnv("EXPORT_MAX_ROWS", "5000"), 5000)

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	return cfg
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt(s string, def int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}

func parseDuration(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
