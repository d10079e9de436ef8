package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/bankdash/bankdash/backend/go-gateway/pkg/logger"
)

// Config holds application configuration
type Config struct {
	Server    ServerConfig
	API       APIConfig
	Session   SessionConfig
	Watchdog  WatchdogConfig
	Cache     CacheConfig
	Storage   StorageConfig
	MongoDB   MongoDBConfig
	Redis     RedisConfig
	MinIO     MinIOConfig
	RateLimit RateLimitConfig
	LogLevel  string
}

type ServerConfig struct {
	Port         string
	Host         string
	Environment  string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// APIConfig describes the upstream banking REST backend.
type APIConfig struct {
	BaseURL          string
	Timeout          time.Duration
	ResponseCacheTTL time.Duration
	PaymentPath      string
	RefreshPath      string
}

type SessionConfig struct {
	// LegacyRefreshFallback reuses the access token as refresh token when none is stored.
	LegacyRefreshFallback bool
	RevocationTTL         time.Duration
}

type WatchdogConfig struct {
	Enabled  bool
	Interval time.Duration
}

// CacheConfig holds per-resource freshness windows.
type CacheConfig struct {
	AccountsTTL           time.Duration
	AccountDetailsTTL     time.Duration
	StatementsTTL         time.Duration
	TransactionsTTL       time.Duration
	TransactionDetailsTTL time.Duration
	PayeesTTL             time.Duration
	BillersTTL            time.Duration
	SavedBillersTTL       time.Duration
}

// StorageConfig selects the persistent store backend: memory, redis, mongo or minio.
type StorageConfig struct {
	Backend string
	Prefix  string
}

type MongoDBConfig struct {
	URI        string
	Database   string
	Collection string
	Timeout    time.Duration
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// Addr returns host:port, or "" when Redis is not configured.
func (r RedisConfig) Addr() string {
	if r.Host == "" {
		return ""
	}
	return r.Host + ":" + r.Port
}

type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
}

type RateLimitConfig struct {
	Enabled       bool
	UseRedis      bool
	RPS           float64
	Burst         int
	WindowSeconds int
}

// LoadConfig loads configuration from environment variables and .env file
func LoadConfig() (*Config, error) {
	_ = godotenv.Load(".env")

	viper.AutomaticEnv()

	viper.SetDefault("SERVER_PORT", "5002")
	viper.SetDefault("SERVER_HOST", "0.0.0.0")
	viper.SetDefault("SERVER_ENVIRONMENT", "development")
	viper.SetDefault("API_BASE_URL", "http://localhost:5000/api")
	viper.SetDefault("API_TIMEOUT_MS", 10000)
	viper.SetDefault("API_RESPONSE_CACHE_TTL_MS", 30000)
	viper.SetDefault("API_PAYMENT_PATH", "/transactions/payment")
	viper.SetDefault("API_REFRESH_PATH", "/auth/refresh-token")
	viper.SetDefault("SESSION_LEGACY_REFRESH_FALLBACK", false)
	viper.SetDefault("SESSION_REVOCATION_TTL_MINUTES", 1440)
	viper.SetDefault("WATCHDOG_ENABLED", true)
	viper.SetDefault("WATCHDOG_INTERVAL_MS", 2000)
	viper.SetDefault("CACHE_ACCOUNTS_TTL_MS", 30000)
	viper.SetDefault("CACHE_ACCOUNT_DETAILS_TTL_MS", 30000)
	viper.SetDefault("CACHE_STATEMENTS_TTL_MS", 60000)
	viper.SetDefault("CACHE_TRANSACTIONS_TTL_MS", 30000)
	viper.SetDefault("CACHE_TRANSACTION_DETAILS_TTL_MS", 60000)
	viper.SetDefault("CACHE_PAYEES_TTL_MS", 60000)
	viper.SetDefault("CACHE_BILLERS_TTL_MS", 60000)
	viper.SetDefault("CACHE_SAVED_BILLERS_TTL_MS", 30000)
	viper.SetDefault("STORAGE_BACKEND", "memory")
	viper.SetDefault("STORAGE_PREFIX", "bankdash:")
	viper.SetDefault("MONGODB_DATABASE", "bankdash")
	viper.SetDefault("MONGODB_COLLECTION", "client_storage")
	viper.SetDefault("MONGODB_TIMEOUT", 10)
	viper.SetDefault("REDIS_PORT", "6379")
	viper.SetDefault("MINIO_BUCKET", "bankdash-session")
	viper.SetDefault("RATE_LIMIT_ENABLED", false)
	viper.SetDefault("RATE_LIMIT_RPS", 20)
	viper.SetDefault("RATE_LIMIT_BURST", 40)
	viper.SetDefault("RATE_LIMIT_WINDOW_SECONDS", 1)
	viper.SetDefault("LOG_LEVEL", "info")

	cfg := &Config{
		Server: ServerConfig{
			Port:         viper.GetString("SERVER_PORT"),
			Host:         viper.GetString("SERVER_HOST"),
			Environment:  viper.GetString("SERVER_ENVIRONMENT"),
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		API: APIConfig{
			BaseURL:          strings.TrimRight(viper.GetString("API_BASE_URL"), "/"),
			Timeout:          millis("API_TIMEOUT_MS"),
			ResponseCacheTTL: millis("API_RESPONSE_CACHE_TTL_MS"),
			PaymentPath:      viper.GetString("API_PAYMENT_PATH"),
			RefreshPath:      viper.GetString("API_REFRESH_PATH"),
		},
		Session: SessionConfig{
			LegacyRefreshFallback: viper.GetBool("SESSION_LEGACY_REFRESH_FALLBACK"),
			RevocationTTL:         time.Duration(viper.GetInt("SESSION_REVOCATION_TTL_MINUTES")) * time.Minute,
		},
		Watchdog: WatchdogConfig{
			Enabled:  viper.GetBool("WATCHDOG_ENABLED"),
			Interval: millis("WATCHDOG_INTERVAL_MS"),
		},
		Cache: CacheConfig{
			AccountsTTL:           millis("CACHE_ACCOUNTS_TTL_MS"),
			AccountDetailsTTL:     millis("CACHE_ACCOUNT_DETAILS_TTL_MS"),
			StatementsTTL:         millis("CACHE_STATEMENTS_TTL_MS"),
			TransactionsTTL:       millis("CACHE_TRANSACTIONS_TTL_MS"),
			TransactionDetailsTTL: millis("CACHE_TRANSACTION_DETAILS_TTL_MS"),
			PayeesTTL:             millis("CACHE_PAYEES_TTL_MS"),
			BillersTTL:            millis("CACHE_BILLERS_TTL_MS"),
			SavedBillersTTL:       millis("CACHE_SAVED_BILLERS_TTL_MS"),
		},
		Storage: StorageConfig{
			Backend: strings.ToLower(viper.GetString("STORAGE_BACKEND")),
			Prefix:  viper.GetString("STORAGE_PREFIX"),
		},
		MongoDB: MongoDBConfig{
			URI:        viper.GetString("MONGODB_URI"),
			Database:   viper.GetString("MONGODB_DATABASE"),
			Collection: viper.GetString("MONGODB_COLLECTION"),
			Timeout:    time.Duration(viper.GetInt("MONGODB_TIMEOUT")) * time.Second,
		},
		Redis: RedisConfig{
			Host:     viper.GetString("REDIS_HOST"),
			Port:     viper.GetString("REDIS_PORT"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       viper.GetInt("REDIS_DB"),
		},
		MinIO: MinIOConfig{
			Endpoint:  viper.GetString("MINIO_ENDPOINT"),
			AccessKey: viper.GetString("MINIO_ACCESS_KEY"),
			SecretKey: os.Getenv("MINIO_SECRET_KEY"),
			UseSSL:    viper.GetBool("MINIO_USE_SSL"),
			Bucket:    viper.GetString("MINIO_BUCKET"),
		},
		RateLimit: RateLimitConfig{
			Enabled:       viper.GetBool("RATE_LIMIT_ENABLED"),
			UseRedis:      viper.GetBool("RATE_LIMIT_USE_REDIS"),
			RPS:           viper.GetFloat64("RATE_LIMIT_RPS"),
			Burst:         viper.GetInt("RATE_LIMIT_BURST"),
			WindowSeconds: viper.GetInt("RATE_LIMIT_WINDOW_SECONDS"),
		},
		LogLevel: viper.GetString("LOG_LEVEL"),
	}

	if cfg.Session.LegacyRefreshFallback {
		logger.Warnf("SESSION_LEGACY_REFRESH_FALLBACK is enabled; the access token will be reused as refresh token when none is stored")
	}
	switch cfg.Storage.Backend {
	case "redis":
		if cfg.Redis.Host == "" {
			logger.Warnf("STORAGE_BACKEND=redis but REDIS_HOST is empty; falling back to memory")
			cfg.Storage.Backend = "memory"
		}
	case "mongo":
		if cfg.MongoDB.URI == "" {
			logger.Warnf("STORAGE_BACKEND=mongo but MONGODB_URI is empty; falling back to memory")
			cfg.Storage.Backend = "memory"
		}
	case "minio":
		if cfg.MinIO.Endpoint == "" {
			logger.Warnf("STORAGE_BACKEND=minio but MINIO_ENDPOINT is empty; falling back to memory")
			cfg.Storage.Backend = "memory"
		}
	case "memory":
	default:
		logger.Warnf("unknown STORAGE_BACKEND %q; using memory", cfg.Storage.Backend)
		cfg.Storage.Backend = "memory"
	}

	return cfg, nil
}

func millis(key string) time.Duration {
	return time.Duration(viper.GetInt64(key)) * time.Millisecond
}
