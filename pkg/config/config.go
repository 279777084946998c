package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	CORS     CORSConfig
	Log      LogConfig
	Storage  StorageConfig
	Shares   ShareConfig
	Stats    StatsConfig
	Uploads  UploadConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret   string
	Issuer   string
	Audience []string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// StorageConfig points the blob layer at an S3 bucket.
type StorageConfig struct {
	Bucket       string
	Region       string
	Endpoint     string
	PresignTTL   time.Duration
	UsePathStyle bool
}

// ShareConfig tunes share-link defaults.
type ShareConfig struct {
	DefaultTTL    time.Duration
	BcryptCost    int
	PublicBaseURL string
}

// StatsConfig controls rollup caching and reconciliation.
type StatsConfig struct {
	CacheTTL          time.Duration
	ReconcileInterval time.Duration
	WorkerConcurrency int
	WorkerRetries     int
}

// UploadConfig bounds incoming file metadata registration.
type UploadConfig struct {
	MaxFileSizeBytes int64
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:   v.GetString("JWT_SECRET"),
		Issuer:   v.GetString("JWT_ISSUER"),
		Audience: splitAndTrim(v.GetString("JWT_AUDIENCE")),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Storage = StorageConfig{
		Bucket:       v.GetString("S3_BUCKET"),
		Region:       v.GetString("S3_REGION"),
		Endpoint:     v.GetString("S3_ENDPOINT"),
		PresignTTL:   parseDuration(v.GetString("S3_PRESIGN_TTL"), 15*time.Minute),
		UsePathStyle: v.GetBool("S3_USE_PATH_STYLE"),
	}

	cfg.Shares = ShareConfig{
		DefaultTTL:    parseDuration(v.GetString("SHARE_DEFAULT_TTL"), 0),
		BcryptCost:    v.GetInt("SHARE_BCRYPT_COST"),
		PublicBaseURL: v.GetString("SHARE_PUBLIC_BASE_URL"),
	}

	cfg.Stats = StatsConfig{
		CacheTTL:          parseDuration(v.GetString("STATS_CACHE_TTL"), 5*time.Minute),
		ReconcileInterval: parseDuration(v.GetString("STATS_RECONCILE_INTERVAL"), time.Hour),
		WorkerConcurrency: v.GetInt("STATS_WORKER_CONCURRENCY"),
		WorkerRetries:     v.GetInt("STATS_WORKER_RETRIES"),
	}

	maxUploadSize := v.GetInt64("UPLOAD_MAX_FILE_SIZE")
	if maxUploadSize <= 0 {
		maxUploadSize = 5 * 1024 * 1024 * 1024
	}
	cfg.Uploads = UploadConfig{MaxFileSizeBytes: maxUploadSize}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "drivehub")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "drivehub")
	v.SetDefault("JWT_AUDIENCE", "")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("S3_BUCKET", "drivehub-dev")
	v.SetDefault("S3_REGION", "us-east-1")
	v.SetDefault("S3_ENDPOINT", "")
	v.SetDefault("S3_PRESIGN_TTL", "15m")
	v.SetDefault("S3_USE_PATH_STYLE", false)

	v.SetDefault("SHARE_DEFAULT_TTL", "0")
	v.SetDefault("SHARE_BCRYPT_COST", 10)
	v.SetDefault("SHARE_PUBLIC_BASE_URL", "http://localhost:8080")

	v.SetDefault("STATS_CACHE_TTL", "5m")
	v.SetDefault("STATS_RECONCILE_INTERVAL", "1h")
	v.SetDefault("STATS_WORKER_CONCURRENCY", 1)
	v.SetDefault("STATS_WORKER_RETRIES", 3)

	v.SetDefault("UPLOAD_MAX_FILE_SIZE", 5*1024*1024*1024)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
