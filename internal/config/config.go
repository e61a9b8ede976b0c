package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	StoreDriverMongo  = "mongo"
	StoreDriverMemory = "memory"
)

type Config struct {
	ServiceName     string
	HTTPPort        string
	GRPCPort        string
	MetricsPort     string
	ShutdownTimeout time.Duration
	StoreTimeout    time.Duration

	StoreDriver   string
	MongoURI      string
	MongoDatabase string

	MinIOEndpoint      string
	MinIOAccessKey     string
	MinIOSecretKey     string
	MinIOBucket        string
	MinIOUseSSL        bool
	MediaPublicBaseURL string

	RedisAddress string
	CacheTTL     time.Duration

	NATSURL string

	JWTSecret     string
	JWTCookieName string

	ListingPageSize int

	OTLPEndpoint string

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
	NotifyEmail  string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVICE_NAME", "annonce-service")
	v.SetDefault("HTTP_PORT", "8080")
	v.SetDefault("GRPC_PORT", "50052")
	v.SetDefault("PROMETHEUS_METRICS_PORT", "9094")
	v.SetDefault("SHUTDOWN_TIMEOUT", "15s")
	v.SetDefault("STORE_TIMEOUT", "10s")
	v.SetDefault("STORE_DRIVER", StoreDriverMongo)
	v.SetDefault("MONGO_URI", "mongodb://localhost:27017")
	v.SetDefault("MONGO_DATABASE", "annonces")
	v.SetDefault("MINIO_ENDPOINT", "localhost:9000")
	v.SetDefault("MINIO_ACCESS_KEY", "minioadmin")
	v.SetDefault("MINIO_SECRET_KEY", "minioadmin")
	v.SetDefault("MINIO_BUCKET", "annonces-images")
	v.SetDefault("MINIO_USE_SSL", false)
	v.SetDefault("MEDIA_PUBLIC_BASE_URL", "")
	v.SetDefault("REDIS_ADDRESS", "")
	v.SetDefault("CACHE_TTL", "1h")
	v.SetDefault("NATS_URL", "")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("JWT_COOKIE_NAME", "jwt")
	v.SetDefault("LISTING_PAGE_SIZE", 6)
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("SMTP_HOST", "")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("SMTP_USERNAME", "")
	v.SetDefault("SMTP_PASSWORD", "")
	v.SetDefault("SMTP_FROM", "")
	v.SetDefault("NOTIFY_EMAIL", "")
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	setDefaults(v)
	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		ServiceName:        v.GetString("SERVICE_NAME"),
		HTTPPort:           v.GetString("HTTP_PORT"),
		GRPCPort:           v.GetString("GRPC_PORT"),
		MetricsPort:        v.GetString("PROMETHEUS_METRICS_PORT"),
		ShutdownTimeout:    v.GetDuration("SHUTDOWN_TIMEOUT"),
		StoreTimeout:       v.GetDuration("STORE_TIMEOUT"),
		StoreDriver:        strings.ToLower(v.GetString("STORE_DRIVER")),
		MongoURI:           v.GetString("MONGO_URI"),
		MongoDatabase:      v.GetString("MONGO_DATABASE"),
		MinIOEndpoint:      v.GetString("MINIO_ENDPOINT"),
		MinIOAccessKey:     v.GetString("MINIO_ACCESS_KEY"),
		MinIOSecretKey:     v.GetString("MINIO_SECRET_KEY"),
		MinIOBucket:        v.GetString("MINIO_BUCKET"),
		MinIOUseSSL:        v.GetBool("MINIO_USE_SSL"),
		MediaPublicBaseURL: strings.TrimRight(v.GetString("MEDIA_PUBLIC_BASE_URL"), "/"),
		RedisAddress:       v.GetString("REDIS_ADDRESS"),
		CacheTTL:           v.GetDuration("CACHE_TTL"),
		NATSURL:            v.GetString("NATS_URL"),
		JWTSecret:          v.GetString("JWT_SECRET"),
		JWTCookieName:      v.GetString("JWT_COOKIE_NAME"),
		ListingPageSize:    v.GetInt("LISTING_PAGE_SIZE"),
		OTLPEndpoint:       v.GetString("OTEL_EXPORTER_OTLP_ENDPOINT"),
		SMTPHost:           v.GetString("SMTP_HOST"),
		SMTPPort:           v.GetInt("SMTP_PORT"),
		SMTPUsername:       v.GetString("SMTP_USERNAME"),
		SMTPPassword:       v.GetString("SMTP_PASSWORD"),
		SMTPFrom:           v.GetString("SMTP_FROM"),
		NotifyEmail:        v.GetString("NOTIFY_EMAIL"),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.JWTSecret == "" || c.JWTSecret == "your-secret-key" {
		return errors.New("config: JWT_SECRET must be set to a non-default value")
	}
	if c.StoreDriver != StoreDriverMongo && c.StoreDriver != StoreDriverMemory {
		return fmt.Errorf("config: unknown STORE_DRIVER %q", c.StoreDriver)
	}
	if c.ListingPageSize <= 0 {
		return fmt.Errorf("config: LISTING_PAGE_SIZE must be positive, got %d", c.ListingPageSize)
	}
	if c.StoreTimeout <= 0 {
		c.StoreTimeout = 10 * time.Second
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 15 * time.Second
	}
	if c.JWTCookieName == "" {
		c.JWTCookieName = "jwt"
	}
	return nil
}
