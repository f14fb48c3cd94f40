package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	BlobBackendLocal = "local"
	BlobBackendS3    = "s3"

	DocBackendBadger   = "badger"
	DocBackendPostgres = "postgres"
	DocBackendRedis    = "redis"
)

type Config struct {
	ServerPort         string        `mapstructure:"SERVER_PORT"`
	PublicBaseURL      string        `mapstructure:"PUBLIC_BASE_URL"`
	ShutdownTimeout    time.Duration `mapstructure:"SHUTDOWN_TIMEOUT"`
	IngestTimeout      time.Duration `mapstructure:"INGEST_TIMEOUT"`
	MaxUploadBytes     int64         `mapstructure:"MAX_UPLOAD_BYTES"`
	CORSAllowedOrigins []string      `mapstructure:"CORS_ALLOWED_ORIGINS"`
	LogLevel           string        `mapstructure:"LOG_LEVEL"`
	LogFormat          string        `mapstructure:"LOG_FORMAT"`

	BlobBackend    string        `mapstructure:"BLOB_BACKEND"`
	BlobLocalDir   string        `mapstructure:"BLOB_LOCAL_DIR"`
	BlobSigningKey string        `mapstructure:"BLOB_SIGNING_KEY"`
	BlobURLExpiry  time.Duration `mapstructure:"BLOB_URL_EXPIRY"`

	S3Endpoint        string `mapstructure:"S3_ENDPOINT"`
	S3Region          string `mapstructure:"S3_REGION"`
	S3BucketName      string `mapstructure:"S3_BUCKET"`
	S3AccessKeyID     string `mapstructure:"S3_ACCESS_KEY_ID"`
	S3SecretAccessKey string `mapstructure:"S3_SECRET_ACCESS_KEY"`

	DocBackend string `mapstructure:"DOC_BACKEND"`
	BadgerDir  string `mapstructure:"BADGER_DIR"`

	Host     string `mapstructure:"DB_HOST"`
	User     string `mapstructure:"DB_USER"`
	Password string `mapstructure:"DB_PASSWORD"`
	Name     string `mapstructure:"DB_NAME"`
	DBPort   string `mapstructure:"DB_PORT"`
	SSLMode  string `mapstructure:"DB_SSLMODE"`

	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`
}

var defaults = map[string]any{
	"SERVER_PORT":          "5000",
	"PUBLIC_BASE_URL":      "",
	"SHUTDOWN_TIMEOUT":     "10s",
	"INGEST_TIMEOUT":       "60s",
	"MAX_UPLOAD_BYTES":     int64(512 << 20),
	"CORS_ALLOWED_ORIGINS": "*",
	"LOG_LEVEL":            "info",
	"LOG_FORMAT":           "text",

	"BLOB_BACKEND":     BlobBackendLocal,
	"BLOB_LOCAL_DIR":   "./data/blobs",
	"BLOB_SIGNING_KEY": "",
	// 10 years. Effectively permanent read access for anyone holding the URL.
	"BLOB_URL_EXPIRY": "87600h",

	"S3_ENDPOINT":          "",
	"S3_REGION":            "us-east-1",
	"S3_BUCKET":            "",
	"S3_ACCESS_KEY_ID":     "",
	"S3_SECRET_ACCESS_KEY": "",

	"DOC_BACKEND": DocBackendBadger,
	"BADGER_DIR":  "./data/docs",

	"DB_HOST":     "",
	"DB_USER":     "",
	"DB_PASSWORD": "",
	"DB_NAME":     "",
	"DB_PORT":     "5432",
	"DB_SSLMODE":  "disable",

	"REDIS_ADDR":     "localhost:6379",
	"REDIS_PASSWORD": "",
	"REDIS_DB":       0,
}

// Load reads the optional env file and the process environment.
func Load(envFile string) (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			v.SetConfigFile(envFile)
			v.SetConfigType("env")
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read %s: %w", envFile, err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	c.BlobBackend = strings.ToLower(strings.TrimSpace(c.BlobBackend))
	c.DocBackend = strings.ToLower(strings.TrimSpace(c.DocBackend))

	if c.ServerPort == "" {
		return fmt.Errorf("SERVER_PORT is required")
	}

	if c.PublicBaseURL == "" {
		c.PublicBaseURL = "http://localhost:" + c.ServerPort
	}
	c.PublicBaseURL = strings.TrimRight(c.PublicBaseURL, "/")

	if c.IngestTimeout <= 0 {
		return fmt.Errorf("INGEST_TIMEOUT must be positive")
	}

	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be positive")
	}

	switch c.BlobBackend {
	case BlobBackendLocal:
		if c.BlobSigningKey == "" {
			return fmt.Errorf("BLOB_SIGNING_KEY is required")
		}
		if c.BlobLocalDir == "" {
			return fmt.Errorf("BLOB_LOCAL_DIR is required")
		}
	case BlobBackendS3:
		if c.S3BucketName == "" {
			return fmt.Errorf("S3_BUCKET is required")
		}
	default:
		return fmt.Errorf("unknown BLOB_BACKEND %q", c.BlobBackend)
	}

	switch c.DocBackend {
	case DocBackendBadger:
		if c.BadgerDir == "" {
			return fmt.Errorf("BADGER_DIR is required")
		}
	case DocBackendPostgres:
		if c.User == "" {
			return fmt.Errorf("DB_USER is required")
		}
		if c.Password == "" {
			return fmt.Errorf("DB_PASSWORD is required")
		}
		if c.Name == "" {
			return fmt.Errorf("DB_NAME is required")
		}
		if c.DBPort == "" {
			return fmt.Errorf("DB_PORT is required")
		}
		if c.Host == "" {
			return fmt.Errorf("DB_HOST is required")
		}
	case DocBackendRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("REDIS_ADDR is required")
		}
	default:
		return fmt.Errorf("unknown DOC_BACKEND %q", c.DocBackend)
	}

	return nil
}

// DSN builds a libpq style connection string for the postgres document store.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.DBPort, c.User, c.Password, c.Name, c.SSLMode)
}
