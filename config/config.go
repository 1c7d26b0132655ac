package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	JWT        JWTConfig
	AWS        AWSConfig
	Primary    PrimaryConfig
	Secondary  SecondaryConfig
	Relay      RelayConfig
	Publishing PublishingConfig
	Worker     WorkerConfig
	Thumbnails ThumbnailsConfig
	Admin      AdminConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string
	ReadTimeout        int
	WriteTimeout       int
	CORSAllowedOrigins string // comma-separated, or "*" for all
	// ChatSessionTTL bounds how long an idle chat dialogue is remembered.
	ChatSessionTTL time.Duration
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL      string // if set, used as-is
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// JWTConfig holds JWT signing and validation settings.
type JWTConfig struct {
	Secret      string
	ExpireHours int
}

// AWSConfig holds credentials and the thumbnails bucket. An empty bucket
// disables base image uploads.
type AWSConfig struct {
	Region           string
	AccessKeyID      string
	SecretAccessKey  string
	ThumbnailsBucket string
	Endpoint         string
	PublicBaseURL    string
}

// PrimaryConfig holds the OAuth credentials of the primary platform channel.
type PrimaryConfig struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
	IngestURL    string
	PlaylistURL  string
}

// SecondaryConfig holds the secondary platform API settings. An empty
// token disables the secondary platform.
type SecondaryConfig struct {
	Token   string
	GroupID int64
	Version string
	BaseURL string
}

// RelayConfig holds the relay API settings. An empty API URL disables the relay.
type RelayConfig struct {
	APIURL  string
	RTMPURL string
	Timeout time.Duration
}

// PublishingConfig tunes the publishing engine.
type PublishingConfig struct {
	CallTimeout time.Duration
	Year        string
	Program     string
}

// WorkerConfig configures retries and reconciliation.
type WorkerConfig struct {
	ReconcileCron string
	RetryBackoff  time.Duration
}

// ThumbnailsConfig points at optional palette overrides.
type ThumbnailsConfig struct {
	PaletteFile string
}

// AdminConfig bootstraps the first owner account.
type AdminConfig struct {
	OwnerLogin    string
	OwnerPassword string
}

// DSN returns the PostgreSQL connection string.
// If DatabaseConfig.URL is set it is used as-is; otherwise built from components.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()      // .env
	_ = godotenv.Load("env") // env (no leading dot)

	secondaryGroup, err := strconv.ParseInt(getEnv("SECONDARY_GROUP_ID", "0"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("SECONDARY_GROUP_ID: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "8080"),
			ReadTimeout:        getEnvInt("READ_TIMEOUT_SEC", 30),
			WriteTimeout:       getEnvInt("WRITE_TIMEOUT_SEC", 60),
			CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000"),
			ChatSessionTTL:     getEnvDuration("CHAT_SESSION_TTL", 2*time.Hour),
		},
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", ""),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "broadcaster"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			MaxConns: getEnvInt("DB_MAX_CONNS", 10),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		JWT: JWTConfig{
			Secret:      getEnv("JWT_SECRET", "change-me-in-production"),
			ExpireHours: getEnvInt("JWT_EXPIRE_HOURS", 24),
		},
		AWS: AWSConfig{
			Region:           getEnv("AWS_REGION", "eu-central-1"),
			AccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
			ThumbnailsBucket: getEnv("AWS_S3_THUMBNAILS_BUCKET", ""),
			Endpoint:         getEnv("AWS_S3_ENDPOINT", ""),
			PublicBaseURL:    getEnv("AWS_S3_PUBLIC_BASE_URL", ""),
		},
		Primary: PrimaryConfig{
			ClientID:     getEnv("PRIMARY_CLIENT_ID", ""),
			ClientSecret: getEnv("PRIMARY_CLIENT_SECRET", ""),
			RefreshToken: getEnv("PRIMARY_REFRESH_TOKEN", ""),
			IngestURL:    getEnv("PRIMARY_INGEST_URL", "rtmp://a.rtmp.youtube.com/live2"),
			PlaylistURL:  getEnv("PRIMARY_PLAYLIST_URL", "https://www.youtube.com/playlist?list="),
		},
		Secondary: SecondaryConfig{
			Token:   getEnv("SECONDARY_TOKEN", ""),
			GroupID: secondaryGroup,
			Version: getEnv("SECONDARY_API_VERSION", "5.131"),
			BaseURL: getEnv("SECONDARY_BASE_URL", "https://api.vk.com/method/"),
		},
		Relay: RelayConfig{
			APIURL:  getEnv("RELAY_API_URL", ""),
			RTMPURL: getEnv("RELAY_RTMP_URL", ""),
			Timeout: getEnvDuration("RELAY_TIMEOUT", 3*time.Second),
		},
		Publishing: PublishingConfig{
			CallTimeout: getEnvDuration("PLATFORM_CALL_TIMEOUT", 20*time.Second),
			Year:        getEnv("PUBLISHING_YEAR", ""),
			Program:     getEnv("PUBLISHING_PROGRAM", ""),
		},
		Worker: WorkerConfig{
			ReconcileCron: getEnv("WORKER_RECONCILE_CRON", "*/1 * * * *"),
			RetryBackoff:  getEnvDuration("WORKER_RETRY_BACKOFF", 10*time.Second),
		},
		Thumbnails: ThumbnailsConfig{
			PaletteFile: getEnv("THUMBNAILS_PALETTE_FILE", ""),
		},
		Admin: AdminConfig{
			OwnerLogin:    getEnv("ADMIN_OWNER_LOGIN", ""),
			OwnerPassword: getEnv("ADMIN_OWNER_PASSWORD", ""),
		},
	}
	return cfg, nil
}

// AllowedOrigins splits the comma-separated CORS origin list.
func (c ServerConfig) AllowedOrigins() []string {
	var out []string
	for _, o := range strings.Split(c.CORSAllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

// getEnvDuration accepts Go durations ("20s") or plain seconds ("20").
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	return fallback
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
