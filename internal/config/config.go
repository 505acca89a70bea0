package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	LogLevel       string               `yaml:"log_level"`
	Server         ServerConfig         `yaml:"server"`
	Database       DatabaseConfig       `yaml:"database"`
	Redis          RedisConfig          `yaml:"redis"`
	Auth           AuthConfig           `yaml:"auth"`
	Lifecycle      LifecycleConfig      `yaml:"lifecycle"`
	Audit          AuditConfig          `yaml:"audit"`
	RateLimit      RateLimitConfig      `yaml:"rate_limit"`
	Retention      RetentionConfig      `yaml:"retention"`
	Archive        ArchiveConfig        `yaml:"archive"`
	Discord        DiscordConfig        `yaml:"discord"`
	Telemetry      TelemetryConfig      `yaml:"telemetry"`
	LeaderElection LeaderElectionConfig `yaml:"leader_election"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	CORSOrigins     []string      `yaml:"cors_origins"`
	// TrustProxy makes the client IP come from X-Forwarded-For.
	TrustProxy bool `yaml:"trust_proxy"`
}

// DatabaseConfig selects the store driver and holds Postgres settings.
type DatabaseConfig struct {
	Driver   string `yaml:"driver"` // "memory", "postgres" or "redis"
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

// DSN returns the Postgres connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

// RedisConfig holds Redis connection settings. Redis backs the "redis"
// store driver and the shared rate limiter.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

// Enabled reports whether a Redis address is configured.
func (r RedisConfig) Enabled() bool { return r.Addr != "" }

// AuthConfig holds credential settings.
type AuthConfig struct {
	SessionSecret    string        `yaml:"session_secret"`
	SessionTTL       time.Duration `yaml:"session_ttl"`
	PBKDF2Iterations int           `yaml:"pbkdf2_iterations"`
}

// LifecycleConfig holds tournament lifecycle settings.
type LifecycleConfig struct {
	ReadOnlyWindow time.Duration `yaml:"read_only_window"`
	DefaultTTL     time.Duration `yaml:"default_ttl"`
}

// AuditConfig holds audit trail settings.
type AuditConfig struct {
	MaxEntries int           `yaml:"max_entries"`
	Retention  time.Duration `yaml:"retention"`
	BufferSize int           `yaml:"buffer_size"`
}

// RateLimitConfig holds request budget settings.
type RateLimitConfig struct {
	AuthAttempts   int           `yaml:"auth_attempts"`
	AuthWindow     time.Duration `yaml:"auth_window"`
	Creations      int           `yaml:"creations"`
	CreationWindow time.Duration `yaml:"creation_window"`
}

// RetentionConfig controls the expired-tournament sweeper.
type RetentionConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"`
	Grace    time.Duration `yaml:"grace"`
}

// ArchiveConfig holds S3 settings for archiving swept tournaments.
type ArchiveConfig struct {
	Enabled        bool   `yaml:"enabled"`
	Bucket         string `yaml:"bucket"`
	Prefix         string `yaml:"prefix"`
	Region         string `yaml:"region"`
	Endpoint       string `yaml:"endpoint"`
	AccessKey      string `yaml:"access_key"`
	SecretKey      string `yaml:"secret_key"`
	ForcePathStyle bool   `yaml:"force_path_style"`
}

// DiscordConfig holds Discord announcer settings.
type DiscordConfig struct {
	Token     string `yaml:"token"`
	GuildID   string `yaml:"guild_id"`
	ChannelID string `yaml:"channel_id"`
}

// Enabled reports whether the Discord announcer should start.
func (d DiscordConfig) Enabled() bool { return d.Token != "" }

// TelemetryConfig holds OpenTelemetry settings.
type TelemetryConfig struct {
	ServiceName    string `yaml:"service_name"`
	ServiceVersion string `yaml:"service_version"`
	OTLPEndpoint   string `yaml:"otlp_endpoint"`
	Insecure       bool   `yaml:"insecure"`
}

// LeaderElectionConfig holds Kubernetes leader election settings.
type LeaderElectionConfig struct {
	Enabled        bool          `yaml:"enabled"`
	LeaseName      string        `yaml:"lease_name"`
	LeaseNamespace string        `yaml:"lease_namespace"`
	LeaseDuration  time.Duration `yaml:"lease_duration"`
	RenewDeadline  time.Duration `yaml:"renew_deadline"`
	RetryPeriod    time.Duration `yaml:"retry_period"`
}

// Defaults returns the configuration used when no file sets a value.
func Defaults() *Config {
	return &Config{
		LogLevel: "info",
		Server: ServerConfig{
			Port:            8080,
			ShutdownTimeout: 15 * time.Second,
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    15 * time.Second,
		},
		Database: DatabaseConfig{
			Driver:  "memory",
			Host:    "localhost",
			Port:    5432,
			SSLMode: "disable",
		},
		Redis: RedisConfig{
			PoolSize: 10,
		},
		Auth: AuthConfig{
			SessionTTL:       12 * time.Hour,
			PBKDF2Iterations: 210000,
		},
		Lifecycle: LifecycleConfig{
			ReadOnlyWindow: 10 * 24 * time.Hour,
			DefaultTTL:     90 * 24 * time.Hour,
		},
		Audit: AuditConfig{
			MaxEntries: 500,
			Retention:  30 * 24 * time.Hour,
			BufferSize: 256,
		},
		RateLimit: RateLimitConfig{
			AuthAttempts:   5,
			AuthWindow:     time.Minute,
			Creations:      3,
			CreationWindow: time.Hour,
		},
		Retention: RetentionConfig{
			Interval: time.Hour,
			Grace:    7 * 24 * time.Hour,
		},
		Archive: ArchiveConfig{
			Prefix: "tournaments/",
			Region: "us-east-1",
		},
		Telemetry: TelemetryConfig{
			ServiceName:    "auctiond",
			ServiceVersion: "0.1.0",
		},
		LeaderElection: LeaderElectionConfig{
			Enabled:        false,
			LeaseName:      "auctiond-leader",
			LeaseNamespace: "default",
			LeaseDuration:  15 * time.Second,
			RenewDeadline:  10 * time.Second,
			RetryPeriod:    2 * time.Second,
		},
	}
}

// Load reads a YAML configuration file from the given path on top of the
// defaults, then applies a .env file and AUCTIOND_* environment overrides.
// An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(filepath.Clean(path))
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	// A missing .env file is not an error.
	_ = godotenv.Load()
	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// validate checks configuration invariants.
func (c *Config) validate() error {
	switch c.Database.Driver {
	case "memory", "postgres":
	case "redis":
		if !c.Redis.Enabled() {
			return fmt.Errorf("database driver \"redis\" requires redis.addr")
		}
	default:
		return fmt.Errorf("unsupported database driver %q: must be \"memory\", \"postgres\" or \"redis\"", c.Database.Driver)
	}
	if len(c.Auth.SessionSecret) < 32 {
		return fmt.Errorf("auth.session_secret must be at least 32 bytes")
	}
	if c.Auth.PBKDF2Iterations < 10000 {
		return fmt.Errorf("auth.pbkdf2_iterations must be at least 10000, got %d", c.Auth.PBKDF2Iterations)
	}
	if c.Audit.MaxEntries <= 0 {
		return fmt.Errorf("audit.max_entries must be positive")
	}
	if c.Archive.Enabled && c.Archive.Bucket == "" {
		return fmt.Errorf("archive.bucket is required when archiving is enabled")
	}
	if c.Retention.Enabled && c.Retention.Interval <= 0 {
		return fmt.Errorf("retention.interval must be positive")
	}
	return nil
}
