// Package config provides configuration management for the notifier.
//
// Configuration is loaded from:
// 1. config.yaml file (optional)
// 2. Environment variables (standard names like DATABASE_URL, SERVER_PORT)
// 3. Default values
package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Config is the root configuration structure.
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Redis        RedisConfig        `mapstructure:"redis"`
	Log          LogConfig          `mapstructure:"log"`
	River        RiverConfig        `mapstructure:"river"`
	Security     SecurityConfig     `mapstructure:"security"`
	Worker       WorkerConfig       `mapstructure:"worker"`
	Notification NotificationConfig `mapstructure:"notification"`
	Realtime     RealtimeConfig     `mapstructure:"realtime"`
	Email        EmailConfig        `mapstructure:"email"`
	Client       ClientConfig       `mapstructure:"client"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`

	AllowedOrigins        []string `mapstructure:"allowed_origins"`
	AllowCredentials      bool     `mapstructure:"allow_credentials"`
	UnsafeAllowAllOrigins bool     `mapstructure:"unsafe_allow_all_origins"`
}

// DatabaseConfig contains PostgreSQL connection settings.
// One pool is shared by the notification store, audience queries and River.
type DatabaseConfig struct {
	URL string `mapstructure:"url"`

	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"sslmode"`

	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`

	AutoMigrate bool `mapstructure:"auto_migrate"`
}

// DSN returns the PostgreSQL connection string.
// Priority: DATABASE_URL > constructed from individual fields.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	sslmode := c.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, sslmode,
	)
}

// RedisConfig contains Redis settings. An empty URL disables Redis: realtime
// fan-out stays in-process and idempotency keys are tracked in memory.
type RedisConfig struct {
	URL           string `mapstructure:"url"`
	ChannelPrefix string `mapstructure:"channel_prefix"`
}

// Enabled reports whether a Redis URL is configured.
func (c RedisConfig) Enabled() bool {
	return c.URL != ""
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or console
}

// RiverConfig contains River Queue settings.
type RiverConfig struct {
	Enabled                     bool          `mapstructure:"enabled"`
	MaxWorkers                  int           `mapstructure:"max_workers"`
	CompletedJobRetentionPeriod time.Duration `mapstructure:"completed_job_retention_period"`
}

// SecurityConfig contains security-related settings.
// Missing secrets are generated on first boot.
type SecurityConfig struct {
	SessionSecret string        `mapstructure:"session_secret"`
	TokenIssuer   string        `mapstructure:"token_issuer"`
	TokenTTL      time.Duration `mapstructure:"token_ttl"`
	// JWTVerificationKeys are previous session secrets still accepted
	// while tokens signed with them expire.
	JWTVerificationKeys []string `mapstructure:"jwt_verification_keys"`
}

// WorkerConfig contains worker pool settings.
type WorkerConfig struct {
	GeneralPoolSize  int `mapstructure:"general_pool_size"`
	DeliveryPoolSize int `mapstructure:"delivery_pool_size"`
}

// NotificationConfig contains dispatch and inbox settings.
type NotificationConfig struct {
	Retention        time.Duration `mapstructure:"retention"`
	CleanupInterval  time.Duration `mapstructure:"cleanup_interval"`
	DedupWindow      time.Duration `mapstructure:"dedup_window"`
	DefaultListLimit int           `mapstructure:"default_list_limit"`
	MaxListLimit     int           `mapstructure:"max_list_limit"`
}

// RealtimeConfig contains websocket hub settings.
type RealtimeConfig struct {
	TicketTTL      time.Duration `mapstructure:"ticket_ttl"`
	PingInterval   time.Duration `mapstructure:"ping_interval"`
	PongWait       time.Duration `mapstructure:"pong_wait"`
	WriteWait      time.Duration `mapstructure:"write_wait"`
	SendBuffer     int           `mapstructure:"send_buffer"`
	MaxMessageSize int64         `mapstructure:"max_message_size"`
	AckRate        float64       `mapstructure:"ack_rate"`
	AckBurst       int           `mapstructure:"ack_burst"`
	AckMemory      int           `mapstructure:"ack_memory"`
	// AckIdleTTL is how long a user's acknowledgements outlive their last connection.
	AckIdleTTL time.Duration `mapstructure:"ack_idle_ttl"`
}

// EmailConfig contains the transactional email provider settings.
// An empty APIKey logs emails instead of sending them.
type EmailConfig struct {
	ResendAPIKey string `mapstructure:"resend_api_key"`
	From         string `mapstructure:"from"`
}

// ClientConfig contains settings for the notifyctl client session.
type ClientConfig struct {
	BaseURL              string        `mapstructure:"base_url"`
	Token                string        `mapstructure:"token"`
	PollInterval         time.Duration `mapstructure:"poll_interval"`
	ListLimit            int           `mapstructure:"list_limit"`
	MaxReconnectAttempts int           `mapstructure:"max_reconnect_attempts"`
	ReconnectDelay       time.Duration `mapstructure:"reconnect_delay"`
	RequestTimeout       time.Duration `mapstructure:"request_timeout"`
}

var (
	bootstrapLoggerOnce sync.Once
	bootstrapLogger     *zap.Logger
)

// Load reads configuration from file and environment variables.
// Nested keys map to env names with "." replaced by "_": database.max_conns → DATABASE_MAX_CONNS.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/learnhub-notifier")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.ensureSecrets(); err != nil {
		return nil, fmt.Errorf("ensure secrets: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// Validate checks for critical configuration errors.
func (c *Config) Validate() error {
	if c.Security.SessionSecret == "" {
		return fmt.Errorf("security.session_secret must not be empty")
	}
	if len(c.Security.SessionSecret) < 32 {
		return fmt.Errorf("security.session_secret must be at least 32 characters")
	}
	if c.Client.MaxReconnectAttempts < 1 {
		return fmt.Errorf("client.max_reconnect_attempts must be at least 1")
	}
	if c.Notification.DefaultListLimit > c.Notification.MaxListLimit {
		return fmt.Errorf("notification.default_list_limit must not exceed notification.max_list_limit")
	}
	return nil
}

func (c *Config) ensureSecrets() error {
	if c.Security.SessionSecret == "" {
		secret, err := generateSecureRandomHex(32)
		if err != nil {
			return fmt.Errorf("auto-generate session secret: %w", err)
		}
		c.Security.SessionSecret = secret
		logBootstrapWarn(
			"auto-generated session_secret; set SECURITY_SESSION_SECRET for tokens that survive restarts",
			zap.Int("length", len(secret)),
		)
	}
	return nil
}

func logBootstrapWarn(msg string, fields ...zap.Field) {
	bootstrapLoggerOnce.Do(func() {
		cfg := zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)

		l, err := cfg.Build()
		if err != nil {
			bootstrapLogger = zap.NewNop()
			return
		}
		bootstrapLogger = l
	})

	bootstrapLogger.Warn(msg, fields...)
}

// generateSecureRandomHex produces a hex-encoded string of n random bytes.
func generateSecureRandomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("crypto/rand: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func setDefaults(v *viper.Viper) {
	// Server
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.allowed_origins", []string{})
	v.SetDefault("server.allow_credentials", true)
	v.SetDefault("server.unsafe_allow_all_origins", false)

	// Database
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "learnhub")
	v.SetDefault("database.password", "")
	v.SetDefault("database.database", "learnhub")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 50)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "10m")
	v.SetDefault("database.auto_migrate", false)

	// Redis
	v.SetDefault("redis.url", "")
	v.SetDefault("redis.channel_prefix", "notify:user:")

	// Log
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// River
	v.SetDefault("river.enabled", true)
	v.SetDefault("river.max_workers", 10)
	v.SetDefault("river.completed_job_retention_period", "24h")

	// Security
	v.SetDefault("security.token_issuer", "learnhub")
	v.SetDefault("security.token_ttl", "24h")
	v.SetDefault("security.jwt_verification_keys", []string{})

	// Worker Pool
	v.SetDefault("worker.general_pool_size", 100)
	v.SetDefault("worker.delivery_pool_size", 50)

	// Notification
	v.SetDefault("notification.retention", "2160h") // 90 days
	v.SetDefault("notification.cleanup_interval", "24h")
	v.SetDefault("notification.dedup_window", "24h")
	v.SetDefault("notification.default_list_limit", 50)
	v.SetDefault("notification.max_list_limit", 200)

	// Realtime
	v.SetDefault("realtime.ticket_ttl", "60s")
	v.SetDefault("realtime.ping_interval", "25s")
	v.SetDefault("realtime.pong_wait", "60s")
	v.SetDefault("realtime.write_wait", "10s")
	v.SetDefault("realtime.send_buffer", 64)
	v.SetDefault("realtime.max_message_size", 4096)
	v.SetDefault("realtime.ack_rate", 10)
	v.SetDefault("realtime.ack_burst", 20)
	v.SetDefault("realtime.ack_memory", 500)
	v.SetDefault("realtime.ack_idle_ttl", "5m")

	// Email
	v.SetDefault("email.resend_api_key", "")
	v.SetDefault("email.from", "LearnHub <notifications@learnhub.io>")

	// Client
	v.SetDefault("client.base_url", "http://localhost:8080")
	v.SetDefault("client.token", "")
	v.SetDefault("client.poll_interval", "30s")
	v.SetDefault("client.list_limit", 50)
	v.SetDefault("client.max_reconnect_attempts", 5)
	v.SetDefault("client.reconnect_delay", "3s")
	v.SetDefault("client.request_timeout", "10s")
}
