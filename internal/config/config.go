package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration values
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Email    EmailConfig
	Sweep    SweepConfig
	Cache    CacheConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port string
	Env  string
	// BaseURL is the public origin used to build capability links.
	BaseURL string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// URL returns the database connection URL
func (c DatabaseConfig) URL() string {
	return "postgres://" + c.User + ":" + c.Password + "@" + c.Host + ":" + strconv.Itoa(c.Port) + "/" + c.DBName + "?sslmode=" + c.SSLMode
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	URL       string
	Password  string
	Enabled   bool
	OpTimeout time.Duration
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret string
	Expiry time.Duration
}

// EmailConfig selects and configures the outbound provider.
type EmailConfig struct {
	Provider    string
	From        string
	FromName    string
	ReplyTo     string
	BatchSize   int
	SendTimeout time.Duration
	SMTP        SMTPConfig
	Brevo       BrevoConfig
	SES         SESConfig
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	// TLS is one of "starttls" (default), "tls" (implicit) or "none".
	TLS string
}

type BrevoConfig struct {
	APIKey  string
	BaseURL string
	Tags    []string
}

type SESConfig struct {
	Region           string
	ConfigurationSet string
	Tags             []string
}

// SweepConfig bounds the periodic delivery pass and its retry policy.
type SweepConfig struct {
	Interval    time.Duration
	BatchSize   int
	MaxAttempts int
	MaxAge      time.Duration
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
	StaleAfter  time.Duration
	LockTTL     time.Duration
}

type CacheConfig struct {
	DefaultTTL     time.Duration
	LocalMaxTTL    time.Duration
	ComputeTimeout time.Duration
	// NamespaceTTLs is parsed from "template=10m,config=1m".
	NamespaceTTLs  map[string]time.Duration
}

// Load loads configuration from environment variables
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:    getEnv("SERVER_PORT", "8080"),
			Env:     getEnv("SERVER_ENV", "development"),
			BaseURL: strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:3000"), "/"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "notifyhub"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),

			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
		},
		Redis: RedisConfig{
			URL:       getEnv("REDIS_URL", "redis://localhost:6379"),
			Password:  getEnv("REDIS_PASSWORD", ""),
			Enabled:   getEnvAsBool("REDIS_ENABLED", true),
			OpTimeout: getEnvAsDuration("REDIS_OP_TIMEOUT", 250*time.Millisecond),
		},
		JWT: JWTConfig{
			Secret: getEnv("JWT_SECRET", "change-this-in-production"),
			Expiry: getEnvAsDuration("JWT_EXPIRY", 24*time.Hour),
		},
		Email: EmailConfig{
			Provider:    strings.ToLower(getEnv("EMAIL_PROVIDER", "console")),
			From:        getEnv("EMAIL_FROM", "no-reply@localhost"),
			FromName:    getEnv("EMAIL_FROM_NAME", ""),
			ReplyTo:     getEnv("EMAIL_REPLY_TO", ""),
			BatchSize:   getEnvAsInt("EMAIL_BATCH_SIZE", 50),
			SendTimeout: getEnvAsDuration("EMAIL_SEND_TIMEOUT", 10*time.Second),
			SMTP: SMTPConfig{
				Host:     getEnv("SMTP_HOST", ""),
				Port:     getEnvAsInt("SMTP_PORT", 587),
				Username: getEnv("SMTP_USERNAME", ""),
				Password: getEnv("SMTP_PASSWORD", ""),
				TLS:      strings.ToLower(getEnv("SMTP_TLS", "starttls")),
			},
			Brevo: BrevoConfig{
				APIKey:  getEnv("BREVO_API_KEY", ""),
				BaseURL: getEnv("BREVO_BASE_URL", "https://api.brevo.com/v3"),
				Tags:    getEnvAsList("BREVO_TAGS", nil),
			},
			SES: SESConfig{
				Region:           getEnv("SES_REGION", getEnv("AWS_REGION", "")),
				ConfigurationSet: getEnv("SES_CONFIGURATION_SET", ""),
				Tags:             getEnvAsList("SES_TAGS", nil),
			},
		},
		Sweep: SweepConfig{
			Interval:    getEnvAsDuration("SWEEP_INTERVAL", time.Minute),
			BatchSize:   getEnvAsInt("SWEEP_BATCH_SIZE", 100),
			MaxAttempts: getEnvAsInt("SWEEP_MAX_ATTEMPTS", 5),
			MaxAge:      getEnvAsDuration("SWEEP_MAX_AGE", 48*time.Hour),
			BaseBackoff: getEnvAsDuration("SWEEP_BASE_BACKOFF", time.Minute),
			MaxBackoff:  getEnvAsDuration("SWEEP_MAX_BACKOFF", time.Hour),
			StaleAfter:  getEnvAsDuration("SWEEP_STALE_AFTER", 15*time.Minute),
			LockTTL:     getEnvAsDuration("SWEEP_LOCK_TTL", 5*time.Minute),
		},
		Cache: CacheConfig{
			DefaultTTL:     getEnvAsDuration("CACHE_DEFAULT_TTL", 5*time.Minute),
			LocalMaxTTL:    getEnvAsDuration("CACHE_LOCAL_MAX_TTL", 30*time.Second),
			ComputeTimeout: getEnvAsDuration("CACHE_COMPUTE_TIMEOUT", 10*time.Second),
			NamespaceTTLs:  getEnvAsDurationMap("CACHE_NAMESPACE_TTLS", map[string]time.Duration{"template": 10 * time.Minute}),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// getEnvAsDurationMap parses "name=duration" pairs; malformed pairs are skipped.
func getEnvAsDurationMap(key string, defaultValue map[string]time.Duration) map[string]time.Duration {
	pairs := getEnvAsList(key, nil)
	if len(pairs) == 0 {
		return defaultValue
	}
	out := make(map[string]time.Duration, len(pairs))
	for _, pair := range pairs {
		name, raw, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		if d, err := time.ParseDuration(strings.TrimSpace(raw)); err == nil {
			out[strings.TrimSpace(name)] = d
		}
	}
	return out
}
