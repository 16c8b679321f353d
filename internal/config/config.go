package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultConfigPath is used when no -config flag is given.
const DefaultConfigPath = "config.yaml"

// AppConfig holds process-level flags.
type AppConfig struct {
	ConfigPath  string
	MigrateOnly bool
}

// Config is the full service configuration loaded at process start.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Cache      CacheConfig      `yaml:"cache"`
	Partner    PartnerConfig    `yaml:"partner"`
	Codes      CodesConfig      `yaml:"codes"`
	Redemption RedemptionConfig `yaml:"redemption"`
	Reconciler ReconcilerConfig `yaml:"reconciler"`
	Logging    LoggingConfig    `yaml:"logging"`
	Tracing    TracingConfig    `yaml:"tracing"`
	Kafka      KafkaConfig      `yaml:"kafka"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Port                   int      `yaml:"port"`
	CORSOrigins            []string `yaml:"cors_origins"`
	ShutdownTimeoutSeconds int      `yaml:"shutdown_timeout_seconds"`
}

// DatabaseConfig configures the relational store.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// CacheConfig configures the key-value cache.
type CacheConfig struct {
	Driver    string `yaml:"driver"` // redis or memory
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

// PartnerConfig configures the partner redemption API client.
type PartnerConfig struct {
	BaseURL        string `yaml:"base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// CodesConfig configures short-code allocation.
type CodesConfig struct {
	Length      int `yaml:"length"`
	TTLSeconds  int `yaml:"ttl_seconds"`
	MaxAttempts int `yaml:"max_attempts"`
}

// RedemptionConfig configures the redemption engine.
type RedemptionConfig struct {
	InflightTTLSeconds   int `yaml:"inflight_ttl_seconds"`
	CommitTimeoutSeconds int `yaml:"commit_timeout_seconds"`
}

// ReconcilerConfig configures the redemption attempt reconciler.
type ReconcilerConfig struct {
	Enabled             bool `yaml:"enabled"`
	IntervalSeconds     int  `yaml:"interval_seconds"`
	GraceSeconds        int  `yaml:"grace_seconds"`
	StalePendingSeconds int  `yaml:"stale_pending_seconds"`
	RetentionDays       int  `yaml:"retention_days"`
}

// LoggingConfig configures logrus output.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// TracingConfig configures the OpenTelemetry exporter.
type TracingConfig struct {
	ServiceName string `yaml:"service_name"`
	Endpoint    string `yaml:"endpoint"`
}

// KafkaConfig configures the event publisher.
type KafkaConfig struct {
	Brokers               []string `yaml:"brokers"`
	Topic                 string   `yaml:"topic"`
	PublishTimeoutSeconds int      `yaml:"publish_timeout_seconds"`
}

// Default returns a configuration populated with defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:                   8080,
			ShutdownTimeoutSeconds: 30,
		},
		Cache: CacheConfig{
			Driver:    "redis",
			Host:      "localhost",
			Port:      6379,
			KeyPrefix: "promo:",
		},
		Partner: PartnerConfig{
			TimeoutSeconds: 10,
		},
		Codes: CodesConfig{
			Length:      6,
			TTLSeconds:  1800,
			MaxAttempts: 50,
		},
		Redemption: RedemptionConfig{
			InflightTTLSeconds:   60,
			CommitTimeoutSeconds: 15,
		},
		Reconciler: ReconcilerConfig{
			Enabled:             true,
			IntervalSeconds:     60,
			GraceSeconds:        30,
			StalePendingSeconds: 900,
			RetentionDays:       30,
		},
		Logging: LoggingConfig{
			Level:      "info",
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 14,
		},
		Tracing: TracingConfig{
			ServiceName: "promotion-service",
		},
		Kafka: KafkaConfig{
			Topic:                 "promotion-events",
			PublishTimeoutSeconds: 2,
		},
	}
}

// ResolveConfigPath returns the given path or the default one.
func ResolveConfigPath(path string) string {
	if trimmed := strings.TrimSpace(path); trimmed != "" {
		return trimmed
	}
	return DefaultConfigPath
}

// Load reads the YAML file at path (missing file is not an error), loads a
// .env file when present and applies environment overrides.
func Load(path string) (Config, error) {
	// .env is optional; production sets the environment directly.
	_ = godotenv.Load()

	cfg := Default()
	data, errRead := os.ReadFile(ResolveConfigPath(path))
	switch {
	case errRead == nil:
		if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, errUnmarshal)
		}
	case errors.Is(errRead, os.ErrNotExist):
	default:
		return Config{}, fmt.Errorf("config: read %s: %w", path, errRead)
	}

	if errEnv := applyEnv(&cfg); errEnv != nil {
		return Config{}, errEnv
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	if v := GetEnv("DATABASE_URL", ""); v != "" {
		cfg.Database.DSN = v
	}
	if v := GetEnv("REDIS_HOST", ""); v != "" {
		cfg.Cache.Host = v
	}
	if v := GetEnv("REDIS_PORT", ""); v != "" {
		port, errParse := strconv.Atoi(v)
		if errParse != nil {
			return fmt.Errorf("config: invalid REDIS_PORT %q", v)
		}
		cfg.Cache.Port = port
	}
	if v := GetEnv("REDIS_PASSWORD", ""); v != "" {
		cfg.Cache.Password = v
	}
	if v := GetEnv("CACHE_DRIVER", ""); v != "" {
		cfg.Cache.Driver = v
	}
	if v := GetEnv("REDEEM_API_BASE_URL", ""); v != "" {
		cfg.Partner.BaseURL = v
	}
	if v := GetEnv("PORT", ""); v != "" {
		port, errParse := strconv.Atoi(v)
		if errParse != nil {
			return fmt.Errorf("config: invalid PORT %q", v)
		}
		cfg.Server.Port = port
	}
	if v := GetEnv("LOG_LEVEL", ""); v != "" {
		cfg.Logging.Level = v
	}
	if v := GetEnv("KAFKA_BROKERS", ""); v != "" {
		var brokers []string
		for _, b := range strings.Split(v, ",") {
			if b = strings.TrimSpace(b); b != "" {
				brokers = append(brokers, b)
			}
		}
		cfg.Kafka.Brokers = brokers
	}
	if v := GetEnv("JAEGER_ENDPOINT", ""); v != "" {
		cfg.Tracing.Endpoint = v
	}
	return nil
}

// Validate checks the settings the service cannot start without.
func (c Config) Validate() error {
	var missing []string
	if strings.TrimSpace(c.Database.DSN) == "" {
		missing = append(missing, "database.dsn (DATABASE_URL)")
	}
	if strings.TrimSpace(c.Partner.BaseURL) == "" {
		missing = append(missing, "partner.base_url (REDEEM_API_BASE_URL)")
	}
	switch c.Cache.Driver {
	case "redis":
		if strings.TrimSpace(c.Cache.Host) == "" {
			missing = append(missing, "cache.host (REDIS_HOST)")
		}
	case "memory":
	default:
		return fmt.Errorf("config: unsupported cache driver %q", c.Cache.Driver)
	}
	if len(missing) > 0 {
		return fmt.Errorf("config: required settings not set: %v", missing)
	}
	if c.Codes.Length <= 0 || c.Codes.TTLSeconds <= 0 || c.Codes.MaxAttempts <= 0 {
		return errors.New("config: codes.length, codes.ttl_seconds and codes.max_attempts must be positive")
	}
	if c.Partner.TimeoutSeconds <= 0 || c.Redemption.CommitTimeoutSeconds <= 0 {
		return errors.New("config: partner.timeout_seconds and redemption.commit_timeout_seconds must be positive")
	}
	// The redemption guard has to outlive the partner call plus the commit.
	if c.Partner.TimeoutSeconds+c.Redemption.CommitTimeoutSeconds >= c.Redemption.InflightTTLSeconds {
		return fmt.Errorf("config: redemption.inflight_ttl_seconds (%d) must exceed partner.timeout_seconds + redemption.commit_timeout_seconds (%d)",
			c.Redemption.InflightTTLSeconds, c.Partner.TimeoutSeconds+c.Redemption.CommitTimeoutSeconds)
	}
	return nil
}

// CacheAddr returns host:port for the cache.
func (c CacheConfig) CacheAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// CodeTTL returns the code binding lifetime.
func (c CodesConfig) CodeTTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

// GetEnv returns the trimmed environment value or the fallback.
func GetEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }

// Timeout returns the partner request timeout.
func (p PartnerConfig) Timeout() time.Duration { return seconds(p.TimeoutSeconds) }

// InflightTTL returns the lifetime of the per-promotion redemption guard.
func (r RedemptionConfig) InflightTTL() time.Duration { return seconds(r.InflightTTLSeconds) }

// CommitTimeout returns the timeout of the post-partner commit.
func (r RedemptionConfig) CommitTimeout() time.Duration { return seconds(r.CommitTimeoutSeconds) }

// PublishTimeout returns how long a request may wait on event publishing.
func (k KafkaConfig) PublishTimeout() time.Duration { return seconds(k.PublishTimeoutSeconds) }

// ShutdownTimeout returns the graceful shutdown budget.
func (s ServerConfig) ShutdownTimeout() time.Duration { return seconds(s.ShutdownTimeoutSeconds) }
