package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	strs "docexchange/pkg/platform/strings"
)

// Config is the full runtime configuration of the service.
// Load applies defaults, then the optional YAML file named by CONFIG_FILE,
// then environment overrides.
type Config struct {
	Server        Server     `yaml:"server"`
	Database      Database   `yaml:"database"`
	Redis         Redis      `yaml:"redis"`
	Kafka         Kafka      `yaml:"kafka"`
	Requests      Requests   `yaml:"requests"`
	ShareLinks    ShareLinks `yaml:"share_links"`
	PublicBaseURL string     `yaml:"public_base_url"`
	LogLevel      string     `yaml:"log_level"`
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string        `yaml:"addr"`
	JWTSigningKey   string        `yaml:"jwt_signing_key"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Database is optional; an empty URL selects the in-memory request store.
type Database struct {
	URL             string        `yaml:"url"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	AutoMigrate     bool          `yaml:"auto_migrate"`
}

// Redis is optional; an empty URL selects in-memory share-link and
// notification storage.
type Redis struct {
	URL          string        `yaml:"url"`
	PoolSize     int           `yaml:"pool_size"`
	MinIdleConns int           `yaml:"min_idle_conns"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// Kafka is optional; with no brokers audit events stay in memory.
type Kafka struct {
	Brokers    []string `yaml:"brokers"`
	AuditTopic string   `yaml:"audit_topic"`
}

func (k Kafka) Enabled() bool {
	return len(k.Brokers) > 0
}

type Requests struct {
	DefaultTTL time.Duration `yaml:"default_ttl"`
	MaxTTL     time.Duration `yaml:"max_ttl"`
}

// ShareLinks configures link lifetimes and the per-IP limit on the public
// share routes. A RateLimit of zero disables limiting.
type ShareLinks struct {
	TTL             time.Duration `yaml:"ttl"`
	Retention       time.Duration `yaml:"retention"`
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
	RateLimit       int           `yaml:"rate_limit"`
	RateLimitWindow time.Duration `yaml:"rate_limit_window"`
}

const devSigningKey = "dev-secret-key-change-in-production"

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	return Config{
		Server: Server{
			Addr:            ":8080",
			JWTSigningKey:   devSigningKey,
			RequestTimeout:  30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Database: Database{
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
			AutoMigrate:     true,
		},
		Redis: Redis{
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Kafka: Kafka{
			AuditTopic: "docexchange.audit",
		},
		Requests: Requests{
			DefaultTTL: 168 * time.Hour,
			MaxTTL:     720 * time.Hour,
		},
		ShareLinks: ShareLinks{
			TTL:             72 * time.Hour,
			Retention:       24 * time.Hour,
			CleanupInterval: 10 * time.Minute,
			RateLimit:       60,
			RateLimitWindow: time.Minute,
		},
		PublicBaseURL: "http://localhost:8080",
		LogLevel:      "info",
	}
}

// Load builds the configuration from defaults, CONFIG_FILE and the environment.
func Load() (Config, error) {
	cfg := Default()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(raw, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

type lookupFunc func(key string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	var errs []error
	dur := func(key string, dst *time.Duration) {
		v, ok := lookup(key)
		if !ok || v == "" {
			return
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = d
	}

	str("DOCEX_ADDR", &c.Server.Addr)
	str("JWT_SIGNING_KEY", &c.Server.JWTSigningKey)
	dur("REQUEST_TIMEOUT", &c.Server.RequestTimeout)
	str("DATABASE_URL", &c.Database.URL)
	if v, ok := lookup("DATABASE_AUTO_MIGRATE"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("DATABASE_AUTO_MIGRATE: %w", err))
		} else {
			c.Database.AutoMigrate = b
		}
	}
	str("REDIS_URL", &c.Redis.URL)
	if v, ok := lookup("KAFKA_BROKERS"); ok && v != "" {
		c.Kafka.Brokers = strs.SplitList(v)
	}
	str("KAFKA_AUDIT_TOPIC", &c.Kafka.AuditTopic)
	dur("REQUEST_DEFAULT_TTL", &c.Requests.DefaultTTL)
	dur("REQUEST_MAX_TTL", &c.Requests.MaxTTL)
	dur("SHARE_LINK_TTL", &c.ShareLinks.TTL)
	dur("SHARE_LINK_RETENTION", &c.ShareLinks.Retention)
	dur("SHARE_LINK_CLEANUP_INTERVAL", &c.ShareLinks.CleanupInterval)
	if v, ok := lookup("SHARE_RATE_LIMIT"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("SHARE_RATE_LIMIT: %w", err))
		} else {
			c.ShareLinks.RateLimit = n
		}
	}
	dur("SHARE_RATE_LIMIT_WINDOW", &c.ShareLinks.RateLimitWindow)
	str("PUBLIC_BASE_URL", &c.PublicBaseURL)
	str("LOG_LEVEL", &c.LogLevel)

	return errors.Join(errs...)
}

// Validate rejects configurations the service cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	if c.Server.JWTSigningKey == "" {
		errs = append(errs, errors.New("server.jwt_signing_key is required"))
	}
	if c.Requests.DefaultTTL <= 0 {
		errs = append(errs, errors.New("requests.default_ttl must be positive"))
	}
	if c.Requests.MaxTTL < c.Requests.DefaultTTL {
		errs = append(errs, errors.New("requests.max_ttl must not be below requests.default_ttl"))
	}
	if c.ShareLinks.TTL <= 0 {
		errs = append(errs, errors.New("share_links.ttl must be positive"))
	}
	if c.ShareLinks.Retention < 0 {
		errs = append(errs, errors.New("share_links.retention must not be negative"))
	}
	if c.ShareLinks.CleanupInterval <= 0 {
		errs = append(errs, errors.New("share_links.cleanup_interval must be positive"))
	}
	if c.ShareLinks.RateLimit < 0 {
		errs = append(errs, errors.New("share_links.rate_limit must not be negative"))
	}
	if c.ShareLinks.RateLimit > 0 && c.ShareLinks.RateLimitWindow <= 0 {
		errs = append(errs, errors.New("share_links.rate_limit_window must be positive"))
	}
	if c.Kafka.Enabled() && c.Kafka.AuditTopic == "" {
		errs = append(errs, errors.New("kafka.audit_topic is required when brokers are set"))
	}
	return errors.Join(errs...)
}

// UsesDevSigningKey reports whether the built-in development key is active.
func (c Config) UsesDevSigningKey() bool {
	return c.Server.JWTSigningKey == devSigningKey
}
