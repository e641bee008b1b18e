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

// Storage backends.
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// Config is the full server configuration.
type Config struct {
	// Oracle is the comma separated allow-list of principals that may create
	// policies. Usually a single identity.
	Oracle    string      `yaml:"oracle"`
	Server    Server      `yaml:"server"`
	Auth      Auth        `yaml:"auth"`
	Storage   Storage     `yaml:"storage"`
	Redis     RedisConfig `yaml:"redis"`
	Kafka     KafkaConfig `yaml:"kafka"`
	Events    Events      `yaml:"events"`
	RateLimit RateLimit   `yaml:"rate_limit"`
	Log       Log         `yaml:"log"`
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Auth configures bearer token validation.
type Auth struct {
	JWTSigningKey string        `yaml:"jwt_signing_key"`
	Issuer        string        `yaml:"issuer"`
	Audience      string        `yaml:"audience"`
	TokenTTL      time.Duration `yaml:"token_ttl"`
}

// Storage selects where policies and diagnostic logs live. LogBackend
// defaults to Backend; it may also be "redis".
type Storage struct {
	Backend      string `yaml:"backend"`
	LogBackend   string `yaml:"log_backend"`
	DSN          string `yaml:"dsn"`
	MaxOpenConns int    `yaml:"max_open_conns"`
}

// RedisConfig configures the shared redis client.
type RedisConfig struct {
	URL          string        `yaml:"url"`
	PoolSize     int           `yaml:"pool_size"`
	MinIdleConns int           `yaml:"min_idle_conns"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// KafkaConfig configures the kafka event sink. No brokers disables it.
type KafkaConfig struct {
	Brokers           []string `yaml:"brokers"`
	Topic             string   `yaml:"topic"`
	ClientID          string   `yaml:"client_id"`
	EnsureTopic       bool     `yaml:"ensure_topic"`
	Partitions        int32    `yaml:"partitions"`
	ReplicationFactor int16    `yaml:"replication_factor"`
}

// Events configures the change notifier's observers.
type Events struct {
	RecorderSize      int           `yaml:"recorder_size"`
	LogEvents         bool          `yaml:"log_events"`
	RedisStream       string        `yaml:"redis_stream"`
	RedisStreamMaxLen int64         `yaml:"redis_stream_max_len"`
	QueueSize         int           `yaml:"queue_size"`
	BreakerThreshold  int           `yaml:"breaker_threshold"`
	BreakerCooldown   time.Duration `yaml:"breaker_cooldown"`
	AllowedOrigins    []string      `yaml:"allowed_origins"`
}

// RateLimit bounds writes per caller. Backend is memory or redis; a
// non-positive Writes disables limiting.
type RateLimit struct {
	Writes  int           `yaml:"writes"`
	Window  time.Duration `yaml:"window"`
	Backend string        `yaml:"backend"`
}

// Log configures the slog handler.
type Log struct {
	Format string `yaml:"format"`
	Level  string `yaml:"level"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Server: Server{
			Addr:            ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Auth: Auth{
			// Use a default for development - should be overridden in production
			JWTSigningKey: "dev-secret-key-change-in-production",
			Issuer:        "execledger",
			Audience:      "execledger-api",
			TokenTTL:      time.Hour,
		},
		Storage: Storage{
			Backend: BackendMemory,
		},
		Redis: RedisConfig{
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Kafka: KafkaConfig{
			Topic:             "execledger.events",
			ClientID:          "execledger",
			Partitions:        1,
			ReplicationFactor: 1,
		},
		Events: Events{
			RecorderSize:      1024,
			LogEvents:         true,
			RedisStreamMaxLen: 100_000,
			QueueSize:         1024,
			BreakerThreshold:  5,
			BreakerCooldown:   30 * time.Second,
		},
		RateLimit: RateLimit{
			Writes:  120,
			Window:  time.Minute,
			Backend: BackendMemory,
		},
		Log: Log{
			Format: "json",
			Level:  "info",
		},
	}
}

// FromEnv builds a Config from defaults and environment variables so main
// stays lean.
func FromEnv() (Config, error) {
	cfg := Default()
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Load reads an optional YAML file over the defaults, then lets environment
// variables override it. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadDotEnv loads variables from the given files into the process
// environment without overriding ones already set. Missing files are skipped.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

func applyEnv(cfg *Config) error {
	var errs []error
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok {
			*dst = strings.TrimSpace(v)
		}
	}
	list := func(key string, dst *[]string) {
		if v, ok := os.LookupEnv(key); ok {
			*dst = splitList(v)
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v, ok := os.LookupEnv(key); ok {
			d, err := time.ParseDuration(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}
	integer := func(key string, dst *int) {
		if v, ok := os.LookupEnv(key); ok {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := os.LookupEnv(key); ok {
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = b
		}
	}

	str("EXECLEDGER_ORACLE", &cfg.Oracle)

	str("EXECLEDGER_ADDR", &cfg.Server.Addr)
	dur("EXECLEDGER_SHUTDOWN_TIMEOUT", &cfg.Server.ShutdownTimeout)

	str("EXECLEDGER_JWT_SIGNING_KEY", &cfg.Auth.JWTSigningKey)
	str("EXECLEDGER_JWT_ISSUER", &cfg.Auth.Issuer)
	str("EXECLEDGER_JWT_AUDIENCE", &cfg.Auth.Audience)
	dur("EXECLEDGER_TOKEN_TTL", &cfg.Auth.TokenTTL)

	str("EXECLEDGER_STORAGE_BACKEND", &cfg.Storage.Backend)
	str("EXECLEDGER_LOG_BACKEND", &cfg.Storage.LogBackend)
	str("EXECLEDGER_DATABASE_DSN", &cfg.Storage.DSN)
	integer("EXECLEDGER_DATABASE_MAX_OPEN_CONNS", &cfg.Storage.MaxOpenConns)

	str("EXECLEDGER_REDIS_URL", &cfg.Redis.URL)
	integer("EXECLEDGER_REDIS_POOL_SIZE", &cfg.Redis.PoolSize)

	list("EXECLEDGER_KAFKA_BROKERS", &cfg.Kafka.Brokers)
	str("EXECLEDGER_KAFKA_TOPIC", &cfg.Kafka.Topic)
	boolean("EXECLEDGER_KAFKA_ENSURE_TOPIC", &cfg.Kafka.EnsureTopic)

	integer("EXECLEDGER_EVENTS_RECORDER_SIZE", &cfg.Events.RecorderSize)
	boolean("EXECLEDGER_EVENTS_LOG", &cfg.Events.LogEvents)
	str("EXECLEDGER_REDIS_STREAM", &cfg.Events.RedisStream)
	integer("EXECLEDGER_EVENTS_QUEUE_SIZE", &cfg.Events.QueueSize)
	list("EXECLEDGER_EVENTS_ALLOWED_ORIGINS", &cfg.Events.AllowedOrigins)

	integer("EXECLEDGER_RATE_LIMIT_WRITES", &cfg.RateLimit.Writes)
	dur("EXECLEDGER_RATE_LIMIT_WINDOW", &cfg.RateLimit.Window)
	str("EXECLEDGER_RATE_LIMIT_BACKEND", &cfg.RateLimit.Backend)

	str("EXECLEDGER_LOG_FORMAT", &cfg.Log.Format)
	str("EXECLEDGER_LOG_LEVEL", &cfg.Log.Level)

	return errors.Join(errs...)
}

// Principals returns the oracle allow-list.
func (c Config) Principals() []string {
	return splitList(c.Oracle)
}

// LogStoreBackend resolves the backend used for diagnostic logs.
func (c Config) LogStoreBackend() string {
	if c.Storage.LogBackend == "" {
		return c.Storage.Backend
	}
	return c.Storage.LogBackend
}

// Validate reports every problem with the configuration at once.
func (c Config) Validate() error {
	var errs []error
	if len(c.Principals()) == 0 {
		errs = append(errs, errors.New("oracle principal is required (EXECLEDGER_ORACLE)"))
	}
	if c.Auth.JWTSigningKey == "" {
		errs = append(errs, errors.New("jwt signing key is required"))
	}

	sqlBackend := false
	switch c.Storage.Backend {
	case BackendMemory:
	case BackendSQLite, BackendPostgres:
		sqlBackend = true
	default:
		errs = append(errs, fmt.Errorf("unknown storage backend %q", c.Storage.Backend))
	}
	switch c.LogStoreBackend() {
	case BackendMemory:
	case BackendSQLite, BackendPostgres:
		if c.LogStoreBackend() != c.Storage.Backend {
			errs = append(errs, fmt.Errorf("log backend %q must match storage backend %q", c.LogStoreBackend(), c.Storage.Backend))
		}
		sqlBackend = true
	case BackendRedis:
		if c.Redis.URL == "" {
			errs = append(errs, errors.New("redis log backend requires a redis url"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown log backend %q", c.LogStoreBackend()))
	}
	if sqlBackend && c.Storage.DSN == "" {
		errs = append(errs, fmt.Errorf("%s backend requires a dsn (EXECLEDGER_DATABASE_DSN)", c.Storage.Backend))
	}

	if c.Events.RedisStream != "" && c.Redis.URL == "" {
		errs = append(errs, errors.New("redis stream sink requires a redis url"))
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		errs = append(errs, errors.New("kafka sink requires a topic"))
	}
	if c.RateLimit.Writes > 0 {
		switch c.RateLimit.Backend {
		case BackendMemory:
		case BackendRedis:
			if c.Redis.URL == "" {
				errs = append(errs, errors.New("redis rate limit backend requires a redis url"))
			}
		default:
			errs = append(errs, fmt.Errorf("unknown rate limit backend %q", c.RateLimit.Backend))
		}
		if c.RateLimit.Window <= 0 {
			errs = append(errs, errors.New("rate limit window must be positive"))
		}
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q", c.Log.Format))
	}
	return errors.Join(errs...)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
