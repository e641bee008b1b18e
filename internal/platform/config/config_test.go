package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, BackendMemory, cfg.Storage.Backend)
	assert.Equal(t, BackendMemory, cfg.LogStoreBackend())
	assert.Equal(t, "execledger.events", cfg.Kafka.Topic)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("EXECLEDGER_ORACLE", "0xAA, 0xbb ,")
	t.Setenv("EXECLEDGER_ADDR", ":9090")
	t.Setenv("EXECLEDGER_STORAGE_BACKEND", "sqlite")
	t.Setenv("EXECLEDGER_DATABASE_DSN", "/tmp/ledger.db")
	t.Setenv("EXECLEDGER_KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("EXECLEDGER_TOKEN_TTL", "15m")
	t.Setenv("EXECLEDGER_EVENTS_LOG", "false")
	t.Setenv("EXECLEDGER_RATE_LIMIT_WRITES", "10")
	t.Setenv("EXECLEDGER_RATE_LIMIT_WINDOW", "10s")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, []string{"0xAA", "0xbb"}, cfg.Principals())
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, BackendSQLite, cfg.Storage.Backend)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 15*time.Minute, cfg.Auth.TokenTTL)
	assert.False(t, cfg.Events.LogEvents)
	assert.Equal(t, RateLimit{Writes: 10, Window: 10 * time.Second, Backend: BackendMemory}, cfg.RateLimit)
	assert.NoError(t, cfg.Validate())
}

func TestFromEnvRejectsMalformedValues(t *testing.T) {
	t.Setenv("EXECLEDGER_TOKEN_TTL", "forever")
	t.Setenv("EXECLEDGER_EVENTS_QUEUE_SIZE", "lots")
	_, err := FromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "EXECLEDGER_TOKEN_TTL")
	assert.Contains(t, err.Error(), "EXECLEDGER_EVENTS_QUEUE_SIZE")
}

func TestLoadYAMLThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "execledger.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
oracle: "0xfile"
server:
  addr: ":7070"
  shutdown_timeout: 3s
storage:
  backend: postgres
  dsn: postgres://localhost/ledger
  log_backend: redis
redis:
  url: redis://localhost:6379/0
events:
  redis_stream: execledger:events
`), 0o600))
	t.Setenv("EXECLEDGER_ADDR", ":6060")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "0xfile", cfg.Oracle)
	assert.Equal(t, ":6060", cfg.Server.Addr, "environment wins over the file")
	assert.Equal(t, 3*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, BackendRedis, cfg.LogStoreBackend())
	assert.Equal(t, 10, cfg.Redis.PoolSize, "defaults survive a partial file")
	assert.NoError(t, cfg.Validate())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("EXECLEDGER_TEST_DOTENV=from-file\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("EXECLEDGER_TEST_DOTENV") })

	require.NoError(t, LoadDotEnv(path, filepath.Join(t.TempDir(), "missing.env")))
	assert.Equal(t, "from-file", os.Getenv("EXECLEDGER_TEST_DOTENV"))
}

func TestValidate(t *testing.T) {
	valid := Default()
	valid.Oracle = "0xaa"
	require.NoError(t, valid.Validate())

	cases := map[string]func(c *Config){
		"missing oracle":         func(c *Config) { c.Oracle = " , " },
		"unknown backend":        func(c *Config) { c.Storage.Backend = "etcd" },
		"sql without dsn":        func(c *Config) { c.Storage.Backend = BackendPostgres },
		"redis logs without url": func(c *Config) { c.Storage.LogBackend = BackendRedis },
		"mismatched sql logs":    func(c *Config) { c.Storage.LogBackend = BackendSQLite },
		"stream without redis":   func(c *Config) { c.Events.RedisStream = "s" },
		"kafka without topic":    func(c *Config) { c.Kafka.Brokers = []string{"k"}; c.Kafka.Topic = "" },
		"bad log format":         func(c *Config) { c.Log.Format = "xml" },
		"rate limit on redis":    func(c *Config) { c.RateLimit.Backend = BackendRedis },
		"unknown limit backend":  func(c *Config) { c.RateLimit.Backend = "etcd" },
		"zero limit window":      func(c *Config) { c.RateLimit.Window = 0 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := valid
			mutate(&c)
			assert.Error(t, c.Validate())
		})
	}

	t.Run("disabled rate limit skips its checks", func(t *testing.T) {
		c := valid
		c.RateLimit = RateLimit{Backend: "etcd"}
		assert.NoError(t, c.Validate())
	})
}
