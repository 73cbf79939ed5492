package config

import (
	"os"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

type Config struct {
	ServiceName string `yaml:"serviceName"`
	HttpPort    string `yaml:"httpPort"`
	LogLevel    string `yaml:"logLevel"`

	// Empty PgDsn keeps the outbox and snapshots in memory.
	PgDsn string `yaml:"pgDsn"`
	// Empty RabbitUri disables event consumption and publishing.
	RabbitUri   string `yaml:"rabbitUri"`
	QueuePrefix string `yaml:"queuePrefix"`
	// Empty JaegerEndpoint disables tracing export.
	JaegerEndpoint string `yaml:"jaegerEndpoint"`

	PoolSize     int   `yaml:"poolSize"`
	InitialStock int64 `yaml:"initialStock"`

	ReservationTimeout    time.Duration `yaml:"reservationTimeout"`
	SimulationParallelism int           `yaml:"simulationParallelism"`
	SimulationMaxOrders   int           `yaml:"simulationMaxOrders"`
	SimulationMaxCartSize int           `yaml:"simulationMaxCartSize"`

	OutboxBatchSize  int           `yaml:"outboxBatchSize"`
	OutboxMaxRetry   int           `yaml:"outboxMaxRetry"`
	OutboxInterval   time.Duration `yaml:"outboxInterval"`
	SnapshotInterval time.Duration `yaml:"snapshotInterval"`
	PersistSnapshots bool          `yaml:"persistSnapshots"`
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func atoiEnv(key string, def int) int {
	v := getenv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Warn().Str("key", key).Str("value", v).Int("default", def).Msg("invalid int env, using default")
		return def
	}
	return n
}

func durationMsEnv(key string, def time.Duration) time.Duration {
	ms := atoiEnv(key, -1)
	if ms < 0 {
		return def
	}
	return time.Duration(ms) * time.Millisecond
}

func boolEnv(key string, def bool) bool {
	v := getenv(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Warn().Str("key", key).Str("value", v).Bool("default", def).Msg("invalid bool env, using default")
		return def
	}
	return b
}

// Defaults mirror the classic demo: ten items with a thousand units each.
func Defaults() Config {
	return Config{
		ServiceName:           "stocklock-service",
		HttpPort:              "8083",
		LogLevel:              "info",
		QueuePrefix:           "stocklock",
		PoolSize:              10,
		InitialStock:          1000,
		ReservationTimeout:    10 * time.Second,
		SimulationParallelism: 16,
		SimulationMaxOrders:   10000,
		SimulationMaxCartSize: 8,
		OutboxBatchSize:       100,
		OutboxMaxRetry:        5,
		OutboxInterval:        5 * time.Second,
		SnapshotInterval:      15 * time.Second,
	}
}

// Load builds the configuration from defaults, then the YAML file named by
// STOCKLOCK_CONFIG (if any), then environment variables.
func Load() (Config, error) {
	cfg := Defaults()

	if path := os.Getenv("STOCKLOCK_CONFIG"); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	cfg.HttpPort = getenv("HTTP_PORT", cfg.HttpPort)
	cfg.LogLevel = getenv("LOG_LEVEL", cfg.LogLevel)
	cfg.PgDsn = getenv("PG_DSN", cfg.PgDsn)
	cfg.RabbitUri = getenv("RABBITMQ_URI", cfg.RabbitUri)
	cfg.QueuePrefix = getenv("QUEUE_PREFIX", cfg.QueuePrefix)
	cfg.JaegerEndpoint = getenv("JAEGER_ENDPOINT", cfg.JaegerEndpoint)
	cfg.PoolSize = atoiEnv("POOL_SIZE", cfg.PoolSize)
	cfg.InitialStock = int64(atoiEnv("INITIAL_STOCK", int(cfg.InitialStock)))
	cfg.ReservationTimeout = durationMsEnv("RESERVATION_TIMEOUT_MS", cfg.ReservationTimeout)
	cfg.SimulationParallelism = atoiEnv("SIMULATION_PARALLELISM", cfg.SimulationParallelism)
	cfg.SimulationMaxOrders = atoiEnv("SIMULATION_MAX_ORDERS", cfg.SimulationMaxOrders)
	cfg.SimulationMaxCartSize = atoiEnv("SIMULATION_MAX_CART_SIZE", cfg.SimulationMaxCartSize)
	cfg.OutboxBatchSize = atoiEnv("OUTBOX_BATCH_SIZE", cfg.OutboxBatchSize)
	cfg.OutboxMaxRetry = atoiEnv("OUTBOX_MAX_RETRY", cfg.OutboxMaxRetry)
	cfg.OutboxInterval = durationMsEnv("OUTBOX_INTERVAL_MS", cfg.OutboxInterval)
	cfg.SnapshotInterval = durationMsEnv("SNAPSHOT_INTERVAL_MS", cfg.SnapshotInterval)
	cfg.PersistSnapshots = boolEnv("PERSIST_SNAPSHOTS", cfg.PersistSnapshots)

	return cfg, cfg.Validate()
}

func loadFile(path string, cfg *Config) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "read config %s", path)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return errors.Wrapf(err, "parse config %s", path)
	}
	return nil
}

func (c Config) Validate() error {
	switch {
	case c.PoolSize <= 0:
		return errors.Errorf("poolSize must be positive, got %d", c.PoolSize)
	case c.InitialStock < 0:
		return errors.Errorf("initialStock must not be negative, got %d", c.InitialStock)
	case c.ReservationTimeout < 0:
		return errors.Errorf("reservationTimeout must not be negative, got %s", c.ReservationTimeout)
	case c.SimulationMaxOrders <= 0:
		return errors.Errorf("simulationMaxOrders must be positive, got %d", c.SimulationMaxOrders)
	case c.SimulationMaxCartSize <= 0:
		return errors.Errorf("simulationMaxCartSize must be positive, got %d", c.SimulationMaxCartSize)
	case c.HttpPort == "":
		return errors.New("httpPort is required")
	}
	return nil
}
