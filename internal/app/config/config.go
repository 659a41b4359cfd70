package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/abheet19/telemetry-ai-ops/internal/adapters/analyzer"
	"github.com/abheet19/telemetry-ai-ops/internal/adapters/mqtt"
	"github.com/abheet19/telemetry-ai-ops/internal/adapters/opcua"
	"github.com/abheet19/telemetry-ai-ops/internal/adapters/queue"
	"github.com/abheet19/telemetry-ai-ops/internal/adapters/simulator"
	"github.com/abheet19/telemetry-ai-ops/internal/adapters/sink"
	"github.com/abheet19/telemetry-ai-ops/internal/classify"
	"github.com/abheet19/telemetry-ai-ops/internal/ports"
)

const (
	CollectorSimulator = "simulator"
	CollectorOPCUA     = "opcua"
	CollectorMQTT      = "mqtt"

	QueueMemory = "memory"
	QueueRedis  = "redis"
)

type Config struct {
	Dispatch   ports.DispatchPolicy `yaml:"dispatch"`
	Ingest     ports.IngestPolicy   `yaml:"ingest"`
	Heuristic  classify.Thresholds  `yaml:"heuristic"`
	Analyzer   analyzer.Config      `yaml:"analyzer"`
	Queue      QueueConfig          `yaml:"queue"`
	Collector  CollectorConfig      `yaml:"collector"`
	Postgres   PostgresConfig       `yaml:"postgres"`
	Kafka      sink.KafkaConfig     `yaml:"kafka"`
	Metrics    MetricsConfig        `yaml:"metrics"`
	DeadLetter DeadLetterConfig     `yaml:"deadletter"`
}

type QueueConfig struct {
	Backend string                 `yaml:"backend"`
	Redis   queue.RedisQueueConfig `yaml:"redis"`
}

type CollectorConfig struct {
	Kind      string           `yaml:"kind"`
	Simulator simulator.Config `yaml:"simulator"`
	OPCUA     opcua.Config     `yaml:"opcua"`
	MQTT      mqtt.Config      `yaml:"mqtt"`
}

type PostgresConfig struct {
	ConnString   string `yaml:"conn_string"`
	Table        string `yaml:"table"`
	EnsureSchema bool   `yaml:"ensure_schema"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

type DeadLetterConfig struct {
	Dir  string `yaml:"dir"`
	Sync bool   `yaml:"sync"`
}

// Load reads the YAML file at path, overlays secrets and endpoints from the
// environment (a .env file next to the config is loaded first when present),
// then applies defaults and validates.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, err
	}

	if err := loadDotEnv(filepath.Join(filepath.Dir(path), ".env")); err != nil {
		return nil, err
	}
	cfg.applyEnv(os.Getenv)

	if err := cfg.Finalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Finalize applies defaults and validates. Load calls it; configs built in
// code should too.
func (c *Config) Finalize() error {
	c.applyDefaults()
	return c.validate()
}

// loadDotEnv never overrides variables already set in the process.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	if v := getenv("OPENAI_API_KEY"); v != "" {
		c.Analyzer.APIKey = v
	}
	if v := getenv("DATABASE_URL"); v != "" {
		c.Postgres.ConnString = v
	}
	if v := getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = splitList(v)
	}
	if v := getenv("REDIS_ADDR"); v != "" {
		c.Queue.Redis.Addr = v
	}
	if v := getenv("MQTT_BROKER"); v != "" {
		c.Collector.MQTT.Broker = v
	}
}

func (c *Config) applyDefaults() {
	c.Dispatch = c.Dispatch.WithDefaults()

	if c.Ingest.MaxQueueLen == 0 {
		c.Ingest.MaxQueueLen = 100_000
	}
	if c.Ingest.OnQueueFull == "" {
		c.Ingest.OnQueueFull = ports.QueueFullDrop
	}
	if c.Heuristic == (classify.Thresholds{}) {
		c.Heuristic = classify.DefaultThresholds()
	}
	c.Analyzer.ApplyDefaults()

	if c.Queue.Backend == "" {
		c.Queue.Backend = QueueMemory
	}
	if c.Queue.Redis.Key == "" {
		c.Queue.Redis.Key = queue.DefaultRedisKey
	}
	if c.Queue.Redis.Capacity == 0 {
		c.Queue.Redis.Capacity = c.Ingest.MaxQueueLen
	}

	if c.Collector.Kind == "" {
		c.Collector.Kind = CollectorSimulator
	}
	c.Collector.Simulator.ApplyDefaults()
	c.Collector.OPCUA.ApplyDefaults()
	c.Collector.MQTT.ApplyDefaults()

	if c.Postgres.Table == "" {
		c.Postgres.Table = sink.DefaultResultsTable
	}
	if c.Metrics.Addr == "" {
		c.Metrics.Addr = ":9100"
	}
	if c.DeadLetter.Dir == "" {
		c.DeadLetter.Dir = "./data/deadletters"
	}
}

func (c *Config) validate() error {
	switch c.Ingest.OnQueueFull {
	case ports.QueueFullDrop, ports.QueueFullReject:
	default:
		return fmt.Errorf("ingest.on_queue_full must be drop or reject, got %q", c.Ingest.OnQueueFull)
	}

	switch c.Queue.Backend {
	case QueueMemory:
	case QueueRedis:
		if c.Queue.Redis.Addr == "" {
			return fmt.Errorf("queue.redis.addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("queue.backend must be memory or redis, got %q", c.Queue.Backend)
	}

	switch c.Collector.Kind {
	case CollectorSimulator:
	case CollectorOPCUA:
		if err := c.Collector.OPCUA.Validate(); err != nil {
			return fmt.Errorf("opcua config: %w", err)
		}
	case CollectorMQTT:
		if err := c.Collector.MQTT.Validate(); err != nil {
			return fmt.Errorf("mqtt config: %w", err)
		}
	default:
		return fmt.Errorf("collector.kind must be simulator, opcua or mqtt, got %q", c.Collector.Kind)
	}

	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		return fmt.Errorf("kafka.topic is required when brokers are set")
	}
	if c.Metrics.Addr == "" {
		return fmt.Errorf("metrics.addr is required")
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
