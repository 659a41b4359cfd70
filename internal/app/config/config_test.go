package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, dir, data string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, t.TempDir(), `
dispatch:
  batch_size: 8
ingest:
  max_queue_len: 1000
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if cfg.Dispatch.BatchSize != 8 {
		t.Fatalf("expected batch size 8, got %d", cfg.Dispatch.BatchSize)
	}
	if cfg.Dispatch.FlushInterval != 12*time.Second || cfg.Dispatch.MaxConcurrentDispatches != 2 {
		t.Fatalf("unexpected dispatch defaults: %+v", cfg.Dispatch)
	}
	if cfg.Dispatch.MaxAttempts != 3 || cfg.Dispatch.BackoffInitial != time.Second || cfg.Dispatch.BackoffMax != 8*time.Second {
		t.Fatalf("unexpected retry defaults: %+v", cfg.Dispatch)
	}
	if cfg.Ingest.MaxQueueLen != 100_000 || cfg.Ingest.OnQueueFull != "drop" {
		t.Fatalf("unexpected ingest defaults: %+v", cfg.Ingest)
	}
	if cfg.Heuristic.MinOSNR != 30 || cfg.Heuristic.MaxBER != 1e-9 {
		t.Fatalf("unexpected heuristic defaults: %+v", cfg.Heuristic)
	}
	if cfg.Analyzer.Model != "gpt-4o-mini" {
		t.Fatalf("expected default model gpt-4o-mini, got %s", cfg.Analyzer.Model)
	}
	if cfg.Collector.Kind != CollectorSimulator || len(cfg.Collector.Simulator.Devices) == 0 {
		t.Fatalf("expected simulator collector by default, got %+v", cfg.Collector)
	}
	if cfg.Queue.Backend != QueueMemory || cfg.Queue.Redis.Capacity != 1000 {
		t.Fatalf("unexpected queue defaults: %+v", cfg.Queue)
	}
	if cfg.Postgres.Table != "ai_results" {
		t.Fatalf("expected default table ai_results, got %s", cfg.Postgres.Table)
	}
	if cfg.Metrics.Addr != ":9100" {
		t.Fatalf("expected default metrics addr :9100, got %s", cfg.Metrics.Addr)
	}
	if cfg.DeadLetter.Dir != "./data/deadletters" {
		t.Fatalf("expected default deadletter dir, got %s", cfg.DeadLetter.Dir)
	}
}

func TestLoadOPCUACollector(t *testing.T) {
	path := writeConfig(t, t.TempDir(), `
collector:
  kind: opcua
  opcua:
    endpoint: opc.tcp://localhost:4840
    nodes:
      - node_id: "ns=2;s=Switch1.OSNR"
        field: osnr
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Collector.OPCUA.Nodes[0].DeviceID != "ns=2;s=Switch1.OSNR" {
		t.Fatalf("expected device ID fallback to node ID, got %s", cfg.Collector.OPCUA.Nodes[0].DeviceID)
	}
}

func TestLoadEnvOverlay(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `
queue:
  backend: redis
kafka:
  topic: ai-results
`)
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("REDIS_ADDR=localhost:6379\n"), 0o600); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("DATABASE_URL", "postgres://u:p@localhost/telemetry?sslmode=disable")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")
	t.Cleanup(func() { os.Unsetenv("REDIS_ADDR") })

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Analyzer.APIKey != "sk-test" {
		t.Fatalf("api key not taken from env")
	}
	if !strings.HasPrefix(cfg.Postgres.ConnString, "postgres://") {
		t.Fatalf("database url not taken from env: %q", cfg.Postgres.ConnString)
	}
	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[1] != "k2:9092" {
		t.Fatalf("unexpected brokers %v", cfg.Kafka.Brokers)
	}
	if cfg.Queue.Redis.Addr != "localhost:6379" {
		t.Fatalf("redis addr not taken from .env: %q", cfg.Queue.Redis.Addr)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"queue policy":   "ingest:\n  on_queue_full: block\n",
		"queue backend":  "queue:\n  backend: sqs\n",
		"redis addr":     "queue:\n  backend: redis\n",
		"collector kind": "collector:\n  kind: snmp\n",
		"opcua endpoint": "collector:\n  kind: opcua\n",
		"mqtt broker":    "collector:\n  kind: mqtt\n",
		"kafka topic":    "kafka:\n  brokers: [\"k1:9092\"]\n",
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv("REDIS_ADDR", "")
			t.Setenv("MQTT_BROKER", "")
			t.Setenv("KAFKA_BROKERS", "")
			if _, err := Load(writeConfig(t, t.TempDir(), data)); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}
