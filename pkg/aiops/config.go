package aiops

import (
	"github.com/abheet19/telemetry-ai-ops/internal/adapters/analyzer"
	"github.com/abheet19/telemetry-ai-ops/internal/adapters/mqtt"
	"github.com/abheet19/telemetry-ai-ops/internal/adapters/opcua"
	"github.com/abheet19/telemetry-ai-ops/internal/adapters/simulator"
	"github.com/abheet19/telemetry-ai-ops/internal/adapters/sink"
	"github.com/abheet19/telemetry-ai-ops/internal/app/config"
	"github.com/abheet19/telemetry-ai-ops/internal/classify"
	"github.com/abheet19/telemetry-ai-ops/internal/ports"
)

// Config re-exports the root configuration struct so downstream projects can
// construct or modify it programmatically.
type Config = config.Config

type (
	// Thresholds are the heuristic OSNR/BER limits.
	Thresholds = classify.Thresholds
	// AnalyzerConfig configures the OpenAI analyzer.
	AnalyzerConfig = analyzer.Config
	// QueueConfig selects the item queue backend.
	QueueConfig = config.QueueConfig
	// CollectorConfig selects and configures the telemetry source.
	CollectorConfig = config.CollectorConfig
	// SimulatorConfig configures the simulated fetcher.
	SimulatorConfig = simulator.Config
	// OPCUAConfig holds connection + node details.
	OPCUAConfig = opcua.Config
	// OPCUANodeConfig maps a monitored node to a device metric.
	OPCUANodeConfig = opcua.NodeConfig
	// MQTTConfig configures the MQTT telemetry subscriber.
	MQTTConfig = mqtt.Config
	// PostgresConfig configures the ai_results sink.
	PostgresConfig = config.PostgresConfig
	// KafkaConfig configures the outcome topic sink.
	KafkaConfig = sink.KafkaConfig
	// MetricsConfig configures the metrics HTTP server.
	MetricsConfig = config.MetricsConfig
	// DeadLetterConfig configures the journal of terminally failed batches.
	DeadLetterConfig = config.DeadLetterConfig
)

const (
	CollectorSimulator = config.CollectorSimulator
	CollectorOPCUA     = config.CollectorOPCUA
	CollectorMQTT      = config.CollectorMQTT

	QueueMemory = config.QueueMemory
	QueueRedis  = config.QueueRedis

	QueueFullDrop   = ports.QueueFullDrop
	QueueFullReject = ports.QueueFullReject
)

// LoadConfig loads YAML from disk using the internal config reader.
func LoadConfig(path string) (*Config, error) {
	return config.Load(path)
}
