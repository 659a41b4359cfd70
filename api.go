package aiops

import (
	"github.com/prometheus/client_golang/prometheus"

	base "github.com/abheet19/telemetry-ai-ops/pkg/aiops"
)

// Re-exported errors for convenience.
var (
	ErrRuntimeStopped    = base.ErrRuntimeStopped
	ErrChannelSinkClosed = base.ErrChannelSinkClosed
)

// Type aliases so consumers can import github.com/abheet19/telemetry-ai-ops directly.
type (
	Config                   = base.Config
	DispatchPolicy           = base.DispatchPolicy
	IngestPolicy             = base.IngestPolicy
	Thresholds               = base.Thresholds
	AnalyzerConfig           = base.AnalyzerConfig
	QueueConfig              = base.QueueConfig
	CollectorConfig          = base.CollectorConfig
	SimulatorConfig          = base.SimulatorConfig
	OPCUAConfig              = base.OPCUAConfig
	OPCUANodeConfig          = base.OPCUANodeConfig
	MQTTConfig               = base.MQTTConfig
	PostgresConfig           = base.PostgresConfig
	KafkaConfig              = base.KafkaConfig
	MetricsConfig            = base.MetricsConfig
	DeadLetterConfig         = base.DeadLetterConfig
	Flow                     = base.Flow
	FlowOption               = base.FlowOption
	StreamInOption           = base.StreamInOption
	StreamOutOption          = base.StreamOutOption
	EdgeRuntime              = base.EdgeRuntime
	EdgeRuntimeOption        = base.EdgeRuntimeOption
	Status                   = base.Status
	Record                   = base.Record
	Outcome                  = base.Outcome
	Verdict                  = base.Verdict
	Batch                    = base.Batch
	BatchResult              = base.BatchResult
	ResultHandler            = base.ResultHandler
	Collector                = base.Collector
	RecordQueue              = base.RecordQueue
	Analyzer                 = base.Analyzer
	BatchClassifier          = base.BatchClassifier
	ClassifyFunc             = base.ClassifyFunc
	ResultSink               = base.ResultSink
	DeadLetterStore          = base.DeadLetterStore
	DeadLetter               = base.DeadLetter
	DeadLetterID             = base.DeadLetterID
	DeadLetterStats          = base.DeadLetterStats
	Observability            = base.Observability
	Field                    = base.Field
	ExternalDispatcher       = base.ExternalDispatcher
	ExternalDispatcherConfig = base.ExternalDispatcherConfig
)

const (
	VerdictHealthy       = base.VerdictHealthy
	VerdictNeedsAnalysis = base.VerdictNeedsAnalysis
	VerdictClassified    = base.VerdictClassified
	VerdictError         = base.VerdictError

	QueueFullDrop   = base.QueueFullDrop
	QueueFullReject = base.QueueFullReject
)

// Config helpers.
func LoadConfig(path string) (*Config, error) {
	return base.LoadConfig(path)
}

// Flow builder helpers.
func Conf(path string, opts ...FlowOption) (*Flow, error) {
	return base.Conf(path, opts...)
}

func ConfFromConfig(cfg *Config, opts ...FlowOption) (*Flow, error) {
	return base.ConfFromConfig(cfg, opts...)
}

func WithFlowOptions(opts ...EdgeRuntimeOption) FlowOption {
	return base.WithFlowOptions(opts...)
}

func StreamInCollector(col Collector) StreamInOption {
	return base.StreamInCollector(col)
}

func StreamInQueue(q RecordQueue) StreamInOption {
	return base.StreamInQueue(q)
}

func StreamInObservability(obs Observability) StreamInOption {
	return base.StreamInObservability(obs)
}

func StreamOutAnalyzer(a Analyzer) StreamOutOption {
	return base.StreamOutAnalyzer(a)
}

func StreamOutClassifier(c BatchClassifier) StreamOutOption {
	return base.StreamOutClassifier(c)
}

func StreamOutSink(s ResultSink) StreamOutOption {
	return base.StreamOutSink(s)
}

func StreamOutDeadLetters(store DeadLetterStore) StreamOutOption {
	return base.StreamOutDeadLetters(store)
}

func StreamOutObservability(obs Observability) StreamOutOption {
	return base.StreamOutObservability(obs)
}

func StreamOutCallback(name string, fn ResultHandler) StreamOutOption {
	return base.StreamOutCallback(name, fn)
}

// Edge runtime and options.
func NewEdgeRuntime(cfg *Config, opts ...EdgeRuntimeOption) (*EdgeRuntime, error) {
	return base.NewEdgeRuntime(cfg, opts...)
}

func WithCollector(col Collector) EdgeRuntimeOption {
	return base.WithCollector(col)
}

func WithRecordQueue(q RecordQueue) EdgeRuntimeOption {
	return base.WithRecordQueue(q)
}

func WithAnalyzer(a Analyzer) EdgeRuntimeOption {
	return base.WithAnalyzer(a)
}

func WithClassifier(c BatchClassifier) EdgeRuntimeOption {
	return base.WithClassifier(c)
}

func WithResultSink(s ResultSink) EdgeRuntimeOption {
	return base.WithResultSink(s)
}

func WithDeadLetters(store DeadLetterStore) EdgeRuntimeOption {
	return base.WithDeadLetters(store)
}

func WithObservability(obs Observability) EdgeRuntimeOption {
	return base.WithObservability(obs)
}

func WithRegistry(reg *prometheus.Registry) EdgeRuntimeOption {
	return base.WithRegistry(reg)
}

// Sink adapters.
func NewCallbackSink(name string, fn ResultHandler) ResultSink {
	return base.NewCallbackSink(name, fn)
}

func NewChannelSink(name string, buffer int) (ResultSink, <-chan *BatchResult, func()) {
	return base.NewChannelSink(name, buffer)
}

func NewMultiSink(sinks ...ResultSink) ResultSink {
	return base.NewMultiSink(sinks...)
}

// External dispatcher.
func NewExternalDispatcher(cfg *ExternalDispatcherConfig, handler ResultHandler) (*ExternalDispatcher, error) {
	return base.NewExternalDispatcher(cfg, handler)
}
