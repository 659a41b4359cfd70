package ports

type Observability interface {
	LogInfo(msg string, fields ...Field)
	LogError(msg string, err error, fields ...Field)
	LogCritical(msg string, err error, fields ...Field)

	IncCounter(name string, v float64)
	ObserveLatency(name string, seconds float64)

	SetGauge(name string, v float64)
}

type Field struct {
	Key   string
	Value any
}

// Metric names shared by the dispatcher, the ingestion driver and the
// Prometheus adapter.
const (
	MetricBufferSize      = "telemetry_batch_queue_size"
	MetricAICalls         = "ai_calls_total"
	MetricAIErrors        = "ai_errors_total"
	MetricAILatency       = "ai_inference_latency_seconds"
	MetricRecordsFlushed  = "dispatcher_records_flushed_total"
	MetricInflight        = "dispatcher_batches_inflight"
	MetricSinkErrors      = "sink_write_errors_total"
	MetricIngested        = "telemetry_records_ingested_total"
	MetricInvalid         = "telemetry_records_invalid_total"
	MetricQueueDropped    = "telemetry_queue_dropped_total"
	MetricQueueLength     = "telemetry_queue_length"
	MetricDeadLetterBytes = "deadletter_size_bytes"
)
