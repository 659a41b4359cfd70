package aiops

import (
	"github.com/abheet19/telemetry-ai-ops/internal/domain"
	"github.com/abheet19/telemetry-ai-ops/internal/ports"
)

// Record is one telemetry reading. Exported so custom collectors and sinks
// can build and inspect records.
type Record = domain.Record

// Outcome is the classification result for a single record.
type Outcome = domain.Outcome

// Verdict is the classification status carried by an Outcome.
type Verdict = domain.Verdict

const (
	VerdictHealthy       = domain.VerdictHealthy
	VerdictNeedsAnalysis = domain.VerdictNeedsAnalysis
	VerdictClassified    = domain.VerdictClassified
	VerdictError         = domain.VerdictError
)

// Batch is a group of records flushed together.
type Batch = domain.Batch

// BatchResult is what a ResultSink receives for every finished batch.
type BatchResult = domain.BatchResult

// Collector streams records from any data source into the pipeline.
type Collector = ports.Collector

// RecordQueue is the FIFO that decouples the collector from the dispatcher.
type RecordQueue = ports.RecordQueue

// Analyzer performs the bulk AI call for records the heuristic cannot resolve.
type Analyzer = ports.Analyzer

// BatchClassifier turns a batch of records into one outcome per record.
type BatchClassifier = ports.BatchClassifier

// ClassifyFunc adapts a plain function into a BatchClassifier.
type ClassifyFunc = ports.ClassifyFunc

// ResultSink consumes finished batches.
type ResultSink = ports.ResultSink

// DeadLetterStore journals batches that exhausted their attempts.
type DeadLetterStore = ports.DeadLetterStore

// DeadLetter is one journaled batch.
type DeadLetter = ports.DeadLetter

// DeadLetterID identifies a journal entry.
type DeadLetterID = ports.DeadLetterID

// DeadLetterStats summarizes a dead-letter store.
type DeadLetterStats = ports.DeadLetterStats

// Observability emits logs and metrics about throughput, latency and failures.
type Observability = ports.Observability

// Field is a structured log field used by Observability implementations.
type Field = ports.Field

// DispatchPolicy controls batching, concurrency and retries.
type DispatchPolicy = ports.DispatchPolicy

// IngestPolicy controls the item queue and its backpressure behaviour.
type IngestPolicy = ports.IngestPolicy
