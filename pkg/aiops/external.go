package aiops

import (
	"context"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/abheet19/telemetry-ai-ops/internal/adapters/observability"
	"github.com/abheet19/telemetry-ai-ops/internal/adapters/queue"
	"github.com/abheet19/telemetry-ai-ops/internal/app/pipeline"
	"github.com/abheet19/telemetry-ai-ops/internal/classify"
	"github.com/abheet19/telemetry-ai-ops/internal/dispatch"
	"github.com/abheet19/telemetry-ai-ops/internal/ports"
)

// ExternalDispatcherConfig configures the dispatcher used by callers that
// produce records themselves.
type ExternalDispatcherConfig struct {
	Dispatch  DispatchPolicy
	Ingest    IngestPolicy
	Heuristic Thresholds

	// Analyzer handles records the heuristic cannot resolve. Optional.
	Analyzer Analyzer
	// Classifier, when set, replaces heuristic + Analyzer.
	Classifier BatchClassifier
	// DeadLetters journals terminally failed batches. Optional.
	DeadLetters DeadLetterStore
	// Observability defaults to Prometheus metrics on a private registry.
	Observability Observability
}

// applyDefaults fills in sane thresholds so callers only override what they need.
func (c *ExternalDispatcherConfig) applyDefaults() {
	c.Dispatch = c.Dispatch.WithDefaults()
	if c.Ingest.MaxQueueLen == 0 {
		c.Ingest.MaxQueueLen = 100_000
	}
	if c.Ingest.OnQueueFull == "" {
		c.Ingest.OnQueueFull = ports.QueueFullDrop
	}
	if c.Heuristic == (Thresholds{}) {
		c.Heuristic = classify.DefaultThresholds()
	}
}

func (c *ExternalDispatcherConfig) validate() error {
	if c.Ingest.MaxQueueLen <= 0 {
		return fmt.Errorf("ingest.max_queue_len must be > 0")
	}
	switch c.Ingest.OnQueueFull {
	case ports.QueueFullDrop, ports.QueueFullReject:
	default:
		return fmt.Errorf("ingest.on_queue_full must be drop or reject, got %q", c.Ingest.OnQueueFull)
	}
	return nil
}

// ExternalDispatcher exposes the dispatcher → handler path to external
// producers, recording what they publish on a bounded item queue.
type ExternalDispatcher struct {
	policy     IngestPolicy
	queue      ports.RecordQueue
	obs        ports.Observability
	dispatcher *dispatch.Dispatcher

	// mu is held for reading by Publish so Close never races a final Accept.
	mu     sync.RWMutex
	closed bool
}

// NewExternalDispatcher wires a bounded queue, the classifier and a handler
// so callers can push arbitrary records while reusing the batching,
// concurrency and retry behaviour of the edge runtime. The dispatcher is
// running when this returns.
func NewExternalDispatcher(cfg *ExternalDispatcherConfig, handler ResultHandler) (*ExternalDispatcher, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if handler == nil {
		return nil, fmt.Errorf("result handler is required")
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	obs := cfg.Observability
	if obs == nil {
		prom, err := observability.NewPromObs(prometheus.NewRegistry(), nil)
		if err != nil {
			return nil, err
		}
		obs = prom
	}

	classifier := cfg.Classifier
	if classifier == nil {
		classifier = classify.New(cfg.Heuristic, cfg.Analyzer, obs)
	}

	d, err := dispatch.New(cfg.Dispatch, classifier,
		dispatch.WithResultSink(NewCallbackSink("external", handler)),
		dispatch.WithDeadLetters(cfg.DeadLetters),
		dispatch.WithObservability(obs),
	)
	if err != nil {
		return nil, err
	}
	if err := d.Start(context.Background()); err != nil {
		return nil, err
	}

	x := &ExternalDispatcher{
		policy:     cfg.Ingest,
		queue:      queue.NewMemQueue(cfg.Ingest.MaxQueueLen),
		obs:        obs,
		dispatcher: d,
	}
	return x, nil
}

// Publish validates r and hands a copy to the dispatcher. It never waits on
// dispatch I/O; the queue policy only decides what the item queue keeps.
func (x *ExternalDispatcher) Publish(ctx context.Context, r *Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	x.mu.RLock()
	defer x.mu.RUnlock()
	if x.closed {
		return ErrRuntimeStopped
	}
	return pipeline.Ingest(r.Clone(), x.queue, x.dispatcher, x.policy, x.obs)
}

// QueueLen reports how many records the item queue holds.
func (x *ExternalDispatcher) QueueLen() int { return x.queue.Len() }

// Close stops accepting records and stops the dispatcher, which flushes what
// is buffered and waits for in-flight batches until ctx ends.
func (x *ExternalDispatcher) Close(ctx context.Context) error {
	x.mu.Lock()
	x.closed = true
	x.mu.Unlock()
	return x.dispatcher.Stop(ctx)
}
