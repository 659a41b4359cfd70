// Package dispatch buffers telemetry records and hands them to a batch
// classifier in groups, flushing on size or on a timer, with a bounded number
// of concurrent dispatches and exponential-backoff retries per batch.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/abheet19/telemetry-ai-ops/internal/domain"
	"github.com/abheet19/telemetry-ai-ops/internal/ports"
)

// State is the dispatcher lifecycle state.
type State int32

const (
	StateStopped State = iota
	StateRunning
)

func (s State) String() string {
	if s == StateRunning {
		return "running"
	}
	return "stopped"
}

// Option customizes a Dispatcher.
type Option func(*Dispatcher)

// WithResultSink delivers every finished batch to s.
func WithResultSink(s ports.ResultSink) Option {
	return func(d *Dispatcher) { d.sink = s }
}

// WithDeadLetters journals terminally failed batches to store.
func WithDeadLetters(store ports.DeadLetterStore) Option {
	return func(d *Dispatcher) { d.deadLetters = store }
}

// WithObservability replaces the no-op observability backend.
func WithObservability(obs ports.Observability) Option {
	return func(d *Dispatcher) {
		if obs != nil {
			d.obs = obs
		}
	}
}

// Dispatcher is the batch dispatch engine. The zero value is not usable; call New.
type Dispatcher struct {
	policy      ports.DispatchPolicy
	classifier  ports.BatchClassifier
	sink        ports.ResultSink
	deadLetters ports.DeadLetterStore
	obs         ports.Observability
	gate        *semaphore.Weighted

	// bufMu guards buf only and is never held across a classifier call.
	bufMu sync.Mutex
	buf   []*domain.Record

	flushCh chan struct{}

	// stateMu serializes Start and Stop; state is readable without it.
	stateMu  sync.Mutex
	state    atomic.Int32
	stopCh   chan struct{}
	loopDone chan struct{}
	cancel   context.CancelFunc

	// mu guards ctx and active.
	mu     sync.Mutex
	ctx    context.Context
	active int64

	inflight sync.WaitGroup
}

// New builds a stopped Dispatcher. Zero fields in policy take defaults.
func New(policy ports.DispatchPolicy, classifier ports.BatchClassifier, opts ...Option) (*Dispatcher, error) {
	if classifier == nil {
		return nil, errors.New("dispatch: classifier is required")
	}
	policy = policy.WithDefaults()
	d := &Dispatcher{
		policy:     policy,
		classifier: classifier,
		obs:        nopObs{},
		gate:       semaphore.NewWeighted(int64(policy.MaxConcurrentDispatches)),
		buf:        make([]*domain.Record, 0, policy.BatchSize),
		flushCh:    make(chan struct{}, 1),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d, nil
}

// Policy returns the effective policy after defaults.
func (d *Dispatcher) Policy() ports.DispatchPolicy { return d.policy }

// State reports whether the flush loop is running.
func (d *Dispatcher) State() State {
	return State(d.state.Load())
}

// Buffered returns the number of records waiting for the next flush.
func (d *Dispatcher) Buffered() int {
	d.bufMu.Lock()
	defer d.bufMu.Unlock()
	return len(d.buf)
}

// InFlight returns the number of batches admitted or waiting for admission.
func (d *Dispatcher) InFlight() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return int(d.active)
}

// Start launches the flush loop. ctx bounds all dispatch I/O started while
// running; cancelling it aborts classifier calls and retry waits. Calling
// Start on a running dispatcher is a no-op.
func (d *Dispatcher) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	d.stateMu.Lock()
	defer d.stateMu.Unlock()
	if d.State() == StateRunning {
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.mu.Lock()
	d.ctx = runCtx
	d.mu.Unlock()
	d.cancel = cancel
	d.stopCh = make(chan struct{})
	d.loopDone = make(chan struct{})
	d.state.Store(int32(StateRunning))

	go d.loop(d.stopCh, d.loopDone)

	d.obs.LogInfo("dispatcher_started",
		ports.Field{Key: "batch_size", Value: d.policy.BatchSize},
		ports.Field{Key: "flush_interval", Value: d.policy.FlushInterval.String()},
		ports.Field{Key: "max_concurrent_dispatches", Value: d.policy.MaxConcurrentDispatches})
	return nil
}

// Stop wakes the flush loop, waits for it to exit, flushes whatever is still
// buffered and then waits for in-flight batches. If ctx ends first the
// remaining dispatches are cancelled and ctx's error is returned. Stop on a
// stopped dispatcher returns nil.
func (d *Dispatcher) Stop(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	d.stateMu.Lock()
	defer d.stateMu.Unlock()
	if d.State() == StateStopped {
		return nil
	}

	d.state.Store(int32(StateStopped))
	close(d.stopCh)
	<-d.loopDone

	// Flush takes stateMu, so no batch is submitted once Wait starts.
	d.flush()

	done := make(chan struct{})
	go func() {
		d.inflight.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-ctx.Done():
		d.cancel()
		<-done
		err = fmt.Errorf("dispatch: stop interrupted, in-flight batches cancelled: %w", ctx.Err())
	}
	d.cancel()
	d.mu.Lock()
	d.ctx = nil
	d.mu.Unlock()

	if err != nil {
		d.obs.LogError("dispatcher_stopped_with_loss", err)
		return err
	}
	d.obs.LogInfo("dispatcher_stopped")
	return nil
}

// Accept buffers r for the next flush. It never blocks on dispatch I/O. When
// the buffer reaches the batch size the flush loop is signalled. Records
// accepted while stopped stay buffered until the next Start or Flush.
func (d *Dispatcher) Accept(r *domain.Record) {
	if r == nil {
		return
	}
	d.bufMu.Lock()
	d.buf = append(d.buf, r)
	n := len(d.buf)
	d.bufMu.Unlock()

	d.obs.SetGauge(ports.MetricBufferSize, float64(n))

	if n >= d.policy.BatchSize {
		select {
		case d.flushCh <- struct{}{}:
		default:
		}
	}
}

// Flush moves the buffered records out and submits them to the dispatch pool
// as batches of at most BatchSize records, in insertion order. An empty
// buffer is a no-op. It returns the number of records submitted. A Flush
// issued during Stop runs once Stop has returned.
func (d *Dispatcher) Flush() int {
	d.stateMu.Lock()
	defer d.stateMu.Unlock()
	return d.flush()
}

func (d *Dispatcher) flush() int {
	d.bufMu.Lock()
	if len(d.buf) == 0 {
		d.bufMu.Unlock()
		return 0
	}
	records := d.buf
	d.buf = make([]*domain.Record, 0, d.policy.BatchSize)
	d.bufMu.Unlock()

	d.obs.SetGauge(ports.MetricBufferSize, 0)
	d.obs.IncCounter(ports.MetricRecordsFlushed, float64(len(records)))

	now := time.Now().UTC()
	for start := 0; start < len(records); start += d.policy.BatchSize {
		end := min(start+d.policy.BatchSize, len(records))
		batch := &domain.Batch{
			ID:        uuid.NewString(),
			Records:   records[start:end:end],
			FlushedAt: now,
		}
		d.obs.LogInfo("batch_flushed",
			ports.Field{Key: "batch_id", Value: batch.ID},
			ports.Field{Key: "records", Value: batch.Len()})
		d.submit(batch)
	}
	return len(records)
}

func (d *Dispatcher) loop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	timer := time.NewTimer(d.policy.FlushInterval)
	defer timer.Stop()

	for {
		select {
		case <-stop:
			return
		case <-d.flushCh:
		case <-timer.C:
		}

		d.flush()

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(d.policy.FlushInterval)
	}
}

func (d *Dispatcher) submit(batch *domain.Batch) {
	ctx := d.dispatchContext()

	d.inflight.Add(1)
	d.trackActive(1)
	go func() {
		defer d.inflight.Done()
		defer d.trackActive(-1)

		if err := d.gate.Acquire(ctx, 1); err != nil {
			d.finish(ctx, batch, 0, 0, fmt.Errorf("waiting for dispatch slot: %w", err), nil)
			return
		}
		defer d.gate.Release(1)

		d.run(ctx, batch)
	}()
}

// dispatchContext returns the running context, or a background context for
// flushes issued while stopped.
func (d *Dispatcher) dispatchContext() context.Context {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.ctx != nil {
		return d.ctx
	}
	return context.Background()
}

func (d *Dispatcher) trackActive(delta int64) {
	d.mu.Lock()
	d.active += delta
	n := d.active
	d.mu.Unlock()
	d.obs.SetGauge(ports.MetricInflight, float64(n))
}

func (d *Dispatcher) run(ctx context.Context, batch *domain.Batch) {
	d.obs.IncCounter(ports.MetricAICalls, 1)
	start := time.Now()

	outcomes, attempts, err := d.classifyWithRetry(ctx, batch)
	elapsed := time.Since(start)
	if err == nil {
		d.obs.ObserveLatency(ports.MetricAILatency, elapsed.Seconds())
	}
	d.finish(ctx, batch, attempts, elapsed, err, outcomes)
}

func (d *Dispatcher) finish(ctx context.Context, batch *domain.Batch, attempts int, elapsed time.Duration, err error, outcomes []domain.Outcome) {
	res := &domain.BatchResult{
		Batch:    batch,
		Outcomes: outcomes,
		Attempts: attempts,
		Duration: elapsed,
		Err:      err,
	}

	if err != nil {
		d.obs.IncCounter(ports.MetricAIErrors, 1)
		d.obs.LogError("batch_failed_after_retries", err,
			ports.Field{Key: "batch_id", Value: batch.ID},
			ports.Field{Key: "records", Value: batch.Len()},
			ports.Field{Key: "attempts", Value: attempts})
		res.Outcomes = failedOutcomes(batch.Len(), err)
		d.journal(batch, attempts, err)
	}

	if d.sink == nil {
		return
	}
	// Terminal failures caused by cancellation still reach the sink.
	sinkCtx := ctx
	if ctx.Err() != nil {
		sinkCtx = context.WithoutCancel(ctx)
	}
	if serr := d.sink.WriteResult(sinkCtx, res); serr != nil {
		d.obs.IncCounter(ports.MetricSinkErrors, 1)
		d.obs.LogError("result_sink_write_failed", serr,
			ports.Field{Key: "sink", Value: d.sink.Name()},
			ports.Field{Key: "batch_id", Value: batch.ID})
	}
}

func (d *Dispatcher) journal(batch *domain.Batch, attempts int, err error) {
	if d.deadLetters == nil {
		return
	}
	dl := &ports.DeadLetter{
		BatchID:  batch.ID,
		Records:  batch.Records,
		Attempts: attempts,
		Reason:   err.Error(),
		FailedAt: time.Now().UTC(),
	}
	if _, jerr := d.deadLetters.Append(dl); jerr != nil {
		d.obs.LogCritical("deadletter_append_failed", jerr, ports.Field{Key: "batch_id", Value: batch.ID})
		return
	}
	d.obs.SetGauge(ports.MetricDeadLetterBytes, float64(d.deadLetters.Stats().SizeBytes))
}

func failedOutcomes(n int, err error) []domain.Outcome {
	out := make([]domain.Outcome, n)
	for i := range out {
		out[i] = domain.Failed(err.Error())
	}
	return out
}

type nopObs struct{}

func (nopObs) LogInfo(string, ...ports.Field)            {}
func (nopObs) LogError(string, error, ...ports.Field)    {}
func (nopObs) LogCritical(string, error, ...ports.Field) {}
func (nopObs) IncCounter(string, float64)                {}
func (nopObs) ObserveLatency(string, float64)            {}
func (nopObs) SetGauge(string, float64)                  {}
