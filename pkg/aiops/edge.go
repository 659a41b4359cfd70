package aiops

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/abheet19/telemetry-ai-ops/internal/adapters/analyzer"
	"github.com/abheet19/telemetry-ai-ops/internal/adapters/deadletter"
	"github.com/abheet19/telemetry-ai-ops/internal/adapters/mqtt"
	"github.com/abheet19/telemetry-ai-ops/internal/adapters/observability"
	"github.com/abheet19/telemetry-ai-ops/internal/adapters/opcua"
	"github.com/abheet19/telemetry-ai-ops/internal/adapters/queue"
	"github.com/abheet19/telemetry-ai-ops/internal/adapters/simulator"
	"github.com/abheet19/telemetry-ai-ops/internal/adapters/sink"
	"github.com/abheet19/telemetry-ai-ops/internal/app/config"
	"github.com/abheet19/telemetry-ai-ops/internal/app/pipeline"
	"github.com/abheet19/telemetry-ai-ops/internal/classify"
	"github.com/abheet19/telemetry-ai-ops/internal/dispatch"
	"github.com/abheet19/telemetry-ai-ops/internal/ports"
)

// ErrRuntimeStopped is returned by operations on a runtime that was shut down.
var ErrRuntimeStopped = errors.New("aiops: runtime stopped")

const schemaTimeout = 10 * time.Second

// EdgeRuntimeOption customizes the dependencies used by EdgeRuntime.
type EdgeRuntimeOption func(*runtimeOverrides)

type runtimeOverrides struct {
	collector     Collector
	queue         RecordQueue
	analyzer      Analyzer
	classifier    BatchClassifier
	sinks         []ResultSink
	deadLetters   DeadLetterStore
	observability Observability
	registry      *prometheus.Registry
}

// WithCollector injects a custom collector implementation.
func WithCollector(col Collector) EdgeRuntimeOption {
	return func(o *runtimeOverrides) {
		o.collector = col
	}
}

// WithRecordQueue replaces the configured item queue.
func WithRecordQueue(q RecordQueue) EdgeRuntimeOption {
	return func(o *runtimeOverrides) {
		o.queue = q
	}
}

// WithAnalyzer replaces the OpenAI analyzer used for residual records.
func WithAnalyzer(a Analyzer) EdgeRuntimeOption {
	return func(o *runtimeOverrides) {
		o.analyzer = a
	}
}

// WithClassifier bypasses the heuristic + analyzer classifier entirely.
func WithClassifier(c BatchClassifier) EdgeRuntimeOption {
	return func(o *runtimeOverrides) {
		o.classifier = c
	}
}

// WithResultSink adds a sink. When any sink is injected the configured
// Postgres and Kafka sinks are not built.
func WithResultSink(s ResultSink) EdgeRuntimeOption {
	return func(o *runtimeOverrides) {
		if s != nil {
			o.sinks = append(o.sinks, s)
		}
	}
}

// WithDeadLetters replaces the file journal for terminally failed batches.
func WithDeadLetters(store DeadLetterStore) EdgeRuntimeOption {
	return func(o *runtimeOverrides) {
		o.deadLetters = store
	}
}

// WithObservability plugs in a custom observability backend.
func WithObservability(obs Observability) EdgeRuntimeOption {
	return func(o *runtimeOverrides) {
		o.observability = obs
	}
}

// WithRegistry registers the default Prometheus metrics on reg and serves it
// on /metrics instead of a private registry.
func WithRegistry(reg *prometheus.Registry) EdgeRuntimeOption {
	return func(o *runtimeOverrides) {
		o.registry = reg
	}
}

// EdgeRuntime wires collector → dispatcher → result sinks, recording ingested
// records on the item queue, and exposes simple lifecycle hooks for embedding
// inside any Go service.
type EdgeRuntime struct {
	cfg         *Config
	obs         ports.Observability
	registry    *prometheus.Registry
	queue       ports.RecordQueue
	collector   ports.Collector
	classifier  ports.BatchClassifier
	sink        ports.ResultSink
	deadLetters ports.DeadLetterStore
	dispatcher  *dispatch.Dispatcher
	driver      *pipeline.Driver
	db          *sql.DB
	closers     []io.Closer

	mu          sync.Mutex
	started     bool
	stopped     bool
	metricsSrv  *http.Server
	gaugeStopCh chan struct{}
}

// NewEdgeRuntime bootstraps the adapters named by cfg (collector, item queue,
// classifier, result sinks, dead-letter journal, Prometheus observability).
// EdgeRuntimeOption values override any of them. cfg gets defaults applied
// and is validated.
func NewEdgeRuntime(cfg *Config, opts ...EdgeRuntimeOption) (rt *EdgeRuntime, err error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if err := cfg.Finalize(); err != nil {
		return nil, err
	}

	var overrides runtimeOverrides
	for _, opt := range opts {
		if opt != nil {
			opt(&overrides)
		}
	}

	rt = &EdgeRuntime{cfg: cfg}
	defer func() {
		if err != nil {
			_ = rt.closeResources()
			rt = nil
		}
	}()

	if err = rt.buildObservability(overrides); err != nil {
		return rt, err
	}
	if err = rt.buildQueue(overrides); err != nil {
		return rt, err
	}
	if err = rt.buildCollector(overrides); err != nil {
		return rt, err
	}
	if err = rt.buildClassifier(overrides); err != nil {
		return rt, err
	}
	if err = rt.buildSinks(overrides); err != nil {
		return rt, err
	}
	if err = rt.buildDeadLetters(overrides); err != nil {
		return rt, err
	}

	rt.dispatcher, err = dispatch.New(cfg.Dispatch, rt.classifier,
		dispatch.WithResultSink(rt.sink),
		dispatch.WithDeadLetters(rt.deadLetters),
		dispatch.WithObservability(rt.obs),
	)
	if err != nil {
		return rt, err
	}

	rt.driver, err = pipeline.NewDriver(rt.collector, rt.queue, rt.dispatcher, cfg.Ingest, rt.obs)
	if err != nil {
		return rt, err
	}
	return rt, nil
}

func (e *EdgeRuntime) buildObservability(o runtimeOverrides) error {
	if o.observability != nil {
		e.obs = o.observability
		e.registry = o.registry
		return nil
	}
	reg := o.registry
	if reg == nil {
		reg = prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	obs, err := observability.NewPromObs(reg, nil)
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}
	e.obs = obs
	e.registry = reg
	return nil
}

func (e *EdgeRuntime) buildQueue(o runtimeOverrides) error {
	if o.queue != nil {
		e.queue = o.queue
		return nil
	}
	switch e.cfg.Queue.Backend {
	case config.QueueRedis:
		q, err := queue.DialRedisQueue(e.cfg.Queue.Redis, e.obs)
		if err != nil {
			return err
		}
		e.queue = q
		e.closers = append(e.closers, q)
	default:
		e.queue = queue.NewMemQueue(e.cfg.Ingest.MaxQueueLen)
	}
	return nil
}

func (e *EdgeRuntime) buildCollector(o runtimeOverrides) error {
	if o.collector != nil {
		e.collector = o.collector
		return nil
	}
	var err error
	switch e.cfg.Collector.Kind {
	case config.CollectorOPCUA:
		e.collector, err = opcua.NewCollector(e.cfg.Collector.OPCUA, e.obs)
	case config.CollectorMQTT:
		e.collector, err = mqtt.NewCollector(e.cfg.Collector.MQTT, e.obs)
	default:
		e.collector = simulator.NewCollector(e.cfg.Collector.Simulator)
	}
	return err
}

func (e *EdgeRuntime) buildClassifier(o runtimeOverrides) error {
	if o.classifier != nil {
		e.classifier = o.classifier
		return nil
	}

	an := o.analyzer
	if an == nil && e.cfg.Analyzer.APIKey != "" {
		oa, err := analyzer.NewOpenAIAnalyzer(e.cfg.Analyzer)
		if err != nil {
			return err
		}
		an = oa
	}
	if an == nil {
		e.obs.LogInfo("analyzer_disabled", ports.Field{Key: "reason", Value: "no api key"})
	}
	e.classifier = classify.New(e.cfg.Heuristic, an, e.obs)
	return nil
}

func (e *EdgeRuntime) buildSinks(o runtimeOverrides) error {
	if len(o.sinks) > 0 {
		e.sink = NewMultiSink(o.sinks...)
		return nil
	}

	var sinks []ResultSink
	if e.cfg.Postgres.ConnString != "" {
		db, err := sql.Open("postgres", e.cfg.Postgres.ConnString)
		if err != nil {
			return err
		}
		e.db = db
		pg := sink.NewPostgresSink(db, e.cfg.Postgres.Table)
		if e.cfg.Postgres.EnsureSchema {
			ctx, cancel := context.WithTimeout(context.Background(), schemaTimeout)
			err := pg.EnsureSchema(ctx)
			cancel()
			if err != nil {
				return fmt.Errorf("ensure %s schema: %w", e.cfg.Postgres.Table, err)
			}
		}
		sinks = append(sinks, pg)
	}
	if len(e.cfg.Kafka.Brokers) > 0 {
		ks, err := sink.NewKafkaSink(e.cfg.Kafka)
		if err != nil {
			return err
		}
		e.closers = append(e.closers, ks)
		sinks = append(sinks, ks)
	}
	e.sink = NewMultiSink(sinks...)
	if e.sink == nil {
		e.obs.LogInfo("result_sinks_disabled")
	}
	return nil
}

func (e *EdgeRuntime) buildDeadLetters(o runtimeOverrides) error {
	if o.deadLetters != nil {
		e.deadLetters = o.deadLetters
		return nil
	}
	j, err := deadletter.Open(e.cfg.DeadLetter.Dir, e.cfg.DeadLetter.Sync)
	if err != nil {
		return err
	}
	e.deadLetters = j
	e.closers = append(e.closers, j)
	return nil
}

// Start begins dispatching, starts the ingestion driver and launches the
// metrics server. It returns immediately; call Run to block on a context
// instead.
func (e *EdgeRuntime) Start() error {
	if e == nil {
		return fmt.Errorf("edge runtime is nil")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopped {
		return ErrRuntimeStopped
	}
	if e.started {
		return nil
	}

	// Dispatch I/O is owned by the runtime; Shutdown bounds the drain.
	if err := e.dispatcher.Start(context.Background()); err != nil {
		return err
	}
	if err := e.driver.Start(); err != nil {
		_ = e.dispatcher.Stop(context.Background())
		return err
	}

	e.startMetrics()
	e.started = true
	return nil
}

// Run starts the runtime and blocks until the provided context is cancelled.
// Upon cancellation it attempts a graceful shutdown.
func (e *EdgeRuntime) Run(ctx context.Context) error {
	if err := e.Start(); err != nil {
		return err
	}
	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

// Shutdown stops the collector and flushes the dispatcher, then waits
// (bounded by ctx) for in-flight batches before
// closing the metrics server, sinks, journal and DB connection. A runtime
// cannot be restarted after Shutdown.
func (e *EdgeRuntime) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopped {
		return nil
	}
	e.stopped = true

	var errs []error

	if e.gaugeStopCh != nil {
		close(e.gaugeStopCh)
		e.gaugeStopCh = nil
	}

	if err := e.driver.Stop(); err != nil {
		errs = append(errs, err)
	}
	if !e.started {
		// Records published before Start still get dispatched; Stop flushes them.
		if err := e.dispatcher.Start(context.Background()); err != nil {
			errs = append(errs, err)
		}
	}
	if err := e.dispatcher.Stop(ctx); err != nil {
		errs = append(errs, err)
	}

	if e.metricsSrv != nil {
		if err := e.metricsSrv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs = append(errs, err)
		}
	}

	if err := e.closeResources(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// SetPipelineRunning starts or stops the collector-driven ingestion without
// touching the dispatcher. Publish keeps working while ingestion is off.
func (e *EdgeRuntime) SetPipelineRunning(on bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopped {
		return ErrRuntimeStopped
	}
	if on {
		return e.driver.Start()
	}
	return e.driver.Stop()
}

// PipelineRunning reports whether the ingestion driver is running.
func (e *EdgeRuntime) PipelineRunning() bool {
	return e.driver.Running()
}

// Publish validates r and hands a copy to the dispatcher alongside collector
// output, recording it on the item queue. It never waits on dispatch I/O; a
// full queue only affects what the queue keeps.
func (e *EdgeRuntime) Publish(r *Record) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopped {
		return ErrRuntimeStopped
	}
	return pipeline.Ingest(r.Clone(), e.queue, e.dispatcher, e.cfg.Ingest, e.obs)
}

// QueueLen reports how many records the item queue holds.
func (e *EdgeRuntime) QueueLen() int { return e.queue.Len() }

// ClearQueue empties the item queue. Dispatch is unaffected.
func (e *EdgeRuntime) ClearQueue() {
	e.queue.Clear()
	e.obs.SetGauge(ports.MetricQueueLength, 0)
	e.obs.LogInfo("queue_cleared")
}

// Flush forces the dispatcher to cut a batch from whatever is buffered.
func (e *EdgeRuntime) Flush() int { return e.dispatcher.Flush() }

// Status is a point-in-time snapshot of the runtime.
type Status struct {
	PipelineRunning bool
	DispatcherState string
	QueueLen        int
	Buffered        int
	InFlight        int
	DeadLetters     uint64
}

// Status reports queue, buffer and dispatch counts.
func (e *EdgeRuntime) Status() Status {
	st := Status{
		PipelineRunning: e.driver.Running(),
		DispatcherState: e.dispatcher.State().String(),
		QueueLen:        e.queue.Len(),
		Buffered:        e.dispatcher.Buffered(),
		InFlight:        e.dispatcher.InFlight(),
	}
	if e.deadLetters != nil {
		st.DeadLetters = e.deadLetters.Stats().Entries
	}
	return st
}

// MetricsHandler serves the runtime's registry, or the global one when a
// custom Observability was injected without WithRegistry.
func (e *EdgeRuntime) MetricsHandler() http.Handler {
	if e.registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{Registry: e.registry})
}

func (e *EdgeRuntime) startMetrics() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", e.MetricsHandler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	e.metricsSrv = &http.Server{
		Addr:              e.cfg.Metrics.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	srv := e.metricsSrv
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			e.obs.LogError("metrics_server_exited", err, ports.Field{Key: "addr", Value: srv.Addr})
		}
	}()

	e.gaugeStopCh = make(chan struct{})
	go e.recordResourceGauges(e.gaugeStopCh, time.Second)
}

func (e *EdgeRuntime) recordResourceGauges(stop <-chan struct{}, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			e.obs.SetGauge(ports.MetricQueueLength, float64(e.queue.Len()))
			if e.deadLetters != nil {
				e.obs.SetGauge(ports.MetricDeadLetterBytes, float64(e.deadLetters.Stats().SizeBytes))
			}
		}
	}
}

func (e *EdgeRuntime) closeResources() error {
	var errs []error
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	e.closers = nil

	if e.db != nil {
		if err := e.db.Close(); err != nil {
			errs = append(errs, err)
		}
		e.db = nil
	}
	return errors.Join(errs...)
}
