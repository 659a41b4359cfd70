package aiops

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/abheet19/telemetry-ai-ops/internal/adapters/deadletter"
)

func testConfig(t *testing.T) *Config {
	t.Helper()
	return &Config{
		Dispatch: DispatchPolicy{
			BatchSize:      2,
			FlushInterval:  20 * time.Millisecond,
			MaxAttempts:    2,
			BackoffInitial: time.Millisecond,
			BackoffMax:     2 * time.Millisecond,
		},
		Ingest: IngestPolicy{
			MaxQueueLen: 64,
		},
		Metrics:    MetricsConfig{Addr: "127.0.0.1:0"},
		DeadLetter: DeadLetterConfig{Dir: t.TempDir()},
	}
}

func records(n int) []*Record {
	out := make([]*Record, n)
	for i := range out {
		out[i] = &Record{
			DeviceID:  fmt.Sprintf("dev-%d", i),
			Timestamp: time.Unix(int64(i), 0),
			Seq:       uint64(i),
			Values:    map[string]float64{"osnr": 30, "ber": 1e-9},
		}
	}
	return out
}

func TestNewEdgeRuntimeWithCustomAdapters(t *testing.T) {
	cfg := testConfig(t)

	queueStub := &stubQueue{}
	collectorStub := &stubCollector{}
	sinkStub := &stubSink{}
	classifierStub := healthyClassifier()
	dlStub := &stubDeadLetters{}
	obsStub := &stubObservability{}

	rt, err := NewEdgeRuntime(
		cfg,
		WithCollector(collectorStub),
		WithResultSink(sinkStub),
		WithClassifier(classifierStub),
		WithDeadLetters(dlStub),
		WithRecordQueue(queueStub),
		WithObservability(obsStub),
	)
	if err != nil {
		t.Fatalf("NewEdgeRuntime returned error: %v", err)
	}

	if rt.collector != collectorStub {
		t.Fatalf("expected custom collector to be used")
	}
	if rt.sink != sinkStub {
		t.Fatalf("expected custom sink to be used")
	}
	if rt.deadLetters != dlStub {
		t.Fatalf("expected custom dead-letter store to be used")
	}
	if rt.queue != queueStub {
		t.Fatalf("expected custom queue to be used")
	}
	if rt.obs != obsStub {
		t.Fatalf("expected custom observability to be used")
	}
	if rt.db != nil {
		t.Fatalf("expected db to be nil when custom sink is provided")
	}
	if len(rt.closers) != 0 {
		t.Fatalf("expected no owned resources, got %d", len(rt.closers))
	}
}

func TestNewEdgeRuntimeAppliesDefaults(t *testing.T) {
	cfg := testConfig(t)
	cfg.Dispatch = DispatchPolicy{}

	rt, err := NewEdgeRuntime(cfg, WithCollector(&stubCollector{}), WithObservability(&stubObservability{}))
	if err != nil {
		t.Fatalf("NewEdgeRuntime returned error: %v", err)
	}
	defer rt.Shutdown(context.Background())

	pol := rt.dispatcher.Policy()
	if pol.BatchSize != 16 || pol.FlushInterval != 12*time.Second || pol.MaxConcurrentDispatches != 2 {
		t.Fatalf("unexpected dispatch defaults: %+v", pol)
	}
	if cfg.Collector.Kind != CollectorSimulator || cfg.Queue.Backend != QueueMemory {
		t.Fatalf("unexpected config defaults: collector=%q queue=%q", cfg.Collector.Kind, cfg.Queue.Backend)
	}
	if rt.sink != nil {
		t.Fatalf("expected no sink without postgres/kafka config, got %s", rt.sink.Name())
	}
}

func TestNewEdgeRuntimeRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Queue.Backend = "etcd"
	if _, err := NewEdgeRuntime(cfg); err == nil {
		t.Fatal("expected error for unknown queue backend")
	}
	if _, err := NewEdgeRuntime(nil); err == nil {
		t.Fatal("expected error for nil config")
	}
}

func TestEdgeRuntimeDeliversEveryRecord(t *testing.T) {
	cfg := testConfig(t)
	col := &stubCollector{records: records(5)}

	var (
		mu   sync.Mutex
		seen []string
	)
	sinkFn := func(res *BatchResult) error {
		mu.Lock()
		defer mu.Unlock()
		if len(res.Outcomes) != res.Batch.Len() {
			return fmt.Errorf("outcomes %d != records %d", len(res.Outcomes), res.Batch.Len())
		}
		for _, r := range res.Batch.Records {
			seen = append(seen, r.DeviceID)
		}
		return nil
	}

	rt, err := NewEdgeRuntime(cfg,
		WithCollector(col),
		WithClassifier(healthyClassifier()),
		WithResultSink(NewCallbackSink("test", sinkFn)),
	)
	if err != nil {
		t.Fatalf("NewEdgeRuntime returned error: %v", err)
	}
	if err := rt.Start(); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	if !rt.PipelineRunning() {
		t.Fatal("expected pipeline to be running after Start")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rt.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown returned error: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 5 {
		t.Fatalf("expected 5 records delivered, got %d: %v", len(seen), seen)
	}
	got := map[string]bool{}
	for _, id := range seen {
		if got[id] {
			t.Fatalf("record %s delivered twice", id)
		}
		got[id] = true
	}
	if st := rt.Status(); st.DispatcherState != "stopped" || st.PipelineRunning {
		t.Fatalf("unexpected status after shutdown: %+v", st)
	}
}

func TestEdgeRuntimeJournalsFailedBatches(t *testing.T) {
	cfg := testConfig(t)
	failing := ClassifyFunc(func(ctx context.Context, recs []*Record) ([]Outcome, error) {
		return nil, errors.New("model unavailable")
	})

	var (
		mu      sync.Mutex
		results []*BatchResult
	)
	rt, err := NewEdgeRuntime(cfg,
		WithCollector(&stubCollector{records: records(2)}),
		WithClassifier(failing),
		WithObservability(&stubObservability{}),
		WithResultSink(NewCallbackSink("", func(res *BatchResult) error {
			mu.Lock()
			results = append(results, res)
			mu.Unlock()
			return nil
		})),
	)
	if err != nil {
		t.Fatalf("NewEdgeRuntime returned error: %v", err)
	}
	if err := rt.Start(); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rt.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown returned error: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	var failedRecords int
	for _, res := range results {
		if !res.Failed() {
			t.Fatalf("expected failed batch result, got %+v", res)
		}
		if res.Attempts != 2 {
			t.Fatalf("expected 2 attempts, got %d", res.Attempts)
		}
		for _, o := range res.Outcomes {
			if o.Verdict != VerdictError {
				t.Fatalf("expected error verdict, got %v", o.Verdict)
			}
		}
		failedRecords += res.Batch.Len()
	}
	if failedRecords != 2 {
		t.Fatalf("expected 2 failed records, got %d", failedRecords)
	}

	var journaled int
	err = deadletter.ReadDir(cfg.DeadLetter.Dir, 0, func(id DeadLetterID, dl *DeadLetter) error {
		journaled += len(dl.Records)
		return nil
	})
	if err != nil {
		t.Fatalf("ReadDir returned error: %v", err)
	}
	if journaled != 2 {
		t.Fatalf("expected 2 journaled records, got %d", journaled)
	}
}

func TestEdgeRuntimePublishAndQueueControls(t *testing.T) {
	cfg := testConfig(t)
	cfg.Ingest.MaxQueueLen = 2

	rt, err := NewEdgeRuntime(cfg,
		WithCollector(&stubCollector{}),
		WithClassifier(healthyClassifier()),
		WithObservability(&stubObservability{}),
	)
	if err != nil {
		t.Fatalf("NewEdgeRuntime returned error: %v", err)
	}

	recs := records(3)
	for _, r := range recs {
		if err := rt.Publish(r); err != nil {
			t.Fatalf("Publish returned error: %v", err)
		}
	}
	if err := rt.Publish(&Record{}); err == nil {
		t.Fatal("expected validation error for record without device id")
	}
	if err := rt.Publish(nil); err == nil {
		t.Fatal("expected validation error for nil record")
	}
	if got := rt.QueueLen(); got != 2 {
		t.Fatalf("expected queue length 2, got %d", got)
	}
	if got := rt.Status().Buffered; got != 3 {
		t.Fatalf("expected every published record buffered for dispatch, got %d", got)
	}

	rt.ClearQueue()
	if got := rt.QueueLen(); got != 0 {
		t.Fatalf("expected empty queue after ClearQueue, got %d", got)
	}

	if err := rt.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown returned error: %v", err)
	}
	if got := rt.Status().Buffered; got != 0 {
		t.Fatalf("expected Shutdown to flush records published before Start, %d left", got)
	}
	if err := rt.Publish(recs[0]); !errors.Is(err, ErrRuntimeStopped) {
		t.Fatalf("expected ErrRuntimeStopped, got %v", err)
	}
	if err := rt.SetPipelineRunning(true); !errors.Is(err, ErrRuntimeStopped) {
		t.Fatalf("expected ErrRuntimeStopped, got %v", err)
	}
	if err := rt.Start(); !errors.Is(err, ErrRuntimeStopped) {
		t.Fatalf("expected ErrRuntimeStopped from Start, got %v", err)
	}
}

func TestEdgeRuntimePublishWhileIngestionOff(t *testing.T) {
	cfg := testConfig(t)
	cfg.Dispatch.BatchSize = 16
	cfg.Dispatch.FlushInterval = time.Hour

	var (
		mu         sync.Mutex
		classified []string
	)
	classifier := ClassifyFunc(func(ctx context.Context, recs []*Record) ([]Outcome, error) {
		mu.Lock()
		for _, r := range recs {
			classified = append(classified, r.DeviceID)
		}
		mu.Unlock()
		return healthyClassifier()(ctx, recs)
	})

	rt, err := NewEdgeRuntime(cfg,
		WithCollector(&stubCollector{}),
		WithClassifier(classifier),
		WithObservability(&stubObservability{}),
	)
	if err != nil {
		t.Fatalf("NewEdgeRuntime returned error: %v", err)
	}
	if err := rt.Start(); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	if err := rt.SetPipelineRunning(false); err != nil {
		t.Fatalf("SetPipelineRunning(false) returned error: %v", err)
	}

	recs := records(3)
	for _, r := range recs {
		if err := rt.Publish(r); err != nil {
			t.Fatalf("Publish returned error: %v", err)
		}
	}
	rt.ClearQueue()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rt.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown returned error: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(classified) != len(recs) {
		t.Fatalf("expected %d published records classified, got %v", len(recs), classified)
	}
}

func TestEdgeRuntimePipelineToggle(t *testing.T) {
	cfg := testConfig(t)
	col := &stubCollector{}

	rt, err := NewEdgeRuntime(cfg,
		WithCollector(col),
		WithClassifier(healthyClassifier()),
		WithObservability(&stubObservability{}),
	)
	if err != nil {
		t.Fatalf("NewEdgeRuntime returned error: %v", err)
	}
	defer rt.Shutdown(context.Background())

	if rt.PipelineRunning() {
		t.Fatal("pipeline should not run before Start")
	}
	if err := rt.SetPipelineRunning(true); err != nil {
		t.Fatalf("SetPipelineRunning(true) returned error: %v", err)
	}
	if !rt.PipelineRunning() {
		t.Fatal("expected pipeline running")
	}
	if err := rt.SetPipelineRunning(false); err != nil {
		t.Fatalf("SetPipelineRunning(false) returned error: %v", err)
	}
	if rt.PipelineRunning() {
		t.Fatal("expected pipeline stopped")
	}
	if col.startCount() != 1 || col.stopCount() != 1 {
		t.Fatalf("expected one collector start/stop, got %d/%d", col.startCount(), col.stopCount())
	}
}

func healthyClassifier() ClassifyFunc {
	return func(ctx context.Context, recs []*Record) ([]Outcome, error) {
		out := make([]Outcome, len(recs))
		for i := range out {
			out[i] = Outcome{Verdict: VerdictHealthy}
		}
		return out, nil
	}
}

type stubCollector struct {
	records []*Record

	mu     sync.Mutex
	starts int
	stops  int
}

func (s *stubCollector) Start(out chan<- *Record) error {
	s.mu.Lock()
	s.starts++
	s.mu.Unlock()
	for _, r := range s.records {
		out <- r
	}
	return nil
}

func (s *stubCollector) Stop() error {
	s.mu.Lock()
	s.stops++
	s.mu.Unlock()
	return nil
}

func (s *stubCollector) startCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.starts
}

func (s *stubCollector) stopCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stops
}

type stubSink struct{}

func (s *stubSink) WriteResult(context.Context, *BatchResult) error { return nil }
func (s *stubSink) Name() string                                    { return "stub" }

type stubQueue struct{}

func (s *stubQueue) Enqueue(*Record) bool           { return true }
func (s *stubQueue) Dequeue() (*Record, bool)       { return nil, false }
func (s *stubQueue) DequeueBatch(max int) []*Record { return nil }
func (s *stubQueue) Len() int                       { return 0 }
func (s *stubQueue) Clear()                         {}

type stubDeadLetters struct {
	mu      sync.Mutex
	entries []*DeadLetter
}

func (s *stubDeadLetters) Append(dl *DeadLetter) (DeadLetterID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, dl)
	return DeadLetterID(len(s.entries)), nil
}

func (s *stubDeadLetters) Iterate(from DeadLetterID, fn func(DeadLetterID, *DeadLetter) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, dl := range s.entries {
		id := DeadLetterID(i + 1)
		if id < from {
			continue
		}
		if err := fn(id, dl); err != nil {
			return err
		}
	}
	return nil
}

func (s *stubDeadLetters) Stats() DeadLetterStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return DeadLetterStats{Entries: uint64(len(s.entries)), LatestID: DeadLetterID(len(s.entries))}
}

type stubObservability struct{}

func (s *stubObservability) LogInfo(string, ...Field)            {}
func (s *stubObservability) LogError(string, error, ...Field)    {}
func (s *stubObservability) LogCritical(string, error, ...Field) {}
func (s *stubObservability) IncCounter(string, float64)          {}
func (s *stubObservability) ObserveLatency(string, float64)      {}
func (s *stubObservability) SetGauge(string, float64)            {}
