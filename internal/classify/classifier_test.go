package classify

import (
	"context"
	"errors"
	"testing"

	"github.com/abheet19/telemetry-ai-ops/internal/domain"
	"github.com/abheet19/telemetry-ai-ops/internal/ports"
)

func rec(id string, values map[string]float64) *domain.Record {
	return &domain.Record{DeviceID: id, Values: values}
}

func TestClassifyOne(t *testing.T) {
	cases := []struct {
		name string
		rec  *domain.Record
		want domain.Verdict
	}{
		{"known good", rec("a", map[string]float64{"osnr": 32, "ber": 1e-9}), domain.VerdictHealthy},
		{"degraded", rec("b", map[string]float64{"osnr": 10, "ber": 1e-4}), domain.VerdictNeedsAnalysis},
		{"empty", rec("c", nil), domain.VerdictNeedsAnalysis},
		{"missing ber", rec("d", map[string]float64{"osnr": 35}), domain.VerdictNeedsAnalysis},
		{"boundary", rec("e", map[string]float64{"osnr": 30, "ber": 1e-9}), domain.VerdictHealthy},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ClassifyOne(tc.rec).Verdict; got != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, got)
			}
		})
	}
}

func TestClassifierClassifyOneUsesThresholdsOnly(t *testing.T) {
	an := &stubAnalyzer{}
	c := New(Thresholds{MinOSNR: 20, MaxBER: 1e-6}, an, nil)

	if got := c.ClassifyOne(rec("a", map[string]float64{"osnr": 25, "ber": 1e-7})).Verdict; got != domain.VerdictHealthy {
		t.Fatalf("expected configured thresholds to apply, got %s", got)
	}
	if got := c.ClassifyOne(rec("b", map[string]float64{"osnr": 10})).Verdict; got != domain.VerdictNeedsAnalysis {
		t.Fatalf("expected needs-analysis, got %s", got)
	}
	if an.calls != 0 {
		t.Fatalf("ClassifyOne must not call the analyzer, got %d calls", an.calls)
	}
}

func TestClassifyBatchAllHealthySkipsAnalyzer(t *testing.T) {
	an := &stubAnalyzer{}
	c := New(DefaultThresholds(), an, nil)

	out, err := c.ClassifyBatch(context.Background(), []*domain.Record{
		rec("a", map[string]float64{"osnr": 35, "ber": 1e-10}),
		rec("b", map[string]float64{"osnr": 31, "ber": 1e-9}),
	})
	if err != nil {
		t.Fatalf("ClassifyBatch: %v", err)
	}
	if an.calls != 0 {
		t.Fatalf("expected zero analyzer calls, got %d", an.calls)
	}
	for i, o := range out {
		if o.Verdict != domain.VerdictHealthy {
			t.Fatalf("record %d: expected healthy, got %s", i, o.Verdict)
		}
	}
}

func TestClassifyBatchMergesResidualInOrder(t *testing.T) {
	an := &stubAnalyzer{response: "```json\n[{\"status\":\"degraded: rebalance power\"},{\"status\":\"degraded: reroute\"}]\n```"}
	c := New(DefaultThresholds(), an, nil)

	records := []*domain.Record{
		rec("ok-1", map[string]float64{"osnr": 35, "ber": 1e-10}),
		rec("bad-1", map[string]float64{"osnr": 12, "ber": 1e-3}),
		rec("ok-2", map[string]float64{"osnr": 33, "ber": 1e-9}),
		rec("bad-2", nil),
	}
	out, err := c.ClassifyBatch(context.Background(), records)
	if err != nil {
		t.Fatalf("ClassifyBatch: %v", err)
	}
	if an.calls != 1 {
		t.Fatalf("expected one analyzer call, got %d", an.calls)
	}
	if len(an.seen) != 2 || an.seen[0].DeviceID != "bad-1" || an.seen[1].DeviceID != "bad-2" {
		t.Fatalf("analyzer should only see residual records in order, got %+v", an.seen)
	}
	if out[0].Verdict != domain.VerdictHealthy || out[2].Verdict != domain.VerdictHealthy {
		t.Fatalf("heuristic results not preserved: %+v", out)
	}
	if out[1].Message != "degraded: rebalance power" || out[3].Message != "degraded: reroute" {
		t.Fatalf("analyzer results merged into wrong positions: %+v", out)
	}
	if out[1].Verdict != domain.VerdictClassified || len(out[1].Payload) == 0 {
		t.Fatalf("expected structured classified outcome, got %+v", out[1])
	}
}

func TestClassifyBatchAnalyzerFailureYieldsUniformErrors(t *testing.T) {
	an := &stubAnalyzer{err: errors.New("upstream 503")}
	obs := &recordingObs{}
	c := New(DefaultThresholds(), an, obs)

	out, err := c.ClassifyBatch(context.Background(), []*domain.Record{
		rec("bad-1", nil),
		rec("ok", map[string]float64{"osnr": 35, "ber": 1e-10}),
		rec("bad-2", nil),
	})
	if err != nil {
		t.Fatalf("analyzer failure should not surface as error, got %v", err)
	}
	for _, i := range []int{0, 2} {
		if out[i].Verdict != domain.VerdictError || out[i].Reason != "ai analysis failed: upstream 503" {
			t.Fatalf("record %d: unexpected outcome %+v", i, out[i])
		}
	}
	if out[1].Verdict != domain.VerdictHealthy {
		t.Fatalf("heuristic result overwritten: %+v", out[1])
	}
	if obs.errors != 1 {
		t.Fatalf("expected analyzer failure to be logged once, got %d", obs.errors)
	}
}

func TestClassifyBatchPropagatesCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	an := &stubAnalyzer{err: context.Canceled}
	c := New(DefaultThresholds(), an, nil)

	_, err := c.ClassifyBatch(ctx, []*domain.Record{rec("bad", nil)})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestClassifyBatchWithoutAnalyzer(t *testing.T) {
	c := New(DefaultThresholds(), nil, nil)
	out, err := c.ClassifyBatch(context.Background(), []*domain.Record{rec("bad", nil)})
	if err != nil {
		t.Fatalf("ClassifyBatch: %v", err)
	}
	if out[0].Verdict != domain.VerdictNeedsAnalysis {
		t.Fatalf("expected needs-analysis without analyzer, got %s", out[0].Verdict)
	}
}

type stubAnalyzer struct {
	response string
	err      error
	calls    int
	seen     []*domain.Record
}

func (s *stubAnalyzer) Analyze(_ context.Context, records []*domain.Record) (string, error) {
	s.calls++
	s.seen = append(s.seen, records...)
	return s.response, s.err
}

func (s *stubAnalyzer) Name() string { return "stub" }

type recordingObs struct {
	errors int
}

func (r *recordingObs) LogInfo(string, ...ports.Field)            {}
func (r *recordingObs) LogError(string, error, ...ports.Field)    { r.errors++ }
func (r *recordingObs) LogCritical(string, error, ...ports.Field) {}
func (r *recordingObs) IncCounter(string, float64)                {}
func (r *recordingObs) ObserveLatency(string, float64)            {}
func (r *recordingObs) SetGauge(string, float64)                  {}
