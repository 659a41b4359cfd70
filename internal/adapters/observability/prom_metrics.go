package observability

import (
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/abheet19/telemetry-ai-ops/internal/ports"
)

// PromObs backs ports.Observability with Prometheus collectors and slog.
// Unknown metric names are ignored.
type PromObs struct {
	logger   *slog.Logger
	counters map[string]prometheus.Counter
	gauges   map[string]prometheus.Gauge
	histos   map[string]prometheus.Observer
}

// NewPromObs registers the pipeline metrics on reg (the default registerer
// when nil) and logs through logger (a text handler on stderr when nil).
func NewPromObs(reg prometheus.Registerer, logger *slog.Logger) (*PromObs, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}

	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{Name: name, Help: help})
	}
	gauge := func(name, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{Name: name, Help: help})
	}

	p := &PromObs{
		logger: logger,
		counters: map[string]prometheus.Counter{
			ports.MetricAICalls:        counter(ports.MetricAICalls, "Batches dispatched to the classifier."),
			ports.MetricAIErrors:       counter(ports.MetricAIErrors, "Batches that failed after all retries."),
			ports.MetricRecordsFlushed: counter(ports.MetricRecordsFlushed, "Records moved from the buffer into batches."),
			ports.MetricSinkErrors:     counter(ports.MetricSinkErrors, "Failed result sink writes."),
			ports.MetricIngested:       counter(ports.MetricIngested, "Telemetry records accepted from collectors."),
			ports.MetricInvalid:        counter(ports.MetricInvalid, "Telemetry records rejected by validation."),
			ports.MetricQueueDropped:   counter(ports.MetricQueueDropped, "Records left off or evicted from the item queue by its full-queue policy."),
		},
		gauges: map[string]prometheus.Gauge{
			ports.MetricBufferSize:      gauge(ports.MetricBufferSize, "Records waiting in the dispatch buffer."),
			ports.MetricInflight:        gauge(ports.MetricInflight, "Batches admitted or waiting for a dispatch slot."),
			ports.MetricQueueLength:     gauge(ports.MetricQueueLength, "Records held in the item queue."),
			ports.MetricDeadLetterBytes: gauge(ports.MetricDeadLetterBytes, "Size of the dead-letter journal on disk."),
		},
		histos: map[string]prometheus.Observer{
			ports.MetricAILatency: prometheus.NewHistogram(prometheus.HistogramOpts{
				Name:    ports.MetricAILatency,
				Help:    "Time spent classifying a batch, retries included.",
				Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
			}),
		},
	}

	for _, c := range p.counters {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	for _, g := range p.gauges {
		if err := reg.Register(g); err != nil {
			return nil, err
		}
	}
	for _, h := range p.histos {
		if err := reg.Register(h.(prometheus.Collector)); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (p *PromObs) Logger() *slog.Logger { return p.logger }

func (p *PromObs) LogInfo(msg string, fields ...ports.Field) {
	p.logger.Info(msg, attrs(fields)...)
}

func (p *PromObs) LogError(msg string, err error, fields ...ports.Field) {
	p.logger.Error(msg, append(attrs(fields), slog.Any("err", err))...)
}

func (p *PromObs) LogCritical(msg string, err error, fields ...ports.Field) {
	p.logger.Error(msg, append(attrs(fields), slog.Any("err", err), slog.Bool("critical", true))...)
}

func (p *PromObs) IncCounter(name string, v float64) {
	if c, ok := p.counters[name]; ok {
		c.Add(v)
	}
}

func (p *PromObs) ObserveLatency(name string, seconds float64) {
	if h, ok := p.histos[name]; ok {
		h.Observe(seconds)
	}
}

func (p *PromObs) SetGauge(name string, v float64) {
	if g, ok := p.gauges[name]; ok {
		g.Set(v)
	}
}

func attrs(fields []ports.Field) []any {
	out := make([]any, 0, len(fields))
	for _, f := range fields {
		out = append(out, slog.Any(f.Key, f.Value))
	}
	return out
}

var _ ports.Observability = (*PromObs)(nil)
