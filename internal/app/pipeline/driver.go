// Package pipeline drives telemetry from a collector into the dispatch engine,
// recording every ingested record on the item queue along the way.
package pipeline

import (
	"errors"
	"fmt"
	"sync"

	"github.com/abheet19/telemetry-ai-ops/internal/domain"
	"github.com/abheet19/telemetry-ai-ops/internal/ports"
)

const intakeBuffer = 1024

// Driver owns the ingestion loop. Its Running state is the signal that tells
// the rest of the edge whether telemetry should keep flowing.
type Driver struct {
	col ports.Collector
	q   ports.RecordQueue
	acc Acceptor
	pol ports.IngestPolicy
	obs ports.Observability

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	wg      sync.WaitGroup
}

func NewDriver(col ports.Collector, q ports.RecordQueue, acc Acceptor, pol ports.IngestPolicy, obs ports.Observability) (*Driver, error) {
	if col == nil || q == nil || acc == nil {
		return nil, errors.New("pipeline: collector, queue and acceptor are required")
	}
	if obs == nil {
		return nil, errors.New("pipeline: observability is required")
	}
	return &Driver{col: col, q: q, acc: acc, pol: pol, obs: obs}, nil
}

func (d *Driver) Running() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running
}

// Start launches the collector and the intake. It is a no-op when already
// running.
func (d *Driver) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		return nil
	}

	ch := make(chan *domain.Record, intakeBuffer)
	if err := d.col.Start(ch); err != nil {
		return fmt.Errorf("start collector: %w", err)
	}

	stop := make(chan struct{})
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		runIntake(ch, d.q, d.acc, d.pol, d.obs, stop)
	}()

	d.stop = stop
	d.running = true
	d.obs.LogInfo("pipeline_started", ports.Field{Key: "on_queue_full", Value: d.pol.OnQueueFull})
	return nil
}

// Stop halts the collector, then the intake, and hands every record the
// collector already delivered to the acceptor before returning.
func (d *Driver) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running {
		return nil
	}
	d.running = false

	err := d.col.Stop()
	close(d.stop)
	d.wg.Wait()

	if err != nil {
		d.obs.LogError("collector_stop_failed", err)
		return fmt.Errorf("stop collector: %w", err)
	}
	d.obs.LogInfo("pipeline_stopped")
	return nil
}
