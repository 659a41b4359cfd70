// Package simulator generates synthetic optical telemetry for a fixed set of
// devices. It stands in for real device polling in demos and soak tests.
package simulator

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/abheet19/telemetry-ai-ops/internal/domain"
	"github.com/abheet19/telemetry-ai-ops/internal/ports"
)

type Config struct {
	Devices  []string      `yaml:"devices"`
	Interval time.Duration `yaml:"interval"`
	// Seed makes the generated stream reproducible when non-zero.
	Seed uint64 `yaml:"seed"`
}

func (c *Config) ApplyDefaults() {
	if len(c.Devices) == 0 {
		c.Devices = []string{"switch_1", "switch_2", "amplifier_1", "transponder_1"}
	}
	if c.Interval <= 0 {
		c.Interval = 10 * time.Second
	}
}

var (
	wavelengths = []float64{1550.1, 1500.3, 1500.5}
	bers        = []float64{1e-9, 1e-6, 1e-3}
)

// Collector emits one record per device every Interval.
type Collector struct {
	cfg Config

	mu      sync.Mutex
	rng     *rand.Rand
	seq     uint64
	stop    chan struct{}
	done    chan struct{}
	started bool
}

func NewCollector(cfg Config) *Collector {
	cfg.ApplyDefaults()
	seed := cfg.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &Collector{
		cfg: cfg,
		rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

func (c *Collector) Start(out chan<- *domain.Record) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return errors.New("simulator already started")
	}
	c.stop = make(chan struct{})
	c.done = make(chan struct{})
	c.started = true
	go c.run(out, c.stop, c.done)
	return nil
}

func (c *Collector) Stop() error {
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return nil
	}
	c.started = false
	close(c.stop)
	done := c.done
	c.mu.Unlock()

	<-done
	return nil
}

func (c *Collector) run(out chan<- *domain.Record, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(c.cfg.Interval)
	defer ticker.Stop()

	for {
		for _, dev := range c.cfg.Devices {
			select {
			case <-stop:
				return
			case out <- c.Generate(dev):
			}
		}
		select {
		case <-stop:
			return
		case <-ticker.C:
		}
	}
}

// Generate returns one synthetic reading for device.
func (c *Collector) Generate(device string) *domain.Record {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.seq++
	return &domain.Record{
		DeviceID:  device,
		Timestamp: time.Now().UTC(),
		Seq:       c.seq,
		Values: map[string]float64{
			domain.KeyWavelength: wavelengths[c.rng.IntN(len(wavelengths))],
			domain.KeyOSNR:       uniform(c.rng, 18, 36),
			domain.KeyBER:        bers[c.rng.IntN(len(bers))],
			domain.KeyPowerDBM:   uniform(c.rng, -22, 18),
		},
	}
}

func uniform(r *rand.Rand, lo, hi float64) float64 {
	return lo + r.Float64()*(hi-lo)
}

func (c *Collector) String() string {
	return fmt.Sprintf("simulator(%d devices every %s)", len(c.cfg.Devices), c.cfg.Interval)
}

var _ ports.Collector = (*Collector)(nil)
