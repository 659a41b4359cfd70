package ports

import "time"

// DispatchPolicy controls when buffered records are flushed and how batches
// are dispatched.
type DispatchPolicy struct {
	BatchSize               int           `yaml:"batch_size"`
	FlushInterval           time.Duration `yaml:"flush_interval"`
	MaxConcurrentDispatches int           `yaml:"max_concurrent_dispatches"`
	MaxAttempts             int           `yaml:"max_attempts"`
	BackoffInitial          time.Duration `yaml:"backoff_initial"`
	BackoffMax              time.Duration `yaml:"backoff_max"`
}

// IngestPolicy bounds the item queue. OnQueueFull only decides what the queue
// keeps; dispatch is unaffected.
type IngestPolicy struct {
	MaxQueueLen int    `yaml:"max_queue_len"`
	OnQueueFull string `yaml:"on_queue_full"`
}

// Item queue policies.
const (
	QueueFullDrop   = "drop"   // evict the oldest queued record
	QueueFullReject = "reject" // leave the new record off the queue
)

const (
	DefaultBatchSize               = 16
	DefaultFlushInterval           = 12 * time.Second
	DefaultMaxConcurrentDispatches = 2
	DefaultMaxAttempts             = 3
	DefaultBackoffInitial          = time.Second
	DefaultBackoffMax              = 8 * time.Second
)

// WithDefaults returns a copy of p with zero fields replaced by defaults.
func (p DispatchPolicy) WithDefaults() DispatchPolicy {
	if p.BatchSize <= 0 {
		p.BatchSize = DefaultBatchSize
	}
	if p.FlushInterval <= 0 {
		p.FlushInterval = DefaultFlushInterval
	}
	if p.MaxConcurrentDispatches <= 0 {
		p.MaxConcurrentDispatches = DefaultMaxConcurrentDispatches
	}
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	if p.BackoffInitial <= 0 {
		p.BackoffInitial = DefaultBackoffInitial
	}
	if p.BackoffMax <= 0 {
		p.BackoffMax = DefaultBackoffMax
	}
	if p.BackoffMax < p.BackoffInitial {
		p.BackoffMax = p.BackoffInitial
	}
	return p
}
