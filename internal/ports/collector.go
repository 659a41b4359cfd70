package ports

import "github.com/abheet19/telemetry-ai-ops/internal/domain"

// Collector streams telemetry records from a device source into the pipeline.
type Collector interface {
	Start(out chan<- *domain.Record) error
	Stop() error
}
