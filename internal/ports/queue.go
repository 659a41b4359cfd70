package ports

import "github.com/abheet19/telemetry-ai-ops/internal/domain"

// RecordQueue is the FIFO record of ingested records. Records reach the
// dispatcher independently of it, so none of its calls block and clearing it
// never loses work.
type RecordQueue interface {
	Enqueue(r *domain.Record) bool
	Dequeue() (*domain.Record, bool)
	DequeueBatch(max int) []*domain.Record
	Len() int
	Clear()
}
