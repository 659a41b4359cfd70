package queue

import (
	"sync"

	"github.com/abheet19/telemetry-ai-ops/internal/domain"
	"github.com/abheet19/telemetry-ai-ops/internal/ports"
)

// MemQueue is an in-memory FIFO of records. A capacity of zero means unbounded.
type MemQueue struct {
	mu   sync.Mutex
	data []*domain.Record
	cap  int
}

func NewMemQueue(capacity int) *MemQueue {
	if capacity < 0 {
		capacity = 0
	}
	return &MemQueue{
		data: make([]*domain.Record, 0, min(capacity, 1024)),
		cap:  capacity,
	}
}

func (q *MemQueue) Enqueue(r *domain.Record) bool {
	if r == nil {
		return false
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.cap > 0 && len(q.data) >= q.cap {
		return false
	}
	q.data = append(q.data, r)
	return true
}

func (q *MemQueue) Dequeue() (*domain.Record, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.data) == 0 {
		return nil, false
	}
	r := q.data[0]
	q.data[0] = nil
	q.data = q.data[1:]
	return r, true
}

func (q *MemQueue) DequeueBatch(max int) []*domain.Record {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.data) == 0 {
		return nil
	}
	if max <= 0 || max > len(q.data) {
		max = len(q.data)
	}
	out := make([]*domain.Record, max)
	copy(out, q.data[:max])
	q.data = append(q.data[:0], q.data[max:]...)
	return out
}

func (q *MemQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.data)
}

func (q *MemQueue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	clear(q.data)
	q.data = q.data[:0]
}

var _ ports.RecordQueue = (*MemQueue)(nil)
