package pipeline

import (
	"fmt"

	"github.com/abheet19/telemetry-ai-ops/internal/domain"
	"github.com/abheet19/telemetry-ai-ops/internal/ports"
)

// runIntake feeds collector output through Ingest until stop is closed.
// Records still buffered in ch at that point are ingested before returning.
func runIntake(ch <-chan *domain.Record, q ports.RecordQueue, acc Acceptor, pol ports.IngestPolicy, obs ports.Observability, stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			for {
				select {
				case r := <-ch:
					Ingest(r, q, acc, pol, obs)
				default:
					return
				}
			}
		case r := <-ch:
			Ingest(r, q, acc, pol, obs)
		}
	}
}

// recordWithPolicy reports whether r ended up on the queue. Under the drop
// policy the oldest queued record is evicted to make room and counted here.
func recordWithPolicy(q ports.RecordQueue, r *domain.Record, pol ports.IngestPolicy, obs ports.Observability) bool {
	if q.Enqueue(r) {
		return true
	}

	switch pol.OnQueueFull {
	case ports.QueueFullDrop:
		if old, ok := q.Dequeue(); ok {
			obs.IncCounter(ports.MetricQueueDropped, 1)
			obs.LogError("queue_full_evict_oldest", fmt.Errorf("queue length exceeded capacity %d", pol.MaxQueueLen),
				ports.Field{Key: "device_id", Value: old.DeviceID})
		}
		return q.Enqueue(r)
	case ports.QueueFullReject:
		obs.LogError("queue_full_reject", fmt.Errorf("queue length exceeded capacity %d", pol.MaxQueueLen),
			ports.Field{Key: "device_id", Value: r.DeviceID})
		return false
	default:
		obs.LogError("queue_policy_invalid", fmt.Errorf("policy=%s", pol.OnQueueFull))
		return false
	}
}
