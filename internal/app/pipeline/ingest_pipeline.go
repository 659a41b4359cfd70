package pipeline

import (
	"github.com/abheet19/telemetry-ai-ops/internal/domain"
	"github.com/abheet19/telemetry-ai-ops/internal/ports"
)

// Acceptor is the receiving side of the dispatch engine.
type Acceptor interface {
	Accept(r *domain.Record)
}

// Ingest validates r, hands it to the dispatcher and records it on the item
// queue. The queue is bookkeeping only: a full queue never stops r from
// reaching acc. Only invalid records are refused.
func Ingest(r *domain.Record, q ports.RecordQueue, acc Acceptor, pol ports.IngestPolicy, obs ports.Observability) error {
	if err := r.Validate(); err != nil {
		obs.IncCounter(ports.MetricInvalid, 1)
		obs.LogError("record_invalid", err, ports.Field{Key: "device_id", Value: deviceOf(r)})
		return err
	}
	obs.IncCounter(ports.MetricIngested, 1)
	acc.Accept(r)

	if !recordWithPolicy(q, r, pol, obs) {
		obs.IncCounter(ports.MetricQueueDropped, 1)
	}
	obs.SetGauge(ports.MetricQueueLength, float64(q.Len()))
	return nil
}

func deviceOf(r *domain.Record) string {
	if r == nil {
		return ""
	}
	return r.DeviceID
}
