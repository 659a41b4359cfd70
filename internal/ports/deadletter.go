package ports

import (
	"time"

	"github.com/abheet19/telemetry-ai-ops/internal/domain"
)

type DeadLetterID uint64

// DeadLetter is a batch that exhausted its dispatch attempts.
type DeadLetter struct {
	BatchID  string           `json:"batch_id"`
	Records  []*domain.Record `json:"records"`
	Attempts int              `json:"attempts"`
	Reason   string           `json:"reason"`
	FailedAt time.Time        `json:"failed_at"`
}

// DeadLetterStore journals terminally failed batches for operators. It is not
// a redelivery mechanism: nothing reads it back into the dispatcher.
type DeadLetterStore interface {
	Append(dl *DeadLetter) (DeadLetterID, error)
	Iterate(from DeadLetterID, fn func(id DeadLetterID, dl *DeadLetter) error) error
	Stats() DeadLetterStats
}

type DeadLetterStats struct {
	Entries   uint64
	LatestID  DeadLetterID
	SizeBytes int64
}
