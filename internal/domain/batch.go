package domain

import "time"

// Batch is an immutable snapshot of records taken at flush time.
type Batch struct {
	ID        string
	Records   []*Record
	FlushedAt time.Time
}

func (b *Batch) Len() int {
	if b == nil {
		return 0
	}
	return len(b.Records)
}

// BatchResult is what a dispatch task reports once it is finished with a batch.
// Outcomes is positional: Outcomes[i] belongs to Batch.Records[i]. Err is only
// set when the batch failed terminally, in which case every outcome is an error.
type BatchResult struct {
	Batch    *Batch
	Outcomes []Outcome
	Attempts int
	Duration time.Duration
	Err      error
}

func (r *BatchResult) Failed() bool { return r != nil && r.Err != nil }
