package ports

import (
	"context"

	"github.com/abheet19/telemetry-ai-ops/internal/domain"
)

// BatchClassifier turns a batch of records into one outcome per record, in
// order. Errors are treated as transient by the dispatcher and retried.
type BatchClassifier interface {
	ClassifyBatch(ctx context.Context, records []*domain.Record) ([]domain.Outcome, error)
}

// ClassifyFunc adapts a plain function to BatchClassifier.
type ClassifyFunc func(ctx context.Context, records []*domain.Record) ([]domain.Outcome, error)

func (f ClassifyFunc) ClassifyBatch(ctx context.Context, records []*domain.Record) ([]domain.Outcome, error) {
	return f(ctx, records)
}

// Analyzer is the external bulk classification call. It returns the raw
// response text; structure is recovered by the classifier on a best-effort basis.
type Analyzer interface {
	Analyze(ctx context.Context, records []*domain.Record) (string, error)
	Name() string
}
