package classify

import (
	"context"
	"errors"
	"fmt"

	"github.com/abheet19/telemetry-ai-ops/internal/domain"
	"github.com/abheet19/telemetry-ai-ops/internal/ports"
)

// Classifier resolves what it can locally and batches the rest into a single
// analyzer call.
type Classifier struct {
	thresholds Thresholds
	analyzer   ports.Analyzer
	obs        ports.Observability
}

// New builds a Classifier. A nil analyzer leaves unresolved records as
// needs-analysis outcomes.
func New(th Thresholds, analyzer ports.Analyzer, obs ports.Observability) *Classifier {
	return &Classifier{thresholds: th, analyzer: analyzer, obs: obs}
}

// ClassifyOne applies the local heuristic only; it never calls the analyzer.
func (c *Classifier) ClassifyOne(r *domain.Record) domain.Outcome {
	return c.thresholds.ClassifyOne(r)
}

// ClassifyBatch returns one outcome per record, in input order. Analyzer
// failures become error outcomes rather than an error return; only context
// cancellation is returned so that shutdown propagates to the caller.
func (c *Classifier) ClassifyBatch(ctx context.Context, records []*domain.Record) ([]domain.Outcome, error) {
	results := make([]domain.Outcome, len(records))
	var (
		residual []*domain.Record
		indices  []int
	)
	for i, r := range records {
		out := c.thresholds.ClassifyOne(r)
		if !out.Resolved() {
			residual = append(residual, r)
			indices = append(indices, i)
		}
		results[i] = out
	}

	if len(residual) == 0 || c.analyzer == nil {
		return results, nil
	}

	merged, err := c.analyze(ctx, residual)
	if err != nil {
		return nil, err
	}
	for j, idx := range indices {
		results[idx] = merged[j]
	}
	return results, nil
}

func (c *Classifier) analyze(ctx context.Context, residual []*domain.Record) ([]domain.Outcome, error) {
	raw, err := c.analyzer.Analyze(ctx, residual)
	if err != nil {
		if errors.Is(err, context.Canceled) || ctx.Err() != nil {
			return nil, fmt.Errorf("analyze batch: %w", errors.Join(err, ctx.Err()))
		}
		if c.obs != nil {
			c.obs.LogError("analyzer_call_failed", err,
				ports.Field{Key: "analyzer", Value: c.analyzer.Name()},
				ports.Field{Key: "records", Value: len(residual)})
		}
		return uniform(len(residual), domain.Failed("ai analysis failed: "+err.Error())), nil
	}
	out, structured := ParseResponse(raw, len(residual))
	if !structured && c.obs != nil {
		c.obs.LogInfo("analyzer_output_unstructured",
			ports.Field{Key: "analyzer", Value: c.analyzer.Name()})
	}
	return out, nil
}

func uniform(n int, o domain.Outcome) []domain.Outcome {
	out := make([]domain.Outcome, n)
	for i := range out {
		out[i] = o
	}
	return out
}

var _ ports.BatchClassifier = (*Classifier)(nil)
