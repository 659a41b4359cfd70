package ports

import (
	"context"

	"github.com/abheet19/telemetry-ai-ops/internal/domain"
)

// ResultSink receives every finished batch, including terminal failures.
type ResultSink interface {
	WriteResult(ctx context.Context, res *domain.BatchResult) error
	Name() string
}
