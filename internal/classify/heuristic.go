// Package classify implements the hybrid record classifier: a cheap local rule
// resolves known-good links and only the remainder is sent to an external
// analyzer in one bulk call.
package classify

import "github.com/abheet19/telemetry-ai-ops/internal/domain"

const (
	ReasonHeuristicOK        = "heuristic_ok"
	ReasonHeuristicUncertain = "heuristic_uncertain"
)

// Thresholds define the known-good region for the heuristic.
type Thresholds struct {
	MinOSNR float64 `yaml:"min_osnr"`
	MaxBER  float64 `yaml:"max_ber"`
}

func DefaultThresholds() Thresholds {
	return Thresholds{MinOSNR: 30, MaxBER: 1e-9}
}

// ClassifyOne applies the heuristic to a single record. Missing metrics always
// fall through to deeper analysis.
func (t Thresholds) ClassifyOne(r *domain.Record) domain.Outcome {
	osnr, okOSNR := r.Value(domain.KeyOSNR)
	ber, okBER := r.Value(domain.KeyBER)
	if okOSNR && okBER && osnr >= t.MinOSNR && ber <= t.MaxBER {
		return domain.Healthy(ReasonHeuristicOK)
	}
	return domain.NeedsAnalysis(ReasonHeuristicUncertain)
}

// ClassifyOne uses the default thresholds.
func ClassifyOne(r *domain.Record) domain.Outcome {
	return DefaultThresholds().ClassifyOne(r)
}
