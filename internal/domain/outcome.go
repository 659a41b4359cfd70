package domain

import "encoding/json"

// Verdict tags the variant held by an Outcome.
type Verdict uint8

const (
	VerdictHealthy Verdict = iota
	VerdictNeedsAnalysis
	VerdictClassified
	VerdictError
)

func (v Verdict) String() string {
	switch v {
	case VerdictHealthy:
		return "healthy"
	case VerdictNeedsAnalysis:
		return "needs_ai"
	case VerdictClassified:
		return "classified"
	case VerdictError:
		return "error"
	default:
		return "unknown"
	}
}

// Outcome is the per-record result of classification.
//
// Payload is only set for VerdictClassified when the analyzer returned
// structured data; Message carries the human readable insight.
type Outcome struct {
	Verdict Verdict         `json:"verdict"`
	Reason  string          `json:"reason,omitempty"`
	Message string          `json:"message,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func Healthy(reason string) Outcome {
	return Outcome{Verdict: VerdictHealthy, Reason: reason}
}

func NeedsAnalysis(reason string) Outcome {
	return Outcome{Verdict: VerdictNeedsAnalysis, Reason: reason}
}

func Classified(message string, payload json.RawMessage) Outcome {
	return Outcome{Verdict: VerdictClassified, Message: message, Payload: payload}
}

func Failed(reason string) Outcome {
	return Outcome{Verdict: VerdictError, Reason: reason}
}

// Resolved reports whether the outcome needs no further analysis.
func (o Outcome) Resolved() bool {
	return o.Verdict != VerdictNeedsAnalysis
}

// MarshalJSON renders the verdict by name so persisted rows stay readable.
func (v Verdict) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.String())
}
