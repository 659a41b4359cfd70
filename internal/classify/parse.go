package classify

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/abheet19/telemetry-ai-ops/internal/domain"
)

// ReasonMissingOutput marks records the analyzer response did not cover.
const ReasonMissingOutput = "analyzer returned no result for record"

var fenceRe = regexp.MustCompile("(?m)^```(?:json)?|```$")

// ParseResponse converts a raw analyzer response into n positional outcomes.
// A JSON array is matched element by element; anything else is split into
// non-blank lines and paired with records in order. The second return value
// reports whether the structured path was taken.
func ParseResponse(raw string, n int) ([]domain.Outcome, bool) {
	cleaned := strings.TrimSpace(fenceRe.ReplaceAllString(strings.TrimSpace(raw), ""))
	out := make([]domain.Outcome, n)
	for i := range out {
		out[i] = domain.Failed(ReasonMissingOutput)
	}

	var elems []json.RawMessage
	if err := json.Unmarshal([]byte(cleaned), &elems); err == nil {
		for i := 0; i < n && i < len(elems); i++ {
			out[i] = domain.Classified(elementMessage(elems[i]), compact(elems[i]))
		}
		return out, true
	}

	i := 0
	for _, line := range strings.Split(cleaned, "\n") {
		if i >= n {
			break
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		out[i] = domain.Classified(line, nil)
		i++
	}
	return out, false
}

func elementMessage(raw json.RawMessage) string {
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err == nil {
		for _, key := range []string{"Status", "status", "message"} {
			if v, ok := obj[key]; ok {
				if s, ok := v.(string); ok && s != "" {
					return s
				}
			}
		}
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(compact(raw))
}

func compact(raw json.RawMessage) json.RawMessage {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return raw
	}
	return buf.Bytes()
}
