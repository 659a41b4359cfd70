package dispatch

import (
	"context"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/abheet19/telemetry-ai-ops/internal/ports"
)

func TestBackOffSchedule(t *testing.T) {
	tests := []struct {
		name   string
		policy ports.DispatchPolicy
		want   []time.Duration
	}{
		{
			name:   "default policy",
			policy: ports.DispatchPolicy{}.WithDefaults(),
			want:   []time.Duration{time.Second, 2 * time.Second},
		},
		{
			name:   "capped at backoff max",
			policy: ports.DispatchPolicy{MaxAttempts: 6}.WithDefaults(),
			want:   []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second, 8 * time.Second},
		},
		{
			name:   "single attempt never waits",
			policy: ports.DispatchPolicy{MaxAttempts: 1}.WithDefaults(),
			want:   nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newBackOff(context.Background(), tt.policy)
			for i, want := range tt.want {
				if got := b.NextBackOff(); got != want {
					t.Fatalf("wait %d: expected %s, got %s", i+1, want, got)
				}
			}
			if got := b.NextBackOff(); got != backoff.Stop {
				t.Fatalf("expected the schedule to stop after %d waits, got %s", len(tt.want), got)
			}
		})
	}
}

func TestBackOffStopsWhenContextEnds(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	b := newBackOff(ctx, ports.DispatchPolicy{MaxAttempts: 6}.WithDefaults())
	cancel()
	if got := b.NextBackOff(); got != backoff.Stop {
		t.Fatalf("expected cancelled context to stop retries, got %s", got)
	}
}
