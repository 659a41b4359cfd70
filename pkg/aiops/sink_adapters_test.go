package aiops

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func sampleResult() *BatchResult {
	recs := records(2)
	return &BatchResult{
		Batch:    &Batch{ID: "b-1", Records: recs},
		Outcomes: []Outcome{{Verdict: VerdictHealthy}, {Verdict: VerdictClassified, Message: "check amplifier"}},
		Attempts: 1,
	}
}

func TestNewCallbackSink(t *testing.T) {
	var received []*BatchResult
	sink := NewCallbackSink("cb", func(res *BatchResult) error {
		received = append(received, res)
		return nil
	})

	input := sampleResult()
	if err := sink.WriteResult(context.Background(), input); err != nil {
		t.Fatalf("WriteResult returned error: %v", err)
	}
	if len(received) != 1 || received[0] != input {
		t.Fatalf("expected the result to be passed through, got %+v", received)
	}
	if sink.Name() != "cb" {
		t.Fatalf("unexpected name %q", sink.Name())
	}
}

func TestNewCallbackSinkNilHandler(t *testing.T) {
	sink := NewCallbackSink("", nil)
	if sink.Name() != "callback" {
		t.Fatalf("expected default name, got %q", sink.Name())
	}
	if err := sink.WriteResult(context.Background(), sampleResult()); err == nil {
		t.Fatalf("expected error when callback is nil")
	}
}

func TestNewChannelSink(t *testing.T) {
	sink, ch, closeFn := NewChannelSink("chan", 1)
	defer closeFn()

	input := sampleResult()
	errCh := make(chan error, 1)

	go func() {
		errCh <- sink.WriteResult(context.Background(), input)
	}()

	var got *BatchResult
	select {
	case got = <-ch:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for channel result")
	}

	if err := <-errCh; err != nil {
		t.Fatalf("WriteResult returned error: %v", err)
	}
	if got.Batch.ID != "b-1" {
		t.Fatalf("unexpected result: %+v", got)
	}

	closeFn()
	if err := sink.WriteResult(context.Background(), input); !errors.Is(err, ErrChannelSinkClosed) {
		t.Fatalf("expected ErrChannelSinkClosed, got %v", err)
	}
	if _, ok := <-ch; ok {
		t.Fatal("expected channel to be closed")
	}
}

func TestChannelSinkHonoursContext(t *testing.T) {
	sink, _, closeFn := NewChannelSink("", 0)
	defer closeFn()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := sink.WriteResult(ctx, sampleResult()); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded with no reader, got %v", err)
	}
}

func TestMultiSinkWritesAllAndJoinsErrors(t *testing.T) {
	var calls []string
	ok := NewCallbackSink("ok", func(*BatchResult) error {
		calls = append(calls, "ok")
		return nil
	})
	bad := NewCallbackSink("bad", func(*BatchResult) error {
		calls = append(calls, "bad")
		return errors.New("boom")
	})
	last := NewCallbackSink("last", func(*BatchResult) error {
		calls = append(calls, "last")
		return nil
	})

	multi := NewMultiSink(ok, nil, bad, last)
	if multi.Name() != "ok+bad+last" {
		t.Fatalf("unexpected name %q", multi.Name())
	}
	err := multi.WriteResult(context.Background(), sampleResult())
	if err == nil || !strings.Contains(err.Error(), "bad: boom") {
		t.Fatalf("expected joined error naming the sink, got %v", err)
	}
	if strings.Join(calls, ",") != "ok,bad,last" {
		t.Fatalf("expected every sink to be called in order, got %v", calls)
	}

	if NewMultiSink() != nil {
		t.Fatal("expected nil for no sinks")
	}
	if NewMultiSink(nil, ok) != ok {
		t.Fatal("expected a single sink to be returned as is")
	}
}
