package aiops

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// ErrChannelSinkClosed is returned when a channel sink is written to after being closed.
var ErrChannelSinkClosed = errors.New("aiops: channel sink closed")

// ResultHandler is invoked with every finished batch, failed ones included.
type ResultHandler func(*BatchResult) error

// NewCallbackSink adapts a ResultHandler into a full ResultSink so callers
// can plug arbitrary functions without defining structs.
func NewCallbackSink(name string, fn ResultHandler) ResultSink {
	if name == "" {
		name = "callback"
	}
	return &callbackSink{name: name, fn: fn}
}

// NewChannelSink exposes results via a channel; it returns the sink, the
// read-only channel, and a close function that the caller should invoke
// during shutdown.
func NewChannelSink(name string, buffer int) (ResultSink, <-chan *BatchResult, func()) {
	if name == "" {
		name = "channel"
	}
	if buffer < 0 {
		buffer = 0
	}
	ch := make(chan *BatchResult, buffer)
	s := &channelSink{
		name:   name,
		ch:     ch,
		closed: make(chan struct{}),
	}
	return s, ch, func() { s.close() }
}

// NewMultiSink writes every result to each sink in order. All sinks are
// attempted; their errors are joined. It returns nil when given no sinks.
func NewMultiSink(sinks ...ResultSink) ResultSink {
	var kept []ResultSink
	for _, s := range sinks {
		if s != nil {
			kept = append(kept, s)
		}
	}
	switch len(kept) {
	case 0:
		return nil
	case 1:
		return kept[0]
	}
	return multiSink(kept)
}

type callbackSink struct {
	name string
	fn   ResultHandler
}

func (s *callbackSink) WriteResult(_ context.Context, res *BatchResult) error {
	if s.fn == nil {
		return fmt.Errorf("callback sink %q: nil handler", s.name)
	}
	if res == nil {
		return nil
	}
	return s.fn(res)
}

func (s *callbackSink) Name() string { return s.name }

type channelSink struct {
	name   string
	ch     chan *BatchResult
	closed chan struct{}
	once   sync.Once
	mu     sync.RWMutex
	done   bool
}

func (s *channelSink) WriteResult(ctx context.Context, res *BatchResult) error {
	if res == nil {
		return nil
	}

	// The read lock keeps close from racing a send on the channel.
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.done {
		return ErrChannelSinkClosed
	}

	select {
	case <-s.closed:
		return ErrChannelSinkClosed
	case <-ctx.Done():
		return ctx.Err()
	case s.ch <- res:
		return nil
	}
}

func (s *channelSink) Name() string { return s.name }

func (s *channelSink) close() {
	s.once.Do(func() {
		close(s.closed)
		s.mu.Lock()
		s.done = true
		close(s.ch)
		s.mu.Unlock()
	})
}

type multiSink []ResultSink

func (m multiSink) WriteResult(ctx context.Context, res *BatchResult) error {
	var errs []error
	for _, s := range m {
		if err := s.WriteResult(ctx, res); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}

func (m multiSink) Name() string {
	names := make([]string, len(m))
	for i, s := range m {
		names[i] = s.Name()
	}
	return strings.Join(names, "+")
}
