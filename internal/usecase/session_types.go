package usecase

import (
	"context"
	"sync"

	"barcodescan/internal/domain"
	"barcodescan/internal/ports"
)

// Subscription delivers the single outcome of a started session.
type Subscription struct {
	SessionID string

	outcome <-chan domain.Outcome
	done    <-chan struct{}
}

// Outcome yields exactly one value and is then closed.
func (s *Subscription) Outcome() <-chan domain.Outcome {
	return s.outcome
}

// Done is closed once the outcome has been delivered.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Wait blocks for the outcome. A ScanError is returned as the error.
func (s *Subscription) Wait(ctx context.Context) (domain.ScanResult, error) {
	select {
	case outcome, ok := <-s.outcome:
		if !ok {
			return domain.ScanResult{}, ErrOutcomeConsumed
		}
		if outcome.Err != nil {
			return domain.ScanResult{}, outcome.Err
		}
		return *outcome.Result, nil
	case <-ctx.Done():
		return domain.ScanResult{}, ctx.Err()
	}
}

// eventQueue serialises sink notifications onto one dispatcher goroutine so that
// control calls never block on the host and host callbacks may call back into the session.
type eventQueue struct {
	mu      sync.Mutex
	pending []func(ports.EventSink)
	closed  bool
	wake    chan struct{}
	done    chan struct{}
}

func newEventQueue() *eventQueue {
	return &eventQueue{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

func (q *eventQueue) push(fn func(ports.EventSink)) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.pending = append(q.pending, fn)
	q.mu.Unlock()
	q.signal()
}

// close lets the dispatcher exit once everything queued so far has been emitted.
func (q *eventQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.signal()
}

func (q *eventQueue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *eventQueue) run(sink ports.EventSink) {
	defer close(q.done)
	for {
		q.mu.Lock()
		batch := q.pending
		q.pending = nil
		closed := q.closed
		q.mu.Unlock()

		for _, fn := range batch {
			fn(sink)
		}
		if closed && len(batch) == 0 {
			return
		}
		if len(batch) == 0 {
			<-q.wake
		}
	}
}
