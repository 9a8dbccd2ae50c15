package api

import (
	"context"
	"sync"

	"github.com/blackwell-systems/winpacman/internal/core"
)

// streamBuffer bounds each stream's event channel. A slow subscriber drops
// intermediate progress rather than stalling the worker.
const streamBuffer = 64

// ProgressStream is the handle returned by refresh calls. Events ends when
// the work finishes; Wait then reports the outcome.
type ProgressStream struct {
	Events <-chan core.ProgressEvent

	mu     sync.Mutex
	closed bool
	events chan core.ProgressEvent
	cancel context.CancelFunc
	abort  func()
	done   chan struct{}
	err    error
}

func newProgressStream(cancel context.CancelFunc, abort func()) *ProgressStream {
	events := make(chan core.ProgressEvent, streamBuffer)
	return &ProgressStream{
		Events: events,
		events: events,
		cancel: cancel,
		abort:  abort,
		done:   make(chan struct{}),
	}
}

// publish forwards one event, dropping it if the subscriber lags. The
// authoritative outcome is Wait's return, not the event feed.
func (s *ProgressStream) publish(ev core.ProgressEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.events <- ev:
	default:
	}
}

func (s *ProgressStream) finish(err error) {
	s.mu.Lock()
	s.closed = true
	s.err = err
	close(s.events)
	s.mu.Unlock()
	close(s.done)
}

// Cancel aborts the underlying work. Committed batches stay committed.
func (s *ProgressStream) Cancel() {
	if s.abort != nil {
		s.abort()
	}
	s.cancel()
}

// Wait blocks until the stream completes and returns its outcome.
func (s *ProgressStream) Wait() error {
	<-s.done
	return s.err
}

// OperationStream is the handle returned by install/uninstall calls. Events
// carries phase transitions and streamed child output lines.
type OperationStream struct {
	Events <-chan core.ProgressEvent

	mu     sync.Mutex
	closed bool
	events chan core.ProgressEvent
	cancel context.CancelFunc
	done   chan struct{}
	result core.OperationResult
	err    error
}

func newOperationStream(cancel context.CancelFunc) *OperationStream {
	events := make(chan core.ProgressEvent, streamBuffer)
	return &OperationStream{
		Events: events,
		events: events,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

func (s *OperationStream) publish(ev core.ProgressEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.events <- ev:
	default:
	}
}

func (s *OperationStream) finish(result core.OperationResult, err error) {
	s.mu.Lock()
	s.closed = true
	s.result = result
	s.err = err
	close(s.events)
	s.mu.Unlock()
	close(s.done)
}

// Cancel terminates the child process.
func (s *OperationStream) Cancel() { s.cancel() }

// Wait blocks until the operation completes.
func (s *OperationStream) Wait() (core.OperationResult, error) {
	<-s.done
	return s.result, s.err
}
