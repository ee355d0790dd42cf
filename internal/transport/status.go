package transport

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/skobkin/meshhttp/internal/bus"
	"github.com/skobkin/meshhttp/internal/connectors"
)

// statusTracker owns the current DeviceStatus. Mutation and publication
// happen under one lock so the bus sees transitions in the order they occur.
type statusTracker struct {
	mu      sync.Mutex
	current connectors.DeviceStatus
	halted  bool

	bus    bus.MessageBus
	name   string
	target func() string
	logger *slog.Logger
}

func newStatusTracker(b bus.MessageBus, name string, target func() string, logger *slog.Logger) *statusTracker {
	return &statusTracker{
		current: connectors.StatusDisconnected,
		bus:     b,
		name:    name,
		target:  target,
		logger:  logger,
	}
}

func (s *statusTracker) Current() connectors.DeviceStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.current
}

// emit records state on behalf of the run that owns ctx. With onlyIfChanged
// it is a no-op when state is already current. Nothing is emitted between halt
// and the next resume, nor from a run whose ctx is done. Run contexts are
// cancelled before the successor's resume.
func (s *statusTracker) emit(ctx context.Context, state connectors.DeviceStatus, err error, onlyIfChanged bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.halted {
		s.logger.Debug("status change dropped after disconnect", "state", state.String())

		return false
	}
	if ctx.Err() != nil {
		s.logger.Debug("status change dropped from stale run", "state", state.String())

		return false
	}
	if onlyIfChanged && s.current == state {
		return false
	}
	s.publishLocked(state, err)

	return true
}

// halt publishes Disconnected and blocks further emits until resume.
func (s *statusTracker) halt() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.halted = true
	s.publishLocked(connectors.StatusDisconnected, nil)
}

// resume re-enables emits and publishes state.
func (s *statusTracker) resume(state connectors.DeviceStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.halted = false
	s.publishLocked(state, nil)
}

func (s *statusTracker) publishLocked(state connectors.DeviceStatus, err error) {
	prev := s.current
	s.current = state

	status := connectors.ConnectionStatus{
		State:         state,
		TransportName: s.name,
		Timestamp:     time.Now(),
	}
	if s.target != nil {
		status.Target = s.target()
	}
	if err != nil {
		status.Err = err.Error()
	}
	s.logger.Debug("status changed", "from", prev.String(), "to", state.String(), "error", status.Err)
	if s.bus != nil {
		s.bus.Publish(connectors.TopicConnStatus, status)
	}
}
