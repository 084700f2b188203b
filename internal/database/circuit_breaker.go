package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Lyall-A/Checkboxes/internal/domain"
	"github.com/Lyall-A/Checkboxes/internal/metrics"
	"github.com/failsafe-go/failsafe-go/circuitbreaker"
)

// CircuitBreakerStore guards a snapshot store with a circuit breaker. While the circuit
// is open, Load and Save fail immediately with circuitbreaker.ErrOpen.
type CircuitBreakerStore struct {
	cb   circuitbreaker.CircuitBreaker[any]
	next domain.SnapshotStore
}

var _ domain.SnapshotStore = (*CircuitBreakerStore)(nil)

// NewCircuitBreakerStore trips at a 60% failure rate over at least 5 calls in a 10s
// window and half-opens after 30s. m may be nil.
func NewCircuitBreakerStore(next domain.SnapshotStore, m *metrics.StorageMetrics) *CircuitBreakerStore {
	return newCircuitBreakerStore(next, 30*time.Second, m)
}

func newCircuitBreakerStore(next domain.SnapshotStore, delay time.Duration, m *metrics.StorageMetrics) *CircuitBreakerStore {
	cb := circuitbreaker.NewBuilder[any]().
		WithFailureRateThreshold(0.6, 5, 10*time.Second).
		WithDelay(delay).
		WithSuccessThreshold(1).
		OnStateChanged(func(e circuitbreaker.StateChangedEvent) {
			slog.Warn("Circuit breaker state changed",
				"component", backendName,
				"from", e.OldState.String(),
				"to", e.NewState.String(),
			)
			if m != nil {
				m.CircuitBreakerStateChanges.WithLabelValues(backendName, e.NewState.String()).Inc()
				m.CircuitBreakerState.WithLabelValues(backendName).Set(stateToFloat(e.NewState))
			}
		}).
		Build()

	return &CircuitBreakerStore{cb: cb, next: next}
}

func stateToFloat(state circuitbreaker.State) float64 {
	switch state {
	case circuitbreaker.ClosedState:
		return 0
	case circuitbreaker.HalfOpenState:
		return 1
	case circuitbreaker.OpenState:
		return 2
	default:
		return -1
	}
}

func (s *CircuitBreakerStore) Load(ctx context.Context) (*domain.State, error) {
	if !s.cb.TryAcquirePermit() {
		return nil, fmt.Errorf("postgres circuit breaker open: %w", circuitbreaker.ErrOpen)
	}
	state, err := s.next.Load(ctx)
	s.record(err)
	return state, err
}

func (s *CircuitBreakerStore) Save(ctx context.Context, state domain.State) error {
	if !s.cb.TryAcquirePermit() {
		return fmt.Errorf("postgres circuit breaker open: %w", circuitbreaker.ErrOpen)
	}
	err := s.next.Save(ctx, state)
	s.record(err)
	return err
}

// State returns the current breaker state.
func (s *CircuitBreakerStore) State() circuitbreaker.State {
	return s.cb.State()
}

// record treats a missing snapshot as a healthy answer from the database.
func (s *CircuitBreakerStore) record(err error) {
	if err == nil || errors.Is(err, domain.ErrSnapshotNotFound) {
		s.cb.RecordSuccess()
		return
	}
	s.cb.RecordError(err)
}
