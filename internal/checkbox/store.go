package checkbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Lyall-A/Checkboxes/internal/domain"
	"github.com/Lyall-A/Checkboxes/internal/metrics"
	"github.com/jonboulle/clockwork"
)

// Store holds the checkbox state in memory. Reads take a snapshot under a read lock;
// Set mutates and notifies under the write lock so a caller never returns before the
// update has been handed to the notifier.
type Store struct {
	size      int
	snapshots domain.SnapshotStore
	notifier  domain.Notifier
	clock     clockwork.Clock
	metrics   *metrics.StateMetrics

	mu    sync.RWMutex
	state domain.State
}

// NewStore creates a Store of size cells backed by snapshots.
// notifier and m may be nil. The store is all-zero until Load is called.
func NewStore(size int, snapshots domain.SnapshotStore, notifier domain.Notifier, clock clockwork.Clock, m *metrics.StateMetrics) *Store {
	return &Store{
		size:      size,
		snapshots: snapshots,
		notifier:  notifier,
		clock:     clock,
		metrics:   m,
		state:     domain.NewState(size),
	}
}

// Load replaces the in-memory state with the persisted snapshot, resized to the
// configured size. A missing snapshot yields an all-zero state.
func (s *Store) Load(ctx context.Context) error {
	loaded, err := s.snapshots.Load(ctx)
	if errors.Is(err, domain.ErrSnapshotNotFound) {
		slog.Info("No persisted state found, starting empty", "checkboxes", s.size)
		s.mu.Lock()
		s.state = domain.NewState(s.size)
		s.mu.Unlock()
		return nil
	}
	if err != nil {
		return fmt.Errorf("load state: %w", err)
	}

	previous := loaded.Length
	if loaded.Normalize(s.size) {
		slog.Warn("Persisted state resized to configured length",
			"persisted_length", previous,
			"persisted_cells", len(loaded.Checkboxes),
			"checkboxes", s.size,
		)
	}

	s.mu.Lock()
	s.state = *loaded
	s.mu.Unlock()

	slog.Info("State loaded", "checkboxes", s.size)
	return nil
}

// Get returns a point-in-time copy of the state.
func (s *Store) Get() domain.State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Clone()
}

// Size returns the configured number of cells.
func (s *Store) Size() int {
	return s.size
}

// Set stores value at index and notifies before returning.
// Returns domain.ErrOutOfRange without mutating or notifying when index is invalid.
func (s *Store) Set(index int, value bool) (domain.Update, error) {
	if index < 0 || index >= s.size {
		return domain.Update{}, fmt.Errorf("%w: %d not in [0, %d)", domain.ErrOutOfRange, index, s.size)
	}

	var cell uint8
	if value {
		cell = 1
	}
	update := domain.Update{Checkbox: index, State: cell}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.Checkboxes[index] = cell
	if s.notifier != nil {
		s.notifier.Notify(update)
	}
	if s.metrics != nil {
		s.metrics.Updates.WithLabelValues(fmt.Sprint(cell)).Inc()
	}
	return update, nil
}

// Persist writes the current state to the snapshot store.
func (s *Store) Persist(ctx context.Context) error {
	snapshot := s.Get()
	start := s.clock.Now()

	err := s.snapshots.Save(ctx, snapshot)
	if s.metrics != nil {
		s.metrics.PersistDuration.Observe(s.clock.Since(start).Seconds())
		if err != nil {
			s.metrics.PersistFailures.Inc()
		} else {
			s.metrics.LastPersistEpoch.Set(float64(s.clock.Now().Unix()))
		}
	}
	if err != nil {
		return fmt.Errorf("persist state: %w", err)
	}
	return nil
}
