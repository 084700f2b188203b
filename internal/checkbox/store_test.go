package checkbox

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/Lyall-A/Checkboxes/internal/domain"
	"github.com/Lyall-A/Checkboxes/internal/metrics"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memorySnapshots is an in-memory domain.SnapshotStore.
type memorySnapshots struct {
	mu      sync.Mutex
	state   *domain.State
	loadErr error
	saveErr error
	saves   int
}

func (m *memorySnapshots) Load(_ context.Context) (*domain.State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	if m.state == nil {
		return nil, domain.ErrSnapshotNotFound
	}
	s := m.state.Clone()
	return &s, nil
}

func (m *memorySnapshots) Save(_ context.Context, state domain.State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	if m.saveErr != nil {
		return m.saveErr
	}
	s := state.Clone()
	m.state = &s
	return nil
}

func (m *memorySnapshots) saved() (*domain.State, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state, m.saves
}

type recordingNotifier struct {
	mu      sync.Mutex
	updates []domain.Update
}

func (r *recordingNotifier) Notify(u domain.Update) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, u)
}

func (r *recordingNotifier) all() []domain.Update {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Update(nil), r.updates...)
}

func newTestStore(size int, snaps *memorySnapshots) (*Store, *recordingNotifier) {
	n := &recordingNotifier{}
	return NewStore(size, snaps, n, clockwork.NewFakeClock(), nil), n
}

func TestLoad_MissingSnapshotStartsEmpty(t *testing.T) {
	s, _ := newTestStore(5, &memorySnapshots{})

	require.NoError(t, s.Load(context.Background()))

	assert.Equal(t, domain.NewState(5), s.Get())
}

func TestLoad_Normalizes(t *testing.T) {
	tests := []struct {
		name      string
		persisted domain.State
		size      int
		want      domain.Cells
	}{
		{"same length", domain.State{Length: 3, Checkboxes: domain.Cells{1, 0, 1}}, 3, domain.Cells{1, 0, 1}},
		{"truncates longer", domain.State{Length: 5, Checkboxes: domain.Cells{1, 1, 0, 1, 1}}, 3, domain.Cells{1, 1, 0}},
		{"pads shorter", domain.State{Length: 2, Checkboxes: domain.Cells{1, 1}}, 4, domain.Cells{1, 1, 0, 0}},
		{"length field disagrees with array", domain.State{Length: 3, Checkboxes: domain.Cells{1}}, 3, domain.Cells{1, 0, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			persisted := tt.persisted
			s, _ := newTestStore(tt.size, &memorySnapshots{state: &persisted})

			require.NoError(t, s.Load(context.Background()))

			got := s.Get()
			assert.Equal(t, tt.size, got.Length)
			assert.Equal(t, tt.want, got.Checkboxes)
		})
	}
}

func TestLoad_PropagatesBackendError(t *testing.T) {
	s, _ := newTestStore(3, &memorySnapshots{loadErr: domain.ErrInvalidSnapshot})

	err := s.Load(context.Background())

	assert.ErrorIs(t, err, domain.ErrInvalidSnapshot)
}

func TestGet_ReturnsCopy(t *testing.T) {
	s, _ := newTestStore(3, &memorySnapshots{})

	snapshot := s.Get()
	snapshot.Checkboxes[0] = 1

	assert.Equal(t, uint8(0), s.Get().Checkboxes[0])
}

func TestSet_UpdatesAndNotifies(t *testing.T) {
	s, n := newTestStore(5, &memorySnapshots{})

	update, err := s.Set(2, true)

	require.NoError(t, err)
	assert.Equal(t, domain.Update{Checkbox: 2, State: 1}, update)
	assert.Equal(t, domain.Cells{0, 0, 1, 0, 0}, s.Get().Checkboxes)
	assert.Equal(t, []domain.Update{{Checkbox: 2, State: 1}}, n.all())
}

func TestSet_RepeatedValueNotifiesEachTime(t *testing.T) {
	s, n := newTestStore(3, &memorySnapshots{})

	_, err := s.Set(1, true)
	require.NoError(t, err)
	_, err = s.Set(1, true)
	require.NoError(t, err)

	assert.Equal(t, domain.Cells{0, 1, 0}, s.Get().Checkboxes)
	assert.Len(t, n.all(), 2)
}

func TestSet_OutOfRange(t *testing.T) {
	for _, index := range []int{-1, 3, 100} {
		s, n := newTestStore(3, &memorySnapshots{})

		_, err := s.Set(index, true)

		assert.ErrorIs(t, err, domain.ErrOutOfRange)
		assert.Equal(t, domain.NewState(3), s.Get())
		assert.Empty(t, n.all())
	}
}

func TestSet_ClearsCell(t *testing.T) {
	s, _ := newTestStore(2, &memorySnapshots{})
	_, _ = s.Set(0, true)

	update, err := s.Set(0, false)

	require.NoError(t, err)
	assert.Equal(t, uint8(0), update.State)
	assert.Equal(t, domain.Cells{0, 0}, s.Get().Checkboxes)
}

func TestSet_ConcurrentWritersAllApplied(t *testing.T) {
	s, n := newTestStore(100, &memorySnapshots{})

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = s.Set(i, true)
		}(i)
	}
	wg.Wait()

	for _, cell := range s.Get().Checkboxes {
		assert.Equal(t, uint8(1), cell)
	}
	assert.Len(t, n.all(), 100)
}

func TestPersist_SavesSnapshotAndRecordsMetrics(t *testing.T) {
	snaps := &memorySnapshots{}
	m := metrics.NewStateMetrics(prometheus.NewRegistry())
	s := NewStore(3, snaps, nil, clockwork.NewFakeClock(), m)
	_, _ = s.Set(0, true)

	require.NoError(t, s.Persist(context.Background()))

	saved, _ := snaps.saved()
	require.NotNil(t, saved)
	assert.Equal(t, domain.Cells{1, 0, 0}, saved.Checkboxes)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Updates.WithLabelValues("1")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.PersistFailures))
}

func TestPersist_ReturnsBackendError(t *testing.T) {
	boom := errors.New("disk full")
	m := metrics.NewStateMetrics(prometheus.NewRegistry())
	s := NewStore(3, &memorySnapshots{saveErr: boom}, nil, clockwork.NewFakeClock(), m)

	err := s.Persist(context.Background())

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PersistFailures))
}
