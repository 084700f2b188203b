package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Lyall-A/Checkboxes/internal/domain"
	goredis "github.com/redis/go-redis/v9"
)

// SnapshotStore keeps the whole checkbox document as one JSON string value.
type SnapshotStore struct {
	rdb *goredis.Client
	key string
}

var _ domain.SnapshotStore = (*SnapshotStore)(nil)

func NewSnapshotStore(rdb *goredis.Client, key string) *SnapshotStore {
	return &SnapshotStore{rdb: rdb, key: key}
}

func (s *SnapshotStore) Load(ctx context.Context) (*domain.State, error) {
	data, err := s.rdb.Get(ctx, s.key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, domain.ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", s.key, err)
	}

	var state domain.State
	if err := json.Unmarshal(data, &state); err != nil {
		if errors.Is(err, domain.ErrInvalidSnapshot) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidSnapshot, err)
	}
	return &state, nil
}

func (s *SnapshotStore) Save(ctx context.Context, state domain.State) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	if err := s.rdb.Set(ctx, s.key, data, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", s.key, err)
	}
	return nil
}

// Ping reports whether Redis is reachable.
func (s *SnapshotStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}
