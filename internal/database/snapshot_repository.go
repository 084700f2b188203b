package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Lyall-A/Checkboxes/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SnapshotRepo persists the checkbox document in the checkbox_state table.
type SnapshotRepo struct {
	pool *pgxpool.Pool
}

var _ domain.SnapshotStore = (*SnapshotRepo)(nil)

func NewSnapshotRepo(pool *pgxpool.Pool) *SnapshotRepo {
	return &SnapshotRepo{pool: pool}
}

func (r *SnapshotRepo) Load(ctx context.Context) (*domain.State, error) {
	var (
		length int
		raw    []byte
	)
	err := r.pool.QueryRow(ctx, `SELECT length, checkboxes FROM checkbox_state WHERE id = 1`).Scan(&length, &raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load checkbox state: %w", err)
	}

	var cells domain.Cells
	if err := json.Unmarshal(raw, &cells); err != nil {
		return nil, fmt.Errorf("failed to decode checkbox state: %w", err)
	}
	return &domain.State{Length: length, Checkboxes: cells}, nil
}

func (r *SnapshotRepo) Save(ctx context.Context, state domain.State) error {
	cells, err := json.Marshal(state.Checkboxes)
	if err != nil {
		return fmt.Errorf("failed to encode checkbox state: %w", err)
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO checkbox_state (id, length, checkboxes, updated_at)
		VALUES (1, $1, $2::jsonb, NOW())
		ON CONFLICT (id) DO UPDATE SET
			length = EXCLUDED.length,
			checkboxes = EXCLUDED.checkboxes,
			updated_at = NOW()
	`, state.Length, string(cells))
	if err != nil {
		return fmt.Errorf("failed to save checkbox state: %w", err)
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SnapshotRepo) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}
