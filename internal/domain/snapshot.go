package domain

import "context"

// SnapshotStore persists the checkbox document wholesale.
// Load returns ErrSnapshotNotFound when nothing has been saved yet.
type SnapshotStore interface {
	Load(ctx context.Context) (*State, error)
	Save(ctx context.Context, state State) error
}
