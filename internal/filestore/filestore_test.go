package filestore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/Lyall-A/Checkboxes/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFile(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "checkboxes.json"))

	_, err := s.Load(context.Background())

	assert.ErrorIs(t, err, domain.ErrSnapshotNotFound)
}

func TestSaveThenLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkboxes.json")
	s := New(path)
	state := domain.State{Length: 4, Checkboxes: domain.Cells{0, 1, 1, 0}}

	require.NoError(t, s.Save(context.Background(), state))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"length":4,"checkboxes":[0,1,1,0]}`, string(raw))

	loaded, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, state, *loaded)
}

func TestSave_OverwritesWholesaleWithoutLeftovers(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "checkboxes.json")
	s := New(path)

	require.NoError(t, s.Save(context.Background(), domain.State{Length: 3, Checkboxes: domain.Cells{1, 1, 1}}))
	require.NoError(t, s.Save(context.Background(), domain.State{Length: 1, Checkboxes: domain.Cells{0}}))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"length":1,"checkboxes":[0]}`, string(raw))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestLoad_NonNumericCellsRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkboxes.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"length":2,"checkboxes":[1,0,true]}`), 0o644))

	_, err := New(path).Load(context.Background())

	assert.ErrorIs(t, err, domain.ErrInvalidSnapshot)
}

func TestLoad_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkboxes.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"length":`), 0o644))

	_, err := New(path).Load(context.Background())

	assert.ErrorIs(t, err, domain.ErrInvalidSnapshot)
}

func TestLoad_MismatchedLengthPreserved(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkboxes.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"length":5,"checkboxes":[1,0]}`), 0o644))

	loaded, err := New(path).Load(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 5, loaded.Length)
	assert.Equal(t, domain.Cells{1, 0}, loaded.Checkboxes)
}

func TestSave_MissingDirectory(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "missing", "checkboxes.json"))

	err := s.Save(context.Background(), domain.NewState(1))

	assert.Error(t, err)
}
