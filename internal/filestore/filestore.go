// Package filestore persists the checkbox document as a JSON file on local disk.
package filestore

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/Lyall-A/Checkboxes/internal/domain"
)

// Store reads and writes the state document at a single path.
// Writes go to a temporary sibling first and are renamed into place.
type Store struct {
	path string
}

// New returns a Store for path. The file does not need to exist.
func New(path string) *Store {
	return &Store{path: path}
}

// Path returns the file the store writes to.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) Load(_ context.Context) (*domain.State, error) {
	f, err := os.Open(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, domain.ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("open state file: %w", err)
	}
	defer f.Close()

	var state domain.State
	if err := json.NewDecoder(bufio.NewReader(f)).Decode(&state); err != nil {
		if errors.Is(err, domain.ErrInvalidSnapshot) {
			return nil, fmt.Errorf("decode %s: %w", s.path, err)
		}
		return nil, fmt.Errorf("decode %s: %w: %v", s.path, domain.ErrInvalidSnapshot, err)
	}
	return &state, nil
}

func (s *Store) Save(_ context.Context, state domain.State) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write temp state file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("sync temp state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close temp state file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace state file: %w", err)
	}
	return nil
}
