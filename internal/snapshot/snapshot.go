// Package snapshot persists the embedded engine's serialized state in a
// single named slot. One snapshot per device profile, overwritten wholesale
// on every save; there is no snapshot versioning. The version manager
// handles "shape changed" by deleting the slot so the store reseeds.
package snapshot

import (
	"bytes"
	"os"
	"path/filepath"

	"github.com/natefinch/atomic"
	"github.com/pkg/errors"
)

// Store is the durable blob slot behind the embedded engine.
type Store interface {
	// Save overwrites the slot with the full serialized engine state.
	Save(data []byte) error
	// Load returns the stored state, or (nil, nil) when no snapshot exists.
	// Absence is normal, not an error.
	Load() ([]byte, error)
	// Delete removes the slot. Deleting an absent slot is a no-op.
	Delete() error
}

const slotName = "main_db"

// FileStore keeps the slot as a single file in a directory, written
// atomically so a crash mid-save never leaves a torn snapshot.
type FileStore struct {
	dir string
}

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create snapshot dir")
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path() string {
	return filepath.Join(s.dir, slotName)
}

func (s *FileStore) Save(data []byte) error {
	if err := atomic.WriteFile(s.path(), bytes.NewReader(data)); err != nil {
		return errors.Wrap(err, "write snapshot slot")
	}
	return nil
}

func (s *FileStore) Load() ([]byte, error) {
	data, err := os.ReadFile(s.path())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "read snapshot slot")
	}
	return data, nil
}

func (s *FileStore) Delete() error {
	err := os.Remove(s.path())
	if err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "delete snapshot slot")
	}
	return nil
}
