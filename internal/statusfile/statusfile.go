// Package statusfile reads and writes status.json under an advisory file
// lock, so the monitoring/power snapshot survives a restart. It treats
// the file as the serialization format, not the source of truth — the
// in-process statestore.Store remains authoritative while the process
// is running.
package statusfile

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/afero"

	"github.com/arpi-project/monitord/internal/statestore"
)

const filePerms = 0o644

// Store persists statestore.Snapshot values to a single JSON file under
// an advisory lock.
type Store struct {
	fsys afero.Fs
	path string
	lock FileLocker
}

// FileLocker is the advisory-lock contract, implemented with
// golang.org/x/sys/unix.Flock in production and a no-op in tests backed
// by afero.NewMemMapFs().
type FileLocker interface {
	Lock(path string) (unlock func(), err error)
}

// New returns a Store writing to path using fsys and locker.
func New(fsys afero.Fs, path string, locker FileLocker) *Store {
	return &Store{fsys: fsys, path: path, lock: locker}
}

// Write atomically persists a Snapshot under the advisory lock.
func (s *Store) Write(snap statestore.Snapshot) error {
	unlock, err := s.lock.Lock(s.path)
	if err != nil {
		return fmt.Errorf("statusfile: lock failure: %w", err)
	}
	defer unlock()

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("statusfile: marshal failure: %w", err)
	}

	if err := afero.WriteFile(s.fsys, s.path, data, filePerms); err != nil {
		return fmt.Errorf("statusfile: write failure: %w", err)
	}

	return nil
}

// Read loads the last persisted Snapshot, if any. A missing file is not
// an error; it returns a zero Snapshot.
func (s *Store) Read() (statestore.Snapshot, error) {
	unlock, err := s.lock.Lock(s.path)
	if err != nil {
		return statestore.Snapshot{}, fmt.Errorf("statusfile: lock failure: %w", err)
	}
	defer unlock()

	exists, err := afero.Exists(s.fsys, s.path)
	if err != nil {
		return statestore.Snapshot{}, fmt.Errorf("statusfile: stat failure: %w", err)
	}
	if !exists {
		return statestore.Snapshot{}, nil
	}

	data, err := afero.ReadFile(s.fsys, s.path)
	if err != nil {
		return statestore.Snapshot{}, fmt.Errorf("statusfile: read failure: %w", err)
	}

	var snap statestore.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return statestore.Snapshot{}, fmt.Errorf("statusfile: corrupt file: %w", err)
	}

	return snap, nil
}
