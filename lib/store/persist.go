// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/bureau-foundation/canopy/lib/codec"
	"github.com/bureau-foundation/canopy/lib/settings"
)

// Snapshot is the persisted form of the record. Global holds the fields
// that have been written and not reset; absent fields take their
// defaults. Scopes holds the per-context overrides.
type Snapshot struct {
	Global settings.View                        `json:"global"`
	Scopes map[settings.ContextID]settings.View `json:"scopes,omitempty"`
}

// Persister loads the record once at startup and saves every accepted
// write. Save must be atomic: after a crash Load returns either the
// previous or the new snapshot.
type Persister interface {
	Load() (Snapshot, error)
	Save(Snapshot) error
}

// StateFile persists snapshots as a CBOR file.
type StateFile struct {
	path string
}

// NewStateFile returns a Persister backed by path. The parent directory
// must exist.
func NewStateFile(path string) *StateFile {
	return &StateFile{path: path}
}

// Path returns the state file location.
func (f *StateFile) Path() string { return f.path }

// Load reads the state file. A missing file is an empty snapshot.
func (f *StateFile) Load() (Snapshot, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Snapshot{}, nil
		}
		return Snapshot{}, fmt.Errorf("reading state file: %w", err)
	}

	var snapshot Snapshot
	if err := codec.Unmarshal(data, &snapshot); err != nil {
		return Snapshot{}, fmt.Errorf("parsing state file %s: %w", f.path, err)
	}
	return snapshot, nil
}

// Save writes the snapshot to a temporary file in the same directory,
// fsyncs it, renames it over the state file and fsyncs the directory.
func (f *StateFile) Save(snapshot Snapshot) error {
	data, err := codec.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encoding state: %w", err)
	}

	temporaryPath := f.path + ".tmp"
	file, err := os.OpenFile(temporaryPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("creating temporary state file: %w", err)
	}
	if _, err := file.Write(data); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("writing temporary state file: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("syncing temporary state file: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("closing temporary state file: %w", err)
	}
	if err := os.Rename(temporaryPath, f.path); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("renaming state file into place: %w", err)
	}

	directory, err := os.Open(filepath.Dir(f.path))
	if err == nil {
		directory.Sync()
		directory.Close()
	}
	return nil
}

// MemoryPersister keeps the last saved snapshot in memory.
type MemoryPersister struct {
	mu       sync.Mutex
	snapshot Snapshot
	saves    int
	failWith error
}

// Memory returns an empty in-memory Persister.
func Memory() *MemoryPersister {
	return &MemoryPersister{}
}

func (m *MemoryPersister) Load() (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneSnapshot(m.snapshot), nil
}

func (m *MemoryPersister) Save(snapshot Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	m.snapshot = cloneSnapshot(snapshot)
	m.saves++
	return nil
}

// Saves returns the number of successful saves.
func (m *MemoryPersister) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

// FailSaves makes every later Save return err. A nil err restores
// normal behavior.
func (m *MemoryPersister) FailSaves(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failWith = err
}

func cloneSnapshot(snapshot Snapshot) Snapshot {
	cloned := Snapshot{Global: snapshot.Global.Clone()}
	if len(snapshot.Scopes) > 0 {
		cloned.Scopes = make(map[settings.ContextID]settings.View, len(snapshot.Scopes))
		for id, scope := range snapshot.Scopes {
			cloned.Scopes[id] = scope.Clone()
		}
	}
	return cloned
}
