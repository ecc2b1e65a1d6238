// Copyright 2026 © The Telos Authors
// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"

	telerr "github.com/ahermida/telos/pkg/errors"
	"github.com/ahermida/telos/pkg/planner"
)

// Snapshot is the state an agent needs to resume after a restart without
// re-running Init's registration calls.
type Snapshot struct {
	AgentID  string                `json:"agent_id"`
	MapID    string                `json:"map_id"`
	Location string                `json:"location"`
	Pending  *planner.ActionResult `json:"pending,omitempty"`
	SavedAt  time.Time             `json:"saved_at"`
}

// ErrNoSnapshot reports that a store holds no saved state.
var ErrNoSnapshot = errors.New("no snapshot found")

// SnapshotStore persists a single agent snapshot.
type SnapshotStore interface {
	Save(ctx context.Context, snapshot Snapshot) error
	Load(ctx context.Context) (Snapshot, error)
}

// Snapshot captures the agent's resumable state.
func (a *Agent) Snapshot() Snapshot {
	return Snapshot{
		AgentID:  a.agentID,
		MapID:    a.mapID,
		Location: a.location,
		Pending:  a.pending,
		SavedAt:  time.Now().UTC(),
	}
}

// Save writes the current snapshot to the store.
func (a *Agent) Save(ctx context.Context, store SnapshotStore) error {
	if !a.initialized {
		return telerr.New(telerr.CodeConfig, "save called before init", nil)
	}
	return store.Save(ctx, a.Snapshot())
}

// Load builds an agent from options and restores it from the store,
// skipping registration. The restored agent is immediately steppable.
func Load(ctx context.Context, store SnapshotStore, name string, opts ...Option) (*Agent, error) {
	a, err := New(name, opts...)
	if err != nil {
		return nil, err
	}
	snapshot, err := store.Load(ctx)
	if err != nil {
		return nil, err
	}
	if snapshot.AgentID == "" || snapshot.MapID == "" {
		return nil, telerr.New(telerr.CodeConfig, "snapshot is missing registration ids", nil)
	}
	a.agentID = snapshot.AgentID
	a.mapID = snapshot.MapID
	if snapshot.Location != "" {
		a.location = snapshot.Location
	}
	a.pending = snapshot.Pending
	a.initialized = true
	return a, nil
}

// FileSnapshotStore persists the snapshot as a JSON file.
type FileSnapshotStore struct {
	path string
}

// NewFileSnapshotStore creates a file-backed snapshot store.
func NewFileSnapshotStore(path string) *FileSnapshotStore {
	return &FileSnapshotStore{path: path}
}

// Save writes the snapshot, replacing any previous one.
func (f *FileSnapshotStore) Save(_ context.Context, snapshot Snapshot) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return err
	}
	data, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, f.path)
}

// Load reads the snapshot back.
func (f *FileSnapshotStore) Load(_ context.Context) (Snapshot, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Snapshot{}, ErrNoSnapshot
		}
		return Snapshot{}, err
	}
	var snapshot Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return Snapshot{}, err
	}
	return snapshot, nil
}

var _ SnapshotStore = (*FileSnapshotStore)(nil)
