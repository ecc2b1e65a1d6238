// Copyright 2026 © The Telos Authors
// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	_ "modernc.org/sqlite"

	"github.com/ahermida/telos/pkg/planner"
)

// SQLiteSnapshotStore persists agent snapshots in SQLite, one row per
// agent key. Suitable when several agents share one database file.
type SQLiteSnapshotStore struct {
	db  *sql.DB
	key string
}

// NewSQLiteSnapshotStore creates a SQLite-backed snapshot store for the
// given agent key and ensures schema.
func NewSQLiteSnapshotStore(db *sql.DB, key string) (*SQLiteSnapshotStore, error) {
	if db == nil {
		return nil, errors.New("db is nil")
	}
	if key == "" {
		return nil, errors.New("agent key is required")
	}
	if err := ensureSnapshotSchema(db); err != nil {
		return nil, err
	}
	return &SQLiteSnapshotStore{db: db, key: key}, nil
}

// Save upserts the snapshot row for this store's agent key.
func (s *SQLiteSnapshotStore) Save(ctx context.Context, snapshot Snapshot) error {
	pending, err := encodePending(snapshot.Pending)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO agent_snapshots (agent_key, agent_id, map_id, location, pending_json, saved_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(agent_key) DO UPDATE SET
			agent_id = excluded.agent_id,
			map_id = excluded.map_id,
			location = excluded.location,
			pending_json = excluded.pending_json,
			saved_at = excluded.saved_at
	`,
		s.key,
		snapshot.AgentID,
		snapshot.MapID,
		snapshot.Location,
		pending,
		snapshot.SavedAt.UTC(),
	)
	return err
}

// Load reads the snapshot row for this store's agent key.
func (s *SQLiteSnapshotStore) Load(ctx context.Context) (Snapshot, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT agent_id, map_id, location, pending_json, saved_at
		FROM agent_snapshots WHERE agent_key = ?
	`, s.key)

	var (
		snapshot Snapshot
		pending  string
		savedAt  sql.NullTime
	)
	if err := row.Scan(&snapshot.AgentID, &snapshot.MapID, &snapshot.Location, &pending, &savedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Snapshot{}, ErrNoSnapshot
		}
		return Snapshot{}, err
	}
	if pending != "" && pending != "null" {
		var result planner.ActionResult
		if err := json.Unmarshal([]byte(pending), &result); err != nil {
			return Snapshot{}, err
		}
		snapshot.Pending = &result
	}
	if savedAt.Valid {
		snapshot.SavedAt = savedAt.Time
	}
	return snapshot, nil
}

func encodePending(pending *planner.ActionResult) (string, error) {
	if pending == nil {
		return "null", nil
	}
	data, err := json.Marshal(pending)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func ensureSnapshotSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS agent_snapshots (
			agent_key TEXT PRIMARY KEY,
			agent_id TEXT NOT NULL,
			map_id TEXT NOT NULL,
			location TEXT,
			pending_json TEXT,
			saved_at TIMESTAMP
		);
	`)
	return err
}

var _ SnapshotStore = (*SQLiteSnapshotStore)(nil)
