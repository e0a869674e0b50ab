// Package sqlite persists the store state to a single-file SQLite database
// using the pure-Go driver. Reads are served from the embedded memory engine;
// each successful mutation rewrites the mutated bucket.
package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"

	sqldocs "panelcore/docs/schema/sql"
	"panelcore/internal/persistence"

	_ "modernc.org/sqlite"
)

// Store wraps the memory engine with a SQLite snapshot table.
type Store struct {
	*persistence.Memory
	db *sql.DB
}

var _ persistence.Store = (*Store)(nil)

// New opens or creates the database at path and loads any persisted state.
func New(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite: empty database path")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", path, err)
	}
	if _, err := db.Exec(sqldocs.SQLite); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: create state table: %w", err)
	}
	s := &Store{db: db}
	s.Memory = persistence.New(s.persist)
	if err := s.load(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) load() error {
	rows, err := s.db.Query(`SELECT bucket, payload FROM state`)
	if err != nil {
		return fmt.Errorf("sqlite: load state: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var snap persistence.Snapshot
	for rows.Next() {
		var bucket string
		var payload []byte
		if err := rows.Scan(&bucket, &payload); err != nil {
			return fmt.Errorf("sqlite: scan state row: %w", err)
		}
		switch bucket {
		case persistence.BucketExports:
			if err := json.Unmarshal(payload, &snap.Exports); err != nil {
				return fmt.Errorf("sqlite: decode %s bucket: %w", bucket, err)
			}
		case persistence.BucketAudit:
			var stored struct {
				Entries []persistence.AuditEntry `json:"entries"`
				Seq     uint64                   `json:"seq"`
			}
			if err := json.Unmarshal(payload, &stored); err != nil {
				return fmt.Errorf("sqlite: decode %s bucket: %w", bucket, err)
			}
			snap.Audit = stored.Entries
			snap.AuditSeq = stored.Seq
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("sqlite: iterate state rows: %w", err)
	}
	s.ImportState(snap)
	return nil
}

func (s *Store) persist(bucket string, snap persistence.Snapshot) error {
	payload, err := encodeBucket(bucket, snap)
	if err != nil {
		return err
	}
	if _, err := s.db.Exec(
		`INSERT INTO state (bucket, payload) VALUES (?, ?) ON CONFLICT(bucket) DO UPDATE SET payload = excluded.payload`,
		bucket, payload,
	); err != nil {
		return fmt.Errorf("sqlite: persist %s bucket: %w", bucket, err)
	}
	return nil
}

func encodeBucket(bucket string, snap persistence.Snapshot) ([]byte, error) {
	switch bucket {
	case persistence.BucketExports:
		payload, err := json.Marshal(snap.Exports)
		if err != nil {
			return nil, fmt.Errorf("sqlite: encode %s bucket: %w", bucket, err)
		}
		return payload, nil
	case persistence.BucketAudit:
		payload, err := json.Marshal(struct {
			Entries []persistence.AuditEntry `json:"entries"`
			Seq     uint64                   `json:"seq"`
		}{Entries: snap.Audit, Seq: snap.AuditSeq})
		if err != nil {
			return nil, fmt.Errorf("sqlite: encode %s bucket: %w", bucket, err)
		}
		return payload, nil
	}
	return nil, fmt.Errorf("sqlite: unknown bucket %s", bucket)
}

// Close closes the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
