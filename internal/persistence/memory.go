package persistence

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Memory is the in-memory store engine. A persist hook, when set, runs after
// every successful mutation with the name of the mutated bucket; the database
// drivers use it to write that bucket through.
type Memory struct {
	mu      sync.RWMutex
	exports map[string]ExportRecord
	audit   []AuditEntry
	seq     uint64
	persist func(bucket string, snap Snapshot) error
}

// New returns a store that calls persist after each mutation. A nil persist
// keeps the store purely in memory.
func New(persist func(bucket string, snap Snapshot) error) *Memory {
	return &Memory{exports: make(map[string]ExportRecord), persist: persist}
}

// NewMemory returns a store with no persistence hook.
func NewMemory() *Memory { return New(nil) }

var _ Store = (*Memory)(nil)

// PutExport inserts or replaces a record by ID.
func (m *Memory) PutExport(_ context.Context, record ExportRecord) error {
	if record.ID == "" {
		return fmt.Errorf("persistence: export record has empty id")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.exports[record.ID] = record.Clone()
	return m.persistLocked(BucketExports)
}

// GetExport returns the record with the given ID.
func (m *Memory) GetExport(_ context.Context, id string) (ExportRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	record, ok := m.exports[id]
	if !ok {
		return ExportRecord{}, ErrNotFound{Entity: "export", ID: id}
	}
	return record.Clone(), nil
}

// ListExports returns every record, newest request first.
func (m *Memory) ListExports(_ context.Context) ([]ExportRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]ExportRecord, 0, len(m.exports))
	for _, record := range m.exports {
		out = append(out, record.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].RequestedAt.Equal(out[j].RequestedAt) {
			return out[i].RequestedAt.After(out[j].RequestedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// AppendAudit assigns the next sequence number, fills a zero time with the
// current time, and appends the entry.
func (m *Memory) AppendAudit(_ context.Context, entry AuditEntry) (AuditEntry, error) {
	if entry.Action == "" {
		return AuditEntry{}, fmt.Errorf("persistence: audit entry has empty action")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	entry.Seq = m.seq
	if entry.Time.IsZero() {
		entry.Time = time.Now().UTC()
	}
	m.audit = append(m.audit, entry)
	if err := m.persistLocked(BucketAudit); err != nil {
		return AuditEntry{}, err
	}
	return entry, nil
}

// ListAudit returns entries newest first. A limit above zero caps the count.
func (m *Memory) ListAudit(_ context.Context, limit int) ([]AuditEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]AuditEntry, 0, len(m.audit))
	for i := len(m.audit) - 1; i >= 0; i-- {
		out = append(out, m.audit[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// Close releases nothing for the memory engine.
func (m *Memory) Close() error { return nil }

// ExportState returns a deep copy of the full state.
func (m *Memory) ExportState() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshotLocked()
}

// ImportState replaces the state wholesale. The persist hook does not run;
// drivers call this while loading from disk.
func (m *Memory) ImportState(snap Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.exports = make(map[string]ExportRecord, len(snap.Exports))
	for _, record := range snap.Exports {
		m.exports[record.ID] = record.Clone()
	}
	m.audit = append([]AuditEntry(nil), snap.Audit...)
	m.seq = snap.AuditSeq
	for _, entry := range snap.Audit {
		if entry.Seq > m.seq {
			m.seq = entry.Seq
		}
	}
}

func (m *Memory) snapshotLocked() Snapshot {
	snap := Snapshot{AuditSeq: m.seq}
	snap.Exports = make([]ExportRecord, 0, len(m.exports))
	for _, record := range m.exports {
		snap.Exports = append(snap.Exports, record.Clone())
	}
	sort.Slice(snap.Exports, func(i, j int) bool { return snap.Exports[i].ID < snap.Exports[j].ID })
	snap.Audit = append([]AuditEntry(nil), m.audit...)
	return snap
}

func (m *Memory) persistLocked(bucket string) error {
	if m.persist == nil {
		return nil
	}
	return m.persist(bucket, m.snapshotLocked())
}
