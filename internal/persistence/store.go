// Package persistence stores export records and the audit trail behind a
// small Store interface. The memory implementation is the engine; the sqlite
// and postgres drivers wrap it and snapshot mutated buckets to a database so
// state survives restarts.
package persistence

import (
	"context"
	"fmt"
	"time"
)

// Export lifecycle states.
const (
	StatusQueued    = "queued"
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// Snapshot buckets written by the database drivers.
const (
	BucketExports = "exports"
	BucketAudit   = "audit"
)

// ExportArtifact describes one materialized file of a finished export.
type ExportArtifact struct {
	Format      string `json:"format"`
	Key         string `json:"key"`
	Size        int64  `json:"size"`
	ContentType string `json:"content_type"`
	Checksum    string `json:"checksum,omitempty"`
}

// ExportRecord tracks one export job from request to completion.
type ExportRecord struct {
	ID          string           `json:"id"`
	Dataset     string           `json:"dataset"`
	View        string           `json:"view"`
	Formats     []string         `json:"formats"`
	Actor       string           `json:"actor,omitempty"`
	Status      string           `json:"status"`
	Error       string           `json:"error,omitempty"`
	Artifacts   []ExportArtifact `json:"artifacts,omitempty"`
	RequestedAt time.Time        `json:"requested_at"`
	StartedAt   *time.Time       `json:"started_at,omitempty"`
	CompletedAt *time.Time       `json:"completed_at,omitempty"`
}

// Clone returns a deep copy of the record.
func (r ExportRecord) Clone() ExportRecord {
	out := r
	out.Formats = append([]string(nil), r.Formats...)
	out.Artifacts = append([]ExportArtifact(nil), r.Artifacts...)
	if r.StartedAt != nil {
		t := *r.StartedAt
		out.StartedAt = &t
	}
	if r.CompletedAt != nil {
		t := *r.CompletedAt
		out.CompletedAt = &t
	}
	return out
}

// AuditEntry is one line of the append-only audit trail. Seq is assigned by
// the store and increases monotonically.
type AuditEntry struct {
	Seq     uint64    `json:"seq"`
	Time    time.Time `json:"time"`
	Actor   string    `json:"actor,omitempty"`
	Action  string    `json:"action"`
	Subject string    `json:"subject,omitempty"`
	Detail  string    `json:"detail,omitempty"`
}

// Snapshot is the full persisted state.
type Snapshot struct {
	Exports  []ExportRecord `json:"exports"`
	Audit    []AuditEntry   `json:"audit"`
	AuditSeq uint64         `json:"audit_seq"`
}

// ErrNotFound reports a missing entity.
type ErrNotFound struct {
	Entity string
	ID     string
}

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("persistence: %s %s not found", e.Entity, e.ID)
}

// Store is the persistence surface the service depends on.
type Store interface {
	PutExport(ctx context.Context, record ExportRecord) error
	GetExport(ctx context.Context, id string) (ExportRecord, error)
	ListExports(ctx context.Context) ([]ExportRecord, error)
	AppendAudit(ctx context.Context, entry AuditEntry) (AuditEntry, error)
	ListAudit(ctx context.Context, limit int) ([]AuditEntry, error)
	Close() error
}
