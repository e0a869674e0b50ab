package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"panelcore/internal/persistence"
	"panelcore/internal/persistence/postgres/testutil"
)

func openStub(t *testing.T, dsn string) *Store {
	t.Helper()
	restore := OverrideSQLOpen(func(_, target string) (*sql.DB, error) {
		return sql.Open(testutil.DriverName, target)
	})
	t.Cleanup(restore)
	t.Cleanup(func() { testutil.Reset(dsn) })
	store, err := Open(context.Background(), dsn)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	return store
}

func TestStorePersistsAndReloads(t *testing.T) {
	dsn := "stub://persist-reload"
	store := openStub(t, dsn)
	ctx := context.Background()
	record := persistence.ExportRecord{
		ID:          "exp-1",
		Dataset:     "wages",
		View:        "person-level",
		Formats:     []string{"parquet"},
		Status:      persistence.StatusSucceeded,
		RequestedAt: time.Date(2026, 4, 2, 8, 30, 0, 0, time.UTC),
	}
	if err := store.PutExport(ctx, record); err != nil {
		t.Fatalf("put export: %v", err)
	}
	if _, err := store.AppendAudit(ctx, persistence.AuditEntry{Action: "export.completed", Subject: "exp-1"}); err != nil {
		t.Fatalf("append audit: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	conn := testutil.Connection(dsn)
	if _, ok := conn.Tables[persistence.BucketExports]; !ok {
		t.Fatalf("exports bucket never written, tables %v", conn.Tables)
	}
	if _, ok := conn.Tables[persistence.BucketAudit]; !ok {
		t.Fatalf("audit bucket never written, tables %v", conn.Tables)
	}

	reloaded, err := Open(context.Background(), dsn)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	defer reloaded.Close()
	got, err := reloaded.GetExport(ctx, "exp-1")
	if err != nil {
		t.Fatalf("get after reload: %v", err)
	}
	if got.View != "person-level" || got.Status != persistence.StatusSucceeded {
		t.Fatalf("unexpected record %+v", got)
	}
	next, err := reloaded.AppendAudit(ctx, persistence.AuditEntry{Action: "export.requested"})
	if err != nil {
		t.Fatalf("append after reload: %v", err)
	}
	if next.Seq != 2 {
		t.Fatalf("sequence did not resume, got %d", next.Seq)
	}
}

func TestOpenFailsWhenPingRefused(t *testing.T) {
	dsn := "stub://ping-refused"
	testutil.Connection(dsn).FailPing = true
	restore := OverrideSQLOpen(func(_, target string) (*sql.DB, error) {
		return sql.Open(testutil.DriverName, target)
	})
	t.Cleanup(restore)
	t.Cleanup(func() { testutil.Reset(dsn) })
	if _, err := Open(context.Background(), dsn); err == nil {
		t.Fatalf("expected ping failure")
	}
}

func TestPersistSurfacesExecFailure(t *testing.T) {
	dsn := "stub://exec-refused"
	store := openStub(t, dsn)
	defer store.Close()
	testutil.Connection(dsn).FailExec = "INSERT INTO state"
	err := store.PutExport(context.Background(), persistence.ExportRecord{ID: "exp-1", Status: persistence.StatusQueued, RequestedAt: time.Now()})
	if err == nil {
		t.Fatalf("expected persist failure")
	}
}

func TestPersistSurfacesBeginFailure(t *testing.T) {
	dsn := "stub://begin-refused"
	store := openStub(t, dsn)
	defer store.Close()
	testutil.Connection(dsn).FailBegin = true
	err := store.PutExport(context.Background(), persistence.ExportRecord{ID: "exp-1", Status: persistence.StatusQueued, RequestedAt: time.Now()})
	if err == nil {
		t.Fatalf("expected begin failure")
	}
}

func TestPersistSurfacesCommitFailure(t *testing.T) {
	dsn := "stub://commit-refused"
	store := openStub(t, dsn)
	defer store.Close()
	testutil.Connection(dsn).FailCommit = true
	err := store.PutExport(context.Background(), persistence.ExportRecord{ID: "exp-1", Status: persistence.StatusQueued, RequestedAt: time.Now()})
	if err == nil {
		t.Fatalf("expected commit failure")
	}
}

func TestOpenUsesEnvDSN(t *testing.T) {
	dsn := "stub://env-dsn"
	t.Setenv("PANELCORE_POSTGRES_DSN", dsn)
	restore := OverrideSQLOpen(func(_, target string) (*sql.DB, error) {
		return sql.Open(testutil.DriverName, target)
	})
	t.Cleanup(restore)
	t.Cleanup(func() { testutil.Reset(dsn) })
	store, err := Open(context.Background(), "")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer store.Close()
	if err := store.PutExport(context.Background(), persistence.ExportRecord{ID: "exp-1", Status: persistence.StatusQueued, RequestedAt: time.Now()}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, ok := testutil.Connection(dsn).Tables[persistence.BucketExports]; !ok {
		t.Fatalf("env DSN was not used")
	}
}
