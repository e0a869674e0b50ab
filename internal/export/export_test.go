package export_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"panelcore/internal/blob"
	"panelcore/internal/catalog"
	"panelcore/internal/export"
	"panelcore/internal/persistence"
)

func newWorker(t *testing.T, blobs blob.Store) (*export.Worker, persistence.Store, blob.Store) {
	t.Helper()
	cat, err := catalog.Default()
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	records := persistence.NewMemory()
	if blobs == nil {
		blobs = blob.NewMemory()
	}
	worker := export.NewWorker(cat, records, blobs)
	worker.Start()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = worker.Stop(ctx)
	})
	return worker, records, blobs
}

func waitTerminal(t *testing.T, worker *export.Worker, id string) persistence.ExportRecord {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		record, err := worker.Get(context.Background(), id)
		if err != nil {
			t.Fatalf("get export: %v", err)
		}
		if record.Status == persistence.StatusSucceeded || record.Status == persistence.StatusFailed {
			return record
		}
		if time.Now().After(deadline) {
			t.Fatalf("export %s still %s after deadline", id, record.Status)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestWorkerExportsAllFormats(t *testing.T) {
	worker, records, blobs := newWorker(t, nil)
	ctx := context.Background()

	record, err := worker.Enqueue(ctx, export.Request{
		Dataset: "tolerance",
		View:    "person-period",
		Formats: []export.Format{export.FormatCSV, export.FormatJSON, export.FormatParquet},
		Actor:   "teacher@example.edu",
	})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if record.Status != persistence.StatusQueued || record.Actor != "teacher@example.edu" {
		t.Fatalf("unexpected queued record %+v", record)
	}

	done := waitTerminal(t, worker, record.ID)
	if done.Status != persistence.StatusSucceeded {
		t.Fatalf("expected success, got %s (%s)", done.Status, done.Error)
	}
	if done.StartedAt == nil || done.CompletedAt == nil {
		t.Fatalf("expected timestamps on %+v", done)
	}
	if len(done.Artifacts) != 3 {
		t.Fatalf("expected 3 artifacts, got %+v", done.Artifacts)
	}
	for i, suffix := range []string{"csv", "json", "parquet"} {
		artifact := done.Artifacts[i]
		wantKey := fmt.Sprintf("exports/%s/tolerance.person-period.%s", record.ID, suffix)
		if artifact.Key != wantKey || artifact.Format != suffix {
			t.Fatalf("unexpected artifact %+v, want key %s", artifact, wantKey)
		}
		if artifact.Size == 0 || artifact.Checksum == "" {
			t.Fatalf("artifact %s missing size or checksum: %+v", suffix, artifact)
		}
	}

	_, rc, err := blobs.Get(ctx, done.Artifacts[0].Key)
	if err != nil {
		t.Fatalf("get csv artifact: %v", err)
	}
	csvBody, _ := io.ReadAll(rc)
	_ = rc.Close()
	if !strings.HasPrefix(string(csvBody), "id,age,tol,male,exposure\n") {
		t.Fatalf("unexpected csv header: %q", string(csvBody)[:40])
	}

	_, rc, err = blobs.Get(ctx, done.Artifacts[1].Key)
	if err != nil {
		t.Fatalf("get json artifact: %v", err)
	}
	jsonBody, _ := io.ReadAll(rc)
	_ = rc.Close()
	var envelope struct {
		Dataset string           `json:"dataset"`
		View    string           `json:"view"`
		Rows    int              `json:"rows"`
		Data    []map[string]any `json:"data"`
	}
	if err := json.Unmarshal(jsonBody, &envelope); err != nil {
		t.Fatalf("decode json artifact: %v", err)
	}
	if envelope.Dataset != "tolerance" || envelope.View != "person-period" || envelope.Rows != 80 || len(envelope.Data) != 80 {
		t.Fatalf("unexpected envelope %+v", envelope)
	}

	_, rc, err = blobs.Get(ctx, done.Artifacts[2].Key)
	if err != nil {
		t.Fatalf("get parquet artifact: %v", err)
	}
	parquetBody, _ := io.ReadAll(rc)
	_ = rc.Close()
	if !bytes.HasPrefix(parquetBody, []byte("PAR1")) {
		t.Fatalf("parquet artifact missing magic bytes: % x", parquetBody[:8])
	}

	audit, err := records.ListAudit(ctx, 0)
	if err != nil {
		t.Fatalf("list audit: %v", err)
	}
	seen := make(map[string]bool)
	for _, entry := range audit {
		if entry.Subject == "tolerance/person-period" {
			seen[entry.Action] = true
		}
	}
	for _, action := range []string{"export_queued", "export_running", "export_succeeded"} {
		if !seen[action] {
			t.Fatalf("missing audit action %s in %+v", action, audit)
		}
	}
}

func TestWorkerDefaultsFormats(t *testing.T) {
	worker, _, _ := newWorker(t, nil)
	record, err := worker.Enqueue(context.Background(), export.Request{Dataset: "teachers", View: "survival"})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if len(record.Formats) != 2 || record.Formats[0] != "csv" || record.Formats[1] != "json" {
		t.Fatalf("unexpected default formats %+v", record.Formats)
	}
	done := waitTerminal(t, worker, record.ID)
	if done.Status != persistence.StatusSucceeded || len(done.Artifacts) != 2 {
		t.Fatalf("unexpected result %+v", done)
	}
}

func TestWorkerRejectsBadRequests(t *testing.T) {
	worker, records, _ := newWorker(t, nil)
	ctx := context.Background()
	cases := []export.Request{
		{Dataset: "nope", View: "raw"},
		{Dataset: "tolerance", View: "survival"},
		{Dataset: "tolerance", View: "raw", Formats: []export.Format{"xlsx"}},
	}
	for _, req := range cases {
		if _, err := worker.Enqueue(ctx, req); err == nil {
			t.Fatalf("expected enqueue %+v to fail", req)
		}
	}
	list, err := records.ListExports(ctx)
	if err != nil || len(list) != 0 {
		t.Fatalf("expected no persisted records, got %+v %v", list, err)
	}
}

type failingBlobStore struct {
	blob.Store
}

func (failingBlobStore) Put(context.Context, string, io.Reader, blob.PutOptions) (blob.Info, error) {
	return blob.Info{}, fmt.Errorf("bucket offline")
}

func TestWorkerMarksFailureWhenStoreRejects(t *testing.T) {
	worker, records, _ := newWorker(t, failingBlobStore{Store: blob.NewMemory()})
	record, err := worker.Enqueue(context.Background(), export.Request{Dataset: "tolerance", View: "raw", Formats: []export.Format{export.FormatCSV}})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	done := waitTerminal(t, worker, record.ID)
	if done.Status != persistence.StatusFailed || !strings.Contains(done.Error, "bucket offline") {
		t.Fatalf("unexpected failure record %+v", done)
	}
	audit, err := records.ListAudit(context.Background(), 1)
	if err != nil || len(audit) != 1 || audit[0].Action != "export_failed" {
		t.Fatalf("expected failure audit entry, got %+v %v", audit, err)
	}
}

func TestWorkerQueueFull(t *testing.T) {
	cat, err := catalog.Default()
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	records := persistence.NewMemory()
	worker := export.NewWorker(cat, records, blob.NewMemory())
	t.Cleanup(func() { _ = worker.Stop(context.Background()) })
	// Not started, so the queue never drains.
	ctx := context.Background()
	for i := 0; i < 32; i++ {
		if _, err := worker.Enqueue(ctx, export.Request{Dataset: "tolerance", View: "raw", Formats: []export.Format{export.FormatCSV}}); err != nil {
			t.Fatalf("enqueue %d: %v", i, err)
		}
	}
	if _, err := worker.Enqueue(ctx, export.Request{Dataset: "tolerance", View: "raw", Formats: []export.Format{export.FormatCSV}}); err == nil {
		t.Fatalf("expected queue full error")
	}
	list, err := records.ListExports(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var failed int
	for _, record := range list {
		if record.Status == persistence.StatusFailed && record.Error == "export queue full" {
			failed++
		}
	}
	if len(list) != 33 || failed != 1 {
		t.Fatalf("expected 33 records with one overflow failure, got %d/%d", len(list), failed)
	}
}
