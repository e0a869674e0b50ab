// Package export runs dataset export jobs asynchronously. A job renders one
// catalog view into one or more file formats, writes each file to blob
// storage and tracks progress in the persistence store, leaving an audit
// entry per state transition.
package export

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"strings"
	"sync"
	"time"

	"panelcore/internal/blob"
	"panelcore/internal/catalog"
	"panelcore/internal/persistence"
)

// Format identifies an artifact encoding.
type Format string

const (
	FormatCSV     Format = "csv"
	FormatJSON    Format = "json"
	FormatParquet Format = "parquet"
)

// ParseFormat validates a format name from an API request.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatCSV, FormatJSON, FormatParquet:
		return f, nil
	default:
		return "", fmt.Errorf("export: unknown format %q", s)
	}
}

// ContentType returns the MIME type artifacts of this format are stored with.
func (f Format) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv"
	case FormatJSON:
		return "application/json"
	case FormatParquet:
		return "application/octet-stream"
	}
	return "application/octet-stream"
}

// Request asks for one dataset view in one or more formats. Formats defaults
// to CSV plus JSON when empty.
type Request struct {
	Dataset string
	View    string
	Formats []Format
	Actor   string
}

const queueCapacity = 32

// Worker processes export jobs from a bounded queue, one at a time.
type Worker struct {
	catalog *catalog.Catalog
	records persistence.Store
	blobs   blob.Store

	queue chan task

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type task struct {
	id string
}

// NewWorker constructs a stopped worker over the given collaborators.
func NewWorker(c *catalog.Catalog, records persistence.Store, blobs blob.Store) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		catalog: c,
		records: records,
		blobs:   blobs,
		queue:   make(chan task, queueCapacity),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start launches the processing loop.
func (w *Worker) Start() {
	w.wg.Add(1)
	go w.loop()
}

// Stop halts the loop and waits for the in-flight job, bounded by ctx.
func (w *Worker) Stop(ctx context.Context) error {
	w.cancel()
	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Worker) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		case t := <-w.queue:
			w.process(t)
		}
	}
}

// Enqueue validates the request, persists a queued record and schedules it.
// Validation failures surface immediately; rendering failures surface on the
// record once the job runs.
func (w *Worker) Enqueue(ctx context.Context, req Request) (persistence.ExportRecord, error) {
	dataset, ok := w.catalog.Get(req.Dataset)
	if !ok {
		return persistence.ExportRecord{}, fmt.Errorf("export: unknown dataset %q", req.Dataset)
	}
	if !hasView(dataset.Views(), req.View) {
		return persistence.ExportRecord{}, fmt.Errorf("export: dataset %s has no view %q", req.Dataset, req.View)
	}
	formats := req.Formats
	if len(formats) == 0 {
		formats = []Format{FormatCSV, FormatJSON}
	}
	seen := make(map[Format]struct{}, len(formats))
	names := make([]string, 0, len(formats))
	for _, f := range formats {
		parsed, err := ParseFormat(string(f))
		if err != nil {
			return persistence.ExportRecord{}, err
		}
		if _, dup := seen[parsed]; dup {
			continue
		}
		seen[parsed] = struct{}{}
		names = append(names, string(parsed))
	}

	record := persistence.ExportRecord{
		ID:          newID(),
		Dataset:     req.Dataset,
		View:        req.View,
		Formats:     names,
		Actor:       req.Actor,
		Status:      persistence.StatusQueued,
		RequestedAt: time.Now().UTC(),
	}
	if err := w.records.PutExport(ctx, record); err != nil {
		return persistence.ExportRecord{}, err
	}
	w.audit(ctx, record, persistence.StatusQueued, "")

	select {
	case w.queue <- task{id: record.ID}:
	default:
		w.fail(record.ID, "export queue full")
		return persistence.ExportRecord{}, fmt.Errorf("export: queue full")
	}
	queueDepth.Inc()
	return record, nil
}

// Get returns the record for id.
func (w *Worker) Get(ctx context.Context, id string) (persistence.ExportRecord, error) {
	return w.records.GetExport(ctx, id)
}

// List returns all export records, newest first.
func (w *Worker) List(ctx context.Context) ([]persistence.ExportRecord, error) {
	return w.records.ListExports(ctx)
}

func (w *Worker) process(t task) {
	queueDepth.Dec()
	record, err := w.records.GetExport(w.ctx, t.id)
	if err != nil {
		return
	}
	started := time.Now().UTC()
	record.Status = persistence.StatusRunning
	record.StartedAt = &started
	if err := w.records.PutExport(w.ctx, record); err != nil {
		return
	}
	w.audit(w.ctx, record, persistence.StatusRunning, "")

	dataset, ok := w.catalog.Get(record.Dataset)
	if !ok {
		w.fail(t.id, fmt.Sprintf("dataset %s missing", record.Dataset))
		return
	}
	table, err := dataset.View(record.View)
	if err != nil {
		w.fail(t.id, fmt.Sprintf("materialize view: %v", err))
		return
	}

	artifacts := make([]persistence.ExportArtifact, 0, len(record.Formats))
	for _, name := range record.Formats {
		format := Format(name)
		payload, err := Render(format, record.Dataset, record.View, table)
		if err != nil {
			w.fail(t.id, fmt.Sprintf("render %s: %v", format, err))
			return
		}
		key := artifactKey(record.ID, record.Dataset, record.View, format)
		opts := blob.PutOptions{
			ContentType: format.ContentType(),
			Metadata: map[string]string{
				"dataset": record.Dataset,
				"view":    record.View,
				"format":  string(format),
			},
		}
		info, err := w.blobs.Put(w.ctx, key, bytes.NewReader(payload), opts)
		if err != nil {
			w.fail(t.id, fmt.Sprintf("store artifact %s: %v", key, err))
			return
		}
		artifacts = append(artifacts, persistence.ExportArtifact{
			Format:      string(format),
			Key:         key,
			Size:        info.Size,
			ContentType: format.ContentType(),
			Checksum:    fmt.Sprintf("%x", sha256.Sum256(payload)),
		})
		artifactBytes.WithLabelValues(string(format)).Add(float64(len(payload)))
	}
	w.complete(t.id, artifacts)
	exportDuration.Observe(time.Since(started).Seconds())
}

func (w *Worker) complete(id string, artifacts []persistence.ExportArtifact) {
	record, err := w.records.GetExport(w.ctx, id)
	if err != nil {
		return
	}
	now := time.Now().UTC()
	record.Status = persistence.StatusSucceeded
	record.Error = ""
	record.Artifacts = artifacts
	record.CompletedAt = &now
	if err := w.records.PutExport(w.ctx, record); err != nil {
		return
	}
	w.audit(w.ctx, record, persistence.StatusSucceeded, "")
	exportsTotal.WithLabelValues(persistence.StatusSucceeded).Inc()
}

func (w *Worker) fail(id, reason string) {
	record, err := w.records.GetExport(w.ctx, id)
	if err != nil {
		return
	}
	now := time.Now().UTC()
	record.Status = persistence.StatusFailed
	record.Error = reason
	record.CompletedAt = &now
	if err := w.records.PutExport(w.ctx, record); err != nil {
		return
	}
	w.audit(w.ctx, record, persistence.StatusFailed, reason)
	exportsTotal.WithLabelValues(persistence.StatusFailed).Inc()
}

func (w *Worker) audit(ctx context.Context, record persistence.ExportRecord, status, detail string) {
	entry := persistence.AuditEntry{
		Actor:   record.Actor,
		Action:  "export_" + status,
		Subject: record.Dataset + "/" + record.View,
		Detail:  detail,
	}
	_, _ = w.records.AppendAudit(ctx, entry)
}

func artifactKey(id, dataset, view string, format Format) string {
	return fmt.Sprintf("exports/%s/%s.%s.%s", id, dataset, view, format)
}

func hasView(views []string, want string) bool {
	for _, v := range views {
		if v == want {
			return true
		}
	}
	return false
}

func newID() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(err)
	}
	return fmt.Sprintf("%x", b[:])
}
