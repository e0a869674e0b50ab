// Package core wires the dataset catalog, the export worker, blob storage
// and the persistence store into the service the transports expose.
package core

import (
	"context"
	"errors"
	"fmt"
	"io"

	"panelcore/internal/blob"
	"panelcore/internal/catalog"
	"panelcore/internal/export"
	"panelcore/internal/persistence"
	"panelcore/pkg/frame"
)

// Service is the application facade: catalog reads, view materialization,
// export scheduling and artifact retrieval.
type Service struct {
	catalog *catalog.Catalog
	records persistence.Store
	blobs   blob.Store
	worker  *export.Worker
}

// NewService constructs a service and its export worker. Call Start to begin
// processing exports and Stop on shutdown.
func NewService(cat *catalog.Catalog, records persistence.Store, blobs blob.Store) *Service {
	return &Service{
		catalog: cat,
		records: records,
		blobs:   blobs,
		worker:  export.NewWorker(cat, records, blobs),
	}
}

// Start launches the export worker.
func (s *Service) Start() { s.worker.Start() }

// Stop halts the export worker, waiting for the in-flight job, bounded by ctx.
func (s *Service) Stop(ctx context.Context) error { return s.worker.Stop(ctx) }

// Datasets lists catalog metadata in manifest order.
func (s *Service) Datasets() []catalog.Info {
	datasets := s.catalog.Datasets()
	infos := make([]catalog.Info, 0, len(datasets))
	for _, d := range datasets {
		infos = append(infos, d.Info())
	}
	return infos
}

// Dataset returns metadata for one dataset.
func (s *Service) Dataset(key string) (catalog.Info, error) {
	d, ok := s.catalog.Get(key)
	if !ok {
		return catalog.Info{}, persistence.ErrNotFound{Entity: "dataset", ID: key}
	}
	return d.Info(), nil
}

// DatasetTable materializes a view of a dataset and records the render in the
// audit trail. Unknown datasets surface as ErrNotFound; unknown views as
// catalog.ErrUnknownView.
func (s *Service) DatasetTable(ctx context.Context, key, view string) (frame.Table, error) {
	d, ok := s.catalog.Get(key)
	if !ok {
		return frame.Table{}, persistence.ErrNotFound{Entity: "dataset", ID: key}
	}
	table, err := d.View(view)
	if err != nil {
		return frame.Table{}, err
	}
	_, _ = s.records.AppendAudit(ctx, persistence.AuditEntry{
		Action:  "view_rendered",
		Subject: key + "/" + view,
	})
	return table, nil
}

// CreateExport validates and schedules an export job.
func (s *Service) CreateExport(ctx context.Context, req export.Request) (persistence.ExportRecord, error) {
	return s.worker.Enqueue(ctx, req)
}

// Export returns one export record.
func (s *Service) Export(ctx context.Context, id string) (persistence.ExportRecord, error) {
	return s.records.GetExport(ctx, id)
}

// Exports lists export records, newest first.
func (s *Service) Exports(ctx context.Context) ([]persistence.ExportRecord, error) {
	return s.records.ListExports(ctx)
}

// OpenArtifact streams one finished artifact of an export. The format may be
// empty when the export produced exactly one artifact.
func (s *Service) OpenArtifact(ctx context.Context, exportID, format string) (blob.Info, io.ReadCloser, error) {
	artifact, err := s.findArtifact(ctx, exportID, format)
	if err != nil {
		return blob.Info{}, nil, err
	}
	return s.blobs.Get(ctx, artifact.Key)
}

// ArtifactURL returns a pre-signed download URL for an artifact, or an empty
// string when the blob driver cannot sign URLs.
func (s *Service) ArtifactURL(ctx context.Context, exportID, format string) (string, error) {
	artifact, err := s.findArtifact(ctx, exportID, format)
	if err != nil {
		return "", err
	}
	url, err := s.blobs.PresignURL(ctx, artifact.Key, blob.SignedURLOptions{})
	if errors.Is(err, blob.ErrUnsupported) {
		return "", nil
	}
	return url, err
}

func (s *Service) findArtifact(ctx context.Context, exportID, format string) (persistence.ExportArtifact, error) {
	record, err := s.records.GetExport(ctx, exportID)
	if err != nil {
		return persistence.ExportArtifact{}, err
	}
	if format == "" {
		if len(record.Artifacts) == 1 {
			return record.Artifacts[0], nil
		}
		return persistence.ExportArtifact{}, fmt.Errorf("core: export %s has %d artifacts, format required", exportID, len(record.Artifacts))
	}
	for _, artifact := range record.Artifacts {
		if artifact.Format == format {
			return artifact, nil
		}
	}
	return persistence.ExportArtifact{}, persistence.ErrNotFound{Entity: "artifact", ID: exportID + "/" + format}
}

// Audit returns the newest audit entries, all of them when limit is zero.
func (s *Service) Audit(ctx context.Context, limit int) ([]persistence.AuditEntry, error) {
	return s.records.ListAudit(ctx, limit)
}
