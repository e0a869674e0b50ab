// Package core declares the blob storage contract shared by the drivers and
// the facade. Implementations live under internal/infra/blob; everything else
// imports the facade package internal/blob.
package core

import (
	"context"
	"errors"
	"io"
	"time"
)

// Driver identifies a blob backend implementation.
type Driver string

const (
	// DriverFilesystem stores blobs under a local directory root.
	DriverFilesystem Driver = "fs"
	// DriverS3 stores blobs in an S3-compatible bucket.
	DriverS3 Driver = "s3"
	// DriverMemory keeps blobs in process memory. Intended for tests.
	DriverMemory Driver = "memory"
)

// ErrUnsupported reports an operation the selected driver does not implement.
var ErrUnsupported = errors.New("blob: unsupported operation")

// PutOptions carries optional attributes recorded alongside a new blob.
type PutOptions struct {
	ContentType string
	Metadata    map[string]string
}

// SignedURLOptions configures PresignURL. Method defaults to GET and Expiry
// to fifteen minutes; drivers reject methods they cannot sign.
type SignedURLOptions struct {
	Method  string
	Expiry  time.Duration
	Headers map[string]string
}

// Info describes a stored blob.
type Info struct {
	Key          string            `json:"key"`
	Size         int64             `json:"size_bytes"`
	ContentType  string            `json:"content_type,omitempty"`
	ETag         string            `json:"etag,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	LastModified time.Time         `json:"last_modified"`
	URL          string            `json:"url,omitempty"`
}

// Store is the write-once blob interface. Put fails when the key already
// exists and Delete reports whether the key was present. The local drivers
// surface missing keys as errors satisfying errors.Is(err, fs.ErrNotExist).
type Store interface {
	Put(ctx context.Context, key string, r io.Reader, opts PutOptions) (Info, error)
	Get(ctx context.Context, key string) (Info, io.ReadCloser, error)
	Head(ctx context.Context, key string) (Info, error)
	Delete(ctx context.Context, key string) (bool, error)
	List(ctx context.Context, prefix string) ([]Info, error)
	PresignURL(ctx context.Context, key string, opts SignedURLOptions) (string, error)
	Driver() Driver
}
