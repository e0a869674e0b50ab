package memory

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"testing"

	"panelcore/internal/blob/core"
)

func TestStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := New()
	info, err := store.Put(ctx, "k", bytes.NewReader([]byte("value")), core.PutOptions{ContentType: "text/plain", Metadata: map[string]string{"a": "1"}})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.Size != 5 || len(info.ETag) != 64 {
		t.Fatalf("unexpected info %+v", info)
	}
	head, err := store.Head(ctx, "k")
	if err != nil || head.ETag != info.ETag {
		t.Fatalf("head: %+v %v", head, err)
	}
	got, rc, err := store.Get(ctx, "k")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	body, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(body) != "value" || got.ContentType != "text/plain" {
		t.Fatalf("unexpected get %q %+v", body, got)
	}
	ok, err := store.Delete(ctx, "k")
	if err != nil || !ok {
		t.Fatalf("delete: %v %v", ok, err)
	}
	if ok, _ := store.Delete(ctx, "k"); ok {
		t.Fatalf("expected second delete to report absence")
	}
}

func TestStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := New()
	meta := map[string]string{"a": "1"}
	if _, err := store.Put(ctx, "k", bytes.NewReader([]byte("value")), core.PutOptions{Metadata: meta}); err != nil {
		t.Fatalf("put: %v", err)
	}
	meta["a"] = "mutated"
	head, err := store.Head(ctx, "k")
	if err != nil || head.Metadata["a"] != "1" {
		t.Fatalf("caller mutation leaked into store: %+v %v", head, err)
	}
	head.Metadata["a"] = "mutated-again"
	again, _ := store.Head(ctx, "k")
	if again.Metadata["a"] != "1" {
		t.Fatalf("returned metadata aliases store state")
	}
}

func TestStore_MissingKeySatisfiesNotExist(t *testing.T) {
	ctx := context.Background()
	store := New()
	if _, _, err := store.Get(ctx, "missing"); !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("get: expected fs.ErrNotExist, got %v", err)
	}
	if _, err := store.Head(ctx, "missing"); !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("head: expected fs.ErrNotExist, got %v", err)
	}
}

func TestStore_DuplicateAndEmptyKeys(t *testing.T) {
	ctx := context.Background()
	store := New()
	if _, err := store.Put(ctx, "k", bytes.NewReader([]byte("v")), core.PutOptions{}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, err := store.Put(ctx, "k", bytes.NewReader([]byte("v2")), core.PutOptions{}); err == nil {
		t.Fatalf("expected duplicate put error")
	}
	if _, err := store.Put(ctx, "  ", bytes.NewReader(nil), core.PutOptions{}); err == nil {
		t.Fatalf("expected empty key error")
	}
}

func TestStore_ListPrefix(t *testing.T) {
	ctx := context.Background()
	store := New()
	for _, key := range []string{"exports/b", "exports/a", "other/c"} {
		if _, err := store.Put(ctx, key, bytes.NewReader([]byte(key)), core.PutOptions{}); err != nil {
			t.Fatalf("put %s: %v", key, err)
		}
	}
	list, err := store.List(ctx, "exports/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].Key != "exports/a" || list[1].Key != "exports/b" {
		t.Fatalf("unexpected list %+v", list)
	}
}

func TestStore_PresignUnsupported(t *testing.T) {
	if _, err := New().PresignURL(context.Background(), "k", core.SignedURLOptions{}); !errors.Is(err, core.ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, fmt.Errorf("boom") }

func TestStore_PutReadErrorAndDriver(t *testing.T) {
	store := New()
	if store.Driver() != core.DriverMemory {
		t.Fatalf("expected memory driver")
	}
	if _, err := store.Put(context.Background(), "bad", failingReader{}, core.PutOptions{}); err == nil {
		t.Fatalf("expected read error")
	}
}
