package storage

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestWriteAndReadBack(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	payload := []byte("generated bytes")
	key, err := store.Write(context.Background(), "generated/abc/sample-01.mp4", payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if key != "generated/abc/sample-01.mp4" {
		t.Fatalf("unexpected canonical key %q", key)
	}

	data, err := store.ReadBack(context.Background(), key)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(data, payload) {
		t.Fatalf("read back %q, want %q", data, payload)
	}
}

func TestWriteRejectsTraversalKeys(t *testing.T) {
	base := t.TempDir()
	store, err := NewFileStore(base)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, key := range []string{"", "   ", "../escape.txt", "a/../../escape.txt"} {
		if _, err := store.Write(context.Background(), key, []byte("x")); err == nil {
			t.Fatalf("expected error for key %q", key)
		}
	}

	if _, err := os.Stat(filepath.Join(filepath.Dir(base), "escape.txt")); !os.IsNotExist(err) {
		t.Fatal("traversal key escaped the storage root")
	}
}

func TestWriteNormalizesLeadingSlash(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	key, err := store.Write(context.Background(), "/generated/sample.png", []byte("x"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if key != "generated/sample.png" {
		t.Fatalf("unexpected canonical key %q", key)
	}
}

func TestWriteHonorsCancelledContext(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := store.Write(ctx, "generated/sample.png", []byte("x")); err == nil {
		t.Fatal("expected error for cancelled context")
	}
}

func TestNewFileStoreRequiresBasePath(t *testing.T) {
	if _, err := NewFileStore("  "); err == nil {
		t.Fatal("expected error for empty base path")
	}
}
