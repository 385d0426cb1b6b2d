package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestUploadAndRead(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), "https://cdn.example.com/static")
	if err != nil {
		t.Fatal(err)
	}

	url, err := store.Upload(context.Background(), "jobs/job-1/attempt-2.png", []byte("image-bytes"))
	if err != nil {
		t.Fatalf("Upload() error: %v", err)
	}
	if url != "https://cdn.example.com/static/jobs/job-1/attempt-2.png" {
		t.Fatalf("url = %q", url)
	}

	data, err := store.Read(context.Background(), "jobs/job-1/attempt-2.png")
	if err != nil {
		t.Fatalf("Read() error: %v", err)
	}
	if string(data) != "image-bytes" {
		t.Fatalf("data = %q", data)
	}

	onDisk := filepath.Join(store.BasePath(), "jobs", "job-1", "attempt-2.png")
	if _, err := os.Stat(onDisk); err != nil {
		t.Fatalf("file not on disk: %v", err)
	}
}

func TestNewFileStoreRequiresPath(t *testing.T) {
	if _, err := NewFileStore("  ", ""); err == nil {
		t.Fatal("empty base path must be rejected")
	}
}

func TestUploadRejectsTraversal(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), "")
	if err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"", "   ", "../escape.png", "a/../../escape.png", "."} {
		if _, err := store.Upload(context.Background(), key, []byte("x")); err == nil {
			t.Errorf("key %q must be rejected", key)
		}
	}
}

func TestUploadNormalizesLeadingSlash(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), "https://cdn.example.com")
	if err != nil {
		t.Fatal(err)
	}
	url, err := store.Upload(context.Background(), "/jobs/a.png", []byte("x"))
	if err != nil {
		t.Fatalf("Upload() error: %v", err)
	}
	if url != "https://cdn.example.com/jobs/a.png" {
		t.Fatalf("url = %q", url)
	}
}

func TestReadMissingKey(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), "")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.Read(context.Background(), "jobs/missing.png"); err == nil {
		t.Fatal("missing key must error")
	}
}

func TestURLForWithoutBaseURL(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), "")
	if err != nil {
		t.Fatal(err)
	}
	if got := store.URLFor("jobs/a.png"); got != "jobs/a.png" {
		t.Fatalf("URLFor = %q", got)
	}
}
