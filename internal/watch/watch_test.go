package watch

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatcherReportsManifestRewrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "image.json")
	if err := os.WriteFile(path, []byte("{}"), 0o644); err != nil {
		t.Fatalf("seed manifest: %v", err)
	}

	w, err := New(path)
	if err != nil {
		t.Skipf("fsnotify unavailable: %v", err)
	}
	defer w.Close()

	if err := os.WriteFile(path, []byte(`{"name":"x"}`), 0o644); err != nil {
		t.Fatalf("rewrite manifest: %v", err)
	}

	select {
	case got := <-w.Changed():
		if filepath.Base(got) != "image.json" {
			t.Fatalf("changed path: %q", got)
		}
	case err := <-w.Errors():
		t.Fatalf("watcher error: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("no change notification")
	}
}

func TestWatcherIgnoresSiblingFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "image.json")
	if err := os.WriteFile(path, []byte("{}"), 0o644); err != nil {
		t.Fatalf("seed manifest: %v", err)
	}

	w, err := New(path)
	if err != nil {
		t.Skipf("fsnotify unavailable: %v", err)
	}
	defer w.Close()

	if err := os.WriteFile(filepath.Join(dir, "other.json"), []byte("{}"), 0o644); err != nil {
		t.Fatalf("write sibling: %v", err)
	}
	// The sibling write must not surface; the manifest write after it must.
	if err := os.WriteFile(path, []byte(`{"name":"y"}`), 0o644); err != nil {
		t.Fatalf("rewrite manifest: %v", err)
	}

	select {
	case got := <-w.Changed():
		if filepath.Base(got) != "image.json" {
			t.Fatalf("notified for %q, want the manifest", got)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no change notification")
	}
}
