package filesystem

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func testConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     2,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
	}
}

func TestStatWithRetrySuccess(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "file.stl")
	if err := os.WriteFile(path, []byte("solid"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	info, err := StatWithRetry(path, testConfig())
	if err != nil {
		t.Fatalf("StatWithRetry() error = %v", err)
	}
	if info.Size() != 5 {
		t.Errorf("Size() = %d, want 5", info.Size())
	}
}

func TestStatWithRetryNonRetryableError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing")

	start := time.Now()
	_, err := StatWithRetry(path, testConfig())
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if !os.IsNotExist(err) {
		t.Errorf("expected not-exist error, got %v", err)
	}
	// ENOENT must not be retried, so this should return immediately
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Errorf("non-retryable error took %v, expected immediate return", elapsed)
	}
}

func TestOpenWithRetry(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "readme.md")
	if err := os.WriteFile(path, []byte("# notes"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	f, err := OpenWithRetry(path, testConfig())
	if err != nil {
		t.Fatalf("OpenWithRetry() error = %v", err)
	}
	defer f.Close()

	if f.Name() != path {
		t.Errorf("Name() = %s, want %s", f.Name(), path)
	}
}

func TestReadDirWithRetry(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.stl", "b.png"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatalf("write fixture: %v", err)
		}
	}

	entries, err := ReadDirWithRetry(dir, testConfig())
	if err != nil {
		t.Fatalf("ReadDirWithRetry() error = %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("ReadDirWithRetry() returned %d entries, want 2", len(entries))
	}
}

func TestReadDirWithRetryMissingDir(t *testing.T) {
	_, err := ReadDirWithRetry(filepath.Join(t.TempDir(), "missing"), testConfig())
	if err == nil {
		t.Fatal("expected error for missing directory")
	}
	if !os.IsNotExist(err) {
		t.Errorf("expected not-exist error, got %v", err)
	}
}

func TestIsStaleError(t *testing.T) {
	if isStaleError(nil) {
		t.Error("nil error reported as stale")
	}
	if isStaleError(os.ErrNotExist) {
		t.Error("ErrNotExist reported as stale")
	}
}
