package archive

import (
	"archive/zip"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"printvault/internal/modeltypes"
)

// writeZip creates a zip file at path containing the given name→content
// entries.
func writeZip(t *testing.T, path string, entries map[string]string) {
	t.Helper()

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create zip: %v", err)
	}
	defer f.Close()

	w := zip.NewWriter(f)
	for name, content := range entries {
		fw, err := w.Create(name)
		if err != nil {
			t.Fatalf("create entry %s: %v", name, err)
		}
		if _, err := fw.Write([]byte(content)); err != nil {
			t.Fatalf("write entry %s: %v", name, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
}

func TestProcessArchive(t *testing.T) {
	dir := t.TempDir()
	archivePath := filepath.Join(dir, "model.zip")
	extractDir := filepath.Join(dir, "extract")

	writeZip(t, archivePath, map[string]string{
		"dragon.stl":        "solid dragon",
		"images/render.PNG": "fake png bytes",
		"README.md":         "# dragon",
		"notes/license.pdf": "%PDF-1.4",
		"preview.gcode":     "G28",
	})

	manifest, err := ProcessArchive(archivePath, extractDir)
	if err != nil {
		t.Fatalf("ProcessArchive() error = %v", err)
	}

	if len(manifest.Entries) != 5 {
		t.Fatalf("entry count = %d, want 5", len(manifest.Entries))
	}

	byPath := make(map[string]Entry)
	var wantTotal int64
	for _, e := range manifest.Entries {
		byPath[e.RelPath] = e
		wantTotal += e.Size
	}
	if manifest.TotalSize != wantTotal {
		t.Errorf("TotalSize = %d, want %d", manifest.TotalSize, wantTotal)
	}

	tests := []struct {
		relPath string
		want    modeltypes.FileType
	}{
		{"dragon.stl", modeltypes.FileTypeSTL},
		{"images/render.PNG", modeltypes.FileTypeImage},
		{"README.md", modeltypes.FileTypeDocument},
		{"notes/license.pdf", modeltypes.FileTypeDocument},
		{"preview.gcode", modeltypes.FileTypeOther},
	}
	for _, tt := range tests {
		e, ok := byPath[tt.relPath]
		if !ok {
			t.Errorf("entry %s missing from manifest", tt.relPath)
			continue
		}
		if e.FileType != tt.want {
			t.Errorf("%s classified as %s, want %s", tt.relPath, e.FileType, tt.want)
		}
	}
}

func TestProcessArchiveHashRoundTrip(t *testing.T) {
	dir := t.TempDir()
	archivePath := filepath.Join(dir, "model.zip")
	extractDir := filepath.Join(dir, "extract")

	writeZip(t, archivePath, map[string]string{
		"part.stl":  "solid part with some content",
		"thumb.png": "png-ish",
	})

	manifest, err := ProcessArchive(archivePath, extractDir)
	if err != nil {
		t.Fatalf("ProcessArchive() error = %v", err)
	}

	for _, e := range manifest.Entries {
		data, err := os.ReadFile(e.LocalPath)
		if err != nil {
			t.Fatalf("read extracted %s: %v", e.RelPath, err)
		}
		sum := sha256.Sum256(data)
		if want := hex.EncodeToString(sum[:]); e.SHA256 != want {
			t.Errorf("%s hash = %s, want %s", e.RelPath, e.SHA256, want)
		}
		if e.Size != int64(len(data)) {
			t.Errorf("%s size = %d, want %d", e.RelPath, e.Size, len(data))
		}
	}
}

func TestProcessArchiveFiltersNoise(t *testing.T) {
	dir := t.TempDir()
	archivePath := filepath.Join(dir, "noisy.zip")
	extractDir := filepath.Join(dir, "extract")

	writeZip(t, archivePath, map[string]string{
		"model.stl":                 "solid",
		".DS_Store":                 "junk",
		"sub/.hidden.txt":           "junk",
		"__MACOSX/model.stl":        "resource fork",
		"__MACOSX/sub/._render.png": "resource fork",
	})

	manifest, err := ProcessArchive(archivePath, extractDir)
	if err != nil {
		t.Fatalf("ProcessArchive() error = %v", err)
	}

	if len(manifest.Entries) != 1 {
		t.Fatalf("entry count = %d, want 1 (noise must be filtered)", len(manifest.Entries))
	}
	if manifest.Entries[0].RelPath != "model.stl" {
		t.Errorf("surviving entry = %s, want model.stl", manifest.Entries[0].RelPath)
	}

	// Noise must not be extracted either
	if _, err := os.Stat(filepath.Join(extractDir, "__MACOSX")); !os.IsNotExist(err) {
		t.Error("reserved directory was extracted")
	}
}

func TestProcessArchiveCorrupt(t *testing.T) {
	dir := t.TempDir()
	archivePath := filepath.Join(dir, "broken.zip")
	if err := os.WriteFile(archivePath, []byte("this is not a zip file"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	_, err := ProcessArchive(archivePath, filepath.Join(dir, "extract"))
	if !errors.Is(err, ErrCorruptArchive) {
		t.Errorf("ProcessArchive() error = %v, want ErrCorruptArchive", err)
	}
}

func TestProcessDirectory(t *testing.T) {
	src := t.TempDir()
	writeFile := func(rel, content string) {
		t.Helper()
		path := filepath.Join(src, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	writeFile("gnome.stl", "solid gnome")
	writeFile("photos/front.jpg", "jpeg bytes")
	writeFile(".git/config", "hidden dir content")
	writeFile(".DS_Store", "junk")

	manifest, err := ProcessDirectory(src)
	if err != nil {
		t.Fatalf("ProcessDirectory() error = %v", err)
	}

	if len(manifest.Entries) != 2 {
		t.Fatalf("entry count = %d, want 2", len(manifest.Entries))
	}
	for _, e := range manifest.Entries {
		if e.LocalPath == "" {
			t.Errorf("entry %s has empty LocalPath", e.RelPath)
		}
		data, err := os.ReadFile(e.LocalPath)
		if err != nil {
			t.Fatalf("read %s: %v", e.LocalPath, err)
		}
		sum := sha256.Sum256(data)
		if want := hex.EncodeToString(sum[:]); e.SHA256 != want {
			t.Errorf("%s hash mismatch", e.RelPath)
		}
	}
}

func TestHashFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "archive.zip")
	content := []byte("archive bytes for dedup hashing")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	got, err := HashFile(path)
	if err != nil {
		t.Fatalf("HashFile() error = %v", err)
	}
	sum := sha256.Sum256(content)
	if want := hex.EncodeToString(sum[:]); got != want {
		t.Errorf("HashFile() = %s, want %s", got, want)
	}
}

func TestImageEntries(t *testing.T) {
	m := &Manifest{Entries: []Entry{
		{RelPath: "a.stl", FileType: modeltypes.FileTypeSTL},
		{RelPath: "b.png", FileType: modeltypes.FileTypeImage},
		{RelPath: "c.jpg", FileType: modeltypes.FileTypeImage},
		{RelPath: "d.txt", FileType: modeltypes.FileTypeDocument},
	}}

	images := m.ImageEntries()
	if len(images) != 2 {
		t.Fatalf("ImageEntries() returned %d, want 2", len(images))
	}
}
