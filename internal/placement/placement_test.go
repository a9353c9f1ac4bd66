package placement

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeFixture(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func TestForName(t *testing.T) {
	tests := []struct {
		name    string
		want    Strategy
		wantErr bool
	}{
		{name: "hardlink", want: Link},
		{name: "copy", want: Copy},
		{name: "move", want: Move},
		{name: "symlink", wantErr: true},
		{name: "", wantErr: true},
	}

	for _, tt := range tests {
		got, err := ForName(tt.name)
		if tt.wantErr {
			if !errors.Is(err, ErrUnknownStrategy) {
				t.Errorf("ForName(%q) error = %v, want ErrUnknownStrategy", tt.name, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("ForName(%q) error = %v", tt.name, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ForName(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestPlaceLink(t *testing.T) {
	dir := t.TempDir()
	src := writeFixture(t, dir, "part.stl", "solid part")
	dst := filepath.Join(dir, "library", "Main", "Part", "part.stl")

	if err := Place(Link, src, dst); err != nil {
		t.Fatalf("Place(Link) error = %v", err)
	}

	srcInfo, err := os.Stat(src)
	if err != nil {
		t.Fatalf("stat source: %v", err)
	}
	dstInfo, err := os.Stat(dst)
	if err != nil {
		t.Fatalf("stat destination: %v", err)
	}
	if !os.SameFile(srcInfo, dstInfo) {
		t.Error("destination is not a hard link of the source")
	}
}

func TestPlaceCopy(t *testing.T) {
	dir := t.TempDir()
	src := writeFixture(t, dir, "part.stl", "solid part")
	dst := filepath.Join(dir, "out", "part.stl")

	if err := Place(Copy, src, dst); err != nil {
		t.Fatalf("Place(Copy) error = %v", err)
	}

	data, err := os.ReadFile(dst)
	if err != nil {
		t.Fatalf("read destination: %v", err)
	}
	if string(data) != "solid part" {
		t.Errorf("destination content = %q, want %q", data, "solid part")
	}

	// Source must survive a copy
	if _, err := os.Stat(src); err != nil {
		t.Errorf("source missing after copy: %v", err)
	}

	srcInfo, _ := os.Stat(src)
	dstInfo, _ := os.Stat(dst)
	if os.SameFile(srcInfo, dstInfo) {
		t.Error("copy produced a hard link, want independent file")
	}
}

func TestPlaceMove(t *testing.T) {
	dir := t.TempDir()
	src := writeFixture(t, dir, "part.stl", "solid part")
	dst := filepath.Join(dir, "out", "part.stl")

	if err := Place(Move, src, dst); err != nil {
		t.Fatalf("Place(Move) error = %v", err)
	}

	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Error("source still present after move")
	}
	data, err := os.ReadFile(dst)
	if err != nil {
		t.Fatalf("read destination: %v", err)
	}
	if string(data) != "solid part" {
		t.Errorf("destination content = %q, want %q", data, "solid part")
	}
}

func TestPlaceMissingSource(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "does-not-exist.stl")
	dst := filepath.Join(dir, "out", "part.stl")

	for _, strategy := range []Strategy{Link, Copy, Move} {
		if err := Place(strategy, src, dst); err == nil {
			t.Errorf("Place(%s) with missing source succeeded, want error", strategy)
		}
	}
}

func TestCopyFilePreservesMode(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "run.sh")
	if err := os.WriteFile(src, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	dst := filepath.Join(dir, "out", "run.sh")

	if err := Place(Copy, src, dst); err != nil {
		t.Fatalf("Place(Copy) error = %v", err)
	}

	info, err := os.Stat(dst)
	if err != nil {
		t.Fatalf("stat destination: %v", err)
	}
	if info.Mode().Perm() != 0o755 {
		t.Errorf("destination mode = %o, want 755", info.Mode().Perm())
	}
}
