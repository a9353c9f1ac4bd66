package ingest

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestParseHierarchy(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		want    []hierarchySegment
		wantErr bool
	}{
		{
			name:    "Full pattern",
			pattern: "{collection}/{metadata.artist}/{model}",
			want: []hierarchySegment{
				{kind: hierarchyCollection},
				{kind: hierarchyMetadata, slug: "artist"},
				{kind: hierarchyModel},
			},
		},
		{
			name:    "Tokens are case-insensitive",
			pattern: "{Collection}/{MODEL}",
			want: []hierarchySegment{
				{kind: hierarchyCollection},
				{kind: hierarchyModel},
			},
		},
		{
			name:    "Literal level",
			pattern: "downloads/{model}",
			want: []hierarchySegment{
				{kind: hierarchyLiteral, literal: "downloads"},
				{kind: hierarchyModel},
			},
		},
		{
			name:    "Model only",
			pattern: "{model}",
			want:    []hierarchySegment{{kind: hierarchyModel}},
		},
		{
			name:    "Model not terminal",
			pattern: "{model}/{collection}",
			wantErr: true,
		},
		{
			name:    "Missing model",
			pattern: "{collection}/{metadata.artist}",
			wantErr: true,
		},
		{
			name:    "Unknown token",
			pattern: "{library}/{model}",
			wantErr: true,
		},
		{
			name:    "Empty pattern",
			pattern: "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseHierarchy(tt.pattern)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidPattern) {
					t.Fatalf("parseHierarchy(%q) error = %v, want ErrInvalidPattern", tt.pattern, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseHierarchy(%q) error = %v", tt.pattern, err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("segment count = %d, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("segment %d = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestDiscoverModels(t *testing.T) {
	root := t.TempDir()
	mkdir := func(rel string) {
		t.Helper()
		if err := os.MkdirAll(filepath.Join(root, rel), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
	}
	mkdir("Heroes/Jane/Dragon")
	mkdir("Heroes/Jane/Knight")
	mkdir("Terrain/Bob/Gnome")
	mkdir(".git/whatever")
	mkdir("Heroes/.cache/Thing")

	segments, err := parseHierarchy("{collection}/{metadata.artist}/{model}")
	if err != nil {
		t.Fatalf("parseHierarchy() error = %v", err)
	}

	models, err := discoverModels(root, segments)
	if err != nil {
		t.Fatalf("discoverModels() error = %v", err)
	}
	if len(models) != 3 {
		t.Fatalf("discovered %d model(s), want 3 (hidden dirs skipped)", len(models))
	}

	first := models[0]
	if first.Name != "Dragon" {
		t.Errorf("first model = %s, want Dragon (sorted by path)", first.Name)
	}
	if first.Collection != "Heroes" {
		t.Errorf("collection = %s, want Heroes", first.Collection)
	}
	if first.Metadata["artist"] != "Jane" {
		t.Errorf("artist = %s, want Jane", first.Metadata["artist"])
	}
}

func TestDiscoverModelsLiteralLevel(t *testing.T) {
	root := t.TempDir()
	for _, rel := range []string{"Downloads/Dragon", "downloads/Gnome", "Other/Skipped"} {
		if err := os.MkdirAll(filepath.Join(root, rel), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
	}

	segments, err := parseHierarchy("downloads/{model}")
	if err != nil {
		t.Fatalf("parseHierarchy() error = %v", err)
	}
	models, err := discoverModels(root, segments)
	if err != nil {
		t.Fatalf("discoverModels() error = %v", err)
	}

	// Literal levels match case-insensitively
	if len(models) != 2 {
		t.Fatalf("discovered %d model(s), want 2", len(models))
	}
	for _, m := range models {
		if m.Name == "Skipped" {
			t.Error("model outside the literal level was discovered")
		}
	}
}
