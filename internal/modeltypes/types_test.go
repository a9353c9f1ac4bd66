package modeltypes

import (
	"testing"
)

func TestGetFileType(t *testing.T) {
	tests := []struct {
		name string
		ext  string
		want FileType
	}{
		{
			name: "STL mesh",
			ext:  ".stl",
			want: FileTypeSTL,
		},
		{
			name: "Uppercase STL mesh",
			ext:  ".STL",
			want: FileTypeSTL,
		},
		{
			name: "JPEG image",
			ext:  ".jpg",
			want: FileTypeImage,
		},
		{
			name: "PNG image",
			ext:  ".png",
			want: FileTypeImage,
		},
		{
			name: "Mixed-case PNG image",
			ext:  ".PnG",
			want: FileTypeImage,
		},
		{
			name: "TIFF image",
			ext:  ".tiff",
			want: FileTypeImage,
		},
		{
			name: "PDF document",
			ext:  ".pdf",
			want: FileTypeDocument,
		},
		{
			name: "Markdown document",
			ext:  ".md",
			want: FileTypeDocument,
		},
		{
			name: "Unknown extension",
			ext:  ".gcode",
			want: FileTypeOther,
		},
		{
			name: "Empty extension",
			ext:  "",
			want: FileTypeOther,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := GetFileType(tt.ext)
			if got != tt.want {
				t.Errorf("GetFileType(%q) = %v, want %v", tt.ext, got, tt.want)
			}
		})
	}
}

func TestGetMimeType(t *testing.T) {
	tests := []struct {
		name string
		ext  string
		want string
	}{
		{
			name: "STL mime type",
			ext:  ".stl",
			want: "model/stl",
		},
		{
			name: "JPEG mime type",
			ext:  ".jpeg",
			want: "image/jpeg",
		},
		{
			name: "Uppercase JPEG mime type",
			ext:  ".JPEG",
			want: "image/jpeg",
		},
		{
			name: "WebP mime type",
			ext:  ".webp",
			want: "image/webp",
		},
		{
			name: "Text mime type",
			ext:  ".txt",
			want: "text/plain",
		},
		{
			name: "Unknown extension returns octet-stream",
			ext:  ".blend",
			want: "application/octet-stream",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := GetMimeType(tt.ext)
			if got != tt.want {
				t.Errorf("GetMimeType(%q) = %q, want %q", tt.ext, got, tt.want)
			}
		})
	}
}

func TestClassifyName(t *testing.T) {
	tests := []struct {
		name     string
		fileName string
		want     FileType
	}{
		{"Case-insensitive STL", "dragon.STL", FileTypeSTL},
		{"Lowercase STL", "dragon.stl", FileTypeSTL},
		{"Nested path image", "photos/render.png", FileTypeImage},
		{"Readme document", "README.md", FileTypeDocument},
		{"No extension", "Makefile", FileTypeOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyName(tt.fileName); got != tt.want {
				t.Errorf("ClassifyName(%q) = %v, want %v", tt.fileName, got, tt.want)
			}
		})
	}
}
