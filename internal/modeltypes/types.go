package modeltypes

import (
	"path/filepath"
	"strings"
)

// FileType classifies a file that belongs to a model.
type FileType string

const (
	// FileTypeSTL represents a printable mesh file.
	FileTypeSTL FileType = "stl"
	// FileTypeImage represents a preview or photo image.
	FileTypeImage FileType = "image"
	// FileTypeDocument represents instructions, licenses or notes.
	FileTypeDocument FileType = "document"
	// FileTypeOther represents any file the pipeline keeps but does not
	// otherwise understand.
	FileTypeOther FileType = "other"
)

// STLExtensions maps extensions to whether they classify as printable meshes.
var STLExtensions = map[string]bool{
	".stl": true,
}

// ImageExtensions maps extensions to whether they classify as images.
var ImageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
	".tif":  true,
	".tiff": true,
}

// DocumentExtensions maps extensions to whether they classify as documents.
var DocumentExtensions = map[string]bool{
	".pdf": true,
	".txt": true,
	".md":  true,
}

// MimeTypes maps file extensions to their MIME types.
var MimeTypes = map[string]string{
	".stl": "model/stl",

	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
	".tif":  "image/tiff",
	".tiff": "image/tiff",

	".pdf": "application/pdf",
	".txt": "text/plain",
	".md":  "text/markdown",
}

// GetFileType returns the FileType for a given file extension.
// The extension should include the leading dot (e.g. ".stl"); matching is
// case-insensitive. Returns FileTypeOther if the extension is not recognized.
func GetFileType(ext string) FileType {
	ext = strings.ToLower(ext)
	if STLExtensions[ext] {
		return FileTypeSTL
	}
	if ImageExtensions[ext] {
		return FileTypeImage
	}
	if DocumentExtensions[ext] {
		return FileTypeDocument
	}
	return FileTypeOther
}

// GetMimeType returns the MIME type for a given file extension.
// Matching is case-insensitive. Returns "application/octet-stream" if the
// extension is not recognized.
func GetMimeType(ext string) string {
	if mime, ok := MimeTypes[strings.ToLower(ext)]; ok {
		return mime
	}
	return "application/octet-stream"
}

// ClassifyName classifies a file by its name's extension.
func ClassifyName(name string) FileType {
	return GetFileType(filepath.Ext(name))
}
