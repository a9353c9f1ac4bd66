package archive

import "printvault/internal/modeltypes"

// Entry describes one surviving file from an archive or folder tree.
type Entry struct {
	// RelPath is the file's path relative to the archive or source root,
	// preserved verbatim (forward slashes, subdirectories included).
	RelPath string
	// Filename is the base name of the file.
	Filename string
	// FileType is the extension-table classification.
	FileType modeltypes.FileType
	// MimeType is derived from the same extension table.
	MimeType string
	// Size is the file's size in bytes after extraction.
	Size int64
	// SHA256 is the hex digest of the file's content.
	SHA256 string
	// LocalPath is where the file currently lives on disk: inside the
	// scratch directory for archives, or the original location for folder
	// imports.
	LocalPath string
}

// Manifest is the processor's in-memory description of a model's files.
// It is consumed once by the orchestrator and never persisted directly.
type Manifest struct {
	Entries   []Entry
	TotalSize int64
}

// ImageEntries returns the manifest entries classified as images, the inputs
// to thumbnail generation.
func (m *Manifest) ImageEntries() []Entry {
	var images []Entry
	for _, e := range m.Entries {
		if e.FileType == modeltypes.FileTypeImage {
			images = append(images, e)
		}
	}
	return images
}
