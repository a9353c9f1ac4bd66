package archive

import (
	"archive/zip"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"printvault/internal/filesystem"
	"printvault/internal/logging"
	"printvault/internal/modeltypes"
)

// ErrCorruptArchive is returned when the container cannot be opened or read.
var ErrCorruptArchive = errors.New("corrupt archive")

// reservedDirs are metadata directories written by common archive tools.
// Anything under them is noise, not model content.
var reservedDirs = map[string]bool{
	"__MACOSX": true,
}

// ProcessArchive extracts archivePath into extractDir, filters noise entries,
// classifies and hashes each surviving file, and returns the manifest.
//
// The archive itself is never mutated. Extraction write errors are returned
// wrapped; an unreadable container is reported as ErrCorruptArchive.
func ProcessArchive(archivePath, extractDir string) (*Manifest, error) {
	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorruptArchive, filepath.Base(archivePath), err)
	}
	defer reader.Close()

	manifest := &Manifest{}

	for _, entry := range reader.File {
		if entry.FileInfo().IsDir() {
			continue
		}

		relPath := filepath.ToSlash(entry.Name)
		if isNoise(relPath) {
			logging.Debug("Skipping noise entry: %s", relPath)
			continue
		}

		destPath, ok := safeJoin(extractDir, relPath)
		if !ok {
			logging.Warn("Skipping entry escaping extract dir: %s", relPath)
			continue
		}

		digest, size, err := extractEntry(entry, destPath)
		if err != nil {
			return nil, fmt.Errorf("failed to extract %s: %w", relPath, err)
		}

		ext := filepath.Ext(relPath)
		manifest.Entries = append(manifest.Entries, Entry{
			RelPath:   relPath,
			Filename:  filepath.Base(relPath),
			FileType:  modeltypes.GetFileType(ext),
			MimeType:  modeltypes.GetMimeType(ext),
			Size:      size,
			SHA256:    digest,
			LocalPath: destPath,
		})
		manifest.TotalSize += size
	}

	logging.Debug("Processed archive %s: %d entries, %d bytes",
		filepath.Base(archivePath), len(manifest.Entries), manifest.TotalSize)

	return manifest, nil
}

// extractEntry streams one zip entry to destPath, hashing the bytes as they
// are written. Returns the hex digest and the byte count.
func extractEntry(entry *zip.File, destPath string) (string, int64, error) {
	rc, err := entry.Open()
	if err != nil {
		return "", 0, fmt.Errorf("%w: entry unreadable: %v", ErrCorruptArchive, err)
	}
	defer rc.Close()

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return "", 0, err
	}

	out, err := os.Create(destPath)
	if err != nil {
		return "", 0, err
	}

	hasher := sha256.New()
	size, err := io.Copy(io.MultiWriter(out, hasher), rc)
	if err != nil {
		out.Close()
		return "", 0, err
	}
	if err := out.Close(); err != nil {
		return "", 0, err
	}

	return hex.EncodeToString(hasher.Sum(nil)), size, nil
}

// ProcessDirectory walks srcDir and builds a manifest from the files found,
// applying the same noise filters and classification as archive extraction.
// Files are not copied; each entry's LocalPath points at the original file.
func ProcessDirectory(srcDir string) (*Manifest, error) {
	manifest := &Manifest{}
	retryCfg := filesystem.DefaultRetryConfig()

	err := filepath.WalkDir(srcDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		name := d.Name()
		if d.IsDir() {
			if path != srcDir && (strings.HasPrefix(name, ".") || reservedDirs[name]) {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, ".") {
			return nil
		}

		relPath, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}
		relPath = filepath.ToSlash(relPath)

		digest, size, err := hashFile(path, retryCfg)
		if err != nil {
			return fmt.Errorf("failed to hash %s: %w", relPath, err)
		}

		ext := filepath.Ext(name)
		manifest.Entries = append(manifest.Entries, Entry{
			RelPath:   relPath,
			Filename:  name,
			FileType:  modeltypes.GetFileType(ext),
			MimeType:  modeltypes.GetMimeType(ext),
			Size:      size,
			SHA256:    digest,
			LocalPath: path,
		})
		manifest.TotalSize += size
		return nil
	})
	if err != nil {
		return nil, err
	}

	return manifest, nil
}

// HashFile computes the SHA-256 hex digest of a file by streaming its
// content. Used for the archive-level content hash recorded on the model.
func HashFile(path string) (string, error) {
	digest, _, err := hashFile(path, filesystem.DefaultRetryConfig())
	return digest, err
}

func hashFile(path string, cfg filesystem.RetryConfig) (string, int64, error) {
	f, err := filesystem.OpenWithRetry(path, cfg)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	hasher := sha256.New()
	size, err := io.Copy(hasher, f)
	if err != nil {
		return "", 0, err
	}
	return hex.EncodeToString(hasher.Sum(nil)), size, nil
}

// isNoise reports whether a relative archive path should be filtered out:
// hidden files or directories (any segment starting with ".") and anything
// under a reserved metadata directory.
func isNoise(relPath string) bool {
	for _, segment := range strings.Split(relPath, "/") {
		if strings.HasPrefix(segment, ".") || reservedDirs[segment] {
			return true
		}
	}
	return false
}

// safeJoin joins base and a relative archive path, refusing results that
// escape base (zip-slip defense).
func safeJoin(base, relPath string) (string, bool) {
	dest := filepath.Join(base, filepath.FromSlash(relPath))
	if dest != base && !strings.HasPrefix(dest, base+string(os.PathSeparator)) {
		return "", false
	}
	return dest, true
}
