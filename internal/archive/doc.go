// Package archive turns a raw zip archive (or an existing folder tree) into
// a manifest: the filtered, classified, hashed list of files that make up a
// model.
//
// Extraction writes files to a caller-provided scratch directory; noise
// entries (hidden files, archive-tool metadata directories) never reach the
// manifest. Hashing and classification are pure functions of file bytes and
// names, so a manifest entry's digest always matches a direct SHA-256 of the
// extracted file.
package archive
