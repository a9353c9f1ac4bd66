package pathtemplate

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"printvault/internal/logging"
)

// ErrPathEscape is returned when a resolved path would land outside the
// library root. This is the primary defense against directory traversal via
// crafted metadata values or model names, and it is never silently truncated.
var ErrPathEscape = errors.New("resolved path escapes library root")

// unknownValue is substituted for metadata tokens with no value and for
// values that sanitize to nothing.
const unknownValue = "_unknown"

// Resolve computes the absolute destination directory for a model under
// rootPath. Every token value is sanitized before insertion; a missing
// metadata value substitutes a sentinel with a warning rather than failing
// the placement, since metadata is often optional.
func Resolve(template, rootPath, libraryName, modelName string, metadata map[string]string) (string, error) {
	segments, err := Parse(template)
	if err != nil {
		return "", err
	}

	parts := make([]string, 0, len(segments))
	for _, seg := range segments {
		switch seg.Kind {
		case SegmentLiteral:
			parts = append(parts, SanitizeValue(seg.Literal))
		case SegmentLibrary:
			parts = append(parts, SanitizeValue(libraryName))
		case SegmentModel:
			parts = append(parts, SanitizeValue(modelName))
		case SegmentMetadata:
			value, ok := metadata[seg.Slug]
			if !ok || strings.TrimSpace(value) == "" {
				logging.Warn("No metadata value for %q, substituting %s", seg.Slug, unknownValue)
				parts = append(parts, unknownValue)
				continue
			}
			parts = append(parts, SanitizeValue(value))
		}
	}

	absRoot, err := filepath.Abs(rootPath)
	if err != nil {
		return "", fmt.Errorf("failed to resolve library root: %w", err)
	}

	resolved := filepath.Join(append([]string{absRoot}, parts...)...)

	// Containment check after Join has collapsed any dot segments.
	if resolved != absRoot && !strings.HasPrefix(resolved, absRoot+string(os.PathSeparator)) {
		return "", fmt.Errorf("%w: %s is not under %s", ErrPathEscape, resolved, absRoot)
	}

	return resolved, nil
}

// reservedChars are characters replaced during sanitization: path
// separators, the NUL byte, and characters reserved by common filesystems.
const reservedChars = "/\\\x00<>:\"|?*"

// SanitizeValue makes a token value safe to use as a single path segment:
// reserved characters and whitespace become underscores, runs of underscores
// collapse, leading/trailing underscores are trimmed, and an empty result
// (or a bare dot segment) becomes the _unknown sentinel.
func SanitizeValue(value string) string {
	var b strings.Builder
	for _, r := range value {
		switch {
		case strings.ContainsRune(reservedChars, r), r < 0x20, r == ' ':
			b.WriteByte('_')
		default:
			b.WriteRune(r)
		}
	}

	sanitized := b.String()
	for strings.Contains(sanitized, "__") {
		sanitized = strings.ReplaceAll(sanitized, "__", "_")
	}
	sanitized = strings.Trim(sanitized, "_")

	if sanitized == "" || sanitized == "." || sanitized == ".." {
		return unknownValue
	}
	return sanitized
}
