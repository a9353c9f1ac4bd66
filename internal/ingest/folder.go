package ingest

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"printvault/internal/filesystem"
)

// ErrInvalidPattern is returned for hierarchy patterns that fail validation.
// Raised before any model row is created or file touched.
var ErrInvalidPattern = errors.New("invalid hierarchy pattern")

type hierarchyKind int

const (
	hierarchyLiteral hierarchyKind = iota
	hierarchyCollection
	hierarchyMetadata
	hierarchyModel
)

// hierarchySegment maps one directory level of an import tree to its
// interpretation.
type hierarchySegment struct {
	kind    hierarchyKind
	slug    string
	literal string
}

// parseHierarchy tokenizes a folder-import hierarchy pattern. Token names
// are case-insensitive; {model} must be the terminal segment and may appear
// nowhere else.
func parseHierarchy(pattern string) ([]hierarchySegment, error) {
	if strings.TrimSpace(pattern) == "" {
		return nil, fmt.Errorf("%w: pattern is empty", ErrInvalidPattern)
	}

	parts := strings.Split(strings.Trim(pattern, "/"), "/")
	segments := make([]hierarchySegment, 0, len(parts))

	for _, part := range parts {
		if part == "" {
			return nil, fmt.Errorf("%w: empty segment", ErrInvalidPattern)
		}

		if !strings.HasPrefix(part, "{") {
			if strings.ContainsAny(part, "{}") {
				return nil, fmt.Errorf("%w: segment %q mixes literal text and braces", ErrInvalidPattern, part)
			}
			segments = append(segments, hierarchySegment{kind: hierarchyLiteral, literal: part})
			continue
		}

		if !strings.HasSuffix(part, "}") || strings.Count(part, "{") != 1 || strings.Count(part, "}") != 1 {
			return nil, fmt.Errorf("%w: malformed token %q", ErrInvalidPattern, part)
		}

		token := strings.ToLower(part[1 : len(part)-1])
		switch {
		case token == "collection":
			segments = append(segments, hierarchySegment{kind: hierarchyCollection})
		case token == "model":
			segments = append(segments, hierarchySegment{kind: hierarchyModel})
		case strings.HasPrefix(token, "metadata."):
			slug := strings.TrimPrefix(token, "metadata.")
			if slug == "" {
				return nil, fmt.Errorf("%w: empty metadata slug", ErrInvalidPattern)
			}
			segments = append(segments, hierarchySegment{kind: hierarchyMetadata, slug: slug})
		default:
			return nil, fmt.Errorf("%w: unknown token {%s}", ErrInvalidPattern, token)
		}
	}

	if segments[len(segments)-1].kind != hierarchyModel {
		return nil, fmt.Errorf("%w: {model} must be the terminal segment", ErrInvalidPattern)
	}
	for _, seg := range segments[:len(segments)-1] {
		if seg.kind == hierarchyModel {
			return nil, fmt.Errorf("%w: {model} may appear only once, at the end", ErrInvalidPattern)
		}
	}

	return segments, nil
}

// discoveredModel is one model directory found during a folder-import walk,
// together with the collection and metadata values read off its path.
type discoveredModel struct {
	Path       string
	Name       string
	Collection string
	Metadata   map[string]string
}

// discoverModels walks root level by level against the hierarchy segments
// and returns every directory matching the {model} position. Hidden
// directories are skipped the same way the archive processor skips hidden
// files. Results are sorted by path for deterministic processing order.
func discoverModels(root string, segments []hierarchySegment) ([]discoveredModel, error) {
	var found []discoveredModel
	retryCfg := filesystem.DefaultRetryConfig()

	var walk func(dir string, depth int, collection string, metadata map[string]string) error
	walk = func(dir string, depth int, collection string, metadata map[string]string) error {
		// Import sources commonly sit on network mounts
		entries, err := filesystem.ReadDirWithRetry(dir, retryCfg)
		if err != nil {
			return fmt.Errorf("failed to read import directory: %w", err)
		}

		seg := segments[depth]
		for _, entry := range entries {
			if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
				continue
			}
			sub := filepath.Join(dir, entry.Name())

			switch seg.kind {
			case hierarchyLiteral:
				if !strings.EqualFold(entry.Name(), seg.literal) {
					continue
				}
				if err := walk(sub, depth+1, collection, metadata); err != nil {
					return err
				}
			case hierarchyCollection:
				if err := walk(sub, depth+1, entry.Name(), metadata); err != nil {
					return err
				}
			case hierarchyMetadata:
				next := make(map[string]string, len(metadata)+1)
				for k, v := range metadata {
					next[k] = v
				}
				next[seg.slug] = entry.Name()
				if err := walk(sub, depth+1, collection, next); err != nil {
					return err
				}
			case hierarchyModel:
				found = append(found, discoveredModel{
					Path:       sub,
					Name:       entry.Name(),
					Collection: collection,
					Metadata:   metadata,
				})
			}
		}
		return nil
	}

	if err := walk(root, 0, "", nil); err != nil {
		return nil, err
	}

	sort.Slice(found, func(i, j int) bool { return found[i].Path < found[j].Path })
	return found, nil
}
