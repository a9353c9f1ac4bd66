package pathtemplate

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidTemplate is returned for templates that fail syntax or
// structural validation. Always raised at configuration time, before any
// filesystem mutation.
var ErrInvalidTemplate = errors.New("invalid path template")

// SegmentKind discriminates the parsed segment variants.
type SegmentKind int

const (
	// SegmentLiteral is a fixed path component.
	SegmentLiteral SegmentKind = iota
	// SegmentLibrary substitutes the library's display name.
	SegmentLibrary
	// SegmentMetadata substitutes a metadata value by slug.
	SegmentMetadata
	// SegmentModel substitutes the model's display name.
	SegmentModel
)

// Segment is one parsed component of a path template.
type Segment struct {
	Kind SegmentKind
	// Slug is the metadata field slug for SegmentMetadata.
	Slug string
	// Literal is the raw text for SegmentLiteral.
	Literal string
}

// Parse tokenizes a template into typed segments. Syntax errors (empty
// segments, unbalanced braces, unknown tokens, bad metadata slugs) are
// reported as ErrInvalidTemplate; structural rules are enforced separately
// by Validate.
func Parse(template string) ([]Segment, error) {
	if strings.TrimSpace(template) == "" {
		return nil, fmt.Errorf("%w: template is empty", ErrInvalidTemplate)
	}

	parts := strings.Split(strings.Trim(template, "/"), "/")
	segments := make([]Segment, 0, len(parts))

	for _, part := range parts {
		if part == "" {
			return nil, fmt.Errorf("%w: empty segment", ErrInvalidTemplate)
		}

		if !strings.HasPrefix(part, "{") {
			if strings.ContainsAny(part, "{}") {
				return nil, fmt.Errorf("%w: segment %q mixes literal text and braces", ErrInvalidTemplate, part)
			}
			segments = append(segments, Segment{Kind: SegmentLiteral, Literal: part})
			continue
		}

		if !strings.HasSuffix(part, "}") || strings.Count(part, "{") != 1 || strings.Count(part, "}") != 1 {
			return nil, fmt.Errorf("%w: malformed token %q", ErrInvalidTemplate, part)
		}

		token := part[1 : len(part)-1]
		switch {
		case token == "library":
			segments = append(segments, Segment{Kind: SegmentLibrary})
		case token == "model":
			segments = append(segments, Segment{Kind: SegmentModel})
		case strings.HasPrefix(token, "metadata."):
			slug := strings.TrimPrefix(token, "metadata.")
			if !validSlug(slug) {
				return nil, fmt.Errorf("%w: bad metadata slug %q (lowercase alphanumerics and hyphens only)", ErrInvalidTemplate, slug)
			}
			segments = append(segments, Segment{Kind: SegmentMetadata, Slug: slug})
		default:
			return nil, fmt.Errorf("%w: unknown token {%s}", ErrInvalidTemplate, token)
		}
	}

	return segments, nil
}

// Validate enforces the structural rules applied at library-configuration
// time: the template must contain at least one token, must begin with
// {library}, must end with {model}, and any other token must be a
// {metadata.<slug>}. Ingestion never sees a template that fails Validate.
func Validate(template string) error {
	segments, err := Parse(template)
	if err != nil {
		return err
	}

	if segments[0].Kind != SegmentLibrary {
		return fmt.Errorf("%w: template must begin with {library}", ErrInvalidTemplate)
	}
	if segments[len(segments)-1].Kind != SegmentModel {
		return fmt.Errorf("%w: template must end with {model}", ErrInvalidTemplate)
	}

	for _, seg := range segments[1 : len(segments)-1] {
		switch seg.Kind {
		case SegmentLibrary, SegmentModel:
			return fmt.Errorf("%w: {library} and {model} may appear only at the ends", ErrInvalidTemplate)
		case SegmentLiteral, SegmentMetadata:
			// fine
		}
	}

	return nil
}

// validSlug reports whether a metadata slug is lowercase alphanumerics and
// hyphens, non-empty.
func validSlug(slug string) bool {
	if slug == "" {
		return false
	}
	for _, r := range slug {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= '0' && r <= '9':
		case r == '-':
		default:
			return false
		}
	}
	return true
}
