// Package modeltypes defines the file classification used by the ingestion
// pipeline: the mapping from filename extensions to file types and MIME types.
package modeltypes
