// Package ingest sequences the ingestion pipeline: archive processing,
// destination resolution, file placement, thumbnail generation and the final
// persistence commit.
//
// A model is created in the processing state when its job is enqueued and is
// moved to ready or error exclusively by this package. File and thumbnail
// rows are committed in one batch only after the whole manifest has been
// placed, so a failed model never leaves partial rows behind. Two flows
// share the pipeline core: single-archive ingestion driven by uploads, and
// folder import, which walks an existing directory tree against a hierarchy
// pattern and ingests each discovered model independently.
package ingest
