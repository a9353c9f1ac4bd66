// Package handlers implements the thin HTTP surface in front of the
// ingestion pipeline: archive upload and folder-import enqueueing, model and
// job status reads, library administration, and health endpoints. Handlers
// do no heavy work; uploads are synchronous only up to enqueue.
package handlers
