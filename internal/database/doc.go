// Package database implements the persistence collaborator for the ingestion
// pipeline on SQLite.
//
// The pipeline touches it only through a narrow set of operations: creating a
// model in the processing state, batch-inserting its files and thumbnails
// once placement succeeds, updating model status with aggregates, and
// read-only access to libraries, collections and metadata values.
package database
