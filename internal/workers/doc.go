// Package workers provides helpers for sizing the ingestion worker pools.
//
// Worker counts are derived from GOMAXPROCS, which Go 1.19+ sets from
// container CPU limits, so pools stay within cgroup constraints. Archive
// ingestion is I/O heavy (extraction, hashing, placement), so the default
// sizing uses the I/O multiplier; the folder-import lane is pinned to a
// single worker by its caller regardless of what these helpers return.
//
// The INGEST_WORKERS environment variable overrides the calculation.
package workers
