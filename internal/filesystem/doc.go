// Package filesystem provides retry wrappers for filesystem operations that
// may hit transient NFS errors. Library roots are commonly network mounts,
// and a stale file handle during hashing or a folder walk should not fail a
// whole ingestion job.
package filesystem
