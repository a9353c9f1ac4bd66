// Package placement moves ingested files into their resolved library
// locations. Three strategies are supported: hard link (the default, zero
// extra disk), copy, and move. Hard links and renames degrade to a byte
// copy when the source and destination live on different filesystems.
package placement
