// Package main implements vaultrepair, an offline maintenance tool for the
// PrintVault database. It reports model counts by status and recovers models
// left stranded in processing by a crashed worker.
package main
