// Package startup owns process configuration and the startup/shutdown log
// narrative. Configuration comes from environment variables; LoadConfig
// validates directories up front (including write-access probes) so
// misconfiguration fails at boot instead of mid-ingestion.
package startup
