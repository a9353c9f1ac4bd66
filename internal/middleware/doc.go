// Package middleware provides the HTTP middleware chain: W3C Extended Log
// Format request logging with log-injection sanitization, and Prometheus
// request metrics.
package middleware
