// Package metrics defines the Prometheus collectors exposed by printvault.
//
// All collectors are registered with the default registry via promauto at
// package initialization and exported on the metrics port.
package metrics
