// Package metrics registers the service's Prometheus collectors and
// exposes small helpers for recording pipeline activity. Collectors are
// registered on the default registry and served at /metrics.
package metrics
