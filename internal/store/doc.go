// Package store provides abstractions for data persistence: the durable
// job store behind the queue, the keyed result cache for finished
// bundles, and shared sentinel errors. Concrete implementations live in
// internal/platform.
package store
