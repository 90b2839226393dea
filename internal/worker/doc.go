// Package worker runs generation jobs: the pool claims queued jobs
// under a concurrency cap and keeps their leases fresh, and the
// pipeline drives each job through its stages with bounded fan-out,
// retry with backoff, and cooperative cancellation.
package worker
