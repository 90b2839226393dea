// Package jobqueue exposes the submission side of the generation
// pipeline: idempotent enqueue by content key, status lookup, and
// cooperative cancellation. The worker package owns claiming and
// execution; this package never runs a pipeline.
package jobqueue
