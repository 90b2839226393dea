// Package progress aggregates unit-level completions into a monotonic
// job-level progress percent, weighted by stage cost, and forwards
// events to the notification layer at a rate of at most one per unit
// completion.
package progress
