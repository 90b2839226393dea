// Package postgres implements the durable job store on PostgreSQL.
// The jobs table is the shared queue for all worker pool instances:
// claims take a lease via FOR UPDATE SKIP LOCKED, liveness is tracked
// through heartbeat timestamps, and every lifecycle transition is
// compare-and-set against the expected prior state.
package postgres
