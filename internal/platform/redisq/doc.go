// Package redisq holds the redis-backed pieces of the pipeline: the
// result cache that stores finished artifact bundles under per-user and
// latest-for-content keys, and the shared rate budget that bounds
// concurrent generation calls across all worker pool instances.
package redisq
