// Package store provides core.TaskStore implementations: an in-memory store
// for tests and single-process deployments and a SQLite store for durable
// task state. Both enforce the optimistic revision lock, so concurrent
// transitions on the same task resolve to exactly one winner.
package store
