// Package dispatch mediates every tool invocation between capabilities and
// the registered tools. It enforces capability permissions, applies
// per-collaborator timeouts and concurrency ceilings, retries transient
// failures with jittered backoff and records one trace span and one log line
// per invocation.
package dispatch
