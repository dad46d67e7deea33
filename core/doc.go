// Package core provides the foundational domain types and interfaces used by
// ContractGuard. It defines the contracts for:
//
//   - Sessions (TTL-bounded conversational containers with ordered messages)
//   - Capabilities (named bundles of permitted tools with routing descriptions)
//   - Tasks (durable, resumable units of orchestrated work with an explicit
//     lifecycle state machine and optimistic revision locking)
//   - Progress events (transient status updates for tasks and documents)
//   - External collaborators (retrieval, generation, document metadata)
//   - The shared error taxonomy surfaced at the API boundary
//
// The package intentionally keeps implementation concerns (persistence,
// dispatching, routing, HTTP transport) out of scope, exposing small
// interfaces so higher packages can supply custom backends.
package core
