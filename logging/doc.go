// Package logging provides a tiny abstraction over slog so downstream code
// can depend on a minimal interface (Logger) while allowing users to plug any
// structured logger. It also offers a richer ContractGuardLogger with
// contextual helpers (component, session, task) and domain specific logging
// helpers for tool dispatches, generation calls and task transitions.
package logging
