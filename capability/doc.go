// Package capability defines the static registry of routable capabilities:
// which tools each capability may invoke and the natural-language description
// the orchestrator routes against. The registry is built once at startup and
// immutable afterwards; there is no process-wide singleton, so construct a
// Registry value and pass it by reference into the router, dispatcher and
// engine.
package capability
