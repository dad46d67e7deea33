// Package server exposes the engine over HTTP: session and task lifecycle
// endpoints, SSE progress streams, the tool discovery surface and the agent
// card. Domain errors map onto status codes uniformly across handlers.
package server
