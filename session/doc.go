// Package session houses concrete implementations of core.SessionStore. The
// interface itself (and the Session struct) live in the core package to
// centralize domain contracts; keeping only implementations here prevents
// higher level packages (router, engine, server) from depending on concrete
// storage.
//
// The in-memory store enforces the 24 hour TTL lazily: expired sessions are
// reaped when they are next touched by any accessor, never by a background
// sweep. Add additional backends (Redis, Postgres, ...) alongside without
// changing any calling code.
package session
