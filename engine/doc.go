// Package engine executes orchestrated work. It owns the task lifecycle
// (submit, execute, pause, resume, cancel) and the synchronous answer path
// for session queries. Long-running tasks move through a fixed pipeline whose
// completed steps are persisted, so a paused or resumed task never repeats
// work it already did.
package engine
