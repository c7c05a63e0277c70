// Package log wraps zerolog for process-wide structured logging and
// adds the agent's run-scoped concerns on top: a bounded RunLog that
// mirrors every line emitted during one invocation, and a StepLogger
// that prints a step's name exactly once, lazily, before its first
// line, per the primitive library's l/v/d/w/fatal surface.
package log
