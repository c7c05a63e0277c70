// Package errs defines the agent's exception taxonomy: a closed set of
// error kinds propagated across components, plus two control-signal
// types that short-circuit a step without being failures.
//
// The source project this agent is modeled on used a dynamic,
// isa-based exception hierarchy. Here each kind is its own exported
// struct implementing error, and Classify maps an arbitrary error onto
// one of them so the driver's per-step recovery can switch on a closed
// set instead of probing types ad hoc.
package errs
