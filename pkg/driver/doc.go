// Package driver runs one agent invocation through the execution
// state machine: acquire the single-instance lock, read the local
// agent configuration, fetch the remote step index, seed the priority
// queue by numeric prefix, run the setup step, let the host
// configuration reorder or duplicate the remaining queue, drain it
// honoring --skip_step/--only/i_should, rewrite the local
// configuration, and release the lock (spec §4.7).
//
// Unlike the ticking reconcile loop this package is adapted from, a
// driver run is one-shot: Run executes the whole state machine once
// and returns a summary for the caller to turn into a process exit
// code.
package driver
