// Package steps loads step source from the repository and dispatches
// to the compiled-in Go function that implements each step. Steps are
// never evaluated as fetched code: the remote index only names which
// step runs next, and a Registry maps that name to a local
// implementation. Source bytes are still fetched and cached so
// --step_help can render a step's documentation; nothing compares the
// fetched source or the remote index against the registry.
package steps
