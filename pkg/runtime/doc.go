// Package runtime provides the Engine a compiled-in step runs under:
// configuration lookup, inheritance predicates, subprocess execution
// with optional privilege transition, HTTP file fetch with atomic
// replacement, queue manipulation, and the l/v/d/w/fatal logging
// primitives. Every primitive is a method on *Engine, bundling what
// would otherwise be process-wide mutable globals into one explicit,
// threaded context.
package runtime
