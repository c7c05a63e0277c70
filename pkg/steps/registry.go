package steps

import (
	"fmt"
	"regexp"
	"sync"

	"github.com/rolloutd/agent/pkg/errs"
	"github.com/rolloutd/agent/pkg/runtime"
)

// Func is a compiled-in step implementation. It receives the running
// engine and returns an error the driver classifies via errs.Classify.
type Func func(e *runtime.Engine) error

// Registry maps step filenames ("NNN-name") to their compiled-in
// implementations.
type Registry struct {
	mu    sync.RWMutex
	funcs map[string]Func
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{funcs: map[string]Func{}}
}

// Register associates filename with fn. Re-registering the same
// filename overwrites the previous entry, matching the way a package
// init() re-running in tests should behave idempotently.
func (r *Registry) Register(filename string, fn Func) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.funcs[filename] = fn
}

// Lookup returns the implementation registered for filename.
func (r *Registry) Lookup(filename string) (Func, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.funcs[filename]
	return fn, ok
}

var shortNameStrip = regexp.MustCompile(`^\d+-`)

// Resolve finds the registered step whose filename equals shortname,
// or equals it once the "NNN-" prefix is stripped. Unlike queue_step's
// (\d+-)?<shortname>$ suffix match, a name that merely ends in
// shortname does not match. It reports an error distinct from "not
// found" when more than one filename matches, since the match must be
// unambiguous.
func (r *Registry) Resolve(shortname string) (string, Func, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matchName string
	var matchFn Func
	count := 0
	for name, fn := range r.funcs {
		if name == shortname || shortNameStrip.ReplaceAllString(name, "") == shortname {
			matchName, matchFn = name, fn
			count++
		}
	}
	switch count {
	case 0:
		return "", nil, &errs.ConfigError{Msg: fmt.Sprintf("no step matches %q", shortname)}
	case 1:
		return matchName, matchFn, nil
	default:
		return "", nil, &errs.ConfigError{Msg: fmt.Sprintf("ambiguous step short name %q", shortname)}
	}
}

// Run invokes the implementation registered for filename, failing with
// *errs.ConfigError if none is registered.
func (r *Registry) Run(e *runtime.Engine, filename string) error {
	fn, ok := r.Lookup(filename)
	if !ok {
		return &errs.ConfigError{Msg: fmt.Sprintf("no implementation registered for step %s", filename)}
	}
	return fn(e)
}
