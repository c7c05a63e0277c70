package steps

import (
	"context"
	"fmt"
	"sync"

	"github.com/rolloutd/agent/pkg/errs"
	"github.com/rolloutd/agent/pkg/httpclient"
)

// ModuleRegistry names the shared runtime modules compiled into this
// binary, populated by each primitive-library extension's init().
// RemoteRequire consults it instead of performing a second HTTP fetch,
// since module code is compiled in rather than evaluated (see the
// package doc).
type ModuleRegistry struct {
	mu      sync.RWMutex
	modules map[string]bool
}

// NewModuleRegistry returns an empty ModuleRegistry.
func NewModuleRegistry() *ModuleRegistry {
	return &ModuleRegistry{modules: map[string]bool{}}
}

// Provide registers name as a compiled-in module, normally called from
// an init() in the package implementing it.
func (m *ModuleRegistry) Provide(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.modules[name] = true
}

func (m *ModuleRegistry) has(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.modules[name]
}

// Loader fetches and caches step source from the repository. Source is
// stored verbatim; no preprocessing is performed on it, since
// execution dispatches through Registry rather than evaluating this
// text (see package doc).
type Loader struct {
	http    *httpclient.Client
	baseURL string

	mu      sync.Mutex
	cache   map[string][]byte
	loaded  map[string]bool
	modules *ModuleRegistry
}

// NewLoader builds a Loader fetching from baseURL via client, and
// consulting modules for RemoteRequire.
func NewLoader(client *httpclient.Client, baseURL string, modules *ModuleRegistry) *Loader {
	return &Loader{
		http:    client,
		baseURL: baseURL,
		cache:   map[string][]byte{},
		loaded:  map[string]bool{},
		modules: modules,
	}
}

// Source returns the cached source for filename, fetching
// "steps/<filename>" on a cache miss.
func (l *Loader) Source(ctx context.Context, filename string) ([]byte, error) {
	l.mu.Lock()
	if src, ok := l.cache[filename]; ok {
		l.mu.Unlock()
		return src, nil
	}
	l.mu.Unlock()

	url := fmt.Sprintf("%s/steps/%s", l.baseURL, filename)
	src, err := l.http.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	l.cache[filename] = src
	l.mu.Unlock()
	return src, nil
}

// RemoteRequire is the analog for shared runtime modules: it marks
// module as loaded (once) and reports whether it is available. A
// mandatory (non-optional) module that is not registered is a fatal
// *errs.ConfigError; an optional one simply returns false.
func (l *Loader) RemoteRequire(module string, optional bool) (bool, error) {
	l.mu.Lock()
	already := l.loaded[module]
	l.mu.Unlock()
	if already {
		return true, nil
	}

	if !l.modules.has(module) {
		if optional {
			return false, nil
		}
		return false, &errs.ConfigError{Msg: fmt.Sprintf("required module %q is not available", module)}
	}

	l.mu.Lock()
	l.loaded[module] = true
	l.mu.Unlock()
	return true, nil
}

// Loaded reports whether module has already been required.
func (l *Loader) Loaded(module string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loaded[module]
}
