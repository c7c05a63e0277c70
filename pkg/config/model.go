package config

import (
	"net"
	"regexp"
	"sync"

	"github.com/rolloutd/agent/pkg/errs"
	"github.com/rolloutd/agent/pkg/types"
)

var (
	deviceNameRe = regexp.MustCompile(`^[a-z][\w-]+$`)
	classNameRe  = regexp.MustCompile(`^[A-Z][\w-]+$`)
)

// Model is the in-memory forest of classes and devices. It is built
// once at configuration-evaluation time and treated as read-only for
// the rest of the process (spec §3 "Lifecycle"), so its exported
// lookups need no external locking from callers; the internal mutex
// only guards the lazily populated memoization cache.
type Model struct {
	mu       sync.RWMutex
	entities map[string]*types.Entity
	networks map[string][]string
	cache    map[string]cacheEntry
}

type cacheEntry struct {
	value any
	ok    bool
}

// New returns an empty model.
func New() *Model {
	return &Model{
		entities: make(map[string]*types.Entity),
		networks: make(map[string][]string),
		cache:    make(map[string]cacheEntry),
	}
}

// Device defines a device entity. name must match ^[a-z][\w-]+$.
func (m *Model) Device(name string, isa []string, attrs map[string]any) error {
	return m.define(types.EntityDevice, name, isa, attrs)
}

// Class defines a class entity. name must match ^[A-Z][\w-]+$.
func (m *Model) Class(name string, isa []string, attrs map[string]any) error {
	return m.define(types.EntityClass, name, isa, attrs)
}

func (m *Model) define(kind types.EntityKind, name string, isa []string, attrs map[string]any) error {
	re := deviceNameRe
	if kind == types.EntityClass {
		re = classNameRe
	}
	if !re.MatchString(name) {
		return &errs.ConfigError{Msg: "invalid " + string(kind) + " name: " + name}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.entities[name]; exists {
		return &errs.ConfigError{Msg: "duplicate definition of entity: " + name}
	}
	if attrs == nil {
		attrs = make(map[string]any)
	}
	m.entities[name] = &types.Entity{
		Kind:  kind,
		Name:  name,
		ISA:   append([]string(nil), isa...),
		Attrs: attrs,
	}
	m.invalidateCacheLocked()
	return nil
}

// Entity returns the named entity, or nil if undefined.
func (m *Model) Entity(name string) *types.Entity {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.entities[name]
}

// Inherits is sugar that produces an ISA attribute for use when
// building a block programmatically (the Go equivalent of the source
// language's inherits(parents...) call inside a class/device block).
func Inherits(parents ...string) []string {
	return append([]string(nil), parents...)
}

// Network accumulates members into a named IP-range set.
func (m *Model) Network(name string, members ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.networks[name] = append(m.networks[name], members...)
	m.invalidateCacheLocked()
}

// ExpandNetwork returns the named network's members, recursively
// expanding any member that is itself a named network and leaving
// IPv4 literals as-is.
func (m *Model) ExpandNetwork(name string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	visited := make(map[string]bool)
	var out []string
	var expand func(n string)
	expand = func(n string) {
		if visited[n] {
			return
		}
		visited[n] = true
		members, ok := m.networks[n]
		if !ok {
			out = append(out, n)
			return
		}
		for _, mem := range members {
			if isIPv4Literal(mem) {
				out = append(out, mem)
			} else {
				expand(mem)
			}
		}
	}
	expand(name)
	return out
}

func isIPv4Literal(s string) bool {
	ip := net.ParseIP(s)
	return ip != nil && ip.To4() != nil
}

func (m *Model) invalidateCacheLocked() {
	m.cache = make(map[string]cacheEntry)
}

// ClearCache drops all memoized lookup results. Callers that mutate
// the model after initial load (tests, mostly — production loads
// happen once before any step runs) should call this afterward.
func (m *Model) ClearCache() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.invalidateCacheLocked()
}

func (m *Model) memoize(key string, compute func() (any, bool)) (any, bool) {
	m.mu.RLock()
	if e, ok := m.cache[key]; ok {
		m.mu.RUnlock()
		return e.value, e.ok
	}
	m.mu.RUnlock()

	value, ok := compute()

	m.mu.Lock()
	m.cache[key] = cacheEntry{value: value, ok: ok}
	m.mu.Unlock()
	return value, ok
}
