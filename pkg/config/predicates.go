package config

import "strings"

// IIterate walks entity and its ancestors, invoking visit(name, value)
// for every entity where key is defined. visit returns false to stop
// the walk early (used by IHas for "most specific wins") or true to
// keep visiting ancestors (used by predicates that need to inspect
// every matching ancestor, like IShould).
func (m *Model) IIterate(key, entity string, visit func(name string, value any) bool) {
	visited := make(map[string]bool)
	m.iterate(key, entity, visited, visit)
}

func (m *Model) iterate(key, entityName string, visited map[string]bool, visit func(string, any) bool) bool {
	if visited[entityName] {
		return true
	}
	visited[entityName] = true

	entity := m.Entity(entityName)
	if entity == nil {
		return true
	}

	if v, ok := entity.Attrs[key]; ok {
		if !visit(entityName, v) {
			return false
		}
	}

	for _, parent := range entity.ISA {
		if !m.iterate(key, parent, visited, visit) {
			return false
		}
	}
	return true
}

// IHas returns the most specific (first-visited) defined value of key
// starting from entity, walking ancestors on a miss.
func (m *Model) IHas(key, entity string) (any, bool) {
	type result struct {
		val any
		ok  bool
	}
	v, ok := m.memoize("ihas:"+key+"/"+entity, func() (any, bool) {
		var r result
		m.IIterate(key, entity, func(_ string, val any) bool {
			r = result{val: val, ok: true}
			return false
		})
		return r, r.ok
	})
	if !ok {
		return nil, false
	}
	r := v.(result)
	return r.val, r.ok
}

// IIsa reports whether class is entity itself or transitively
// reachable through entity's ISA graph.
func (m *Model) IIsa(class, entity string) bool {
	if class == entity {
		return true
	}
	v, _ := m.memoize("iisa:"+class+"/"+entity, func() (any, bool) {
		visited := make(map[string]bool)
		return m.isaWalk(class, entity, visited), true
	})
	return v.(bool)
}

func (m *Model) isaWalk(class, entityName string, visited map[string]bool) bool {
	if visited[entityName] {
		return false
	}
	visited[entityName] = true
	entity := m.Entity(entityName)
	if entity == nil {
		return false
	}
	for _, parent := range entity.ISA {
		if parent == class {
			return true
		}
		if m.isaWalk(class, parent, visited) {
			return true
		}
	}
	return false
}

// ShortStepName strips a step filename's numeric prefix, e.g.
// "100-users" -> "users".
func ShortStepName(filename string) string {
	if i := strings.IndexByte(filename, '-'); i >= 0 {
		allDigits := true
		for _, r := range filename[:i] {
			if r < '0' || r > '9' {
				allDigits = false
				break
			}
		}
		if allDigits {
			return filename[i+1:]
		}
	}
	return filename
}

// IShould reports whether item should run for the given step on
// entity: false if any visited ancestor lists "<step>:<item>" or
// "<shortstep>:<item>" in its skip_steps sequence.
func (m *Model) IShould(item, entity, stepFilename string) bool {
	short := ShortStepName(stepFilename)
	fullTag := stepFilename + ":" + item
	shortTag := short + ":" + item

	should := true
	m.IIterate("skip_steps", entity, func(_ string, v any) bool {
		list, ok := v.([]any)
		if !ok {
			return true
		}
		for _, raw := range list {
			s, ok := raw.(string)
			if !ok {
				continue
			}
			if s == fullTag || s == shortTag {
				should = false
				return false
			}
		}
		return true
	})
	return should
}

// IImmutableFile, IUnsafeFile, IUnsafeDir check membership of path in
// the correspondingly named sequence, collected across entity and all
// its ancestors.
func (m *Model) IImmutableFile(entity, path string) bool { return m.listMembership("immutable_files", entity, path) }
func (m *Model) IUnsafeFile(entity, path string) bool    { return m.listMembership("unsafe_files", entity, path) }
func (m *Model) IUnsafeDir(entity, path string) bool     { return m.listMembership("unsafe_dirs", entity, path) }

func (m *Model) listMembership(key, entity, target string) bool {
	found := false
	m.IIterate(key, entity, func(_ string, v any) bool {
		list, ok := v.([]any)
		if !ok {
			return true
		}
		for _, raw := range list {
			if s, ok := raw.(string); ok && s == target {
				found = true
				return false
			}
		}
		return true
	})
	return found
}

// IIP returns the primary interface's IP address from entity's
// "interfaces" configuration, falling back to the first interface
// listed if none is marked primary.
func (m *Model) IIP(entity string) (string, bool) {
	val, ok := m.IHas("interfaces", entity)
	if !ok {
		return "", false
	}
	list, ok := val.([]any)
	if !ok || len(list) == 0 {
		return "", false
	}

	var fallback string
	for _, raw := range list {
		iface, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		ip, _ := iface["ip"].(string)
		if ip == "" {
			continue
		}
		if fallback == "" {
			fallback = ip
		}
		if primary, _ := iface["primary"].(bool); primary {
			return ip, true
		}
	}
	if fallback != "" {
		return fallback, true
	}
	return "", false
}
