package config

import "strings"

// C resolves path in scalar context: the first hit found by a
// depth-first walk of path's entity and its ancestors, or def if
// nothing matched.
func (m *Model) C(path string, def any) any {
	hits := m.CAll(path)
	if len(hits) == 0 {
		return def
	}
	return hits[0]
}

// CAll resolves path in sequence context, returning every hit found
// during the walk in visitation order (spec §4.3 step 5).
func (m *Model) CAll(path string) []any {
	key := "c:" + path
	v, _ := m.memoize(key, func() (any, bool) {
		entity, chain := splitPath(path)
		visited := make(map[string]bool)
		var hits []any
		m.walkChain(entity, chain, visited, &hits)
		return hits, len(hits) > 0
	})
	if v == nil {
		return nil
	}
	return v.([]any)
}

func splitPath(path string) (entity string, chain []string) {
	parts := strings.Split(path, "/")
	if len(parts) == 0 {
		return "", nil
	}
	return parts[0], parts[1:]
}

// walkChain implements spec §4.3's five-step lookup algorithm: resolve
// the key chain within entity, record a hit if every segment resolved,
// then recurse into each ISA parent, de-duplicating by entity base so
// any graph shape — including cycles — terminates and each base is
// entered at most once per call.
func (m *Model) walkChain(entityName string, chain []string, visited map[string]bool, hits *[]any) {
	if visited[entityName] {
		return
	}
	visited[entityName] = true

	entity := m.Entity(entityName)
	if entity == nil {
		return
	}

	if v, ok := resolveChain(entity.Attrs, chain); ok {
		*hits = append(*hits, v)
	}

	for _, parent := range entity.ISA {
		m.walkChain(parent, chain, visited, hits)
	}
}

func resolveChain(attrs map[string]any, chain []string) (any, bool) {
	var cur any = attrs
	for _, segment := range chain {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		v, ok := m[segment]
		if !ok {
			return nil, false
		}
		cur = v
	}
	return cur, true
}

// FlattenList concatenates sequences and scalars into a single
// sequence, one level deep: each value that is a []any is spliced in;
// anything else is appended as-is.
func FlattenList(values ...any) []any {
	var out []any
	for _, v := range values {
		if seq, ok := v.([]any); ok {
			out = append(out, seq...)
		} else if v != nil {
			out = append(out, v)
		}
	}
	return out
}

// FlattenHash left-to-right deep-merges mappings: sequences at the
// same key concatenate and deduplicate, mappings at the same key
// recurse, and scalars are overwritten by the later mapping.
func FlattenHash(mappings ...map[string]any) map[string]any {
	out := make(map[string]any)
	for _, mp := range mappings {
		mergeHashInto(out, mp)
	}
	return out
}

func mergeHashInto(dst, src map[string]any) {
	for k, v := range src {
		existing, present := dst[k]
		if !present {
			dst[k] = v
			continue
		}
		switch ev := existing.(type) {
		case []any:
			if sv, ok := v.([]any); ok {
				dst[k] = dedupeAppend(ev, sv)
				continue
			}
		case map[string]any:
			if sv, ok := v.(map[string]any); ok {
				merged := make(map[string]any)
				mergeHashInto(merged, ev)
				mergeHashInto(merged, sv)
				dst[k] = merged
				continue
			}
		}
		dst[k] = v
	}
}

func dedupeAppend(a, b []any) []any {
	seen := make(map[any]bool, len(a)+len(b))
	out := make([]any, 0, len(a)+len(b))
	for _, v := range append(append([]any{}, a...), b...) {
		if seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
