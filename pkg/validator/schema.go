package validator

// TypeSpec names one or more acceptable types for a schema node, e.g.
// T("string") or T("code", "string") for an either/or field.
type TypeSpec []string

// T is a convenience constructor for TypeSpec.
func T(names ...string) TypeSpec { return TypeSpec(names) }

// Has reports whether name is one of the spec's acceptable types.
func (t TypeSpec) Has(name string) bool {
	for _, n := range t {
		if n == name {
			return true
		}
	}
	return false
}

// Schema describes the expected shape of one configuration value, per
// spec §4.4. Type is one of "string", "path", "boolean", "code",
// "list", "hash", "options", or a TypeSpec naming several
// alternatives.
type Schema struct {
	Type     TypeSpec
	Required bool
	Help     string

	Items   *Schema            // for type "list"
	Key     *Schema            // for type "hash"
	Value   *Schema            // for type "hash"
	Options map[string]*Schema // for type "options"
}
