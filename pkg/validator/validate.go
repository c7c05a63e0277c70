package validator

import (
	"fmt"

	"github.com/rolloutd/agent/pkg/errs"
	"github.com/rolloutd/agent/pkg/types"
)

// Validator accumulates violations found while checking a host's
// resolved configuration against step schemas.
type Validator struct {
	// Disabled downgrades every Validate call to a no-op. The driver
	// always builds an enabled Validator and never sets this field.
	Disabled bool
}

// New returns an enabled Validator.
func New() *Validator { return &Validator{} }

// Validate checks value against schema at path within step, returning
// one ConfigValidationError per violation found. present distinguishes
// "key absent from the configuration" from "key present with a nil
// value", which Required depends on.
func (v *Validator) Validate(step, path string, schema *Schema, value any, present bool) []*errs.ConfigValidationError {
	if v.Disabled || schema == nil {
		return nil
	}
	return v.validate(step, path, schema, value, present)
}

func (v *Validator) validate(step, path string, schema *Schema, value any, present bool) []*errs.ConfigValidationError {
	if !present {
		if schema.Required {
			return []*errs.ConfigValidationError{{
				Step: step, Path: path, Msg: "required key is missing",
			}}
		}
		return nil
	}

	matched := ""
	for _, t := range schema.Type {
		if matchesType(t, value) {
			matched = t
			break
		}
	}
	if matched == "" {
		return []*errs.ConfigValidationError{{
			Step: step, Path: path,
			Msg: fmt.Sprintf("expected type %v, got %T", []string(schema.Type), value),
		}}
	}

	var out []*errs.ConfigValidationError
	switch matched {
	case "list":
		list, _ := value.([]any)
		if schema.Items != nil {
			for i, el := range list {
				out = append(out, v.validate(step, fmt.Sprintf("%s[%d]", path, i), schema.Items, el, true)...)
			}
		}
	case "hash":
		hash, _ := value.(map[string]any)
		for k, val := range hash {
			if schema.Key != nil {
				out = append(out, v.validate(step, path+"."+k+"#key", schema.Key, k, true)...)
			}
			if schema.Value != nil {
				out = append(out, v.validate(step, path+"."+k, schema.Value, val, true)...)
			}
		}
	case "options":
		hash, _ := value.(map[string]any)
		for name, sub := range schema.Options {
			val, ok := hash[name]
			out = append(out, v.validate(step, path+"."+name, sub, val, ok)...)
		}
		for name := range hash {
			if _, known := schema.Options[name]; !known {
				out = append(out, &errs.ConfigValidationError{
					Step: step, Path: path + "." + name, Msg: "unrecognized option",
				})
			}
		}
	}
	return out
}

func matchesType(name string, value any) bool {
	switch name {
	case "string", "path":
		_, ok := value.(string)
		return ok
	case "boolean":
		_, ok := value.(bool)
		return ok
	case "code":
		_, ok := value.(types.CodeValue)
		return ok
	case "list":
		_, ok := value.([]any)
		return ok
	case "hash", "options":
		_, ok := value.(map[string]any)
		return ok
	default:
		return false
	}
}
