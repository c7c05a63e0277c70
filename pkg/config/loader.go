package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rolloutd/agent/pkg/errs"
	"github.com/rolloutd/agent/pkg/types"
	"gopkg.in/yaml.v3"
)

// LoadDir reads every *.yaml/*.yml file under dir and defines the
// class/device documents it contains. Each YAML document is a flat
// mapping with two structural fields, "kind" ("class" or "device")
// and "name", an optional "isa" sequence of parent names, and any
// number of attribute fields that become the entity's Attrs.
func (m *Model) LoadDir(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return &errs.LocalFileError{Path: path, Op: "walk", Err: err}
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}
		return m.loadFile(path)
	})
}

func (m *Model) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return &errs.LocalFileError{Path: path, Op: "read", Err: err}
	}

	dec := yaml.NewDecoder(strings.NewReader(string(data)))
	for {
		var doc map[string]any
		if err := dec.Decode(&doc); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return &errs.ConfigError{Msg: fmt.Sprintf("parsing %s", path), Err: err}
		}
		if doc == nil {
			continue
		}
		if err := m.defineFromDoc(doc); err != nil {
			return err
		}
	}
	return nil
}

func (m *Model) defineFromDoc(doc map[string]any) error {
	kindRaw, _ := doc["kind"].(string)
	name, _ := doc["name"].(string)
	if name == "" {
		return &errs.ConfigError{Msg: "entity document missing name"}
	}

	var kind types.EntityKind
	switch kindRaw {
	case "class":
		kind = types.EntityClass
	case "device":
		kind = types.EntityDevice
	default:
		return &errs.ConfigError{Msg: fmt.Sprintf("entity %q has unknown kind %q", name, kindRaw)}
	}

	var isa []string
	if raw, ok := doc["isa"]; ok {
		list, ok := raw.([]any)
		if !ok {
			return &errs.ConfigError{Msg: fmt.Sprintf("entity %q: isa must be a sequence", name)}
		}
		for _, v := range list {
			if s, ok := v.(string); ok {
				isa = append(isa, s)
			}
		}
	}

	attrs := make(map[string]any, len(doc))
	for k, v := range doc {
		if k == "kind" || k == "name" || k == "isa" {
			continue
		}
		attrs[k] = normalizeYAML(v)
	}

	switch kind {
	case types.EntityClass:
		return m.Class(name, isa, attrs)
	default:
		return m.Device(name, isa, attrs)
	}
}

// normalizeYAML recursively converts yaml.v3's decoded value shapes
// (map[string]any is already native for v3, but []any elements may
// still be map[string]any too) into the plain map[string]any /
// []any / scalar shapes the lookup and flatten functions expect.
func normalizeYAML(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, vv := range t {
			out[k] = normalizeYAML(vv)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, vv := range t {
			out[i] = normalizeYAML(vv)
		}
		return out
	default:
		return v
	}
}
