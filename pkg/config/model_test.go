package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeviceAndClassLookup(t *testing.T) {
	// spec §8 invariant 1
	m := New()
	require.NoError(t, m.Class("Base", nil, map[string]any{"gems": []any{"a", "b"}}))
	assert.Equal(t, []any{"a", "b"}, m.C("Base/gems", nil))
}

func TestDuplicateDefinitionIsError(t *testing.T) {
	m := New()
	require.NoError(t, m.Device("host1", nil, map[string]any{}))
	err := m.Device("host1", nil, map[string]any{})
	require.Error(t, err)
}

func TestNameRegexEnforced(t *testing.T) {
	m := New()
	assert.Error(t, m.Device("NotLowercase", nil, nil))
	assert.Error(t, m.Class("not-uppercase", nil, nil))
	assert.NoError(t, m.Device("host-1", nil, nil))
	assert.NoError(t, m.Class("Web-Server", nil, nil))
}

func TestInheritanceLookupScenario(t *testing.T) {
	// spec §8 scenario 2
	m := New()
	require.NoError(t, m.Class("Base", nil, map[string]any{"gems": []any{"a", "b"}}))
	require.NoError(t, m.Class("Mid", Inherits("Base"), map[string]any{"gems": []any{"c"}}))
	require.NoError(t, m.Device("host1", Inherits("Mid"), map[string]any{}))

	hits := m.CAll("host1/gems")
	flat := FlattenList(hits...)
	assert.ElementsMatch(t, []any{"c", "a", "b"}, flat)
	assert.Equal(t, "c", flat[0], "child-before-parent for the first scalar match")
}

func TestLookupTerminatesOnCycle(t *testing.T) {
	// spec §8 invariant 2
	m := New()
	require.NoError(t, m.Class("A1", Inherits("B1"), map[string]any{"k": "a-val"}))
	require.NoError(t, m.Class("B1", Inherits("A1"), map[string]any{"k": "b-val"}))

	done := make(chan []any, 1)
	go func() { done <- m.CAll("A1/k") }()
	select {
	case hits := <-done:
		assert.Len(t, hits, 2, "A1 and B1 each visited exactly once")
	case <-time.After(2 * time.Second):
		t.Fatal("CAll did not terminate on a cyclic ISA graph")
	}
}

func TestLookupDefaultWhenUndefined(t *testing.T) {
	m := New()
	require.NoError(t, m.Device("host1", nil, map[string]any{}))
	assert.Equal(t, "fallback", m.C("host1/missing", "fallback"))
}

func TestFlattenHashDeepMerge(t *testing.T) {
	left := map[string]any{
		"a": []any{"x"},
		"b": map[string]any{"nested": "left"},
		"c": "scalar-left",
	}
	right := map[string]any{
		"a": []any{"y"},
		"b": map[string]any{"other": "right"},
		"c": "scalar-right",
	}
	merged := FlattenHash(left, right)
	assert.ElementsMatch(t, []any{"x", "y"}, merged["a"])
	assert.Equal(t, map[string]any{"nested": "left", "other": "right"}, merged["b"])
	assert.Equal(t, "scalar-right", merged["c"])
}

func TestExpandNetwork(t *testing.T) {
	m := New()
	m.Network("dmz", "10.0.0.1", "10.0.0.2")
	m.Network("all", "dmz", "192.168.1.1")

	assert.ElementsMatch(t, []string{"10.0.0.1", "10.0.0.2"}, m.ExpandNetwork("dmz"))
	assert.ElementsMatch(t, []string{"10.0.0.1", "10.0.0.2", "192.168.1.1"}, m.ExpandNetwork("all"))
}
