package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIHasMostSpecificWins(t *testing.T) {
	m := New()
	require.NoError(t, m.Class("Base", nil, map[string]any{"role": "base-role"}))
	require.NoError(t, m.Device("host1", Inherits("Base"), map[string]any{"role": "host-role"}))

	v, ok := m.IHas("role", "host1")
	require.True(t, ok)
	assert.Equal(t, "host-role", v)
}

func TestIIsaTransitive(t *testing.T) {
	m := New()
	require.NoError(t, m.Class("Base", nil, nil))
	require.NoError(t, m.Class("Mid", Inherits("Base"), nil))
	require.NoError(t, m.Device("host1", Inherits("Mid"), nil))

	assert.True(t, m.IIsa("Base", "host1"))
	assert.True(t, m.IIsa("Mid", "host1"))
	assert.False(t, m.IIsa("Other", "host1"))
	assert.True(t, m.IIsa("host1", "host1"))
}

func TestIShouldRespectsSkipSteps(t *testing.T) {
	m := New()
	require.NoError(t, m.Device("host1", nil, map[string]any{
		"skip_steps": []any{"100-users:groups", "git:clone"},
	}))

	assert.False(t, m.IShould("groups", "host1", "100-users"))
	assert.False(t, m.IShould("clone", "host1", "212-git"))
	assert.True(t, m.IShould("other", "host1", "100-users"))
}

func TestShortStepName(t *testing.T) {
	assert.Equal(t, "users", ShortStepName("100-users"))
	assert.Equal(t, "setup", ShortStepName("001-setup"))
	assert.Equal(t, "complete", ShortStepName("complete"))
}

func TestIImmutableUnsafeMembership(t *testing.T) {
	m := New()
	require.NoError(t, m.Class("Base", nil, map[string]any{
		"immutable_files": []any{"/etc/passwd"},
		"unsafe_dirs":     []any{"/tmp/scratch"},
	}))
	require.NoError(t, m.Device("host1", Inherits("Base"), map[string]any{
		"unsafe_files": []any{"/etc/shadow"},
	}))

	assert.True(t, m.IImmutableFile("host1", "/etc/passwd"))
	assert.False(t, m.IImmutableFile("host1", "/etc/shadow"))
	assert.True(t, m.IUnsafeFile("host1", "/etc/shadow"))
	assert.True(t, m.IUnsafeDir("host1", "/tmp/scratch"))
}

func TestIIPPrimaryInterface(t *testing.T) {
	m := New()
	require.NoError(t, m.Device("host1", nil, map[string]any{
		"interfaces": []any{
			map[string]any{"name": "eth1", "ip": "10.0.0.5", "primary": false},
			map[string]any{"name": "eth0", "ip": "10.0.0.1", "primary": true},
		},
	}))

	ip, ok := m.IIP("host1")
	require.True(t, ok)
	assert.Equal(t, "10.0.0.1", ip)
}

func TestIIPFallbackToFirst(t *testing.T) {
	m := New()
	require.NoError(t, m.Device("host1", nil, map[string]any{
		"interfaces": []any{
			map[string]any{"name": "eth0", "ip": "10.0.0.1"},
		},
	}))

	ip, ok := m.IIP("host1")
	require.True(t, ok)
	assert.Equal(t, "10.0.0.1", ip)
}
