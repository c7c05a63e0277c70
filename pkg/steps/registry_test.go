package steps

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rolloutd/agent/pkg/runtime"
)

func TestRegistryResolveByShortName(t *testing.T) {
	r := NewRegistry()
	r.Register("100-users", func(e *runtime.Engine) error { return nil })

	name, fn, err := r.Resolve("users")
	require.NoError(t, err)
	assert.Equal(t, "100-users", name)
	assert.NotNil(t, fn)
}

func TestRegistryResolveExactFilename(t *testing.T) {
	r := NewRegistry()
	r.Register("001-setup", func(e *runtime.Engine) error { return nil })

	name, _, err := r.Resolve("001-setup")
	require.NoError(t, err)
	assert.Equal(t, "001-setup", name)
}

func TestRegistryResolveUnknownIsError(t *testing.T) {
	r := NewRegistry()
	_, _, err := r.Resolve("nonexistent")
	assert.Error(t, err)
}

func TestRegistryResolveAmbiguousIsError(t *testing.T) {
	r := NewRegistry()
	r.Register("100-git", func(e *runtime.Engine) error { return nil })
	r.Register("200-git", func(e *runtime.Engine) error { return nil })

	_, _, err := r.Resolve("git")
	assert.Error(t, err)
}

func TestRegistryRunMissingImplementation(t *testing.T) {
	r := NewRegistry()
	err := r.Run(nil, "999-missing")
	assert.Error(t, err)
}
