package stepimpl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rolloutd/agent/pkg/config"
	"github.com/rolloutd/agent/pkg/httpclient"
	"github.com/rolloutd/agent/pkg/log"
	"github.com/rolloutd/agent/pkg/queue"
	"github.com/rolloutd/agent/pkg/runtime"
	"github.com/rolloutd/agent/pkg/types"
	"github.com/rolloutd/agent/pkg/validator"
)

func newTestEngine(t *testing.T, attrs map[string]any) *runtime.Engine {
	t.Helper()
	model := config.New()
	if attrs == nil {
		attrs = map[string]any{}
	}
	require.NoError(t, model.Device("host1", nil, attrs))

	e := runtime.New(model, queue.New(), validator.New(), httpclient.NewPlain(), &types.AgentOptions{
		Hostname: "host1",
		SafeMode: true,
	}, log.NewRunLog(1000))
	e.BeginStep("001-setup")
	return e
}

func TestSetupDefinesHostWhenMissing(t *testing.T) {
	model := config.New()
	e := runtime.New(model, queue.New(), validator.New(), httpclient.NewPlain(), &types.AgentOptions{
		Hostname: "host1",
		SafeMode: true,
	}, log.NewRunLog(1000))
	e.BeginStep("001-setup")

	require.NoError(t, Setup(e))
	assert.NotNil(t, e.Config.Entity("host1"))
}

func TestSetupLeavesExistingHostAlone(t *testing.T) {
	e := newTestEngine(t, map[string]any{"marker": "keep"})
	require.NoError(t, Setup(e))
	assert.Equal(t, "keep", e.Config.Entity("host1").Attrs["marker"])
}

func TestModifiersRunsListedCommandsInSafeMode(t *testing.T) {
	e := newTestEngine(t, map[string]any{
		"modifiers": []any{
			[]any{"touch", "/tmp/does-not-run"},
		},
	})
	require.NoError(t, Modifiers(e))
	assert.True(t, e.SafeMode)
}

func TestUsersValidatesShapeBeforeActing(t *testing.T) {
	e := newTestEngine(t, map[string]any{
		"users": "not-a-list",
	})
	err := Users(e)
	assert.Error(t, err)
}

func TestUsersAcceptsWellFormedList(t *testing.T) {
	e := newTestEngine(t, map[string]any{
		"users": []any{
			map[string]any{"name": "alice", "shell": "/bin/zsh"},
		},
	})
	assert.NoError(t, Users(e))
}

func TestCompleteLogsAndSucceeds(t *testing.T) {
	e := newTestEngine(t, nil)
	assert.NoError(t, Complete(e))
}
