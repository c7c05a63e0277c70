package runtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rolloutd/agent/pkg/errs"
	"github.com/rolloutd/agent/pkg/queue"
	"github.com/rolloutd/agent/pkg/validator"
)

func TestCLookup(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.Config.Class("Base", nil, map[string]any{"gems": []any{"a", "b"}}))
	require.NoError(t, e.Config.Device("host1", []string{"Base"}, nil))

	assert.Equal(t, []any{"a", "b"}, e.C("host1/gems", nil))
}

func TestQueueStepInsertsAtPriorityZero(t *testing.T) {
	e := newTestEngine(t)
	e.Index = []string{"001-setup", "100-users", "999-complete"}
	e.Queue.Insert(queue.StringPayload("999-complete"), 999)

	require.NoError(t, e.QueueStep("users"))
	top, ok := e.Queue.Peek()
	require.True(t, ok)
	assert.Equal(t, "100-users", top.Key())
}

func TestQueueStepNotInIndexIsError(t *testing.T) {
	e := newTestEngine(t)
	e.Index = []string{"001-setup"}
	assert.Error(t, e.QueueStep("nonexistent"))
}

func TestDangerousStepSetsSafeModeUnlessForced(t *testing.T) {
	e := newTestEngine(t)
	e.DangerousStep()
	assert.True(t, e.SafeMode)
}

func TestDangerousStepNoOpWhenForced(t *testing.T) {
	e := newTestEngine(t)
	e.ForceSet["setup"] = true
	e.DangerousStep()
	assert.False(t, e.SafeMode)
}

func TestValidateConfigUnderValidateModeSignalsComplete(t *testing.T) {
	e := newTestEngine(t)
	e.Validating = true
	require.NoError(t, e.Config.Device("host1", nil, map[string]any{"gems": []any{"a"}}))

	err := e.ValidateConfig("host1/gems", &validator.Schema{Type: validator.T("list")})
	var sig *errs.ValidationComplete
	assert.ErrorAs(t, err, &sig)
}

func TestValidateConfigOutsideValidateModeReturnsViolation(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.Config.Device("host1", nil, map[string]any{"gems": "not-a-list"}))

	err := e.ValidateConfig("host1/gems", &validator.Schema{Type: validator.T("list")})
	assert.Error(t, err)
}

func TestQueueCodeDefers(t *testing.T) {
	e := newTestEngine(t)
	ran := false
	e.QueueCode("mark-ran", func() error { ran = true; return nil }, 0)

	payload, ok := e.Queue.Pop()
	require.True(t, ok)
	deferred := payload.(queue.DeferredFunc)
	require.NoError(t, deferred.Fn())
	assert.True(t, ran)
}
