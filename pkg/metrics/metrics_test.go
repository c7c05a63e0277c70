package metrics

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteTextfileContainsDeclaredMetrics(t *testing.T) {
	StepsTotal.WithLabelValues("ok").Inc()
	ErrorsTotal.WithLabelValues("http").Inc()

	path := filepath.Join(t.TempDir(), "rollout-agent.prom")
	require.NoError(t, WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "rollout_agent_steps_total")
	assert.Contains(t, string(data), "rollout_agent_errors_total")
}

func TestWriteTextfileLeavesNoTempFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rollout-agent.prom")
	require.NoError(t, WriteTextfile(path))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
