package driver

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rolloutd/agent/pkg/errs"
	"github.com/rolloutd/agent/pkg/runtime"
	"github.com/rolloutd/agent/pkg/steps"
	"github.com/rolloutd/agent/pkg/types"
)

func newTestServer(t *testing.T, listing string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/steps/" {
			w.Write([]byte(listing))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)
	return srv
}

const basicListing = `Rolloutd File Listing
filename type size mtime checksum
001-setup file 10 2024-01-01T00:00:00Z a
100-users file 10 2024-01-01T00:00:00Z a
999-complete file 10 2024-01-01T00:00:00Z a
`

func newTestDriver(t *testing.T, srv *httptest.Server, registry *steps.Registry) *Driver {
	t.Helper()
	dir := t.TempDir()
	opts := &types.AgentOptions{
		BaseURL:  srv.URL,
		Hostname: "host1",
		ConfigDir: dir,
	}
	d := New(opts, registry)
	d.LockPath = filepath.Join(dir, "agent.lock")
	d.MetricsPath = filepath.Join(dir, "metrics.prom")
	return d
}

func TestRunExecutesStepsInPriorityOrder(t *testing.T) {
	srv := newTestServer(t, basicListing)

	var order []string
	reg := steps.NewRegistry()
	reg.Register("001-setup", func(e *runtime.Engine) error { order = append(order, "setup"); return nil })
	reg.Register("100-users", func(e *runtime.Engine) error { order = append(order, "users"); return nil })
	reg.Register("999-complete", func(e *runtime.Engine) error { order = append(order, "complete"); return nil })

	d := newTestDriver(t, srv, reg)
	result, err := d.Run(t.Context())
	require.NoError(t, err)

	assert.Equal(t, []string{"setup", "users", "complete"}, order)
	assert.Equal(t, 3, result.StepsRun)
	assert.Equal(t, 0, result.ErrorCount)
}

func TestRunSkipStepSkipsMatchingStep(t *testing.T) {
	srv := newTestServer(t, basicListing)

	var order []string
	reg := steps.NewRegistry()
	reg.Register("001-setup", func(e *runtime.Engine) error { order = append(order, "setup"); return nil })
	reg.Register("100-users", func(e *runtime.Engine) error { order = append(order, "users"); return nil })
	reg.Register("999-complete", func(e *runtime.Engine) error { order = append(order, "complete"); return nil })

	d := newTestDriver(t, srv, reg)
	d.Options.SkipSteps = []string{"users"}

	_, err := d.Run(t.Context())
	require.NoError(t, err)
	assert.Equal(t, []string{"setup", "complete"}, order)
}

func TestRunOnlyFiltersSteps(t *testing.T) {
	srv := newTestServer(t, basicListing)

	var order []string
	reg := steps.NewRegistry()
	reg.Register("001-setup", func(e *runtime.Engine) error { order = append(order, "setup"); return nil })
	reg.Register("100-users", func(e *runtime.Engine) error { order = append(order, "users"); return nil })
	reg.Register("999-complete", func(e *runtime.Engine) error { order = append(order, "complete"); return nil })

	d := newTestDriver(t, srv, reg)
	d.Options.Only = []string{"nothing-matches-this"}

	_, err := d.Run(t.Context())
	require.NoError(t, err)
	// setup/os-detection/modifiers/complete are auto-included even though
	// --only names something else entirely.
	assert.Equal(t, []string{"setup", "complete"}, order)
}

func TestRunFatalErrorPreservesCompleteStep(t *testing.T) {
	srv := newTestServer(t, basicListing)

	var order []string
	reg := steps.NewRegistry()
	reg.Register("001-setup", func(e *runtime.Engine) error { order = append(order, "setup"); return nil })
	reg.Register("100-users", func(e *runtime.Engine) error {
		order = append(order, "users")
		return &errs.LocalFileError{Path: "/etc/passwd", Op: "write", Err: assert.AnError}
	})
	reg.Register("999-complete", func(e *runtime.Engine) error { order = append(order, "complete"); return nil })

	d := newTestDriver(t, srv, reg)
	result, err := d.Run(t.Context())
	require.NoError(t, err)

	assert.Equal(t, []string{"setup", "users", "complete"}, order)
	assert.Equal(t, 1, result.ErrorCount)
}

func TestRunWritesAgentConfigAndMetricsTextfile(t *testing.T) {
	srv := newTestServer(t, basicListing)

	reg := steps.NewRegistry()
	reg.Register("001-setup", func(e *runtime.Engine) error { return nil })
	reg.Register("100-users", func(e *runtime.Engine) error { return nil })
	reg.Register("999-complete", func(e *runtime.Engine) error { return nil })

	d := newTestDriver(t, srv, reg)
	_, err := d.Run(t.Context())
	require.NoError(t, err)

	configPath := d.resolveConfigFilePath()
	data, err := os.ReadFile(configPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "base_url = "+srv.URL)
	assert.Contains(t, string(data), "hostname = host1")

	_, err = os.Stat(d.MetricsPath)
	require.NoError(t, err)
}

func TestRunReorderStepsChangesExecutionOrder(t *testing.T) {
	srv := newTestServer(t, basicListing)

	var order []string
	reg := steps.NewRegistry()
	reg.Register("001-setup", func(e *runtime.Engine) error {
		order = append(order, "setup")
		return e.Config.Device(e.Host, nil, map[string]any{
			"rollout": map[string]any{
				"reorder_steps": []any{
					[]any{"users", 1000},
				},
			},
		})
	})
	reg.Register("100-users", func(e *runtime.Engine) error { order = append(order, "users"); return nil })
	reg.Register("999-complete", func(e *runtime.Engine) error { order = append(order, "complete"); return nil })

	d := newTestDriver(t, srv, reg)
	_, err := d.Run(t.Context())
	require.NoError(t, err)

	assert.Equal(t, []string{"setup", "complete", "users"}, order)
}

func TestAcquireLockRejectsSecondHolder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent.lock")

	first, err := AcquireLock(path)
	require.NoError(t, err)
	defer first.Release()

	_, err = AcquireLock(path)
	assert.Error(t, err)
}
