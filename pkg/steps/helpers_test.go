package steps

import (
	"testing"

	"github.com/rolloutd/agent/pkg/httpclient"
)

func newTestLoader(t *testing.T, baseURL string) *Loader {
	t.Helper()
	return NewLoader(httpclient.NewPlain(), baseURL, NewModuleRegistry())
}
