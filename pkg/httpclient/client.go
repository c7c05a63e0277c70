package httpclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/rolloutd/agent/pkg/errs"
	"github.com/rolloutd/agent/pkg/security"
	"github.com/rolloutd/agent/pkg/types"
)

// Client fetches files and directory listings from the step
// repository, presenting mutual-TLS credentials on https:// URLs.
type Client struct {
	http *http.Client
}

// New builds a Client whose TLS transport presents the certificate/key
// pair and CA resolved from cfg for hostname, relative to configdir.
func New(cfg *types.AgentConfig, configdir, hostname string) (*Client, error) {
	certPath, keyPath, caPath := security.ResolveHostCertPaths(cfg, hostname)
	tlsCfg, err := security.ClientTLSConfig(configdir, certPath, keyPath, caPath)
	if err != nil {
		return nil, fmt.Errorf("resolving TLS material: %w", err)
	}

	transport := &http.Transport{TLSClientConfig: tlsCfg}
	return &Client{http: &http.Client{Transport: transport, Timeout: 60 * time.Second}}, nil
}

// NewPlain builds a Client with no client certificate, for plain
// http:// repositories (used in tests and by operators who terminate
// TLS in front of the step repository).
func NewPlain() *Client {
	return &Client{http: &http.Client{Timeout: 60 * time.Second}}
}

// Fetch GETs url and returns its body.
func (c *Client) Fetch(ctx context.Context, url string) ([]byte, error) {
	body, err := c.get(ctx, url)
	if err != nil {
		return nil, err
	}
	defer body.Close()
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, &errs.HTTPError{URL: url, Msg: "reading response body", Err: err}
	}
	return data, nil
}

// FetchTo GETs url and atomically writes the body to dest: the stream
// lands at "<dest>.<pid>", is fsynced and closed, then renamed onto
// dest. A zero-byte body is refused when dest already exists and is
// non-empty, guarding against a truncated upstream response silently
// replacing good content.
func (c *Client) FetchTo(ctx context.Context, url, dest string) error {
	body, err := c.get(ctx, url)
	if err != nil {
		return err
	}
	defer body.Close()

	tmp := fmt.Sprintf("%s.%d", dest, os.Getpid())
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return &errs.LocalFileError{Path: tmp, Op: "create", Err: err}
	}

	n, copyErr := io.Copy(f, body)
	if copyErr == nil {
		copyErr = f.Sync()
	}
	closeErr := f.Close()
	if copyErr != nil {
		os.Remove(tmp)
		return &errs.LocalFileError{Path: tmp, Op: "write", Err: copyErr}
	}
	if closeErr != nil {
		os.Remove(tmp)
		return &errs.LocalFileError{Path: tmp, Op: "close", Err: closeErr}
	}

	if n == 0 {
		if info, statErr := os.Stat(dest); statErr == nil && info.Size() > 0 {
			os.Remove(tmp)
			return &errs.HTTPError{URL: url, Msg: "Not overwriting existing file with nothing"}
		}
	}

	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return &errs.LocalFileError{Path: dest, Op: "rename", Err: err}
	}
	return nil
}

// get performs the GET and validates the status, returning the
// caller-owned response body on 2xx.
func (c *Client) get(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &errs.HTTPError{URL: url, Msg: "building request", Err: err}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &errs.HTTPError{URL: url, Msg: "request failed", Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, &errs.HTTPError{URL: url, Msg: fmt.Sprintf("unexpected status %s", resp.Status)}
	}
	return resp.Body, nil
}
