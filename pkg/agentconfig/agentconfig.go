package agentconfig

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/rolloutd/agent/pkg/errs"
	"github.com/rolloutd/agent/pkg/types"
)

// Load reads path into an AgentConfig. Blank lines and lines starting
// with "#" are ignored; every other line must be "key = value". A
// missing file is not an error — it loads as an empty configuration,
// since the first run on a host has nothing to read yet.
func Load(path string) (*types.AgentConfig, error) {
	cfg := &types.AgentConfig{Values: map[string]string{}}

	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, &errs.LocalFileError{Path: path, Op: "open", Err: err}
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return nil, &errs.ConfigError{Msg: fmt.Sprintf("malformed agent config line: %q", line)}
		}
		cfg.Values[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	if err := scanner.Err(); err != nil {
		return nil, &errs.LocalFileError{Path: path, Op: "read", Err: err}
	}
	return cfg, nil
}

// Save writes cfg to path atomically: a temp file in the same
// directory is written, fsynced, and renamed onto path. Keys are
// sorted so the written file is stable across runs modulo the values
// themselves (spec §8 "reading then writing is identity up to key
// ordering" — this makes that ordering deterministic).
func Save(path string, cfg *types.AgentConfig) error {
	tmp := fmt.Sprintf("%s.%d", path, os.Getpid())

	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return &errs.LocalFileError{Path: tmp, Op: "create", Err: err}
	}

	keys := make([]string, 0, len(cfg.Values))
	for k := range cfg.Values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	w := bufio.NewWriter(f)
	for _, k := range keys {
		if _, err := fmt.Fprintf(w, "%s = %s\n", k, cfg.Values[k]); err != nil {
			f.Close()
			os.Remove(tmp)
			return &errs.LocalFileError{Path: tmp, Op: "write", Err: err}
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		os.Remove(tmp)
		return &errs.LocalFileError{Path: tmp, Op: "write", Err: err}
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return &errs.LocalFileError{Path: tmp, Op: "fsync", Err: err}
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return &errs.LocalFileError{Path: tmp, Op: "close", Err: err}
	}

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return &errs.LocalFileError{Path: path, Op: "rename", Err: err}
	}
	return nil
}
