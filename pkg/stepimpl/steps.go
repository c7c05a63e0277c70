package stepimpl

import (
	"fmt"
	goruntime "runtime"
	"strings"

	"github.com/rolloutd/agent/pkg/config"
	"github.com/rolloutd/agent/pkg/errs"
	"github.com/rolloutd/agent/pkg/runtime"
	"github.com/rolloutd/agent/pkg/steps"
	"github.com/rolloutd/agent/pkg/validator"
)

// NewRegistry returns a Registry populated with this package's step
// implementations, keyed by the filenames a deployment's remote index
// is expected to carry for them.
func NewRegistry() *steps.Registry {
	r := steps.NewRegistry()
	r.Register("001-setup", Setup)
	r.Register("005-os-detection", OSDetection)
	r.Register("010-modifiers", Modifiers)
	r.Register("100-users", Users)
	r.Register("150-git", Git)
	r.Register("999-complete", Complete)
	return r
}

// Setup defines the running host's own device entity if nothing
// already defined it via a local override directory, giving every
// later step an entity to hang lookups off of (spec §3, "before any
// step runs").
func Setup(e *runtime.Engine) error {
	if e.Config.Entity(e.Host) == nil {
		if err := e.Config.Device(e.Host, nil, map[string]any{}); err != nil {
			return err
		}
	}
	e.L(fmt.Sprintf("host entity %q ready", e.Host), 0)
	return nil
}

// OSDetection reports the platform the agent is running on. It only
// logs; the config model is read-only once defined (spec §3), so
// platform facts gathered here steer this run's own branching rather
// than being written back into the entity tree.
func OSDetection(e *runtime.Engine) error {
	out, err := e.Command([]string{"uname", "-sr"}, runtime.CommandFlags{Intro: "detecting platform"})
	if err != nil {
		return err
	}
	e.V(fmt.Sprintf("GOOS=%s exit=%d", goruntime.GOOS, out))
	return nil
}

// Modifiers runs any ad-hoc shell commands the host's configuration
// lists under "<host>/modifiers", in order. A modifier is a
// potentially destructive one-off, so it goes through DangerousStep
// like any other side-effecting step.
func Modifiers(e *runtime.Engine) error {
	e.DangerousStep()
	for _, raw := range config.FlattenList(e.CAll(e.Host + "/modifiers")...) {
		argv, ok := raw.([]any)
		if !ok || len(argv) == 0 {
			continue
		}
		cmd := make([]string, 0, len(argv))
		for _, part := range argv {
			s, ok := part.(string)
			if !ok {
				return &errs.ConfigError{Msg: "modifiers entries must be lists of strings"}
			}
			cmd = append(cmd, s)
		}
		if !e.IShould("*", e.Host, e.CurrentStep()) {
			continue
		}
		if _, err := e.Command(cmd, runtime.CommandFlags{Intro: "modifier: " + strings.Join(cmd, " ")}); err != nil {
			return err
		}
	}
	return nil
}

// Users reconciles the account list at "<host>/users", each entry a
// hash of {name, shell, groups}. It validates the shape before acting
// on it, matching the pattern every config-consuming step follows:
// validate_config first, then read via c()/i_has.
func Users(e *runtime.Engine) error {
	schema := &validator.Schema{
		Type: validator.T("list"),
		Items: &validator.Schema{
			Type: validator.T("hash"),
			Key:  &validator.Schema{Type: validator.T("string")},
			Value: &validator.Schema{Type: validator.T("string", "list")},
		},
	}
	if err := e.ValidateConfig(e.Host+"/users", schema); err != nil {
		return err
	}

	e.DangerousStep()
	for _, raw := range config.FlattenList(e.CAll(e.Host + "/users")...) {
		entry, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		name, _ := entry["name"].(string)
		if name == "" {
			continue
		}
		shell, _ := entry["shell"].(string)
		if shell == "" {
			shell = "/bin/bash"
		}

		argv := []string{"useradd", "-m", "-s", shell, name}
		if groups := config.FlattenList(entry["groups"]); len(groups) > 0 {
			names := make([]string, 0, len(groups))
			for _, g := range groups {
				if s, ok := g.(string); ok {
					names = append(names, s)
				}
			}
			argv = append(argv, "-G", strings.Join(names, ","))
		}

		if _, err := e.Command(argv, runtime.CommandFlags{
			Intro:   "ensuring user " + name,
			Failure: "useradd failed for " + name,
		}); err != nil {
			return err
		}
	}
	return nil
}

// Git clones or updates the repositories listed at "<host>/git", each
// a hash of {url, dest}.
func Git(e *runtime.Engine) error {
	for _, raw := range config.FlattenList(e.CAll(e.Host + "/git")...) {
		entry, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		url, _ := entry["url"].(string)
		dest, _ := entry["dest"].(string)
		if url == "" || dest == "" {
			continue
		}

		if e.IUnsafeDir(e.Host, dest) {
			e.W("refusing to manage git checkout at unsafe directory " + dest)
			continue
		}

		argv := []string{"git", "clone", url, dest}
		if _, err := e.Command(argv, runtime.CommandFlags{
			Intro:   "cloning " + url + " -> " + dest,
			Failure: "git clone failed",
		}); err != nil {
			return err
		}
	}
	return nil
}

// Complete runs last and only reports: the driver also re-queues this
// step at priority 0 on a fatal error elsewhere in the run (spec §7),
// so it must never itself be dangerous or skippable.
func Complete(e *runtime.Engine) error {
	e.L(fmt.Sprintf("run complete for %s", e.Host), 0)
	return nil
}
