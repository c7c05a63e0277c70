package runtime

import (
	"context"
	"fmt"
	"net/url"
	"regexp"

	"github.com/rolloutd/agent/pkg/errs"
	"github.com/rolloutd/agent/pkg/queue"
	"github.com/rolloutd/agent/pkg/validator"
)

// C resolves path against the host's configuration, returning def if
// nothing matched (spec §4.3).
func (e *Engine) C(path string, def any) any {
	return e.Config.C(path, def)
}

// CAll resolves path in sequence context.
func (e *Engine) CAll(path string) []any {
	return e.Config.CAll(path)
}

func (e *Engine) IHas(key, entity string) (any, bool) { return e.Config.IHas(key, entity) }
func (e *Engine) IIsa(class, entity string) bool      { return e.Config.IIsa(class, entity) }
func (e *Engine) IShould(item, entity, step string) bool {
	return e.Config.IShould(item, entity, step)
}
func (e *Engine) IIP(entity string) (string, bool) { return e.Config.IIP(entity) }
func (e *Engine) IImmutableFile(entity, path string) bool {
	return e.Config.IImmutableFile(entity, path)
}
func (e *Engine) IUnsafeFile(entity, path string) bool { return e.Config.IUnsafeFile(entity, path) }
func (e *Engine) IUnsafeDir(entity, path string) bool  { return e.Config.IUnsafeDir(entity, path) }

// ValidateConfig checks the host's realized configuration against
// schema for the current step (spec §4.4, §4.6). Under --validate,
// after registering the check it short-circuits the rest of the step
// by returning a *errs.ValidationComplete control signal; outside
// --validate it returns the first violation found (nil if none). Every
// violation is logged as a warning and added to ValidationErrorCount.
func (e *Engine) ValidateConfig(path string, schema *validator.Schema) error {
	value, present := e.Config.IHas(lastSegment(path), e.Host)
	violations := e.Validator.Validate(e.CurrentStep(), path, schema, value, present)

	e.mu.Lock()
	e.ValidationErrorCount += len(violations)
	e.mu.Unlock()

	for _, v := range violations {
		e.W(v.Msg)
	}

	if e.Validating {
		return &errs.ValidationComplete{Step: e.CurrentStep()}
	}
	if len(violations) > 0 {
		return violations[0]
	}
	return nil
}

var lastSegmentRe = regexp.MustCompile(`[^/]+$`)

func lastSegment(path string) string {
	return lastSegmentRe.FindString(path)
}

// HTTPFile is a thin wrapper over the HTTP client's atomic-rename
// fetch, resolving relative urls against BaseURL (spec §4.6).
func (e *Engine) HTTPFile(ctx context.Context, rawURL, dest string) error {
	resolved := rawURL
	if u, err := url.Parse(rawURL); err == nil && !u.IsAbs() {
		base, err := url.Parse(e.BaseURL)
		if err == nil {
			resolved = base.ResolveReference(u).String()
		}
	}
	return e.HTTP.FetchTo(ctx, resolved, dest)
}

var stepShortRe = `(\d+-)?%s$`

// QueueStep finds a step matching (\d+-)?<shortname>$ in the loaded
// index and inserts it at priority 0, so it runs before every queued
// step of higher priority; entries already queued at priority 0 keep
// their place ahead of it (spec §4.6).
func (e *Engine) QueueStep(shortname string) error {
	pattern, err := regexp.Compile(fmt.Sprintf(stepShortRe, regexp.QuoteMeta(shortname)))
	if err != nil {
		return &errs.ConfigError{Msg: "invalid step short name " + shortname, Err: err}
	}
	for _, filename := range e.Index {
		if pattern.MatchString(filename) {
			e.Queue.Insert(queue.StringPayload(filename), 0)
			return nil
		}
	}
	return &errs.ConfigError{Msg: fmt.Sprintf("no step in index matches %q", shortname)}
}

// QueueCommand defers argv until priority (default 998) in the run
// (spec §4.6).
func (e *Engine) QueueCommand(argv []string, priority int, flags CommandFlags) {
	if priority == 0 {
		priority = 998
	}
	id := fmt.Sprintf("command:%v:%d", argv, priority)
	e.Queue.Insert(queue.DeferredFunc{
		ID: id,
		Fn: func() error {
			_, err := e.Command(argv, flags)
			return err
		},
	}, priority)
}

// QueueCode defers an arbitrary callable until priority (default 998).
func (e *Engine) QueueCode(id string, fn func() error, priority int) {
	if priority == 0 {
		priority = 998
	}
	e.Queue.Insert(queue.DeferredFunc{ID: id, Fn: fn}, priority)
}

// DangerousStep sets SafeMode for the remainder of the current step
// unless the step's short or full name is in the --force set (spec
// §4.6).
func (e *Engine) DangerousStep() {
	if e.forced(e.CurrentStep()) {
		return
	}
	e.SafeMode = true
}

func (e *Engine) L(text string, indent int) { e.stepLogger.L(text, indent) }
func (e *Engine) V(text string)             { e.stepLogger.V(text) }
func (e *Engine) D(value any)               { e.stepLogger.D(value) }
func (e *Engine) W(text string)             { e.stepLogger.W(text) }
func (e *Engine) Fatal(text string)         { e.stepLogger.Fatal(text) }
