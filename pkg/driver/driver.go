package driver

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/rolloutd/agent/pkg/agentconfig"
	"github.com/rolloutd/agent/pkg/config"
	"github.com/rolloutd/agent/pkg/errs"
	"github.com/rolloutd/agent/pkg/httpclient"
	"github.com/rolloutd/agent/pkg/log"
	"github.com/rolloutd/agent/pkg/metrics"
	"github.com/rolloutd/agent/pkg/queue"
	"github.com/rolloutd/agent/pkg/runtime"
	"github.com/rolloutd/agent/pkg/steps"
	"github.com/rolloutd/agent/pkg/types"
	"github.com/rolloutd/agent/pkg/validator"
)

// DefaultLockPath is the well-known single-instance lock (spec §6
// "Lock file"), overridable for tests and alternate install layouts.
const DefaultLockPath = "/var/run/rollout-agent.lock"

// DefaultConfigFile is the agent configuration filename used when
// --configfile is not given, resolved relative to ConfigDir.
const DefaultConfigFile = "agent.conf"

// Driver runs one agent invocation through the state machine in
// spec.md §4.7. A Driver is built fresh per run; it holds no state
// between invocations besides what is passed in at construction.
type Driver struct {
	ConfigDir   string
	LockPath    string
	MetricsPath string
	Options     *types.AgentOptions
	Registry    *steps.Registry
	Logger      zerolog.Logger
}

// New builds a Driver for one run against registry, the compiled-in
// step implementations the remote index's filenames are dispatched
// through.
func New(opts *types.AgentOptions, registry *steps.Registry) *Driver {
	return &Driver{
		ConfigDir: opts.ConfigDir,
		LockPath:  DefaultLockPath,
		Options:   opts,
		Registry:  registry,
		Logger:    log.WithComponent("driver"),
	}
}

// execution tracks the counters that accumulate across RUN_SETUP and
// DRAIN, and the run's in-memory log.
type execution struct {
	run        *log.RunLog
	stepsRun   int
	errorCount int
	aborting   bool
}

// Run executes the full LOCKED→...→UNLOCKED state machine once and
// returns a summary. A non-nil error means a fatal condition before
// the first step that prevented any step from running at all (lock
// contention, unreadable agent config, an unreachable step index); a
// step-level failure during RUN_SETUP/DRAIN is instead folded into the
// returned RunResult's ErrorCount, per spec §7's "a fatal error inside
// a step does not abort the whole run".
func (d *Driver) Run(ctx context.Context) (*types.RunResult, error) {
	runID := uuid.New().String()
	d.Logger = log.WithRunID(runID)
	result := &types.RunResult{RunID: runID, StartedAt: time.Now()}

	lockPath := d.LockPath
	if lockPath == "" {
		lockPath = DefaultLockPath
	}
	lock, err := AcquireLock(lockPath)
	if err != nil {
		return nil, err
	}
	defer lock.Release()

	configFilePath := d.resolveConfigFilePath()
	cfg, err := agentconfig.Load(configFilePath)
	if err != nil {
		return nil, err
	}

	if d.Options.BaseURL != "" {
		cfg.Set("base_url", d.Options.BaseURL)
	}
	baseURL := strings.TrimRight(cfg.Get("base_url"), "/")
	if baseURL == "" {
		return nil, &errs.ConfigError{Msg: "base_url is not configured; pass --url or set it in the agent configuration file"}
	}

	hostname := d.Options.Hostname
	if hostname == "" {
		hostname = cfg.Get("hostname")
	}
	if hostname == "" {
		hostname = shortHostname()
	}
	cfg.Set("hostname", hostname)
	result.Host = hostname

	httpClient, err := d.buildHTTPClient(cfg, baseURL, hostname)
	if err != nil {
		return nil, err
	}

	model := config.New()
	localConfigDir := filepath.Join(d.ConfigDir, "config")
	if info, statErr := os.Stat(localConfigDir); statErr == nil && info.IsDir() {
		if err := model.LoadDir(localConfigDir); err != nil {
			return nil, err
		}
	}

	entries, err := httpClient.Index(ctx, baseURL+"/steps/")
	if err != nil {
		return nil, err
	}

	var index []string
	for _, e := range entries {
		if e.Type == "directory" {
			continue
		}
		index = append(index, e.Filename)
	}

	ex := &execution{run: log.NewRunLog(10000)}

	v := validator.New()
	engine := runtime.New(model, queue.New(), v, httpClient, d.Options, ex.run)
	engine.Host = hostname
	engine.BaseURL = baseURL
	engine.Index = index

	if d.Options.Comment != "" {
		d.Logger.Info().Str("comment", d.Options.Comment).Msg("run started")
	}

	d.seed(engine.Queue, index)

	if first, ok := engine.Queue.Pop(); ok {
		if d.runOne(engine, first, ex) {
			ex.aborting = true
			d.preserveComplete(engine, ex)
		}
	}

	d.reorder(engine)
	d.drain(engine, ex)

	if err := agentconfig.Save(configFilePath, cfg); err != nil {
		d.Logger.Error().Err(err).Msg("writing agent configuration")
		ex.errorCount++
	}

	if d.MetricsPath != "" {
		if err := metrics.WriteTextfile(d.MetricsPath); err != nil {
			d.Logger.Error().Err(err).Msg("writing metrics textfile")
		}
	}

	result.FinishedAt = time.Now()
	result.StepsRun = ex.stepsRun
	result.ErrorCount = ex.errorCount
	result.ValidationErrors = engine.ValidationErrorCount
	return result, nil
}

func (d *Driver) buildHTTPClient(cfg *types.AgentConfig, baseURL, hostname string) (*httpclient.Client, error) {
	if strings.HasPrefix(baseURL, "https://") {
		return httpclient.New(cfg, d.ConfigDir, hostname)
	}
	return httpclient.NewPlain(), nil
}

func (d *Driver) resolveConfigFilePath() string {
	file := d.Options.ConfigFile
	if file == "" {
		file = DefaultConfigFile
	}
	if filepath.IsAbs(file) {
		return file
	}
	return filepath.Join(d.ConfigDir, file)
}

func shortHostname() string {
	h, err := os.Hostname()
	if err != nil {
		return ""
	}
	if i := strings.IndexByte(h, '.'); i >= 0 {
		return h[:i]
	}
	return h
}

var seedRe = regexp.MustCompile(`^(\d+)-(.*)$`)

// seed inserts every step filename matching ^(\d+)-(.*)$ into q at its
// numeric-prefix priority (spec §4.7 SEED). Entries already filtered
// to non-directories by Run stay eligible here.
func (d *Driver) seed(q *queue.Queue, index []string) {
	for _, filename := range index {
		m := seedRe.FindStringSubmatch(filename)
		if m == nil {
			continue
		}
		priority, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		q.Insert(queue.StringPayload(filename), priority)
	}
}

// reorder applies c("<host>/rollout/reorder_steps") and
// c("<host>/rollout/copy_steps"), letting the host configuration
// reshape the remaining run (spec §4.7 REORDER).
func (d *Driver) reorder(e *runtime.Engine) {
	for _, pair := range parsePairs(e.C(e.Host+"/rollout/reorder_steps", nil)) {
		filename, ok := resolveStepName(e.Index, pair.name)
		if !ok {
			e.Run.Append(fmt.Sprintf("reorder_steps: no step matches %q", pair.name))
			continue
		}
		e.Queue.Update(queue.StringPayload(filename), pair.priority)
	}

	for _, pair := range parsePairs(e.C(e.Host+"/rollout/copy_steps", nil)) {
		filename, ok := resolveStepName(e.Index, pair.name)
		if !ok {
			e.Run.Append(fmt.Sprintf("copy_steps: no step matches %q", pair.name))
			continue
		}
		e.Queue.Insert(queue.StringPayload(filename), pair.priority)
	}
}

type stepPriority struct {
	name     string
	priority int
}

// parsePairs normalizes a c() hit expected to be a sequence of
// two-element [name, priority] sequences. Malformed or absent entries
// are silently dropped, since reorder/copy configuration is optional.
func parsePairs(value any) []stepPriority {
	list, ok := value.([]any)
	if !ok {
		return nil
	}
	var out []stepPriority
	for _, raw := range list {
		pair, ok := raw.([]any)
		if !ok || len(pair) != 2 {
			continue
		}
		name, ok := pair[0].(string)
		if !ok {
			continue
		}
		priority, ok := toInt(pair[1])
		if !ok {
			continue
		}
		out = append(out, stepPriority{name: name, priority: priority})
	}
	return out
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

// resolveStepName finds the index entry matching (\d+-)?<shortname>$,
// the same suffix match QueueStep uses.
func resolveStepName(index []string, shortname string) (string, bool) {
	pattern, err := regexp.Compile(`(\d+-)?` + regexp.QuoteMeta(shortname) + `$`)
	if err != nil {
		return "", false
	}
	for _, filename := range index {
		if pattern.MatchString(filename) {
			return filename, true
		}
	}
	return "", false
}

// autoOnly is appended to --only by drain filtering regardless of
// what the operator passed, per spec §6.
var autoOnly = []string{"setup", "os-detection", "modifiers", "complete"}

// drain repeatedly pops the minimum-priority entry, filtering step
// entries through --skip_step/--only/i_should("*"), until the queue is
// empty (spec §4.7 DRAIN). After a fatal error it discards every entry
// that is not the "complete" step and returns as soon as that step has
// run, leaving any remaining entries unpopped.
func (d *Driver) drain(e *runtime.Engine, ex *execution) {
	for {
		payload, ok := e.Queue.Pop()
		if !ok {
			return
		}

		if ex.aborting {
			filename, isStep := payload.(queue.StringPayload)
			if !isStep || config.ShortStepName(string(filename)) != "complete" {
				continue
			}
			d.runOne(e, payload, ex)
			return
		}

		if filename, isStep := payload.(queue.StringPayload); isStep {
			if !d.shouldRun(e, string(filename)) {
				continue
			}
		}

		if d.runOne(e, payload, ex) {
			ex.aborting = true
			d.preserveComplete(e, ex)
		}
	}
}

// preserveComplete re-queues the step matching "complete" at priority
// 0 after a fatal error, so the rest of DRAIN discards the remaining
// queue but still runs cleanup/reporting (spec §7).
func (d *Driver) preserveComplete(e *runtime.Engine, ex *execution) {
	if filename, ok := resolveStepName(e.Index, "complete"); ok {
		e.Queue.Insert(queue.StringPayload(filename), 0)
		return
	}
	ex.run.Append("fatal error with no \"complete\" step in the index to preserve")
}

// shouldRun applies --skip_step, --only (with its auto-included step
// names), and i_should("*") to a step filename (spec §4.7 DRAIN,
// §6). Deferred callables bypass this filter entirely: they have no
// step name to match against and are queued explicitly by a step that
// already decided they belong in the run.
func (d *Driver) shouldRun(e *runtime.Engine, filename string) bool {
	for _, pattern := range d.Options.SkipSteps {
		if skipPattern(pattern).MatchString(filename) {
			return false
		}
	}

	only := d.onlyNames()
	if len(only) > 0 {
		matched := false
		for _, name := range only {
			if name == "" {
				continue
			}
			if pattern, err := regexp.Compile(`(\d+-)?` + regexp.QuoteMeta(name) + `$`); err == nil && pattern.MatchString(filename) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}

	return e.IShould("*", e.Host, filename)
}

func (d *Driver) onlyNames() []string {
	if len(d.Options.Only) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(d.Options.Only)+len(autoOnly))
	var out []string
	for _, name := range append(append([]string{}, d.Options.Only...), autoOnly...) {
		if seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out
}

// skipPattern builds the "^\d*-?S$" suffix match spec §6 describes for
// --skip_step, matched against the full step filename.
func skipPattern(s string) *regexp.Regexp {
	return regexp.MustCompile(`^\d*-?` + regexp.QuoteMeta(s) + `$`)
}

// runOne executes a single queue entry (a step, dispatched through
// Registry, or a deferred callable) and classifies the outcome,
// returning true if the driver must enter its fatal-abort sequence.
func (d *Driver) runOne(e *runtime.Engine, payload queue.Payload, ex *execution) bool {
	var label string
	var err error

	switch p := payload.(type) {
	case queue.StringPayload:
		label = string(p)
		e.BeginStep(label)
		err = d.Registry.Run(e, label)
	case queue.DeferredFunc:
		label = p.ID
		err = p.Fn()
	default:
		return false
	}

	ex.stepsRun++

	if err == nil {
		metrics.StepsTotal.WithLabelValues("ok").Inc()
		return false
	}

	switch errs.Classify(err) {
	case errs.OutcomeContinue:
		ex.errorCount++
		metrics.ErrorsTotal.WithLabelValues(errKind(err)).Inc()
		metrics.StepsTotal.WithLabelValues("error").Inc()
		d.Logger.Warn().Str("step", label).Err(err).Msg("step reported an error")
	case errs.OutcomeWarn:
		metrics.StepsTotal.WithLabelValues("warn").Inc()
		d.Logger.Warn().Str("step", label).Err(err).Msg("step warning")
	case errs.OutcomeFatal:
		ex.errorCount++
		metrics.ErrorsTotal.WithLabelValues(errKind(err)).Inc()
		metrics.StepsTotal.WithLabelValues("fatal").Inc()
		d.Logger.Error().Str("step", label).Err(err).Msg("fatal error, preserving complete step")
		return true
	case errs.OutcomeSignal:
		metrics.StepsTotal.WithLabelValues("signal").Inc()
	}
	return false
}

func errKind(err error) string {
	switch err.(type) {
	case *errs.HTTPError:
		return "http"
	case *errs.LocalFileError:
		return "local_file"
	case *errs.ConfigError:
		return "config"
	case *errs.ConfigValidationError:
		return "config_validation"
	case *errs.SafeModeError:
		return "safe_mode"
	default:
		return "other"
	}
}
