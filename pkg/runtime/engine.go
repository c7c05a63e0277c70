package runtime

import (
	"regexp"
	"sync"

	"github.com/rolloutd/agent/pkg/config"
	"github.com/rolloutd/agent/pkg/httpclient"
	"github.com/rolloutd/agent/pkg/log"
	"github.com/rolloutd/agent/pkg/queue"
	"github.com/rolloutd/agent/pkg/types"
	"github.com/rolloutd/agent/pkg/validator"
)

// Engine bundles everything step code needs, replacing the
// process-wide mutable globals (verbosity, safe_mode, current_step,
// config, the entity table, the queue) with one explicit context
// threaded through the driver and every primitive call.
type Engine struct {
	mu sync.Mutex

	Config    *config.Model
	Queue     *queue.Queue
	Validator *validator.Validator
	HTTP      *httpclient.Client
	Run       *log.RunLog

	Host     string
	BaseURL  string
	Options  *types.AgentOptions
	ForceSet map[string]bool

	// Index holds the current remote step index, populated at
	// INDEX_LOADED and consulted by QueueStep (spec §4.6).
	Index []string

	// SafeMode starts at Options.SafeMode but dangerous_step() may
	// raise it for the remainder of the current step (spec §4.6).
	SafeMode bool
	// Validating is true for the whole run under --validate.
	Validating bool

	// ValidationErrorCount accumulates every violation ValidateConfig
	// has found so far this run, independent of Validating: it is the
	// exit-code source under --validate (spec §6 "exit code = error
	// count") and is otherwise informational.
	ValidationErrorCount int

	currentStep string
	stepLogger  *log.StepLogger
}

// New builds an Engine for one agent run.
func New(cfg *config.Model, q *queue.Queue, v *validator.Validator, http *httpclient.Client, opts *types.AgentOptions, run *log.RunLog) *Engine {
	force := make(map[string]bool, len(opts.Force))
	for _, f := range opts.Force {
		force[f] = true
	}
	return &Engine{
		Config:     cfg,
		Queue:      q,
		Validator:  v,
		HTTP:       http,
		Run:        run,
		Host:       opts.Hostname,
		BaseURL:    opts.BaseURL,
		Options:    opts,
		ForceSet:   force,
		SafeMode:   opts.SafeMode,
		Validating: opts.Validate,
	}
}

// BeginStep resets the lazy step-header state and SafeMode for
// filename, called by the driver before each step runs.
func (e *Engine) BeginStep(filename string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.currentStep = filename
	e.SafeMode = e.Options.SafeMode
	e.stepLogger = log.NewStepLogger(filename, e.Options.Verbosity, e.Run)
	e.stepLogger.NoLabels = e.Options.NoStepLabels
}

// CurrentStep returns the filename of the step currently executing.
func (e *Engine) CurrentStep() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.currentStep
}

var shortNamePrefix = regexp.MustCompile(`^\d+-`)

// shortName strips the numeric priority prefix from filename, e.g.
// "100-users" -> "users".
func shortName(filename string) string {
	return shortNamePrefix.ReplaceAllString(filename, "")
}

// forced reports whether filename's short or full name is in the
// operator-supplied --force set, used by DangerousStep.
func (e *Engine) forced(filename string) bool {
	return e.ForceSet[filename] || e.ForceSet[shortName(filename)]
}
