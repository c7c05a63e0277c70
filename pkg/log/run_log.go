package log

import (
	"fmt"
	"strings"
	"sync"

	"github.com/fatih/color"
)

// RunLog accumulates every line logged during one agent run, in order,
// for later inspection (e.g. attaching to a failure report). It is
// bounded so a runaway step cannot exhaust memory; once full, the
// oldest lines are dropped to make room for new ones.
type RunLog struct {
	mu    sync.Mutex
	lines []string
	cap   int
}

// NewRunLog returns a RunLog holding at most capacity lines.
func NewRunLog(capacity int) *RunLog {
	if capacity <= 0 {
		capacity = 10000
	}
	return &RunLog{cap: capacity}
}

// Append adds line to the log, evicting the oldest line if full.
func (r *RunLog) Append(line string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.lines) >= r.cap {
		r.lines = r.lines[1:]
	}
	r.lines = append(r.lines, line)
}

// Lines returns a copy of every line recorded so far.
func (r *RunLog) Lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.lines))
	copy(out, r.lines)
	return out
}

// String joins every recorded line with newlines.
func (r *RunLog) String() string {
	return strings.Join(r.Lines(), "\n")
}

// StepLogger prints a step's name once, lazily, before the first line
// logged on its behalf, and mirrors every line into a RunLog. verbose
// and debug output is gated on a verbosity level per spec §4.6
// (v() needs >= 2, d() needs >= 3).
type StepLogger struct {
	mu        sync.Mutex
	step      string
	printed   bool
	verbosity int
	run       *RunLog

	// NoLabels suppresses the "--- step ---" header line printed
	// lazily before a step's first log line (--no_step_labels).
	NoLabels bool

	warnColor  *color.Color
	fatalColor *color.Color
}

// NewStepLogger returns a StepLogger for step, gated at verbosity, that
// mirrors every line into run.
func NewStepLogger(step string, verbosity int, run *RunLog) *StepLogger {
	return &StepLogger{
		step:       step,
		verbosity:  verbosity,
		run:        run,
		warnColor:  color.New(color.FgYellow),
		fatalColor: color.New(color.FgRed, color.Bold),
	}
}

func (s *StepLogger) header() {
	if s.printed || s.NoLabels {
		return
	}
	s.printed = true
	line := fmt.Sprintf("--- %s ---", s.step)
	fmt.Println(line)
	s.run.Append(line)
}

// L logs text at normal verbosity, indented by indent spaces (default
// 2 when indent is 0).
func (s *StepLogger) L(text string, indent int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if indent <= 0 {
		indent = 2
	}
	s.header()
	line := strings.Repeat(" ", indent) + text
	fmt.Println(line)
	s.run.Append(line)
}

// V logs text only when verbosity >= 2.
func (s *StepLogger) V(text string) {
	if s.verbosity < 2 {
		return
	}
	s.L(text, 2)
}

// D dumps value only when verbosity >= 3.
func (s *StepLogger) D(value any) {
	if s.verbosity < 3 {
		return
	}
	s.L(fmt.Sprintf("%#v", value), 2)
}

// W logs a warning, colored when output supports it.
func (s *StepLogger) W(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.header()
	line := "WARNING: " + text
	s.warnColor.Println(line)
	s.run.Append(line)
}

// Fatal logs a terminal error for the step.
func (s *StepLogger) Fatal(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.header()
	line := "FATAL ERROR: " + text
	s.fatalColor.Println(line)
	s.run.Append(line)
}
