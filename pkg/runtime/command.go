package runtime

import (
	"bufio"
	"fmt"
	"os"
	"os/exec"
	"os/user"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/rolloutd/agent/pkg/errs"
)

// CommandFlags carries command()'s optional, named parameters (spec
// §4.6). Unlike the ad-hoc positional-or-named argument parsing in the
// source, every recognized field is enumerated here; there is nothing
// else to pass.
type CommandFlags struct {
	Intro   string
	Success string
	Failure string
	Timeout time.Duration
	UID     string // numeric uid or username; empty means unchanged
	RunAs   string // sudo -u target; empty means no privilege switch
}

// Command spawns argv as a detached child (new session, stdin
// /dev/null, stdout and stderr merged into one pipe read by the
// parent) and returns its status in the conventional wait-status
// encoding: high byte holds the exit code, low 7 bits hold the
// terminating signal (spec §4.6, §9 decision 3). In SafeMode the
// primitive logs "CMD: <argv>" and returns 0 without spawning.
func (e *Engine) Command(argv []string, flags CommandFlags) (int, error) {
	display := strings.Join(argv, " ")
	if e.SafeMode {
		e.L("CMD: "+display, 0)
		return 0, nil
	}
	if flags.Intro != "" {
		e.L(flags.Intro, 0)
	}

	fullArgv := argv
	if flags.RunAs != "" {
		fullArgv = append([]string{"sudo", "-u", flags.RunAs, "-H"}, argv...)
	}

	devnull, err := os.Open(os.DevNull)
	if err != nil {
		return -1, &errs.LocalFileError{Path: os.DevNull, Op: "open", Err: err}
	}
	defer devnull.Close()

	cmd := exec.Command(fullArgv[0], fullArgv[1:]...)
	cmd.Stdin = devnull
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if flags.UID != "" {
		uid, err := resolveUID(flags.UID)
		if err != nil {
			return -1, &errs.ConfigError{Msg: "resolving uid " + flags.UID, Err: err}
		}
		cmd.SysProcAttr.Credential = &syscall.Credential{Uid: uid}
	}

	r, w, err := os.Pipe()
	if err != nil {
		return -1, &errs.LocalFileError{Path: "pipe", Op: "create", Err: err}
	}
	cmd.Stdout = w
	cmd.Stderr = w

	if err := cmd.Start(); err != nil {
		w.Close()
		r.Close()
		return -1, &errs.LocalFileError{Path: fullArgv[0], Op: "exec", Err: err}
	}
	w.Close()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	sawOutput := false
	timedOut := false
readLoop:
	for {
		var timer <-chan time.Time
		if flags.Timeout > 0 {
			timer = time.After(flags.Timeout)
		}
		select {
		case line, ok := <-lines:
			if !ok {
				break readLoop
			}
			sawOutput = true
			e.L(line, 0)
		case <-timer:
			timedOut = true
			_ = cmd.Process.Signal(syscall.SIGTERM)
			e.L("[timeout]", 0)
			break readLoop
		}
	}
	if timedOut {
		go func() {
			for range lines {
			}
		}()
	}

	waitErr := cmd.Wait()
	r.Close()

	exitCode, signal := waitStatus(cmd, waitErr)
	status := exitCode<<8 | signal

	switch {
	case signal != 0:
		if flags.Failure != "" {
			e.W(fmt.Sprintf("%s (signal %d)", flags.Failure, signal))
		}
	case exitCode != 0:
		if flags.Failure != "" {
			e.W(fmt.Sprintf("%s (exit %d)", flags.Failure, exitCode))
		}
	default:
		if flags.Success != "" && flags.Intro == "" && sawOutput {
			e.L(flags.Success, 0)
		}
	}

	return status, nil
}

// waitStatus extracts exit code and terminating signal from a
// completed exec.Cmd, per the POSIX wait-status convention.
func waitStatus(cmd *exec.Cmd, waitErr error) (exitCode, signal int) {
	if cmd.ProcessState == nil {
		return -1, 0
	}
	ws, ok := cmd.ProcessState.Sys().(syscall.WaitStatus)
	if !ok {
		if waitErr != nil {
			return 1, 0
		}
		return 0, 0
	}
	if ws.Signaled() {
		return 0, int(ws.Signal())
	}
	return ws.ExitStatus(), 0
}

func resolveUID(spec string) (uint32, error) {
	if n, err := strconv.Atoi(spec); err == nil {
		return uint32(n), nil
	}
	u, err := user.Lookup(spec)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(u.Uid)
	if err != nil {
		return 0, err
	}
	return uint32(n), nil
}
