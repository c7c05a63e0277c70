package driver

import (
	"fmt"
	"os"
	"syscall"

	"github.com/rolloutd/agent/pkg/errs"
)

// Lock holds a POSIX advisory flock acquired on a well-known path,
// enforcing the spec's single-instance-per-host invariant.
type Lock struct {
	f *os.File
}

// AcquireLock opens (creating if necessary) path and takes an
// exclusive, non-blocking flock on it. A contended lock returns a
// plain error describing the condition, distinct from the exception
// taxonomy since it is not something a step ever sees.
func AcquireLock(path string) (*Lock, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, &errs.LocalFileError{Path: path, Op: "open lock", Err: err}
	}

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		f.Close()
		if err == syscall.EWOULDBLOCK {
			return nil, fmt.Errorf("agent already running: %s is locked", path)
		}
		return nil, &errs.LocalFileError{Path: path, Op: "flock", Err: err}
	}
	return &Lock{f: f}, nil
}

// Release drops the flock and closes the underlying file.
func (l *Lock) Release() error {
	defer l.f.Close()
	return syscall.Flock(int(l.f.Fd()), syscall.LOCK_UN)
}
