// Package pidfile records the PID of a running linesearch server so that
// `linesearch stop` can find and signal it.
package pidfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// File manages a single PID file.
type File struct {
	path string
}

// New returns a manager for the PID file at path.
func New(path string) *File {
	return &File{path: path}
}

// Path returns the PID file location.
func (p *File) Path() string { return p.path }

// Acquire writes the current PID, failing if a live process already owns
// the file. A file left behind by a dead process is replaced.
func (p *File) Acquire() error {
	running, pid, err := p.Running()
	if err != nil {
		return err
	}
	if running {
		return fmt.Errorf("server is already running (PID: %d)", pid)
	}

	if err := os.MkdirAll(filepath.Dir(p.path), 0755); err != nil {
		return fmt.Errorf("failed to create PID directory: %w", err)
	}
	if err := os.WriteFile(p.path, []byte(strconv.Itoa(os.Getpid())+"\n"), 0644); err != nil {
		return fmt.Errorf("failed to write PID file: %w", err)
	}
	return nil
}

// Release removes the PID file. A missing file is not an error.
func (p *File) Release() error {
	if err := os.Remove(p.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove PID file: %w", err)
	}
	return nil
}

// Running reports whether the recorded process is alive.
// An unreadable PID is treated as not running.
func (p *File) Running() (bool, int, error) {
	pid, err := p.PID()
	var numErr *strconv.NumError
	switch {
	case errors.As(err, &numErr):
		return false, 0, nil
	case err != nil:
		return false, 0, fmt.Errorf("failed to read PID file: %w", err)
	case pid <= 0:
		return false, 0, nil
	}
	return processExists(pid), pid, nil
}

// PID returns the recorded process ID, or 0 when there is no file.
func (p *File) PID() (int, error) {
	data, err := os.ReadFile(p.path)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

// Signal delivers sig to the recorded process.
func (p *File) Signal(sig os.Signal) (int, error) {
	running, pid, err := p.Running()
	if err != nil {
		return 0, err
	}
	if !running {
		return pid, fmt.Errorf("no running server recorded in %s", p.path)
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return pid, err
	}
	return pid, proc.Signal(sig)
}

func processExists(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// Signal 0 probes for existence without delivering anything.
	return proc.Signal(syscall.Signal(0)) == nil
}
