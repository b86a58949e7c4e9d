// Package pidfile records which process owns the store daemon socket.
package pidfile

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/grovetools/appshelf/errors"
	"github.com/grovetools/appshelf/pkg/process"
)

// Acquire claims path for the current process. A file left by a dead
// process is replaced; a live owner yields a DAEMON_RUNNING error.
func Acquire(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create pid directory: %w", err)
	}

	self := os.Getpid()
	if pid, err := Read(path); err == nil && pid != self && process.IsProcessAlive(pid) {
		return errors.DaemonRunning(pid)
	}

	if err := os.WriteFile(path, []byte(strconv.Itoa(self)+"\n"), 0644); err != nil {
		return fmt.Errorf("failed to write pid file: %w", err)
	}
	return nil
}

// Release removes path if the current process still owns it.
func Release(path string) error {
	pid, err := Read(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err == nil && pid != os.Getpid() {
		return nil
	}
	return os.Remove(path)
}

// Read parses the PID stored in path.
func Read(path string) (int, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(content)))
}

// IsRunning reports whether the pid recorded in path is alive.
// A missing file means not running.
func IsRunning(path string) (bool, int, error) {
	pid, err := Read(path)
	switch {
	case os.IsNotExist(err):
		return false, 0, nil
	case err != nil:
		return false, 0, err
	}
	return process.IsProcessAlive(pid), pid, nil
}
