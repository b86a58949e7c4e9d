// Package paths provides XDG-compliant path resolution for appshelf.
//
// Resolution order:
// 1. APPSHELF_HOME (portable root) → $APPSHELF_HOME/{config,data,state,run}
// 2. XDG env vars → $XDG_*_HOME/appshelf
// 3. Platform defaults → ~/.config/appshelf, ~/.local/share/appshelf, etc.
package paths

import (
	"os"
	"path/filepath"
)

const appName = "appshelf"

// appDir resolves one appshelf directory. APPSHELF_HOME/<portable> is used
// as-is; otherwise appName is appended to $<xdgVar> or ~/<fallback>.
func appDir(portable, xdgVar string, fallback ...string) string {
	if home := os.Getenv("APPSHELF_HOME"); home != "" {
		return filepath.Join(home, portable)
	}
	if dir := os.Getenv(xdgVar); dir != "" {
		return filepath.Join(dir, appName)
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(append(append([]string{homeDir}, fallback...), appName)...)
}

// ConfigDir returns the appshelf configuration directory.
func ConfigDir() string {
	return appDir("config", "XDG_CONFIG_HOME", ".config")
}

// DataDir returns the appshelf data directory.
// Used for the persistent document database.
func DataDir() string {
	return appDir("data", "XDG_DATA_HOME", ".local", "share")
}

// StateDir returns the appshelf state directory.
// Used for runtime state, the pid file and logs.
func StateDir() string {
	return appDir("state", "XDG_STATE_HOME", ".local", "state")
}

// RuntimeDir returns the appshelf runtime directory for sockets.
// Uses XDG_RUNTIME_DIR when available (Linux), falls back to StateDir (macOS).
func RuntimeDir() string {
	if home := os.Getenv("APPSHELF_HOME"); home != "" {
		return filepath.Join(home, "run")
	}
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, appName)
	}
	return StateDir()
}

// SocketPath returns the path to the store daemon unix socket.
func SocketPath() string {
	return filepath.Join(RuntimeDir(), "appshelfd.sock")
}

// PidFilePath returns the path to the store daemon PID file.
func PidFilePath() string {
	return filepath.Join(StateDir(), "appshelfd.pid")
}

// DaemonLogPath returns the path of the store daemon log file.
func DaemonLogPath() string {
	return filepath.Join(StateDir(), "logs", "appshelfd.log")
}

// DatabasePath returns the default location of the SQLite document database.
func DatabasePath() string {
	return filepath.Join(DataDir(), "documents.db")
}

// StateFilePath returns the path of the local state file (persisted anonymous session).
func StateFilePath() string {
	return filepath.Join(StateDir(), "state.yml")
}

// EnsureDirs creates all appshelf directories if they don't exist.
func EnsureDirs() error {
	dirs := []string{
		ConfigDir(),
		DataDir(),
		StateDir(),
		RuntimeDir(),
	}

	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}
