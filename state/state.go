// Package state persists small key-value facts between runs, such as the
// anonymous user id, in a YAML file under the appshelf state directory.
package state

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// State is a generic map of key-value pairs.
type State map[string]interface{}

// File is a state file at a fixed path. Methods are safe for concurrent use
// within one process.
type File struct {
	path string
	mu   sync.Mutex
}

// Open returns a handle for the state file at path. The file is created on first Save.
func Open(path string) *File {
	return &File{path: path}
}

// Path returns the file location.
func (f *File) Path() string {
	return f.path
}

// Load loads the state from the state file.
// Returns an empty state if the file doesn't exist.
func (f *File) Load() (State, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.load()
}

func (f *File) load() (State, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(State), nil
		}
		return nil, fmt.Errorf("read state file: %w", err)
	}

	var state State
	if err := yaml.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("parse state file: %w", err)
	}

	if state == nil {
		state = make(State)
	}

	return state, nil
}

func (f *File) save(state State) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}

	data, err := yaml.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	if err := os.WriteFile(f.path, data, 0600); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}

	return nil
}

// Get retrieves a value by key.
func (f *File) Get(key string) (interface{}, bool, error) {
	state, err := f.Load()
	if err != nil {
		return nil, false, err
	}

	val, ok := state[key]
	return val, ok, nil
}

// GetString returns the string stored under key, or "" when absent or not a string.
func (f *File) GetString(key string) (string, error) {
	val, ok, err := f.Get(key)
	if err != nil || !ok {
		return "", err
	}

	str, _ := val.(string)
	return str, nil
}

// Set stores a value under key.
func (f *File) Set(key string, value interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	state, err := f.load()
	if err != nil {
		return err
	}

	state[key] = value
	return f.save(state)
}

// Delete removes a key.
func (f *File) Delete(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	state, err := f.load()
	if err != nil {
		return err
	}

	delete(state, key)
	return f.save(state)
}
