package window

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// State is the persisted slice of a window's attributes.
type State struct {
	Bounds  Bounds `yaml:"bounds"`
	Visible bool   `yaml:"visible"`
}

// StateStore persists window geometry to a YAML file so windows reopen
// where the user left them.
type StateStore struct {
	path string

	mu     sync.Mutex
	states map[string]State
}

// LoadStateStore reads saved state from path. A missing file yields an
// empty store; a corrupt one is discarded with a warning.
func LoadStateStore(path string) (*StateStore, error) {
	s := &StateStore{path: path, states: make(map[string]State)}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("window: read state file: %w", err)
	}
	if err := yaml.Unmarshal(data, &s.states); err != nil {
		log.Warn("discarding corrupt window state file", "path", path, "error", err)
		s.states = make(map[string]State)
	}
	return s, nil
}

// Get returns the saved state for a window id.
func (s *StateStore) Get(id string) (State, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[id]
	return st, ok
}

// Put saves state for a window id and writes the file.
func (s *StateStore) Put(id string, st State) error {
	s.mu.Lock()
	s.states[id] = st
	data, err := yaml.Marshal(s.states)
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("window: marshal state: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("window: create state dir: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("window: write state: %w", err)
	}
	return os.Rename(tmp, s.path)
}
