package watch

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"content-loader/pkg/utils"
)

const stateFileName = "watch_state.yaml"

// CollectionState contains the last build information for a collection
type CollectionState struct {
	LastRunTime    time.Time `yaml:"last_run_time"`
	LastRunSuccess bool      `yaml:"last_run_success"`
	PagesExported  int       `yaml:"pages_exported"`
	PagesUnchanged int       `yaml:"pages_unchanged"`
	ErrorMessage   string    `yaml:"error_message,omitempty"`
}

// State contains the persistent state for the watch scheduler
type State struct {
	Collections map[string]CollectionState `yaml:"collections"`
	UpdatedAt   time.Time                  `yaml:"updated_at"`
}

// StateManager handles persisting and loading watch state
type StateManager struct {
	stateDir  string
	statePath string
	state     State
	mu        sync.RWMutex
}

// NewStateManager creates a new state manager
func NewStateManager(stateDir string) *StateManager {
	return &StateManager{
		stateDir:  stateDir,
		statePath: filepath.Join(stateDir, stateFileName),
		state:     State{Collections: make(map[string]CollectionState)},
	}
}

// Load loads the state from disk. A missing file starts fresh.
func (m *StateManager) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := os.ReadFile(m.statePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			m.state = State{Collections: make(map[string]CollectionState)}
			return nil
		}
		return fmt.Errorf("%w: read watch state: %w", utils.ErrFilesystem, err)
	}

	if err := yaml.Unmarshal(data, &m.state); err != nil {
		return fmt.Errorf("%w: watch state '%s': %w", utils.ErrParsing, m.statePath, err)
	}
	if m.state.Collections == nil {
		m.state.Collections = make(map[string]CollectionState)
	}
	return nil
}

// Save writes the state to disk
func (m *StateManager) Save() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.state.UpdatedAt = time.Now()

	if err := os.MkdirAll(m.stateDir, 0755); err != nil {
		return fmt.Errorf("%w: create state directory: %w", utils.ErrOutput, err)
	}

	data, err := yaml.Marshal(m.state)
	if err != nil {
		return fmt.Errorf("%w: encode watch state: %w", utils.ErrOutput, err)
	}
	if err := os.WriteFile(m.statePath, data, 0644); err != nil {
		return fmt.Errorf("%w: write watch state: %w", utils.ErrOutput, err)
	}
	return nil
}

// GetCollectionState returns the state for a specific collection
func (m *StateManager) GetCollectionState(key string) (CollectionState, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	state, ok := m.state.Collections[key]
	return state, ok
}

// UpdateCollectionState records the outcome of a build
func (m *StateManager) UpdateCollectionState(key string, success bool, exported, unchanged int, errorMsg string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.state.Collections[key] = CollectionState{
		LastRunTime:    time.Now(),
		LastRunSuccess: success,
		PagesExported:  exported,
		PagesUnchanged: unchanged,
		ErrorMessage:   errorMsg,
	}
}

// ShouldRun reports whether a collection is due: never built, or built at least interval ago
func (m *StateManager) ShouldRun(key string, interval time.Duration) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.state.Collections[key]
	if !ok {
		return true
	}
	return time.Since(state.LastRunTime) >= interval
}

// GetNextRunTime returns when the collection should next be built
func (m *StateManager) GetNextRunTime(key string, interval time.Duration) time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.state.Collections[key]
	if !ok {
		return time.Now()
	}
	return state.LastRunTime.Add(interval)
}
