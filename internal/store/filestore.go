package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const stateFileName = "agent-state.json"

// FileStore persists controller state as a JSON file in a data
// directory. Writes are atomic: data is written to a temporary file
// first, then renamed into place. A file lock is held during every
// operation for cross-process safety.
type FileStore struct {
	dir string
}

// NewFileStore creates a FileStore rooted at the given directory,
// creating it if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create state directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Save writes the state to the state file atomically.
func (s *FileStore) Save(state *State) error {
	fl := NewFileLock(s.dir)
	if err := fl.Lock(); err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	defer func() { _ = fl.Unlock() }()

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal agent state: %w", err)
	}

	target := filepath.Join(s.dir, stateFileName)
	tmp := target + ".tmp"

	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}

	if err := os.Rename(tmp, target); err != nil {
		_ = os.Remove(tmp) // best-effort cleanup
		return fmt.Errorf("rename temp file: %w", err)
	}

	return nil
}

// Load restores the most recently saved state. Returns (nil, nil) when
// the state file does not exist yet.
func (s *FileStore) Load() (*State, error) {
	fl := NewFileLock(s.dir)
	if err := fl.Lock(); err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	defer func() { _ = fl.Unlock() }()

	target := filepath.Join(s.dir, stateFileName)

	data, err := os.ReadFile(target)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read state file: %w", err)
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("unmarshal agent state: %w", err)
	}

	return &state, nil
}

// Path returns the location of the state file, for tooling that watches
// it for changes.
func (s *FileStore) Path() string {
	return filepath.Join(s.dir, stateFileName)
}

// Dir returns the data directory holding the state file. Watchers
// should watch the directory, not the file: atomic rename replaces the
// inode on every save.
func (s *FileStore) Dir() string {
	return s.dir
}
