package credstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileName is the credentials file inside the medhub home directory.
const FileName = "credentials.json"

// FileStore keeps credentials in a single JSON object on disk. Writes go to a
// temp file that is renamed over the original; the file is mode 0600 inside a
// 0700 directory.
type FileStore struct {
	path string

	mu   sync.RWMutex
	data map[string]string
}

// Open loads the store at path. A missing file is an empty store. A file that
// does not parse yields a usable empty store together with an error wrapping
// ErrCorrupt, so the caller can log it and carry on.
func Open(path string) (*FileStore, error) {
	s := &FileStore{path: path, data: map[string]string{}}
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("credstore.Open: %w", err)
	}
	if len(raw) == 0 {
		return s, nil
	}
	if err := json.Unmarshal(raw, &s.data); err != nil {
		s.data = map[string]string{}
		return s, fmt.Errorf("credstore.Open: %w: %v", ErrCorrupt, err)
	}
	return s, nil
}

// Path returns the file backing the store.
func (s *FileStore) Path() string { return s.path }

func (s *FileStore) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	return v, ok
}

func (s *FileStore) Set(values map[string]string, remove ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.copyLocked()
	for _, k := range remove {
		delete(next, k)
	}
	for k, v := range values {
		next[k] = v
	}
	if err := s.writeLocked(next); err != nil {
		return fmt.Errorf("credstore.Set: %w", err)
	}
	s.data = next
	return nil
}

func (s *FileStore) Delete(keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.copyLocked()
	for _, k := range keys {
		delete(next, k)
	}
	if len(next) == 0 {
		if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("credstore.Delete: %w", err)
		}
		s.data = next
		return nil
	}
	if err := s.writeLocked(next); err != nil {
		return fmt.Errorf("credstore.Delete: %w", err)
	}
	s.data = next
	return nil
}

func (s *FileStore) copyLocked() map[string]string {
	next := make(map[string]string, len(s.data))
	for k, v := range s.data {
		next[k] = v
	}
	return next
}

func (s *FileStore) writeLocked(data map[string]string) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".credentials-*")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck // no-op after a successful rename

	if err := tmp.Chmod(0600); err != nil {
		tmp.Close() //nolint:errcheck
		return fmt.Errorf("chmod temp: %w", err)
	}
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close() //nolint:errcheck
		return fmt.Errorf("write temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}
