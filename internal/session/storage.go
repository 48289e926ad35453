package session

import (
	"fmt"
	"os"
	"path/filepath"
)

// Durable entry names. The token and user identity are stored independently
// but always written and cleared as a pair by the Store.
const (
	TokenKey = "weather_app_token"
	UserKey  = "weather_app_user"
)

// Storage is the durable key-value backing for session state. Get reports
// ok=false on a missing key; Delete on a missing key is a no-op.
type Storage interface {
	Get(key string) ([]byte, bool, error)
	Set(key string, value []byte) error
	Delete(key string) error
}

// FileStorage keeps each entry as a file under a state directory. Files are
// created with 0600 since one of them holds the bearer token.
type FileStorage struct {
	dir string
}

// NewFileStorage creates the state directory if needed.
func NewFileStorage(dir string) (*FileStorage, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	return &FileStorage{dir: dir}, nil
}

func (s *FileStorage) path(key string) string {
	return filepath.Join(s.dir, key)
}

// Get reads the entry for key. Returns ok=false when the entry does not exist.
func (s *FileStorage) Get(key string) ([]byte, bool, error) {
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("read %s: %w", key, err)
	}
	return data, true, nil
}

// Set writes the entry for key, replacing any previous value.
func (s *FileStorage) Set(key string, value []byte) error {
	if err := os.WriteFile(s.path(key), value, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

// Delete removes the entry for key. Missing entries are not an error.
func (s *FileStorage) Delete(key string) error {
	if err := os.Remove(s.path(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// MemoryStorage is an in-process Storage for tests and ephemeral sessions.
type MemoryStorage struct {
	entries map[string][]byte
}

// NewMemoryStorage returns an empty MemoryStorage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{entries: make(map[string][]byte)}
}

func (s *MemoryStorage) Get(key string) ([]byte, bool, error) {
	v, ok := s.entries[key]
	return v, ok, nil
}

func (s *MemoryStorage) Set(key string, value []byte) error {
	s.entries[key] = append([]byte(nil), value...)
	return nil
}

func (s *MemoryStorage) Delete(key string) error {
	delete(s.entries, key)
	return nil
}
