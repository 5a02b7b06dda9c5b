// internal/appclient/storage.go
package appclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/oklog/ulid/v2"
)

// Durable keys owned by the client. Exactly two pieces of state survive app
// restarts: the install-stable device id and the idempotency marker.
const (
	KeyDeviceID            = "device_id"
	KeyLastProcessedHandle = "last_processed_session_handle"
)

// ErrKeyNotFound is returned by Storage.Get for an absent key.
var ErrKeyNotFound = errors.New("storage key not found")

// Storage is the durable key-value capability the reconciliation flow
// persists its state through. It is an interface so tests can fake it.
type Storage interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Delete(key string) error
}

// FileStorage persists values as a single JSON file. Writes go through a
// temp file plus rename so a crash mid-write never corrupts the store.
type FileStorage struct {
	path string

	mu     sync.Mutex
	values map[string]string
}

func NewFileStorage(path string) (*FileStorage, error) {
	s := &FileStorage{path: path, values: make(map[string]string)}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("failed to read storage file: %w", err)
	}
	if err := json.Unmarshal(data, &s.values); err != nil {
		return nil, fmt.Errorf("failed to parse storage file: %w", err)
	}
	return s, nil
}

func (s *FileStorage) Get(key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.values[key]
	if !ok {
		return "", ErrKeyNotFound
	}
	return v, nil
}

func (s *FileStorage) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.values[key] = value
	return s.flush()
}

func (s *FileStorage) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.values, key)
	return s.flush()
}

func (s *FileStorage) flush() error {
	data, err := json.Marshal(s.values)
	if err != nil {
		return fmt.Errorf("failed to encode storage: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("failed to create storage dir: %w", err)
	}
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write storage: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to commit storage: %w", err)
	}
	return nil
}

// EnsureDeviceID returns the install-stable device id, generating and
// persisting one on first use.
func EnsureDeviceID(s Storage) (string, error) {
	id, err := s.Get(KeyDeviceID)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, ErrKeyNotFound) {
		return "", err
	}

	id = ulid.Make().String()
	if err := s.Set(KeyDeviceID, id); err != nil {
		return "", fmt.Errorf("failed to persist device id: %w", err)
	}
	return id, nil
}
