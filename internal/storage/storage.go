package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"sync"
)

// Store is persistent key/value device storage. Values are opaque strings.
type Store interface {
	// Get returns the value and whether the key was present.
	Get(ctx context.Context, key string) (string, bool, error)
	// SetMany writes all pairs or none of them.
	SetMany(ctx context.Context, values map[string]string) error
	// Remove deletes the keys. Missing keys are not an error.
	Remove(ctx context.Context, keys ...string) error
}

var validKey = regexp.MustCompile(`^[A-Za-z0-9_.-]{1,64}$`)

func checkKey(key string) error {
	if !validKey.MatchString(key) {
		return fmt.Errorf("invalid storage key %q", key)
	}
	return nil
}

// FileStore keeps every key in its own JSON file under a base directory.
type FileStore struct {
	basePath string
	mu       sync.Mutex
}

type fileRecord struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// NewFileStore creates a new FileStore and ensures the base directory exists.
func NewFileStore(basePath string) (*FileStore, error) {
	if err := os.MkdirAll(basePath, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create storage directory %s: %w", basePath, err)
	}
	return &FileStore{basePath: basePath}, nil
}

func (s *FileStore) path(key string) string {
	return filepath.Join(s.basePath, key+".json")
}

// Get reads the file of a key.
func (s *FileStore) Get(ctx context.Context, key string) (string, bool, error) {
	if err := checkKey(key); err != nil {
		return "", false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read %s: %w", key, err)
	}

	var rec fileRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return "", false, fmt.Errorf("failed to unmarshal %s: %w", key, err)
	}
	return rec.Value, true, nil
}

// SetMany writes every value to a temp file first and renames them into
// place once all writes succeeded.
func (s *FileStore) SetMany(ctx context.Context, values map[string]string) error {
	keys := make([]string, 0, len(values))
	for k := range values {
		if err := checkKey(k); err != nil {
			return err
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	s.mu.Lock()
	defer s.mu.Unlock()

	temps := make(map[string]string, len(keys))
	cleanup := func() {
		for _, tmp := range temps {
			_ = os.Remove(tmp)
		}
	}
	for _, k := range keys {
		data, err := json.MarshalIndent(fileRecord{Key: k, Value: values[k]}, "", "  ")
		if err != nil {
			cleanup()
			return fmt.Errorf("failed to marshal %s: %w", k, err)
		}
		tmp := s.path(k) + ".tmp"
		if err := os.WriteFile(tmp, data, 0o600); err != nil {
			cleanup()
			return fmt.Errorf("failed to write %s: %w", k, err)
		}
		temps[k] = tmp
	}
	for _, k := range keys {
		if err := os.Rename(temps[k], s.path(k)); err != nil {
			cleanup()
			return fmt.Errorf("failed to commit %s: %w", k, err)
		}
		delete(temps, k)
	}
	return nil
}

// Remove deletes the files of the given keys.
func (s *FileStore) Remove(ctx context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, k := range keys {
		if err := checkKey(k); err != nil {
			return err
		}
		if err := os.Remove(s.path(k)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to remove %s: %w", k, err)
		}
	}
	return nil
}

// Keys lists the keys currently stored.
func (s *FileStore) Keys() ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(s.basePath, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("failed to glob storage files: %w", err)
	}
	keys := make([]string, 0, len(matches))
	for _, m := range matches {
		base := filepath.Base(m)
		keys = append(keys, base[:len(base)-len(".json")])
	}
	sort.Strings(keys)
	return keys, nil
}

// MemoryStore is a Store that lives only as long as the process.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

func (s *MemoryStore) Get(ctx context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok, nil
}

func (s *MemoryStore) SetMany(ctx context.Context, values map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range values {
		s.values[k] = v
	}
	return nil
}

func (s *MemoryStore) Remove(ctx context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.values, k)
	}
	return nil
}

// Len reports how many keys are stored.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.values)
}
