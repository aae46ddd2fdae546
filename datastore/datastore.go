package datastore

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("component", "datastore")

// Store is a string-keyed map persisted as one JSON file.
type Store[V any] struct {
	mu           sync.RWMutex
	file         string
	data         map[string]V
	lastChecksum string
}

// Open loads filePath, creating it and its directory when missing.
func Open[V any](filePath string) (*Store[V], error) {
	if filePath == "" {
		return nil, fmt.Errorf("file path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(filePath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	s := &Store[V]{file: filePath, data: make(map[string]V)}

	raw, err := os.ReadFile(filePath)
	switch {
	case os.IsNotExist(err):
		if err := s.writeFileAtomic([]byte("{}")); err != nil {
			return nil, fmt.Errorf("failed to create empty JSON file: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("failed to read file: %w", err)
	default:
		if err := json.Unmarshal(raw, &s.data); err != nil {
			return nil, fmt.Errorf("invalid JSON format in %s: %w", filePath, err)
		}
		if s.data == nil {
			s.data = make(map[string]V)
		}
		s.lastChecksum = checksum(raw)
	}
	return s, nil
}

func (s *Store[V]) Get(key string) (V, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	return v, ok
}

func (s *Store[V]) Set(key string, value V) {
	s.mu.Lock()
	s.data[key] = value
	s.mu.Unlock()
}

func (s *Store[V]) Delete(key string) {
	s.mu.Lock()
	delete(s.data, key)
	s.mu.Unlock()
}

// Keys returns the stored keys in sorted order.
func (s *Store[V]) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Sorted(maps.Keys(s.data))
}

// Save writes the map to disk. It is a no-op when nothing changed since
// the last load or save.
func (s *Store[V]) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal data: %w", err)
	}
	sum := checksum(data)
	if sum == s.lastChecksum {
		return nil
	}
	if err := s.writeFileAtomic(data); err != nil {
		return err
	}
	s.lastChecksum = sum
	log.WithField("file", s.file).Debug("saved")
	return nil
}

// writeFileAtomic writes through a synced temp file and renames it over the target.
func (s *Store[V]) writeFileAtomic(data []byte) error {
	tmpFile := s.file + ".tmp"

	f, err := os.OpenFile(tmpFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open temp file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmpFile)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpFile)
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	f.Close()

	if err := os.Rename(tmpFile, s.file); err != nil {
		os.Remove(tmpFile)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

func checksum(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}
