package auth

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/natefinch/atomic"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/fabric-gateway/agent/internal/models"
)

// Store is a keyed credential cache (scope -> credential). Implementations
// must be safe for concurrent readers; the manager serializes writers.
type Store interface {
	Get(scope string) (models.Credential, bool)
	Put(cred models.Credential) error
	Delete(scope string) error
	List() []models.Credential
}

// MemoryStore keeps credentials in process memory. Used by tests and as the
// fallback when no state directory is configured.
type MemoryStore struct {
	mu    sync.RWMutex
	creds map[string]models.Credential
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{creds: make(map[string]models.Credential)}
}

func (s *MemoryStore) Get(scope string) (models.Credential, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cred, ok := s.creds[scope]
	return cred, ok
}

func (s *MemoryStore) Put(cred models.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds[cred.Scope] = cred
	return nil
}

func (s *MemoryStore) Delete(scope string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.creds, scope)
	return nil
}

func (s *MemoryStore) List() []models.Credential {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Credential, 0, len(s.creds))
	for _, cred := range s.creds {
		out = append(out, cred)
	}
	return out
}

// FileStore persists the credential cache as owner-only YAML under the state
// directory. Writes go through atomic replace so a concurrently starting
// process never observes a partial file. A corrupt or unreadable cache is
// treated as empty, not fatal.
type FileStore struct {
	mu    sync.RWMutex
	path  string
	creds map[string]models.Credential
}

func NewFileStore(path string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create credential cache directory: %w", err)
	}

	store := &FileStore{
		path:  path,
		creds: make(map[string]models.Credential),
	}
	store.load()

	return store, nil
}

func (s *FileStore) load() {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			logrus.WithError(err).Warnln("Could not read credential cache, starting empty")
		}
		return
	}

	var creds map[string]models.Credential
	if err := yaml.Unmarshal(data, &creds); err != nil {
		logrus.WithError(err).Warnln("Credential cache is corrupt, starting empty")
		return
	}

	if creds != nil {
		s.creds = creds
	}
}

func (s *FileStore) Get(scope string) (models.Credential, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cred, ok := s.creds[scope]
	return cred, ok
}

func (s *FileStore) Put(cred models.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds[cred.Scope] = cred
	return s.commit()
}

func (s *FileStore) Delete(scope string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.creds, scope)
	return s.commit()
}

func (s *FileStore) List() []models.Credential {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Credential, 0, len(s.creds))
	for _, cred := range s.creds {
		out = append(out, cred)
	}
	return out
}

func (s *FileStore) commit() error {
	data, err := yaml.Marshal(s.creds)
	if err != nil {
		return fmt.Errorf("failed to encode credential cache: %w", err)
	}

	if err := atomic.WriteFile(s.path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write credential cache: %w", err)
	}

	// Cache holds live bearer tokens. Owner-only, always.
	if err := os.Chmod(s.path, 0600); err != nil {
		return fmt.Errorf("failed to restrict credential cache permissions: %w", err)
	}

	return nil
}
