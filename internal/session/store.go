package session

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/natefinch/atomic"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/fabric-gateway/agent/internal/models"
)

// Store persists the session snapshot as owner-only YAML at a well-known
// path. Writes use atomic replace; a concurrently starting process instance
// never reads a partial file.
type Store struct {
	path string
}

func NewStore(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create session directory: %w", err)
	}
	return &Store{path: path}, nil
}

// Load returns the stored session, revalidated. A missing, unreadable,
// corrupt or internally inconsistent record is not trusted: the caller gets
// a fresh unauthenticated session instead.
func (s *Store) Load() models.Session {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			logrus.WithError(err).Warnln("Could not read session file, starting fresh")
		}
		return models.NewSession()
	}

	var sess models.Session
	if err := yaml.Unmarshal(data, &sess); err != nil {
		logrus.WithError(err).Warnln("Session file is corrupt, starting fresh")
		return models.NewSession()
	}

	if err := sess.Validate(); err != nil {
		logrus.WithError(err).Warnln("Stored session is inconsistent, starting fresh")
		return models.NewSession()
	}

	return sess
}

// Save writes the session snapshot. Callers persist before applying the
// transition in memory, so an acknowledged transition is always durable.
func (s *Store) Save(sess models.Session) error {
	data, err := yaml.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	if err := atomic.WriteFile(s.path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}

	if err := os.Chmod(s.path, 0600); err != nil {
		return fmt.Errorf("failed to restrict session file permissions: %w", err)
	}

	return nil
}

// Clear removes the persisted session entirely.
func (s *Store) Clear() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove session file: %w", err)
	}
	return nil
}
