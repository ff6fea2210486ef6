package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fabric-gateway/agent/internal/models"
)

// Manager acquires, caches and invalidates credentials per scope. The two
// Fabric scopes are tracked independently and never mixed. Acquisitions for
// the same scope are serialized; concurrent reads of a fresh cached
// credential are safe.
type Manager struct {
	store  Store
	source Source

	mu    sync.Mutex
	locks map[string]*sync.Mutex

	// injectable clock for staleness tests
	now func() time.Time
}

func NewManager(store Store, source Source) *Manager {
	return &Manager{
		store:  store,
		source: source,
		locks:  make(map[string]*sync.Mutex),
		now:    time.Now,
	}
}

func (m *Manager) scopeLock(scope string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()

	lock, ok := m.locks[scope]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[scope] = lock
	}
	return lock
}

// Acquire returns a valid, non-stale credential for the scope. A fresh cache
// hit returns without network interaction. On miss or staleness the source
// flow runs and the result is persisted before it is returned.
func (m *Manager) Acquire(ctx context.Context, scope string) (models.Credential, error) {
	if len(scope) == 0 {
		return models.Credential{}, fmt.Errorf("scope is required")
	}

	lock := m.scopeLock(scope)
	lock.Lock()
	defer lock.Unlock()

	if cred, ok := m.store.Get(scope); ok {
		if cred.Scope != scope {
			// Never hand out a credential issued for another scope.
			logrus.WithFields(logrus.Fields{
				"requested": scope,
				"cached":    cred.Scope,
			}).Warnln("Credential cache entry has mismatched scope, discarding")
		} else if !cred.IsStaleAt(m.now()) {
			return cred, nil
		} else {
			logrus.WithFields(logrus.Fields{
				"scope":  scope,
				"expiry": cred.Expiry,
			}).Debugln("Cached credential is stale, refreshing")
		}
	}

	cred, err := m.source.Acquire(ctx, scope)
	if err != nil {
		return models.Credential{}, err
	}
	cred.Scope = scope

	// Persist before returning so a restart reuses this acquisition.
	if err := m.store.Put(cred); err != nil {
		return models.Credential{}, fmt.Errorf("failed to persist credential: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"scope":  scope,
		"expiry": cred.Expiry,
	}).Infoln("Acquired credential")

	return cred, nil
}

// InvalidateAll discards every cached credential, regardless of scope.
func (m *Manager) InvalidateAll() error {
	for _, cred := range m.store.List() {
		if err := m.Invalidate(cred.Scope); err != nil {
			return err
		}
	}
	return nil
}

// Cached returns the cached credential for a scope without triggering an
// acquisition. The second result reports whether a fresh credential exists.
func (m *Manager) Cached(scope string) (models.Credential, bool) {
	lock := m.scopeLock(scope)
	lock.Lock()
	defer lock.Unlock()

	cred, ok := m.store.Get(scope)
	if !ok || cred.Scope != scope || cred.IsStaleAt(m.now()) {
		return models.Credential{}, false
	}
	return cred, true
}

// Invalidate discards the cached credential for a scope, forcing the next
// Acquire to run the acquisition flow. Used after a downstream call reports
// an authorization failure attributable to a stale token.
func (m *Manager) Invalidate(scope string) error {
	lock := m.scopeLock(scope)
	lock.Lock()
	defer lock.Unlock()

	logrus.WithField("scope", scope).Debugln("Invalidating cached credential")
	return m.store.Delete(scope)
}
