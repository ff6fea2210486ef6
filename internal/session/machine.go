package session

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fabric-gateway/agent/internal/auth"
	"github.com/fabric-gateway/agent/internal/models"
)

// Machine owns the session and governs its transitions. All transitions are
// serialized behind one mutex; each successful transition is persisted
// before it is acknowledged to the caller.
type Machine struct {
	mu      sync.Mutex
	store   *Store
	creds   *auth.Manager
	session models.Session
}

func NewMachine(store *Store, creds *auth.Manager) *Machine {
	return &Machine{
		store:   store,
		creds:   creds,
		session: store.Load(),
	}
}

// Current returns a snapshot of the session.
func (m *Machine) Current() models.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session
}

// apply persists the candidate session and only then installs it in memory.
// A crash between the two steps leaves disk ahead of memory, never behind.
func (m *Machine) apply(next models.Session) error {
	next.UpdatedAt = time.Now().UTC()
	if err := m.store.Save(next); err != nil {
		return err
	}
	m.session = next
	return nil
}

// Authenticate acquires credentials for both scopes and moves the session to
// authenticated. Re-authenticating an already authenticated session is a
// no-op. On failure the session is left unchanged.
func (m *Machine) Authenticate(ctx context.Context) (models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session.State != models.StateUnauthenticated {
		return m.session, nil
	}

	for _, scope := range []string{models.ScopeAnalytics, models.ScopeSQL} {
		if _, err := m.creds.Acquire(ctx, scope); err != nil {
			return m.session, err
		}
	}

	next := models.NewSession()
	next.State = models.StateAuthenticated

	if err := m.apply(next); err != nil {
		return m.session, err
	}

	logrus.Infoln("Session authenticated")
	return m.session, nil
}

// SelectMode moves the session to mode-selected, clearing any previously
// selected workspace and target. Workspace lists and target semantics differ
// per mode, so a mode switch always invalidates downstream selection.
func (m *Machine) SelectMode(mode models.Mode) (models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := models.ParseMode(string(mode)); err != nil {
		return m.session, err
	}

	if m.session.State == models.StateUnauthenticated {
		return m.session, m.transitionError("select_mode", "authenticate")
	}

	if m.session.State == models.StateModeSelected && m.session.Mode == mode {
		return m.session, nil
	}

	next := models.NewSession()
	next.State = models.StateModeSelected
	next.Mode = mode

	if err := m.apply(next); err != nil {
		return m.session, err
	}

	logrus.WithField("mode", mode).Infoln("Mode selected")
	return m.session, nil
}

// SelectWorkspace moves the session to workspace-selected. Requires a mode.
func (m *Machine) SelectWorkspace(id, name string) (models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(id) == 0 {
		return m.session, models.NewError(models.ErrInvalidTransition, "workspace id is required")
	}

	switch m.session.State {
	case models.StateModeSelected:
	case models.StateWorkspaceSelected:
		if m.session.WorkspaceID == id {
			return m.session, nil
		}
	default:
		return m.session, m.transitionError("select_workspace", "select_mode")
	}

	next := models.NewSession()
	next.State = models.StateWorkspaceSelected
	next.Mode = m.session.Mode
	next.WorkspaceID = id
	next.WorkspaceName = name

	if err := m.apply(next); err != nil {
		return m.session, err
	}

	logrus.WithFields(logrus.Fields{
		"workspace": id,
		"name":      name,
	}).Infoln("Workspace selected")
	return m.session, nil
}

// ConnectDataset moves a semantic-mode session to ready with a dataset
// target.
func (m *Machine) ConnectDataset(id, name string) (models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(id) == 0 {
		return m.session, models.NewError(models.ErrInvalidTransition, "dataset id is required")
	}

	if m.session.Mode != models.ModeSemantic {
		return m.session, models.NewError(models.ErrInvalidTransition,
			"connect_dataset requires semantic mode, current mode is %q", m.session.Mode)
	}

	switch m.session.State {
	case models.StateWorkspaceSelected:
	case models.StateReady:
		if m.session.Dataset != nil && m.session.Dataset.ID == id {
			return m.session, nil
		}
		// Retargeting from ready means starting over at mode selection;
		// select_workspace itself is not valid here.
		return m.session, m.transitionError("connect_dataset", "select_mode")
	default:
		return m.session, m.transitionError("connect_dataset", "select_workspace")
	}

	next := m.session
	next.State = models.StateReady
	next.Dataset = &models.DatasetTarget{ID: id, Name: name}
	next.Warehouse = nil

	if err := m.apply(next); err != nil {
		return m.session, err
	}

	logrus.WithFields(logrus.Fields{
		"dataset": id,
		"name":    name,
	}).Infoln("Dataset connected")
	return m.session, nil
}

// ConnectWarehouse moves a warehouse-mode session to ready. The database
// name is mandatory and explicit; it is never inferred from the endpoint.
func (m *Machine) ConnectWarehouse(endpoint, database string) (models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(endpoint) == 0 {
		return m.session, models.NewError(models.ErrInvalidTransition, "warehouse endpoint is required")
	}
	if len(database) == 0 {
		return m.session, models.NewError(models.ErrInvalidTransition, "warehouse database name is required")
	}

	if m.session.Mode != models.ModeWarehouse {
		return m.session, models.NewError(models.ErrInvalidTransition,
			"connect_warehouse requires warehouse mode, current mode is %q", m.session.Mode)
	}

	switch m.session.State {
	case models.StateWorkspaceSelected:
	case models.StateReady:
		if m.session.Warehouse != nil &&
			m.session.Warehouse.Endpoint == endpoint &&
			m.session.Warehouse.Database == database {
			return m.session, nil
		}
		return m.session, m.transitionError("connect_warehouse", "select_mode")
	default:
		return m.session, m.transitionError("connect_warehouse", "select_workspace")
	}

	next := m.session
	next.State = models.StateReady
	next.Warehouse = &models.WarehouseTarget{Endpoint: endpoint, Database: database}
	next.Dataset = nil

	if err := m.apply(next); err != nil {
		return m.session, err
	}

	logrus.WithFields(logrus.Fields{
		"endpoint": endpoint,
		"database": database,
	}).Infoln("Warehouse connected")
	return m.session, nil
}

// Reset clears the persisted session entirely and returns to
// unauthenticated.
func (m *Machine) Reset() (models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.store.Clear(); err != nil {
		return m.session, err
	}
	m.session = models.NewSession()

	logrus.Infoln("Session reset")
	return m.session, nil
}

func (m *Machine) transitionError(attempted, next string) error {
	return models.NewError(models.ErrInvalidTransition,
		"%s is not valid in state %q, next step: %s", attempted, m.session.State, next)
}
