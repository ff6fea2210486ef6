package session

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fabric-gateway/agent/internal/auth"
	"github.com/fabric-gateway/agent/internal/models"
)

type fakeSource struct {
	calls int
	err   error
}

func (f *fakeSource) Acquire(ctx context.Context, scope string) (models.Credential, error) {
	f.calls++
	if f.err != nil {
		return models.Credential{}, f.err
	}
	return models.Credential{
		Scope:  scope,
		Token:  "token",
		Expiry: time.Now().Add(time.Hour),
	}, nil
}

func newTestMachine(t *testing.T) (*Machine, *Store, *fakeSource) {
	t.Helper()

	store, err := NewStore(filepath.Join(t.TempDir(), "session.yaml"))
	require.NoError(t, err)

	source := &fakeSource{}
	creds := auth.NewManager(auth.NewMemoryStore(), source)

	return NewMachine(store, creds), store, source
}

// readyMachine walks a machine to ready state in the given mode.
func readyMachine(t *testing.T, mode models.Mode) (*Machine, *Store) {
	t.Helper()
	m, store, _ := newTestMachine(t)

	_, err := m.Authenticate(context.Background())
	require.NoError(t, err)
	_, err = m.SelectMode(mode)
	require.NoError(t, err)
	_, err = m.SelectWorkspace("ws-1", "Finance")
	require.NoError(t, err)

	switch mode {
	case models.ModeSemantic:
		_, err = m.ConnectDataset("ds-1", "Sales")
	case models.ModeWarehouse:
		_, err = m.ConnectWarehouse("wh.example.net", "analytics")
	}
	require.NoError(t, err)

	return m, store
}

func TestAuthenticate(t *testing.T) {
	m, store, source := newTestMachine(t)

	sess, err := m.Authenticate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.StateAuthenticated, sess.State)

	// Both scopes were acquired.
	assert.Equal(t, 2, source.calls)

	// The transition was persisted before being acknowledged.
	assert.Equal(t, models.StateAuthenticated, store.Load().State)

	// Re-authenticating is a no-op.
	sess, err = m.Authenticate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.StateAuthenticated, sess.State)
	assert.Equal(t, 2, source.calls)
}

func TestAuthenticateFailureLeavesSessionUnchanged(t *testing.T) {
	m, store, source := newTestMachine(t)
	source.err = models.NewError(models.ErrAuthUnavailable, "provider down")

	_, err := m.Authenticate(context.Background())
	require.Error(t, err)
	assert.True(t, models.IsKind(err, models.ErrAuthUnavailable))

	assert.Equal(t, models.StateUnauthenticated, m.Current().State)
	assert.Equal(t, models.StateUnauthenticated, store.Load().State)
}

func TestSelectModeRequiresAuthentication(t *testing.T) {
	m, _, _ := newTestMachine(t)

	_, err := m.SelectMode(models.ModeSemantic)
	require.Error(t, err)
	assert.True(t, models.IsKind(err, models.ErrInvalidTransition))
	assert.Equal(t, models.StateUnauthenticated, m.Current().State)
}

func TestSelectModeRejectsUnknownMode(t *testing.T) {
	m, _, _ := newTestMachine(t)
	_, err := m.Authenticate(context.Background())
	require.NoError(t, err)

	_, err = m.SelectMode("lakehouse")
	assert.Error(t, err)
}

func TestSelectModeSwitchClearsSelection(t *testing.T) {
	m, _ := readyMachine(t, models.ModeSemantic)

	sess, err := m.SelectMode(models.ModeWarehouse)
	require.NoError(t, err)

	assert.Equal(t, models.StateModeSelected, sess.State)
	assert.Equal(t, models.ModeWarehouse, sess.Mode)
	assert.Empty(t, sess.WorkspaceID)
	assert.Nil(t, sess.Dataset)
	assert.Nil(t, sess.Warehouse)
}

func TestSelectModeSameModeIsNoOp(t *testing.T) {
	m, _, _ := newTestMachine(t)
	_, err := m.Authenticate(context.Background())
	require.NoError(t, err)
	first, err := m.SelectMode(models.ModeSemantic)
	require.NoError(t, err)

	second, err := m.SelectMode(models.ModeSemantic)
	require.NoError(t, err)
	assert.Equal(t, first.UpdatedAt, second.UpdatedAt)
}

func TestSelectWorkspace(t *testing.T) {
	m, _, _ := newTestMachine(t)
	_, err := m.Authenticate(context.Background())
	require.NoError(t, err)
	_, err = m.SelectMode(models.ModeSemantic)
	require.NoError(t, err)

	sess, err := m.SelectWorkspace("ws-1", "Finance")
	require.NoError(t, err)
	assert.Equal(t, models.StateWorkspaceSelected, sess.State)
	assert.Equal(t, "ws-1", sess.WorkspaceID)
	assert.Equal(t, "Finance", sess.WorkspaceName)

	t.Run("same workspace is a no-op", func(t *testing.T) {
		again, err := m.SelectWorkspace("ws-1", "Finance")
		require.NoError(t, err)
		assert.Equal(t, sess.UpdatedAt, again.UpdatedAt)
	})

	t.Run("different workspace reselects", func(t *testing.T) {
		moved, err := m.SelectWorkspace("ws-2", "Marketing")
		require.NoError(t, err)
		assert.Equal(t, "ws-2", moved.WorkspaceID)
	})

	t.Run("empty id is rejected", func(t *testing.T) {
		_, err := m.SelectWorkspace("", "")
		assert.Error(t, err)
	})
}

func TestSelectWorkspaceRequiresMode(t *testing.T) {
	m, _, _ := newTestMachine(t)
	_, err := m.Authenticate(context.Background())
	require.NoError(t, err)

	_, err = m.SelectWorkspace("ws-1", "Finance")
	require.Error(t, err)
	assert.True(t, models.IsKind(err, models.ErrInvalidTransition))
}

func TestConnectDataset(t *testing.T) {
	m, store := readyMachine(t, models.ModeSemantic)

	sess := m.Current()
	assert.Equal(t, models.StateReady, sess.State)
	require.NotNil(t, sess.Dataset)
	assert.Equal(t, "ds-1", sess.Dataset.ID)
	assert.Nil(t, sess.Warehouse)

	// Durable across restart.
	restarted := store.Load()
	assert.Equal(t, models.StateReady, restarted.State)

	t.Run("same dataset is a no-op", func(t *testing.T) {
		again, err := m.ConnectDataset("ds-1", "Sales")
		require.NoError(t, err)
		assert.Equal(t, sess.UpdatedAt, again.UpdatedAt)
	})

	t.Run("retargeting from ready points back to mode selection", func(t *testing.T) {
		_, err := m.ConnectDataset("ds-2", "Other")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "select_mode")

		// The advertised next step must itself be valid from here.
		_, err = m.SelectWorkspace("ws-2", "Marketing")
		assert.Error(t, err)
	})
}

func TestConnectDatasetRequiresSemanticMode(t *testing.T) {
	m, _ := readyMachine(t, models.ModeWarehouse)

	_, err := m.ConnectDataset("ds-1", "Sales")
	require.Error(t, err)
	assert.True(t, models.IsKind(err, models.ErrInvalidTransition))
}

func TestConnectWarehouse(t *testing.T) {
	m, _ := readyMachine(t, models.ModeWarehouse)

	sess := m.Current()
	assert.Equal(t, models.StateReady, sess.State)
	require.NotNil(t, sess.Warehouse)
	assert.Equal(t, "analytics", sess.Warehouse.Database)
	assert.Nil(t, sess.Dataset)

	t.Run("same target is a no-op", func(t *testing.T) {
		again, err := m.ConnectWarehouse("wh.example.net", "analytics")
		require.NoError(t, err)
		assert.Equal(t, sess.UpdatedAt, again.UpdatedAt)
	})

	t.Run("retargeting from ready points back to mode selection", func(t *testing.T) {
		_, err := m.ConnectWarehouse("other.example.net", "analytics")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "select_mode")
	})
}

func TestConnectWarehouseRequiresDatabase(t *testing.T) {
	m, _, _ := newTestMachine(t)
	_, err := m.Authenticate(context.Background())
	require.NoError(t, err)
	_, err = m.SelectMode(models.ModeWarehouse)
	require.NoError(t, err)
	_, err = m.SelectWorkspace("ws-1", "Finance")
	require.NoError(t, err)

	_, err = m.ConnectWarehouse("wh.example.net", "")
	require.Error(t, err)
	assert.True(t, models.IsKind(err, models.ErrInvalidTransition))
	assert.Equal(t, models.StateWorkspaceSelected, m.Current().State)
}

func TestReset(t *testing.T) {
	m, store := readyMachine(t, models.ModeSemantic)

	sess, err := m.Reset()
	require.NoError(t, err)
	assert.Equal(t, models.StateUnauthenticated, sess.State)
	assert.Equal(t, models.StateUnauthenticated, store.Load().State)
}

func TestMachineRestoresPersistedSession(t *testing.T) {
	m, store := readyMachine(t, models.ModeSemantic)
	_ = m

	// A new machine over the same store resumes where the old one stopped.
	source := &fakeSource{}
	creds := auth.NewManager(auth.NewMemoryStore(), source)
	restarted := NewMachine(store, creds)

	sess := restarted.Current()
	assert.Equal(t, models.StateReady, sess.State)
	require.NotNil(t, sess.Dataset)
	assert.Equal(t, "ds-1", sess.Dataset.ID)
}
