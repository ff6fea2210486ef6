package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMode(t *testing.T) {
	tests := []struct {
		input   string
		want    Mode
		wantErr bool
	}{
		{"semantic", ModeSemantic, false},
		{"warehouse", ModeWarehouse, false},
		{"", "", true},
		{"Semantic", "", true},
		{"lakehouse", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			mode, err := ParseMode(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, IsKind(err, ErrInvalidTransition))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, mode)
		})
	}
}

func TestSessionValidate(t *testing.T) {
	dataset := &DatasetTarget{ID: "ds-1", Name: "Sales"}
	warehouse := &WarehouseTarget{Endpoint: "wh.example.net", Database: "analytics"}

	tests := []struct {
		name    string
		session Session
		wantErr bool
	}{
		{
			name:    "fresh session",
			session: NewSession(),
		},
		{
			name:    "authenticated without selection",
			session: Session{State: StateAuthenticated},
		},
		{
			name:    "authenticated with leftover mode",
			session: Session{State: StateAuthenticated, Mode: ModeSemantic},
			wantErr: true,
		},
		{
			name:    "mode selected",
			session: Session{State: StateModeSelected, Mode: ModeWarehouse},
		},
		{
			name:    "mode selected without mode",
			session: Session{State: StateModeSelected},
			wantErr: true,
		},
		{
			name:    "mode selected with workspace",
			session: Session{State: StateModeSelected, Mode: ModeSemantic, WorkspaceID: "ws-1"},
			wantErr: true,
		},
		{
			name:    "workspace selected",
			session: Session{State: StateWorkspaceSelected, Mode: ModeSemantic, WorkspaceID: "ws-1"},
		},
		{
			name:    "workspace selected without workspace",
			session: Session{State: StateWorkspaceSelected, Mode: ModeSemantic},
			wantErr: true,
		},
		{
			name: "ready semantic",
			session: Session{
				State: StateReady, Mode: ModeSemantic,
				WorkspaceID: "ws-1", Dataset: dataset,
			},
		},
		{
			name: "ready semantic without dataset",
			session: Session{
				State: StateReady, Mode: ModeSemantic, WorkspaceID: "ws-1",
			},
			wantErr: true,
		},
		{
			name: "ready warehouse",
			session: Session{
				State: StateReady, Mode: ModeWarehouse,
				WorkspaceID: "ws-1", Warehouse: warehouse,
			},
		},
		{
			name: "ready warehouse without database",
			session: Session{
				State: StateReady, Mode: ModeWarehouse, WorkspaceID: "ws-1",
				Warehouse: &WarehouseTarget{Endpoint: "wh.example.net"},
			},
			wantErr: true,
		},
		{
			name: "both targets set",
			session: Session{
				State: StateReady, Mode: ModeSemantic, WorkspaceID: "ws-1",
				Dataset: dataset, Warehouse: warehouse,
			},
			wantErr: true,
		},
		{
			name:    "unknown state",
			session: Session{State: "connected"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.session.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
