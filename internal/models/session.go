package models

import (
	"fmt"
	"time"
)

// SessionState tracks the user's progress through the connection workflow.
type SessionState string

const (
	StateUnauthenticated   SessionState = "unauthenticated"
	StateAuthenticated     SessionState = "authenticated"
	StateModeSelected      SessionState = "mode_selected"
	StateWorkspaceSelected SessionState = "workspace_selected"
	StateReady             SessionState = "ready"
)

// Mode selects which family of tools is active.
type Mode string

const (
	ModeSemantic  Mode = "semantic"
	ModeWarehouse Mode = "warehouse"
)

func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeSemantic, ModeWarehouse:
		return Mode(s), nil
	}
	return "", NewError(ErrInvalidTransition, "unknown mode: %s", s)
}

// DatasetTarget identifies a connected semantic model.
type DatasetTarget struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

// WarehouseTarget identifies a connected warehouse. Database is mandatory:
// deriving it from the endpoint has selected the wrong database before.
type WarehouseTarget struct {
	Endpoint string `json:"endpoint" yaml:"endpoint"`
	Database string `json:"database" yaml:"database"`
}

// Session is the durable record of the current mode/workspace/target
// selection. At most one of Dataset/Warehouse is set, consistent with Mode.
type Session struct {
	State         SessionState     `json:"state" yaml:"state"`
	Mode          Mode             `json:"mode,omitempty" yaml:"mode,omitempty"`
	WorkspaceID   string           `json:"workspace_id,omitempty" yaml:"workspace_id,omitempty"`
	WorkspaceName string           `json:"workspace_name,omitempty" yaml:"workspace_name,omitempty"`
	Dataset       *DatasetTarget   `json:"dataset,omitempty" yaml:"dataset,omitempty"`
	Warehouse     *WarehouseTarget `json:"warehouse,omitempty" yaml:"warehouse,omitempty"`
	UpdatedAt     time.Time        `json:"updated_at" yaml:"updated_at"`
}

// NewSession returns an empty unauthenticated session.
func NewSession() Session {
	return Session{
		State:     StateUnauthenticated,
		UpdatedAt: time.Now().UTC(),
	}
}

// Validate checks the internal consistency of a stored session. A session
// failing validation must not be trusted; callers reset to unauthenticated.
func (s Session) Validate() error {
	if s.Dataset != nil && s.Warehouse != nil {
		return fmt.Errorf("session holds both a dataset and a warehouse target")
	}

	switch s.State {
	case StateUnauthenticated, StateAuthenticated:
		if len(s.Mode) > 0 || len(s.WorkspaceID) > 0 || s.Dataset != nil || s.Warehouse != nil {
			return fmt.Errorf("state %s must carry no selection", s.State)
		}
	case StateModeSelected:
		if _, err := ParseMode(string(s.Mode)); err != nil {
			return err
		}
		if len(s.WorkspaceID) > 0 || s.Dataset != nil || s.Warehouse != nil {
			return fmt.Errorf("state %s must carry no workspace or target", s.State)
		}
	case StateWorkspaceSelected:
		if _, err := ParseMode(string(s.Mode)); err != nil {
			return err
		}
		if len(s.WorkspaceID) == 0 {
			return fmt.Errorf("state %s requires a workspace", s.State)
		}
		if s.Dataset != nil || s.Warehouse != nil {
			return fmt.Errorf("state %s must carry no target", s.State)
		}
	case StateReady:
		if len(s.WorkspaceID) == 0 {
			return fmt.Errorf("state %s requires a workspace", s.State)
		}
		switch s.Mode {
		case ModeSemantic:
			if s.Dataset == nil || s.Warehouse != nil {
				return fmt.Errorf("semantic session requires a dataset target only")
			}
		case ModeWarehouse:
			if s.Warehouse == nil || s.Dataset != nil {
				return fmt.Errorf("warehouse session requires a warehouse target only")
			}
			if len(s.Warehouse.Database) == 0 {
				return fmt.Errorf("warehouse target requires an explicit database name")
			}
		default:
			return fmt.Errorf("state %s requires a valid mode", s.State)
		}
	default:
		return fmt.Errorf("unknown session state: %s", s.State)
	}

	return nil
}
