package tools

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/fabric-gateway/agent/internal/auth"
	"github.com/fabric-gateway/agent/internal/bridge"
	"github.com/fabric-gateway/agent/internal/models"
	"github.com/fabric-gateway/agent/internal/semantic"
	"github.com/fabric-gateway/agent/internal/session"
	"github.com/fabric-gateway/agent/internal/warehouse"
)

// Dispatcher routes validated tool calls into the session machine, the
// adapters and the operation bridge. It returns structured payloads or typed
// errors; it never writes to stdout.
type Dispatcher struct {
	machine   *session.Machine
	creds     *auth.Manager
	semantic  *semantic.Adapter
	warehouse *warehouse.Adapter
	bridge    *bridge.Bridge
}

func NewDispatcher(
	machine *session.Machine,
	creds *auth.Manager,
	semanticAdapter *semantic.Adapter,
	warehouseAdapter *warehouse.Adapter,
	opBridge *bridge.Bridge,
) *Dispatcher {
	return &Dispatcher{
		machine:   machine,
		creds:     creds,
		semantic:  semanticAdapter,
		warehouse: warehouseAdapter,
		bridge:    opBridge,
	}
}

// Tools lists the tool definitions for the session's current mode.
func (d *Dispatcher) Tools() []ToolDef {
	return ToolsForMode(d.machine.Current().Mode)
}

// Dispatch executes one tool call.
func (d *Dispatcher) Dispatch(ctx context.Context, name string, args map[string]any) (any, error) {

	def, ok := lookupTool(name)
	if !ok {
		return nil, models.NewError(models.ErrInvalidOperation, "unknown tool: %s", name)
	}

	sess := d.machine.Current()
	if len(def.Mode) > 0 && def.Mode != sess.Mode {
		return nil, models.NewError(models.ErrInvalidTransition,
			"%s requires %s mode, current mode is %q; use select_mode first", name, def.Mode, sess.Mode)
	}

	logrus.WithFields(logrus.Fields{
		"tool":  name,
		"state": sess.State,
	}).Debugln("Dispatching tool call")

	switch name {
	case "get_context":
		return d.contextSummary(), nil
	case "authenticate":
		sess, err := d.machine.Authenticate(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]any{"status": "authenticated", "state": sess.State}, nil
	case "select_mode":
		mode, err := models.ParseMode(argString(args, "mode"))
		if err != nil {
			return nil, err
		}
		sess, err := d.machine.SelectMode(mode)
		if err != nil {
			return nil, err
		}
		return map[string]any{"status": "mode_selected", "mode": sess.Mode}, nil
	case "select_workspace":
		return d.selectWorkspace(ctx, args)
	case "reset":
		if _, err := d.machine.Reset(); err != nil {
			return nil, err
		}
		return map[string]any{"status": "reset"}, nil

	case "list_workspaces":
		workspaces, err := d.semantic.ListWorkspaces(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]any{"workspaces": workspaces}, nil
	case "list_datasets":
		return d.listDatasets(ctx, args)
	case "connect_dataset":
		return d.connectDataset(ctx, args)
	case "get_tables":
		return d.withDataset(func(sess models.Session) (any, error) {
			tables, err := d.semantic.ListTables(ctx, sess.WorkspaceID, sess.Dataset.ID)
			if err != nil {
				return nil, err
			}
			names := make([]string, 0, len(tables))
			for name := range tables {
				names = append(names, name)
			}
			return map[string]any{"tables": names, "column_counts": tables}, nil
		})
	case "get_columns":
		return d.withDataset(func(sess models.Session) (any, error) {
			columns, err := d.semantic.ListColumns(ctx, sess.WorkspaceID, sess.Dataset.ID, argString(args, "table_name"))
			if err != nil {
				return nil, err
			}
			return map[string]any{"columns": columns}, nil
		})
	case "get_measures":
		return d.withDataset(func(sess models.Session) (any, error) {
			measures, err := d.semantic.ListMeasures(ctx, sess.WorkspaceID, sess.Dataset.ID)
			if err != nil {
				return nil, err
			}
			return map[string]any{"measures": measures}, nil
		})
	case "get_relationships":
		return d.withDataset(func(sess models.Session) (any, error) {
			relationships, err := d.semantic.ListRelationships(ctx, sess.WorkspaceID, sess.Dataset.ID)
			if err != nil {
				return nil, err
			}
			return map[string]any{"relationships": relationships}, nil
		})
	case "execute_dax":
		return d.withDataset(func(sess models.Session) (any, error) {
			result, err := d.semantic.ExecuteDAX(ctx, sess.WorkspaceID, sess.Dataset.ID, argString(args, "query"))
			if err != nil {
				return nil, err
			}
			return map[string]any{"rows": result.Rows, "row_count": len(result.Rows)}, nil
		})
	case "get_dataset_info":
		return d.withDataset(func(sess models.Session) (any, error) {
			info, err := d.semantic.DatasetInfo(ctx, sess.WorkspaceID, sess.Dataset.ID)
			if err != nil {
				return nil, err
			}
			return map[string]any{"dataset": info}, nil
		})
	case "refresh_dataset":
		return d.withDataset(func(sess models.Session) (any, error) {
			if err := d.semantic.TriggerRefresh(ctx, sess.WorkspaceID, sess.Dataset.ID); err != nil {
				return nil, err
			}
			return map[string]any{"status": "refresh_triggered"}, nil
		})
	case "create_measure":
		return d.createMeasure(ctx, args)
	case "delete_measure":
		return d.deleteMeasure(ctx, args)
	case "delete_relationship":
		return d.deleteRelationship(ctx, args)

	case "connect_warehouse":
		sess, err := d.machine.ConnectWarehouse(argString(args, "endpoint"), argString(args, "database"))
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"status":   "connected",
			"endpoint": sess.Warehouse.Endpoint,
			"database": sess.Warehouse.Database,
		}, nil
	case "get_warehouse_tables":
		return d.withWarehouse(func(sess models.Session) (any, error) {
			tables, err := d.warehouse.ListTables(ctx, *sess.Warehouse, argString(args, "schema"))
			if err != nil {
				return nil, err
			}
			return map[string]any{"tables": tables}, nil
		})
	case "describe_table":
		return d.withWarehouse(func(sess models.Session) (any, error) {
			schema := argString(args, "schema")
			table := argString(args, "table_name")

			columns, err := d.warehouse.DescribeTable(ctx, *sess.Warehouse, schema, table)
			if err != nil {
				return nil, err
			}

			payload := map[string]any{"columns": columns}
			if sample, err := d.warehouse.SampleRows(ctx, *sess.Warehouse, schema, table); err == nil && len(sample) > 0 {
				payload["sample_rows"] = sample
			} else if err != nil {
				logrus.WithError(err).Debugln("Could not sample table rows")
			}
			return payload, nil
		})
	case "execute_sql":
		return d.withWarehouse(func(sess models.Session) (any, error) {
			result, err := d.warehouse.ExecuteSQL(ctx, *sess.Warehouse, argString(args, "query"))
			if err != nil {
				return nil, err
			}
			return result, nil
		})
	}

	return nil, models.NewError(models.ErrInvalidOperation, "tool %s is not implemented", name)
}

func (d *Dispatcher) contextSummary() map[string]any {
	sess := d.machine.Current()

	summary := map[string]any{
		"state": sess.State,
		"mode":  sess.Mode,
	}
	if len(sess.WorkspaceID) > 0 {
		summary["workspace_id"] = sess.WorkspaceID
		summary["workspace_name"] = sess.WorkspaceName
	}
	if sess.Dataset != nil {
		summary["dataset"] = sess.Dataset
	}
	if sess.Warehouse != nil {
		summary["warehouse"] = sess.Warehouse
	}
	return summary
}

func (d *Dispatcher) selectWorkspace(ctx context.Context, args map[string]any) (any, error) {
	id := argString(args, "workspace_id")
	name := argString(args, "workspace_name")

	// The workspace display name is needed to build the XMLA endpoint for
	// write delegation; resolve it when the caller only supplied the id.
	if len(name) == 0 && d.machine.Current().Mode == models.ModeSemantic {
		workspaces, err := d.semantic.ListWorkspaces(ctx)
		if err == nil {
			for _, ws := range workspaces {
				if ws.ID == id {
					name = ws.Name
					break
				}
			}
		} else {
			logrus.WithError(err).Warnln("Could not resolve workspace name")
		}
	}

	sess, err := d.machine.SelectWorkspace(id, name)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"status":         "workspace_selected",
		"workspace_id":   sess.WorkspaceID,
		"workspace_name": sess.WorkspaceName,
	}, nil
}

func (d *Dispatcher) listDatasets(ctx context.Context, args map[string]any) (any, error) {
	workspaceID := argString(args, "workspace_id")
	if len(workspaceID) == 0 {
		workspaceID = d.machine.Current().WorkspaceID
	}
	if len(workspaceID) == 0 {
		return nil, models.NewError(models.ErrInvalidTransition,
			"no workspace selected; use select_workspace or pass workspace_id")
	}

	datasets, err := d.semantic.ListDatasets(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"datasets": datasets}, nil
}

func (d *Dispatcher) connectDataset(ctx context.Context, args map[string]any) (any, error) {
	id := argString(args, "dataset_id")

	// Resolve the dataset name: the executor needs it as the database of a
	// write operation, and the id is a poor fallback there.
	name := ""
	sess := d.machine.Current()
	if len(sess.WorkspaceID) > 0 {
		datasets, err := d.semantic.ListDatasets(ctx, sess.WorkspaceID)
		if err == nil {
			for _, ds := range datasets {
				if ds.ID == id {
					name = ds.Name
					break
				}
			}
		} else {
			logrus.WithError(err).Warnln("Could not resolve dataset name")
		}
	}
	if len(name) == 0 {
		name = id
	}

	connected, err := d.machine.ConnectDataset(id, name)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"status":  "connected",
		"dataset": connected.Dataset,
	}, nil
}

// withDataset runs fn with a session that is ready in semantic mode.
func (d *Dispatcher) withDataset(fn func(models.Session) (any, error)) (any, error) {
	sess := d.machine.Current()
	if sess.State != models.StateReady || sess.Dataset == nil {
		return nil, models.NewError(models.ErrInvalidTransition,
			"no dataset connected (state %q); use connect_dataset first", sess.State)
	}
	return fn(sess)
}

// withWarehouse runs fn with a session that is ready in warehouse mode.
func (d *Dispatcher) withWarehouse(fn func(models.Session) (any, error)) (any, error) {
	sess := d.machine.Current()
	if sess.State != models.StateReady || sess.Warehouse == nil {
		return nil, models.NewError(models.ErrInvalidTransition,
			"no warehouse connected (state %q); use connect_warehouse first", sess.State)
	}
	return fn(sess)
}

func argString(args map[string]any, key string) string {
	if args == nil {
		return ""
	}
	if value, ok := args[key].(string); ok {
		return value
	}
	return ""
}
