package tools

import (
	"github.com/fabric-gateway/agent/internal/models"
)

// ToolDef describes one callable tool. Mode-scoped tools are only listed and
// dispatchable while their mode is active.
type ToolDef struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`

	// Mode restricts the tool to one connection mode; empty means the tool
	// is always available.
	Mode models.Mode `json:"-"`
}

func objectSchema(required []string, props map[string]any) map[string]any {
	schema := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func stringProp(description string) map[string]any {
	return map[string]any{"type": "string", "description": description}
}

// sessionTools are available in every mode.
var sessionTools = []ToolDef{
	{
		Name:        "get_context",
		Description: "Show the current session: state, mode, workspace and connected target",
		InputSchema: objectSchema(nil, map[string]any{}),
	},
	{
		Name:        "authenticate",
		Description: "Sign in to Microsoft Fabric (acquires credentials for both service scopes)",
		InputSchema: objectSchema(nil, map[string]any{}),
	},
	{
		Name:        "select_mode",
		Description: "Select the connection mode: 'semantic' or 'warehouse'. Clears workspace and target selection.",
		InputSchema: objectSchema([]string{"mode"}, map[string]any{
			"mode": stringProp("Connection mode: semantic or warehouse"),
		}),
	},
	{
		Name:        "select_workspace",
		Description: "Select the active workspace",
		InputSchema: objectSchema([]string{"workspace_id"}, map[string]any{
			"workspace_id":   stringProp("Workspace GUID"),
			"workspace_name": stringProp("Optional workspace display name"),
		}),
	},
	{
		Name:        "reset",
		Description: "Clear the session entirely and return to the unauthenticated state",
		InputSchema: objectSchema(nil, map[string]any{}),
	},
}

var semanticTools = []ToolDef{
	{
		Name:        "list_workspaces",
		Description: "List all Power BI workspaces accessible to the user",
		InputSchema: objectSchema(nil, map[string]any{}),
		Mode:        models.ModeSemantic,
	},
	{
		Name:        "list_datasets",
		Description: "List semantic models (datasets) in a workspace",
		InputSchema: objectSchema(nil, map[string]any{
			"workspace_id": stringProp("Optional workspace ID, defaults to the selected workspace"),
		}),
		Mode: models.ModeSemantic,
	},
	{
		Name:        "connect_dataset",
		Description: "Connect to a semantic model for queries and model writes",
		InputSchema: objectSchema([]string{"dataset_id"}, map[string]any{
			"dataset_id": stringProp("Dataset GUID"),
		}),
		Mode: models.ModeSemantic,
	},
	{
		Name:        "get_tables",
		Description: "Get all tables in the connected model with column counts",
		InputSchema: objectSchema(nil, map[string]any{}),
		Mode:        models.ModeSemantic,
	},
	{
		Name:        "get_columns",
		Description: "Get detailed column info, optionally filtered by table",
		InputSchema: objectSchema(nil, map[string]any{
			"table_name": stringProp("Optional table name filter"),
		}),
		Mode: models.ModeSemantic,
	},
	{
		Name:        "get_measures",
		Description: "Get all measures in the model (requires Premium/Fabric capacity)",
		InputSchema: objectSchema(nil, map[string]any{}),
		Mode:        models.ModeSemantic,
	},
	{
		Name:        "get_relationships",
		Description: "Get all relationships in the model (requires Premium/Fabric capacity)",
		InputSchema: objectSchema(nil, map[string]any{}),
		Mode:        models.ModeSemantic,
	},
	{
		Name:        "execute_dax",
		Description: "Execute a DAX query on the connected model",
		InputSchema: objectSchema([]string{"query"}, map[string]any{
			"query": stringProp("DAX query starting with EVALUATE"),
		}),
		Mode: models.ModeSemantic,
	},
	{
		Name:        "get_dataset_info",
		Description: "Get metadata about the connected dataset",
		InputSchema: objectSchema(nil, map[string]any{}),
		Mode:        models.ModeSemantic,
	},
	{
		Name:        "refresh_dataset",
		Description: "Trigger a refresh of the connected dataset",
		InputSchema: objectSchema(nil, map[string]any{}),
		Mode:        models.ModeSemantic,
	},
	{
		Name:        "create_measure",
		Description: "Create or update a measure in the connected model",
		InputSchema: objectSchema([]string{"table_name", "name", "expression"}, map[string]any{
			"table_name":    stringProp("Table to add the measure to"),
			"name":          stringProp("Measure name"),
			"expression":    stringProp("DAX expression"),
			"description":   stringProp("Optional description"),
			"format_string": stringProp("Optional format string, e.g. #,##0.00"),
		}),
		Mode: models.ModeSemantic,
	},
	{
		Name:        "delete_measure",
		Description: "Delete a measure from the connected model (no-op if absent)",
		InputSchema: objectSchema([]string{"table_name", "name"}, map[string]any{
			"table_name": stringProp("Table containing the measure"),
			"name":       stringProp("Measure name to delete"),
		}),
		Mode: models.ModeSemantic,
	},
	{
		Name:        "delete_relationship",
		Description: "Delete a relationship from the connected model by name (no-op if absent)",
		InputSchema: objectSchema([]string{"name"}, map[string]any{
			"name": stringProp("Relationship name, matched case-insensitively"),
		}),
		Mode: models.ModeSemantic,
	},
}

var warehouseTools = []ToolDef{
	{
		Name:        "connect_warehouse",
		Description: "Connect to a warehouse SQL endpoint. The database name is mandatory.",
		InputSchema: objectSchema([]string{"endpoint", "database"}, map[string]any{
			"endpoint": stringProp("Warehouse SQL endpoint hostname"),
			"database": stringProp("Explicit database name"),
		}),
		Mode: models.ModeWarehouse,
	},
	{
		Name:        "get_warehouse_tables",
		Description: "List all tables in the warehouse, optionally filtered by schema",
		InputSchema: objectSchema(nil, map[string]any{
			"schema": stringProp("Optional schema filter"),
		}),
		Mode: models.ModeWarehouse,
	},
	{
		Name:        "describe_table",
		Description: "Get column definitions for a warehouse table",
		InputSchema: objectSchema([]string{"table_name"}, map[string]any{
			"table_name": stringProp("Table name"),
			"schema":     stringProp("Schema name, default dbo"),
		}),
		Mode: models.ModeWarehouse,
	},
	{
		Name:        "execute_sql",
		Description: "Execute a SQL query against the connected warehouse",
		InputSchema: objectSchema([]string{"query"}, map[string]any{
			"query": stringProp("SQL statement"),
		}),
		Mode: models.ModeWarehouse,
	},
}

// ToolsForMode returns the session tools plus the active mode's tools. With
// no mode selected only the session tools are exposed.
func ToolsForMode(mode models.Mode) []ToolDef {
	out := make([]ToolDef, 0, len(sessionTools)+len(semanticTools))
	out = append(out, sessionTools...)

	switch mode {
	case models.ModeSemantic:
		out = append(out, semanticTools...)
	case models.ModeWarehouse:
		out = append(out, warehouseTools...)
	}

	return out
}

// lookupTool finds a tool definition by name across all registries.
func lookupTool(name string) (ToolDef, bool) {
	for _, set := range [][]ToolDef{sessionTools, semanticTools, warehouseTools} {
		for _, def := range set {
			if def.Name == name {
				return def, true
			}
		}
	}
	return ToolDef{}, false
}
