package semantic

import (
	"context"
	"fmt"
)

// DAX introspection queries. INFO.* functions require Premium/Fabric
// capacity; COLUMNSTATISTICS works on Pro as well.
const (
	daxColumnStatistics = "EVALUATE COLUMNSTATISTICS()"

	daxMeasures = `EVALUATE SELECTCOLUMNS(
    INFO.MEASURES(),
    "TableID", [TableID],
    "Name", [Name],
    "Expression", [Expression],
    "Description", [Description],
    "DataType", [DataType],
    "IsHidden", [IsHidden]
)`

	daxRelationships = `EVALUATE SELECTCOLUMNS(
    INFO.RELATIONSHIPS(),
    "ID", [ID],
    "FromTableID", [FromTableID],
    "FromColumnID", [FromColumnID],
    "ToTableID", [ToTableID],
    "ToColumnID", [ToColumnID],
    "IsActive", [IsActive],
    "CrossFilteringBehavior", [CrossFilteringBehavior]
)`
)

// ColumnInfo describes one column discovered via COLUMNSTATISTICS.
type ColumnInfo struct {
	Table       string `json:"table"`
	Column      string `json:"column"`
	Cardinality any    `json:"cardinality,omitempty"`
	MaxLength   any    `json:"max_length,omitempty"`
}

// ListTables returns table names with their column counts.
func (a *Adapter) ListTables(ctx context.Context, workspaceID, datasetID string) (map[string]int, error) {
	result, err := a.ExecuteDAX(ctx, workspaceID, datasetID, daxColumnStatistics)
	if err != nil {
		return nil, fmt.Errorf("failed to discover tables: %w", err)
	}

	tables := make(map[string]int)
	for _, row := range result.Rows {
		if name, ok := row["[Table Name]"].(string); ok && len(name) > 0 {
			tables[name]++
		}
	}

	if a.limits.MaxTablesInContext > 0 && len(tables) > a.limits.MaxTablesInContext {
		trimmed := make(map[string]int, a.limits.MaxTablesInContext)
		for name, count := range tables {
			if len(trimmed) == a.limits.MaxTablesInContext {
				break
			}
			trimmed[name] = count
		}
		tables = trimmed
	}

	return tables, nil
}

// ListColumns returns column details, optionally filtered to one table.
func (a *Adapter) ListColumns(ctx context.Context, workspaceID, datasetID, tableFilter string) ([]ColumnInfo, error) {
	result, err := a.ExecuteDAX(ctx, workspaceID, datasetID, daxColumnStatistics)
	if err != nil {
		return nil, fmt.Errorf("failed to discover columns: %w", err)
	}

	var columns []ColumnInfo
	for _, row := range result.Rows {
		table, _ := row["[Table Name]"].(string)
		if len(tableFilter) > 0 && table != tableFilter {
			continue
		}
		column, _ := row["[Column Name]"].(string)
		columns = append(columns, ColumnInfo{
			Table:       table,
			Column:      column,
			Cardinality: row["[Column Cardinality]"],
			MaxLength:   row["[Max Length]"],
		})
		if a.limits.MaxColumnsPerTable > 0 && len(tableFilter) > 0 &&
			len(columns) == a.limits.MaxColumnsPerTable {
			break
		}
	}

	return columns, nil
}

// ListMeasures returns all measures in the model.
func (a *Adapter) ListMeasures(ctx context.Context, workspaceID, datasetID string) ([]map[string]any, error) {
	result, err := a.ExecuteDAX(ctx, workspaceID, datasetID, daxMeasures)
	if err != nil {
		return nil, fmt.Errorf("failed to list measures: %w", err)
	}
	return result.Rows, nil
}

// ListRelationships returns all relationships in the model.
func (a *Adapter) ListRelationships(ctx context.Context, workspaceID, datasetID string) ([]map[string]any, error) {
	result, err := a.ExecuteDAX(ctx, workspaceID, datasetID, daxRelationships)
	if err != nil {
		return nil, fmt.Errorf("failed to list relationships: %w", err)
	}
	return result.Rows, nil
}
