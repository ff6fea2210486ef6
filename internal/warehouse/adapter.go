package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"

	mssql "github.com/microsoft/go-mssqldb"
	"github.com/microsoft/go-mssqldb/msdsn"
	"github.com/sirupsen/logrus"

	"github.com/fabric-gateway/agent/internal/auth"
	"github.com/fabric-gateway/agent/internal/config"
	"github.com/fabric-gateway/agent/internal/models"
)

// Adapter is the boundary to the warehouse SQL endpoint. Connections
// authenticate with bearer tokens from the credential manager's SQL scope;
// the driver's token callback runs on every new physical connection, so a
// refreshed credential is picked up without reopening the pool.
type Adapter struct {
	creds  *auth.Manager
	limits config.LimitsConfig

	mu       sync.Mutex
	db       *sql.DB
	endpoint string
	database string
}

func NewAdapter(creds *auth.Manager, limits config.LimitsConfig) *Adapter {
	return &Adapter{
		creds:  creds,
		limits: limits,
	}
}

// Connect opens (or reuses) a pool for the given target. The database name
// is explicit; it is never derived from the endpoint.
func (a *Adapter) Connect(target models.WarehouseTarget) (*sql.DB, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.db != nil && a.endpoint == target.Endpoint && a.database == target.Database {
		return a.db, nil
	}

	if a.db != nil {
		a.db.Close()
		a.db = nil
	}

	dsn := fmt.Sprintf(
		"server=%s;port=1433;database=%s;encrypt=true;TrustServerCertificate=false;dial timeout=30",
		target.Endpoint, target.Database)

	cfg, err := msdsn.Parse(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse warehouse connection string: %w", err)
	}

	connector, err := mssql.NewSecurityTokenConnector(cfg, func(ctx context.Context) (string, error) {
		cred, err := a.creds.Acquire(ctx, models.ScopeSQL)
		if err != nil {
			return "", err
		}
		return cred.Token, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create warehouse connector: %w", err)
	}

	db := sql.OpenDB(connector)

	a.db = db
	a.endpoint = target.Endpoint
	a.database = target.Database

	logrus.WithFields(logrus.Fields{
		"endpoint": target.Endpoint,
		"database": target.Database,
	}).Debugln("Warehouse connection pool opened")

	return db, nil
}

// TableInfo identifies one warehouse table.
type TableInfo struct {
	Schema string `json:"schema"`
	Table  string `json:"table"`
}

// ColumnInfo describes one warehouse column.
type ColumnInfo struct {
	Column   string `json:"column"`
	Type     string `json:"type"`
	Nullable string `json:"nullable"`
}

// SQLResult carries a bounded query result, or the affected row count for
// statements without a result set.
type SQLResult struct {
	Columns      []string         `json:"columns,omitempty"`
	Rows         []map[string]any `json:"rows,omitempty"`
	RowsAffected int64            `json:"rows_affected,omitempty"`
}

// ListTables lists base tables, optionally filtered by schema.
func (a *Adapter) ListTables(ctx context.Context, target models.WarehouseTarget, schema string) ([]TableInfo, error) {
	db, err := a.Connect(target)
	if err != nil {
		return nil, err
	}

	query := "SELECT TABLE_SCHEMA, TABLE_NAME FROM INFORMATION_SCHEMA.TABLES WHERE TABLE_TYPE = 'BASE TABLE'"
	args := []any{}
	if len(schema) > 0 {
		query += " AND TABLE_SCHEMA = @schema"
		args = append(args, sql.Named("schema", schema))
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list warehouse tables: %w", err)
	}
	defer rows.Close()

	var tables []TableInfo
	for rows.Next() {
		var info TableInfo
		if err := rows.Scan(&info.Schema, &info.Table); err != nil {
			return nil, fmt.Errorf("failed to scan table row: %w", err)
		}
		tables = append(tables, info)
		if a.limits.MaxTablesInContext > 0 && len(tables) == a.limits.MaxTablesInContext {
			break
		}
	}

	return tables, rows.Err()
}

// DescribeTable returns column definitions for one table.
func (a *Adapter) DescribeTable(ctx context.Context, target models.WarehouseTarget, schema, table string) ([]ColumnInfo, error) {
	db, err := a.Connect(target)
	if err != nil {
		return nil, err
	}

	if len(schema) == 0 {
		schema = "dbo"
	}

	rows, err := db.QueryContext(ctx,
		`SELECT COLUMN_NAME, DATA_TYPE, IS_NULLABLE
         FROM INFORMATION_SCHEMA.COLUMNS
         WHERE TABLE_SCHEMA = @schema AND TABLE_NAME = @table
         ORDER BY ORDINAL_POSITION`,
		sql.Named("schema", schema), sql.Named("table", table))
	if err != nil {
		return nil, fmt.Errorf("failed to describe table: %w", err)
	}
	defer rows.Close()

	var columns []ColumnInfo
	for rows.Next() {
		var info ColumnInfo
		if err := rows.Scan(&info.Column, &info.Type, &info.Nullable); err != nil {
			return nil, fmt.Errorf("failed to scan column row: %w", err)
		}
		columns = append(columns, info)
	}

	return columns, rows.Err()
}

// SampleRows fetches up to the configured number of sample rows from a
// table, for inclusion alongside its column definitions.
func (a *Adapter) SampleRows(ctx context.Context, target models.WarehouseTarget, schema, table string) ([]map[string]any, error) {
	if a.limits.SampleRows <= 0 {
		return nil, nil
	}

	db, err := a.Connect(target)
	if err != nil {
		return nil, err
	}

	if len(schema) == 0 {
		schema = "dbo"
	}

	query := fmt.Sprintf("SELECT TOP %d * FROM [%s].[%s]", a.limits.SampleRows, schema, table)

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to sample table rows: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read sample columns: %w", err)
	}

	var out []map[string]any
	values := make([]any, len(columns))
	pointers := make([]any, len(columns))
	for i := range values {
		pointers[i] = &values[i]
	}

	for rows.Next() {
		if err := rows.Scan(pointers...); err != nil {
			return nil, fmt.Errorf("failed to scan sample row: %w", err)
		}
		row := make(map[string]any, len(columns))
		for i, col := range columns {
			switch v := values[i].(type) {
			case []byte:
				row[col] = string(v)
			default:
				row[col] = v
			}
		}
		out = append(out, row)
	}

	return out, rows.Err()
}

// ExecuteSQL runs one statement. Result sets are capped at the configured
// row limit; statements without a result set report rows affected.
func (a *Adapter) ExecuteSQL(ctx context.Context, target models.WarehouseTarget, query string) (*SQLResult, error) {
	db, err := a.Connect(target)
	if err != nil {
		return nil, err
	}

	if !returnsRows(query) {
		result, err := db.ExecContext(ctx, query)
		if err != nil {
			return nil, fmt.Errorf("sql execution failed: %w", err)
		}
		affected, _ := result.RowsAffected()
		return &SQLResult{RowsAffected: affected}, nil
	}

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("sql execution failed: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read result columns: %w", err)
	}

	out := &SQLResult{Columns: columns}
	values := make([]any, len(columns))
	pointers := make([]any, len(columns))
	for i := range values {
		pointers[i] = &values[i]
	}

	for rows.Next() {
		if err := rows.Scan(pointers...); err != nil {
			return nil, fmt.Errorf("failed to scan result row: %w", err)
		}

		row := make(map[string]any, len(columns))
		for i, col := range columns {
			switch v := values[i].(type) {
			case []byte:
				row[col] = string(v)
			default:
				row[col] = v
			}
		}
		out.Rows = append(out.Rows, row)

		if a.limits.MaxSQLResultRows > 0 && len(out.Rows) == a.limits.MaxSQLResultRows {
			break
		}
	}

	return out, rows.Err()
}

// returnsRows reports whether the statement produces a result set.
func returnsRows(query string) bool {
	trimmed := strings.ToUpper(strings.TrimSpace(query))
	return strings.HasPrefix(trimmed, "SELECT") || strings.HasPrefix(trimmed, "WITH")
}

// Close releases the connection pool.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.db == nil {
		return nil
	}
	err := a.db.Close()
	a.db = nil
	return err
}
