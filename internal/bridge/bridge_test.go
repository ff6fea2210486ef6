package bridge

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fabric-gateway/agent/internal/models"
)

// writeExecutor installs a shell script standing in for the external
// executor binary.
func writeExecutor(t *testing.T, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script executors require a POSIX shell")
	}

	path := filepath.Join(t.TempDir(), "executor.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0755))
	return path
}

func upsertDescriptor(t *testing.T) *models.OperationDescriptor {
	t.Helper()
	desc, err := models.NewUpsertMeasure("Sales", "Orders", models.MeasureDefinition{
		Name:       "Total Revenue",
		Expression: "SUM(Orders[Amount])",
	})
	require.NoError(t, err)
	return desc
}

func testCredential() models.Credential {
	return models.Credential{
		Scope:  models.ScopeAnalytics,
		Token:  "bearer-test",
		Expiry: time.Now().Add(time.Hour),
	}
}

const endpoint = "powerbi://api.powerbi.com/v1.0/myorg/Finance"

func TestExecuteSuccessMarker(t *testing.T) {
	executor := writeExecutor(t, `echo "TMSL Execution completed successfully"`)
	b := New(executor, time.Minute)

	result, err := b.Execute(context.Background(), upsertDescriptor(t), testCredential(), endpoint)
	require.NoError(t, err)

	assert.Equal(t, models.BridgeSuccess, result.Status)
	assert.True(t, result.Succeeded())
	assert.Equal(t, 0, result.ExitCode)
	assert.True(t, result.CleanupOK)
	assert.NoError(t, ResultError(result))
}

func TestExecuteAmbiguousOutput(t *testing.T) {
	executor := writeExecutor(t, `echo "done"`)
	b := New(executor, time.Minute)

	result, err := b.Execute(context.Background(), upsertDescriptor(t), testCredential(), endpoint)
	require.NoError(t, err)

	assert.Equal(t, models.BridgeAmbiguous, result.Status)
	assert.False(t, result.Succeeded())

	// Fail closed: ambiguous output surfaces as an error with the raw
	// output preserved.
	err = ResultError(result)
	require.Error(t, err)
	assert.True(t, models.IsKind(err, models.ErrAmbiguousSuccess))
	assert.Contains(t, err.Error(), "done")
}

func TestExecuteErrorMarkerOnCleanExit(t *testing.T) {
	executor := writeExecutor(t, `echo "Error: measure expression is invalid"`)
	b := New(executor, time.Minute)

	result, err := b.Execute(context.Background(), upsertDescriptor(t), testCredential(), endpoint)
	require.NoError(t, err)

	assert.Equal(t, models.BridgeFailed, result.Status)
	assert.True(t, models.IsKind(ResultError(result), models.ErrBridgeFailure))
}

func TestExecuteNonZeroExit(t *testing.T) {
	executor := writeExecutor(t, `echo "crashed" >&2; exit 3`)
	b := New(executor, time.Minute)

	result, err := b.Execute(context.Background(), upsertDescriptor(t), testCredential(), endpoint)
	require.NoError(t, err)

	assert.Equal(t, models.BridgeFailed, result.Status)
	assert.Equal(t, 3, result.ExitCode)
	assert.Contains(t, result.Output, "crashed")
}

func TestExecuteTimeout(t *testing.T) {
	executor := writeExecutor(t, `sleep 30`)
	b := New(executor, 100*time.Millisecond)

	result, err := b.Execute(context.Background(), upsertDescriptor(t), testCredential(), endpoint)
	require.NoError(t, err)

	assert.Equal(t, models.BridgeTimedOut, result.Status)
	assert.Equal(t, -1, result.ExitCode)
	assert.True(t, result.CleanupOK)
	assert.True(t, models.IsKind(ResultError(result), models.ErrBridgeTimeout))
}

func TestExecuteIdempotentDeleteMarkers(t *testing.T) {
	tests := []struct {
		name   string
		marker string
		desc   func(t *testing.T) *models.OperationDescriptor
	}{
		{
			name:   "absent measure",
			marker: "Measure not found",
			desc: func(t *testing.T) *models.OperationDescriptor {
				d, err := models.NewDeleteMeasure("Sales", "Orders", "Gone")
				require.NoError(t, err)
				return d
			},
		},
		{
			name:   "absent relationship",
			marker: "Relationship not found",
			desc: func(t *testing.T) *models.OperationDescriptor {
				d, err := models.NewDeleteRelationship("Sales", "Gone")
				require.NoError(t, err)
				return d
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			executor := writeExecutor(t, `echo "`+tt.marker+`"`)
			b := New(executor, time.Minute)

			result, err := b.Execute(context.Background(), tt.desc(t), testCredential(), endpoint)
			require.NoError(t, err)
			assert.Equal(t, models.BridgeSuccess, result.Status)
		})
	}

	t.Run("absent marker on upsert stays ambiguous", func(t *testing.T) {
		executor := writeExecutor(t, `echo "Measure not found"`)
		b := New(executor, time.Minute)

		result, err := b.Execute(context.Background(), upsertDescriptor(t), testCredential(), endpoint)
		require.NoError(t, err)
		assert.Equal(t, models.BridgeAmbiguous, result.Status)
	})
}

func TestExecuteCleansUpTempFiles(t *testing.T) {
	// The executor records its argv; afterwards the staged credential and
	// descriptor files must be gone.
	dir := t.TempDir()
	argsFile := filepath.Join(dir, "args")
	executor := writeExecutor(t,
		`echo "$1 $2 $3" > `+argsFile+`
echo "TMSL Execution completed successfully"`)

	b := New(executor, time.Minute)
	result, err := b.Execute(context.Background(), upsertDescriptor(t), testCredential(), endpoint)
	require.NoError(t, err)
	require.True(t, result.CleanupOK)

	args, err := os.ReadFile(argsFile)
	require.NoError(t, err)

	fields := strings.Fields(string(args))
	require.Len(t, fields, 3)
	assert.Equal(t, endpoint, fields[0])

	for _, path := range fields[1:] {
		_, err := os.Stat(path)
		assert.True(t, os.IsNotExist(err), "expected %s to be removed", path)
	}
}

func TestExecuteRefusesInvalidInput(t *testing.T) {
	executor := writeExecutor(t, `echo "should not run"; exit 1`)
	b := New(executor, time.Minute)

	t.Run("nil descriptor", func(t *testing.T) {
		_, err := b.Execute(context.Background(), nil, testCredential(), endpoint)
		assert.True(t, models.IsKind(err, models.ErrInvalidOperation))
	})

	t.Run("incomplete descriptor", func(t *testing.T) {
		desc := &models.OperationDescriptor{Operation: models.OpUpsertMeasure, Database: "Sales"}
		_, err := b.Execute(context.Background(), desc, testCredential(), endpoint)
		assert.True(t, models.IsKind(err, models.ErrInvalidOperation))
	})

	t.Run("missing endpoint", func(t *testing.T) {
		_, err := b.Execute(context.Background(), upsertDescriptor(t), testCredential(), "")
		assert.True(t, models.IsKind(err, models.ErrInvalidOperation))
	})

	t.Run("no executor configured", func(t *testing.T) {
		empty := New("", time.Minute)
		_, err := empty.Execute(context.Background(), upsertDescriptor(t), testCredential(), endpoint)
		assert.True(t, models.IsKind(err, models.ErrBridgeFailure))
	})
}

func TestNewDefaultsTimeout(t *testing.T) {
	b := New("/usr/local/bin/executor", 0)
	assert.Equal(t, DefaultTimeout, b.Timeout)
}
