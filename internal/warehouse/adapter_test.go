package warehouse

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fabric-gateway/agent/internal/config"
)

func TestReturnsRows(t *testing.T) {
	tests := []struct {
		query string
		want  bool
	}{
		{"SELECT * FROM dbo.orders", true},
		{"  select top 10 * from dbo.orders", true},
		{"WITH cte AS (SELECT 1 AS n) SELECT n FROM cte", true},
		{"INSERT INTO dbo.orders VALUES (1)", false},
		{"UPDATE dbo.orders SET amount = 0", false},
		{"DELETE FROM dbo.orders", false},
		{"CREATE TABLE dbo.t (id INT)", false},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			assert.Equal(t, tt.want, returnsRows(tt.query))
		})
	}
}

func TestCloseWithoutConnection(t *testing.T) {
	a := NewAdapter(nil, config.LimitsConfig{})
	assert.NoError(t, a.Close())
}
