package auth

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fabric-gateway/agent/internal/models"
)

func TestDriverToken(t *testing.T) {
	out := DriverToken(models.Credential{Token: "ab"})

	// 4-byte length prefix followed by UTF-16LE code units.
	require.Len(t, out, 4+4)
	assert.Equal(t, uint32(4), binary.LittleEndian.Uint32(out[:4]))
	assert.Equal(t, []byte{'a', 0, 'b', 0}, out[4:])
}

func TestDriverTokenEmpty(t *testing.T) {
	out := DriverToken(models.Credential{})
	require.Len(t, out, 4)
	assert.Equal(t, uint32(0), binary.LittleEndian.Uint32(out))
}

func TestDriverTokenDoesNotMutateCredential(t *testing.T) {
	cred := models.Credential{Token: "secret"}
	_ = DriverToken(cred)
	assert.Equal(t, "secret", cred.Token)
}
