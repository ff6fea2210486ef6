package auth

import (
	"encoding/binary"
	"unicode/utf16"

	"github.com/fabric-gateway/agent/internal/models"
)

// DriverToken converts a bearer token into the binary structure ODBC-style
// SQL clients expect: a 4-byte little-endian length prefix followed by the
// token encoded as UTF-16LE. The go-mssqldb security token connector used by
// the warehouse adapter performs this packing internally and takes the raw
// token string; DriverToken is for wiring any driver that wants the packed
// form directly. The conversion is pure; the cached credential is not
// touched.
func DriverToken(cred models.Credential) []byte {
	units := utf16.Encode([]rune(cred.Token))

	encoded := make([]byte, 2*len(units))
	for i, u := range units {
		binary.LittleEndian.PutUint16(encoded[2*i:], u)
	}

	out := make([]byte, 4, 4+len(encoded))
	binary.LittleEndian.PutUint32(out, uint32(len(encoded)))
	return append(out, encoded...)
}
