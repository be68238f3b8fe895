// Package wire holds small decoding helpers shared by the PDB stream parsers.
package wire

import (
	"bytes"
	"encoding/binary"
	"unicode/utf16"

	"github.com/google/uuid"
)

// GUIDSize is the on-disk size of a GUID.
const GUIDSize = 16

// GUID decodes a Windows GUID (Data1..Data3 little-endian) into RFC 4122 order.
// b must hold at least GUIDSize bytes.
func GUID(b []byte) uuid.UUID {
	var u uuid.UUID
	binary.BigEndian.PutUint32(u[0:4], binary.LittleEndian.Uint32(b[0:4]))
	binary.BigEndian.PutUint16(u[4:6], binary.LittleEndian.Uint16(b[4:6]))
	binary.BigEndian.PutUint16(u[6:8], binary.LittleEndian.Uint16(b[6:8]))
	copy(u[8:16], b[8:16])
	return u
}

// PutGUID is the inverse of GUID.
func PutGUID(b []byte, u uuid.UUID) {
	binary.LittleEndian.PutUint32(b[0:4], binary.BigEndian.Uint32(u[0:4]))
	binary.LittleEndian.PutUint16(b[4:6], binary.BigEndian.Uint16(u[4:6]))
	binary.LittleEndian.PutUint16(b[6:8], binary.BigEndian.Uint16(u[6:8]))
	copy(b[8:16], u[8:16])
}

// CString extracts a null-terminated string. Without a terminator the whole
// slice is used.
func CString(data []byte) string {
	idx := bytes.IndexByte(data, 0)
	if idx == -1 {
		return string(data)
	}
	return string(data[:idx])
}

// UTF16String decodes a null-terminated little-endian UTF-16 string and
// returns it with the number of bytes consumed, terminator included.
// ok is false when no terminator is present.
func UTF16String(data []byte) (s string, n int, ok bool) {
	var units []uint16
	for i := 0; i+1 < len(data); i += 2 {
		u := binary.LittleEndian.Uint16(data[i:])
		if u == 0 {
			return string(utf16.Decode(units)), i + 2, true
		}
		units = append(units, u)
	}
	return "", 0, false
}

// Align4 rounds n up to a multiple of four.
func Align4(n int) int {
	return (n + 3) &^ 3
}
