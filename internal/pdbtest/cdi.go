// Package pdbtest builds in-memory PDB fixtures for tests: custom debug
// information blobs, symbol streams, DBI and info streams, and MSF images.
package pdbtest

import "encoding/binary"

// CDIVersion is the format version written by the builders.
const CDIVersion = 4

// CDIBlob prepends a directory header with the given advisory count to the
// encoded records.
func CDIBlob(count uint8, records ...[]byte) []byte {
	blob := []byte{CDIVersion, count, 0, 0}
	for _, r := range records {
		blob = append(blob, r...)
	}
	return blob
}

// CDIRecord encodes a well-formed record.
func CDIRecord(kind uint8, payload ...byte) []byte {
	return RawCDIRecord(CDIVersion, kind, int32(8+len(payload)), payload...)
}

// RawCDIRecord encodes a record header with arbitrary fields, followed by
// payload. Nothing is checked.
func RawCDIRecord(version, kind uint8, size int32, payload ...byte) []byte {
	r := make([]byte, 8, 8+len(payload))
	r[0] = version
	r[1] = kind
	binary.LittleEndian.PutUint32(r[4:], uint32(size))
	return append(r, payload...)
}
