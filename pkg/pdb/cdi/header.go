// Package cdi reads the custom debug information blob that managed compilers
// attach to a method in a Windows PDB.
//
// A blob is a 4-byte directory header followed by a sequence of records, each
// an 8-byte header and a payload:
//
//	directory: version(1) count(1) reserved(2)
//	record:    version(1) kind(1) reserved(2) size(4, little-endian, signed)
//
// size covers the record header and its payload. The count byte is advisory
// and is never used to drive the scan.
package cdi

import (
	"encoding/binary"
	"errors"
)

// Version is the only format version this package understands.
const Version = 4

const (
	// DirectoryHeaderSize is the size of the blob prefix.
	DirectoryHeaderSize = 4
	// RecordHeaderSize is the size of the header preceding every payload.
	RecordHeaderSize = 8
)

var (
	ErrDirectoryTruncated = errors.New("cdi: directory header truncated")
	ErrUnsupportedVersion = errors.New("cdi: unsupported directory version")
	ErrRecordTruncated    = errors.New("cdi: record header truncated")
	ErrRecordVersion      = errors.New("cdi: unsupported record version")
	ErrRecordSize         = errors.New("cdi: record size out of range")
)

// DirectoryHeader is the fixed prefix of a blob.
type DirectoryHeader struct {
	Version uint8
	Count   uint8 // advisory only
}

// RecordHeader precedes each record payload.
type RecordHeader struct {
	Version uint8
	Kind    RecordKind
	Size    int32 // header + payload
}

// readDirectoryHeader validates the directory header and returns the offset
// of the first record.
func readDirectoryHeader(blob []byte) (DirectoryHeader, int, error) {
	if len(blob) < DirectoryHeaderSize {
		return DirectoryHeader{}, 0, ErrDirectoryTruncated
	}

	hdr := DirectoryHeader{
		Version: blob[0],
		Count:   blob[1],
	}
	if hdr.Version != Version {
		return DirectoryHeader{}, 0, ErrUnsupportedVersion
	}

	return hdr, DirectoryHeaderSize, nil
}

// readRecordHeader validates the record header at offset and returns it
// together with the end of the record. The record spans [offset, end).
// Errors are bare sentinels; callers that report them add the offset.
func readRecordHeader(blob []byte, offset int) (RecordHeader, int, error) {
	if offset < 0 || len(blob)-offset < RecordHeaderSize {
		return RecordHeader{}, 0, ErrRecordTruncated
	}

	hdr := RecordHeader{
		Version: blob[offset],
		Kind:    RecordKind(blob[offset+1]),
		Size:    int32(binary.LittleEndian.Uint32(blob[offset+4:])),
	}
	if hdr.Version != Version {
		return RecordHeader{}, 0, ErrRecordVersion
	}

	// Negative sizes land here too.
	if hdr.Size < RecordHeaderSize {
		return RecordHeader{}, 0, ErrRecordSize
	}
	// Compare against the remaining length so the sum cannot overflow.
	if int64(hdr.Size) > int64(len(blob)-offset) {
		return RecordHeader{}, 0, ErrRecordSize
	}

	return hdr, offset + int(hdr.Size), nil
}
