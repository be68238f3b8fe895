package cdi

import "fmt"

// Record is a structurally valid record inside a blob.
type Record struct {
	Offset  int // of the record header
	Kind    RecordKind
	Payload []byte // aliases the blob
}

// Records returns every valid record in scan order, unknown kinds included.
// The walk stops at the first invalid record; the returned error explains
// why and the records before it are still returned.
func Records(blob []byte) ([]Record, error) {
	_, offset, err := readDirectoryHeader(blob)
	if err != nil {
		return nil, fmt.Errorf("%w (blob length %d)", err, len(blob))
	}

	var records []Record
	for offset < len(blob) {
		hdr, end, err := readRecordHeader(blob, offset)
		if err != nil {
			return records, fmt.Errorf("%w at offset %d", err, offset)
		}
		records = append(records, Record{
			Offset:  offset,
			Kind:    hdr.Kind,
			Payload: blob[offset+RecordHeaderSize : end : end],
		})
		offset = end
	}

	return records, nil
}

// Validate reports the first structural problem in blob, or nil. It lets a
// caller tell corrupt data apart from a missing record, which TryGetRecord
// deliberately does not.
func Validate(blob []byte) error {
	_, err := Records(blob)
	return err
}

// Count returns the advisory record count stored in the directory header.
// It is not checked against the records actually present.
func Count(blob []byte) (int, error) {
	hdr, _, err := readDirectoryHeader(blob)
	if err != nil {
		return 0, err
	}
	return int(hdr.Count), nil
}
