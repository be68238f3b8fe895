// Package streams provides parsers for the fixed PDB streams.
package streams

import (
	"encoding/binary"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"

	"github.com/jtang613/gocdi/internal/wire"
)

// PDB Stream versions
const (
	PDBStreamVersionVC70  = 20000404
	PDBStreamVersionVC80  = 20030901
	PDBStreamVersionVC110 = 20091201
	PDBStreamVersionVC140 = 20140508
)

// PDBInfo represents the PDB Info Stream (Stream 1).
type PDBInfo struct {
	Version      uint32
	Signature    uint32 // creation timestamp
	Age          uint32
	GUID         uuid.UUID
	NamedStreams map[string]uint32
}

// pdbInfoHeaderSize covers version, signature, age and GUID.
const pdbInfoHeaderSize = 28

// maxNameBuffer bounds the named stream string table.
const maxNameBuffer = 1 << 24

// ReadPDBInfo parses the PDB info stream. The named stream map is optional:
// a short or damaged map leaves NamedStreams partially filled.
func ReadPDBInfo(r io.Reader) (*PDBInfo, error) {
	hdr := make([]byte, pdbInfoHeaderSize)
	if _, err := io.ReadFull(r, hdr); err != nil {
		return nil, fmt.Errorf("failed to read PDB info header: %w", err)
	}

	info := &PDBInfo{
		Version:      binary.LittleEndian.Uint32(hdr[0:]),
		Signature:    binary.LittleEndian.Uint32(hdr[4:]),
		Age:          binary.LittleEndian.Uint32(hdr[8:]),
		GUID:         wire.GUID(hdr[12:]),
		NamedStreams: make(map[string]uint32),
	}

	// StringTableSize + StringTable + hash table
	var strBufSize uint32
	if err := binary.Read(r, binary.LittleEndian, &strBufSize); err != nil || strBufSize > maxNameBuffer {
		return info, nil
	}
	strBuf := make([]byte, strBufSize)
	if _, err := io.ReadFull(r, strBuf); err != nil {
		return info, nil
	}

	var hashSize, hashCapacity uint32
	if err := binary.Read(r, binary.LittleEndian, &hashSize); err != nil {
		return info, nil
	}
	if err := binary.Read(r, binary.LittleEndian, &hashCapacity); err != nil {
		return info, nil
	}

	present, err := readBitVector(r)
	if err != nil {
		return info, nil
	}
	if _, err := readBitVector(r); err != nil { // deleted
		return info, nil
	}

	for i := uint32(0); i < hashCapacity; i++ {
		if !isBitSet(present, i) {
			continue
		}
		var kv [2]uint32
		if err := binary.Read(r, binary.LittleEndian, &kv); err != nil {
			break
		}
		if kv[0] < strBufSize {
			info.NamedStreams[wire.CString(strBuf[kv[0]:])] = kv[1]
		}
	}

	return info, nil
}

// GUIDString returns the GUID in the undashed upper-case form symbol
// servers use.
func (p *PDBInfo) GUIDString() string {
	return strings.ToUpper(strings.ReplaceAll(p.GUID.String(), "-", ""))
}

// readBitVector reads a word count followed by that many words.
func readBitVector(r io.Reader) ([]uint32, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, err
	}
	if n > 1<<16 {
		return nil, fmt.Errorf("bit vector of %d words", n)
	}
	words := make([]uint32, n)
	if err := binary.Read(r, binary.LittleEndian, words); err != nil {
		return nil, err
	}
	return words, nil
}

// isBitSet checks if bit n is set in the bit vector.
func isBitSet(words []uint32, n uint32) bool {
	wordIdx := n / 32
	if wordIdx >= uint32(len(words)) {
		return false
	}
	return words[wordIdx]&(1<<(n%32)) != 0
}
