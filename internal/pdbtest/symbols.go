package pdbtest

import (
	"encoding/binary"
	"unicode/utf16"

	"github.com/google/uuid"

	"github.com/jtang613/gocdi/internal/wire"
)

// Symbol kinds written by SymbolStream.
const (
	symEnd      = 0x0006
	symOEM      = 0x0404
	symBlock32  = 0x1103
	symGManProc = 0x112a
	symLManProc = 0x112b
)

// MSILOEM is the OEM id managed compilers use for MD2 records.
var MSILOEM = uuid.MustParse("c6ea3fc9-59b3-49d6-bc25-09022b24d1a5")

// SymbolStream accumulates CodeView symbol records behind a C13 signature.
type SymbolStream struct {
	buf []byte
}

// NewSymbolStream starts a module symbol stream.
func NewSymbolStream() *SymbolStream {
	return &SymbolStream{buf: []byte{4, 0, 0, 0}}
}

// Record appends a record with the given kind and body.
func (s *SymbolStream) Record(kind uint16, data []byte) *SymbolStream {
	var hdr [4]byte
	binary.LittleEndian.PutUint16(hdr[0:], uint16(2+len(data)))
	binary.LittleEndian.PutUint16(hdr[2:], kind)
	s.buf = append(s.buf, hdr[:]...)
	s.buf = append(s.buf, data...)
	return s
}

// ManProc opens a managed procedure scope.
func (s *SymbolStream) ManProc(global bool, token uint32, name string) *SymbolStream {
	data := make([]byte, 37, 38+len(name))
	binary.LittleEndian.PutUint32(data[12:], 0x20) // length
	binary.LittleEndian.PutUint32(data[24:], token)
	binary.LittleEndian.PutUint32(data[28:], token&0xFFFF) // offset
	binary.LittleEndian.PutUint16(data[32:], 1)
	data = append(data, name...)
	data = append(data, 0)

	kind := uint16(symLManProc)
	if global {
		kind = symGManProc
	}
	return s.Record(kind, data)
}

// Block opens a nested lexical block scope.
func (s *SymbolStream) Block() *SymbolStream {
	return s.Record(symBlock32, make([]byte, 18))
}

// OEM appends an S_OEM record with a UTF-16 name and payload.
func (s *SymbolStream) OEM(id uuid.UUID, name string, payload []byte) *SymbolStream {
	data := make([]byte, wire.GUIDSize+4)
	wire.PutGUID(data, id)
	for _, u := range utf16.Encode([]rune(name)) {
		data = binary.LittleEndian.AppendUint16(data, u)
	}
	data = append(data, 0, 0)
	data = append(data, payload...)
	return s.Record(symOEM, data)
}

// CustomDebugInfo appends an MD2 record carrying blob.
func (s *SymbolStream) CustomDebugInfo(blob []byte) *SymbolStream {
	return s.OEM(MSILOEM, "MD2", blob)
}

// End closes the innermost scope.
func (s *SymbolStream) End() *SymbolStream {
	return s.Record(symEnd, nil)
}

// Truncated appends a length prefix that runs past the end of the stream.
func (s *SymbolStream) Truncated() *SymbolStream {
	s.buf = append(s.buf, 0xFF, 0x00, 0x06, 0x00)
	return s
}

// Bytes returns the encoded stream.
func (s *SymbolStream) Bytes() []byte {
	return s.buf
}
