// Package codeview provides parsing for the CodeView symbol records found in
// module symbol streams.
package codeview

import (
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"

	"github.com/jtang613/gocdi/internal/wire"
)

// Symbol type constants (S_* values) used by managed module streams.
const (
	S_END            = 0x0006
	S_OEM            = 0x0404
	S_BLOCK32        = 0x1103
	S_WITH32         = 0x1104
	S_THUNK32        = 0x1102
	S_LPROC32        = 0x110f
	S_GPROC32        = 0x1110
	S_LOCALSLOT      = 0x111a
	S_UNAMESPACE     = 0x1124
	S_GMANPROC       = 0x112a
	S_LMANPROC       = 0x112b
	S_SEPCODE        = 0x1132
	S_LPROC32_ID     = 0x1146
	S_GPROC32_ID     = 0x1147
	S_INLINESITE     = 0x114d
	S_INLINESITE_END = 0x114e
	S_PROC_ID_END    = 0x114f
)

// CVSignatureC13 prefixes a module symbol stream.
const CVSignatureC13 = 4

// MSILOEMGUID identifies S_OEM records emitted by managed compilers.
var MSILOEMGUID = uuid.MustParse("c6ea3fc9-59b3-49d6-bc25-09022b24d1a5")

// CustomDebugInfoName is the OEM record name that carries a custom debug
// information blob.
const CustomDebugInfoName = "MD2"

// SymbolRecord is one CodeView symbol record. Data aliases the stream bytes
// passed to ParseSymbols.
type SymbolRecord struct {
	Offset int // of the length prefix, within the parsed data
	Kind   uint16
	Data   []byte
}

// ManProcSym is a managed procedure symbol (S_GMANPROC, S_LMANPROC).
type ManProcSym struct {
	Parent   uint32
	End      uint32
	Next     uint32
	Length   uint32
	DbgStart uint32
	DbgEnd   uint32
	Token    uint32 // method metadata token
	Offset   uint32
	Segment  uint16
	Flags    uint8
	RetReg   uint16
	Name     string
}

// OEMSym is an S_OEM record.
type OEMSym struct {
	ID        uuid.UUID
	TypeIndex uint32
	Data      []byte // aliases the record
}

const (
	manProcFixedSize = 37
	oemFixedSize     = wire.GUIDSize + 4
)

// ParseSymbols walks the symbol records in data. A leading C13 signature is
// skipped. The walk stops at the first record whose length runs past the end.
func ParseSymbols(data []byte) ([]SymbolRecord, error) {
	var symbols []SymbolRecord
	offset := 0

	if len(data) >= 4 && binary.LittleEndian.Uint32(data) == CVSignatureC13 {
		offset = 4
	}

	for offset+4 <= len(data) {
		recLen := int(binary.LittleEndian.Uint16(data[offset:]))
		if recLen < 2 || offset+2+recLen > len(data) {
			return symbols, fmt.Errorf("symbol record at offset %d: length %d exceeds stream", offset, recLen)
		}

		symbols = append(symbols, SymbolRecord{
			Offset: offset,
			Kind:   binary.LittleEndian.Uint16(data[offset+2:]),
			Data:   data[offset+4 : offset+2+recLen],
		})
		offset += 2 + recLen
	}

	return symbols, nil
}

// ParseManProcSym parses a managed procedure symbol record.
func ParseManProcSym(data []byte) (*ManProcSym, error) {
	if len(data) < manProcFixedSize {
		return nil, fmt.Errorf("managed proc symbol data too small: %d bytes", len(data))
	}

	return &ManProcSym{
		Parent:   binary.LittleEndian.Uint32(data[0:]),
		End:      binary.LittleEndian.Uint32(data[4:]),
		Next:     binary.LittleEndian.Uint32(data[8:]),
		Length:   binary.LittleEndian.Uint32(data[12:]),
		DbgStart: binary.LittleEndian.Uint32(data[16:]),
		DbgEnd:   binary.LittleEndian.Uint32(data[20:]),
		Token:    binary.LittleEndian.Uint32(data[24:]),
		Offset:   binary.LittleEndian.Uint32(data[28:]),
		Segment:  binary.LittleEndian.Uint16(data[32:]),
		Flags:    data[34],
		RetReg:   binary.LittleEndian.Uint16(data[35:]),
		Name:     wire.CString(data[manProcFixedSize:]),
	}, nil
}

// ParseOEMSym parses an S_OEM record.
func ParseOEMSym(data []byte) (*OEMSym, error) {
	if len(data) < oemFixedSize {
		return nil, fmt.Errorf("OEM symbol data too small: %d bytes", len(data))
	}

	return &OEMSym{
		ID:        wire.GUID(data),
		TypeIndex: binary.LittleEndian.Uint32(data[wire.GUIDSize:]),
		Data:      data[oemFixedSize:],
	}, nil
}

// ParseCustomDebugInfo returns the custom debug information blob carried by
// an S_OEM record, or false if the record is some other OEM payload. The
// blob aliases data.
func ParseCustomDebugInfo(data []byte) ([]byte, bool) {
	oem, err := ParseOEMSym(data)
	if err != nil || oem.ID != MSILOEMGUID {
		return nil, false
	}
	name, n, ok := wire.UTF16String(oem.Data)
	if !ok || name != CustomDebugInfoName {
		return nil, false
	}
	return oem.Data[n:], true
}

// SymbolKindName returns the name for a symbol kind constant.
func SymbolKindName(kind uint16) string {
	switch kind {
	case S_END:
		return "S_END"
	case S_OEM:
		return "S_OEM"
	case S_BLOCK32:
		return "S_BLOCK32"
	case S_GMANPROC:
		return "S_GMANPROC"
	case S_LMANPROC:
		return "S_LMANPROC"
	case S_GPROC32:
		return "S_GPROC32"
	case S_LPROC32:
		return "S_LPROC32"
	case S_UNAMESPACE:
		return "S_UNAMESPACE"
	case S_LOCALSLOT:
		return "S_LOCALSLOT"
	default:
		return fmt.Sprintf("S_0x%04x", kind)
	}
}

// IsManagedProcSymbol returns true if the kind is a managed procedure.
func IsManagedProcSymbol(kind uint16) bool {
	return kind == S_GMANPROC || kind == S_LMANPROC
}

// IsGlobalSymbol returns true if the symbol has global linkage.
func IsGlobalSymbol(kind uint16) bool {
	switch kind {
	case S_GMANPROC, S_GPROC32, S_GPROC32_ID:
		return true
	}
	return false
}

// OpensScope reports whether the record starts a scope closed by a
// matching end record.
func OpensScope(kind uint16) bool {
	switch kind {
	case S_GMANPROC, S_LMANPROC, S_GPROC32, S_LPROC32, S_GPROC32_ID, S_LPROC32_ID,
		S_BLOCK32, S_WITH32, S_THUNK32, S_SEPCODE, S_INLINESITE:
		return true
	}
	return false
}

// ClosesScope reports whether the record ends the innermost scope.
func ClosesScope(kind uint16) bool {
	switch kind {
	case S_END, S_PROC_ID_END, S_INLINESITE_END:
		return true
	}
	return false
}
