package streams

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/jtang613/gocdi/internal/wire"
)

// DBI Stream versions
const (
	DBIStreamVersionV70  = 19990903
	DBIStreamVersionV110 = 20091201
)

// Machine types
const (
	MachineUnknown = 0x0000
	MachineI386    = 0x014c
	MachineIA64    = 0x0200
	MachineAMD64   = 0x8664
	MachineARM     = 0x01c0
	MachineARM64   = 0xAA64
)

// NoStream marks an absent stream index.
const NoStream = 0xFFFF

// DBIHeaderSize is the size of the fixed DBI header.
const DBIHeaderSize = 64

// moduleInfoFixedSize is the fixed part of a module info entry.
const moduleInfoFixedSize = 64

// DBIHeader is the fixed header of the DBI stream.
type DBIHeader struct {
	VersionSignature        int32 // always -1
	VersionHeader           uint32
	Age                     uint32
	GlobalStreamIndex       uint16
	BuildNumber             uint16
	PublicStreamIndex       uint16
	PdbDllVersion           uint16
	SymRecordStream         uint16
	PdbDllRbld              uint16
	ModInfoSize             int32
	SectionContributionSize int32
	SectionMapSize          int32
	SourceInfoSize          int32
	TypeServerMapSize       int32
	MFCTypeServerIndex      uint32
	OptionalDbgHeaderSize   int32
	ECSubstreamSize         int32
	Flags                   uint16
	Machine                 uint16
	Padding                 uint32
}

// DBIStream represents the parsed DBI stream.
type DBIStream struct {
	Header  DBIHeader
	Modules []ModuleInfo
}

// ModuleInfo describes one compiland. For managed PDBs there is usually a
// single module holding every method's symbols.
type ModuleInfo struct {
	Flags           uint16
	ModuleSymStream uint16 // NoStream if none
	SymByteSize     uint32
	C11ByteSize     uint32
	C13ByteSize     uint32
	SourceFileCount uint16
	ModuleName      string
	ObjFileName     string
}

// ReadDBIStream parses the DBI stream.
func ReadDBIStream(data []byte) (*DBIStream, error) {
	if len(data) < DBIHeaderSize {
		return nil, fmt.Errorf("DBI stream too small: %d bytes", len(data))
	}

	var header DBIHeader
	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, &header); err != nil {
		return nil, fmt.Errorf("failed to read DBI header: %w", err)
	}
	if header.VersionSignature != -1 {
		return nil, fmt.Errorf("invalid DBI version signature: %d", header.VersionSignature)
	}

	dbi := &DBIStream{Header: header}

	if header.ModInfoSize < 0 || int64(header.ModInfoSize) > int64(len(data)-DBIHeaderSize) {
		return nil, fmt.Errorf("module info substream of %d bytes exceeds stream", header.ModInfoSize)
	}
	if header.ModInfoSize > 0 {
		dbi.Modules = parseModuleInfo(data[DBIHeaderSize : DBIHeaderSize+int(header.ModInfoSize)])
	}

	return dbi, nil
}

// parseModuleInfo parses the module info substream, stopping at the first
// truncated entry.
func parseModuleInfo(data []byte) []ModuleInfo {
	var modules []ModuleInfo
	offset := 0

	for offset+moduleInfoFixedSize <= len(data) {
		// Unused1 (4) and the 28-byte section contribution are skipped.
		fixed := data[offset+32 : offset+moduleInfoFixedSize]
		mod := ModuleInfo{
			Flags:           binary.LittleEndian.Uint16(fixed[0:]),
			ModuleSymStream: binary.LittleEndian.Uint16(fixed[2:]),
			SymByteSize:     binary.LittleEndian.Uint32(fixed[4:]),
			C11ByteSize:     binary.LittleEndian.Uint32(fixed[8:]),
			C13ByteSize:     binary.LittleEndian.Uint32(fixed[12:]),
			SourceFileCount: binary.LittleEndian.Uint16(fixed[16:]),
		}
		offset += moduleInfoFixedSize

		modNameEnd := bytes.IndexByte(data[offset:], 0)
		if modNameEnd == -1 {
			break
		}
		mod.ModuleName = wire.CString(data[offset:])
		offset += modNameEnd + 1

		objNameEnd := bytes.IndexByte(data[offset:], 0)
		if objNameEnd == -1 {
			break
		}
		mod.ObjFileName = wire.CString(data[offset:])
		offset += objNameEnd + 1

		offset = wire.Align4(offset)
		modules = append(modules, mod)
	}

	return modules
}

// MachineTypeName returns the human-readable name for a machine type.
func MachineTypeName(machine uint16) string {
	switch machine {
	case MachineI386:
		return "x86"
	case MachineAMD64:
		return "x64"
	case MachineARM:
		return "ARM"
	case MachineARM64:
		return "ARM64"
	case MachineIA64:
		return "IA64"
	default:
		return fmt.Sprintf("0x%04x", machine)
	}
}

// HasSymbols returns true if the module has symbol information.
func (m *ModuleInfo) HasSymbols() bool {
	return m.ModuleSymStream != NoStream && m.SymByteSize > 0
}
