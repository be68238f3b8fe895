package pdbtest

import (
	"encoding/binary"
	"sort"

	"github.com/google/uuid"

	"github.com/jtang613/gocdi/internal/wire"
)

// BlockSize is the MSF block size used by the image builder.
const BlockSize = 512

var msfMagic = []byte("Microsoft C/C++ MSF 7.00\r\n\x1aDS\x00\x00\x00")

// MSF lays out streams in an MSF 7.00 image. A nil stream is written as
// unused (size 0xFFFFFFFF).
func MSF(streams ...[]byte) []byte {
	blocksFor := func(n int) int { return (n + BlockSize - 1) / BlockSize }

	// Block 0 is the superblock, 1 and 2 the free block maps.
	next := uint32(3)
	var image []byte
	grow := func(blocks int) {
		image = append(image, make([]byte, blocks*BlockSize)...)
	}
	grow(3)

	dir := binary.LittleEndian.AppendUint32(nil, uint32(len(streams)))
	for _, s := range streams {
		if s == nil {
			dir = binary.LittleEndian.AppendUint32(dir, 0xFFFFFFFF)
			continue
		}
		dir = binary.LittleEndian.AppendUint32(dir, uint32(len(s)))
	}
	for _, s := range streams {
		n := blocksFor(len(s))
		for i := 0; i < n; i++ {
			dir = binary.LittleEndian.AppendUint32(dir, next+uint32(i))
		}
		grow(n)
		copy(image[int(next)*BlockSize:], s)
		next += uint32(n)
	}

	dirBlocks := blocksFor(len(dir))
	blockMap := make([]byte, 0, dirBlocks*4)
	for i := 0; i < dirBlocks; i++ {
		blockMap = binary.LittleEndian.AppendUint32(blockMap, next+uint32(i))
	}
	grow(dirBlocks)
	copy(image[int(next)*BlockSize:], dir)
	next += uint32(dirBlocks)

	blockMapAddr := next
	grow(1)
	copy(image[int(next)*BlockSize:], blockMap)
	next++

	sb := image[:56]
	copy(sb, msfMagic)
	binary.LittleEndian.PutUint32(sb[32:], BlockSize)
	binary.LittleEndian.PutUint32(sb[36:], 1)
	binary.LittleEndian.PutUint32(sb[40:], next)
	binary.LittleEndian.PutUint32(sb[44:], uint32(len(dir)))
	binary.LittleEndian.PutUint32(sb[52:], blockMapAddr)

	return image
}

// InfoStream encodes a PDB info stream (stream 1).
func InfoStream(guid uuid.UUID, age uint32, named map[string]uint32) []byte {
	buf := make([]byte, 28)
	binary.LittleEndian.PutUint32(buf[0:], 20000404)
	binary.LittleEndian.PutUint32(buf[4:], 0x5F000000)
	binary.LittleEndian.PutUint32(buf[8:], age)
	wire.PutGUID(buf[12:], guid)

	names := make([]string, 0, len(named))
	for n := range named {
		names = append(names, n)
	}
	sort.Strings(names)

	var strBuf []byte
	offsets := make([]uint32, len(names))
	for i, n := range names {
		offsets[i] = uint32(len(strBuf))
		strBuf = append(strBuf, n...)
		strBuf = append(strBuf, 0)
	}
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(strBuf)))
	buf = append(buf, strBuf...)

	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(names))) // size
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(names))) // capacity
	words := (len(names) + 31) / 32
	buf = binary.LittleEndian.AppendUint32(buf, uint32(words))
	for w := 0; w < words; w++ {
		var word uint32
		for b := 0; b < 32 && w*32+b < len(names); b++ {
			word |= 1 << b
		}
		buf = binary.LittleEndian.AppendUint32(buf, word)
	}
	buf = binary.LittleEndian.AppendUint32(buf, 0) // deleted
	for i, n := range names {
		buf = binary.LittleEndian.AppendUint32(buf, offsets[i])
		buf = binary.LittleEndian.AppendUint32(buf, named[n])
	}
	return buf
}

// Module describes one DBI module info entry.
type Module struct {
	Name       string
	ObjFile    string
	SymStream  uint16
	SymSize    uint32
	NumSources uint16
}

// DBIStream encodes a DBI stream (stream 3) for an x64 image.
func DBIStream(modules ...Module) []byte {
	var mods []byte
	for _, m := range modules {
		entry := make([]byte, 64)
		binary.LittleEndian.PutUint16(entry[34:], m.SymStream)
		binary.LittleEndian.PutUint32(entry[36:], m.SymSize)
		binary.LittleEndian.PutUint16(entry[48:], m.NumSources)
		entry = append(entry, m.Name...)
		entry = append(entry, 0)
		entry = append(entry, m.ObjFile...)
		entry = append(entry, 0)
		for len(entry)%4 != 0 {
			entry = append(entry, 0)
		}
		mods = append(mods, entry...)
	}

	hdr := make([]byte, 64)
	binary.LittleEndian.PutUint32(hdr[0:], 0xFFFFFFFF)
	binary.LittleEndian.PutUint32(hdr[4:], 19990903)
	binary.LittleEndian.PutUint32(hdr[8:], 1)
	binary.LittleEndian.PutUint16(hdr[12:], 0xFFFF) // globals
	binary.LittleEndian.PutUint16(hdr[16:], 0xFFFF) // publics
	binary.LittleEndian.PutUint16(hdr[20:], 0xFFFF) // symbol records
	binary.LittleEndian.PutUint32(hdr[24:], uint32(len(mods)))
	binary.LittleEndian.PutUint16(hdr[58:], 0x8664) // machine
	return append(hdr, mods...)
}
