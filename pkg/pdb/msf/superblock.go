// Package msf implements parsing for Microsoft's Multi-Stream Format (MSF) container.
package msf

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// MSF 7.00 magic signature
var MSFMagic = []byte("Microsoft C/C++ MSF 7.00\r\n\x1aDS\x00\x00\x00")

// SuperBlock is the header structure at the beginning of an MSF file.
type SuperBlock struct {
	Magic             [32]byte
	BlockSize         uint32 // 512, 1024, 2048, or 4096
	FreeBlockMapBlock uint32 // 1 or 2
	NumBlocks         uint32
	NumDirectoryBytes uint32
	Unknown           uint32
	BlockMapAddr      uint32 // block holding the directory block map
}

// SuperBlockSize is the size of the SuperBlock structure in bytes.
const SuperBlockSize = 56

// ValidBlockSizes are the allowed block sizes for MSF files.
var ValidBlockSizes = []uint32{512, 1024, 2048, 4096}

// ReadSuperBlock reads and validates the SuperBlock at the start of r.
func ReadSuperBlock(r io.ReaderAt) (*SuperBlock, error) {
	buf := make([]byte, SuperBlockSize)
	if _, err := r.ReadAt(buf, 0); err != nil {
		return nil, fmt.Errorf("failed to read superblock: %w", err)
	}

	var sb SuperBlock
	copy(sb.Magic[:], buf)
	if !bytes.Equal(sb.Magic[:], MSFMagic) {
		return nil, fmt.Errorf("invalid MSF magic: not a valid PDB file")
	}

	sb.BlockSize = binary.LittleEndian.Uint32(buf[32:])
	sb.FreeBlockMapBlock = binary.LittleEndian.Uint32(buf[36:])
	sb.NumBlocks = binary.LittleEndian.Uint32(buf[40:])
	sb.NumDirectoryBytes = binary.LittleEndian.Uint32(buf[44:])
	sb.Unknown = binary.LittleEndian.Uint32(buf[48:])
	sb.BlockMapAddr = binary.LittleEndian.Uint32(buf[52:])

	if !isValidBlockSize(sb.BlockSize) {
		return nil, fmt.Errorf("invalid block size: %d", sb.BlockSize)
	}
	if sb.FreeBlockMapBlock != 1 && sb.FreeBlockMapBlock != 2 {
		return nil, fmt.Errorf("invalid FreeBlockMapBlock: %d (must be 1 or 2)", sb.FreeBlockMapBlock)
	}
	if sb.BlockMapAddr >= sb.NumBlocks {
		return nil, fmt.Errorf("block map address %d beyond %d blocks", sb.BlockMapAddr, sb.NumBlocks)
	}
	if int64(sb.NumDirectoryBytes) > sb.FileSize() {
		return nil, fmt.Errorf("directory of %d bytes larger than file of %d bytes", sb.NumDirectoryBytes, sb.FileSize())
	}

	return &sb, nil
}

// NumDirectoryBlocks returns the number of blocks needed to store the stream directory.
func (sb *SuperBlock) NumDirectoryBlocks() uint32 {
	return uint32((uint64(sb.NumDirectoryBytes) + uint64(sb.BlockSize) - 1) / uint64(sb.BlockSize))
}

// FileSize returns the expected file size based on block count.
func (sb *SuperBlock) FileSize() int64 {
	return int64(sb.NumBlocks) * int64(sb.BlockSize)
}

func isValidBlockSize(size uint32) bool {
	for _, valid := range ValidBlockSizes {
		if size == valid {
			return true
		}
	}
	return false
}
