package msf

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// unusedStreamSize marks a deleted stream in the directory.
const unusedStreamSize = 0xFFFFFFFF

// MSF represents an opened MSF (Multi-Stream Format) container.
// Reads go through io.ReaderAt, so streams may be read concurrently.
type MSF struct {
	r          io.ReaderAt
	closer     io.Closer
	superBlock *SuperBlock
	directory  *StreamDirectory
	streams    []*Stream
}

// Open opens an MSF file and parses its structure.
func Open(path string) (*MSF, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	m, err := OpenReader(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	m.closer = f
	return m, nil
}

// OpenReader parses an MSF container held by r. The caller keeps ownership of r.
func OpenReader(r io.ReaderAt) (*MSF, error) {
	m := &MSF{r: r}

	var err error
	m.superBlock, err = ReadSuperBlock(r)
	if err != nil {
		return nil, err
	}

	if err := m.readStreamDirectory(); err != nil {
		return nil, fmt.Errorf("failed to read stream directory: %w", err)
	}

	m.buildStreams()
	return m, nil
}

// Close closes the underlying file when the MSF was opened with Open.
func (m *MSF) Close() error {
	if m.closer != nil {
		return m.closer.Close()
	}
	return nil
}

// SuperBlock returns the MSF SuperBlock.
func (m *MSF) SuperBlock() *SuperBlock {
	return m.superBlock
}

// NumStreams returns the number of streams in the file.
func (m *MSF) NumStreams() int {
	return int(m.directory.NumStreams)
}

// Stream returns the stream at the given index.
func (m *MSF) Stream(index int) (*Stream, error) {
	if index < 0 || index >= len(m.streams) {
		return nil, fmt.Errorf("stream index %d out of range [0, %d)", index, len(m.streams))
	}
	return m.streams[index], nil
}

// StreamReader returns a reader for the stream at the given index.
func (m *MSF) StreamReader(index int) (*StreamReader, error) {
	s, err := m.Stream(index)
	if err != nil {
		return nil, err
	}
	return NewStreamReader(s), nil
}

// BlockSize returns the block size used by this MSF file.
func (m *MSF) BlockSize() uint32 {
	return m.superBlock.BlockSize
}

// readBlock reads len(p) bytes starting at off within block idx.
func (m *MSF) readBlock(p []byte, idx uint32, off int) error {
	if idx >= m.superBlock.NumBlocks {
		return fmt.Errorf("block %d beyond %d blocks", idx, m.superBlock.NumBlocks)
	}
	pos := int64(idx)*int64(m.superBlock.BlockSize) + int64(off)
	if _, err := m.r.ReadAt(p, pos); err != nil {
		return fmt.Errorf("failed to read block %d: %w", idx, err)
	}
	return nil
}

// readStreamDirectory reads the block map and the directory blocks it names.
func (m *MSF) readStreamDirectory() error {
	numDirBlocks := m.superBlock.NumDirectoryBlocks()
	if uint64(m.superBlock.NumDirectoryBytes) > uint64(numDirBlocks)*uint64(m.superBlock.BlockSize) {
		return fmt.Errorf("directory of %d bytes exceeds %d blocks", m.superBlock.NumDirectoryBytes, numDirBlocks)
	}
	if int64(numDirBlocks)*4 > int64(m.superBlock.BlockSize) {
		return fmt.Errorf("directory of %d bytes does not fit one block map", m.superBlock.NumDirectoryBytes)
	}

	raw := make([]byte, numDirBlocks*4)
	if err := m.readBlock(raw, m.superBlock.BlockMapAddr, 0); err != nil {
		return fmt.Errorf("failed to read block map: %w", err)
	}

	blockSize := int(m.superBlock.BlockSize)
	dirData := make([]byte, m.superBlock.NumDirectoryBytes)
	bytesRead := 0
	for i := uint32(0); i < numDirBlocks; i++ {
		blockIdx := binary.LittleEndian.Uint32(raw[i*4:])
		toRead := blockSize
		if bytesRead+toRead > len(dirData) {
			toRead = len(dirData) - bytesRead
		}
		if err := m.readBlock(dirData[bytesRead:bytesRead+toRead], blockIdx, 0); err != nil {
			return fmt.Errorf("failed to read directory block: %w", err)
		}
		bytesRead += toRead
	}

	return m.parseStreamDirectory(dirData)
}

// parseStreamDirectory parses the stream directory from raw bytes.
func (m *MSF) parseStreamDirectory(data []byte) error {
	if len(data) < 4 {
		return fmt.Errorf("stream directory too small: %d bytes", len(data))
	}
	numStreams := binary.LittleEndian.Uint32(data)
	offset := 4

	if uint64(numStreams)*4 > uint64(len(data)-offset) {
		return fmt.Errorf("stream directory truncated: %d streams declared", numStreams)
	}
	streamSizes := make([]uint32, numStreams)
	for i := range streamSizes {
		streamSizes[i] = binary.LittleEndian.Uint32(data[offset:])
		offset += 4
	}

	blockSize := m.superBlock.BlockSize
	streamBlocks := make([][]uint32, numStreams)
	for i, size := range streamSizes {
		if size == unusedStreamSize {
			continue
		}
		numBlocks := int((uint64(size) + uint64(blockSize) - 1) / uint64(blockSize))
		if numBlocks*4 > len(data)-offset {
			return fmt.Errorf("failed to read block indices for stream %d", i)
		}
		blocks := make([]uint32, numBlocks)
		for j := range blocks {
			blocks[j] = binary.LittleEndian.Uint32(data[offset:])
			offset += 4
		}
		streamBlocks[i] = blocks
	}

	m.directory = &StreamDirectory{
		NumStreams:   numStreams,
		StreamSizes:  streamSizes,
		StreamBlocks: streamBlocks,
	}
	return nil
}

// buildStreams creates Stream objects for all streams in the directory.
func (m *MSF) buildStreams() {
	m.streams = make([]*Stream, m.directory.NumStreams)
	for i, size := range m.directory.StreamSizes {
		if size == unusedStreamSize {
			m.streams[i] = &Stream{msf: m}
			continue
		}
		m.streams[i] = &Stream{
			msf:    m,
			size:   size,
			blocks: m.directory.StreamBlocks[i],
		}
	}
}
