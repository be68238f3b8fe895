package msf

import (
	"errors"
	"fmt"
	"io"
)

// Stream is a single stream within an MSF file, stored in possibly
// non-contiguous blocks.
type Stream struct {
	msf    *MSF
	size   uint32
	blocks []uint32
}

// Size returns the size of the stream in bytes.
func (s *Stream) Size() uint32 {
	return s.size
}

// Blocks returns the block indices that make up this stream.
func (s *Stream) Blocks() []uint32 {
	return s.blocks
}

// ReadAll reads the entire stream contents into a byte slice.
func (s *Stream) ReadAll() ([]byte, error) {
	data := make([]byte, s.size)
	if _, err := io.ReadFull(NewStreamReader(s), data); err != nil {
		return nil, fmt.Errorf("failed to read stream: %w", err)
	}
	return data, nil
}

// StreamReader provides sequential read access to a stream's data.
// A StreamReader is not safe for concurrent use; create one per goroutine.
type StreamReader struct {
	stream *Stream
	offset int64
}

// NewStreamReader creates a new reader for the given stream.
func NewStreamReader(s *Stream) *StreamReader {
	return &StreamReader{stream: s}
}

// Read implements io.Reader.
func (sr *StreamReader) Read(p []byte) (int, error) {
	size := int64(sr.stream.size)
	if sr.offset >= size {
		return 0, io.EOF
	}

	blockSize := int64(sr.stream.msf.superBlock.BlockSize)
	total := 0
	for len(p) > 0 && sr.offset < size {
		blockIdx := sr.offset / blockSize
		posInBlock := sr.offset % blockSize
		if blockIdx >= int64(len(sr.stream.blocks)) {
			return total, errors.New("stream block list shorter than stream size")
		}

		toRead := int64(len(p))
		if rem := blockSize - posInBlock; toRead > rem {
			toRead = rem
		}
		if rem := size - sr.offset; toRead > rem {
			toRead = rem
		}

		if err := sr.stream.msf.readBlock(p[:toRead], sr.stream.blocks[blockIdx], int(posInBlock)); err != nil {
			return total, err
		}
		total += int(toRead)
		sr.offset += toRead
		p = p[toRead:]
	}

	return total, nil
}

// Seek implements io.Seeker. Offsets are clamped to the stream bounds.
func (sr *StreamReader) Seek(offset int64, whence int) (int64, error) {
	var newOffset int64
	switch whence {
	case io.SeekStart:
		newOffset = offset
	case io.SeekCurrent:
		newOffset = sr.offset + offset
	case io.SeekEnd:
		newOffset = int64(sr.stream.size) + offset
	default:
		return sr.offset, fmt.Errorf("invalid whence %d", whence)
	}

	if newOffset < 0 {
		newOffset = 0
	}
	if newOffset > int64(sr.stream.size) {
		newOffset = int64(sr.stream.size)
	}
	sr.offset = newOffset
	return sr.offset, nil
}

// StreamDirectory represents the directory of all streams in the MSF file.
type StreamDirectory struct {
	NumStreams   uint32
	StreamSizes  []uint32
	StreamBlocks [][]uint32
}
