// Package pageio implements the Trie Store's append-only, page-aligned
// chunk layout (): every write is padded to a page boundary and
// addressed by a chunk_offset carrying its page count in the spare low
// bits of the byte offset.
package pageio

import (
	"os"
	"sync"

	"github.com/cockroachdb/errors"
)

// DiskPageSize is the fixed page size every write is aligned and padded to.
const DiskPageSize = 512

// offsetShift is wide enough to hold any realistic page count (up to 255
// pages, 127.5 KiB) in the spare low bits of a chunk offset while leaving the
// high bits as a page-aligned byte offset.
const offsetShift = 8

// ChunkOffset packs a page-aligned byte offset and a page count into one
// 64-bit value: offset = (pageIndex << offsetShift) | pageCount, mirroring
// the C-side "page count in spare bits" trick so a reader knows the exact
// read length without a separate lookup.
type ChunkOffset uint64

// NewChunkOffset builds a ChunkOffset from a page-aligned byte offset and a
// page count (1..255).
func NewChunkOffset(byteOffset int64, pageCount int) ChunkOffset {
	pageIndex := uint64(byteOffset) / DiskPageSize
	return ChunkOffset(pageIndex<<offsetShift | uint64(pageCount&0xff))
}

// ByteOffset returns the page-aligned byte offset this chunk starts at.
func (c ChunkOffset) ByteOffset() int64 {
	return int64(uint64(c) >> offsetShift * DiskPageSize)
}

// PageCount returns the number of pages this chunk spans.
func (c ChunkOffset) PageCount() int {
	return int(uint64(c) & 0xff)
}

// Len returns the total byte length of the chunk, including page padding.
func (c ChunkOffset) Len() int64 {
	return int64(c.PageCount()) * DiskPageSize
}

func (c ChunkOffset) IsZero() bool { return c == 0 }

// Store is an append-only, page-aligned chunk file. Every Append call pads
// its payload to a whole number of pages and returns the ChunkOffset the
// reader needs to reconstruct the original byte length. Compaction (the
// background process that reclaims chunks written before a crash and never
// published through a metadata update) is a separate concern not
// implemented here.
type Store struct {
	mu   sync.Mutex
	file *os.File
	tail int64 // next page-aligned byte offset to write at
}

// Open opens (creating if necessary) an append-only chunk file at path.
func Open(path string) (*Store, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, errors.Wrapf(err, "pageio: open %s", path)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errors.Wrapf(err, "pageio: stat %s", path)
	}
	tail := info.Size()
	if rem := tail % DiskPageSize; rem != 0 {
		tail += DiskPageSize - rem
	}
	return &Store{file: f, tail: tail}, nil
}

func (s *Store) Close() error { return s.file.Close() }

// Append pads payload to a whole number of pages and writes it at the
// current tail, returning the resulting ChunkOffset. Crossing a previous
// chunk boundary never happens since every write starts at the tail. No
// batching happens here or in WriteBuffer: each call writes one chunk.
func (s *Store) Append(payload []byte) (ChunkOffset, error) {
	pageCount := (len(payload) + DiskPageSize - 1) / DiskPageSize
	if pageCount == 0 {
		pageCount = 1
	}
	if pageCount > 0xff {
		return 0, errors.Newf("pageio: payload spans %d pages, max is 255", pageCount)
	}
	padded := make([]byte, pageCount*DiskPageSize)
	copy(padded, payload)

	s.mu.Lock()
	offset := s.tail
	s.tail += int64(len(padded))
	s.mu.Unlock()

	if _, err := s.file.WriteAt(padded, offset); err != nil {
		return 0, errors.Wrap(err, "pageio: write")
	}
	return NewChunkOffset(offset, pageCount), nil
}

// ReadChunk reads exactly the bytes a ChunkOffset addresses and trims
// trailing padding using the length prefix every chunk is written with
// (see WriteBuffer.Stage): the first 4 bytes of the chunk are the real
// payload length.
func (s *Store) ReadChunk(off ChunkOffset) ([]byte, error) {
	buf := make([]byte, off.Len())
	if _, err := s.file.ReadAt(buf, off.ByteOffset()); err != nil {
		return nil, errors.Wrap(err, "pageio: read")
	}
	if len(buf) < 4 {
		return nil, errors.New("pageio: invalid node header: chunk too short")
	}
	n := uint32(buf[0])<<24 | uint32(buf[1])<<16 | uint32(buf[2])<<8 | uint32(buf[3])
	if int64(n)+4 > int64(len(buf)) {
		return nil, errors.New("pageio: invalid node header: length exceeds chunk")
	}
	return buf[4 : 4+n], nil
}
