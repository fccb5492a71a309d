package pageio

import "github.com/cockroachdb/errors"

// WriteBufferSize bounds the size of a single staged payload, mirroring
// WRITE_BUFFER_SIZE; a node that would not fit is rejected rather than
// silently truncated.
const WriteBufferSize = 64 * 1024

// WriteBuffer stages a length-prefixed node payload and flushes it to a
// Store, padding to a page boundary. Each staged payload becomes its own
// chunk (and thus its own ChunkOffset): the accumulation named in the
// design note collapses here to "one page-aligned Append per node", since a
// commit's child-before-parent write order already means consecutive
// writes are small and sequential — the real win of batching (fewer
// syscalls per flush) is left as a future compaction-pass optimization.
type WriteBuffer struct {
	store *Store
}

func NewWriteBuffer(store *Store) *WriteBuffer {
	return &WriteBuffer{store: store}
}

// Stage writes a length-prefixed payload and returns its ChunkOffset.
func (w *WriteBuffer) Stage(payload []byte) (ChunkOffset, error) {
	if len(payload)+4 > WriteBufferSize {
		return 0, errors.Newf("pageio: payload of %d bytes exceeds write buffer size", len(payload))
	}
	entry := make([]byte, 4+len(payload))
	entry[0] = byte(len(payload) >> 24)
	entry[1] = byte(len(payload) >> 16)
	entry[2] = byte(len(payload) >> 8)
	entry[3] = byte(len(payload))
	copy(entry[4:], payload)
	return w.store.Append(entry)
}
