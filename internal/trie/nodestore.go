package trie

import (
	"sync"

	"github.com/VictoriaMetrics/fastcache"

	"github.com/category-labs/monad-go/internal/trie/pageio"
	"github.com/category-labs/monad-go/monadtypes"
)

// nodeStore is the Trie Store's write path and clean-node cache: every
// dirty node hashed during a commit is persisted here, asynchronously
// through the I/O ring, and cached so a node just written doesn't have to
// round-trip through disk to be read back.
type nodeStore struct {
	ring  *pageio.Ring
	wb    *pageio.WriteBuffer
	cache *fastcache.Cache

	mu    sync.Mutex
	index map[monadtypes.Word]pageio.ChunkOffset
}

func newNodeStore(store *pageio.Store, ring *pageio.Ring, cacheBytes int) *nodeStore {
	return &nodeStore{
		ring:  ring,
		wb:    pageio.NewWriteBuffer(store),
		cache: fastcache.New(cacheBytes),
		index: make(map[monadtypes.Word]pageio.ChunkOffset),
	}
}

// persist writes encoded's bytes through the I/O ring and records its
// location, keyed by hash, in both the clean-node cache and the offset
// index a cold restart would otherwise need to rebuild by replaying the
// chunk log.
func (s *nodeStore) persist(hash monadtypes.Word, encoded []byte) error {
	return pageio.FiberWrite(s.ring, func() error {
		off, err := s.wb.Stage(encoded)
		if err != nil {
			return err
		}
		s.mu.Lock()
		s.index[hash] = off
		s.mu.Unlock()
		s.cache.Set(hash[:], encoded)
		return nil
	})
}

// load returns a persisted node's bytes by hash, consulting the clean-node
// cache before falling through to the I/O ring.
func (s *nodeStore) load(store *pageio.Store, hash monadtypes.Word) ([]byte, bool, error) {
	if b, ok := s.cache.HasGet(nil, hash[:]); ok {
		return b, true, nil
	}
	s.mu.Lock()
	off, ok := s.index[hash]
	s.mu.Unlock()
	if !ok {
		return nil, false, nil
	}
	b, err := pageio.FiberReadNode(s.ring, func() ([]byte, error) {
		return store.ReadChunk(off)
	})
	if err != nil {
		return nil, false, err
	}
	s.cache.Set(hash[:], b)
	return b, true, nil
}
