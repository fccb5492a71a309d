package trie

import (
	"sync"

	"github.com/google/btree"

	"github.com/category-labs/monad-go/internal/trie/pageio"
	"github.com/category-labs/monad-go/monadtypes"
)

// dirEntry is the top-level directory record for one block: its root chunk
// offset plus the auxiliary roots (receipts, transactions, withdrawals).
type dirEntry struct {
	Block            uint64
	BlockID          monadtypes.Word
	RootOffset       pageio.ChunkOffset
	StateRoot        monadtypes.Word
	ReceiptsRoot     monadtypes.Word
	TransactionsRoot monadtypes.Word
	WithdrawalsRoot  monadtypes.Word

	Verified bool
	Voted    bool
	Proposed bool
}

func dirEntryLess(a, b dirEntry) bool { return a.Block < b.Block }

// directory is the block-number-indexed metadata map described in spec
// §4.5: "the top-level directory maps block number → root chunk offset
// plus auxiliary roots". It is an in-memory ordered map (google/btree,
// chosen over a plain map since compaction candidate selection needs
// ordered range scans over block history) published atomically on every
// commit/finalize/metadata update by replacing the entry under a mutex —
// the single atomic metadata update the store's crash-tolerance depends
// on.
type directory struct {
	mu   sync.RWMutex
	tree *btree.BTreeG[dirEntry]
}

func newDirectory() *directory {
	return &directory{tree: btree.NewG(32, dirEntryLess)}
}

func (d *directory) get(block uint64) (dirEntry, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.tree.Get(dirEntry{Block: block})
}

// latest returns the highest-numbered entry in the directory.
func (d *directory) latest() (dirEntry, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	max, ok := d.tree.Max()
	return max, ok
}

// publish atomically inserts or replaces block's directory entry.
func (d *directory) publish(e dirEntry) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.tree.ReplaceOrInsert(e)
}

// update applies fn to block's existing entry (or a zero entry if absent)
// and republishes it; used for the metadata-only updates
// (update_verified_block/update_voted_metadata/update_proposed_metadata)
// that don't carry a new root.
func (d *directory) update(block uint64, fn func(*dirEntry)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	e, _ := d.tree.Get(dirEntry{Block: block})
	e.Block = block
	fn(&e)
	d.tree.ReplaceOrInsert(e)
}

// ascendRange iterates directory entries with Block in [from, to), in
// increasing order — the ordered range scan compaction candidate
// selection needs.
func (d *directory) ascendRange(from, to uint64, visit func(dirEntry) bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	d.tree.AscendRange(dirEntry{Block: from}, dirEntry{Block: to}, func(e dirEntry) bool {
		return visit(e)
	})
}
