package blockstate

import "github.com/category-labs/monad-go/monadtypes"

// TrieStore is the subset of the Trie Store's public contract Block State
// depends on: historical read-through as of a parent block, and the
// commit that produces a new state root.
type TrieStore interface {
	ReadAccount(block uint64, parentBlockID monadtypes.Word, addr monadtypes.Address) (*monadtypes.Account, bool, error)
	ReadStorage(block uint64, parentBlockID monadtypes.Word, addr monadtypes.Address, incarnation monadtypes.Incarnation, key monadtypes.Word) (monadtypes.Word, error)
	ReadCode(hash monadtypes.Word) (monadtypes.Code, error)

	Commit(update CommitUpdate) (monadtypes.Word, error)
}

// CommitUpdate is the full set of per-block deltas and metadata Block
// State flushes to the Trie Store on commit.
type CommitUpdate struct {
	Block         uint64
	ParentBlockID monadtypes.Word
	Header        monadtypes.BlockHeader
	Accounts      map[monadtypes.Address]*monadtypes.Account // nil value means deleted
	Storage       map[monadtypes.StorageKey]monadtypes.Word
	Code          map[monadtypes.Word]monadtypes.Code
	Receipts      []*monadtypes.Receipt
	Senders       []monadtypes.Address
	Transactions  []*monadtypes.Transaction
	Withdrawals   []*monadtypes.Withdrawal
}
