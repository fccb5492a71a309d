// Package runloop drives the block ingestion loop: pulling one block at a
// time from an external source, running it through the Parallel Executor,
// committing the result to the Trie Store, and handling shutdown signals
// and state snapshots in between blocks.
package runloop

import (
	"context"

	"github.com/category-labs/monad-go/monadtypes"
)

// Block is one decoded block ready for execution: a header, its
// transaction list (senders already recovered), and any withdrawals.
// Decoding it from whatever wire/file format a deployment uses — RLP
// block files, a JSONL export, a network sync stream — is an external
// collaborator's job, not this package's.
type Block struct {
	// ID is the consensus-assigned block identifier Block State keys its
	// reads by; consensus itself is an external collaborator (out of
	// scope per the module's non-goals), so this is supplied data, not
	// something this package derives from the header.
	ID           monadtypes.Word
	Header       monadtypes.BlockHeader
	Transactions []*monadtypes.Transaction
	Withdrawals  []*monadtypes.Withdrawal
}

// Source supplies blocks to the loop in order. Next returns ok=false once
// the source is exhausted (end of a block file, end of a bounded replay
// range); a network-backed source would instead block until the next
// block is available or ctx is cancelled.
type Source interface {
	Next(ctx context.Context) (*Block, bool, error)
}
