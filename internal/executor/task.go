package executor

import (
	"github.com/category-labs/monad-go/internal/txstate"
	"github.com/category-labs/monad-go/monadtypes"
)

// TxTask is one transaction's unit of speculative work. It is re-queued
// with a bumped Attempt every time its execution fails to merge against
// Block State.
type TxTask struct {
	Index int
	Tx    *monadtypes.Transaction

	Attempt int
}

// Result is one speculative execution's outcome, awaiting in-order
// validation against Block State (step 4).
type Result struct {
	Task *TxTask

	Receipt *monadtypes.Receipt

	AccountReads  []txstate.AccountRead
	StorageReads  []txstate.StorageRead
	AccountWrites []txstate.AccountWrite
	StorageWrites []txstate.StorageWrite
	CodeWrites    []txstate.CodeWrite

	// Reserved reports whether the Reserve-Balance Tracker vetoed this
	// execution's state effects (revert_transaction): the EVM
	// itself reported success, but AccountWrites/StorageWrites have
	// already been narrowed to the sender's gas/nonce consumption and the
	// coinbase's fee credit.
	Reserved bool

	// Err is fatal if non-nil: sender recovery failure, an invariant
	// violation, or an I/O error. A transaction that merely reverted in
	// the EVM is not an error here, it is a normal failed Receipt.
	Err error
}
