package txstate

import "github.com/category-labs/monad-go/monadtypes"

// Reader is the subset of Block State's public contract () that a
// Transaction State needs: read-through access to the committed view as of
// block start, memoized by the caller.
type Reader interface {
	ReadAccount(addr monadtypes.Address) (*monadtypes.Account, bool, error)
	ReadStorage(addr monadtypes.Address, inc monadtypes.Incarnation, key monadtypes.Word) (monadtypes.Word, error)
	ReadCode(hash monadtypes.Word) (monadtypes.Code, error)
}

// AccountRead records the value a Transaction State observed the first time
// it touched addr, for later can_merge validation against Block State's
// then-current committed value (can_merge).
type AccountRead struct {
	Address monadtypes.Address
	Existed bool
	Seen    monadtypes.Account
}

// StorageRead records an observed (address, key) -> value pair.
type StorageRead struct {
	Key  monadtypes.StorageKey
	Seen monadtypes.Word
}

// AccountWrite is a final per-account delta to merge into Block State.
type AccountWrite struct {
	Address monadtypes.Address
	Account monadtypes.Account
	Deleted bool // touched-dead cleanup: account should be removed entirely
}

// StorageWrite is a final (address, key) -> value delta.
type StorageWrite struct {
	Key   monadtypes.StorageKey
	Value monadtypes.Word
}

// CodeWrite publishes newly-created code into Block State's code map.
type CodeWrite struct {
	Hash monadtypes.Word
	Code monadtypes.Code
}
