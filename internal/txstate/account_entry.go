package txstate

import (
	"github.com/holiman/uint256"

	"github.com/category-labs/monad-go/internal/txstate/pmap"
	"github.com/category-labs/monad-go/monadtypes"
)

// accountEntry is the per-transaction "current snapshot" from : the
// account fields, a persistent storage map, a persistent transient storage
// map, a touched bit, and the reserve-balance bookkeeping fields, all
// layered above the original value this transaction observed in Block
// State.
type accountEntry struct {
	original       monadtypes.Account
	originalExists bool

	current monadtypes.Account

	storage   pmap.Map
	transient pmap.Map

	// txOriginal caches the value first observed for a key within this
	// transaction (read through Block State on first touch), used to
	// compute StorageStatus per EIP-2200/3529 dirty-slot accounting.
	txOriginal pmap.Map

	touched        bool
	selfDestructed bool
	createdThisTx  bool
	beneficiary    monadtypes.Address

	code    monadtypes.Code
	codeSet bool

	rbViolationThreshold *uint256.Int
	rbFailed             bool
}

func newAccountEntry(seen *monadtypes.Account, existed bool) *accountEntry {
	e := &accountEntry{originalExists: existed}
	if seen != nil {
		e.original = *seen.Copy()
		e.current = *seen.Copy()
	} else {
		e.original = *monadtypes.NewAccount()
		e.current = *monadtypes.NewAccount()
	}
	return e
}

func storageKeyBytes(key monadtypes.Word) pmap.Key { return pmap.Key(key) }

func wordFromPmap(v [32]byte) monadtypes.Word { return monadtypes.Word(v) }

// getStorageOverlay returns the key's value in this transaction's private view:
// this entry's own overlay if present, else zero (the caller is
// responsible for falling back to Block State for values never written
// this transaction — see State.GetStorage).
func (e *accountEntry) getStorageOverlay(key monadtypes.Word) (monadtypes.Word, bool) {
	v, ok := e.storage.Get(storageKeyBytes(key))
	if !ok {
		return monadtypes.Word{}, false
	}
	return wordFromPmap(v), true
}

func (e *accountEntry) setStorageOverlay(key, value monadtypes.Word) {
	e.storage = e.storage.Set(storageKeyBytes(key), [32]byte(value))
}

func (e *accountEntry) getTransient(key monadtypes.Word) monadtypes.Word {
	v, ok := e.transient.Get(storageKeyBytes(key))
	if !ok {
		return monadtypes.Word{}
	}
	return wordFromPmap(v)
}

func (e *accountEntry) setTransient(key, value monadtypes.Word) {
	e.transient = e.transient.Set(storageKeyBytes(key), [32]byte(value))
}

// observeTxOriginal records value as the transaction-start value for key the
// first time it is seen this transaction; subsequent calls are no-ops.
func (e *accountEntry) observeTxOriginal(key, value monadtypes.Word) monadtypes.Word {
	if v, ok := e.txOriginal.Get(storageKeyBytes(key)); ok {
		return wordFromPmap(v)
	}
	e.txOriginal = e.txOriginal.Set(storageKeyBytes(key), [32]byte(value))
	return value
}
