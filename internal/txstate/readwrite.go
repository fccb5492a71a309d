package txstate

import (
	"github.com/category-labs/monad-go/internal/txstate/pmap"
	"github.com/category-labs/monad-go/monadtypes"
)

// ReadSet returns every account and storage value this transaction
// observed from Block State, for can_merge validation against Block
// State's then-current committed values.
func (s *State) ReadSet() ([]AccountRead, []StorageRead) {
	accountReads := make([]AccountRead, 0, len(s.touched))
	var storageReads []StorageRead

	for _, addr := range s.touched {
		e := s.accounts[addr]
		accountReads = append(accountReads, AccountRead{
			Address: addr,
			Existed: e.originalExists,
			Seen:    e.original,
		})
		e.txOriginal.ForEach(func(k pmap.Key, v [32]byte) bool {
			storageReads = append(storageReads, StorageRead{
				Key:  monadtypes.StorageKey{Address: addr, Slot: monadtypes.Word(k)},
				Seen: monadtypes.Word(v),
			})
			return true
		})
	}
	return accountReads, storageReads
}

// WriteSet returns every final account/storage/code delta this
// transaction produced, for merge() into Block State. Touched-dead
// cleanup (invariants, active from SpuriousDragon) reports a
// zero-balance, zero-nonce, empty-code account that was touched this
// transaction as Deleted even if it already existed with those same
// zero values, matching EIP-161.
func (s *State) WriteSet() ([]AccountWrite, []StorageWrite, []CodeWrite) {
	var accountWrites []AccountWrite
	var storageWrites []StorageWrite

	for _, addr := range s.touched {
		e := s.accounts[addr]

		if s.rules.IsSpuriousDragon && e.touched && e.current.IsEmpty() {
			accountWrites = append(accountWrites, AccountWrite{Address: addr, Deleted: true})
		} else if e.selfDestructed {
			accountWrites = append(accountWrites, AccountWrite{Address: addr, Deleted: true})
		} else if e.touched || e.createdThisTx {
			accountWrites = append(accountWrites, AccountWrite{Address: addr, Account: e.current})
		}

		e.storage.ForEach(func(k pmap.Key, v [32]byte) bool {
			storageWrites = append(storageWrites, StorageWrite{
				Key:   monadtypes.StorageKey{Address: addr, Slot: monadtypes.Word(k)},
				Value: monadtypes.Word(v),
			})
			return true
		})
	}

	codeWrites := make([]CodeWrite, 0, len(s.codeOrder))
	for _, hash := range s.codeOrder {
		codeWrites = append(codeWrites, CodeWrite{Hash: hash, Code: s.codeBytes[hash]})
	}
	return accountWrites, storageWrites, codeWrites
}
