package blockstate

import (
	"github.com/category-labs/monad-go/internal/txstate"
	"github.com/category-labs/monad-go/monadtypes"
)

// CanMerge reports whether every original value a transaction observed
// still matches Block State's current committed value — 
// can_merge. The executor never calls CanMerge/Merge for two
// transactions concurrently (merges are serialized by the in-order merge
// barrier), so a plain read lock here is safe against nothing but
// concurrent read_account/read_storage calls from still-executing
// siblings.
func (s *State) CanMerge(accountReads []txstate.AccountRead, storageReads []txstate.StorageRead) bool {
	s.mu.RLock()
	ok := s.canMergeLocked(accountReads, storageReads)
	s.mu.RUnlock()

	s.metrics.incMergeAttempt()
	if !ok {
		s.metrics.incMergeFailure()
	}
	return ok
}

func (s *State) canMergeLocked(accountReads []txstate.AccountRead, storageReads []txstate.StorageRead) bool {
	for _, r := range accountReads {
		if s.deleted[r.Address] {
			if r.Existed {
				return false
			}
			continue
		}
		cur, ok := s.accounts[r.Address]
		if !ok {
			// Not yet merged by any transaction this block: the committed
			// value is still whatever the memoized Trie Store read
			// produced, which is exactly what the reader observed.
			continue
		}
		if !r.Existed || !accountsEqual(&r.Seen, cur) {
			return false
		}
	}
	for _, r := range storageReads {
		if s.deleted[r.Key.Address] {
			if !r.Seen.IsZero() {
				return false
			}
			continue
		}
		cur, ok := s.storage[r.Key]
		if !ok {
			continue
		}
		if cur != r.Seen {
			return false
		}
	}
	return true
}

func accountsEqual(a, b *monadtypes.Account) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Nonce == b.Nonce &&
		a.CodeHash == b.CodeHash &&
		a.Incarnation == b.Incarnation &&
		a.Balance.Eq(b.Balance)
}

// Merge copies the transaction's write set into Block State's delta maps
// under its own exclusive lock, separate from the read lock CanMerge
// takes. The caller runs CanMerge first; Merge itself performs no
// validation of the writes and reports no error.
func (s *State) Merge(accountWrites []txstate.AccountWrite, storageWrites []txstate.StorageWrite, codeWrites []txstate.CodeWrite) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, w := range accountWrites {
		if w.Deleted {
			s.deleted[w.Address] = true
			delete(s.accounts, w.Address)
			continue
		}
		delete(s.deleted, w.Address)
		acct := w.Account
		s.accounts[w.Address] = &acct
	}
	for _, w := range storageWrites {
		s.storage[w.Key] = w.Value
	}
	for _, w := range codeWrites {
		if _, ok := s.code[w.Hash]; !ok {
			s.code[w.Hash] = w.Code
		}
	}
}
