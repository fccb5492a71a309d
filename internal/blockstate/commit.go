package blockstate

import "github.com/category-labs/monad-go/monadtypes"

// Commit flushes every merged delta to the Trie Store, producing a new
// state root and recording block metadata — commit.
func (s *State) Commit(
	header monadtypes.BlockHeader,
	receipts []*monadtypes.Receipt,
	senders []monadtypes.Address,
	txns []*monadtypes.Transaction,
	withdrawals []*monadtypes.Withdrawal,
) (monadtypes.Word, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	accounts := make(map[monadtypes.Address]*monadtypes.Account, len(s.accounts)+len(s.deleted))
	for addr, a := range s.accounts {
		accounts[addr] = a
	}
	for addr := range s.deleted {
		accounts[addr] = nil
	}

	update := CommitUpdate{
		Block:         s.block,
		ParentBlockID: s.parentBlockID,
		Header:        header,
		Accounts:      accounts,
		Storage:       s.storage,
		Code:          s.code,
		Receipts:      receipts,
		Senders:       senders,
		Transactions:  txns,
		Withdrawals:   withdrawals,
	}
	return s.trie.Commit(update)
}
