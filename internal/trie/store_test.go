package trie

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/category-labs/monad-go/internal/blockstate"
	"github.com/category-labs/monad-go/monadtypes"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir(), 2)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func someAddr(b byte) monadtypes.Address {
	var a monadtypes.Address
	a[len(a)-1] = b
	return a
}

func TestReadAccountMissingReturnsNotFound(t *testing.T) {
	s := openTestStore(t)
	acct, found, err := s.ReadAccount(1, monadtypes.Word{}, someAddr(1))
	require.NoError(t, err)
	require.False(t, found)
	require.Nil(t, acct)
}

func TestCommitThenReadAccountRoundTrips(t *testing.T) {
	s := openTestStore(t)
	addr := someAddr(1)
	acct := &monadtypes.Account{
		Balance:  uint256.NewInt(42),
		Nonce:    7,
		CodeHash: monadtypes.EmptyCodeHash,
	}

	root, err := s.Commit(blockstate.CommitUpdate{
		Block:    1,
		Accounts: map[monadtypes.Address]*monadtypes.Account{addr: acct},
	})
	require.NoError(t, err)
	require.NotEqual(t, monadtypes.Word{}, root)
	require.Equal(t, root, s.StateRoot())

	got, found, err := s.ReadAccount(1, monadtypes.Word{}, addr)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, acct.Nonce, got.Nonce)
	require.Equal(t, acct.CodeHash, got.CodeHash)
	require.True(t, acct.Balance.Eq(got.Balance))
}

func TestCommitDeletesAccountAndItsStorage(t *testing.T) {
	s := openTestStore(t)
	addr := someAddr(2)
	slot := monadtypes.BytesToWord([]byte{0x05})
	val := monadtypes.BytesToWord([]byte{0x09})

	_, err := s.Commit(blockstate.CommitUpdate{
		Block: 1,
		Accounts: map[monadtypes.Address]*monadtypes.Account{
			addr: {Balance: uint256.NewInt(1), CodeHash: monadtypes.EmptyCodeHash, Incarnation: monadtypes.Incarnation{Block: 1}},
		},
		Storage: map[monadtypes.StorageKey]monadtypes.Word{
			{Address: addr, Slot: slot}: val,
		},
	})
	require.NoError(t, err)

	got, err := s.ReadStorage(1, monadtypes.Word{}, addr, monadtypes.Incarnation{Block: 1}, slot)
	require.NoError(t, err)
	require.Equal(t, val, got)

	_, err = s.Commit(blockstate.CommitUpdate{
		Block: 2,
		Accounts: map[monadtypes.Address]*monadtypes.Account{
			addr: nil,
		},
	})
	require.NoError(t, err)

	_, found, err := s.ReadAccount(2, monadtypes.Word{}, addr)
	require.NoError(t, err)
	require.False(t, found)

	got, err = s.ReadStorage(2, monadtypes.Word{}, addr, monadtypes.Incarnation{Block: 1}, slot)
	require.NoError(t, err)
	require.Equal(t, monadtypes.Word{}, got)
}

func TestCommitPersistsMultipleStorageSlotsPerAddress(t *testing.T) {
	s := openTestStore(t)
	addr := someAddr(3)
	slotA := monadtypes.BytesToWord([]byte{0x01})
	slotB := monadtypes.BytesToWord([]byte{0x02})
	valA := monadtypes.BytesToWord([]byte{0xaa})
	valB := monadtypes.BytesToWord([]byte{0xbb})

	_, err := s.Commit(blockstate.CommitUpdate{
		Block: 1,
		Accounts: map[monadtypes.Address]*monadtypes.Account{
			addr: {Balance: uint256.NewInt(0), CodeHash: monadtypes.EmptyCodeHash},
		},
		Storage: map[monadtypes.StorageKey]monadtypes.Word{
			{Address: addr, Slot: slotA}: valA,
			{Address: addr, Slot: slotB}: valB,
		},
	})
	require.NoError(t, err)

	gotA, err := s.ReadStorage(1, monadtypes.Word{}, addr, monadtypes.Incarnation{}, slotA)
	require.NoError(t, err)
	require.Equal(t, valA, gotA)

	gotB, err := s.ReadStorage(1, monadtypes.Word{}, addr, monadtypes.Incarnation{}, slotB)
	require.NoError(t, err)
	require.Equal(t, valB, gotB)
}

func TestCommitPersistsAndReadsCode(t *testing.T) {
	s := openTestStore(t)
	code := monadtypes.Code([]byte{0x60, 0x00, 0x60, 0x00})
	hash := keccak256(code)

	_, err := s.Commit(blockstate.CommitUpdate{
		Block: 1,
		Code:  map[monadtypes.Word]monadtypes.Code{hash: code},
	})
	require.NoError(t, err)

	got, err := s.ReadCode(hash)
	require.NoError(t, err)
	require.Equal(t, code, got)
}

func TestReadCodeEmptyHashReturnsNil(t *testing.T) {
	s := openTestStore(t)
	got, err := s.ReadCode(monadtypes.EmptyCodeHash)
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestCommitComputesAuxRootsFromTransactionsReceiptsWithdrawals(t *testing.T) {
	s := openTestStore(t)
	to := someAddr(9)
	root, err := s.Commit(blockstate.CommitUpdate{
		Block: 1,
		Transactions: []*monadtypes.Transaction{
			{Nonce: 1, GasLimit: 21000, To: &to, Sender: someAddr(1)},
		},
		Receipts: []*monadtypes.Receipt{
			{Status: 1, GasUsed: 21000},
		},
		Withdrawals: []*monadtypes.Withdrawal{
			{Index: 1, ValidatorIndex: 2, Address: someAddr(3), AmountGwei: 10},
		},
	})
	require.NoError(t, err)
	require.Equal(t, root, s.StateRoot())
	require.NotEqual(t, monadtypes.Word{}, s.TransactionsRoot())
	require.NotEqual(t, monadtypes.Word{}, s.ReceiptsRoot())
	require.NotEqual(t, monadtypes.Word{}, s.WithdrawalsRoot())
}

func TestCommitWithNoAuxListsLeavesRootsZero(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Commit(blockstate.CommitUpdate{Block: 1})
	require.NoError(t, err)
	require.Equal(t, monadtypes.Word{}, s.TransactionsRoot())
	require.Equal(t, monadtypes.Word{}, s.ReceiptsRoot())
	require.Equal(t, monadtypes.Word{}, s.WithdrawalsRoot())
}

func TestMetadataUpdatesPublishDirectoryEntries(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Commit(blockstate.CommitUpdate{Block: 1})
	require.NoError(t, err)

	require.NoError(t, s.UpdateVerifiedBlock(1))
	require.NoError(t, s.UpdateVotedMetadata(1, monadtypes.BytesToWord([]byte{1})))
	require.NoError(t, s.UpdateProposedMetadata(1, monadtypes.BytesToWord([]byte{2})))
	require.NoError(t, s.Finalize(1, monadtypes.BytesToWord([]byte{3})))

	e, ok := s.dir.get(1)
	require.True(t, ok)
	require.True(t, e.Verified)
	require.True(t, e.Voted)
	require.True(t, e.Proposed)
	require.Equal(t, monadtypes.BytesToWord([]byte{3}), e.BlockID)
}

func TestSetBlockAndPrefixPinsNextCommitTarget(t *testing.T) {
	s := openTestStore(t)
	blockID := monadtypes.BytesToWord([]byte{0x42})
	s.SetBlockAndPrefix(5, blockID)
	require.Equal(t, uint64(5), s.block)
	require.Equal(t, blockID, s.blockID)
}

func TestCommitAccountWithNonZeroStorageChangesStateRootAcrossBlocks(t *testing.T) {
	s := openTestStore(t)
	addr := someAddr(4)
	root1, err := s.Commit(blockstate.CommitUpdate{
		Block: 1,
		Accounts: map[monadtypes.Address]*monadtypes.Account{
			addr: {Balance: uint256.NewInt(1), CodeHash: monadtypes.EmptyCodeHash},
		},
	})
	require.NoError(t, err)

	root2, err := s.Commit(blockstate.CommitUpdate{
		Block: 2,
		Accounts: map[monadtypes.Address]*monadtypes.Account{
			addr: {Balance: uint256.NewInt(2), CodeHash: monadtypes.EmptyCodeHash},
		},
	})
	require.NoError(t, err)
	require.NotEqual(t, root1, root2)
}
