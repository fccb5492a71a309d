package blockstate

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/category-labs/monad-go/internal/txstate"
	"github.com/category-labs/monad-go/monadtypes"
)

type fakeTrie struct {
	accounts map[monadtypes.Address]*monadtypes.Account
	storage  map[monadtypes.StorageKey]monadtypes.Word
	code     map[monadtypes.Word]monadtypes.Code
	commits  []CommitUpdate
}

func newFakeTrie() *fakeTrie {
	return &fakeTrie{
		accounts: map[monadtypes.Address]*monadtypes.Account{},
		storage:  map[monadtypes.StorageKey]monadtypes.Word{},
		code:     map[monadtypes.Word]monadtypes.Code{},
	}
}

func (t *fakeTrie) ReadAccount(block uint64, parent monadtypes.Word, addr monadtypes.Address) (*monadtypes.Account, bool, error) {
	a, ok := t.accounts[addr]
	return a, ok, nil
}

func (t *fakeTrie) ReadStorage(block uint64, parent monadtypes.Word, addr monadtypes.Address, inc monadtypes.Incarnation, key monadtypes.Word) (monadtypes.Word, error) {
	return t.storage[monadtypes.StorageKey{Address: addr, Slot: key}], nil
}

func (t *fakeTrie) ReadCode(hash monadtypes.Word) (monadtypes.Code, error) {
	return t.code[hash], nil
}

func (t *fakeTrie) Commit(u CommitUpdate) (monadtypes.Word, error) {
	t.commits = append(t.commits, u)
	return monadtypes.Word{0x01}, nil
}

func addr(b byte) monadtypes.Address {
	var a monadtypes.Address
	a[19] = b
	return a
}

func TestReadAccountFallsThroughToTrie(t *testing.T) {
	trie := newFakeTrie()
	trie.accounts[addr(1)] = &monadtypes.Account{Balance: uint256.NewInt(5), CodeHash: monadtypes.EmptyCodeHash}
	s := New(trie, 1, monadtypes.Word{}, Metrics{})

	a, existed, err := s.ReadAccount(addr(1))
	require.NoError(t, err)
	require.True(t, existed)
	require.Equal(t, uint64(5), a.Balance.Uint64())
}

func TestCanMergeFailsOnStaleRead(t *testing.T) {
	trie := newFakeTrie()
	trie.accounts[addr(1)] = &monadtypes.Account{Balance: uint256.NewInt(5), CodeHash: monadtypes.EmptyCodeHash}
	s := New(trie, 1, monadtypes.Word{}, Metrics{})

	reads := []txstate.AccountRead{{Address: addr(1), Existed: true, Seen: monadtypes.Account{Balance: uint256.NewInt(5), CodeHash: monadtypes.EmptyCodeHash}}}
	require.True(t, s.CanMerge(reads, nil))

	s.Merge([]txstate.AccountWrite{{Address: addr(1), Account: monadtypes.Account{Balance: uint256.NewInt(9), CodeHash: monadtypes.EmptyCodeHash}}}, nil, nil)

	require.False(t, s.CanMerge(reads, nil))
}

func TestMergeThenReadObservesNewValue(t *testing.T) {
	trie := newFakeTrie()
	s := New(trie, 1, monadtypes.Word{}, Metrics{})

	s.Merge(
		[]txstate.AccountWrite{{Address: addr(1), Account: monadtypes.Account{Balance: uint256.NewInt(42), CodeHash: monadtypes.EmptyCodeHash}}},
		[]txstate.StorageWrite{{Key: monadtypes.StorageKey{Address: addr(1), Slot: monadtypes.Word{0x1}}, Value: monadtypes.Word{0x2}}},
		nil,
	)

	a, existed, err := s.ReadAccount(addr(1))
	require.NoError(t, err)
	require.True(t, existed)
	require.Equal(t, uint64(42), a.Balance.Uint64())

	v, err := s.ReadStorage(addr(1), monadtypes.Incarnation{}, monadtypes.Word{0x1})
	require.NoError(t, err)
	require.Equal(t, monadtypes.Word{0x2}, v)
}

func TestDeletedAccountReadsAsAbsent(t *testing.T) {
	trie := newFakeTrie()
	trie.accounts[addr(1)] = &monadtypes.Account{Balance: uint256.NewInt(5), CodeHash: monadtypes.EmptyCodeHash}
	s := New(trie, 1, monadtypes.Word{}, Metrics{})

	s.Merge([]txstate.AccountWrite{{Address: addr(1), Deleted: true}}, nil, nil)

	_, existed, err := s.ReadAccount(addr(1))
	require.NoError(t, err)
	require.False(t, existed)
}

func TestCommitFlushesToTrie(t *testing.T) {
	trie := newFakeTrie()
	s := New(trie, 1, monadtypes.Word{}, Metrics{})
	s.Merge([]txstate.AccountWrite{{Address: addr(1), Account: monadtypes.Account{CodeHash: monadtypes.EmptyCodeHash}}}, nil, nil)

	root, err := s.Commit(monadtypes.BlockHeader{Number: 1}, nil, nil, nil, nil)
	require.NoError(t, err)
	require.Equal(t, monadtypes.Word{0x01}, root)
	require.Len(t, trie.commits, 1)
	require.Contains(t, trie.commits[0].Accounts, addr(1))
}
