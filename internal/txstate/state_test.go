package txstate

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/category-labs/monad-go/internal/revision"
	"github.com/category-labs/monad-go/monadtypes"
)

type fakeReader struct {
	accounts map[monadtypes.Address]*monadtypes.Account
	storage  map[monadtypes.StorageKey]monadtypes.Word
	code     map[monadtypes.Word]monadtypes.Code
}

func newFakeReader() *fakeReader {
	return &fakeReader{
		accounts: map[monadtypes.Address]*monadtypes.Account{},
		storage:  map[monadtypes.StorageKey]monadtypes.Word{},
		code:     map[monadtypes.Word]monadtypes.Code{},
	}
}

func (r *fakeReader) ReadAccount(addr monadtypes.Address) (*monadtypes.Account, bool, error) {
	if a, ok := r.accounts[addr]; ok {
		return a, true, nil
	}
	return nil, false, nil
}

func (r *fakeReader) ReadStorage(addr monadtypes.Address, inc monadtypes.Incarnation, key monadtypes.Word) (monadtypes.Word, error) {
	return r.storage[monadtypes.StorageKey{Address: addr, Slot: key}], nil
}

func (r *fakeReader) ReadCode(hash monadtypes.Word) (monadtypes.Code, error) {
	return r.code[hash], nil
}

var cancunRules = revision.RulesFor(revision.Cancun)
var londonRules = revision.RulesFor(revision.London)

func addr(b byte) monadtypes.Address {
	var a monadtypes.Address
	a[19] = b
	return a
}

func word(b byte) monadtypes.Word {
	var w monadtypes.Word
	w[31] = b
	return w
}

func TestBalanceRoundTrip(t *testing.T) {
	r := newFakeReader()
	s := New(r, cancunRules, 1, 0)
	a := addr(1)

	require.NoError(t, s.AddBalance(a, uint256.NewInt(100)))
	bal, err := s.GetBalance(a)
	require.NoError(t, err)
	require.Equal(t, uint64(100), bal.Uint64())

	require.NoError(t, s.SubBalance(a, uint256.NewInt(40)))
	bal, err = s.GetBalance(a)
	require.NoError(t, err)
	require.Equal(t, uint64(60), bal.Uint64())
}

func TestSubBalanceUnderflowIsInvariantViolation(t *testing.T) {
	r := newFakeReader()
	s := New(r, cancunRules, 1, 0)
	a := addr(1)

	err := s.SubBalance(a, uint256.NewInt(1))
	require.Error(t, err)
	require.Contains(t, err.Error(), "invariant violation")
}

func TestPushPopRejectUndoesBalanceChange(t *testing.T) {
	r := newFakeReader()
	s := New(r, cancunRules, 1, 0)
	a := addr(1)
	require.NoError(t, s.AddBalance(a, uint256.NewInt(100)))

	mark := s.Push()
	require.NoError(t, s.AddBalance(a, uint256.NewInt(50)))
	bal, _ := s.GetBalance(a)
	require.Equal(t, uint64(150), bal.Uint64())

	s.PopReject(mark)
	bal, _ = s.GetBalance(a)
	require.Equal(t, uint64(100), bal.Uint64())
}

func TestPushPopAcceptKeepsChange(t *testing.T) {
	r := newFakeReader()
	s := New(r, cancunRules, 1, 0)
	a := addr(1)

	mark := s.Push()
	require.NoError(t, s.AddBalance(a, uint256.NewInt(50)))
	s.PopAccept(mark)

	bal, _ := s.GetBalance(a)
	require.Equal(t, uint64(50), bal.Uint64())
}

func TestStorageStatusTransitions(t *testing.T) {
	r := newFakeReader()
	a := addr(1)
	k := word(1)

	t.Run("added", func(t *testing.T) {
		s := New(r, cancunRules, 1, 0)
		status, err := s.SetStorage(a, k, word(1))
		require.NoError(t, err)
		require.Equal(t, monadtypes.StorageAdded, status)
	})

	t.Run("modified then deleted in same tx", func(t *testing.T) {
		rr := newFakeReader()
		rr.storage[monadtypes.StorageKey{Address: a, Slot: k}] = word(5)
		s := New(rr, cancunRules, 1, 0)

		status, err := s.SetStorage(a, k, word(9))
		require.NoError(t, err)
		require.Equal(t, monadtypes.StorageModified, status)

		status, err = s.SetStorage(a, k, monadtypes.Word{})
		require.NoError(t, err)
		require.Equal(t, monadtypes.StorageModifiedDeleted, status)
	})

	t.Run("deleted then restored in same tx", func(t *testing.T) {
		rr := newFakeReader()
		rr.storage[monadtypes.StorageKey{Address: a, Slot: k}] = word(5)
		s := New(rr, cancunRules, 1, 0)

		_, err := s.SetStorage(a, k, monadtypes.Word{})
		require.NoError(t, err)
		status, err := s.SetStorage(a, k, word(5))
		require.NoError(t, err)
		require.Equal(t, monadtypes.StorageDeletedRestored, status)
	})

	t.Run("assigned is a no-op write", func(t *testing.T) {
		rr := newFakeReader()
		rr.storage[monadtypes.StorageKey{Address: a, Slot: k}] = word(5)
		s := New(rr, cancunRules, 1, 0)

		status, err := s.SetStorage(a, k, word(5))
		require.NoError(t, err)
		require.Equal(t, monadtypes.StorageAssigned, status)
	})

	t.Run("added then deleted in same tx", func(t *testing.T) {
		s := New(newFakeReader(), cancunRules, 1, 0)
		_, err := s.SetStorage(a, k, word(7))
		require.NoError(t, err)
		status, err := s.SetStorage(a, k, monadtypes.Word{})
		require.NoError(t, err)
		require.Equal(t, monadtypes.StorageAddedDeleted, status)
	})
}

func TestAccessListWarmTracking(t *testing.T) {
	r := newFakeReader()
	s := New(r, londonRules, 1, 0)
	a := addr(1)

	warm, err := s.AccessAccount(a)
	require.NoError(t, err)
	require.False(t, warm)

	warm, err = s.AccessAccount(a)
	require.NoError(t, err)
	require.True(t, warm)
}

func TestSelfDestructPreCancunAlwaysDeletes(t *testing.T) {
	r := newFakeReader()
	r.accounts[addr(1)] = &monadtypes.Account{Balance: uint256.NewInt(100), CodeHash: monadtypes.EmptyCodeHash}
	s := New(r, londonRules, 1, 0)

	applied, transferred, err := s.SelfDestruct(addr(1), addr(2))
	require.NoError(t, err)
	require.True(t, applied)
	require.Equal(t, uint64(100), transferred.Uint64())

	writes, _, _ := s.WriteSet()
	found := false
	for _, w := range writes {
		if w.Address == addr(1) {
			found = true
			require.True(t, w.Deleted)
		}
	}
	require.True(t, found)
}

func TestSelfDestructPostCancunNotCreatedThisTxOnlyTransfers(t *testing.T) {
	r := newFakeReader()
	// Non-empty code hash keeps the account from being swept by
	// touched-dead cleanup after its balance is drained, isolating the
	// EIP-6780 transfer-only behavior from the unrelated EIP-161 check.
	r.accounts[addr(1)] = &monadtypes.Account{Balance: uint256.NewInt(100), CodeHash: word(0xAB)}
	s := New(r, cancunRules, 1, 0)

	_, _, err := s.SelfDestruct(addr(1), addr(2))
	require.NoError(t, err)

	writes, _, _ := s.WriteSet()
	for _, w := range writes {
		if w.Address == addr(1) {
			require.False(t, w.Deleted)
			require.True(t, w.Account.Balance.IsZero())
		}
	}
}

func TestReadSetCapturesOriginalAccountValue(t *testing.T) {
	r := newFakeReader()
	r.accounts[addr(1)] = &monadtypes.Account{Balance: uint256.NewInt(7), CodeHash: monadtypes.EmptyCodeHash}
	s := New(r, cancunRules, 1, 0)

	_, err := s.GetBalance(addr(1))
	require.NoError(t, err)
	require.NoError(t, s.AddBalance(addr(1), uint256.NewInt(1)))

	reads, _ := s.ReadSet()
	require.Len(t, reads, 1)
	require.True(t, reads[0].Existed)
	require.Equal(t, uint64(7), reads[0].Seen.Balance.Uint64())
}

func TestWriteSetOmitsUntouchedReads(t *testing.T) {
	r := newFakeReader()
	r.accounts[addr(1)] = &monadtypes.Account{Balance: uint256.NewInt(7), CodeHash: monadtypes.EmptyCodeHash}
	s := New(r, cancunRules, 1, 0)

	_, err := s.GetBalance(addr(1))
	require.NoError(t, err)

	writes, storageWrites, codeWrites := s.WriteSet()
	require.Empty(t, writes)
	require.Empty(t, storageWrites)
	require.Empty(t, codeWrites)
}

func TestSetCodePublishesCodeWrite(t *testing.T) {
	r := newFakeReader()
	s := New(r, cancunRules, 1, 0)
	a := addr(1)
	hash := word(42)
	code := monadtypes.Code{0x60, 0x00}

	require.NoError(t, s.SetCode(a, hash, code))

	_, _, codeWrites := s.WriteSet()
	require.Len(t, codeWrites, 1)
	require.Equal(t, hash, codeWrites[0].Hash)
	require.Equal(t, code, codeWrites[0].Code)
}
