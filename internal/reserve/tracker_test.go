package reserve

import (
	"testing"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/category-labs/monad-go/internal/revision"
	"github.com/category-labs/monad-go/internal/txstate"
	"github.com/category-labs/monad-go/monadtypes"
)

type seededReader struct {
	accounts map[monadtypes.Address]*monadtypes.Account
	code     map[monadtypes.Word]monadtypes.Code
}

func newSeededReader() *seededReader {
	return &seededReader{
		accounts: map[monadtypes.Address]*monadtypes.Account{},
		code:     map[monadtypes.Word]monadtypes.Code{},
	}
}

func (r *seededReader) ReadAccount(addr monadtypes.Address) (*monadtypes.Account, bool, error) {
	if a, ok := r.accounts[addr]; ok {
		return a, true, nil
	}
	return nil, false, nil
}

func (r *seededReader) ReadStorage(monadtypes.Address, monadtypes.Incarnation, monadtypes.Word) (monadtypes.Word, error) {
	return monadtypes.Word{}, nil
}

func (r *seededReader) ReadCode(hash monadtypes.Word) (monadtypes.Code, error) {
	return r.code[hash], nil
}

func codeHash(b byte) monadtypes.Word {
	var w monadtypes.Word
	w[31] = b
	return w
}

func TestSubjectAccountEOAIsSubject(t *testing.T) {
	r := newSeededReader()
	s := txstate.New(r, revision.RulesFor(revision.Cancun), 10, 0)
	tr := NewTracker(revision.RulesFor(revision.Cancun))

	subject, err := tr.SubjectAccount(s, someAddr(1))
	require.NoError(t, err)
	require.True(t, subject)
}

func TestSubjectAccountDelegatedIsNotSubject(t *testing.T) {
	r := newSeededReader()
	a := someAddr(2)
	h := codeHash(1)
	delegation := append(append([]byte{}, delegationPrefix[:]...), make([]byte, 20)...)
	r.code[h] = delegation
	r.accounts[a] = &monadtypes.Account{Balance: uint256.NewInt(0), CodeHash: h}

	s := txstate.New(r, revision.RulesFor(revision.Cancun), 10, 0)
	tr := NewTracker(revision.RulesFor(revision.Cancun))

	subject, err := tr.SubjectAccount(s, a)
	require.NoError(t, err)
	require.False(t, subject)
}

func TestSubjectAccountOrdinaryContractIsSubject(t *testing.T) {
	r := newSeededReader()
	a := someAddr(3)
	h := codeHash(2)
	r.code[h] = monadtypes.Code{0x60, 0x00}
	r.accounts[a] = &monadtypes.Account{Balance: uint256.NewInt(0), CodeHash: h}

	s := txstate.New(r, revision.RulesFor(revision.Cancun), 10, 0)
	tr := NewTracker(revision.RulesFor(revision.Cancun))

	subject, err := tr.SubjectAccount(s, a)
	require.NoError(t, err)
	require.True(t, subject)
}

func TestPretxReserveCapsAtMaxReserve(t *testing.T) {
	r := newSeededReader()
	a := someAddr(4)
	big := new(uint256.Int).Mul(uint256.NewInt(100), WeiPerMON)
	r.accounts[a] = &monadtypes.Account{Balance: big, CodeHash: monadtypes.EmptyCodeHash}

	s := txstate.New(r, revision.RulesFor(revision.Cancun), 10, 0)
	tr := NewTracker(revision.RulesFor(revision.Cancun))
	tr.getMaxReserve = func(monadtypes.Address) *uint256.Int { return DefaultReserveBalance() }

	reserve, err := tr.PretxReserve(s, a)
	require.NoError(t, err)
	require.Equal(t, DefaultReserveBalance().String(), reserve.String())
}

func TestPretxReserveBelowMaxUsesBalance(t *testing.T) {
	r := newSeededReader()
	a := someAddr(5)
	r.accounts[a] = &monadtypes.Account{Balance: uint256.NewInt(3), CodeHash: monadtypes.EmptyCodeHash}

	s := txstate.New(r, revision.RulesFor(revision.Cancun), 10, 0)
	tr := NewTracker(revision.RulesFor(revision.Cancun))
	tr.getMaxReserve = func(monadtypes.Address) *uint256.Int { return DefaultReserveBalance() }

	reserve, err := tr.PretxReserve(s, a)
	require.NoError(t, err)
	require.Equal(t, "3", reserve.String())
}

func TestCanSenderDipIntoReserveExcludesGrandparentSender(t *testing.T) {
	sender := someAddr(6)
	ctx := BlockContext{
		GrandparentSendersAndAuthorities: mapset.NewThreadUnsafeSet(sender),
	}
	require.False(t, canSenderDipIntoReserve(sender, 0, false, ctx))
}

func TestCanSenderDipIntoReserveExcludesEarlierInBlockSender(t *testing.T) {
	sender := someAddr(7)
	ctx := BlockContext{
		Senders: []monadtypes.Address{sender, someAddr(8)},
	}
	require.False(t, canSenderDipIntoReserve(sender, 1, false, ctx))
}

func TestCanSenderDipIntoReserveExcludesDelegated(t *testing.T) {
	sender := someAddr(9)
	require.False(t, canSenderDipIntoReserve(sender, 0, true, BlockContext{}))
}

func TestCanSenderDipIntoReserveAllowsFreshSender(t *testing.T) {
	sender := someAddr(10)
	ctx := BlockContext{
		Senders: []monadtypes.Address{someAddr(11)},
	}
	require.True(t, canSenderDipIntoReserve(sender, 1, false, ctx))
}

func TestUpdateViolationStatusMarksFailedBelowThreshold(t *testing.T) {
	r := newSeededReader()
	a := someAddr(12)
	r.accounts[a] = &monadtypes.Account{Balance: uint256.NewInt(1), CodeHash: monadtypes.EmptyCodeHash}

	s := txstate.New(r, revision.RulesFor(revision.Cancun), 10, 0)
	tr := NewTracker(revision.RulesFor(revision.Cancun))
	tr.getMaxReserve = func(monadtypes.Address) *uint256.Int { return uint256.NewInt(5) }
	tr.trackingEnabled = true
	require.NoError(t, s.SubBalance(a, uint256.NewInt(1)))

	err := tr.UpdateViolationStatus(s, a)
	require.NoError(t, err)
	require.True(t, tr.FailedContains(a))
	require.True(t, tr.HasViolation())
}

func TestUpdateViolationStatusNoViolationAboveThreshold(t *testing.T) {
	r := newSeededReader()
	a := someAddr(13)
	r.accounts[a] = &monadtypes.Account{Balance: uint256.NewInt(10), CodeHash: monadtypes.EmptyCodeHash}

	s := txstate.New(r, revision.RulesFor(revision.Cancun), 10, 0)
	tr := NewTracker(revision.RulesFor(revision.Cancun))
	tr.getMaxReserve = func(monadtypes.Address) *uint256.Int { return uint256.NewInt(5) }
	tr.trackingEnabled = true

	err := tr.UpdateViolationStatus(s, a)
	require.NoError(t, err)
	require.False(t, tr.FailedContains(a))
}

func TestOnCreditCuresViolation(t *testing.T) {
	r := newSeededReader()
	a := someAddr(14)
	r.accounts[a] = &monadtypes.Account{Balance: uint256.NewInt(1), CodeHash: monadtypes.EmptyCodeHash}

	s := txstate.New(r, revision.RulesFor(revision.Cancun), 10, 0)
	tr := NewTracker(revision.RulesFor(revision.Cancun))
	tr.getMaxReserve = func(monadtypes.Address) *uint256.Int { return uint256.NewInt(5) }
	tr.trackingEnabled = true
	require.NoError(t, s.SubBalance(a, uint256.NewInt(1)))

	require.NoError(t, tr.UpdateViolationStatus(s, a))
	require.True(t, tr.FailedContains(a))

	require.NoError(t, s.AddBalance(a, uint256.NewInt(10)))
	require.NoError(t, tr.OnCredit(s, a))
	require.False(t, tr.FailedContains(a))
}

func TestOnPopRejectRederivesFromCacheFlag(t *testing.T) {
	r := newSeededReader()
	a := someAddr(15)
	r.accounts[a] = &monadtypes.Account{Balance: uint256.NewInt(1), CodeHash: monadtypes.EmptyCodeHash}

	s := txstate.New(r, revision.RulesFor(revision.Cancun), 10, 0)
	tr := NewTracker(revision.RulesFor(revision.Cancun))
	tr.getMaxReserve = func(monadtypes.Address) *uint256.Int { return uint256.NewInt(5) }
	tr.trackingEnabled = true
	require.NoError(t, s.SubBalance(a, uint256.NewInt(1)))

	require.NoError(t, tr.UpdateViolationStatus(s, a))
	require.True(t, tr.FailedContains(a))

	tr.failed.Clear()
	require.False(t, tr.FailedContains(a))

	require.NoError(t, tr.OnPopReject(s, []monadtypes.Address{a}))
	require.True(t, tr.FailedContains(a))
}

func TestRevertTransactionReflectsHasViolation(t *testing.T) {
	tr := NewTracker(revision.RulesFor(revision.Cancun))
	require.False(t, tr.RevertTransaction())

	tr.trackingEnabled = true
	tr.failed.Add(someAddr(16))
	require.True(t, tr.RevertTransaction())
}
