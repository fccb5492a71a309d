package runloop

import (
	"context"
	"math/big"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/category-labs/monad-go/internal/blockstate"
	"github.com/category-labs/monad-go/internal/reserve"
	"github.com/category-labs/monad-go/internal/revision"
	"github.com/category-labs/monad-go/internal/txstate"
	"github.com/category-labs/monad-go/monadtypes"
)

type fakeTrie struct {
	accounts map[monadtypes.Address]*monadtypes.Account
	code     map[monadtypes.Word]monadtypes.Code
	commits  []blockstate.CommitUpdate
}

func newFakeTrie() *fakeTrie {
	return &fakeTrie{
		accounts: map[monadtypes.Address]*monadtypes.Account{},
		code:     map[monadtypes.Word]monadtypes.Code{},
	}
}

func (t *fakeTrie) ReadAccount(block uint64, parent monadtypes.Word, addr monadtypes.Address) (*monadtypes.Account, bool, error) {
	a, ok := t.accounts[addr]
	return a, ok, nil
}
func (t *fakeTrie) ReadStorage(block uint64, parent monadtypes.Word, addr monadtypes.Address, inc monadtypes.Incarnation, key monadtypes.Word) (monadtypes.Word, error) {
	return monadtypes.Word{}, nil
}
func (t *fakeTrie) ReadCode(hash monadtypes.Word) (monadtypes.Code, error) { return t.code[hash], nil }
func (t *fakeTrie) Commit(u blockstate.CommitUpdate) (monadtypes.Word, error) {
	t.commits = append(t.commits, u)
	for addr, acc := range u.Accounts {
		if acc == nil {
			delete(t.accounts, addr)
			continue
		}
		t.accounts[addr] = acc
	}
	return monadtypes.BytesToWord([]byte{byte(len(t.commits))}), nil
}

func someAddr(b byte) monadtypes.Address {
	var a monadtypes.Address
	a[19] = b
	return a
}

// valueMoveRunner moves tx.Value from sender to recipient and bumps the
// sender's nonce; a minimal stand-in for the EVM Host Adapter sufficient
// to exercise the loop's own ingestion/commit/history bookkeeping.
type valueMoveRunner struct{}

func (valueMoveRunner) RunTransaction(txState *txstate.State, tracker *reserve.Tracker, header monadtypes.BlockHeader, tx *monadtypes.Transaction, txIndex uint64) (*monadtypes.Receipt, error) {
	nonce, err := txState.GetNonce(tx.Sender)
	if err != nil {
		return nil, err
	}
	if err := txState.SetNonce(tx.Sender, nonce+1); err != nil {
		return nil, err
	}
	if tx.Value != nil && tx.Value.Sign() > 0 && tx.To != nil {
		val, _ := uint256.FromBig(tx.Value)
		if err := txState.SubBalance(tx.Sender, val); err != nil {
			return nil, err
		}
		if err := tracker.OnDebit(txState, tx.Sender); err != nil {
			return nil, err
		}
		if err := txState.AddBalance(*tx.To, val); err != nil {
			return nil, err
		}
		if err := tracker.OnCredit(txState, *tx.To); err != nil {
			return nil, err
		}
	}
	return &monadtypes.Receipt{Status: monadtypes.ReceiptStatusSuccessful, GasUsed: 21000}, nil
}

type noopSystem struct{}

func (noopSystem) BeaconRootPreBlock(*txstate.State, monadtypes.BlockHeader) error { return nil }
func (noopSystem) EndOfBlock(*txstate.State, monadtypes.BlockHeader, []*monadtypes.Withdrawal) error {
	return nil
}

type fakeSource struct {
	blocks []*Block
	calls  int
}

func (s *fakeSource) Next(ctx context.Context) (*Block, bool, error) {
	s.calls++
	if len(s.blocks) == 0 {
		return nil, false, nil
	}
	b := s.blocks[0]
	s.blocks = s.blocks[1:]
	return b, true, nil
}

func newTestLoop(trie *fakeTrie) *Loop {
	cfg := Config{
		TrieStore: trie,
		Rules:     revision.RulesFor(revision.Cancun),
		Runner:    valueMoveRunner{},
		System:    noopSystem{},
	}
	return New(cfg, monadtypes.Word{})
}

func TestLoopRunProcessesAllBlocksInOrder(t *testing.T) {
	trie := newFakeTrie()
	sender, recipient := someAddr(1), someAddr(2)
	trie.accounts[sender] = &monadtypes.Account{Balance: new(uint256.Int).Mul(uint256.NewInt(100), reserve.WeiPerMON), CodeHash: monadtypes.EmptyCodeHash}

	loop := newTestLoop(trie)

	tx1 := &monadtypes.Transaction{To: &recipient, Value: bigI(100), GasPrice: bigI(1), Sender: sender}
	tx2 := &monadtypes.Transaction{To: &recipient, Value: bigI(50), GasPrice: bigI(1), Sender: sender}
	source := &fakeSource{blocks: []*Block{
		{ID: monadtypes.Word{0xaa}, Header: monadtypes.BlockHeader{Number: 1, Beneficiary: someAddr(0xcb)}, Transactions: []*monadtypes.Transaction{tx1}},
		{ID: monadtypes.Word{0xbb}, Header: monadtypes.BlockHeader{Number: 2, Beneficiary: someAddr(0xcb)}, Transactions: []*monadtypes.Transaction{tx2}},
	}}

	err := loop.Run(context.Background(), source)
	require.NoError(t, err)
	require.Len(t, trie.commits, 2)

	recv := trie.accounts[recipient]
	require.NotNil(t, recv)
	require.Equal(t, uint64(150), recv.Balance.Uint64())

	manifest := loop.Manifest(monadtypes.ChainIDDevnet)
	require.Equal(t, uint64(2), manifest.LastBlock)
	require.Equal(t, monadtypes.Word{0xbb}, manifest.LastBlockID)
	require.Contains(t, manifest.ParentHistory, sender)
}

func TestLoopStopSkipsRemainingBlocks(t *testing.T) {
	trie := newFakeTrie()
	loop := newTestLoop(trie)
	loop.Stop()

	source := &fakeSource{blocks: []*Block{
		{ID: monadtypes.Word{0xaa}, Header: monadtypes.BlockHeader{Number: 1}},
	}}

	err := loop.Run(context.Background(), source)
	require.NoError(t, err)
	require.Equal(t, 0, source.calls)
	require.Empty(t, trie.commits)
}

func TestLoopPropagatesExecutorError(t *testing.T) {
	trie := newFakeTrie()
	cfg := Config{
		TrieStore: trie,
		Rules:     revision.RulesFor(revision.Cancun),
		Runner:    failingRunner{},
		System:    noopSystem{},
	}
	loop := New(cfg, monadtypes.Word{})

	tx := &monadtypes.Transaction{Sender: someAddr(1), GasPrice: bigI(1)}
	source := &fakeSource{blocks: []*Block{
		{ID: monadtypes.Word{0xaa}, Header: monadtypes.BlockHeader{Number: 1}, Transactions: []*monadtypes.Transaction{tx}},
	}}

	err := loop.Run(context.Background(), source)
	require.Error(t, err)
}

type failingRunner struct{}

func (failingRunner) RunTransaction(*txstate.State, *reserve.Tracker, monadtypes.BlockHeader, *monadtypes.Transaction, uint64) (*monadtypes.Receipt, error) {
	return nil, errBoom{}
}

type errBoom struct{}

func (errBoom) Error() string { return "boom" }

func bigI(v int64) *big.Int { return big.NewInt(v) }
