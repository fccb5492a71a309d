package evmhost

import (
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
	return monadtypes.Word{0x01}, nil
}

func someAddr(b byte) monadtypes.Address {
	var a monadtypes.Address
	a[19] = b
	return a
}

// valueTransferInterpreter is a minimal stand-in for the opaque opcode
// engine: every call simply succeeds with half its gas left and the
// configured return data, which is sufficient to exercise the host's own bookkeeping (value
// transfer, access lists, logs, gas refund) without interpreting bytecode.
type valueTransferInterpreter struct {
	ret []byte
}

func (v *valueTransferInterpreter) Run(host *Host, msg Message) (*ExecutionResult, error) {
	return &ExecutionResult{GasLeft: msg.Gas / 2, ReturnData: v.ret}, nil
}

type revertInterpreter struct{}

func (revertInterpreter) Run(host *Host, msg Message) (*ExecutionResult, error) {
	return &ExecutionResult{GasLeft: msg.Gas / 2, Reverted: true}, nil
}

func newTestTxState(t *testing.T, accounts map[monadtypes.Address]*monadtypes.Account) *txstate.State {
	t.Helper()
	trie := newFakeTrie()
	for a, acc := range accounts {
		trie.accounts[a] = acc
	}
	block := blockstate.New(trie, 1, monadtypes.Word{}, blockstate.Metrics{})
	return txstate.New(block, revision.RulesFor(revision.Cancun), 1, 0)
}

func TestRunTransactionPlainValueTransferSucceeds(t *testing.T) {
	sender, recipient := someAddr(1), someAddr(2)
	state := newTestTxState(t, map[monadtypes.Address]*monadtypes.Account{
		sender: {Balance: uint256.NewInt(1_000_000_000), CodeHash: monadtypes.EmptyCodeHash},
	})
	tracker := reserve.NewTracker(revision.RulesFor(revision.Cancun))

	tx := &monadtypes.Transaction{
		Type:     monadtypes.DynamicFeeTxType,
		GasLimit: 100000,
		GasFeeCap: bigI(10),
		GasTipCap: bigI(2),
		To:        &recipient,
		Value:     bigI(500),
		Sender:    sender,
	}
	header := monadtypes.BlockHeader{Number: 1, Beneficiary: someAddr(0xcb), BaseFee: bigI(1)}

	r := NewRunner(&valueTransferInterpreter{}, nil, nil, Config{LogNativeTransfers: true})
	receipt, err := r.RunTransaction(state, tracker, header, tx, 0)
	require.NoError(t, err)
	require.Equal(t, monadtypes.ReceiptStatusSuccessful, receipt.Status)

	recvBal, err := state.GetBalance(recipient)
	require.NoError(t, err)
	require.Equal(t, uint64(500), recvBal.Uint64())

	require.Len(t, receipt.Logs, 1)
	require.Equal(t, nativeTransferTopic, receipt.Logs[0].Topics[0])
}

func TestRunTransactionRevertKeepsGasAndNonceOnly(t *testing.T) {
	sender, recipient := someAddr(1), someAddr(2)
	state := newTestTxState(t, map[monadtypes.Address]*monadtypes.Account{
		sender: {Balance: uint256.NewInt(1_000_000_000), CodeHash: monadtypes.EmptyCodeHash},
	})
	tracker := reserve.NewTracker(revision.RulesFor(revision.Cancun))

	tx := &monadtypes.Transaction{
		Type:      monadtypes.DynamicFeeTxType,
		GasLimit:  100000,
		GasFeeCap: bigI(10),
		GasTipCap: bigI(2),
		To:        &recipient,
		Value:     bigI(500),
		Sender:    sender,
	}
	header := monadtypes.BlockHeader{Number: 1, Beneficiary: someAddr(0xcb), BaseFee: bigI(1)}

	r := NewRunner(revertInterpreter{}, nil, nil, Config{})
	receipt, err := r.RunTransaction(state, tracker, header, tx, 0)
	require.NoError(t, err)
	require.Equal(t, monadtypes.ReceiptStatusFailed, receipt.Status)

	recvBal, err := state.GetBalance(recipient)
	require.NoError(t, err)
	require.True(t, recvBal.IsZero())

	nonce, err := state.GetNonce(sender)
	require.NoError(t, err)
	require.Equal(t, uint64(1), nonce)
}

func TestIntrinsicGasChargesCalldataAndAccessList(t *testing.T) {
	rules := revision.RulesFor(revision.Cancun)
	to := someAddr(2)
	tx := &monadtypes.Transaction{
		To:   &to,
		Data: []byte{0x00, 0x01, 0x02},
		AccessList: []monadtypes.AccessTuple{
			{Address: someAddr(1), StorageKeys: []monadtypes.Word{{}, {}}},
		},
	}
	got := intrinsicGas(tx, rules)
	want := uint64(txGas) + txDataZeroGas + 2*txDataNonZeroGas + txAccessListAddressGas + 2*txAccessListStorageKeyGas
	require.Equal(t, want, got)
}

func TestIntrinsicGasContractCreationChargesInitCodeWords(t *testing.T) {
	rules := revision.RulesFor(revision.Cancun)
	tx := &monadtypes.Transaction{Data: make([]byte, 64)}
	got := intrinsicGas(tx, rules)
	want := uint64(txGasContractCreation) + 64*txDataZeroGas + 2*initCodeWordGas
	require.Equal(t, want, got)
}

func TestEmitNativeTransferSkipsSelfAndZeroValue(t *testing.T) {
	sender := someAddr(1)
	state := newTestTxState(t, map[monadtypes.Address]*monadtypes.Account{
		sender: {Balance: uint256.NewInt(1000), CodeHash: monadtypes.EmptyCodeHash},
	})
	tracker := reserve.NewTracker(revision.RulesFor(revision.Cancun))
	host := New(state, tracker, revision.RulesFor(revision.Cancun), monadtypes.BlockHeader{}, &monadtypes.Transaction{Sender: sender}, 0, nil, nil, Config{LogNativeTransfers: true})

	host.EmitNativeTransfer(sender, sender, uint256.NewInt(100))
	require.Empty(t, state.Logs())

	host.EmitNativeTransfer(sender, someAddr(2), uint256.NewInt(0))
	require.Empty(t, state.Logs())

	host.EmitNativeTransfer(sender, someAddr(2), uint256.NewInt(100))
	require.Len(t, state.Logs(), 1)
}

func bigI(v int64) *big.Int { return big.NewInt(v) }
