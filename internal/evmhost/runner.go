package evmhost

import (
	"math/big"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/crypto"

	"github.com/category-labs/monad-go/internal/reserve"
	"github.com/category-labs/monad-go/internal/revision"
	"github.com/category-labs/monad-go/internal/txstate"
	"github.com/category-labs/monad-go/internal/xerrors"
	"github.com/category-labs/monad-go/monadtypes"
)

const (
	txGas            = 21000
	txGasContractCreation = 53000
	txDataZeroGas    = 4
	txDataNonZeroGas = 16 // post-Istanbul (EIP-2028); every activated revision this module targets is post-Istanbul
	txAccessListAddressGas = 2400
	txAccessListStorageKeyGas = 1900
	initCodeWordGas  = 2 // EIP-3860, charged per 32-byte word of init code
)

// intrinsicGas computes the fixed up-front gas cost of a transaction: the
// base 21000 (53000 for contract creation), calldata bytes, access list
// entries, and EIP-3860 init-code word cost for creation transactions.
func intrinsicGas(tx *monadtypes.Transaction, rules revision.Rules) uint64 {
	gas := uint64(txGas)
	if tx.IsContractCreation() {
		gas = txGasContractCreation
		if rules.IsShanghai {
			words := (uint64(len(tx.Data)) + 31) / 32
			gas += words * initCodeWordGas
		}
	}
	var zero, nonzero uint64
	for _, b := range tx.Data {
		if b == 0 {
			zero++
		} else {
			nonzero++
		}
	}
	gas += zero * txDataZeroGas
	gas += nonzero * txDataNonZeroGas

	if rules.IsBerlin {
		gas += uint64(len(tx.AccessList)) * txAccessListAddressGas
		for _, entry := range tx.AccessList {
			gas += uint64(len(entry.StorageKeys)) * txAccessListStorageKeyGas
		}
	}
	return gas
}

// refundCap bounds the gas refund as a fraction of gas actually used:
// 1/2 pre-London (EIP-2200-era rule), 1/5 post-London (EIP-3529).
func refundCap(gasUsed uint64, rules revision.Rules) uint64 {
	if rules.IsLondon {
		return gasUsed / 5
	}
	return gasUsed / 2
}

// Runner implements internal/executor.Runner and internal/executor.
// SystemCaller by constructing a Host per transaction and dispatching its
// top-level message through the injected, opaque Interpreter.
type Runner struct {
	interp    Interpreter
	blockHash BlockHashFunc
	tracer    CallTracer
	cfg       Config
}

func NewRunner(interp Interpreter, blockHash BlockHashFunc, tracer CallTracer, cfg Config) *Runner {
	return &Runner{interp: interp, blockHash: blockHash, tracer: tracer, cfg: cfg}
}

// RunTransaction implements internal/executor.Runner.
func (r *Runner) RunTransaction(txState *txstate.State, tracker *reserve.Tracker, header monadtypes.BlockHeader, tx *monadtypes.Transaction, txIndex uint64) (*monadtypes.Receipt, error) {
	rules := tracker.Rules()
	host := New(txState, tracker, rules, header, tx, txIndex, r.blockHash, r.tracer, r.cfg)

	gasPrice := tx.EffectiveGasPrice(header.BaseFee)
	gasPriceU256, overflow := uint256.FromBig(gasPrice)
	if overflow {
		return nil, xerrors.NewValidationError("effective gas price overflows uint256", nil)
	}

	igas := intrinsicGas(tx, rules)
	if tx.GasLimit < igas {
		return nil, xerrors.NewValidationError("gas limit below intrinsic gas", nil)
	}

	prepay := new(uint256.Int).Mul(uint256.NewInt(tx.GasLimit), gasPriceU256)
	if err := txState.SubBalance(tx.Sender, prepay); err != nil {
		return nil, err
	}
	if err := tracker.OnDebit(txState, tx.Sender); err != nil {
		return nil, err
	}

	nonce, err := txState.GetNonce(tx.Sender)
	if err != nil {
		return nil, err
	}
	if err := txState.SetNonce(tx.Sender, nonce+1); err != nil {
		return nil, err
	}

	if _, err := txState.AccessAccount(tx.Sender); err != nil {
		return nil, err
	}
	if tx.To != nil {
		if _, err := txState.AccessAccount(*tx.To); err != nil {
			return nil, err
		}
	}
	if rules.IsShanghai {
		if _, err := txState.AccessAccount(header.Beneficiary); err != nil {
			return nil, err
		}
	}
	for _, entry := range tx.AccessList {
		if _, err := txState.AccessAccount(entry.Address); err != nil {
			return nil, err
		}
		for _, key := range entry.StorageKeys {
			if _, err := txState.AccessStorage(entry.Address, key); err != nil {
				return nil, err
			}
		}
	}

	value := new(uint256.Int)
	if tx.Value != nil {
		v, overflow := uint256.FromBig(tx.Value)
		if overflow {
			return nil, xerrors.NewValidationError("transaction value overflows uint256", nil)
		}
		value = v
	}

	kind := CallKind
	if tx.IsContractCreation() {
		kind = CreateKind
	}
	msg := Message{
		Kind:  kind,
		From:  tx.Sender,
		To:    tx.To,
		Value: value,
		Data:  tx.Data,
		Gas:   tx.GasLimit - igas,
	}

	result, err := host.Call(r.interp, msg)
	if err != nil {
		return nil, err
	}

	gasUsed := msg.Gas - result.GasLeft + igas
	refund := txState.Refund()
	maxRefund := refundCap(gasUsed, rules)
	if refund > maxRefund {
		refund = maxRefund
	}
	gasUsed -= refund

	unused := new(uint256.Int).Mul(uint256.NewInt(tx.GasLimit-gasUsed), gasPriceU256)
	if err := txState.AddBalance(tx.Sender, unused); err != nil {
		return nil, err
	}
	if err := tracker.OnCredit(txState, tx.Sender); err != nil {
		return nil, err
	}

	tip := new(big.Int).Set(gasPrice)
	if header.BaseFee != nil {
		tip = new(big.Int).Sub(gasPrice, header.BaseFee)
	}
	tipU256, overflow := uint256.FromBig(tip)
	if overflow {
		return nil, xerrors.NewValidationError("effective tip overflows uint256", nil)
	}
	fee := new(uint256.Int).Mul(uint256.NewInt(gasUsed), tipU256)
	if err := txState.AddBalance(header.Beneficiary, fee); err != nil {
		return nil, err
	}
	if err := tracker.OnCredit(txState, header.Beneficiary); err != nil {
		return nil, err
	}

	status := monadtypes.ReceiptStatusSuccessful
	if result.Reverted {
		status = monadtypes.ReceiptStatusFailed
	}

	receipt := &monadtypes.Receipt{
		Status:  status,
		GasUsed: gasUsed,
		Logs:    txState.Logs(),
	}
	receipt.ComputeBloom(func(b *monadtypes.Bloom, data []byte) { bloomAdd(b, data) })
	return receipt, nil
}

// BeaconRootPreBlock implements internal/executor.SystemCaller: the Cancun
// EIP-4788 beacon-root system call, storing the parent beacon block root
// into the beacon roots contract's ring-buffer slots.
func (r *Runner) BeaconRootPreBlock(txState *txstate.State, header monadtypes.BlockHeader) error {
	if header.ParentBeaconBlockRoot == nil {
		return nil
	}
	timestampSlot := monadtypes.BytesToWord(uint64ToBytes(header.Timestamp % beaconRootsHistoryBufferLength))
	rootSlot := monadtypes.BytesToWord(uint64ToBytes(header.Timestamp%beaconRootsHistoryBufferLength + beaconRootsHistoryBufferLength))
	if _, err := txState.SetStorage(beaconRootsAddress, timestampSlot, monadtypes.BytesToWord(uint64ToBytes(header.Timestamp))); err != nil {
		return err
	}
	if _, err := txState.SetStorage(beaconRootsAddress, rootSlot, *header.ParentBeaconBlockRoot); err != nil {
		return err
	}
	return nil
}

// EndOfBlock implements internal/executor.SystemCaller: Shanghai withdrawal
// credits, applied directly to balances (no gas, no EVM call, per EIP-4895).
func (r *Runner) EndOfBlock(txState *txstate.State, header monadtypes.BlockHeader, withdrawals []*monadtypes.Withdrawal) error {
	for _, w := range withdrawals {
		amount, overflow := uint256.FromBig(w.AmountWei())
		if overflow {
			return xerrors.NewInvariantViolation("withdrawal amount overflows uint256")
		}
		if err := txState.AddBalance(w.Address, amount); err != nil {
			return err
		}
	}
	return nil
}

// beaconRootsAddress is the fixed EIP-4788 beacon roots contract address.
var beaconRootsAddress = monadtypes.BytesToAddress([]byte{
	0x00, 0x0F, 0x3d, 0xf6, 0xD7, 0x32, 0x80, 0x7E,
	0xf1, 0x31, 0x9f, 0xB7, 0xB8, 0xbB, 0x85, 0x22,
	0xd0, 0xBe, 0xac, 0x02,
})

const beaconRootsHistoryBufferLength = 8191

func uint64ToBytes(v uint64) []byte {
	b := make([]byte, 8)
	for i := 7; i >= 0; i-- {
		b[i] = byte(v)
		v >>= 8
	}
	return b
}

// bloomAdd implements the standard Ethereum log-bloom mixing rule: three
// bits, derived from two bytes apiece of data's keccak hash, set in a
// 2048-bit filter.
func bloomAdd(b *monadtypes.Bloom, data []byte) {
	hash := crypto.Keccak256(data)
	for i := 0; i < 6; i += 2 {
		bit := (uint(hash[i+1]) + (uint(hash[i]) << 8)) & 2047
		byteIndex := len(b) - 1 - int(bit/8)
		b[byteIndex] |= 1 << (bit % 8)
	}
}
