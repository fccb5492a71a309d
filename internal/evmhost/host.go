// Package evmhost implements the EVM Host Adapter: the thin forwarding
// layer between the opaque EVM interpreter and Transaction State, in the
// style of core/extstate.PrecompileStateDBAdapter / core/vm.stateDBAdapter
// — a struct embedding the underlying state and re-exposing its
// operations under the names and shapes a different caller expects.
package evmhost

import (
	"math/big"

	"github.com/holiman/uint256"

	"github.com/category-labs/monad-go/internal/reserve"
	"github.com/category-labs/monad-go/internal/revision"
	"github.com/category-labs/monad-go/internal/txstate"
	"github.com/category-labs/monad-go/monadtypes"
)

// BlockHashFunc resolves the hash of a recent ancestor block for the
// interpreter's BLOCKHASH opcode; an external collaborator since it reads
// outside the current block's own state.
type BlockHashFunc func(number uint64) monadtypes.Word

// Host bridges one transaction's EVM execution to Transaction State. One
// instance is constructed per transaction, not re-dispatched per opcode
// ("polymorphic over a protocol-revision type parameter" design
// note, realized here as a Rules value fixed at construction).
type Host struct {
	state   *txstate.State
	tracker *reserve.Tracker
	rules   revision.Rules

	header monadtypes.BlockHeader
	tx     *monadtypes.Transaction
	txIndex uint64

	blockHash BlockHashFunc
	tracer    CallTracer

	logNativeTransfers bool
}

// Config tunes per-transaction Host behavior.
type Config struct {
	LogNativeTransfers bool
}

func New(state *txstate.State, tracker *reserve.Tracker, rules revision.Rules, header monadtypes.BlockHeader, tx *monadtypes.Transaction, txIndex uint64, blockHash BlockHashFunc, tracer CallTracer, cfg Config) *Host {
	if tracer == nil {
		tracer = NoopTracer{}
	}
	return &Host{
		state:              state,
		tracker:            tracker,
		rules:              rules,
		header:             header,
		tx:                 tx,
		txIndex:            txIndex,
		blockHash:          blockHash,
		tracer:             tracer,
		logNativeTransfers: cfg.LogNativeTransfers,
	}
}

// GetStorage forwards to Transaction State.
func (h *Host) GetStorage(addr monadtypes.Address, key monadtypes.Word) (monadtypes.Word, error) {
	return h.state.GetStorage(addr, key)
}

// SetStorage forwards to Transaction State, returning the storage status
// the interpreter needs for EIP-2200/3529 gas accounting.
func (h *Host) SetStorage(addr monadtypes.Address, key, value monadtypes.Word) (monadtypes.StorageStatus, error) {
	return h.state.SetStorage(addr, key, value)
}

// GetBalance forwards to Transaction State.
func (h *Host) GetBalance(addr monadtypes.Address) (*uint256.Int, error) {
	return h.state.GetBalance(addr)
}

// GetCodeSize forwards to Transaction State.
func (h *Host) GetCodeSize(addr monadtypes.Address) (int, error) {
	return h.state.GetCodeSize(addr)
}

// GetCodeHash forwards to Transaction State.
func (h *Host) GetCodeHash(addr monadtypes.Address) (monadtypes.Word, error) {
	return h.state.GetCodeHash(addr)
}

// CopyCode returns addr's code, the interpreter slicing out the requested
// offset/length window itself.
func (h *Host) CopyCode(addr monadtypes.Address) (monadtypes.Code, error) {
	return h.state.GetCode(addr)
}

// TxContext reports the fields of the current transaction/block the
// interpreter needs for ORIGIN, GASPRICE, NUMBER, TIMESTAMP, COINBASE,
// GASLIMIT and BASEFEE. It carries no chain ID or blob hashes.
type TxContext struct {
	Origin     monadtypes.Address
	GasPrice   *uint256.Int
	BlockNumber uint64
	Timestamp   uint64
	Beneficiary monadtypes.Address
	GasLimit    uint64
	BaseFee     *uint256.Int
}

// TxContext returns the fixed per-transaction environment.
func (h *Host) TxContext(gasPrice *uint256.Int) TxContext {
	return TxContext{
		Origin:      h.tx.Sender,
		GasPrice:    gasPrice,
		BlockNumber: h.header.Number,
		Timestamp:   h.header.Timestamp,
		Beneficiary: h.header.Beneficiary,
		GasLimit:    h.header.GasLimit,
		BaseFee:     bigToUint256(h.header.BaseFee),
	}
}

// bigToUint256 converts a possibly-nil *big.Int (pre-London blocks carry no
// base fee) to a uint256, defaulting to zero.
func bigToUint256(v *big.Int) *uint256.Int {
	if v == nil {
		return uint256.NewInt(0)
	}
	u, overflow := uint256.FromBig(v)
	if overflow {
		return uint256.NewInt(0)
	}
	return u
}

// BlockHash forwards to the injected ancestor-hash resolver; returns the
// zero word if none is configured or number is out of the queryable
// window, matching EVM BLOCKHASH's own "unknown -> 0" fallback.
func (h *Host) BlockHash(number uint64) monadtypes.Word {
	if h.blockHash == nil {
		return monadtypes.Word{}
	}
	return h.blockHash(number)
}

// EmitLog appends a log to the transaction's log list. Synthetic
// native-transfer logs are emitted separately by EmitNativeTransfer.
func (h *Host) EmitLog(log *monadtypes.Log) {
	h.state.AddLog(log)
}

// EmitNativeTransfer records a synthetic log for a sender->recipient
// balance move, gated on the log_native_transfers flag.
func (h *Host) EmitNativeTransfer(from, to monadtypes.Address, value *uint256.Int) {
	if !h.logNativeTransfers || value == nil || value.IsZero() || from == to {
		return
	}
	h.state.AddLog(nativeTransferLog(from, to, value))
}

// AccessAccount marks addr warm, reporting whether it was already warm.
// Precompile addresses are always warm (access_account); callers
// pass isPrecompile so this package doesn't need its own precompile
// registry.
func (h *Host) AccessAccount(addr monadtypes.Address, isPrecompile bool) (wasWarm bool, err error) {
	if isPrecompile {
		_, err := h.state.AccessAccount(addr)
		return true, err
	}
	return h.state.AccessAccount(addr)
}

// AccessStorage marks (addr, key) warm, reporting whether it was already
// warm (access_storage).
func (h *Host) AccessStorage(addr monadtypes.Address, key monadtypes.Word) (wasWarm bool, err error) {
	return h.state.AccessStorage(addr, key)
}

// GetTransientStorage forwards to Transaction State.
func (h *Host) GetTransientStorage(addr monadtypes.Address, key monadtypes.Word) (monadtypes.Word, error) {
	return h.state.GetTransientStorage(addr, key)
}

// SetTransientStorage forwards to Transaction State.
func (h *Host) SetTransientStorage(addr monadtypes.Address, key, value monadtypes.Word) error {
	return h.state.SetTransientStorage(addr, key, value)
}

// SelfDestruct forwards to Transaction State, records the call in the
// tracer, and optionally emits a native-transfer log for the swept balance
// (selfdestruct).
func (h *Host) SelfDestruct(addr, beneficiary monadtypes.Address) (applied bool, transferred *uint256.Int, err error) {
	applied, transferred, err = h.state.SelfDestruct(addr, beneficiary)
	if err != nil {
		return false, nil, err
	}
	h.tracer.OnSelfDestruct(addr, beneficiary, transferred)
	if applied {
		h.EmitNativeTransfer(addr, beneficiary, transferred)
	}
	return applied, transferred, nil
}
