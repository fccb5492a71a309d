package evmhost

import (
	"github.com/holiman/uint256"

	"github.com/category-labs/monad-go/monadtypes"
)

// MessageKind tags the call shape requested of the interpreter.
type MessageKind uint8

const (
	CallKind MessageKind = iota
	StaticCallKind
	DelegateCallKind
	CreateKind
	Create2Kind
)

// Message is one call/create request handed to the interpreter.
type Message struct {
	Kind MessageKind

	From  monadtypes.Address
	To    *monadtypes.Address // nil for CREATE/CREATE2
	Value *uint256.Int
	Data  []byte
	Gas   uint64

	Salt monadtypes.Word // CREATE2 only
	Depth int
}

// ExecutionResult is the interpreter's answer to a Call. Reverted and the
// error returned alongside the result are distinct: that error is a
// host-side failure (storage read I/O error, invariant violation) that
// must abort the whole transaction, while
// Reverted is a normal EVM-level REVERT/out-of-gas outcome that still
// consumes the reported gas and produces a failed receipt.
type ExecutionResult struct {
	GasLeft    uint64
	ReturnData []byte
	CreatedAddress *monadtypes.Address
	Reverted   bool
}

// Interpreter is the opaque EVM instruction engine: raw opcode execution is
// an external collaborator (), referenced here only through this
// callback-driven contract. Host implements the surface Interpreter calls
// back into; Interpreter implements the surface Host calls out to.
type Interpreter interface {
	Run(host *Host, msg Message) (*ExecutionResult, error)
}
