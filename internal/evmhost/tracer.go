package evmhost

import (
	"github.com/holiman/uint256"

	"github.com/category-labs/monad-go/monadtypes"
)

// CallTracer observes call/create frames and self-destructs as they
// happen, in the style of core/vm.EVMLogger's CaptureEnter/CaptureExit
// pair, trimmed to the events this adapter itself originates rather than
// per-opcode stepping (opcode-level tracing belongs to the opaque
// interpreter, not the host).
type CallTracer interface {
	OnCallEnter(kind MessageKind, from monadtypes.Address, to *monadtypes.Address, input []byte, gas uint64, value *uint256.Int)
	OnCallExit(result *ExecutionResult, err error)
	OnSelfDestruct(addr, beneficiary monadtypes.Address, transferred *uint256.Int)
}

// NoopTracer discards every event; the default when no tracer is
// configured.
type NoopTracer struct{}

func (NoopTracer) OnCallEnter(MessageKind, monadtypes.Address, *monadtypes.Address, []byte, uint64, *uint256.Int) {
}
func (NoopTracer) OnCallExit(*ExecutionResult, error)                                      {}
func (NoopTracer) OnSelfDestruct(monadtypes.Address, monadtypes.Address, *uint256.Int) {}
