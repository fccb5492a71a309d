package main

import "github.com/category-labs/monad-go/internal/evmhost"

// valueTransferInterpreter is this binary's own stand-in for the opaque
// EVM opcode engine: it treats every call as succeeding immediately with
// no gas consumed and no return data or created address. Running real
// bytecode is an external collaborator's job; this is enough to drive the
// host's value-transfer, gas, and logging bookkeeping for a block-file
// workload built from plain value transfers.
type valueTransferInterpreter struct{}

func (valueTransferInterpreter) Run(host *evmhost.Host, msg evmhost.Message) (*evmhost.ExecutionResult, error) {
	return &evmhost.ExecutionResult{GasLeft: msg.Gas}, nil
}
