package monadtypes

import "math/big"

// BlockHeader carries the fields the execution core needs to process a
// block and to compute its post-state roots. Consensus-only fields (mix
// digest, uncle/ommer hash bookkeeping beyond the roots below) are carried
// opaquely in Extra since consensus validation is out of scope.
type BlockHeader struct {
	Number     uint64
	Timestamp  uint64
	ParentHash Word
	Beneficiary Address
	GasLimit   uint64
	GasUsed    uint64
	BaseFee    *big.Int

	StateRoot        Word
	TransactionsRoot Word
	ReceiptsRoot     Word
	WithdrawalsRoot  *Word // nil pre-Shanghai

	// Post-Cancun
	ParentBeaconBlockRoot *Word
	BlobGasUsed           *uint64
	ExcessBlobGas         *uint64

	Extra []byte
}

// ChainID values fixed by the specification.
const (
	ChainIDMainnet = 143
	ChainIDDevnet  = 20143
	ChainIDTestnet = 10143
)
