package monadtypes

import "math/big"

// TxType tags the transaction envelope shape.
type TxType uint8

const (
	LegacyTxType TxType = iota
	AccessListTxType
	DynamicFeeTxType
	BlobTxType
	SetCodeTxType // EIP-7702
)

// AccessTuple is one entry of an EIP-2930 access list.
type AccessTuple struct {
	Address     Address
	StorageKeys []Word
}

// Authorization is one signed EIP-7702 authorization tuple delegating an
// EOA's code to a contract address.
type Authorization struct {
	ChainID uint64
	Address Address
	Nonce   uint64
	V       uint8
	R, S    *big.Int

	// Authority is the recovered signer of this authorization tuple.
	// Recovery itself is delegated to the opaque crypto collaborator
	// (ECDSA recovery is not reimplemented here); this field is
	// populated by sender recovery during the executor's fan-in step
	// (step 1), same as Transaction.Sender.
	Authority Address
}

type Signature struct {
	V uint8
	R, S *big.Int
}

// Transaction is the execution-relevant projection of a signed transaction.
// RLP decoding and signature verification are external collaborators; by
// the time a Transaction reaches the executor its Sender has already been
// recovered.
type Transaction struct {
	Type     TxType
	Nonce    uint64
	GasLimit uint64

	GasPrice  *big.Int // legacy / access-list
	GasFeeCap *big.Int // dynamic fee / blob / set-code
	GasTipCap *big.Int

	To    *Address // nil for contract creation
	Value *big.Int
	Data  []byte

	AccessList     []AccessTuple
	Authorizations []Authorization

	Signature Signature

	// Sender is populated by ECDSA recovery before execution begins
	// (step 1); it is not itself recovered here.
	Sender Address

	hash *Word
}

// SetHash caches the precomputed transaction hash (owned by an external
// RLP/keccak collaborator).
func (t *Transaction) SetHash(h Word) { t.hash = &h }

// Hash returns the cached transaction hash, or the zero word if unset.
func (t *Transaction) Hash() Word {
	if t.hash == nil {
		return Word{}
	}
	return *t.hash
}

// IsContractCreation reports whether the transaction has no `to` address.
func (t *Transaction) IsContractCreation() bool {
	return t.To == nil
}

// EffectiveGasPrice computes the effective gas price paid given a block
// base fee, per EIP-1559 semantics (legacy/access-list transactions ignore
// baseFee and return GasPrice).
func (t *Transaction) EffectiveGasPrice(baseFee *big.Int) *big.Int {
	if t.Type == LegacyTxType || t.Type == AccessListTxType {
		return new(big.Int).Set(t.GasPrice)
	}
	if baseFee == nil {
		return new(big.Int).Set(t.GasFeeCap)
	}
	tip := new(big.Int).Sub(t.GasFeeCap, baseFee)
	if tip.Cmp(t.GasTipCap) > 0 {
		tip = t.GasTipCap
	}
	return new(big.Int).Add(baseFee, tip)
}

// Withdrawal is a Shanghai validator withdrawal, processed at end-of-block
// (scenario 5).
type Withdrawal struct {
	Index          uint64
	ValidatorIndex uint64
	Address        Address
	// AmountGwei is the withdrawal amount in Gwei; the credited balance is
	// AmountGwei * 1e9 wei.
	AmountGwei uint64
}

// AmountWei returns the withdrawal amount converted to wei.
func (w Withdrawal) AmountWei() *big.Int {
	return new(big.Int).Mul(new(big.Int).SetUint64(w.AmountGwei), big.NewInt(1_000_000_000))
}
