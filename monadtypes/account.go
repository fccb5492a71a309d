package monadtypes

import "github.com/holiman/uint256"

// LastTx is the distinguished transaction index used for end-of-block
// effects (withdrawals, self-destruct finalization, touched-dead cleanup).
const LastTx = ^uint64(0)

// Incarnation is the version tag attached to an account, bumped whenever the
// account is recreated after a self-destruct so that storage from a prior
// lifetime becomes unreachable.
type Incarnation struct {
	Block uint64
	Tx    uint64
}

// Next returns the incarnation that follows a self-destruct/recreate at the
// given block and transaction index.
func (i Incarnation) Next(block, tx uint64) Incarnation {
	return Incarnation{Block: block, Tx: tx}
}

// Less reports whether i happened strictly before o.
func (i Incarnation) Less(o Incarnation) bool {
	if i.Block != o.Block {
		return i.Block < o.Block
	}
	return i.Tx < o.Tx
}

// Account is the tuple of state tracked per address.
type Account struct {
	Balance     *uint256.Int
	Nonce       uint64
	CodeHash    Word
	Incarnation Incarnation
}

// EmptyCodeHash is the keccak256 hash of the empty byte string, the
// CodeHash value of an account with no code.
var EmptyCodeHash = Word{
	0xc5, 0xd2, 0x46, 0x01, 0x86, 0xf7, 0x23, 0x3c,
	0x92, 0x7e, 0x7d, 0xb2, 0xdc, 0xc7, 0x03, 0xc0,
	0xe5, 0x00, 0xb6, 0x53, 0xca, 0x82, 0x27, 0x3b,
	0x7b, 0xfa, 0xd8, 0x04, 0x5d, 0x85, 0xa4, 0x70,
}

// NewAccount returns a fresh zero-value account (as seen the first time an
// address is touched: zero balance, zero nonce, empty code, incarnation 0).
func NewAccount() *Account {
	return &Account{
		Balance:  new(uint256.Int),
		CodeHash: EmptyCodeHash,
	}
}

// Copy returns a deep copy of the account.
func (a *Account) Copy() *Account {
	if a == nil {
		return nil
	}
	cp := *a
	cp.Balance = new(uint256.Int).Set(a.Balance)
	return &cp
}

// IsEmpty implements the post-Spurious-Dragon "dead account" predicate: zero
// balance, zero nonce, empty code.
func (a *Account) IsEmpty() bool {
	if a == nil {
		return true
	}
	return a.Nonce == 0 && (a.Balance == nil || a.Balance.IsZero()) && a.CodeHash == EmptyCodeHash
}

// HasCode reports whether the account references non-empty code.
func (a *Account) HasCode() bool {
	return a != nil && a.CodeHash != EmptyCodeHash && a.CodeHash != Word{}
}

// Code is an opaque byte sequence addressed by its keccak-256 hash, shared
// across every account whose CodeHash matches.
type Code []byte
