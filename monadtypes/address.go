// Package monadtypes defines the wire- and state-level data model shared by
// every execution-core component: addresses, words, accounts, headers,
// transactions and receipts. Types here are intentionally independent of the
// opaque EVM interpreter's own ABI types; internal/evmhost converts between
// the two at the interpreter boundary.
package monadtypes

import (
	"encoding/hex"
	"fmt"

	"github.com/holiman/uint256"
	ethcommon "github.com/luxfi/geth/common"
)

// AddressLength is the byte length of an Address.
const AddressLength = 20

// WordLength is the byte length of a Word.
const WordLength = 32

// Address is the 20-byte identifier of an account.
type Address [AddressLength]byte

// Word is a 32-byte value used for storage slots, hashes and big-endian
// 256-bit integers.
type Word [WordLength]byte

// String renders the address as a 0x-prefixed hex string.
func (a Address) String() string {
	return "0x" + hex.EncodeToString(a[:])
}

// IsZero reports whether the address is the all-zero address.
func (a Address) IsZero() bool {
	return a == Address{}
}

// Bytes returns a copy of the address bytes.
func (a Address) Bytes() []byte {
	out := make([]byte, AddressLength)
	copy(out, a[:])
	return out
}

// BytesToAddress right-aligns b in a 20-byte Address, truncating from the
// left if b is longer than 20 bytes (mirrors common.BytesToAddress).
func BytesToAddress(b []byte) Address {
	var a Address
	if len(b) > AddressLength {
		b = b[len(b)-AddressLength:]
	}
	copy(a[AddressLength-len(b):], b)
	return a
}

// ToCommonAddress converts to the EVM interpreter ABI's address type.
func (a Address) ToCommonAddress() ethcommon.Address {
	return ethcommon.Address(a)
}

// AddressFromCommon converts from the EVM interpreter ABI's address type.
func AddressFromCommon(a ethcommon.Address) Address {
	return Address(a)
}

// String renders the word as a 0x-prefixed hex string.
func (w Word) String() string {
	return "0x" + hex.EncodeToString(w[:])
}

// IsZero reports whether every byte of the word is zero.
func (w Word) IsZero() bool {
	return w == Word{}
}

// Bytes returns a copy of the word bytes.
func (w Word) Bytes() []byte {
	out := make([]byte, WordLength)
	copy(out, w[:])
	return out
}

// BytesToWord right-aligns b in a 32-byte Word.
func BytesToWord(b []byte) Word {
	var w Word
	if len(b) > WordLength {
		b = b[len(b)-WordLength:]
	}
	copy(w[WordLength-len(b):], b)
	return w
}

// ToUint256 interprets the word as a big-endian unsigned 256-bit integer.
func (w Word) ToUint256() *uint256.Int {
	return new(uint256.Int).SetBytes(w[:])
}

// WordFromUint256 encodes u as a big-endian Word.
func WordFromUint256(u *uint256.Int) Word {
	if u == nil {
		return Word{}
	}
	var w Word
	u.WriteToArray32((*[32]byte)(&w))
	return w
}

// ToCommonHash converts to the EVM interpreter ABI's hash type.
func (w Word) ToCommonHash() ethcommon.Hash {
	return ethcommon.Hash(w)
}

// WordFromCommon converts from the EVM interpreter ABI's hash type.
func WordFromCommon(h ethcommon.Hash) Word {
	return Word(h)
}

// StorageKey identifies a single (address, slot) pair; used as a map key for
// access sets and versioned reads/writes.
type StorageKey struct {
	Address Address
	Slot    Word
}

func (k StorageKey) String() string {
	return fmt.Sprintf("%s/%s", k.Address, k.Slot)
}
