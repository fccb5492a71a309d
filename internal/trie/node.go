package trie

import (
	"github.com/holiman/uint256"
	"github.com/luxfi/geth/crypto"
	"github.com/luxfi/geth/rlp"

	"github.com/category-labs/monad-go/monadtypes"
)

// node is one of the three node shapes the design note describes: Leaf
// {path, value}, Extension {path, child}, Branch {up to 16 children,
// optional value}. A node's hash is computed lazily, only when it is
// marked dirty and the owning trie is committed.
type node struct {
	kind     nodeKind
	path     []byte // remaining nibble path (leaf/extension only)
	value    []byte // leaf value (raw bytes this trie stores, e.g. an encoded account)
	children [16]*node
	hash     monadtypes.Word
	dirty    bool
}

type nodeKind uint8

const (
	nodeLeaf nodeKind = iota
	nodeExtension
	nodeBranch
)

func newLeaf(path, value []byte) *node {
	return &node{kind: nodeLeaf, path: append([]byte{}, path...), value: value, dirty: true}
}

// rlpAccount is the RLP-compatible wire shape of an account leaf: the
// custom Merkle rule substitutes the account's *child storage root* in the
// StorageRoot field in place of a placeholder before hashing, per spec
// §4.5 "Merkle computation".
type rlpAccount struct {
	Nonce       uint64
	Balance     []byte
	StorageRoot monadtypes.Word
	CodeHash    monadtypes.Word
	Incarnation uint64
}

// encodeAccountLeaf RLP-encodes acct with storageRoot hashed in as the
// account's storage-root field.
func encodeAccountLeaf(acct *monadtypes.Account, storageRoot monadtypes.Word) ([]byte, error) {
	return rlp.EncodeToBytes(rlpAccount{
		Nonce:       acct.Nonce,
		Balance:     acct.Balance.Bytes(),
		StorageRoot: storageRoot,
		CodeHash:    acct.CodeHash,
		Incarnation: acct.Incarnation.Block<<32 | acct.Incarnation.Tx,
	})
}

func decodeAccountLeaf(b []byte) (*monadtypes.Account, monadtypes.Word, error) {
	var r rlpAccount
	if err := rlp.DecodeBytes(b, &r); err != nil {
		return nil, monadtypes.Word{}, err
	}
	acct := &monadtypes.Account{
		Nonce:    r.Nonce,
		Balance:  new(uint256.Int).SetBytes(r.Balance),
		CodeHash: r.CodeHash,
		Incarnation: monadtypes.Incarnation{
			Block: r.Incarnation >> 32,
			Tx:    r.Incarnation & 0xffffffff,
		},
	}
	return acct, r.StorageRoot, nil
}

// keyToNibbles splits a 32-byte keccak path into 64 nibbles, the
// conventional hex-Patricia addressing scheme.
func keyToNibbles(key monadtypes.Word) []byte {
	nibbles := make([]byte, 64)
	for i, b := range key {
		nibbles[i*2] = b >> 4
		nibbles[i*2+1] = b & 0x0f
	}
	return nibbles
}

func keccak256(data ...[]byte) monadtypes.Word {
	return monadtypes.BytesToWord(crypto.Keccak256(data...))
}
