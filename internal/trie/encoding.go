package trie

import (
	"github.com/luxfi/geth/rlp"

	"github.com/category-labs/monad-go/monadtypes"
)

// encodeLeafNode RLP-encodes {path, value} — leaves are the
// "RLP-compatible" half of the node schema (): value itself was
// already produced by encodeAccountLeaf (or, for a storage leaf, is the
// word with its leading zero bytes trimmed), so this just wraps it with its remaining path.
func encodeLeafNode(n *node) []byte {
	b, err := rlp.EncodeToBytes([][]byte{n.path, n.value})
	if err != nil {
		// path/value are plain byte slices; rlp.EncodeToBytes only fails
		// on unsupported types or cyclic structures, neither possible here.
		panic(err)
	}
	return b
}

// encodeExtensionNode and encodeBranchNode use a fixed-width custom binary
// layout rather than RLP,  "custom for internal nodes".
func encodeExtensionNode(n *node, child monadtypes.Word) []byte {
	out := make([]byte, 0, 1+len(n.path)+32)
	out = append(out, byte(len(n.path)))
	out = append(out, n.path...)
	out = append(out, child[:]...)
	return out
}

func encodeBranchNode(children [16]monadtypes.Word) []byte {
	out := make([]byte, 0, 16*32)
	for _, c := range children {
		out = append(out, c[:]...)
	}
	return out
}
