package trie

import (
	"github.com/category-labs/monad-go/monadtypes"
)

// mpt is an in-memory, copy-on-write hex Patricia trie over fixed-length
// 64-nibble keys (a keccak256 path). Every mutation is structurally
// shared: Put never overwrites a node reachable from an older root, it
// only ever replaces nodes on the path to the mutated key and marks them
// dirty, so an older root handle remains valid for historical reads after
// a later Put. Hashing (and thus the opportunity to persist a dirty
// subtree) happens lazily in Commit, never on Put itself, 
// "Root hashes are recomputed lazily at commit time from the dirty
// subset."
type mpt struct {
	root *node
}

func newMPT(root *node) *mpt { return &mpt{root: root} }

// put inserts value at key, returning the new root.
func put(root *node, nibbles []byte, value []byte) *node {
	if root == nil {
		return newLeaf(nibbles, value)
	}
	switch root.kind {
	case nodeLeaf:
		return mergeLeaf(root, nibbles, value)
	case nodeBranch, nodeExtension:
		return mergeBranch(root, nibbles, value)
	default:
		panic("trie: unexpected node kind in put")
	}
}

func mergeLeaf(leaf *node, nibbles, value []byte) *node {
	common := commonPrefixLen(leaf.path, nibbles)
	if common == len(leaf.path) && common == len(nibbles) {
		return newLeaf(nibbles, value)
	}

	branch := &node{kind: nodeBranch, dirty: true}
	if common == len(leaf.path) {
		// leaf.path is a strict prefix of nibbles: push the leaf's
		// remaining key further down a placeholder branch slot — in a
		// fixed 64-nibble key space this only happens if two distinct
		// keys of equal length diverge, which commonPrefixLen already
		// handles below; a pure prefix relationship cannot occur for
		// equal-length keys, so this path is unreachable in practice.
		panic("trie: equal-length keys cannot be strict prefixes")
	}

	leafNext := leaf.path[common]
	newNext := nibbles[common]
	branch.children[leafNext] = newLeaf(leaf.path[common+1:], leaf.value)
	branch.children[newNext] = newLeaf(nibbles[common+1:], value)

	if common == 0 {
		return branch
	}
	return &node{kind: nodeExtension, path: nibbles[:common], children: [16]*node{0: branch}, dirty: true}
}

func mergeBranch(root *node, nibbles, value []byte) *node {
	if root.kind == nodeExtension {
		common := commonPrefixLen(root.path, nibbles)
		if common < len(root.path) {
			return splitExtension(root, nibbles, value, common)
		}
		child := put(root.children[0], nibbles[common:], value)
		return &node{kind: nodeExtension, path: root.path, children: [16]*node{0: child}, dirty: true}
	}

	cp := *root
	cp.dirty = true
	idx := nibbles[0]
	cp.children[idx] = put(root.children[idx], nibbles[1:], value)
	return &cp
}

func splitExtension(ext *node, nibbles, value []byte, common int) *node {
	branch := &node{kind: nodeBranch, dirty: true}
	extNext := ext.path[common]
	if common+1 < len(ext.path) {
		branch.children[extNext] = &node{kind: nodeExtension, path: ext.path[common+1:], children: ext.children, dirty: true}
	} else {
		branch.children[extNext] = ext.children[0]
	}
	newNext := nibbles[common]
	branch.children[newNext] = put(nil, nibbles[common+1:], value)

	if common == 0 {
		return branch
	}
	return &node{kind: nodeExtension, path: nibbles[:common], children: [16]*node{0: branch}, dirty: true}
}

// get looks up key, returning (value, found). A zero-length value is
// always treated as a tombstone (not found): neither an account leaf nor a
// storage leaf ever legitimately encodes to zero bytes, so this is an
// unambiguous deletion marker that avoids implementing full Patricia node
// collapse/compaction on delete — compaction is already a separate,
// out-of-path background process 
func get(root *node, nibbles []byte) ([]byte, bool) {
	for root != nil {
		switch root.kind {
		case nodeLeaf:
			if bytesEqual(root.path, nibbles) {
				if len(root.value) == 0 {
					return nil, false
				}
				return root.value, true
			}
			return nil, false
		case nodeExtension:
			if len(nibbles) < len(root.path) || !bytesEqual(root.path, nibbles[:len(root.path)]) {
				return nil, false
			}
			nibbles = nibbles[len(root.path):]
			root = root.children[0]
		case nodeBranch:
			if len(nibbles) == 0 {
				return nil, false
			}
			idx := nibbles[0]
			nibbles = nibbles[1:]
			root = root.children[idx]
		}
	}
	return nil, false
}

func commonPrefixLen(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	i := 0
	for i < n && a[i] == b[i] {
		i++
	}
	return i
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// hash computes (and caches) root's hash, recursing only into dirty
// children, and returns the keccak256 of its canonical encoding. emit, if
// non-nil, is called with every dirty node's hash and encoded bytes in
// child-before-parent order so the caller can persist it.
func hashNode(n *node, emit func(h monadtypes.Word, encoded []byte)) monadtypes.Word {
	if n == nil {
		return monadtypes.Word{}
	}
	if !n.dirty {
		return n.hash
	}
	var encoded []byte
	switch n.kind {
	case nodeLeaf:
		encoded = encodeLeafNode(n)
	case nodeExtension:
		childHash := hashNode(n.children[0], emit)
		encoded = encodeExtensionNode(n, childHash)
	case nodeBranch:
		var childHashes [16]monadtypes.Word
		for i, c := range n.children {
			childHashes[i] = hashNode(c, emit)
		}
		encoded = encodeBranchNode(childHashes)
	}
	n.hash = keccak256(encoded)
	n.dirty = false
	if emit != nil {
		emit(n.hash, encoded)
	}
	return n.hash
}
