// Package pmap implements a persistent, immutable key/value map keyed by a
// fixed-size word, used as the per-account storage and transient-storage
// maps ("Storage Map", §9 "persistent hash tries for per-account
// storage"). Every Set returns a new map sharing structure with its
// receiver in O(log n) time; Clone is O(1) since the receiver is already
// immutable and only the root pointer need be shared.
//
// The underlying structure is a treap: a randomized balanced binary search
// tree ordered by key with heap-ordered priorities, giving expected
// O(log n) Get/Set and trivial structural sharing on every persistent
// update — the same complexity profile the design note asks for from a
// persistent HAMT or copy-on-write B-tree, with a much smaller
// implementation surface.
package pmap

import (
	"bytes"
	"math/rand"
)

// Key is a 32-byte key (a monadtypes.Word storage slot), ordered
// lexicographically by its bytes.
type Key [32]byte

type node struct {
	key      Key
	value    [32]byte
	priority uint64
	left     *node
	right    *node
}

// Map is a persistent key/value map. The zero value is an empty map.
type Map struct {
	root *node
	size int
}

// Len returns the number of entries.
func (m Map) Len() int { return m.size }

// Get returns the value for key and whether it was present.
func (m Map) Get(k Key) ([32]byte, bool) {
	n := m.root
	for n != nil {
		if k == n.key {
			return n.value, true
		}
		if bytes.Compare(k[:], n.key[:]) < 0 {
			n = n.left
		} else {
			n = n.right
		}
	}
	return [32]byte{}, false
}

// Set returns a new Map with key bound to value, sharing every untouched
// subtree with the receiver.
func (m Map) Set(k Key, v [32]byte) Map {
	existed := false
	newRoot := insert(m.root, k, v, &existed)
	newSize := m.size
	if !existed {
		newSize++
	}
	return Map{root: newRoot, size: newSize}
}

// Delete returns a new Map with key removed, if present.
func (m Map) Delete(k Key) Map {
	if _, ok := m.Get(k); !ok {
		return m
	}
	return Map{root: remove(m.root, k), size: m.size - 1}
}

// Clone is O(1): the receiver's root is already immutable, so a copy of
// the Map header is a full structural snapshot.
func (m Map) Clone() Map { return m }

// ForEach visits every entry in ascending key order. Stops early if fn
// returns false.
func (m Map) ForEach(fn func(k Key, v [32]byte) bool) {
	forEach(m.root, fn)
}

func forEach(n *node, fn func(k Key, v [32]byte) bool) bool {
	if n == nil {
		return true
	}
	if !forEach(n.left, fn) {
		return false
	}
	if !fn(n.key, n.value) {
		return false
	}
	return forEach(n.right, fn)
}

func insert(n *node, k Key, v [32]byte, existed *bool) *node {
	if n == nil {
		return &node{key: k, value: v, priority: rand.Uint64()}
	}
	if k == n.key {
		*existed = true
		cp := *n
		cp.value = v
		return &cp
	}
	cp := *n
	if bytes.Compare(k[:], n.key[:]) < 0 {
		cp.left = insert(n.left, k, v, existed)
		if cp.left.priority > cp.priority {
			return rotateRight(&cp)
		}
	} else {
		cp.right = insert(n.right, k, v, existed)
		if cp.right.priority > cp.priority {
			return rotateLeft(&cp)
		}
	}
	return &cp
}

func remove(n *node, k Key) *node {
	if n == nil {
		return nil
	}
	if k == n.key {
		return merge(n.left, n.right)
	}
	cp := *n
	if bytes.Compare(k[:], n.key[:]) < 0 {
		cp.left = remove(n.left, k)
	} else {
		cp.right = remove(n.right, k)
	}
	return &cp
}

func merge(l, r *node) *node {
	switch {
	case l == nil:
		return r
	case r == nil:
		return l
	case l.priority > r.priority:
		cp := *l
		cp.right = merge(l.right, r)
		return &cp
	default:
		cp := *r
		cp.left = merge(l, r.left)
		return &cp
	}
}

func rotateRight(n *node) *node {
	l := *n.left
	n2 := *n
	n2.left = l.right
	l.right = &n2
	return &l
}

func rotateLeft(n *node) *node {
	r := *n.right
	n2 := *n
	n2.right = r.left
	r.left = &n2
	return &r
}
