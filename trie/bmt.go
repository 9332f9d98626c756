package trie

import (
	"fmt"

	"github.com/availproject/sovereign-sdk/common"
	log "github.com/availproject/sovereign-sdk/log"
)

const (
	// KeySize is the trie key width. Keys are hashes truncated to 31 bytes so
	// they fit a leaf body alongside the node tag byte.
	KeySize = 31

	// maxEmbeddedValue is the largest value stored inline in a leaf. Larger
	// values are stored out of line, keyed by their hash.
	maxEmbeddedValue = 32

	branchSize = 65
	leafSize   = 64

	tagEmbedded = 0x80
	tagRegular  = 0xC0
)

// Key is a fixed-width trie key.
type Key [KeySize]byte

// KeyFromBytes truncates or zero-pads b into a Key.
func KeyFromBytes(b []byte) Key {
	var k Key
	copy(k[:], b)
	return k
}

// NodeSource supplies node encodings and value preimages by hash. The native
// backend reads them from the database (recording each into the witness); the
// replay backend pops them from the witness, checking each preimage hashes to
// the requested hash.
type NodeSource interface {
	// Node returns the encoding of the node with the given hash.
	Node(hash common.Hash) ([]byte, error)
	// Value returns the preimage of an out-of-line value hash.
	Value(hash common.Hash) ([]byte, error)
}

// NodeBatch is the set of new nodes and value preimages produced by tree
// mutations, to be persisted on commit.
type NodeBatch struct {
	Nodes  map[common.Hash][]byte
	Values map[common.Hash][]byte
}

/*
Branch Node (65 bytes)
+--------+------------------------------------------+
| 0x00   | 32 bytes left hash | 32 bytes right hash |
+--------+------------------------------------------+

Embedded-Value Leaf Node (64 bytes), value <= 32 bytes
+--------+------------------------------------------+
| 2 bits | 6 bits (value size) | 31 bytes (key)     |
+--------+------------------------------------------+
|           32 bytes (embedded value, padded)       |
+---------------------------------------------------+

Regular Leaf Node (64 bytes), value > 32 bytes
+--------+------------------------------------------+
| 2 bits | 6 bits (0s) | 31 bytes (key)             |
+--------+------------------------------------------+
|              32 bytes (hash of value)             |
+---------------------------------------------------+

An empty subtree is the all-zero hash. A subtree holding exactly one key is a
leaf; with two or more keys it is a branch splitting on the bit at its depth.
This shape is a function of the key set alone, so any mutation order reaches
the same root.
*/

// Tree is an authenticated binary merkle trie rooted at a node hash, with all
// node accesses going through a NodeSource. Mutations accumulate new nodes in
// a pending batch; nothing is persisted until the batch is committed by the
// caller.
type Tree struct {
	root          common.Hash
	src           NodeSource
	pending       map[common.Hash][]byte
	pendingValues map[common.Hash][]byte
}

// New opens a tree at the given root. The zero root is the empty tree.
func New(root common.Hash, src NodeSource) *Tree {
	return &Tree{
		root:          root,
		src:           src,
		pending:       make(map[common.Hash][]byte),
		pendingValues: make(map[common.Hash][]byte),
	}
}

// Root returns the current root hash.
func (t *Tree) Root() common.Hash {
	return t.root
}

// Batch returns the nodes and values created by mutations so far.
func (t *Tree) Batch() *NodeBatch {
	return &NodeBatch{Nodes: t.pending, Values: t.pendingValues}
}

func branch(left, right common.Hash) []byte {
	enc := make([]byte, branchSize)
	copy(enc[1:33], left.Bytes())
	copy(enc[33:65], right.Bytes())
	return enc
}

func leaf(key Key, value []byte) []byte {
	enc := make([]byte, leafSize)
	if len(value) <= maxEmbeddedValue {
		enc[0] = byte(tagEmbedded | len(value))
		copy(enc[1:32], key[:])
		copy(enc[32:32+len(value)], value)
	} else {
		enc[0] = tagRegular
		copy(enc[1:32], key[:])
		copy(enc[32:64], common.ComputeHash(value))
	}
	return enc
}

func isLeaf(enc []byte) bool {
	return len(enc) == leafSize && enc[0]&0x80 != 0
}

func isBranch(enc []byte) bool {
	return len(enc) == branchSize && enc[0] == 0x00
}

func decodeBranch(enc []byte) (left, right common.Hash, err error) {
	if !isBranch(enc) {
		return common.Hash{}, common.Hash{}, fmt.Errorf("invalid branch node of %d bytes", len(enc))
	}
	return common.BytesToHash(enc[1:33]), common.BytesToHash(enc[33:65]), nil
}

// decodeLeaf decodes a leaf node into its key and value-or-value-hash.
func decodeLeaf(enc []byte) (key Key, v []byte, embedded bool, err error) {
	if len(enc) != leafSize {
		return Key{}, nil, false, fmt.Errorf("invalid leaf length %d", len(enc))
	}
	head := enc[0]
	copy(key[:], enc[1:32])
	switch head & 0xC0 {
	case tagEmbedded:
		size := int(head & 0x3F)
		if size > maxEmbeddedValue {
			return Key{}, nil, false, fmt.Errorf("invalid embedded value size %d", size)
		}
		return key, enc[32 : 32+size], true, nil
	case tagRegular:
		return key, enc[32:64], false, nil
	default:
		return Key{}, nil, false, fmt.Errorf("invalid leaf node header 0x%02x", head)
	}
}

// bit returns bit i of the key, most significant bit first.
func bit(k Key, i int) bool {
	byteIndex := i / 8
	if byteIndex >= len(k) {
		return false
	}
	mask := byte(1 << (7 - i%8))
	return k[byteIndex]&mask != 0
}

// node retrieves a node encoding, consulting locally created nodes before the
// source.
func (t *Tree) node(hash common.Hash) ([]byte, error) {
	if enc, ok := t.pending[hash]; ok {
		return enc, nil
	}
	return t.src.Node(hash)
}

func (t *Tree) value(hash common.Hash) ([]byte, error) {
	if v, ok := t.pendingValues[hash]; ok {
		return v, nil
	}
	return t.src.Value(hash)
}

func (t *Tree) putNode(enc []byte) common.Hash {
	h := common.Blake2Hash(enc)
	t.pending[h] = enc
	return h
}

func (t *Tree) putLeaf(key Key, value []byte) common.Hash {
	enc := leaf(key, value)
	if len(value) > maxEmbeddedValue {
		t.pendingValues[common.Blake2Hash(value)] = value
	}
	return t.putNode(enc)
}

// Get returns the value stored under key, or found=false when absent.
func (t *Tree) Get(key Key) ([]byte, bool, error) {
	h := t.root
	for depth := 0; ; depth++ {
		if h.IsZero() {
			return nil, false, nil
		}
		enc, err := t.node(h)
		if err != nil {
			return nil, false, err
		}
		if isLeaf(enc) {
			leafKey, v, embedded, err := decodeLeaf(enc)
			if err != nil {
				return nil, false, err
			}
			if leafKey != key {
				return nil, false, nil
			}
			if embedded {
				return v, true, nil
			}
			value, err := t.value(common.BytesToHash(v))
			if err != nil {
				return nil, false, err
			}
			return value, true, nil
		}
		left, right, err := decodeBranch(enc)
		if err != nil {
			return nil, false, err
		}
		if bit(key, depth) {
			h = right
		} else {
			h = left
		}
	}
}

// Insert sets key to value, updating the root.
func (t *Tree) Insert(key Key, value []byte) error {
	newRoot, _, err := t.insert(t.root, key, value, 0)
	if err != nil {
		return err
	}
	t.root = newRoot
	log.Trace(log.TrieModule, "insert", "key", fmt.Sprintf("%x", key[:4]), "root", newRoot.StringShort())
	return nil
}

type nodeKind int

const (
	kindEmpty nodeKind = iota
	kindLeaf
	kindBranch
)

func (t *Tree) insert(h common.Hash, key Key, value []byte, depth int) (common.Hash, nodeKind, error) {
	if h.IsZero() {
		return t.putLeaf(key, value), kindLeaf, nil
	}
	enc, err := t.node(h)
	if err != nil {
		return common.Hash{}, kindEmpty, err
	}
	if isLeaf(enc) {
		leafKey, _, _, err := decodeLeaf(enc)
		if err != nil {
			return common.Hash{}, kindEmpty, err
		}
		if leafKey == key {
			return t.putLeaf(key, value), kindLeaf, nil
		}
		return t.fork(h, leafKey, key, value, depth), kindBranch, nil
	}
	left, right, err := decodeBranch(enc)
	if err != nil {
		return common.Hash{}, kindEmpty, err
	}
	if bit(key, depth) {
		right, _, err = t.insert(right, key, value, depth+1)
	} else {
		left, _, err = t.insert(left, key, value, depth+1)
	}
	if err != nil {
		return common.Hash{}, kindEmpty, err
	}
	return t.putNode(branch(left, right)), kindBranch, nil
}

// fork splits a leaf: both keys descend until their bits diverge, producing a
// chain of single-sided branches ending in a branch holding the two leaves.
func (t *Tree) fork(oldLeaf common.Hash, oldKey, key Key, value []byte, depth int) common.Hash {
	newLeaf := t.putLeaf(key, value)

	d := depth
	for bit(oldKey, d) == bit(key, d) {
		d++
	}

	var h common.Hash
	if bit(key, d) {
		h = t.putNode(branch(oldLeaf, newLeaf))
	} else {
		h = t.putNode(branch(newLeaf, oldLeaf))
	}
	for i := d - 1; i >= depth; i-- {
		if bit(key, i) {
			h = t.putNode(branch(common.Hash{}, h))
		} else {
			h = t.putNode(branch(h, common.Hash{}))
		}
	}
	return h
}

// Delete removes key, updating the root. Deleting an absent key is a no-op.
func (t *Tree) Delete(key Key) error {
	newRoot, _, err := t.remove(t.root, key, 0)
	if err != nil {
		return err
	}
	t.root = newRoot
	log.Trace(log.TrieModule, "delete", "key", fmt.Sprintf("%x", key[:4]), "root", newRoot.StringShort())
	return nil
}

func (t *Tree) remove(h common.Hash, key Key, depth int) (common.Hash, nodeKind, error) {
	if h.IsZero() {
		return h, kindEmpty, nil
	}
	enc, err := t.node(h)
	if err != nil {
		return common.Hash{}, kindEmpty, err
	}
	if isLeaf(enc) {
		leafKey, _, _, err := decodeLeaf(enc)
		if err != nil {
			return common.Hash{}, kindEmpty, err
		}
		if leafKey == key {
			return common.Hash{}, kindEmpty, nil
		}
		return h, kindLeaf, nil
	}
	left, right, err := decodeBranch(enc)
	if err != nil {
		return common.Hash{}, kindEmpty, err
	}

	var child, sibling common.Hash
	if bit(key, depth) {
		child, sibling = right, left
	} else {
		child, sibling = left, right
	}
	newChild, childKind, err := t.remove(child, key, depth+1)
	if err != nil {
		return common.Hash{}, kindEmpty, err
	}

	// A subtree left with a single key collapses to a leaf at this depth.
	if childKind == kindEmpty {
		if sibling.IsZero() {
			return common.Hash{}, kindEmpty, nil
		}
		sibEnc, err := t.node(sibling)
		if err != nil {
			return common.Hash{}, kindEmpty, err
		}
		if isLeaf(sibEnc) {
			return sibling, kindLeaf, nil
		}
	}
	if childKind == kindLeaf && sibling.IsZero() {
		return newChild, kindLeaf, nil
	}

	if bit(key, depth) {
		return t.putNode(branch(sibling, newChild)), kindBranch, nil
	}
	return t.putNode(branch(newChild, sibling)), kindBranch, nil
}
