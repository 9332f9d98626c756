package trie

import (
	"bytes"
	"fmt"

	"github.com/availproject/sovereign-sdk/codec"
	"github.com/availproject/sovereign-sdk/common"
)

// Proof is a merkle path asserting what the tree holds at a key under some
// root: the sibling hashes from the root down, and the terminal node the
// path ends at (nil when the path ends at an empty subtree).
//
// A terminal leaf carrying the key proves presence; a nil terminal or a leaf
// carrying a different key proves absence.
type Proof struct {
	Siblings []common.Hash
	Terminal []byte
}

// ErrProofMismatch is returned when a proof does not commit to the given root.
var ErrProofMismatch = fmt.Errorf("merkle proof does not match root")

// Prove builds a proof for key along with the proven value, traversing the
// tree from its current root.
func (t *Tree) Prove(key Key) (*Proof, []byte, bool, error) {
	proof := &Proof{}
	h := t.root
	for depth := 0; ; depth++ {
		if h.IsZero() {
			return proof, nil, false, nil
		}
		enc, err := t.node(h)
		if err != nil {
			return nil, nil, false, err
		}
		if isLeaf(enc) {
			proof.Terminal = enc
			leafKey, v, embedded, err := decodeLeaf(enc)
			if err != nil {
				return nil, nil, false, err
			}
			if leafKey != key {
				return proof, nil, false, nil
			}
			if embedded {
				return proof, v, true, nil
			}
			value, err := t.value(common.BytesToHash(v))
			if err != nil {
				return nil, nil, false, err
			}
			return proof, value, true, nil
		}
		left, right, err := decodeBranch(enc)
		if err != nil {
			return nil, nil, false, err
		}
		if bit(key, depth) {
			proof.Siblings = append(proof.Siblings, left)
			h = right
		} else {
			proof.Siblings = append(proof.Siblings, right)
			h = left
		}
	}
}

// Open verifies the proof against root and returns the proven value for key.
// present=false with a nil error is a valid absence proof. The returned value
// is the raw embedded value, or the full value when it was supplied to Open
// via checkValue matching the leaf's value hash.
func (p *Proof) Open(root common.Hash, key Key, fullValue []byte) (value []byte, present bool, err error) {
	var terminalHash common.Hash
	var leafKey Key
	var leafBody []byte
	var embedded bool

	if p.Terminal != nil {
		if !isLeaf(p.Terminal) {
			return nil, false, fmt.Errorf("proof terminal is not a leaf node")
		}
		leafKey, leafBody, embedded, err = decodeLeaf(p.Terminal)
		if err != nil {
			return nil, false, err
		}
		terminalHash = common.Blake2Hash(p.Terminal)
	}

	h := terminalHash
	for i := len(p.Siblings) - 1; i >= 0; i-- {
		if bit(key, i) {
			h = common.Blake2Hash(branch(p.Siblings[i], h))
		} else {
			h = common.Blake2Hash(branch(h, p.Siblings[i]))
		}
	}
	if h != root {
		return nil, false, ErrProofMismatch
	}

	if p.Terminal == nil || leafKey != key {
		return nil, false, nil
	}
	if embedded {
		return leafBody, true, nil
	}
	// Regular leaf: the proof commits to the value hash, the full value
	// travels alongside the proof and must match it.
	if !bytes.Equal(common.ComputeHash(fullValue), leafBody) {
		return nil, false, fmt.Errorf("proof value does not match committed value hash")
	}
	return fullValue, true, nil
}

// MarshalBinary encodes the proof.
func (p *Proof) MarshalBinary() ([]byte, error) {
	enc, buf := codec.NewEncoderBuffer()
	enc.EncodeCompact(uint64(len(p.Siblings)))
	for _, s := range p.Siblings {
		enc.EncodeRaw(s.Bytes())
	}
	enc.EncodeOption(p.Terminal, p.Terminal != nil)
	if err := enc.Err(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary decodes the proof.
func (p *Proof) UnmarshalBinary(data []byte) error {
	dec := codec.NewDecoder(bytes.NewReader(data))
	n, err := dec.DecodeCompact()
	if err != nil {
		return err
	}
	if n > 8*KeySize {
		return fmt.Errorf("proof depth %d exceeds key width", n)
	}
	p.Siblings = make([]common.Hash, n)
	for i := range p.Siblings {
		raw, err := dec.DecodeRaw(32)
		if err != nil {
			return err
		}
		p.Siblings[i] = common.BytesToHash(raw)
	}
	terminal, ok, err := dec.DecodeOption()
	if err != nil {
		return err
	}
	if ok {
		p.Terminal = terminal
	} else {
		p.Terminal = nil
	}
	return nil
}
