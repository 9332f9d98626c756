package state

import (
	"bytes"
	"encoding/hex"
	"fmt"

	"github.com/availproject/sovereign-sdk/codec"
	"github.com/availproject/sovereign-sdk/common"
	"github.com/availproject/sovereign-sdk/trie"
)

// StorageKey is the flat byte key a (prefix, logical key) pair encodes to.
// The encoding is self-delimiting (both components length-prefixed), so no
// two distinct (prefix, key) pairs share an encoding. Cheaply cloneable:
// the underlying buffer is shared and never mutated after construction.
type StorageKey struct {
	key []byte
}

// NewStorageKey combines a prefix and an encoded logical key.
func NewStorageKey(prefix Prefix, encodedKey []byte) StorageKey {
	enc, buf := codec.NewEncoderBuffer()
	enc.EncodeBytes(prefix.Bytes())
	enc.EncodeBytes(encodedKey)
	return StorageKey{key: buf.Bytes()}
}

// StorageKeyFromBytes wraps already-flattened key bytes.
func StorageKeyFromBytes(b []byte) StorageKey {
	return StorageKey{key: b}
}

// Bytes returns the flat key bytes. Callers must not mutate them.
func (k StorageKey) Bytes() []byte {
	return k.key
}

// TrieKey maps the storage key onto the fixed-width trie key space.
func (k StorageKey) TrieKey() trie.Key {
	return trie.KeyFromBytes(common.ComputeHash(k.key))
}

func (k StorageKey) Equal(other StorageKey) bool {
	return bytes.Equal(k.key, other.key)
}

func (k StorageKey) String() string {
	return hex.EncodeToString(k.key)
}

// StorageValue is an opaque encoded value buffer. Shared-ownership: cheaply
// cloneable, never mutated after construction.
type StorageValue struct {
	value []byte
}

// NewStorageValue wraps encoded value bytes.
func NewStorageValue(b []byte) StorageValue {
	return StorageValue{value: b}
}

// EncodeStorageValue encodes a typed value with the given codec.
func EncodeStorageValue[V any](value V, vc codec.ValueCodec[V]) (StorageValue, error) {
	b, err := vc.EncodeValue(value)
	if err != nil {
		return StorageValue{}, err
	}
	return StorageValue{value: b}, nil
}

// Bytes returns the value bytes. Callers must not mutate them.
func (v StorageValue) Bytes() []byte {
	return v.value
}

func (v StorageValue) String() string {
	return hex.EncodeToString(v.value)
}

// StorageProof asserts that key maps to value (or is absent, when Value is
// nil) under a specific state root. Independently verifiable without access
// to the full store.
type StorageProof struct {
	Key   StorageKey
	Value []byte // nil asserts absence
	Proof *trie.Proof
}

// MarshalBinary encodes the proof triple.
func (p *StorageProof) MarshalBinary() ([]byte, error) {
	proofBytes, err := p.Proof.MarshalBinary()
	if err != nil {
		return nil, err
	}
	enc, buf := codec.NewEncoderBuffer()
	enc.EncodeBytes(p.Key.Bytes())
	enc.EncodeOption(p.Value, p.Value != nil)
	enc.EncodeBytes(proofBytes)
	if err := enc.Err(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary decodes the proof triple.
func (p *StorageProof) UnmarshalBinary(data []byte) error {
	dec := codec.NewDecoder(bytes.NewReader(data))
	keyBytes, err := dec.DecodeBytes()
	if err != nil {
		return err
	}
	value, present, err := dec.DecodeOption()
	if err != nil {
		return err
	}
	proofBytes, err := dec.DecodeBytes()
	if err != nil {
		return err
	}
	p.Key = StorageKeyFromBytes(keyBytes)
	if present {
		p.Value = value
	} else {
		p.Value = nil
	}
	p.Proof = &trie.Proof{}
	return p.Proof.UnmarshalBinary(proofBytes)
}

// StateUpdate is the pending result of folding a batch's reads and writes
// into a new authenticated root, not yet persisted.
type StateUpdate struct {
	Root   common.Hash
	batch  *trie.NodeBatch
	writes []Write
}

// Storage is the interface for storing and retrieving values in provable
// state. Two implementations must agree exactly on root hashes and read
// results: ProverStorage against the merkleized database, and ZkStorage
// replaying a recorded witness.
type Storage interface {
	// Get returns the value for key, or found=false when absent. During
	// native execution the raw read is appended to the witness; during
	// replay it is answered from the witness (validated later, at commit).
	Get(key StorageKey, witness Witness) (value []byte, found bool, err error)

	// StateRoot returns the root the next update builds on, recording it in
	// (native) or taking it from (replay) the witness.
	StateRoot(witness Witness) (common.Hash, error)

	// ComputeStateUpdate deterministically folds all reads (for
	// verification) and writes (for mutation) into a new authenticated
	// root. Fails if any recorded read is inconsistent with the previously
	// committed root.
	ComputeStateUpdate(accesses *OrderedReadsAndWrites, witness Witness) (common.Hash, *StateUpdate, error)

	// Commit durably persists the update. A no-op for witness-replay
	// storage, which holds no persistent store.
	Commit(update *StateUpdate) error

	// ValidateAndCommit is ComputeStateUpdate followed by Commit as one
	// atomic step.
	ValidateAndCommit(accesses *OrderedReadsAndWrites, witness Witness) (common.Hash, error)

	// OpenProof validates a storage proof against a state root and returns
	// the proven (key, value-or-absent) pair.
	OpenProof(root common.Hash, proof *StorageProof) (StorageKey, []byte, bool, error)

	// IsEmpty reports whether the storage holds no committed state yet.
	// Useful during initialization.
	IsEmpty() bool
}

// NativeStorage is implemented by storage that can construct proofs, which
// requires access to the full store.
type NativeStorage interface {
	Storage

	// GetWithProof returns the value for key together with a proof tying it
	// to the latest committed root.
	GetWithProof(key StorageKey) (*StorageProof, error)
}

// openProof verifies proof against root; shared by both backends.
func openProof(root common.Hash, proof *StorageProof) (StorageKey, []byte, bool, error) {
	value, present, err := proof.Proof.Open(root, proof.Key.TrieKey(), proof.Value)
	if err != nil {
		return StorageKey{}, nil, false, fmt.Errorf("%w: %v", ErrProofInvalid, err)
	}
	if present != (proof.Value != nil) {
		return StorageKey{}, nil, false, ErrProofInvalid
	}
	return proof.Key, value, present, nil
}

// VerifyProof opens proof against root and additionally checks that the
// proven key matches expectedKey. Proofs for the wrong key are rejected with
// ErrKeyMismatch even when cryptographically valid.
func VerifyProof(root common.Hash, proof *StorageProof, expectedKey StorageKey) ([]byte, bool, error) {
	key, value, present, err := openProof(root, proof)
	if err != nil {
		return nil, false, err
	}
	if !key.Equal(expectedKey) {
		return nil, false, fmt.Errorf("%w: proof is for key %s, want %s", ErrKeyMismatch, key, expectedKey)
	}
	return value, present, nil
}
