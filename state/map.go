package state

import (
	"fmt"

	"github.com/availproject/sovereign-sdk/codec"
	"github.com/availproject/sovereign-sdk/common"
)

// StateMap is a typed key-value container rooted at a prefix. Two maps with
// distinct prefixes can never collide, whatever keys they hold.
type StateMap[K, V any] struct {
	prefix Prefix
	kc     codec.KeyCodec[K]
	vc     codec.ValueCodec[V]
}

// NewStateMap builds a map over the given prefix and codecs.
func NewStateMap[K, V any](prefix Prefix, kc codec.KeyCodec[K], vc codec.ValueCodec[V]) StateMap[K, V] {
	return StateMap[K, V]{prefix: prefix, kc: kc, vc: vc}
}

// Prefix returns the map's prefix.
func (m StateMap[K, V]) Prefix() Prefix {
	return m.prefix
}

// StorageKey returns the flat key a logical key maps to.
func (m StateMap[K, V]) StorageKey(key K) StorageKey {
	return NewStorageKey(m.prefix, m.kc.EncodeKey(key))
}

// Get returns the value for key, with found=false when absent.
func (m StateMap[K, V]) Get(ws *WorkingSet, key K) (V, bool, error) {
	var zero V
	raw, found, err := ws.Get(m.StorageKey(key))
	if err != nil || !found {
		return zero, false, err
	}
	value, err := m.vc.DecodeValue(raw)
	if err != nil {
		return zero, false, fmt.Errorf("%w: %v", ErrCodec, err)
	}
	return value, true, nil
}

// GetOrErr is Get with absence reported as ErrMissingValue.
func (m StateMap[K, V]) GetOrErr(ws *WorkingSet, key K) (V, error) {
	value, found, err := m.Get(ws, key)
	if err != nil {
		return value, err
	}
	if !found {
		return value, fmt.Errorf("%w: %s", ErrMissingValue, m.StorageKey(key))
	}
	return value, nil
}

// Set writes value under key.
func (m StateMap[K, V]) Set(ws *WorkingSet, key K, value V) error {
	raw, err := m.vc.EncodeValue(value)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCodec, err)
	}
	ws.Set(m.StorageKey(key), raw)
	return nil
}

// Remove deletes key and returns the value it held, if any.
func (m StateMap[K, V]) Remove(ws *WorkingSet, key K) (V, bool, error) {
	value, found, err := m.Get(ws, key)
	if err != nil {
		return value, false, err
	}
	ws.Delete(m.StorageKey(key))
	return value, found, nil
}

// Delete deletes key without reading the previous value.
func (m StateMap[K, V]) Delete(ws *WorkingSet, key K) {
	ws.Delete(m.StorageKey(key))
}

// VerifyProof checks proof against root for this map's key and decodes the
// proven value. Proofs for any other storage key are rejected, even valid
// ones.
func (m StateMap[K, V]) VerifyProof(root common.Hash, proof *StorageProof, key K) (V, bool, error) {
	var zero V
	raw, present, err := VerifyProof(root, proof, m.StorageKey(key))
	if err != nil || !present {
		return zero, false, err
	}
	value, err := m.vc.DecodeValue(raw)
	if err != nil {
		return zero, false, fmt.Errorf("%w: %v", ErrCodec, err)
	}
	return value, true, nil
}
