package state

import (
	"fmt"

	"github.com/availproject/sovereign-sdk/codec"
)

// StateValue is a typed singleton cell rooted at a prefix.
type StateValue[V any] struct {
	prefix Prefix
	vc     codec.ValueCodec[V]
}

// NewStateValue builds a value cell over the given prefix and codec.
func NewStateValue[V any](prefix Prefix, vc codec.ValueCodec[V]) StateValue[V] {
	return StateValue[V]{prefix: prefix, vc: vc}
}

// Prefix returns the cell's prefix.
func (v StateValue[V]) Prefix() Prefix {
	return v.prefix
}

// StorageKey returns the cell's flat key. A singleton encodes an empty
// logical key under its prefix.
func (v StateValue[V]) StorageKey() StorageKey {
	return NewStorageKey(v.prefix, nil)
}

// Get returns the value, with found=false when unset.
func (v StateValue[V]) Get(ws *WorkingSet) (V, bool, error) {
	var zero V
	raw, found, err := ws.Get(v.StorageKey())
	if err != nil || !found {
		return zero, false, err
	}
	value, err := v.vc.DecodeValue(raw)
	if err != nil {
		return zero, false, fmt.Errorf("%w: %v", ErrCodec, err)
	}
	return value, true, nil
}

// GetOrErr is Get with absence reported as ErrMissingValue.
func (v StateValue[V]) GetOrErr(ws *WorkingSet) (V, error) {
	value, found, err := v.Get(ws)
	if err != nil {
		return value, err
	}
	if !found {
		return value, fmt.Errorf("%w: %s", ErrMissingValue, v.StorageKey())
	}
	return value, nil
}

// Set writes the value.
func (v StateValue[V]) Set(ws *WorkingSet, value V) error {
	raw, err := v.vc.EncodeValue(value)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCodec, err)
	}
	ws.Set(v.StorageKey(), raw)
	return nil
}

// Delete clears the value.
func (v StateValue[V]) Delete(ws *WorkingSet) {
	ws.Delete(v.StorageKey())
}
