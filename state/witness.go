package state

import (
	"bytes"
	"sync"

	"github.com/availproject/sovereign-sdk/codec"
)

// Witness is an ordered stream of hints recorded during native execution and
// consumed, in the same order, during witness replay. Hints are opaque byte
// strings; producer and consumer must agree on the sequence of operations
// that touches the witness.
type Witness interface {
	AddHint(hint []byte)
	GetHint() ([]byte, error)
}

// ArrayWitness backs a Witness with an in-memory slice and a read cursor.
// Safe for concurrent use.
type ArrayWitness struct {
	mu    sync.Mutex
	hints [][]byte
	next  int
}

// NewArrayWitness returns an empty witness ready for recording.
func NewArrayWitness() *ArrayWitness {
	return &ArrayWitness{}
}

func (w *ArrayWitness) AddHint(hint []byte) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.hints = append(w.hints, hint)
}

// GetHint pops the next hint, returning ErrWitnessExhausted past the end.
func (w *ArrayWitness) GetHint() ([]byte, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.next >= len(w.hints) {
		return nil, ErrWitnessExhausted
	}
	hint := w.hints[w.next]
	w.next++
	return hint, nil
}

// Len returns the number of recorded hints.
func (w *ArrayWitness) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.hints)
}

// Remaining returns how many hints are still unconsumed.
func (w *ArrayWitness) Remaining() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.hints) - w.next
}

// MarshalBinary serializes all hints. The read cursor is not serialized;
// a decoded witness always starts reading from the beginning.
func (w *ArrayWitness) MarshalBinary() ([]byte, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	enc, buf := codec.NewEncoderBuffer()
	enc.EncodeCompact(uint64(len(w.hints)))
	for _, hint := range w.hints {
		enc.EncodeBytes(hint)
	}
	if err := enc.Err(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (w *ArrayWitness) UnmarshalBinary(data []byte) error {
	dec := codec.NewDecoder(bytes.NewReader(data))
	n, err := dec.DecodeCompact()
	if err != nil {
		return err
	}
	hints := make([][]byte, 0, n)
	for i := uint64(0); i < n; i++ {
		hint, err := dec.DecodeBytes()
		if err != nil {
			return err
		}
		hints = append(hints, hint)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.hints = hints
	w.next = 0
	return nil
}

// option-encoded value hints shared by the prover and replay backends.

func encodeValueHint(value []byte, found bool) []byte {
	enc, buf := codec.NewEncoderBuffer()
	enc.EncodeOption(value, found)
	return buf.Bytes()
}

func decodeValueHint(hint []byte) ([]byte, bool, error) {
	dec := codec.NewDecoder(bytes.NewReader(hint))
	return dec.DecodeOption()
}
