package state

import (
	"bytes"
	"fmt"

	"github.com/availproject/sovereign-sdk/common"
	"github.com/availproject/sovereign-sdk/storage"
)

// dbSource reads trie nodes and value preimages from the content-addressed
// store. Both are keyed by their own hash, so a single lookup serves either.
type dbSource struct {
	db *storage.Store
}

func (s dbSource) fetch(hash common.Hash) ([]byte, error) {
	enc, found, err := s.db.GetHash(hash)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrMissingNode, hash)
	}
	return enc, nil
}

func (s dbSource) Node(hash common.Hash) ([]byte, error) {
	return s.fetch(hash)
}

func (s dbSource) Value(hash common.Hash) ([]byte, error) {
	return s.fetch(hash)
}

// recordingSource wraps a source and appends every fetched preimage to the
// witness, in fetch order. Replay consumes the same sequence.
type recordingSource struct {
	inner   dbSource
	witness Witness
}

func (s recordingSource) fetch(hash common.Hash) ([]byte, error) {
	enc, err := s.inner.fetch(hash)
	if err != nil {
		return nil, err
	}
	s.witness.AddHint(enc)
	return enc, nil
}

func (s recordingSource) Node(hash common.Hash) ([]byte, error) {
	return s.fetch(hash)
}

func (s recordingSource) Value(hash common.Hash) ([]byte, error) {
	return s.fetch(hash)
}

// replaySource answers fetches from witness hints. Every hint is checked
// against the requested hash before use, so a tampered witness cannot
// smuggle in a preimage the native traversal never saw.
type replaySource struct {
	witness Witness
}

func (s replaySource) fetch(hash common.Hash) ([]byte, error) {
	hint, err := s.witness.GetHint()
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(common.ComputeHash(hint), hash.Bytes()) {
		return nil, fmt.Errorf("%w: hint does not hash to %s", ErrProofInvalid, hash)
	}
	return hint, nil
}

func (s replaySource) Node(hash common.Hash) ([]byte, error) {
	return s.fetch(hash)
}

func (s replaySource) Value(hash common.Hash) ([]byte, error) {
	return s.fetch(hash)
}
