package state

import (
	"fmt"

	"github.com/availproject/sovereign-sdk/common"
)

// ZkStorage re-executes against a recorded witness instead of a database.
// Reads are answered from value hints without validation; validation is
// deferred to ComputeStateUpdate, which re-traverses every read against the
// authenticated prior root using the witnessed preimages.
type ZkStorage struct {
	prevRoot common.Hash
}

// NewZkStorage builds a replay backend pinned to prevRoot. A zero prevRoot
// means no prior commitment exists and the witnessed root is accepted as is.
func NewZkStorage(prevRoot common.Hash) *ZkStorage {
	return &ZkStorage{prevRoot: prevRoot}
}

// Get pops the next value hint. The value is not yet authenticated.
func (s *ZkStorage) Get(_ StorageKey, witness Witness) ([]byte, bool, error) {
	hint, err := witness.GetHint()
	if err != nil {
		return nil, false, err
	}
	value, found, err := decodeValueHint(hint)
	if err != nil {
		return nil, false, fmt.Errorf("%w: bad value hint: %v", ErrProofInvalid, err)
	}
	return value, found, nil
}

func (s *ZkStorage) popRoot(witness Witness) (common.Hash, error) {
	hint, err := witness.GetHint()
	if err != nil {
		return common.Hash{}, err
	}
	if len(hint) != common.HashLength {
		return common.Hash{}, fmt.Errorf("%w: bad root hint length %d", ErrProofInvalid, len(hint))
	}
	root := common.BytesToHash(hint)
	if !s.prevRoot.IsZero() && root != s.prevRoot {
		return common.Hash{}, fmt.Errorf("%w: witnessed root %s, committed %s", ErrProofInvalid, root, s.prevRoot)
	}
	return root, nil
}

// StateRoot pops the root hint and checks it against the pinned root.
func (s *ZkStorage) StateRoot(witness Witness) (common.Hash, error) {
	return s.popRoot(witness)
}

// IsEmpty reports whether the pinned root is the empty root.
func (s *ZkStorage) IsEmpty() bool {
	return s.prevRoot.IsZero()
}

// ComputeStateUpdate pops the prior root, then runs the same
// verify-and-fold traversal as the prover, with every node and value
// preimage drawn from the witness and checked against its hash. Any value
// hint served by Get that disagrees with committed state fails here.
func (s *ZkStorage) ComputeStateUpdate(accesses *OrderedReadsAndWrites, witness Witness) (common.Hash, *StateUpdate, error) {
	prevRoot, err := s.popRoot(witness)
	if err != nil {
		return common.Hash{}, nil, err
	}
	return computeStateUpdate(prevRoot, replaySource{witness: witness}, accesses)
}

// Commit is a no-op: replay storage persists nothing.
func (s *ZkStorage) Commit(update *StateUpdate) error {
	s.prevRoot = update.Root
	return nil
}

// ValidateAndCommit computes the update and advances the pinned root.
func (s *ZkStorage) ValidateAndCommit(accesses *OrderedReadsAndWrites, witness Witness) (common.Hash, error) {
	root, update, err := s.ComputeStateUpdate(accesses, witness)
	if err != nil {
		return common.Hash{}, err
	}
	if err := s.Commit(update); err != nil {
		return common.Hash{}, err
	}
	return root, nil
}

// OpenProof validates a storage proof against a state root.
func (s *ZkStorage) OpenProof(root common.Hash, proof *StorageProof) (StorageKey, []byte, bool, error) {
	return openProof(root, proof)
}
