package state

import (
	"bytes"
	"fmt"

	"github.com/availproject/sovereign-sdk/common"
	"github.com/availproject/sovereign-sdk/log"
	"github.com/availproject/sovereign-sdk/storage"
	"github.com/availproject/sovereign-sdk/trie"
)

// Config holds the prover storage configuration. An empty Path opens an
// in-memory store, used by tests.
type Config struct {
	Path string
}

var (
	latestRootKey = []byte("meta/latest-root")
	flatKeyNS     = []byte("kv/")
)

// ProverStorage executes against the full merkleized database. Every
// underlying read is recorded into the witness so a ZkStorage can replay
// the identical execution without the database.
type ProverStorage struct {
	db   *storage.Store
	root common.Hash
}

// NewProverStorage opens (or creates) the store at cfg.Path and loads the
// latest committed root.
func NewProverStorage(cfg Config) (*ProverStorage, error) {
	db, err := storage.NewStore(cfg.Path)
	if err != nil {
		return nil, err
	}
	s := &ProverStorage{db: db}
	rootBytes, found, err := db.Get(latestRootKey)
	if err != nil {
		db.Close()
		return nil, err
	}
	if found {
		s.root = common.BytesToHash(rootBytes)
	}
	log.Debug(log.StateModule, "prover storage opened", "path", cfg.Path, "root", s.root)
	return s, nil
}

// Close releases the underlying store.
func (s *ProverStorage) Close() error {
	return s.db.Close()
}

func flatKey(key StorageKey) []byte {
	return append(append([]byte{}, flatKeyNS...), key.Bytes()...)
}

// Get reads key from the flat store and records the result as a witness
// hint. Authentication of the read happens later, when ComputeStateUpdate
// re-traverses the trie.
func (s *ProverStorage) Get(key StorageKey, witness Witness) ([]byte, bool, error) {
	value, found, err := s.db.Get(flatKey(key))
	if err != nil {
		return nil, false, err
	}
	witness.AddHint(encodeValueHint(value, found))
	return value, found, nil
}

// StateRoot records and returns the latest committed root.
func (s *ProverStorage) StateRoot(witness Witness) (common.Hash, error) {
	witness.AddHint(s.root.Bytes())
	return s.root, nil
}

// GetStateRoot returns the latest committed root without touching a
// witness.
func (s *ProverStorage) GetStateRoot() common.Hash {
	return s.root
}

// IsEmpty reports whether no state has been committed yet.
func (s *ProverStorage) IsEmpty() bool {
	return s.root.IsZero()
}

// ComputeStateUpdate records the prior root as a hint, re-traverses every
// ordered read against it (recording the touched node and value preimages),
// applies the ordered writes, and returns the new root with its pending
// node batch.
func (s *ProverStorage) ComputeStateUpdate(accesses *OrderedReadsAndWrites, witness Witness) (common.Hash, *StateUpdate, error) {
	witness.AddHint(s.root.Bytes())
	src := recordingSource{inner: dbSource{db: s.db}, witness: witness}
	root, update, err := computeStateUpdate(s.root, src, accesses)
	if err != nil {
		return common.Hash{}, nil, err
	}
	log.Debug(log.StateModule, "state update computed",
		"reads", len(accesses.Reads), "writes", len(accesses.Writes),
		"prev_root", s.root, "root", root)
	return root, update, nil
}

// computeStateUpdate is the shared core of both backends: verify reads,
// apply writes, fold to a root. Both run this byte-for-byte identically,
// differing only in where the node source gets its preimages.
func computeStateUpdate(prevRoot common.Hash, src trie.NodeSource, accesses *OrderedReadsAndWrites) (common.Hash, *StateUpdate, error) {
	tree := trie.New(prevRoot, src)
	for _, r := range accesses.Reads {
		value, found, err := tree.Get(r.Key.TrieKey())
		if err != nil {
			return common.Hash{}, nil, err
		}
		if found != r.Found || !bytes.Equal(value, r.Value) {
			return common.Hash{}, nil, fmt.Errorf("%w: recorded read of %s does not match state", ErrReadConflict, r.Key)
		}
	}
	for _, w := range accesses.Writes {
		var err error
		if w.Value == nil {
			err = tree.Delete(w.Key.TrieKey())
		} else {
			err = tree.Insert(w.Key.TrieKey(), w.Value)
		}
		if err != nil {
			return common.Hash{}, nil, err
		}
	}
	root := tree.Root()
	return root, &StateUpdate{Root: root, batch: tree.Batch(), writes: accesses.Writes}, nil
}

// Commit durably persists the update: trie nodes, value preimages, the flat
// key-value mirror, and the new root, in one batch per concern.
func (s *ProverStorage) Commit(update *StateUpdate) error {
	if err := s.db.WriteBatch(update.batch.Nodes); err != nil {
		return err
	}
	if err := s.db.WriteBatch(update.batch.Values); err != nil {
		return err
	}
	for _, w := range update.writes {
		var err error
		if w.Value == nil {
			err = s.db.Delete(flatKey(w.Key))
		} else {
			err = s.db.Put(flatKey(w.Key), w.Value)
		}
		if err != nil {
			return err
		}
	}
	if err := s.db.Put(latestRootKey, update.Root.Bytes()); err != nil {
		return err
	}
	s.root = update.Root
	log.Info(log.StateModule, "state committed", "root", s.root, "writes", len(update.writes))
	return nil
}

// ValidateAndCommit computes and persists the update in one step.
func (s *ProverStorage) ValidateAndCommit(accesses *OrderedReadsAndWrites, witness Witness) (common.Hash, error) {
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
func (s *ProverStorage) OpenProof(root common.Hash, proof *StorageProof) (StorageKey, []byte, bool, error) {
	return openProof(root, proof)
}

// GetWithProof returns key's value together with a proof of (non-)inclusion
// under the latest committed root.
func (s *ProverStorage) GetWithProof(key StorageKey) (*StorageProof, error) {
	tree := trie.New(s.root, dbSource{db: s.db})
	proof, value, found, err := tree.Prove(key.TrieKey())
	if err != nil {
		return nil, err
	}
	sp := &StorageProof{Key: key, Proof: proof}
	if found {
		sp.Value = value
	}
	return sp, nil
}
