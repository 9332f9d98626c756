package stf

import (
	"github.com/availproject/sovereign-sdk/blobstorage"
	"github.com/availproject/sovereign-sdk/common"
	"github.com/availproject/sovereign-sdk/da"
	"github.com/availproject/sovereign-sdk/sequencer"
	"github.com/availproject/sovereign-sdk/state"
	"github.com/availproject/sovereign-sdk/zk"
)

// SlotVerifier re-executes a slot from its witness, without a database, and
// produces the public state transition claim. It must be wired with the
// same registry, blob store, verifier, and handler as the native runner.
type SlotVerifier struct {
	registry  *sequencer.Registry
	blobStore *blobstorage.BlobStorage
	verifier  da.Verifier
	handler   BatchHandler
}

// NewSlotVerifier wires a verifier over the runner's collaborators.
func NewSlotVerifier(registry *sequencer.Registry, blobStore *blobstorage.BlobStorage, verifier da.Verifier, handler BatchHandler) *SlotVerifier {
	return &SlotVerifier{
		registry:  registry,
		blobStore: blobStore,
		verifier:  verifier,
		handler:   handler,
	}
}

// VerifySlot replays one slot against prevRoot and witness. The returned
// transition's FinalRoot is authenticated: any tampering with the witness
// or the blob list surfaces as an error instead.
func (v *SlotVerifier) VerifySlot(prevRoot common.Hash, header da.BlockHeader, blobs []da.BlobReader, proofs SlotProofs, witness state.Witness) (*zk.StateTransition, error) {
	storage := state.NewZkStorage(prevRoot)
	runner := NewRunner(storage, v.registry, v.blobStore, v.verifier, v.handler)
	result, err := runner.ApplySlot(header, blobs, proofs, witness)
	if err != nil {
		return nil, err
	}
	return result.Transition(header.Hash()), nil
}
