package stf

import (
	"github.com/availproject/sovereign-sdk/blobstorage"
	"github.com/availproject/sovereign-sdk/codec"
	"github.com/availproject/sovereign-sdk/common"
	"github.com/availproject/sovereign-sdk/da"
	"github.com/availproject/sovereign-sdk/log"
	"github.com/availproject/sovereign-sdk/sequencer"
	"github.com/availproject/sovereign-sdk/state"
	"github.com/availproject/sovereign-sdk/zk"
)

const slotNumberPrefix = "chain/slot_number"

// BatchHandler executes the contents of one blob against the working set.
// A returned error fails the whole batch; the runner rolls its writes back.
type BatchHandler interface {
	ApplyBatch(ws *state.WorkingSet, blob da.BlobReader) error
}

// ReceiptStatus says how a blob's batch ended.
type ReceiptStatus int

const (
	StatusApplied ReceiptStatus = iota
	StatusFailed
)

func (s ReceiptStatus) String() string {
	switch s {
	case StatusApplied:
		return "applied"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Receipt records the outcome of one executed blob.
type Receipt struct {
	BlobHash common.Hash
	Sender   []byte
	Status   ReceiptStatus
	Reason   string
}

// SlotProofs are the data availability adapter's proofs that the blob list
// handed to ApplySlot is exactly the block's relevant subset.
type SlotProofs struct {
	Inclusion    da.InclusionProof
	Completeness da.CompletenessProof
}

// SlotResult is everything a slot execution produces: the root pair, the
// per-blob receipts, the witness a verifier replays, and the validity
// condition the proof must carry.
type SlotResult struct {
	InitialRoot common.Hash
	FinalRoot   common.Hash
	Receipts    []Receipt
	Witness     state.Witness
	Condition   zk.ValidityCondition
}

// Transition packages a slot result as its public claim.
func (r *SlotResult) Transition(slotHash common.Hash) *zk.StateTransition {
	return &zk.StateTransition{
		InitialRoot: r.InitialRoot,
		FinalRoot:   r.FinalRoot,
		SlotHash:    slotHash,
		Condition:   r.Condition,
	}
}

// Runner drives the state transition function over one storage backend.
// The same Runner code executes natively on ProverStorage and replays
// inside a verifier on ZkStorage; both must produce identical roots.
type Runner struct {
	storage    state.Storage
	registry   *sequencer.Registry
	blobStore  *blobstorage.BlobStorage
	verifier   da.Verifier
	handler    BatchHandler
	slotNumber state.StateValue[uint64]
}

// NewRunner wires a runner over its collaborators.
func NewRunner(storage state.Storage, registry *sequencer.Registry, blobStore *blobstorage.BlobStorage, verifier da.Verifier, handler BatchHandler) *Runner {
	return &Runner{
		storage:   storage,
		registry:  registry,
		blobStore: blobStore,
		verifier:  verifier,
		handler:   handler,
		slotNumber: state.NewStateValue[uint64](
			state.NewPrefix(slotNumberPrefix),
			codec.Uint64Codec{},
		),
	}
}

// InitChain applies the genesis configuration and commits the first root.
// It must only run on empty storage.
func (r *Runner) InitChain(cfg sequencer.GenesisConfig, witness state.Witness) (common.Hash, error) {
	ws := state.NewWorkingSet(r.storage, witness)
	if err := r.registry.Genesis(ws, cfg); err != nil {
		return common.Hash{}, err
	}
	if err := r.slotNumber.Set(ws, 0); err != nil {
		return common.Hash{}, err
	}
	accesses, wit := ws.Freeze()
	root, err := r.storage.ValidateAndCommit(accesses, wit)
	if err != nil {
		return common.Hash{}, err
	}
	log.Info(log.StfModule, "chain initialized", "root", root)
	return root, nil
}

// ApplySlot executes one data availability slot: verify the blob list
// against the header, select and order blobs, execute each in its own
// checkpoint, and commit the new root. A failing batch is rolled back and
// reported in its receipt; it never aborts the slot.
func (r *Runner) ApplySlot(header da.BlockHeader, blobs []da.BlobReader, proofs SlotProofs, witness state.Witness) (*SlotResult, error) {
	condition, err := r.verifier.VerifyRelevantBlobs(header, blobs, proofs.Inclusion, proofs.Completeness)
	if err != nil {
		return nil, err
	}
	initialRoot, err := r.storage.StateRoot(witness)
	if err != nil {
		return nil, err
	}

	ws := state.NewWorkingSet(r.storage, witness)
	slot, _, err := r.slotNumber.Get(ws)
	if err != nil {
		return nil, err
	}
	selected, err := blobstorage.SelectBlobsForSlot(ws, r.blobStore, r.registry, slot, blobs)
	if err != nil {
		return nil, err
	}

	receipts := make([]Receipt, 0, len(selected))
	for _, blob := range selected {
		receipt := Receipt{
			BlobHash: blob.Hash(),
			Sender:   blob.Sender().Bytes(),
			Status:   StatusApplied,
		}
		ws.Checkpoint()
		if err := r.handler.ApplyBatch(ws, blob); err != nil {
			ws.Revert()
			receipt.Status = StatusFailed
			receipt.Reason = err.Error()
			log.Warn(log.StfModule, "batch failed",
				"slot", slot, "blob", blob.Hash(), "err", err)
		} else {
			ws.Commit()
		}
		receipts = append(receipts, receipt)
	}

	if err := r.slotNumber.Set(ws, slot+1); err != nil {
		return nil, err
	}

	accesses, wit := ws.Freeze()
	finalRoot, err := r.storage.ValidateAndCommit(accesses, wit)
	if err != nil {
		return nil, err
	}
	log.Info(log.StfModule, "slot applied",
		"slot", slot, "blobs", len(selected),
		"initial_root", initialRoot, "final_root", finalRoot)
	return &SlotResult{
		InitialRoot: initialRoot,
		FinalRoot:   finalRoot,
		Receipts:    receipts,
		Witness:     witness,
		Condition:   condition,
	}, nil
}
