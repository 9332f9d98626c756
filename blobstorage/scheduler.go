package blobstorage

import (
	"bytes"

	"github.com/availproject/sovereign-sdk/da"
	"github.com/availproject/sovereign-sdk/log"
	"github.com/availproject/sovereign-sdk/sequencer"
	"github.com/availproject/sovereign-sdk/state"
)

// SelectBlobsForSlot decides which blobs execute in the current slot and
// which get deferred.
//
// With a preferred sequencer set, the preferred sequencer's current blobs
// execute first, followed by every deferred blob that has come due; other
// registered senders' current blobs are deferred by DeferDelay slots.
// Without one, due deferred blobs execute first, then all current blobs
// from registered senders. Blobs from unregistered senders are dropped in
// either mode.
//
// The returned order is the execution order and must be deterministic: it
// depends only on state and on the order blobs appear in the slot.
func SelectBlobsForSlot(
	ws *state.WorkingSet,
	bs *BlobStorage,
	registry *sequencer.Registry,
	slot uint64,
	currentBlobs []da.BlobReader,
) ([]da.BlobReader, error) {
	preferred, hasPreferred, err := registry.Preferred(ws)
	if err != nil {
		return nil, err
	}

	var fromPreferred, fromRegistered []da.BlobReader
	for _, blob := range currentBlobs {
		sender := blob.Sender().Bytes()
		registered, err := registry.IsRegistered(ws, sender)
		if err != nil {
			return nil, err
		}
		if !registered {
			log.Warn(log.SchedModule, "dropping blob from unregistered sender",
				"slot", slot, "sender", blob.Sender(), "blob", blob.Hash())
			continue
		}
		if hasPreferred && bytes.Equal(sender, preferred) {
			fromPreferred = append(fromPreferred, blob)
		} else {
			fromRegistered = append(fromRegistered, blob)
		}
	}

	due, err := bs.TakeDue(ws, slot)
	if err != nil {
		return nil, err
	}

	var selected []da.BlobReader
	if hasPreferred {
		selected = append(selected, fromPreferred...)
		for _, b := range due {
			selected = append(selected, b)
		}
		toDefer := make([]*StoredBlob, 0, len(fromRegistered))
		for _, blob := range fromRegistered {
			stored, err := NewStoredBlob(blob)
			if err != nil {
				return nil, err
			}
			toDefer = append(toDefer, stored)
		}
		if err := bs.Defer(ws, slot+DeferDelay, toDefer); err != nil {
			return nil, err
		}
		log.Debug(log.SchedModule, "blobs selected",
			"slot", slot, "preferred", len(fromPreferred), "due", len(due), "deferred", len(toDefer))
	} else {
		for _, b := range due {
			selected = append(selected, b)
		}
		selected = append(selected, fromRegistered...)
		log.Debug(log.SchedModule, "blobs selected",
			"slot", slot, "due", len(due), "current", len(fromRegistered))
	}
	return selected, nil
}
