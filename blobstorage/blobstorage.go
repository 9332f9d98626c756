package blobstorage

import (
	"bytes"
	"encoding/hex"

	"github.com/availproject/sovereign-sdk/codec"
	"github.com/availproject/sovereign-sdk/common"
	"github.com/availproject/sovereign-sdk/da"
	"github.com/availproject/sovereign-sdk/state"
)

const (
	deferredPrefix  = "blob_storage/deferred"
	drainFromPrefix = "blob_storage/drain_from"
)

// DeferDelay is how many slots a non-preferred blob waits before executing.
const DeferDelay = 1

// rawAddress adapts stored sender bytes back to a da.Address.
type rawAddress []byte

func (a rawAddress) Bytes() []byte {
	return []byte(a)
}

func (a rawAddress) String() string {
	return hex.EncodeToString(a)
}

// StoredBlob is a blob persisted for execution in a later slot. The full
// payload is retained, so the reader handed back on replay behaves exactly
// like a fresh one from the data availability layer.
type StoredBlob struct {
	SenderRaw []byte
	BlobHash  common.Hash
	Payload   []byte

	reader *da.CountedBufReader
}

// NewStoredBlob captures a live blob for deferral, exhausting its reader so
// the accumulated payload is complete.
func NewStoredBlob(blob da.BlobReader) (*StoredBlob, error) {
	if err := blob.Data().ExhaustAll(); err != nil {
		return nil, err
	}
	return &StoredBlob{
		SenderRaw: blob.Sender().Bytes(),
		BlobHash:  blob.Hash(),
		Payload:   blob.Data().Accumulator(),
	}, nil
}

func (b *StoredBlob) Sender() da.Address {
	return rawAddress(b.SenderRaw)
}

func (b *StoredBlob) Hash() common.Hash {
	return b.BlobHash
}

func (b *StoredBlob) Data() *da.CountedBufReader {
	if b.reader == nil {
		b.reader = da.NewCountedBufReader(bytes.NewReader(b.Payload), len(b.Payload))
	}
	return b.reader
}

func (b *StoredBlob) encode(enc *codec.Encoder) {
	enc.EncodeBytes(b.SenderRaw)
	enc.EncodeRaw(b.BlobHash.Bytes())
	enc.EncodeBytes(b.Payload)
}

func decodeStoredBlob(dec *codec.Decoder) (*StoredBlob, error) {
	sender, err := dec.DecodeBytes()
	if err != nil {
		return nil, err
	}
	hash, err := dec.DecodeRaw(common.HashLength)
	if err != nil {
		return nil, err
	}
	payload, err := dec.DecodeBytes()
	if err != nil {
		return nil, err
	}
	return &StoredBlob{
		SenderRaw: sender,
		BlobHash:  common.BytesToHash(hash),
		Payload:   payload,
	}, nil
}

// blobListCodec round-trips a slot's deferred blob list.
type blobListCodec struct{}

func (blobListCodec) EncodeValue(blobs []*StoredBlob) ([]byte, error) {
	enc, buf := codec.NewEncoderBuffer()
	enc.EncodeCompact(uint64(len(blobs)))
	for _, b := range blobs {
		b.encode(enc)
	}
	if err := enc.Err(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (blobListCodec) DecodeValue(data []byte) ([]*StoredBlob, error) {
	dec := codec.NewDecoder(bytes.NewReader(data))
	n, err := dec.DecodeCompact()
	if err != nil {
		return nil, err
	}
	blobs := make([]*StoredBlob, 0, n)
	for i := uint64(0); i < n; i++ {
		b, err := decodeStoredBlob(dec)
		if err != nil {
			return nil, err
		}
		blobs = append(blobs, b)
	}
	return blobs, nil
}

// BlobStorage holds blobs deferred for later slots, keyed by the slot they
// become due in. drainFrom tracks the lowest slot that might still hold
// undrained blobs, so a drain never rescans history.
type BlobStorage struct {
	deferred  state.StateMap[uint64, []*StoredBlob]
	drainFrom state.StateValue[uint64]
}

// NewBlobStorage builds the store over its fixed state prefixes.
func NewBlobStorage() *BlobStorage {
	return &BlobStorage{
		deferred: state.NewStateMap[uint64, []*StoredBlob](
			state.NewPrefix(deferredPrefix),
			codec.Uint64Codec{},
			blobListCodec{},
		),
		drainFrom: state.NewStateValue[uint64](
			state.NewPrefix(drainFromPrefix),
			codec.Uint64Codec{},
		),
	}
}

// Defer appends blobs to the list due at slot dueSlot, preserving arrival
// order.
func (bs *BlobStorage) Defer(ws *state.WorkingSet, dueSlot uint64, blobs []*StoredBlob) error {
	if len(blobs) == 0 {
		return nil
	}
	existing, _, err := bs.deferred.Get(ws, dueSlot)
	if err != nil {
		return err
	}
	return bs.deferred.Set(ws, dueSlot, append(existing, blobs...))
}

// TakeDue removes and returns every deferred blob due at or before slot, in
// due-slot order and, within a slot, arrival order.
func (bs *BlobStorage) TakeDue(ws *state.WorkingSet, slot uint64) ([]*StoredBlob, error) {
	from, found, err := bs.drainFrom.Get(ws)
	if err != nil {
		return nil, err
	}
	if !found {
		from = 0
	}
	var due []*StoredBlob
	for s := from; s <= slot; s++ {
		blobs, found, err := bs.deferred.Get(ws, s)
		if err != nil {
			return nil, err
		}
		if found {
			due = append(due, blobs...)
			bs.deferred.Delete(ws, s)
		}
	}
	if err := bs.drainFrom.Set(ws, slot+1); err != nil {
		return nil, err
	}
	return due, nil
}
