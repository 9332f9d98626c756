package da

import (
	"bytes"
	"encoding/hex"
	"fmt"

	"github.com/availproject/sovereign-sdk/common"
	"github.com/availproject/sovereign-sdk/zk"
)

// MockAddress is a fixed-width sender address for tests and the demo chain.
type MockAddress [32]byte

// NewMockAddress derives a deterministic address from a seed byte.
func NewMockAddress(seed byte) MockAddress {
	var a MockAddress
	for i := range a {
		a[i] = seed
	}
	return a
}

func MockAddressFromBytes(b []byte) (MockAddress, error) {
	var a MockAddress
	if len(b) != len(a) {
		return a, fmt.Errorf("mock address must be %d bytes, got %d", len(a), len(b))
	}
	copy(a[:], b)
	return a, nil
}

func (a MockAddress) Bytes() []byte {
	return a[:]
}

func (a MockAddress) String() string {
	return hex.EncodeToString(a[:])
}

// MockBlob is an in-memory blob whose hash commits to its payload.
type MockBlob struct {
	sender MockAddress
	hash   common.Hash
	data   *CountedBufReader
}

// NewMockBlob builds a blob over payload, hashing it for the commitment.
func NewMockBlob(sender MockAddress, payload []byte) *MockBlob {
	return &MockBlob{
		sender: sender,
		hash:   common.Blake2Hash(payload),
		data:   NewCountedBufReader(bytes.NewReader(payload), len(payload)),
	}
}

func (b *MockBlob) Sender() Address {
	return b.sender
}

func (b *MockBlob) Hash() common.Hash {
	return b.hash
}

func (b *MockBlob) Data() *CountedBufReader {
	return b.data
}

// MockBlockHeader chains blocks by hashing the parent hash with the slot
// number.
type MockBlockHeader struct {
	prevHash common.Hash
	hash     common.Hash
	Slot     uint64
}

// NewMockBlockHeader derives the header for slot building on prevHash.
func NewMockBlockHeader(prevHash common.Hash, slot uint64) *MockBlockHeader {
	material := append(prevHash.Bytes(), common.Uint64ToBytes(slot)...)
	return &MockBlockHeader{
		prevHash: prevHash,
		hash:     common.Blake2Hash(material),
		Slot:     slot,
	}
}

func (h *MockBlockHeader) PrevHash() common.Hash {
	return h.prevHash
}

func (h *MockBlockHeader) Hash() common.Hash {
	return h.hash
}

// MockDaVerifier accepts any blob list and derives the validity condition
// from the header chain link.
type MockDaVerifier struct{}

func (MockDaVerifier) VerifyRelevantBlobs(header BlockHeader, _ []BlobReader, _ InclusionProof, _ CompletenessProof) (zk.ValidityCondition, error) {
	return zk.ValidityCondition{
		PrevHash:  header.PrevHash(),
		BlockHash: header.Hash(),
	}, nil
}
