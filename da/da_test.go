package da

import (
	"bytes"
	"io"
	"testing"

	"github.com/availproject/sovereign-sdk/common"
)

func TestCountedBufReader_AccumulatesEverythingRead(t *testing.T) {
	payload := []byte("hello world, this is a blob payload")
	r := NewCountedBufReader(bytes.NewReader(payload), len(payload))

	buf := make([]byte, 5)
	n, err := r.Read(buf)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if n != 5 {
		t.Fatalf("read %d bytes", n)
	}
	if r.Counter() != 5 {
		t.Errorf("counter = %d, want 5", r.Counter())
	}
	if !bytes.Equal(r.Accumulator(), payload[:5]) {
		t.Errorf("accumulator = %q", r.Accumulator())
	}
	if r.Completed() {
		t.Error("reader completed after a partial read")
	}

	if err := r.ExhaustAll(); err != nil {
		t.Fatalf("ExhaustAll failed: %v", err)
	}
	if !r.Completed() {
		t.Error("reader not completed after exhausting")
	}
	if !bytes.Equal(r.Accumulator(), payload) {
		t.Error("accumulator does not hold the full payload")
	}
	if r.Counter() != r.TotalLen() {
		t.Errorf("counter = %d, total = %d", r.Counter(), r.TotalLen())
	}
}

func TestCountedBufReader_EOFAfterCompletion(t *testing.T) {
	payload := []byte("xy")
	r := NewCountedBufReader(bytes.NewReader(payload), len(payload))
	if err := r.ExhaustAll(); err != nil {
		t.Fatal(err)
	}
	n, err := r.Read(make([]byte, 4))
	if n != 0 || err != io.EOF {
		t.Errorf("read after completion: n=%d err=%v", n, err)
	}
}

func TestCountedBufReader_EmptyPayload(t *testing.T) {
	r := NewCountedBufReader(bytes.NewReader(nil), 0)
	if !r.Completed() {
		t.Error("empty payload should start completed")
	}
	if _, err := r.Read(make([]byte, 1)); err != io.EOF {
		t.Errorf("got %v, want io.EOF", err)
	}
}

func TestCountedBufReader_Advance(t *testing.T) {
	payload := []byte("0123456789")
	r := NewCountedBufReader(bytes.NewReader(payload), len(payload))

	if err := r.Advance(4); err != nil {
		t.Fatal(err)
	}
	if r.Counter() != 4 {
		t.Errorf("counter = %d, want 4", r.Counter())
	}

	// Advancing past the end just completes the reader.
	if err := r.Advance(100); err != nil {
		t.Fatal(err)
	}
	if !r.Completed() || r.Counter() != len(payload) {
		t.Errorf("completed=%v counter=%d", r.Completed(), r.Counter())
	}
}

func TestMockBlob_HashCommitsToPayload(t *testing.T) {
	a := NewMockBlob(NewMockAddress(1), []byte("payload"))
	b := NewMockBlob(NewMockAddress(2), []byte("payload"))
	c := NewMockBlob(NewMockAddress(1), []byte("different"))

	if a.Hash() != b.Hash() {
		t.Error("same payload must hash the same")
	}
	if a.Hash() == c.Hash() {
		t.Error("different payloads must hash differently")
	}
}

func TestMockBlockHeader_Chains(t *testing.T) {
	genesis := NewMockBlockHeader(common.Hash{}, 0)
	next := NewMockBlockHeader(genesis.Hash(), 1)

	if next.PrevHash() != genesis.Hash() {
		t.Error("header does not link to its parent")
	}

	cond, err := MockDaVerifier{}.VerifyRelevantBlobs(next, nil, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if cond.PrevHash != genesis.Hash() || cond.BlockHash != next.Hash() {
		t.Error("condition does not reflect the header link")
	}
}
