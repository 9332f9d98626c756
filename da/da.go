package da

import (
	"io"

	"github.com/availproject/sovereign-sdk/common"
	"github.com/availproject/sovereign-sdk/zk"
)

// Address identifies a sender on the data availability layer.
type Address interface {
	Bytes() []byte
	String() string
}

// BlockHeader is the subset of a data availability block header the rollup
// cares about: its own hash and its parent link.
type BlockHeader interface {
	PrevHash() common.Hash
	Hash() common.Hash
}

// BlobReader is one blob posted to the data availability layer. Data
// returns a stateful reader; bytes consumed through it are retained in its
// accumulator, so partial reads survive a blob being carried across slots.
type BlobReader interface {
	Sender() Address
	Hash() common.Hash
	Data() *CountedBufReader
}

// InclusionProof and CompletenessProof are opaque to the rollup core. The
// data availability adapter defines their encodings; the core only carries
// them to its Verifier.
type (
	InclusionProof    []byte
	CompletenessProof []byte
)

// Verifier checks that a list of blobs is exactly the relevant subset of a
// data availability block, yielding the validity condition a proof of that
// slot must carry. The inclusion proof ties each blob to the block; the
// completeness proof shows no relevant blob was withheld.
type Verifier interface {
	VerifyRelevantBlobs(header BlockHeader, blobs []BlobReader, inclusion InclusionProof, completeness CompletenessProof) (zk.ValidityCondition, error)
}

// CountedBufReader reads a blob's payload while accumulating every byte it
// has handed out. The accumulator is the prefix of the payload proven to
// have been seen, which is what gets persisted when a partially-read blob
// is deferred.
type CountedBufReader struct {
	inner     io.Reader
	acc       []byte
	totalLen  int
	completed bool
}

// NewCountedBufReader wraps a payload reader of known total length.
func NewCountedBufReader(inner io.Reader, totalLen int) *CountedBufReader {
	return &CountedBufReader{inner: inner, totalLen: totalLen, completed: totalLen == 0}
}

// Read consumes payload bytes, retaining them in the accumulator. Once the
// payload is exhausted it reports io.EOF forever.
func (c *CountedBufReader) Read(p []byte) (int, error) {
	if c.completed {
		return 0, io.EOF
	}
	n, err := c.inner.Read(p)
	if n > 0 {
		c.acc = append(c.acc, p[:n]...)
		if len(c.acc) >= c.totalLen {
			c.completed = true
		}
	}
	if err == io.EOF {
		c.completed = true
		if n > 0 {
			err = nil
		}
	}
	return n, err
}

// Advance consumes up to n further payload bytes into the accumulator.
func (c *CountedBufReader) Advance(n int) error {
	if n <= 0 || c.completed {
		return nil
	}
	buf := make([]byte, n)
	_, err := io.ReadFull(c, buf)
	if err == io.ErrUnexpectedEOF || err == io.EOF {
		err = nil
	}
	return err
}

// ExhaustAll consumes the rest of the payload into the accumulator.
func (c *CountedBufReader) ExhaustAll() error {
	_, err := io.Copy(io.Discard, c)
	return err
}

// Counter returns how many payload bytes have been consumed so far.
func (c *CountedBufReader) Counter() int {
	return len(c.acc)
}

// Accumulator returns the consumed prefix of the payload.
func (c *CountedBufReader) Accumulator() []byte {
	return c.acc
}

// Completed reports whether the whole payload has been consumed.
func (c *CountedBufReader) Completed() bool {
	return c.completed
}

// TotalLen returns the full payload length.
func (c *CountedBufReader) TotalLen() int {
	return c.totalLen
}
