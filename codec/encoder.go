package codec

import (
	"encoding/binary"
	"io"
)

// Encoder writes deterministically encoded values to an io.Writer.
//
// Integers are little-endian fixed width, lengths are unsigned varints, and
// byte strings are length-prefixed. The encoding is self-delimiting: no two
// distinct value sequences share an encoding prefix.
type Encoder struct {
	w   io.Writer
	err error
}

// NewEncoder creates a new encoder with the given writer.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

// Err returns the first error encountered while encoding, if any.
func (e *Encoder) Err() error {
	return e.err
}

func (e *Encoder) write(b []byte) {
	if e.err != nil {
		return
	}
	_, e.err = e.w.Write(b)
}

// EncodeCompact writes an unsigned varint.
func (e *Encoder) EncodeCompact(v uint64) {
	var buf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(buf[:], v)
	e.write(buf[:n])
}

// EncodeUint64 writes a fixed-width little-endian uint64.
func (e *Encoder) EncodeUint64(v uint64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	e.write(buf[:])
}

// EncodeUint32 writes a fixed-width little-endian uint32.
func (e *Encoder) EncodeUint32(v uint32) {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	e.write(buf[:])
}

// EncodeByte writes a single byte.
func (e *Encoder) EncodeByte(v byte) {
	e.write([]byte{v})
}

// EncodeBool writes a bool as a single 0/1 byte.
func (e *Encoder) EncodeBool(v bool) {
	if v {
		e.write([]byte{1})
	} else {
		e.write([]byte{0})
	}
}

// EncodeBytes writes a compact length prefix followed by the raw bytes.
func (e *Encoder) EncodeBytes(b []byte) {
	e.EncodeCompact(uint64(len(b)))
	e.write(b)
}

// EncodeString writes a string as length-prefixed bytes.
func (e *Encoder) EncodeString(s string) {
	e.EncodeBytes([]byte(s))
}

// EncodeOption writes a presence byte, then the value bytes when present.
func (e *Encoder) EncodeOption(b []byte, present bool) {
	if !present {
		e.write([]byte{0})
		return
	}
	e.write([]byte{1})
	e.EncodeBytes(b)
}

// EncodeRaw writes bytes with no length prefix. The caller is responsible
// for the sequence staying self-delimiting (fixed-width fields only).
func (e *Encoder) EncodeRaw(b []byte) {
	e.write(b)
}
