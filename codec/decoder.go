package codec

import (
	"encoding/binary"
	"fmt"
	"io"
)

// maxDecodeLen bounds length prefixes so a corrupt input cannot force a
// giant allocation.
const maxDecodeLen = 1 << 30

// Decoder reads values encoded by Encoder from an io.Reader.
type Decoder struct {
	r io.Reader
}

// NewDecoder creates a new decoder with the given reader.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: r}
}

func (d *Decoder) readFull(buf []byte) error {
	_, err := io.ReadFull(d.r, buf)
	if err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}

func (d *Decoder) readByte() (byte, error) {
	var buf [1]byte
	if err := d.readFull(buf[:]); err != nil {
		return 0, err
	}
	return buf[0], nil
}

// DecodeCompact reads an unsigned varint.
func (d *Decoder) DecodeCompact() (uint64, error) {
	v, err := binary.ReadUvarint(byteReaderFunc(d.readByte))
	if err != nil {
		return 0, fmt.Errorf("decode compact: %w", err)
	}
	return v, nil
}

// DecodeUint64 reads a fixed-width little-endian uint64.
func (d *Decoder) DecodeUint64() (uint64, error) {
	var buf [8]byte
	if err := d.readFull(buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

// DecodeUint32 reads a fixed-width little-endian uint32.
func (d *Decoder) DecodeUint32() (uint32, error) {
	var buf [4]byte
	if err := d.readFull(buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

// DecodeByte reads a single byte.
func (d *Decoder) DecodeByte() (byte, error) {
	return d.readByte()
}

// DecodeBool reads a single 0/1 byte.
func (d *Decoder) DecodeBool() (bool, error) {
	b, err := d.readByte()
	if err != nil {
		return false, err
	}
	switch b {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, fmt.Errorf("decode bool: invalid byte 0x%02x", b)
	}
}

// DecodeBytes reads a compact length prefix followed by that many bytes.
func (d *Decoder) DecodeBytes() ([]byte, error) {
	n, err := d.DecodeCompact()
	if err != nil {
		return nil, err
	}
	if n > maxDecodeLen {
		return nil, fmt.Errorf("decode bytes: length %d exceeds limit", n)
	}
	buf := make([]byte, n)
	if err := d.readFull(buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// DecodeString reads a length-prefixed string.
func (d *Decoder) DecodeString() (string, error) {
	b, err := d.DecodeBytes()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// DecodeOption reads a presence byte followed by the value bytes when present.
func (d *Decoder) DecodeOption() ([]byte, bool, error) {
	present, err := d.DecodeBool()
	if err != nil {
		return nil, false, err
	}
	if !present {
		return nil, false, nil
	}
	b, err := d.DecodeBytes()
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

// DecodeRaw reads exactly n bytes with no length prefix.
func (d *Decoder) DecodeRaw(n int) ([]byte, error) {
	buf := make([]byte, n)
	if err := d.readFull(buf); err != nil {
		return nil, err
	}
	return buf, nil
}

type byteReaderFunc func() (byte, error)

func (f byteReaderFunc) ReadByte() (byte, error) {
	return f()
}
