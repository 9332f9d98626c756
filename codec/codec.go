package codec

import (
	"bytes"
	"fmt"
)

// Marshaler is the interface for custom binary marshalling for a given type.
type Marshaler interface {
	MarshalBinary() ([]byte, error)
}

// Unmarshaler is the interface for custom binary unmarshalling for a given type.
type Unmarshaler interface {
	UnmarshalBinary(data []byte) error
}

// Encode serializes the given object using the codec rules.
func Encode(obj Marshaler) ([]byte, error) {
	b, err := obj.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("encoding failed: %w", err)
	}
	return b, nil
}

// Decode deserializes the given byte slice into the given object.
func Decode(inp []byte, obj Unmarshaler) error {
	if err := obj.UnmarshalBinary(inp); err != nil {
		return fmt.Errorf("decoding failed: %w", err)
	}
	return nil
}

// MustMarshal runs obj.MarshalBinary and panics on error.
func MustMarshal(obj Marshaler) []byte {
	b, err := obj.MarshalBinary()
	if err != nil {
		panic(err)
	}
	return b
}

// NewEncoderBuffer returns an encoder writing into a fresh buffer along with
// the buffer itself.
func NewEncoderBuffer() (*Encoder, *bytes.Buffer) {
	buffer := bytes.NewBuffer(nil)
	return NewEncoder(buffer), buffer
}
