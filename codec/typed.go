package codec

import (
	"bytes"
	"fmt"
)

// KeyCodec deterministically encodes typed logical keys into bytes. The
// encoding must be injective: no two distinct keys may share an encoding.
type KeyCodec[K any] interface {
	EncodeKey(key K) []byte
}

// ValueCodec round-trips typed values through bytes.
type ValueCodec[V any] interface {
	EncodeValue(value V) ([]byte, error)
	DecodeValue(data []byte) (V, error)
}

// Uint64Codec encodes uint64 keys and values as fixed-width little-endian.
type Uint64Codec struct{}

func (Uint64Codec) EncodeKey(key uint64) []byte {
	enc, buf := NewEncoderBuffer()
	enc.EncodeUint64(key)
	return buf.Bytes()
}

func (Uint64Codec) EncodeValue(value uint64) ([]byte, error) {
	return Uint64Codec{}.EncodeKey(value), nil
}

func (Uint64Codec) DecodeValue(data []byte) (uint64, error) {
	dec := NewDecoder(bytes.NewReader(data))
	return dec.DecodeUint64()
}

// BytesCodec encodes raw byte keys and values verbatim.
type BytesCodec struct{}

func (BytesCodec) EncodeKey(key []byte) []byte {
	return key
}

func (BytesCodec) EncodeValue(value []byte) ([]byte, error) {
	return value, nil
}

func (BytesCodec) DecodeValue(data []byte) ([]byte, error) {
	return data, nil
}

// StringCodec encodes string keys and values as their UTF-8 bytes.
type StringCodec struct{}

func (StringCodec) EncodeKey(key string) []byte {
	return []byte(key)
}

func (StringCodec) EncodeValue(value string) ([]byte, error) {
	return []byte(value), nil
}

func (StringCodec) DecodeValue(data []byte) (string, error) {
	return string(data), nil
}

// BinCodec adapts types implementing Marshaler/Unmarshaler through pointers.
// T is the value type; *T must implement Unmarshaler.
type BinCodec[T any, PT interface {
	*T
	Unmarshaler
}] struct{}

func (BinCodec[T, PT]) EncodeValue(value T) ([]byte, error) {
	m, ok := any(&value).(Marshaler)
	if !ok {
		return nil, fmt.Errorf("type %T does not implement codec.Marshaler", value)
	}
	return m.MarshalBinary()
}

func (BinCodec[T, PT]) DecodeValue(data []byte) (T, error) {
	var value T
	if err := PT(&value).UnmarshalBinary(data); err != nil {
		return value, err
	}
	return value, nil
}
