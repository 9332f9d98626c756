package state

import (
	"encoding/hex"
	"unicode/utf8"
)

// A Prefix is prepended to each key before insertion and retrieval from the
// storage. All the container types in this package are backed by the same
// storage instance, so insertions of the same key into two different state
// maps would collide. Every container is therefore instantiated with a unique
// prefix prepended to each of its keys; constructing two containers over the
// same store with equal prefixes is a caller bug.
type Prefix struct {
	prefix []byte
}

// NewPrefix creates a prefix from a name. Module containers conventionally
// use "module/container" names.
func NewPrefix(name string) Prefix {
	return Prefix{prefix: []byte(name)}
}

// PrefixFromBytes creates a prefix from raw bytes.
func PrefixFromBytes(b []byte) Prefix {
	return Prefix{prefix: b}
}

// Bytes returns the raw prefix bytes.
func (p Prefix) Bytes() []byte {
	return p.prefix
}

func (p Prefix) Len() int {
	return len(p.prefix)
}

func (p Prefix) IsEmpty() bool {
	return len(p.prefix) == 0
}

func (p Prefix) String() string {
	if utf8.Valid(p.prefix) {
		return string(p.prefix)
	}
	return "0x" + hex.EncodeToString(p.prefix)
}
