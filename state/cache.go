package state

import (
	"bytes"
	"fmt"
)

// access records what a transaction observed and/or wrote for one key:
// the first read (if any) and the last write (if any). Intermediate values
// are irrelevant to verification and are not kept.
type access struct {
	read      []byte
	readFound bool
	hasRead   bool

	write    []byte // nil with hasWrite means delete
	hasWrite bool
}

// Read is one entry of a verification trace: the first value observed for a
// key during execution.
type Read struct {
	Key   StorageKey
	Value []byte
	Found bool
}

// Write is one entry of a mutation set: the final value written to a key,
// nil meaning deletion.
type Write struct {
	Key   StorageKey
	Value []byte
}

// OrderedReadsAndWrites is a cache log flattened for state update
// computation. Reads and Writes each preserve first-touch order, so both
// execution modes traverse them identically.
type OrderedReadsAndWrites struct {
	Reads  []Read
	Writes []Write
}

// CacheLog tracks the first read and last write per key across a batch.
// A read served from a prior write in the same log is not recorded as a
// read, since it needs no verification against committed state.
type CacheLog struct {
	entries map[string]*access
	order   []StorageKey
}

// NewCacheLog returns an empty cache log.
func NewCacheLog() *CacheLog {
	return &CacheLog{entries: make(map[string]*access)}
}

func (c *CacheLog) entry(key StorageKey) *access {
	a, ok := c.entries[string(key.Bytes())]
	if !ok {
		a = &access{}
		c.entries[string(key.Bytes())] = a
		c.order = append(c.order, key)
	}
	return a
}

// TryGet returns the cached value for key if the log already knows it,
// either from a write or an earlier read.
func (c *CacheLog) TryGet(key StorageKey) (value []byte, found bool, known bool) {
	a, ok := c.entries[string(key.Bytes())]
	if !ok {
		return nil, false, false
	}
	if a.hasWrite {
		return a.write, a.write != nil, true
	}
	if a.hasRead {
		return a.read, a.readFound, true
	}
	return nil, false, false
}

// AddRead records the value fetched from underlying storage for key. A
// second read of the same key must observe the same value; a mismatch means
// the underlying storage changed mid-batch and is reported as
// ErrReadConflict.
func (c *CacheLog) AddRead(key StorageKey, value []byte, found bool) error {
	a := c.entry(key)
	if a.hasRead {
		if a.readFound != found || !bytes.Equal(a.read, value) {
			return fmt.Errorf("%w: key %s", ErrReadConflict, key)
		}
		return nil
	}
	a.hasRead = true
	a.read = value
	a.readFound = found
	return nil
}

// AddWrite records a write of key, with nil meaning deletion. It returns the
// entry's previous write state so callers can journal it for revert.
func (c *CacheLog) AddWrite(key StorageKey, value []byte) (prev []byte, hadWrite bool) {
	a := c.entry(key)
	prev, hadWrite = a.write, a.hasWrite
	a.hasWrite = true
	a.write = value
	return prev, hadWrite
}

// setWrite restores a journaled write state; used by revert.
func (c *CacheLog) setWrite(key StorageKey, value []byte, hasWrite bool) {
	a := c.entry(key)
	a.hasWrite = hasWrite
	a.write = value
}

// OrderedReadsAndWrites flattens the log. Both slices follow first-touch
// key order.
func (c *CacheLog) OrderedReadsAndWrites() *OrderedReadsAndWrites {
	out := &OrderedReadsAndWrites{}
	for _, key := range c.order {
		a := c.entries[string(key.Bytes())]
		if a.hasRead {
			out.Reads = append(out.Reads, Read{Key: key, Value: a.read, Found: a.readFound})
		}
		if a.hasWrite {
			out.Writes = append(out.Writes, Write{Key: key, Value: a.write})
		}
	}
	return out
}

// MergeInto replays this log's reads and writes into parent, preserving
// first-touch order. Reads that parent already answers are checked for
// consistency rather than re-recorded.
func (c *CacheLog) MergeInto(parent *CacheLog) error {
	for _, key := range c.order {
		a := c.entries[string(key.Bytes())]
		if a.hasRead {
			if _, _, known := parent.TryGet(key); !known {
				if err := parent.AddRead(key, a.read, a.readFound); err != nil {
					return err
				}
			}
		}
		if a.hasWrite {
			parent.AddWrite(key, a.write)
		}
	}
	return nil
}
