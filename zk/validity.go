package zk

import (
	"bytes"
	"fmt"

	"github.com/availproject/sovereign-sdk/codec"
	"github.com/availproject/sovereign-sdk/common"
)

// ErrConditionMismatch is returned when two validity conditions do not
// chain: the second condition's previous hash must equal the first
// condition's block hash.
const ErrConditionMismatch = constError("validity conditions do not chain")

type constError string

func (e constError) Error() string { return string(e) }

// ValidityCondition is the outstanding claim a state transition makes about
// its data availability layer: that the block with hash BlockHash extends
// the block with hash PrevHash. Conditions from consecutive slots combine
// into a single chained claim.
type ValidityCondition struct {
	PrevHash  common.Hash
	BlockHash common.Hash
}

// Combine chains two consecutive conditions into one covering both slots.
func (c ValidityCondition) Combine(next ValidityCondition) (ValidityCondition, error) {
	if next.PrevHash != c.BlockHash {
		return ValidityCondition{}, fmt.Errorf("%w: have %s, next builds on %s",
			ErrConditionMismatch, c.BlockHash, next.PrevHash)
	}
	return ValidityCondition{PrevHash: c.PrevHash, BlockHash: next.BlockHash}, nil
}

func (c ValidityCondition) MarshalBinary() ([]byte, error) {
	enc, buf := codec.NewEncoderBuffer()
	enc.EncodeRaw(c.PrevHash.Bytes())
	enc.EncodeRaw(c.BlockHash.Bytes())
	if err := enc.Err(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (c *ValidityCondition) UnmarshalBinary(data []byte) error {
	dec := codec.NewDecoder(bytes.NewReader(data))
	prev, err := dec.DecodeRaw(common.HashLength)
	if err != nil {
		return err
	}
	block, err := dec.DecodeRaw(common.HashLength)
	if err != nil {
		return err
	}
	c.PrevHash = common.BytesToHash(prev)
	c.BlockHash = common.BytesToHash(block)
	return nil
}

// ConditionChecker decides whether a validity condition holds. A real
// deployment backs this with a light client of the data availability layer.
type ConditionChecker interface {
	CheckCondition(condition ValidityCondition) error
}
