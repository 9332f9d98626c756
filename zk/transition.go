package zk

import (
	"bytes"

	"github.com/availproject/sovereign-sdk/codec"
	"github.com/availproject/sovereign-sdk/common"
)

// StateTransition is the public claim a proven slot makes: executing the
// slot with hash SlotHash on top of InitialRoot yields FinalRoot, provided
// Condition holds on the data availability layer.
type StateTransition struct {
	InitialRoot common.Hash
	FinalRoot   common.Hash
	SlotHash    common.Hash
	Condition   ValidityCondition
}

func (t *StateTransition) MarshalBinary() ([]byte, error) {
	condBytes, err := t.Condition.MarshalBinary()
	if err != nil {
		return nil, err
	}
	enc, buf := codec.NewEncoderBuffer()
	enc.EncodeRaw(t.InitialRoot.Bytes())
	enc.EncodeRaw(t.FinalRoot.Bytes())
	enc.EncodeRaw(t.SlotHash.Bytes())
	enc.EncodeRaw(condBytes)
	if err := enc.Err(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (t *StateTransition) UnmarshalBinary(data []byte) error {
	dec := codec.NewDecoder(bytes.NewReader(data))
	initial, err := dec.DecodeRaw(common.HashLength)
	if err != nil {
		return err
	}
	final, err := dec.DecodeRaw(common.HashLength)
	if err != nil {
		return err
	}
	slot, err := dec.DecodeRaw(common.HashLength)
	if err != nil {
		return err
	}
	cond, err := dec.DecodeRaw(2 * common.HashLength)
	if err != nil {
		return err
	}
	t.InitialRoot = common.BytesToHash(initial)
	t.FinalRoot = common.BytesToHash(final)
	t.SlotHash = common.BytesToHash(slot)
	return t.Condition.UnmarshalBinary(cond)
}
