package sequencer

import (
	"bytes"
	"fmt"

	"github.com/holiman/uint256"

	"github.com/availproject/sovereign-sdk/codec"
	"github.com/availproject/sovereign-sdk/log"
	"github.com/availproject/sovereign-sdk/state"
)

const (
	registeredPrefix = "sequencer/registered"
	preferredPrefix  = "sequencer/preferred"
)

// ErrNotRegistered is returned when an operation names a sequencer with no
// registry entry.
const ErrNotRegistered = constError("sequencer is not registered")

type constError string

func (e constError) Error() string { return string(e) }

// Entry is a registered sequencer's record: the bond it locked up when
// registering.
type Entry struct {
	Bond *uint256.Int
}

func (e *Entry) MarshalBinary() ([]byte, error) {
	enc, buf := codec.NewEncoderBuffer()
	enc.EncodeBytes(e.Bond.Bytes())
	if err := enc.Err(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (e *Entry) UnmarshalBinary(data []byte) error {
	dec := codec.NewDecoder(bytes.NewReader(data))
	bond, err := dec.DecodeBytes()
	if err != nil {
		return err
	}
	e.Bond = new(uint256.Int).SetBytes(bond)
	return nil
}

// Registry tracks which data availability addresses may post batches, and
// optionally designates one of them as preferred. The preferred sequencer's
// batches execute in the slot they land in; everyone else's are deferred.
type Registry struct {
	registered state.StateMap[[]byte, Entry]
	preferred  state.StateValue[[]byte]
}

// NewRegistry builds a registry over its fixed state prefixes.
func NewRegistry() *Registry {
	return &Registry{
		registered: state.NewStateMap[[]byte, Entry](
			state.NewPrefix(registeredPrefix),
			codec.BytesCodec{},
			codec.BinCodec[Entry, *Entry]{},
		),
		preferred: state.NewStateValue[[]byte](
			state.NewPrefix(preferredPrefix),
			codec.BytesCodec{},
		),
	}
}

// GenesisSequencer is one initial registry entry.
type GenesisSequencer struct {
	Address []byte
	Bond    *uint256.Int
}

// GenesisConfig seeds the registry at chain start.
type GenesisConfig struct {
	Sequencers []GenesisSequencer
	// Preferred, when set, must match one of the Sequencers addresses.
	Preferred []byte
}

// Genesis writes the initial registry state.
func (r *Registry) Genesis(ws *state.WorkingSet, cfg GenesisConfig) error {
	for _, s := range cfg.Sequencers {
		if err := r.Register(ws, s.Address, s.Bond); err != nil {
			return err
		}
	}
	if len(cfg.Preferred) > 0 {
		registered, err := r.IsRegistered(ws, cfg.Preferred)
		if err != nil {
			return err
		}
		if !registered {
			return fmt.Errorf("%w: preferred sequencer %x", ErrNotRegistered, cfg.Preferred)
		}
		if err := r.preferred.Set(ws, cfg.Preferred); err != nil {
			return err
		}
	}
	return nil
}

// Register adds (or re-bonds) a sequencer.
func (r *Registry) Register(ws *state.WorkingSet, addr []byte, bond *uint256.Int) error {
	if bond == nil {
		bond = uint256.NewInt(0)
	}
	log.Debug(log.SeqModule, "sequencer registered", "addr", fmt.Sprintf("%x", addr), "bond", bond)
	return r.registered.Set(ws, addr, Entry{Bond: bond})
}

// Exit removes a sequencer, returning its entry so the caller can refund
// the bond. If the departing sequencer was preferred, the preferred slot is
// cleared.
func (r *Registry) Exit(ws *state.WorkingSet, addr []byte) (Entry, error) {
	entry, found, err := r.registered.Remove(ws, addr)
	if err != nil {
		return Entry{}, err
	}
	if !found {
		return Entry{}, fmt.Errorf("%w: %x", ErrNotRegistered, addr)
	}
	preferred, hasPreferred, err := r.preferred.Get(ws)
	if err != nil {
		return Entry{}, err
	}
	if hasPreferred && bytes.Equal(preferred, addr) {
		r.preferred.Delete(ws)
	}
	log.Debug(log.SeqModule, "sequencer exited", "addr", fmt.Sprintf("%x", addr))
	return entry, nil
}

// IsRegistered reports whether addr has a registry entry.
func (r *Registry) IsRegistered(ws *state.WorkingSet, addr []byte) (bool, error) {
	_, found, err := r.registered.Get(ws, addr)
	return found, err
}

// Entry returns addr's registry record.
func (r *Registry) Entry(ws *state.WorkingSet, addr []byte) (Entry, bool, error) {
	return r.registered.Get(ws, addr)
}

// Preferred returns the preferred sequencer's address, if one is set.
func (r *Registry) Preferred(ws *state.WorkingSet) ([]byte, bool, error) {
	return r.preferred.Get(ws)
}

// SetPreferred designates an already-registered sequencer as preferred.
func (r *Registry) SetPreferred(ws *state.WorkingSet, addr []byte) error {
	registered, err := r.IsRegistered(ws, addr)
	if err != nil {
		return err
	}
	if !registered {
		return fmt.Errorf("%w: %x", ErrNotRegistered, addr)
	}
	return r.preferred.Set(ws, addr)
}
