package state

// constError is an error type allowing sentinel errors to be declared as
// constants.
type constError string

func (e constError) Error() string {
	return string(e)
}

const (
	// ErrMissingValue is returned when a mandatory entry is absent.
	ErrMissingValue = constError("missing value")

	// ErrCodec is returned when stored value bytes fail to decode under the
	// expected type. This indicates corrupt state and is never defaulted.
	ErrCodec = constError("value bytes failed to decode")

	// ErrProofInvalid is returned when a storage proof or witnessed preimage
	// does not verify against the claimed state root.
	ErrProofInvalid = constError("proof does not verify against state root")

	// ErrWitnessExhausted is returned when guest replay requests more witness
	// entries than were recorded. Fatal: the guest and the recording prover
	// disagree about what code ran.
	ErrWitnessExhausted = constError("witness exhausted during replay")

	// ErrKeyMismatch is returned when a proof's key does not match the
	// expected (prefix, key) encoding, even if the proof itself verifies.
	ErrKeyMismatch = constError("proof key does not match expected storage key")

	// ErrReadConflict is returned when a recorded first-read disagrees with
	// a previously committed view of the same key.
	ErrReadConflict = constError("conflicting reads for the same key")

	// ErrMissingNode is returned when the backing store lacks a node or value
	// preimage referenced by the tree. This indicates local database
	// corruption.
	ErrMissingNode = constError("missing tree node in backing store")
)
