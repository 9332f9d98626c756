package state

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/availproject/sovereign-sdk/codec"
	"github.com/availproject/sovereign-sdk/common"
)

func commitKv(t *testing.T, storage *ProverStorage, kvs map[string]string) common.Hash {
	t.Helper()
	ws := NewWorkingSet(storage, NewArrayWitness())
	for k, v := range kvs {
		ws.Set(ck(k), []byte(v))
	}
	accesses, witness := ws.Freeze()
	root, err := storage.ValidateAndCommit(accesses, witness)
	require.NoError(t, err)
	return root
}

func TestProverStorage_CommitAndReadBack(t *testing.T) {
	storage, err := NewProverStorage(Config{})
	require.NoError(t, err)
	defer storage.Close()

	require.True(t, storage.IsEmpty())
	root := commitKv(t, storage, map[string]string{"a": "1", "b": "2"})
	require.False(t, storage.IsEmpty())
	require.Equal(t, root, storage.GetStateRoot())

	ws := NewWorkingSet(storage, NewArrayWitness())
	got, found, err := ws.Get(ck("a"))
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte("1"), got)

	_, found, err = ws.Get(ck("missing"))
	require.NoError(t, err)
	require.False(t, found)
}

func TestProverStorage_RootMatchesAcrossBackends(t *testing.T) {
	// Two stores receiving the same writes in different batch splits must
	// converge on the same root.
	s1, err := NewProverStorage(Config{})
	require.NoError(t, err)
	defer s1.Close()
	s2, err := NewProverStorage(Config{})
	require.NoError(t, err)
	defer s2.Close()

	commitKv(t, s1, map[string]string{"x": "1", "y": "2", "z": "3"})

	commitKv(t, s2, map[string]string{"x": "1"})
	commitKv(t, s2, map[string]string{"y": "2", "z": "3"})

	require.Equal(t, s1.GetStateRoot(), s2.GetStateRoot())
}

func TestProverStorage_DeleteChangesRoot(t *testing.T) {
	storage, err := NewProverStorage(Config{})
	require.NoError(t, err)
	defer storage.Close()

	commitKv(t, storage, map[string]string{"a": "1"})
	rootWithA := storage.GetStateRoot()

	commitKv(t, storage, map[string]string{"a": "1", "b": "2"})

	ws := NewWorkingSet(storage, NewArrayWitness())
	ws.Delete(ck("b"))
	accesses, witness := ws.Freeze()
	root, err := storage.ValidateAndCommit(accesses, witness)
	require.NoError(t, err)
	require.Equal(t, rootWithA, root, "removing b must restore the root that never had it")
}

func TestZkStorage_ReplayAgreesWithNative(t *testing.T) {
	storage, err := NewProverStorage(Config{})
	require.NoError(t, err)
	defer storage.Close()

	prevRoot := commitKv(t, storage, map[string]string{"a": "1", "b": "2"})

	// Native pass: mixed reads and writes, recorded into the witness.
	witness := NewArrayWitness()
	ws := NewWorkingSet(storage, witness)
	got, found, err := ws.Get(ck("a"))
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte("1"), got)
	_, found, err = ws.Get(ck("nope"))
	require.NoError(t, err)
	require.False(t, found)
	ws.Set(ck("a"), []byte("10"))
	ws.Set(ck("c"), []byte("3"))
	ws.Delete(ck("b"))
	accesses, _ := ws.Freeze()
	nativeRoot, err := storage.ValidateAndCommit(accesses, witness)
	require.NoError(t, err)

	// Replay pass: same operations against the witness alone.
	zkStorage := NewZkStorage(prevRoot)
	zws := NewWorkingSet(zkStorage, witness)
	got, found, err = zws.Get(ck("a"))
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte("1"), got)
	_, found, err = zws.Get(ck("nope"))
	require.NoError(t, err)
	require.False(t, found)
	zws.Set(ck("a"), []byte("10"))
	zws.Set(ck("c"), []byte("3"))
	zws.Delete(ck("b"))
	zkAccesses, _ := zws.Freeze()
	zkRoot, err := zkStorage.ValidateAndCommit(zkAccesses, witness)
	require.NoError(t, err)

	require.Equal(t, nativeRoot, zkRoot)
}

func TestZkStorage_TamperedHintRejected(t *testing.T) {
	storage, err := NewProverStorage(Config{})
	require.NoError(t, err)
	defer storage.Close()

	prevRoot := commitKv(t, storage, map[string]string{"a": "1"})

	witness := NewArrayWitness()
	ws := NewWorkingSet(storage, witness)
	_, _, err = ws.Get(ck("a"))
	require.NoError(t, err)
	accesses, _ := ws.Freeze()
	_, err = storage.ValidateAndCommit(accesses, witness)
	require.NoError(t, err)

	// Rebuild the witness with the value hint lying about a's value.
	data, err := witness.MarshalBinary()
	require.NoError(t, err)
	tampered := NewArrayWitness()
	require.NoError(t, tampered.UnmarshalBinary(data))
	forged := NewArrayWitness()
	first, err := tampered.GetHint()
	require.NoError(t, err)
	_ = first
	forged.AddHint(encodeValueHint([]byte("lie"), true))
	for {
		hint, err := tampered.GetHint()
		if err != nil {
			break
		}
		forged.AddHint(hint)
	}

	zkStorage := NewZkStorage(prevRoot)
	zws := NewWorkingSet(zkStorage, forged)
	got, found, err := zws.Get(ck("a"))
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte("lie"), got, "the lie is only caught at commit")

	zkAccesses, _ := zws.Freeze()
	_, err = zkStorage.ValidateAndCommit(zkAccesses, forged)
	require.Error(t, err)
}

func TestZkStorage_WrongPrevRootRejected(t *testing.T) {
	storage, err := NewProverStorage(Config{})
	require.NoError(t, err)
	defer storage.Close()

	commitKv(t, storage, map[string]string{"a": "1"})

	witness := NewArrayWitness()
	ws := NewWorkingSet(storage, witness)
	ws.Set(ck("b"), []byte("2"))
	accesses, _ := ws.Freeze()
	_, err = storage.ValidateAndCommit(accesses, witness)
	require.NoError(t, err)

	var wrong common.Hash
	wrong[0] = 0xDE
	zkStorage := NewZkStorage(wrong)
	zws := NewWorkingSet(zkStorage, witness)
	zws.Set(ck("b"), []byte("2"))
	zkAccesses, _ := zws.Freeze()
	_, err = zkStorage.ValidateAndCommit(zkAccesses, witness)
	require.ErrorIs(t, err, ErrProofInvalid)
}

func TestProverStorage_GetWithProof(t *testing.T) {
	storage, err := NewProverStorage(Config{})
	require.NoError(t, err)
	defer storage.Close()

	root := commitKv(t, storage, map[string]string{"a": "1", "b": "2", "c": "3"})

	proof, err := storage.GetWithProof(ck("b"))
	require.NoError(t, err)
	require.Equal(t, []byte("2"), proof.Value)

	_, value, present, err := storage.OpenProof(root, proof)
	require.NoError(t, err)
	require.True(t, present)
	require.Equal(t, []byte("2"), value)

	// Absence proofs verify too.
	absent, err := storage.GetWithProof(ck("missing"))
	require.NoError(t, err)
	require.Nil(t, absent.Value)
	_, _, present, err = storage.OpenProof(root, absent)
	require.NoError(t, err)
	require.False(t, present)
}

func TestVerifyProof_KeyMismatch(t *testing.T) {
	storage, err := NewProverStorage(Config{})
	require.NoError(t, err)
	defer storage.Close()

	root := commitKv(t, storage, map[string]string{"a": "1", "b": "2"})

	proof, err := storage.GetWithProof(ck("a"))
	require.NoError(t, err)

	value, present, err := VerifyProof(root, proof, ck("a"))
	require.NoError(t, err)
	require.True(t, present)
	require.Equal(t, []byte("1"), value)

	_, _, err = VerifyProof(root, proof, ck("b"))
	require.ErrorIs(t, err, ErrKeyMismatch)
}

func TestStorageProof_MarshalRoundTrip(t *testing.T) {
	storage, err := NewProverStorage(Config{})
	require.NoError(t, err)
	defer storage.Close()

	root := commitKv(t, storage, map[string]string{"a": "1"})

	proof, err := storage.GetWithProof(ck("a"))
	require.NoError(t, err)

	data, err := proof.MarshalBinary()
	require.NoError(t, err)

	var decoded StorageProof
	require.NoError(t, decoded.UnmarshalBinary(data))

	_, value, present, err := storage.OpenProof(root, &decoded)
	require.NoError(t, err)
	require.True(t, present)
	require.Equal(t, []byte("1"), value)
}

func TestStateMap_TypedAccess(t *testing.T) {
	storage, err := NewProverStorage(Config{})
	require.NoError(t, err)
	defer storage.Close()

	balances := NewStateMap[uint64, uint64](NewPrefix("balances"), codec.Uint64Codec{}, codec.Uint64Codec{})
	ws := NewWorkingSet(storage, NewArrayWitness())

	require.NoError(t, balances.Set(ws, 7, 100))
	got, found, err := balances.Get(ws, 7)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, uint64(100), got)

	_, err = balances.GetOrErr(ws, 8)
	require.ErrorIs(t, err, ErrMissingValue)

	removed, found, err := balances.Remove(ws, 7)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, uint64(100), removed)

	_, found, err = balances.Get(ws, 7)
	require.NoError(t, err)
	require.False(t, found)
}

func TestStateMap_VerifyProof(t *testing.T) {
	storage, err := NewProverStorage(Config{})
	require.NoError(t, err)
	defer storage.Close()

	balances := NewStateMap[uint64, uint64](NewPrefix("balances"), codec.Uint64Codec{}, codec.Uint64Codec{})
	ws := NewWorkingSet(storage, NewArrayWitness())
	require.NoError(t, balances.Set(ws, 7, 100))
	accesses, witness := ws.Freeze()
	root, err := storage.ValidateAndCommit(accesses, witness)
	require.NoError(t, err)

	proof, err := storage.GetWithProof(balances.StorageKey(7))
	require.NoError(t, err)

	value, present, err := balances.VerifyProof(root, proof, 7)
	require.NoError(t, err)
	require.True(t, present)
	require.Equal(t, uint64(100), value)

	_, _, err = balances.VerifyProof(root, proof, 8)
	require.ErrorIs(t, err, ErrKeyMismatch)
}

func TestStateValue_Singleton(t *testing.T) {
	storage, err := NewProverStorage(Config{})
	require.NoError(t, err)
	defer storage.Close()

	counter := NewStateValue[uint64](NewPrefix("counter"), codec.Uint64Codec{})
	ws := NewWorkingSet(storage, NewArrayWitness())

	_, found, err := counter.Get(ws)
	require.NoError(t, err)
	require.False(t, found)

	require.NoError(t, counter.Set(ws, 41))
	got, err := counter.GetOrErr(ws)
	require.NoError(t, err)
	require.Equal(t, uint64(41), got)
}

func TestPrefix_DistinctMapsNeverCollide(t *testing.T) {
	a := NewStateMap[string, []byte](NewPrefix("mod_a"), codec.StringCodec{}, codec.BytesCodec{})
	b := NewStateMap[string, []byte](NewPrefix("mod_b"), codec.StringCodec{}, codec.BytesCodec{})

	for _, key := range []string{"", "k", "longer-key"} {
		require.False(t, a.StorageKey(key).Equal(b.StorageKey(key)),
			"prefixes must separate key spaces for %q", key)
	}

	// A prefix ending where another begins still cannot collide, because
	// both components are length-prefixed.
	c := NewStorageKey(NewPrefix("ab"), []byte("c"))
	d := NewStorageKey(NewPrefix("a"), []byte("bc"))
	require.False(t, c.Equal(d))
}

func TestProverStorage_PersistsAcrossReopen(t *testing.T) {
	path := t.TempDir() + "/statedb"

	storage, err := NewProverStorage(Config{Path: path})
	require.NoError(t, err)
	root := commitKv(t, storage, map[string]string{"persisted": "yes"})
	require.NoError(t, storage.Close())

	reopened, err := NewProverStorage(Config{Path: path})
	require.NoError(t, err)
	defer reopened.Close()
	require.Equal(t, root, reopened.GetStateRoot())

	ws := NewWorkingSet(reopened, NewArrayWitness())
	got, found, err := ws.Get(ck("persisted"))
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte("yes"), got)
}

func TestWorkingSet_ReadConflictSurfaces(t *testing.T) {
	// Two working sets over the same store: one commits between the
	// other's reads, changing what the second read observes.
	storage, err := NewProverStorage(Config{})
	require.NoError(t, err)
	defer storage.Close()
	commitKv(t, storage, map[string]string{"k": "old"})

	witness := NewArrayWitness()
	ws := NewWorkingSet(storage, witness)
	_, _, err = ws.Get(ck("k"))
	require.NoError(t, err)

	commitKv(t, storage, map[string]string{"k": "new"})

	// The cache answers the repeat read, so no conflict yet.
	got, _, err := ws.Get(ck("k"))
	require.NoError(t, err)
	require.Equal(t, []byte("old"), got)

	// But the commit-time re-traversal sees the divergence.
	accesses, _ := ws.Freeze()
	_, _, err = storage.ComputeStateUpdate(accesses, witness)
	require.ErrorIs(t, err, ErrReadConflict)
}
