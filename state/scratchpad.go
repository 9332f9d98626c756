package state

// journalEntry remembers one overwritten write record so a revert can
// restore it. Reads are never journaled: a reverted transaction's reads
// still happened against committed state and must stay in the trace.
type journalEntry struct {
	key      StorageKey
	prev     []byte
	hadWrite bool
}

// WorkingSet is the mutable view a batch executes against. It layers a
// cache log over a Storage backend, records every underlying read into the
// witness, and supports nested checkpoints so a failed transaction's writes
// can be rolled back without touching earlier ones.
type WorkingSet struct {
	storage     Storage
	witness     Witness
	log         *CacheLog
	journal     []journalEntry
	checkpoints []int
}

// NewWorkingSet opens a working set over storage, recording into witness.
func NewWorkingSet(storage Storage, witness Witness) *WorkingSet {
	return &WorkingSet{
		storage: storage,
		witness: witness,
		log:     NewCacheLog(),
	}
}

// Get returns the current value for key: an uncommitted write if one
// exists, else the cached first read, else a fresh read from storage.
func (ws *WorkingSet) Get(key StorageKey) ([]byte, bool, error) {
	if value, found, known := ws.log.TryGet(key); known {
		return value, found, nil
	}
	value, found, err := ws.storage.Get(key, ws.witness)
	if err != nil {
		return nil, false, err
	}
	if err := ws.log.AddRead(key, value, found); err != nil {
		return nil, false, err
	}
	return value, found, nil
}

// Set writes value under key.
func (ws *WorkingSet) Set(key StorageKey, value []byte) {
	prev, hadWrite := ws.log.AddWrite(key, value)
	ws.journal = append(ws.journal, journalEntry{key: key, prev: prev, hadWrite: hadWrite})
}

// Delete removes key.
func (ws *WorkingSet) Delete(key StorageKey) {
	prev, hadWrite := ws.log.AddWrite(key, nil)
	ws.journal = append(ws.journal, journalEntry{key: key, prev: prev, hadWrite: hadWrite})
}

// Checkpoint marks the current write state. Checkpoints nest; each Revert
// or Commit consumes the most recent one.
func (ws *WorkingSet) Checkpoint() {
	ws.checkpoints = append(ws.checkpoints, len(ws.journal))
}

// Revert undoes all writes since the most recent checkpoint. Reads made
// since the checkpoint are kept: they were answered from committed state
// and the witness has already recorded them.
func (ws *WorkingSet) Revert() {
	if len(ws.checkpoints) == 0 {
		return
	}
	mark := ws.checkpoints[len(ws.checkpoints)-1]
	ws.checkpoints = ws.checkpoints[:len(ws.checkpoints)-1]
	for i := len(ws.journal) - 1; i >= mark; i-- {
		e := ws.journal[i]
		ws.log.setWrite(e.key, e.prev, e.hadWrite)
	}
	ws.journal = ws.journal[:mark]
}

// Commit accepts all writes since the most recent checkpoint.
func (ws *WorkingSet) Commit() {
	if len(ws.checkpoints) == 0 {
		return
	}
	ws.checkpoints = ws.checkpoints[:len(ws.checkpoints)-1]
}

// Freeze flattens the working set into the ordered access trace consumed by
// Storage.ComputeStateUpdate. The working set must not be used afterwards.
func (ws *WorkingSet) Freeze() (*OrderedReadsAndWrites, Witness) {
	return ws.log.OrderedReadsAndWrites(), ws.witness
}

// Witness returns the witness the working set records into.
func (ws *WorkingSet) Witness() Witness {
	return ws.witness
}

// Storage returns the backend the working set reads through.
func (ws *WorkingSet) Storage() Storage {
	return ws.storage
}
