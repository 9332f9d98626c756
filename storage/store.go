package storage

import (
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
	leveldbstorage "github.com/syndtr/goleveldb/leveldb/storage"

	"github.com/availproject/sovereign-sdk/common"
)

// Store wraps LevelDB for raw key-value persistence.
// This is the foundational persistence layer - no trie logic here.
// Thread-safe: LevelDB handles its own synchronization.
type Store struct {
	db *leveldb.DB
}

// NewStore opens or creates a LevelDB database at the given path.
// If path is empty, uses in-memory storage.
func NewStore(path string) (*Store, error) {
	var db *leveldb.DB
	var err error

	if path == "" {
		memStorage := leveldbstorage.NewMemStorage()
		db, err = leveldb.Open(memStorage, nil)
	} else {
		db, err = leveldb.OpenFile(path, nil)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database at %s: %w", path, err)
	}

	return &Store{db: db}, nil
}

// NewMemStore creates an in-memory Store for testing.
func NewMemStore() (*Store, error) {
	return NewStore("")
}

// Get retrieves a value by key. Returns (nil, false, nil) if not found.
func (s *Store) Get(key []byte) ([]byte, bool, error) {
	data, err := s.db.Get(key, nil)
	if err == leveldb.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("Get %x: %w", key, err)
	}
	return data, true, nil
}

func (s *Store) Put(key []byte, value []byte) error {
	return s.db.Put(key, value, nil)
}

func (s *Store) Delete(key []byte) error {
	return s.db.Delete(key, nil)
}

// GetHash retrieves a value by 32-byte hash key. Returns (nil, false, nil) if
// not found.
func (s *Store) GetHash(key common.Hash) ([]byte, bool, error) {
	return s.Get(key.Bytes())
}

func (s *Store) PutHash(key common.Hash, value []byte) error {
	return s.db.Put(key.Bytes(), value, nil)
}

// WriteBatch applies all puts in a single atomic LevelDB batch.
func (s *Store) WriteBatch(kvs map[common.Hash][]byte) error {
	if len(kvs) == 0 {
		return nil
	}
	batch := new(leveldb.Batch)
	for key, value := range kvs {
		batch.Put(key.Bytes(), value)
	}
	if err := s.db.Write(batch, nil); err != nil {
		return fmt.Errorf("batch write of %d entries: %w", len(kvs), err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying LevelDB instance for advanced operations.
// Use sparingly - prefer the wrapper methods.
func (s *Store) DB() *leveldb.DB {
	return s.db
}
