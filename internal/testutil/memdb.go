// Package testutil holds in-memory backends for tests. Production code
// must not import it.
package testutil

import (
	"sort"
	"strings"
	"sync"

	"github.com/karuha/arenachain/core"
	"github.com/karuha/arenachain/storage"
)

// MemDB implements storage.DB over a map.
type MemDB struct {
	mu sync.RWMutex
	kv map[string][]byte
}

// NewMemDB returns an empty MemDB.
func NewMemDB() *MemDB {
	return &MemDB{kv: make(map[string][]byte)}
}

// NewStateDB returns a storage.StateDB over a fresh MemDB.
func NewStateDB() *storage.StateDB {
	return storage.NewStateDB(NewMemDB())
}

func (m *MemDB) Get(key []byte) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if v, ok := m.kv[string(key)]; ok {
		return v, nil
	}
	return nil, core.ErrNotFound
}

func (m *MemDB) Set(key, value []byte) error {
	m.mu.Lock()
	m.kv[string(key)] = value
	m.mu.Unlock()
	return nil
}

func (m *MemDB) Delete(key []byte) error {
	m.mu.Lock()
	delete(m.kv, string(key))
	m.mu.Unlock()
	return nil
}

// NewIterator snapshots all keys under prefix in sorted order, so mutation
// during iteration is safe.
func (m *MemDB) NewIterator(prefix []byte) storage.Iterator {
	m.mu.RLock()
	defer m.mu.RUnlock()
	it := &memIter{pos: -1}
	for k, v := range m.kv {
		if strings.HasPrefix(k, string(prefix)) {
			it.keys = append(it.keys, k)
			it.vals = append(it.vals, append([]byte(nil), v...))
		}
	}
	sort.Sort(it)
	return it
}

func (m *MemDB) NewBatch() storage.Batch {
	return &memBatch{db: m}
}

func (m *MemDB) Close() error { return nil }

type memIter struct {
	keys []string
	vals [][]byte
	pos  int
}

func (it *memIter) Len() int           { return len(it.keys) }
func (it *memIter) Less(i, j int) bool { return it.keys[i] < it.keys[j] }
func (it *memIter) Swap(i, j int) {
	it.keys[i], it.keys[j] = it.keys[j], it.keys[i]
	it.vals[i], it.vals[j] = it.vals[j], it.vals[i]
}

func (it *memIter) Next() bool    { it.pos++; return it.pos < len(it.keys) }
func (it *memIter) Key() []byte   { return []byte(it.keys[it.pos]) }
func (it *memIter) Value() []byte { return it.vals[it.pos] }
func (it *memIter) Release()      {}
func (it *memIter) Error() error  { return nil }

type memBatch struct {
	db   *MemDB
	keys []string
	vals [][]byte // nil entry marks a delete
}

func (b *memBatch) Set(key, value []byte) {
	b.keys = append(b.keys, string(key))
	b.vals = append(b.vals, append([]byte(nil), value...))
}

func (b *memBatch) Delete(key []byte) {
	b.keys = append(b.keys, string(key))
	b.vals = append(b.vals, nil)
}

func (b *memBatch) Reset() {
	b.keys = b.keys[:0]
	b.vals = b.vals[:0]
}

func (b *memBatch) Write() error {
	b.db.mu.Lock()
	defer b.db.mu.Unlock()
	for i, k := range b.keys {
		if b.vals[i] == nil {
			delete(b.db.kv, k)
		} else {
			b.db.kv[k] = b.vals[i]
		}
	}
	return nil
}

// MemBlockStore implements core.BlockStore over maps.
type MemBlockStore struct {
	mu       sync.RWMutex
	byHash   map[string]*core.Block
	byHeight map[int64]string
	tip      string
}

// NewMemBlockStore returns an empty MemBlockStore.
func NewMemBlockStore() *MemBlockStore {
	return &MemBlockStore{
		byHash:   make(map[string]*core.Block),
		byHeight: make(map[int64]string),
	}
}

func (s *MemBlockStore) PutBlock(block *core.Block) error {
	s.mu.Lock()
	s.byHash[block.Hash] = block
	s.mu.Unlock()
	return nil
}

func (s *MemBlockStore) GetBlock(hash string) (*core.Block, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if b, ok := s.byHash[hash]; ok {
		return b, nil
	}
	return nil, core.ErrNotFound
}

func (s *MemBlockStore) PutBlockByHeight(height int64, hash string) error {
	s.mu.Lock()
	s.byHeight[height] = hash
	s.mu.Unlock()
	return nil
}

func (s *MemBlockStore) GetBlockByHeight(height int64) (*core.Block, error) {
	s.mu.RLock()
	hash, ok := s.byHeight[height]
	s.mu.RUnlock()
	if !ok {
		return nil, core.ErrNotFound
	}
	return s.GetBlock(hash)
}

func (s *MemBlockStore) GetTip() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tip, nil
}

func (s *MemBlockStore) SetTip(hash string) error {
	s.mu.Lock()
	s.tip = hash
	s.mu.Unlock()
	return nil
}

func (s *MemBlockStore) CommitBlock(block *core.Block) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byHash[block.Hash] = block
	s.byHeight[block.Header.Height] = block.Hash
	s.tip = block.Hash
	return nil
}
