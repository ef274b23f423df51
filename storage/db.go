// Package storage persists chain data behind a small key-value interface,
// with LevelDB as the production backend. StateDB layers account and game
// records on top of it.
package storage

// DB is the key-value store the rest of the module programs against.
type DB interface {
	Get(key []byte) ([]byte, error)
	Set(key, value []byte) error
	Delete(key []byte) error
	// NewIterator walks all keys sharing prefix.
	NewIterator(prefix []byte) Iterator
	// NewBatch collects writes for one atomic flush.
	NewBatch() Batch
	Close() error
}

// Iterator yields key-value pairs; call Next before the first Key/Value.
type Iterator interface {
	Next() bool
	Key() []byte
	Value() []byte
	Release()
	Error() error
}

// Batch buffers sets and deletes until Write applies them atomically.
type Batch interface {
	Set(key, value []byte)
	Delete(key []byte)
	Reset()
	Write() error
}
