package localstore

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

// BadgerConfig holds configuration for a Badger-backed port.
type BadgerConfig struct {
	// Path is the directory for Badger files. Ignored when InMemory is true.
	Path string

	// InMemory enables in-memory mode (no disk persistence). Used in tests.
	InMemory bool

	// SyncWrites enables synchronous writes for durability.
	SyncWrites bool
}

// DefaultBadgerConfig returns production settings for the given directory.
func DefaultBadgerConfig(path string) BadgerConfig {
	return BadgerConfig{Path: path, SyncWrites: true}
}

// BadgerPort is a StoragePort backed by an embedded Badger database.
type BadgerPort struct {
	db *badger.DB
}

// OpenBadger opens (creating if needed) a Badger-backed port.
func OpenBadger(cfg BadgerConfig) (*BadgerPort, error) {
	opts := badger.DefaultOptions(cfg.Path).
		WithInMemory(cfg.InMemory).
		WithSyncWrites(cfg.SyncWrites).
		WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("localstore: open badger at %s: %w", cfg.Path, err)
	}
	return &BadgerPort{db: db}, nil
}

// Close releases the underlying Badger database.
func (p *BadgerPort) Close() error {
	return p.db.Close()
}

func (p *BadgerPort) Get(key string) ([]byte, bool, error) {
	var value []byte
	err := p.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("%w: badger get %s: %v", ErrUnavailable, key, err)
	}
	return value, true, nil
}

func (p *BadgerPort) Set(key string, value []byte) error {
	err := p.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
	if err != nil {
		if errors.Is(err, badger.ErrTxnTooBig) {
			return fmt.Errorf("%w: badger set %s: %v", ErrQuotaExceeded, key, err)
		}
		return fmt.Errorf("%w: badger set %s: %v", ErrUnavailable, key, err)
	}
	return nil
}

func (p *BadgerPort) Remove(key string) error {
	err := p.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
	if err != nil {
		return fmt.Errorf("%w: badger delete %s: %v", ErrUnavailable, key, err)
	}
	return nil
}

func (p *BadgerPort) Keys() ([]string, error) {
	var keys []string
	err := p.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, string(it.Item().KeyCopy(nil)))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: badger keys: %v", ErrUnavailable, err)
	}
	return keys, nil
}
