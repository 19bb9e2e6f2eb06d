// Package localstore manages the client-local key-value blob that holds
// chat history and the migration flag, with layered corruption recovery.
package localstore

import (
	"errors"
	"fmt"
	"sync"
)

// Well-known keys in the client-local store.
const (
	KeyChatHistory     = "chat-history"
	KeyMigrationStatus = "migration-status"
)

// Sentinel errors. Callers match with errors.Is; lower-level faults are
// wrapped at this package's boundary and never escape raw.
var (
	ErrCorrupted     = errors.New("localstore: corrupted data")
	ErrUnavailable   = errors.New("localstore: storage unavailable")
	ErrQuotaExceeded = errors.New("localstore: quota exceeded")
)

// StoragePort is the capability the store operates through. Implementations
// exist for Badger (persistent) and in-memory (tests).
type StoragePort interface {
	// Get returns the value for key. found is false when the key is absent.
	Get(key string) (value []byte, found bool, err error)

	// Set stores value under key, overwriting any previous value.
	Set(key string, value []byte) error

	// Remove deletes key. Removing an absent key is not an error.
	Remove(key string) error

	// Keys lists all currently stored keys.
	Keys() ([]string, error)
}

// MemoryPort is an in-memory StoragePort with failure injection for tests.
type MemoryPort struct {
	mu sync.Mutex

	// Disabled makes every operation fail as unavailable.
	Disabled bool
	// QuotaLimit caps total stored bytes; 0 means unlimited.
	QuotaLimit int
	// FailKeys makes Set fail for specific keys.
	FailKeys map[string]bool

	data map[string][]byte
}

// NewMemoryPort returns an empty in-memory port.
func NewMemoryPort() *MemoryPort {
	return &MemoryPort{data: make(map[string][]byte)}
}

func (p *MemoryPort) Get(key string) ([]byte, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Disabled {
		return nil, false, fmt.Errorf("%w: storage disabled", ErrUnavailable)
	}
	v, ok := p.data[key]
	if !ok {
		return nil, false, nil
	}
	cp := make([]byte, len(v))
	copy(cp, v)
	return cp, true, nil
}

func (p *MemoryPort) Set(key string, value []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Disabled {
		return fmt.Errorf("%w: storage disabled", ErrUnavailable)
	}
	if p.FailKeys[key] {
		return fmt.Errorf("%w: write rejected for %s", ErrUnavailable, key)
	}
	if p.QuotaLimit > 0 {
		total := len(value)
		for k, v := range p.data {
			if k == key {
				continue
			}
			total += len(v)
		}
		if total > p.QuotaLimit {
			return fmt.Errorf("%w: %d bytes over limit", ErrQuotaExceeded, total-p.QuotaLimit)
		}
	}
	cp := make([]byte, len(value))
	copy(cp, value)
	p.data[key] = cp
	return nil
}

func (p *MemoryPort) Remove(key string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Disabled {
		return fmt.Errorf("%w: storage disabled", ErrUnavailable)
	}
	delete(p.data, key)
	return nil
}

func (p *MemoryPort) Keys() ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Disabled {
		return nil, fmt.Errorf("%w: storage disabled", ErrUnavailable)
	}
	keys := make([]string, 0, len(p.data))
	for k := range p.data {
		keys = append(keys, k)
	}
	return keys, nil
}
