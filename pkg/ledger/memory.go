package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryGateway is an in-memory, thread-safe Gateway implementation. It is
// primarily useful for tests and single-process development setups; its
// verification re-validates the per-key hash chain on every read.
type MemoryGateway struct {
	mu     sync.RWMutex
	keys   map[string][]*memoryRevision
	nextID uint64
}

type memoryRevision struct {
	id        uint64
	value     []byte
	timestamp time.Time
	prevHash  string
	hash      string
}

// NewMemory creates an empty MemoryGateway.
func NewMemory() *MemoryGateway {
	return &MemoryGateway{keys: make(map[string][]*memoryRevision)}
}

// Put implements Gateway.
func (g *MemoryGateway) Put(_ context.Context, key string, value []byte) (*PutResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	revs := g.keys[key]
	prevHash := genesisHash
	if len(revs) > 0 {
		prevHash = revs[len(revs)-1].hash
	}

	g.nextID++
	revision := uint64(len(revs) + 1)
	stored := make([]byte, len(value))
	copy(stored, value)

	g.keys[key] = append(revs, &memoryRevision{
		id:        g.nextID,
		value:     stored,
		timestamp: time.Now().UTC(),
		prevHash:  prevHash,
		hash:      chainHash(key, revision, prevHash, stored),
	})
	return &PutResult{ID: g.nextID, Revision: revision}, nil
}

// VerifiedGet implements Gateway. It walks the key's revision chain up to
// the requested revision and validates every link before returning.
func (g *MemoryGateway) VerifiedGet(_ context.Context, key string, opts ...GetOption) (*Entry, error) {
	var cfg getConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	revs := g.keys[key]
	if len(revs) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}

	target := uint64(len(revs))
	if cfg.revision != 0 {
		if cfg.revision > uint64(len(revs)) {
			return nil, fmt.Errorf("%w: %s revision %d", ErrNotFound, key, cfg.revision)
		}
		target = cfg.revision
	}

	prevHash := genesisHash
	for i := uint64(0); i < target; i++ {
		rev := revs[i]
		if rev.prevHash != prevHash {
			return nil, fmt.Errorf("%w: chain broken at %s revision %d", ErrProofFailed, key, i+1)
		}
		if rev.hash != chainHash(key, i+1, rev.prevHash, rev.value) {
			return nil, fmt.Errorf("%w: invalid hash at %s revision %d", ErrProofFailed, key, i+1)
		}
		prevHash = rev.hash
	}

	rev := revs[target-1]
	return &Entry{
		ID:        rev.id,
		Key:       key,
		Value:     rev.value,
		Revision:  target,
		Timestamp: rev.timestamp,
		Verified:  true,
	}, nil
}

// Health implements Gateway.
func (g *MemoryGateway) Health(context.Context) error {
	return nil
}
