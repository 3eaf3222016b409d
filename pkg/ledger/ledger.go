// Package ledger defines the gateway contract between the notarization
// service and the tamper-evident store that holds its records.
//
// Three gateways implement the contract:
//   - ImmudbGateway: an immudb server, with server-side consistency proofs.
//   - PostgresGateway: a self-hosted append-only table with a per-key hash
//     chain, for deployments without an immudb instance.
//   - MemoryGateway: in-process, for testing and development.
//
// A key holds an append-only sequence of revisions starting at 1. Writes
// never overwrite; a repeated Put on the same key appends the next revision.
package ledger

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound reports that a key has no record in the ledger. It is never
// used for transport failures.
var ErrNotFound = errors.New("key not found in ledger")

// ErrUnavailable reports a transport or connection failure talking to the
// ledger. It is never used for missing keys.
var ErrUnavailable = errors.New("ledger unavailable")

// ErrProofFailed reports that a record was found but its consistency proof
// (or hash chain) did not validate. A caller must treat this as possible
// tampering, not as a missing record.
var ErrProofFailed = errors.New("ledger verification proof failed")

// PutResult reports the outcome of a write.
type PutResult struct {
	// ID is the backend's transaction or row identifier for the write.
	ID uint64
	// Revision is the revision the write created, when the backend reports
	// it at write time. The immudb backend reports it on read-back instead.
	Revision uint64
}

// Entry is a verified record fetched from the ledger.
type Entry struct {
	ID        uint64
	Key       string
	Value     []byte
	Revision  uint64
	Timestamp time.Time
	Verified  bool
	RefKey    string
}

// GetOption narrows a VerifiedGet call.
type GetOption func(*getConfig)

type getConfig struct {
	revision uint64
}

// AtRevision fetches the given revision instead of the latest. Revisions
// start at 1.
func AtRevision(rev uint64) GetOption {
	return func(c *getConfig) {
		c.revision = rev
	}
}

// Gateway is the two-operation contract the notarization service depends
// on, plus a health probe.
type Gateway interface {
	// Put stores value at key, appending a new revision if the key exists.
	Put(ctx context.Context, key string, value []byte) (*PutResult, error)

	// VerifiedGet fetches a record and validates its consistency proof.
	// It returns ErrNotFound for absent keys, ErrProofFailed for records
	// that fail validation, and ErrUnavailable for transport failures.
	VerifiedGet(ctx context.Context, key string, opts ...GetOption) (*Entry, error)

	// Health reports whether the backing store is reachable.
	Health(ctx context.Context) error
}
