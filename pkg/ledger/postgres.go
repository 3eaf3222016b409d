package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// advisoryLockKey is a stable PostgreSQL advisory lock key used to
// serialise concurrent Put calls. The value is arbitrary but must be the
// same for every process writing to the table.
const advisoryLockKey = int64(7_413_298_651)

// Schema is the DDL for the notarization table. The migrate command
// applies it; it is exported so operators can run it by hand.
const Schema = `
CREATE TABLE IF NOT EXISTS notarizations (
	id         bigserial PRIMARY KEY,
	key        text        NOT NULL,
	revision   bigint      NOT NULL,
	value      bytea       NOT NULL,
	prev_hash  text        NOT NULL,
	hash       text        NOT NULL,
	created_at timestamptz NOT NULL,
	UNIQUE (key, revision)
);
CREATE INDEX IF NOT EXISTS notarizations_key_idx ON notarizations (key);
`

// PostgresGateway persists revisioned records to a PostgreSQL table with a
// per-key hash chain. It has no server-side proofs; VerifiedGet re-validates
// the chain on every read instead.
type PostgresGateway struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgres creates a PostgresGateway backed by the given connection pool.
func NewPostgres(pool *pgxpool.Pool, logger *zap.Logger) *PostgresGateway {
	return &PostgresGateway{pool: pool, logger: logger}
}

// Migrate creates the notarization table if it does not exist.
func (g *PostgresGateway) Migrate(ctx context.Context) error {
	if _, err := g.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("apply notarization schema: %w", err)
	}
	return nil
}

// Put implements Gateway. It acquires an advisory lock, reads the key's
// chain tail, computes the next link, and inserts it in one transaction.
func (g *PostgresGateway) Put(ctx context.Context, key string, value []byte) (*PutResult, error) {
	tx, err := g.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: begin tx: %v", ErrUnavailable, err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	// Serialise concurrent appends with a transaction-scoped advisory lock.
	// Released automatically on commit or rollback.
	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", advisoryLockKey); err != nil {
		return nil, fmt.Errorf("acquire advisory lock: %w", err)
	}

	var prevRev uint64
	prevHash := genesisHash
	err = tx.QueryRow(ctx,
		"SELECT revision, hash FROM notarizations WHERE key = $1 ORDER BY revision DESC LIMIT 1",
		key,
	).Scan(&prevRev, &prevHash)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("read chain tail for %s: %w", key, err)
	}

	revision := prevRev + 1
	hash := chainHash(key, revision, prevHash, value)

	var id uint64
	if err := tx.QueryRow(ctx,
		`INSERT INTO notarizations (key, revision, value, prev_hash, hash, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id`,
		key, revision, value, prevHash, hash, time.Now().UTC(),
	).Scan(&id); err != nil {
		return nil, fmt.Errorf("insert revision %d of %s: %w", revision, key, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit notarization tx: %w", err)
	}

	g.logger.Debug("revision stored",
		zap.String("key", key),
		zap.Uint64("revision", revision),
		zap.Uint64("id", id),
	)
	return &PutResult{ID: id, Revision: revision}, nil
}

// VerifiedGet implements Gateway. It streams the key's revisions in order
// and validates every chain link up to the requested revision.
func (g *PostgresGateway) VerifiedGet(ctx context.Context, key string, opts ...GetOption) (*Entry, error) {
	var cfg getConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	rows, err := g.pool.Query(ctx,
		`SELECT id, revision, value, prev_hash, hash, created_at
		 FROM notarizations WHERE key = $1 ORDER BY revision ASC`,
		key,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: query %s: %v", ErrUnavailable, key, err)
	}
	defer rows.Close()

	prevHash := genesisHash
	var target *Entry
	for rows.Next() {
		var (
			id, revision     uint64
			value            []byte
			rowPrev, rowHash string
			createdAt        time.Time
		)
		if err := rows.Scan(&id, &revision, &value, &rowPrev, &rowHash, &createdAt); err != nil {
			return nil, fmt.Errorf("scan revision of %s: %w", key, err)
		}

		if rowPrev != prevHash {
			return nil, fmt.Errorf("%w: chain broken at %s revision %d", ErrProofFailed, key, revision)
		}
		if rowHash != chainHash(key, revision, rowPrev, value) {
			return nil, fmt.Errorf("%w: invalid hash at %s revision %d", ErrProofFailed, key, revision)
		}
		prevHash = rowHash

		if cfg.revision == 0 || cfg.revision == revision {
			target = &Entry{
				ID:        id,
				Key:       key,
				Value:     value,
				Revision:  revision,
				Timestamp: createdAt,
				Verified:  true,
			}
		}
		if cfg.revision != 0 && cfg.revision == revision {
			// Later revisions do not participate in this revision's proof;
			// the chain up to here has been validated.
			break
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrUnavailable, key, err)
	}
	if target == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return target, nil
}

// Health implements Gateway.
func (g *PostgresGateway) Health(ctx context.Context) error {
	if err := g.pool.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}
