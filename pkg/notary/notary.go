package notary

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/clearsign/notary/internal/hashutil"
	"github.com/clearsign/notary/pkg/gitmeta"
	"github.com/clearsign/notary/pkg/ledger"
	"github.com/clearsign/notary/pkg/record"
)

// defaultSigner is the stock immudb username, used when no signer is
// configured.
const defaultSigner = "immudb"

// Client orchestrates hashing, metadata extraction, record building, and
// the ledger gateway. It holds no mutable state; one Client can serve
// concurrent callers, with per-key ordering delegated to the ledger.
type Client struct {
	gw     ledger.Gateway
	signer string
	logger *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithSigner sets the signer name recorded on every notarization,
// conventionally the ledger username.
func WithSigner(name string) Option {
	return func(c *Client) {
		c.signer = name
	}
}

// WithLogger sets the client's logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// New creates a Client over the given gateway.
func New(gw ledger.Gateway, opts ...Option) *Client {
	c := &Client{gw: gw, signer: defaultSigner, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NotarizeFile hashes the file at path, stores a record keyed by the
// content digest merged with callerMeta, and returns the verified
// read-back of the stored record. Any failure is returned as an error.
func (c *Client) NotarizeFile(ctx context.Context, path string, callerMeta map[string]any) (*Result, error) {
	opID := uuid.NewString()

	digest, size, err := hashutil.HashFile(path)
	if err != nil {
		return nil, err
	}

	rec := record.NewFile(filepath.Base(path), size, digest, c.signer, callerMeta)
	c.logger.Info("notarizing file",
		zap.String("op_id", opID),
		zap.String("name", rec.Name),
		zap.String("key", rec.Key()),
		zap.Int64("bytes", size),
	)
	return c.notarize(ctx, opID, rec)
}

// NotarizeGitRepo extracts the HEAD commit metadata of the repository at
// path, stores a record keyed by the metadata digest merged with
// callerMeta, and returns the verified read-back of the stored record.
func (c *Client) NotarizeGitRepo(ctx context.Context, path string, callerMeta map[string]any) (*Result, error) {
	opID := uuid.NewString()

	name, meta, err := gitmeta.Extract(path)
	if err != nil {
		return nil, err
	}
	key, err := record.DeriveGitKey(meta)
	if err != nil {
		return nil, err
	}
	size, err := hashutil.DirSize(path)
	if err != nil {
		return nil, err
	}

	rec := record.NewGit(name, size, key, c.signer, meta, callerMeta)
	c.logger.Info("notarizing git repository",
		zap.String("op_id", opID),
		zap.String("name", rec.Name),
		zap.String("key", rec.Key()),
		zap.String("commit", meta.Commit),
	)
	return c.notarize(ctx, opID, rec)
}

// AuthenticateFile re-hashes the file at path and looks the digest up in
// the ledger. Local read failures are returned as an error; ledger-side
// failures are reported through the result's Error field.
func (c *Client) AuthenticateFile(ctx context.Context, path string) (*AuthResult, error) {
	digest, _, err := hashutil.HashFile(path)
	if err != nil {
		return nil, err
	}
	return c.authenticate(ctx, record.DeriveFileKey(digest)), nil
}

// AuthenticateGitRepo re-extracts the repository metadata at path and
// looks its digest up in the ledger. A path that is not a repository is
// returned as an error; ledger-side failures are reported through the
// result's Error field.
func (c *Client) AuthenticateGitRepo(ctx context.Context, path string) (*AuthResult, error) {
	_, meta, err := gitmeta.Extract(path)
	if err != nil {
		return nil, err
	}
	key, err := record.DeriveGitKey(meta)
	if err != nil {
		return nil, err
	}
	return c.authenticate(ctx, key), nil
}

// notarize writes the record and reads it back verified, so the caller
// sees the revision and proof outcome of what the ledger actually stored.
func (c *Client) notarize(ctx context.Context, opID string, rec *record.Record) (*Result, error) {
	value, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}

	if _, err := c.gw.Put(ctx, rec.Key(), value); err != nil {
		return nil, fmt.Errorf("ledger write: %w", err)
	}

	entry, err := c.gw.VerifiedGet(ctx, rec.Key())
	if err != nil {
		return nil, fmt.Errorf("ledger read-back: %w", err)
	}

	result, err := resultFromEntry(entry)
	if err != nil {
		return nil, err
	}
	c.logger.Info("notarized",
		zap.String("op_id", opID),
		zap.String("key", result.Key),
		zap.Uint64("revision", result.Revision),
		zap.Bool("verified", result.Verified),
	)
	return result, nil
}

// authenticate fetches the record at key with proof and folds ledger-side
// failures into the result.
func (c *Client) authenticate(ctx context.Context, key string) *AuthResult {
	entry, err := c.gw.VerifiedGet(ctx, key)
	if err != nil {
		c.logger.Warn("authentication failed", zap.String("key", key), zap.Error(err))
		switch {
		case errors.Is(err, ledger.ErrNotFound):
			return &AuthResult{Error: fmt.Sprintf("key %s not found in the ledger", key)}
		case errors.Is(err, ledger.ErrProofFailed):
			return &AuthResult{Error: fmt.Sprintf("verification failed for key %s: %v", key, err)}
		case errors.Is(err, ledger.ErrUnavailable):
			return &AuthResult{Error: fmt.Sprintf("ledger unavailable: %v", err)}
		default:
			return &AuthResult{Error: err.Error()}
		}
	}

	result, err := resultFromEntry(entry)
	if err != nil {
		return &AuthResult{Error: err.Error()}
	}
	c.logger.Info("authenticated",
		zap.String("key", key),
		zap.Uint64("revision", result.Revision),
		zap.Bool("verified", result.Verified),
	)
	return &AuthResult{Result: result}
}
