package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/codenotary/immudb/pkg/api/schema"
	immudb "github.com/codenotary/immudb/pkg/client"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ImmudbConfig holds the connection settings for an immudb server. Zero
// values fall back to the server's stock defaults.
type ImmudbConfig struct {
	Address  string // default "localhost"
	Port     int    // default 3322
	Username string // default "immudb"
	Password string // default "immudb"
	Database string // default "defaultdb"

	// MaxRetries and RetryPause govern retries of calls that fail with a
	// transport error. Deterministic failures are never retried.
	MaxRetries int           // default 5
	RetryPause time.Duration // default 10s
}

func (c *ImmudbConfig) applyDefaults() {
	if c.Address == "" {
		c.Address = "localhost"
	}
	if c.Port == 0 {
		c.Port = 3322
	}
	if c.Username == "" {
		c.Username = "immudb"
	}
	if c.Password == "" {
		c.Password = "immudb"
	}
	if c.Database == "" {
		c.Database = "defaultdb"
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 5
	}
	if c.RetryPause == 0 {
		c.RetryPause = 10 * time.Second
	}
}

// ImmudbGateway is the production Gateway: an immudb client session whose
// VerifiedSet/VerifiedGet carry server-side consistency proofs. The proof
// validation itself lives in the immudb client; this gateway translates
// its errors into the contract's sentinels.
type ImmudbGateway struct {
	client immudb.ImmuClient
	cfg    ImmudbConfig
	logger *zap.Logger
}

// DialImmudb opens a session against the configured immudb server.
// The caller owns the returned gateway and must Close it.
func DialImmudb(ctx context.Context, cfg ImmudbConfig, logger *zap.Logger) (*ImmudbGateway, error) {
	cfg.applyDefaults()

	opts := immudb.DefaultOptions().
		WithAddress(cfg.Address).
		WithPort(cfg.Port)
	c := immudb.NewClient().WithOptions(opts)

	if err := c.OpenSession(ctx, []byte(cfg.Username), []byte(cfg.Password), cfg.Database); err != nil {
		return nil, fmt.Errorf("open immudb session %s:%d/%s: %w", cfg.Address, cfg.Port, cfg.Database, classify(err))
	}

	logger.Info("immudb session open",
		zap.String("address", cfg.Address),
		zap.Int("port", cfg.Port),
		zap.String("database", cfg.Database),
	)
	return &ImmudbGateway{client: c, cfg: cfg, logger: logger}, nil
}

// Close terminates the immudb session.
func (g *ImmudbGateway) Close(ctx context.Context) error {
	return g.client.CloseSession(ctx)
}

// Put implements Gateway. The write is a VerifiedSet: the server returns a
// proof the client validates before reporting success.
//
// Revision is left zero in the result: immudb reports revisions on reads,
// and the service reads the record back after every write anyway.
func (g *ImmudbGateway) Put(ctx context.Context, key string, value []byte) (*PutResult, error) {
	var result *PutResult
	err := g.withRetry(ctx, "put", func() error {
		hdr, err := g.client.VerifiedSet(ctx, []byte(key), value)
		if err != nil {
			return classify(err)
		}
		result = &PutResult{ID: hdr.Id}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("verified set %s: %w", key, err)
	}
	return result, nil
}

// VerifiedGet implements Gateway.
func (g *ImmudbGateway) VerifiedGet(ctx context.Context, key string, opts ...GetOption) (*Entry, error) {
	var cfg getConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	var entry *Entry
	err := g.withRetry(ctx, "verified-get", func() error {
		var (
			raw *schema.Entry
			err error
		)
		if cfg.revision != 0 {
			raw, err = g.client.VerifiedGetAtRevision(ctx, []byte(key), int64(cfg.revision))
		} else {
			raw, err = g.client.VerifiedGet(ctx, []byte(key))
		}
		if err != nil {
			return classify(err)
		}
		entry = g.toEntry(ctx, raw)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("verified get %s: %w", key, err)
	}
	return entry, nil
}

// Health implements Gateway.
func (g *ImmudbGateway) Health(ctx context.Context) error {
	if _, err := g.client.Health(ctx); err != nil {
		return classify(err)
	}
	return nil
}

// toEntry converts an immudb entry to the gateway contract's shape. The
// transaction timestamp requires a second lookup; a failure there degrades
// to a zero timestamp rather than failing the whole get.
func (g *ImmudbGateway) toEntry(ctx context.Context, raw *schema.Entry) *Entry {
	entry := &Entry{
		ID:       raw.Tx,
		Key:      string(raw.Key),
		Value:    raw.Value,
		Revision: raw.Revision,
		Verified: true, // VerifiedGet fails instead of returning unverified data
	}
	if ref := raw.ReferencedBy; ref != nil {
		entry.RefKey = string(ref.Key)
	}
	if tx, err := g.client.TxByID(ctx, raw.Tx); err == nil && tx.Header != nil {
		entry.Timestamp = time.Unix(tx.Header.Ts, 0).UTC()
	} else if err != nil {
		g.logger.Debug("tx timestamp lookup failed", zap.Uint64("tx", raw.Tx), zap.Error(err))
	}
	return entry
}

// withRetry runs fn, repeating it on ErrUnavailable up to the configured
// retry budget with a fixed pause between attempts.
func (g *ImmudbGateway) withRetry(ctx context.Context, op string, fn func() error) error {
	var err error
	for attempt := 0; attempt <= g.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			g.logger.Warn("retrying ledger call",
				zap.String("op", op),
				zap.Int("attempt", attempt),
				zap.Duration("pause", g.cfg.RetryPause),
				zap.Error(err),
			)
			select {
			case <-ctx.Done():
				return fmt.Errorf("%w: %v", ErrUnavailable, ctx.Err())
			case <-time.After(g.cfg.RetryPause):
			}
		}
		if err = fn(); err == nil || !errors.Is(err, ErrUnavailable) {
			return err
		}
	}
	return err
}

// classify maps raw immudb client errors onto the gateway sentinels.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if s, ok := status.FromError(err); ok {
		switch s.Code() {
		case codes.NotFound:
			return fmt.Errorf("%w: %v", ErrNotFound, err)
		case codes.Unavailable, codes.DeadlineExceeded:
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "key not found"):
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	case strings.Contains(msg, "corrupted"):
		return fmt.Errorf("%w: %v", ErrProofFailed, err)
	case strings.Contains(msg, "connection"):
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return err
}
