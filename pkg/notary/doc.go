// Package notary is the Go SDK for notarizing and authenticating files and
// git repositories against a tamper-evident ledger.
//
// # Connecting
//
// Production use wraps an immudb server:
//
//	gw, err := ledger.DialImmudb(ctx, ledger.ImmudbConfig{
//	    Address:  "localhost",
//	    Port:     3322,
//	    Username: "immudb",
//	    Password: "immudb",
//	    Database: "defaultdb",
//	}, logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer gw.Close(ctx)
//
//	c := notary.New(gw, notary.WithSigner("immudb"), notary.WithLogger(logger))
//
// Tests and single-process setups can use ledger.NewMemory() instead; the
// protocol is identical regardless of backend.
//
// # Notarizing
//
// NotarizeFile hashes the file content, stores a record keyed by the
// digest, and returns the verified read-back of what was stored:
//
//	res, err := c.NotarizeFile(ctx, "hello_world.sh", map[string]any{"foo": "bar"})
//	// res.Key is the content hash, res.Revision starts at 1,
//	// res.Verified reports the ledger's consistency proof.
//
// NotarizeGitRepo does the same for a repository's HEAD commit metadata.
// Repeating a notarization of unchanged content appends a new revision
// under the same key; nothing is ever overwritten.
//
// # Authenticating
//
// Authenticate re-derives the key from the current content and fetches the
// record with proof. Local failures (unreadable path, not a repository)
// come back as errors; ledger-side failures are folded into the result so
// callers can branch without error handling:
//
//	res, err := c.AuthenticateFile(ctx, "hello_world.sh")
//	if err != nil {
//	    // the file itself could not be read
//	}
//	if res.Error != "" {
//	    // never notarized, proof failed, or the ledger is unreachable
//	}
//
// Authentication never depends on the metadata supplied at notarize time:
// key derivation uses content alone.
package notary
