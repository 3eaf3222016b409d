package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// genesisHash anchors every per-key revision chain. Revision 1 of a key
// records it as its predecessor hash.
const genesisHash = "0000000000000000000000000000000000000000000000000000000000000000"

// chainHash computes the hash of one revision in a key's chain. The
// self-hosted gateways use it both when appending and when re-validating
// on read.
func chainHash(key string, revision uint64, prevHash string, value []byte) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%d|%s|", key, revision, prevHash)
	h.Write(value)
	return hex.EncodeToString(h.Sum(nil))
}
