// Package record defines the notarization record stored in the ledger and
// the deterministic derivation of its storage key.
//
// The storage key is content-addressed: a file's key is its SHA-256 content
// digest; a git repository's key is the SHA-256 of the canonical JSON of its
// HEAD commit metadata. Caller-supplied metadata is stored on the record but
// never participates in key derivation, so authentication can re-derive the
// key from the content alone.
package record

import (
	"fmt"

	"github.com/clearsign/notary/internal/hashutil"
	"github.com/clearsign/notary/pkg/gitmeta"
)

// Kind tags what a record notarizes.
type Kind string

const (
	KindFile          Kind = "file"
	KindGitRepository Kind = "git"
)

// Reserved metadata keys. Caller-supplied entries under these keys are
// dropped during the merge; they can never shadow protocol-owned values.
const (
	// SchemaVersionKey names the reserved metadata field carrying the
	// record schema version.
	SchemaVersionKey = "sbom_api_ver"

	// GitMetadataKey names the reserved metadata field carrying the
	// extracted git provenance of repository records.
	GitMetadataKey = "git"
)

// SchemaVersion is the current record schema version, stored under
// SchemaVersionKey on every record.
const SchemaVersion = "0.2"

// Record is the value stored in the ledger for one notarization. Field
// names are part of the stored JSON shape and must not change.
type Record struct {
	Name     string         `json:"Name"`
	Kind     Kind           `json:"Kind"`
	Size     string         `json:"Size"`
	Hash     string         `json:"Hash"`
	Signer   string         `json:"Signer"`
	Metadata map[string]any `json:"Metadata"`

	// ByteSize is the raw byte count behind the human-formatted Size.
	// It is kept for callers and tests but not serialized.
	ByteSize int64 `json:"-"`
}

// Key returns the storage key the record lives under. By construction it
// equals the record's hash for both kinds.
func (r *Record) Key() string {
	return r.Hash
}

// NewFile builds the record for a file notarization. contentHash doubles as
// the storage key.
func NewFile(name string, byteSize int64, contentHash, signer string, callerMeta map[string]any) *Record {
	return &Record{
		Name:     name,
		Kind:     KindFile,
		Size:     HumanSize(byteSize),
		Hash:     contentHash,
		Signer:   signer,
		Metadata: mergeMetadata(nil, callerMeta),
		ByteSize: byteSize,
	}
}

// NewGit builds the record for a git repository notarization. metaHash is
// the digest of the canonical git metadata and doubles as the storage key.
func NewGit(name string, byteSize int64, metaHash, signer string, meta *gitmeta.Metadata, callerMeta map[string]any) *Record {
	return &Record{
		Name:     name,
		Kind:     KindGitRepository,
		Size:     HumanSize(byteSize),
		Hash:     metaHash,
		Signer:   signer,
		Metadata: mergeMetadata(map[string]any{GitMetadataKey: meta}, callerMeta),
		ByteSize: byteSize,
	}
}

// DeriveGitKey computes the storage key for a repository state: the SHA-256
// of the canonical serialization of its metadata. Authenticate calls this
// with freshly extracted metadata and must land on the notarized key.
func DeriveGitKey(meta *gitmeta.Metadata) (string, error) {
	canonical, err := meta.Canonical()
	if err != nil {
		return "", err
	}
	return hashutil.HashBytes(canonical), nil
}

// DeriveFileKey computes the storage key for a file from its content hash.
// The digest itself is the key.
func DeriveFileKey(contentHash string) string {
	return contentHash
}

// mergeMetadata layers caller metadata over the protocol-owned base.
// The schema version tag is always present. Caller keys that collide with
// reserved keys are silently dropped.
func mergeMetadata(base, caller map[string]any) map[string]any {
	merged := map[string]any{SchemaVersionKey: SchemaVersion}
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range caller {
		if k == SchemaVersionKey || k == GitMetadataKey {
			continue
		}
		merged[k] = v
	}
	return merged
}

// sizeUnits are binary-factor prefixes, smallest first.
var sizeUnits = []string{"", "K", "M", "G", "T", "P", "E", "Z"}

// HumanSize formats a byte count with binary-prefixed units and two
// decimals, e.g. 2683 -> "2.62 KB".
func HumanSize(n int64) string {
	value := float64(n)
	for _, unit := range sizeUnits {
		if value < 1024 {
			return fmt.Sprintf("%.2f %sB", value, unit)
		}
		value /= 1024
	}
	return fmt.Sprintf("%.2f YB", value)
}
