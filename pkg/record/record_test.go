package record_test

import (
	"encoding/json"
	"testing"

	"github.com/clearsign/notary/pkg/gitmeta"
	"github.com/clearsign/notary/pkg/record"
)

const testHash = "4db5baf0a0e85ec0f3c2185459c1c0de01ba1101e6a7b227c6b73074731f4126"

func TestNewFile_schemaTagAlwaysPresent(t *testing.T) {
	r := record.NewFile("hello_world.sh", 2683, testHash, "immudb", nil)

	if r.Kind != record.KindFile {
		t.Errorf("Kind: got %q, want %q", r.Kind, record.KindFile)
	}
	if got := r.Metadata[record.SchemaVersionKey]; got != record.SchemaVersion {
		t.Errorf("schema tag: got %v, want %q", got, record.SchemaVersion)
	}
	if r.Key() != testHash {
		t.Errorf("Key: got %q, want content hash", r.Key())
	}
	if r.ByteSize != 2683 {
		t.Errorf("ByteSize: got %d, want 2683", r.ByteSize)
	}
}

func TestNewFile_callerMetadataMerged(t *testing.T) {
	r := record.NewFile("f", 1, testHash, "immudb", map[string]any{"foo": "bar"})
	if got := r.Metadata["foo"]; got != "bar" {
		t.Errorf("caller metadata: got %v, want %q", got, "bar")
	}
}

func TestNewFile_reservedKeysProtected(t *testing.T) {
	r := record.NewFile("f", 1, testHash, "immudb", map[string]any{
		record.SchemaVersionKey: "9.9",
		record.GitMetadataKey:   "bogus",
		"foo":                   "bar",
	})

	if got := r.Metadata[record.SchemaVersionKey]; got != record.SchemaVersion {
		t.Errorf("caller shadowed schema tag: got %v", got)
	}
	if _, ok := r.Metadata[record.GitMetadataKey]; ok {
		t.Error("caller-supplied git key must be dropped for file records")
	}
	if got := r.Metadata["foo"]; got != "bar" {
		t.Errorf("non-reserved caller key lost: got %v", got)
	}
}

func TestNewGit_reservedGitKeyProtected(t *testing.T) {
	meta := &gitmeta.Metadata{Commit: "abc"}
	r := record.NewGit("name", 10, testHash, "immudb", meta, map[string]any{
		record.GitMetadataKey: "bogus",
	})

	if got, ok := r.Metadata[record.GitMetadataKey].(*gitmeta.Metadata); !ok || got != meta {
		t.Errorf("git metadata shadowed by caller input: got %v", r.Metadata[record.GitMetadataKey])
	}
	if r.Kind != record.KindGitRepository {
		t.Errorf("Kind: got %q, want %q", r.Kind, record.KindGitRepository)
	}
}

func TestDeriveGitKey_deterministicAndCallerIndependent(t *testing.T) {
	meta := &gitmeta.Metadata{
		Author:    gitmeta.Signature{Email: "a@b.c", Name: "A", When: "2024-03-01T12:00:00+0100"},
		Commit:    "0123456789abcdef0123456789abcdef01234567",
		Committer: gitmeta.Signature{Email: "a@b.c", Name: "A", When: "2024-03-01T12:00:00+0100"},
		Message:   "m\n",
		Parents:   []string{},
		Tree:      "89abcdef0123456789abcdef0123456789abcdef",
	}

	k1, err := record.DeriveGitKey(meta)
	if err != nil {
		t.Fatal(err)
	}
	k2, err := record.DeriveGitKey(meta)
	if err != nil {
		t.Fatal(err)
	}
	if k1 != k2 {
		t.Errorf("key derivation not deterministic: %q vs %q", k1, k2)
	}
	if len(k1) != 64 {
		t.Errorf("key length: got %d, want 64 hex chars", len(k1))
	}

	// Records built with different caller metadata still share the key.
	r1 := record.NewGit("n", 1, k1, "s", meta, map[string]any{"foo": "bar"})
	r2 := record.NewGit("n", 1, k1, "s", meta, nil)
	if r1.Key() != r2.Key() {
		t.Errorf("caller metadata leaked into key: %q vs %q", r1.Key(), r2.Key())
	}
}

func TestRecord_jsonShape(t *testing.T) {
	r := record.NewFile("hello_world.sh", 2683, testHash, "immudb", map[string]any{"foo": "bar"})
	blob, err := json.Marshal(r)
	if err != nil {
		t.Fatal(err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(blob, &decoded); err != nil {
		t.Fatal(err)
	}
	for _, field := range []string{"Name", "Kind", "Size", "Hash", "Signer", "Metadata"} {
		if _, ok := decoded[field]; !ok {
			t.Errorf("serialized record missing field %q", field)
		}
	}
	if _, ok := decoded["ByteSize"]; ok {
		t.Error("ByteSize must not be serialized")
	}
	if decoded["Size"] != "2.62 KB" {
		t.Errorf("Size: got %v, want %q", decoded["Size"], "2.62 KB")
	}
}

func TestHumanSize(t *testing.T) {
	cases := []struct {
		in   int64
		want string
	}{
		{0, "0.00 B"},
		{500, "500.00 B"},
		{1024, "1.00 KB"},
		{2683, "2.62 KB"},
		{1253656, "1.20 MB"},
		{1253656678, "1.17 GB"},
	}
	for _, c := range cases {
		if got := record.HumanSize(c.in); got != c.want {
			t.Errorf("HumanSize(%d): got %q, want %q", c.in, got, c.want)
		}
	}
}
