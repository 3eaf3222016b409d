package notary

import (
	"encoding/json"
	"fmt"

	"github.com/clearsign/notary/pkg/ledger"
	"github.com/clearsign/notary/pkg/record"
)

// Result is a verified notarization record as fetched from the ledger.
type Result struct {
	ID        uint64         `json:"id"`
	Key       string         `json:"key"`
	Value     *record.Record `json:"value"`
	Timestamp int64          `json:"timestamp"`
	Verified  bool           `json:"verified"`
	RefKey    string         `json:"refkey,omitempty"`
	Revision  uint64         `json:"revision"`
}

// AuthResult is the outcome of an authenticate call. Exactly one of Result
// and Error is set: a non-empty Error means the record was not found, its
// proof failed, or the ledger was unreachable.
type AuthResult struct {
	Result *Result
	Error  string
}

// MarshalJSON renders a successful result as the flat record shape and a
// failed one as {"error": ...}.
func (a AuthResult) MarshalJSON() ([]byte, error) {
	if a.Error != "" {
		return json.Marshal(map[string]string{"error": a.Error})
	}
	return json.Marshal(a.Result)
}

// resultFromEntry decodes a ledger entry into the caller-facing result.
func resultFromEntry(entry *ledger.Entry) (*Result, error) {
	var rec record.Record
	if err := json.Unmarshal(entry.Value, &rec); err != nil {
		return nil, fmt.Errorf("decode record at %s: %w", entry.Key, err)
	}
	return &Result{
		ID:        entry.ID,
		Key:       entry.Key,
		Value:     &rec,
		Timestamp: entry.Timestamp.Unix(),
		Verified:  entry.Verified,
		RefKey:    entry.RefKey,
		Revision:  entry.Revision,
	}, nil
}
