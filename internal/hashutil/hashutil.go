// Package hashutil provides the SHA-256 primitives the notarization
// protocol is built on: streaming file digests, in-memory digests, and
// directory size measurement.
//
// The digest algorithm is fixed. Notarize and authenticate must derive
// identical keys for identical inputs, so the algorithm is not a
// configuration knob.
package hashutil

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// chunkSize bounds the read buffer used for file hashing. Peak memory
// stays at one chunk regardless of file size.
const chunkSize = 1 << 20

// HashFile returns the hex-encoded SHA-256 digest of the file at path
// together with its size in bytes. The file is read in chunkSize blocks.
func HashFile(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	buf := make([]byte, chunkSize)
	n, err := io.CopyBuffer(h, f, buf)
	if err != nil {
		return "", 0, fmt.Errorf("read %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}

// HashBytes returns the hex-encoded SHA-256 digest of blob.
func HashBytes(blob []byte) string {
	sum := sha256.Sum256(blob)
	return hex.EncodeToString(sum[:])
}

// DirSize returns the total size in bytes of all regular files under root.
func DirSize(root string) (int64, error) {
	var total int64
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		total += info.Size()
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("walk %s: %w", root, err)
	}
	return total, nil
}
