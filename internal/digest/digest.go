// Package digest provides BLAKE3 content hashing helpers.
package digest

import (
	"encoding/hex"
	"os"
	"time"

	"lukechampine.com/blake3"
)

// NowMs returns the current time in milliseconds since epoch.
func NowMs() int64 {
	return time.Now().UnixMilli()
}

// Sum returns the BLAKE3 hash of content (32 bytes).
func Sum(content []byte) []byte {
	h := blake3.Sum256(content)
	return h[:]
}

// SumHex returns the BLAKE3 hash of content as a hex string.
func SumHex(content []byte) string {
	return hex.EncodeToString(Sum(content))
}

// FileHex returns the BLAKE3 hash of a file's contents as a hex string.
func FileHex(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return SumHex(content), nil
}
