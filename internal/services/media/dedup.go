package media

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/j-veylop/mediagate/internal/logger"
)

const hashChunkSize = 64 * 1024

// DedupResult is the outcome of Deduplicate.
type DedupResult struct {
	// Hashes maps every hashed input path to its hex digest.
	Hashes  map[string]string
	Unique  []string
	Dropped []string
}

// HashFile returns the hex SHA-256 digest of the file, read in fixed-size chunks.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() {
		_ = f.Close()
	}()

	h := sha256.New()
	if _, err := io.CopyBuffer(h, f, make([]byte, hashChunkSize)); err != nil {
		return "", fmt.Errorf("failed to hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Deduplicate keeps the first file of each distinct content and deletes later
// byte-identical copies. Files that cannot be read are kept.
func Deduplicate(paths []string) DedupResult {
	res := DedupResult{Hashes: make(map[string]string, len(paths))}
	seen := make(map[string]string, len(paths))

	for _, p := range paths {
		if _, done := res.Hashes[p]; done {
			continue
		}
		sum, err := HashFile(p)
		if err != nil {
			logger.Warn("failed to hash file, keeping it", "path", p, "error", err)
			res.Unique = append(res.Unique, p)
			continue
		}
		res.Hashes[p] = sum

		if first, dup := seen[sum]; dup {
			logger.Debug("dropping duplicate", "path", p, "duplicate_of", first)
			if err := os.Remove(p); err != nil {
				logger.Warn("failed to remove duplicate", "path", p, "error", err)
			}
			res.Dropped = append(res.Dropped, p)
			continue
		}
		seen[sum] = p
		res.Unique = append(res.Unique, p)
	}
	return res
}

// FilterUnique returns paths without later byte-identical copies, which are
// deleted from disk.
func FilterUnique(paths []string) []string {
	return Deduplicate(paths).Unique
}
