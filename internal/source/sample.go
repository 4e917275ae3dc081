package source

import (
	"context"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"

	"hlscache/internal/fileutil"
	"hlscache/internal/services"
)

// DefaultSampleDepth bounds how many directory levels PickSample descends.
const DefaultSampleDepth = 16

// PickSample walks down from root choosing a random entry at each level
// until it reaches a regular file, and returns that file's key relative to
// root. Symlinks are never followed. The walk gives up after maxDepth
// directory levels.
func PickSample(root string, maxDepth int, rng *rand.Rand) (string, error) {
	if maxDepth <= 0 {
		maxDepth = DefaultSampleDepth
	}
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	dir := root
	for depth := 0; depth <= maxDepth; depth++ {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return "", services.Wrap(services.ErrNotFound, "source", "pick sample", dir, err)
		}
		candidates := entries[:0]
		for _, entry := range entries {
			if entry.Type().IsRegular() || entry.IsDir() {
				candidates = append(candidates, entry)
			}
		}
		if len(candidates) == 0 {
			return "", services.Wrap(services.ErrNotFound, "source", "pick sample", dir+" has no files", nil)
		}
		picked := candidates[rng.IntN(len(candidates))]
		next := filepath.Join(dir, picked.Name())
		if !picked.IsDir() {
			rel, err := filepath.Rel(root, next)
			if err != nil {
				return "", fmt.Errorf("relative sample path: %w", err)
			}
			return filepath.ToSlash(rel), nil
		}
		dir = next
	}
	return "", services.Wrap(services.ErrNotFound, "source", "pick sample", fmt.Sprintf("no file within %d levels of %s", maxDepth, root), nil)
}

// VerifyResult reports the digests compared by Verify.
type VerifyResult struct {
	Key           string
	SourceDigest  string
	FetchedDigest string
	Bytes         int64
}

// Match reports whether both digests agree.
func (r VerifyResult) Match() bool {
	return r.SourceDigest != "" && r.SourceDigest == r.FetchedDigest
}

// Verify fetches key into scratch and compares its SHA-256 digest against
// root/key. The fetched copy is removed afterwards.
func Verify(ctx context.Context, fetcher Fetcher, root, key, scratch string) (VerifyResult, error) {
	result := VerifyResult{Key: key}
	cleaned, err := CleanKey(key)
	if err != nil {
		return result, err
	}
	sourceDigest, _, err := fileutil.SHA256File(filepath.Join(root, filepath.FromSlash(cleaned)))
	if err != nil {
		return result, services.Wrap(services.ErrNotFound, "source", "verify", "hash source", err)
	}
	result.SourceDigest = sourceDigest

	dest := filepath.Join(scratch, filepath.FromSlash(cleaned))
	if err := fetcher.Fetch(ctx, cleaned, dest); err != nil {
		return result, err
	}
	defer os.Remove(dest)

	fetchedDigest, size, err := fileutil.SHA256File(dest)
	if err != nil {
		return result, services.Wrap(services.ErrTransient, "source", "verify", "hash fetched copy", err)
	}
	result.FetchedDigest = fetchedDigest
	result.Bytes = size
	return result, nil
}
