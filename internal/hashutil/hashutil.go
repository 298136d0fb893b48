// Package hashutil computes the content hashes the indexing pipeline uses
// to decide whether a file actually changed: a canonical SHA-256 for
// content addressing, recorded together with a cheap xxhash of the same
// bytes. Both are always computed; the SHA-256 is not gated on the xxhash.
package hashutil

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"os"

	"github.com/cespare/xxhash/v2"
	"github.com/edsrzf/mmap-go"
	"golang.org/x/sync/errgroup"
)

// largeFileThreshold is the size at or above which HashFile reads the file
// through mmap instead of os.ReadFile.
const largeFileThreshold = 4 * 1024 * 1024 // 4MB

// ErrNotFound is returned by HashFile when path does not exist. Other I/O
// errors (permission denied, broken symlink) surface unchanged.
var ErrNotFound = errors.New("hashutil: file not found")

// FastHash returns the xxhash of content. HashFile stores it in
// FileHash.Fast beside the canonical hash.
func FastHash(content []byte) uint64 {
	return xxhash.Sum64(content)
}

// HashString returns the canonical content hash of content as a hex string.
func HashString(content []byte) string {
	sum := sha256.Sum256(content)
	return fmt.Sprintf("%x", sum)
}

// FileHash is the two-tier hash of one file's contents at the moment it
// was read.
type FileHash struct {
	Path string
	Fast uint64
	Content string // hex-encoded SHA-256
}

// HashFile reads path and returns its two-tier hash. Files at or above
// largeFileThreshold are read through mmap; the mapped bytes are then
// copied into a Go slice before hashing. Returns ErrNotFound
// when path does not exist; other I/O errors surface unchanged.
func HashFile(path string) (FileHash, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return FileHash{}, fmt.Errorf("stat %s: %w", path, ErrNotFound)
		}
		return FileHash{}, fmt.Errorf("stat %s: %w", path, err)
	}

	var content []byte
	if info.Size() >= largeFileThreshold {
		content, err = readMmapped(path)
	} else {
		content, err = os.ReadFile(path)
	}
	if err != nil {
		return FileHash{}, fmt.Errorf("read %s: %w", path, err)
	}

	return FileHash{
		Path:    path,
		Fast:    FastHash(content),
		Content: HashString(content),
	}, nil
}

func readMmapped(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		return nil, err
	}
	defer m.Unmap()

	out := make([]byte, len(m))
	copy(out, m)
	return out, nil
}

// HashFiles hashes every path concurrently, bounded by workers, and returns
// one FileHash per successfully hashed path. Paths that fail to read (gone,
// permission-denied, a broken symlink) are silently skipped rather than
// aborting the whole batch, since a watcher event racing a delete is
// expected, not exceptional.
func HashFiles(paths []string, workers int) ([]FileHash, error) {
	if workers <= 0 {
		workers = 1
	}

	results := make([]FileHash, len(paths))
	ok := make([]bool, len(paths))

	g := new(errgroup.Group)
	g.SetLimit(workers)

	for i, p := range paths {
		i, p := i, p
		g.Go(func() error {
			h, err := HashFile(p)
			if err != nil {
				return nil
			}
			results[i] = h
			ok[i] = true
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]FileHash, 0, len(paths))
	for i, v := range ok {
		if v {
			out = append(out, results[i])
		}
	}
	return out, nil
}
