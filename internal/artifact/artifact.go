// Package artifact owns the on-disk format of every index artifact:
// gob values behind zstd, written scratch-file → fsync → rename so a
// crash mid-write never clobbers the previous build.
package artifact

import (
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

// ErrIoFailure wraps any artifact that is missing or unreadable.
var ErrIoFailure = errors.New("artifact unreadable")

// WriteAtomic streams through write into a scratch file in the same
// directory as path, fsyncs it, then renames it over path. The old
// file stays intact until the rename.
func WriteAtomic(path string, write func(io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("artifact: mkdir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".scratch-*")
	if err != nil {
		return fmt.Errorf("artifact: scratch for %s: %w", path, err)
	}
	defer func() {
		tmp.Close()
		os.Remove(tmp.Name())
	}()

	if err := write(tmp); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("artifact: fsync %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("artifact: close %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("artifact: rename into %s: %w", path, err)
	}
	return nil
}

// Save encodes v as zstd-compressed gob and atomically replaces path.
func Save(path string, v any) error {
	return WriteAtomic(path, func(w io.Writer) error {
		// Single-threaded encoding keeps repeated builds byte-identical.
		zw, err := zstd.NewWriter(w, zstd.WithEncoderConcurrency(1))
		if err != nil {
			return fmt.Errorf("artifact: zstd writer: %w", err)
		}
		if err := gob.NewEncoder(zw).Encode(v); err != nil {
			zw.Close()
			return fmt.Errorf("artifact: encode %s: %w", path, err)
		}
		return zw.Close()
	})
}

// Load decodes the artifact at path into v. A missing or truncated
// file reports ErrIoFailure.
func Load(path string, v any) error {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrIoFailure, path)
		}
		return fmt.Errorf("%w: %s: %v", ErrIoFailure, path, err)
	}
	defer f.Close()
	zr, err := zstd.NewReader(f)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrIoFailure, path, err)
	}
	defer zr.Close()
	if err := gob.NewDecoder(zr).Decode(v); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrIoFailure, path, err)
	}
	return nil
}

// RemoveMatching deletes every file in dir whose base name starts with
// prefix. Used to clear leftover temp blocks before and after a build.
func RemoveMatching(dir, prefix string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("artifact: read dir %s: %w", dir, err)
	}
	for _, e := range entries {
		if e.IsDir() || len(e.Name()) < len(prefix) || e.Name()[:len(prefix)] != prefix {
			continue
		}
		if err := os.Remove(filepath.Join(dir, e.Name())); err != nil {
			return fmt.Errorf("artifact: remove %s: %w", e.Name(), err)
		}
	}
	return nil
}
