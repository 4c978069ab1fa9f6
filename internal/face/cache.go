package face

import (
	"crypto/md5" //nolint:gosec // cache keys, not security
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// cacheVersion invalidates every cached encoding when the on-disk layout
// or the encoding model changes.
const cacheVersion = 1

// EncodingCache persists face encodings per reference directory so that
// unchanged portraits never hit the face service twice. Each directory gets
// a manifest file (fingerprints) and an encodings file, both keyed by a
// short hash of the directory's absolute path.
type EncodingCache struct {
	dir string
}

// NewEncodingCache stores cache files under dir, creating it if needed.
func NewEncodingCache(dir string) (*EncodingCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	return &EncodingCache{dir: dir}, nil
}

type manifest struct {
	Version      int               `json:"version"`
	Fingerprints map[string]string `json:"fingerprints"` // file name -> fingerprint
}

// EncodeFunc computes the face encodings for one image file.
type EncodeFunc func(path string) ([][]float32, error)

// Fingerprint identifies a file's current content cheaply. Any rename,
// rewrite or touch changes it. Mtime enters at nanosecond precision so a
// same-size rewrite within one second still invalidates.
func Fingerprint(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("failed to stat %s: %w", path, err)
	}
	sum := md5.Sum(fmt.Appendf(nil, "%s|%d|%d", path, info.Size(), info.ModTime().UnixNano())) //nolint:gosec
	return fmt.Sprintf("%x", sum), nil
}

// dirKey derives the cache file suffix for a reference directory.
func dirKey(dir string) string {
	abs, err := filepath.Abs(dir)
	if err != nil {
		abs = dir
	}
	sum := md5.Sum([]byte(abs)) //nolint:gosec
	return fmt.Sprintf("%x", sum)[:12]
}

func (c *EncodingCache) manifestPath(dir string) string {
	return filepath.Join(c.dir, "manifest_"+dirKey(dir)+".json")
}

func (c *EncodingCache) encodingsPath(dir string) string {
	return filepath.Join(c.dir, "encodings_"+dirKey(dir)+".json")
}

// Encodings returns the face encodings for the given files, re-encoding only
// files whose fingerprint changed since the last run. Entries for files no
// longer present are pruned. Corrupt or stale cache files are discarded and
// rebuilt, never returned as errors.
func (c *EncodingCache) Encodings(dir string, files []string, encode EncodeFunc) (map[string][][]float32, error) {
	cachedPrints, cachedEncodings := c.load(dir)

	prints := make(map[string]string, len(files))
	encodings := make(map[string][][]float32, len(files))
	hits, misses := 0, 0

	for _, file := range files {
		path := filepath.Join(dir, file)
		print, err := Fingerprint(path)
		if err != nil {
			return nil, err
		}

		if cached, ok := cachedEncodings[file]; ok && cachedPrints[file] == print {
			prints[file] = print
			encodings[file] = cached
			hits++
			continue
		}

		encoded, err := encode(path)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s: %w", path, err)
		}
		prints[file] = print
		encodings[file] = encoded
		misses++
	}

	if misses > 0 || len(prints) != len(cachedPrints) {
		if err := c.store(dir, prints, encodings); err != nil {
			return nil, err
		}
	}

	slog.Debug("encoding cache synced", "dir", dir, "hits", hits, "misses", misses)
	return encodings, nil
}

// Invalidate drops all cached state for the directory.
func (c *EncodingCache) Invalidate(dir string) {
	os.Remove(c.manifestPath(dir))
	os.Remove(c.encodingsPath(dir))
}

// load reads the cached fingerprints and encodings for a directory. Any
// problem (missing file, corrupt JSON, version mismatch) yields empty maps.
func (c *EncodingCache) load(dir string) (map[string]string, map[string][][]float32) {
	manifestData, err := os.ReadFile(c.manifestPath(dir))
	if err != nil {
		return nil, nil
	}

	var m manifest
	if err := json.Unmarshal(manifestData, &m); err != nil {
		slog.Warn("discarding corrupt encoding cache manifest", "dir", dir, "err", err)
		return nil, nil
	}
	if m.Version != cacheVersion {
		slog.Info("discarding encoding cache with stale version", "dir", dir, "version", m.Version)
		return nil, nil
	}

	encodingsData, err := os.ReadFile(c.encodingsPath(dir))
	if err != nil {
		return nil, nil
	}
	var encodings map[string][][]float32
	if err := json.Unmarshal(encodingsData, &encodings); err != nil {
		slog.Warn("discarding corrupt encoding cache", "dir", dir, "err", err)
		return nil, nil
	}

	return m.Fingerprints, encodings
}

// store writes both cache files atomically via temp file and rename.
func (c *EncodingCache) store(dir string, prints map[string]string, encodings map[string][][]float32) error {
	manifestData, err := json.Marshal(manifest{Version: cacheVersion, Fingerprints: prints})
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}
	encodingsData, err := json.Marshal(encodings)
	if err != nil {
		return fmt.Errorf("failed to marshal encodings: %w", err)
	}

	if err := writeFileAtomic(c.encodingsPath(dir), encodingsData); err != nil {
		return err
	}
	// Manifest goes last: a crash between the writes leaves a stale
	// manifest pointing at fresh encodings, which only costs re-encodes.
	return writeFileAtomic(c.manifestPath(dir), manifestData)
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
