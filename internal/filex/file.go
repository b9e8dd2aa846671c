// Package filex is the client's boundary to audio files produced by the
// capture device. Paths may come as plain paths or file:// URIs.
package filex

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LocalPath strips a file:// scheme, leaving other paths untouched.
func LocalPath(uri string) string {
	if p, ok := strings.CutPrefix(uri, "file://"); ok {
		return p
	}
	return uri
}

// Exists reports whether uri points to an existing regular file.
func Exists(uri string) bool {
	if uri == "" {
		return false
	}
	fi, err := os.Stat(LocalPath(uri))
	if err != nil {
		return false
	}
	return fi.Mode().IsRegular()
}

// ReadBase64 reads the whole file and returns it standard-base64 encoded.
func ReadBase64(uri string) (string, error) {
	data, err := os.ReadFile(LocalPath(uri))
	if err != nil {
		return "", fmt.Errorf("read %s: %w", uri, err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// Ext returns the lower-cased extension of uri without the dot.
func Ext(uri string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(LocalPath(uri))), ".")
}

// EnsureDir creates dir (and parents) if needed and returns it.
func EnsureDir(dir string) (string, error) {
	if dir == "" {
		return "", errors.New("empty dir")
	}
	if err := os.MkdirAll(dir, 0o770); err != nil {
		return "", fmt.Errorf("mkdir %s: %w", dir, err)
	}
	return dir, nil
}

// RemoveWithSidecars deletes path and the given suffixed siblings
// (e.g. SQLite "-wal", "-shm"). Missing files are not an error.
func RemoveWithSidecars(path string, suffixes ...string) error {
	var errs []error
	for _, p := range append([]string{path}, withSuffixes(path, suffixes)...) {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func withSuffixes(path string, suffixes []string) []string {
	out := make([]string, 0, len(suffixes))
	for _, s := range suffixes {
		out = append(out, path+s)
	}
	return out
}
