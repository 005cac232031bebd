// Package filex has small filesystem helpers for the on-disk image store.
package filex

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrUnsafePath is returned when a path element would escape its root.
var ErrUnsafePath = errors.New("unsafe path")

// EnsureDir creates dir (and parents) if needed and returns its absolute
// path. Relative paths are resolved against the working directory.
func EnsureDir(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("abs %s: %w", dir, err)
	}

	if err := os.MkdirAll(abs, 0o770); err != nil {
		return "", fmt.Errorf("mkdir %s: %w", abs, err)
	}

	return abs, nil
}

// SafeJoin joins elems under root. Every element must be a single, plain
// name: separators, "." and ".." are rejected.
func SafeJoin(root string, elems ...string) (string, error) {
	parts := make([]string, 0, len(elems)+1)
	parts = append(parts, root)
	for _, e := range elems {
		if e == "" || e == "." || e == ".." || strings.ContainsAny(e, `/\`) || strings.ContainsRune(e, 0) {
			return "", fmt.Errorf("%w: %q", ErrUnsafePath, e)
		}
		parts = append(parts, e)
	}
	return filepath.Join(parts...), nil
}
