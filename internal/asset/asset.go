// Package asset resolves media bundled with the service under a root
// directory, optionally namespaced by package.
package asset

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
)

var (
	// ErrNotFound is returned when the asset does not exist under the root.
	ErrNotFound = errors.New("asset not found")

	// ErrOutsideRoot is returned for keys that escape the root directory.
	ErrOutsideRoot = errors.New("asset path escapes root")
)

// Resolver maps asset keys to files below Root.
type Resolver struct {
	Root string
}

// New returns a Resolver for root.
func New(root string) *Resolver {
	return &Resolver{Root: root}
}

// LookupKey returns the key of uri inside the bundle, prefixed with
// packages/<pkg>/ when a package is given.
func (r *Resolver) LookupKey(uri, pkg string) string {
	uri = strings.TrimPrefix(uri, "/")
	if pkg == "" {
		return uri
	}
	return path.Join("packages", pkg, uri)
}

// Resolve returns the absolute path of an existing asset.
func (r *Resolver) Resolve(uri, pkg string) (string, error) {
	key := r.LookupKey(uri, pkg)
	if key == "" {
		return "", fmt.Errorf("%w: empty key", ErrNotFound)
	}

	root, err := filepath.Abs(r.Root)
	if err != nil {
		return "", fmt.Errorf("resolve asset root: %w", err)
	}
	full := filepath.Join(root, filepath.FromSlash(key))
	rel, err := filepath.Rel(root, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, key)
	}

	info, err := os.Stat(full)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return "", err
	}
	if info.IsDir() {
		return "", fmt.Errorf("%w: %s is a directory", ErrNotFound, key)
	}
	return full, nil
}
