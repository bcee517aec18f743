package asset

import (
	"fmt"
	"net/url"
	"path/filepath"
)

// FileURL returns the file:// URL of an absolute path.
func FileURL(path string) string {
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(path)}).String()
}

// Locator turns an absolute file path or an absolute URL into a media
// locator. Relative paths and URLs without a scheme are rejected.
func Locator(raw string) (string, error) {
	if filepath.IsAbs(raw) {
		return FileURL(raw), nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse uri %q: %w", raw, err)
	}
	if u.Scheme == "" {
		return "", fmt.Errorf("uri %q has no scheme", raw)
	}
	return u.String(), nil
}
