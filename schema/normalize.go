package schema

import (
	"path"
	"strings"
)

// NormalizePath converts a path to forward slashes and cleans redundant
// separators and dot segments. Empty input yields ".".
func NormalizePath(p string) string {
	cleaned := path.Clean(strings.ReplaceAll(p, "\\", "/"))
	if cleaned == "" {
		return "."
	}
	return cleaned
}

// SplitPath returns the normalized segments of a path. Root and empty
// paths yield no segments.
func SplitPath(p string) []string {
	cleaned := NormalizePath(p)
	cleaned = strings.Trim(cleaned, "/")
	if cleaned == "" || cleaned == "." {
		return nil
	}
	return strings.Split(cleaned, "/")
}

// ValidateName ensures a file or directory name contains no separators
// and is not a traversal segment.
func ValidateName(name string) error {
	if name == "" {
		return ErrInvalidName
	}
	if strings.TrimSpace(name) != name {
		return ErrInvalidName
	}
	if name == "." || name == ".." {
		return ErrInvalidName
	}
	if strings.ContainsAny(name, "/\\") {
		return ErrInvalidName
	}
	return nil
}
