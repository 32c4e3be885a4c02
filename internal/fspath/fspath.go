// Package fspath contains the path checks applied wherever untrusted names reach the filesystem.
package fspath

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrOutsideDirectory is returned when a path resolves outside of the directory it is checked against.
	ErrOutsideDirectory = errors.New("path is outside of directory")
	// ErrInvalidName is returned for names that cannot be used as a single path element.
	ErrInvalidName = errors.New("invalid name")
)

// HasTraversal reports whether the raw path contains a ".." element.
// Both slash styles are considered, independent of the operating system,
// as references may originate from URLs or other platforms.
func HasTraversal(path string) bool {
	for _, segment := range strings.FieldsFunc(path, func(r rune) bool { return r == '/' || r == '\\' }) {
		if segment == ".." {
			return true
		}
	}
	return false
}

// Abs resolves path against base if it is relative and cleans it.
// An empty base resolves against the process working directory.
func Abs(path, base string) (string, error) {
	if filepath.IsAbs(path) {
		return filepath.Clean(path), nil
	}
	if base == "" {
		return filepath.Abs(path)
	}
	base, err := filepath.Abs(base)
	if err != nil {
		return "", err
	}
	return filepath.Join(base, path), nil
}

// IsWithin reports whether path is dir itself or lexically located below dir.
// Both arguments are expected to be absolute and clean.
func IsWithin(path, dir string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel))
}

// EnsurePathInDirectory resolves path (relative paths against dir) and verifies that the result,
// after following symbolic links, does not leave dir.
// The returned path is absolute. Paths that do not exist yet are checked lexically.
func EnsurePathInDirectory(path, dir string) (string, error) {
	dir, err := ResolveDir(dir)
	if err != nil {
		return "", err
	}
	abs, err := Abs(path, dir)
	if err != nil {
		return "", fmt.Errorf("unable to resolve %q: %w", path, err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	switch {
	case errors.Is(err, os.ErrNotExist):
		resolved = abs
	case err != nil:
		return "", fmt.Errorf("unable to resolve %q: %w", path, err)
	}
	if !IsWithin(resolved, dir) {
		return "", fmt.Errorf("%w: %q is not within %q", ErrOutsideDirectory, path, dir)
	}
	return resolved, nil
}

// EnsurePathInAnyDirectory is EnsurePathInDirectory against a set of directories.
// Relative paths are resolved against base, not against the candidate directories.
func EnsurePathInAnyDirectory(path, base string, dirs ...string) (string, error) {
	abs, err := Abs(path, base)
	if err != nil {
		return "", fmt.Errorf("unable to resolve %q: %w", path, err)
	}
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if resolved, err := EnsurePathInDirectory(abs, dir); err == nil {
			return resolved, nil
		}
	}
	return "", fmt.Errorf("%w: %q is not within any of %v", ErrOutsideDirectory, path, dirs)
}

// ResolveDir returns the absolute, symlink free form of dir.
func ResolveDir(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("unable to get absolute path of %q: %w", dir, err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", fmt.Errorf("unable to resolve %q: %w", dir, err)
	}
	return resolved, nil
}

// SanitizeName checks that name can be used as a single, visible element of a path.
func SanitizeName(name string) (string, error) {
	switch {
	case name == "", name == ".", name == "..":
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	case strings.ContainsAny(name, `/\`), strings.ContainsRune(name, 0):
		return "", fmt.Errorf("%w: %q contains a path separator", ErrInvalidName, name)
	case strings.HasPrefix(name, "."):
		return "", fmt.Errorf("%w: %q is hidden", ErrInvalidName, name)
	}
	return name, nil
}

// CleanEntryName validates the name of an entry read from an archive and returns it in
// slash separated, cleaned form relative to the extraction root.
// Absolute names, volume names and names that climb out of the root are rejected.
func CleanEntryName(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("%w: empty entry name", ErrInvalidName)
	}
	slashed := strings.ReplaceAll(name, `\`, "/")
	if strings.HasPrefix(slashed, "/") || filepath.VolumeName(name) != "" || HasTraversal(slashed) {
		return "", fmt.Errorf("%w: entry %q escapes the extraction root", ErrOutsideDirectory, name)
	}
	cleaned := filepath.ToSlash(filepath.Clean(filepath.FromSlash(slashed)))
	if cleaned == "." {
		return "", nil
	}
	return cleaned, nil
}
