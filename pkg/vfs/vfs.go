// Package vfs defines the storage contract consumed by the mount bridge.
// A FileSystem is a path-addressable file/directory model; implementations
// range from a simple in-memory tree to remote object stores. The mount
// bridge talks to storage exclusively through this interface so that
// platform-specific driver code never depends on a concrete provider.
package vfs

import (
	"context"
	"strings"
)

// FileSystem is the minimal contract a storage provider must implement to be
// mountable. All paths are VFS-style absolute paths: `/`-separated with no
// platform-specific escaping. Implementations document their own concurrency
// discipline; the mount bridge adds no locking of its own, so concurrent
// writers to the same path race at whole-file granularity.
type FileSystem interface {
	// Exists reports whether the path refers to a file or directory.
	Exists(ctx context.Context, path string) (bool, error)

	// IsDir reports whether the path refers to a directory.
	IsDir(ctx context.Context, path string) (bool, error)

	// ReadFile returns the full content of a file.
	ReadFile(ctx context.Context, path string) ([]byte, error)

	// WriteFile replaces the full content of a file, creating it if absent.
	// The parent directory must exist.
	WriteFile(ctx context.Context, path string, data []byte) error

	// List returns the names of the immediate children of a directory,
	// without any synthetic "." or ".." entries.
	List(ctx context.Context, path string) ([]string, error)

	// MakeDir creates an empty directory. The parent must exist.
	MakeDir(ctx context.Context, path string) error

	// Remove deletes a file or an empty directory.
	Remove(ctx context.Context, path string) error
}

// Normalize converts a driver-supplied path into a VFS path: a single
// leading separator is stripped and exactly one is re-added, so "", "/" and
// "a/b" all come out as rooted paths.
func Normalize(path string) string {
	path = strings.TrimPrefix(path, "/")
	if path == "" {
		return "/"
	}
	return "/" + path
}

// Join appends a child name to a normalized parent path.
func Join(parent, name string) string {
	if parent == "/" || parent == "" {
		return "/" + name
	}
	return parent + "/" + name
}

// Parent returns the parent of a normalized path; the root is its own parent.
func Parent(path string) string {
	if path == "/" || path == "" {
		return "/"
	}
	idx := strings.LastIndex(path, "/")
	if idx <= 0 {
		return "/"
	}
	return path[:idx]
}

// Base returns the final element of a path. Providers are expected to return
// bare child names from List, but some return full paths; Base makes the
// bridge tolerant of both.
func Base(path string) string {
	path = strings.TrimSuffix(path, "/")
	if path == "" {
		return "/"
	}
	if idx := strings.LastIndex(path, "/"); idx >= 0 {
		return path[idx+1:]
	}
	return path
}
