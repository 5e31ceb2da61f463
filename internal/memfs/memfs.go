// Package memfs is an in-memory storage provider implementing the vfs
// contract. It is the default backend for examples and the fixture backend
// for the mount bridge tests. Errors are deliberately plain (not vfskit
// structured errors) so the bridge's coercion to the errno vocabulary is
// exercised for real.
package memfs

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/vfskit/vfskit/pkg/vfs"
)

type node struct {
	dir      bool
	data     []byte
	children map[string]struct{}
}

// FS is a map-backed file tree. All operations are guarded by a single
// RWMutex; individual operations are atomic but sequences are not.
type FS struct {
	mu    sync.RWMutex
	nodes map[string]*node
}

// New returns an empty filesystem containing only the root directory.
func New() *FS {
	return &FS{
		nodes: map[string]*node{
			"/": {dir: true, children: make(map[string]struct{})},
		},
	}
}

// Exists implements vfs.FileSystem.
func (f *FS) Exists(ctx context.Context, path string) (bool, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	_, ok := f.nodes[vfs.Normalize(path)]
	return ok, nil
}

// IsDir implements vfs.FileSystem.
func (f *FS) IsDir(ctx context.Context, path string) (bool, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	n, ok := f.nodes[vfs.Normalize(path)]
	if !ok {
		return false, fmt.Errorf("memfs: %s does not exist", path)
	}
	return n.dir, nil
}

// ReadFile implements vfs.FileSystem.
func (f *FS) ReadFile(ctx context.Context, path string) ([]byte, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	n, ok := f.nodes[vfs.Normalize(path)]
	if !ok {
		return nil, fmt.Errorf("memfs: %s does not exist", path)
	}
	if n.dir {
		return nil, fmt.Errorf("memfs: %s is a directory", path)
	}
	out := make([]byte, len(n.data))
	copy(out, n.data)
	return out, nil
}

// WriteFile implements vfs.FileSystem. The parent directory must already
// exist; intermediate directories are never created implicitly.
func (f *FS) WriteFile(ctx context.Context, path string, data []byte) error {
	p := vfs.Normalize(path)
	if p == "/" {
		return fmt.Errorf("memfs: cannot write to the root")
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if n, ok := f.nodes[p]; ok {
		if n.dir {
			return fmt.Errorf("memfs: %s is a directory", path)
		}
		n.data = append([]byte(nil), data...)
		return nil
	}

	parent, ok := f.nodes[vfs.Parent(p)]
	if !ok || !parent.dir {
		return fmt.Errorf("memfs: parent of %s does not exist", path)
	}

	f.nodes[p] = &node{data: append([]byte(nil), data...)}
	parent.children[vfs.Base(p)] = struct{}{}
	return nil
}

// List implements vfs.FileSystem. Names are returned sorted for stable
// directory enumeration.
func (f *FS) List(ctx context.Context, path string) ([]string, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	n, ok := f.nodes[vfs.Normalize(path)]
	if !ok {
		return nil, fmt.Errorf("memfs: %s does not exist", path)
	}
	if !n.dir {
		return nil, fmt.Errorf("memfs: %s is not a directory", path)
	}

	names := make([]string, 0, len(n.children))
	for name := range n.children {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// MakeDir implements vfs.FileSystem.
func (f *FS) MakeDir(ctx context.Context, path string) error {
	p := vfs.Normalize(path)
	if p == "/" {
		return fmt.Errorf("memfs: root already exists")
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.nodes[p]; ok {
		return fmt.Errorf("memfs: %s already exists", path)
	}
	parent, ok := f.nodes[vfs.Parent(p)]
	if !ok || !parent.dir {
		return fmt.Errorf("memfs: parent of %s does not exist", path)
	}

	f.nodes[p] = &node{dir: true, children: make(map[string]struct{})}
	parent.children[vfs.Base(p)] = struct{}{}
	return nil
}

// Remove implements vfs.FileSystem. Removing a non-empty directory fails;
// the bridge performs its own emptiness pre-check but the provider enforces
// it too so it cannot be bypassed.
func (f *FS) Remove(ctx context.Context, path string) error {
	p := vfs.Normalize(path)
	if p == "/" {
		return fmt.Errorf("memfs: cannot remove the root")
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	n, ok := f.nodes[p]
	if !ok {
		return fmt.Errorf("memfs: %s does not exist", path)
	}
	if n.dir && len(n.children) > 0 {
		return fmt.Errorf("memfs: %s is not empty", path)
	}

	delete(f.nodes, p)
	if parent, ok := f.nodes[vfs.Parent(p)]; ok {
		delete(parent.children, vfs.Base(p))
	}
	return nil
}
