package mount

import (
	"hash/fnv"
	"sync"
)

// rootInode is the identity reserved for the VFS root by every kernel
// driver protocol vfskit speaks.
const rootInode = 1

// inodeTable is the bidirectional path-to-identity map. Identities are
// derived from a hash of the path the first time a path is resolved and
// stay stable for the lifetime of the mount; reverse lookup is O(1).
// Collisions are resolved by linear probing at assignment time, which is
// what makes the forward mapping injective.
type inodeTable struct {
	mu     sync.RWMutex
	byPath map[string]uint64
	byIno  map[uint64]string
}

func newInodeTable() *inodeTable {
	return &inodeTable{
		byPath: map[string]uint64{"/": rootInode},
		byIno:  map[uint64]string{rootInode: "/"},
	}
}

// assign returns the identity for a normalized path, allocating one on
// first use.
func (t *inodeTable) assign(path string) uint64 {
	t.mu.RLock()
	ino, ok := t.byPath[path]
	t.mu.RUnlock()
	if ok {
		return ino
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if ino, ok = t.byPath[path]; ok {
		return ino
	}

	ino = hashPath(path)
	for {
		if ino <= rootInode {
			ino = rootInode + 1
		}
		if _, taken := t.byIno[ino]; !taken {
			break
		}
		ino++
	}

	t.byPath[path] = ino
	t.byIno[ino] = path
	return ino
}

// lookup recovers the path for an identity.
func (t *inodeTable) lookup(ino uint64) (string, bool) {
	if ino == rootInode {
		return "/", true
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	path, ok := t.byIno[ino]
	return path, ok
}

// forget drops a path's mapping after the entry is deleted. The root is
// never forgotten.
func (t *inodeTable) forget(path string) {
	if path == "/" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if ino, ok := t.byPath[path]; ok {
		delete(t.byPath, path)
		delete(t.byIno, ino)
	}
}

// len reports the number of live mappings, root included.
func (t *inodeTable) len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.byPath)
}

func hashPath(path string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(path))
	return h.Sum64()
}
