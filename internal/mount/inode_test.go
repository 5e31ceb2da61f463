package mount

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootInodePreSeeded(t *testing.T) {
	tbl := newInodeTable()

	assert.Equal(t, uint64(rootInode), tbl.assign("/"))
	path, ok := tbl.lookup(rootInode)
	require.True(t, ok)
	assert.Equal(t, "/", path)
	assert.Equal(t, 1, tbl.len())
}

func TestAssignIsStable(t *testing.T) {
	tbl := newInodeTable()

	a := tbl.assign("/a/b")
	b := tbl.assign("/a/b")
	assert.Equal(t, a, b)
	assert.Greater(t, a, uint64(rootInode))
}

func TestAssignIsInjective(t *testing.T) {
	tbl := newInodeTable()
	seen := make(map[uint64]string)

	for i := 0; i < 10000; i++ {
		path := fmt.Sprintf("/dir/file-%d", i)
		ino := tbl.assign(path)
		if prev, dup := seen[ino]; dup {
			t.Fatalf("inode %d assigned to both %s and %s", ino, prev, path)
		}
		seen[ino] = path
	}
}

func TestLookupRoundTrip(t *testing.T) {
	tbl := newInodeTable()

	ino := tbl.assign("/x/y/z")
	path, ok := tbl.lookup(ino)
	require.True(t, ok)
	assert.Equal(t, "/x/y/z", path)

	_, ok = tbl.lookup(ino + 12345)
	assert.False(t, ok)
}

func TestForget(t *testing.T) {
	tbl := newInodeTable()

	ino := tbl.assign("/gone")
	tbl.forget("/gone")

	_, ok := tbl.lookup(ino)
	assert.False(t, ok)
	assert.Equal(t, 1, tbl.len())

	// Forgetting the root is refused.
	tbl.forget("/")
	path, ok := tbl.lookup(rootInode)
	require.True(t, ok)
	assert.Equal(t, "/", path)
}

func TestConcurrentAssign(t *testing.T) {
	tbl := newInodeTable()
	var wg sync.WaitGroup

	results := make([][]uint64, 8)
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			out := make([]uint64, 100)
			for i := 0; i < 100; i++ {
				out[i] = tbl.assign(fmt.Sprintf("/shared/%d", i))
			}
			results[g] = out
		}(g)
	}
	wg.Wait()

	for g := 1; g < 8; g++ {
		assert.Equal(t, results[0], results[g])
	}
}
