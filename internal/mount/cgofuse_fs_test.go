//go:build (linux && cgofuse) || (darwin && cgofuse) || windows
// +build linux,cgofuse darwin,cgofuse windows

package mount

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/winfsp/cgofuse/fuse"

	"github.com/vfskit/vfskit/internal/memfs"
	"github.com/vfskit/vfskit/pkg/errors"
)

func newTestCgofuseFS(t *testing.T) *cgofuseFS {
	t.Helper()
	fs := memfs.New()
	ctx := context.Background()
	require.NoError(t, fs.MakeDir(ctx, "/docs"))
	require.NoError(t, fs.WriteFile(ctx, "/docs/readme.txt", []byte("hello world")))
	return newCgofuseFS(newBridge(fs, DefaultOptions(), nil, 1000, 1000))
}

func TestErrnoOf(t *testing.T) {
	cases := []struct {
		code errors.ErrorCode
		want int
	}{
		{errors.ErrCodeFileNotFound, -fuse.ENOENT},
		{errors.ErrCodeFileExists, -fuse.EEXIST},
		{errors.ErrCodeIsDirectory, -fuse.EISDIR},
		{errors.ErrCodeNotDirectory, -fuse.ENOTDIR},
		{errors.ErrCodeNotEmpty, -fuse.ENOTEMPTY},
		{errors.ErrCodeReadOnly, -fuse.EROFS},
		{errors.ErrCodeIO, -fuse.EIO},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, errnoOf(errors.New(tc.code, "x")), "code %s", tc.code)
	}
	assert.Equal(t, -fuse.EIO, errnoOf(fmt.Errorf("raw")))
}

func TestCgoGetattr(t *testing.T) {
	fs := newTestCgofuseFS(t)

	var stat fuse.Stat_t
	require.Equal(t, 0, fs.Getattr("/docs/readme.txt", &stat, 0))
	assert.Equal(t, uint32(fuse.S_IFREG|0o644), stat.Mode)
	assert.Equal(t, int64(len("hello world")), stat.Size)

	require.Equal(t, 0, fs.Getattr("/docs", &stat, 0))
	assert.Equal(t, uint32(fuse.S_IFDIR|0o755), stat.Mode)

	assert.Equal(t, -fuse.ENOENT, fs.Getattr("/nope", &stat, 0))
}

func TestCgoOpenHandlesAreConstant(t *testing.T) {
	fs := newTestCgofuseFS(t)

	// The protocol hands the path to every callback, so handles carry no
	// state and repeated opens share the same constant.
	errc, fh1 := fs.Open("/docs/readme.txt", 0)
	require.Equal(t, 0, errc)
	errc, fh2 := fs.Open("/docs/readme.txt", 0)
	require.Equal(t, 0, errc)
	assert.Equal(t, fh1, fh2)
	assert.Equal(t, 0, fs.Release("/docs/readme.txt", fh1))

	errc, _ = fs.Open("/docs", 0)
	assert.Equal(t, -fuse.EISDIR, errc)
}

func TestCgoReadWrite(t *testing.T) {
	fs := newTestCgofuseFS(t)

	buf := make([]byte, 5)
	n := fs.Read("/docs/readme.txt", buf, 0, 0)
	require.Equal(t, 5, n)
	assert.Equal(t, []byte("hello"), buf)

	n = fs.Write("/docs/readme.txt", []byte("HELLO"), 0, 0)
	require.Equal(t, 5, n)
	n = fs.Read("/docs/readme.txt", buf, 0, 0)
	require.Equal(t, 5, n)
	assert.Equal(t, []byte("HELLO"), buf)

	assert.Equal(t, -fuse.ENOENT, fs.Read("/gone", buf, 0, 0))
}

func TestCgoCreateAndDelete(t *testing.T) {
	fs := newTestCgofuseFS(t)

	errc, _ := fs.Create("/new.txt", 0, 0o644)
	require.Equal(t, 0, errc)
	errc, _ = fs.Create("/new.txt", 0, 0o644)
	assert.Equal(t, -fuse.EEXIST, errc)

	require.Equal(t, 0, fs.Mkdir("/sub", 0o755))

	assert.Equal(t, -fuse.ENOTEMPTY, fs.Rmdir("/docs"))
	assert.Equal(t, -fuse.EISDIR, fs.Unlink("/sub"))
	assert.Equal(t, -fuse.ENOTDIR, fs.Rmdir("/new.txt"))

	assert.Equal(t, 0, fs.Unlink("/new.txt"))
	assert.Equal(t, 0, fs.Rmdir("/sub"))
}

func TestCgoTruncate(t *testing.T) {
	fs := newTestCgofuseFS(t)

	require.Equal(t, 0, fs.Truncate("/docs/readme.txt", 5, 0))
	var stat fuse.Stat_t
	require.Equal(t, 0, fs.Getattr("/docs/readme.txt", &stat, 0))
	assert.Equal(t, int64(5), stat.Size)

	assert.Equal(t, -fuse.ENOENT, fs.Truncate("/gone", 0, 0))
}

func TestCgoRenameUnsupported(t *testing.T) {
	fs := newTestCgofuseFS(t)
	assert.Equal(t, -fuse.ENOSYS, fs.Rename("/docs/readme.txt", "/docs/renamed.txt"))
}

func TestCgoReaddir(t *testing.T) {
	fs := newTestCgofuseFS(t)

	var names []string
	fill := func(name string, stat *fuse.Stat_t, ofst int64) bool {
		names = append(names, name)
		return true
	}
	require.Equal(t, 0, fs.Readdir("/", fill, 0, 0))
	assert.Equal(t, []string{".", "..", "docs"}, names)

	assert.Equal(t, -fuse.ENOTDIR, fs.Readdir("/docs/readme.txt", fill, 0, 0))
}

func TestCgoStatfs(t *testing.T) {
	fs := newTestCgofuseFS(t)

	var stat fuse.Statfs_t
	require.Equal(t, 0, fs.Statfs("/", &stat))
	assert.NotZero(t, stat.Blocks)
	assert.Equal(t, uint64(4096), stat.Bsize)
}
