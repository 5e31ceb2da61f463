//go:build (linux && cgofuse) || (darwin && cgofuse) || windows
// +build linux,cgofuse darwin,cgofuse windows

package mount

import (
	"context"

	"github.com/winfsp/cgofuse/fuse"

	"github.com/vfskit/vfskit/pkg/errors"
	"github.com/vfskit/vfskit/pkg/vfs"
)

// cgofuseFS implements the path-keyed cgofuse callbacks on top of the
// bridge. The same implementation backs the POSIX fallback driver and the
// WinFsp driver; only the surrounding adapters differ. Every callback
// receives the path, so file handles carry no state and Open hands out a
// constant. cgofuse invokes callbacks from multiple OS threads; all mutable
// state lives inside the bridge.
type cgofuseFS struct {
	fuse.FileSystemBase
	br *bridge
}

func newCgofuseFS(br *bridge) *cgofuseFS {
	return &cgofuseFS{br: br}
}

// errnoOf translates a bridge error into a negative cgofuse errno.
func errnoOf(err error) int {
	switch errors.CodeOf(err) {
	case errors.ErrCodeFileNotFound:
		return -fuse.ENOENT
	case errors.ErrCodeFileExists:
		return -fuse.EEXIST
	case errors.ErrCodeIsDirectory:
		return -fuse.EISDIR
	case errors.ErrCodeNotDirectory:
		return -fuse.ENOTDIR
	case errors.ErrCodeNotEmpty:
		return -fuse.ENOTEMPTY
	case errors.ErrCodeReadOnly:
		return -fuse.EROFS
	default:
		return -fuse.EIO
	}
}

func fillCgoStat(st StatInfo, stat *fuse.Stat_t) {
	if st.IsDir() {
		stat.Mode = fuse.S_IFDIR | (st.Mode &^ modeTypeMask)
	} else {
		stat.Mode = fuse.S_IFREG | (st.Mode &^ modeTypeMask)
	}
	stat.Ino = st.Ino
	stat.Nlink = st.Nlink
	stat.Uid = st.UID
	stat.Gid = st.GID
	stat.Size = st.Size
	stat.Blksize = 4096
	stat.Blocks = st.Blocks()
	stat.Atim = fuse.NewTimespec(st.Atime)
	stat.Mtim = fuse.NewTimespec(st.Mtime)
	stat.Ctim = fuse.NewTimespec(st.Ctime)
}

func (fs *cgofuseFS) Getattr(path string, stat *fuse.Stat_t, fh uint64) int {
	st, err := fs.br.stat(context.Background(), path)
	if err != nil {
		return errnoOf(err)
	}
	fillCgoStat(st, stat)
	return 0
}

func (fs *cgofuseFS) Open(path string, flags int) (int, uint64) {
	st, err := fs.br.stat(context.Background(), path)
	if err != nil {
		return errnoOf(err), ^uint64(0)
	}
	if st.IsDir() {
		return -fuse.EISDIR, ^uint64(0)
	}
	return 0, 0
}

func (fs *cgofuseFS) Create(path string, flags int, mode uint32) (int, uint64) {
	if err := fs.br.createEntry(context.Background(), path, false); err != nil {
		return errnoOf(err), ^uint64(0)
	}
	return 0, 0
}

func (fs *cgofuseFS) Release(path string, fh uint64) int {
	return 0
}

func (fs *cgofuseFS) Read(path string, buff []byte, ofst int64, fh uint64) int {
	data, err := fs.br.readData(context.Background(), path, ofst, len(buff))
	if err != nil {
		return errnoOf(err)
	}
	return copy(buff, data)
}

func (fs *cgofuseFS) Write(path string, buff []byte, ofst int64, fh uint64) int {
	n, err := fs.br.writeData(context.Background(), path, buff, ofst)
	if err != nil {
		return errnoOf(err)
	}
	return n
}

func (fs *cgofuseFS) Truncate(path string, size int64, fh uint64) int {
	if err := fs.br.truncate(context.Background(), path, size); err != nil {
		return errnoOf(err)
	}
	return 0
}

func (fs *cgofuseFS) Mkdir(path string, mode uint32) int {
	if err := fs.br.createEntry(context.Background(), path, true); err != nil {
		return errnoOf(err)
	}
	return 0
}

func (fs *cgofuseFS) Unlink(path string) int {
	// Delete in two steps so a doomed delete is refused before anything
	// is touched. WinFsp probes deletability this way during CleanupFile.
	if err := fs.br.canDelete(context.Background(), path, false); err != nil {
		return errnoOf(err)
	}
	if err := fs.br.deleteEntry(context.Background(), path, false); err != nil {
		return errnoOf(err)
	}
	return 0
}

func (fs *cgofuseFS) Rmdir(path string) int {
	if err := fs.br.canDelete(context.Background(), path, true); err != nil {
		return errnoOf(err)
	}
	if err := fs.br.deleteEntry(context.Background(), path, true); err != nil {
		return errnoOf(err)
	}
	return 0
}

// Rename is not part of the storage contract yet.
func (fs *cgofuseFS) Rename(oldpath string, newpath string) int {
	return -fuse.ENOSYS
}

func (fs *cgofuseFS) Opendir(path string) (int, uint64) {
	if _, err := fs.br.listChildren(context.Background(), path); err != nil {
		return errnoOf(err), ^uint64(0)
	}
	return 0, 0
}

func (fs *cgofuseFS) Releasedir(path string, fh uint64) int {
	return 0
}

// Readdir returns the whole listing in one page. The fill callback is
// invoked with offset 0, which tells cgofuse to manage offsets itself.
func (fs *cgofuseFS) Readdir(path string, fill func(name string, stat *fuse.Stat_t, ofst int64) bool, ofst int64, fh uint64) int {
	names, err := fs.br.listChildren(context.Background(), path)
	if err != nil {
		return errnoOf(err)
	}

	fill(".", nil, 0)
	fill("..", nil, 0)
	for _, name := range names {
		var stat fuse.Stat_t
		st, serr := fs.br.stat(context.Background(), vfs.Join(vfs.Normalize(path), name))
		if serr != nil {
			continue
		}
		fillCgoStat(st, &stat)
		if !fill(name, &stat, 0) {
			break
		}
	}
	return 0
}

func (fs *cgofuseFS) Statfs(path string, stat *fuse.Statfs_t) int {
	const totalBlocks = 1 << 30
	stat.Bsize = 4096
	stat.Frsize = 4096
	stat.Blocks = totalBlocks
	stat.Bfree = totalBlocks / 2
	stat.Bavail = totalBlocks / 2
	stat.Files = uint64(fs.br.inodes.len())
	stat.Ffree = 1 << 20
	stat.Namemax = 255
	return 0
}
