//go:build linux || darwin
// +build linux darwin

package mount

import (
	"context"
	"log"
	"syscall"

	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/vfskit/vfskit/internal/metrics"
	"github.com/vfskit/vfskit/pkg/errors"
	"github.com/vfskit/vfskit/pkg/vfs"
)

// fuseAdapter drives the kernel FUSE protocol through go-fuse's raw server.
// The server runs one cooperative loop in a background goroutine; Unmount
// asks the kernel to detach and then joins that goroutine.
type fuseAdapter struct {
	lifecycle
	br         *bridge
	mountPoint string
	opts       *MountOptions
	collector  *metrics.Collector
	server     *fuse.Server
	done       chan struct{}
}

func newFUSEAdapter(fsys vfs.FileSystem, mountPoint string, opts *MountOptions, collector *metrics.Collector) *fuseAdapter {
	uid, gid := currentOwner()
	return &fuseAdapter{
		br:         newBridge(fsys, opts, collector, uid, gid),
		mountPoint: mountPoint,
		opts:       opts,
		collector:  collector,
	}
}

func (a *fuseAdapter) MountPoint() string { return a.mountPoint }
func (a *fuseAdapter) IsMounted() bool    { return a.isMounted() }

func (a *fuseAdapter) Mount(ctx context.Context) error {
	if err := a.beginMount(a.mountPoint); err != nil {
		return err
	}

	if err := ensureMountPoint(a.mountPoint); err != nil {
		a.completeMount(false)
		return errors.Newf(errors.ErrCodeMountFailed, "failed to create mount point %s", a.mountPoint).WithCause(err)
	}

	mountOpts := &fuse.MountOptions{
		FsName:       "vfskit",
		Name:         "vfskit",
		AllowOther:   a.opts.AllowOther,
		Debug:        a.opts.Debug,
		MaxWrite:     a.opts.MaxWrite,
		MaxReadAhead: a.opts.MaxRead,
	}
	if a.opts.ReadOnly {
		mountOpts.Options = append(mountOpts.Options, "ro")
	}

	server, err := fuse.NewServer(newRawFS(a.br, a.opts), a.mountPoint, mountOpts)
	if err != nil {
		a.completeMount(false)
		return errors.Newf(errors.ErrCodeMountFailed, "failed to mount at %s", a.mountPoint).WithCause(err)
	}

	a.server = server
	a.done = make(chan struct{})
	go func() {
		server.Serve()
		close(a.done)
		a.noteServeExit()
	}()

	if err := server.WaitMount(); err != nil {
		_ = server.Unmount()
		<-a.done
		a.server = nil
		a.completeMount(false)
		return errors.Newf(errors.ErrCodeMountFailed, "mount at %s did not become ready", a.mountPoint).WithCause(err)
	}

	a.completeMount(true)
	a.collector.MountStarted()
	log.Printf("mount: fuse filesystem mounted at %s", a.mountPoint)
	return nil
}

// noteServeExit records an externally initiated unmount. When the serve
// loop exits without Unmount having claimed the transition, someone detached
// the mount behind our back (fusermount -u, umount) and the adapter must not
// keep reporting mounted.
func (a *fuseAdapter) noteServeExit() {
	if a.beginUnmount() {
		a.completeUnmount(true)
		a.collector.MountStopped()
		log.Printf("mount: fuse filesystem at %s detached externally", a.mountPoint)
	}
}

func (a *fuseAdapter) Unmount(ctx context.Context) error {
	if !a.beginUnmount() {
		return nil
	}

	if err := a.server.Unmount(); err != nil {
		select {
		case <-a.done:
			// The kernel detached the mount first; nothing left to force.
		default:
			log.Printf("mount: graceful unmount of %s failed, forcing: %v", a.mountPoint, err)
			if ferr := syscall.Unmount(a.mountPoint, 0); ferr != nil {
				a.completeUnmount(false)
				return errors.Newf(errors.ErrCodeUnmountFailed, "failed to unmount %s", a.mountPoint).WithCause(err)
			}
		}
	}

	select {
	case <-a.done:
	case <-ctx.Done():
		a.completeUnmount(false)
		return errors.Newf(errors.ErrCodeUnmountFailed, "serve loop for %s did not exit", a.mountPoint).WithCause(ctx.Err())
	}

	a.server = nil
	a.completeUnmount(true)
	a.collector.MountStopped()
	log.Printf("mount: fuse filesystem unmounted from %s", a.mountPoint)
	return nil
}

func (a *fuseAdapter) Serve(ctx context.Context) error {
	if err := a.Mount(ctx); err != nil {
		return err
	}
	select {
	case <-a.done:
		return nil
	case <-ctx.Done():
		return a.Unmount(context.Background())
	}
}

// rawFS implements the inode-keyed raw FUSE callbacks on top of the bridge.
// Unimplemented callbacks fall through to the embedded default, which
// answers ENOSYS; that covers rename, links, and xattrs.
type rawFS struct {
	fuse.RawFileSystem
	br   *bridge
	opts *MountOptions
}

func newRawFS(br *bridge, opts *MountOptions) *rawFS {
	return &rawFS{
		RawFileSystem: fuse.NewDefaultRawFileSystem(),
		br:            br,
		opts:          opts,
	}
}

// errnoStatus translates a bridge error into the wire status.
func errnoStatus(err error) fuse.Status {
	switch errors.CodeOf(err) {
	case errors.ErrCodeFileNotFound:
		return fuse.ENOENT
	case errors.ErrCodeFileExists:
		return fuse.Status(syscall.EEXIST)
	case errors.ErrCodeIsDirectory:
		return fuse.EISDIR
	case errors.ErrCodeNotDirectory:
		return fuse.ENOTDIR
	case errors.ErrCodeNotEmpty:
		return fuse.Status(syscall.ENOTEMPTY)
	case errors.ErrCodeReadOnly:
		return fuse.EROFS
	default:
		return fuse.EIO
	}
}

func fillAttr(st StatInfo, out *fuse.Attr) {
	out.Ino = st.Ino
	out.Size = uint64(st.Size)
	out.Blocks = uint64(st.Blocks())
	out.Mode = st.Mode
	out.Nlink = st.Nlink
	out.Owner = fuse.Owner{Uid: st.UID, Gid: st.GID}
	out.Blksize = 4096
	atime, mtime, ctime := st.Atime, st.Mtime, st.Ctime
	out.SetTimes(&atime, &mtime, &ctime)
}

// path recovers the VFS path for a kernel node id.
func (fs *rawFS) path(nodeid uint64) (string, fuse.Status) {
	p, ok := fs.br.inodes.lookup(nodeid)
	if !ok {
		return "", fuse.ENOENT
	}
	return p, fuse.OK
}

func (fs *rawFS) fillEntry(st StatInfo, out *fuse.EntryOut) {
	out.NodeId = st.Ino
	fillAttr(st, &out.Attr)
	out.SetEntryTimeout(fs.opts.CacheTimeout)
	out.SetAttrTimeout(fs.opts.CacheTimeout)
}

func (fs *rawFS) Lookup(cancel <-chan struct{}, header *fuse.InHeader, name string, out *fuse.EntryOut) fuse.Status {
	parent, status := fs.path(header.NodeId)
	if status != fuse.OK {
		return status
	}
	st, err := fs.br.stat(context.Background(), vfs.Join(parent, name))
	if err != nil {
		return errnoStatus(err)
	}
	fs.fillEntry(st, out)
	return fuse.OK
}

func (fs *rawFS) GetAttr(cancel <-chan struct{}, input *fuse.GetAttrIn, out *fuse.AttrOut) fuse.Status {
	p, status := fs.path(input.NodeId)
	if status != fuse.OK {
		return status
	}
	st, err := fs.br.stat(context.Background(), p)
	if err != nil {
		return errnoStatus(err)
	}
	fillAttr(st, &out.Attr)
	out.SetTimeout(fs.opts.CacheTimeout)
	return fuse.OK
}

func (fs *rawFS) SetAttr(cancel <-chan struct{}, input *fuse.SetAttrIn, out *fuse.AttrOut) fuse.Status {
	p, status := fs.path(input.NodeId)
	if status != fuse.OK {
		return status
	}
	if size, ok := input.GetSize(); ok {
		if err := fs.br.truncate(context.Background(), p, int64(size)); err != nil {
			return errnoStatus(err)
		}
	}
	// Mode, owner, and timestamp changes are accepted and dropped since the
	// storage contract does not persist them.
	st, err := fs.br.stat(context.Background(), p)
	if err != nil {
		return errnoStatus(err)
	}
	fillAttr(st, &out.Attr)
	out.SetTimeout(fs.opts.CacheTimeout)
	return fuse.OK
}

func (fs *rawFS) Open(cancel <-chan struct{}, input *fuse.OpenIn, out *fuse.OpenOut) fuse.Status {
	p, status := fs.path(input.NodeId)
	if status != fuse.OK {
		return status
	}
	st, err := fs.br.stat(context.Background(), p)
	if err != nil {
		return errnoStatus(err)
	}
	if st.IsDir() {
		return fuse.EISDIR
	}
	out.Fh = input.NodeId
	return fuse.OK
}

func (fs *rawFS) Read(cancel <-chan struct{}, input *fuse.ReadIn, buf []byte) (fuse.ReadResult, fuse.Status) {
	p, status := fs.path(input.NodeId)
	if status != fuse.OK {
		return nil, status
	}
	data, err := fs.br.readData(context.Background(), p, int64(input.Offset), int(input.Size))
	if err != nil {
		return nil, errnoStatus(err)
	}
	return fuse.ReadResultData(data), fuse.OK
}

func (fs *rawFS) Write(cancel <-chan struct{}, input *fuse.WriteIn, data []byte) (uint32, fuse.Status) {
	p, status := fs.path(input.NodeId)
	if status != fuse.OK {
		return 0, status
	}
	n, err := fs.br.writeData(context.Background(), p, data, int64(input.Offset))
	if err != nil {
		return 0, errnoStatus(err)
	}
	return uint32(n), fuse.OK
}

func (fs *rawFS) Create(cancel <-chan struct{}, input *fuse.CreateIn, name string, out *fuse.CreateOut) fuse.Status {
	parent, status := fs.path(input.NodeId)
	if status != fuse.OK {
		return status
	}
	p := vfs.Join(parent, name)
	if err := fs.br.createEntry(context.Background(), p, false); err != nil {
		return errnoStatus(err)
	}
	st, err := fs.br.stat(context.Background(), p)
	if err != nil {
		return errnoStatus(err)
	}
	fs.fillEntry(st, &out.EntryOut)
	out.Fh = st.Ino
	return fuse.OK
}

func (fs *rawFS) Mkdir(cancel <-chan struct{}, input *fuse.MkdirIn, name string, out *fuse.EntryOut) fuse.Status {
	parent, status := fs.path(input.NodeId)
	if status != fuse.OK {
		return status
	}
	p := vfs.Join(parent, name)
	if err := fs.br.createEntry(context.Background(), p, true); err != nil {
		return errnoStatus(err)
	}
	st, err := fs.br.stat(context.Background(), p)
	if err != nil {
		return errnoStatus(err)
	}
	fs.fillEntry(st, out)
	return fuse.OK
}

func (fs *rawFS) Unlink(cancel <-chan struct{}, header *fuse.InHeader, name string) fuse.Status {
	parent, status := fs.path(header.NodeId)
	if status != fuse.OK {
		return status
	}
	if err := fs.br.deleteEntry(context.Background(), vfs.Join(parent, name), false); err != nil {
		return errnoStatus(err)
	}
	return fuse.OK
}

func (fs *rawFS) Rmdir(cancel <-chan struct{}, header *fuse.InHeader, name string) fuse.Status {
	parent, status := fs.path(header.NodeId)
	if status != fuse.OK {
		return status
	}
	if err := fs.br.deleteEntry(context.Background(), vfs.Join(parent, name), true); err != nil {
		return errnoStatus(err)
	}
	return fuse.OK
}

func (fs *rawFS) OpenDir(cancel <-chan struct{}, input *fuse.OpenIn, out *fuse.OpenOut) fuse.Status {
	p, status := fs.path(input.NodeId)
	if status != fuse.OK {
		return status
	}
	if _, err := fs.br.listChildren(context.Background(), p); err != nil {
		return errnoStatus(err)
	}
	out.Fh = input.NodeId
	return fuse.OK
}

// dirEntries builds the full listing for a directory, synthetic entries
// first. The kernel resumes large listings by offset, so the listing must be
// rebuilt deterministically on every call.
func (fs *rawFS) dirEntries(dir string) ([]fuse.DirEntry, fuse.Status) {
	names, err := fs.br.listChildren(context.Background(), dir)
	if err != nil {
		return nil, errnoStatus(err)
	}

	entries := make([]fuse.DirEntry, 0, len(names)+2)
	entries = append(entries,
		fuse.DirEntry{Name: ".", Mode: modeDir, Ino: fs.br.inodes.assign(dir)},
		fuse.DirEntry{Name: "..", Mode: modeDir, Ino: fs.br.inodes.assign(vfs.Parent(dir))},
	)
	for _, name := range names {
		child := vfs.Join(dir, name)
		mode := uint32(modeFile)
		if isDir, derr := fs.br.fsys.IsDir(context.Background(), child); derr == nil && isDir {
			mode = modeDir
		}
		entries = append(entries, fuse.DirEntry{
			Name: name,
			Mode: mode,
			Ino:  fs.br.inodes.assign(child),
		})
	}
	return entries, fuse.OK
}

func (fs *rawFS) ReadDir(cancel <-chan struct{}, input *fuse.ReadIn, out *fuse.DirEntryList) fuse.Status {
	p, status := fs.path(input.NodeId)
	if status != fuse.OK {
		return status
	}
	entries, status := fs.dirEntries(p)
	if status != fuse.OK {
		return status
	}
	if input.Offset >= uint64(len(entries)) {
		return fuse.OK
	}
	for _, e := range entries[input.Offset:] {
		if !out.AddDirEntry(e) {
			break
		}
	}
	return fuse.OK
}

func (fs *rawFS) ReadDirPlus(cancel <-chan struct{}, input *fuse.ReadIn, out *fuse.DirEntryList) fuse.Status {
	p, status := fs.path(input.NodeId)
	if status != fuse.OK {
		return status
	}
	entries, status := fs.dirEntries(p)
	if status != fuse.OK {
		return status
	}
	if input.Offset >= uint64(len(entries)) {
		return fuse.OK
	}
	for _, e := range entries[input.Offset:] {
		entryOut := out.AddDirLookupEntry(e)
		if entryOut == nil {
			break
		}
		if e.Name == "." || e.Name == ".." {
			continue
		}
		st, err := fs.br.stat(context.Background(), vfs.Join(p, e.Name))
		if err != nil {
			continue
		}
		entryOut.NodeId = st.Ino
		fillAttr(st, &entryOut.Attr)
		entryOut.SetEntryTimeout(fs.opts.CacheTimeout)
		entryOut.SetAttrTimeout(fs.opts.CacheTimeout)
	}
	return fuse.OK
}

func (fs *rawFS) StatFs(cancel <-chan struct{}, input *fuse.InHeader, out *fuse.StatfsOut) fuse.Status {
	// Synthetic totals. Providers have no notion of capacity, so report a
	// large constant volume that is half free.
	const totalBlocks = 1 << 30
	out.Blocks = totalBlocks
	out.Bfree = totalBlocks / 2
	out.Bavail = totalBlocks / 2
	out.Files = uint64(fs.br.inodes.len())
	out.Ffree = 1 << 20
	out.Bsize = 4096
	out.NameLen = 255
	return fuse.OK
}

func (fs *rawFS) Fsync(cancel <-chan struct{}, input *fuse.FsyncIn) fuse.Status {
	// Writes are synchronous at the provider, so there is nothing to flush.
	return fuse.OK
}

func (fs *rawFS) Flush(cancel <-chan struct{}, input *fuse.FlushIn) fuse.Status {
	return fuse.OK
}
