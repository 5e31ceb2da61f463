package mount

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/vfskit/vfskit/internal/metrics"
	"github.com/vfskit/vfskit/pkg/errors"
	"github.com/vfskit/vfskit/pkg/vfs"
)

// bridge is the single translation layer between driver callbacks and the
// storage contract. Every platform adapter funnels its callbacks through
// these verbs, so the semantics below are implemented exactly once.
//
// The bridge performs its own existence and type pre-checks before touching
// the provider; provider errors that slip past those checks are coerced to
// the generic IO code rather than leaked upward.
type bridge struct {
	fsys    vfs.FileSystem
	opts    *MountOptions
	inodes  *inodeTable
	metrics *metrics.Collector
	uid     uint32
	gid     uint32
}

func newBridge(fsys vfs.FileSystem, opts *MountOptions, collector *metrics.Collector, uid, gid uint32) *bridge {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &bridge{
		fsys:    fsys,
		opts:    opts,
		inodes:  newInodeTable(),
		metrics: collector,
		uid:     uid,
		gid:     gid,
	}
}

// record feeds the metrics collector. Safe on a nil collector.
func (b *bridge) record(op string, start time.Time, err error) {
	b.metrics.RecordOperation(op, time.Since(start), err == nil)
	if err != nil {
		b.metrics.RecordError(op, string(errors.CodeOf(err)))
	}
}

// coerce guarantees that every error leaving the bridge carries a code from
// the fixed errno vocabulary. Structured errors pass through unchanged; raw
// provider errors become IO_ERROR.
func (b *bridge) coerce(err error, path string) error {
	if err == nil {
		return nil
	}
	var e *errors.Error
	if stderrors.As(err, &e) {
		return err
	}
	return errors.New(errors.ErrCodeIO, "backend operation failed").WithPath(path).WithCause(err)
}

// stat resolves a path into the POSIX-equivalent attribute record. Directory
// entries report a fixed synthetic size and a link count of 2; files report
// their content length, falling back to zero when the content is unreadable.
// All timestamps are the time of the call since providers track none.
func (b *bridge) stat(ctx context.Context, path string) (st StatInfo, err error) {
	start := time.Now()
	defer func() { b.record("get_stat", start, err) }()
	path = vfs.Normalize(path)

	now := time.Now()
	st = StatInfo{
		Ino:   b.inodes.assign(path),
		UID:   b.uid,
		GID:   b.gid,
		Atime: now,
		Mtime: now,
		Ctime: now,
	}

	if path == "/" {
		st.Mode = modeDir
		st.Nlink = 2
		st.Size = dirSize
		return st, nil
	}

	exists, eerr := b.fsys.Exists(ctx, path)
	if eerr != nil {
		return StatInfo{}, b.coerce(eerr, path)
	}
	if !exists {
		return StatInfo{}, errors.New(errors.ErrCodeFileNotFound, "no such file or directory").WithPath(path)
	}

	isDir, derr := b.fsys.IsDir(ctx, path)
	if derr != nil {
		return StatInfo{}, b.coerce(derr, path)
	}

	if isDir {
		st.Mode = modeDir
		st.Nlink = 2
		st.Size = dirSize
		return st, nil
	}

	st.Mode = modeFile
	st.Nlink = 1
	if data, rerr := b.fsys.ReadFile(ctx, path); rerr == nil {
		st.Size = int64(len(data))
	}
	return st, nil
}

// readData returns up to size bytes of a file starting at offset. Reads at
// or past the end return an empty slice, never an error.
func (b *bridge) readData(ctx context.Context, path string, offset int64, size int) (data []byte, err error) {
	start := time.Now()
	defer func() { b.record("read_data", start, err) }()
	path = vfs.Normalize(path)

	content, rerr := b.fsys.ReadFile(ctx, path)
	if rerr != nil {
		if exists, eerr := b.fsys.Exists(ctx, path); eerr == nil && !exists {
			return nil, errors.New(errors.ErrCodeFileNotFound, "no such file or directory").WithPath(path)
		}
		if isDir, derr := b.fsys.IsDir(ctx, path); derr == nil && isDir {
			return nil, errors.New(errors.ErrCodeIsDirectory, "is a directory").WithPath(path)
		}
		return nil, b.coerce(rerr, path)
	}

	if offset >= int64(len(content)) || size <= 0 {
		return []byte{}, nil
	}
	end := offset + int64(size)
	if end > int64(len(content)) {
		end = int64(len(content))
	}
	out := make([]byte, end-offset)
	copy(out, content[offset:end])
	return out, nil
}

// writeData splices data into a file at offset via whole-file
// read-modify-write. The file must already exist; writes never create it.
// An offset beyond the end is clamped to the end, so the write appends
// rather than zero-filling a hole.
func (b *bridge) writeData(ctx context.Context, path string, data []byte, offset int64) (n int, err error) {
	start := time.Now()
	defer func() { b.record("write_data", start, err) }()
	path = vfs.Normalize(path)

	if b.opts.ReadOnly {
		return 0, errors.New(errors.ErrCodeReadOnly, "read-only filesystem").WithPath(path)
	}

	exists, eerr := b.fsys.Exists(ctx, path)
	if eerr != nil {
		return 0, b.coerce(eerr, path)
	}
	if !exists {
		return 0, errors.New(errors.ErrCodeFileNotFound, "no such file or directory").WithPath(path)
	}
	isDir, derr := b.fsys.IsDir(ctx, path)
	if derr != nil {
		return 0, b.coerce(derr, path)
	}
	if isDir {
		return 0, errors.New(errors.ErrCodeIsDirectory, "is a directory").WithPath(path)
	}

	content, rerr := b.fsys.ReadFile(ctx, path)
	if rerr != nil {
		return 0, b.coerce(rerr, path)
	}

	if offset < 0 {
		offset = 0
	}
	if offset > int64(len(content)) {
		offset = int64(len(content))
	}

	merged := make([]byte, 0, int(offset)+len(data))
	merged = append(merged, content[:offset]...)
	merged = append(merged, data...)
	if tail := int(offset) + len(data); tail < len(content) {
		merged = append(merged, content[tail:]...)
	}

	if werr := b.fsys.WriteFile(ctx, path, merged); werr != nil {
		return 0, b.coerce(werr, path)
	}
	return len(data), nil
}

// truncate resizes a file, extending with zero bytes or cutting the tail.
func (b *bridge) truncate(ctx context.Context, path string, size int64) (err error) {
	start := time.Now()
	defer func() { b.record("truncate", start, err) }()
	path = vfs.Normalize(path)

	if b.opts.ReadOnly {
		return errors.New(errors.ErrCodeReadOnly, "read-only filesystem").WithPath(path)
	}
	if size < 0 {
		return errors.New(errors.ErrCodeIO, "negative truncate size").WithPath(path)
	}

	content, rerr := b.fsys.ReadFile(ctx, path)
	if rerr != nil {
		if exists, eerr := b.fsys.Exists(ctx, path); eerr == nil && !exists {
			return errors.New(errors.ErrCodeFileNotFound, "no such file or directory").WithPath(path)
		}
		if isDir, derr := b.fsys.IsDir(ctx, path); derr == nil && isDir {
			return errors.New(errors.ErrCodeIsDirectory, "is a directory").WithPath(path)
		}
		return b.coerce(rerr, path)
	}

	switch {
	case int64(len(content)) == size:
		return nil
	case int64(len(content)) > size:
		content = content[:size]
	default:
		content = append(content, make([]byte, size-int64(len(content)))...)
	}

	return b.coerce(b.fsys.WriteFile(ctx, path, content), path)
}

// listChildren returns the bare names of a directory's entries, in the
// provider's order. Synthetic "." and ".." entries are the adapters'
// business, not the bridge's.
func (b *bridge) listChildren(ctx context.Context, path string) (names []string, err error) {
	start := time.Now()
	defer func() { b.record("list_children", start, err) }()
	path = vfs.Normalize(path)

	if path != "/" {
		exists, eerr := b.fsys.Exists(ctx, path)
		if eerr != nil {
			return nil, b.coerce(eerr, path)
		}
		if !exists {
			return nil, errors.New(errors.ErrCodeFileNotFound, "no such file or directory").WithPath(path)
		}
		isDir, derr := b.fsys.IsDir(ctx, path)
		if derr != nil {
			return nil, b.coerce(derr, path)
		}
		if !isDir {
			return nil, errors.New(errors.ErrCodeNotDirectory, "not a directory").WithPath(path)
		}
	}

	entries, lerr := b.fsys.List(ctx, path)
	if lerr != nil {
		return nil, b.coerce(lerr, path)
	}

	names = make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, vfs.Base(entry))
	}
	return names, nil
}

// createEntry creates an empty file or directory at path.
func (b *bridge) createEntry(ctx context.Context, path string, dir bool) (err error) {
	start := time.Now()
	defer func() { b.record("create_entry", start, err) }()
	path = vfs.Normalize(path)

	if b.opts.ReadOnly {
		return errors.New(errors.ErrCodeReadOnly, "read-only filesystem").WithPath(path)
	}

	exists, eerr := b.fsys.Exists(ctx, path)
	if eerr != nil {
		return b.coerce(eerr, path)
	}
	if exists {
		return errors.New(errors.ErrCodeFileExists, "file exists").WithPath(path)
	}

	if dir {
		return b.coerce(b.fsys.MakeDir(ctx, path), path)
	}
	return b.coerce(b.fsys.WriteFile(ctx, path, []byte{}), path)
}

// canDelete checks whether a delete of path would succeed, without deleting.
// Used by the two-phase delete protocol on Windows; the checks mirror
// deleteEntry exactly.
func (b *bridge) canDelete(ctx context.Context, path string, wantDir bool) (err error) {
	path = vfs.Normalize(path)

	if b.opts.ReadOnly {
		return errors.New(errors.ErrCodeReadOnly, "read-only filesystem").WithPath(path)
	}

	exists, eerr := b.fsys.Exists(ctx, path)
	if eerr != nil {
		return b.coerce(eerr, path)
	}
	if !exists {
		return errors.New(errors.ErrCodeFileNotFound, "no such file or directory").WithPath(path)
	}

	isDir, derr := b.fsys.IsDir(ctx, path)
	if derr != nil {
		return b.coerce(derr, path)
	}
	if wantDir && !isDir {
		return errors.New(errors.ErrCodeNotDirectory, "not a directory").WithPath(path)
	}
	if !wantDir && isDir {
		return errors.New(errors.ErrCodeIsDirectory, "is a directory").WithPath(path)
	}

	if isDir {
		children, lerr := b.fsys.List(ctx, path)
		if lerr != nil {
			return b.coerce(lerr, path)
		}
		if len(children) > 0 {
			return errors.New(errors.ErrCodeNotEmpty, "directory not empty").WithPath(path)
		}
	}
	return nil
}

// deleteEntry removes a file or empty directory. wantDir records which verb
// the kernel issued so type mismatches report the conventional errno.
func (b *bridge) deleteEntry(ctx context.Context, path string, wantDir bool) (err error) {
	start := time.Now()
	defer func() { b.record("delete_entry", start, err) }()
	path = vfs.Normalize(path)

	if cerr := b.canDelete(ctx, path, wantDir); cerr != nil {
		return cerr
	}
	if rerr := b.fsys.Remove(ctx, path); rerr != nil {
		return b.coerce(rerr, path)
	}
	b.inodes.forget(path)
	return nil
}
