//go:build windows
// +build windows

package mount

import (
	"context"
	"log"
	"time"

	"github.com/winfsp/cgofuse/fuse"

	"github.com/vfskit/vfskit/internal/metrics"
	"github.com/vfskit/vfskit/pkg/errors"
	"github.com/vfskit/vfskit/pkg/vfs"
)

// winfspAdapter mounts through WinFsp's FUSE compatibility layer. The mount
// point is a drive letter or an empty directory; WinFsp dispatches callbacks
// from its own thread pool.
type winfspAdapter struct {
	lifecycle
	fs         *cgofuseFS
	mountPoint string
	opts       *MountOptions
	collector  *metrics.Collector
	host       *fuse.FileSystemHost
	done       chan struct{}
}

func newWinfspAdapter(fsys vfs.FileSystem, mountPoint string, opts *MountOptions, collector *metrics.Collector) *winfspAdapter {
	uid, gid := currentOwner()
	return &winfspAdapter{
		fs:         newCgofuseFS(newBridge(fsys, opts, collector, uid, gid)),
		mountPoint: mountPoint,
		opts:       opts,
		collector:  collector,
	}
}

func (a *winfspAdapter) MountPoint() string { return a.mountPoint }
func (a *winfspAdapter) IsMounted() bool    { return a.isMounted() }

func (a *winfspAdapter) mountArgs() []string {
	// uid=-1/gid=-1 tells WinFsp to map ownership to the mounting user.
	args := []string{
		"-o", "volname=vfskit",
		"-o", "FileSystemName=vfskit",
		"-o", "uid=-1",
		"-o", "gid=-1",
	}
	if a.opts.ReadOnly {
		args = append(args, "-o", "ro")
	}
	if a.opts.Debug {
		args = append(args, "-d")
	}
	for k, v := range a.opts.Extra {
		args = append(args, "-o", k+"="+v)
	}
	return args
}

func (a *winfspAdapter) Mount(ctx context.Context) error {
	if err := a.beginMount(a.mountPoint); err != nil {
		return err
	}

	a.host = fuse.NewFileSystemHost(a.fs)
	a.done = make(chan struct{})

	failed := make(chan struct{})
	go func() {
		ok := a.host.Mount(a.mountPoint, a.mountArgs())
		close(a.done)
		if !ok {
			close(failed)
			return
		}
		a.noteServeExit()
	}()

	select {
	case <-failed:
		a.completeMount(false)
		return errors.Newf(errors.ErrCodeMountFailed, "failed to mount at %s", a.mountPoint)
	case <-time.After(200 * time.Millisecond):
	}

	a.completeMount(true)
	a.collector.MountStarted()
	log.Printf("mount: winfsp filesystem mounted at %s", a.mountPoint)
	return nil
}

// noteServeExit records an externally initiated unmount, observed when the
// dispatcher exits without Unmount having claimed the transition.
func (a *winfspAdapter) noteServeExit() {
	if a.beginUnmount() {
		a.completeUnmount(true)
		a.collector.MountStopped()
		log.Printf("mount: winfsp filesystem at %s detached externally", a.mountPoint)
	}
}

func (a *winfspAdapter) Unmount(ctx context.Context) error {
	if !a.beginUnmount() {
		return nil
	}

	if !a.host.Unmount() {
		select {
		case <-a.done:
			// The dispatcher already exited; the volume is gone.
		default:
			a.completeUnmount(false)
			return errors.Newf(errors.ErrCodeUnmountFailed, "failed to unmount %s", a.mountPoint)
		}
	}

	select {
	case <-a.done:
	case <-ctx.Done():
		a.completeUnmount(false)
		return errors.Newf(errors.ErrCodeUnmountFailed, "dispatcher for %s did not exit", a.mountPoint).WithCause(ctx.Err())
	}

	a.completeUnmount(true)
	a.collector.MountStopped()
	log.Printf("mount: winfsp filesystem unmounted from %s", a.mountPoint)
	return nil
}

func (a *winfspAdapter) Serve(ctx context.Context) error {
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
