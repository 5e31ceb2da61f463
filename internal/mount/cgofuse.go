//go:build (linux || darwin) && cgofuse
// +build linux darwin
// +build cgofuse

package mount

import (
	"context"
	"log"
	"os/exec"
	"runtime"
	"time"

	"github.com/winfsp/cgofuse/fuse"

	"github.com/vfskit/vfskit/internal/metrics"
	"github.com/vfskit/vfskit/pkg/errors"
	"github.com/vfskit/vfskit/pkg/vfs"
)

// cgofuseAdapter is the thread-per-callback fallback for POSIX hosts whose
// FUSE installation cannot run the cooperative loop. host.Mount blocks for
// the life of the mount, so Mount runs it in a goroutine and Serve is the
// natural entry point.
type cgofuseAdapter struct {
	lifecycle
	fs         *cgofuseFS
	mountPoint string
	opts       *MountOptions
	collector  *metrics.Collector
	host       *fuse.FileSystemHost
	done       chan struct{}
}

func newCgofuseAdapter(fsys vfs.FileSystem, mountPoint string, opts *MountOptions, collector *metrics.Collector) *cgofuseAdapter {
	uid, gid := currentOwner()
	return &cgofuseAdapter{
		fs:         newCgofuseFS(newBridge(fsys, opts, collector, uid, gid)),
		mountPoint: mountPoint,
		opts:       opts,
		collector:  collector,
	}
}

func (a *cgofuseAdapter) MountPoint() string { return a.mountPoint }
func (a *cgofuseAdapter) IsMounted() bool    { return a.isMounted() }

func (a *cgofuseAdapter) mountArgs() []string {
	args := []string{
		"-o", "fsname=vfskit",
		"-o", "subtype=vfskit",
	}
	if a.opts.AllowOther {
		args = append(args, "-o", "allow_other")
	}
	if a.opts.ReadOnly {
		args = append(args, "-o", "ro")
	}
	if a.opts.Debug {
		args = append(args, "-d")
	}
	if runtime.GOOS == "darwin" {
		args = append(args, "-o", "volname=vfskit")
	}
	for k, v := range a.opts.Extra {
		args = append(args, "-o", k+"="+v)
	}
	return args
}

func (a *cgofuseAdapter) Mount(ctx context.Context) error {
	if err := a.beginMount(a.mountPoint); err != nil {
		return err
	}

	if err := ensureMountPoint(a.mountPoint); err != nil {
		a.completeMount(false)
		return errors.Newf(errors.ErrCodeMountFailed, "failed to create mount point %s", a.mountPoint).WithCause(err)
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

	// host.Mount reports failure by returning; success only by serving.
	// A short grace period catches immediate failures like a missing or
	// busy mount point.
	select {
	case <-failed:
		a.completeMount(false)
		return errors.Newf(errors.ErrCodeMountFailed, "failed to mount at %s", a.mountPoint)
	case <-time.After(200 * time.Millisecond):
	}

	a.completeMount(true)
	a.collector.MountStarted()
	log.Printf("mount: cgofuse filesystem mounted at %s", a.mountPoint)
	return nil
}

// noteServeExit records an externally initiated unmount, observed when the
// serve loop exits without Unmount having claimed the transition.
func (a *cgofuseAdapter) noteServeExit() {
	if a.beginUnmount() {
		a.completeUnmount(true)
		a.collector.MountStopped()
		log.Printf("mount: cgofuse filesystem at %s detached externally", a.mountPoint)
	}
}

func (a *cgofuseAdapter) Unmount(ctx context.Context) error {
	if !a.beginUnmount() {
		return nil
	}

	if !a.host.Unmount() {
		select {
		case <-a.done:
			// The kernel detached the mount first; nothing left to force.
		default:
			// The library could not detach; fall back to the platform tool.
			tool, args := "fusermount", []string{"-u", a.mountPoint}
			if runtime.GOOS == "darwin" {
				tool, args = "umount", []string{a.mountPoint}
			}
			if out, err := exec.CommandContext(ctx, tool, args...).CombinedOutput(); err != nil {
				a.completeUnmount(false)
				return errors.Newf(errors.ErrCodeUnmountFailed, "failed to unmount %s: %s", a.mountPoint, string(out)).WithCause(err)
			}
		}
	}

	select {
	case <-a.done:
	case <-ctx.Done():
		a.completeUnmount(false)
		return errors.Newf(errors.ErrCodeUnmountFailed, "serve loop for %s did not exit", a.mountPoint).WithCause(ctx.Err())
	}

	a.completeUnmount(true)
	a.collector.MountStopped()
	log.Printf("mount: cgofuse filesystem unmounted from %s", a.mountPoint)
	return nil
}

func (a *cgofuseAdapter) Serve(ctx context.Context) error {
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
