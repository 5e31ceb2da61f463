// Package mount projects a vfs.FileSystem onto an OS mount point through the
// platform's native filesystem driver. The package splits into three layers:
// the bridge (verb semantics, shared by everything), one adapter per driver
// protocol, and this file's dispatcher plus the mount lifecycle state machine.
package mount

import (
	"context"
	"log"
	"sync"

	"github.com/vfskit/vfskit/internal/metrics"
	"github.com/vfskit/vfskit/pkg/errors"
	"github.com/vfskit/vfskit/pkg/vfs"
)

// Adapter is the common surface of every platform mount implementation.
type Adapter interface {
	// Mount attaches the filesystem and returns once the mount point is
	// usable. Serving continues in the background.
	Mount(ctx context.Context) error

	// Unmount detaches the filesystem and waits for the serve loop to exit.
	// Unmounting an unmounted adapter is a no-op.
	Unmount(ctx context.Context) error

	// Serve mounts and blocks until the filesystem is unmounted.
	Serve(ctx context.Context) error

	// IsMounted reports whether the adapter currently holds a live mount.
	IsMounted() bool

	// MountPoint returns the OS path the adapter was built for.
	MountPoint() string
}

// Capabilities describes what the host can do, detected once per process.
type Capabilities struct {
	// FUSEAvailable reports whether a kernel FUSE device and its userspace
	// helper are present.
	FUSEAvailable bool

	// CooperativeLoop reports whether the preferred single-loop driver can
	// run. When false, platforms fall back to the thread-per-callback
	// driver where one is available.
	CooperativeLoop bool
}

var (
	capsOnce sync.Once
	caps     Capabilities
)

// DetectCapabilities probes the host exactly once and returns the cached
// result on every later call. Adapter constructors receive the result
// explicitly; nothing re-probes per operation.
func DetectCapabilities() Capabilities {
	capsOnce.Do(func() {
		caps = detectPlatformCapabilities()
		log.Printf("mount: detected capabilities fuse=%v cooperative=%v",
			caps.FUSEAvailable, caps.CooperativeLoop)
	})
	return caps
}

// mountState tracks where an adapter is in its lifecycle.
type mountState int

const (
	stateUnmounted mountState = iota
	stateMounting
	stateMounted
	stateUnmounting
)

// lifecycle is the mutex-guarded mount state machine embedded by every
// adapter. Transitions are claimed before the slow work starts, so a second
// Mount observes mounting, not a torn intermediate state.
type lifecycle struct {
	mu    sync.Mutex
	state mountState
}

// beginMount claims the unmounted-to-mounting transition.
func (l *lifecycle) beginMount(mountPoint string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != stateUnmounted {
		return errors.Newf(errors.ErrCodeAlreadyMounted, "already mounted at %s", mountPoint)
	}
	l.state = stateMounting
	return nil
}

// completeMount finishes the transition. ok=false rolls back to unmounted.
func (l *lifecycle) completeMount(ok bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if ok {
		l.state = stateMounted
	} else {
		l.state = stateUnmounted
	}
}

// beginUnmount claims the mounted-to-unmounting transition. The boolean is
// false when there is nothing to unmount, which callers treat as success.
func (l *lifecycle) beginUnmount() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != stateMounted {
		return false
	}
	l.state = stateUnmounting
	return true
}

// completeUnmount finishes the transition. ok=false restores mounted.
func (l *lifecycle) completeUnmount(ok bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if ok {
		l.state = stateUnmounted
	} else {
		l.state = stateMounted
	}
}

// isMounted reports the current state.
func (l *lifecycle) isMounted() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state == stateMounted
}

// New builds the adapter appropriate for the current platform and the
// detected capabilities. A nil opts selects DefaultOptions.
func New(fsys vfs.FileSystem, mountPoint string, opts *MountOptions) (Adapter, error) {
	return NewWithCollector(fsys, mountPoint, opts, nil)
}

// NewWithCollector is New with an optional metrics collector wired into the
// bridge. A nil collector disables recording.
func NewWithCollector(fsys vfs.FileSystem, mountPoint string, opts *MountOptions, collector *metrics.Collector) (Adapter, error) {
	if mountPoint == "" {
		return nil, errors.New(errors.ErrCodeInvalidOptions, "mount point must not be empty")
	}
	if opts == nil {
		opts = DefaultOptions()
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return newPlatformAdapter(fsys, mountPoint, opts, collector, DetectCapabilities())
}

// Mount builds an adapter and attaches it in one step.
func Mount(ctx context.Context, fsys vfs.FileSystem, mountPoint string, opts *MountOptions) (Adapter, error) {
	a, err := New(fsys, mountPoint, opts)
	if err != nil {
		return nil, err
	}
	if err := a.Mount(ctx); err != nil {
		return nil, err
	}
	return a, nil
}

// WithMount mounts, runs fn, and unmounts even when fn fails. The fn error
// wins over an unmount error.
func WithMount(ctx context.Context, fsys vfs.FileSystem, mountPoint string, opts *MountOptions, fn func(mountPoint string) error) error {
	a, err := Mount(ctx, fsys, mountPoint, opts)
	if err != nil {
		return err
	}
	fnErr := fn(a.MountPoint())
	if uerr := a.Unmount(ctx); uerr != nil {
		if fnErr != nil {
			log.Printf("mount: unmount after callback failure also failed: %v", uerr)
			return fnErr
		}
		return uerr
	}
	return fnErr
}
