//go:build (linux || darwin) && cgofuse
// +build linux darwin
// +build cgofuse

package mount

import (
	"github.com/vfskit/vfskit/internal/metrics"
	"github.com/vfskit/vfskit/pkg/errors"
	"github.com/vfskit/vfskit/pkg/vfs"
)

// newPlatformAdapter selects the mount implementation for this build. The
// cooperative-loop driver is preferred; hosts whose FUSE installation cannot
// run it get the thread-per-callback fallback.
func newPlatformAdapter(fsys vfs.FileSystem, mountPoint string, opts *MountOptions, collector *metrics.Collector, caps Capabilities) (Adapter, error) {
	if !caps.FUSEAvailable {
		return nil, errors.New(errors.ErrCodePlatformNotSupported, "no usable FUSE installation found")
	}
	if caps.CooperativeLoop {
		return newFUSEAdapter(fsys, mountPoint, opts, collector), nil
	}
	return newCgofuseAdapter(fsys, mountPoint, opts, collector), nil
}
